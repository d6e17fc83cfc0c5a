package service

import (
	"context"
	"sync"
	"testing"

	"github.com/shinyyama/support-chat-backend/internal/model"
)

func TestRoomFirstContact(t *testing.T) {
	ctx := context.Background()
	svc := NewRoomService(newFakeRoomRepo())

	_, exists, err := svc.Check(ctx, "m1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if exists {
		t.Fatal("expected no room before first contact")
	}

	rm, err := svc.Create(ctx, "m1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rm.Status != model.RoomStatusActive {
		t.Fatalf("status=%s want active", rm.Status)
	}

	found, exists, err := svc.Check(ctx, "m1")
	if err != nil || !exists {
		t.Fatalf("check after create: exists=%v err=%v", exists, err)
	}
	if found.ID != rm.ID {
		t.Fatalf("check returned room %d, create returned %d", found.ID, rm.ID)
	}
}

func TestRoomCreateConcurrentRacesConverge(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRoomRepo()
	svc := NewRoomService(repo)

	const n = 16
	ids := make([]uint64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// duplicate tabs race check-then-create
			if rm, exists, err := svc.Check(ctx, "m1"); err == nil && exists {
				ids[i] = rm.ID
				return
			}
			rm, err := svc.Create(ctx, "m1")
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			ids[i] = rm.ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("caller %d got room %d, caller 0 got %d", i, ids[i], ids[0])
		}
	}
	rooms, _ := repo.ListActive(ctx)
	if len(rooms) != 1 {
		t.Fatalf("active rooms=%d want 1", len(rooms))
	}
}

func TestRoomCloseIsTerminal(t *testing.T) {
	ctx := context.Background()
	svc := NewRoomService(newFakeRoomRepo())
	admin := Identity{UID: "a1", Role: model.RoleAdmin}
	member := Identity{UID: "m1", Role: model.RoleMember}

	rm, err := svc.Create(ctx, "m1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Close(ctx, member, rm.ID); err != ErrForbidden {
		t.Fatalf("member close err=%v want ErrForbidden", err)
	}
	if err := svc.Close(ctx, admin, rm.ID); err != nil {
		t.Fatalf("admin close: %v", err)
	}
	if err := svc.Close(ctx, admin, rm.ID); err != ErrNotFound {
		t.Fatalf("second close err=%v want ErrNotFound", err)
	}

	// a returning member is routed through check again and gets a fresh room
	if _, exists, _ := svc.Check(ctx, "m1"); exists {
		t.Fatal("closed room still reported active")
	}
	fresh, err := svc.Create(ctx, "m1")
	if err != nil {
		t.Fatalf("recreate: %v", err)
	}
	if fresh.ID == rm.ID {
		t.Fatal("closed room was reopened instead of replaced")
	}
}

func TestRoomAuthorize(t *testing.T) {
	svc := NewRoomService(newFakeRoomRepo())
	active := &model.Room{ID: 1, MemberUID: "m1", Status: model.RoomStatusActive}
	closed := &model.Room{ID: 2, MemberUID: "m1", Status: model.RoomStatusClosed}

	tests := []struct {
		name string
		room *model.Room
		id   Identity
		want error
	}{
		{"own room", active, Identity{UID: "m1", Role: model.RoleMember}, nil},
		{"admin any room", active, Identity{UID: "a1", Role: model.RoleAdmin}, nil},
		{"admin closed room", closed, Identity{UID: "a1", Role: model.RoleAdmin}, nil},
		{"foreign member", active, Identity{UID: "m2", Role: model.RoleMember}, ErrForbidden},
		{"member closed room", closed, Identity{UID: "m1", Role: model.RoleMember}, ErrRoomClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := svc.Authorize(tt.room, tt.id); got != tt.want {
				t.Fatalf("got=%v want=%v", got, tt.want)
			}
		})
	}
}
