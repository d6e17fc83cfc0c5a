package ws

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/shinyyama/support-chat-backend/internal/model"
	"github.com/shinyyama/support-chat-backend/internal/service"
)

type recordingPresence struct {
	online map[string]int
}

func newRecordingPresence() *recordingPresence {
	return &recordingPresence{online: make(map[string]int)}
}

func (p *recordingPresence) MarkRead(context.Context, uint64, service.Identity) error { return nil }
func (p *recordingPresence) Unread(context.Context, uint64, string) (int64, error)    { return 0, nil }
func (p *recordingPresence) RoomSummaries(context.Context, service.Identity) ([]service.RoomSummary, error) {
	return nil, nil
}
func (p *recordingPresence) MarkOnline(uid string)  { p.online[uid]++ }
func (p *recordingPresence) MarkOffline(uid string) { p.online[uid]-- }
func (p *recordingPresence) IsOnline(uid string) bool {
	return p.online[uid] > 0
}

func newTestClient(hub *Hub, uid, role string) *Client {
	return &Client{
		ID:       uuid.NewString(),
		Identity: service.Identity{UID: uid, Role: role},
		hub:      hub,
		send:     make(chan []byte, 8),
	}
}

func drain(c *Client) [][]byte {
	var out [][]byte
	for {
		select {
		case data := <-c.send:
			out = append(out, data)
		default:
			return out
		}
	}
}

func TestHubDeliverExcludesOrigin(t *testing.T) {
	hub := NewHub(nil)
	c1 := newTestClient(hub, "m1", model.RoleMember)
	c2 := newTestClient(hub, "a1", model.RoleAdmin)
	hub.Register(c1)
	hub.Register(c2)
	hub.Bind(c1, 7)
	hub.Bind(c2, 7)

	if got := len(hub.ConnectionsFor(7)); got != 2 {
		t.Fatalf("bound connections=%d want 2", got)
	}

	msg := &model.Message{ID: 1, RoomID: 7, Seq: 1, SenderKind: model.SenderKindMember, Body: "hi"}
	hub.DeliverMessage(7, msg, c1.ID)

	if got := len(drain(c1)); got != 0 {
		t.Fatalf("origin received %d events", got)
	}
	events := drain(c2)
	if len(events) != 1 {
		t.Fatalf("peer received %d events want 1", len(events))
	}
	var env WSMessage
	if err := json.Unmarshal(events[0], &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Type != TypeMessageNew {
		t.Fatalf("type=%s want %s", env.Type, TypeMessageNew)
	}
}

func TestHubUnregisterReleasesBindingSynchronously(t *testing.T) {
	presence := newRecordingPresence()
	hub := NewHub(presence)
	c := newTestClient(hub, "m1", model.RoleMember)
	hub.Register(c)
	hub.Bind(c, 3)

	if !presence.IsOnline("m1") {
		t.Fatal("register did not mark online")
	}

	hub.Unregister(c)
	if got := len(hub.ConnectionsFor(3)); got != 0 {
		t.Fatalf("room still has %d connections after unregister", got)
	}
	if presence.IsOnline("m1") {
		t.Fatal("unregister did not mark offline")
	}

	// idempotent: a second unregister is a no-op, not a double close
	hub.Unregister(c)
	if presence.online["m1"] != 0 {
		t.Fatalf("offline recorded twice: refcount=%d", presence.online["m1"])
	}

	// a broadcast after teardown must not target the dead connection
	hub.DeliverMessage(3, &model.Message{ID: 1, RoomID: 3, Seq: 1}, "")
}

func TestHubRebindMovesConnection(t *testing.T) {
	hub := NewHub(nil)
	c := newTestClient(hub, "a1", model.RoleAdmin)
	hub.Register(c)
	hub.Bind(c, 1)
	hub.Bind(c, 2)

	if got := len(hub.ConnectionsFor(1)); got != 0 {
		t.Fatalf("old room still has %d connections", got)
	}
	if got := len(hub.ConnectionsFor(2)); got != 1 {
		t.Fatalf("new room has %d connections want 1", got)
	}
}

func TestHubNotifyUser(t *testing.T) {
	hub := NewHub(nil)
	c1 := newTestClient(hub, "m1", model.RoleMember)
	c2 := newTestClient(hub, "m1", model.RoleMember) // second tab
	hub.Register(c1)
	hub.Register(c2)

	n := &model.Notification{UserUID: "m1", Type: "promo", Title: "Sale"}
	if !hub.NotifyUser("m1", n) {
		t.Fatal("delivery to live user reported false")
	}
	if len(drain(c1)) != 1 || len(drain(c2)) != 1 {
		t.Fatal("not all tabs received the notification")
	}
	if hub.NotifyUser("ghost", n) {
		t.Fatal("delivery to offline user reported true")
	}
}
