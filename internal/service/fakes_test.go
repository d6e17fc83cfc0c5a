package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shinyyama/support-chat-backend/internal/model"
	"github.com/shinyyama/support-chat-backend/internal/repository"
	"gorm.io/gorm"
)

type fakeRoomRepo struct {
	mu     sync.Mutex
	rooms  map[uint64]*model.Room
	nextID uint64
}

func newFakeRoomRepo() *fakeRoomRepo {
	return &fakeRoomRepo{rooms: make(map[uint64]*model.Room)}
}

func (f *fakeRoomRepo) FindActiveByMember(_ context.Context, memberUID string) (*model.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.findActiveLocked(memberUID)
}

func (f *fakeRoomRepo) findActiveLocked(memberUID string) (*model.Room, error) {
	for _, rm := range f.rooms {
		if rm.ActiveKey != nil && *rm.ActiveKey == memberUID {
			cp := *rm
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRoomRepo) FindByID(_ context.Context, id uint64) (*model.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rm, ok := f.rooms[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *rm
	return &cp, nil
}

// Create mirrors the unique-constraint-with-retry semantics: under the lock,
// a concurrent duplicate resolves to the existing active room.
func (f *fakeRoomRepo) Create(_ context.Context, memberUID string) (*model.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, err := f.findActiveLocked(memberUID); err == nil {
		return existing, nil
	}
	f.nextID++
	key := memberUID
	rm := &model.Room{
		ID:        f.nextID,
		MemberUID: memberUID,
		ActiveKey: &key,
		Status:    model.RoomStatusActive,
	}
	f.rooms[rm.ID] = rm
	cp := *rm
	return &cp, nil
}

func (f *fakeRoomRepo) Close(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rm, ok := f.rooms[id]
	if !ok || rm.Status != model.RoomStatusActive {
		return gorm.ErrRecordNotFound
	}
	rm.Status = model.RoomStatusClosed
	rm.ActiveKey = nil
	return nil
}

func (f *fakeRoomRepo) ListActive(_ context.Context) ([]model.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var list []model.Room
	for _, rm := range f.rooms {
		if rm.Status == model.RoomStatusActive {
			list = append(list, *rm)
		}
	}
	return list, nil
}

func (f *fakeRoomRepo) SetDB(_ *gorm.DB) {}

type fakeMessageRepo struct {
	mu     sync.Mutex
	rooms  *fakeRoomRepo
	msgs   map[uint64][]model.Message
	nextID uint64
	// appendErr, when set, fails the next Append once.
	appendErr error
}

func newFakeMessageRepo(rooms *fakeRoomRepo) *fakeMessageRepo {
	return &fakeMessageRepo{rooms: rooms, msgs: make(map[uint64][]model.Message)}
}

func (f *fakeMessageRepo) Append(_ context.Context, roomID uint64, senderUID, senderKind, body string, clientToken *string) (*model.Message, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		err := f.appendErr
		f.appendErr = nil
		return nil, false, err
	}
	f.rooms.mu.Lock()
	rm, ok := f.rooms.rooms[roomID]
	if !ok {
		f.rooms.mu.Unlock()
		return nil, false, gorm.ErrRecordNotFound
	}
	if rm.Status != model.RoomStatusActive {
		f.rooms.mu.Unlock()
		return nil, false, repository.ErrRoomClosed
	}
	if clientToken != nil && *clientToken != "" {
		for _, m := range f.msgs[roomID] {
			if m.ClientToken != nil && *m.ClientToken == *clientToken {
				f.rooms.mu.Unlock()
				cp := m
				return &cp, true, nil
			}
		}
	}
	rm.LastSeq++
	now := time.Now()
	rm.LastMessageAt = &now
	f.nextID++
	msg := model.Message{
		ID:          f.nextID,
		RoomID:      roomID,
		Seq:         rm.LastSeq,
		SenderUID:   senderUID,
		SenderKind:  senderKind,
		Body:        body,
		ClientToken: clientToken,
		CreatedAt:   now,
	}
	f.rooms.mu.Unlock()
	f.msgs[roomID] = append(f.msgs[roomID], msg)
	cp := msg
	return &cp, false, nil
}

func (f *fakeMessageRepo) ListByRoom(_ context.Context, roomID uint64) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Message, len(f.msgs[roomID]))
	copy(out, f.msgs[roomID])
	return out, nil
}

func (f *fakeMessageRepo) LastByRoom(_ context.Context, roomID uint64) (*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.msgs[roomID]
	if len(msgs) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	cp := msgs[len(msgs)-1]
	return &cp, nil
}

func (f *fakeMessageRepo) CountAfter(_ context.Context, roomID uint64, afterSeq uint64, kinds []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var cnt int64
	for _, m := range f.msgs[roomID] {
		if m.Seq <= afterSeq {
			continue
		}
		for _, k := range kinds {
			if m.SenderKind == k {
				cnt++
				break
			}
		}
	}
	return cnt, nil
}

func (f *fakeMessageRepo) SetDB(_ *gorm.DB) {}

type fakeReadStateRepo struct {
	mu    sync.Mutex
	marks map[[2]interface{}]uint64
}

func newFakeReadStateRepo() *fakeReadStateRepo {
	return &fakeReadStateRepo{marks: make(map[[2]interface{}]uint64)}
}

func (f *fakeReadStateRepo) Advance(_ context.Context, roomID uint64, role string, seq uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]interface{}{roomID, role}
	if seq > f.marks[key] {
		f.marks[key] = seq
	}
	return nil
}

func (f *fakeReadStateRepo) Get(_ context.Context, roomID uint64, role string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.marks[[2]interface{}{roomID, role}], nil
}

func (f *fakeReadStateRepo) SetDB(_ *gorm.DB) {}

type fakeNotificationRepo struct {
	mu            sync.Mutex
	notifications []model.Notification
	jobs          map[uint64]*model.NotificationJob
	nextJobID     uint64
	failFor       map[string]bool
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{
		jobs:    make(map[uint64]*model.NotificationJob),
		failFor: make(map[string]bool),
	}
}

func (f *fakeNotificationRepo) Create(_ context.Context, n *model.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[n.UserUID] {
		return errors.New("write failed")
	}
	f.notifications = append(f.notifications, *n)
	return nil
}

func (f *fakeNotificationRepo) ListByUser(_ context.Context, uid string, unreadOnly bool, limit int) ([]model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Notification
	for _, n := range f.notifications {
		if n.UserUID == uid {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeNotificationRepo) MarkAllRead(_ context.Context, uid string) error { return nil }

func (f *fakeNotificationRepo) CountUnread(_ context.Context, uid string) (int64, error) {
	list, _ := f.ListByUser(nil, uid, true, 0)
	return int64(len(list)), nil
}

func (f *fakeNotificationRepo) CreateJob(_ context.Context, job *model.NotificationJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextJobID++
	job.ID = f.nextJobID
	cp := *job
	f.jobs[job.ID] = &cp
	return nil
}

func (f *fakeNotificationRepo) FinalizeJob(_ context.Context, jobID uint64, successCount, failureCount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	job.SuccessCount = successCount
	job.FailureCount = failureCount
	now := time.Now()
	job.CompletedAt = &now
	return nil
}

func (f *fakeNotificationRepo) FindJobByID(_ context.Context, jobID uint64) (*model.NotificationJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *job
	return &cp, nil
}

func (f *fakeNotificationRepo) SetDB(_ *gorm.DB) {}

type fakeUserRepo struct {
	users []model.User
}

func (f *fakeUserRepo) FindByUID(_ context.Context, uid string) (*model.User, error) {
	for i := range f.users {
		if f.users[i].UID == uid {
			cp := f.users[i]
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) Upsert(_ context.Context, u *model.User) error {
	f.users = append(f.users, *u)
	return nil
}

func (f *fakeUserRepo) ListByTargetRole(_ context.Context, targetRole string) ([]model.User, error) {
	var out []model.User
	for _, u := range f.users {
		switch targetRole {
		case model.TargetRoleAll:
			if u.Role == model.RoleMember || u.Role == model.RoleOwner {
				out = append(out, u)
			}
		default:
			if u.Role == targetRole {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

func (f *fakeUserRepo) SetDB(_ *gorm.DB) {}

type deliveredMessage struct {
	roomID  uint64
	msg     model.Message
	exclude string
}

type replacedPending struct {
	roomID        uint64
	placeholderID string
	msg           *model.Message
}

type fakeDeliverer struct {
	mu       sync.Mutex
	messages []deliveredMessage
	pendings []Pending
	replaced []replacedPending
	online   map[string]bool
	notified []string
}

func newFakeDeliverer() *fakeDeliverer {
	return &fakeDeliverer{online: make(map[string]bool)}
}

func (f *fakeDeliverer) DeliverMessage(roomID uint64, msg *model.Message, excludeConnID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, deliveredMessage{roomID: roomID, msg: *msg, exclude: excludeConnID})
}

func (f *fakeDeliverer) DeliverPending(roomID uint64, p Pending) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pendings = append(f.pendings, p)
}

func (f *fakeDeliverer) ReplacePending(roomID uint64, placeholderID string, msg *model.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaced = append(f.replaced, replacedPending{roomID: roomID, placeholderID: placeholderID, msg: msg})
}

func (f *fakeDeliverer) NotifyUser(uid string, _ *model.Notification) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = append(f.notified, uid)
	return f.online[uid]
}

func (f *fakeDeliverer) snapshot() (int, int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages), len(f.pendings), len(f.replaced)
}
