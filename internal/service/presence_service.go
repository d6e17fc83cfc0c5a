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

// RoomSummary is one row of the admin room list.
type RoomSummary struct {
	RoomID        uint64         `json:"roomId"`
	MemberUID     string         `json:"memberUid"`
	MemberOnline  bool           `json:"memberOnline"`
	LastMessage   *model.Message `json:"lastMessage,omitempty"`
	LastMessageAt *time.Time     `json:"lastMessageAt,omitempty"`
	UnreadCount   int64          `json:"unreadCount"`
}

type PresenceService interface {
	// MarkRead advances the (room, role) watermark to the room's current max
	// sequence. It never moves backwards.
	MarkRead(ctx context.Context, roomID uint64, viewer Identity) error
	Unread(ctx context.Context, roomID uint64, role string) (int64, error)
	// RoomSummaries renders the admin room list: active rooms, newest first,
	// with unread counts that only include member-sent messages.
	RoomSummaries(ctx context.Context, viewer Identity) ([]RoomSummary, error)
	MarkOnline(uid string)
	MarkOffline(uid string)
	IsOnline(uid string) bool
}

type presenceService struct {
	roomRepo repository.RoomRepository
	msgRepo  repository.MessageRepository
	readRepo repository.ReadStateRepository

	mu     sync.RWMutex
	online map[string]int
}

func NewPresenceService(roomRepo repository.RoomRepository, msgRepo repository.MessageRepository, readRepo repository.ReadStateRepository) PresenceService {
	return &presenceService{
		roomRepo: roomRepo,
		msgRepo:  msgRepo,
		readRepo: readRepo,
		online:   make(map[string]int),
	}
}

// unreadKinds returns the sender kinds that count as unread for a viewer
// role. A viewer never counts its own messages, and assistant messages never
// inflate the admin's count.
func unreadKinds(role string) []string {
	if role == model.RoleAdmin {
		return []string{model.SenderKindMember}
	}
	return []string{model.SenderKindAdmin, model.SenderKindAssistant}
}

func (s *presenceService) MarkRead(ctx context.Context, roomID uint64, viewer Identity) error {
	rm, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if !viewer.IsAdmin() && rm.MemberUID != viewer.UID {
		return ErrForbidden
	}
	role := model.RoleMember
	if viewer.IsAdmin() {
		role = model.RoleAdmin
	}
	return s.readRepo.Advance(ctx, roomID, role, rm.LastSeq)
}

func (s *presenceService) Unread(ctx context.Context, roomID uint64, role string) (int64, error) {
	last, err := s.readRepo.Get(ctx, roomID, role)
	if err != nil {
		return 0, err
	}
	return s.msgRepo.CountAfter(ctx, roomID, last, unreadKinds(role))
}

func (s *presenceService) RoomSummaries(ctx context.Context, viewer Identity) ([]RoomSummary, error) {
	if !viewer.IsAdmin() {
		return nil, ErrForbidden
	}
	rooms, err := s.roomRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]RoomSummary, 0, len(rooms))
	for _, rm := range rooms {
		sum := RoomSummary{
			RoomID:        rm.ID,
			MemberUID:     rm.MemberUID,
			MemberOnline:  s.IsOnline(rm.MemberUID),
			LastMessageAt: rm.LastMessageAt,
		}
		last, err := s.msgRepo.LastByRoom(ctx, rm.ID)
		if err == nil {
			sum.LastMessage = last
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		cnt, err := s.Unread(ctx, rm.ID, model.RoleAdmin)
		if err != nil {
			return nil, err
		}
		sum.UnreadCount = cnt
		summaries = append(summaries, sum)
	}
	return summaries, nil
}

// Online state is reference counted: one user may hold several connections
// (duplicate tabs), and only the last disconnect marks them offline.

func (s *presenceService) MarkOnline(uid string) {
	s.mu.Lock()
	s.online[uid]++
	s.mu.Unlock()
}

func (s *presenceService) MarkOffline(uid string) {
	s.mu.Lock()
	if s.online[uid] > 0 {
		s.online[uid]--
	}
	if s.online[uid] == 0 {
		delete(s.online, uid)
	}
	s.mu.Unlock()
}

func (s *presenceService) IsOnline(uid string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.online[uid] > 0
}
