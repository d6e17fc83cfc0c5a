package service

import (
	"context"
	"errors"

	"github.com/shinyyama/support-chat-backend/internal/model"
	"github.com/shinyyama/support-chat-backend/internal/repository"
	"gorm.io/gorm"
)

type RoomService interface {
	// Check reports whether the member currently has an active room.
	Check(ctx context.Context, memberUID string) (*model.Room, bool, error)
	// Create returns the member's active room, creating one if needed.
	// Concurrent creates for the same member converge on one room.
	Create(ctx context.Context, memberUID string) (*model.Room, error)
	Get(ctx context.Context, roomID uint64) (*model.Room, error)
	// Authorize reports whether the identity may join the room.
	Authorize(room *model.Room, id Identity) error
	// Close ends an active room. Admin only; closed rooms stay closed.
	Close(ctx context.Context, actor Identity, roomID uint64) error
}

type roomService struct {
	roomRepo repository.RoomRepository
}

func NewRoomService(roomRepo repository.RoomRepository) RoomService {
	return &roomService{roomRepo: roomRepo}
}

func (s *roomService) Check(ctx context.Context, memberUID string) (*model.Room, bool, error) {
	if memberUID == "" {
		return nil, false, ErrValidation
	}
	rm, err := s.roomRepo.FindActiveByMember(ctx, memberUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return rm, true, nil
}

func (s *roomService) Create(ctx context.Context, memberUID string) (*model.Room, error) {
	if memberUID == "" {
		return nil, ErrValidation
	}
	return s.roomRepo.Create(ctx, memberUID)
}

func (s *roomService) Get(ctx context.Context, roomID uint64) (*model.Room, error) {
	rm, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rm, nil
}

func (s *roomService) Authorize(room *model.Room, id Identity) error {
	if id.IsAdmin() {
		return nil
	}
	if room.MemberUID != id.UID {
		return ErrForbidden
	}
	if room.Status != model.RoomStatusActive {
		return ErrRoomClosed
	}
	return nil
}

func (s *roomService) Close(ctx context.Context, actor Identity, roomID uint64) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	if err := s.roomRepo.Close(ctx, roomID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
