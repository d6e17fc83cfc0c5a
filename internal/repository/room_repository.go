package repository

import (
	"context"
	"errors"

	"github.com/shinyyama/support-chat-backend/internal/model"
	"gorm.io/gorm"
)

var ErrDBNotReady = errors.New("database not initialized")

// ErrRoomClosed is returned when an operation targets a room that exists but
// is no longer active.
var ErrRoomClosed = errors.New("room closed")

type RoomRepository interface {
	FindActiveByMember(ctx context.Context, memberUID string) (*model.Room, error)
	FindByID(ctx context.Context, id uint64) (*model.Room, error)
	Create(ctx context.Context, memberUID string) (*model.Room, error)
	Close(ctx context.Context, id uint64) error
	ListActive(ctx context.Context) ([]model.Room, error)
	SetDB(db *gorm.DB)
}

type roomRepository struct {
	db *gorm.DB
}

func NewRoomRepository(db *gorm.DB) RoomRepository {
	return &roomRepository{db: db}
}

func (r *roomRepository) SetDB(db *gorm.DB) {
	r.db = db
}

func (r *roomRepository) FindActiveByMember(ctx context.Context, memberUID string) (*model.Room, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var rm model.Room
	if err := r.db.WithContext(ctx).
		Where("active_key = ?", memberUID).
		First(&rm).Error; err != nil {
		return nil, err
	}
	return &rm, nil
}

func (r *roomRepository) FindByID(ctx context.Context, id uint64) (*model.Room, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var rm model.Room
	if err := r.db.WithContext(ctx).First(&rm, id).Error; err != nil {
		return nil, err
	}
	return &rm, nil
}

// Create inserts a fresh active room for the member. The unique index on
// active_key serializes concurrent creates: the loser of a race gets a
// duplicate-key error and is handed the winner's row instead.
func (r *roomRepository) Create(ctx context.Context, memberUID string) (*model.Room, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	key := memberUID
	rm := model.Room{
		MemberUID: memberUID,
		ActiveKey: &key,
		Status:    model.RoomStatusActive,
	}
	err := r.db.WithContext(ctx).Create(&rm).Error
	if err == nil {
		return &rm, nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return r.FindActiveByMember(ctx, memberUID)
	}
	return nil, err
}

func (r *roomRepository) Close(ctx context.Context, id uint64) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	res := r.db.WithContext(ctx).
		Model(&model.Room{}).
		Where("id = ? AND status = ?", id, model.RoomStatusActive).
		Updates(map[string]interface{}{
			"status":     model.RoomStatusClosed,
			"active_key": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *roomRepository) ListActive(ctx context.Context) ([]model.Room, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var list []model.Room
	if err := r.db.WithContext(ctx).
		Where("status = ?", model.RoomStatusActive).
		Order("last_message_at DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
