package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shinyyama/support-chat-backend/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MessageRepository interface {
	// Append persists one message with the next sequence number for the room.
	// The bool result is true when the client token matched an already
	// persisted message, in which case that message is returned unchanged.
	Append(ctx context.Context, roomID uint64, senderUID, senderKind, body string, clientToken *string) (*model.Message, bool, error)
	ListByRoom(ctx context.Context, roomID uint64) ([]model.Message, error)
	LastByRoom(ctx context.Context, roomID uint64) (*model.Message, error)
	// CountAfter counts messages in the room with seq > afterSeq whose sender
	// kind is one of kinds.
	CountAfter(ctx context.Context, roomID uint64, afterSeq uint64, kinds []string) (int64, error)
	SetDB(db *gorm.DB)
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) SetDB(db *gorm.DB) {
	r.db = db
}

// Append runs inside one transaction holding a row lock on the room, which is
// the per-room serialization point: seq assignment, the insert, and the room
// waterline update commit or roll back together.
func (r *messageRepository) Append(ctx context.Context, roomID uint64, senderUID, senderKind, body string, clientToken *string) (*model.Message, bool, error) {
	if r.db == nil {
		return nil, false, ErrDBNotReady
	}
	var (
		msg model.Message
		dup bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rm model.Room
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&rm, roomID).Error; err != nil {
			return err
		}
		if rm.Status != model.RoomStatusActive {
			return ErrRoomClosed
		}
		if clientToken != nil && *clientToken != "" {
			var existing model.Message
			err := tx.Where("room_id = ? AND client_token = ?", roomID, *clientToken).First(&existing).Error
			if err == nil {
				msg = existing
				dup = true
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}
		msg = model.Message{
			RoomID:      roomID,
			Seq:         rm.LastSeq + 1,
			SenderUID:   senderUID,
			SenderKind:  senderKind,
			Body:        body,
			ClientToken: clientToken,
		}
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		now := time.Now()
		return tx.Model(&model.Room{}).
			Where("id = ?", roomID).
			Updates(map[string]interface{}{
				"last_seq":        msg.Seq,
				"last_message_at": now,
			}).Error
	})
	if err != nil {
		return nil, false, err
	}
	return &msg, dup, nil
}

func (r *messageRepository) ListByRoom(ctx context.Context, roomID uint64) ([]model.Message, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var msgs []model.Message
	if err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("seq ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *messageRepository) LastByRoom(ctx context.Context, roomID uint64) (*model.Message, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var msg model.Message
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("seq DESC").
		First(&msg).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) CountAfter(ctx context.Context, roomID uint64, afterSeq uint64, kinds []string) (int64, error) {
	if r.db == nil {
		return 0, ErrDBNotReady
	}
	var cnt int64
	if err := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("room_id = ? AND seq > ? AND sender_kind IN ?", roomID, afterSeq, kinds).
		Count(&cnt).Error; err != nil {
		return 0, err
	}
	return cnt, nil
}
