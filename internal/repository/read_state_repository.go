package repository

import (
	"context"
	"errors"

	"github.com/shinyyama/support-chat-backend/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReadStateRepository interface {
	// Advance moves the (room, role) watermark to seq if seq is greater.
	// It is a monotonic max, safe to apply concurrently.
	Advance(ctx context.Context, roomID uint64, role string, seq uint64) error
	Get(ctx context.Context, roomID uint64, role string) (uint64, error)
	SetDB(db *gorm.DB)
}

type readStateRepository struct {
	db *gorm.DB
}

func NewReadStateRepository(db *gorm.DB) ReadStateRepository {
	return &readStateRepository{db: db}
}

func (r *readStateRepository) SetDB(db *gorm.DB) {
	r.db = db
}

func (r *readStateRepository) Advance(ctx context.Context, roomID uint64, role string, seq uint64) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "room_id"}, {Name: "role"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"last_read_seq": gorm.Expr("GREATEST(last_read_seq, VALUES(last_read_seq))"),
		}),
	}).Create(&model.ReadState{RoomID: roomID, Role: role, LastReadSeq: seq}).Error
}

func (r *readStateRepository) Get(ctx context.Context, roomID uint64, role string) (uint64, error) {
	if r.db == nil {
		return 0, ErrDBNotReady
	}
	var st model.ReadState
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND role = ?", roomID, role).
		First(&st).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return st.LastReadSeq, nil
}
