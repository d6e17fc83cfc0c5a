package repository

import (
	"context"
	"time"

	"github.com/shinyyama/support-chat-backend/internal/model"
	"gorm.io/gorm"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	ListByUser(ctx context.Context, userUID string, unreadOnly bool, limit int) ([]model.Notification, error)
	MarkAllRead(ctx context.Context, userUID string) error
	CountUnread(ctx context.Context, userUID string) (int64, error)
	CreateJob(ctx context.Context, job *model.NotificationJob) error
	FinalizeJob(ctx context.Context, jobID uint64, successCount, failureCount int) error
	FindJobByID(ctx context.Context, jobID uint64) (*model.NotificationJob, error)
	SetDB(db *gorm.DB)
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) SetDB(db *gorm.DB) {
	r.db = db
}

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *notificationRepository) ListByUser(ctx context.Context, userUID string, unreadOnly bool, limit int) ([]model.Notification, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var list []model.Notification
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	q := r.db.WithContext(ctx).Model(&model.Notification{}).Where("user_uid = ?", userUID)
	if unreadOnly {
		q = q.Where("read_at IS NULL")
	}
	if err := q.Order("created_at DESC").Limit(limit).Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userUID string) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	now := r.db.NowFunc()
	return r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("user_uid = ? AND read_at IS NULL", userUID).
		Update("read_at", now).Error
}

func (r *notificationRepository) CountUnread(ctx context.Context, userUID string) (int64, error) {
	if r.db == nil {
		return 0, ErrDBNotReady
	}
	var cnt int64
	if err := r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("user_uid = ? AND read_at IS NULL", userUID).
		Count(&cnt).Error; err != nil {
		return 0, err
	}
	return cnt, nil
}

func (r *notificationRepository) CreateJob(ctx context.Context, job *model.NotificationJob) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *notificationRepository) FinalizeJob(ctx context.Context, jobID uint64, successCount, failureCount int) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&model.NotificationJob{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"success_count": successCount,
			"failure_count": failureCount,
			"completed_at":  now,
		}).Error
}

func (r *notificationRepository) FindJobByID(ctx context.Context, jobID uint64) (*model.NotificationJob, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var job model.NotificationJob
	if err := r.db.WithContext(ctx).First(&job, jobID).Error; err != nil {
		return nil, err
	}
	return &job, nil
}
