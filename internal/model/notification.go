package model

import "time"

const (
	TargetRoleMember = "member"
	TargetRoleOwner  = "owner"
	TargetRoleAll    = "all"
)

type Notification struct {
	ID        uint64     `gorm:"primaryKey;autoIncrement"`
	UserUID   string     `gorm:"column:user_uid;size:128;index;not null"`
	Type      string     `gorm:"column:type;size:64;not null"`
	Title     string     `gorm:"column:title;size:255"`
	Body      string     `gorm:"column:body;type:text"`
	JobID     *uint64    `gorm:"column:job_id;index"`
	RoomID    *uint64    `gorm:"column:room_id;index"`
	ReadAt    *time.Time `gorm:"column:read_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime"`
}

func (Notification) TableName() string {
	return "notifications"
}

// NotificationJob records one admin broadcast. SuccessCount+FailureCount never
// exceeds RecipientCount; CompletedAt is set only once the two sides add up.
type NotificationJob struct {
	ID             uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TargetRole     string     `gorm:"column:target_role;size:16;not null" json:"targetRole"`
	Type           string     `gorm:"column:type;size:64;not null" json:"type"`
	Title          string     `gorm:"column:title;size:255" json:"title"`
	Body           string     `gorm:"column:body;type:text" json:"body"`
	RecipientCount int        `gorm:"column:recipient_count;not null;default:0" json:"recipientCount"`
	SuccessCount   int        `gorm:"column:success_count;not null;default:0" json:"successCount"`
	FailureCount   int        `gorm:"column:failure_count;not null;default:0" json:"failureCount"`
	CompletedAt    *time.Time `gorm:"column:completed_at" json:"completedAt,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"createdAt"`
}

func (NotificationJob) TableName() string {
	return "notification_jobs"
}
