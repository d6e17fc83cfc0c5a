package model

import "time"

const (
	RoomStatusActive = "active"
	RoomStatusClosed = "closed"
)

// Room is the single support-chat channel between one member and the admin pool.
//
// ActiveKey holds the member uid while the room is active and is cleared on close.
// The unique index on it is what enforces "at most one active room per member":
// a concurrent duplicate create fails on the index instead of racing a
// check-then-create. Closed rooms keep their row forever and are never reopened.
type Room struct {
	ID            uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MemberUID     string     `gorm:"column:member_uid;size:128;index;not null" json:"memberUid"`
	ActiveKey     *string    `gorm:"column:active_key;size:128;uniqueIndex" json:"-"`
	Status        string     `gorm:"size:16;not null;default:active" json:"status"`
	LastSeq       uint64     `gorm:"column:last_seq;not null;default:0" json:"lastSeq"`
	LastMessageAt *time.Time `gorm:"column:last_message_at" json:"lastMessageAt,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Room) TableName() string {
	return "rooms"
}
