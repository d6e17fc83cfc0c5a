package model

import "time"

// ReadState is a per-(room, role) read watermark. LastReadSeq only ever moves
// forward; unread counts are derived as "messages after the watermark not sent
// by the viewer's own kind".
type ReadState struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	RoomID      uint64    `gorm:"column:room_id;uniqueIndex:uniq_room_role,priority:1"`
	Role        string    `gorm:"size:16;uniqueIndex:uniq_room_role,priority:2"`
	LastReadSeq uint64    `gorm:"column:last_read_seq;not null;default:0"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

func (ReadState) TableName() string {
	return "read_states"
}
