package model

import "time"

const (
	SenderKindMember    = "member"
	SenderKindAdmin     = "admin"
	SenderKindAssistant = "assistant"
)

// Message is immutable once persisted. Seq is assigned by the store under the
// room's row lock, so for a fixed room it is strictly increasing and defines
// total order. ClientToken dedupes retried sends from the same client.
type Message struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	RoomID      uint64    `gorm:"column:room_id;uniqueIndex:uniq_room_seq,priority:1;uniqueIndex:uniq_room_token,priority:1" json:"roomId"`
	Seq         uint64    `gorm:"column:seq;not null;uniqueIndex:uniq_room_seq,priority:2" json:"seq"`
	SenderUID   string    `gorm:"column:sender_uid;size:128;index" json:"senderUid"`
	SenderKind  string    `gorm:"column:sender_kind;size:16;not null" json:"senderKind"`
	Body        string    `gorm:"type:text;not null" json:"body"`
	ClientToken *string   `gorm:"column:client_token;size:64;uniqueIndex:uniq_room_token,priority:2" json:"clientToken,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Message) TableName() string {
	return "messages"
}
