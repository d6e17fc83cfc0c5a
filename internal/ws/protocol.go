package ws

import (
	"encoding/json"

	"github.com/shinyyama/support-chat-backend/internal/model"
	"github.com/shinyyama/support-chat-backend/internal/service"
)

const (
	TypeCheckRoom    = "checkRoom"
	TypeCreateRoom   = "createRoom"
	TypeJoinRoom     = "joinRoom"
	TypeMessageSend  = "message"
	TypeMarkRead     = "markMessagesAsRead"
	TypeGetChatRooms = "getChatRooms"
	TypeBroadcast    = "sendGroupNotification"
	TypePing         = "ping"

	TypeRoomCheck        = "roomCheck"
	TypeRoomCreated      = "roomCreated"
	TypeChatHistory      = "chatHistory"
	TypeMessageNew       = "message"
	TypeAssistantPending = "assistantPending"
	TypeReplacePending   = "replacePending"
	TypeChatRooms        = "chatRooms"
	TypeNotificationSent = "notificationSent"
	TypeNotification     = "notification"
	TypeError            = "error"
	TypePong             = "pong"
)

type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func NewWSMessage(typ string, payload interface{}) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = data
	}
	return json.Marshal(WSMessage{Type: typ, Payload: raw})
}

type CheckRoomPayload struct {
	MemberID string `json:"memberId,omitempty"`
}

type CreateRoomPayload struct {
	// RoomID is a client-proposed id; the server always assigns its own.
	RoomID   uint64 `json:"roomId,omitempty"`
	MemberID string `json:"memberId,omitempty"`
}

type JoinRoomPayload struct {
	RoomID uint64 `json:"roomId"`
}

type SendMessagePayload struct {
	RoomID      uint64 `json:"roomId"`
	Body        string `json:"body"`
	ClientToken string `json:"clientToken,omitempty"`
	// SenderID and SenderRole are accepted for backward compatibility but
	// never trusted: they must match the authenticated connection.
	SenderID   string `json:"senderId,omitempty"`
	SenderRole string `json:"senderRole,omitempty"`
}

type MarkReadPayload struct {
	RoomID uint64 `json:"roomId"`
}

type BroadcastPayload struct {
	TargetRole string `json:"targetRole"`
	Type       string `json:"type"`
	Title      string `json:"title"`
	Body       string `json:"body"`
}

type RoomCheckPayload struct {
	Exists bool    `json:"exists"`
	RoomID *uint64 `json:"roomId,omitempty"`
}

type RoomCreatedPayload struct {
	Success bool   `json:"success"`
	RoomID  uint64 `json:"roomId"`
}

type ChatHistoryPayload struct {
	RoomID   uint64          `json:"roomId"`
	Messages []model.Message `json:"messages"`
}

type MessagePayload struct {
	Message model.Message `json:"message"`
	// ClientToken echoes the sender's token so a provisional local copy can
	// be reconciled instead of duplicated.
	ClientToken string `json:"clientToken,omitempty"`
}

type AssistantPendingPayload struct {
	RoomID  uint64          `json:"roomId"`
	Pending service.Pending `json:"pending"`
}

type ReplacePendingPayload struct {
	RoomID        uint64         `json:"roomId"`
	PlaceholderID string         `json:"placeholderId"`
	Message       *model.Message `json:"message,omitempty"`
}

type ChatRoomsPayload struct {
	Summaries []service.RoomSummary `json:"summaries"`
}

type BroadcastDetails struct {
	RecipientCount int `json:"recipientCount"`
	SuccessCount   int `json:"successCount"`
	FailureCount   int `json:"failureCount"`
}

type NotificationSentPayload struct {
	Success bool             `json:"success"`
	JobID   uint64           `json:"jobId"`
	Details BroadcastDetails `json:"details"`
}

type NotificationPayload struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
