package service

import (
	"context"

	"github.com/shinyyama/support-chat-backend/internal/model"
)

// Deliverer pushes events to live connections. The websocket hub implements
// it; services never touch wire encoding.
type Deliverer interface {
	// DeliverMessage pushes a persisted message to every connection bound to
	// the room, except the originating connection (empty id excludes nobody).
	DeliverMessage(roomID uint64, msg *model.Message, excludeConnID string)
	// DeliverPending shows a transient assistant placeholder in the room.
	DeliverPending(roomID uint64, p Pending)
	// ReplacePending removes exactly the placeholder identified by
	// placeholderID. msg is the persisted assistant reply, or nil when the
	// assistant failed and the spinner should simply go away.
	ReplacePending(roomID uint64, placeholderID string, msg *model.Message)
	// NotifyUser pushes a notification to any live connection of the user.
	// It reports whether at least one connection received it.
	NotifyUser(userUID string, n *model.Notification) bool
}

// Pending is a transient, unpersisted stand-in for an assistant reply that is
// still being generated. It is correlated to the member message that
// triggered it.
type Pending struct {
	PlaceholderID    string `json:"placeholderId"`
	TriggerMessageID uint64 `json:"triggerMessageId"`
}

// AssistantClient produces a free-text reply to a member message. The real
// implementation calls Gemini; the core only depends on this contract.
type AssistantClient interface {
	Reply(ctx context.Context, body string, history []model.Message) (string, error)
}

// PushSender is the best-effort external push channel used when a broadcast
// recipient has no live connection.
type PushSender interface {
	Send(ctx context.Context, user *model.User, title, body string) error
}
