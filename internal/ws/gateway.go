package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shinyyama/support-chat-backend/internal/chatctx"
	"github.com/shinyyama/support-chat-backend/internal/service"
)

const dispatchTimeout = 15 * time.Second

// Gateway is the single wire-boundary adapter: it decodes client events,
// calls the owning service with the connection's authenticated identity, and
// encodes replies. No service ever sees raw payload bytes.
type Gateway struct {
	rooms     service.RoomService
	chat      service.ChatService
	presence  service.PresenceService
	broadcast service.BroadcastService
}

func NewGateway(rooms service.RoomService, chat service.ChatService, presence service.PresenceService, broadcast service.BroadcastService) *Gateway {
	return &Gateway{
		rooms:     rooms,
		chat:      chat,
		presence:  presence,
		broadcast: broadcast,
	}
}

func (g *Gateway) Dispatch(c *Client, msg WSMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()
	ctx = chatctx.WithRID(ctx, uuid.NewString()[:8])

	switch msg.Type {
	case TypeCheckRoom:
		g.handleCheckRoom(ctx, c, msg.Payload)
	case TypeCreateRoom:
		g.handleCreateRoom(ctx, c, msg.Payload)
	case TypeJoinRoom:
		g.handleJoinRoom(ctx, c, msg.Payload)
	case TypeMessageSend:
		g.handleMessage(ctx, c, msg.Payload)
	case TypeMarkRead:
		g.handleMarkRead(ctx, c, msg.Payload)
	case TypeGetChatRooms:
		g.handleGetChatRooms(ctx, c)
	case TypeBroadcast:
		g.handleBroadcast(ctx, c, msg.Payload)
	case TypePing:
		g.reply(c, TypePong, nil)
	default:
		g.sendError(c, "validation", "unknown event type")
	}
}

// targetMember resolves which member a room operation is about. Members may
// only act on themselves; the payload field is display-only and rejected on
// mismatch. Admins must name the member explicitly.
func (g *Gateway) targetMember(c *Client, memberID string) (string, bool) {
	if c.Identity.IsAdmin() {
		return memberID, memberID != ""
	}
	if memberID != "" && memberID != c.Identity.UID {
		return "", false
	}
	return c.Identity.UID, true
}

func (g *Gateway) handleCheckRoom(ctx context.Context, c *Client, raw json.RawMessage) {
	var p CheckRoomPayload
	if raw != nil {
		if err := json.Unmarshal(raw, &p); err != nil {
			g.sendError(c, "validation", "malformed payload")
			return
		}
	}
	member, ok := g.targetMember(c, p.MemberID)
	if !ok {
		g.sendError(c, "validation", "memberId does not match authenticated identity")
		return
	}
	rm, exists, err := g.rooms.Check(ctx, member)
	if err != nil {
		g.serviceError(c, err)
		return
	}
	resp := RoomCheckPayload{Exists: exists}
	if exists {
		resp.RoomID = &rm.ID
	}
	g.reply(c, TypeRoomCheck, resp)
}

func (g *Gateway) handleCreateRoom(ctx context.Context, c *Client, raw json.RawMessage) {
	var p CreateRoomPayload
	if raw != nil {
		if err := json.Unmarshal(raw, &p); err != nil {
			g.sendError(c, "validation", "malformed payload")
			return
		}
	}
	member, ok := g.targetMember(c, p.MemberID)
	if !ok {
		g.sendError(c, "validation", "memberId does not match authenticated identity")
		return
	}
	rm, err := g.rooms.Create(ctx, member)
	if err != nil {
		g.serviceError(c, err)
		return
	}
	g.reply(c, TypeRoomCreated, RoomCreatedPayload{Success: true, RoomID: rm.ID})
}

func (g *Gateway) handleJoinRoom(ctx context.Context, c *Client, raw json.RawMessage) {
	var p JoinRoomPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.RoomID == 0 {
		g.sendError(c, "validation", "roomId is required")
		return
	}
	rm, err := g.rooms.Get(ctx, p.RoomID)
	if err != nil {
		g.serviceError(c, err)
		return
	}
	if err := g.rooms.Authorize(rm, c.Identity); err != nil {
		g.serviceError(c, err)
		return
	}
	c.hub.Bind(c, rm.ID)
	msgs, err := g.chat.History(ctx, rm.ID, c.Identity)
	if err != nil {
		g.serviceError(c, err)
		return
	}
	g.reply(c, TypeChatHistory, ChatHistoryPayload{RoomID: rm.ID, Messages: msgs})
}

func (g *Gateway) handleMessage(ctx context.Context, c *Client, raw json.RawMessage) {
	var p SendMessagePayload
	if err := json.Unmarshal(raw, &p); err != nil || p.RoomID == 0 || p.Body == "" {
		g.sendError(c, "validation", "roomId and body are required")
		return
	}
	if p.SenderID != "" && p.SenderID != c.Identity.UID {
		g.sendError(c, "validation", "senderId does not match authenticated identity")
		return
	}
	if p.SenderRole != "" && p.SenderRole != c.Identity.Role {
		g.sendError(c, "validation", "senderRole does not match authenticated identity")
		return
	}
	var token *string
	if p.ClientToken != "" {
		token = &p.ClientToken
	}
	msg, err := g.chat.Send(ctx, c.Identity, c.ID, p.RoomID, p.Body, token)
	if err != nil {
		g.serviceError(c, err)
		return
	}
	// The room fan-out excluded this connection; the direct reply carries the
	// client token so the provisional copy is replaced, not duplicated.
	g.reply(c, TypeMessageNew, MessagePayload{Message: *msg, ClientToken: p.ClientToken})
}

func (g *Gateway) handleMarkRead(ctx context.Context, c *Client, raw json.RawMessage) {
	var p MarkReadPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.RoomID == 0 {
		g.sendError(c, "validation", "roomId is required")
		return
	}
	if err := g.presence.MarkRead(ctx, p.RoomID, c.Identity); err != nil {
		g.serviceError(c, err)
		return
	}
	if c.Identity.IsAdmin() {
		g.handleGetChatRooms(ctx, c)
	}
}

func (g *Gateway) handleGetChatRooms(ctx context.Context, c *Client) {
	summaries, err := g.presence.RoomSummaries(ctx, c.Identity)
	if err != nil {
		g.serviceError(c, err)
		return
	}
	g.reply(c, TypeChatRooms, ChatRoomsPayload{Summaries: summaries})
}

func (g *Gateway) handleBroadcast(ctx context.Context, c *Client, raw json.RawMessage) {
	var p BroadcastPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		g.sendError(c, "validation", "malformed payload")
		return
	}
	job, err := g.broadcast.Broadcast(ctx, c.Identity, p.TargetRole, p.Type, p.Title, p.Body)
	if err != nil {
		g.serviceError(c, err)
		return
	}
	g.reply(c, TypeNotificationSent, NotificationSentPayload{
		Success: true,
		JobID:   job.ID,
		Details: BroadcastDetails{
			RecipientCount: job.RecipientCount,
			SuccessCount:   job.SuccessCount,
			FailureCount:   job.FailureCount,
		},
	})
}

func (g *Gateway) reply(c *Client, typ string, payload interface{}) {
	data, err := NewWSMessage(typ, payload)
	if err != nil {
		log.Printf("[ws] conn=%s stage=encode type=%s err=%v", c.ID, typ, err)
		return
	}
	c.push(data)
}

func (g *Gateway) serviceError(c *Client, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		g.sendError(c, "validation", err.Error())
	case errors.Is(err, service.ErrForbidden):
		g.sendError(c, "authorization", "not allowed")
	case errors.Is(err, service.ErrNotFound):
		g.sendError(c, "room_not_found", "room not found")
	case errors.Is(err, service.ErrRoomClosed):
		g.sendError(c, "room_closed", "room is closed")
	default:
		log.Printf("[ws] conn=%s uid=%s stage=dispatch err=%v", c.ID, c.Identity.UID, err)
		g.sendError(c, "persistence", "operation failed")
	}
}

func (g *Gateway) sendError(c *Client, kind, message string) {
	data, err := NewWSMessage(TypeError, ErrorPayload{Kind: kind, Message: message})
	if err != nil {
		return
	}
	c.push(data)
}
