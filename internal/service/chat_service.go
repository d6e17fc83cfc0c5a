package service

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shinyyama/support-chat-backend/internal/assistant"
	"github.com/shinyyama/support-chat-backend/internal/chatctx"
	"github.com/shinyyama/support-chat-backend/internal/model"
	"github.com/shinyyama/support-chat-backend/internal/repository"
	"gorm.io/gorm"
)

const assistantUID = "assistant"

type ChatService interface {
	// History returns the full room transcript in ascending sequence order.
	History(ctx context.Context, roomID uint64, viewer Identity) ([]model.Message, error)
	// Send persists one message and delivers it to all bound connections
	// except the originating one. Retries with the same client token return
	// the originally persisted message without appending again.
	Send(ctx context.Context, sender Identity, originConnID string, roomID uint64, body string, clientToken *string) (*model.Message, error)
}

type chatService struct {
	msgRepo   repository.MessageRepository
	roomSvc   RoomService
	deliver   Deliverer
	assistant AssistantClient

	// pending correlates a triggering member message id with the placeholder
	// shown for it. Each entry is taken exactly once when the reply (or the
	// failure) arrives.
	mu      sync.Mutex
	pending map[uint64]string
}

func NewChatService(msgRepo repository.MessageRepository, roomSvc RoomService, deliver Deliverer, assistant AssistantClient) ChatService {
	return &chatService{
		msgRepo:   msgRepo,
		roomSvc:   roomSvc,
		deliver:   deliver,
		assistant: assistant,
		pending:   make(map[uint64]string),
	}
}

func (s *chatService) History(ctx context.Context, roomID uint64, viewer Identity) ([]model.Message, error) {
	rm, err := s.roomSvc.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !viewer.IsAdmin() && rm.MemberUID != viewer.UID {
		return nil, ErrForbidden
	}
	return s.msgRepo.ListByRoom(ctx, roomID)
}

func (s *chatService) Send(ctx context.Context, sender Identity, originConnID string, roomID uint64, body string, clientToken *string) (*model.Message, error) {
	if body == "" {
		return nil, ErrValidation
	}
	rm, err := s.roomSvc.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := s.roomSvc.Authorize(rm, sender); err != nil {
		return nil, err
	}

	kind := model.SenderKindMember
	if sender.IsAdmin() {
		kind = model.SenderKindAdmin
	}
	msg, dup, err := s.msgRepo.Append(ctx, roomID, sender.UID, kind, body, clientToken)
	if err != nil {
		if errors.Is(err, repository.ErrRoomClosed) {
			return nil, ErrRoomClosed
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if dup {
		// Already persisted and already delivered; the retrying sender just
		// reconciles its provisional copy.
		return msg, nil
	}

	s.deliver.DeliverMessage(roomID, msg, originConnID)

	if kind == model.SenderKindMember && s.assistant != nil && assistant.IsTrigger(body) {
		s.injectPlaceholder(ctx, roomID, msg)
	}
	return msg, nil
}

// injectPlaceholder shows a pending assistant stand-in correlated to the
// triggering message and resolves it in the background. The assistant call
// must not run under any room-level lock, so it gets its own goroutine and a
// detached context: the sender disconnecting does not orphan the reply.
func (s *chatService) injectPlaceholder(ctx context.Context, roomID uint64, trigger *model.Message) {
	p := Pending{
		PlaceholderID:    uuid.NewString(),
		TriggerMessageID: trigger.ID,
	}
	s.mu.Lock()
	s.pending[trigger.ID] = p.PlaceholderID
	s.mu.Unlock()

	s.deliver.DeliverPending(roomID, p)

	rid := chatctx.RID(ctx)
	go s.resolveAssistant(chatctx.WithRID(context.Background(), rid), roomID, trigger)
}

func (s *chatService) resolveAssistant(ctx context.Context, roomID uint64, trigger *model.Message) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	rid := chatctx.RID(ctx)

	history, err := s.msgRepo.ListByRoom(ctx, roomID)
	if err != nil {
		log.Printf("[chat] rid=%s room=%d stage=assistant_history err=%v", rid, roomID, err)
		history = nil
	}

	reply, err := s.assistant.Reply(ctx, trigger.Body, history)
	if err != nil {
		log.Printf("[chat] rid=%s room=%d stage=assistant_fail trigger=%d err=%v", rid, roomID, trigger.ID, err)
		if placeholderID, ok := s.takePending(trigger.ID); ok {
			s.deliver.ReplacePending(roomID, placeholderID, nil)
		}
		return
	}

	msg, _, err := s.msgRepo.Append(ctx, roomID, assistantUID, model.SenderKindAssistant, reply, nil)
	if err != nil {
		log.Printf("[chat] rid=%s room=%d stage=assistant_persist trigger=%d err=%v", rid, roomID, trigger.ID, err)
		if placeholderID, ok := s.takePending(trigger.ID); ok {
			s.deliver.ReplacePending(roomID, placeholderID, nil)
		}
		return
	}

	placeholderID, ok := s.takePending(trigger.ID)
	if !ok {
		// Placeholder already resolved elsewhere; deliver as a plain message
		// rather than dropping the persisted reply.
		s.deliver.DeliverMessage(roomID, msg, "")
		return
	}
	s.deliver.ReplacePending(roomID, placeholderID, msg)
	log.Printf("[chat] rid=%s room=%d stage=assistant_done trigger=%d seq=%d", rid, roomID, trigger.ID, msg.Seq)
}

// takePending removes and returns the placeholder for a triggering message.
// The delete-under-lock is what guarantees at-most-one replacement per
// trigger even with interleaved replies.
func (s *chatService) takePending(triggerID uint64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.pending[triggerID]
	if ok {
		delete(s.pending, triggerID)
	}
	return id, ok
}
