package service

import (
	"context"
	"log"
	"sync/atomic"

	"github.com/shinyyama/support-chat-backend/internal/chatctx"
	"github.com/shinyyama/support-chat-backend/internal/model"
	"github.com/shinyyama/support-chat-backend/internal/repository"
	"golang.org/x/sync/errgroup"
)

type BroadcastService interface {
	// Broadcast resolves the audience for targetRole and fans the
	// notification out, one isolated attempt per recipient. It returns only
	// after every attempt finished, with exact aggregate counts.
	Broadcast(ctx context.Context, actor Identity, targetRole, typ, title, body string) (*model.NotificationJob, error)
}

type broadcastService struct {
	userRepo  repository.UserRepository
	notifRepo repository.NotificationRepository
	deliver   Deliverer
	push      PushSender
	workers   int
}

func NewBroadcastService(userRepo repository.UserRepository, notifRepo repository.NotificationRepository, deliver Deliverer, push PushSender, workers int) BroadcastService {
	if workers <= 0 {
		workers = 8
	}
	return &broadcastService{
		userRepo:  userRepo,
		notifRepo: notifRepo,
		deliver:   deliver,
		push:      push,
		workers:   workers,
	}
}

func validTargetRole(role string) bool {
	switch role {
	case model.TargetRoleMember, model.TargetRoleOwner, model.TargetRoleAll:
		return true
	}
	return false
}

func (s *broadcastService) Broadcast(ctx context.Context, actor Identity, targetRole, typ, title, body string) (*model.NotificationJob, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if !validTargetRole(targetRole) || typ == "" || title == "" {
		return nil, ErrValidation
	}

	recipients, err := s.userRepo.ListByTargetRole(ctx, targetRole)
	if err != nil {
		return nil, err
	}

	job := &model.NotificationJob{
		TargetRole:     targetRole,
		Type:           typ,
		Title:          title,
		Body:           body,
		RecipientCount: len(recipients),
	}
	if err := s.notifRepo.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	rid := chatctx.RID(ctx)
	var success, failure atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, u := range recipients {
		u := u
		g.Go(func() error {
			if s.notify(gctx, job, &u) {
				success.Add(1)
			} else {
				failure.Add(1)
			}
			// Recipient failures are counted, never propagated: one dead
			// recipient must not abort the rest of the fan-out.
			return nil
		})
	}
	_ = g.Wait()

	job.SuccessCount = int(success.Load())
	job.FailureCount = int(failure.Load())
	if err := s.notifRepo.FinalizeJob(ctx, job.ID, job.SuccessCount, job.FailureCount); err != nil {
		log.Printf("[broadcast] rid=%s job=%d stage=finalize err=%v", rid, job.ID, err)
	}
	log.Printf("[broadcast] rid=%s job=%d stage=done target=%s recipients=%d success=%d failure=%d",
		rid, job.ID, targetRole, job.RecipientCount, job.SuccessCount, job.FailureCount)
	return job, nil
}

// notify makes one delivery attempt: persist the inbox row, then try a live
// connection, then the external push channel. True means at least one channel
// accepted it.
func (s *broadcastService) notify(ctx context.Context, job *model.NotificationJob, u *model.User) bool {
	n := &model.Notification{
		UserUID: u.UID,
		Type:    job.Type,
		Title:   job.Title,
		Body:    job.Body,
		JobID:   &job.ID,
	}
	if err := s.notifRepo.Create(ctx, n); err != nil {
		log.Printf("[broadcast] job=%d uid=%s stage=persist err=%v", job.ID, u.UID, err)
		return false
	}
	if s.deliver != nil && s.deliver.NotifyUser(u.UID, n) {
		return true
	}
	if s.push == nil {
		return false
	}
	if err := s.push.Send(ctx, u, job.Title, job.Body); err != nil {
		log.Printf("[broadcast] job=%d uid=%s stage=push err=%v", job.ID, u.UID, err)
		return false
	}
	return true
}
