package service

import (
	"context"
	"log/slog"

	"reelhub/internal/middleware"
	"reelhub/internal/models"
	"reelhub/internal/notifications"
	"reelhub/internal/repository"
)

// EventPublisher pushes notification events to a user's live connections.
type EventPublisher interface {
	Publish(ctx context.Context, userID uint, ev notifications.Event) error
}

// NotificationService writes and serves in-app notifications. Writes made
// on behalf of another operation are best-effort: failures are logged and
// never reach the caller.
type NotificationService struct {
	repo      repository.NotificationRepository
	gate      func(recipientID uint) bool
	publisher EventPublisher
}

func NewNotificationService(repo repository.NotificationRepository) *NotificationService {
	return &NotificationService{repo: repo}
}

// SetGate installs a per-recipient delivery switch. A nil gate delivers
// everything.
func (s *NotificationService) SetGate(gate func(recipientID uint) bool) {
	s.gate = gate
}

// SetPublisher installs where created and retracted notifications are
// announced. Publishing is best-effort.
func (s *NotificationService) SetPublisher(p EventPublisher) {
	s.publisher = p
}

func (s *NotificationService) publish(ctx context.Context, userID uint, ev notifications.Event) {
	if s.publisher == nil || userID == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, userID, ev); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish notification event",
			slog.String("event", string(ev.Type)),
			slog.Uint64("user_id", uint64(userID)),
			slog.String("error", err.Error()),
		)
	}
}

// Notify stores n, logging instead of failing.
func (s *NotificationService) Notify(ctx context.Context, n *models.Notification) {
	if n == nil || n.UserID == 0 {
		return
	}
	if s.gate != nil && !s.gate(n.UserID) {
		return
	}
	if err := s.repo.Create(ctx, n); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to create notification",
			slog.String("type", string(n.Type)),
			slog.Uint64("user_id", uint64(n.UserID)),
			slog.String("error", err.Error()),
		)
		return
	}
	s.publish(ctx, n.UserID, notifications.Event{Type: notifications.EventCreated, Notification: n})
}

// Retract removes notifications matching m, logging instead of failing.
// Live clients are told only when the match names the recipient.
func (s *NotificationService) Retract(ctx context.Context, m repository.NotificationMatch) {
	n, err := s.repo.DeleteMatching(ctx, m)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "failed to retract notification",
			slog.String("type", string(m.Type)),
			slog.String("error", err.Error()),
		)
		return
	}
	if n > 0 {
		s.publish(ctx, m.UserID, notifications.Event{
			Type:     notifications.EventRetracted,
			Kind:     m.Type,
			SenderID: m.SenderID,
			PostID:   m.PostID,
		})
	}
}

type ListNotificationsInput struct {
	UserID     uint
	UnreadOnly bool
	Limit      int
	Offset     int
}

func (s *NotificationService) List(ctx context.Context, in ListNotificationsInput) ([]*models.Notification, error) {
	return s.repo.ListByUser(ctx, in.UserID, in.UnreadOnly, repository.Page{Limit: in.Limit, Offset: in.Offset})
}

func (s *NotificationService) owned(ctx context.Context, userID, id uint) (*models.Notification, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "Notification", id)
	}
	if n.UserID != userID {
		return nil, models.NewForbiddenError("You can only manage your own notifications")
	}
	return n, nil
}

// MarkRead marks one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id uint) (*models.Notification, error) {
	n, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.MarkRead(ctx, id); err != nil {
		return nil, err
	}
	n.Read = true
	return n, nil
}

func (s *NotificationService) Delete(ctx context.Context, userID, id uint) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	_, err := s.repo.Delete(ctx, id)
	return err
}
