// Package service holds the business logic: the relationship guard, counter
// maintenance, cascading deletes and the reconciliation audit, plus the
// CRUD services the HTTP layer calls.
package service

import (
	"reelhub/internal/config"
	"reelhub/internal/repository"
	"reelhub/internal/storage"
)

// Options tunes the integrity layer.
type Options struct {
	Retry  RetryPolicy
	Fanout int
	Assets storage.AssetStore
	// NotifyGate, when set, decides per recipient whether notifications
	// are delivered.
	NotifyGate func(recipientID uint) bool
	// Publisher, when set, receives notification events for live delivery.
	Publisher EventPublisher
}

// OptionsFromConfig reads retry and fan-out settings from cfg.
func OptionsFromConfig(cfg *config.Config, assets storage.AssetStore) Options {
	opts := Options{Retry: RetryPolicyFromConfig(cfg), Assets: assets}
	if cfg != nil {
		opts.Fanout = cfg.CascadeFanout
	}
	return opts
}

// Services is the wired service graph shared by the API server and the CLI.
type Services struct {
	Counters      *CounterService
	Notifications *NotificationService
	Relationships *RelationshipService
	Cascade       *CascadeService
	Users         *UserService
	Posts         *PostService
	Comments      *CommentService
	Audit         *AuditService
}

func New(repos *repository.Repositories, opts Options) *Services {
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = DefaultRetryPolicy()
	}

	counters := NewCounterService(repos.Counters, opts.Retry)
	notifications := NewNotificationService(repos.Notifications)
	notifications.SetGate(opts.NotifyGate)
	notifications.SetPublisher(opts.Publisher)
	cascade := NewCascadeService(repos, counters, opts.Assets, opts.Retry, opts.Fanout)
	users := NewUserService(repos.Users, cascade)

	return &Services{
		Counters:      counters,
		Notifications: notifications,
		Relationships: NewRelationshipService(repos, counters, notifications, opts.Retry),
		Cascade:       cascade,
		Users:         users,
		Posts:         NewPostService(repos, counters, cascade, opts.Retry, users.IsAdmin),
		Comments:      NewCommentService(repos, counters, notifications, cascade, opts.Retry, users.IsAdmin),
		Audit:         NewAuditService(repos, cascade, opts.Retry),
	}
}
