package service

import (
	"context"
	"errors"
	"log/slog"

	"reelhub/internal/cache"
	"reelhub/internal/middleware"
	"reelhub/internal/models"
	"reelhub/internal/observability"
	"reelhub/internal/repository"
)

// CounterService keeps the denormalized counters in step with relationship
// writes. Every adjustment is a single clamped UPDATE; there is no
// read-modify-write.
type CounterService struct {
	repo  repository.CounterRepository
	retry RetryPolicy
}

func NewCounterService(repo repository.CounterRepository, retry RetryPolicy) *CounterService {
	return &CounterService{repo: repo, retry: retry}
}

// Adjust adds delta to field on the row (kind, id). A missing row drops the
// adjustment silently. Errors that outlive the retry policy are logged and
// returned; callers treat them as non-fatal.
func (s *CounterService) Adjust(ctx context.Context, kind models.EntityKind, id uint, field models.CounterField, delta int64) error {
	ref := models.CounterRef{Kind: kind, ID: id, Field: field}

	var applied bool
	err := s.retry.Do(ctx, "counter.adjust", func(ctx context.Context) error {
		var err error
		applied, err = s.repo.Adjust(ctx, ref, delta)
		return err
	})

	var unknown repository.ErrUnknownCounter
	if errors.As(err, &unknown) {
		return models.NewValidationError(unknown.Error())
	}
	if err != nil {
		observability.CounterAdjustments.WithLabelValues(string(kind), string(field), "failed").Inc()
		middleware.Logger.ErrorContext(ctx, "counter adjustment failed",
			slog.String("kind", string(kind)),
			slog.Uint64("id", uint64(id)),
			slog.String("field", string(field)),
			slog.Int64("delta", delta),
			slog.String("error", err.Error()),
		)
		return err
	}

	if !applied {
		observability.CounterAdjustments.WithLabelValues(string(kind), string(field), "dropped").Inc()
		return nil
	}
	observability.CounterAdjustments.WithLabelValues(string(kind), string(field), "applied").Inc()
	invalidate(ctx, kind, id)
	return nil
}

// Applied records a posts_count change that a post write already made in
// its own transaction.
func (s *CounterService) Applied(ctx context.Context, userIDs ...uint) {
	for _, id := range userIDs {
		observability.CounterAdjustments.WithLabelValues(string(models.KindUser), string(models.FieldPostsCount), "applied").Inc()
		invalidate(ctx, models.KindUser, id)
	}
}

// Value reads the stored counter.
func (s *CounterService) Value(ctx context.Context, kind models.EntityKind, id uint, field models.CounterField) (int64, error) {
	return s.repo.Get(ctx, models.CounterRef{Kind: kind, ID: id, Field: field})
}

func invalidate(ctx context.Context, kind models.EntityKind, id uint) {
	switch kind {
	case models.KindUser:
		cache.InvalidateUser(ctx, id)
	case models.KindPost:
		cache.InvalidatePost(ctx, id)
	}
}
