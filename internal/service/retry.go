package service

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"
	"time"

	"reelhub/internal/config"
	"reelhub/internal/models"
	"reelhub/internal/observability"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// RetryPolicy retries store operations that failed with a transient error.
// It is shared by counter adjustments, relationship writes and cascade
// branches.
type RetryPolicy struct {
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
	}
}

// RetryPolicyFromConfig applies COUNTER_RETRY_* over the defaults.
func RetryPolicyFromConfig(cfg *config.Config) RetryPolicy {
	p := DefaultRetryPolicy()
	if cfg == nil {
		return p
	}
	if cfg.CounterRetryAttempts > 0 {
		p.MaxAttempts = uint(cfg.CounterRetryAttempts)
	}
	if cfg.CounterRetryBaseMS > 0 {
		p.InitialInterval = time.Duration(cfg.CounterRetryBaseMS) * time.Millisecond
		if p.MaxInterval < p.InitialInterval {
			p.MaxInterval = p.InitialInterval
		}
	}
	return p
}

// Do runs fn until it succeeds, fails with a non-transient error, or the
// attempts are used up. The last error is returned unchanged.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := fn(ctx)
		if err != nil && !IsTransient(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(attempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			observability.RetryAttempts.WithLabelValues(op).Inc()
		}),
	)
	return err
}

// IsTransient reports whether err is worth retrying: serialization and
// deadlock failures, lost connections, and lock contention.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return false
	}
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "40001", pgErr.Code == "40P01":
			return true
		case strings.HasPrefix(pgErr.Code, "08"):
			return true
		case pgErr.Code == "53300":
			return true
		case pgErr.Code == "57P01", pgErr.Code == "57P02", pgErr.Code == "57P03":
			return true
		}
		return false
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "sqlite_busy")
}
