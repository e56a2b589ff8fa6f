package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"reelhub/internal/models"
	"reelhub/internal/repository"

	"gorm.io/gorm"
)

// notFound converts gorm's missing-row error into a NOT_FOUND AppError.
func notFound(err error, resource string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return err
}

// requireUser rejects writes by an account that no longer exists. A deleted
// user's token stays valid until it expires.
func requireUser(ctx context.Context, users repository.UserRepository, id uint) error {
	exists, err := users.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return models.NewNotFoundError("User", id)
	}
	return nil
}

// PartialCascadeError reports cascade branches that failed after retries
// while the root delete still went through.
type PartialCascadeError struct {
	CascadeID string
	Failures  []error
}

func (e *PartialCascadeError) Error() string {
	msgs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		msgs = append(msgs, f.Error())
	}
	return fmt.Sprintf("cascade %s: %d branch(es) failed: %s", e.CascadeID, len(e.Failures), strings.Join(msgs, "; "))
}

func (e *PartialCascadeError) Unwrap() []error {
	return e.Failures
}
