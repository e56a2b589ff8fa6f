package service

import (
	"context"
	"log/slog"
	"time"

	"reelhub/internal/middleware"
	"reelhub/internal/models"
	"reelhub/internal/observability"
	"reelhub/internal/repository"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// Discrepancy is a counter whose stored value disagrees with the rows it
// summarizes.
type Discrepancy struct {
	EntityKind models.EntityKind   `json:"entity_kind" yaml:"entity_kind"`
	EntityID   uint                `json:"entity_id" yaml:"entity_id"`
	Field      models.CounterField `json:"field" yaml:"field"`
	Stored     int64               `json:"stored" yaml:"stored"`
	Actual     int64               `json:"actual" yaml:"actual"`
}

// AuditReport is the outcome of one Run.
type AuditReport struct {
	RunID         string                       `json:"run_id" yaml:"run_id"`
	Fix           bool                         `json:"fix" yaml:"fix"`
	StartedAt     time.Time                    `json:"started_at" yaml:"started_at"`
	FinishedAt    time.Time                    `json:"finished_at" yaml:"finished_at"`
	Discrepancies []Discrepancy                `json:"discrepancies" yaml:"discrepancies"`
	Fixed         int                          `json:"fixed" yaml:"fixed"`
	Orphans       map[models.EntityKind][]uint `json:"orphans" yaml:"orphans"`
	Cleaned       map[models.EntityKind]int64  `json:"cleaned,omitempty" yaml:"cleaned,omitempty"`
}

// AuditService recomputes every counter from its source rows and reports
// or repairs drift. It only reads the relationship tables, so it is safe to
// run against live traffic.
type AuditService struct {
	counters repository.CounterRepository
	audit    repository.AuditRepository
	cascade  *CascadeService
	retry    RetryPolicy
}

func NewAuditService(repos *repository.Repositories, cascade *CascadeService, retry RetryPolicy) *AuditService {
	return &AuditService{
		counters: repos.Counters,
		audit:    repos.Audit,
		cascade:  cascade,
		retry:    retry,
	}
}

// AuditAll checks all six counters, one statement per counter.
func (s *AuditService) AuditAll(ctx context.Context) ([]Discrepancy, error) {
	out := []Discrepancy{}
	for _, ref := range repository.CounterRefs() {
		drift, err := s.counters.Drift(ctx, ref.Kind, ref.Field)
		if err != nil {
			return nil, err
		}
		observability.AuditDiscrepancies.WithLabelValues(string(ref.Kind), string(ref.Field)).Set(float64(len(drift)))
		for _, d := range drift {
			out = append(out, Discrepancy{
				EntityKind: ref.Kind,
				EntityID:   d.ID,
				Field:      ref.Field,
				Stored:     d.Stored,
				Actual:     d.Actual,
			})
		}
	}
	return out, nil
}

// Fix rewrites the counter from a count taken inside the same statement.
// The value captured in d is never written back.
func (s *AuditService) Fix(ctx context.Context, d Discrepancy) (int64, error) {
	ref := models.CounterRef{Kind: d.EntityKind, ID: d.EntityID, Field: d.Field}
	var (
		value int64
		found bool
	)
	err := s.retry.Do(ctx, "audit.fix", func(ctx context.Context) error {
		var err error
		value, found, err = s.counters.Recount(ctx, ref)
		return err
	})
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, models.NewNotFoundError(string(d.EntityKind), d.EntityID)
	}
	invalidate(ctx, d.EntityKind, d.EntityID)
	return value, nil
}

// FindOrphans lists rows whose parent no longer exists, per kind.
func (s *AuditService) FindOrphans(ctx context.Context) (map[models.EntityKind][]uint, error) {
	out := map[models.EntityKind][]uint{}
	for _, kind := range repository.OrphanKinds() {
		ids, err := s.audit.FindOrphans(ctx, kind, 0)
		if err != nil {
			return nil, err
		}
		observability.AuditOrphans.WithLabelValues(string(kind)).Set(float64(len(ids)))
		if len(ids) > 0 {
			out[kind] = ids
		}
	}
	return out, nil
}

// CleanupOrphans removes orphans. Orphaned posts and comments go through
// their cascade so their own children are removed too.
func (s *AuditService) CleanupOrphans(ctx context.Context, orphans map[models.EntityKind][]uint) (map[models.EntityKind]int64, error) {
	cleaned := map[models.EntityKind]int64{}
	for _, kind := range repository.OrphanKinds() {
		ids := orphans[kind]
		if len(ids) == 0 {
			continue
		}
		switch kind {
		case models.KindPost, models.KindComment:
			for _, id := range ids {
				var (
					rep *DeletionReport
					err error
				)
				if kind == models.KindPost {
					rep, err = s.cascade.DeletePost(ctx, id)
				} else {
					rep, err = s.cascade.DeleteComment(ctx, id)
				}
				if models.IsNotFound(err) {
					continue
				}
				if err != nil {
					return cleaned, err
				}
				cleaned[kind] += rep.Removed[kind]
			}
		default:
			var n int64
			err := s.retry.Do(ctx, "audit.cleanup", func(ctx context.Context) error {
				var err error
				n, err = s.audit.DeleteRows(ctx, kind, ids)
				return err
			})
			if err != nil {
				return cleaned, err
			}
			cleaned[kind] += n
		}
	}
	return cleaned, nil
}

// Run lists orphans and counter drift. With fix set it first removes the
// orphans, since some of them are still counted, then recounts every
// drifted counter.
func (s *AuditService) Run(ctx context.Context, fix bool) (report *AuditReport, err error) {
	report = &AuditReport{
		RunID:     uuid.NewString(),
		Fix:       fix,
		StartedAt: time.Now().UTC(),
	}
	span, ctx := observability.NewSpan(ctx, "audit.run",
		attribute.String("audit.run_id", report.RunID),
		attribute.Bool("audit.fix", fix),
	)
	defer func() { span.Finish(err) }()

	if report.Orphans, err = s.FindOrphans(ctx); err != nil {
		return nil, err
	}
	if fix && len(report.Orphans) > 0 {
		if report.Cleaned, err = s.CleanupOrphans(ctx, report.Orphans); err != nil {
			return nil, err
		}
	}

	if report.Discrepancies, err = s.AuditAll(ctx); err != nil {
		return nil, err
	}
	if fix {
		for _, d := range report.Discrepancies {
			if _, ferr := s.Fix(ctx, d); ferr != nil {
				if models.IsNotFound(ferr) {
					continue
				}
				middleware.Logger.WarnContext(ctx, "counter fix failed",
					slog.String("kind", string(d.EntityKind)),
					slog.Uint64("id", uint64(d.EntityID)),
					slog.String("field", string(d.Field)),
					slog.String("error", ferr.Error()),
				)
				continue
			}
			report.Fixed++
		}
	}

	report.FinishedAt = time.Now().UTC()
	middleware.Logger.InfoContext(ctx, "counter audit finished",
		slog.String("run_id", report.RunID),
		slog.Bool("fix", fix),
		slog.Int("discrepancies", len(report.Discrepancies)),
		slog.Int("fixed", report.Fixed),
		slog.Int("orphan_kinds", len(report.Orphans)),
	)
	return report, nil
}
