package repository

import (
	"context"
	"fmt"
	"sort"

	"reelhub/internal/models"

	"gorm.io/gorm"
)

// counterSpec ties a counter column to the correlated COUNT(*) that defines
// its true value. source refers to the parent table by name.
type counterSpec struct {
	table  string
	column string
	source string
	args   []any
}

var counterSpecs = map[models.EntityKind]map[models.CounterField]counterSpec{
	models.KindPost: {
		models.FieldLikesCount: {
			table: "posts", column: "likes_count",
			source: "SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id",
		},
		models.FieldCommentsCount: {
			table: "posts", column: "comments_count",
			source: "SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id",
		},
	},
	models.KindComment: {
		models.FieldRepliesCount: {
			table: "comments", column: "replies_count",
			source: "SELECT COUNT(*) FROM replies WHERE replies.comment_id = comments.id",
		},
	},
	models.KindUser: {
		models.FieldFollowersCount: {
			table: "users", column: "followers_count",
			source: "SELECT COUNT(*) FROM follows WHERE follows.following_id = users.id",
		},
		models.FieldFollowingCount: {
			table: "users", column: "following_count",
			source: "SELECT COUNT(*) FROM follows WHERE follows.follower_id = users.id",
		},
		models.FieldPostsCount: {
			table: "users", column: "posts_count",
			source: "SELECT COUNT(*) FROM posts AS owned WHERE owned.owner_id = users.id AND owned.approved = ?",
			args:   []any{true},
		},
	},
}

// ErrUnknownCounter is returned for a (kind, field) pair with no counter.
type ErrUnknownCounter struct {
	Kind  models.EntityKind
	Field models.CounterField
}

func (e ErrUnknownCounter) Error() string {
	return fmt.Sprintf("no counter %s on %s", e.Field, e.Kind)
}

func lookupCounter(kind models.EntityKind, field models.CounterField) (counterSpec, error) {
	spec, ok := counterSpecs[kind][field]
	if !ok {
		return counterSpec{}, ErrUnknownCounter{Kind: kind, Field: field}
	}
	return spec, nil
}

// CounterRefs lists every maintained counter, in a stable order.
func CounterRefs() []models.CounterRef {
	var refs []models.CounterRef
	for kind, fields := range counterSpecs {
		for field := range fields {
			refs = append(refs, models.CounterRef{Kind: kind, Field: field})
		}
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Kind != refs[j].Kind {
			return refs[i].Kind < refs[j].Kind
		}
		return refs[i].Field < refs[j].Field
	})
	return refs
}

// CounterDrift is one row whose stored counter disagrees with its source rows.
type CounterDrift struct {
	ID     uint
	Stored int64
	Actual int64
}

// CounterRepository performs single-statement counter arithmetic.
type CounterRepository interface {
	// Adjust adds delta, clamping at zero. It reports false when the row no
	// longer exists.
	Adjust(ctx context.Context, ref models.CounterRef, delta int64) (bool, error)
	Get(ctx context.Context, ref models.CounterRef) (int64, error)
	// Recount overwrites the counter with the live count computed in the
	// same statement and returns the value now stored.
	Recount(ctx context.Context, ref models.CounterRef) (int64, bool, error)
	Drift(ctx context.Context, kind models.EntityKind, field models.CounterField) ([]CounterDrift, error)
}

type counterRepository struct {
	db *gorm.DB
}

func NewCounterRepository(db *gorm.DB) CounterRepository {
	return &counterRepository{db: db}
}

func adjust(db *gorm.DB, ref models.CounterRef, delta int64) (bool, error) {
	spec, err := lookupCounter(ref.Kind, ref.Field)
	if err != nil {
		return false, err
	}
	col := spec.column
	expr := gorm.Expr(fmt.Sprintf("CASE WHEN %s + ? < 0 THEN 0 ELSE %s + ? END", col, col), delta, delta)
	res := db.Table(spec.table).Where("id = ?", ref.ID).UpdateColumn(col, expr)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *counterRepository) Adjust(ctx context.Context, ref models.CounterRef, delta int64) (bool, error) {
	return adjust(r.db.WithContext(ctx), ref, delta)
}

// transfer moves one unit of field from one user to another. Callers run it
// inside the transaction that changed the row being counted.
func transfer(tx *gorm.DB, field models.CounterField, fromUserID, toUserID uint) error {
	if _, err := adjust(tx, models.CounterRef{Kind: models.KindUser, ID: fromUserID, Field: field}, -1); err != nil {
		return err
	}
	_, err := adjust(tx, models.CounterRef{Kind: models.KindUser, ID: toUserID, Field: field}, 1)
	return err
}

func (r *counterRepository) Get(ctx context.Context, ref models.CounterRef) (int64, error) {
	spec, err := lookupCounter(ref.Kind, ref.Field)
	if err != nil {
		return 0, err
	}
	var values []int64
	err = r.db.WithContext(ctx).Table(spec.table).Where("id = ?", ref.ID).Pluck(spec.column, &values).Error
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	return values[0], nil
}

func (r *counterRepository) Recount(ctx context.Context, ref models.CounterRef) (int64, bool, error) {
	spec, err := lookupCounter(ref.Kind, ref.Field)
	if err != nil {
		return 0, false, err
	}
	res := r.db.WithContext(ctx).Table(spec.table).Where("id = ?", ref.ID).
		UpdateColumn(spec.column, gorm.Expr("("+spec.source+")", spec.args...))
	if res.Error != nil {
		return 0, false, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, false, nil
	}
	v, err := r.Get(ctx, ref)
	return v, true, err
}

func (r *counterRepository) Drift(ctx context.Context, kind models.EntityKind, field models.CounterField) ([]CounterDrift, error) {
	spec, err := lookupCounter(kind, field)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(
		"SELECT %[1]s.id AS id, %[1]s.%[2]s AS stored, (%[3]s) AS actual FROM %[1]s WHERE %[1]s.%[2]s <> (%[3]s) ORDER BY %[1]s.id",
		spec.table, spec.column, spec.source,
	)
	args := append(append([]any{}, spec.args...), spec.args...)

	var rows []CounterDrift
	err = r.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error
	return rows, err
}
