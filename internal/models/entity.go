package models

// EntityKind names a persisted collection.
type EntityKind string

const (
	KindUser          EntityKind = "user"
	KindPost          EntityKind = "post"
	KindComment       EntityKind = "comment"
	KindReply         EntityKind = "reply"
	KindLike          EntityKind = "like"
	KindFollow        EntityKind = "follow"
	KindNotification  EntityKind = "notification"
	KindModerationLog EntityKind = "moderation_log"
)

// CounterField names a denormalized counter column.
type CounterField string

const (
	FieldLikesCount     CounterField = "likes_count"
	FieldCommentsCount  CounterField = "comments_count"
	FieldRepliesCount   CounterField = "replies_count"
	FieldFollowersCount CounterField = "followers_count"
	FieldFollowingCount CounterField = "following_count"
	FieldPostsCount     CounterField = "posts_count"
)

// CounterRef identifies one counter on one row.
type CounterRef struct {
	Kind  EntityKind   `json:"entity_kind"`
	ID    uint         `json:"entity_id"`
	Field CounterField `json:"field"`
}

// PersistentModels returns every schema-managed model in migration order.
func PersistentModels() []any {
	return []any{
		&User{},
		&Post{},
		&Comment{},
		&Reply{},
		&Like{},
		&Follow{},
		&Notification{},
		&ModerationLog{},
	}
}
