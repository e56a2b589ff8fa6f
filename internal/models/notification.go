package models

import "time"

// NotificationType enumerates what triggered a notification.
type NotificationType string

const (
	NotificationLike    NotificationType = "like"
	NotificationFollow  NotificationType = "follow"
	NotificationComment NotificationType = "comment"
	NotificationReply   NotificationType = "reply"
)

// Notification is a derived, informational record. It is never consulted when
// computing counters.
type Notification struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	UserID    uint             `gorm:"not null;index" json:"user_id"`
	SenderID  *uint            `gorm:"index" json:"sender_id,omitempty"`
	Type      NotificationType `gorm:"size:16;not null" json:"type"`
	Message   string           `gorm:"size:255" json:"message"`
	Read      bool             `gorm:"not null;default:false" json:"read"`
	PostID    *uint            `gorm:"index" json:"post_id,omitempty"`
	CommentID *uint            `gorm:"index" json:"comment_id,omitempty"`
	ReplyID   *uint            `gorm:"index" json:"reply_id,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
