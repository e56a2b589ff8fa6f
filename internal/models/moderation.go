package models

import "time"

// ModerationAction is the admin decision recorded in a ModerationLog.
type ModerationAction string

const (
	ModerationApprove  ModerationAction = "approve"
	ModerationReject   ModerationAction = "reject"
	ModerationReassign ModerationAction = "reassign"
)

// ModerationLog is an append-only record of an admin decision on a post.
type ModerationLog struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	PostID    uint             `gorm:"not null;index" json:"post_id"`
	AdminID   uint             `gorm:"not null;index" json:"admin_id"`
	Action    ModerationAction `gorm:"size:16;not null" json:"action"`
	Reason    string           `gorm:"size:500" json:"reason,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
