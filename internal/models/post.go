// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// Post is an uploaded video. It starts unapproved and only counts toward its
// owner's posts_count after moderation approves it.
type Post struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	OwnerID       uint      `gorm:"not null;index" json:"owner_id"`
	Title         string    `gorm:"size:100;not null" json:"title"`
	Description   string    `gorm:"size:300" json:"description"`
	VideoURL      string    `gorm:"not null" json:"video_url"`
	ThumbnailURL  string    `json:"thumbnail_url,omitempty"`
	DurationSec   int       `gorm:"default:0" json:"duration_sec"`
	Tags          []string  `gorm:"type:text;serializer:json" json:"tags"`
	Approved      bool      `gorm:"not null;default:false;index" json:"approved"`
	LikesCount    int64     `gorm:"not null;default:0" json:"likes_count"`
	CommentsCount int64     `gorm:"not null;default:0" json:"comments_count"`
	ViewsCount    int64     `gorm:"not null;default:0" json:"views_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PostStats summarizes moderation state across all posts.
type PostStats struct {
	Total    int64 `json:"total"`
	Approved int64 `json:"approved"`
	Pending  int64 `json:"pending"`
}
