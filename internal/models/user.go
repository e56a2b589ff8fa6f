package models

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is an account. Its counters are denormalized aggregates over the
// follows and posts tables.
type User struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Name           string    `gorm:"size:30;not null" json:"name"`
	Email          string    `gorm:"uniqueIndex;not null" json:"email"`
	Role           string    `gorm:"size:16;not null;default:user" json:"role"`
	Bio            string    `gorm:"size:300" json:"bio,omitempty"`
	AvatarURL      string    `json:"avatar_url,omitempty"`
	FollowersCount int64     `gorm:"not null;default:0" json:"followers_count"`
	FollowingCount int64     `gorm:"not null;default:0" json:"following_count"`
	PostsCount     int64     `gorm:"not null;default:0" json:"posts_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
