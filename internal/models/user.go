package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User is an account that can author and vote on blogs.
type User struct {
	BaseModel

	Username string `gorm:"uniqueIndex;size:64;not null" json:"username"`
	Password string `gorm:"not null" json:"-"`
	Email    string `gorm:"size:255;not null" json:"email"`
	Role     string `gorm:"size:16;not null;default:user" json:"role"`

	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	Address   string     `json:"address,omitempty"`

	// ProfileImage holds the compressed JPEG avatar. It is served by its own
	// endpoint and never travels inside listings or snapshots.
	ProfileImage []byte `json:"-"`
	HasAvatar    bool   `gorm:"default:false" json:"has_avatar"`

	IsVerified bool `gorm:"default:false" json:"is_verified"`

	LikedPosts    datatypes.JSONSlice[string] `json:"liked_posts"`
	DislikedPosts datatypes.JSONSlice[string] `json:"disliked_posts"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// ValidRole reports whether role is one of the supported roles.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleUser
}
