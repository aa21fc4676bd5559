package models

import (
	"slices"

	"gorm.io/datatypes"
)

// StatePublished marks a blog as visible to non-admin readers.
const StatePublished = 1

// Blog is a post. Voter lists hold user identifiers and are kept in step with
// the Like and Dislike counters.
type Blog struct {
	BaseModel

	Title    string `gorm:"size:255;not null;index" json:"title"`
	Content  string `gorm:"type:text;not null" json:"content"`
	AuthorID string `gorm:"size:36;not null;index" json:"author"`
	State    int    `gorm:"not null;index" json:"state"`

	Like         int                         `gorm:"column:like_count;not null;default:0" json:"like"`
	Dislike      int                         `gorm:"column:dislike_count;not null;default:0" json:"dislike"`
	LikesInfo    datatypes.JSONSlice[string] `json:"likes_info"`
	DislikesInfo datatypes.JSONSlice[string] `json:"dislikes_info"`
}

// Published reports whether non-admin readers may see the blog.
func (b *Blog) Published() bool {
	return b.State == StatePublished
}

// VisibleTo applies the visibility rule: admins see every blog, everyone
// else only published ones.
func (b *Blog) VisibleTo(role string) bool {
	return role == RoleAdmin || b.Published()
}

// LikedBy reports whether userID is among the blog's likers.
func (b *Blog) LikedBy(userID string) bool {
	return slices.Contains(b.LikesInfo, userID)
}

// DislikedBy reports whether userID is among the blog's dislikers.
func (b *Blog) DislikedBy(userID string) bool {
	return slices.Contains(b.DislikesInfo, userID)
}
