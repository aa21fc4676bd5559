package services

import (
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/blogdesk/internal/models"
)

// Vote kinds.
const (
	VoteLike    = "like"
	VoteDislike = "dislike"
)

var (
	blogVoteColumns = []string{"like_count", "dislike_count", "likes_info", "dislikes_info", "updated_at"}
	userVoteColumns = []string{"liked_posts", "disliked_posts", "updated_at"}
)

// recount keeps the counters equal to the voter list lengths.
func recount(blog *models.Blog) {
	if blog.LikesInfo == nil {
		blog.LikesInfo = datatypes.JSONSlice[string]{}
	}
	if blog.DislikesInfo == nil {
		blog.DislikesInfo = datatypes.JSONSlice[string]{}
	}
	blog.Like = len(blog.LikesInfo)
	blog.Dislike = len(blog.DislikesInfo)
}

func saveBlogVotes(tx *gorm.DB, blog *models.Blog) error {
	recount(blog)
	if err := tx.Model(blog).Select(blogVoteColumns).Updates(blog).Error; err != nil {
		return fmt.Errorf("save votes of blog %s: %w", blog.ID, err)
	}
	return nil
}

func saveUserVotes(tx *gorm.DB, user *models.User) error {
	if user.LikedPosts == nil {
		user.LikedPosts = datatypes.JSONSlice[string]{}
	}
	if user.DislikedPosts == nil {
		user.DislikedPosts = datatypes.JSONSlice[string]{}
	}
	if err := tx.Model(user).Select(userVoteColumns).Updates(user).Error; err != nil {
		return fmt.Errorf("save votes of user %s: %w", user.ID, err)
	}
	return nil
}

// detachBlogs removes the given blogs from the liked and disliked lists of
// every user who voted on them. Users listed in skip are left untouched.
func detachBlogs(tx *gorm.DB, blogs []models.Blog, skip string) error {
	if len(blogs) == 0 {
		return nil
	}
	blogIDs := make(map[string]struct{}, len(blogs))
	var voterIDs []string
	for _, blog := range blogs {
		blogIDs[blog.ID] = struct{}{}
		voterIDs = append(voterIDs, blog.LikesInfo...)
		voterIDs = append(voterIDs, blog.DislikesInfo...)
	}
	voterIDs = removeString(normaliseIDs(voterIDs), skip)
	if len(voterIDs) == 0 {
		return nil
	}

	var voters []models.User
	if err := tx.Omit("profile_image").Where("id IN ?", voterIDs).Find(&voters).Error; err != nil {
		return fmt.Errorf("load voters: %w", err)
	}
	for i := range voters {
		voters[i].LikedPosts = removeAll(voters[i].LikedPosts, blogIDs)
		voters[i].DislikedPosts = removeAll(voters[i].DislikedPosts, blogIDs)
		if err := saveUserVotes(tx, &voters[i]); err != nil {
			return err
		}
	}
	return nil
}

// withdrawVotes removes userID from the voter lists of every blog the user
// liked or disliked, except blogs listed in skip.
func withdrawVotes(tx *gorm.DB, user *models.User, skip map[string]struct{}) error {
	blogIDs := normaliseIDs(append(append([]string{}, user.LikedPosts...), user.DislikedPosts...))
	blogIDs = removeAll(blogIDs, skip)
	if len(blogIDs) == 0 {
		return nil
	}

	var blogs []models.Blog
	if err := tx.Where("id IN ?", blogIDs).Find(&blogs).Error; err != nil {
		return fmt.Errorf("load voted blogs: %w", err)
	}
	for i := range blogs {
		blogs[i].LikesInfo = removeString(blogs[i].LikesInfo, user.ID)
		blogs[i].DislikesInfo = removeString(blogs[i].DislikesInfo, user.ID)
		if err := saveBlogVotes(tx, &blogs[i]); err != nil {
			return err
		}
	}
	return nil
}
