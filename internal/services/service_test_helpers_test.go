package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/blogdesk/internal/cache"
	"github.com/charlesng35/blogdesk/internal/database/testutil"
	"github.com/charlesng35/blogdesk/internal/models"
	"github.com/charlesng35/blogdesk/pkg/crypto"
)

type testEnv struct {
	db    *gorm.DB
	store *cache.MemoryStore
	cache *CacheService
	blogs *BlogService
	users *UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := cache.NewMemoryStore()
	cacheSvc, err := NewCacheService(db, cache.NewSnapshots(store, 0))
	require.NoError(t, err)
	blogSvc, err := NewBlogService(db, cacheSvc)
	require.NoError(t, err)
	userSvc, err := NewUserService(db, cacheSvc)
	require.NoError(t, err)

	return &testEnv{db: db, store: store, cache: cacheSvc, blogs: blogSvc, users: userSvc}
}

func (e *testEnv) seedUser(t *testing.T, username, role string) *models.User {
	t.Helper()

	hash, err := crypto.HashPasswordWithCost("secret", 4)
	require.NoError(t, err)
	birth := time.Date(1990, 1, 2, 0, 0, 0, 0, time.UTC)
	user := &models.User{
		Username:      username,
		Password:      hash,
		Email:         username + "@example.com",
		Role:          role,
		FirstName:     "Test",
		LastName:      "User",
		BirthDate:     &birth,
		IsVerified:    true,
		LikedPosts:    datatypes.JSONSlice[string]{},
		DislikedPosts: datatypes.JSONSlice[string]{},
	}
	require.NoError(t, e.db.Create(user).Error)
	return user
}

func (e *testEnv) seedBlog(t *testing.T, author *models.User, title string, state int) *models.Blog {
	t.Helper()

	blog := &models.Blog{
		Title:        title,
		Content:      "content of " + title,
		AuthorID:     author.ID,
		State:        state,
		LikesInfo:    datatypes.JSONSlice[string]{},
		DislikesInfo: datatypes.JSONSlice[string]{},
	}
	require.NoError(t, e.db.Create(blog).Error)
	return blog
}

func (e *testEnv) reloadBlog(t *testing.T, id string) *models.Blog {
	t.Helper()
	var blog models.Blog
	require.NoError(t, e.db.Take(&blog, "id = ?", id).Error)
	return &blog
}

func (e *testEnv) reloadUser(t *testing.T, id string) *models.User {
	t.Helper()
	var user models.User
	require.NoError(t, e.db.Take(&user, "id = ?", id).Error)
	return &user
}

func actorOf(user *models.User) Actor {
	return Actor{UserID: user.ID, Username: user.Username, Role: user.Role}
}

func blogTitles(blogs []models.Blog) []string {
	out := make([]string, 0, len(blogs))
	for _, blog := range blogs {
		out = append(out, blog.Title)
	}
	return out
}
