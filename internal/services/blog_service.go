package services

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/blogdesk/internal/models"
	"github.com/charlesng35/blogdesk/pkg/logger"
)

// Listing defaults.
const (
	DefaultPageSize = 5
	MaxPageSize     = 100
)

// Result sources reported by listings.
const (
	SourceCache   = "cache"
	SourceStorage = "storage"
)

// ListBlogsOptions selects a page of blogs. Page zero means the caller did
// not supply one.
type ListBlogsOptions struct {
	Page     int
	PageSize int
	Title    string
}

// BlogPage is one page of blogs visible to the caller.
type BlogPage struct {
	Blogs      []models.Blog `json:"blogs"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	Matched    int64         `json:"matched"`
	TotalBlogs int64         `json:"total_blogs"`
	TotalPages int           `json:"total_pages"`
	Source     string        `json:"source"`
}

// CreateBlogInput carries the fields of a new blog.
type CreateBlogInput struct {
	Title   string
	Content string
	State   *int
}

// UpdateBlogInput carries a partial blog update. Nil fields are left unchanged.
type UpdateBlogInput struct {
	Title   *string
	Content *string
	State   *int
}

// VoteResult reports the outcome of a like or dislike toggle.
type VoteResult struct {
	Blog    *models.Blog `json:"blog"`
	Message string       `json:"message"`
}

// BlogService serves blog reads from the snapshot cache and writes to storage,
// refreshing the snapshots after every committed mutation.
type BlogService struct {
	db          *gorm.DB
	cache       *CacheService
	pageSize    int
	maxPageSize int
	log         *zap.Logger
}

// BlogServiceOption customises a BlogService.
type BlogServiceOption func(*BlogService)

// WithBlogPageSize overrides the default and maximum page sizes.
func WithBlogPageSize(size, maxSize int) BlogServiceOption {
	return func(s *BlogService) {
		if size > 0 {
			s.pageSize = size
		}
		if maxSize > 0 {
			s.maxPageSize = maxSize
		}
	}
}

// NewBlogService constructs a BlogService.
func NewBlogService(db *gorm.DB, cacheSvc *CacheService, opts ...BlogServiceOption) (*BlogService, error) {
	if db == nil {
		return nil, errors.New("blog service: db is required")
	}
	if cacheSvc == nil {
		return nil, errors.New("blog service: cache service is required")
	}
	svc := &BlogService{
		db:          db,
		cache:       cacheSvc,
		pageSize:    DefaultPageSize,
		maxPageSize: MaxPageSize,
		log:         logger.WithModule("blogs"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.maxPageSize < svc.pageSize {
		svc.maxPageSize = svc.pageSize
	}
	return svc, nil
}

// List returns one page of the blogs visible to actor, ordered by ascending
// identifier and optionally narrowed to titles containing opts.Title. The
// snapshot is used when live; otherwise storage answers and the snapshot is
// repopulated.
func (s *BlogService) List(ctx context.Context, actor Actor, opts ListBlogsOptions) (*BlogPage, error) {
	ctx = ensureContext(ctx)
	if opts.Page == 0 {
		return nil, ErrPageRequired
	}
	if opts.Page < 0 {
		return nil, ErrInvalidPage
	}
	size := resolvePageSize(opts.PageSize, s.pageSize, s.maxPageSize)
	title := strings.TrimSpace(opts.Title)

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Blog{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("blog service: count blogs: %w", err)
	}
	s.cache.setTotalBlogs(ctx, total)

	if snapshot, ok := s.cache.Blogs(ctx); ok {
		matches := filterBlogs(snapshot, actor.Role, title)
		pages := totalPages(len(matches), size)
		if err := checkPage(opts.Page, pages); err != nil {
			return nil, err
		}
		return &BlogPage{
			Blogs:      window(matches, opts.Page, size),
			Page:       opts.Page,
			PageSize:   size,
			Matched:    int64(len(matches)),
			TotalBlogs: total,
			TotalPages: pages,
			Source:     SourceCache,
		}, nil
	}

	query := s.visibleBlogs(ctx, actor, title)
	var matched int64
	if err := query.Count(&matched).Error; err != nil {
		return nil, fmt.Errorf("blog service: count visible blogs: %w", err)
	}
	pages := totalPages(int(matched), size)
	if err := checkPage(opts.Page, pages); err != nil {
		return nil, err
	}

	blogs := make([]models.Blog, 0, size)
	if err := s.visibleBlogs(ctx, actor, title).
		Order("id ASC").
		Offset((opts.Page - 1) * size).
		Limit(size).
		Find(&blogs).Error; err != nil {
		return nil, fmt.Errorf("blog service: list blogs: %w", err)
	}

	s.cache.populate(ctx, CollectionBlogs)

	return &BlogPage{
		Blogs:      blogs,
		Page:       opts.Page,
		PageSize:   size,
		Matched:    matched,
		TotalBlogs: total,
		TotalPages: pages,
		Source:     SourceStorage,
	}, nil
}

func (s *BlogService) visibleBlogs(ctx context.Context, actor Actor, title string) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.Blog{})
	if !actor.IsAdmin() {
		query = query.Where("state = ?", models.StatePublished)
	}
	if title != "" {
		query = query.Where("LOWER(title) LIKE ? ESCAPE '!'", "%"+escapeLike(strings.ToLower(title))+"%")
	}
	return query
}

// filterBlogs applies visibility and the title filter to a snapshot and sorts
// the result by identifier.
func filterBlogs(blogs []models.Blog, role, title string) []models.Blog {
	needle := strings.ToLower(title)
	out := make([]models.Blog, 0, len(blogs))
	for _, blog := range blogs {
		if !blog.VisibleTo(role) {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(blog.Title), needle) {
			continue
		}
		out = append(out, blog)
	}
	slices.SortFunc(out, func(a, b models.Blog) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Get returns the blog with id when actor may see it. A blog absent from the
// snapshot is looked up in storage, which also triggers a snapshot reload.
func (s *BlogService) Get(ctx context.Context, actor Actor, id string) (*models.Blog, error) {
	ctx = ensureContext(ctx)
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrBlogNotFound
	}

	if snapshot, ok := s.cache.Blogs(ctx); ok {
		for i := range snapshot {
			if snapshot[i].ID != id {
				continue
			}
			if !snapshot[i].VisibleTo(actor.Role) {
				return nil, ErrBlogNotFound
			}
			blog := snapshot[i]
			return &blog, nil
		}
	}

	blog, err := s.load(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if !blog.VisibleTo(actor.Role) {
		return nil, ErrBlogNotFound
	}
	s.cache.populate(ctx, CollectionBlogs)
	return blog, nil
}

func (s *BlogService) load(ctx context.Context, db *gorm.DB, id string) (*models.Blog, error) {
	var blog models.Blog
	if err := db.WithContext(ctx).Take(&blog, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBlogNotFound
		}
		return nil, fmt.Errorf("blog service: load blog: %w", err)
	}
	return &blog, nil
}

// validState accepts any non-negative state; only StatePublished is public.
func validState(state int) bool {
	return state >= 0
}

// Create stores a new blog authored by actor. Only admins may choose the
// initial state; everyone else publishes immediately.
func (s *BlogService) Create(ctx context.Context, actor Actor, input CreateBlogInput) (*models.Blog, error) {
	ctx = ensureContext(ctx)
	title := strings.TrimSpace(input.Title)
	content := strings.TrimSpace(input.Content)
	if title == "" || content == "" {
		return nil, ErrBlogFieldsRequired
	}

	state := models.StatePublished
	if input.State != nil {
		if !actor.IsAdmin() {
			return nil, ErrBlogStateForbidden
		}
		if !validState(*input.State) {
			return nil, ErrInvalidBlogState
		}
		state = *input.State
	}

	blog := &models.Blog{
		Title:        title,
		Content:      content,
		AuthorID:     actor.UserID,
		State:        state,
		LikesInfo:    datatypes.JSONSlice[string]{},
		DislikesInfo: datatypes.JSONSlice[string]{},
	}
	if err := s.db.WithContext(ctx).Create(blog).Error; err != nil {
		return nil, fmt.Errorf("blog service: create blog: %w", err)
	}

	s.cache.afterWrite(ctx, CollectionBlogs)
	s.log.Info("blog created", zap.String("blog_id", blog.ID), zap.String("author", actor.UserID))
	return blog, nil
}

// Update applies a partial update. Authors may edit their own blogs and
// admins may edit any blog; only admins may change the state.
func (s *BlogService) Update(ctx context.Context, actor Actor, id string, input UpdateBlogInput) (*models.Blog, error) {
	ctx = ensureContext(ctx)
	blog, err := s.load(ctx, s.db, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && blog.AuthorID != actor.UserID {
		return nil, ErrBlogUpdateForbidden
	}

	updates := map[string]any{}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, ErrBlogFieldsRequired
		}
		updates["title"] = title
	}
	if input.Content != nil {
		content := strings.TrimSpace(*input.Content)
		if content == "" {
			return nil, ErrBlogFieldsRequired
		}
		updates["content"] = content
	}
	if input.State != nil {
		if !actor.IsAdmin() {
			return nil, ErrBlogStateForbidden
		}
		if !validState(*input.State) {
			return nil, ErrInvalidBlogState
		}
		updates["state"] = *input.State
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(blog).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("blog service: update blog: %w", err)
		}
		s.cache.afterWrite(ctx, CollectionBlogs)
	}

	return s.load(ctx, s.db, blog.ID)
}

// Delete removes a blog and detaches it from every voter's lists.
func (s *BlogService) Delete(ctx context.Context, actor Actor, id string) error {
	ctx = ensureContext(ctx)
	blog, err := s.load(ctx, s.db, strings.TrimSpace(id))
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && blog.AuthorID != actor.UserID {
		return ErrBlogDeleteForbidden
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Blog{}, "id = ?", blog.ID).Error; err != nil {
			return fmt.Errorf("delete blog: %w", err)
		}
		return detachBlogs(tx, []models.Blog{*blog}, "")
	})
	if err != nil {
		return fmt.Errorf("blog service: %w", err)
	}

	s.cache.afterWrite(ctx, CollectionBlogs, CollectionUsers)
	s.log.Info("blog deleted", zap.String("blog_id", blog.ID), zap.String("by", actor.UserID))
	return nil
}

// DeleteAll removes every blog and clears every user's vote lists. It is
// restricted to admins and returns the number of blogs removed.
func (s *BlogService) DeleteAll(ctx context.Context, actor Actor) (int64, error) {
	ctx = ensureContext(ctx)
	if !actor.IsAdmin() {
		return 0, ErrBlogDeleteForbidden
	}

	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Blog{})
		if result.Error != nil {
			return fmt.Errorf("delete blogs: %w", result.Error)
		}
		removed = result.RowsAffected

		empty := datatypes.JSONSlice[string]{}
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).
			Model(&models.User{}).
			Select("liked_posts", "disliked_posts").
			Updates(&models.User{LikedPosts: empty, DislikedPosts: empty}).Error; err != nil {
			return fmt.Errorf("clear vote lists: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("blog service: %w", err)
	}

	s.cache.afterWrite(ctx, CollectionBlogs, CollectionUsers)
	s.log.Warn("all blogs deleted", zap.Int64("count", removed), zap.String("by", actor.UserID))
	return removed, nil
}

// Like toggles actor's like on a blog. Liking a blog the actor disliked moves
// the vote.
func (s *BlogService) Like(ctx context.Context, actor Actor, id string) (*VoteResult, error) {
	return s.vote(ctx, actor, id, VoteLike)
}

// Dislike toggles actor's dislike on a blog. Disliking a blog the actor liked
// moves the vote.
func (s *BlogService) Dislike(ctx context.Context, actor Actor, id string) (*VoteResult, error) {
	return s.vote(ctx, actor, id, VoteDislike)
}

func (s *BlogService) vote(ctx context.Context, actor Actor, id, kind string) (*VoteResult, error) {
	ctx = ensureContext(ctx)
	id = strings.TrimSpace(id)

	var result VoteResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		blog, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if !blog.VisibleTo(actor.Role) {
			return ErrBlogNotFound
		}

		var user models.User
		if err := tx.Omit("profile_image").Take(&user, "id = ?", actor.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("load voter: %w", err)
		}

		result.Message = applyVote(blog, &user, kind)
		if err := saveBlogVotes(tx, blog); err != nil {
			return err
		}
		if err := saveUserVotes(tx, &user); err != nil {
			return err
		}
		result.Blog = blog
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrBlogNotFound) || errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("blog service: vote: %w", err)
	}

	s.cache.afterWrite(ctx, CollectionBlogs, CollectionUsers)
	return &result, nil
}

// applyVote mutates the blog and user lists for one toggle and returns a
// message describing the outcome.
func applyVote(blog *models.Blog, user *models.User, kind string) string {
	uid := user.ID
	if kind == VoteLike {
		if blog.LikedBy(uid) {
			blog.LikesInfo = removeString(blog.LikesInfo, uid)
			user.LikedPosts = removeString(user.LikedPosts, blog.ID)
			return "Like removed"
		}
		blog.LikesInfo = appendUnique(blog.LikesInfo, uid)
		user.LikedPosts = appendUnique(user.LikedPosts, blog.ID)
		blog.DislikesInfo = removeString(blog.DislikesInfo, uid)
		user.DislikedPosts = removeString(user.DislikedPosts, blog.ID)
		return "Liked"
	}

	if blog.DislikedBy(uid) {
		blog.DislikesInfo = removeString(blog.DislikesInfo, uid)
		user.DislikedPosts = removeString(user.DislikedPosts, blog.ID)
		return "Dislike removed"
	}
	blog.DislikesInfo = appendUnique(blog.DislikesInfo, uid)
	user.DislikedPosts = appendUnique(user.DislikedPosts, blog.ID)
	blog.LikesInfo = removeString(blog.LikesInfo, uid)
	user.LikedPosts = removeString(user.LikedPosts, blog.ID)
	return "Disliked"
}
