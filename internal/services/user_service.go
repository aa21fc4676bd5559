package services

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/blogdesk/internal/models"
	"github.com/charlesng35/blogdesk/pkg/crypto"
	"github.com/charlesng35/blogdesk/pkg/logger"
	"github.com/charlesng35/blogdesk/pkg/validator"
)

// PasswordCost is the bcrypt cost applied to stored passwords.
const PasswordCost = 10

// ListUsersOptions selects a page of users.
type ListUsersOptions struct {
	Page     int
	PageSize int
	Username string
}

// UserPage is one page of users.
type UserPage struct {
	Users      []models.User `json:"users"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	Matched    int64         `json:"matched"`
	TotalUsers int64         `json:"total_users"`
	TotalPages int           `json:"total_pages"`
	Source     string        `json:"source"`
}

// CreateUserInput carries the fields of a new account. Avatar holds an
// already compressed image.
type CreateUserInput struct {
	Username  string
	Password  string
	Email     string
	FirstName string
	LastName  string
	BirthDate *time.Time
	Address   string
	Role      string
	Avatar    []byte
}

// UpdateUserInput carries a partial account update. Nil fields are left unchanged.
type UpdateUserInput struct {
	Username  *string
	Password  *string
	Email     *string
	FirstName *string
	LastName  *string
	BirthDate *time.Time
	Address   *string
	Role      *string
	Avatar    []byte
}

// UserService manages accounts.
type UserService struct {
	db          *gorm.DB
	cache       *CacheService
	pageSize    int
	maxPageSize int
	log         *zap.Logger
}

// UserServiceOption customises a UserService.
type UserServiceOption func(*UserService)

// WithUserPageSize overrides the default and maximum page sizes.
func WithUserPageSize(size, maxSize int) UserServiceOption {
	return func(s *UserService) {
		if size > 0 {
			s.pageSize = size
		}
		if maxSize > 0 {
			s.maxPageSize = maxSize
		}
	}
}

// NewUserService constructs a UserService.
func NewUserService(db *gorm.DB, cacheSvc *CacheService, opts ...UserServiceOption) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	if cacheSvc == nil {
		return nil, errors.New("user service: cache service is required")
	}
	svc := &UserService{
		db:          db,
		cache:       cacheSvc,
		pageSize:    DefaultPageSize,
		maxPageSize: MaxPageSize,
		log:         logger.WithModule("users"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.maxPageSize < svc.pageSize {
		svc.maxPageSize = svc.pageSize
	}
	return svc, nil
}

// List returns one page of users ordered by identifier, optionally narrowed
// to usernames containing opts.Username.
func (s *UserService) List(ctx context.Context, opts ListUsersOptions) (*UserPage, error) {
	ctx = ensureContext(ctx)
	if opts.Page == 0 {
		return nil, ErrPageRequired
	}
	if opts.Page < 0 {
		return nil, ErrInvalidPage
	}
	size := resolvePageSize(opts.PageSize, s.pageSize, s.maxPageSize)
	needle := strings.ToLower(strings.TrimSpace(opts.Username))

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("user service: count users: %w", err)
	}
	s.cache.setTotalUsers(ctx, total)

	if snapshot, ok := s.cache.Users(ctx); ok {
		matches := make([]models.User, 0, len(snapshot))
		for _, user := range snapshot {
			if needle == "" || strings.Contains(strings.ToLower(user.Username), needle) {
				matches = append(matches, user)
			}
		}
		slices.SortFunc(matches, func(a, b models.User) int { return cmp.Compare(a.ID, b.ID) })
		pages := totalPages(len(matches), size)
		if err := checkPage(opts.Page, pages); err != nil {
			return nil, err
		}
		return &UserPage{
			Users:      window(matches, opts.Page, size),
			Page:       opts.Page,
			PageSize:   size,
			Matched:    int64(len(matches)),
			TotalUsers: total,
			TotalPages: pages,
			Source:     SourceCache,
		}, nil
	}

	query := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&models.User{}).Omit("profile_image")
		if needle != "" {
			q = q.Where("LOWER(username) LIKE ? ESCAPE '!'", "%"+escapeLike(needle)+"%")
		}
		return q
	}

	var matched int64
	if err := query().Count(&matched).Error; err != nil {
		return nil, fmt.Errorf("user service: count matching users: %w", err)
	}
	pages := totalPages(int(matched), size)
	if err := checkPage(opts.Page, pages); err != nil {
		return nil, err
	}

	users := make([]models.User, 0, size)
	if err := query().Order("id ASC").Offset((opts.Page - 1) * size).Limit(size).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("user service: list users: %w", err)
	}

	s.cache.populate(ctx, CollectionUsers)

	return &UserPage{
		Users:      users,
		Page:       opts.Page,
		PageSize:   size,
		Matched:    matched,
		TotalUsers: total,
		TotalPages: pages,
		Source:     SourceStorage,
	}, nil
}

// Get returns a user by identifier. Non-admins may only read their own account.
func (s *UserService) Get(ctx context.Context, actor Actor, id string) (*models.User, error) {
	ctx = ensureContext(ctx)
	id = strings.TrimSpace(id)
	if !actor.IsAdmin() && actor.UserID != id {
		return nil, ErrUserNotFound
	}

	if snapshot, ok := s.cache.Users(ctx); ok {
		for i := range snapshot {
			if snapshot[i].ID == id {
				user := snapshot[i]
				return &user, nil
			}
		}
	}

	user, err := s.load(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	s.cache.populate(ctx, CollectionUsers)
	return user, nil
}

// Avatar returns the stored JPEG profile image of a user.
func (s *UserService) Avatar(ctx context.Context, id string) ([]byte, error) {
	ctx = ensureContext(ctx)
	var user models.User
	err := s.db.WithContext(ctx).Select("id", "profile_image").Take(&user, "id = ?", strings.TrimSpace(id)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user service: load avatar: %w", err)
	}
	if len(user.ProfileImage) == 0 {
		return nil, ErrAvatarNotFound
	}
	return user.ProfileImage, nil
}

func (s *UserService) load(ctx context.Context, db *gorm.DB, id string) (*models.User, error) {
	var user models.User
	if err := db.WithContext(ctx).Omit("profile_image").Take(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user service: load user: %w", err)
	}
	return &user, nil
}

// Create adds a verified account on behalf of an admin.
func (s *UserService) Create(ctx context.Context, actor Actor, input CreateUserInput) (*models.User, error) {
	if !actor.IsAdmin() {
		return nil, ErrUserUpdateForbidden
	}
	if input.Role == "" {
		input.Role = models.RoleUser
	}
	return s.create(ctx, input, true, nil)
}

// create validates and stores an account. When within is non-nil it runs
// inside the caller's transaction after the user row exists.
func (s *UserService) create(ctx context.Context, input CreateUserInput, verified bool, within func(tx *gorm.DB, user *models.User) error) (*models.User, error) {
	ctx = ensureContext(ctx)
	username := strings.TrimSpace(input.Username)
	email := strings.TrimSpace(input.Email)
	if username == "" || strings.TrimSpace(input.Password) == "" ||
		strings.TrimSpace(input.FirstName) == "" || strings.TrimSpace(input.LastName) == "" ||
		email == "" || input.BirthDate == nil {
		return nil, ErrUserFieldsRequired
	}
	if !validator.IsEmail(email) {
		return nil, ErrInvalidEmail
	}
	role := strings.TrimSpace(input.Role)
	if role == "" {
		role = models.RoleUser
	}
	if !models.ValidRole(role) {
		return nil, ErrInvalidRole
	}

	hash, err := crypto.HashPasswordWithCost(input.Password, PasswordCost)
	if err != nil {
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}

	user := &models.User{
		Username:      username,
		Password:      hash,
		Email:         email,
		Role:          role,
		FirstName:     strings.TrimSpace(input.FirstName),
		LastName:      strings.TrimSpace(input.LastName),
		BirthDate:     input.BirthDate,
		Address:       strings.TrimSpace(input.Address),
		ProfileImage:  input.Avatar,
		HasAvatar:     len(input.Avatar) > 0,
		IsVerified:    verified,
		LikedPosts:    datatypes.JSONSlice[string]{},
		DislikedPosts: datatypes.JSONSlice[string]{},
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.User{}).Where("username = ?", username).Count(&existing).Error; err != nil {
			return fmt.Errorf("check username: %w", err)
		}
		if existing > 0 {
			return ErrUsernameTaken
		}
		if err := tx.Create(user).Error; err != nil {
			if isUniqueConstraintError(err) {
				return ErrUsernameTaken
			}
			return fmt.Errorf("create user: %w", err)
		}
		if within != nil {
			return within(tx, user)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("user service: %w", err)
	}

	s.cache.afterWrite(ctx, CollectionUsers)
	s.log.Info("user created", zap.String("user_id", user.ID), zap.String("username", user.Username))
	return user, nil
}

// Update applies a partial update. Users may edit their own account and
// admins may edit any account; only admins may change roles.
func (s *UserService) Update(ctx context.Context, actor Actor, id string, input UpdateUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)
	id = strings.TrimSpace(id)
	if !actor.IsAdmin() && actor.UserID != id {
		return nil, ErrUserUpdateForbidden
	}
	user, err := s.load(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	setText := func(column string, value *string, required bool) error {
		if value == nil {
			return nil
		}
		trimmed := strings.TrimSpace(*value)
		if required && trimmed == "" {
			return ErrUserFieldsRequired
		}
		updates[column] = trimmed
		return nil
	}
	if err := errors.Join(
		setText("first_name", input.FirstName, true),
		setText("last_name", input.LastName, true),
		setText("address", input.Address, false),
	); err != nil {
		return nil, ErrUserFieldsRequired
	}

	if input.Username != nil {
		username := strings.TrimSpace(*input.Username)
		if username == "" {
			return nil, ErrUserFieldsRequired
		}
		if username != user.Username {
			var existing int64
			if err := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ? AND id <> ?", username, id).Count(&existing).Error; err != nil {
				return nil, fmt.Errorf("user service: check username: %w", err)
			}
			if existing > 0 {
				return nil, ErrUsernameTaken
			}
			updates["username"] = username
		}
	}
	if input.Email != nil {
		email := strings.TrimSpace(*input.Email)
		if !validator.IsEmail(email) {
			return nil, ErrInvalidEmail
		}
		updates["email"] = email
	}
	if input.Password != nil {
		if strings.TrimSpace(*input.Password) == "" {
			return nil, ErrUserFieldsRequired
		}
		hash, err := crypto.HashPasswordWithCost(*input.Password, PasswordCost)
		if err != nil {
			return nil, fmt.Errorf("user service: hash password: %w", err)
		}
		updates["password"] = hash
	}
	if input.BirthDate != nil {
		updates["birth_date"] = *input.BirthDate
	}
	if input.Role != nil {
		role := strings.TrimSpace(*input.Role)
		if !actor.IsAdmin() {
			return nil, ErrUserUpdateForbidden
		}
		if !models.ValidRole(role) {
			return nil, ErrInvalidRole
		}
		updates["role"] = role
	}
	if len(input.Avatar) > 0 {
		updates["profile_image"] = input.Avatar
		updates["has_avatar"] = true
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
			if isUniqueConstraintError(err) {
				return nil, ErrUsernameTaken
			}
			return nil, fmt.Errorf("user service: update user: %w", err)
		}
		s.cache.afterWrite(ctx, CollectionUsers)
	}

	return s.load(ctx, s.db, id)
}

// Delete removes an account together with its blogs, its verification codes
// and every vote it cast. Users may delete themselves; admins anyone.
func (s *UserService) Delete(ctx context.Context, actor Actor, id string) error {
	ctx = ensureContext(ctx)
	id = strings.TrimSpace(id)
	if !actor.IsAdmin() && actor.UserID != id {
		return ErrUserDeleteForbidden
	}
	user, err := s.load(ctx, s.db, id)
	if err != nil {
		return err
	}

	var removedBlogs int
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owned []models.Blog
		if err := tx.Where("author_id = ?", user.ID).Find(&owned).Error; err != nil {
			return fmt.Errorf("load owned blogs: %w", err)
		}
		removedBlogs = len(owned)

		ownedIDs := make(map[string]struct{}, len(owned))
		for _, blog := range owned {
			ownedIDs[blog.ID] = struct{}{}
		}
		if err := withdrawVotes(tx, user, ownedIDs); err != nil {
			return err
		}
		if err := detachBlogs(tx, owned, user.ID); err != nil {
			return err
		}
		if len(owned) > 0 {
			if err := tx.Where("author_id = ?", user.ID).Delete(&models.Blog{}).Error; err != nil {
				return fmt.Errorf("delete owned blogs: %w", err)
			}
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.VerificationCode{}).Error; err != nil {
			return fmt.Errorf("delete verification codes: %w", err)
		}
		if err := tx.Delete(&models.User{}, "id = ?", user.ID).Error; err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("user service: %w", err)
	}

	s.cache.afterWrite(ctx, CollectionUsers, CollectionBlogs)
	s.log.Info("user deleted",
		zap.String("user_id", user.ID),
		zap.Int("blogs_removed", removedBlogs),
		zap.String("by", actor.UserID),
	)
	return nil
}
