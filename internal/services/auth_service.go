package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/blogdesk/internal/auth"
	"github.com/charlesng35/blogdesk/internal/models"
	"github.com/charlesng35/blogdesk/pkg/crypto"
	"github.com/charlesng35/blogdesk/pkg/logger"
	"github.com/charlesng35/blogdesk/pkg/mail"
	"github.com/charlesng35/blogdesk/pkg/metrics"
)

// Verification defaults.
const (
	DefaultVerificationTTL = 24 * time.Hour
	verificationCodeBytes  = 10
)

// LoginResult is returned on a successful login.
type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// AuthService handles registration, verification and login.
type AuthService struct {
	db              *gorm.DB
	users           *UserService
	jwt             *auth.JWTService
	mailer          mail.Mailer
	appName         string
	verificationTTL time.Duration
	now             func() time.Time
	log             *zap.Logger
}

// AuthServiceOption customises an AuthService.
type AuthServiceOption func(*AuthService)

// WithMailer sets the mailer used for verification codes.
func WithMailer(m mail.Mailer) AuthServiceOption {
	return func(s *AuthService) {
		s.mailer = m
	}
}

// WithVerificationTTL sets how long a verification code stays valid.
func WithVerificationTTL(ttl time.Duration) AuthServiceOption {
	return func(s *AuthService) {
		if ttl > 0 {
			s.verificationTTL = ttl
		}
	}
}

// WithAppName sets the product name used in outgoing mail.
func WithAppName(name string) AuthServiceOption {
	return func(s *AuthService) {
		if strings.TrimSpace(name) != "" {
			s.appName = strings.TrimSpace(name)
		}
	}
}

// WithAuthClock overrides the clock used for code expiry.
func WithAuthClock(now func() time.Time) AuthServiceOption {
	return func(s *AuthService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewAuthService constructs an AuthService.
func NewAuthService(db *gorm.DB, users *UserService, jwtService *auth.JWTService, opts ...AuthServiceOption) (*AuthService, error) {
	if db == nil {
		return nil, errors.New("auth service: db is required")
	}
	if users == nil {
		return nil, errors.New("auth service: user service is required")
	}
	if jwtService == nil {
		return nil, errors.New("auth service: jwt service is required")
	}
	svc := &AuthService{
		db:              db,
		users:           users,
		jwt:             jwtService,
		appName:         "BlogDesk",
		verificationTTL: DefaultVerificationTTL,
		now:             time.Now,
		log:             logger.WithModule("auth"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Login checks the credentials of a verified account and issues an access token.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	ctx = ensureContext(ctx)
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		metrics.AuthAttempts.WithLabelValues("invalid").Inc()
		return nil, ErrValidationMissingCredentials
	}

	var user models.User
	if err := s.db.WithContext(ctx).Omit("profile_image").Take(&user, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.AuthAttempts.WithLabelValues("unknown_user").Inc()
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("auth service: load user: %w", err)
	}
	if !user.IsVerified {
		metrics.AuthAttempts.WithLabelValues("unverified").Inc()
		return nil, ErrAccountNotVerified
	}
	if !crypto.VerifyPassword(user.Password, strings.TrimSpace(password)) {
		metrics.AuthAttempts.WithLabelValues("invalid_password").Inc()
		return nil, ErrInvalidPassword
	}

	token, err := s.jwt.Issue(auth.Identity{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
	})
	if err != nil {
		return nil, fmt.Errorf("auth service: issue token: %w", err)
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	s.log.Info("user logged in", zap.String("user_id", user.ID))
	return &LoginResult{
		Token:     token.Token,
		ExpiresAt: token.ExpiresAt,
		User:      &user,
	}, nil
}

// Register creates an unverified account with the user role, stores a
// one-time verification code and mails it. Mail failures are logged and do
// not undo the registration.
func (s *AuthService) Register(ctx context.Context, input CreateUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)
	input.Role = models.RoleUser

	code, err := crypto.GenerateHexCode(verificationCodeBytes)
	if err != nil {
		return nil, fmt.Errorf("auth service: generate code: %w", err)
	}

	user, err := s.users.create(ctx, input, false, func(tx *gorm.DB, user *models.User) error {
		record := &models.VerificationCode{
			UserID:    user.ID,
			Code:      code,
			ExpiresAt: s.now().Add(s.verificationTTL),
		}
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("store verification code: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.sendVerification(ctx, user, code)
	return user, nil
}

func (s *AuthService) sendVerification(ctx context.Context, user *models.User, code string) {
	if s.mailer == nil {
		s.log.Warn("no mailer configured, verification code not sent", zap.String("user_id", user.ID))
		return
	}
	msg := mail.Message{
		To:      []string{user.Email},
		Subject: fmt.Sprintf("Welcome to %s", s.appName),
		Body: fmt.Sprintf(
			"<p>Thank you for registering with %s. Please confirm your verification code</p>\n<p>Your code is <strong>%s</strong></p>\n",
			html.EscapeString(s.appName), html.EscapeString(code),
		),
		HTML: true,
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.log.Error("send verification email", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	s.log.Info("verification email sent", zap.String("user_id", user.ID))
}

// Verify marks the account verified when code is a live code issued to userID.
// Every code of the user is consumed.
func (s *AuthService) Verify(ctx context.Context, userID, code string) error {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	code = strings.TrimSpace(code)
	if userID == "" || code == "" {
		return ErrVerificationFields
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record models.VerificationCode
		err := tx.Where("user_id = ? AND code = ? AND expires_at > ?", userID, code, s.now()).Take(&record).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrVerificationInvalid
			}
			return fmt.Errorf("load verification code: %w", err)
		}

		result := tx.Model(&models.User{}).Where("id = ?", userID).Update("is_verified", true)
		if result.Error != nil {
			return fmt.Errorf("mark verified: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrUserNotFound
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.VerificationCode{}).Error; err != nil {
			return fmt.Errorf("consume verification codes: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrVerificationInvalid) || errors.Is(err, ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("auth service: %w", err)
	}

	s.users.cache.afterWrite(ctx, CollectionUsers)
	s.log.Info("account verified", zap.String("user_id", userID))
	return nil
}
