package services

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/charlesng35/blogdesk/pkg/errors"
)

var (
	ErrBlogNotFound        = apperrors.New("BLOG_NOT_FOUND", "Blog not found", http.StatusNotFound)
	ErrBlogFieldsRequired  = apperrors.New("BLOG_FIELDS_REQUIRED", "Title and content are required", http.StatusBadRequest)
	ErrBlogUpdateForbidden = apperrors.New("BLOG_UPDATE_FORBIDDEN", "You cant update this blog with your access !", http.StatusForbidden)
	ErrBlogDeleteForbidden = apperrors.New("BLOG_DELETE_FORBIDDEN", "You cant delete this blog with your access !", http.StatusForbidden)
	ErrBlogStateForbidden  = apperrors.New("BLOG_STATE_FORBIDDEN", "Only admin can change the state of a blog", http.StatusForbidden)
	ErrInvalidBlogState    = apperrors.New("INVALID_BLOG_STATE", "State must be a non-negative number", http.StatusBadRequest)

	ErrPageRequired   = apperrors.New("PAGE_REQUIRED", "Please input page", http.StatusOK)
	ErrPageOutOfRange = apperrors.New("PAGE_OUT_OF_RANGE", "Page cannot be greater than total page", http.StatusOK)
	ErrInvalidPage    = apperrors.New("INVALID_PAGE", "Page must be a positive number", http.StatusBadRequest)

	ErrUserNotFound        = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)
	ErrUserFieldsRequired  = apperrors.New("USER_FIELDS_REQUIRED", "Username, password, FirstName, LastName, Email, Birthdate are required", http.StatusBadRequest)
	ErrUsernameTaken       = apperrors.New("USERNAME_TAKEN", "Username already exists", http.StatusConflict)
	ErrInvalidEmail        = apperrors.New("INVALID_EMAIL", "Invalid email format", http.StatusBadRequest)
	ErrInvalidRole         = apperrors.New("INVALID_ROLE", "Role must be admin or user", http.StatusBadRequest)
	ErrUserUpdateForbidden = apperrors.New("USER_UPDATE_FORBIDDEN", "You cant update this user with your access !", http.StatusForbidden)
	ErrUserDeleteForbidden = apperrors.New("USER_DELETE_FORBIDDEN", "You cant delete this user with your access !", http.StatusForbidden)
	ErrAvatarNotFound      = apperrors.New("AVATAR_NOT_FOUND", "User has no profile image", http.StatusNotFound)

	ErrValidationMissingCredentials = apperrors.New("CREDENTIALS_REQUIRED", "Username and password are required", http.StatusBadRequest)
	ErrAccountNotVerified           = apperrors.New("ACCOUNT_NOT_VERIFIED", "Your account need to verify !!", http.StatusForbidden)
	ErrInvalidPassword              = apperrors.New("INVALID_PASSWORD", "Invalid password", http.StatusUnauthorized)
	ErrVerificationFields           = apperrors.New("VERIFICATION_FIELDS_REQUIRED", "Please fill userId and code !!!", http.StatusBadRequest)
	ErrVerificationInvalid          = apperrors.New("VERIFICATION_INVALID", "Your code is expired, please create account again : )", http.StatusBadRequest)

	ErrScheduleIncomplete = apperrors.New("SCHEDULE_INCOMPLETE", "Please fill all input !!", http.StatusBadRequest)
	ErrInvalidSchedule    = apperrors.New("INVALID_SCHEDULE", "Please correct the cron extension !!", http.StatusBadRequest)

	ErrUnsupportedImage  = apperrors.New("INVALID_IMAGE_FORMAT", "Invalid file format. Only jpg, jpeg, and png are allowed.", http.StatusBadRequest)
	ErrUnsupportedFormat = apperrors.New("UNSUPPORTED_FORMAT", "Only csv and xlsx files are supported", http.StatusBadRequest)
	ErrUnknownCollection = apperrors.New("UNKNOWN_COLLECTION", "Collection must be blogs or users", http.StatusBadRequest)
)

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique") ||
		strings.Contains(lower, "duplicate") ||
		strings.Contains(lower, "constraint")
}
