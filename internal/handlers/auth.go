package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/blogdesk/internal/services"
	appErrors "github.com/charlesng35/blogdesk/pkg/errors"
	"github.com/charlesng35/blogdesk/pkg/response"
)

// AuthHandler exposes registration, verification and login.
type AuthHandler struct {
	auth *services.AuthService
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type registerRequest struct {
	Username  string `json:"username" form:"username" validate:"omitempty,max=64,username"`
	Password  string `json:"password" form:"password" validate:"max=128"`
	FirstName string `json:"first_name" form:"first_name" validate:"max=128"`
	LastName  string `json:"last_name" form:"last_name" validate:"max=128"`
	Email     string `json:"email" form:"email" validate:"max=255"`
	BirthDate string `json:"birth_date" form:"birth_date"`
	Address   string `json:"address" form:"address" validate:"max=255"`
}

type verifyRequest struct {
	UserID string `json:"user_id"`
	Code   string `json:"code"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register creates an unverified account and mails its verification code.
//
// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindFormOrJSON(c, &req) {
		return
	}

	birthDate, err := parseBirthDate(req.BirthDate)
	if err != nil {
		respondError(c, err)
		return
	}
	avatar, err := readAvatar(c)
	if err != nil {
		respondError(c, err)
		return
	}

	user, err := h.auth.Register(requestContext(c), services.CreateUserInput{
		Username:  req.Username,
		Password:  req.Password,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		BirthDate: birthDate,
		Address:   req.Address,
		Avatar:    avatar,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusCreated, "User created successfully. We have sent you a secret code, please verify it !!!", user)
}

// Verify consumes a verification code.
//
// POST /api/auth/verify
func (h *AuthHandler) Verify(c *gin.Context) {
	var req verifyRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.auth.Verify(requestContext(c), req.UserID, req.Code); err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "Account verified !", nil)
}

// Login authenticates a verified account and issues an access token.
//
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		return
	}
	result, err := h.auth.Login(requestContext(c), req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// Logout acknowledges a logout. Tokens are stateless and expire on their own.
//
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	response.SuccessWithMessage(c, http.StatusOK, "Logged out", nil)
}

// readAvatar returns the compressed "avatar" upload, or nil when none was sent.
func readAvatar(c *gin.Context) ([]byte, error) {
	header, err := c.FormFile("avatar")
	if err != nil {
		// JSON bodies and forms without the field carry no avatar.
		return nil, nil
	}
	file, err := header.Open()
	if err != nil {
		return nil, appErrors.NewBadRequest("unable to read avatar")
	}
	defer file.Close()
	return services.CompressAvatar(file)
}
