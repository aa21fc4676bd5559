package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/blogdesk/internal/services"
	"github.com/charlesng35/blogdesk/pkg/response"
)

// UserHandler exposes account management.
type UserHandler struct {
	users *services.UserService
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

type createUserRequest struct {
	registerRequest
	Role string `json:"role" form:"role" validate:"omitempty,oneof=user admin"`
}

type updateUserRequest struct {
	Username  *string `json:"username" form:"username" validate:"omitempty,max=64,username"`
	Password  *string `json:"password" form:"password" validate:"omitempty,max=128"`
	FirstName *string `json:"first_name" form:"first_name" validate:"omitempty,max=128"`
	LastName  *string `json:"last_name" form:"last_name" validate:"omitempty,max=128"`
	Email     *string `json:"email" form:"email" validate:"omitempty,max=255"`
	BirthDate *string `json:"birth_date" form:"birth_date"`
	Address   *string `json:"address" form:"address" validate:"omitempty,max=255"`
	Role      *string `json:"role" form:"role"`
}

// List returns one page of users.
//
// GET /api/users?page=1&page_size=10&username=al
func (h *UserHandler) List(c *gin.Context) {
	page, err := parsePage(c)
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := h.users.List(requestContext(c), services.ListUsersOptions{
		Page:     page,
		PageSize: parseIntQuery(c, "page_size", 0),
		Username: c.Query("username"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, result, &response.Meta{
		Page:       result.Page,
		PerPage:    result.PageSize,
		Total:      int(result.Matched),
		TotalPages: result.TotalPages,
	})
}

// Get returns one user without credentials.
//
// GET /api/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.users.Get(requestContext(c), actorFromContext(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// Avatar streams the stored profile image.
//
// GET /api/users/:id/avatar
func (h *UserHandler) Avatar(c *gin.Context) {
	data, err := h.users.Avatar(requestContext(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/jpeg", data)
}

// Create adds a verified account. Admin only.
//
// POST /api/users
func (h *UserHandler) Create(c *gin.Context) {
	var req createUserRequest
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

	user, err := h.users.Create(requestContext(c), actorFromContext(c), services.CreateUserInput{
		Username:  req.Username,
		Password:  req.Password,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		BirthDate: birthDate,
		Address:   req.Address,
		Role:      req.Role,
		Avatar:    avatar,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusCreated, "User created", user)
}

// Update edits the caller's own account, or any account for admins.
//
// PUT /api/users/:id
func (h *UserHandler) Update(c *gin.Context) {
	var req updateUserRequest
	if !bindFormOrJSON(c, &req) {
		return
	}

	input := services.UpdateUserInput{
		Username:  req.Username,
		Password:  req.Password,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Address:   req.Address,
		Role:      req.Role,
	}
	if req.BirthDate != nil {
		birthDate, err := parseBirthDate(*req.BirthDate)
		if err != nil {
			respondError(c, err)
			return
		}
		input.BirthDate = birthDate
	}
	avatar, err := readAvatar(c)
	if err != nil {
		respondError(c, err)
		return
	}
	input.Avatar = avatar

	user, err := h.users.Update(requestContext(c), actorFromContext(c), c.Param("id"), input)
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "User updated", user)
}

// Delete removes an account together with its blogs and votes.
//
// DELETE /api/users/:id
func (h *UserHandler) Delete(c *gin.Context) {
	if err := h.users.Delete(requestContext(c), actorFromContext(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "User deleted", nil)
}
