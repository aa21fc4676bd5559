package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/blogdesk/internal/auth"
	"github.com/charlesng35/blogdesk/pkg/errors"
	"github.com/charlesng35/blogdesk/pkg/response"
)

// Keys set on the gin context.
const (
	CtxClaimsKey    = "authClaims"
	CtxUserIDKey    = "userID"
	CtxUsernameKey  = "username"
	CtxRoleKey      = "role"
	CtxRequestIDKey = "requestID"
)

// Auth admits requests that carry a valid access token in the Authorization
// header and puts the caller's identity on the context. The scheme word is
// not checked; the token is whatever follows the first space. A missing or
// rejected token both answer 401 "Invalid token".
func Auth(jwt *iauth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			rejectToken(c)
			return
		}
		claims, err := jwt.Parse(token)
		if err != nil {
			rejectToken(c)
			return
		}

		identity := claims.User
		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, identity.UserID)
		c.Set(CtxUsernameKey, identity.Username)
		c.Set(CtxRoleKey, identity.Role)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	_, token, found := strings.Cut(strings.TrimSpace(header), " ")
	token = strings.TrimSpace(token)
	return token, found && token != ""
}

func rejectToken(c *gin.Context) {
	c.Header("WWW-Authenticate", "Bearer")
	response.Error(c, errors.ErrInvalidToken)
	c.Abort()
}

// RequireRole admits callers whose role is one of roles. Without a prior Auth
// the caller is unauthenticated and gets 401; a role outside roles gets 403.
// Both answer "Invalid role".
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, authenticated := c.Get(CtxRoleKey)
		switch {
		case !authenticated:
			response.Error(c, errors.ErrForbidden.WithStatus(http.StatusUnauthorized))
		case !slices.Contains(roles, role.(string)):
			response.Error(c, errors.ErrForbidden)
		default:
			c.Next()
			return
		}
		c.Abort()
	}
}
