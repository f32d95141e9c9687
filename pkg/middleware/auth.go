package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/weiawesome/wes-io-polls/pkg/log"
	"github.com/weiawesome/wes-io-polls/pkg/response"
)

const (
	UserIDKey     = "user_id"
	UsernameKey   = "username"
	RoleKey       = "role"
	TokenKey      = "token"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
	TokenQueryKey = "token"
)

// Principal is the authenticated subject bound to a request or connection.
type Principal struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// TokenValidator resolves a bearer token to a principal. Errors should
// implement response.Coder so they render with the right status.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*Principal, error)
}

// AuthMiddleware validates bearer tokens on protected routes.
type AuthMiddleware struct {
	validator TokenValidator
	// missing is returned when no token was presented at all.
	missing error
}

// NewAuthMiddleware creates a new auth middleware. missing is the error
// rendered when the request carries no token.
func NewAuthMiddleware(validator TokenValidator, missing error) *AuthMiddleware {
	return &AuthMiddleware{validator: validator, missing: missing}
}

// ExtractToken reads the bearer token from the Authorization header, falling
// back to the token query parameter used by browser websocket clients.
func ExtractToken(r *http.Request) string {
	if h := r.Header.Get(AuthHeaderKey); h != "" {
		if strings.HasPrefix(h, BearerPrefix) {
			return strings.TrimSpace(strings.TrimPrefix(h, BearerPrefix))
		}
		return ""
	}
	return strings.TrimSpace(r.URL.Query().Get(TokenQueryKey))
}

// RequireAuth returns a Gin middleware that validates the bearer token.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c.Request)
		if token == "" {
			response.AbortFromError(c, m.missing)
			return
		}

		p, err := m.validator.ValidateToken(c.Request.Context(), token)
		if err != nil {
			l := log.Ctx(c.Request.Context())
			l.Debug().Err(err).Msg("token rejected")
			response.AbortFromError(c, err)
			return
		}

		c.Set(UserIDKey, p.UserID)
		c.Set(UsernameKey, p.Username)
		c.Set(RoleKey, p.Role)
		c.Set(TokenKey, token)
		c.Request = c.Request.WithContext(log.WithActor(c.Request.Context(), p.UserID, p.Username))

		c.Next()
	}
}

// GetUserID extracts user ID from Gin context.
func GetUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

// GetUsername extracts username from Gin context.
func GetUsername(c *gin.Context) string {
	return c.GetString(UsernameKey)
}

// GetRole extracts the role from Gin context.
func GetRole(c *gin.Context) string {
	return c.GetString(RoleKey)
}

// GetToken returns the raw token the request was authenticated with.
func GetToken(c *gin.Context) string {
	return c.GetString(TokenKey)
}

// GetPrincipal assembles the authenticated principal from Gin context.
func GetPrincipal(c *gin.Context) Principal {
	return Principal{
		UserID:   GetUserID(c),
		Username: GetUsername(c),
		Role:     GetRole(c),
	}
}
