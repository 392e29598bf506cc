// Package middleware holds the gin middleware shared by every route group.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ken-eddy/simplesales/apperr"
	"github.com/ken-eddy/simplesales/auth"
)

// Context keys set by AuthMiddleware.
const (
	KeyUserID     = "user_id"
	KeyBusinessID = "business_id"
	KeyEmail      = "email"
	KeyIsAdmin    = "is_admin"
	KeyIdentity   = "identity"
)

// TokenCookie is the cookie login sets next to the JSON token.
const TokenCookie = "token"

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Identity, error)
}

// bearerToken reads the Authorization header first and falls back to the
// session cookie.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	if token, err := c.Cookie(TokenCookie); err == nil {
		return token
	}
	return ""
}

func AuthMiddleware(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			abort(c, http.StatusUnauthorized, apperr.Unauthorized("Authentication token required"))
			return
		}

		id, err := a.Authenticate(c.Request.Context(), token)
		if err != nil {
			status := http.StatusUnauthorized
			switch apperr.KindOf(err) {
			case apperr.KindForbidden:
				status = http.StatusForbidden
			case apperr.KindPersistence:
				status = http.StatusInternalServerError
			}
			abort(c, status, err)
			return
		}

		c.Set(KeyIdentity, id)
		c.Set(KeyUserID, id.UserID)
		c.Set(KeyBusinessID, id.BusinessID)
		c.Set(KeyEmail, id.Email)
		c.Set(KeyIsAdmin, id.IsAdmin)
		c.Next()
	}
}

// AdminOnly must run after AuthMiddleware.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool(KeyIsAdmin) {
			abort(c, http.StatusForbidden, apperr.Forbidden("Admin access required"))
			return
		}
		c.Next()
	}
}

// Identity returns the caller set by AuthMiddleware, or nil on public routes.
func Identity(c *gin.Context) *auth.Identity {
	v, ok := c.Get(KeyIdentity)
	if !ok {
		return nil
	}
	id, _ := v.(*auth.Identity)
	return id
}

func abort(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"error": apperr.Message(err), "code": apperr.KindOf(err)})
}
