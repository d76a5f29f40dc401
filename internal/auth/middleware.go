package auth

import (
	"context"
	"net/http"

	dom "github.com/devtitozzzzg/todo/internal/domain"

	"github.com/gin-gonic/gin"
)

// CookieName is the cookie that carries the signed session token.
const CookieName = "session_id"

const contextKeyUser = "user"

// Resolver turns a session token back into the signed-in user.
type Resolver interface {
	CurrentUser(ctx context.Context, token string) (dom.User, error)
}

// UserFromContext returns the current user set by RequireSession.
func UserFromContext(c *gin.Context) (dom.User, bool) {
	v, ok := c.Get(contextKeyUser)
	if !ok {
		return dom.User{}, false
	}
	u, ok := v.(dom.User)
	return u, ok
}

// TokenFromRequest returns the raw session token, or "" if absent.
func TokenFromRequest(c *gin.Context) string {
	token, err := c.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return token
}

// RequireSession returns a middleware for pages: requests without a valid
// session are redirected to loginPath.
func RequireSession(r Resolver, loginPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !resolve(c, r) {
			c.Redirect(http.StatusFound, loginPath)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireSessionAPI is RequireSession for JSON routes. If missing or invalid,
// responds with 401.
func RequireSessionAPI(r Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !resolve(c, r) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		c.Next()
	}
}

func resolve(c *gin.Context, r Resolver) bool {
	token := TokenFromRequest(c)
	if token == "" {
		return false
	}
	user, err := r.CurrentUser(c.Request.Context(), token)
	if err != nil {
		return false
	}
	c.Set(contextKeyUser, user)
	return true
}
