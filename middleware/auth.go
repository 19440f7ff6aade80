package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dishevent/dishevent-server/identity"
	"github.com/dishevent/dishevent-server/response"
)

const (
	CtxIdentity = "identity"

	DefaultSessionCookie = "session"
)

// SessionResolver turns a session token into an identity.
type SessionResolver interface {
	Resolve(sessionToken string) (identity.Identity, error)
}

// SessionToken reads the session cookie, falling back to Authorization: Bearer.
func SessionToken(c *gin.Context, cookieName string) string {
	if v, err := c.Cookie(cookieName); err == nil && v != "" {
		return v
	}
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// AuthSession rejects requests without a valid session.
func AuthSession(resolver SessionResolver, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := SessionToken(c, cookieName)
		if tok == "" {
			response.Abort(c, response.ErrCodeUnauthorized, "sign in required")
			return
		}
		id, err := resolver.Resolve(tok)
		if err != nil {
			if errors.Is(err, identity.ErrNotConfigured) {
				response.Abort(c, response.ErrCodeServerConfig, "session verification is not configured")
				return
			}
			response.Abort(c, response.ErrCodeUnauthorized, "invalid or expired session")
			return
		}
		setIdentity(c, id)
		c.Next()
	}
}

// OptionalSession attaches the identity when a valid session is present and
// never rejects.
func OptionalSession(resolver SessionResolver, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tok := SessionToken(c, cookieName); tok != "" {
			if id, err := resolver.Resolve(tok); err == nil {
				setIdentity(c, id)
			}
		}
		c.Next()
	}
}

func setIdentity(c *gin.Context, id identity.Identity) {
	c.Set(CtxIdentity, id)
	c.Request = c.Request.WithContext(identity.WithIdentity(c.Request.Context(), id))
}

// CurrentIdentity returns the request identity, or the zero Identity for
// anonymous callers.
func CurrentIdentity(c *gin.Context) identity.Identity {
	if v, ok := c.Get(CtxIdentity); ok {
		if id, ok := v.(identity.Identity); ok {
			return id
		}
	}
	id, _ := identity.FromContext(c.Request.Context())
	return id
}
