package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dishevent/dishevent-server/identity"
	"github.com/dishevent/dishevent-server/logger"
	"github.com/dishevent/dishevent-server/middleware"
)

const (
	sessionErrUnauthorized = "unauthorized"
	sessionErrConfig       = "server_configuration_error"
	sessionErrBadRequest   = "bad_request"
)

// SessionController bridges identity-provider tokens and the session cookie.
// Its responses keep the flat {success}/{isLoggedIn} shapes the web client
// expects rather than the response envelope.
type SessionController struct {
	bridge     *identity.Bridge
	cookieName string
	maxAge     int
	secure     bool
}

func NewSessionController(bridge *identity.Bridge, cookieName string, maxAgeSeconds int, secure bool) *SessionController {
	if cookieName == "" {
		cookieName = middleware.DefaultSessionCookie
	}
	return &SessionController{bridge: bridge, cookieName: cookieName, maxAge: maxAgeSeconds, secure: secure}
}

type createSessionReq struct {
	IDToken string `json:"idToken" binding:"required"`
}

// POST /api/auth/session
func (h *SessionController) Create(c *gin.Context) {
	var req createSessionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": sessionErrBadRequest, "message": "body must be {\"idToken\": string}"})
		return
	}

	token, id, err := h.bridge.Exchange(c.Request.Context(), req.IDToken)
	if err != nil {
		if errors.Is(err, identity.ErrNotConfigured) {
			logger.WithContext(c.Request.Context()).Error("session mint without service account")
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   sessionErrConfig,
				"message": "session verification is not configured on the server",
			})
			return
		}
		logger.WithContext(c.Request.Context()).Warn("id token rejected", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": sessionErrUnauthorized, "message": "invalid identity token"})
		return
	}

	h.setCookie(c, token, h.maxAge)
	logger.WithContext(c.Request.Context()).Info("session created", zap.String("user_id", id.UserID))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GET /api/auth/session. Missing or invalid cookies are reported as logged
// out with 200; an invalid cookie is also cleared.
func (h *SessionController) Get(c *gin.Context) {
	raw, err := c.Cookie(h.cookieName)
	if err != nil || raw == "" {
		c.JSON(http.StatusOK, gin.H{"isLoggedIn": false})
		return
	}

	id, err := h.bridge.Resolve(raw)
	if err != nil {
		if errors.Is(err, identity.ErrNotConfigured) {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":      sessionErrConfig,
				"message":    "session verification is not configured on the server",
				"isLoggedIn": false,
			})
			return
		}
		h.setCookie(c, "", -1)
		c.JSON(http.StatusOK, gin.H{"isLoggedIn": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"isLoggedIn": true,
		"userId":     id.UserID,
		"email":      id.Email,
	})
}

// DELETE /api/auth/session
func (h *SessionController) Delete(c *gin.Context) {
	h.setCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GET /api/auth/guard?path=/dashboard
func (h *SessionController) Guard(c *gin.Context) {
	path := c.DefaultQuery("path", "/")
	loggedIn := false
	if tok := middleware.SessionToken(c, h.cookieName); tok != "" {
		if _, err := h.bridge.Resolve(tok); err == nil {
			loggedIn = true
		}
	}
	c.JSON(http.StatusOK, middleware.DecideRoute(path, loggedIn))
}

func (h *SessionController) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, value, maxAge, "/", "", h.secure, true)
}
