package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dishevent/dishevent-server/logger"
	"github.com/dishevent/dishevent-server/middleware"
	"github.com/dishevent/dishevent-server/response"
	"github.com/dishevent/dishevent-server/services"
	"github.com/dishevent/dishevent-server/utils"
)

// PublicController serves the shared invitation page: view, password gate
// and RSVP. Callers may be anonymous.
type PublicController struct {
	access *services.AccessService
	guests *services.GuestService
	secure bool
}

func NewPublicController(access *services.AccessService, guests *services.GuestService, secure bool) *PublicController {
	return &PublicController{access: access, guests: guests, secure: secure}
}

func accessToken(c *gin.Context, eventID string) string {
	v, _ := c.Cookie(utils.EventAccessCookie(eventID))
	return v
}

// GET /api/public/events/:id
func (h *PublicController) View(c *gin.Context) {
	id := c.Param("id")
	ev, err := h.access.View(c.Request.Context(), middleware.CurrentIdentity(c), id, accessToken(c, id))
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, ev)
}

type unlockReq struct {
	Password string `json:"password" binding:"required"`
}

// POST /api/public/events/:id/unlock
func (h *PublicController) Unlock(c *gin.Context) {
	var req unlockReq
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err, "body must be {\"password\": string}")
		return
	}
	id := c.Param("id")
	token, err := h.access.Unlock(c.Request.Context(), middleware.CurrentIdentity(c), id, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrWrongPassword) {
			logger.WithContext(c.Request.Context()).Info("event unlock rejected",
				zap.String("event_id", id),
				zap.String("client_ip", c.ClientIP()),
			)
		}
		respondError(c, err)
		return
	}

	// Cookie không có Max-Age: hết hạn khi đóng trình duyệt
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(utils.EventAccessCookie(id), token, 0, "/", "", h.secure, true)
	response.OK(c, gin.H{"unlocked": true})
}

// POST /api/public/events/:id/rsvp
func (h *PublicController) RSVP(c *gin.Context) {
	var in services.GuestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindFailed(c, err, "invalid rsvp payload")
		return
	}
	id := c.Param("id")
	g, err := h.guests.Create(c.Request.Context(), middleware.CurrentIdentity(c), id, accessToken(c, id), in)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, g)
}
