package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dishevent/dishevent-server/middleware"
	"github.com/dishevent/dishevent-server/response"
	"github.com/dishevent/dishevent-server/services"
)

type GuestController struct {
	guests *services.GuestService
}

func NewGuestController(guests *services.GuestService) *GuestController {
	return &GuestController{guests: guests}
}

// GET /api/events/:id/guests
func (h *GuestController) List(c *gin.Context) {
	guests, err := h.guests.List(c.Request.Context(), middleware.CurrentIdentity(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithTotal(guests, len(guests)))
}

// GET /api/events/:id/guests/stream
func (h *GuestController) Stream(c *gin.Context) {
	feed, err := h.guests.Subscribe(c.Request.Context(), middleware.CurrentIdentity(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	streamFeed(c, feed, nil)
}

// POST /api/events/:id/guests lets the owner record a guest by hand.
func (h *GuestController) Create(c *gin.Context) {
	var in services.GuestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindFailed(c, err, "invalid guest payload")
		return
	}
	actor := middleware.CurrentIdentity(c)
	g, err := h.guests.Create(c.Request.Context(), actor, c.Param("id"), "", in)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, g)
}

// PATCH /api/events/:id/guests/:guestId
func (h *GuestController) Update(c *gin.Context) {
	var patch services.GuestPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		bindFailed(c, err, "invalid guest payload")
		return
	}
	g, err := h.guests.Update(c.Request.Context(), middleware.CurrentIdentity(c), c.Param("id"), c.Param("guestId"), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, g)
}

// DELETE /api/events/:id/guests/:guestId
func (h *GuestController) Delete(c *gin.Context) {
	guestID := c.Param("guestId")
	if err := h.guests.Delete(c.Request.Context(), middleware.CurrentIdentity(c), c.Param("id"), guestID); err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, gin.H{"id": guestID, "deleted": true})
}
