package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dishevent/dishevent-server/middleware"
	"github.com/dishevent/dishevent-server/models"
	"github.com/dishevent/dishevent-server/response"
	"github.com/dishevent/dishevent-server/services"
)

type EventController struct {
	events *services.EventService
}

func NewEventController(events *services.EventService) *EventController {
	return &EventController{events: events}
}

// GET /api/events?status=&search=&sortBy=&sortOrder=
func (h *EventController) List(c *gin.Context) {
	var filter models.EventFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		bindFailed(c, err, "invalid filter")
		return
	}
	events, err := h.events.List(c.Request.Context(), middleware.CurrentIdentity(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithTotal(events, len(events)))
}

// GET /api/events/stream pushes the filtered event list on every change.
func (h *EventController) Stream(c *gin.Context) {
	var filter models.EventFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		bindFailed(c, err, "invalid filter")
		return
	}
	feed, err := h.events.Subscribe(c.Request.Context(), middleware.CurrentIdentity(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	streamFeed(c, feed, nil)
}

// GET /api/events/:id
func (h *EventController) Get(c *gin.Context) {
	ev, err := h.events.GetByID(c.Request.Context(), middleware.CurrentIdentity(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("ETag", etag(ev.Version))
	response.OK(c, ev)
}

// GET /api/events/:id/stream ends after the event is deleted.
func (h *EventController) Watch(c *gin.Context) {
	feed, err := h.events.Watch(c.Request.Context(), middleware.CurrentIdentity(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	streamFeed(c, feed, func(ev *models.Event) bool { return ev == nil })
}

// POST /api/events
func (h *EventController) Create(c *gin.Context) {
	var in services.EventInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindFailed(c, err, "invalid event payload")
		return
	}
	ev, err := h.events.Create(c.Request.Context(), middleware.CurrentIdentity(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("ETag", etag(ev.Version))
	response.Created(c, ev)
}

// PUT|PATCH /api/events/:id. An If-Match header turns the write into a
// compare-and-swap on the event version.
func (h *EventController) Update(c *gin.Context) {
	expected, ok := parseIfMatch(c.GetHeader("If-Match"))
	if !ok {
		badRequest(c, "If-Match must be a quoted event version")
		return
	}
	var patch services.EventPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		bindFailed(c, err, "invalid event payload")
		return
	}
	ev, err := h.events.Update(c.Request.Context(), middleware.CurrentIdentity(c), c.Param("id"), patch, expected)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("ETag", etag(ev.Version))
	response.OK(c, ev)
}

// DELETE /api/events/:id
func (h *EventController) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.events.Delete(c.Request.Context(), middleware.CurrentIdentity(c), id); err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, gin.H{"id": id, "deleted": true})
}

func etag(version int64) string {
	return `"` + strconv.FormatInt(version, 10) + `"`
}

// parseIfMatch accepts "", `"3"`, `W/"3"` and a bare 3. A missing header
// yields nil.
func parseIfMatch(h string) (*int64, bool) {
	h = strings.TrimSpace(h)
	if h == "" || h == "*" {
		return nil, true
	}
	h = strings.TrimPrefix(h, "W/")
	h = strings.Trim(h, `"`)
	v, err := strconv.ParseInt(h, 10, 64)
	if err != nil || v < 1 {
		return nil, false
	}
	return &v, true
}
