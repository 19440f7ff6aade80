package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dishevent/dishevent-server/logger"
	"github.com/dishevent/dishevent-server/models"
	"github.com/dishevent/dishevent-server/repository"
	"github.com/dishevent/dishevent-server/response"
)

const CtxEvent = "eventObj"

// CheckEventOwner chạy sau AuthSession; người khác đọc nhận 404, sửa nhận 403.
func CheckEventOwner(events repository.EventRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := CurrentIdentity(c)
		if actor.UserID == "" {
			response.Abort(c, response.ErrCodeUnauthorized, "sign in required")
			return
		}

		ev, err := events.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			logger.WithContext(c.Request.Context()).Error("load event",
				zap.String("event_id", c.Param("id")),
				zap.Error(err),
			)
			response.Abort(c, response.ErrCodeInternalError, "could not load event")
			return
		}
		if ev == nil {
			response.Abort(c, response.ErrCodeNotFound, "event not found")
			return
		}
		if ev.OwnerID != actor.UserID {
			if isRead(c.Request.Method) {
				response.Abort(c, response.ErrCodeNotFound, "event not found")
				return
			}
			response.Abort(c, response.ErrCodeForbidden, "only the event owner can do this")
			return
		}

		c.Set(CtxEvent, ev)
		c.Next()
	}
}

// EventFromContext returns the event set by CheckEventOwner.
func EventFromContext(c *gin.Context) (*models.Event, bool) {
	v, ok := c.Get(CtxEvent)
	if !ok {
		return nil, false
	}
	ev, ok := v.(*models.Event)
	return ev, ok
}

func isRead(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}
