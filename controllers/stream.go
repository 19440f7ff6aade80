package controllers

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dishevent/dishevent-server/logger"
	"github.com/dishevent/dishevent-server/realtime"
)

const keepaliveInterval = 15 * time.Second

// streamFeed writes every snapshot as an SSE "snapshot" event until the
// client goes away or stop reports true. The feed is always closed.
func streamFeed[T any](c *gin.Context, feed *realtime.Feed[T], stop func(T) bool) {
	defer feed.Close()
	ctx := c.Request.Context()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case snap, ok := <-feed.Updates():
			if !ok {
				return
			}
			data, err := json.Marshal(snap)
			if err != nil {
				logger.WithContext(ctx).Error("encode snapshot", zap.Error(err))
				return
			}
			c.Writer.WriteString(fmt.Sprintf("event: snapshot\ndata: %s\n\n", data))
			c.Writer.Flush()
			if stop != nil && stop(snap) {
				return
			}

		case <-keepalive.C:
			c.Writer.WriteString(":keepalive\n\n")
			c.Writer.Flush()
		}
	}
}
