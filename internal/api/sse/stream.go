package sse

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"
)

// Handler streams result events to one client, with a ping every heartbeat
// so idle proxies keep the connection open.
func (h *Hub) Handler(heartbeat time.Duration) gin.HandlerFunc {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	return func(c *gin.Context) {
		client := h.Subscribe()
		defer h.Unsubscribe(client)

		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		// 先发一次心跳，便于客户端确认连接
		c.SSEvent(EventPing, gin.H{})
		c.Writer.Flush()

		ctxDone := c.Request.Context().Done()
		c.Stream(func(w io.Writer) bool {
			select {
			case <-ctxDone:
				return false
			case msg, ok := <-client:
				if !ok {
					return false
				}
				c.SSEvent(EventResult, string(msg))
				return true
			case <-ticker.C:
				c.SSEvent(EventPing, gin.H{})
				return true
			}
		})
	}
}
