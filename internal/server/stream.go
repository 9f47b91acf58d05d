package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const streamHeartbeatInterval = 30 * time.Second

type streamEventPayload struct {
	Subreddit string `json:"subreddit"`
	User      string `json:"user"`
	Moderator string `json:"moderator"`
	Timestamp int64  `json:"timestamp_ms"`
}

// handleStream serves server-sent events announcing note changes for one
// subreddit. The connection stays open until the client disconnects.
func (h *httpHandler) handleStream(c *gin.Context) {
	if _, err := h.sessions.ValidateRequest(c.Request); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	subreddit := c.Param("subreddit")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming_unsupported"})
		return
	}

	// Subscribe before the headers go out so no event published after the
	// client sees the response can be missed.
	events, cleanup := h.realtime.Subscribe(c.Request.Context(), subreddit)
	defer cleanup()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(streamHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(c.Writer, "event: %s\ndata: {}\n\n", realtimeEventHeartbeat)
			flusher.Flush()
		case message, open := <-events:
			if !open {
				return
			}
			data, err := json.Marshal(streamEventPayload{
				Subreddit: message.Subreddit,
				User:      message.User,
				Moderator: message.Moderator,
				Timestamp: message.Timestamp.UnixMilli(),
			})
			if err != nil {
				h.logger.Error("failed to encode stream event", zap.Error(err))
				continue
			}
			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", message.EventType, data)
			flusher.Flush()
		}
	}
}
