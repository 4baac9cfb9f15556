package handler

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"hr-workflow/internal/apperr"
	"hr-workflow/internal/notify"
)

type NotificationHandler struct {
	inbox     *notify.Inbox
	hub       *notify.Hub
	heartbeat time.Duration
}

// List handles GET /notifications.
func (h *NotificationHandler) List(c *gin.Context) {
	unread := false
	if v := c.Query("unread"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(c, apperr.Validation("unread must be a boolean"))
			return
		}
		unread = b
	}
	limit, err := queryLimit(c)
	if err != nil {
		writeError(c, err)
		return
	}
	page, err := h.inbox.List(c.Request.Context(), ActorID(c), unread, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// MarkRead handles POST /notifications/:id/read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	if err := h.inbox.MarkRead(c.Request.Context(), ActorID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkAllRead handles POST /notifications/read-all.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	n, err := h.inbox.MarkAllRead(c.Request.Context(), ActorID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

// Delete handles DELETE /notifications/:id.
func (h *NotificationHandler) Delete(c *gin.Context) {
	if err := h.inbox.Delete(c.Request.Context(), ActorID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Stream handles GET /notifications/stream, a Server-Sent Events session
// that receives the caller's notifications as they are created.
func (h *NotificationHandler) Stream(c *gin.Context) {
	if h.hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event stream unavailable"})
		return
	}
	ctx := c.Request.Context()
	events := h.hub.Subscribe(ctx, ActorID(c))

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-store")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	interval := h.heartbeat
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.SSEvent("ready", gin.H{"at": time.Now().UTC().Format(time.RFC3339)})
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case n, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent("notification", n)
			return true
		case <-ticker.C:
			c.SSEvent("heartbeat", gin.H{"at": time.Now().UTC().Format(time.RFC3339)})
			return true
		}
	})
}
