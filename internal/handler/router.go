package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"hr-workflow/internal/apperr"
	"hr-workflow/internal/calendar"
	"hr-workflow/internal/i18n"
	"hr-workflow/internal/mattermost"
	"hr-workflow/internal/notify"
	"hr-workflow/internal/workflow"
)

// actorKey is the gin context key holding the authenticated user id.
const actorKey = "actor_id"

// Deps are the services the HTTP surface delegates to.
type Deps struct {
	Engine     *workflow.Engine
	Inbox      *notify.Inbox
	Hub        *notify.Hub
	Calendar   *calendar.Projector
	Mattermost *mattermost.Client
	BotURL     string
	// Ready reports whether backing stores are reachable.
	Ready     func(ctx context.Context) error
	Heartbeat time.Duration
}

// NewRouter wires public probes, the authenticated REST API and the
// Mattermost interactive callbacks.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), LoggingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if d.Ready != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
			defer cancel()
			if err := d.Ready(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	api := r.Group("/")
	api.Use(ActorMiddleware())

	rh := &RequestHandler{engine: d.Engine}
	api.POST("/requests", rh.Create)
	api.GET("/requests", rh.List)
	api.GET("/requests/:id", rh.Get)
	api.GET("/requests/:id/history", rh.History)
	api.PATCH("/requests/:id/status", rh.UpdateStatus)
	api.DELETE("/requests/:id", rh.Delete)

	nh := &NotificationHandler{inbox: d.Inbox, hub: d.Hub, heartbeat: d.Heartbeat}
	api.GET("/notifications", nh.List)
	api.GET("/notifications/stream", nh.Stream)
	api.POST("/notifications/read-all", nh.MarkAllRead)
	api.POST("/notifications/:id/read", nh.MarkRead)
	api.DELETE("/notifications/:id", nh.Delete)

	ch := &CalendarHandler{projector: d.Calendar}
	api.GET("/calendar", ch.Own)
	api.GET("/calendar/team", ch.Team)
	api.GET("/calendar/all", ch.All)

	mh := NewMattermostHandler(d.Engine, d.Mattermost, d.BotURL)
	r.POST("/api/mattermost/actions/approve", mh.HandleApprove)
	r.POST("/api/mattermost/actions/reject", mh.HandleReject)
	r.POST("/api/mattermost/actions/reject-submit", mh.HandleRejectSubmit)

	return r
}

// LoggingMiddleware logs method, path, status and latency of every request.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Printf("[http] %s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// ActorMiddleware resolves the calling user from X-User-ID and the message
// locale from Accept-Language.
func ActorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := strings.TrimSpace(c.GetHeader("X-User-ID"))
		if actorID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(actorKey, actorID)
		if lang := c.GetHeader("Accept-Language"); lang != "" {
			c.Request = c.Request.WithContext(i18n.WithLocale(c.Request.Context(), lang))
		}
		c.Next()
	}
}

// ActorID returns the authenticated user id from the gin context.
func ActorID(c *gin.Context) string {
	v, _ := c.Get(actorKey)
	s, _ := v.(string)
	return s
}

func writeError(c *gin.Context, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	status := apperr.HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("ERROR [http] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": msg, "code": apperr.Code(err)})
}
