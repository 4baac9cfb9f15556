package app

import (
	"bytes"
	"context"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hr-workflow/internal/calendar"
	"hr-workflow/internal/config"
	"hr-workflow/internal/workflow"
)

func memoryConfig() *config.Config {
	return &config.Config{
		StoreBackend:         "memory",
		DirectorySeed:        "admin-1:admin,chef-1:chef,u-1:user:chef-1",
		AllowAdminOverride:   true,
		OutboxWorkers:        1,
		OutboxQueueSize:      8,
		HubBuffer:            4,
		StoreRetryMaxElapsed: time.Second,
	}
}

func TestNewWithMemoryBackend(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	a, err := New(ctx, memoryConfig())
	require.NoError(t, err)
	defer a.Close(ctx)

	require.NoError(t, a.Ready(ctx))
	assert.False(t, a.Mattermost.Enabled())

	res, err := a.Engine.Create(ctx, workflow.CreateInput{
		RequesterID: "u-1",
		Type:        "Formation Go",
		StartDate:   "2025-09-01",
		EndDate:     "2025-09-02",
		WorkingDays: 2,
	})
	require.NoError(t, err)

	n, err := a.Processor.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	page, err := a.Inbox.List(ctx, "chef-1", false, 0)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, res.Request.ID, page.Items[0].ReferenceRequestID)

	events, err := a.Projector.Query(ctx, calendar.Query{ViewerID: "u-1"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, res.Request.ID, events[0].SourceRequestID)

	require.NoError(t, a.Reconcile(ctx))
	stats, err := a.Projector.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Writes())

	pending, err := a.Processor.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)

	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNewRejectsBadConfig(t *testing.T) {
	ctx := context.Background()

	cfg := memoryConfig()
	cfg.StoreBackend = "cassandra"
	_, err := New(ctx, cfg)
	assert.ErrorContains(t, err, "unknown store backend")

	cfg = memoryConfig()
	cfg.DirectorySeed = "x:boss"
	_, err = New(ctx, cfg)
	assert.ErrorContains(t, err, "unknown role")
}

func TestReconcileLogsOncePerPass(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, memoryConfig())
	require.NoError(t, err)
	defer a.Close(ctx)

	// Not swept, so the calendar event is still missing.
	_, err = a.Engine.Create(ctx, workflow.CreateInput{
		RequesterID: "u-1",
		Type:        "Congé annuel",
		StartDate:   "2025-08-04",
		EndDate:     "2025-08-08",
		WorkingDays: 5,
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	require.NoError(t, a.Reconcile(ctx))
	assert.Equal(t, 1, strings.Count(buf.String(), "reconcile"), buf.String())

	events, err := a.Projector.Query(ctx, calendar.Query{ViewerID: "u-1"})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
