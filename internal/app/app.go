// Package app wires configuration, stores and services into the process
// shared by the HTTP server and the operator CLI.
package app

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"

	"hr-workflow/internal/calendar"
	"hr-workflow/internal/config"
	"hr-workflow/internal/directory"
	"hr-workflow/internal/handler"
	"hr-workflow/internal/mattermost"
	"hr-workflow/internal/notify"
	"hr-workflow/internal/outbox"
	"hr-workflow/internal/store"
	"hr-workflow/internal/store/memory"
	"hr-workflow/internal/workflow"
)

type requestBackend interface {
	workflow.RequestStore
	outbox.Source
}

type notificationBackend interface {
	notify.Store
	notify.InboxStore
	workflow.NotificationCleaner
}

type calendarBackend interface {
	calendar.Store
	workflow.CalendarCleaner
}

type App struct {
	Config     *config.Config
	Directory  directory.Directory
	Engine     *workflow.Engine
	Processor  *outbox.Processor
	Projector  *calendar.Projector
	Inbox      *notify.Inbox
	Hub        *notify.Hub
	Mattermost *mattermost.Client

	pings   []func(context.Context) error
	closers []func(context.Context)
}

// New connects the configured backends and builds every service.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	requests, notifications, events, err := a.openStores(ctx)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	dir, err := a.openDirectory(ctx)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.Directory = dir

	a.Hub = notify.NewHub(cfg.HubBuffer)
	pushers := []notify.Pusher{a.Hub}
	a.Mattermost = mattermost.NewClient(cfg.MattermostURL, cfg.NotifyBotToken)
	if a.Mattermost.Enabled() {
		pushers = append(pushers, notify.NewMattermostPusher(a.Mattermost, cfg.BotURL))
		log.Printf("[app] Mattermost notifications enabled via %s", cfg.MattermostURL)
	}

	a.Projector = calendar.NewProjector(events, requests, dir)
	a.Inbox = notify.NewInbox(notifications)
	a.Engine = workflow.NewEngine(requests, notifications, events, dir, workflow.Options{
		DisableAdminOverride: !cfg.AllowAdminOverride,
		Backoff:              workflow.DefaultBackoff(cfg.StoreRetryMaxElapsed),
	})
	a.Processor = outbox.NewProcessor(requests, notify.NewDispatcher(notifications, dir, pushers...), a.Projector, outbox.Options{
		Workers:       cfg.OutboxWorkers,
		QueueSize:     cfg.OutboxQueueSize,
		Notifications: notifications,
		Calendar:      events,
	})
	a.Engine.SetPublisher(a.Processor)
	return a, nil
}

func (a *App) openStores(ctx context.Context) (requestBackend, notificationBackend, calendarBackend, error) {
	switch a.Config.StoreBackend {
	case "memory":
		log.Printf("WARN [app] using the in-memory store; data is lost on exit")
		mem := memory.New()
		return mem, mem, mem, nil
	case "mongo", "":
	default:
		return nil, nil, nil, fmt.Errorf("unknown store backend %q", a.Config.StoreBackend)
	}

	db, err := store.NewMongoDB(ctx, store.MongoConfig{URI: a.Config.MongoURI, Database: a.Config.MongoDB})
	if err != nil {
		return nil, nil, nil, err
	}
	a.pings = append(a.pings, db.Ping)
	a.closers = append(a.closers, func(ctx context.Context) { _ = db.Close(ctx) })

	requests, err := store.NewRequestStore(ctx, db)
	if err != nil {
		return nil, nil, nil, err
	}
	notifications, err := store.NewNotificationStore(ctx, db)
	if err != nil {
		return nil, nil, nil, err
	}
	events, err := store.NewCalendarStore(ctx, db)
	if err != nil {
		return nil, nil, nil, err
	}
	return requests, notifications, events, nil
}

func (a *App) openDirectory(ctx context.Context) (directory.Directory, error) {
	if a.Config.DirectoryDB == "" {
		employees, err := directory.ParseSeed(a.Config.DirectorySeed)
		if err != nil {
			return nil, err
		}
		log.Printf("[app] static directory with %d employees", len(employees))
		return directory.NewStatic(employees...), nil
	}

	pg, err := directory.NewPostgres(ctx, a.Config.DirectoryDB)
	if err != nil {
		return nil, err
	}
	a.pings = append(a.pings, pg.Ping)
	a.closers = append(a.closers, func(context.Context) { pg.Close() })
	if err := pg.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return pg, nil
}

// Router builds the HTTP surface over the app's services.
func (a *App) Router() *gin.Engine {
	return handler.NewRouter(handler.Deps{
		Engine:     a.Engine,
		Inbox:      a.Inbox,
		Hub:        a.Hub,
		Calendar:   a.Projector,
		Mattermost: a.Mattermost,
		BotURL:     a.Config.BotURL,
		Ready:      a.Ready,
	})
}

// Ready pings every external backend.
func (a *App) Ready(ctx context.Context) error {
	for _, ping := range a.pings {
		if err := ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Reconcile is the periodic calendar repair pass.
func (a *App) Reconcile(ctx context.Context) error {
	_, err := a.Projector.Reconcile(ctx)
	return err
}

// Close releases backend connections in reverse order of opening.
func (a *App) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i](ctx)
	}
	a.closers = nil
}
