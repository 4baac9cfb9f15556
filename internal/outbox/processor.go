// Package outbox runs the side effects of committed request events. Each
// event id stays listed on its request until notifications and the calendar
// projection have both been applied, so a crash or failure is repaired by the
// next sweep.
package outbox

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"hr-workflow/internal/model"
	"hr-workflow/internal/store"
)

type Source interface {
	GetRequest(ctx context.Context, id string) (*model.Request, error)
	ListRequests(ctx context.Context, f store.RequestFilter) ([]*model.Request, error)
	ClearPending(ctx context.Context, requestID, eventID string) error
}

type Dispatcher interface {
	Dispatch(ctx context.Context, req *model.Request, ev model.Event) ([]*model.Notification, error)
}

type Projector interface {
	Apply(ctx context.Context, req *model.Request) error
}

// NotificationCleaner and CalendarCleaner undo side effects written for a
// request that was deleted while its event was being processed.
type NotificationCleaner interface {
	DeleteByRequest(ctx context.Context, requestID string) (int64, error)
}

type CalendarCleaner interface {
	DeleteCalendarBySource(ctx context.Context, requestID string) (int64, error)
}

type Options struct {
	Workers       int
	QueueSize     int
	Notifications NotificationCleaner
	Calendar      CalendarCleaner
}

type job struct {
	requestID string
	eventID   string
}

type Processor struct {
	source     Source
	dispatcher Dispatcher
	projector  Projector
	notes      NotificationCleaner
	calendar   CalendarCleaner
	workers    int
	queue      chan job
}

func NewProcessor(source Source, dispatcher Dispatcher, projector Projector, opts Options) *Processor {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	return &Processor{
		source:     source,
		dispatcher: dispatcher,
		projector:  projector,
		notes:      opts.Notifications,
		calendar:   opts.Calendar,
		workers:    opts.Workers,
		queue:      make(chan job, opts.QueueSize),
	}
}

// Enqueue schedules an event without blocking. When the queue is full the
// event stays pending and the next sweep picks it up.
func (p *Processor) Enqueue(requestID, eventID string) {
	select {
	case p.queue <- job{requestID: requestID, eventID: eventID}:
	default:
		log.Printf("WARN [outbox] queue full, deferring %s/%s to sweep", requestID, eventID)
	}
}

// Run starts the workers and blocks until ctx is done.
func (p *Processor) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case j := <-p.queue:
					if err := p.Process(ctx, j.requestID, j.eventID); err != nil {
						log.Printf("ERROR [outbox] process %s/%s: %v", j.requestID, j.eventID, err)
					}
				}
			}
		}()
	}
	wg.Wait()
}

// Process applies the side effects of one event. It is safe to call more than
// once for the same event.
func (p *Processor) Process(ctx context.Context, requestID, eventID string) error {
	req, err := p.source.GetRequest(ctx, requestID)
	if err != nil {
		return fmt.Errorf("get request: %w", err)
	}
	if req == nil || !req.HasPending(eventID) {
		return nil
	}
	ev := req.EventByID(eventID)
	if ev == nil {
		log.Printf("WARN [outbox] request %s lists unknown pending event %s", requestID, eventID)
		return p.source.ClearPending(ctx, requestID, eventID)
	}

	if _, err := p.dispatcher.Dispatch(ctx, req, *ev); err != nil {
		return fmt.Errorf("dispatch notifications: %w", err)
	}
	if err := p.projector.Apply(ctx, req); err != nil {
		return fmt.Errorf("project calendar: %w", err)
	}

	// A delete that committed before this point will not see the rows just
	// written, so they are removed here instead.
	cur, err := p.source.GetRequest(ctx, requestID)
	if err != nil {
		return fmt.Errorf("recheck request: %w", err)
	}
	if cur == nil {
		return p.dropSideEffects(ctx, requestID)
	}
	if err := p.source.ClearPending(ctx, requestID, eventID); err != nil {
		return fmt.Errorf("clear pending: %w", err)
	}
	return nil
}

func (p *Processor) dropSideEffects(ctx context.Context, requestID string) error {
	if p.notes != nil {
		if _, err := p.notes.DeleteByRequest(ctx, requestID); err != nil {
			return fmt.Errorf("drop notifications of deleted request: %w", err)
		}
	}
	if p.calendar != nil {
		if _, err := p.calendar.DeleteCalendarBySource(ctx, requestID); err != nil {
			return fmt.Errorf("drop calendar events of deleted request: %w", err)
		}
	}
	log.Printf("[outbox] request %s was deleted during processing; side effects dropped", requestID)
	return nil
}

// Sweep replays every pending event and returns how many it completed.
func (p *Processor) Sweep(ctx context.Context) (int, error) {
	reqs, err := p.source.ListRequests(ctx, store.RequestFilter{WithPending: true})
	if err != nil {
		return 0, fmt.Errorf("list pending requests: %w", err)
	}
	done := 0
	for _, req := range reqs {
		for _, eventID := range req.PendingEvents {
			if err := p.Process(ctx, req.ID, eventID); err != nil {
				log.Printf("ERROR [outbox] sweep %s/%s: %v", req.ID, eventID, err)
				continue
			}
			done++
		}
	}
	if done > 0 {
		log.Printf("[outbox] sweep completed %d pending events", done)
	}
	return done, nil
}

// SweepEvery sweeps on every tick until ctx is done. Each extra pass, such
// as calendar reconciliation, runs after the sweep.
func (p *Processor) SweepEvery(ctx context.Context, interval time.Duration, extra ...func(context.Context) error) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.Sweep(ctx); err != nil {
				log.Printf("ERROR [outbox] sweep: %v", err)
			}
			for _, fn := range extra {
				if err := fn(ctx); err != nil {
					log.Printf("ERROR [outbox] periodic pass: %v", err)
				}
			}
		}
	}
}
