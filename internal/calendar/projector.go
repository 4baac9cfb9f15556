// Package calendar keeps the calendar projection consistent with requests.
// Every TwoStage request that is not Rejected owns, or shares, exactly one
// calendar event per business key.
package calendar

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"hr-workflow/internal/apperr"
	"hr-workflow/internal/directory"
	"hr-workflow/internal/i18n"
	"hr-workflow/internal/model"
	"hr-workflow/internal/store"
	"hr-workflow/internal/telemetry"
)

type Store interface {
	InsertCalendarEvent(ctx context.Context, e *model.CalendarEvent) (bool, error)
	FindCalendarEvent(ctx context.Context, key model.CalendarKey) (*model.CalendarEvent, error)
	ListCalendarEvents(ctx context.Context, f store.CalendarFilter) ([]*model.CalendarEvent, error)
	SetCalendarSource(ctx context.Context, id, sourceRequestID string) error
	DeleteCalendarEvent(ctx context.Context, id string) error
}

type RequestLister interface {
	ListRequests(ctx context.Context, f store.RequestFilter) ([]*model.Request, error)
}

type Projector struct {
	store    Store
	requests RequestLister
	dir      directory.Directory
	now      func() time.Time
	writes   metric.Int64Counter
}

func NewProjector(s Store, requests RequestLister, dir directory.Directory) *Projector {
	return &Projector{
		store:    s,
		requests: requests,
		dir:      dir,
		now:      time.Now,
		writes:   telemetry.Counter(telemetry.Meter("hr-workflow/calendar"), "hr.calendar.writes", "Calendar projection writes"),
	}
}

// Apply brings the calendar in line with the current state of req.
func (p *Projector) Apply(ctx context.Context, req *model.Request) error {
	if req.Category != model.CategoryTwoStage {
		return nil
	}
	if req.Qualifies() {
		return p.ensure(ctx, req)
	}

	key := req.CalendarKey()
	e, err := p.store.FindCalendarEvent(ctx, key)
	if err != nil {
		return fmt.Errorf("find calendar event: %w", err)
	}
	if e == nil || e.SourceRequestID != req.ID {
		return nil
	}
	if err := p.store.DeleteCalendarEvent(ctx, e.ID); err != nil {
		return fmt.Errorf("delete calendar event: %w", err)
	}
	p.count(ctx, "delete")

	// another qualifying request may share the key
	heir, err := p.heir(ctx, key)
	if err != nil {
		return err
	}
	if heir != nil {
		return p.ensure(ctx, heir)
	}
	return nil
}

// ensure creates the event for req's key unless one already exists.
func (p *Projector) ensure(ctx context.Context, req *model.Request) error {
	existing, err := p.store.FindCalendarEvent(ctx, req.CalendarKey())
	if err != nil {
		return fmt.Errorf("find calendar event: %w", err)
	}
	if existing != nil {
		return nil
	}
	inserted, err := p.store.InsertCalendarEvent(ctx, p.eventFor(ctx, req))
	if err != nil {
		return fmt.Errorf("insert calendar event: %w", err)
	}
	if inserted {
		p.count(ctx, "create")
	}
	return nil
}

func (p *Projector) heir(ctx context.Context, key model.CalendarKey) (*model.Request, error) {
	reqs, err := p.requests.ListRequests(ctx, store.RequestFilter{
		RequesterIDs: []string{key.OwnerUserID},
		Category:     model.CategoryTwoStage,
	})
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	desired := desiredEvents(reqs)
	return desired[key], nil
}

func (p *Projector) eventFor(ctx context.Context, req *model.Request) *model.CalendarEvent {
	return &model.CalendarEvent{
		OwnerUserID:     req.RequesterID,
		Title:           i18n.T(ctx, "calendar.title."+string(req.CalendarType), map[string]any{"Type": req.Type}),
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		AllDay:          true,
		EventType:       req.CalendarType,
		SourceRequestID: req.ID,
		CreatedAt:       p.now().UTC(),
	}
}

func (p *Projector) count(ctx context.Context, op string) {
	p.writes.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

// desiredEvents maps each business key to the request that should source it:
// the oldest qualifying request with that key.
func desiredEvents(reqs []*model.Request) map[model.CalendarKey]*model.Request {
	sorted := append([]*model.Request(nil), reqs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	out := make(map[model.CalendarKey]*model.Request)
	for _, r := range sorted {
		if !r.Qualifies() {
			continue
		}
		if _, ok := out[r.CalendarKey()]; !ok {
			out[r.CalendarKey()] = r
		}
	}
	return out
}

// ReconcileStats counts the writes a reconciliation pass made.
type ReconcileStats struct {
	Created   int `json:"created"`
	Deleted   int `json:"deleted"`
	Repointed int `json:"repointed"`
}

func (s ReconcileStats) Writes() int {
	return s.Created + s.Deleted + s.Repointed
}

// Reconcile rebuilds the projection from all TwoStage requests. It is
// idempotent: a second pass right after the first writes nothing.
func (p *Projector) Reconcile(ctx context.Context) (ReconcileStats, error) {
	var stats ReconcileStats

	reqs, err := p.requests.ListRequests(ctx, store.RequestFilter{Category: model.CategoryTwoStage})
	if err != nil {
		return stats, fmt.Errorf("list requests: %w", err)
	}
	desired := desiredEvents(reqs)
	valid := make(map[string]model.CalendarKey)
	for _, r := range reqs {
		if r.Qualifies() {
			valid[r.ID] = r.CalendarKey()
		}
	}

	events, err := p.store.ListCalendarEvents(ctx, store.CalendarFilter{})
	if err != nil {
		return stats, fmt.Errorf("list calendar events: %w", err)
	}

	covered := make(map[model.CalendarKey]bool)
	for _, e := range events {
		key := e.Key()
		want, ok := desired[key]
		if !ok || covered[key] {
			if err := p.store.DeleteCalendarEvent(ctx, e.ID); err != nil {
				return stats, fmt.Errorf("delete calendar event %s: %w", e.ID, err)
			}
			stats.Deleted++
			p.count(ctx, "delete")
			continue
		}
		covered[key] = true
		if srcKey, ok := valid[e.SourceRequestID]; ok && srcKey == key {
			continue
		}
		if err := p.store.SetCalendarSource(ctx, e.ID, want.ID); err != nil {
			return stats, fmt.Errorf("repoint calendar event %s: %w", e.ID, err)
		}
		stats.Repointed++
		p.count(ctx, "repoint")
	}

	keys := make([]model.CalendarKey, 0, len(desired))
	for key := range desired {
		if !covered[key] {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return desired[keys[i]].ID < desired[keys[j]].ID })
	for _, key := range keys {
		inserted, err := p.store.InsertCalendarEvent(ctx, p.eventFor(ctx, desired[key]))
		if err != nil {
			return stats, fmt.Errorf("insert calendar event: %w", err)
		}
		if inserted {
			stats.Created++
			p.count(ctx, "create")
		}
	}

	if stats.Writes() > 0 {
		log.Printf("[calendar] reconcile: created=%d deleted=%d repointed=%d", stats.Created, stats.Deleted, stats.Repointed)
	}
	return stats, nil
}

type Scope string

const (
	ScopeOwn  Scope = "own"
	ScopeTeam Scope = "team"
	ScopeAll  Scope = "all"
)

type Query struct {
	ViewerID string
	Scope    Scope
	// ChefID selects whose team an admin looks at. Chefs always see their own.
	ChefID string
	From   string
	To     string
}

// Query is the read-only calendar surface.
func (p *Projector) Query(ctx context.Context, q Query) ([]*model.CalendarEvent, error) {
	for _, d := range []string{q.From, q.To} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(time.DateOnly, d); err != nil {
			return nil, apperr.Validation("date %q must be YYYY-MM-DD", d)
		}
	}
	if q.From != "" && q.To != "" && q.To < q.From {
		return nil, apperr.Validation("range end %s is before start %s", q.To, q.From)
	}

	f := store.CalendarFilter{From: q.From, To: q.To}
	switch q.Scope {
	case ScopeOwn, "":
		f.OwnerIDs = []string{q.ViewerID}
	case ScopeTeam:
		role, err := p.dir.RoleOf(ctx, q.ViewerID)
		if err != nil {
			return nil, fmt.Errorf("resolve viewer: %w", err)
		}
		chef := q.ViewerID
		switch role {
		case model.RoleChef:
		case model.RoleAdmin:
			if q.ChefID != "" {
				chef = q.ChefID
			}
		default:
			return nil, apperr.Forbidden("%s has no team calendar", q.ViewerID)
		}
		subs, err := p.dir.SubordinatesOf(ctx, chef)
		if err != nil {
			return nil, fmt.Errorf("resolve subordinates: %w", err)
		}
		if len(subs) == 0 {
			return []*model.CalendarEvent{}, nil
		}
		f.OwnerIDs = subs
	case ScopeAll:
		role, err := p.dir.RoleOf(ctx, q.ViewerID)
		if err != nil {
			return nil, fmt.Errorf("resolve viewer: %w", err)
		}
		if role != model.RoleAdmin {
			return nil, apperr.Forbidden("only admins can view the full calendar")
		}
	default:
		return nil, apperr.Validation("unknown calendar scope %q", q.Scope)
	}

	events, err := p.store.ListCalendarEvents(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list calendar events: %w", err)
	}
	if events == nil {
		events = []*model.CalendarEvent{}
	}
	return events, nil
}
