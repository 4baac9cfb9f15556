// Package workflow owns the request state machine. It validates creation and
// status changes against the capability table, commits each change together
// with its event, and hands the event to the outbox for side effects.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"hr-workflow/internal/apperr"
	"hr-workflow/internal/directory"
	"hr-workflow/internal/model"
	"hr-workflow/internal/store"
	"hr-workflow/internal/telemetry"
)

// RequestStore is the persistence the engine needs.
type RequestStore interface {
	CreateRequest(ctx context.Context, req *model.Request) error
	GetRequest(ctx context.Context, id string) (*model.Request, error)
	ListRequests(ctx context.Context, f store.RequestFilter) ([]*model.Request, error)
	CommitTransition(ctx context.Context, req *model.Request, expectedVersion int64, ev model.Event) error
	DeleteRequest(ctx context.Context, id string) (bool, error)
}

type NotificationCleaner interface {
	DeleteByRequest(ctx context.Context, requestID string) (int64, error)
}

type CalendarCleaner interface {
	DeleteCalendarBySource(ctx context.Context, requestID string) (int64, error)
}

// Publisher receives committed events. Enqueue must not block.
type Publisher interface {
	Enqueue(requestID, eventID string)
}

type Options struct {
	// DisableAdminOverride forbids an admin from deciding a TwoStage request
	// that no chef has reviewed yet.
	DisableAdminOverride bool
	// Backoff builds the retry policy for transient store failures.
	Backoff func() backoff.BackOff
	Now     func() time.Time
}

type Engine struct {
	requests      RequestStore
	notifications NotificationCleaner
	calendar      CalendarCleaner
	dir           directory.Directory
	publisher     Publisher
	opts          Options

	tracer      trace.Tracer
	transitions metric.Int64Counter
	conflicts   metric.Int64Counter
}

func NewEngine(requests RequestStore, notifications NotificationCleaner, calendar CalendarCleaner, dir directory.Directory, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Backoff == nil {
		opts.Backoff = DefaultBackoff(10 * time.Second)
	}
	meter := telemetry.Meter("hr-workflow/workflow")
	return &Engine{
		requests:      requests,
		notifications: notifications,
		calendar:      calendar,
		dir:           dir,
		opts:          opts,
		tracer:        telemetry.Tracer("hr-workflow/workflow"),
		transitions:   telemetry.Counter(meter, "hr.workflow.transitions", "Committed request creations and status transitions"),
		conflicts:     telemetry.Counter(meter, "hr.workflow.conflicts", "Transitions rejected by a concurrent writer"),
	}
}

// SetPublisher attaches the outbox. It is set after construction because the
// outbox itself reads requests through the engine's store.
func (e *Engine) SetPublisher(p Publisher) {
	e.publisher = p
}

// DefaultBackoff returns an exponential policy bounded by maxElapsed.
func DefaultBackoff(maxElapsed time.Duration) func() backoff.BackOff {
	return func() backoff.BackOff {
		// BackOff values are stateful; build a fresh one per operation.
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = 50 * time.Millisecond
		bo.MaxElapsedTime = maxElapsed
		return bo
	}
}

// Result is the outcome of a create or transition. Replayed is set when a
// retried transition matched the last applied one and nothing was written.
type Result struct {
	Request  *model.Request
	Event    model.Event
	Replayed bool
}

type CreateInput struct {
	RequesterID string
	Type        string
	StartDate   string
	EndDate     string
	Description string
	Details     map[string]any
	WorkingDays int
	Source      model.Source
}

// Create validates input and stores a new Pending request with its creation event.
func (e *Engine) Create(ctx context.Context, in CreateInput) (res *Result, err error) {
	ctx, span := e.tracer.Start(ctx, "workflow.Create")
	defer func() { endSpan(span, err) }()

	in.RequesterID = strings.TrimSpace(in.RequesterID)
	in.Type = strings.TrimSpace(in.Type)
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	role, err := e.dir.RoleOf(ctx, in.RequesterID)
	if err != nil {
		return nil, fmt.Errorf("resolve requester: %w", err)
	}

	category, calType := Classify(in.Type)
	now := e.opts.Now().UTC()
	ev := model.Event{
		ID:        uuid.NewString(),
		Kind:      model.EventCreated,
		To:        model.StatusPending,
		ActorID:   in.RequesterID,
		ActorRole: role,
		At:        now,
	}
	source := in.Source
	if source == "" {
		source = model.SourceWeb
	}
	req := &model.Request{
		ID:            uuid.NewString(),
		RequesterID:   in.RequesterID,
		Category:      category,
		CalendarType:  calType,
		Type:          in.Type,
		Status:        model.StatusPending,
		StartDate:     in.StartDate,
		EndDate:       in.EndDate,
		WorkingDays:   in.WorkingDays,
		Description:   strings.TrimSpace(in.Description),
		Details:       in.Details,
		Source:        source,
		Events:        []model.Event{ev},
		PendingEvents: []string{ev.ID},
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := e.withRetry(ctx, func() error {
		return e.requests.CreateRequest(ctx, req)
	}); err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	e.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", string(model.EventCreated)),
		attribute.String("category", string(category)),
	))
	e.publish(req.ID, ev.ID)
	return &Result{Request: req, Event: ev}, nil
}

func validateCreate(in CreateInput) error {
	if in.RequesterID == "" {
		return apperr.Validation("requester is required")
	}
	if in.Type == "" {
		return apperr.Validation("type is required")
	}
	start, err := time.Parse(time.DateOnly, in.StartDate)
	if err != nil {
		return apperr.Validation("start date %q must be YYYY-MM-DD", in.StartDate)
	}
	end, err := time.Parse(time.DateOnly, in.EndDate)
	if err != nil {
		return apperr.Validation("end date %q must be YYYY-MM-DD", in.EndDate)
	}
	if end.Before(start) {
		return apperr.Validation("end date %s is before start date %s", in.EndDate, in.StartDate)
	}
	if in.WorkingDays < 1 {
		return apperr.Validation("working days must be at least 1, got %d", in.WorkingDays)
	}
	switch in.Source {
	case "", model.SourceWeb, model.SourceMobile:
	default:
		return apperr.Validation("unknown source %q", in.Source)
	}
	return nil
}

type TransitionInput struct {
	RequestID   string
	Outcome     model.Outcome
	ActorID     string
	Observation string
}

// Transition applies an approve or reject decision by the actor.
func (e *Engine) Transition(ctx context.Context, in TransitionInput) (res *Result, err error) {
	ctx, span := e.tracer.Start(ctx, "workflow.Transition", trace.WithAttributes(
		attribute.String("request.id", in.RequestID),
		attribute.String("outcome", string(in.Outcome)),
	))
	defer func() { endSpan(span, err) }()

	if !in.Outcome.Valid() {
		return nil, apperr.Validation("outcome must be approve or reject, got %q", in.Outcome)
	}
	if in.ActorID == "" {
		return nil, apperr.Validation("actor is required")
	}

	req, err := e.load(ctx, in.RequestID)
	if err != nil {
		return nil, err
	}

	role, err := e.dir.RoleOf(ctx, in.ActorID)
	if err != nil {
		return nil, fmt.Errorf("resolve actor: %w", err)
	}
	if !hasAuthority(role, req.Category) {
		return nil, apperr.Forbidden("%s cannot decide %s requests", role, req.Category)
	}
	if role == model.RoleChef {
		chef, err := e.dir.ChefOf(ctx, req.RequesterID)
		if err != nil {
			return nil, fmt.Errorf("resolve chef: %w", err)
		}
		if chef != in.ActorID {
			return nil, apperr.Forbidden("%s is not the chef of %s", in.ActorID, req.RequesterID)
		}
	}

	if last := req.LastTransition(); last != nil &&
		last.ActorID == in.ActorID && last.Outcome == in.Outcome && last.To == req.Status {
		if req.HasPending(last.ID) {
			e.publish(req.ID, last.ID)
		}
		return &Result{Request: req, Event: *last, Replayed: true}, nil
	}

	if req.Status.Terminal() {
		return nil, apperr.InvalidTransition("request %s is already %s", req.ID, req.Status)
	}
	r, ok := lookup(role, req.Category, req.Status, in.Outcome, !e.opts.DisableAdminOverride)
	if !ok {
		return nil, apperr.Forbidden("%s cannot %s a %s request in state %s", role, in.Outcome, req.Category, req.Status)
	}

	now := e.opts.Now().UTC()
	obs := strings.TrimSpace(in.Observation)
	ev := model.Event{
		ID:          uuid.NewString(),
		Kind:        model.EventTransitioned,
		From:        req.Status,
		To:          r.to,
		ActorID:     in.ActorID,
		ActorRole:   role,
		Outcome:     in.Outcome,
		Observation: obs,
		Override:    r.override,
		At:          now,
	}

	expected := req.Version
	next := req.Clone()
	next.Status = r.to
	next.UpdatedAt = now
	switch role {
	case model.RoleChef:
		next.ChefObservation = &obs
	case model.RoleAdmin:
		next.AdminResponse = &obs
	}

	attempts := 0
	err = e.withRetry(ctx, func() error {
		attempts++
		return e.requests.CommitTransition(ctx, next, expected, ev)
	})
	if errors.Is(err, store.ErrVersionMismatch) && attempts > 1 {
		// An earlier attempt may have been applied with its acknowledgement lost.
		if cur, lerr := e.requests.GetRequest(ctx, req.ID); lerr == nil && cur != nil && cur.EventByID(ev.ID) != nil {
			log.Printf("WARN [workflow] transition %s on %s committed before a failed acknowledgement", ev.ID, req.ID)
			next, err = cur, nil
		}
	}
	switch {
	case errors.Is(err, store.ErrVersionMismatch):
		e.conflicts.Add(ctx, 1)
		return nil, apperr.Conflict("request %s was modified concurrently", req.ID)
	case errors.Is(err, store.ErrMissing):
		return nil, apperr.NotFound("request %s not found", req.ID)
	case err != nil:
		return nil, fmt.Errorf("commit transition: %w", err)
	}

	if next.EventByID(ev.ID) == nil {
		next.Events = append(next.Events, ev)
		next.PendingEvents = append(next.PendingEvents, ev.ID)
	}

	e.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", string(model.EventTransitioned)),
		attribute.String("role", string(role)),
		attribute.String("outcome", string(in.Outcome)),
	))
	e.publish(next.ID, ev.ID)
	return &Result{Request: next, Event: ev}, nil
}

// Get returns a request the viewer is allowed to see.
func (e *Engine) Get(ctx context.Context, viewerID, id string) (*model.Request, error) {
	req, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := e.canView(ctx, viewerID, req); err != nil {
		return nil, err
	}
	return req, nil
}

// History returns the decisions applied to a request, oldest first.
func (e *Engine) History(ctx context.Context, viewerID, id string) ([]model.Event, error) {
	req, err := e.Get(ctx, viewerID, id)
	if err != nil {
		return nil, err
	}
	return req.History(), nil
}

func (e *Engine) canView(ctx context.Context, viewerID string, req *model.Request) error {
	if viewerID == req.RequesterID {
		return nil
	}
	role, err := e.dir.RoleOf(ctx, viewerID)
	if err != nil {
		return fmt.Errorf("resolve viewer: %w", err)
	}
	switch role {
	case model.RoleAdmin:
		return nil
	case model.RoleChef:
		chef, err := e.dir.ChefOf(ctx, req.RequesterID)
		if err != nil {
			return fmt.Errorf("resolve chef: %w", err)
		}
		if chef == viewerID {
			return nil
		}
	}
	return apperr.Forbidden("%s cannot view request %s", viewerID, req.ID)
}

type ListInput struct {
	ViewerID string
	// Review lists the requests awaiting the viewer's authority instead of
	// the viewer's own requests.
	Review   bool
	Statuses []model.Status
	Limit    int
}

// List returns requests scoped by the viewer's role.
func (e *Engine) List(ctx context.Context, in ListInput) ([]*model.Request, error) {
	f := store.RequestFilter{Statuses: in.Statuses, Limit: in.Limit}
	if !in.Review {
		f.RequesterIDs = []string{in.ViewerID}
	} else {
		role, err := e.dir.RoleOf(ctx, in.ViewerID)
		if err != nil {
			return nil, fmt.Errorf("resolve viewer: %w", err)
		}
		switch role {
		case model.RoleAdmin:
		case model.RoleChef:
			subs, err := e.dir.SubordinatesOf(ctx, in.ViewerID)
			if err != nil {
				return nil, fmt.Errorf("resolve subordinates: %w", err)
			}
			if len(subs) == 0 {
				return []*model.Request{}, nil
			}
			f.RequesterIDs = subs
			f.Category = model.CategoryTwoStage
		default:
			return nil, apperr.Forbidden("%s has no requests to review", in.ViewerID)
		}
	}

	var out []*model.Request
	err := e.withRetry(ctx, func() error {
		var err error
		out, err = e.requests.ListRequests(ctx, f)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	if out == nil {
		out = []*model.Request{}
	}
	return out, nil
}

// Delete removes a request with its notifications and calendar events. The
// owner may delete while Pending; an admin may delete at any time.
func (e *Engine) Delete(ctx context.Context, actorID, id string) (err error) {
	ctx, span := e.tracer.Start(ctx, "workflow.Delete", trace.WithAttributes(attribute.String("request.id", id)))
	defer func() { endSpan(span, err) }()

	req, err := e.load(ctx, id)
	if err != nil {
		return err
	}
	role, err := e.dir.RoleOf(ctx, actorID)
	if err != nil {
		return fmt.Errorf("resolve actor: %w", err)
	}
	switch {
	case role == model.RoleAdmin:
	case actorID == req.RequesterID && req.Status == model.StatusPending:
	case actorID == req.RequesterID:
		return apperr.Forbidden("request %s is %s and can no longer be deleted by its owner", id, req.Status)
	default:
		return apperr.Forbidden("%s cannot delete request %s", actorID, id)
	}

	var deleted bool
	if err := e.withRetry(ctx, func() error {
		var err error
		deleted, err = e.requests.DeleteRequest(ctx, id)
		return err
	}); err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	if !deleted {
		return apperr.NotFound("request %s not found", id)
	}

	if e.notifications != nil {
		if _, err := e.notifications.DeleteByRequest(ctx, id); err != nil {
			log.Printf("ERROR [workflow] delete notifications of %s: %v", id, err)
		}
	}
	if e.calendar != nil {
		if _, err := e.calendar.DeleteCalendarBySource(ctx, id); err != nil {
			log.Printf("ERROR [workflow] delete calendar events of %s: %v", id, err)
		}
	}
	return nil
}

func (e *Engine) load(ctx context.Context, id string) (*model.Request, error) {
	if id == "" {
		return nil, apperr.Validation("request id is required")
	}
	var req *model.Request
	err := e.withRetry(ctx, func() error {
		var err error
		req, err = e.requests.GetRequest(ctx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	if req == nil {
		return nil, apperr.NotFound("request %s not found", id)
	}
	return req, nil
}

// withRetry retries op while it fails transiently. Exhausted retries surface
// as apperr.ErrUnavailable.
func (e *Engine) withRetry(ctx context.Context, op func() error) error {
	err := backoff.Retry(func() error {
		err := op()
		if err != nil && store.IsTransient(err) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, backoff.WithContext(e.opts.Backoff(), ctx))
	if err != nil && store.IsTransient(err) {
		return apperr.Unavailable(err)
	}
	return err
}

func (e *Engine) publish(requestID, eventID string) {
	if e.publisher != nil {
		e.publisher.Enqueue(requestID, eventID)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
