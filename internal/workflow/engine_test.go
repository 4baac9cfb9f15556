package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hr-workflow/internal/apperr"
	"hr-workflow/internal/directory"
	"hr-workflow/internal/model"
	"hr-workflow/internal/store"
	"hr-workflow/internal/store/memory"
)

var testNow = time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Enqueue(requestID, eventID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, requestID+"/"+eventID)
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func testDirectory() *directory.Static {
	return directory.NewStatic(
		directory.Employee{ID: "admin-1", Role: model.RoleAdmin},
		directory.Employee{ID: "admin-2", Role: model.RoleAdmin},
		directory.Employee{ID: "chef-1", Role: model.RoleChef},
		directory.Employee{ID: "chef-2", Role: model.RoleChef},
		directory.Employee{ID: "u-1", ChefID: "chef-1"},
		directory.Employee{ID: "u-2"},
		directory.Employee{ID: "u-3", ChefID: "chef-2"},
	)
}

func fastRetry() backoff.BackOff {
	return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3)
}

func newTestEngine(t *testing.T, requests RequestStore, opts Options) (*Engine, *recordingPublisher) {
	t.Helper()
	mem, _ := requests.(*memory.Store)
	if opts.Backoff == nil {
		opts.Backoff = fastRetry
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return testNow }
	}
	var eng *Engine
	if mem != nil {
		eng = NewEngine(requests, mem, mem, testDirectory(), opts)
	} else {
		eng = NewEngine(requests, nil, nil, testDirectory(), opts)
	}
	pub := &recordingPublisher{}
	eng.SetPublisher(pub)
	return eng, pub
}

func leaveInput(requester string) CreateInput {
	return CreateInput{
		RequesterID: requester,
		Type:        "Congé annuel",
		StartDate:   "2025-06-01",
		EndDate:     "2025-06-07",
		WorkingDays: 7,
	}
}

func documentInput(requester string) CreateInput {
	return CreateInput{
		RequesterID: requester,
		Type:        "Document",
		StartDate:   "2025-06-01",
		EndDate:     "2025-06-01",
		WorkingDays: 1,
	}
}

func mustCreate(t *testing.T, eng *Engine, in CreateInput) *model.Request {
	t.Helper()
	res, err := eng.Create(context.Background(), in)
	require.NoError(t, err)
	return res.Request
}

func transition(eng *Engine, id, actor string, outcome model.Outcome, obs string) (*Result, error) {
	return eng.Transition(context.Background(), TransitionInput{
		RequestID:   id,
		Outcome:     outcome,
		ActorID:     actor,
		Observation: obs,
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		in       string
		category model.Category
		calType  model.EventType
	}{
		{"Congé annuel", model.CategoryTwoStage, model.EventTypeLeave},
		{"CONGÉ MALADIE", model.CategoryTwoStage, model.EventTypeLeave},
		{"Annual leave", model.CategoryTwoStage, model.EventTypeLeave},
		{"Vacances d'été", model.CategoryTwoStage, model.EventTypeLeave},
		{"Formation React", model.CategoryTwoStage, model.EventTypeTraining},
		{"Security training", model.CategoryTwoStage, model.EventTypeTraining},
		{"Document", model.CategorySingleStage, ""},
		{"Prêt", model.CategorySingleStage, ""},
		{"Avance sur salaire", model.CategorySingleStage, ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			category, calType := Classify(tt.in)
			assert.Equal(t, tt.category, category)
			assert.Equal(t, tt.calType, calType)
		})
	}
}

func TestReachable(t *testing.T) {
	two := Reachable(model.CategoryTwoStage)
	assert.Len(t, two, 5)

	single := Reachable(model.CategorySingleStage)
	assert.Equal(t, map[model.Status]bool{
		model.StatusPending:  true,
		model.StatusApproved: true,
		model.StatusRejected: true,
	}, single)
}

func TestCreateValidation(t *testing.T) {
	eng, pub := newTestEngine(t, memory.New(), Options{})

	tests := []struct {
		name string
		edit func(*CreateInput)
		kind error
	}{
		{"missing requester", func(in *CreateInput) { in.RequesterID = " " }, apperr.ErrValidation},
		{"missing type", func(in *CreateInput) { in.Type = "" }, apperr.ErrValidation},
		{"bad start", func(in *CreateInput) { in.StartDate = "01/06/2025" }, apperr.ErrValidation},
		{"bad end", func(in *CreateInput) { in.EndDate = "2025-13-01" }, apperr.ErrValidation},
		{"end before start", func(in *CreateInput) { in.EndDate = "2025-05-31" }, apperr.ErrValidation},
		{"zero working days", func(in *CreateInput) { in.WorkingDays = 0 }, apperr.ErrValidation},
		{"negative working days", func(in *CreateInput) { in.WorkingDays = -2 }, apperr.ErrValidation},
		{"unknown source", func(in *CreateInput) { in.Source = "fax" }, apperr.ErrValidation},
		{"unknown requester", func(in *CreateInput) { in.RequesterID = "ghost" }, apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := leaveInput("u-1")
			tt.edit(&in)
			_, err := eng.Create(context.Background(), in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind), "got %v", err)
		})
	}
	assert.Zero(t, pub.count())
}

func TestCreateLeaveRequest(t *testing.T) {
	mem := memory.New()
	eng, pub := newTestEngine(t, mem, Options{})

	res, err := eng.Create(context.Background(), leaveInput("u-1"))
	require.NoError(t, err)

	req := res.Request
	assert.Equal(t, model.StatusPending, req.Status)
	assert.Equal(t, model.CategoryTwoStage, req.Category)
	assert.Equal(t, model.EventTypeLeave, req.CalendarType)
	assert.Equal(t, model.SourceWeb, req.Source)
	assert.Nil(t, req.ChefObservation)
	assert.Nil(t, req.AdminResponse)
	assert.Equal(t, model.EventCreated, res.Event.Kind)
	assert.Equal(t, []string{res.Event.ID}, req.PendingEvents)
	assert.Empty(t, req.History())

	stored, err := mem.GetRequest(context.Background(), req.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, model.StatusPending, stored.Status)
	assert.Equal(t, []string{req.ID + "/" + res.Event.ID}, pub.events)
}

func TestChefApproval(t *testing.T) {
	eng, _ := newTestEngine(t, memory.New(), Options{})
	req := mustCreate(t, eng, leaveInput("u-1"))

	res, err := transition(eng, req.ID, "chef-1", model.OutcomeApprove, "ok")
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.Equal(t, model.StatusChefApproved, res.Request.Status)
	require.NotNil(t, res.Request.ChefObservation)
	assert.Equal(t, "ok", *res.Request.ChefObservation)
	assert.Nil(t, res.Request.AdminResponse)

	history := res.Request.History()
	require.Len(t, history, 1)
	assert.Equal(t, model.StatusPending, history[0].From)
	assert.Equal(t, model.StatusChefApproved, history[0].To)
	assert.Equal(t, model.RoleChef, history[0].ActorRole)
	assert.False(t, history[0].Override)
}

func TestAdminRejectAfterChefApproval(t *testing.T) {
	eng, _ := newTestEngine(t, memory.New(), Options{})
	req := mustCreate(t, eng, leaveInput("u-1"))
	_, err := transition(eng, req.ID, "chef-1", model.OutcomeApprove, "ok")
	require.NoError(t, err)

	res, err := transition(eng, req.ID, "admin-1", model.OutcomeReject, "budget")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, res.Request.Status)
	require.NotNil(t, res.Request.AdminResponse)
	assert.Equal(t, "budget", *res.Request.AdminResponse)
	assert.Equal(t, "ok", *res.Request.ChefObservation)
	assert.Len(t, res.Request.History(), 2)
}

func TestAdminApprovesAfterChefRejection(t *testing.T) {
	eng, _ := newTestEngine(t, memory.New(), Options{})
	req := mustCreate(t, eng, leaveInput("u-1"))
	_, err := transition(eng, req.ID, "chef-1", model.OutcomeReject, "busy week")
	require.NoError(t, err)

	res, err := transition(eng, req.ID, "admin-1", model.OutcomeApprove, "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, res.Request.Status)
}

func TestTerminalStateIsInvalidTransition(t *testing.T) {
	eng, pub := newTestEngine(t, memory.New(), Options{})
	req := mustCreate(t, eng, leaveInput("u-1"))
	_, err := transition(eng, req.ID, "chef-1", model.OutcomeApprove, "ok")
	require.NoError(t, err)
	_, err = transition(eng, req.ID, "admin-1", model.OutcomeReject, "budget")
	require.NoError(t, err)
	before := pub.count()

	_, err = transition(eng, req.ID, "admin-1", model.OutcomeApprove, "changed my mind")
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition), "got %v", err)

	_, err = transition(eng, req.ID, "admin-2", model.OutcomeReject, "")
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition), "got %v", err)

	got, err := eng.Get(context.Background(), "admin-1", req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, got.Status)
	assert.Len(t, got.History(), 2)
	assert.Equal(t, before, pub.count())
}

func TestChefHasNoAuthorityOverSingleStage(t *testing.T) {
	eng, _ := newTestEngine(t, memory.New(), Options{})
	req := mustCreate(t, eng, documentInput("u-1"))
	assert.Equal(t, model.CategorySingleStage, req.Category)

	_, err := transition(eng, req.ID, "chef-1", model.OutcomeApprove, "")
	assert.True(t, errors.Is(err, apperr.ErrForbidden), "got %v", err)

	_, err = transition(eng, req.ID, "admin-1", model.OutcomeApprove, "done")
	require.NoError(t, err)

	_, err = transition(eng, req.ID, "chef-1", model.OutcomeReject, "")
	assert.True(t, errors.Is(err, apperr.ErrForbidden), "chef stays forbidden on a terminal SingleStage request, got %v", err)
}

func TestChefScopedToOwnTeam(t *testing.T) {
	eng, _ := newTestEngine(t, memory.New(), Options{})
	req := mustCreate(t, eng, leaveInput("u-3"))

	_, err := transition(eng, req.ID, "chef-1", model.OutcomeApprove, "")
	assert.True(t, errors.Is(err, apperr.ErrForbidden), "got %v", err)

	_, err = transition(eng, req.ID, "chef-2", model.OutcomeApprove, "")
	assert.NoError(t, err)
}

func TestChefCannotDecideTwice(t *testing.T) {
	eng, _ := newTestEngine(t, memory.New(), Options{})
	req := mustCreate(t, eng, leaveInput("u-1"))
	_, err := transition(eng, req.ID, "chef-1", model.OutcomeApprove, "")
	require.NoError(t, err)

	_, err = transition(eng, req.ID, "chef-1", model.OutcomeReject, "")
	assert.True(t, errors.Is(err, apperr.ErrForbidden), "got %v", err)
}

func TestPlainUserCannotDecide(t *testing.T) {
	eng, _ := newTestEngine(t, memory.New(), Options{})
	req := mustCreate(t, eng, leaveInput("u-1"))

	_, err := transition(eng, req.ID, "u-2", model.OutcomeApprove, "")
	assert.True(t, errors.Is(err, apperr.ErrForbidden), "got %v", err)

	_, err = transition(eng, req.ID, "ghost", model.OutcomeApprove, "")
	assert.True(t, errors.Is(err, apperr.ErrNotFound), "got %v", err)
}

func TestTransitionInputErrors(t *testing.T) {
	eng, _ := newTestEngine(t, memory.New(), Options{})
	req := mustCreate(t, eng, leaveInput("u-1"))

	_, err := transition(eng, req.ID, "chef-1", "maybe", "")
	assert.True(t, errors.Is(err, apperr.ErrValidation), "got %v", err)

	_, err = transition(eng, "missing", "chef-1", model.OutcomeApprove, "")
	assert.True(t, errors.Is(err, apperr.ErrNotFound), "got %v", err)
}

func TestAdminOverride(t *testing.T) {
	t.Run("allowed", func(t *testing.T) {
		eng, _ := newTestEngine(t, memory.New(), Options{})
		req := mustCreate(t, eng, leaveInput("u-1"))

		res, err := transition(eng, req.ID, "admin-1", model.OutcomeApprove, "urgent")
		require.NoError(t, err)
		assert.Equal(t, model.StatusApproved, res.Request.Status)
		assert.True(t, res.Event.Override)
		assert.Nil(t, res.Request.ChefObservation)
	})

	t.Run("disabled", func(t *testing.T) {
		eng, _ := newTestEngine(t, memory.New(), Options{DisableAdminOverride: true})
		req := mustCreate(t, eng, leaveInput("u-1"))

		_, err := transition(eng, req.ID, "admin-1", model.OutcomeApprove, "urgent")
		assert.True(t, errors.Is(err, apperr.ErrForbidden), "got %v", err)

		single := mustCreate(t, eng, documentInput("u-1"))
		res, err := transition(eng, single.ID, "admin-1", model.OutcomeApprove, "")
		require.NoError(t, err)
		assert.False(t, res.Event.Override, "SingleStage approval is not an override")
	})
}

func TestTransitionReplayIsIdempotent(t *testing.T) {
	eng, pub := newTestEngine(t, memory.New(), Options{})
	req := mustCreate(t, eng, leaveInput("u-1"))

	first, err := transition(eng, req.ID, "chef-1", model.OutcomeApprove, "ok")
	require.NoError(t, err)
	published := pub.count()

	again, err := transition(eng, req.ID, "chef-1", model.OutcomeApprove, "ok")
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.Event.ID, again.Event.ID)
	assert.Len(t, again.Request.History(), 1)
	assert.Equal(t, first.Request.Version, again.Request.Version)
	// the event is still pending in the store, so the replay nudges the outbox
	assert.Equal(t, published+1, pub.count())
}

// barrierStore holds every reader until both racers have loaded the request.
type barrierStore struct {
	*memory.Store
	ready *sync.WaitGroup
}

func (b *barrierStore) GetRequest(ctx context.Context, id string) (*model.Request, error) {
	req, err := b.Store.GetRequest(ctx, id)
	b.ready.Done()
	b.ready.Wait()
	return req, err
}

func TestConcurrentTransitionsConflict(t *testing.T) {
	mem := memory.New()
	seed, _ := newTestEngine(t, mem, Options{})
	req := mustCreate(t, seed, leaveInput("u-1"))

	var ready sync.WaitGroup
	ready.Add(2)
	eng, _ := newTestEngine(t, &barrierStore{Store: mem, ready: &ready}, Options{})

	actors := []string{"chef-1", "admin-1"}
	errs := make([]error, len(actors))
	var wg sync.WaitGroup
	for i, actor := range actors {
		wg.Add(1)
		go func(i int, actor string) {
			defer wg.Done()
			_, errs[i] = transition(eng, req.ID, actor, model.OutcomeApprove, "")
		}(i, actor)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, apperr.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)

	stored, err := mem.GetRequest(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Len(t, stored.History(), 1)
	assert.Equal(t, int64(2), stored.Version)
}

type flakyStore struct {
	*memory.Store
	commitFailures int
	calls          int
}

func (f *flakyStore) CommitTransition(ctx context.Context, req *model.Request, expected int64, ev model.Event) error {
	f.calls++
	if f.commitFailures != 0 {
		if f.commitFailures > 0 {
			f.commitFailures--
		}
		return fmt.Errorf("write request: %w", store.ErrTransient)
	}
	return f.Store.CommitTransition(ctx, req, expected, ev)
}

func TestTransitionRetriesTransientFailures(t *testing.T) {
	mem := memory.New()
	seed, _ := newTestEngine(t, mem, Options{})
	req := mustCreate(t, seed, leaveInput("u-1"))

	flaky := &flakyStore{Store: mem, commitFailures: 2}
	eng, _ := newTestEngine(t, flaky, Options{})

	res, err := transition(eng, req.ID, "chef-1", model.OutcomeApprove, "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusChefApproved, res.Request.Status)
	assert.Equal(t, 3, flaky.calls)
}

func TestTransitionUnavailableAfterRetries(t *testing.T) {
	mem := memory.New()
	seed, _ := newTestEngine(t, mem, Options{})
	req := mustCreate(t, seed, leaveInput("u-1"))

	eng, _ := newTestEngine(t, &flakyStore{Store: mem, commitFailures: -1}, Options{})

	_, err := transition(eng, req.ID, "chef-1", model.OutcomeApprove, "")
	assert.True(t, errors.Is(err, apperr.ErrUnavailable), "got %v", err)
	assert.True(t, errors.Is(err, store.ErrTransient))

	stored, err := mem.GetRequest(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, stored.Status)
}

// lostAckStore applies the first commit and then reports it as failed.
type lostAckStore struct {
	*memory.Store
	lost bool
}

func (s *lostAckStore) CommitTransition(ctx context.Context, req *model.Request, expected int64, ev model.Event) error {
	if err := s.Store.CommitTransition(ctx, req, expected, ev); err != nil {
		return err
	}
	if !s.lost {
		s.lost = true
		return fmt.Errorf("connection reset: %w", store.ErrTransient)
	}
	return nil
}

func TestTransitionSurvivesLostAcknowledgement(t *testing.T) {
	mem := memory.New()
	seed, _ := newTestEngine(t, mem, Options{})
	req := mustCreate(t, seed, leaveInput("u-1"))

	eng, pub := newTestEngine(t, &lostAckStore{Store: mem}, Options{})

	res, err := transition(eng, req.ID, "chef-1", model.OutcomeApprove, "ok")
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.Equal(t, model.StatusChefApproved, res.Request.Status)
	assert.Len(t, res.Request.History(), 1)
	assert.Equal(t, res.Event.ID, res.Request.History()[0].ID)
	assert.Equal(t, 1, pub.count())

	stored, err := mem.GetRequest(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusChefApproved, stored.Status)
	assert.Len(t, stored.History(), 1)
	assert.Equal(t, int64(2), stored.Version)
}

func TestDecisionFieldsFollowHistory(t *testing.T) {
	eng, _ := newTestEngine(t, memory.New(), Options{})

	paths := [][]struct {
		actor   string
		outcome model.Outcome
	}{
		{{"chef-1", model.OutcomeApprove}, {"admin-1", model.OutcomeApprove}},
		{{"chef-1", model.OutcomeReject}, {"admin-2", model.OutcomeReject}},
		{{"admin-1", model.OutcomeReject}},
		{{"chef-1", model.OutcomeApprove}},
	}
	for i, path := range paths {
		t.Run(fmt.Sprintf("path-%d", i), func(t *testing.T) {
			req := mustCreate(t, eng, leaveInput("u-1"))
			var last *model.Request
			for _, step := range path {
				res, err := transition(eng, req.ID, step.actor, step.outcome, "note")
				require.NoError(t, err)
				last = res.Request
			}

			var chefSteps, adminSteps int
			for _, ev := range last.History() {
				switch ev.ActorRole {
				case model.RoleChef:
					chefSteps++
				case model.RoleAdmin:
					adminSteps++
				}
			}
			assert.Equal(t, chefSteps > 0, last.ChefObservation != nil)
			assert.Equal(t, adminSteps > 0, last.AdminResponse != nil)
			assert.True(t, Reachable(last.Category)[last.Status])
		})
	}
}

func TestGetAndHistoryVisibility(t *testing.T) {
	eng, _ := newTestEngine(t, memory.New(), Options{})
	req := mustCreate(t, eng, leaveInput("u-1"))
	_, err := transition(eng, req.ID, "chef-1", model.OutcomeApprove, "ok")
	require.NoError(t, err)

	for _, viewer := range []string{"u-1", "chef-1", "admin-2"} {
		history, err := eng.History(context.Background(), viewer, req.ID)
		require.NoError(t, err, viewer)
		assert.Len(t, history, 1)
	}

	for _, viewer := range []string{"u-2", "chef-2"} {
		_, err := eng.Get(context.Background(), viewer, req.ID)
		assert.True(t, errors.Is(err, apperr.ErrForbidden), "%s: got %v", viewer, err)
	}
}

func TestListScopes(t *testing.T) {
	eng, _ := newTestEngine(t, memory.New(), Options{})
	ctx := context.Background()
	mustCreate(t, eng, leaveInput("u-1"))
	mustCreate(t, eng, documentInput("u-1"))
	mustCreate(t, eng, leaveInput("u-3"))
	mustCreate(t, eng, documentInput("u-2"))

	own, err := eng.List(ctx, ListInput{ViewerID: "u-1"})
	require.NoError(t, err)
	assert.Len(t, own, 2)

	review, err := eng.List(ctx, ListInput{ViewerID: "chef-1", Review: true})
	require.NoError(t, err)
	require.Len(t, review, 1)
	assert.Equal(t, model.CategoryTwoStage, review[0].Category)

	all, err := eng.List(ctx, ListInput{ViewerID: "admin-1", Review: true})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	pending, err := eng.List(ctx, ListInput{ViewerID: "admin-1", Review: true, Statuses: []model.Status{model.StatusApproved}})
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = eng.List(ctx, ListInput{ViewerID: "u-2", Review: true})
	assert.True(t, errors.Is(err, apperr.ErrForbidden))
}

func TestDeleteCascades(t *testing.T) {
	mem := memory.New()
	eng, _ := newTestEngine(t, mem, Options{})
	ctx := context.Background()
	req := mustCreate(t, eng, leaveInput("u-1"))

	_, err := mem.InsertNotification(ctx, &model.Notification{RecipientID: "chef-1", ReferenceRequestID: req.ID, DedupeKey: "e:chef-1"})
	require.NoError(t, err)
	_, err = mem.InsertCalendarEvent(ctx, &model.CalendarEvent{
		OwnerUserID: "u-1", StartDate: req.StartDate, EndDate: req.EndDate,
		EventType: model.EventTypeLeave, SourceRequestID: req.ID,
	})
	require.NoError(t, err)

	err = eng.Delete(ctx, "u-2", req.ID)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	require.NoError(t, eng.Delete(ctx, "u-1", req.ID))

	got, err := mem.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	notes, err := mem.ListByRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Empty(t, notes)
	events, err := mem.ListCalendarEvents(ctx, store.CalendarFilter{OwnerIDs: []string{"u-1"}})
	require.NoError(t, err)
	assert.Empty(t, events)

	err = eng.Delete(ctx, "u-1", req.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestDeleteAfterDecision(t *testing.T) {
	eng, _ := newTestEngine(t, memory.New(), Options{})
	ctx := context.Background()
	req := mustCreate(t, eng, leaveInput("u-1"))
	_, err := transition(eng, req.ID, "chef-1", model.OutcomeApprove, "")
	require.NoError(t, err)

	err = eng.Delete(ctx, "u-1", req.ID)
	assert.True(t, errors.Is(err, apperr.ErrForbidden), "owner cannot delete once reviewed")

	assert.NoError(t, eng.Delete(ctx, "admin-1", req.ID))
}
