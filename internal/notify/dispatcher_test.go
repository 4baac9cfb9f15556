package notify

import (
	"context"
	"errors"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hr-workflow/internal/directory"
	"hr-workflow/internal/i18n"
	"hr-workflow/internal/model"
	"hr-workflow/internal/store/memory"
)

func TestMain(m *testing.M) {
	if err := i18n.Init("en"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func testDirectory() *directory.Static {
	return directory.NewStatic(
		directory.Employee{ID: "admin-1", Role: model.RoleAdmin},
		directory.Employee{ID: "admin-2", Role: model.RoleAdmin},
		directory.Employee{ID: "chef-1", Role: model.RoleChef},
		directory.Employee{ID: "u-1", ChefID: "chef-1"},
		directory.Employee{ID: "u-2"},
	)
}

type capturePusher struct {
	mu         sync.Mutex
	deliveries []Delivery
	err        error
}

func (p *capturePusher) Push(ctx context.Context, d Delivery) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deliveries = append(p.deliveries, d)
	return p.err
}

func leaveRequest(requester string) *model.Request {
	created := model.Event{ID: "ev-created", Kind: model.EventCreated, To: model.StatusPending, ActorID: requester, ActorRole: model.RoleUser}
	return &model.Request{
		ID:          "req-1",
		RequesterID: requester,
		Category:    model.CategoryTwoStage,
		Type:        "Annual leave",
		Status:      model.StatusPending,
		StartDate:   "2025-06-01",
		EndDate:     "2025-06-07",
		WorkingDays: 7,
		Events:      []model.Event{created},
	}
}

func decide(req *model.Request, id, actor string, role model.Role, outcome model.Outcome, to model.Status) model.Event {
	ev := model.Event{
		ID: id, Kind: model.EventTransitioned, From: req.Status, To: to,
		ActorID: actor, ActorRole: role, Outcome: outcome, At: time.Now(),
	}
	req.Status = to
	req.Events = append(req.Events, ev)
	return ev
}

func recipientsOf(ns []*model.Notification) []string {
	var ids []string
	for _, n := range ns {
		ids = append(ids, n.RecipientID)
	}
	sort.Strings(ids)
	return ids
}

func TestDispatchCreated(t *testing.T) {
	mem := memory.New()
	pusher := &capturePusher{}
	d := NewDispatcher(mem, testDirectory(), pusher)
	req := leaveRequest("u-1")

	created, err := d.Dispatch(context.Background(), req, req.Events[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"admin-1", "admin-2", "chef-1"}, recipientsOf(created))
	for _, n := range created {
		assert.Equal(t, model.NotificationInfo, n.Kind)
		assert.Equal(t, model.PlatformBoth, n.Platform)
		assert.Equal(t, "req-1", n.ReferenceRequestID)
		assert.Equal(t, "New request to review", n.Title)
		assert.Contains(t, n.Message, "Annual leave")
		assert.False(t, n.IsRead)
	}
	require.Len(t, pusher.deliveries, 3)
	for _, del := range pusher.deliveries {
		assert.True(t, del.Actionable)
	}
}

func TestDispatchCreatedWithoutChef(t *testing.T) {
	d := NewDispatcher(memory.New(), testDirectory())
	req := leaveRequest("u-2")

	created, err := d.Dispatch(context.Background(), req, req.Events[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"admin-1", "admin-2"}, recipientsOf(created))
}

func TestDispatchChefDecision(t *testing.T) {
	tests := []struct {
		name    string
		outcome model.Outcome
		to      model.Status
		kind    model.NotificationKind
	}{
		{"approve", model.OutcomeApprove, model.StatusChefApproved, model.NotificationSuccess},
		{"reject", model.OutcomeReject, model.StatusChefRejected, model.NotificationWarning},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDispatcher(memory.New(), testDirectory())
			req := leaveRequest("u-1")
			ev := decide(req, "ev-chef", "chef-1", model.RoleChef, tt.outcome, tt.to)

			created, err := d.Dispatch(context.Background(), req, ev)
			require.NoError(t, err)
			assert.Equal(t, []string{"admin-1", "admin-2", "u-1"}, recipientsOf(created))

			for _, n := range created {
				assert.Equal(t, tt.kind, n.Kind)
				if n.RecipientID == "u-1" {
					assert.Contains(t, n.Message, "Your")
				} else {
					assert.Contains(t, n.Message, "awaiting your")
				}
			}
		})
	}
}

func TestDispatchAdminDecisionNotifiesDecidingChef(t *testing.T) {
	d := NewDispatcher(memory.New(), testDirectory())
	req := leaveRequest("u-1")
	decide(req, "ev-chef", "chef-1", model.RoleChef, model.OutcomeApprove, model.StatusChefApproved)
	ev := decide(req, "ev-admin", "admin-1", model.RoleAdmin, model.OutcomeReject, model.StatusRejected)

	created, err := d.Dispatch(context.Background(), req, ev)
	require.NoError(t, err)
	assert.Equal(t, []string{"chef-1", "u-1"}, recipientsOf(created))
	for _, n := range created {
		assert.Equal(t, model.NotificationError, n.Kind)
	}
}

func TestDispatchAdminOverrideNotifiesRequesterOnly(t *testing.T) {
	d := NewDispatcher(memory.New(), testDirectory())
	req := leaveRequest("u-1")
	ev := decide(req, "ev-admin", "admin-1", model.RoleAdmin, model.OutcomeApprove, model.StatusApproved)

	created, err := d.Dispatch(context.Background(), req, ev)
	require.NoError(t, err)
	assert.Equal(t, []string{"u-1"}, recipientsOf(created))
	assert.Equal(t, model.NotificationSuccess, created[0].Kind)
}

func TestDispatchReplayCreatesNothing(t *testing.T) {
	mem := memory.New()
	pusher := &capturePusher{}
	d := NewDispatcher(mem, testDirectory(), pusher)
	req := leaveRequest("u-1")

	_, err := d.Dispatch(context.Background(), req, req.Events[0])
	require.NoError(t, err)
	again, err := d.Dispatch(context.Background(), req, req.Events[0])
	require.NoError(t, err)
	assert.Empty(t, again)
	assert.Len(t, pusher.deliveries, 3)

	stored, err := mem.ListByRequest(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}

func TestDispatchSurvivesPushFailure(t *testing.T) {
	mem := memory.New()
	d := NewDispatcher(mem, testDirectory(), &capturePusher{err: errors.New("socket closed")})
	req := leaveRequest("u-1")

	created, err := d.Dispatch(context.Background(), req, req.Events[0])
	require.NoError(t, err)
	assert.Len(t, created, 3)

	page, err := NewInbox(mem).List(context.Background(), "chef-1", false, 0)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
}

func TestDispatchMessagesAreDeterministic(t *testing.T) {
	req := leaveRequest("u-1")
	a, err := NewDispatcher(memory.New(), testDirectory()).Dispatch(context.Background(), req, req.Events[0])
	require.NoError(t, err)
	b, err := NewDispatcher(memory.New(), testDirectory()).Dispatch(context.Background(), req, req.Events[0])
	require.NoError(t, err)

	require.Len(t, b, len(a))
	for i := range a {
		assert.Equal(t, a[i].RecipientID, b[i].RecipientID)
		assert.Equal(t, a[i].Title, b[i].Title)
		assert.Equal(t, a[i].Message, b[i].Message)
	}
}
