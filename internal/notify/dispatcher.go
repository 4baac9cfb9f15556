// Package notify turns request events into persisted notifications and pushes
// them to the recipients' live sessions.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"hr-workflow/internal/apperr"
	"hr-workflow/internal/directory"
	"hr-workflow/internal/i18n"
	"hr-workflow/internal/model"
	"hr-workflow/internal/telemetry"
)

type Store interface {
	InsertNotification(ctx context.Context, n *model.Notification) (bool, error)
}

// Delivery is what a Pusher sends. Actionable marks notifications whose
// recipient is expected to decide on the request next.
type Delivery struct {
	Notification *model.Notification
	Request      *model.Request
	Actionable   bool
}

// Pusher is a realtime channel. Failures are logged by the dispatcher and
// never undo persistence.
type Pusher interface {
	Push(ctx context.Context, d Delivery) error
}

type audience string

const (
	audienceApprover  audience = "approver"
	audienceRequester audience = "requester"
	audienceAdmin     audience = "admin"
	audienceChef      audience = "chef"
)

type recipient struct {
	userID   string
	audience audience
}

type Dispatcher struct {
	store   Store
	dir     directory.Directory
	pushers []Pusher
	now     func() time.Time

	deliveries   metric.Int64Counter
	pushFailures metric.Int64Counter
}

func NewDispatcher(store Store, dir directory.Directory, pushers ...Pusher) *Dispatcher {
	meter := telemetry.Meter("hr-workflow/notify")
	return &Dispatcher{
		store:        store,
		dir:          dir,
		pushers:      pushers,
		now:          time.Now,
		deliveries:   telemetry.Counter(meter, "hr.notify.deliveries", "Notifications persisted"),
		pushFailures: telemetry.Counter(meter, "hr.notify.push_failures", "Realtime pushes that failed"),
	}
}

// Dispatch persists one notification per recipient of ev and pushes the newly
// created ones. Replaying an event creates nothing new. It returns the
// notifications created by this call.
func (d *Dispatcher) Dispatch(ctx context.Context, req *model.Request, ev model.Event) ([]*model.Notification, error) {
	recipients, err := d.recipients(ctx, req, ev)
	if err != nil {
		return nil, err
	}

	var created []*model.Notification
	for _, r := range recipients {
		n := d.build(ctx, req, ev, r)
		inserted, err := d.store.InsertNotification(ctx, n)
		if err != nil {
			return created, fmt.Errorf("insert notification for %s: %w", r.userID, err)
		}
		if !inserted {
			continue
		}
		created = append(created, n)
		d.deliveries.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(n.Kind))))
		d.push(ctx, Delivery{
			Notification: n,
			Request:      req,
			Actionable:   r.audience == audienceApprover || r.audience == audienceAdmin,
		})
	}
	return created, nil
}

func (d *Dispatcher) push(ctx context.Context, del Delivery) {
	for _, p := range d.pushers {
		if err := p.Push(ctx, del); err != nil {
			d.pushFailures.Add(ctx, 1)
			log.Printf("WARN [notify] push %s to %s: %v", del.Notification.ID, del.Notification.RecipientID, err)
		}
	}
}

// recipients computes the deduplicated recipient list in a stable order.
func (d *Dispatcher) recipients(ctx context.Context, req *model.Request, ev model.Event) ([]recipient, error) {
	var out []recipient
	seen := make(map[string]bool)
	add := func(userID string, a audience) {
		if userID == "" || seen[userID] {
			return
		}
		seen[userID] = true
		out = append(out, recipient{userID: userID, audience: a})
	}
	addAdmins := func(a audience) error {
		admins, err := d.dir.AllAdminIDs(ctx)
		if err != nil {
			return fmt.Errorf("list admins: %w", err)
		}
		for _, id := range admins {
			add(id, a)
		}
		return nil
	}

	switch {
	case ev.Kind == model.EventCreated:
		chef, err := d.dir.ChefOf(ctx, req.RequesterID)
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			log.Printf("WARN [notify] requester %s of %s left the directory", req.RequesterID, req.ID)
		case err != nil:
			return nil, fmt.Errorf("resolve chef: %w", err)
		}
		add(chef, audienceApprover)
		if err := addAdmins(audienceApprover); err != nil {
			return nil, err
		}
	case ev.ActorRole == model.RoleChef:
		add(req.RequesterID, audienceRequester)
		if err := addAdmins(audienceAdmin); err != nil {
			return nil, err
		}
	case ev.ActorRole == model.RoleAdmin:
		add(req.RequesterID, audienceRequester)
		if chef := req.ChefDecision(); chef != nil {
			add(chef.ActorID, audienceChef)
		}
	default:
		return nil, fmt.Errorf("event %s has no notification rule for role %q", ev.ID, ev.ActorRole)
	}
	return out, nil
}

func (d *Dispatcher) build(ctx context.Context, req *model.Request, ev model.Event, r recipient) *model.Notification {
	key := "notify." + string(ev.To) + "." + string(r.audience)
	if ev.Kind == model.EventCreated {
		key = "notify.created." + string(r.audience)
	}
	data := map[string]any{
		"Type":      req.Type,
		"Requester": req.RequesterID,
		"Start":     req.StartDate,
		"End":       req.EndDate,
	}
	return &model.Notification{
		RecipientID:        r.userID,
		Title:              i18n.T(ctx, key+".title", data),
		Message:            i18n.T(ctx, key+".message", data),
		Kind:               kindOf(ev),
		ReferenceRequestID: req.ID,
		Platform:           model.PlatformBoth,
		DedupeKey:          model.NotificationDedupeKey(ev.ID, r.userID),
		CreatedAt:          d.now().UTC(),
	}
}

func kindOf(ev model.Event) model.NotificationKind {
	if ev.Kind == model.EventCreated {
		return model.NotificationInfo
	}
	switch ev.To {
	case model.StatusChefApproved, model.StatusApproved:
		return model.NotificationSuccess
	case model.StatusChefRejected:
		return model.NotificationWarning
	case model.StatusRejected:
		return model.NotificationError
	}
	return model.NotificationInfo
}
