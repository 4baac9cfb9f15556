package model

import (
	"time"
)

// Status is the workflow state of a request.
type Status string

const (
	StatusPending      Status = "pending"
	StatusChefApproved Status = "chef_approved"
	StatusChefRejected Status = "chef_rejected"
	StatusApproved     Status = "approved"
	StatusRejected     Status = "rejected"
)

// Valid reports whether s is one of the five workflow states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusChefApproved, StatusChefRejected, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Category decides whether a request passes through chef review.
type Category string

const (
	CategoryTwoStage    Category = "two_stage"
	CategorySingleStage Category = "single_stage"
)

// Role is the authority an actor holds in the directory.
type Role string

const (
	RoleUser  Role = "user"
	RoleChef  Role = "chef"
	RoleAdmin Role = "admin"
)

// Outcome is the role-agnostic intent of a decision.
type Outcome string

const (
	OutcomeApprove Outcome = "approve"
	OutcomeReject  Outcome = "reject"
)

func (o Outcome) Valid() bool {
	return o == OutcomeApprove || o == OutcomeReject
}

type Source string

const (
	SourceWeb    Source = "web"
	SourceMobile Source = "mobile"
)

// EventKind distinguishes creation from decisions in a request's event log.
type EventKind string

const (
	EventCreated      EventKind = "created"
	EventTransitioned EventKind = "transitioned"
)

// Event is an immutable entry in a request's log. Transitioned events form the
// audit history; every event is also the record replayed by the outbox.
type Event struct {
	ID          string    `bson:"id" json:"id"`
	Kind        EventKind `bson:"kind" json:"kind"`
	From        Status    `bson:"from,omitempty" json:"from,omitempty"`
	To          Status    `bson:"to" json:"to"`
	ActorID     string    `bson:"actor_id" json:"actor_id"`
	ActorRole   Role      `bson:"actor_role" json:"actor_role"`
	Outcome     Outcome   `bson:"outcome,omitempty" json:"outcome,omitempty"`
	Observation string    `bson:"observation,omitempty" json:"observation,omitempty"`
	Override    bool      `bson:"override,omitempty" json:"override,omitempty"` // admin decided without chef review
	At          time.Time `bson:"at" json:"at"`
}

type Request struct {
	ID              string         `bson:"_id" json:"id"`
	RequesterID     string         `bson:"requester_id" json:"requester_id"`
	Category        Category       `bson:"category" json:"category"`
	CalendarType    EventType      `bson:"calendar_type,omitempty" json:"calendar_type,omitempty"`
	Type            string         `bson:"type" json:"type"`
	Status          Status         `bson:"status" json:"status"`
	StartDate       string         `bson:"start_date" json:"start_date"` // YYYY-MM-DD
	EndDate         string         `bson:"end_date" json:"end_date"`     // YYYY-MM-DD
	WorkingDays     int            `bson:"working_days" json:"working_days"`
	Description     string         `bson:"description" json:"description"`
	Details         map[string]any `bson:"details,omitempty" json:"details,omitempty"`
	ChefObservation *string        `bson:"chef_observation,omitempty" json:"chef_observation"`
	AdminResponse   *string        `bson:"admin_response,omitempty" json:"admin_response"`
	Source          Source         `bson:"source" json:"source"`

	Events        []Event  `bson:"events" json:"-"`
	PendingEvents []string `bson:"pending_events" json:"-"` // event ids whose side effects have not completed
	Version       int64    `bson:"version" json:"version"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// History returns the decisions applied to the request, oldest first.
func (r *Request) History() []Event {
	var out []Event
	for _, e := range r.Events {
		if e.Kind == EventTransitioned {
			out = append(out, e)
		}
	}
	return out
}

// LastTransition returns the most recent decision, or nil.
func (r *Request) LastTransition() *Event {
	for i := len(r.Events) - 1; i >= 0; i-- {
		if r.Events[i].Kind == EventTransitioned {
			return &r.Events[i]
		}
	}
	return nil
}

// ChefDecision returns the most recent chef-authored decision, or nil.
func (r *Request) ChefDecision() *Event {
	for i := len(r.Events) - 1; i >= 0; i-- {
		e := r.Events[i]
		if e.Kind == EventTransitioned && e.ActorRole == RoleChef {
			return &r.Events[i]
		}
	}
	return nil
}

// EventByID returns the event with the given id, or nil.
func (r *Request) EventByID(id string) *Event {
	for i := range r.Events {
		if r.Events[i].ID == id {
			return &r.Events[i]
		}
	}
	return nil
}

// HasPending reports whether eventID still awaits its side effects.
func (r *Request) HasPending(eventID string) bool {
	for _, id := range r.PendingEvents {
		if id == eventID {
			return true
		}
	}
	return false
}

// Qualifies reports whether the request must be projected onto the calendar.
func (r *Request) Qualifies() bool {
	return r.Category == CategoryTwoStage && r.Status != StatusRejected
}

// CalendarKey returns the business key of the calendar entry the request projects to.
func (r *Request) CalendarKey() CalendarKey {
	return CalendarKey{
		OwnerUserID: r.RequesterID,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		EventType:   r.CalendarType,
	}
}

// Clone returns a copy that shares no slices or pointers with r.
func (r *Request) Clone() *Request {
	c := *r
	c.Events = append([]Event(nil), r.Events...)
	c.PendingEvents = append([]string(nil), r.PendingEvents...)
	if r.Details != nil {
		c.Details = make(map[string]any, len(r.Details))
		for k, v := range r.Details {
			c.Details[k] = v
		}
	}
	if r.ChefObservation != nil {
		v := *r.ChefObservation
		c.ChefObservation = &v
	}
	if r.AdminResponse != nil {
		v := *r.AdminResponse
		c.AdminResponse = &v
	}
	return &c
}
