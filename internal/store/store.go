package store

import (
	"errors"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"hr-workflow/internal/model"
)

var (
	// ErrVersionMismatch is returned when a conditional write finds a newer version.
	ErrVersionMismatch = errors.New("store: version mismatch")
	// ErrMissing is returned when a conditional write targets a deleted document.
	ErrMissing = errors.New("store: document missing")
	// ErrTransient marks failures worth retrying (used by non-Mongo backends).
	ErrTransient = errors.New("store: transient failure")
)

// RequestFilter selects requests. Zero fields do not filter.
type RequestFilter struct {
	RequesterIDs []string
	Statuses     []model.Status
	Category     model.Category
	WithPending  bool // only requests with side effects still pending
	Limit        int
}

// CalendarFilter selects calendar events overlapping [From, To]. Empty bounds are open.
type CalendarFilter struct {
	OwnerIDs []string
	From     string
	To       string
}

// IsTransient reports whether err is worth retrying at the transaction boundary.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) {
		return true
	}
	return mongo.IsNetworkError(err) || mongo.IsTimeout(err)
}

// MatchesRequest applies f to r in memory. Backends that cannot push a filter
// down use it as the reference semantics.
func MatchesRequest(f RequestFilter, r *model.Request) bool {
	if len(f.RequesterIDs) > 0 && !contains(f.RequesterIDs, r.RequesterID) {
		return false
	}
	if len(f.Statuses) > 0 {
		ok := false
		for _, s := range f.Statuses {
			if r.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.Category != "" && r.Category != f.Category {
		return false
	}
	if f.WithPending && len(r.PendingEvents) == 0 {
		return false
	}
	return true
}

// MatchesCalendar applies f to e in memory.
func MatchesCalendar(f CalendarFilter, e *model.CalendarEvent) bool {
	if len(f.OwnerIDs) > 0 && !contains(f.OwnerIDs, e.OwnerUserID) {
		return false
	}
	if f.From != "" && e.EndDate < f.From {
		return false
	}
	if f.To != "" && e.StartDate > f.To {
		return false
	}
	return true
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
