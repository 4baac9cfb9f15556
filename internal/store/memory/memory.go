// Package memory is an in-process backend with the same semantics as the
// MongoDB stores: conditional transition writes, unique notification dedupe
// keys and unique calendar business keys.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"hr-workflow/internal/model"
	"hr-workflow/internal/store"
)

type Store struct {
	mu            sync.RWMutex
	requests      map[string]*model.Request
	notifications map[string]*model.Notification
	dedupe        map[string]string
	calendar      map[string]*model.CalendarEvent
	calendarKeys  map[model.CalendarKey]string
}

func New() *Store {
	return &Store{
		requests:      make(map[string]*model.Request),
		notifications: make(map[string]*model.Notification),
		dedupe:        make(map[string]string),
		calendar:      make(map[string]*model.CalendarEvent),
		calendarKeys:  make(map[model.CalendarKey]string),
	}
}

// --- Requests ---

func (s *Store) CreateRequest(ctx context.Context, req *model.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	if req.UpdatedAt.IsZero() {
		req.UpdatedAt = req.CreatedAt
	}
	if req.Version == 0 {
		req.Version = 1
	}
	s.requests[req.ID] = req.Clone()
	return nil
}

func (s *Store) GetRequest(ctx context.Context, id string) (*model.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, nil
	}
	return req.Clone(), nil
}

func (s *Store) ListRequests(ctx context.Context, f store.RequestFilter) ([]*model.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Request
	for _, r := range s.requests {
		if store.MatchesRequest(f, r) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) CommitTransition(ctx context.Context, req *model.Request, expectedVersion int64, ev model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.requests[req.ID]
	if !ok {
		return store.ErrMissing
	}
	if cur.Version != expectedVersion {
		return store.ErrVersionMismatch
	}
	next := cur.Clone()
	next.Status = req.Status
	next.UpdatedAt = req.UpdatedAt
	if req.ChefObservation != nil {
		v := *req.ChefObservation
		next.ChefObservation = &v
	}
	if req.AdminResponse != nil {
		v := *req.AdminResponse
		next.AdminResponse = &v
	}
	next.Events = append(next.Events, ev)
	next.PendingEvents = append(next.PendingEvents, ev.ID)
	next.Version = expectedVersion + 1
	s.requests[req.ID] = next
	req.Version = next.Version
	return nil
}

func (s *Store) ClearPending(ctx context.Context, requestID, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[requestID]
	if !ok {
		return nil
	}
	kept := req.PendingEvents[:0]
	for _, id := range req.PendingEvents {
		if id != eventID {
			kept = append(kept, id)
		}
	}
	req.PendingEvents = kept
	return nil
}

func (s *Store) DeleteRequest(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[id]; !ok {
		return false, nil
	}
	delete(s.requests, id)
	return true, nil
}

// --- Notifications ---

func (s *Store) InsertNotification(ctx context.Context, n *model.Notification) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.DedupeKey != "" {
		if _, ok := s.dedupe[n.DedupeKey]; ok {
			return false, nil
		}
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	cp := *n
	s.notifications[n.ID] = &cp
	if n.DedupeKey != "" {
		s.dedupe[n.DedupeKey] = n.ID
	}
	return true, nil
}

func (s *Store) ListNotifications(ctx context.Context, recipientID string, unreadOnly bool, limit int) ([]*model.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Notification
	for _, n := range s.notifications {
		if n.RecipientID != recipientID || (unreadOnly && n.IsRead) {
			continue
		}
		cp := *n
		out = append(out, &cp)
	}
	sortNotifications(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListByRequest(ctx context.Context, requestID string) ([]*model.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Notification
	for _, n := range s.notifications {
		if n.ReferenceRequestID == requestID {
			cp := *n
			out = append(out, &cp)
		}
	}
	sortNotifications(out)
	return out, nil
}

func sortNotifications(out []*model.Notification) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
}

func (s *Store) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, v := range s.notifications {
		if v.RecipientID == recipientID && !v.IsRead {
			n++
		}
	}
	return n, nil
}

func (s *Store) MarkRead(ctx context.Context, id, recipientID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.RecipientID != recipientID {
		return false, nil
	}
	n.IsRead = true
	return true, nil
}

func (s *Store) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var changed int64
	for _, n := range s.notifications {
		if n.RecipientID == recipientID && !n.IsRead {
			n.IsRead = true
			changed++
		}
	}
	return changed, nil
}

func (s *Store) DeleteNotification(ctx context.Context, id, recipientID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.RecipientID != recipientID {
		return false, nil
	}
	s.deleteNotificationLocked(n)
	return true, nil
}

func (s *Store) DeleteByRequest(ctx context.Context, requestID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for _, n := range s.notifications {
		if n.ReferenceRequestID == requestID {
			s.deleteNotificationLocked(n)
			deleted++
		}
	}
	return deleted, nil
}

func (s *Store) deleteNotificationLocked(n *model.Notification) {
	delete(s.notifications, n.ID)
	if n.DedupeKey != "" {
		delete(s.dedupe, n.DedupeKey)
	}
}

// --- Calendar ---

func (s *Store) InsertCalendarEvent(ctx context.Context, e *model.CalendarEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.calendarKeys[e.Key()]; ok {
		return false, nil
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	cp := *e
	s.calendar[e.ID] = &cp
	s.calendarKeys[e.Key()] = e.ID
	return true, nil
}

func (s *Store) FindCalendarEvent(ctx context.Context, key model.CalendarKey) (*model.CalendarEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.calendarKeys[key]
	if !ok {
		return nil, nil
	}
	cp := *s.calendar[id]
	return &cp, nil
}

func (s *Store) ListCalendarEvents(ctx context.Context, f store.CalendarFilter) ([]*model.CalendarEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.CalendarEvent
	for _, e := range s.calendar {
		if store.MatchesCalendar(f, e) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartDate == out[j].StartDate {
			return out[i].ID < out[j].ID
		}
		return out[i].StartDate < out[j].StartDate
	})
	return out, nil
}

func (s *Store) SetCalendarSource(ctx context.Context, id, sourceRequestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.calendar[id]; ok {
		e.SourceRequestID = sourceRequestID
	}
	return nil
}

func (s *Store) DeleteCalendarEvent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.calendar[id]; ok {
		delete(s.calendarKeys, e.Key())
		delete(s.calendar, id)
	}
	return nil
}

func (s *Store) DeleteCalendarBySource(ctx context.Context, requestID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for id, e := range s.calendar {
		if e.SourceRequestID == requestID {
			delete(s.calendarKeys, e.Key())
			delete(s.calendar, id)
			deleted++
		}
	}
	return deleted, nil
}
