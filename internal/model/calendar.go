package model

import "time"

// EventType is the kind of absence a calendar entry represents.
type EventType string

const (
	EventTypeLeave    EventType = "leave"
	EventTypeTraining EventType = "training"
)

// CalendarEvent is a projection of a qualifying request. It is never written by users.
type CalendarEvent struct {
	ID              string    `bson:"_id" json:"id"`
	OwnerUserID     string    `bson:"owner_user_id" json:"owner_user_id"`
	Title           string    `bson:"title" json:"title"`
	StartDate       string    `bson:"start_date" json:"start_date"` // YYYY-MM-DD
	EndDate         string    `bson:"end_date" json:"end_date"`     // YYYY-MM-DD
	AllDay          bool      `bson:"all_day" json:"all_day"`
	EventType       EventType `bson:"event_type" json:"event_type"`
	SourceRequestID string    `bson:"source_request_id" json:"source_request_id"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
}

// CalendarKey is the business key: at most one calendar event exists per key.
type CalendarKey struct {
	OwnerUserID string
	StartDate   string
	EndDate     string
	EventType   EventType
}

func (e *CalendarEvent) Key() CalendarKey {
	return CalendarKey{
		OwnerUserID: e.OwnerUserID,
		StartDate:   e.StartDate,
		EndDate:     e.EndDate,
		EventType:   e.EventType,
	}
}
