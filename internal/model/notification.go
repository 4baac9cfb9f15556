package model

import "time"

type NotificationKind string

const (
	NotificationInfo    NotificationKind = "info"
	NotificationSuccess NotificationKind = "success"
	NotificationWarning NotificationKind = "warning"
	NotificationError   NotificationKind = "error"
)

type Platform string

const (
	PlatformWeb    Platform = "web"
	PlatformMobile Platform = "mobile"
	PlatformBoth   Platform = "both"
)

type Notification struct {
	ID                 string           `bson:"_id" json:"id"`
	RecipientID        string           `bson:"recipient_id" json:"recipient_id"`
	Title              string           `bson:"title" json:"title"`
	Message            string           `bson:"message" json:"message"`
	Kind               NotificationKind `bson:"kind" json:"kind"`
	ReferenceRequestID string           `bson:"reference_request_id,omitempty" json:"reference_request_id,omitempty"`
	IsRead             bool             `bson:"is_read" json:"is_read"`
	Platform           Platform         `bson:"platform" json:"platform"`
	DedupeKey          string           `bson:"dedupe_key" json:"-"` // event id + recipient
	CreatedAt          time.Time        `bson:"created_at" json:"created_at"`
}

// NotificationDedupeKey identifies the single notification a recipient gets for an event.
func NotificationDedupeKey(eventID, recipientID string) string {
	return eventID + ":" + recipientID
}
