package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"hr-workflow/internal/model"
)

type CalendarStore struct {
	coll *mongo.Collection
}

func NewCalendarStore(ctx context.Context, db *MongoDB) (*CalendarStore, error) {
	coll := db.Collection("calendar_events")

	if _, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "owner_user_id", Value: 1},
				{Key: "start_date", Value: 1},
				{Key: "end_date", Value: 1},
				{Key: "event_type", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "source_request_id", Value: 1}}},
		{Keys: bson.D{{Key: "start_date", Value: 1}, {Key: "end_date", Value: 1}}},
	}); err != nil {
		return nil, fmt.Errorf("create calendar_events indexes: %w", err)
	}

	return &CalendarStore{coll: coll}, nil
}

func keyFilter(key model.CalendarKey) bson.M {
	return bson.M{
		"owner_user_id": key.OwnerUserID,
		"start_date":    key.StartDate,
		"end_date":      key.EndDate,
		"event_type":    key.EventType,
	}
}

// InsertCalendarEvent stores e and returns false when its business key is taken.
func (s *CalendarStore) InsertCalendarEvent(ctx context.Context, e *model.CalendarEvent) (bool, error) {
	if e.ID == "" {
		e.ID = bson.NewObjectID().Hex()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if _, err := s.coll.InsertOne(ctx, e); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert calendar event: %w", err)
	}
	return true, nil
}

// FindCalendarEvent returns the event holding key, or nil.
func (s *CalendarStore) FindCalendarEvent(ctx context.Context, key model.CalendarKey) (*model.CalendarEvent, error) {
	var e model.CalendarEvent
	err := s.coll.FindOne(ctx, keyFilter(key)).Decode(&e)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find calendar event: %w", err)
	}
	return &e, nil
}

func (s *CalendarStore) ListCalendarEvents(ctx context.Context, f CalendarFilter) ([]*model.CalendarEvent, error) {
	filter := bson.M{}
	if len(f.OwnerIDs) > 0 {
		filter["owner_user_id"] = bson.M{"$in": f.OwnerIDs}
	}
	if f.From != "" {
		filter["end_date"] = bson.M{"$gte": f.From}
	}
	if f.To != "" {
		filter["start_date"] = bson.M{"$lte": f.To}
	}
	cursor, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "start_date", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find calendar events: %w", err)
	}
	var results []*model.CalendarEvent
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("decode calendar events: %w", err)
	}
	return results, nil
}

// SetCalendarSource repoints an event to the request that currently justifies it.
func (s *CalendarStore) SetCalendarSource(ctx context.Context, id, sourceRequestID string) error {
	_, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"source_request_id": sourceRequestID}})
	if err != nil {
		return fmt.Errorf("update calendar event source: %w", err)
	}
	return nil
}

func (s *CalendarStore) DeleteCalendarEvent(ctx context.Context, id string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete calendar event: %w", err)
	}
	return nil
}

// DeleteCalendarBySource removes every event projected from requestID.
func (s *CalendarStore) DeleteCalendarBySource(ctx context.Context, requestID string) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{"source_request_id": requestID})
	if err != nil {
		return 0, fmt.Errorf("delete calendar events: %w", err)
	}
	return res.DeletedCount, nil
}
