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

type NotificationStore struct {
	coll *mongo.Collection
}

func NewNotificationStore(ctx context.Context, db *MongoDB) (*NotificationStore, error) {
	coll := db.Collection("notifications")

	if _, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "dedupe_key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "recipient_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "reference_request_id", Value: 1}}},
	}); err != nil {
		return nil, fmt.Errorf("create notifications indexes: %w", err)
	}

	return &NotificationStore{coll: coll}, nil
}

// InsertNotification stores n and returns false when a notification with the
// same dedupe key already exists.
func (s *NotificationStore) InsertNotification(ctx context.Context, n *model.Notification) (bool, error) {
	if n.ID == "" {
		n.ID = bson.NewObjectID().Hex()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if _, err := s.coll.InsertOne(ctx, n); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert notification: %w", err)
	}
	return true, nil
}

func (s *NotificationStore) ListNotifications(ctx context.Context, recipientID string, unreadOnly bool, limit int) ([]*model.Notification, error) {
	filter := bson.M{"recipient_id": recipientID}
	if unreadOnly {
		filter["is_read"] = false
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find notifications: %w", err)
	}
	var results []*model.Notification
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("decode notifications: %w", err)
	}
	return results, nil
}

// ListByRequest returns every notification that references requestID.
func (s *NotificationStore) ListByRequest(ctx context.Context, requestID string) ([]*model.Notification, error) {
	cursor, err := s.coll.Find(ctx, bson.M{"reference_request_id": requestID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find notifications: %w", err)
	}
	var results []*model.Notification
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("decode notifications: %w", err)
	}
	return results, nil
}

func (s *NotificationStore) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{"recipient_id": recipientID, "is_read": false})
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}

// MarkRead flips one notification owned by recipientID to read.
func (s *NotificationStore) MarkRead(ctx context.Context, id, recipientID string) (bool, error) {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id, "recipient_id": recipientID},
		bson.M{"$set": bson.M{"is_read": true}},
	)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	return res.MatchedCount > 0, nil
}

func (s *NotificationStore) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	res, err := s.coll.UpdateMany(ctx,
		bson.M{"recipient_id": recipientID, "is_read": false},
		bson.M{"$set": bson.M{"is_read": true}},
	)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return res.ModifiedCount, nil
}

func (s *NotificationStore) DeleteNotification(ctx context.Context, id, recipientID string) (bool, error) {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id, "recipient_id": recipientID})
	if err != nil {
		return false, fmt.Errorf("delete notification: %w", err)
	}
	return res.DeletedCount > 0, nil
}

// DeleteByRequest removes every notification that references requestID.
func (s *NotificationStore) DeleteByRequest(ctx context.Context, requestID string) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{"reference_request_id": requestID})
	if err != nil {
		return 0, fmt.Errorf("delete request notifications: %w", err)
	}
	return res.DeletedCount, nil
}
