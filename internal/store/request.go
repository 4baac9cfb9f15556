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

// RequestStore persists requests in MongoDB. Each request document embeds its
// event log and the ids of events whose side effects are still pending, so a
// decision, its history entry and its outbox marker commit in one write.
type RequestStore struct {
	coll *mongo.Collection
}

func NewRequestStore(ctx context.Context, db *MongoDB) (*RequestStore, error) {
	coll := db.Collection("requests")

	if _, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "requester_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "category", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "pending_events", Value: 1}}},
	}); err != nil {
		return nil, fmt.Errorf("create requests indexes: %w", err)
	}

	return &RequestStore{coll: coll}, nil
}

// CreateRequest inserts a new request and sets its ID when empty.
func (s *RequestStore) CreateRequest(ctx context.Context, req *model.Request) error {
	if req.ID == "" {
		req.ID = bson.NewObjectID().Hex()
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
	// $push needs arrays, never null
	if req.Events == nil {
		req.Events = []model.Event{}
	}
	if req.PendingEvents == nil {
		req.PendingEvents = []string{}
	}
	if _, err := s.coll.InsertOne(ctx, req); err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

// GetRequest returns the request, or nil if not found.
func (s *RequestStore) GetRequest(ctx context.Context, id string) (*model.Request, error) {
	var req model.Request
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&req)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find request: %w", err)
	}
	return &req, nil
}

func (s *RequestStore) ListRequests(ctx context.Context, f RequestFilter) ([]*model.Request, error) {
	filter := bson.M{}
	if len(f.RequesterIDs) > 0 {
		filter["requester_id"] = bson.M{"$in": f.RequesterIDs}
	}
	if len(f.Statuses) > 0 {
		filter["status"] = bson.M{"$in": f.Statuses}
	}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	if f.WithPending {
		filter["pending_events.0"] = bson.M{"$exists": true}
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find requests: %w", err)
	}
	var results []*model.Request
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("decode requests: %w", err)
	}
	return results, nil
}

// CommitTransition writes the decided state of req together with ev, provided
// the stored version still equals expectedVersion. On success req.Version is
// advanced. A lost race yields ErrVersionMismatch.
func (s *RequestStore) CommitTransition(ctx context.Context, req *model.Request, expectedVersion int64, ev model.Event) error {
	set := bson.M{
		"status":     req.Status,
		"updated_at": req.UpdatedAt,
		"version":    expectedVersion + 1,
	}
	if req.ChefObservation != nil {
		set["chef_observation"] = *req.ChefObservation
	}
	if req.AdminResponse != nil {
		set["admin_response"] = *req.AdminResponse
	}

	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": req.ID, "version": expectedVersion},
		bson.M{
			"$set":  set,
			"$push": bson.M{"events": ev, "pending_events": ev.ID},
		},
	)
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	if res.MatchedCount == 0 {
		n, err := s.coll.CountDocuments(ctx, bson.M{"_id": req.ID})
		if err != nil {
			return fmt.Errorf("count request: %w", err)
		}
		if n == 0 {
			return ErrMissing
		}
		return ErrVersionMismatch
	}
	req.Version = expectedVersion + 1
	return nil
}

// ClearPending marks the side effects of eventID as done.
func (s *RequestStore) ClearPending(ctx context.Context, requestID, eventID string) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": requestID},
		bson.M{"$pull": bson.M{"pending_events": eventID}},
	)
	if err != nil {
		return fmt.Errorf("clear pending event: %w", err)
	}
	return nil
}

// DeleteRequest removes the request and reports whether it existed.
func (s *RequestStore) DeleteRequest(ctx context.Context, id string) (bool, error) {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("delete request: %w", err)
	}
	return res.DeletedCount > 0, nil
}
