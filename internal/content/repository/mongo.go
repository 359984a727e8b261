package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fansite/contentflow/internal/workflow"
)

// MongoStore keeps one content kind per collection. Conditional writes filter
// on both _id and version, so the server performs the compare-and-swap.
type MongoStore[P any] struct {
	col *mongo.Collection
}

func NewMongoStore[P any](ctx context.Context, col *mongo.Collection) (*MongoStore[P], error) {
	idx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "updatedAt", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "updatedAt", Value: -1}}},
	}
	if _, err := col.Indexes().CreateMany(ctx, idx); err != nil {
		return nil, fmt.Errorf("content/mongo: create indexes: %w", err)
	}
	return &MongoStore[P]{col: col}, nil
}

func (s *MongoStore[P]) Create(ctx context.Context, item *workflow.Item[P]) error {
	if _, err := s.col.InsertOne(ctx, item); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return workflow.ErrAlreadyExists
		}
		return fmt.Errorf("content/mongo: insert: %w", err)
	}
	return nil
}

func (s *MongoStore[P]) Get(ctx context.Context, id string) (*workflow.Item[P], error) {
	var it workflow.Item[P]
	if err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&it); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, workflow.ErrNotFound
		}
		return nil, fmt.Errorf("content/mongo: get: %w", err)
	}
	return &it, nil
}

func (s *MongoStore[P]) UpdateIfVersion(ctx context.Context, item *workflow.Item[P], expected int64) error {
	res, err := s.col.ReplaceOne(ctx, bson.M{"_id": item.ID, "version": expected}, item)
	if err != nil {
		return fmt.Errorf("content/mongo: replace: %w", err)
	}
	if res.MatchedCount == 0 {
		return s.missing(ctx, item.ID)
	}
	return nil
}

func (s *MongoStore[P]) DeleteIfVersion(ctx context.Context, id string, expected int64) error {
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": id, "version": expected})
	if err != nil {
		return fmt.Errorf("content/mongo: delete: %w", err)
	}
	if res.DeletedCount == 0 {
		return s.missing(ctx, id)
	}
	return nil
}

// missing tells a lost CAS race apart from an item that no longer exists.
func (s *MongoStore[P]) missing(ctx context.Context, id string) error {
	n, err := s.col.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("content/mongo: count: %w", err)
	}
	if n == 0 {
		return workflow.ErrNotFound
	}
	return workflow.ErrVersionConflict
}

func (s *MongoStore[P]) List(ctx context.Context, f workflow.Filter) ([]*workflow.Item[P], error) {
	filter := bson.M{}
	if f.OwnerID != "" {
		filter["ownerId"] = f.OwnerID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}, {Key: "_id", Value: 1}})
	if f.Offset > 0 {
		opts.SetSkip(int64(f.Offset))
	}
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	cur, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("content/mongo: find: %w", err)
	}
	defer cur.Close(ctx)
	out := []*workflow.Item[P]{}
	for cur.Next(ctx) {
		var it workflow.Item[P]
		if err := cur.Decode(&it); err != nil {
			return nil, fmt.Errorf("content/mongo: decode: %w", err)
		}
		out = append(out, &it)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("content/mongo: cursor: %w", err)
	}
	return out, nil
}
