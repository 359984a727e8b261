package audit

import (
	"context"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepository appends entries to a collection.
type MongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(ctx context.Context, col *mongo.Collection) (*MongoRepository, error) {
	_, err := col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "targetId", Value: 1}, {Key: "at", Value: -1}}},
		{Keys: bson.D{{Key: "actorId", Value: 1}, {Key: "at", Value: -1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("audit/mongo: create indexes: %w", err)
	}
	return &MongoRepository{col: col}, nil
}

func (r *MongoRepository) Append(ctx context.Context, e *Entry) error {
	if _, err := r.col.InsertOne(ctx, e); err != nil {
		return fmt.Errorf("audit/mongo: insert: %w", err)
	}
	return nil
}

func (r *MongoRepository) List(ctx context.Context, q Query) ([]*Entry, error) {
	filter := bson.M{}
	if q.TargetID != "" {
		filter["targetId"] = q.TargetID
	}
	if q.ActorID != "" {
		filter["actorId"] = q.ActorID
	}
	if q.Resource != "" {
		filter["resource"] = q.Resource
	}
	opts := options.Find().SetSort(bson.D{{Key: "at", Value: -1}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	if q.Offset > 0 {
		opts.SetSkip(int64(q.Offset))
	}
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("audit/mongo: find: %w", err)
	}
	defer cur.Close(ctx)
	var out []*Entry
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("audit/mongo: decode: %w", err)
	}
	return out, nil
}

// MemoryRepository keeps entries in process memory.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Append(_ context.Context, e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *e)
	return nil
}

func (r *MemoryRepository) List(_ context.Context, q Query) ([]*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Entry
	skipped := 0
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if !q.matches(&e) {
			continue
		}
		if skipped < q.Offset {
			skipped++
			continue
		}
		out = append(out, &e)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}
