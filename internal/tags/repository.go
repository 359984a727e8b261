package tags

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(ctx context.Context, col *mongo.Collection) (*MongoRepository, error) {
	_, err := col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("tags/mongo: create index: %w", err)
	}
	return &MongoRepository{col: col}, nil
}

func (r *MongoRepository) Search(ctx context.Context, q string, limit int) ([]*Tag, error) {
	filter := bson.M{}
	if q != "" {
		filter["name"] = primitive.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"}
	}
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}}).SetLimit(int64(limit))
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("tags/mongo: find: %w", err)
	}
	defer cur.Close(ctx)
	var out []*Tag
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("tags/mongo: decode: %w", err)
	}
	return out, nil
}

// FindOrCreate upserts on name; concurrent callers converge on one document.
func (r *MongoRepository) FindOrCreate(ctx context.Context, t *Tag) (*Tag, error) {
	upd := bson.M{"$setOnInsert": bson.M{
		"_id":       t.ID,
		"value":     t.Value,
		"category":  t.Category,
		"createdAt": t.CreatedAt,
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var got Tag
	err := r.col.FindOneAndUpdate(ctx, bson.M{"name": t.Name}, upd, opts).Decode(&got)
	if mongo.IsDuplicateKeyError(err) {
		// lost the upsert race; the winner's document is there now
		err = r.col.FindOne(ctx, bson.M{"name": t.Name}).Decode(&got)
	}
	if err != nil {
		return nil, fmt.Errorf("tags/mongo: upsert: %w", err)
	}
	return &got, nil
}

// MemoryRepository keeps tags in process memory.
type MemoryRepository struct {
	mu     sync.RWMutex
	byName map[string]Tag
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byName: make(map[string]Tag)}
}

func (r *MemoryRepository) Search(_ context.Context, q string, limit int) ([]*Tag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q = strings.ToLower(q)
	var out []*Tag
	for _, t := range r.byName {
		if strings.Contains(strings.ToLower(t.Name), q) {
			t := t
			out = append(out, &t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) FindOrCreate(_ context.Context, t *Tag) (*Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.byName[t.Name]; ok {
		return &cur, nil
	}
	r.byName[t.Name] = *t
	cp := *t
	return &cp, nil
}
