package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/contrastkit/contrastkit/cache"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type kvDocument struct {
	Key       string     `bson:"_id"`
	Value     string     `bson:"value"`
	UpdatedAt time.Time  `bson:"updated_at"`
	ExpiresAt *time.Time `bson:"expires_at,omitempty"`
}

// KVStore implements cache.Store on a MongoDB collection. Expiry is enforced
// by a TTL index and, because the TTL monitor runs only once a minute, by
// filtering on read as well.
type KVStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewKVStore returns a store over the named collection. Call EnsureIndexes
// once at startup.
func NewKVStore(db *mongo.Database, collection string) *KVStore {
	if collection == "" {
		collection = KVCollection
	}

	return &KVStore{
		coll: db.Collection(collection),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// EnsureIndexes creates the TTL index on expires_at.
func (s *KVStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0).SetName("expires_at_ttl"),
	})
	if err != nil {
		return fmt.Errorf("failed to create ttl index: %w", err)
	}

	return nil
}

// Get implements cache.Store.Get.
func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	filter := bson.M{
		"_id": key,
		"$or": bson.A{
			bson.M{"expires_at": bson.M{"$exists": false}},
			bson.M{"expires_at": bson.M{"$gt": s.now()}},
		},
	}

	var doc kvDocument
	err := s.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find %q: %w", key, err)
	}

	return []byte(doc.Value), nil
}

// Put implements cache.Store.Put.
func (s *KVStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := s.now()
	doc := kvDocument{
		Key:       key,
		Value:     string(value),
		UpdatedAt: now,
	}
	if ttl > 0 {
		expiresAt := now.Add(ttl)
		doc.ExpiresAt = &expiresAt
	}

	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert %q: %w", key, err)
	}

	return nil
}

// Delete implements cache.Store.Delete.
func (s *KVStore) Delete(ctx context.Context, key string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}

	return nil
}

// Ping implements cache.Store.Ping.
func (s *KVStore) Ping(ctx context.Context) error {
	return s.coll.Database().Client().Ping(ctx, readpref.Primary())
}
