// Package persistence implements the dual-write persistence gateway: a
// synchronous local cache that keeps the session usable offline, mirrored
// best-effort to a remote KV store when one is configured. Collections are
// saved as full JSON snapshots, never incremental diffs.
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fotochallenge-api/pkg/localcache"
	"fotochallenge-api/pkg/redis"
)

// Persisted collection names
const (
	CollectionPhotos     = "photos"
	CollectionChallenges = "challenges"
	CollectionUsers      = "users"
	CollectionVotes      = "votes"
)

// Collections lists every persisted snapshot name
var Collections = []string{
	CollectionPhotos,
	CollectionChallenges,
	CollectionUsers,
	CollectionVotes,
}

var (
	// ErrNotFound is returned when a backend holds no snapshot for a collection
	ErrNotFound = errors.New("persistence: collection not found")
	// ErrQuotaExceeded is returned when the local cache is out of capacity
	ErrQuotaExceeded = errors.New("persistence: local storage quota exceeded")
)

// Backend abstracts one storage target for collection snapshots
type Backend interface {
	Save(ctx context.Context, collection string, value interface{}) error
	Load(ctx context.Context, collection string, out interface{}) error
	Name() string
}

// LocalBackend persists snapshots to the bounded local cache
type LocalBackend struct {
	cache *localcache.Cache
}

// NewLocalBackend wraps a local cache as a Backend
func NewLocalBackend(cache *localcache.Cache) *LocalBackend {
	return &LocalBackend{cache: cache}
}

func (b *LocalBackend) Name() string { return "local" }

func (b *LocalBackend) Save(ctx context.Context, collection string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s snapshot: %w", collection, err)
	}
	if err := b.cache.Set(ctx, collection, data); err != nil {
		if errors.Is(err, localcache.ErrQuotaExceeded) {
			return ErrQuotaExceeded
		}
		return fmt.Errorf("failed to write %s snapshot: %w", collection, err)
	}
	return nil
}

func (b *LocalBackend) Load(ctx context.Context, collection string, out interface{}) error {
	data, err := b.cache.Get(ctx, collection)
	if err != nil {
		if errors.Is(err, localcache.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to read %s snapshot: %w", collection, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s snapshot: %w", collection, err)
	}
	return nil
}

// Wipe clears every locally cached snapshot
func (b *LocalBackend) Wipe(ctx context.Context) error {
	return b.cache.Wipe(ctx)
}

// RemoteBackend persists snapshots to the remote KV store
type RemoteBackend struct {
	client *redis.Client
}

// NewRemoteBackend wraps a redis client as a Backend
func NewRemoteBackend(client *redis.Client) *RemoteBackend {
	return &RemoteBackend{client: client}
}

func (b *RemoteBackend) Name() string { return "remote" }

// ttlFor returns the snapshot TTL for a collection. Challenge definitions
// are kept longer than vote data.
func ttlFor(collection string) time.Duration {
	if collection == CollectionChallenges {
		return redis.TTLChallenges
	}
	return redis.TTLDefault
}

func (b *RemoteBackend) Save(ctx context.Context, collection string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s snapshot: %w", collection, err)
	}
	key := b.client.KeyBuilder.KeyCollection(collection)
	if err := b.client.Set(ctx, key, string(data), ttlFor(collection)); err != nil {
		return fmt.Errorf("failed to mirror %s snapshot: %w", collection, err)
	}
	return nil
}

// Drop removes the mirrored snapshots for the given collections
func (b *RemoteBackend) Drop(ctx context.Context, collections ...string) error {
	keys := make([]string, len(collections))
	for i, collection := range collections {
		keys[i] = b.client.KeyBuilder.KeyCollection(collection)
	}
	if err := b.client.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("failed to drop mirrored snapshots: %w", err)
	}
	return nil
}

func (b *RemoteBackend) Load(ctx context.Context, collection string, out interface{}) error {
	key := b.client.KeyBuilder.KeyCollection(collection)
	data, err := b.client.Get(ctx, key)
	if err != nil {
		if err == redis.Nil {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load %s snapshot: %w", collection, err)
	}
	if err := json.Unmarshal([]byte(data), out); err != nil {
		return fmt.Errorf("failed to unmarshal %s snapshot: %w", collection, err)
	}
	return nil
}
