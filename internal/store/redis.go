package store

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/go-redis/redis/v8"

	"github.com/roach88/waypost/internal/ir"
)

// DefaultRedisNamespace prefixes every key written by RedisStore.
const DefaultRedisNamespace = "waypost"

// RedisStore persists mutation records in two Redis hashes, one per namespace:
//
//	<namespace>:pending  id -> JSON record
//	<namespace>:failed   id -> JSON record
//
// Moves between namespaces run inside MULTI/EXEC.
// Flow snapshots are not supported; use Store for those.
type RedisStore struct {
	client    redis.UniversalClient
	namespace string
}

// NewRedisStore wraps a connected client. An empty namespace uses DefaultRedisNamespace.
func NewRedisStore(client redis.UniversalClient, namespace string) *RedisStore {
	if namespace == "" {
		namespace = DefaultRedisNamespace
	}
	return &RedisStore{client: client, namespace: namespace}
}

// OpenRedis connects to a single Redis server and verifies the connection with PING.
func OpenRedis(ctx context.Context, addr, password string, db int, namespace string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return NewRedisStore(client, namespace), nil
}

// Close closes the underlying client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) pendingKey() string { return r.namespace + ":pending" }
func (r *RedisStore) failedKey() string  { return r.namespace + ":failed" }

// Save writes a record into the pending hash.
func (r *RedisStore) Save(ctx context.Context, rec ir.MutationRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("save mutation: %w", err)
	}
	if err := r.client.HSet(ctx, r.pendingKey(), rec.ID, data).Err(); err != nil {
		return fmt.Errorf("save mutation: %w", err)
	}
	return nil
}

// Update rewrites a pending record. Returns ErrRecordNotFound if it is not pending.
func (r *RedisStore) Update(ctx context.Context, rec ir.MutationRecord) error {
	exists, err := r.client.HExists(ctx, r.pendingKey(), rec.ID).Result()
	if err != nil {
		return fmt.Errorf("update mutation: %w", err)
	}
	if !exists {
		return fmt.Errorf("update mutation %s: %w", rec.ID, ErrRecordNotFound)
	}
	return r.Save(ctx, rec)
}

// Remove deletes a record from the pending hash.
func (r *RedisStore) Remove(ctx context.Context, id string) error {
	if err := r.client.HDel(ctx, r.pendingKey(), id).Err(); err != nil {
		return fmt.Errorf("remove mutation: %w", err)
	}
	return nil
}

// RemoveFailed deletes a record from the failed hash.
func (r *RedisStore) RemoveFailed(ctx context.Context, id string) error {
	if err := r.client.HDel(ctx, r.failedKey(), id).Err(); err != nil {
		return fmt.Errorf("remove failed mutation: %w", err)
	}
	return nil
}

// MoveToFailed moves a record from the pending hash to the failed hash.
func (r *RedisStore) MoveToFailed(ctx context.Context, rec ir.MutationRecord) error {
	if err := r.move(ctx, rec, r.pendingKey(), r.failedKey()); err != nil {
		return fmt.Errorf("move to failed: %w", err)
	}
	return nil
}

// MoveFromFailed moves a record from the failed hash back to the pending hash.
func (r *RedisStore) MoveFromFailed(ctx context.Context, rec ir.MutationRecord) error {
	if err := r.move(ctx, rec, r.failedKey(), r.pendingKey()); err != nil {
		return fmt.Errorf("move from failed: %w", err)
	}
	return nil
}

func (r *RedisStore) move(ctx context.Context, rec ir.MutationRecord, from, to string) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, to, rec.ID, data)
		pipe.HDel(ctx, from, rec.ID)
		return nil
	})
	return err
}

// LoadPending returns every pending record ordered by seq, then id.
func (r *RedisStore) LoadPending(ctx context.Context) ([]ir.MutationRecord, error) {
	recs, err := r.load(ctx, r.pendingKey())
	if err != nil {
		return nil, fmt.Errorf("load pending: %w", err)
	}
	return recs, nil
}

// LoadFailed returns every failed record ordered by seq, then id.
func (r *RedisStore) LoadFailed(ctx context.Context) ([]ir.MutationRecord, error) {
	recs, err := r.load(ctx, r.failedKey())
	if err != nil {
		return nil, fmt.Errorf("load failed: %w", err)
	}
	return recs, nil
}

func (r *RedisStore) load(ctx context.Context, key string) ([]ir.MutationRecord, error) {
	raw, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	recs := make([]ir.MutationRecord, 0, len(raw))
	for id, data := range raw {
		var rec ir.MutationRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", id, err)
		}
		recs = append(recs, rec)
	}

	// Hashes are unordered; restore enqueue order
	slices.SortFunc(recs, func(a, b ir.MutationRecord) int {
		if a.Seq != b.Seq {
			if a.Seq < b.Seq {
				return -1
			}
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})
	return recs, nil
}

// ClearFailedQueue deletes the failed hash.
func (r *RedisStore) ClearFailedQueue(ctx context.Context) error {
	if err := r.client.Del(ctx, r.failedKey()).Err(); err != nil {
		return fmt.Errorf("clear failed queue: %w", err)
	}
	return nil
}

// ClearPendingQueue deletes the pending hash.
func (r *RedisStore) ClearPendingQueue(ctx context.Context) error {
	if err := r.client.Del(ctx, r.pendingKey()).Err(); err != nil {
		return fmt.Errorf("clear pending queue: %w", err)
	}
	return nil
}
