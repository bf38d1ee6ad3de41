package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisEntryPrefix  = "wuic:entry:"
	redisSourcePrefix = "wuic:source:"
	redisEntryIndex   = "wuic:entries"
	redisSourceIndex  = "wuic:sources"
)

// redisClient is the slice of the go-redis API the store uses. Tests stub it
// to exercise the store without a server.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	SAdd(ctx context.Context, key string, members ...any) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...any) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	Close() error
}

// RedisConfig configures the shared cache store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisStore keeps entries in Redis so several instances share one cache.
// Expiry rides on Redis key TTLs, so no sweep goroutine runs here. Writes
// span multiple commands without a transaction; a crash mid-Put can leave a
// dangling index member, which reads ignore and the next Put or Clear
// repairs.
type RedisStore struct {
	client redisClient

	mu  sync.Mutex
	ttl time.Duration
}

// Verify interface compliance at compile time.
var _ Store = (*RedisStore)(nil)

// NewRedis connects to the configured server.
func NewRedis(cfg RedisConfig) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisStore{client: rdb, ttl: cfg.TTL}
}

// SetTTL replaces the expiration applied to future writes. Entries already
// stored keep the TTL they were written with.
func (r *RedisStore) SetTTL(ttl time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ttl = ttl
}

func (r *RedisStore) expiration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ttl > 0 {
		return r.ttl
	}
	return 0
}

// Get implements Store.
func (r *RedisStore) Get(ctx context.Context, key Fingerprint) (*Entry, error) {
	payload, err := r.client.Get(ctx, redisEntryPrefix+key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}
	return DecodeEntry(key, payload)
}

// Put implements Store.
func (r *RedisStore) Put(ctx context.Context, e *Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	payload, err := EncodeEntry(ctx, e)
	if err != nil {
		return err
	}
	key := e.Key.String()
	if err := r.client.Set(ctx, redisEntryPrefix+key, payload, r.expiration()).Err(); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	if err := r.client.SAdd(ctx, redisEntryIndex, key).Err(); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	for _, src := range e.Sources {
		if err := r.client.SAdd(ctx, redisSourcePrefix+src, key).Err(); err != nil {
			return fmt.Errorf("cache put: %w", err)
		}
		if err := r.client.SAdd(ctx, redisSourceIndex, src).Err(); err != nil {
			return fmt.Errorf("cache put: %w", err)
		}
	}
	return nil
}

// Invalidate implements Store. Source sets may keep a dangling member for
// the dropped key; lookups through them tolerate missing entries.
func (r *RedisStore) Invalidate(ctx context.Context, key Fingerprint) error {
	if err := r.client.Del(ctx, redisEntryPrefix+key.String()).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	if err := r.client.SRem(ctx, redisEntryIndex, key.String()).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}

// InvalidateSource implements Store.
func (r *RedisStore) InvalidateSource(ctx context.Context, sourceID string) error {
	keys, err := r.client.SMembers(ctx, redisSourcePrefix+sourceID).Result()
	if err != nil {
		return fmt.Errorf("cache invalidate source: %w", err)
	}
	for _, key := range keys {
		if err := r.client.Del(ctx, redisEntryPrefix+key).Err(); err != nil {
			return fmt.Errorf("cache invalidate source: %w", err)
		}
		if err := r.client.SRem(ctx, redisEntryIndex, key).Err(); err != nil {
			return fmt.Errorf("cache invalidate source: %w", err)
		}
	}
	if err := r.client.Del(ctx, redisSourcePrefix+sourceID).Err(); err != nil {
		return fmt.Errorf("cache invalidate source: %w", err)
	}
	if err := r.client.SRem(ctx, redisSourceIndex, sourceID).Err(); err != nil {
		return fmt.Errorf("cache invalidate source: %w", err)
	}
	return nil
}

// Clear implements Store.
func (r *RedisStore) Clear(ctx context.Context) error {
	keys, err := r.client.SMembers(ctx, redisEntryIndex).Result()
	if err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	for _, key := range keys {
		if err := r.client.Del(ctx, redisEntryPrefix+key).Err(); err != nil {
			return fmt.Errorf("cache clear: %w", err)
		}
	}
	sources, err := r.client.SMembers(ctx, redisSourceIndex).Result()
	if err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	for _, src := range sources {
		if err := r.client.Del(ctx, redisSourcePrefix+src).Err(); err != nil {
			return fmt.Errorf("cache clear: %w", err)
		}
	}
	if err := r.client.Del(ctx, redisEntryIndex, redisSourceIndex).Err(); err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}

// Close implements Store.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
