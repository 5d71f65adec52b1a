package profilecache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/metalagman/pendingreview/internal/store"
	"github.com/redis/go-redis/v9"
)

// Redis is a cache shared between processes, fronted by a small local
// TinyLFU.
type Redis struct {
	Data   *cache.Cache
	Client *redis.Client
	TTL    time.Duration
}

var _ Store = (*Redis)(nil)

// NewRedis connects to redisURL and verifies the connection.
func NewRedis(ctx context.Context, redisURL string, localSize int, ttl time.Duration) (*Redis, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{
		Data: cache.New(&cache.Options{
			Redis:      rdb,
			LocalCache: cache.NewTinyLFU(localSize, min(ttl, time.Minute)),
		}),
		Client: rdb,
		TTL:    ttl,
	}, nil
}

func redisKey(wikiID int64, username string) string {
	return "pendingreview/profile/" + cacheKey(wikiID, username)
}

func (r *Redis) Get(ctx context.Context, wikiID int64, username string) (store.EditorProfile, bool, error) {
	var p store.EditorProfile
	err := r.Data.Get(ctx, redisKey(wikiID, username), &p)
	if errors.Is(err, cache.ErrCacheMiss) {
		return store.EditorProfile{}, false, nil
	}
	if err != nil {
		return store.EditorProfile{}, false, fmt.Errorf("get cached profile: %w", err)
	}
	p.WikiID = wikiID
	return p, true, nil
}

func (r *Redis) Set(ctx context.Context, profile store.EditorProfile) error {
	err := r.Data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   redisKey(profile.WikiID, profile.Username),
		Value: profile,
		TTL:   r.TTL,
	})
	if err != nil {
		return fmt.Errorf("cache profile: %w", err)
	}
	return nil
}

func (r *Redis) Purge(ctx context.Context, wikiID int64, username string) error {
	err := r.Data.Delete(ctx, redisKey(wikiID, username))
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		return fmt.Errorf("purge cached profile: %w", err)
	}
	return nil
}

// Close releases the Redis connection pool.
func (r *Redis) Close() error {
	return r.Client.Close()
}
