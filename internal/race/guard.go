package race

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const announceKeyPrefix = "race:announced:"

// Guard decides whether a race announcement fires for the first time.
type Guard interface {
	// FirstAnnounce reports true exactly once per key.
	FirstAnnounce(ctx context.Context, key string) (bool, error)
}

// MemoryGuard deduplicates within a single process lifetime.
type MemoryGuard struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{seen: make(map[string]struct{})}
}

func (g *MemoryGuard) FirstAnnounce(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.seen[key]; ok {
		return false, nil
	}
	g.seen[key] = struct{}{}
	return true, nil
}

// RedisGuard deduplicates across restarts with SETNX and a TTL that outlives
// the race weekend.
type RedisGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisGuard(redisURL string) (*RedisGuard, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisGuard{rdb: rdb, ttl: 7 * 24 * time.Hour}, nil
}

func (g *RedisGuard) FirstAnnounce(ctx context.Context, key string) (bool, error) {
	ok, err := g.rdb.SetNX(ctx, announceKeyPrefix+key, 1, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func (g *RedisGuard) Close() error {
	return g.rdb.Close()
}
