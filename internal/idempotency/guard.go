// Package idempotency holds short-lived leases that stop two payment
// attempts for the same transaction from overlapping.
package idempotency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"creditline-backend/internal/logger"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "ledger:payment:"

// Guard grants at most one live lease per key.
type Guard interface {
	// Acquire returns false when another owner holds a live lease.
	Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	// Release drops the lease only if owner still holds it.
	Release(ctx context.Context, key, owner string) error
}

// releaseScript deletes the key only when it still holds our owner token,
// so an expired-then-reacquired lease is never removed by the old owner.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisGuard struct {
	client *redis.Client
}

func NewRedisGuard(client *redis.Client) *RedisGuard {
	return &RedisGuard{client: client}
}

func (g *RedisGuard) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	logger.ExternalServiceCall("redis", "SETNX", "key", keyPrefix+key)
	ok, err := g.client.SetNX(ctx, keyPrefix+key, owner, ttl).Result()
	logger.ExternalServiceResult("redis", "SETNX", err, "acquired", ok)
	if err != nil {
		return false, fmt.Errorf("acquire payment lease: %w", err)
	}
	return ok, nil
}

func (g *RedisGuard) Release(ctx context.Context, key, owner string) error {
	if err := releaseScript.Run(ctx, g.client, []string{keyPrefix + key}, owner).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release payment lease: %w", err)
	}
	return nil
}

type lease struct {
	owner   string
	expires time.Time
}

// LocalGuard is the single-process fallback used when no Redis is configured.
type LocalGuard struct {
	mu     sync.Mutex
	leases map[string]lease
	now    func() time.Time
}

func NewLocalGuard() *LocalGuard {
	return &LocalGuard{leases: make(map[string]lease), now: time.Now}
}

func (g *LocalGuard) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.prune(now)
	if _, ok := g.leases[key]; ok {
		return false, nil
	}
	g.leases[key] = lease{owner: owner, expires: now.Add(ttl)}
	return true, nil
}

func (g *LocalGuard) Release(ctx context.Context, key, owner string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if l, ok := g.leases[key]; ok && l.owner == owner {
		delete(g.leases, key)
	}
	return nil
}

// prune drops expired leases. Callers hold mu.
func (g *LocalGuard) prune(now time.Time) {
	for key, l := range g.leases {
		if !now.Before(l.expires) {
			delete(g.leases, key)
		}
	}
}

// New returns a Redis-backed guard when addr is set and reachable, otherwise
// the local fallback.
func New(ctx context.Context, addr, password string, db int) (Guard, func() error) {
	if addr == "" {
		logger.Info("No Redis configured, using in-process payment guard")
		return NewLocalGuard(), func() error { return nil }
	}

	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis connection failed, using in-process payment guard", "addr", addr, "error", err)
		client.Close()
		return NewLocalGuard(), func() error { return nil }
	}

	logger.Info("Redis payment guard connected", "addr", addr)
	return NewRedisGuard(client), client.Close
}
