// Package cache keeps the revoked session tokens until they expire on their own.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/smartcampus/campus/core"
)

const keyPrefix = "campus:revoked:"

// Blocklist holds the IDs (jti) of revoked tokens.
type Blocklist interface {
	// Revoke blocks jti until `until`. Past deadlines are a no-op.
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	Close() error
}

// New returns a redis backed Blocklist when a redis address is configured, an in-memory one otherwise.
func New(ctx context.Context, conf *core.Config) (Blocklist, error) {
	if conf.Cache.RedisAddr == "" {
		return NewMemoryBlocklist(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     conf.Cache.RedisAddr,
		Password: conf.Cache.RedisPassword,
		DB:       conf.Cache.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return NewRedisBlocklist(client), nil
}

type redisBlocklist struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisBlocklist(client *redis.Client) Blocklist {
	return &redisBlocklist{client: client, now: time.Now}
}

func (bl *redisBlocklist) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := until.Sub(bl.now())
	if ttl <= 0 {
		return nil
	}
	if err := bl.client.Set(ctx, keyPrefix+jti, 1, ttl).Err(); err != nil {
		return errors.Wrap(err, "revoking token")
	}
	return nil
}

func (bl *redisBlocklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	err := bl.client.Get(ctx, keyPrefix+jti).Err()
	switch err {
	case nil:
		return true, nil
	case redis.Nil:
		return false, nil
	}
	return false, errors.Wrap(err, "checking revoked token")
}

func (bl *redisBlocklist) Close() error {
	return bl.client.Close()
}

type memoryBlocklist struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

func NewMemoryBlocklist() Blocklist {
	return &memoryBlocklist{revoked: make(map[string]time.Time), now: time.Now}
}

func (bl *memoryBlocklist) Revoke(_ context.Context, jti string, until time.Time) error {
	bl.mu.Lock()
	defer bl.mu.Unlock()

	now := bl.now()
	if !until.After(now) {
		return nil
	}
	bl.revoked[jti] = until

	// drop what expired
	for id, exp := range bl.revoked {
		if !exp.After(now) {
			delete(bl.revoked, id)
		}
	}
	return nil
}

func (bl *memoryBlocklist) IsRevoked(_ context.Context, jti string) (bool, error) {
	bl.mu.Lock()
	defer bl.mu.Unlock()

	exp, ok := bl.revoked[jti]
	return ok && exp.After(bl.now()), nil
}

func (bl *memoryBlocklist) Close() error { return nil }
