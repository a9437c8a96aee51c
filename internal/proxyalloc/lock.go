package proxyalloc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// HostLock is an optional distributed lock, one per host, that Acquire takes
// before its row-locked transaction. Acquire proceeds to that transaction
// whether TryLock wins, loses, or errors, so the lock does not reduce how
// many callers reach the database; the DB row lock is what serializes
// them. Adapted from the teacher pack's redis-backed distributed lock
// (SetNX + token-checked Lua unlock).
type HostLock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

const hostLockTTL = 5 * time.Second

// NewHostLock builds a lock keyed to one host's proxy pool. client may be
// nil, in which case every method is a no-op that reports the lock as
// acquired — Acquire's correctness never depends on this lock being held.
func NewHostLock(client *redis.Client, hostID uint) *HostLock {
	return &HostLock{
		client: client,
		key:    fmt.Sprintf("proxyalloc:lock:host:%d", hostID),
		token:  uuid.NewString(),
		ttl:    hostLockTTL,
	}
}

// TryLock attempts to acquire the lock without blocking.
func (l *HostLock) TryLock(ctx context.Context) (bool, error) {
	if l.client == nil {
		return true, nil
	}
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("proxyalloc: acquire host lock: %w", err)
	}
	return ok, nil
}

var unlockScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Unlock releases the lock if this instance still holds it; a no-op if it
// doesn't (the TTL already expired, or this HostLock is the nil-client
// no-op variant).
func (l *HostLock) Unlock(ctx context.Context) error {
	if l.client == nil {
		return nil
	}
	_, err := unlockScript.Run(ctx, l.client, []string{l.key}, l.token).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("proxyalloc: release host lock: %w", err)
	}
	return nil
}
