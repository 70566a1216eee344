package worker

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// OrgLocker serializes per-organization batch runs across worker instances
// using a Redis SETNX lease. The queue builder and optimizer take a lock
// before running so two instances never produce duplicate snapshots or race
// an activation.
//
// A nil Redis client degrades to no locking, which is fine for a single
// worker process.
type OrgLocker struct {
	client *redis.Client
	ttl    time.Duration
	owner  string
}

// NewOrgLocker creates an org locker. client may be nil.
func NewOrgLocker(client *redis.Client, ttl time.Duration) *OrgLocker {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &OrgLocker{client: client, ttl: ttl, owner: uuid.New().String()}
}

// Acquire attempts to take the named lock. Returns false when another
// holder owns it.
func (l *OrgLocker) Acquire(ctx context.Context, name string) bool {
	if l.client == nil {
		return true
	}
	ok, err := l.client.SetNX(ctx, name, l.owner, l.ttl).Result()
	if err != nil {
		// Redis trouble should not stall batch work on a single worker;
		// log and proceed as if unlocked.
		log.Printf("[OrgLocker] acquire %s failed, proceeding unlocked: %v", name, err)
		return true
	}
	return ok
}

// Release frees the lock if this locker still owns it.
func (l *OrgLocker) Release(ctx context.Context, name string) {
	if l.client == nil {
		return
	}
	val, err := l.client.Get(ctx, name).Result()
	if err != nil || val != l.owner {
		return
	}
	if err := l.client.Del(ctx, name).Err(); err != nil {
		log.Printf("[OrgLocker] release %s failed: %v", name, err)
	}
}
