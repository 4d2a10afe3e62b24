package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/chris-ch/coinarb/internal/domain"
)

// releaseTimeout bounds the unlock call, which runs on a background context
// because the holder's own context is usually already cancelled by then.
const releaseTimeout = 5 * time.Second

// unlockScript deletes the lock key only when it still holds the caller's
// token, so a lock that expired and was re-acquired elsewhere stays put.
var unlockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// LockManager implements domain.LockManager with SETNX plus a TTL. Monitor
// mode takes a lock at startup so two instances never subscribe the same
// order books and double-record opportunities.
type LockManager struct {
	rdb *redis.Client
}

// NewLockManager creates a LockManager backed by the given Client.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{rdb: c.Underlying()}
}

// Acquire takes the lock named key for at most ttl. It returns
// domain.ErrLockHeld when another holder has it. The returned release
// function is idempotent.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.New().String()
	redisKey := "lock:" + key

	ok, err := lm.rdb.SetNX(ctx, redisKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}

	released := false
	release := func() {
		if released {
			return
		}
		released = true

		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		_ = unlockScript.Run(ctx, lm.rdb, []string{redisKey}, token).Err()
	}
	return release, nil
}

var _ domain.LockManager = (*LockManager)(nil)
