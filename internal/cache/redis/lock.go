package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/mengo6988/foresight-graph/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// unlockLua deletes a lock key only if its value matches the caller's unique
// token. This prevents one holder from accidentally releasing another
// holder's lock.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// renewLua extends a lock key's TTL only while the caller still holds it.
// Returns 0 when the key expired or was taken over, so the holder learns it
// lost the lock instead of resurrecting someone else's.
const renewLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`

// LockManager implements domain.LockManager using Redis SETNX with a TTL and
// Lua-based conditional renew/unlock.
type LockManager struct {
	rdb      *redis.Client
	unlockSc *redis.Script
	renewSc  *redis.Script
}

// NewLockManager creates a LockManager backed by the given Client.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{
		rdb:      c.Underlying(),
		unlockSc: redis.NewScript(unlockLua),
		renewSc:  redis.NewScript(renewLua),
	}
}

func lockKey(key string) string {
	return "lock:" + key
}

// heldLock is one acquired lock, identified by its token.
type heldLock struct {
	lm       *LockManager
	key      string
	token    string
	released bool
}

// Acquire attempts to obtain a distributed lock for the given key with the
// specified TTL.
//
// It returns domain.ErrLockHeld if the lock is already held by another party.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (domain.Lock, error) {
	token := uuid.New().String()
	lk := lockKey(key)

	ok, err := lm.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}

	return &heldLock{lm: lm, key: lk, token: token}, nil
}

// Renew extends the lock's TTL. Returns domain.ErrLockLost when the key has
// expired or another party took it over in the meantime.
func (l *heldLock) Renew(ctx context.Context, ttl time.Duration) error {
	if l.released {
		return domain.ErrLockLost
	}
	n, err := l.lm.renewSc.Run(ctx, l.lm.rdb, []string{l.key}, l.token, ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("redis: renew lock %s: %w", l.key, err)
	}
	if n == 0 {
		return domain.ErrLockLost
	}
	return nil
}

// Release frees the lock. It is safe to call more than once.
func (l *heldLock) Release() {
	if l.released {
		return
	}
	l.released = true

	// Use a background context so release succeeds even if the caller's
	// context is already cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = l.lm.unlockSc.Run(ctx, l.lm.rdb, []string{l.key}, l.token).Err()
}

// Compile-time interface checks.
var (
	_ domain.LockManager = (*LockManager)(nil)
	_ domain.Lock        = (*heldLock)(nil)
)
