// Package signer serializes transaction submission per signing key.
package signer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/logger"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Locker grants exclusive use of a signer. The returned release func must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, signer string) (release func(), err error)
}

// unlockScript deletes the key only while it still holds our owner token.
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// renewScript pushes the expiry forward only while the key still holds our owner token.
var renewScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLock shares the signer lock between every process pointed at the same redis.
type RedisLock struct {
	Client *redis.Client
	TTL    time.Duration
	Poll   time.Duration
	Logger *logger.Logger
}

func NewRedisLock(client *redis.Client, ttl time.Duration, log *logger.Logger) *RedisLock {
	if ttl <= 0 {
		ttl = 3 * time.Minute
	}
	return &RedisLock{Client: client, TTL: ttl, Poll: 100 * time.Millisecond, Logger: log}
}

func lockKey(signer string) string {
	return "signer_lock:" + signer
}

// TryLock makes a single attempt and reports whether the lock was taken.
func (l *RedisLock) TryLock(ctx context.Context, signer, owner string) (bool, error) {
	return l.Client.SetNX(ctx, lockKey(signer), owner, l.TTL).Result()
}

// Unlock releases the lock if owner still holds it.
func (l *RedisLock) Unlock(ctx context.Context, signer, owner string) error {
	err := unlockScript.Run(ctx, l.Client, []string{lockKey(signer)}, owner).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

// Renew extends the lock by TTL and reports whether owner still held it.
func (l *RedisLock) Renew(ctx context.Context, signer, owner string) (bool, error) {
	n, err := renewScript.Run(ctx, l.Client, []string{lockKey(signer)}, owner, l.TTL.Milliseconds()).Int64()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	return n == 1, err
}

// keepAlive renews the lock every TTL/3 until stop is closed, so a holder blocked on a slow
// receipt does not lose the signer to another process.
func (l *RedisLock) keepAlive(signer, owner string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.TTL / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			held, err := l.Renew(ctx, signer, owner)
			cancel()
			if err != nil {
				l.Logger.Warn("SIGNER", fmt.Sprintf("Failed to renew lock of %s: %v", signer, err))
				continue
			}
			if !held {
				l.Logger.Warn("SIGNER", fmt.Sprintf("Lock of %s expired before release", signer))
				return
			}
		}
	}
}

// Lock waits until the signer is free or ctx is done. The lock is renewed until released.
func (l *RedisLock) Lock(ctx context.Context, signer string) (func(), error) {
	owner := uuid.New().String()
	ticker := time.NewTicker(l.Poll)
	defer ticker.Stop()

	for {
		ok, err := l.TryLock(ctx, signer, owner)
		if err != nil {
			return nil, fmt.Errorf("acquire signer lock: %w", err)
		}
		if ok {
			stop, done := make(chan struct{}), make(chan struct{})
			go l.keepAlive(signer, owner, stop, done)
			var once sync.Once
			return func() {
				once.Do(func() {
					close(stop)
					<-done
					// release even when the caller's context is already cancelled
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := l.Unlock(ctx, signer, owner); err != nil {
						l.Logger.Warn("SIGNER", fmt.Sprintf("Failed to release lock of %s: %v", signer, err))
					}
				})
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for signer %s: %w", signer, ctx.Err())
		case <-ticker.C:
		}
	}
}

// LocalLock serializes signers inside one process.
type LocalLock struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewLocalLock() *LocalLock {
	return &LocalLock{slots: make(map[string]chan struct{})}
}

func (l *LocalLock) slot(signer string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[signer]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[signer] = ch
	}
	return ch
}

func (l *LocalLock) Lock(ctx context.Context, signer string) (func(), error) {
	ch := l.slot(signer)
	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for signer %s: %w", signer, ctx.Err())
	}
}
