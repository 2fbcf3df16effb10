package store

import (
	"context"
	"sync"
	"time"
)

type keyLock struct {
	ch   chan struct{}
	refs int
}

// KeyLocks serializes all operations on the same room id. Acquisition
// waits at most the configured ceiling and then fails with
// ErrLockTimeout, so a stuck holder cannot deadlock command handling.
type KeyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
	wait  time.Duration
}

func NewKeyLocks(wait time.Duration) *KeyLocks {
	if wait <= 0 {
		wait = 10 * time.Second
	}
	return &KeyLocks{
		locks: make(map[string]*keyLock),
		wait:  wait,
	}
}

// Acquire enters the exclusive section for key. On success the
// returned release func must be called exactly once; it is safe to
// defer immediately.
func (k *KeyLocks) Acquire(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	kl, ok := k.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		k.locks[key] = kl
	}
	kl.refs++
	k.mu.Unlock()

	timer := time.NewTimer(k.wait)
	defer timer.Stop()

	select {
	case kl.ch <- struct{}{}:
		var once sync.Once
		release := func() {
			once.Do(func() {
				<-kl.ch
				k.put(key, kl)
			})
		}
		return release, nil
	case <-timer.C:
		k.put(key, kl)
		return nil, ErrLockTimeout
	case <-ctx.Done():
		k.put(key, kl)
		return nil, ctx.Err()
	}
}

func (k *KeyLocks) put(key string, kl *keyLock) {
	k.mu.Lock()
	kl.refs--
	if kl.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()
}
