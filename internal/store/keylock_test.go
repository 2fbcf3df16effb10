package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestKeyLockMutualExclusion(t *testing.T) {
	locks := NewKeyLocks(time.Second)
	ctx := context.Background()

	var mu sync.Mutex
	inside := 0
	maxInside := 0

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locks.Acquire(ctx, "room1")
			if err != nil {
				t.Errorf("acquire failed: %v", err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Fatalf("observed %d holders inside the section, want 1", maxInside)
	}
}

func TestKeyLockTimeout(t *testing.T) {
	locks := NewKeyLocks(50 * time.Millisecond)
	ctx := context.Background()

	release, err := locks.Acquire(ctx, "room1")
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	start := time.Now()
	_, err = locks.Acquire(ctx, "room1")
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("second acquire: got %v, want ErrLockTimeout", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("timed out too early: %v", elapsed)
	}

	release()
	release2, err := locks.Acquire(ctx, "room1")
	if err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	release2()
}

func TestKeyLockIndependentKeys(t *testing.T) {
	locks := NewKeyLocks(50 * time.Millisecond)
	ctx := context.Background()

	r1, err := locks.Acquire(ctx, "room1")
	if err != nil {
		t.Fatalf("room1 acquire failed: %v", err)
	}
	defer r1()

	// a different room must not be blocked by room1's holder
	r2, err := locks.Acquire(ctx, "room2")
	if err != nil {
		t.Fatalf("room2 acquire failed: %v", err)
	}
	r2()
}

func TestKeyLockReleaseIsIdempotent(t *testing.T) {
	locks := NewKeyLocks(time.Second)
	ctx := context.Background()

	release, err := locks.Acquire(ctx, "room1")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	release()
	release() // second call must be a no-op, not an unlock of a free lock

	r2, err := locks.Acquire(ctx, "room1")
	if err != nil {
		t.Fatalf("reacquire failed: %v", err)
	}
	r2()
}

func TestKeyLockContextCancel(t *testing.T) {
	locks := NewKeyLocks(time.Minute)

	release, err := locks.Acquire(context.Background(), "room1")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err = locks.Acquire(ctx, "room1")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}
