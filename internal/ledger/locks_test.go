package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"feeledger/internal/core"
)

func TestKeyedLocksSerializesSameKey(t *testing.T) {
	locks := newKeyedLocks(time.Second)
	ctx := context.Background()

	release, err := locks.acquire(ctx, 1)
	if err != nil {
		t.Fatalf("acquire() error = %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		r, err := locks.acquire(ctx, 1)
		if err != nil {
			t.Errorf("second acquire() error = %v", err)
			close(acquired)
			return
		}
		close(acquired)
		r()
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire succeeded while lock was held")
	case <-time.After(20 * time.Millisecond):
	}

	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire did not proceed after release")
	}
}

func TestKeyedLocksIndependentKeys(t *testing.T) {
	locks := newKeyedLocks(50 * time.Millisecond)
	ctx := context.Background()

	r1, err := locks.acquire(ctx, 1)
	if err != nil {
		t.Fatalf("acquire(1) error = %v", err)
	}
	defer r1()

	r2, err := locks.acquire(ctx, 2)
	if err != nil {
		t.Fatalf("acquire(2) error = %v", err)
	}
	r2()
}

func TestKeyedLocksBusyTimeout(t *testing.T) {
	locks := newKeyedLocks(30 * time.Millisecond)
	ctx := context.Background()

	release, err := locks.acquire(ctx, 7)
	if err != nil {
		t.Fatalf("acquire() error = %v", err)
	}
	defer release()

	start := time.Now()
	if _, err := locks.acquire(ctx, 7); !errors.Is(err, core.ErrBusy) {
		t.Fatalf("acquire() error = %v, want ErrBusy", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("acquire gave up after %v, before the timeout", elapsed)
	}
}

func TestKeyedLocksContextCancel(t *testing.T) {
	locks := newKeyedLocks(time.Minute)

	release, err := locks.acquire(context.Background(), 3)
	if err != nil {
		t.Fatalf("acquire() error = %v", err)
	}
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	if _, err := locks.acquire(ctx, 3); !errors.Is(err, context.Canceled) {
		t.Errorf("acquire() error = %v, want context.Canceled", err)
	}
}

func TestKeyedLocksManyWaiters(t *testing.T) {
	locks := newKeyedLocks(5 * time.Second)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		holders int
		max     int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locks.acquire(ctx, 42)
			if err != nil {
				t.Errorf("acquire() error = %v", err)
				return
			}
			mu.Lock()
			holders++
			if holders > max {
				max = holders
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			holders--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	if max != 1 {
		t.Errorf("max concurrent holders = %d, want 1", max)
	}
}
