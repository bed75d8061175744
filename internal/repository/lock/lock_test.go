package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestKeyed_SerializesSameKey(t *testing.T) {
	k := NewKeyed()
	var active, maxActive int32
	var wg sync.WaitGroup

	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := k.Lock(context.Background(), "doc-1")
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
			unlock()
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxActive)
	}
	if len(k.slots) != 0 {
		t.Errorf("slots leaked: %d", len(k.slots))
	}
}

func TestKeyed_DifferentKeysDoNotBlock(t *testing.T) {
	k := NewKeyed()
	unlockA, _ := k.Lock(context.Background(), "a")
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := k.Lock(ctx, "b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	unlockB()
}

func TestKeyed_ContextCancelled(t *testing.T) {
	k := NewKeyed()
	unlock, _ := k.Lock(context.Background(), "a")
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := k.Lock(ctx, "a"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestKeyed_UnlockIdempotent(t *testing.T) {
	k := NewKeyed()
	unlock, _ := k.Lock(context.Background(), "a")
	unlock()
	unlock()

	relock, err := k.Lock(context.Background(), "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	relock()
}

// mockLeaseStore implements the consumer interface for tests.
type mockLeaseStore struct {
	mu       sync.Mutex
	holder   map[string]string
	acquires int
	failErr  error
}

func (m *mockLeaseStore) AcquireLock(_ context.Context, key, token string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acquires++
	if m.failErr != nil {
		return false, m.failErr
	}
	if _, held := m.holder[key]; held {
		return false, nil
	}
	m.holder[key] = token
	return true, nil
}

func (m *mockLeaseStore) ReleaseLock(_ context.Context, key, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.holder[key] != token {
		return false, nil
	}
	delete(m.holder, key)
	return true, nil
}

func TestDistributed_AcquireRelease(t *testing.T) {
	ms := &mockLeaseStore{holder: map[string]string{}}
	d := NewDistributed(ms, "recall:", time.Second, zap.NewNop())

	unlock, err := d.Lock(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := ms.holder["recall:lock:doc-1"]; !ok {
		t.Fatal("lease not taken")
	}
	unlock()
	if len(ms.holder) != 0 {
		t.Error("lease not released")
	}
}

func TestDistributed_WaitsForForeignHolder(t *testing.T) {
	ms := &mockLeaseStore{holder: map[string]string{"recall:lock:doc-1": "other-instance"}}
	d := NewDistributed(ms, "recall:", time.Second, zap.NewNop())
	d.poll = 5 * time.Millisecond

	go func() {
		time.Sleep(20 * time.Millisecond)
		ms.mu.Lock()
		delete(ms.holder, "recall:lock:doc-1")
		ms.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlock, err := d.Lock(ctx, "doc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	unlock()

	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.acquires < 2 {
		t.Errorf("expected polling, got %d attempts", ms.acquires)
	}
}

func TestDistributed_StoreError(t *testing.T) {
	boom := errors.New("connection refused")
	ms := &mockLeaseStore{holder: map[string]string{}, failErr: boom}
	d := NewDistributed(ms, "recall:", time.Second, zap.NewNop())

	if _, err := d.Lock(context.Background(), "doc-1"); !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
	// local section must be free again
	unlock, err := d.local.Lock(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	unlock()
}
