// Package lock provides the per-document single-writer section.
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Keyed serializes holders of the same key inside one process.
// Waiting honours context cancellation.
type Keyed struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewKeyed creates an in-process keyed mutex.
func NewKeyed() *Keyed {
	return &Keyed{slots: make(map[string]*slot)}
}

// Lock blocks until key is free or ctx is done.
func (k *Keyed) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	s, ok := k.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		k.slots[key] = s
	}
	s.refs++
	k.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { k.release(key, s, true) }) }, nil
	case <-ctx.Done():
		k.release(key, s, false)
		return nil, fmt.Errorf("lock %s: %w", key, ctx.Err())
	}
}

func (k *Keyed) release(key string, s *slot, held bool) {
	if held {
		<-s.ch
	}
	k.mu.Lock()
	s.refs--
	if s.refs == 0 {
		delete(k.slots, key)
	}
	k.mu.Unlock()
}

// store is the consumer interface for lease-based locks (ISP).
type store interface {
	AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, token string) (bool, error)
}

// Distributed extends Keyed with a store-backed lease so that several
// instances sharing one store serialize writers of the same document.
type Distributed struct {
	local  *Keyed
	store  store
	prefix string
	ttl    time.Duration
	poll   time.Duration
	logger *zap.Logger
}

// NewDistributed creates a lock whose lease expires after ttl if its holder dies.
func NewDistributed(s store, prefix string, ttl time.Duration, logger *zap.Logger) *Distributed {
	return &Distributed{
		local:  NewKeyed(),
		store:  s,
		prefix: prefix,
		ttl:    ttl,
		poll:   50 * time.Millisecond,
		logger: logger,
	}
}

// Lock takes the local mutex, then polls the lease until acquired or ctx is done.
func (d *Distributed) Lock(ctx context.Context, key string) (func(), error) {
	unlockLocal, err := d.local.Lock(ctx, key)
	if err != nil {
		return nil, err
	}

	leaseKey := d.prefix + "lock:" + key
	token := uuid.NewString()

	ticker := time.NewTicker(d.poll)
	defer ticker.Stop()

	for {
		ok, err := d.store.AcquireLock(ctx, leaseKey, token, d.ttl)
		if err != nil {
			unlockLocal()
			return nil, fmt.Errorf("acquire %s: %w", leaseKey, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			unlockLocal()
			return nil, fmt.Errorf("acquire %s: %w", leaseKey, ctx.Err())
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Release even if the caller's context is already cancelled.
			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			released, err := d.store.ReleaseLock(rctx, leaseKey, token)
			switch {
			case err != nil:
				d.logger.Warn("Failed to release lock", zap.String("key", leaseKey), zap.Error(err))
			case !released:
				d.logger.Warn("Lock lease expired before release", zap.String("key", leaseKey))
			}
			unlockLocal()
		})
	}, nil
}
