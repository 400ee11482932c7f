// Package lock serializes work per key. The ledger engine takes one lock per
// campaign ("campaign:<id>") around every mutation that touches its balance.
package lock

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
)

// ErrNotAcquired is returned when the lock could not be taken before the
// context ended or the backend gave up retrying.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker runs fn while holding the lock for key. fn's error is returned
// unchanged.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

const defaultShards = 256

// Local is an in-process Locker backed by sharded channel semaphores. Keys
// hashing to the same shard serialize together.
type Local struct {
	shards []chan struct{}
}

func NewLocal() *Local {
	return NewLocalShards(defaultShards)
}

// NewLocalShards builds a Local with n shards. n < 1 means one shard.
func NewLocalShards(n int) *Local {
	if n < 1 {
		n = 1
	}
	l := &Local{shards: make([]chan struct{}, n)}
	for i := range l.shards {
		l.shards[i] = make(chan struct{}, 1)
	}
	return l
}

func (l *Local) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	sem := l.shards[l.shard(key)]
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
	}
	defer func() { <-sem }()
	return fn(ctx)
}

func (l *Local) shard(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(l.shards)))
}
