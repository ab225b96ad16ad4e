// Package lock provides the in-process wallet locker used by single-instance deployments.
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/pkg/apperror"
)

// Local serializes access per wallet id inside one process.
type Local struct {
	mu      sync.Mutex
	entries map[int64]*entry
	timeout time.Duration
}

// entry is a one-slot semaphore shared by every waiter on the same wallet.
type entry struct {
	slot chan struct{}
	refs int
}

// NewLocal creates a locker whose Acquire gives up after timeout.
func NewLocal(timeout time.Duration) *Local {
	return &Local{
		entries: make(map[int64]*entry),
		timeout: timeout,
	}
}

// Acquire locks the wallets in ascending id order.
func (l *Local) Acquire(ctx context.Context, walletIDs []int64) (func(), error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	order := domain.LockOrder(walletIDs...)
	held := make([]int64, 0, len(order))
	for _, id := range order {
		if err := l.lock(ctx, id); err != nil {
			l.releaseAll(held)
			return nil, apperror.ErrLockTimeout(fmt.Errorf("wallet %d: %w", id, err))
		}
		held = append(held, id)
	}

	var once sync.Once
	return func() { once.Do(func() { l.releaseAll(held) }) }, nil
}

func (l *Local) lock(ctx context.Context, id int64) error {
	l.mu.Lock()
	e, ok := l.entries[id]
	if !ok {
		e = &entry{slot: make(chan struct{}, 1)}
		l.entries[id] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		l.drop(id, e)
		l.mu.Unlock()
		return ctx.Err()
	}
}

// releaseAll unlocks in reverse acquisition order.
func (l *Local) releaseAll(ids []int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(ids) - 1; i >= 0; i-- {
		e := l.entries[ids[i]]
		<-e.slot
		l.drop(ids[i], e)
	}
}

func (l *Local) drop(id int64, e *entry) {
	e.refs--
	if e.refs == 0 {
		delete(l.entries, id)
	}
}

// size reports how many wallets currently have holders or waiters.
func (l *Local) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
