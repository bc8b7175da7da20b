package services

import (
	"context"
	"sync"
	"time"

	"github.com/Joshlanuevo/ferry-api/internal/models"
)

// WalletLocker serializes purchases against the same wallet from the
// balance check through the ledger commit
type WalletLocker interface {
	Lock(ctx context.Context, walletID string) (func(), error)
}

// KeyedLocker is an in-process WalletLocker
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	ch      chan struct{}
	waiters int
}

// NewKeyedLocker creates a new KeyedLocker
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[string]*keyedLock)}
}

// Lock blocks until the key is free or ctx is done
func (l *KeyedLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[key]
	if !ok {
		lk = &keyedLock{ch: make(chan struct{}, 1)}
		l.locks[key] = lk
	}
	lk.waiters++
	l.mu.Unlock()

	select {
	case lk.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, lk, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, lk, true) })
	}, nil
}

func (l *KeyedLocker) release(key string, lk *keyedLock, held bool) {
	if held {
		<-lk.ch
	}
	l.mu.Lock()
	lk.waiters--
	if lk.waiters == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}

// LayeredLocker takes an in-process lock before the shared one. Purchases on
// one wallet queue in memory, so an instance holds at most one shared lock
// per wallet. Waiting for both is capped by wait.
type LayeredLocker struct {
	local  *KeyedLocker
	shared WalletLocker
	wait   time.Duration
}

// NewLayeredLocker creates a new LayeredLocker. A nil shared locker leaves
// only the in-process lock; a zero wait never times out.
func NewLayeredLocker(shared WalletLocker, wait time.Duration) *LayeredLocker {
	return &LayeredLocker{local: NewKeyedLocker(), shared: shared, wait: wait}
}

// Lock blocks until both locks for walletID are held
func (l *LayeredLocker) Lock(ctx context.Context, walletID string) (func(), error) {
	if l.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	unlockLocal, err := l.local.Lock(ctx, walletID)
	if err != nil {
		return nil, &models.WalletBusyError{WalletID: walletID, Err: err}
	}
	if l.shared == nil {
		return unlockLocal, nil
	}

	unlockShared, err := l.shared.Lock(ctx, walletID)
	if err != nil {
		unlockLocal()
		return nil, &models.WalletBusyError{WalletID: walletID, Err: err}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			unlockShared()
			unlockLocal()
		})
	}, nil
}
