// Package lock provides keyed mutual exclusion.
// Every key owns an independent mutex, so work on unrelated keys never
// contends while work on the same key is strictly serialised.
package lock

import (
	"context"
	"sync"
	"time"
)

// keyMutex wraps a mutex with a reference count so idle keys can be dropped.
type keyMutex struct {
	mu   sync.Mutex
	refs int
}

// KeyLock hands out one mutex per string key. Entries are created on first
// use and removed once no goroutine holds or waits for them.
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*keyMutex
}

// New creates an empty KeyLock.
func New() *KeyLock {
	return &KeyLock{locks: make(map[string]*keyMutex)}
}

// acquire returns the mutex for key and registers the caller as a holder.
func (kl *KeyLock) acquire(key string) *keyMutex {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	m, ok := kl.locks[key]
	if !ok {
		m = &keyMutex{}
		kl.locks[key] = m
	}
	m.refs++
	return m
}

// release drops the caller's reference and forgets the key when unused.
func (kl *KeyLock) release(key string, m *keyMutex) {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	m.refs--
	if m.refs <= 0 {
		delete(kl.locks, key)
	}
}

// Lock blocks until the lock for key is held.
func (kl *KeyLock) Lock(key string) {
	kl.acquire(key).mu.Lock()
}

// Unlock releases the lock for key. Unlocking a key that is not held is a no-op.
func (kl *KeyLock) Unlock(key string) {
	kl.mu.Lock()
	m, ok := kl.locks[key]
	kl.mu.Unlock()
	if !ok {
		return
	}

	m.mu.Unlock()
	kl.release(key, m)
}

// LockWithTimeout waits at most timeout for the lock.
// Returns false if the timeout elapsed or ctx was cancelled first.
func (kl *KeyLock) LockWithTimeout(ctx context.Context, key string, timeout time.Duration) bool {
	m := kl.acquire(key)

	done := make(chan struct{})
	go func() {
		m.mu.Lock()
		close(done)
	}()

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-done:
		return true
	case <-timeoutCtx.Done():
		// The waiter still owns a reference; hand the mutex back once it gets it.
		go func() {
			<-done
			m.mu.Unlock()
			kl.release(key, m)
		}()
		return false
	}
}

// WithLock runs fn while holding the lock for key.
func (kl *KeyLock) WithLock(key string, fn func() error) error {
	kl.Lock(key)
	defer kl.Unlock(key)
	return fn()
}

// WithLockContext runs fn while holding the lock for key. It gives up with
// ctx.Err() once ctx is done, or with ErrLockTimeout if the lock cannot be
// taken within timeout. fn never runs for a done ctx.
func (kl *KeyLock) WithLockContext(ctx context.Context, key string, timeout time.Duration, fn func() error) error {
	if !kl.LockWithTimeout(ctx, key, timeout) {
		if err := ctx.Err(); err != nil {
			return err
		}
		return ErrLockTimeout
	}
	defer kl.Unlock(key)

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fn()
	}
}
