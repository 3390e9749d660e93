// Package lock provides the daemon's single-instance advisory lock
// (SPEC_FULL.md §6.2): <data-dir>/agentd.lock, held for the process
// lifetime so two daemons never race on the same data directory. Ported
// from the teacher's syscall.Flock-based FlockAcquire to
// github.com/gofrs/flock, which is cross-platform and already a direct
// dependency of this module rather than a build-tagged unix/windows pair.
package lock

import "github.com/gofrs/flock"

// FlockAcquire opens path and takes an exclusive, blocking advisory lock.
// The returned cleanup function releases the lock and closes the file; it
// must be called exactly once, typically deferred for the daemon's
// lifetime.
func FlockAcquire(path string) (func(), error) {
	fl := flock.New(path)
	if err := fl.Lock(); err != nil {
		return nil, err
	}
	return func() {
		_ = fl.Unlock()
	}, nil
}

// TryFlockAcquire is the non-blocking variant used by `agentd doctor` to
// detect whether another daemon instance currently holds the lock,
// without waiting for it to release.
func TryFlockAcquire(path string) (cleanup func(), held bool, err error) {
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return func() { _ = fl.Unlock() }, true, nil
}
