package deployment

import "sync"

// LockManager holds one non-blocking slot per service.
//
// The outer mutex only guards the map; each service has its own mutex, so
// different services never wait on each other.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLockManager creates a new lock manager
func NewLockManager() *LockManager {
	return &LockManager{
		locks: make(map[string]*sync.Mutex),
	}
}

// TryLock attempts to take the deployment slot for a service.
// It never blocks; false means a deployment of that service is running.
func (lm *LockManager) TryLock(name string) bool {
	lm.mu.Lock()
	lock, exists := lm.locks[name]
	if !exists {
		lock = &sync.Mutex{}
		lm.locks[name] = lock
	}
	lm.mu.Unlock()

	return lock.TryLock()
}

// Unlock releases the slot taken by a successful TryLock.
// Unknown names are ignored.
func (lm *LockManager) Unlock(name string) {
	lm.mu.Lock()
	lock := lm.locks[name]
	lm.mu.Unlock()

	if lock != nil {
		lock.Unlock()
	}
}
