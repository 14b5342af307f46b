package services

import "sync"

// keyedLocks serializes mutating operations per (namespace, user, challenge)
// key so that concurrent duplicate requests cannot double-award points or
// double-charge a hint. Entries are retained for the process lifetime; the
// key space is bounded by users x challenges.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the mutex for key and returns its release function
func (k *keyedLocks) acquire(key string) func() {
	k.mu.Lock()
	lock, exists := k.locks[key]
	if !exists {
		lock = &sync.Mutex{}
		k.locks[key] = lock
	}
	k.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

func progressKey(namespace, userID, challengeID string) string {
	return namespace + ":" + userID + ":" + challengeID
}
