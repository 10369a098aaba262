package orchestrator

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// lockRegistry serializes operations per repository path. Entries are
// inserted on acquire and removed once the last holder releases, so
// the map only ever tracks in-flight work.
type lockRegistry struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newLockRegistry() *lockRegistry {
	return &lockRegistry{entries: make(map[string]*lockEntry)}
}

// acquire blocks until the key's lock is held. Waiters queue on the
// entry mutex, which preserves issue order per key.
func (r *lockRegistry) acquire(key string) *lockEntry {
	r.mu.Lock()
	entry, ok := r.entries[key]
	if !ok {
		entry = &lockEntry{}
		r.entries[key] = entry
	}
	entry.refs++
	r.mu.Unlock()

	entry.mu.Lock()
	return entry
}

func (r *lockRegistry) release(key string, entry *lockEntry) {
	entry.mu.Unlock()

	r.mu.Lock()
	entry.refs--
	if entry.refs <= 0 {
		delete(r.entries, key)
	}
	r.mu.Unlock()
}

// lockFileName derives a stable file name for a repository's
// cross-process lock. Hashing keeps arbitrary absolute paths inside a
// flat locks directory.
func lockFileName(repoPath string) string {
	sum := sha256.Sum256([]byte(repoPath))
	return hex.EncodeToString(sum[:8]) + ".lock"
}
