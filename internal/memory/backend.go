package memory

import (
	"context"
	"sync"
)

// Backend abstracts durable storage of one full entry collection per
// workspace. Implementations persist and reload the whole collection as a
// single logical document; partial writes must never become visible.
type Backend interface {
	// Load returns the current collection for the workspace. A workspace
	// that has never been written yields an empty collection, not an error.
	// Persisted data that cannot be parsed into the entry schema fails with
	// ErrStorageCorruption.
	Load(ctx context.Context, workspace string) ([]Entry, error)

	// Save durably replaces the workspace's collection. The write is atomic
	// with respect to process crash: readers observe either the previous or
	// the new document, never a half-written one.
	Save(ctx context.Context, workspace string, entries []Entry) error

	// Close releases any resources held by the backend.
	Close() error
}

// lockTable hands out one mutex per canonical workspace path, created on
// demand. Writers to the same workspace serialize; writers to different
// workspaces proceed independently.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*sync.Mutex)}
}

// get returns the lock for the workspace, creating it if needed. Locks are
// never removed; the table grows with the number of distinct workspaces
// touched by the process, which is small in practice.
func (t *lockTable) get(workspace string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[workspace]
	if !ok {
		l = &sync.Mutex{}
		t.locks[workspace] = l
	}
	return l
}
