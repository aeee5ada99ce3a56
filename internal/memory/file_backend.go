package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileBackend is the default backend. It keeps one JSON document per
// workspace under a data directory, named by a hash of the canonical
// workspace path. Saves go through a temporary file followed by an atomic
// rename, so a crash mid-write never leaves a torn document and readers
// never need the write lock to see a consistent snapshot.
type FileBackend struct {
	dir string
}

// NewFileBackend creates the data directory if needed and returns a backend
// rooted there.
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create data dir: %v", ErrStorageIO, err)
	}
	return &FileBackend{dir: dir}, nil
}

// path returns the backing file for a workspace. Hashing the canonical path
// keeps filenames short and filesystem-safe regardless of the workspace
// location.
func (b *FileBackend) path(workspace string) string {
	sum := sha256.Sum256([]byte(workspace))
	return filepath.Join(b.dir, hex.EncodeToString(sum[:8])+".json")
}

// Load reads the workspace document. A missing file is an empty store.
func (b *FileBackend) Load(_ context.Context, workspace string) ([]Entry, error) {
	data, err := os.ReadFile(b.path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrStorageIO, b.path(workspace), err)
	}
	return decodeSnapshot(data)
}

// Save writes the full collection to a temporary file in the same directory
// and renames it over the previous document.
func (b *FileBackend) Save(_ context.Context, workspace string, entries []Entry) error {
	data, err := encodeSnapshot(entries)
	if err != nil {
		return err
	}

	dst := b.path(workspace)
	tmp, err := os.CreateTemp(b.dir, filepath.Base(dst)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrStorageIO, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: write %s: %v", ErrStorageIO, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close %s: %v", ErrStorageIO, tmpName, err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: rename into place: %v", ErrStorageIO, err)
	}
	return nil
}

// Close is a no-op; the backend holds no open handles between operations.
func (b *FileBackend) Close() error { return nil }

// encodeSnapshot serializes a collection as the versioned document shared
// by persistence and export.
func encodeSnapshot(entries []Entry) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(Snapshot{Version: SnapshotVersion, Entries: entries}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: encode snapshot: %v", ErrStorageIO, err)
	}
	return data, nil
}

// decodeSnapshot parses a persisted document and validates every entry
// against the schema. Anything unparseable is corruption, not bad input.
func decodeSnapshot(data []byte) ([]Entry, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: decode snapshot: %v", ErrStorageCorruption, err)
	}
	if snap.Version > SnapshotVersion {
		return nil, fmt.Errorf("%w: snapshot version %d is newer than supported %d",
			ErrStorageCorruption, snap.Version, SnapshotVersion)
	}
	for i, e := range snap.Entries {
		if e.ID == "" {
			return nil, fmt.Errorf("%w: entry %d has no id", ErrStorageCorruption, i)
		}
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("%w: entry %q: %v", ErrStorageCorruption, e.ID, err)
		}
	}
	return snap.Entries, nil
}

var _ Backend = (*FileBackend)(nil)
