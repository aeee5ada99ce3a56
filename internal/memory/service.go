package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ImportMode selects how an imported payload combines with the existing
// collection.
type ImportMode string

const (
	// ModeMerge overwrites entries whose IDs match and appends the rest.
	// It never removes entries absent from the payload.
	ModeMerge ImportMode = "merge"
	// ModeReplace discards the existing collection and installs the
	// payload verbatim.
	ModeReplace ImportMode = "replace"
)

// Service is the store operations API. It composes the backend, the
// relevance ranker, and the budgeted assembler, and owns the per-workspace
// write serialization. All methods are safe for concurrent use.
type Service struct {
	backend Backend
	locks   *lockTable
	logger  *zap.Logger

	// seams for deterministic tests
	now   func() time.Time
	newID func() string
}

// NewService wraps a backend. A nil logger disables logging.
func NewService(backend Backend, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		backend: backend,
		locks:   newLockTable(),
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
}

// ListResult holds the full collection in insertion order plus the derived
// continuation pointer.
type ListResult struct {
	Entries      []Entry `json:"entries"`
	Continuation *Entry  `json:"continuation,omitempty"`
}

// RetrieveOptions parameterizes a retrieval.
type RetrieveOptions struct {
	Query         string
	Limit         int
	MaxChars      int
	IncludePinned bool
	Types         []string
}

// RetrieveResult is the ranked, budget-bounded retrieval output.
type RetrieveResult struct {
	Entries      []Entry     `json:"entries"`
	Context      string      `json:"context"`
	Diagnostics  Diagnostics `json:"diagnostics"`
	Continuation *Entry      `json:"continuation,omitempty"`
}

// PinResult reports the outcome of a pin toggle. An unknown ID is a benign
// no-op, not an error.
type PinResult struct {
	Updated bool `json:"updated"`
}

// ForgetResult reports the outcome of a removal. An unknown ID is a benign
// no-op, not an error.
type ForgetResult struct {
	Removed bool `json:"removed"`
}

// ImportResult reports how many entries an import wrote and whether the
// collection was replaced wholesale.
type ImportResult struct {
	Imported int  `json:"imported"`
	Replaced bool `json:"replaced"`
}

// List returns all entries in insertion order. No ranking is applied.
func (s *Service) List(ctx context.Context, workspace string) (ListResult, error) {
	entries, err := s.backend.Load(ctx, workspace)
	if err != nil {
		s.logger.Error("list failed", zap.String("workspace", workspace), zap.Error(err))
		return ListResult{}, err
	}
	return ListResult{
		Entries:      entries,
		Continuation: continuationPointer(entries),
	}, nil
}

// Retrieve ranks the collection against the query and assembles a
// character-bounded context block. The query must be non-empty. Unknown
// values in the type filter are silently dropped; if every value is
// unknown the filter is treated as absent.
func (s *Service) Retrieve(ctx context.Context, workspace string, opts RetrieveOptions) (RetrieveResult, error) {
	if strings.TrimSpace(opts.Query) == "" {
		return RetrieveResult{}, fmt.Errorf("%w: retrieve requires a non-empty query", ErrInvalidArgument)
	}

	entries, err := s.backend.Load(ctx, workspace)
	if err != nil {
		s.logger.Error("retrieve failed", zap.String("workspace", workspace), zap.Error(err))
		return RetrieveResult{}, err
	}

	filter := typeFilter(opts.Types)
	candidates := entries
	skippedType := 0
	if filter != nil {
		candidates = candidates[:0:0]
		for _, e := range entries {
			if filter[e.Type] {
				candidates = append(candidates, e)
			} else {
				skippedType++
			}
		}
	}

	ranked := rankEntries(candidates, opts.Query, opts.IncludePinned, s.now())
	packed := assembleContext(ranked, opts.IncludePinned, opts.Limit, opts.MaxChars)

	diag := Diagnostics{
		Considered:     len(entries),
		SkippedType:    skippedType,
		SkippedBudget:  packed.skippedBudget,
		Selected:       len(packed.entries),
		PinnedIncluded: packed.pinnedForced,
	}
	s.logger.Debug("retrieve",
		zap.String("workspace", workspace),
		zap.String("query", opts.Query),
		zap.Int("considered", diag.Considered),
		zap.Int("selected", diag.Selected),
	)

	return RetrieveResult{
		Entries:      packed.entries,
		Context:      packed.context,
		Diagnostics:  diag,
		Continuation: continuationPointer(entries),
	}, nil
}

// Remember validates and appends a new entry under the write lock, creating
// the workspace store lazily on first write.
func (s *Service) Remember(ctx context.Context, workspace string, typ EntryType, content, title string, tags []string) (Entry, error) {
	now := s.now()
	entry := Entry{
		ID:        s.newID(),
		Type:      typ,
		Content:   content,
		Title:     title,
		Tags:      tags,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := entry.Validate(); err != nil {
		return Entry{}, err
	}

	err := s.withWriteLock(ctx, workspace, func(entries []Entry) ([]Entry, bool, error) {
		return append(entries, entry), true, nil
	})
	if err != nil {
		return Entry{}, err
	}
	s.logger.Info("entry remembered",
		zap.String("workspace", workspace),
		zap.String("id", entry.ID),
		zap.String("type", string(entry.Type)),
	)
	return entry, nil
}

// Pin sets the pinned flag of the entry with the given ID and refreshes its
// UpdatedAt. A missing ID yields Updated=false.
func (s *Service) Pin(ctx context.Context, workspace, id string, pinned bool) (PinResult, error) {
	var updated bool
	err := s.withWriteLock(ctx, workspace, func(entries []Entry) ([]Entry, bool, error) {
		for i := range entries {
			if entries[i].ID == id {
				entries[i].Pinned = pinned
				entries[i].UpdatedAt = s.now()
				updated = true
				break
			}
		}
		return entries, updated, nil
	})
	if err != nil {
		return PinResult{}, err
	}
	return PinResult{Updated: updated}, nil
}

// Forget removes the entry with the given ID regardless of pin status.
// A missing ID yields Removed=false.
func (s *Service) Forget(ctx context.Context, workspace, id string) (ForgetResult, error) {
	var removed bool
	err := s.withWriteLock(ctx, workspace, func(entries []Entry) ([]Entry, bool, error) {
		kept := entries[:0:0]
		for _, e := range entries {
			if e.ID == id {
				removed = true
				continue
			}
			kept = append(kept, e)
		}
		return kept, removed, nil
	})
	if err != nil {
		return ForgetResult{}, err
	}
	if removed {
		s.logger.Info("entry forgotten", zap.String("workspace", workspace), zap.String("id", id))
	}
	return ForgetResult{Removed: removed}, nil
}

// Export returns the full collection as a versioned snapshot document.
func (s *Service) Export(ctx context.Context, workspace string) (Snapshot, error) {
	entries, err := s.backend.Load(ctx, workspace)
	if err != nil {
		return Snapshot{}, err
	}
	if entries == nil {
		entries = []Entry{}
	}
	return Snapshot{Version: SnapshotVersion, Entries: cloneEntries(entries)}, nil
}

// Import installs a snapshot payload. The whole payload is validated before
// any mutation: one bad record rejects the import entirely.
func (s *Service) Import(ctx context.Context, workspace string, snap Snapshot, mode ImportMode) (ImportResult, error) {
	if mode != ModeMerge && mode != ModeReplace {
		return ImportResult{}, fmt.Errorf("%w: unknown import mode %q", ErrInvalidArgument, mode)
	}
	if snap.Version > SnapshotVersion {
		return ImportResult{}, fmt.Errorf("%w: snapshot version %d is newer than supported %d",
			ErrInvalidImportPayload, snap.Version, SnapshotVersion)
	}

	now := s.now()
	incoming := cloneEntries(snap.Entries)
	seen := make(map[string]bool, len(incoming))
	for i := range incoming {
		e := &incoming[i]
		if err := e.Validate(); err != nil {
			return ImportResult{}, fmt.Errorf("%w: record %d: %v", ErrInvalidImportPayload, i, err)
		}
		if strings.TrimSpace(e.ID) == "" {
			e.ID = s.newID()
		}
		if seen[e.ID] {
			return ImportResult{}, fmt.Errorf("%w: duplicate entry id %q", ErrInvalidImportPayload, e.ID)
		}
		seen[e.ID] = true
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		if e.UpdatedAt.IsZero() {
			e.UpdatedAt = e.CreatedAt
		}
	}

	result := ImportResult{Imported: len(incoming), Replaced: mode == ModeReplace}
	err := s.withWriteLock(ctx, workspace, func(entries []Entry) ([]Entry, bool, error) {
		if mode == ModeReplace {
			return incoming, true, nil
		}
		index := make(map[string]int, len(entries))
		for i, e := range entries {
			index[e.ID] = i
		}
		for _, in := range incoming {
			if i, ok := index[in.ID]; ok {
				created := entries[i].CreatedAt
				entries[i] = in
				entries[i].CreatedAt = created
				entries[i].UpdatedAt = now
				continue
			}
			entries = append(entries, in)
			index[in.ID] = len(entries) - 1
		}
		return entries, true, nil
	})
	if err != nil {
		return ImportResult{}, err
	}
	s.logger.Info("import applied",
		zap.String("workspace", workspace),
		zap.String("mode", string(mode)),
		zap.Int("imported", result.Imported),
	)
	return result, nil
}

// withWriteLock serializes mutations per workspace: it loads the fresh
// collection under the workspace's lock, applies fn, and persists the
// result when fn asks for a write. The lock is released on every exit path.
// A cancelled context stops the operation before the save, leaving the
// store at its pre-state; the backend's atomic save guarantees there is no
// in-between.
func (s *Service) withWriteLock(ctx context.Context, workspace string, fn func(entries []Entry) ([]Entry, bool, error)) error {
	mu := s.locks.get(workspace)
	mu.Lock()
	defer mu.Unlock()

	entries, err := s.backend.Load(ctx, workspace)
	if err != nil {
		return err
	}
	updated, write, err := fn(entries)
	if err != nil {
		return err
	}
	if !write {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.backend.Save(ctx, workspace, updated); err != nil {
		s.logger.Error("save failed", zap.String("workspace", workspace), zap.Error(err))
		return err
	}
	return nil
}

// typeFilter builds the set of recognized types from a raw filter list.
// Unknown values are dropped; an empty result means no filtering.
func typeFilter(types []string) map[EntryType]bool {
	if len(types) == 0 {
		return nil
	}
	set := make(map[EntryType]bool, len(types))
	for _, t := range types {
		et := EntryType(strings.TrimSpace(t))
		if et.Valid() {
			set[et] = true
		}
	}
	if len(set) == 0 {
		return nil
	}
	return set
}
