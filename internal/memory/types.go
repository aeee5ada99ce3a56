// Package memory provides the persistent per-workspace knowledge store used
// by the agent to retain and recall facts across sessions: recurring bug
// patterns, fix patterns, verification rules, project conventions, and
// continuation notes describing where a prior session left off.
package memory

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EntryType classifies a memory entry. The enumeration is closed; anything
// else is rejected on construction and on import.
type EntryType string

const (
	TypeBugPattern        EntryType = "bug_pattern"
	TypeFixPattern        EntryType = "fix_pattern"
	TypeVerificationRule  EntryType = "verification_rule"
	TypeProjectConvention EntryType = "project_convention"
	TypeContinuation      EntryType = "continuation"
)

var entryTypes = map[EntryType]bool{
	TypeBugPattern:        true,
	TypeFixPattern:        true,
	TypeVerificationRule:  true,
	TypeProjectConvention: true,
	TypeContinuation:      true,
}

// Valid reports whether t is in the closed enumeration.
func (t EntryType) Valid() bool {
	return entryTypes[t]
}

// Entry is a single typed fact retained in a workspace's memory store.
// Entries returned to callers are copies; mutating them does not affect
// the store until an explicit operation is invoked.
type Entry struct {
	ID        string    `json:"id"`
	Type      EntryType `json:"type"`
	Content   string    `json:"content"`
	Title     string    `json:"title,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	Pinned    bool      `json:"pinned,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntry constructs a validated entry with a generated ID and fresh
// timestamps.
func NewEntry(typ EntryType, content, title string, tags []string) (Entry, error) {
	now := time.Now().UTC()
	e := Entry{
		ID:        uuid.NewString(),
		Type:      typ,
		Content:   content,
		Title:     title,
		Tags:      tags,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.Validate(); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// Validate checks the entry against the schema: the type must be in the
// closed enumeration and the content must be non-empty after trimming.
// The ID may be empty here; importers fill missing IDs before install.
func (e Entry) Validate() error {
	if !e.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidEntryType, e.Type)
	}
	if strings.TrimSpace(e.Content) == "" {
		return fmt.Errorf("%w: entry content is empty", ErrInvalidArgument)
	}
	return nil
}

// clone returns a deep copy of the entry, tags included.
func (e Entry) clone() Entry {
	c := e
	if e.Tags != nil {
		c.Tags = append([]string(nil), e.Tags...)
	}
	return c
}

// cloneEntries deep-copies a collection, preserving order.
func cloneEntries(entries []Entry) []Entry {
	if entries == nil {
		return nil
	}
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = e.clone()
	}
	return out
}

// SnapshotVersion is the current schema version of the persisted document.
const SnapshotVersion = 1

// Snapshot is the full serializable state of one workspace store. The
// persisted layout and the export/import payload share this shape, so a
// store round-trips through export followed by import in replace mode.
type Snapshot struct {
	Version int     `json:"version"`
	Entries []Entry `json:"entries"`
}

// Diagnostics describes how a retrieval selected its result set. It is
// ephemeral and never persisted.
type Diagnostics struct {
	Considered     int `json:"considered"`
	SkippedType    int `json:"skipped_type"`
	SkippedBudget  int `json:"skipped_budget"`
	Selected       int `json:"selected"`
	PinnedIncluded int `json:"pinned_included"`
}

// continuationPointer returns a copy of the continuation-typed entry with
// the most recent UpdatedAt, or nil if none exists. Ties break toward the
// lexically smaller ID so the pointer is deterministic.
func continuationPointer(entries []Entry) *Entry {
	var best *Entry
	for i := range entries {
		e := &entries[i]
		if e.Type != TypeContinuation {
			continue
		}
		if best == nil || e.UpdatedAt.After(best.UpdatedAt) ||
			(e.UpdatedAt.Equal(best.UpdatedAt) && e.ID < best.ID) {
			best = e
		}
	}
	if best == nil {
		return nil
	}
	c := best.clone()
	return &c
}
