package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// newTestService wires a service over a file backend in a temp dir, with
// deterministic clock and ID generation.
func newTestService(t *testing.T) (*Service, *time.Time) {
	t.Helper()
	backend, err := NewFileBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileBackend() error = %v", err)
	}
	t.Cleanup(func() { backend.Close() })

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seq := 0

	svc := NewService(backend, nil)
	svc.now = func() time.Time { return now }
	svc.newID = func() string {
		seq++
		return fmt.Sprintf("id-%03d", seq)
	}
	return svc, &now
}

const ws = "/home/dev/project"

func TestRememberAndList(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Remember(ctx, ws, TypeBugPattern, "nil map write in cache warmup", "cache bug", []string{"cache"})
	if err != nil {
		t.Fatalf("Remember() error = %v", err)
	}
	second, err := svc.Remember(ctx, ws, TypeFixPattern, "guard with sync.Once", "", nil)
	if err != nil {
		t.Fatalf("Remember() error = %v", err)
	}

	result, err := svc.List(ctx, ws)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("List() = %d entries, want 2", len(result.Entries))
	}
	if result.Entries[0].ID != first.ID || result.Entries[1].ID != second.ID {
		t.Errorf("List() order = %v, want insertion order", ids(result.Entries))
	}
	if result.Continuation != nil {
		t.Errorf("Continuation = %+v, want nil without continuation entries", result.Continuation)
	}
}

func TestRememberRejectsInvalid(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Remember(ctx, ws, "wat", "content", "", nil); !errors.Is(err, ErrInvalidEntryType) {
		t.Errorf("Remember(bad type) = %v, want ErrInvalidEntryType", err)
	}
	if _, err := svc.Remember(ctx, ws, TypeBugPattern, "   ", "", nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Remember(empty content) = %v, want ErrInvalidArgument", err)
	}

	result, err := svc.List(ctx, ws)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(result.Entries) != 0 {
		t.Errorf("rejected Remember wrote %d entries", len(result.Entries))
	}
}

func TestRetrieveScenario(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Remember(ctx, ws, TypeBugPattern, "null pointer dereference in parser when input is empty", "", []string{"parser"})
	if err != nil {
		t.Fatalf("Remember(a) error = %v", err)
	}
	b, err := svc.Remember(ctx, ws, TypeFixPattern, "always check returned error before use", "", nil)
	if err != nil {
		t.Fatalf("Remember(b) error = %v", err)
	}
	if _, err := svc.Pin(ctx, ws, b.ID, true); err != nil {
		t.Fatalf("Pin(b) error = %v", err)
	}

	result, err := svc.Retrieve(ctx, ws, RetrieveOptions{
		Query:         "parser null pointer",
		Limit:         10,
		MaxChars:      4000,
		IncludePinned: true,
	})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	got := ids(result.Entries)
	if len(got) != 2 {
		t.Fatalf("Retrieve() = %v, want both a and b", got)
	}
	// b has no overlap with the query but is pinned, so it is forced in
	// ahead of the ranked list
	if result.Entries[0].ID != b.ID || result.Entries[1].ID != a.ID {
		t.Errorf("Retrieve() order = %v, want [%s %s]", got, b.ID, a.ID)
	}
	d := result.Diagnostics
	if d.Considered != 2 || d.Selected != 2 || d.PinnedIncluded != 1 || d.SkippedBudget != 0 {
		t.Errorf("Diagnostics = %+v", d)
	}
}

func TestRetrieveEmptyQuery(t *testing.T) {
	svc, _ := newTestService(t)
	for _, q := range []string{"", "   ", "\n\t"} {
		_, err := svc.Retrieve(context.Background(), ws, RetrieveOptions{Query: q})
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("Retrieve(%q) = %v, want ErrInvalidArgument", q, err)
		}
	}
}

func TestRetrieveTypeFilter(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Remember(ctx, ws, TypeBugPattern, "deadlock in worker pool shutdown", "", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Remember(ctx, ws, TypeFixPattern, "drain the worker pool before close", "", nil); err != nil {
		t.Fatal(err)
	}

	result, err := svc.Retrieve(ctx, ws, RetrieveOptions{
		Query: "worker pool",
		Types: []string{"fix_pattern"},
	})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(result.Entries) != 1 || result.Entries[0].Type != TypeFixPattern {
		t.Fatalf("filtered Retrieve() = %v", ids(result.Entries))
	}
	if result.Diagnostics.SkippedType != 1 {
		t.Errorf("SkippedType = %d, want 1", result.Diagnostics.SkippedType)
	}

	// unknown filter values are dropped; all-unknown means no filter
	result, err = svc.Retrieve(ctx, ws, RetrieveOptions{
		Query: "worker pool",
		Types: []string{"nonsense", "also_nonsense"},
	})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(result.Entries) != 2 {
		t.Errorf("all-unknown filter returned %d entries, want 2", len(result.Entries))
	}
}

func TestPinIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	e, err := svc.Remember(ctx, ws, TypeProjectConvention, "run linters before commit", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		result, err := svc.Pin(ctx, ws, e.ID, true)
		if err != nil {
			t.Fatalf("Pin() round %d error = %v", i, err)
		}
		if !result.Updated {
			t.Fatalf("Pin() round %d: Updated = false", i)
		}
	}
	list, _ := svc.List(ctx, ws)
	if !list.Entries[0].Pinned {
		t.Error("entry not pinned after Pin()")
	}

	result, err := svc.Pin(ctx, ws, "no-such-id", true)
	if err != nil {
		t.Fatalf("Pin(unknown) error = %v", err)
	}
	if result.Updated {
		t.Error("Pin(unknown) reported Updated = true")
	}
}

func TestForgetIsTerminal(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	e, err := svc.Remember(ctx, ws, TypeBugPattern, "stale cache after deploy", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Pin(ctx, ws, e.ID, true); err != nil {
		t.Fatal(err)
	}

	// pinned entries are still removable
	result, err := svc.Forget(ctx, ws, e.ID)
	if err != nil {
		t.Fatalf("Forget() error = %v", err)
	}
	if !result.Removed {
		t.Fatal("Forget() Removed = false for existing entry")
	}

	result, err = svc.Forget(ctx, ws, e.ID)
	if err != nil {
		t.Fatalf("second Forget() error = %v", err)
	}
	if result.Removed {
		t.Error("second Forget() Removed = true")
	}

	retr, err := svc.Retrieve(ctx, ws, RetrieveOptions{Query: "stale cache deploy"})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(retr.Entries) != 0 {
		t.Errorf("forgotten entry still retrievable: %v", ids(retr.Entries))
	}

	if _, err := svc.Forget(ctx, ws, "zzz"); err != nil {
		t.Errorf("Forget(unknown) = %v, want nil", err)
	}
}

func TestExportImportReplaceRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Remember(ctx, ws, TypeBugPattern, "first", "", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Remember(ctx, ws, TypeContinuation, "second", "", []string{"handoff"}); err != nil {
		t.Fatal(err)
	}

	snap, err := svc.Export(ctx, ws)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if snap.Version != SnapshotVersion || len(snap.Entries) != 2 {
		t.Fatalf("Export() = version %d, %d entries", snap.Version, len(snap.Entries))
	}

	other := "/home/dev/other"
	result, err := svc.Import(ctx, other, snap, ModeReplace)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if result.Imported != 2 || !result.Replaced {
		t.Errorf("Import() = %+v", result)
	}

	got, err := svc.Export(ctx, other)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Entries) != len(snap.Entries) {
		t.Fatalf("round trip lost entries: %d vs %d", len(got.Entries), len(snap.Entries))
	}
	for i := range snap.Entries {
		want, have := snap.Entries[i], got.Entries[i]
		if want.ID != have.ID || want.Content != have.Content ||
			!want.CreatedAt.Equal(have.CreatedAt) || !want.UpdatedAt.Equal(have.UpdatedAt) {
			t.Errorf("entry %d differs after round trip: %+v vs %+v", i, want, have)
		}
	}
}

func TestImportMerge(t *testing.T) {
	svc, now := newTestService(t)
	ctx := context.Background()

	existing, err := svc.Remember(ctx, ws, TypeBugPattern, "original content", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	keep, err := svc.Remember(ctx, ws, TypeFixPattern, "untouched", "", nil)
	if err != nil {
		t.Fatal(err)
	}

	*now = now.Add(2 * time.Hour)
	payload := Snapshot{
		Version: SnapshotVersion,
		Entries: []Entry{
			{ID: existing.ID, Type: TypeBugPattern, Content: "revised content"},
			{Type: TypeVerificationRule, Content: "brand new rule"},
		},
	}
	result, err := svc.Import(ctx, ws, payload, ModeMerge)
	if err != nil {
		t.Fatalf("Import(merge) error = %v", err)
	}
	if result.Imported != 2 || result.Replaced {
		t.Errorf("Import(merge) = %+v", result)
	}

	list, _ := svc.List(ctx, ws)
	if len(list.Entries) != 3 {
		t.Fatalf("merge produced %d entries, want 3", len(list.Entries))
	}

	byID := map[string]Entry{}
	for _, e := range list.Entries {
		byID[e.ID] = e
	}
	updated := byID[existing.ID]
	if updated.Content != "revised content" {
		t.Errorf("merge did not overwrite: %q", updated.Content)
	}
	if !updated.CreatedAt.Equal(existing.CreatedAt) {
		t.Errorf("merge lost original CreatedAt: %v vs %v", updated.CreatedAt, existing.CreatedAt)
	}
	if !updated.UpdatedAt.After(existing.UpdatedAt) {
		t.Errorf("merge did not advance UpdatedAt: %v", updated.UpdatedAt)
	}
	if byID[keep.ID].Content != "untouched" {
		t.Error("merge mutated an entry absent from the payload")
	}
}

func TestImportRejectsBadPayload(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Remember(ctx, ws, TypeBugPattern, "pre-existing", "", nil); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		snap Snapshot
		mode ImportMode
		want error
	}{
		{
			name: "unknown mode",
			snap: Snapshot{Version: 1},
			mode: "append",
			want: ErrInvalidArgument,
		},
		{
			name: "bad entry type",
			snap: Snapshot{Version: 1, Entries: []Entry{{ID: "x", Type: "wat", Content: "c"}}},
			mode: ModeMerge,
			want: ErrInvalidImportPayload,
		},
		{
			name: "empty content",
			snap: Snapshot{Version: 1, Entries: []Entry{{ID: "x", Type: TypeBugPattern}}},
			mode: ModeMerge,
			want: ErrInvalidImportPayload,
		},
		{
			name: "duplicate ids",
			snap: Snapshot{Version: 1, Entries: []Entry{
				{ID: "dup", Type: TypeBugPattern, Content: "a"},
				{ID: "dup", Type: TypeFixPattern, Content: "b"},
			}},
			mode: ModeReplace,
			want: ErrInvalidImportPayload,
		},
		{
			name: "future version",
			snap: Snapshot{Version: 99},
			mode: ModeReplace,
			want: ErrInvalidImportPayload,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Import(ctx, ws, tt.snap, tt.mode); !errors.Is(err, tt.want) {
				t.Fatalf("Import() = %v, want %v", err, tt.want)
			}
			// a rejected import never partially applies
			list, err := svc.List(ctx, ws)
			if err != nil {
				t.Fatal(err)
			}
			if len(list.Entries) != 1 || list.Entries[0].Content != "pre-existing" {
				t.Errorf("store mutated by rejected import: %v", ids(list.Entries))
			}
		})
	}
}

func TestImportFillsMissingFields(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	payload := Snapshot{
		Version: SnapshotVersion,
		Entries: []Entry{{Type: TypeFixPattern, Content: "no id, no timestamps"}},
	}
	if _, err := svc.Import(ctx, ws, payload, ModeReplace); err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	list, _ := svc.List(ctx, ws)
	if len(list.Entries) != 1 {
		t.Fatal("import lost the entry")
	}
	e := list.Entries[0]
	if e.ID == "" || e.CreatedAt.IsZero() || e.UpdatedAt.IsZero() {
		t.Errorf("import left fields unfilled: %+v", e)
	}
}

func TestContinuationSurvivesOperations(t *testing.T) {
	svc, now := newTestService(t)
	ctx := context.Background()

	older, err := svc.Remember(ctx, ws, TypeContinuation, "finished step 1, resume at step 2", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	*now = now.Add(time.Hour)
	newer, err := svc.Remember(ctx, ws, TypeContinuation, "resume at step 3", "", nil)
	if err != nil {
		t.Fatal(err)
	}

	list, _ := svc.List(ctx, ws)
	if list.Continuation == nil || list.Continuation.ID != newer.ID {
		t.Fatalf("Continuation = %+v, want %s", list.Continuation, newer.ID)
	}

	// forgetting the latest falls back to the previous one
	if _, err := svc.Forget(ctx, ws, newer.ID); err != nil {
		t.Fatal(err)
	}
	list, _ = svc.List(ctx, ws)
	if list.Continuation == nil || list.Continuation.ID != older.ID {
		t.Fatalf("Continuation after forget = %+v, want %s", list.Continuation, older.ID)
	}
}

func TestConcurrentRemembers(t *testing.T) {
	backend, err := NewFileBackend(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer backend.Close()
	svc := NewService(backend, nil)
	ctx := context.Background()

	const writers = 8
	const perWriter = 5
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				_, err := svc.Remember(ctx, ws, TypeBugPattern,
					fmt.Sprintf("writer %d note %d", i, j), "", nil)
				if err != nil {
					t.Errorf("Remember() error = %v", err)
				}
			}
		}(i)
	}
	wg.Wait()

	list, err := svc.List(ctx, ws)
	if err != nil {
		t.Fatal(err)
	}
	if len(list.Entries) != writers*perWriter {
		t.Errorf("concurrent writes lost entries: %d, want %d", len(list.Entries), writers*perWriter)
	}
}

func TestCancelledContextLeavesStoreUnchanged(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Remember(ctx, ws, TypeBugPattern, "keep me", "", nil); err != nil {
		t.Fatal(err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := svc.Remember(cancelled, ws, TypeBugPattern, "should not land", "", nil); err == nil {
		t.Fatal("Remember() with cancelled context succeeded")
	}

	list, _ := svc.List(ctx, ws)
	if len(list.Entries) != 1 {
		t.Errorf("cancelled write mutated the store: %d entries", len(list.Entries))
	}
}
