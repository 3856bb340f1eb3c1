package history

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/scantrail/scantrail/internal/scan"
)

func newTestStore(t *testing.T, opts ...StoreOption) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:", opts...)
	if err != nil {
		t.Fatalf("NewSQLiteStore(:memory:) returned error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// mixedSession is the canonical batch: doc.pdf and note.txt clean,
// backdoor.exe critical.
func mixedSession() *scan.ScanSession {
	return terminalSession([]scan.FileOutcome{
		completedOutcome("doc.pdf", 0),
		completedOutcome("note.txt", 10),
		completedOutcome("backdoor.exe", 85,
			scan.Detection{Category: "filename-heuristic", Severity: scan.LevelMalicious, Confidence: 85},
		),
	})
}

func cleanSession() *scan.ScanSession {
	return terminalSession([]scan.FileOutcome{
		completedOutcome("a.txt", 0),
		completedOutcome("b.txt", 5),
		completedOutcome("c.txt", 12),
	})
}

func mustRecord(t *testing.T, store *SQLiteStore, session *scan.ScanSession) *HistoricalScan {
	t.Helper()
	entry, err := store.Record(context.Background(), session, session.Outcomes)
	if err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	return entry
}

func TestRecord_RejectsInvalidSessions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Record(ctx, nil, nil); err == nil {
		t.Error("Record(nil) returned nil error")
	}

	running := &scan.ScanSession{ID: "s", State: scan.SessionRunning, Total: 1}
	if _, err := store.Record(ctx, running, nil); err == nil {
		t.Error("Record of non-terminal session returned nil error")
	}
}

func TestRecordAndList_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	session := mixedSession()

	entry := mustRecord(t, store, session)

	entries := store.List(context.Background())
	if len(entries) != 1 {
		t.Fatalf("List returned %d entries, want 1", len(entries))
	}
	got := entries[0]

	if got.ID != entry.ID {
		t.Errorf("ID = %q, want %q", got.ID, entry.ID)
	}

	// Recompute aggregates independently from the supplied outcomes.
	var sum, threats int
	for _, out := range session.Outcomes {
		sum += out.RiskScore
		if out.ThreatLevel != scan.LevelClean {
			threats++
		}
	}
	wantAvg := (sum + len(session.Outcomes)/2) / len(session.Outcomes) // round(mean)
	if got.AvgRiskScore != wantAvg {
		t.Errorf("AvgRiskScore = %d, want %d", got.AvgRiskScore, wantAvg)
	}
	if got.ThreatsFound != threats {
		t.Errorf("ThreatsFound = %d, want %d", got.ThreatsFound, threats)
	}
	if got.TotalFiles != 3 || got.CleanFiles != 2 {
		t.Errorf("TotalFiles/CleanFiles = %d/%d, want 3/2", got.TotalFiles, got.CleanFiles)
	}
	if got.RecordedAt.IsZero() {
		t.Error("RecordedAt is zero after round trip")
	}
}

func TestList_MostRecentFirst(t *testing.T) {
	store := newTestStore(t)

	first := mustRecord(t, store, cleanSession())
	second := mustRecord(t, store, mixedSession())

	entries := store.List(context.Background())
	if len(entries) != 2 {
		t.Fatalf("List returned %d entries, want 2", len(entries))
	}
	if entries[0].ID != second.ID || entries[1].ID != first.ID {
		t.Error("entries are not ordered most-recent-first")
	}
}

func TestRecord_CapacityDropsOldest(t *testing.T) {
	store := newTestStore(t, WithMaxEntries(3))
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		ids = append(ids, mustRecord(t, store, cleanSession()).ID)
	}

	// Store is at max capacity; the next record drops exactly the oldest.
	newest := mustRecord(t, store, mixedSession())

	entries := store.List(ctx)
	if len(entries) != 3 {
		t.Fatalf("List returned %d entries after overflow, want 3", len(entries))
	}
	if entries[0].ID != newest.ID {
		t.Error("newly recorded entry is not first")
	}
	for _, e := range entries {
		if e.ID == ids[0] {
			t.Error("oldest entry was not dropped")
		}
	}
	if entries[2].ID != ids[2] {
		t.Error("wrong entry dropped: expected only the oldest to go")
	}
}

func TestSearch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mustRecord(t, store, cleanSession())
	target := mustRecord(t, store, mixedSession())

	tests := []struct {
		query string
		want  int
	}{
		{"backdoor", 1},      // file name
		{"BACKDOOR", 1},      // case-insensitive
		{"critical", 1},      // classification label
		{"malware-detected", 1}, // tag
		{"nosuchthing", 0},
	}
	for _, tt := range tests {
		got := store.Search(ctx, tt.query)
		if len(got) != tt.want {
			t.Errorf("Search(%q) returned %d entries, want %d", tt.query, len(got), tt.want)
			continue
		}
		if tt.want == 1 && got[0].ID != target.ID {
			t.Errorf("Search(%q) returned entry %s, want %s", tt.query, got[0].ID, target.ID)
		}
	}
}

func TestSearch_Notes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := mustRecord(t, store, cleanSession())
	if err := store.SetNotes(ctx, entry.ID, "reviewed during incident 42"); err != nil {
		t.Fatalf("SetNotes returned error: %v", err)
	}

	got := store.Search(ctx, "incident 42")
	if len(got) != 1 || got[0].ID != entry.ID {
		t.Errorf("Search over notes returned %d entries, want the annotated one", len(got))
	}
}

func TestFilterByThreatLevel(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mustRecord(t, store, cleanSession())
	threat := mustRecord(t, store, mixedSession())

	// ALL is a pass-through identical to List.
	all := store.FilterByThreatLevel(ctx, LevelAll)
	if len(all) != len(store.List(ctx)) {
		t.Errorf("FilterByThreatLevel(ALL) returned %d entries, want %d", len(all), len(store.List(ctx)))
	}

	critical := store.FilterByThreatLevel(ctx, "critical")
	if len(critical) != 1 || critical[0].ID != threat.ID {
		t.Errorf("FilterByThreatLevel(critical) = %d entries, want the mixed session", len(critical))
	}

	// Both sessions contain clean files.
	clean := store.FilterByThreatLevel(ctx, "clean")
	if len(clean) != 2 {
		t.Errorf("FilterByThreatLevel(clean) = %d entries, want 2", len(clean))
	}

	if got := store.FilterByThreatLevel(ctx, "bogus"); len(got) != 0 {
		t.Errorf("FilterByThreatLevel(bogus) = %d entries, want 0", len(got))
	}
}

func TestFilterByDateRange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := mustRecord(t, store, cleanSession())

	wide := store.FilterByDateRange(ctx,
		entry.RecordedAt.Add(-time.Hour), entry.RecordedAt.Add(time.Hour))
	if len(wide) != 1 {
		t.Errorf("wide range returned %d entries, want 1", len(wide))
	}

	// Bounds are inclusive.
	exact := store.FilterByDateRange(ctx, entry.RecordedAt, entry.RecordedAt)
	if len(exact) != 1 {
		t.Errorf("exact-bound range returned %d entries, want 1", len(exact))
	}

	past := store.FilterByDateRange(ctx,
		entry.RecordedAt.Add(-2*time.Hour), entry.RecordedAt.Add(-time.Hour))
	if len(past) != 0 {
		t.Errorf("past range returned %d entries, want 0", len(past))
	}

	// End before start is an empty result, not an error.
	inverted := store.FilterByDateRange(ctx,
		entry.RecordedAt.Add(time.Hour), entry.RecordedAt.Add(-time.Hour))
	if len(inverted) != 0 {
		t.Errorf("inverted range returned %d entries, want 0", len(inverted))
	}
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	keep := mustRecord(t, store, cleanSession())
	drop := mustRecord(t, store, mixedSession())

	if err := store.Delete(ctx, drop.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	entries := store.List(ctx)
	if len(entries) != 1 || entries[0].ID != keep.ID {
		t.Error("Delete removed the wrong entry")
	}

	if err := store.Delete(ctx, "nonexistent"); err == nil {
		t.Error("Delete of unknown id returned nil error")
	}
}

func TestClearAll(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mustRecord(t, store, cleanSession())
	mustRecord(t, store, mixedSession())

	if err := store.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll returned error: %v", err)
	}
	if got := store.List(ctx); len(got) != 0 {
		t.Errorf("List returned %d entries after ClearAll, want 0", len(got))
	}
}

func TestSetNotes_Overwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := mustRecord(t, store, cleanSession())

	if err := store.SetNotes(ctx, entry.ID, "first"); err != nil {
		t.Fatalf("SetNotes returned error: %v", err)
	}
	if err := store.SetNotes(ctx, entry.ID, "second"); err != nil {
		t.Fatalf("SetNotes returned error: %v", err)
	}

	got := store.List(ctx)[0]
	if got.Notes != "second" {
		t.Errorf("Notes = %q, want %q (overwrite semantics)", got.Notes, "second")
	}

	if err := store.SetNotes(ctx, "nonexistent", "x"); err == nil {
		t.Error("SetNotes on unknown id returned nil error")
	}
}

func TestAddTags_UnionNoDuplicates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := mustRecord(t, store, mixedSession())

	if err := store.AddTags(ctx, entry.ID, []string{"incident-42"}); err != nil {
		t.Fatalf("AddTags returned error: %v", err)
	}
	// Repeat call with the same tag must not duplicate it.
	if err := store.AddTags(ctx, entry.ID, []string{"incident-42"}); err != nil {
		t.Fatalf("AddTags returned error: %v", err)
	}

	got := store.List(ctx)[0]
	count := 0
	for _, tag := range got.Tags {
		if tag == "incident-42" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("tag incident-42 appears %d times, want 1", count)
	}

	// Auto tags survive the merge.
	foundAuto := false
	for _, tag := range got.Tags {
		if tag == "malware-detected" {
			foundAuto = true
		}
	}
	if !foundAuto {
		t.Error("auto tag lost after AddTags")
	}
}

func TestExportAll(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mustRecord(t, store, mixedSession())

	var buf bytes.Buffer
	if err := store.ExportAll(ctx, &buf); err != nil {
		t.Fatalf("ExportAll returned error: %v", err)
	}

	var doc struct {
		Tool         string            `json:"tool"`
		TotalEntries int               `json:"total_entries"`
		Entries      []*HistoricalScan `json:"entries"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if doc.Tool != "scantrail" || doc.TotalEntries != 1 || len(doc.Entries) != 1 {
		t.Errorf("export document = %+v, want one scantrail entry", doc)
	}
	if !strings.Contains(buf.String(), "\n  ") {
		t.Error("export is not pretty-printed")
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	entry := mustRecord(t, store, mixedSession())
	if err := store.SetNotes(ctx, entry.ID, "persisted note"); err != nil {
		t.Fatalf("SetNotes returned error: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	reopened, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	entries := reopened.List(ctx)
	if len(entries) != 1 {
		t.Fatalf("List after reopen returned %d entries, want 1", len(entries))
	}
	got := entries[0]
	if got.ID != entry.ID {
		t.Errorf("ID = %q, want %q", got.ID, entry.ID)
	}
	if got.Notes != "persisted note" {
		t.Errorf("Notes = %q, want %q", got.Notes, "persisted note")
	}
	if got.ThreatsFound != 1 || got.TotalFiles != 3 {
		t.Errorf("aggregates lost across reopen: %+v", got)
	}
	if got.RecordedAt.IsZero() {
		t.Error("RecordedAt lost across reopen")
	}
}

func TestRecord_DegradesWhenStorageUnavailable(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Simulate an unavailable medium: every write now fails, but Record
	// must still succeed and the in-memory view must stay usable.
	store.db.Close()

	session := mixedSession()
	entry, err := store.Record(ctx, session, session.Outcomes)
	if err != nil {
		t.Fatalf("Record surfaced a storage failure: %v", err)
	}

	entries := store.List(ctx)
	if len(entries) != 1 || entries[0].ID != entry.ID {
		t.Error("in-memory view unusable after storage failure")
	}
}

func TestListReturnsCopies(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mustRecord(t, store, mixedSession())

	first := store.List(ctx)[0]
	first.Notes = "mutated"
	first.Tags = append(first.Tags, "mutated")
	first.Files[0].Name = "mutated"

	second := store.List(ctx)[0]
	if second.Notes == "mutated" || second.Files[0].Name == "mutated" {
		t.Error("List exposes internal state to callers")
	}
	for _, tag := range second.Tags {
		if tag == "mutated" {
			t.Error("List exposes internal tag slice to callers")
		}
	}
}

func TestContentStripped(t *testing.T) {
	outcomes := []scan.FileOutcome{{
		ID: "o1",
		File: scan.FileInput{
			Name:    "payload.bin",
			Size:    4,
			Content: []byte{0xde, 0xad, 0xbe, 0xef},
			SHA256:  "cafe",
		},
		Status:      scan.StatusCompleted,
		ThreatLevel: scan.LevelSuspicious,
		RiskScore:   45,
	}}
	session := terminalSession(outcomes)

	store := newTestStore(t)
	entry := mustRecord(t, store, session)

	raw, err := json.Marshal(entry)
	if err != nil {
		t.Fatalf("marshal entry: %v", err)
	}
	if strings.Contains(string(raw), "content") {
		t.Error("entry serialization carries file content")
	}
	if entry.Files[0].SHA256 != "cafe" {
		t.Error("content hash lost while stripping bytes")
	}
}
