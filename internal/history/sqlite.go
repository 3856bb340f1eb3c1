package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/scantrail/scantrail/internal/scan"
)

// DefaultMaxEntries is the retained-entry cap when none is configured.
const DefaultMaxEntries = 50

// SQLiteStore implements Store with keyed rows in SQLite via
// modernc.org/sqlite (pure Go). The ordered in-memory list is the query
// surface and stays authoritative for the process lifetime; SQLite only
// provides durability across runs. All storage failures are logged and
// degraded, never surfaced to callers.
type SQLiteStore struct {
	mu         sync.Mutex
	db         *sql.DB
	entries    []*HistoricalScan // most-recent-first
	maxEntries int
	logger     *slog.Logger
}

// Compile-time check that SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// StoreOption configures a SQLiteStore.
type StoreOption func(*SQLiteStore)

// WithMaxEntries sets the retained-entry cap.
func WithMaxEntries(n int) StoreOption {
	return func(s *SQLiteStore) {
		if n > 0 {
			s.maxEntries = n
		}
	}
}

// WithStoreLogger sets the store's logger.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *SQLiteStore) { s.logger = logger }
}

// NewSQLiteStore opens (or creates) the history database at dbPath; use
// ":memory:" for testing. An unreadable or corrupt database is treated as
// an empty history and logged, not returned as an error; only a database
// that cannot be opened at all fails construction.
func NewSQLiteStore(dbPath string, opts ...StoreOption) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: ping database: %w", err)
	}

	s := &SQLiteStore{
		db:         db,
		maxEntries: DefaultMaxEntries,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}

	createTableSQL := `
		CREATE TABLE IF NOT EXISTS history (
			seq         INTEGER PRIMARY KEY AUTOINCREMENT,
			id          TEXT NOT NULL UNIQUE,
			session_id  TEXT NOT NULL,
			recorded_at TEXT NOT NULL,
			entry_json  TEXT NOT NULL
		);
	`
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: create table: %w", err)
	}

	s.loadAll()
	return s, nil
}

// loadAll reads every stored entry into memory, newest first. Read
// failures degrade to an empty history; corrupt rows are skipped. Both are
// logged.
func (s *SQLiteStore) loadAll() {
	rows, err := s.db.Query(`SELECT entry_json FROM history ORDER BY seq DESC`)
	if err != nil {
		s.logger.Error("history unreadable, starting empty", "error", err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			s.logger.Warn("skipping unreadable history row", "error", err)
			continue
		}
		var entry HistoricalScan
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			s.logger.Warn("skipping corrupt history row", "error", err)
			continue
		}
		s.entries = append(s.entries, &entry)
	}
	if err := rows.Err(); err != nil {
		s.logger.Error("history read interrupted", "error", err, "loaded", len(s.entries))
	}

	if len(s.entries) > s.maxEntries {
		s.entries = s.entries[:s.maxEntries]
	}
}

// Record archives a terminal session. The new entry is prepended
// (most-recent-first); when the cap is exceeded the oldest entries are
// dropped. A failed write halves the cap and retries once, then abandons
// durability for this entry while keeping it in memory.
func (s *SQLiteStore) Record(ctx context.Context, session *scan.ScanSession, outcomes []scan.FileOutcome) (*HistoricalScan, error) {
	if session == nil {
		return nil, fmt.Errorf("history: nil session")
	}
	if !session.Terminal() {
		return nil, fmt.Errorf("history: session %s is not terminal", session.ID)
	}

	entry := buildEntry(session, outcomes)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append([]*HistoricalScan{entry}, s.entries...)
	s.enforceCapLocked(ctx)

	if err := s.insertLocked(ctx, entry); err != nil {
		// Capacity degrade: halve the cap, prune, retry once.
		s.maxEntries = max(1, s.maxEntries/2)
		s.logger.Warn("history write failed, halving retained entries",
			"error", err,
			"max_entries", s.maxEntries,
		)
		s.enforceCapLocked(ctx)
		if err := s.insertLocked(ctx, entry); err != nil {
			s.logger.Error("history write abandoned, entry kept in memory only",
				"error", err,
				"entry", entry.ID,
			)
		}
	}

	return cloneEntry(entry), nil
}

// insertLocked persists one entry. Caller holds s.mu.
func (s *SQLiteStore) insertLocked(ctx context.Context, entry *HistoricalScan) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("history: marshal entry: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO history (id, session_id, recorded_at, entry_json) VALUES (?, ?, ?, ?)`,
		entry.ID,
		entry.SessionID,
		entry.RecordedAt.Format(time.RFC3339),
		string(raw),
	)
	if err != nil {
		return fmt.Errorf("history: insert entry: %w", err)
	}
	return nil
}

// enforceCapLocked drops the oldest entries beyond the cap, from memory
// and (best effort) from disk. Caller holds s.mu.
func (s *SQLiteStore) enforceCapLocked(ctx context.Context) {
	for len(s.entries) > s.maxEntries {
		oldest := s.entries[len(s.entries)-1]
		s.entries = s.entries[:len(s.entries)-1]
		if _, err := s.db.ExecContext(ctx, `DELETE FROM history WHERE id = ?`, oldest.ID); err != nil {
			s.logger.Warn("failed to prune history entry", "entry", oldest.ID, "error", err)
		}
	}
}

// List returns all entries, most-recent-first.
func (s *SQLiteStore) List(ctx context.Context) []*HistoricalScan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(nil)
}

// Search returns entries matching query case-insensitively against file
// names, classification labels, tags, and notes.
func (s *SQLiteStore) Search(ctx context.Context, query string) []*HistoricalScan {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return s.List(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(func(e *HistoricalScan) bool {
		return matchesQuery(e, q)
	})
}

// FilterByThreatLevel returns entries containing at least one file at the
// given classification. LevelAll passes everything through.
func (s *SQLiteStore) FilterByThreatLevel(ctx context.Context, level string) []*HistoricalScan {
	if strings.EqualFold(level, LevelAll) {
		return s.List(ctx)
	}
	want, ok := scan.ParseThreatLevel(strings.ToLower(level))
	if !ok {
		s.logger.Debug("unknown threat level in filter", "level", level)
		return nil
	}
	name := want.String()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(func(e *HistoricalScan) bool {
		for _, f := range e.Files {
			if f.ThreatLevel == name {
				return true
			}
		}
		return false
	})
}

// FilterByDateRange returns entries recorded within [start, end]
// inclusive. An end before start is an empty result, not an error.
func (s *SQLiteStore) FilterByDateRange(ctx context.Context, start, end time.Time) []*HistoricalScan {
	if end.Before(start) {
		s.logger.Debug("date range end precedes start", "start", start, "end", end)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(func(e *HistoricalScan) bool {
		return !e.RecordedAt.Before(start) && !e.RecordedAt.After(end)
	})
}

// snapshotLocked returns deep copies of entries passing keep (nil keeps
// all), preserving stored order. Caller holds s.mu.
func (s *SQLiteStore) snapshotLocked(keep func(*HistoricalScan) bool) []*HistoricalScan {
	out := make([]*HistoricalScan, 0, len(s.entries))
	for _, e := range s.entries {
		if keep == nil || keep(e) {
			out = append(out, cloneEntry(e))
		}
	}
	return out
}

// Delete removes one entry by id.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return fmt.Errorf("history: entry %q not found", id)
	}
	s.entries = append(s.entries[:idx], s.entries[idx+1:]...)

	if _, err := s.db.ExecContext(ctx, `DELETE FROM history WHERE id = ?`, id); err != nil {
		s.logger.Warn("failed to delete history entry from disk", "entry", id, "error", err)
	}
	return nil
}

// ClearAll removes every entry.
func (s *SQLiteStore) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = nil
	if _, err := s.db.ExecContext(ctx, `DELETE FROM history`); err != nil {
		s.logger.Warn("failed to clear history on disk", "error", err)
	}
	return nil
}

// SetNotes overwrites an entry's notes.
func (s *SQLiteStore) SetNotes(ctx context.Context, id, notes string) error {
	return s.update(ctx, id, func(e *HistoricalScan) {
		e.Notes = notes
	})
}

// AddTags unions tags into an entry's tag set. Repeated calls with the
// same tags are no-ops.
func (s *SQLiteStore) AddTags(ctx context.Context, id string, tags []string) error {
	return s.update(ctx, id, func(e *HistoricalScan) {
		e.Tags = mergeTags(e.Tags, tags)
	})
}

// update applies mutate to the entry with the given id and persists the
// new form best-effort.
func (s *SQLiteStore) update(ctx context.Context, id string, mutate func(*HistoricalScan)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return fmt.Errorf("history: entry %q not found", id)
	}

	entry := s.entries[idx]
	mutate(entry)

	raw, err := json.Marshal(entry)
	if err != nil {
		s.logger.Warn("failed to marshal updated entry", "entry", id, "error", err)
		return nil
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE history SET entry_json = ? WHERE id = ?`, string(raw), id); err != nil {
		s.logger.Warn("failed to persist entry update", "entry", id, "error", err)
	}
	return nil
}

// indexLocked finds an entry's position by id, -1 if absent. Caller holds
// s.mu.
func (s *SQLiteStore) indexLocked(id string) int {
	for i, e := range s.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// exportDocument is the top-level shape written by ExportAll.
type exportDocument struct {
	SchemaVersion string            `json:"schema_version"`
	Tool          string            `json:"tool"`
	ExportedAt    time.Time         `json:"exported_at"`
	TotalEntries  int               `json:"total_entries"`
	Entries       []*HistoricalScan `json:"entries"`
}

// ExportAll writes the full store to w as pretty-printed JSON,
// most-recent-first.
func (s *SQLiteStore) ExportAll(ctx context.Context, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entries := s.List(ctx)
	doc := exportDocument{
		SchemaVersion: "1.0",
		Tool:          "scantrail",
		ExportedAt:    time.Now().UTC(),
		TotalEntries:  len(entries),
		Entries:       entries,
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("history: export: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
