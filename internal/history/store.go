// Package history provides the durable, queryable archive of completed
// scan sessions.
package history

import (
	"context"
	"io"
	"time"

	"github.com/scantrail/scantrail/internal/scan"
)

// DetectionRecord is the stored form of a single detection.
type DetectionRecord struct {
	Category    string `json:"category"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Evidence    string `json:"evidence"`
	Confidence  int    `json:"confidence"`
}

// FileRecord is the stored form of one file outcome. File content is
// always stripped before storage; only the hash survives.
type FileRecord struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Size         int64             `json:"size"`
	DeclaredType string            `json:"declared_type,omitempty"`
	SHA256       string            `json:"sha256,omitempty"`
	Status       string            `json:"status"`
	ThreatLevel  string            `json:"threat_level"`
	RiskScore    int               `json:"risk_score"`
	Detections   []DetectionRecord `json:"detections,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// HistoricalScan is one durable record derived from a completed session.
// Tags holds the union of auto-derived and user-supplied tags with
// duplicates collapsed; AutoTags preserves the derived subset so user
// edits can never remove it.
type HistoricalScan struct {
	ID              string       `json:"id"`
	SessionID       string       `json:"session_id"`
	RecordedAt      time.Time    `json:"recorded_at"`
	TotalFiles      int          `json:"total_files"`
	ThreatsFound    int          `json:"threats_found"`
	CleanFiles      int          `json:"clean_files"`
	AvgRiskScore    int          `json:"avg_risk_score"`
	DurationSeconds int          `json:"duration_seconds"`
	Files           []FileRecord `json:"files"`
	Tags            []string     `json:"tags"`
	AutoTags        []string     `json:"auto_tags"`
	Notes           string       `json:"notes,omitempty"`
}

// LevelAll is the pass-through value for FilterByThreatLevel.
const LevelAll = "ALL"

// Store is the archive of completed sessions. Entries are ordered
// most-recent-first. Query operations never fail: storage problems are
// logged and degrade to the in-memory view, and invalid arguments yield
// empty results rather than errors.
type Store interface {
	// Record archives a terminal session and its outcomes, returning the
	// new entry. It errors only on invalid input (nil or non-terminal
	// session), never on storage trouble.
	Record(ctx context.Context, session *scan.ScanSession, outcomes []scan.FileOutcome) (*HistoricalScan, error)

	// List returns all entries, most-recent-first.
	List(ctx context.Context) []*HistoricalScan

	// Search returns entries whose file names, classification labels,
	// tags, or notes contain query, case-insensitively, preserving
	// stored order.
	Search(ctx context.Context, query string) []*HistoricalScan

	// FilterByThreatLevel returns entries containing at least one file
	// at the given classification. LevelAll passes everything through;
	// unknown levels return nothing.
	FilterByThreatLevel(ctx context.Context, level string) []*HistoricalScan

	// FilterByDateRange returns entries recorded within [start, end]
	// inclusive. An end before start returns nothing.
	FilterByDateRange(ctx context.Context, start, end time.Time) []*HistoricalScan

	// Delete removes one entry. ClearAll removes everything.
	Delete(ctx context.Context, id string) error
	ClearAll(ctx context.Context) error

	// SetNotes overwrites an entry's notes. AddTags unions tags into the
	// entry's tag set.
	SetNotes(ctx context.Context, id, notes string) error
	AddTags(ctx context.Context, id string, tags []string) error

	// ExportAll writes the full store to w as pretty-printed JSON.
	ExportAll(ctx context.Context, w io.Writer) error

	Close() error
}
