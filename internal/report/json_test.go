package report

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestJSONReporter_Generate(t *testing.T) {
	r := &JSONReporter{}

	var b strings.Builder
	if err := r.Generate(context.Background(), sampleSession(), &b); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	var out struct {
		SchemaVersion string `json:"schema_version"`
		Tool          string `json:"tool"`
		Session       struct {
			ID              string  `json:"id"`
			State           string  `json:"state"`
			DurationSeconds float64 `json:"duration_seconds"`
		} `json:"session"`
		Files []struct {
			Name        string `json:"name"`
			ThreatLevel string `json:"threat_level"`
			RiskScore   int    `json:"risk_score"`
		} `json:"files"`
		Summary struct {
			TotalFiles   int `json:"total_files"`
			ThreatsFound int `json:"threats_found"`
			CleanFiles   int `json:"clean_files"`
		} `json:"summary"`
	}
	if err := json.Unmarshal([]byte(b.String()), &out); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	if out.Tool != "scantrail" || out.SchemaVersion != "1.0" {
		t.Errorf("tool/schema = %q/%q", out.Tool, out.SchemaVersion)
	}
	if out.Session.ID != "sess-123" || out.Session.State != "completed" {
		t.Errorf("session = %+v", out.Session)
	}
	if out.Session.DurationSeconds != 2 {
		t.Errorf("duration = %v, want 2", out.Session.DurationSeconds)
	}
	if len(out.Files) != 2 {
		t.Fatalf("files = %d, want 2", len(out.Files))
	}
	if out.Files[1].ThreatLevel != "critical" || out.Files[1].RiskScore != 92 {
		t.Errorf("second file = %+v", out.Files[1])
	}
	if out.Summary.ThreatsFound != 1 || out.Summary.CleanFiles != 1 || out.Summary.TotalFiles != 2 {
		t.Errorf("summary = %+v", out.Summary)
	}
}

func TestJSONReporter_Compact(t *testing.T) {
	r := &JSONReporter{Compact: true}

	var b strings.Builder
	if err := r.Generate(context.Background(), sampleSession(), &b); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	// Single line plus the encoder's trailing newline.
	if strings.Count(strings.TrimSpace(b.String()), "\n") != 0 {
		t.Error("compact output spans multiple lines")
	}
}
