package report

import (
	"testing"
	"time"

	"github.com/scantrail/scantrail/internal/scan"
)

func TestNew(t *testing.T) {
	tests := []struct {
		format  string
		want    string
		wantErr bool
	}{
		{"text", "text", false},
		{"TEXT", "text", false},
		{"json", "json", false},
		{"Json", "json", false},
		{"xml", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		r, err := New(tt.format)
		if tt.wantErr {
			if err == nil {
				t.Errorf("New(%q) returned nil error", tt.format)
			}
			continue
		}
		if err != nil {
			t.Errorf("New(%q) returned error: %v", tt.format, err)
			continue
		}
		if r.Format() != tt.want {
			t.Errorf("New(%q).Format() = %q, want %q", tt.format, r.Format(), tt.want)
		}
	}
}

// sampleSession builds a terminal two-file session for reporter tests.
func sampleSession() *scan.ScanSession {
	started := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	return &scan.ScanSession{
		ID:        "sess-123",
		CreatedAt: started,
		StartedAt: started,
		EndedAt:   started.Add(2 * time.Second),
		State:     scan.SessionCompleted,
		Total:     2,
		Completed: 2,
		Threats:   1,
		Clean:     1,
		Outcomes: []scan.FileOutcome{
			{
				ID:          "out-1",
				File:        scan.FileInput{Name: "notes.txt", Size: 128, SHA256: "aa11"},
				Status:      scan.StatusCompleted,
				Progress:    100,
				ThreatLevel: scan.LevelClean,
				RiskScore:   0,
			},
			{
				ID:          "out-2",
				File:        scan.FileInput{Name: "backdoor.exe", Size: 2048, SHA256: "bb22"},
				Status:      scan.StatusCompleted,
				Progress:    100,
				ThreatLevel: scan.LevelCritical,
				RiskScore:   92,
				Detections: []scan.Detection{{
					Category:    "filename-heuristic",
					Severity:    scan.LevelMalicious,
					Description: `file name contains known malicious pattern "backdoor"`,
					Evidence:    "backdoor.exe",
					Confidence:  85,
				}},
				Recommendations: []string{"Quarantine the file immediately and do not execute it"},
			},
		},
	}
}
