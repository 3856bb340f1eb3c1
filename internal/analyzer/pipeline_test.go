package analyzer

import (
	"context"
	"testing"

	"github.com/scantrail/scantrail/internal/scan"
	"github.com/scantrail/scantrail/internal/testutil"
)

// TestPipeline_MixedBatch runs the real analyzer under the session tracker
// on the canonical batch: doc.pdf (50 KB) and note.txt (10 KB) must come
// out clean, backdoor.exe (2 KB) above clean.
func TestPipeline_MixedBatch(t *testing.T) {
	tracker := scan.NewTracker(New().Analyze, scan.WithRecommender(Recommend))

	session, err := tracker.StartSession(context.Background(), testutil.MixedBatch())
	if err != nil {
		t.Fatalf("StartSession returned error: %v", err)
	}

	if session.State != scan.SessionCompleted {
		t.Fatalf("State = %v, want completed", session.State)
	}
	if session.Completed != 3 || session.Threats != 1 || session.Clean != 2 {
		t.Errorf("completed/threats/clean = %d/%d/%d, want 3/1/2",
			session.Completed, session.Threats, session.Clean)
	}

	for _, out := range session.Outcomes {
		switch out.File.Name {
		case "backdoor.exe":
			if out.ThreatLevel == scan.LevelClean {
				t.Errorf("%s classified clean, want above clean", out.File.Name)
			}
			if len(out.Recommendations) == 0 {
				t.Errorf("%s has no recommendations", out.File.Name)
			}
		default:
			if out.ThreatLevel != scan.LevelClean {
				t.Errorf("%s classified %v, want clean", out.File.Name, out.ThreatLevel)
			}
		}
		if out.File.SHA256 == "" {
			t.Errorf("%s missing content hash", out.File.Name)
		}
	}
}

// TestPipeline_AnalyzeOne checks the ad hoc single-file path agrees with
// the batch path.
func TestPipeline_AnalyzeOne(t *testing.T) {
	tracker := scan.NewTracker(New().Analyze, scan.WithRecommender(Recommend))

	outcome, err := tracker.AnalyzeOne(context.Background(), testutil.ThreatInput())
	if err != nil {
		t.Fatalf("AnalyzeOne returned error: %v", err)
	}
	if outcome.ThreatLevel == scan.LevelClean {
		t.Error("backdoor.exe classified clean via AnalyzeOne")
	}

	cleanOutcome, err := tracker.AnalyzeOne(context.Background(), testutil.CleanInput("note.txt", 10*1024))
	if err != nil {
		t.Fatalf("AnalyzeOne returned error: %v", err)
	}
	if cleanOutcome.ThreatLevel != scan.LevelClean {
		t.Errorf("note.txt classified %v, want clean", cleanOutcome.ThreatLevel)
	}
}
