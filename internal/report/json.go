package report

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/scantrail/scantrail/internal/scan"
)

// JSONReporter outputs structured JSON.
type JSONReporter struct {
	// Compact outputs single-line JSON when true (no indentation).
	Compact bool
}

// Format returns "json".
func (r *JSONReporter) Format() string {
	return "json"
}

// jsonOutput is the top-level JSON structure.
type jsonOutput struct {
	SchemaVersion string        `json:"schema_version"`
	Tool          string        `json:"tool"`
	Session       jsonSession   `json:"session"`
	Files         []jsonOutcome `json:"files"`
	Summary       jsonSummary   `json:"summary"`
}

// jsonSession represents session metadata in JSON.
type jsonSession struct {
	ID              string    `json:"id"`
	State           string    `json:"state"`
	CreatedAt       time.Time `json:"created_at"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at,omitempty"`
	DurationSeconds float64   `json:"duration_seconds"`
}

// jsonOutcome represents a single file result in JSON.
type jsonOutcome struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Size            int64           `json:"size"`
	DeclaredType    string          `json:"declared_type,omitempty"`
	SHA256          string          `json:"sha256,omitempty"`
	Status          string          `json:"status"`
	ThreatLevel     string          `json:"threat_level"`
	RiskScore       int             `json:"risk_score"`
	Detections      []jsonDetection `json:"detections,omitempty"`
	Recommendations []string        `json:"recommendations,omitempty"`
	Error           string          `json:"error,omitempty"`
}

// jsonDetection represents a detection in JSON.
type jsonDetection struct {
	Category    string `json:"category"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Evidence    string `json:"evidence"`
	Confidence  int    `json:"confidence"`
}

// jsonSummary represents the aggregate counters in JSON.
type jsonSummary struct {
	TotalFiles   int `json:"total_files"`
	Completed    int `json:"completed"`
	ThreatsFound int `json:"threats_found"`
	CleanFiles   int `json:"clean_files"`
}

// Generate writes the session as JSON to w.
func (r *JSONReporter) Generate(ctx context.Context, session *scan.ScanSession, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	output := jsonOutput{
		SchemaVersion: "1.0",
		Tool:          "scantrail",
		Session: jsonSession{
			ID:              session.ID,
			State:           session.State.String(),
			CreatedAt:       session.CreatedAt,
			StartedAt:       session.StartedAt,
			EndedAt:         session.EndedAt,
			DurationSeconds: session.Duration().Seconds(),
		},
		Files: make([]jsonOutcome, 0, len(session.Outcomes)),
		Summary: jsonSummary{
			TotalFiles:   session.Total,
			Completed:    session.Completed,
			ThreatsFound: session.Threats,
			CleanFiles:   session.Clean,
		},
	}

	for _, out := range session.Outcomes {
		jo := jsonOutcome{
			ID:              out.ID,
			Name:            out.File.Name,
			Size:            out.File.Size,
			DeclaredType:    out.File.DeclaredType,
			SHA256:          out.File.SHA256,
			Status:          out.Status.String(),
			ThreatLevel:     out.ThreatLevel.String(),
			RiskScore:       out.RiskScore,
			Recommendations: out.Recommendations,
			Error:           out.Error,
		}
		for _, det := range out.Detections {
			jo.Detections = append(jo.Detections, jsonDetection{
				Category:    det.Category,
				Severity:    det.Severity.String(),
				Description: det.Description,
				Evidence:    det.Evidence,
				Confidence:  det.Confidence,
			})
		}
		output.Files = append(output.Files, jo)
	}

	enc := json.NewEncoder(w)
	if !r.Compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(output)
}
