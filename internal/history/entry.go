package history

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scantrail/scantrail/internal/scan"
)

// buildEntry derives a HistoricalScan from a terminal session and its
// outcomes. File content never reaches the entry; aggregates and auto-tags
// are computed here, once.
func buildEntry(session *scan.ScanSession, outcomes []scan.FileOutcome) *HistoricalScan {
	entry := &HistoricalScan{
		ID:              uuid.New().String(),
		SessionID:       session.ID,
		RecordedAt:      time.Now().UTC(),
		TotalFiles:      session.Total,
		ThreatsFound:    session.Threats,
		CleanFiles:      session.Clean,
		DurationSeconds: int(session.Duration().Round(time.Second).Seconds()),
		Files:           make([]FileRecord, 0, len(outcomes)),
	}

	var scoreSum, scored int
	for _, out := range outcomes {
		rec := FileRecord{
			ID:           out.ID,
			Name:         out.File.Name,
			Size:         out.File.Size,
			DeclaredType: out.File.DeclaredType,
			SHA256:       out.File.SHA256,
			Status:       out.Status.String(),
			ThreatLevel:  out.ThreatLevel.String(),
			RiskScore:    out.RiskScore,
			Error:        out.Error,
		}
		for _, d := range out.Detections {
			rec.Detections = append(rec.Detections, DetectionRecord{
				Category:    d.Category,
				Severity:    d.Severity.String(),
				Description: d.Description,
				Evidence:    d.Evidence,
				Confidence:  d.Confidence,
			})
		}
		entry.Files = append(entry.Files, rec)

		if out.Status == scan.StatusCompleted {
			scoreSum += out.RiskScore
			scored++
		}
	}

	if scored > 0 {
		entry.AvgRiskScore = int(math.Round(float64(scoreSum) / float64(scored)))
	}

	entry.AutoTags = deriveTags(outcomes)
	entry.Tags = append([]string(nil), entry.AutoTags...)
	return entry
}

// deriveTags computes the auto-tag set for a session's outcomes: one tag
// per distinct threat level present, one per distinct file extension, one
// risk-bucket tag per file, one per detection category present, and
// malware-detected when any file is non-clean.
func deriveTags(outcomes []scan.FileOutcome) []string {
	set := make(map[string]struct{})
	add := func(tag string) {
		if tag != "" {
			set[tag] = struct{}{}
		}
	}

	for _, out := range outcomes {
		if out.Status != scan.StatusCompleted {
			continue
		}
		add(out.ThreatLevel.String())
		if out.ThreatLevel != scan.LevelClean {
			add("malware-detected")
		}
		add(extensionOf(out.File.Name))
		add(riskBucket(out.RiskScore))
		for _, d := range out.Detections {
			add(d.Category)
		}
	}

	tags := make([]string, 0, len(set))
	for tag := range set {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// riskBucket maps a score to its risk-bucket tag using the same fixed
// breakpoints as classification.
func riskBucket(score int) string {
	switch {
	case score >= 80:
		return "critical-risk"
	case score >= 60:
		return "high-risk"
	case score >= 30:
		return "medium-risk"
	default:
		return "low-risk"
	}
}

// extensionOf returns the lowercase extension of name without the dot.
func extensionOf(name string) string {
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 || idx == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[idx+1:])
}

// mergeTags unions extra tags into existing, collapsing duplicates and
// keeping the result sorted.
func mergeTags(existing, extra []string) []string {
	set := make(map[string]struct{}, len(existing)+len(extra))
	for _, t := range existing {
		set[t] = struct{}{}
	}
	for _, t := range extra {
		t = strings.TrimSpace(t)
		if t != "" {
			set[t] = struct{}{}
		}
	}
	merged := make([]string, 0, len(set))
	for t := range set {
		merged = append(merged, t)
	}
	sort.Strings(merged)
	return merged
}

// matchesQuery reports whether the entry's file names, classification
// labels, tags, or notes contain q (already lowercased).
func matchesQuery(entry *HistoricalScan, q string) bool {
	for _, f := range entry.Files {
		if strings.Contains(strings.ToLower(f.Name), q) {
			return true
		}
		if strings.Contains(f.ThreatLevel, q) {
			return true
		}
	}
	for _, tag := range entry.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return strings.Contains(strings.ToLower(entry.Notes), q)
}

// cloneEntry deep-copies an entry so callers cannot mutate stored state.
func cloneEntry(e *HistoricalScan) *HistoricalScan {
	c := *e
	c.Files = make([]FileRecord, len(e.Files))
	for i, f := range e.Files {
		c.Files[i] = f
		if f.Detections != nil {
			c.Files[i].Detections = append([]DetectionRecord(nil), f.Detections...)
		}
	}
	c.Tags = append([]string(nil), e.Tags...)
	c.AutoTags = append([]string(nil), e.AutoTags...)
	return &c
}
