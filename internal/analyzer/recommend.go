package analyzer

import "github.com/scantrail/scantrail/internal/scan"

// Recommendation lists are fixed per classification bucket and never
// depend on individual detection content. Critical and malicious share
// one bucket.
var (
	threatRecommendations = []string{
		"Quarantine the file immediately and do not execute it",
		"Verify the file's origin and publisher signature",
		"Rebuild the affected artifact from a trusted source",
		"Audit systems that already received this file",
	}

	suspiciousRecommendations = []string{
		"Review the file manually before use",
		"Confirm the upload came from an expected pipeline step",
		"Re-scan after obtaining the file from its original source",
	}

	cleanRecommendations = []string{
		"No action required",
	}
)

// Recommend returns the remediation list for a classification bucket. It
// satisfies scan.RecommendFunc.
func Recommend(level scan.ThreatLevel) []string {
	var src []string
	switch level {
	case scan.LevelCritical, scan.LevelMalicious:
		src = threatRecommendations
	case scan.LevelSuspicious:
		src = suspiciousRecommendations
	default:
		src = cleanRecommendations
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}
