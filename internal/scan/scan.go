// Package scan provides the core batch-scan orchestration pipeline.
package scan

import "time"

// FileInput describes a single file submitted for analysis.
type FileInput struct {
	Name         string
	Size         int64
	DeclaredType string
	Content      []byte
	SHA256       string
}

// OutcomeStatus tracks a file's position in the analysis pipeline.
type OutcomeStatus int

const (
	StatusQueued OutcomeStatus = iota
	StatusInProgress
	StatusCompleted
	StatusFailed
)

// String returns the status name.
func (s OutcomeStatus) String() string {
	names := [...]string{"queued", "in-progress", "completed", "failed"}
	if int(s) < len(names) {
		return names[s]
	}
	return "unknown"
}

// ThreatLevel is the ordered severity scale assigned to a risk score.
// Levels are ordered: Clean < Suspicious < Malicious < Critical.
type ThreatLevel int

const (
	LevelClean ThreatLevel = iota
	LevelSuspicious
	LevelMalicious
	LevelCritical
)

// String returns the threat level name.
func (l ThreatLevel) String() string {
	names := [...]string{"clean", "suspicious", "malicious", "critical"}
	if int(l) >= 0 && int(l) < len(names) {
		return names[l]
	}
	return "unknown"
}

// ParseThreatLevel maps a level name to its ThreatLevel. The second return
// value is false for unrecognized names.
func ParseThreatLevel(name string) (ThreatLevel, bool) {
	switch name {
	case "clean":
		return LevelClean, true
	case "suspicious":
		return LevelSuspicious, true
	case "malicious":
		return LevelMalicious, true
	case "critical":
		return LevelCritical, true
	}
	return LevelClean, false
}

// ClassifyScore maps a risk score to its threat level using the fixed
// breakpoints: >=80 critical, >=60 malicious, >=30 suspicious, else clean.
func ClassifyScore(score int) ThreatLevel {
	switch {
	case score >= 80:
		return LevelCritical
	case score >= 60:
		return LevelMalicious
	case score >= 30:
		return LevelSuspicious
	default:
		return LevelClean
	}
}

// Detection is a single heuristic finding against a file.
type Detection struct {
	Category    string
	Severity    ThreatLevel
	Description string
	Evidence    string
	Confidence  int // 0-100
}

// FileOutcome is the result of analyzing a single file.
type FileOutcome struct {
	ID              string
	File            FileInput
	Status          OutcomeStatus
	Progress        int // 0-100, non-decreasing across publishes
	Stage           string
	ThreatLevel     ThreatLevel
	RiskScore       int // 0-100
	Detections      []Detection
	Recommendations []string
	Error           string
}

// SessionState is the lifecycle state of a ScanSession.
type SessionState int

const (
	SessionRunning SessionState = iota
	SessionCompleted
	SessionAborted
)

// String returns the session state name.
func (s SessionState) String() string {
	names := [...]string{"running", "completed", "aborted"}
	if int(s) < len(names) {
		return names[s]
	}
	return "unknown"
}

// ScanSession represents one batch scan in progress or just completed.
// Counters hold threats+clean == completed <= total; once completed equals
// total the session is terminal and never mutated again.
type ScanSession struct {
	ID        string
	CreatedAt time.Time
	State     SessionState
	Total     int
	Completed int
	Threats   int
	Clean     int
	Outcomes  []FileOutcome
	StartedAt time.Time
	EndedAt   time.Time
}

// Terminal reports whether the session will receive no further mutations.
func (s *ScanSession) Terminal() bool {
	return s.State == SessionCompleted || s.State == SessionAborted
}

// Duration returns the wall-clock span of the session, zero while running.
func (s *ScanSession) Duration() time.Duration {
	if s.EndedAt.IsZero() {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// Clone returns a deep copy of the session. Subscribers receive clones so
// a retained event can never observe later mutations.
func (s *ScanSession) Clone() *ScanSession {
	c := *s
	c.Outcomes = make([]FileOutcome, len(s.Outcomes))
	for i, o := range s.Outcomes {
		c.Outcomes[i] = *cloneOutcome(&o)
	}
	return &c
}

// cloneOutcome deep-copies a FileOutcome, including its detection and
// recommendation slices and the input content bytes.
func cloneOutcome(o *FileOutcome) *FileOutcome {
	c := *o
	if o.File.Content != nil {
		c.File.Content = append([]byte(nil), o.File.Content...)
	}
	if o.Detections != nil {
		c.Detections = append([]Detection(nil), o.Detections...)
	}
	if o.Recommendations != nil {
		c.Recommendations = append([]string(nil), o.Recommendations...)
	}
	return &c
}
