package scan

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// AnalyzeFunc scores a single file, returning its detections and a risk
// score in [0,100]. Injected to keep the tracker free of rule knowledge.
type AnalyzeFunc func(ctx context.Context, input *FileInput) (score int, detections []Detection, err error)

// RecommendFunc returns remediation advice for a classification bucket.
type RecommendFunc func(level ThreatLevel) []string

// stages are the fixed per-file pipeline steps. Progress is strictly
// increasing; classification happens only at the last stage.
var stages = []struct {
	name     string
	progress int
}{
	{"reading", 20},
	{"hashing", 45},
	{"signature-check", 70},
	{"scoring", 100},
}

// Tracker drives batches of file inputs from submission to completion,
// publishing an immutable session snapshot on every state change. The
// in-flight session is owned exclusively by the tracker (single writer);
// subscribers and the final caller only ever see copies or the terminal
// object.
type Tracker struct {
	bus       *Bus
	analyze   AnalyzeFunc
	recommend RecommendFunc
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithPace sets the artificial delay between pipeline stages. The delay
// exists only to pace observable progress for a live view; zero disables
// it without changing any outcome.
func WithPace(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		if d > 0 {
			t.limiter = rate.NewLimiter(rate.Every(d), 1)
		} else {
			t.limiter = nil
		}
	}
}

// WithRecommender overrides the recommendation function.
func WithRecommender(fn RecommendFunc) TrackerOption {
	return func(t *Tracker) { t.recommend = fn }
}

// WithLogger sets the tracker's logger.
func WithLogger(logger *slog.Logger) TrackerOption {
	return func(t *Tracker) { t.logger = logger }
}

// NewTracker creates a tracker that scores files with analyze.
func NewTracker(analyze AnalyzeFunc, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		analyze:   analyze,
		bus:       NewBus(),
		recommend: func(ThreatLevel) []string { return nil },
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Subscribe registers a subscriber on the tracker's event bus and returns
// a function that removes it.
func (t *Tracker) Subscribe(fn Subscriber) func() {
	return t.bus.Subscribe(fn)
}

// StartSession drives an ordered batch of inputs to completion. Files are
// processed strictly in submission order; within a file, stages execute in
// increasing order, and every stage publishes an updated snapshot before
// the next stage begins.
//
// An empty batch returns immediately with a trivially completed session of
// zero total. Cancellation is honored at every stage boundary and yields a
// session in the aborted state. A single file's failure is isolated: its
// outcome is marked failed and the remaining files continue.
func (t *Tracker) StartSession(ctx context.Context, inputs []FileInput) (*ScanSession, error) {
	now := time.Now().UTC()
	session := &ScanSession{
		ID:        uuid.New().String(),
		CreatedAt: now,
		StartedAt: now,
		State:     SessionRunning,
		Total:     len(inputs),
		Outcomes:  make([]FileOutcome, len(inputs)),
	}

	for i, in := range inputs {
		session.Outcomes[i] = FileOutcome{
			ID:     uuid.New().String(),
			File:   in,
			Status: StatusQueued,
			Stage:  "queued",
		}
	}

	if len(inputs) == 0 {
		session.State = SessionCompleted
		session.EndedAt = time.Now().UTC()
		t.publish(EventSessionCompleted, session, -1)
		return session, nil
	}

	t.publish(EventSessionStarted, session, -1)

	for i := range session.Outcomes {
		if aborted := t.runFile(ctx, session, i); aborted {
			session.State = SessionAborted
			session.EndedAt = time.Now().UTC()
			t.publish(EventSessionAborted, session, -1)
			t.logger.Info("session aborted",
				"session", session.ID,
				"completed", session.Completed,
				"total", session.Total,
			)
			return session, ctx.Err()
		}
	}

	session.State = SessionCompleted
	session.EndedAt = time.Now().UTC()
	t.publish(EventSessionCompleted, session, -1)
	t.logger.Info("session completed",
		"session", session.ID,
		"total", session.Total,
		"threats", session.Threats,
		"clean", session.Clean,
	)
	return session, nil
}

// runFile advances one outcome through all pipeline stages. It returns
// true if the batch was cancelled at a stage boundary.
func (t *Tracker) runFile(ctx context.Context, session *ScanSession, i int) (aborted bool) {
	out := &session.Outcomes[i]
	out.Status = StatusInProgress
	t.publish(EventFileStarted, session, i)

	for si, stage := range stages {
		if err := t.pace(ctx); err != nil {
			return true
		}

		out.Stage = stage.name
		if stage.progress > out.Progress {
			out.Progress = stage.progress
		}

		last := si == len(stages)-1
		if !last {
			if stage.name == "hashing" && out.File.SHA256 == "" {
				sum := sha256.Sum256(out.File.Content)
				out.File.SHA256 = hex.EncodeToString(sum[:])
			}
			t.publish(EventFileProgress, session, i)
			continue
		}

		// Terminal stage: classification and score are computed exactly
		// once, here. Earlier publishes never carry a score.
		score, detections, err := t.analyzeSafe(ctx, &out.File)
		if err != nil {
			out.Status = StatusFailed
			out.Error = err.Error()
			session.Completed++
			t.publish(EventFileFailed, session, i)
			t.logger.Warn("file analysis failed",
				"session", session.ID,
				"file", out.File.Name,
				"error", err,
			)
			continue
		}

		out.RiskScore = score
		out.ThreatLevel = ClassifyScore(score)
		out.Detections = detections
		out.Recommendations = t.recommend(out.ThreatLevel)
		out.Status = StatusCompleted

		session.Completed++
		if out.ThreatLevel == LevelClean {
			session.Clean++
		} else {
			session.Threats++
		}
		t.publish(EventFileCompleted, session, i)
	}

	return false
}

// AnalyzeOne analyzes a single file outside any session, returning the
// same outcome shape the session pipeline produces.
func (t *Tracker) AnalyzeOne(ctx context.Context, input FileInput) (*FileOutcome, error) {
	out := &FileOutcome{
		ID:     uuid.New().String(),
		File:   input,
		Status: StatusInProgress,
	}
	if out.File.SHA256 == "" {
		sum := sha256.Sum256(out.File.Content)
		out.File.SHA256 = hex.EncodeToString(sum[:])
	}

	score, detections, err := t.analyzeSafe(ctx, &out.File)
	if err != nil {
		out.Status = StatusFailed
		out.Error = err.Error()
		out.Progress = 100
		return out, err
	}

	out.RiskScore = score
	out.ThreatLevel = ClassifyScore(score)
	out.Detections = detections
	out.Recommendations = t.recommend(out.ThreatLevel)
	out.Status = StatusCompleted
	out.Progress = 100
	out.Stage = "scoring"
	return out, nil
}

// analyzeSafe invokes the analyze function with panic isolation so one bad
// file cannot take down the rest of the batch.
func (t *Tracker) analyzeSafe(ctx context.Context, input *FileInput) (score int, detections []Detection, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("analysis panic: %v", r)
		}
	}()
	if t.analyze == nil {
		return 0, nil, nil
	}
	return t.analyze(ctx, input)
}

// pace waits out the configured stage delay, honoring cancellation.
func (t *Tracker) pace(ctx context.Context) error {
	if t.limiter == nil {
		return ctx.Err()
	}
	return t.limiter.Wait(ctx)
}

// publish emits a deep-copied snapshot. outcome indexes into the snapshot
// (not the live session); -1 means a session-level event.
func (t *Tracker) publish(typ EventType, session *ScanSession, outcome int) {
	snap := session.Clone()
	ev := Event{Type: typ, Session: snap}
	if outcome >= 0 && outcome < len(snap.Outcomes) {
		ev.Outcome = &snap.Outcomes[outcome]
	}
	t.bus.Publish(ev)
}
