package scan

import "sync"

// EventType identifies what changed in a published Event.
type EventType int

const (
	EventSessionStarted EventType = iota
	EventFileStarted
	EventFileProgress
	EventFileCompleted
	EventFileFailed
	EventSessionCompleted
	EventSessionAborted
)

// String returns the event type name.
func (t EventType) String() string {
	names := [...]string{
		"session-started", "file-started", "file-progress",
		"file-completed", "file-failed", "session-completed",
		"session-aborted",
	}
	if int(t) < len(names) {
		return names[t]
	}
	return "unknown"
}

// Event is an immutable snapshot published on every state change. Session
// is always a deep copy; Outcome points into that copy and is nil for
// session-level events.
type Event struct {
	Type    EventType
	Session *ScanSession
	Outcome *FileOutcome
}

// Subscriber receives events. Delivery is synchronous and in publish
// order; a slow subscriber delays the pipeline.
type Subscriber func(Event)

// Bus is a minimal typed publish/subscribe hub. Publishing happens-before
// the tracker's next stage begins, so subscribers observe every
// intermediate state in order.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]Subscriber
	order  []int
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]Subscriber)}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn Subscriber) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.order = append(b.order, id)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
		for i, v := range b.order {
			if v == id {
				b.order = append(b.order[:i], b.order[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers ev to all subscribers in registration order.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	fns := make([]Subscriber, 0, len(b.order))
	for _, id := range b.order {
		if fn, ok := b.subs[id]; ok {
			fns = append(fns, fn)
		}
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
