package event

import (
	"sync"
	"time"
)

const (
	// DefaultMaxEventsPerSession bounds the per-session window.
	DefaultMaxEventsPerSession = 100
	// DefaultRetention is how long an inactive session's window is kept.
	// This retention domain is independent of session expiry: it covers
	// replay-for-reconnect, not game state.
	DefaultRetention = 30 * time.Minute
)

// BufferConfig configures a Buffer.
type BufferConfig struct {
	// MaxEventsPerSession bounds the retained window per session.
	MaxEventsPerSession int
	// Retention is the inactivity timeout for Cleanup eviction.
	Retention time.Duration
	// Clock overrides the buffer clock in tests.
	Clock func() time.Time
}

// Buffer retains the most recent domain events per session. It is
// constructed explicitly at bootstrap and injected; it holds no global
// state. Safe for concurrent use.
type Buffer struct {
	mu       sync.Mutex
	max      int
	retain   time.Duration
	clock    func() time.Time
	sessions map[string]*window
}

type window struct {
	events     []Event
	lastActive time.Time
}

// NewBuffer creates a buffer with the given configuration.
func NewBuffer(cfg BufferConfig) *Buffer {
	if cfg.MaxEventsPerSession <= 0 {
		cfg.MaxEventsPerSession = DefaultMaxEventsPerSession
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Buffer{
		max:      cfg.MaxEventsPerSession,
		retain:   cfg.Retention,
		clock:    cfg.Clock,
		sessions: make(map[string]*window),
	}
}

// Append stores an event in its session's window, trimming the oldest
// events beyond the configured bound.
func (b *Buffer) Append(evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	w := b.sessions[evt.SessionID]
	if w == nil {
		w = &window{}
		b.sessions[evt.SessionID] = w
	}
	w.events = append(w.events, evt)
	if len(w.events) > b.max {
		trimmed := make([]Event, b.max)
		copy(trimmed, w.events[len(w.events)-b.max:])
		w.events = trimmed
	}
	w.lastActive = b.clock()
}

// EventsSince returns the buffered events with seq > afterSeq, in original
// order. trimmed reports that the window no longer reaches back to
// afterSeq, in which case the suffix has a gap and the caller must fall
// back to a full state snapshot. Unknown sessions yield an empty,
// untrimmed result.
func (b *Buffer) EventsSince(sessionID string, afterSeq uint64) (events []Event, trimmed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	w := b.sessions[sessionID]
	if w == nil || len(w.events) == 0 {
		return nil, false
	}

	if w.events[0].Seq > afterSeq+1 {
		trimmed = true
	}
	for _, evt := range w.events {
		if evt.Seq > afterSeq {
			events = append(events, evt)
		}
	}
	return events, trimmed
}

// LastSeq returns the highest buffered sequence number for a session.
func (b *Buffer) LastSeq(sessionID string) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	w := b.sessions[sessionID]
	if w == nil || len(w.events) == 0 {
		return 0
	}
	return w.events[len(w.events)-1].Seq
}

// Drop discards a session's window entirely.
func (b *Buffer) Drop(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sessions, sessionID)
}

// Cleanup evicts windows inactive beyond the retention timeout and returns
// the number of sessions evicted.
func (b *Buffer) Cleanup() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := b.clock().Add(-b.retain)
	evicted := 0
	for id, w := range b.sessions {
		if w.lastActive.Before(cutoff) {
			delete(b.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Len reports the number of sessions currently buffered.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}
