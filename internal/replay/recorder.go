package replay

import (
	"fmt"
	"time"

	"github.com/kibitz-games/kibitz/internal/game"
)

// RecorderConfig describes the game a recorder captures.
type RecorderConfig struct {
	ReplayID    string
	ChallengeID string
	GameID      string
	UserID      string
	Seed        string
	Options     game.Options
	// Clock overrides the recorder clock in tests.
	Clock func() time.Time
}

// Recorder captures a session's event stream as it happens. It is append
// only: every record call assigns the next sequence number and an elapsed
// timestamp relative to the recorder's start time. A recorder belongs to a
// single room actor and is not safe for concurrent use.
type Recorder struct {
	cfg     RecorderConfig
	clock   func() time.Time
	started time.Time
	events  []Event
}

// NewRecorder creates a recorder whose start time is now.
func NewRecorder(cfg RecorderConfig) *Recorder {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Recorder{
		cfg:     cfg,
		clock:   clock,
		started: clock().UTC(),
	}
}

// ResumeRecorder reconstructs a recorder from previously recorded events,
// shifting the start time so elapsed timestamps stay monotonic. Used when a
// room actor wakes with persisted session state.
func ResumeRecorder(cfg RecorderConfig, events []Event) *Recorder {
	r := NewRecorder(cfg)
	if len(events) > 0 {
		last := events[len(events)-1]
		r.started = r.clock().UTC().Add(-time.Duration(last.ElapsedMS) * time.Millisecond)
		r.events = make([]Event, len(events))
		copy(r.events, events)
	}
	return r
}

func (r *Recorder) append(eventType EventType, payload Payload) {
	r.events = append(r.events, Event{
		Seq:       len(r.events),
		ElapsedMS: r.clock().UTC().Sub(r.started).Milliseconds(),
		Type:      eventType,
		Payload:   payload,
	})
}

// RecordGameStart records the serialized initial state.
func (r *Recorder) RecordGameStart(state []byte) {
	r.append(EventGameStart, GameStartPayload{
		ChallengeID: r.cfg.ChallengeID,
		Seed:        r.cfg.Seed,
		Options:     r.cfg.Options,
		State:       cloneBytes(state),
	})
}

// RecordPlayerMove records a human move with before/after states.
func (r *Recorder) RecordPlayerMove(seat game.Seat, move string, before, after []byte) {
	r.append(EventPlayerMove, MovePayload{
		Seat:        seat,
		Move:        move,
		StateBefore: cloneBytes(before),
		StateAfter:  cloneBytes(after),
	})
}

// RecordAIMove records an AI move with before/after states.
func (r *Recorder) RecordAIMove(seat game.Seat, move string, before, after []byte) {
	r.append(EventAIMove, MovePayload{
		Seat:        seat,
		Move:        move,
		StateBefore: cloneBytes(before),
		StateAfter:  cloneBytes(after),
	})
}

// RecordGameEnd records the terminal result and final state.
func (r *Recorder) RecordGameEnd(result game.Result, state []byte) {
	r.append(EventGameEnd, GameEndPayload{
		Result: result,
		State:  cloneBytes(state),
	})
}

// RecordResign records a seat resigning.
func (r *Recorder) RecordResign(seat game.Seat, reason string) {
	r.append(EventResign, ResignPayload{Seat: seat, Reason: reason})
}

// RecordTimeout records the game ending by inactivity.
func (r *Recorder) RecordTimeout(idle time.Duration) {
	r.append(EventTimeout, TimeoutPayload{IdleMS: idle.Milliseconds()})
}

// RecordUndo records a takeback of the given number of moves.
func (r *Recorder) RecordUndo(moves int) {
	r.append(EventUndo, UndoPayload{Moves: moves})
}

// RecordError records a rejected action.
func (r *Recorder) RecordError(code, message string) {
	r.append(EventError, ErrorPayload{Code: code, Message: message})
}

// Events returns a copy of the recorded events so far.
func (r *Recorder) Events() []Event {
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	return len(r.events)
}

// Build produces the immutable replay snapshot with derived counts. It
// requires at least a recorded game_start event.
func (r *Recorder) Build(result *game.Result) (Replay, error) {
	if len(r.events) == 0 {
		return Replay{}, fmt.Errorf("no events recorded")
	}
	if r.events[0].Type != EventGameStart {
		return Replay{}, fmt.Errorf("first recorded event is %s, want %s", r.events[0].Type, EventGameStart)
	}

	completed := r.clock().UTC()
	meta := Metadata{
		CreatedAt:   r.started,
		CompletedAt: completed,
		DurationMS:  completed.Sub(r.started).Milliseconds(),
	}
	for _, evt := range r.events {
		switch evt.Type {
		case EventPlayerMove:
			meta.PlayerMoveCount++
		case EventAIMove:
			meta.AIMoveCount++
		}
	}
	meta.MoveCount = meta.PlayerMoveCount + meta.AIMoveCount

	var resultCopy *game.Result
	if result != nil {
		copied := *result
		resultCopy = &copied
	}

	return Replay{
		Version:     FormatVersion,
		ID:          r.cfg.ReplayID,
		ChallengeID: r.cfg.ChallengeID,
		GameID:      r.cfg.GameID,
		UserID:      r.cfg.UserID,
		Seed:        r.cfg.Seed,
		Options:     r.cfg.Options,
		Events:      r.Events(),
		Result:      resultCopy,
		Metadata:    meta,
	}, nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
