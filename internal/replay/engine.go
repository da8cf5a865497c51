package replay

import (
	"bytes"
	"context"
	"fmt"

	"github.com/kibitz-games/kibitz/internal/game"
	apperrors "github.com/kibitz-games/kibitz/internal/platform/errors"
)

// Options configures replay execution.
type Options struct {
	// VerifyStates re-serializes state after each event and compares it
	// against the recorded expected state.
	VerifyStates bool
	// VerifyAIMoves re-asks the engine for its AI choice and compares it to
	// the recorded move. Mismatches are warnings, never failures: AI choice
	// may legitimately vary by environment.
	VerifyAIMoves bool
	// StopOnError aborts execution at the first error instead of collecting
	// and continuing.
	StopOnError bool
}

// Issue describes one problem found during execution.
type Issue struct {
	Seq     int            `json:"seq"`
	Code    apperrors.Code `json:"code"`
	Message string         `json:"message"`
}

// ExecuteResult reports the outcome of replay execution.
type ExecuteResult struct {
	Success         bool         `json:"success"`
	EventsProcessed int          `json:"events_processed"`
	FinalState      []byte       `json:"final_state,omitempty"`
	Result          *game.Result `json:"result,omitempty"`
	Errors          []Issue      `json:"errors,omitempty"`
	Warnings        []Issue      `json:"warnings,omitempty"`
}

// Engine re-executes recorded replays against the game engine contract.
type Engine struct {
	registry *game.Registry
	opts     Options
}

// NewEngine creates a replay engine resolving game engines from registry.
func NewEngine(registry *game.Registry, opts Options) *Engine {
	return &Engine{registry: registry, opts: opts}
}

// Validate checks structural invariants only: a non-empty event list, a
// leading game_start event, and sequence numbers running exactly 0..n-1.
func Validate(r Replay) error {
	if len(r.Events) == 0 {
		return apperrors.New(apperrors.CodeMissingStartEvent, "replay has no events")
	}
	if r.Events[0].Type != EventGameStart {
		return apperrors.New(apperrors.CodeMissingStartEvent,
			fmt.Sprintf("first event is %s, want %s", r.Events[0].Type, EventGameStart))
	}
	for i, evt := range r.Events {
		if evt.Seq != i {
			return apperrors.New(apperrors.CodeInvalidSequence,
				fmt.Sprintf("event at index %d has seq %d", i, evt.Seq))
		}
	}
	return nil
}

// Execute re-runs a replay from its game_start event, re-checking legality
// of every recorded move and, depending on options, comparing reproduced
// states against the recorded ones. Processing stops at the first terminal
// event (game_end, resign, timeout).
func (e *Engine) Execute(ctx context.Context, r Replay) (ExecuteResult, error) {
	result := ExecuteResult{}

	if err := Validate(r); err != nil {
		return result, err
	}

	engine, ok := e.registry.Lookup(r.ChallengeID)
	if !ok {
		return result, apperrors.New(apperrors.CodeUnknownGame,
			fmt.Sprintf("no engine registered for challenge %q", r.ChallengeID))
	}

	start, ok := r.Events[0].Payload.(GameStartPayload)
	if !ok {
		return result, apperrors.New(apperrors.CodeMissingStartEvent, "game_start event has no start payload")
	}

	state, err := engine.NewGame(start.Options, start.Seed)
	if err != nil {
		return result, fmt.Errorf("reinitialize game: %w", err)
	}
	result.EventsProcessed = 1

	fail := func(seq int, code apperrors.Code, message string) bool {
		result.Errors = append(result.Errors, Issue{Seq: seq, Code: code, Message: message})
		return e.opts.StopOnError
	}
	warn := func(seq int, code apperrors.Code, message string) {
		result.Warnings = append(result.Warnings, Issue{Seq: seq, Code: code, Message: message})
	}

	if e.opts.VerifyStates && len(start.State) > 0 {
		serialized, err := engine.Serialize(state)
		if err != nil {
			return result, fmt.Errorf("serialize initial state: %w", err)
		}
		if !bytes.Equal(serialized, start.State) {
			if fail(0, apperrors.CodeStateMismatch, "reproduced initial state differs from recorded state") {
				return e.finish(engine, state, result), nil
			}
		}
	}

loop:
	for _, evt := range r.Events[1:] {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		switch payload := evt.Payload.(type) {
		case MovePayload:
			move, err := engine.ParseMove(payload.Move)
			if err != nil {
				if fail(evt.Seq, apperrors.CodeIllegalMove,
					fmt.Sprintf("unparseable recorded move %q: %v", payload.Move, err)) {
					break loop
				}
				result.EventsProcessed++
				continue
			}
			if !engine.IsLegalMove(state, move) {
				if fail(evt.Seq, apperrors.CodeIllegalMove,
					fmt.Sprintf("recorded move %q is illegal in reproduced state", payload.Move)) {
					break loop
				}
				result.EventsProcessed++
				continue
			}

			if evt.Type == EventAIMove && e.opts.VerifyAIMoves {
				aiMove, ok := engine.AIMove(state, r.Options.Difficulty, r.Seed)
				if !ok || engine.FormatMove(aiMove) != payload.Move {
					warn(evt.Seq, apperrors.CodeStateMismatch,
						fmt.Sprintf("engine AI chose a different move than recorded %q", payload.Move))
				}
			}

			outcome, err := engine.MakeMove(state, move)
			if err != nil {
				return result, fmt.Errorf("apply recorded move %q: %w", payload.Move, err)
			}
			if !outcome.Valid {
				if fail(evt.Seq, apperrors.CodeIllegalMove,
					fmt.Sprintf("engine rejected recorded move %q: %s", payload.Move, outcome.Err)) {
					break loop
				}
				result.EventsProcessed++
				continue
			}
			state = outcome.State

			if e.opts.VerifyStates && len(payload.StateAfter) > 0 {
				serialized, err := engine.Serialize(state)
				if err != nil {
					return result, fmt.Errorf("serialize state after seq %d: %w", evt.Seq, err)
				}
				if !bytes.Equal(serialized, payload.StateAfter) {
					if fail(evt.Seq, apperrors.CodeStateMismatch,
						fmt.Sprintf("reproduced state after move %q differs from recorded state", payload.Move)) {
						break loop
					}
				}
			}
			result.EventsProcessed++

		case GameEndPayload:
			if !engine.IsGameOver(state) {
				if fail(evt.Seq, apperrors.CodeStateMismatch, "replay records game_end but engine reports game in progress") {
					break loop
				}
			}
			if e.opts.VerifyStates && len(payload.State) > 0 {
				serialized, err := engine.Serialize(state)
				if err != nil {
					return result, fmt.Errorf("serialize final state: %w", err)
				}
				if !bytes.Equal(serialized, payload.State) {
					if fail(evt.Seq, apperrors.CodeStateMismatch, "reproduced final state differs from recorded state") {
						break loop
					}
				}
			}
			result.EventsProcessed++
			break loop

		case ResignPayload, TimeoutPayload:
			// Terminal without mutating state.
			result.EventsProcessed++
			break loop

		case ErrorPayload:
			result.EventsProcessed++

		case UndoPayload:
			warn(evt.Seq, apperrors.CodeInvalidSequence, "undo events are not supported in replay; state unchanged")
			result.EventsProcessed++

		case GameStartPayload:
			if fail(evt.Seq, apperrors.CodeInvalidSequence, "duplicate game_start event") {
				break loop
			}
			result.EventsProcessed++

		default:
			if fail(evt.Seq, apperrors.CodeInvalidSequence,
				fmt.Sprintf("unknown event type %q", evt.Type)) {
				break loop
			}
			result.EventsProcessed++
		}
	}

	return e.finish(engine, state, result), nil
}

func (e *Engine) finish(engine game.Engine, state game.State, result ExecuteResult) ExecuteResult {
	if serialized, err := engine.Serialize(state); err == nil {
		result.FinalState = serialized
	}
	if r, ok := engine.Result(state); ok {
		result.Result = &r
	}
	result.Success = len(result.Errors) == 0
	return result
}

// VerifyDeterminism executes the replay twice and requires byte-identical
// serialized final states. A divergence means the engine's AI or move logic
// is not deterministic for the replay's seed, which is an engine contract
// violation.
func (e *Engine) VerifyDeterminism(ctx context.Context, r Replay) (bool, error) {
	runner := NewEngine(e.registry, Options{})

	first, err := runner.Execute(ctx, r)
	if err != nil {
		return false, err
	}
	second, err := runner.Execute(ctx, r)
	if err != nil {
		return false, err
	}
	return bytes.Equal(first.FinalState, second.FinalState), nil
}
