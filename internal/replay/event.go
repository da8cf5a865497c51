// Package replay records game sessions as ordered event streams and
// re-executes recorded streams against a game engine to verify they
// reproduce the same states.
package replay

import (
	"encoding/json"
	"fmt"

	"github.com/kibitz-games/kibitz/internal/game"
)

// EventType identifies the kind of a recorded event.
type EventType string

const (
	// EventGameStart records the initial state of a game.
	EventGameStart EventType = "game_start"
	// EventPlayerMove records a move made by a human seat.
	EventPlayerMove EventType = "player_move"
	// EventAIMove records a move chosen by the engine AI.
	EventAIMove EventType = "ai_move"
	// EventGameEnd records the terminal result of a game.
	EventGameEnd EventType = "game_end"
	// EventResign records a seat resigning.
	EventResign EventType = "resign"
	// EventTimeout records a game ended by inactivity.
	EventTimeout EventType = "timeout"
	// EventUndo records a move takeback.
	EventUndo EventType = "undo"
	// EventError records a rejected action during play.
	EventError EventType = "error"
)

// Event is one recorded state transition. Events are immutable once
// recorded; sequence numbers are 0-based and contiguous starting at the
// game_start event.
type Event struct {
	Seq       int
	ElapsedMS int64
	Type      EventType
	Payload   Payload
}

// Payload is the closed set of event payload variants. Consumers switch on
// the concrete type; an unknown variant is a structural replay failure.
type Payload interface {
	isPayload()
}

// GameStartPayload carries the payload of game_start events.
type GameStartPayload struct {
	ChallengeID string          `json:"challenge_id"`
	Seed        string          `json:"seed"`
	Options     game.Options    `json:"options"`
	State       json.RawMessage `json:"state"`
}

// MovePayload carries the payload of player_move and ai_move events.
type MovePayload struct {
	Seat game.Seat `json:"seat"`
	// Move is the canonical string form produced by Engine.FormatMove.
	Move        string          `json:"move"`
	StateBefore json.RawMessage `json:"state_before"`
	StateAfter  json.RawMessage `json:"state_after"`
}

// GameEndPayload carries the payload of game_end events.
type GameEndPayload struct {
	Result game.Result     `json:"result"`
	State  json.RawMessage `json:"state"`
}

// ResignPayload carries the payload of resign events.
type ResignPayload struct {
	Seat   game.Seat `json:"seat"`
	Reason string    `json:"reason,omitempty"`
}

// TimeoutPayload carries the payload of timeout events.
type TimeoutPayload struct {
	IdleMS int64 `json:"idle_ms,omitempty"`
}

// UndoPayload carries the payload of undo events.
type UndoPayload struct {
	Moves int `json:"moves"`
}

// ErrorPayload carries the payload of error events.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (GameStartPayload) isPayload() {}
func (MovePayload) isPayload()      {}
func (GameEndPayload) isPayload()   {}
func (ResignPayload) isPayload()    {}
func (TimeoutPayload) isPayload()   {}
func (UndoPayload) isPayload()      {}
func (ErrorPayload) isPayload()     {}

// eventJSON is the wire form of an event.
type eventJSON struct {
	Seq       int             `json:"seq"`
	ElapsedMS int64           `json:"elapsed_ms"`
	Type      EventType       `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

// MarshalJSON encodes the event with its payload variant inlined.
func (e Event) MarshalJSON() ([]byte, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", e.Type, err)
	}
	return json.Marshal(eventJSON{
		Seq:       e.Seq,
		ElapsedMS: e.ElapsedMS,
		Type:      e.Type,
		Payload:   payload,
	})
}

// UnmarshalJSON decodes the payload variant selected by the type tag.
func (e *Event) UnmarshalJSON(data []byte) error {
	var wire eventJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	payload, err := decodePayload(wire.Type, wire.Payload)
	if err != nil {
		return err
	}

	e.Seq = wire.Seq
	e.ElapsedMS = wire.ElapsedMS
	e.Type = wire.Type
	e.Payload = payload
	return nil
}

func decodePayload(eventType EventType, raw json.RawMessage) (Payload, error) {
	decode := func(target Payload) (Payload, error) {
		if len(raw) == 0 {
			return target, nil
		}
		if err := json.Unmarshal(raw, target); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", eventType, err)
		}
		return target, nil
	}

	switch eventType {
	case EventGameStart:
		p := &GameStartPayload{}
		decoded, err := decode(p)
		if err != nil {
			return nil, err
		}
		return *decoded.(*GameStartPayload), nil
	case EventPlayerMove, EventAIMove:
		p := &MovePayload{}
		decoded, err := decode(p)
		if err != nil {
			return nil, err
		}
		return *decoded.(*MovePayload), nil
	case EventGameEnd:
		p := &GameEndPayload{}
		decoded, err := decode(p)
		if err != nil {
			return nil, err
		}
		return *decoded.(*GameEndPayload), nil
	case EventResign:
		p := &ResignPayload{}
		decoded, err := decode(p)
		if err != nil {
			return nil, err
		}
		return *decoded.(*ResignPayload), nil
	case EventTimeout:
		p := &TimeoutPayload{}
		decoded, err := decode(p)
		if err != nil {
			return nil, err
		}
		return *decoded.(*TimeoutPayload), nil
	case EventUndo:
		p := &UndoPayload{}
		decoded, err := decode(p)
		if err != nil {
			return nil, err
		}
		return *decoded.(*UndoPayload), nil
	case EventError:
		p := &ErrorPayload{}
		decoded, err := decode(p)
		if err != nil {
			return nil, err
		}
		return *decoded.(*ErrorPayload), nil
	default:
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}
}
