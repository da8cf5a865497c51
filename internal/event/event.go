// Package event defines orchestration-level domain events pushed to
// spectators, and the bounded per-session buffer that lets a reconnecting
// observer catch up without a full snapshot.
//
// Domain events are derived from, but distinct from, recorded replay
// events: their sequence numbers start at 1 and are assigned by the room
// actor that owns the session.
package event

import (
	"encoding/json"
	"time"
)

// Type identifies the kind of a domain event.
type Type string

const (
	// TypeSessionCreated announces a new session.
	TypeSessionCreated Type = "session_created"
	// TypePlayerJoined announces a seat being claimed in a two-player game.
	TypePlayerJoined Type = "player_joined"
	// TypePlayerIdentified announces a locked player identity.
	TypePlayerIdentified Type = "player_identified"
	// TypeMoveValidated announces an accepted move.
	TypeMoveValidated Type = "move_validated"
	// TypeAIThinking announces that the engine is computing its reply.
	TypeAIThinking Type = "ai_thinking"
	// TypeAIMoved announces the engine's reply move.
	TypeAIMoved Type = "ai_moved"
	// TypeGameEnded announces the terminal result.
	TypeGameEnded Type = "game_ended"
	// TypeAchievementEarned announces one earned achievement.
	TypeAchievementEarned Type = "achievement_earned"
	// TypeError announces a rejected game action so spectators see it.
	TypeError Type = "error"
	// TypeSessionExpired announces room teardown by inactivity.
	TypeSessionExpired Type = "session_expired"
	// TypeSnapshot carries the full current state; sent to observers on
	// attach before they switch to live push.
	TypeSnapshot Type = "snapshot"
)

// Event is an orchestration-level notification delivered to observers.
// Within one session, Seq is strictly increasing and gapless.
type Event struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Seq       uint64          `json:"seq"`
	Timestamp time.Time       `json:"timestamp"`
	Type      Type            `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}
