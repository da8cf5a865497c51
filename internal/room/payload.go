package room

import (
	"github.com/kibitz-games/kibitz/internal/game"
	"github.com/kibitz-games/kibitz/internal/session/domain"
)

// Domain event payloads pushed to observers. These are presentation-level
// facts; recorded replay events carry the authoritative state.

type sessionCreatedPayload struct {
	ChallengeID string    `json:"challenge_id"`
	Difficulty  string    `json:"difficulty,omitempty"`
	TwoPlayer   bool      `json:"two_player,omitempty"`
	Render      string    `json:"render"`
	Turn        game.Seat `json:"turn"`
}

type playerJoinedPayload struct {
	Seat game.Seat `json:"seat"`
}

type playerIdentifiedPayload struct {
	Seat game.Seat `json:"seat"`
	Name string    `json:"name"`
}

type movePayload struct {
	Seat      game.Seat `json:"seat"`
	Move      string    `json:"move"`
	Render    string    `json:"render"`
	MoveCount int       `json:"move_count"`
	Turn      game.Seat `json:"turn"`
}

type aiThinkingPayload struct {
	Seat game.Seat `json:"seat"`
}

type gameEndedPayload struct {
	Result    game.Result `json:"result"`
	Render    string      `json:"render"`
	MoveCount int         `json:"move_count"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type sessionExpiredPayload struct {
	IdleMS int64 `json:"idle_ms"`
}

// Snapshot is the full observable state of a room, sent to observers on
// attach and returned by the state query.
type Snapshot struct {
	SessionID   string        `json:"session_id"`
	ChallengeID string        `json:"challenge_id"`
	Status      domain.Status `json:"status"`
	TwoPlayer   bool          `json:"two_player,omitempty"`
	Turn        game.Seat     `json:"turn,omitempty"`
	MoveCount   int           `json:"move_count"`
	Render      string        `json:"render"`
	Result      *game.Result  `json:"result,omitempty"`
	// Players maps seat id to locked display name for identified seats.
	Players map[string]string `json:"players,omitempty"`
	// LastSeq is the sequence number of the latest domain event; observers
	// resume live delivery from here.
	LastSeq uint64 `json:"last_seq"`
}
