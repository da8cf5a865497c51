package replay

import (
	"time"

	"github.com/kibitz-games/kibitz/internal/game"
)

// FormatVersion is the current replay record format version.
const FormatVersion = 1

// Metadata carries derived bookkeeping for a finished replay.
type Metadata struct {
	CreatedAt       time.Time `json:"created_at"`
	CompletedAt     time.Time `json:"completed_at"`
	MoveCount       int       `json:"move_count"`
	PlayerMoveCount int       `json:"player_move_count"`
	AIMoveCount     int       `json:"ai_move_count"`
	DurationMS      int64     `json:"duration_ms"`
}

// Replay is an immutable, self-contained game record. The seed plus the
// event list plus the game engine are sufficient to reproduce it; no other
// runtime state is required.
type Replay struct {
	Version     int          `json:"version"`
	ID          string       `json:"id"`
	ChallengeID string       `json:"challenge_id"`
	GameID      string       `json:"game_id"`
	UserID      string       `json:"user_id,omitempty"`
	Seed        string       `json:"seed"`
	Options     game.Options `json:"options"`
	Events      []Event      `json:"events"`
	Result      *game.Result `json:"result,omitempty"`
	Metadata    Metadata     `json:"metadata"`
}
