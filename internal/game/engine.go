// Package game defines the pluggable engine contract the session runtime
// drives. Engines own the rules, AI, and state encoding for one game; the
// runtime never inspects a state beyond this interface.
package game

// State is an opaque, engine-owned game state.
type State any

// Move is an opaque, engine-owned move value.
type Move any

// Seat identifies a player slot within a game.
type Seat string

const (
	// SeatOne is the seat of the session creator.
	SeatOne Seat = "p1"
	// SeatTwo is the opposing seat (AI or second player).
	SeatTwo Seat = "p2"
)

// Status describes a finished game from the perspective of seat one.
type Status string

const (
	// StatusWon indicates seat one won the game.
	StatusWon Status = "won"
	// StatusLost indicates seat one lost the game.
	StatusLost Status = "lost"
	// StatusDraw indicates the game ended without a winner.
	StatusDraw Status = "draw"
)

// Result describes the outcome of a finished game.
type Result struct {
	Status Status `json:"status"`
	// Winner is the winning seat, empty on a draw.
	Winner Seat `json:"winner,omitempty"`
	// Reason is a short human-readable cause ("checkmate", "resignation").
	Reason string `json:"reason,omitempty"`
}

// Options configures a new game.
type Options struct {
	// Difficulty selects the AI strength ("easy", "normal", "hard").
	Difficulty string `json:"difficulty,omitempty"`
	// FirstSeat is the seat that moves first. Engines default it when empty.
	FirstSeat Seat `json:"first_seat,omitempty"`
	// TwoPlayer disables the built-in AI opponent.
	TwoPlayer bool `json:"two_player,omitempty"`
}

// MoveOutcome reports the effect of applying a move.
type MoveOutcome struct {
	// Valid is false when the move was rejected; State is unchanged then.
	Valid bool
	// State is the post-move state when Valid.
	State State
	// Err describes the rejection when not Valid.
	Err string
	// Result is non-nil when the move ended the game.
	Result *Result
}

// Engine is the per-game rules/AI contract.
//
// Serialize must be a pure, total function of state suitable for byte
// equality comparison. AIMove must be a pure function of (state, difficulty,
// seed); replay determinism verification depends on both.
type Engine interface {
	// Name returns the challenge identifier this engine serves.
	Name() string

	NewGame(opts Options, seed string) (State, error)
	IsLegalMove(state State, move Move) bool
	MakeMove(state State, move Move) (MoveOutcome, error)
	// AIMove returns the engine's move for the seat to act. ok is false
	// when no move is available (the game is over).
	AIMove(state State, difficulty, seed string) (move Move, ok bool)
	IsGameOver(state State) bool
	// Result returns the outcome of a finished game; ok is false while the
	// game is still in progress.
	Result(state State) (result Result, ok bool)
	// Turn reports which seat acts next.
	Turn(state State) Seat

	Serialize(state State) ([]byte, error)
	Deserialize(data []byte) (State, error)
	FormatMove(move Move) string
	ParseMove(s string) (Move, error)
	RenderText(state State) string
}
