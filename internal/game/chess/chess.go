// Package chess adapts github.com/corentings/chess/v2 to the game engine
// contract. Seat one always plays white; moves use UCI notation as their
// canonical string form.
package chess

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/kibitz-games/kibitz/internal/game"
)

// Name is the challenge identifier served by this engine.
const Name = "chess"

var uciPattern = regexp.MustCompile(`^[a-h][1-8][a-h][1-8][qrbn]?$`)

// state wraps a live chess game. The wrapped game is never mutated after
// construction; MakeMove clones before applying.
type state struct {
	game *nchess.Game
}

// serialized is the canonical byte encoding of a chess state.
type serialized struct {
	FEN   string   `json:"fen"`
	Moves []string `json:"moves"`
}

// Engine implements game.Engine for chess.
type Engine struct{}

// New creates a chess engine.
func New() *Engine {
	return &Engine{}
}

// Name returns the challenge identifier.
func (e *Engine) Name() string { return Name }

// NewGame creates a game from the standard starting position.
func (e *Engine) NewGame(opts game.Options, seed string) (game.State, error) {
	if opts.FirstSeat == game.SeatTwo {
		return nil, fmt.Errorf("chess always starts with white (seat one)")
	}
	return &state{game: nchess.NewGame()}, nil
}

func (e *Engine) IsLegalMove(s game.State, move game.Move) bool {
	st, ok := s.(*state)
	if !ok {
		return false
	}
	uci, ok := move.(string)
	if !ok {
		return false
	}
	if st.game.Outcome() != nchess.NoOutcome {
		return false
	}
	clone := st.game.Clone()
	mv, err := nchess.UCINotation{}.Decode(clone.Position(), uci)
	if err != nil {
		return false
	}
	return clone.Move(mv, nil) == nil
}

func (e *Engine) MakeMove(s game.State, move game.Move) (game.MoveOutcome, error) {
	st, ok := s.(*state)
	if !ok {
		return game.MoveOutcome{}, fmt.Errorf("state is not a chess game")
	}
	uci, ok := move.(string)
	if !ok {
		return game.MoveOutcome{}, fmt.Errorf("move is not a UCI string")
	}
	if st.game.Outcome() != nchess.NoOutcome {
		return game.MoveOutcome{Valid: false, Err: "game is already over"}, nil
	}

	clone := st.game.Clone()
	mv, err := nchess.UCINotation{}.Decode(clone.Position(), uci)
	if err != nil {
		return game.MoveOutcome{Valid: false, Err: fmt.Sprintf("move %q is not legal here", uci)}, nil
	}
	if err := clone.Move(mv, nil); err != nil {
		return game.MoveOutcome{Valid: false, Err: fmt.Sprintf("move %q is not legal here", uci)}, nil
	}

	next := &state{game: clone}
	outcome := game.MoveOutcome{Valid: true, State: next}
	if result, ok := e.Result(next); ok {
		outcome.Result = &result
	}
	return outcome, nil
}

// AIMove ranks the legal moves with a shallow heuristic (mate, check,
// capture) and breaks ties with a seed-derived index over the UCI-sorted
// candidates, so the choice is a pure function of (state, difficulty, seed).
func (e *Engine) AIMove(s game.State, difficulty, seed string) (game.Move, bool) {
	st, ok := s.(*state)
	if !ok || st.game.Outcome() != nchess.NoOutcome {
		return nil, false
	}

	valid := st.game.ValidMoves()
	if len(valid) == 0 {
		return nil, false
	}

	mover := st.game.Position().Turn()
	type candidate struct {
		uci   string
		score int
	}
	candidates := make([]candidate, 0, len(valid))
	for _, mv := range valid {
		c := candidate{uci: mv.String()}
		if difficulty != "easy" {
			if mv.HasTag(nchess.Capture) {
				c.score = 1
			}
			if mv.HasTag(nchess.Check) {
				c.score = 2
			}
			probe := st.game.Clone()
			if err := probe.Move(&mv, nil); err == nil {
				if out := probe.Outcome(); (out == nchess.WhiteWon && mover == nchess.White) ||
					(out == nchess.BlackWon && mover == nchess.Black) {
					c.score = 3
				}
			}
		}
		candidates = append(candidates, c)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].uci < candidates[j].uci
	})

	best := candidates[:1]
	for _, c := range candidates[1:] {
		if c.score == best[0].score {
			best = append(best, c)
		} else {
			break
		}
	}

	return best[pick(st.game.FEN(), seed, len(best))].uci, true
}

func pick(fen, seed string, n int) int {
	h := sha256.New()
	h.Write([]byte(seed))
	h.Write([]byte{'|'})
	h.Write([]byte(fen))
	sum := h.Sum(nil)
	return int(binary.BigEndian.Uint32(sum[:4]) % uint32(n))
}

func (e *Engine) IsGameOver(s game.State) bool {
	st, ok := s.(*state)
	if !ok {
		return false
	}
	return st.game.Outcome() != nchess.NoOutcome
}

func (e *Engine) Result(s game.State) (game.Result, bool) {
	st, ok := s.(*state)
	if !ok {
		return game.Result{}, false
	}
	reason := strings.ToLower(st.game.Method().String())
	switch st.game.Outcome() {
	case nchess.WhiteWon:
		return game.Result{Status: game.StatusWon, Winner: game.SeatOne, Reason: reason}, true
	case nchess.BlackWon:
		return game.Result{Status: game.StatusLost, Winner: game.SeatTwo, Reason: reason}, true
	case nchess.Draw:
		return game.Result{Status: game.StatusDraw, Reason: reason}, true
	}
	return game.Result{}, false
}

func (e *Engine) Turn(s game.State) game.Seat {
	st, ok := s.(*state)
	if !ok {
		return ""
	}
	if st.game.Position().Turn() == nchess.White {
		return game.SeatOne
	}
	return game.SeatTwo
}

func (e *Engine) Serialize(s game.State) ([]byte, error) {
	st, ok := s.(*state)
	if !ok {
		return nil, fmt.Errorf("state is not a chess game")
	}
	moves := st.game.Moves()
	encoded := serialized{
		FEN:   st.game.FEN(),
		Moves: make([]string, 0, len(moves)),
	}
	for _, mv := range moves {
		encoded.Moves = append(encoded.Moves, mv.String())
	}
	return json.Marshal(encoded)
}

// Deserialize reconstructs the game by applying the stored UCI moves from
// the start position; the FEN is carried for presentation only.
func (e *Engine) Deserialize(data []byte) (game.State, error) {
	var encoded serialized
	if err := json.Unmarshal(data, &encoded); err != nil {
		return nil, fmt.Errorf("decode chess state: %w", err)
	}

	g := nchess.NewGame()
	for _, uci := range encoded.Moves {
		if err := g.PushNotationMove(uci, nchess.UCINotation{}, nil); err != nil {
			return nil, fmt.Errorf("reapply move %q: %w", uci, err)
		}
	}
	return &state{game: g}, nil
}

func (e *Engine) FormatMove(move game.Move) string {
	uci, ok := move.(string)
	if !ok {
		return ""
	}
	return uci
}

func (e *Engine) ParseMove(s string) (game.Move, error) {
	uci := strings.ToLower(strings.TrimSpace(s))
	if !uciPattern.MatchString(uci) {
		return nil, fmt.Errorf("move must be in UCI notation (e.g. e2e4), got %q", s)
	}
	return uci, nil
}

func (e *Engine) RenderText(s game.State) string {
	st, ok := s.(*state)
	if !ok {
		return ""
	}
	return st.game.Position().Board().Draw()
}
