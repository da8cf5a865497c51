// Package tictactoe implements the game engine contract for tic-tac-toe.
// The AI is a pure function of (state, difficulty, seed) so that replays of
// its games verify deterministically.
package tictactoe

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kibitz-games/kibitz/internal/game"
)

// Name is the challenge identifier served by this engine.
const Name = "tictactoe"

const (
	markX = "X"
	markO = "O"
)

var lines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8}, // rows
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8}, // columns
	{0, 4, 8}, {2, 4, 6}, // diagonals
}

// state is the engine-owned board state. Field order is fixed so that
// json.Marshal yields a canonical byte encoding.
type state struct {
	Cells [9]string `json:"cells"`
	Next  game.Seat `json:"next"`
}

// Engine implements game.Engine for tic-tac-toe.
type Engine struct{}

// New creates a tic-tac-toe engine.
func New() *Engine {
	return &Engine{}
}

// Name returns the challenge identifier.
func (e *Engine) Name() string { return Name }

// NewGame creates an empty board. Seat one always plays X; the first seat
// to act defaults to seat one.
func (e *Engine) NewGame(opts game.Options, seed string) (game.State, error) {
	first := opts.FirstSeat
	if first == "" {
		first = game.SeatOne
	}
	if first != game.SeatOne && first != game.SeatTwo {
		return nil, fmt.Errorf("unknown first seat %q", first)
	}
	return &state{Next: first}, nil
}

func mark(seat game.Seat) string {
	if seat == game.SeatOne {
		return markX
	}
	return markO
}

func (e *Engine) IsLegalMove(s game.State, move game.Move) bool {
	board, ok := s.(*state)
	if !ok {
		return false
	}
	cell, ok := move.(int)
	if !ok || cell < 0 || cell > 8 {
		return false
	}
	if winner(board) != "" || full(board) {
		return false
	}
	return board.Cells[cell] == ""
}

func (e *Engine) MakeMove(s game.State, move game.Move) (game.MoveOutcome, error) {
	board, ok := s.(*state)
	if !ok {
		return game.MoveOutcome{}, fmt.Errorf("state is not a tic-tac-toe board")
	}
	cell, ok := move.(int)
	if !ok {
		return game.MoveOutcome{}, fmt.Errorf("move is not a cell index")
	}
	if !e.IsLegalMove(s, move) {
		return game.MoveOutcome{Valid: false, Err: fmt.Sprintf("cell %d is not playable", cell)}, nil
	}

	next := *board
	next.Cells[cell] = mark(board.Next)
	if board.Next == game.SeatOne {
		next.Next = game.SeatTwo
	} else {
		next.Next = game.SeatOne
	}

	outcome := game.MoveOutcome{Valid: true, State: &next}
	if result, ok := e.Result(&next); ok {
		outcome.Result = &result
	}
	return outcome, nil
}

// AIMove picks a move for the seat to act: win if possible, block an
// immediate loss, otherwise a seed-determined choice among the free cells.
// On "easy" difficulty the win/block lookahead is skipped.
func (e *Engine) AIMove(s game.State, difficulty, seed string) (game.Move, bool) {
	board, ok := s.(*state)
	if !ok || winner(board) != "" || full(board) {
		return nil, false
	}

	free := freeCells(board)
	if len(free) == 0 {
		return nil, false
	}

	if difficulty != "easy" {
		own := mark(board.Next)
		var other string
		if own == markX {
			other = markO
		} else {
			other = markX
		}
		if cell, ok := winningCell(board, own); ok {
			return cell, true
		}
		if cell, ok := winningCell(board, other); ok {
			return cell, true
		}
	}

	return free[pick(board, seed, len(free))], true
}

// pick derives a stable index from the seed and the board so the choice is
// reproducible for a given position.
func pick(board *state, seed string, n int) int {
	h := sha256.New()
	h.Write([]byte(seed))
	for _, c := range board.Cells {
		h.Write([]byte{'|'})
		h.Write([]byte(c))
	}
	sum := h.Sum(nil)
	return int(binary.BigEndian.Uint32(sum[:4]) % uint32(n))
}

func (e *Engine) IsGameOver(s game.State) bool {
	board, ok := s.(*state)
	if !ok {
		return false
	}
	return winner(board) != "" || full(board)
}

func (e *Engine) Result(s game.State) (game.Result, bool) {
	board, ok := s.(*state)
	if !ok {
		return game.Result{}, false
	}
	switch winner(board) {
	case markX:
		return game.Result{Status: game.StatusWon, Winner: game.SeatOne, Reason: "three in a row"}, true
	case markO:
		return game.Result{Status: game.StatusLost, Winner: game.SeatTwo, Reason: "three in a row"}, true
	}
	if full(board) {
		return game.Result{Status: game.StatusDraw, Reason: "board full"}, true
	}
	return game.Result{}, false
}

func (e *Engine) Turn(s game.State) game.Seat {
	board, ok := s.(*state)
	if !ok {
		return ""
	}
	return board.Next
}

func (e *Engine) Serialize(s game.State) ([]byte, error) {
	board, ok := s.(*state)
	if !ok {
		return nil, fmt.Errorf("state is not a tic-tac-toe board")
	}
	return json.Marshal(board)
}

func (e *Engine) Deserialize(data []byte) (game.State, error) {
	var board state
	if err := json.Unmarshal(data, &board); err != nil {
		return nil, fmt.Errorf("decode board: %w", err)
	}
	return &board, nil
}

func (e *Engine) FormatMove(move game.Move) string {
	cell, ok := move.(int)
	if !ok {
		return ""
	}
	return strconv.Itoa(cell)
}

func (e *Engine) ParseMove(s string) (game.Move, error) {
	cell, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || cell < 0 || cell > 8 {
		return nil, fmt.Errorf("move must be a cell index 0-8, got %q", s)
	}
	return cell, nil
}

func (e *Engine) RenderText(s game.State) string {
	board, ok := s.(*state)
	if !ok {
		return ""
	}
	var b strings.Builder
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			cell := board.Cells[row*3+col]
			if cell == "" {
				cell = strconv.Itoa(row*3 + col)
			}
			b.WriteString(" " + cell + " ")
			if col < 2 {
				b.WriteString("|")
			}
		}
		b.WriteString("\n")
		if row < 2 {
			b.WriteString("---+---+---\n")
		}
	}
	return b.String()
}

func winner(board *state) string {
	for _, line := range lines {
		a, b, c := board.Cells[line[0]], board.Cells[line[1]], board.Cells[line[2]]
		if a != "" && a == b && b == c {
			return a
		}
	}
	return ""
}

func full(board *state) bool {
	for _, c := range board.Cells {
		if c == "" {
			return false
		}
	}
	return true
}

func freeCells(board *state) []int {
	var free []int
	for i, c := range board.Cells {
		if c == "" {
			free = append(free, i)
		}
	}
	return free
}

// winningCell returns a cell that completes a line for mark, if any.
func winningCell(board *state, mark string) (int, bool) {
	for _, line := range lines {
		var empty = -1
		count := 0
		for _, idx := range line {
			switch board.Cells[idx] {
			case mark:
				count++
			case "":
				empty = idx
			}
		}
		if count == 2 && empty >= 0 {
			return empty, true
		}
	}
	return 0, false
}
