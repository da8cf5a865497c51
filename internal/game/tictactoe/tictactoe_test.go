package tictactoe

import (
	"strings"
	"testing"

	"github.com/kibitz-games/kibitz/internal/game"
)

func playMoves(t *testing.T, e *Engine, s game.State, cells ...int) game.State {
	t.Helper()
	for _, cell := range cells {
		outcome, err := e.MakeMove(s, cell)
		if err != nil {
			t.Fatalf("MakeMove(%d) error: %v", cell, err)
		}
		if !outcome.Valid {
			t.Fatalf("MakeMove(%d) rejected: %s", cell, outcome.Err)
		}
		s = outcome.State
	}
	return s
}

func TestNewGameDefaults(t *testing.T) {
	e := New()
	s, err := e.NewGame(game.Options{}, "seed")
	if err != nil {
		t.Fatalf("NewGame error: %v", err)
	}
	if got := e.Turn(s); got != game.SeatOne {
		t.Fatalf("Turn = %q, want %q", got, game.SeatOne)
	}
	if e.IsGameOver(s) {
		t.Fatal("new game reports game over")
	}
}

func TestNewGameRejectsUnknownFirstSeat(t *testing.T) {
	e := New()
	if _, err := e.NewGame(game.Options{FirstSeat: "p3"}, "seed"); err == nil {
		t.Fatal("NewGame accepted unknown first seat")
	}
}

func TestMakeMoveAlternatesSeats(t *testing.T) {
	e := New()
	s, _ := e.NewGame(game.Options{}, "seed")
	s = playMoves(t, e, s, 4)
	if got := e.Turn(s); got != game.SeatTwo {
		t.Fatalf("Turn after first move = %q, want %q", got, game.SeatTwo)
	}
}

func TestMakeMoveRejectsOccupiedCell(t *testing.T) {
	e := New()
	s, _ := e.NewGame(game.Options{}, "seed")
	s = playMoves(t, e, s, 4)
	outcome, err := e.MakeMove(s, 4)
	if err != nil {
		t.Fatalf("MakeMove error: %v", err)
	}
	if outcome.Valid {
		t.Fatal("occupied cell was accepted")
	}
}

func TestResultSeatOneWin(t *testing.T) {
	e := New()
	s, _ := e.NewGame(game.Options{}, "seed")
	// X: 0, 1, 2 wins across the top row.
	s = playMoves(t, e, s, 0, 3, 1, 4, 2)

	result, ok := e.Result(s)
	if !ok {
		t.Fatal("Result reported game in progress")
	}
	if result.Status != game.StatusWon || result.Winner != game.SeatOne {
		t.Fatalf("Result = %+v, want seat one win", result)
	}
	if !e.IsGameOver(s) {
		t.Fatal("IsGameOver = false after a win")
	}
}

func TestResultDraw(t *testing.T) {
	e := New()
	s, _ := e.NewGame(game.Options{}, "seed")
	// X X O / O O X / X O X leaves no winner.
	s = playMoves(t, e, s, 0, 2, 1, 3, 5, 4, 6, 7, 8)

	result, ok := e.Result(s)
	if !ok {
		t.Fatal("Result reported game in progress")
	}
	if result.Status != game.StatusDraw {
		t.Fatalf("Result = %+v, want draw", result)
	}
	if result.Winner != "" {
		t.Fatalf("draw has winner %q", result.Winner)
	}
}

func TestAIMoveTakesWin(t *testing.T) {
	e := New()
	s, _ := e.NewGame(game.Options{}, "seed")
	// X plays 0, 1; O plays 3, 4. X to move can win at 2.
	s = playMoves(t, e, s, 0, 3, 1, 4)

	move, ok := e.AIMove(s, "normal", "seed")
	if !ok {
		t.Fatal("AIMove found no move")
	}
	if move.(int) != 2 {
		t.Fatalf("AIMove = %d, want winning cell 2", move.(int))
	}
}

func TestAIMoveBlocksLoss(t *testing.T) {
	e := New()
	s, _ := e.NewGame(game.Options{}, "seed")
	// X plays 0, 1; O plays 4. O to move must block at 2.
	s = playMoves(t, e, s, 0, 4, 1)

	move, ok := e.AIMove(s, "normal", "seed")
	if !ok {
		t.Fatal("AIMove found no move")
	}
	if move.(int) != 2 {
		t.Fatalf("AIMove = %d, want blocking cell 2", move.(int))
	}
}

func TestAIMoveDeterministicForSeed(t *testing.T) {
	e := New()
	s, _ := e.NewGame(game.Options{}, "seed")

	first, ok := e.AIMove(s, "easy", "alpha")
	if !ok {
		t.Fatal("AIMove found no move")
	}
	for i := 0; i < 5; i++ {
		again, ok := e.AIMove(s, "easy", "alpha")
		if !ok || again.(int) != first.(int) {
			t.Fatalf("AIMove diverged: %v then %v", first, again)
		}
	}
}

func TestAIMoveNoneWhenGameOver(t *testing.T) {
	e := New()
	s, _ := e.NewGame(game.Options{}, "seed")
	s = playMoves(t, e, s, 0, 3, 1, 4, 2)

	if _, ok := e.AIMove(s, "normal", "seed"); ok {
		t.Fatal("AIMove produced a move in a finished game")
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	e := New()
	s, _ := e.NewGame(game.Options{}, "seed")
	s = playMoves(t, e, s, 4, 0)

	data, err := e.Serialize(s)
	if err != nil {
		t.Fatalf("Serialize error: %v", err)
	}
	restored, err := e.Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize error: %v", err)
	}
	again, err := e.Serialize(restored)
	if err != nil {
		t.Fatalf("Serialize restored error: %v", err)
	}
	if string(data) != string(again) {
		t.Fatalf("round trip changed encoding:\n%s\n%s", data, again)
	}
	if got := e.Turn(restored); got != game.SeatOne {
		t.Fatalf("restored Turn = %q, want %q", got, game.SeatOne)
	}
}

func TestParseMove(t *testing.T) {
	e := New()
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{input: "0", want: 0},
		{input: " 8 ", want: 8},
		{input: "9", wantErr: true},
		{input: "-1", wantErr: true},
		{input: "center", wantErr: true},
		{input: "", wantErr: true},
	}
	for _, tc := range tests {
		move, err := e.ParseMove(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseMove(%q) accepted", tc.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMove(%q) error: %v", tc.input, err)
			continue
		}
		if move.(int) != tc.want {
			t.Errorf("ParseMove(%q) = %d, want %d", tc.input, move.(int), tc.want)
		}
	}
}

func TestRenderTextShowsMarksAndIndexes(t *testing.T) {
	e := New()
	s, _ := e.NewGame(game.Options{}, "seed")
	s = playMoves(t, e, s, 4)

	render := e.RenderText(s)
	if !strings.Contains(render, "X") {
		t.Fatalf("render missing X mark:\n%s", render)
	}
	if !strings.Contains(render, "8") {
		t.Fatalf("render missing free-cell index:\n%s", render)
	}
}

func TestAchievementsBuild(t *testing.T) {
	defs, err := Achievements()
	if err != nil {
		t.Fatalf("Achievements error: %v", err)
	}
	if len(defs) == 0 {
		t.Fatal("no achievement definitions")
	}
	seen := map[string]bool{}
	for _, def := range defs {
		if seen[def.ID] {
			t.Fatalf("duplicate achievement id %q", def.ID)
		}
		seen[def.ID] = true
	}
}
