package chess

import (
	"testing"

	"github.com/kibitz-games/kibitz/internal/game"
)

func applyMoves(t *testing.T, e *Engine, s game.State, moves ...string) game.State {
	t.Helper()
	for _, uci := range moves {
		outcome, err := e.MakeMove(s, uci)
		if err != nil {
			t.Fatalf("MakeMove(%s) error: %v", uci, err)
		}
		if !outcome.Valid {
			t.Fatalf("MakeMove(%s) rejected: %s", uci, outcome.Err)
		}
		s = outcome.State
	}
	return s
}

func TestNewGameStartsWithWhite(t *testing.T) {
	e := New()
	s, err := e.NewGame(game.Options{}, "seed")
	if err != nil {
		t.Fatalf("NewGame error: %v", err)
	}
	if got := e.Turn(s); got != game.SeatOne {
		t.Fatalf("Turn = %q, want %q", got, game.SeatOne)
	}
	if _, err := e.NewGame(game.Options{FirstSeat: game.SeatTwo}, "seed"); err == nil {
		t.Fatal("NewGame accepted black as first seat")
	}
}

func TestParseMove(t *testing.T) {
	e := New()
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "e2e4", want: "e2e4"},
		{input: " E2E4 ", want: "e2e4"},
		{input: "e7e8q", want: "e7e8q"},
		{input: "e2", wantErr: true},
		{input: "e2e9", wantErr: true},
		{input: "Nf3", wantErr: true},
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
		if move.(string) != tc.want {
			t.Errorf("ParseMove(%q) = %q, want %q", tc.input, move, tc.want)
		}
	}
}

func TestIsLegalMove(t *testing.T) {
	e := New()
	s, _ := e.NewGame(game.Options{}, "seed")
	if !e.IsLegalMove(s, "e2e4") {
		t.Fatal("e2e4 rejected from the start position")
	}
	if e.IsLegalMove(s, "e2e5") {
		t.Fatal("e2e5 accepted from the start position")
	}
	if e.IsLegalMove(s, "e7e5") {
		t.Fatal("black move accepted on white's turn")
	}
}

func TestMakeMoveRejectsIllegal(t *testing.T) {
	e := New()
	s, _ := e.NewGame(game.Options{}, "seed")
	outcome, err := e.MakeMove(s, "e1e2")
	if err != nil {
		t.Fatalf("MakeMove error: %v", err)
	}
	if outcome.Valid {
		t.Fatal("illegal move accepted")
	}
	// Rejection must not advance the turn.
	if got := e.Turn(s); got != game.SeatOne {
		t.Fatalf("Turn = %q after rejected move, want %q", got, game.SeatOne)
	}
}

func TestFoolsMate(t *testing.T) {
	e := New()
	s, _ := e.NewGame(game.Options{}, "seed")
	s = applyMoves(t, e, s, "f2f3", "e7e5", "g2g4", "d8h4")

	if !e.IsGameOver(s) {
		t.Fatal("fool's mate not detected")
	}
	result, ok := e.Result(s)
	if !ok {
		t.Fatal("Result reported game in progress")
	}
	if result.Status != game.StatusLost || result.Winner != game.SeatTwo {
		t.Fatalf("Result = %+v, want black win", result)
	}
	if result.Reason != "checkmate" {
		t.Fatalf("Reason = %q, want checkmate", result.Reason)
	}
}

func TestScholarsMate(t *testing.T) {
	e := New()
	s, _ := e.NewGame(game.Options{}, "seed")
	s = applyMoves(t, e, s, "e2e4", "e7e5", "d1h5", "b8c6", "f1c4", "g8f6", "h5f7")

	result, ok := e.Result(s)
	if !ok {
		t.Fatal("Result reported game in progress")
	}
	if result.Status != game.StatusWon || result.Winner != game.SeatOne {
		t.Fatalf("Result = %+v, want white win", result)
	}
}

func TestAIMoveFindsMateInOne(t *testing.T) {
	e := New()
	s, _ := e.NewGame(game.Options{}, "seed")
	// Scholar's mate position with white to deliver Qxf7#.
	s = applyMoves(t, e, s, "e2e4", "e7e5", "d1h5", "b8c6", "f1c4", "g8f6")

	move, ok := e.AIMove(s, "normal", "seed")
	if !ok {
		t.Fatal("AIMove found no move")
	}
	if move.(string) != "h5f7" {
		t.Fatalf("AIMove = %q, want mating move h5f7", move)
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
		if !ok || again.(string) != first.(string) {
			t.Fatalf("AIMove diverged: %v then %v", first, again)
		}
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	e := New()
	s, _ := e.NewGame(game.Options{}, "seed")
	s = applyMoves(t, e, s, "e2e4", "c7c5", "g1f3")

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
	if got := e.Turn(restored); got != game.SeatTwo {
		t.Fatalf("restored Turn = %q, want %q", got, game.SeatTwo)
	}
}

func TestDeserializeRejectsBadMove(t *testing.T) {
	e := New()
	if _, err := e.Deserialize([]byte(`{"fen":"","moves":["e2e5"]}`)); err == nil {
		t.Fatal("Deserialize accepted an illegal recorded move")
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
}
