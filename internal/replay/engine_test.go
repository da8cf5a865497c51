package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"testing"

	apperrors "github.com/kibitz-games/kibitz/internal/platform/errors"

	"github.com/kibitz-games/kibitz/internal/game"
)

// countdown is a minimal deterministic game for exercising the replay
// engine: players alternately subtract 1-3 from a counter and whoever takes
// the last point wins. The AI always subtracts one.
type countdown struct{}

type countdownState struct {
	Remaining int       `json:"remaining"`
	Next      game.Seat `json:"next"`
}

func (countdown) Name() string { return "countdown" }

func (countdown) NewGame(opts game.Options, seed string) (game.State, error) {
	return &countdownState{Remaining: 7, Next: game.SeatOne}, nil
}

func (countdown) IsLegalMove(s game.State, move game.Move) bool {
	st := s.(*countdownState)
	n, ok := move.(int)
	return ok && st.Remaining > 0 && n >= 1 && n <= 3 && n <= st.Remaining
}

func (e countdown) MakeMove(s game.State, move game.Move) (game.MoveOutcome, error) {
	st := s.(*countdownState)
	n, ok := move.(int)
	if !ok {
		return game.MoveOutcome{}, fmt.Errorf("move is not an int")
	}
	if !e.IsLegalMove(s, move) {
		return game.MoveOutcome{Valid: false, Err: "illegal take"}, nil
	}
	next := &countdownState{Remaining: st.Remaining - n, Next: game.SeatTwo}
	if st.Next == game.SeatTwo {
		next.Next = game.SeatOne
	}
	outcome := game.MoveOutcome{Valid: true, State: next}
	if next.Remaining == 0 {
		status := game.StatusWon
		if st.Next == game.SeatTwo {
			status = game.StatusLost
		}
		outcome.Result = &game.Result{Status: status, Winner: st.Next, Reason: "took the last point"}
	}
	return outcome, nil
}

func (countdown) AIMove(s game.State, difficulty, seed string) (game.Move, bool) {
	st := s.(*countdownState)
	if st.Remaining <= 0 {
		return nil, false
	}
	return 1, true
}

func (countdown) IsGameOver(s game.State) bool {
	return s.(*countdownState).Remaining <= 0
}

func (countdown) Result(s game.State) (game.Result, bool) {
	st := s.(*countdownState)
	if st.Remaining > 0 {
		return game.Result{}, false
	}
	// The seat that just moved took the last point.
	winner := game.SeatOne
	status := game.StatusWon
	if st.Next == game.SeatOne {
		winner = game.SeatTwo
		status = game.StatusLost
	}
	return game.Result{Status: status, Winner: winner, Reason: "took the last point"}, true
}

func (countdown) Turn(s game.State) game.Seat {
	return s.(*countdownState).Next
}

func (countdown) Serialize(s game.State) ([]byte, error) {
	return json.Marshal(s.(*countdownState))
}

func (countdown) Deserialize(data []byte) (game.State, error) {
	var st countdownState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (countdown) FormatMove(move game.Move) string {
	n, ok := move.(int)
	if !ok {
		return ""
	}
	return strconv.Itoa(n)
}

func (countdown) ParseMove(s string) (game.Move, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 3 {
		return nil, fmt.Errorf("take must be 1-3, got %q", s)
	}
	return n, nil
}

func (countdown) RenderText(s game.State) string {
	return fmt.Sprintf("%d remaining", s.(*countdownState).Remaining)
}

func testRegistry(t *testing.T) *game.Registry {
	t.Helper()
	registry := game.NewRegistry()
	if err := registry.Register(countdown{}); err != nil {
		t.Fatalf("register countdown: %v", err)
	}
	return registry
}

// recordGame plays 3,1(ai),3 so seat one takes the last point and wins.
func recordGame(t *testing.T) Replay {
	t.Helper()
	engine := countdown{}
	r := NewRecorder(RecorderConfig{
		ReplayID:    "replay-1",
		ChallengeID: "countdown",
		GameID:      "session-1",
		Seed:        "seed-1",
	})

	state, _ := engine.NewGame(game.Options{}, "seed-1")
	serialize := func(s game.State) []byte {
		data, err := engine.Serialize(s)
		if err != nil {
			t.Fatalf("serialize: %v", err)
		}
		return data
	}
	r.RecordGameStart(serialize(state))

	apply := func(n int) (game.State, *game.Result) {
		outcome, err := engine.MakeMove(state, n)
		if err != nil || !outcome.Valid {
			t.Fatalf("apply %d: err=%v outcome=%+v", n, err, outcome)
		}
		return outcome.State, outcome.Result
	}

	before := serialize(state)
	next, _ := apply(3)
	r.RecordPlayerMove(game.SeatOne, "3", before, serialize(next))
	state = next

	before = serialize(state)
	next, _ = apply(1)
	r.RecordAIMove(game.SeatTwo, "1", before, serialize(next))
	state = next

	before = serialize(state)
	next, result := apply(3)
	r.RecordPlayerMove(game.SeatOne, "3", before, serialize(next))
	state = next

	if result == nil {
		t.Fatal("game did not end as scripted")
	}
	r.RecordGameEnd(*result, serialize(state))

	rep, err := r.Build(result)
	if err != nil {
		t.Fatalf("build replay: %v", err)
	}
	return rep
}

func TestExecuteVerifiesCleanReplay(t *testing.T) {
	engine := NewEngine(testRegistry(t), Options{VerifyStates: true, VerifyAIMoves: true})

	result, err := engine.Execute(context.Background(), recordGame(t))
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if !result.Success {
		t.Fatalf("Execute failed: %+v", result.Errors)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %+v", result.Warnings)
	}
	if result.Result == nil || result.Result.Status != game.StatusWon {
		t.Fatalf("Result = %+v, want seat one win", result.Result)
	}
}

func TestExecuteFlagsTamperedState(t *testing.T) {
	rep := recordGame(t)
	move := rep.Events[1].Payload.(MovePayload)
	move.StateAfter = []byte(`{"remaining":99,"next":"p2"}`)
	rep.Events[1].Payload = move

	engine := NewEngine(testRegistry(t), Options{VerifyStates: true})
	result, err := engine.Execute(context.Background(), rep)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if result.Success {
		t.Fatal("tampered replay verified successfully")
	}
	found := false
	for _, issue := range result.Errors {
		if issue.Code == apperrors.CodeStateMismatch {
			found = true
		}
	}
	if !found {
		t.Fatalf("no STATE_MISMATCH issue in %+v", result.Errors)
	}
}

func TestExecuteWarnsOnAIMismatch(t *testing.T) {
	rep := recordGame(t)
	// Rewrite the AI move to one the engine would never choose. Taking 2
	// is still legal, so it surfaces as a warning, not an error.
	move := rep.Events[2].Payload.(MovePayload)
	move.Move = "2"
	move.StateAfter = nil
	rep.Events[2].Payload = move
	end := rep.Events[4].Payload.(GameEndPayload)
	end.State = nil
	rep.Events[4].Payload = end

	engine := NewEngine(testRegistry(t), Options{VerifyAIMoves: true})
	result, err := engine.Execute(context.Background(), rep)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("no warning for mismatched AI move")
	}
}

func TestExecuteRejectsIllegalRecordedMove(t *testing.T) {
	rep := recordGame(t)
	move := rep.Events[3].Payload.(MovePayload)
	move.Move = "9"
	rep.Events[3].Payload = move

	engine := NewEngine(testRegistry(t), Options{})
	result, err := engine.Execute(context.Background(), rep)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if result.Success {
		t.Fatal("replay with unparseable move verified successfully")
	}
}

func TestValidate(t *testing.T) {
	rep := recordGame(t)
	if err := Validate(rep); err != nil {
		t.Fatalf("Validate rejected clean replay: %v", err)
	}

	empty := rep
	empty.Events = nil
	if err := Validate(empty); err == nil {
		t.Fatal("Validate accepted an empty replay")
	}

	broken := recordGame(t)
	broken.Events[2].Seq = 7
	if err := Validate(broken); err == nil {
		t.Fatal("Validate accepted a sequence gap")
	}
}

func TestVerifyDeterminism(t *testing.T) {
	engine := NewEngine(testRegistry(t), Options{})
	ok, err := engine.VerifyDeterminism(context.Background(), recordGame(t))
	if err != nil {
		t.Fatalf("VerifyDeterminism error: %v", err)
	}
	if !ok {
		t.Fatal("deterministic replay reported divergent")
	}
}
