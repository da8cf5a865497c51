package replay

import (
	"testing"
	"time"

	"github.com/kibitz-games/kibitz/internal/game"
)

func testClock(start time.Time, step time.Duration) func() time.Time {
	calls := 0
	return func() time.Time {
		now := start.Add(time.Duration(calls) * step)
		calls++
		return now
	}
}

func newTestRecorder(clock func() time.Time) *Recorder {
	return NewRecorder(RecorderConfig{
		ReplayID:    "replay-1",
		ChallengeID: "tictactoe",
		GameID:      "session-1",
		Seed:        "seed-1",
		Options:     game.Options{Difficulty: "normal"},
		Clock:       clock,
	})
}

func TestRecorderAssignsSequentialSeqs(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := newTestRecorder(testClock(start, time.Second))

	r.RecordGameStart([]byte(`{"cells":[]}`))
	r.RecordPlayerMove(game.SeatOne, "4", []byte(`a`), []byte(`b`))
	r.RecordAIMove(game.SeatTwo, "0", []byte(`b`), []byte(`c`))

	events := r.Events()
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	for i, evt := range events {
		if evt.Seq != i {
			t.Fatalf("event %d has seq %d", i, evt.Seq)
		}
	}
	if events[2].ElapsedMS <= events[1].ElapsedMS {
		t.Fatalf("elapsed not increasing: %d then %d", events[1].ElapsedMS, events[2].ElapsedMS)
	}
}

func TestRecorderBuildMetadata(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := newTestRecorder(testClock(start, time.Second))

	r.RecordGameStart([]byte(`s0`))
	r.RecordPlayerMove(game.SeatOne, "4", []byte(`s0`), []byte(`s1`))
	r.RecordAIMove(game.SeatTwo, "0", []byte(`s1`), []byte(`s2`))
	r.RecordPlayerMove(game.SeatOne, "8", []byte(`s2`), []byte(`s3`))
	r.RecordGameEnd(game.Result{Status: game.StatusWon, Winner: game.SeatOne}, []byte(`s3`))

	result := game.Result{Status: game.StatusWon, Winner: game.SeatOne}
	rep, err := r.Build(&result)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if rep.ID != "replay-1" || rep.ChallengeID != "tictactoe" || rep.Seed != "seed-1" {
		t.Fatalf("replay identity = %s/%s/%s", rep.ID, rep.ChallengeID, rep.Seed)
	}
	if rep.Metadata.MoveCount != 3 {
		t.Fatalf("MoveCount = %d, want 3", rep.Metadata.MoveCount)
	}
	if rep.Metadata.PlayerMoveCount != 2 {
		t.Fatalf("PlayerMoveCount = %d, want 2", rep.Metadata.PlayerMoveCount)
	}
	if rep.Metadata.AIMoveCount != 1 {
		t.Fatalf("AIMoveCount = %d, want 1", rep.Metadata.AIMoveCount)
	}
	if rep.Result == nil || rep.Result.Status != game.StatusWon {
		t.Fatalf("Result = %+v", rep.Result)
	}
}

func TestRecorderBuildRequiresGameStart(t *testing.T) {
	r := newTestRecorder(nil)
	if _, err := r.Build(nil); err == nil {
		t.Fatal("Build accepted an empty recording")
	}

	r.RecordPlayerMove(game.SeatOne, "4", nil, nil)
	if _, err := r.Build(nil); err == nil {
		t.Fatal("Build accepted a recording without game_start")
	}
}

func TestResumeRecorderContinuesSequence(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := newTestRecorder(testClock(start, time.Second))
	r.RecordGameStart([]byte(`s0`))
	r.RecordPlayerMove(game.SeatOne, "4", []byte(`s0`), []byte(`s1`))

	resumed := ResumeRecorder(RecorderConfig{
		ReplayID:    "replay-1",
		ChallengeID: "tictactoe",
		GameID:      "session-1",
		Seed:        "seed-1",
		Clock:       testClock(start.Add(time.Minute), time.Second),
	}, r.Events())
	resumed.RecordPlayerMove(game.SeatOne, "8", []byte(`s1`), []byte(`s2`))

	events := resumed.Events()
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[2].Seq != 2 {
		t.Fatalf("resumed event seq = %d, want 2", events[2].Seq)
	}
	if events[2].ElapsedMS < events[1].ElapsedMS {
		t.Fatalf("elapsed went backwards: %d then %d", events[1].ElapsedMS, events[2].ElapsedMS)
	}
}
