package achievement

import (
	"fmt"
	"time"

	"github.com/kibitz-games/kibitz/internal/game"
	"github.com/kibitz-games/kibitz/internal/replay"
)

// Won passes when the player won.
func Won() Rule {
	return NewRule("player won", func(ctx Context) (bool, error) {
		return ctx.Result != nil && ctx.Result.Status == game.StatusWon, nil
	})
}

// Lost passes when the player lost.
func Lost() Rule {
	return NewRule("player lost", func(ctx Context) (bool, error) {
		return ctx.Result != nil && ctx.Result.Status == game.StatusLost, nil
	})
}

// Draw passes when the game was drawn.
func Draw() Rule {
	return NewRule("game drawn", func(ctx Context) (bool, error) {
		return ctx.Result != nil && ctx.Result.Status == game.StatusDraw, nil
	})
}

// WonInMoves passes when the player won using at most n player moves.
func WonInMoves(n int) Rule {
	return NewRule(fmt.Sprintf("won in at most %d moves", n), func(ctx Context) (bool, error) {
		if ctx.Result == nil || ctx.Result.Status != game.StatusWon {
			return false, nil
		}
		return ctx.Stats.PlayerMoves <= n, nil
	})
}

// PlayerMovesAtLeast passes when the player made at least n moves.
func PlayerMovesAtLeast(n int) Rule {
	return NewRule(fmt.Sprintf("at least %d player moves", n), func(ctx Context) (bool, error) {
		return ctx.Stats.PlayerMoves >= n, nil
	})
}

// TotalMovesAtMost passes when the game took at most n moves overall.
func TotalMovesAtMost(n int) Rule {
	return NewRule(fmt.Sprintf("at most %d total moves", n), func(ctx Context) (bool, error) {
		return ctx.Stats.TotalMoves <= n, nil
	})
}

// FasterThan passes when the whole game finished within d.
func FasterThan(d time.Duration) Rule {
	return NewRule(fmt.Sprintf("finished within %s", d), func(ctx Context) (bool, error) {
		return ctx.Stats.Duration > 0 && ctx.Stats.Duration < d, nil
	})
}

// EveryMoveFasterThan passes when every inter-move gap is below d.
func EveryMoveFasterThan(d time.Duration) Rule {
	return NewRule(fmt.Sprintf("every move within %s", d), func(ctx Context) (bool, error) {
		if ctx.Stats.PlayerMoves < 2 {
			return false, nil
		}
		return ctx.Stats.SlowestMoveGap < d, nil
	})
}

// Flawless passes when the player recorded no undos and no errors.
func Flawless() Rule {
	return NewRule("no undos and no errors", func(ctx Context) (bool, error) {
		return ctx.Stats.Undos == 0 && ctx.Stats.Errors == 0, nil
	})
}

// MistakesAtMost passes when undos plus errors total at most n.
func MistakesAtMost(n int) Rule {
	return NewRule(fmt.Sprintf("at most %d mistakes", n), func(ctx Context) (bool, error) {
		return ctx.Stats.Undos+ctx.Stats.Errors <= n, nil
	})
}

// MoveInfo describes one player move for positional predicates.
type MoveInfo struct {
	// Index is the 0-based position within the player move sequence.
	Index int
	Move  string
	Seat  game.Seat
}

// MovePredicate tests one player move.
type MovePredicate func(move MoveInfo) bool

func playerMoves(r replay.Replay) []MoveInfo {
	var moves []MoveInfo
	for _, evt := range r.Events {
		if evt.Type != replay.EventPlayerMove {
			continue
		}
		payload, ok := evt.Payload.(replay.MovePayload)
		if !ok {
			continue
		}
		moves = append(moves, MoveInfo{Index: len(moves), Move: payload.Move, Seat: payload.Seat})
	}
	return moves
}

// FirstMove passes when the first player move satisfies the predicate.
func FirstMove(description string, pred MovePredicate) Rule {
	return NewRule("first move "+description, func(ctx Context) (bool, error) {
		moves := playerMoves(ctx.Replay)
		return len(moves) > 0 && pred(moves[0]), nil
	})
}

// LastMove passes when the final player move satisfies the predicate.
func LastMove(description string, pred MovePredicate) Rule {
	return NewRule("last move "+description, func(ctx Context) (bool, error) {
		moves := playerMoves(ctx.Replay)
		return len(moves) > 0 && pred(moves[len(moves)-1]), nil
	})
}

// AnyMove passes when at least one player move satisfies the predicate.
func AnyMove(description string, pred MovePredicate) Rule {
	return NewRule("any move "+description, func(ctx Context) (bool, error) {
		for _, move := range playerMoves(ctx.Replay) {
			if pred(move) {
				return true, nil
			}
		}
		return false, nil
	})
}

// AllMoves passes when every player move satisfies the predicate.
func AllMoves(description string, pred MovePredicate) Rule {
	return NewRule("all moves "+description, func(ctx Context) (bool, error) {
		moves := playerMoves(ctx.Replay)
		if len(moves) == 0 {
			return false, nil
		}
		for _, move := range moves {
			if !pred(move) {
				return false, nil
			}
		}
		return true, nil
	})
}

// ConsecutiveMoves passes when n player moves in a row satisfy the predicate.
func ConsecutiveMoves(n int, description string, pred MovePredicate) Rule {
	return NewRule(fmt.Sprintf("%d consecutive moves %s", n, description), func(ctx Context) (bool, error) {
		if n <= 0 {
			return false, fmt.Errorf("consecutive move count must be positive, got %d", n)
		}
		run := 0
		for _, move := range playerMoves(ctx.Replay) {
			if pred(move) {
				run++
				if run >= n {
					return true, nil
				}
			} else {
				run = 0
			}
		}
		return false, nil
	})
}
