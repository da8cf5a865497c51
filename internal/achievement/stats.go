package achievement

import (
	"time"

	"github.com/kibitz-games/kibitz/internal/replay"
)

// Stats is derived once per evaluation from a replay's event stream.
type Stats struct {
	TotalMoves  int
	PlayerMoves int
	AIMoves     int
	Duration    time.Duration
	// Move gaps are the intervals between successive player moves; they
	// are zero when fewer than two player moves exist.
	AverageMoveGap time.Duration
	FastestMoveGap time.Duration
	SlowestMoveGap time.Duration
	Undos          int
	Errors         int
}

// ComputeStats derives game stats from a replay.
func ComputeStats(r replay.Replay) Stats {
	stats := Stats{
		Duration: time.Duration(r.Metadata.DurationMS) * time.Millisecond,
	}

	var playerMoveTimes []int64
	for _, evt := range r.Events {
		switch evt.Type {
		case replay.EventPlayerMove:
			stats.PlayerMoves++
			playerMoveTimes = append(playerMoveTimes, evt.ElapsedMS)
		case replay.EventAIMove:
			stats.AIMoves++
		case replay.EventUndo:
			stats.Undos++
		case replay.EventError:
			stats.Errors++
		}
	}
	stats.TotalMoves = stats.PlayerMoves + stats.AIMoves

	if len(playerMoveTimes) > 1 {
		var total int64
		var fastest, slowest int64
		for i := 1; i < len(playerMoveTimes); i++ {
			gap := playerMoveTimes[i] - playerMoveTimes[i-1]
			total += gap
			if i == 1 || gap < fastest {
				fastest = gap
			}
			if i == 1 || gap > slowest {
				slowest = gap
			}
		}
		gaps := int64(len(playerMoveTimes) - 1)
		stats.AverageMoveGap = time.Duration(total/gaps) * time.Millisecond
		stats.FastestMoveGap = time.Duration(fastest) * time.Millisecond
		stats.SlowestMoveGap = time.Duration(slowest) * time.Millisecond
	}

	return stats
}
