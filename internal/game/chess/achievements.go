package chess

import (
	"time"

	"github.com/kibitz-games/kibitz/internal/achievement"
)

// Achievements returns the achievement definitions for chess.
func Achievements() ([]achievement.Definition, error) {
	builders := []achievement.Builder{
		achievement.New("chess_first_win").
			Name("First Blood").
			Describe("Win a game of chess").
			Rarity(achievement.RarityCommon).
			Points(10).
			Require(achievement.Won()),
		achievement.New("chess_checkmate").
			Name("Closing the Net").
			Describe("Win by checkmate").
			Rarity(achievement.RarityUncommon).
			Points(25).
			Require(achievement.NewRule("win by checkmate", func(ctx achievement.Context) (bool, error) {
				return ctx.Result != nil && ctx.Result.Reason == "checkmate", nil
			})),
		achievement.New("chess_scholars_mate").
			Name("Scholar").
			Describe("Checkmate within four of your moves").
			Rarity(achievement.RarityLegendary).
			Points(100).
			Require(achievement.WonInMoves(4)),
		achievement.New("chess_flawless").
			Name("Flawless").
			Describe("Win without a single rejected move").
			Rarity(achievement.RarityUncommon).
			Points(25).
			Require(achievement.Won(), achievement.Flawless()),
		achievement.New("chess_marathon").
			Name("Marathon").
			Describe("Play a game lasting forty of your moves or more").
			Rarity(achievement.RarityUncommon).
			Points(25).
			Require(achievement.PlayerMovesAtLeast(40)),
		achievement.New("chess_promotion").
			Name("Field Promotion").
			Describe("Promote a pawn").
			Rarity(achievement.RarityRare).
			Points(50).
			Require(achievement.AnyMove("promote a pawn", func(move achievement.MoveInfo) bool {
				return len(move.Move) == 5
			})),
		achievement.New("chess_blitz").
			Name("Blitz").
			Describe("Win with every move under five seconds").
			Rarity(achievement.RarityEpic).
			Points(75).
			Hidden().
			Require(achievement.Won(), achievement.EveryMoveFasterThan(5*time.Second)),
	}

	defs := make([]achievement.Definition, 0, len(builders))
	for _, b := range builders {
		def, err := b.Build()
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}
