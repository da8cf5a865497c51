package tictactoe

import (
	"time"

	"github.com/kibitz-games/kibitz/internal/achievement"
)

var corners = map[string]bool{"0": true, "2": true, "6": true, "8": true}

// Achievements returns the achievement definitions for tic-tac-toe.
func Achievements() ([]achievement.Definition, error) {
	builders := []achievement.Builder{
		achievement.New("ttt_first_win").
			Name("First Blood").
			Describe("Win a game of tic-tac-toe").
			Rarity(achievement.RarityCommon).
			Points(10).
			Require(achievement.Won()),
		achievement.New("ttt_perfect_win").
			Name("Hat Trick").
			Describe("Win with only three moves").
			Rarity(achievement.RarityRare).
			Points(50).
			Require(achievement.WonInMoves(3)),
		achievement.New("ttt_center_opening").
			Name("Center Stage").
			Describe("Open in the center square and win").
			Rarity(achievement.RarityUncommon).
			Points(25).
			Require(
				achievement.Won(),
				achievement.FirstMove("open in the center square", func(move achievement.MoveInfo) bool {
					return move.Move == "4"
				}),
			),
		achievement.New("ttt_flawless").
			Name("Flawless").
			Describe("Win without a single rejected move").
			Rarity(achievement.RarityUncommon).
			Points(25).
			Require(achievement.Won(), achievement.Flawless()),
		achievement.New("ttt_stalemate").
			Name("Stonewall").
			Describe("Hold the AI to a draw").
			Rarity(achievement.RarityCommon).
			Points(15).
			Require(achievement.Draw()),
		achievement.New("ttt_corners").
			Name("Cornered").
			Describe("Win playing only corner squares").
			Rarity(achievement.RarityEpic).
			Points(75).
			Hidden().
			Require(
				achievement.Won(),
				achievement.AllMoves("play only corner squares", func(move achievement.MoveInfo) bool {
					return corners[move.Move]
				}),
			),
		achievement.New("ttt_speedrun").
			Name("Speedrun").
			Describe("Win with every move under two seconds").
			Rarity(achievement.RarityEpic).
			Points(75).
			Require(achievement.Won(), achievement.EveryMoveFasterThan(2*time.Second)),
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
