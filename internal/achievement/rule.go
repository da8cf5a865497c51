// Package achievement evaluates composable boolean rules over finished
// replays and derives earned achievements with point totals.
package achievement

import (
	"fmt"
	"strings"

	"github.com/kibitz-games/kibitz/internal/game"
	"github.com/kibitz-games/kibitz/internal/replay"
)

// Rarity grades an achievement.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// rank orders rarities for the earned-list sort; higher is rarer.
func (r Rarity) rank() int {
	switch r {
	case RarityLegendary:
		return 4
	case RarityEpic:
		return 3
	case RarityRare:
		return 2
	case RarityUncommon:
		return 1
	default:
		return 0
	}
}

// Context is the evaluation input: the game result, the full replay, and
// stats derived once per evaluation.
type Context struct {
	Result *game.Result
	Replay replay.Replay
	Stats  Stats
}

// Rule is a first-class boolean predicate over a finished game.
type Rule interface {
	// Describe returns a human-readable description of the condition.
	Describe() string
	// Evaluate reports whether the condition holds.
	Evaluate(ctx Context) (bool, error)
}

type funcRule struct {
	desc string
	fn   func(ctx Context) (bool, error)
}

func (r funcRule) Describe() string                   { return r.desc }
func (r funcRule) Evaluate(ctx Context) (bool, error) { return r.fn(ctx) }

// NewRule creates a rule from a description and a predicate.
func NewRule(description string, fn func(ctx Context) (bool, error)) Rule {
	return funcRule{desc: description, fn: fn}
}

// And passes when every rule passes.
func And(rules ...Rule) Rule {
	return funcRule{
		desc: joinDescriptions(rules, " and "),
		fn: func(ctx Context) (bool, error) {
			for _, rule := range rules {
				ok, err := rule.Evaluate(ctx)
				if err != nil {
					return false, err
				}
				if !ok {
					return false, nil
				}
			}
			return true, nil
		},
	}
}

// Or passes when any rule passes.
func Or(rules ...Rule) Rule {
	return funcRule{
		desc: joinDescriptions(rules, " or "),
		fn: func(ctx Context) (bool, error) {
			for _, rule := range rules {
				ok, err := rule.Evaluate(ctx)
				if err != nil {
					return false, err
				}
				if ok {
					return true, nil
				}
			}
			return false, nil
		},
	}
}

// Not inverts a rule.
func Not(rule Rule) Rule {
	return funcRule{
		desc: fmt.Sprintf("not (%s)", rule.Describe()),
		fn: func(ctx Context) (bool, error) {
			ok, err := rule.Evaluate(ctx)
			if err != nil {
				return false, err
			}
			return !ok, nil
		},
	}
}

func joinDescriptions(rules []Rule, sep string) string {
	parts := make([]string, 0, len(rules))
	for _, rule := range rules {
		parts = append(parts, "("+rule.Describe()+")")
	}
	return strings.Join(parts, sep)
}
