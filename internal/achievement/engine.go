package achievement

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kibitz-games/kibitz/internal/game"
	"github.com/kibitz-games/kibitz/internal/replay"
)

// Registry holds achievement definitions per challenge. Definitions are
// registered at startup and immutable thereafter.
type Registry struct {
	mu          sync.RWMutex
	byChallenge map[string][]Definition
}

// NewRegistry creates an empty achievement registry.
func NewRegistry() *Registry {
	return &Registry{byChallenge: make(map[string][]Definition)}
}

// Register adds definitions for a challenge.
func (r *Registry) Register(challengeID string, defs ...Definition) error {
	if challengeID == "" {
		return fmt.Errorf("challenge id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing := map[string]bool{}
	for _, def := range r.byChallenge[challengeID] {
		existing[def.ID] = true
	}
	for _, def := range defs {
		if existing[def.ID] {
			return fmt.Errorf("achievement %q is already registered for %s", def.ID, challengeID)
		}
		existing[def.ID] = true
	}
	r.byChallenge[challengeID] = append(r.byChallenge[challengeID], defs...)
	return nil
}

// Definitions returns the registered definitions for a challenge.
func (r *Registry) Definitions(challengeID string) []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := r.byChallenge[challengeID]
	out := make([]Definition, len(defs))
	copy(out, defs)
	return out
}

// Earned is one awarded achievement.
type Earned struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Rarity      Rarity `json:"rarity"`
	Points      int    `json:"points"`
	Hidden      bool   `json:"hidden,omitempty"`
}

// Failure reports a rule whose evaluation errored; the achievement is
// treated as not earned rather than aborting the whole evaluation.
type Failure struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// Evaluation is the outcome of evaluating a replay against a challenge's
// registered achievements.
type Evaluation struct {
	Earned      []Earned  `json:"earned"`
	Failed      []Failure `json:"failed,omitempty"`
	TotalPoints int       `json:"total_points"`
	// ReplayWarnings carries warnings (such as AI-move mismatches) from the
	// replay execution that produced the input; earned achievements remain
	// valid but callers can flag them.
	ReplayWarnings []replay.Issue `json:"replay_warnings,omitempty"`
}

// Engine evaluates registered achievements over finished replays.
type Engine struct {
	registry *Registry
}

// NewEngine creates an achievement evaluation engine.
func NewEngine(registry *Registry) *Engine {
	return &Engine{registry: registry}
}

// Evaluate derives stats once, evaluates every registered achievement for
// the challenge, and returns the earned set sorted rarity-first then by
// descending points. Evaluation is idempotent: the same inputs produce the
// same earned list in the same order.
func (e *Engine) Evaluate(challengeID string, result *game.Result, rep replay.Replay) Evaluation {
	ctx := Context{
		Result: result,
		Replay: rep,
		Stats:  ComputeStats(rep),
	}

	evaluation := Evaluation{}
	for _, def := range e.registry.Definitions(challengeID) {
		ok, err := evaluateIsolated(def, ctx)
		if err != nil {
			evaluation.Failed = append(evaluation.Failed, Failure{ID: def.ID, Message: err.Error()})
			continue
		}
		if !ok {
			continue
		}
		evaluation.Earned = append(evaluation.Earned, Earned{
			ID:          def.ID,
			Name:        def.Name,
			Description: def.Description,
			Rarity:      def.Rarity,
			Points:      def.Points,
			Hidden:      def.Hidden,
		})
		evaluation.TotalPoints += def.Points
	}

	sort.SliceStable(evaluation.Earned, func(i, j int) bool {
		a, b := evaluation.Earned[i], evaluation.Earned[j]
		if a.Rarity.rank() != b.Rarity.rank() {
			return a.Rarity.rank() > b.Rarity.rank()
		}
		return a.Points > b.Points
	})

	return evaluation
}

// evaluateIsolated contains a single rule's evaluation so one broken rule
// cannot block the others.
func evaluateIsolated(def Definition, ctx Context) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = fmt.Errorf("rule panicked: %v", r)
		}
	}()
	return def.rule.Evaluate(ctx)
}
