package achievement

import "fmt"

// Definition is an immutable registered achievement.
type Definition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Rarity      Rarity `json:"rarity"`
	Points      int    `json:"points"`
	Hidden      bool   `json:"hidden,omitempty"`
	rule        Rule
}

// Rule returns the definition's composed rule.
func (d Definition) Rule() Rule {
	return d.rule
}

// Builder accumulates achievement configuration. It is a staged, immutable
// builder: every method returns a modified copy, and Build constructs the
// final definition in one step, failing fast when the id, name, or at least
// one rule is missing.
type Builder struct {
	id          string
	name        string
	description string
	rarity      Rarity
	points      int
	hidden      bool
	rules       []Rule
}

// New starts a builder for the given achievement id.
func New(id string) Builder {
	return Builder{id: id, rarity: RarityCommon}
}

// Name sets the display name.
func (b Builder) Name(name string) Builder {
	b.name = name
	return b
}

// Describe sets the description.
func (b Builder) Describe(description string) Builder {
	b.description = description
	return b
}

// Rarity sets the rarity grade.
func (b Builder) Rarity(rarity Rarity) Builder {
	b.rarity = rarity
	return b
}

// Points sets the point value.
func (b Builder) Points(points int) Builder {
	b.points = points
	return b
}

// Hidden marks the achievement as hidden until earned.
func (b Builder) Hidden() Builder {
	b.hidden = true
	return b
}

// Require adds rules; multiple rules are implicitly AND'd at build time.
func (b Builder) Require(rules ...Rule) Builder {
	combined := make([]Rule, 0, len(b.rules)+len(rules))
	combined = append(combined, b.rules...)
	combined = append(combined, rules...)
	b.rules = combined
	return b
}

// Build constructs the immutable definition.
func (b Builder) Build() (Definition, error) {
	if b.id == "" {
		return Definition{}, fmt.Errorf("achievement id is required")
	}
	if b.name == "" {
		return Definition{}, fmt.Errorf("achievement %q requires a name", b.id)
	}
	if len(b.rules) == 0 {
		return Definition{}, fmt.Errorf("achievement %q requires at least one rule", b.id)
	}

	rule := b.rules[0]
	if len(b.rules) > 1 {
		rule = And(b.rules...)
	}

	return Definition{
		ID:          b.id,
		Name:        b.name,
		Description: b.description,
		Rarity:      b.rarity,
		Points:      b.points,
		Hidden:      b.hidden,
		rule:        rule,
	}, nil
}
