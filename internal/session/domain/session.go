// Package domain defines the session record owned by the lifecycle manager.
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kibitz-games/kibitz/internal/id"
	"github.com/kibitz-games/kibitz/internal/replay"
)

// Status describes the lifecycle state of a session.
type Status string

const (
	// StatusActive indicates the session is in play.
	StatusActive Status = "active"
	// StatusCompleted indicates the game finished normally.
	StatusCompleted Status = "completed"
	// StatusExpired indicates the session timed out by inactivity.
	StatusExpired Status = "expired"
	// StatusError indicates the session was aborted by a fatal error.
	StatusError Status = "error"
)

// DefaultTimeout is the inactivity window after which a session expires.
const DefaultTimeout = time.Hour

// Session is the authoritative record of one game in flight. It is owned by
// the lifecycle manager and mutated only through its update operation.
type Session struct {
	ID          string `json:"id"`
	ChallengeID string `json:"challenge_id"`
	Difficulty  string `json:"difficulty,omitempty"`
	Seed        string `json:"seed"`
	Status      Status `json:"status"`
	// State is the engine-serialized current game state, opaque here.
	State     json.RawMessage `json:"state,omitempty"`
	MoveCount int             `json:"move_count"`
	// Events is the append-only recorded event list for the session.
	Events         []replay.Event `json:"events,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	LastActivityAt time.Time      `json:"last_activity_at"`
}

// ExpiredAt reports whether the session's inactivity exceeds timeout at now.
func (s Session) ExpiredAt(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastActivityAt) > timeout
}

// CreateSessionInput describes the data needed to create a session.
type CreateSessionInput struct {
	ChallengeID  string
	Difficulty   string
	Seed         string
	InitialState json.RawMessage
}

// CreateSession creates a new active session with a generated ID and
// timestamps. An empty seed is replaced with a generated one so every
// session is replayable.
func CreateSession(input CreateSessionInput, now func() time.Time, idGenerator func() (string, error)) (Session, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	input.ChallengeID = strings.TrimSpace(input.ChallengeID)
	if input.ChallengeID == "" {
		return Session{}, fmt.Errorf("challenge id is required")
	}

	sessionID, err := idGenerator()
	if err != nil {
		return Session{}, fmt.Errorf("generate session id: %w", err)
	}

	seed := strings.TrimSpace(input.Seed)
	if seed == "" {
		if seed, err = idGenerator(); err != nil {
			return Session{}, fmt.Errorf("generate seed: %w", err)
		}
	}

	createdAt := now().UTC()
	return Session{
		ID:             sessionID,
		ChallengeID:    input.ChallengeID,
		Difficulty:     strings.TrimSpace(input.Difficulty),
		Seed:           seed,
		Status:         StatusActive,
		State:          input.InitialState,
		CreatedAt:      createdAt,
		LastActivityAt: createdAt,
	}, nil
}

// Patch describes a partial session update. Nil fields are left unchanged.
type Patch struct {
	State        json.RawMessage
	MoveCount    *int
	Status       *Status
	AppendEvents []replay.Event
}

// IsRecompletion reports whether the patch only re-asserts completed status.
func (p Patch) IsRecompletion() bool {
	return p.Status != nil && *p.Status == StatusCompleted &&
		p.State == nil && p.MoveCount == nil && len(p.AppendEvents) == 0
}
