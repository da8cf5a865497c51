// Package storage defines the persistence interfaces the runtime depends
// on. Driver implementations live in subpackages.
package storage

import (
	"context"
	"errors"

	"github.com/kibitz-games/kibitz/internal/achievement"
	"github.com/kibitz-games/kibitz/internal/replay"
	"github.com/kibitz-games/kibitz/internal/session/domain"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// SessionStore persists live session records.
type SessionStore interface {
	PutSession(ctx context.Context, session domain.Session) error
	GetSession(ctx context.Context, id string) (domain.Session, error)
	DeleteSession(ctx context.Context, id string) error
	// ListSessions returns all stored sessions, unordered.
	ListSessions(ctx context.Context) ([]domain.Session, error)
}

// ReplayStore archives completed replays and earned achievements. This is a
// separate retention domain from live sessions: archived replays outlive
// session expiry.
type ReplayStore interface {
	PutReplay(ctx context.Context, r replay.Replay) error
	GetReplay(ctx context.Context, id string) (replay.Replay, error)
	// ListReplays returns replay ids for a challenge, newest first.
	ListReplays(ctx context.Context, challengeID string, limit int) ([]string, error)
	PutEarned(ctx context.Context, replayID string, earned []achievement.Earned) error
	ListEarned(ctx context.Context, replayID string) ([]achievement.Earned, error)
}
