// Package service implements the session lifecycle manager.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kibitz-games/kibitz/internal/id"
	apperrors "github.com/kibitz-games/kibitz/internal/platform/errors"
	"github.com/kibitz-games/kibitz/internal/platform/log"
	"github.com/kibitz-games/kibitz/internal/session/domain"
	"github.com/kibitz-games/kibitz/internal/storage"
)

// Config configures a Manager.
type Config struct {
	Store storage.SessionStore
	// Timeout is the inactivity window before expiry; defaults to
	// domain.DefaultTimeout.
	Timeout time.Duration
	// Clock and IDGenerator override defaults in tests.
	Clock       func() time.Time
	IDGenerator func() (string, error)
}

// Manager owns the catalog of in-flight sessions. It is the single source
// of truth for session state: callers read-modify-write through it and
// never cache states themselves. Mutating operations are serialized so no
// two concurrent callers observe different current states for one id.
type Manager struct {
	mu      sync.Mutex
	store   storage.SessionStore
	timeout time.Duration
	clock   func() time.Time
	idGen   func() (string, error)
	logger  zerolog.Logger
}

// NewManager creates a session lifecycle manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = domain.DefaultTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.IDGenerator == nil {
		cfg.IDGenerator = id.NewID
	}
	return &Manager{
		store:   cfg.Store,
		timeout: cfg.Timeout,
		clock:   cfg.Clock,
		idGen:   cfg.IDGenerator,
		logger:  log.WithComponent("session"),
	}, nil
}

// Create creates and persists a new active session.
func (m *Manager) Create(ctx context.Context, input domain.CreateSessionInput) (domain.Session, error) {
	session, err := domain.CreateSession(input, m.clock, m.idGen)
	if err != nil {
		return domain.Session{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.PutSession(ctx, session); err != nil {
		return domain.Session{}, fmt.Errorf("persist session: %w", err)
	}
	m.logger.Info().Str("session_id", session.ID).Str("challenge", session.ChallengeID).Msg("session created")
	return session, nil
}

// Get fetches a session, lazily expiring it when inactivity exceeds the
// timeout. A successful read refreshes the activity timestamp.
func (m *Manager) Get(ctx context.Context, sessionID string) (domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(ctx, sessionID)
}

func (m *Manager) getLocked(ctx context.Context, sessionID string) (domain.Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.Session{}, apperrors.New(apperrors.CodeSessionNotFound, "session id is required")
	}

	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Session{}, apperrors.New(apperrors.CodeSessionNotFound,
				fmt.Sprintf("session %s not found", sessionID))
		}
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}

	now := m.clock().UTC()
	if session.Status == domain.StatusActive && session.ExpiredAt(now, m.timeout) {
		session.Status = domain.StatusExpired
		if err := m.store.PutSession(ctx, session); err != nil {
			return domain.Session{}, fmt.Errorf("mark session expired: %w", err)
		}
		m.logger.Info().Str("session_id", session.ID).Msg("session lazily expired")
	}
	if session.Status == domain.StatusExpired {
		return domain.Session{}, apperrors.New(apperrors.CodeSessionExpired,
			fmt.Sprintf("session %s expired", sessionID))
	}

	if session.Status == domain.StatusActive {
		session.LastActivityAt = now
		if err := m.store.PutSession(ctx, session); err != nil {
			return domain.Session{}, fmt.Errorf("refresh session activity: %w", err)
		}
	}
	return session, nil
}

// Update applies a partial update through a read-modify-write. Updating a
// completed session fails with SESSION_ALREADY_COMPLETED unless the patch
// is a no-op re-completion; the stored state is unchanged on rejection.
func (m *Manager) Update(ctx context.Context, sessionID string, patch domain.Patch) (domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.getCurrent(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}

	if session.Status == domain.StatusCompleted {
		if patch.IsRecompletion() {
			return session, nil
		}
		return domain.Session{}, apperrors.New(apperrors.CodeSessionAlreadyComplete,
			fmt.Sprintf("session %s is already completed", sessionID))
	}
	if session.Status == domain.StatusExpired {
		return domain.Session{}, apperrors.New(apperrors.CodeSessionExpired,
			fmt.Sprintf("session %s expired", sessionID))
	}

	if patch.State != nil {
		session.State = patch.State
	}
	if patch.MoveCount != nil {
		session.MoveCount = *patch.MoveCount
	}
	if len(patch.AppendEvents) > 0 {
		session.Events = append(session.Events, patch.AppendEvents...)
	}
	if patch.Status != nil {
		session.Status = *patch.Status
	}
	session.LastActivityAt = m.clock().UTC()

	if err := m.store.PutSession(ctx, session); err != nil {
		return domain.Session{}, fmt.Errorf("persist session update: %w", err)
	}
	return session, nil
}

// getCurrent reads the raw stored session without refreshing activity, but
// still applies lazy expiry marking.
func (m *Manager) getCurrent(ctx context.Context, sessionID string) (domain.Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.Session{}, apperrors.New(apperrors.CodeSessionNotFound, "session id is required")
	}
	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Session{}, apperrors.New(apperrors.CodeSessionNotFound,
				fmt.Sprintf("session %s not found", sessionID))
		}
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	if session.Status == domain.StatusActive && session.ExpiredAt(m.clock().UTC(), m.timeout) {
		session.Status = domain.StatusExpired
		if err := m.store.PutSession(ctx, session); err != nil {
			return domain.Session{}, fmt.Errorf("mark session expired: %w", err)
		}
	}
	return session, nil
}

// Complete marks a session completed. Completing an already-completed
// session is a no-op.
func (m *Manager) Complete(ctx context.Context, sessionID string) (domain.Session, error) {
	status := domain.StatusCompleted
	return m.Update(ctx, sessionID, domain.Patch{Status: &status})
}

// Delete removes a session and reports whether it existed.
func (m *Manager) Delete(ctx context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.store.DeleteSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("delete session: %w", err)
	}
	return true, nil
}

// QueryFilter selects sessions in Query.
type QueryFilter struct {
	ChallengeID string
	Status      domain.Status
}

// Query returns the sessions matching the filter, unordered.
func (m *Manager) Query(ctx context.Context, filter QueryFilter) ([]domain.Session, error) {
	sessions, err := m.store.ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	var out []domain.Session
	for _, s := range sessions {
		if filter.ChallengeID != "" && s.ChallengeID != filter.ChallengeID {
			continue
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// Cleanup sweeps sessions whose inactivity exceeds the timeout out of the
// store, regardless of status, and returns the number removed. Completed
// games survive in the replay archive, so nothing pins the session record.
func (m *Manager) Cleanup(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions, err := m.store.ListSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}

	now := m.clock().UTC()
	removed := 0
	for _, s := range sessions {
		if !s.ExpiredAt(now, m.timeout) {
			continue
		}
		if err := m.store.DeleteSession(ctx, s.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return removed, fmt.Errorf("delete expired session %s: %w", s.ID, err)
		}
		removed++
	}
	if removed > 0 {
		m.logger.Info().Int("removed", removed).Msg("expired sessions cleaned up")
	}
	return removed, nil
}

// Timeout returns the configured inactivity window.
func (m *Manager) Timeout() time.Duration {
	return m.timeout
}
