// Package sqlite provides the SQLite-backed archive for completed replays
// and earned achievements. Archived records outlive session expiry.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/kibitz-games/kibitz/internal/achievement"
	"github.com/kibitz-games/kibitz/internal/platform/storage/sqlitemigrate"
	"github.com/kibitz-games/kibitz/internal/replay"
	"github.com/kibitz-games/kibitz/internal/storage"
	"github.com/kibitz-games/kibitz/internal/storage/sqlite/migrations"
)

// Store provides SQLite-backed replay archival.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a replay archive store and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// PutReplay archives a completed replay.
func (s *Store) PutReplay(ctx context.Context, r replay.Replay) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("replay id is required")
	}

	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal replay: %w", err)
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO replays (id, challenge_id, game_id, user_id, completed_at, payload)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET payload = excluded.payload
`,
		r.ID,
		r.ChallengeID,
		r.GameID,
		r.UserID,
		r.Metadata.CompletedAt.UTC().UnixMilli(),
		payload,
	)
	if err != nil {
		return fmt.Errorf("insert replay: %w", err)
	}
	return nil
}

// GetReplay fetches an archived replay by id.
func (s *Store) GetReplay(ctx context.Context, id string) (replay.Replay, error) {
	if err := ctx.Err(); err != nil {
		return replay.Replay{}, err
	}
	if s == nil || s.sqlDB == nil {
		return replay.Replay{}, fmt.Errorf("storage is not configured")
	}

	var payload []byte
	row := s.sqlDB.QueryRowContext(ctx, "SELECT payload FROM replays WHERE id = ?", id)
	if err := row.Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return replay.Replay{}, storage.ErrNotFound
		}
		return replay.Replay{}, fmt.Errorf("query replay: %w", err)
	}

	var r replay.Replay
	if err := json.Unmarshal(payload, &r); err != nil {
		return replay.Replay{}, fmt.Errorf("unmarshal replay: %w", err)
	}
	return r, nil
}

// ListReplays returns replay ids for a challenge, newest first.
func (s *Store) ListReplays(ctx context.Context, challengeID string, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id FROM replays WHERE challenge_id = ? ORDER BY completed_at DESC LIMIT ?
`, challengeID, limit)
	if err != nil {
		return nil, fmt.Errorf("query replays: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan replay id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate replays: %w", err)
	}
	return ids, nil
}

// PutEarned records the achievements earned by a replay.
func (s *Store) PutEarned(ctx context.Context, replayID string, earned []achievement.Earned) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(replayID) == "" {
		return fmt.Errorf("replay id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin earned transaction: %w", err)
	}
	for _, e := range earned {
		hidden := 0
		if e.Hidden {
			hidden = 1
		}
		if _, err := tx.ExecContext(ctx, `
INSERT OR REPLACE INTO earned_achievements
    (replay_id, achievement_id, name, description, rarity, points, hidden)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, replayID, e.ID, e.Name, e.Description, string(e.Rarity), e.Points, hidden); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert earned achievement %s: %w", e.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit earned achievements: %w", err)
	}
	return nil
}

// ListEarned returns the achievements recorded for a replay, rarest first.
func (s *Store) ListEarned(ctx context.Context, replayID string) ([]achievement.Earned, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT achievement_id, name, description, rarity, points, hidden
FROM earned_achievements
WHERE replay_id = ?
ORDER BY points DESC, achievement_id
`, replayID)
	if err != nil {
		return nil, fmt.Errorf("query earned achievements: %w", err)
	}
	defer rows.Close()

	var earned []achievement.Earned
	for rows.Next() {
		var e achievement.Earned
		var rarity string
		var hidden int
		if err := rows.Scan(&e.ID, &e.Name, &e.Description, &rarity, &e.Points, &hidden); err != nil {
			return nil, fmt.Errorf("scan earned achievement: %w", err)
		}
		e.Rarity = achievement.Rarity(rarity)
		e.Hidden = hidden == 1
		earned = append(earned, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate earned achievements: %w", err)
	}
	return earned, nil
}
