// Package bbolt provides a BoltDB-backed store for live sessions and room
// records. Records are JSON-encoded into per-type buckets keyed by session
// id; every state-changing request writes through here.
package bbolt

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/kibitz-games/kibitz/internal/room"
	"github.com/kibitz-games/kibitz/internal/session/domain"
	"github.com/kibitz-games/kibitz/internal/storage"
)

const (
	sessionBucket = "session"
	roomBucket    = "room"
)

// Store provides a BoltDB-backed session and room store.
type Store struct {
	db *bbolt.DB
}

// Open opens a BoltDB-backed store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{sessionBucket, roomBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}

func (s *Store) put(ctx context.Context, bucketName, key string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("record key is required")
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s record: %w", bucketName, err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket == nil {
			return fmt.Errorf("%s bucket is missing", bucketName)
		}
		return bucket.Put([]byte(key), payload)
	})
}

func (s *Store) get(ctx context.Context, bucketName, key string, target any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("record key is required")
	}

	return s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket == nil {
			return fmt.Errorf("%s bucket is missing", bucketName)
		}
		payload := bucket.Get([]byte(key))
		if payload == nil {
			return storage.ErrNotFound
		}
		if err := json.Unmarshal(payload, target); err != nil {
			return fmt.Errorf("unmarshal %s record: %w", bucketName, err)
		}
		return nil
	})
}

func (s *Store) delete(ctx context.Context, bucketName, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket == nil {
			return fmt.Errorf("%s bucket is missing", bucketName)
		}
		if bucket.Get([]byte(key)) == nil {
			return storage.ErrNotFound
		}
		return bucket.Delete([]byte(key))
	})
}

// PutSession persists a session record.
func (s *Store) PutSession(ctx context.Context, session domain.Session) error {
	return s.put(ctx, sessionBucket, session.ID, session)
}

// GetSession fetches a session record by id.
func (s *Store) GetSession(ctx context.Context, id string) (domain.Session, error) {
	var session domain.Session
	if err := s.get(ctx, sessionBucket, id, &session); err != nil {
		return domain.Session{}, err
	}
	return session, nil
}

// DeleteSession removes a session record.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	return s.delete(ctx, sessionBucket, id)
}

// ListSessions returns all stored session records.
func (s *Store) ListSessions(ctx context.Context) ([]domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	var sessions []domain.Session
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionBucket))
		if bucket == nil {
			return fmt.Errorf("session bucket is missing")
		}
		return bucket.ForEach(func(_, payload []byte) error {
			var session domain.Session
			if err := json.Unmarshal(payload, &session); err != nil {
				return fmt.Errorf("unmarshal session record: %w", err)
			}
			sessions = append(sessions, session)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// PutRoom persists a room record.
func (s *Store) PutRoom(ctx context.Context, record room.Record) error {
	return s.put(ctx, roomBucket, record.SessionID, record)
}

// GetRoom fetches a room record by session id.
func (s *Store) GetRoom(ctx context.Context, sessionID string) (room.Record, error) {
	var record room.Record
	if err := s.get(ctx, roomBucket, sessionID, &record); err != nil {
		return room.Record{}, err
	}
	return record, nil
}

// DeleteRoom removes a room record.
func (s *Store) DeleteRoom(ctx context.Context, sessionID string) error {
	return s.delete(ctx, roomBucket, sessionID)
}
