package room

import "context"

// SeatState tracks one seat's credentials inside a room.
type SeatState struct {
	// Nonce is the single-use-issued seat credential. Presenting it is how
	// a caller proves it controls the seat.
	Nonce string `json:"nonce"`
	// Claimed reports whether a player holds the seat.
	Claimed bool `json:"claimed"`
	// Identity is the locked display name, empty until identification.
	Identity string `json:"identity,omitempty"`
	// IdentityLocked is set after the first successful identification;
	// further attempts are rejected.
	IdentityLocked bool `json:"identity_locked"`
}

// Record is the persisted room bookkeeping kept alongside the session:
// seat credentials and the domain event sequence counter. It lets a room
// actor wake from storage after a process restart.
type Record struct {
	SessionID string `json:"session_id"`
	// ReplayID is the id the finished replay will be archived under.
	ReplayID  string `json:"replay_id"`
	TwoPlayer bool   `json:"two_player"`
	// Seats maps seat id ("p1", "p2") to its credential state.
	Seats map[string]*SeatState `json:"seats"`
	// NextSeq is the last assigned domain event sequence number.
	NextSeq uint64 `json:"next_seq"`
}

// StateStore persists room records write-through, so seat credentials and
// sequence counters survive restarts.
type StateStore interface {
	PutRoom(ctx context.Context, record Record) error
	GetRoom(ctx context.Context, sessionID string) (Record, error)
	DeleteRoom(ctx context.Context, sessionID string) error
}
