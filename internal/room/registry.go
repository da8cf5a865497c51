package room

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/kibitz-games/kibitz/internal/event"
	"github.com/kibitz-games/kibitz/internal/game"
	apperrors "github.com/kibitz-games/kibitz/internal/platform/errors"
	"github.com/kibitz-games/kibitz/internal/platform/log"
	"github.com/kibitz-games/kibitz/internal/replay"
	"github.com/kibitz-games/kibitz/internal/session/domain"
	"github.com/kibitz-games/kibitz/internal/storage"
)

// Registry routes session ids to their room actors, creating new rooms and
// waking hibernated ones from storage on demand.
type Registry struct {
	cfg Config

	mu    sync.Mutex
	rooms map[string]*Room
}

// NewRegistry creates a room registry over cfg's shared dependencies.
func NewRegistry(cfg Config) *Registry {
	reg := &Registry{
		cfg:   cfg.withDefaults(),
		rooms: make(map[string]*Room),
	}
	reg.cfg.OnClose = reg.remove
	return reg
}

func (reg *Registry) remove(sessionID string) {
	reg.mu.Lock()
	delete(reg.rooms, sessionID)
	reg.mu.Unlock()
}

// CreateInput describes a new game request.
type CreateInput struct {
	ChallengeID string
	Difficulty  string
	// Seed is optional; a random seed is generated when empty.
	Seed      string
	TwoPlayer bool
}

// CreateReply carries the new session's id, the creator's seat credential,
// and the initial board.
type CreateReply struct {
	SessionID string
	Seat      game.Seat
	Nonce     string
	Seed      string
	Render    string
	Turn      game.Seat
}

// Create starts a new session: initializes the game, creates the session
// record, issues the creator's seat nonce, records the replay's start
// event, and spawns the room actor.
func (reg *Registry) Create(ctx context.Context, input CreateInput) (CreateReply, error) {
	challengeID := strings.TrimSpace(input.ChallengeID)
	engine, ok := reg.cfg.Games.Lookup(challengeID)
	if !ok {
		return CreateReply{}, apperrors.WithMetadata(apperrors.CodeUnknownGame, "no engine registered for challenge",
			map[string]string{"challenge_id": challengeID})
	}

	seed := strings.TrimSpace(input.Seed)
	if seed == "" {
		var err error
		if seed, err = reg.cfg.IDGenerator(); err != nil {
			return CreateReply{}, apperrors.Wrap(apperrors.CodeInternal, "generate seed", err)
		}
	}
	opts := game.Options{Difficulty: strings.TrimSpace(input.Difficulty), TwoPlayer: input.TwoPlayer}

	state, err := engine.NewGame(opts, seed)
	if err != nil {
		return CreateReply{}, apperrors.Wrap(apperrors.CodeInternal, "initialize game", err)
	}
	initial, err := engine.Serialize(state)
	if err != nil {
		return CreateReply{}, apperrors.Wrap(apperrors.CodeInternal, "serialize initial state", err)
	}

	sess, err := reg.cfg.Sessions.Create(ctx, domain.CreateSessionInput{
		ChallengeID:  challengeID,
		Difficulty:   opts.Difficulty,
		Seed:         seed,
		InitialState: initial,
	})
	if err != nil {
		return CreateReply{}, err
	}

	nonce, err := reg.cfg.IDGenerator()
	if err != nil {
		return CreateReply{}, apperrors.Wrap(apperrors.CodeInternal, "generate seat nonce", err)
	}
	replayID, err := reg.cfg.IDGenerator()
	if err != nil {
		return CreateReply{}, apperrors.Wrap(apperrors.CodeInternal, "generate replay id", err)
	}

	record := Record{
		SessionID: sess.ID,
		ReplayID:  replayID,
		TwoPlayer: input.TwoPlayer,
		Seats: map[string]*SeatState{
			string(game.SeatOne): {Nonce: nonce, Claimed: true},
		},
	}
	if input.TwoPlayer {
		record.Seats[string(game.SeatTwo)] = &SeatState{}
	}

	recorder := replay.NewRecorder(replay.RecorderConfig{
		ReplayID:    replayID,
		ChallengeID: challengeID,
		GameID:      sess.ID,
		Seed:        seed,
		Options:     opts,
		Clock:       reg.cfg.Clock,
	})
	recorder.RecordGameStart(initial)

	room := newRoom(reg.cfg, sess, record, engine, state, recorder, opts)

	reg.mu.Lock()
	reg.rooms[sess.ID] = room
	reg.mu.Unlock()
	go room.run()

	reply := CreateReply{
		SessionID: sess.ID,
		Seat:      game.SeatOne,
		Nonce:     nonce,
		Seed:      seed,
	}
	err = room.do(ctx, func() {
		room.emit(event.TypeSessionCreated, sessionCreatedPayload{
			ChallengeID: challengeID,
			Difficulty:  opts.Difficulty,
			TwoPlayer:   input.TwoPlayer,
			Render:      engine.RenderText(state),
			Turn:        engine.Turn(state),
		})
		if persistErr := room.persist(ctx, nil); persistErr != nil {
			room.logger.Error().Err(persistErr).Msg("persist new room")
		}
		reply.Render = engine.RenderText(room.state)
		reply.Turn = engine.Turn(room.state)
	})
	if err != nil {
		return CreateReply{}, err
	}
	return reply, nil
}

// Get returns the room actor for a session, waking it from storage when it
// is not resident.
func (reg *Registry) Get(ctx context.Context, sessionID string) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if room, ok := reg.rooms[sessionID]; ok {
		return room, nil
	}

	room, err := reg.wake(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	reg.rooms[sessionID] = room
	go room.run()
	return room, nil
}

// wake rebuilds a room actor from its persisted session and room records.
func (reg *Registry) wake(ctx context.Context, sessionID string) (*Room, error) {
	record, err := reg.cfg.Rooms.GetRoom(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.New(apperrors.CodeSessionNotFound, "session not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, "load room record", err)
	}

	sess, err := reg.cfg.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	engine, ok := reg.cfg.Games.Lookup(sess.ChallengeID)
	if !ok {
		return nil, apperrors.WithMetadata(apperrors.CodeUnknownGame, "no engine registered for challenge",
			map[string]string{"challenge_id": sess.ChallengeID})
	}

	state, err := engine.Deserialize(sess.State)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "restore game state", err)
	}

	opts := game.Options{Difficulty: sess.Difficulty, TwoPlayer: record.TwoPlayer}
	if len(sess.Events) > 0 {
		if start, ok := sess.Events[0].Payload.(replay.GameStartPayload); ok {
			opts = start.Options
		}
	}

	recorder := replay.ResumeRecorder(replay.RecorderConfig{
		ReplayID:    record.ReplayID,
		ChallengeID: sess.ChallengeID,
		GameID:      sess.ID,
		Seed:        sess.Seed,
		Options:     opts,
		Clock:       reg.cfg.Clock,
	}, sess.Events)

	logger := log.WithComponent("room")
	logger.Info().Str("session_id", sessionID).Msg("room woken from storage")
	return newRoom(reg.cfg, sess, record, engine, state, recorder, opts), nil
}

// Len reports how many room actors are resident.
func (reg *Registry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}

// Shutdown stops every resident actor without discarding persisted state.
func (reg *Registry) Shutdown() {
	reg.mu.Lock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		rooms = append(rooms, room)
	}
	reg.mu.Unlock()

	for _, room := range rooms {
		room.Close()
	}
}
