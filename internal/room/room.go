// Package room hosts the per-session actors that serialize all game
// mutations. Every request against a session funnels through its room's
// single goroutine, so move validation, replay recording, persistence, and
// observer broadcast happen in one totally ordered pipeline.
package room

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kibitz-games/kibitz/internal/achievement"
	"github.com/kibitz-games/kibitz/internal/event"
	"github.com/kibitz-games/kibitz/internal/game"
	"github.com/kibitz-games/kibitz/internal/id"
	apperrors "github.com/kibitz-games/kibitz/internal/platform/errors"
	"github.com/kibitz-games/kibitz/internal/platform/log"
	"github.com/kibitz-games/kibitz/internal/replay"
	"github.com/kibitz-games/kibitz/internal/session/domain"
	"github.com/kibitz-games/kibitz/internal/session/service"
	"github.com/kibitz-games/kibitz/internal/storage"
)

// DefaultIdleTimeout is how long a room actor stays resident without
// requests before tearing itself down.
const DefaultIdleTimeout = 30 * time.Minute

// Config carries the shared dependencies every room actor uses.
type Config struct {
	Sessions     *service.Manager
	Games        *game.Registry
	Achievements *achievement.Engine
	// Replayer re-executes finished games to verify determinism before
	// achievements are awarded.
	Replayer *replay.Engine
	Replays  storage.ReplayStore
	Rooms    StateStore
	Buffer   *event.Buffer
	// IdleTimeout defaults to DefaultIdleTimeout when zero.
	IdleTimeout time.Duration
	Clock       func() time.Time
	IDGenerator func() (string, error)
	// OnClose is invoked after a room actor terminates, from the actor
	// goroutine.
	OnClose func(sessionID string)
}

func (cfg Config) withDefaults() Config {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.IDGenerator == nil {
		cfg.IDGenerator = id.NewID
	}
	return cfg
}

type roomOp struct {
	fn   func()
	done chan struct{}
}

// Room is the actor owning one session. All mutating and reading methods
// are executed on the actor goroutine in arrival order.
type Room struct {
	cfg    Config
	logger zerolog.Logger

	sessionID   string
	challengeID string
	seed        string
	opts        game.Options
	engine      game.Engine
	record      Record
	recorder    *replay.Recorder
	// recordedLen marks how many replay events have been persisted into the
	// session record so far.
	recordedLen int

	state     game.State
	moveCount int
	status    domain.Status
	result    *game.Result

	ops       chan roomOp
	closed    chan struct{}
	closeOnce sync.Once
	fan       *fanout
}

func newRoom(cfg Config, sess domain.Session, record Record, engine game.Engine, state game.State, recorder *replay.Recorder, opts game.Options) *Room {
	return &Room{
		cfg:         cfg,
		logger:      log.WithComponent("room").With().Str("session_id", sess.ID).Logger(),
		sessionID:   sess.ID,
		challengeID: sess.ChallengeID,
		seed:        sess.Seed,
		opts:        opts,
		engine:      engine,
		record:      record,
		recorder:    recorder,
		recordedLen: len(sess.Events),
		state:       state,
		moveCount:   sess.MoveCount,
		status:      sess.Status,
		ops:         make(chan roomOp),
		closed:      make(chan struct{}),
		fan:         newFanout(),
	}
}

// SessionID returns the id of the session this room owns.
func (r *Room) SessionID() string {
	return r.sessionID
}

// do runs fn on the actor goroutine and waits for it to finish.
func (r *Room) do(ctx context.Context, fn func()) error {
	op := roomOp{fn: fn, done: make(chan struct{})}
	select {
	case r.ops <- op:
	case <-r.closed:
		return apperrors.New(apperrors.CodeSessionExpired, "room is closed")
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-op.done:
		return nil
	case <-r.closed:
		return apperrors.New(apperrors.CodeSessionExpired, "room is closed")
	}
}

func (r *Room) run() {
	idle := time.NewTimer(r.cfg.IdleTimeout)
	defer idle.Stop()
	for {
		select {
		case op := <-r.ops:
			op.fn()
			close(op.done)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(r.cfg.IdleTimeout)
		case <-idle.C:
			r.expire()
			return
		case <-r.closed:
			r.teardown()
			return
		}
	}
}

// Close stops the actor without discarding persisted state; a later request
// wakes the room from storage.
func (r *Room) Close() {
	r.closeOnce.Do(func() { close(r.closed) })
}

func (r *Room) teardown() {
	r.closeOnce.Do(func() { close(r.closed) })
	r.fan.closeAll()
	if r.cfg.OnClose != nil {
		r.cfg.OnClose(r.sessionID)
	}
}

// expire runs on the actor goroutine when the idle timer fires. An active
// session is expired and its state discarded; a completed session keeps its
// record and archive so the room can wake again for reads.
func (r *Room) expire() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if r.status == domain.StatusActive {
		r.recorder.RecordTimeout(r.cfg.IdleTimeout)
		r.emit(event.TypeSessionExpired, sessionExpiredPayload{IdleMS: r.cfg.IdleTimeout.Milliseconds()})
		r.status = domain.StatusExpired

		if _, err := r.cfg.Sessions.Delete(ctx, r.sessionID); err != nil {
			r.logger.Error().Err(err).Msg("delete expired session")
		}
		if err := r.cfg.Rooms.DeleteRoom(ctx, r.sessionID); err != nil {
			r.logger.Error().Err(err).Msg("delete expired room record")
		}
		r.cfg.Buffer.Drop(r.sessionID)
		r.logger.Info().Msg("session expired")
	}

	r.teardown()
}

func (r *Room) now() time.Time {
	return r.cfg.Clock().UTC()
}

// emit assigns the next domain event sequence number, appends the event to
// the reconnect buffer, and broadcasts it to attached observers.
func (r *Room) emit(evtType event.Type, payload any) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			r.logger.Error().Err(err).Str("event_type", string(evtType)).Msg("marshal event payload")
			return
		}
		raw = data
	}

	evtID, err := r.cfg.IDGenerator()
	if err != nil {
		r.logger.Error().Err(err).Msg("generate event id")
		return
	}

	r.record.NextSeq++
	evt := event.Event{
		ID:        evtID,
		SessionID: r.sessionID,
		Seq:       r.record.NextSeq,
		Timestamp: r.now(),
		Type:      evtType,
		Payload:   raw,
	}
	r.cfg.Buffer.Append(evt)
	if dropped := r.fan.broadcast(evt); dropped > 0 {
		r.logger.Warn().Int("dropped", dropped).Msg("dropped slow observers")
	}
}

// persist writes the session progress and room record through to storage.
// Newly recorded replay events since the last persist are appended.
func (r *Room) persist(ctx context.Context, status *domain.Status) error {
	serialized, err := r.engine.Serialize(r.state)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "serialize game state", err)
	}

	patch := domain.Patch{
		State:     serialized,
		MoveCount: &r.moveCount,
		Status:    status,
	}
	all := r.recorder.Events()
	if r.recordedLen < len(all) {
		patch.AppendEvents = all[r.recordedLen:]
	}

	if _, err := r.cfg.Sessions.Update(ctx, r.sessionID, patch); err != nil {
		return err
	}
	r.recordedLen = len(all)

	if err := r.cfg.Rooms.PutRoom(ctx, r.record); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "persist room record", err)
	}
	return nil
}

func (r *Room) seatForNonce(nonce string) (game.Seat, *SeatState, error) {
	if nonce != "" {
		for seatID, seat := range r.record.Seats {
			if seat.Claimed && seat.Nonce == nonce {
				return game.Seat(seatID), seat, nil
			}
		}
	}
	return "", nil, apperrors.New(apperrors.CodeInvalidNonce, "nonce does not match any claimed seat")
}

// reject records a game-rule rejection in the replay, announces it to
// observers, persists, and returns the error.
func (r *Room) reject(ctx context.Context, code apperrors.Code, message string) error {
	r.recorder.RecordError(string(code), message)
	r.emit(event.TypeError, errorPayload{Code: string(code), Message: message})
	if err := r.persist(ctx, nil); err != nil {
		r.logger.Error().Err(err).Msg("persist after rejected action")
	}
	return apperrors.New(code, message)
}

func (r *Room) snapshotLocked() Snapshot {
	snap := Snapshot{
		SessionID:   r.sessionID,
		ChallengeID: r.challengeID,
		Status:      r.status,
		TwoPlayer:   r.record.TwoPlayer,
		MoveCount:   r.moveCount,
		Render:      r.engine.RenderText(r.state),
		Result:      r.result,
		LastSeq:     r.record.NextSeq,
	}
	if r.status == domain.StatusActive {
		snap.Turn = r.engine.Turn(r.state)
	}
	for seatID, seat := range r.record.Seats {
		if seat.IdentityLocked {
			if snap.Players == nil {
				snap.Players = make(map[string]string)
			}
			snap.Players[seatID] = seat.Identity
		}
	}
	return snap
}

// Snapshot returns the room's current observable state.
func (r *Room) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := r.do(ctx, func() {
		// Reads still refresh session activity so a watched game does not
		// expire mid-view.
		if _, getErr := r.cfg.Sessions.Get(ctx, r.sessionID); getErr != nil {
			r.logger.Debug().Err(getErr).Msg("refresh session on snapshot")
		}
		snap = r.snapshotLocked()
	})
	return snap, err
}

// AttachResult is what an observer receives on attach: the current
// snapshot, any buffered events after its resume point, and the live
// channel.
type AttachResult struct {
	Snapshot Snapshot
	// Backlog holds buffered events with Seq > the requested afterSeq.
	Backlog []event.Event
	// Trimmed reports that the buffer no longer reaches back to afterSeq;
	// the snapshot is the only way to resynchronize.
	Trimmed  bool
	Observer *Observer
}

// Attach registers an observer. The snapshot, backlog, and first live event
// are consistent: no event falls between the backlog and the channel.
func (r *Room) Attach(ctx context.Context, afterSeq uint64, buffer int) (AttachResult, error) {
	var res AttachResult
	err := r.do(ctx, func() {
		backlog, trimmed := r.cfg.Buffer.EventsSince(r.sessionID, afterSeq)
		res = AttachResult{
			Snapshot: r.snapshotLocked(),
			Backlog:  backlog,
			Trimmed:  trimmed,
			Observer: r.fan.attach(buffer),
		}
	})
	return res, err
}

// Detach removes an observer and closes its channel.
func (r *Room) Detach(obs *Observer) {
	r.fan.detach(obs)
}

// JoinReply is the seat credential handed to a second player.
type JoinReply struct {
	Seat   game.Seat
	Nonce  string
	Render string
	Turn   game.Seat
}

// Join claims the open seat of a two-player game and issues its nonce.
func (r *Room) Join(ctx context.Context) (JoinReply, error) {
	var (
		reply   JoinReply
		joinErr error
	)
	err := r.do(ctx, func() {
		if !r.record.TwoPlayer {
			joinErr = apperrors.New(apperrors.CodeSeatTaken, "single-player session has no open seat")
			return
		}
		if r.status != domain.StatusActive {
			joinErr = apperrors.New(apperrors.CodeGameOver, "session is no longer active")
			return
		}
		seat := r.record.Seats[string(game.SeatTwo)]
		if seat == nil {
			seat = &SeatState{}
			r.record.Seats[string(game.SeatTwo)] = seat
		}
		if seat.Claimed {
			joinErr = apperrors.New(apperrors.CodeSeatTaken, "seat is already taken")
			return
		}
		nonce, genErr := r.cfg.IDGenerator()
		if genErr != nil {
			joinErr = apperrors.Wrap(apperrors.CodeInternal, "generate seat nonce", genErr)
			return
		}
		seat.Nonce = nonce
		seat.Claimed = true

		r.emit(event.TypePlayerJoined, playerJoinedPayload{Seat: game.SeatTwo})
		if persistErr := r.persist(ctx, nil); persistErr != nil {
			r.logger.Error().Err(persistErr).Msg("persist after join")
		}
		reply = JoinReply{
			Seat:   game.SeatTwo,
			Nonce:  nonce,
			Render: r.engine.RenderText(r.state),
			Turn:   r.engine.Turn(r.state),
		}
	})
	if err != nil {
		return JoinReply{}, err
	}
	return reply, joinErr
}

// Identify locks a display name to the seat whose nonce is presented. The
// lock is permanent for the session.
func (r *Room) Identify(ctx context.Context, nonce, name string) (game.Seat, error) {
	var (
		seatID game.Seat
		idErr  error
	)
	err := r.do(ctx, func() {
		seat, seatState, resolveErr := r.seatForNonce(nonce)
		if resolveErr != nil {
			idErr = resolveErr
			return
		}
		if seatState.IdentityLocked {
			idErr = apperrors.WithMetadata(apperrors.CodeIdentityLock, "seat identity is already locked",
				map[string]string{"seat": string(seat)})
			return
		}
		seatState.Identity = name
		seatState.IdentityLocked = true
		seatID = seat

		r.emit(event.TypePlayerIdentified, playerIdentifiedPayload{Seat: seat, Name: name})
		if persistErr := r.persist(ctx, nil); persistErr != nil {
			r.logger.Error().Err(persistErr).Msg("persist after identify")
		}
	})
	if err != nil {
		return "", err
	}
	return seatID, idErr
}

// MoveReply reports an accepted move, including the AI's reply in
// single-player games and, on game end, the result and earned achievements.
type MoveReply struct {
	Move      string
	Render    string
	MoveCount int
	Turn      game.Seat
	Status    domain.Status
	// AIMove is the formatted reply move, empty in two-player games or when
	// the player's move ended the game.
	AIMove       string
	Result       *game.Result
	Achievements []achievement.Earned
}

// PlayMove validates and applies one player move, then lets the AI answer
// in single-player games. The whole exchange is a single actor operation:
// observers see its events in exactly this order on every run.
func (r *Room) PlayMove(ctx context.Context, nonce, moveText string) (MoveReply, error) {
	var (
		reply   MoveReply
		moveErr error
	)
	err := r.do(ctx, func() {
		reply, moveErr = r.playMove(ctx, nonce, moveText)
	})
	if err != nil {
		return MoveReply{}, err
	}
	return reply, moveErr
}

func (r *Room) playMove(ctx context.Context, nonce, moveText string) (MoveReply, error) {
	seat, _, err := r.seatForNonce(nonce)
	if err != nil {
		return MoveReply{}, err
	}
	if r.status == domain.StatusCompleted {
		return MoveReply{}, apperrors.New(apperrors.CodeGameOver, "game is already over")
	}
	if r.status != domain.StatusActive {
		return MoveReply{}, apperrors.New(apperrors.CodeSessionExpired, "session is no longer active")
	}
	if r.record.TwoPlayer {
		if opponent := r.record.Seats[string(game.SeatTwo)]; opponent == nil || !opponent.Claimed {
			return MoveReply{}, apperrors.New(apperrors.CodeWrongTurn, "waiting for the second player to join")
		}
	}
	if turn := r.engine.Turn(r.state); turn != seat {
		return MoveReply{}, r.reject(ctx, apperrors.CodeWrongTurn,
			fmt.Sprintf("it is %s's turn", turn))
	}

	// Malformed input is rejected before touching session state; it is not
	// a game event and never counts against the replay record.
	move, err := r.engine.ParseMove(moveText)
	if err != nil {
		return MoveReply{}, apperrors.New(apperrors.CodeInvalidMove,
			fmt.Sprintf("cannot parse move %q: %v", moveText, err))
	}

	before, err := r.engine.Serialize(r.state)
	if err != nil {
		return MoveReply{}, apperrors.Wrap(apperrors.CodeInternal, "serialize game state", err)
	}

	outcome, err := r.engine.MakeMove(r.state, move)
	if err != nil {
		return MoveReply{}, apperrors.Wrap(apperrors.CodeInternal, "apply move", err)
	}
	if !outcome.Valid {
		return MoveReply{}, r.reject(ctx, apperrors.CodeIllegalMove, outcome.Err)
	}

	r.state = outcome.State
	r.moveCount++
	formatted := r.engine.FormatMove(move)

	after, err := r.engine.Serialize(r.state)
	if err != nil {
		return MoveReply{}, apperrors.Wrap(apperrors.CodeInternal, "serialize game state", err)
	}
	r.recorder.RecordPlayerMove(seat, formatted, before, after)
	r.emit(event.TypeMoveValidated, movePayload{
		Seat:      seat,
		Move:      formatted,
		Render:    r.engine.RenderText(r.state),
		MoveCount: r.moveCount,
		Turn:      r.engine.Turn(r.state),
	})

	reply := MoveReply{
		Move:      formatted,
		Render:    r.engine.RenderText(r.state),
		MoveCount: r.moveCount,
		Turn:      r.engine.Turn(r.state),
		Status:    r.status,
	}

	if outcome.Result != nil || r.engine.IsGameOver(r.state) {
		return r.completeMove(ctx, reply, outcome.Result)
	}

	if !r.record.TwoPlayer {
		aiSeat := r.engine.Turn(r.state)
		r.emit(event.TypeAIThinking, aiThinkingPayload{Seat: aiSeat})

		aiMove, ok := r.engine.AIMove(r.state, r.opts.Difficulty, r.seed)
		if !ok {
			return r.completeMove(ctx, reply, nil)
		}
		aiOutcome, err := r.engine.MakeMove(r.state, aiMove)
		if err != nil || !aiOutcome.Valid {
			r.logger.Error().Err(err).Str("ai_move", r.engine.FormatMove(aiMove)).Msg("engine produced invalid ai move")
			return MoveReply{}, apperrors.New(apperrors.CodeInternal, "engine produced an invalid move")
		}

		aiBefore := after
		r.state = aiOutcome.State
		r.moveCount++
		aiFormatted := r.engine.FormatMove(aiMove)

		aiAfter, err := r.engine.Serialize(r.state)
		if err != nil {
			return MoveReply{}, apperrors.Wrap(apperrors.CodeInternal, "serialize game state", err)
		}
		r.recorder.RecordAIMove(aiSeat, aiFormatted, aiBefore, aiAfter)
		r.emit(event.TypeAIMoved, movePayload{
			Seat:      aiSeat,
			Move:      aiFormatted,
			Render:    r.engine.RenderText(r.state),
			MoveCount: r.moveCount,
			Turn:      r.engine.Turn(r.state),
		})

		reply.AIMove = aiFormatted
		reply.Render = r.engine.RenderText(r.state)
		reply.MoveCount = r.moveCount
		reply.Turn = r.engine.Turn(r.state)

		if aiOutcome.Result != nil || r.engine.IsGameOver(r.state) {
			return r.completeMove(ctx, reply, aiOutcome.Result)
		}
	}

	if err := r.persist(ctx, nil); err != nil {
		return MoveReply{}, err
	}
	return reply, nil
}

// completeMove finishes a game that ended by a move.
func (r *Room) completeMove(ctx context.Context, reply MoveReply, result *game.Result) (MoveReply, error) {
	if result == nil {
		if res, ok := r.engine.Result(r.state); ok {
			result = &res
		} else {
			result = &game.Result{Status: game.StatusDraw, Reason: "no moves available"}
		}
	}

	earned, err := r.finish(ctx, *result, true)
	if err != nil {
		return MoveReply{}, err
	}
	reply.Turn = ""
	reply.Status = domain.StatusCompleted
	reply.Result = result
	reply.Achievements = earned
	return reply, nil
}

// Resign ends the game in the opponent's favor.
func (r *Room) Resign(ctx context.Context, nonce string) (MoveReply, error) {
	var (
		reply     MoveReply
		resignErr error
	)
	err := r.do(ctx, func() {
		seat, _, seatErr := r.seatForNonce(nonce)
		if seatErr != nil {
			resignErr = seatErr
			return
		}
		if r.status != domain.StatusActive {
			resignErr = apperrors.New(apperrors.CodeGameOver, "game is already over")
			return
		}

		result := game.Result{Status: game.StatusLost, Winner: game.SeatTwo, Reason: "resignation"}
		if seat == game.SeatTwo {
			result = game.Result{Status: game.StatusWon, Winner: game.SeatOne, Reason: "resignation"}
		}

		r.recorder.RecordResign(seat, "player resigned")
		earned, finishErr := r.finish(ctx, result, false)
		if finishErr != nil {
			resignErr = finishErr
			return
		}
		reply = MoveReply{
			Render:       r.engine.RenderText(r.state),
			MoveCount:    r.moveCount,
			Status:       domain.StatusCompleted,
			Result:       &result,
			Achievements: earned,
		}
	})
	if err != nil {
		return MoveReply{}, err
	}
	return reply, resignErr
}

// finish runs the end-of-game pipeline: record the terminal event, build
// and verify the replay, evaluate achievements, archive, complete the
// session, and announce the result.
func (r *Room) finish(ctx context.Context, result game.Result, recordEnd bool) ([]achievement.Earned, error) {
	finalState, err := r.engine.Serialize(r.state)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "serialize final state", err)
	}
	if recordEnd {
		r.recorder.RecordGameEnd(result, finalState)
	}

	rep, err := r.recorder.Build(&result)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "build replay", err)
	}

	var warnings []replay.Issue
	if r.cfg.Replayer != nil {
		exec, execErr := r.cfg.Replayer.Execute(ctx, rep)
		if execErr != nil {
			r.logger.Error().Err(execErr).Msg("replay verification failed to run")
		} else {
			warnings = exec.Warnings
			if !exec.Success {
				r.logger.Warn().Int("errors", len(exec.Errors)).Msg("replay verification reported errors")
			}
		}
	}

	eval := r.cfg.Achievements.Evaluate(r.challengeID, &result, rep)
	eval.ReplayWarnings = warnings

	if err := r.cfg.Replays.PutReplay(ctx, rep); err != nil {
		r.logger.Error().Err(err).Msg("archive replay")
	} else if len(eval.Earned) > 0 {
		if err := r.cfg.Replays.PutEarned(ctx, rep.ID, eval.Earned); err != nil {
			r.logger.Error().Err(err).Msg("archive earned achievements")
		}
	}

	r.status = domain.StatusCompleted
	r.result = &result
	completed := domain.StatusCompleted
	if err := r.persist(ctx, &completed); err != nil {
		return nil, err
	}

	r.emit(event.TypeGameEnded, gameEndedPayload{
		Result:    result,
		Render:    r.engine.RenderText(r.state),
		MoveCount: r.moveCount,
	})
	for _, earned := range eval.Earned {
		r.emit(event.TypeAchievementEarned, earned)
	}

	r.logger.Info().
		Str("status", string(result.Status)).
		Str("reason", result.Reason).
		Int("moves", r.moveCount).
		Int("achievements", len(eval.Earned)).
		Msg("game completed")
	return eval.Earned, nil
}
