package mcp

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/kibitz-games/kibitz/internal/achievement"
	"github.com/kibitz-games/kibitz/internal/event"
	"github.com/kibitz-games/kibitz/internal/game"
	"github.com/kibitz-games/kibitz/internal/game/tictactoe"
	apperrors "github.com/kibitz-games/kibitz/internal/platform/errors"
	"github.com/kibitz-games/kibitz/internal/replay"
	"github.com/kibitz-games/kibitz/internal/room"
	"github.com/kibitz-games/kibitz/internal/session/domain"
	"github.com/kibitz-games/kibitz/internal/session/service"
	"github.com/kibitz-games/kibitz/internal/storage"
)

type memSessionStore struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
}

func (m *memSessionStore) PutSession(_ context.Context, session domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	return nil
}

func (m *memSessionStore) GetSession(_ context.Context, id string) (domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return domain.Session{}, storage.ErrNotFound
	}
	return session, nil
}

func (m *memSessionStore) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memSessionStore) ListSessions(_ context.Context) ([]domain.Session, error) {
	return nil, nil
}

type memStateStore struct {
	mu      sync.Mutex
	records map[string]room.Record
}

func (m *memStateStore) PutRoom(_ context.Context, record room.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.SessionID] = record
	return nil
}

func (m *memStateStore) GetRoom(_ context.Context, sessionID string) (room.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[sessionID]
	if !ok {
		return room.Record{}, storage.ErrNotFound
	}
	return record, nil
}

func (m *memStateStore) DeleteRoom(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, sessionID)
	return nil
}

type memReplayStore struct {
	mu      sync.Mutex
	replays map[string]replay.Replay
	earned  map[string][]achievement.Earned
}

func (m *memReplayStore) PutReplay(_ context.Context, r replay.Replay) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replays[r.ID] = r
	return nil
}

func (m *memReplayStore) GetReplay(_ context.Context, id string) (replay.Replay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.replays[id]
	if !ok {
		return replay.Replay{}, apperrors.New(apperrors.CodeReplayNotFound, "replay not found")
	}
	return r, nil
}

func (m *memReplayStore) ListReplays(_ context.Context, challengeID string, limit int) ([]string, error) {
	return nil, nil
}

func (m *memReplayStore) PutEarned(_ context.Context, replayID string, earned []achievement.Earned) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.earned[replayID] = earned
	return nil
}

func (m *memReplayStore) ListEarned(_ context.Context, replayID string) ([]achievement.Earned, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.earned[replayID], nil
}

type testServer struct {
	server  *Server
	replays *memReplayStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	games := game.NewRegistry()
	if err := games.Register(tictactoe.New()); err != nil {
		t.Fatalf("register engine: %v", err)
	}

	achievements := achievement.NewRegistry()
	defs, err := tictactoe.Achievements()
	if err != nil {
		t.Fatalf("build achievements: %v", err)
	}
	if err := achievements.Register("tictactoe", defs...); err != nil {
		t.Fatalf("register achievements: %v", err)
	}

	sessions, err := service.NewManager(service.Config{Store: &memSessionStore{sessions: make(map[string]domain.Session)}})
	if err != nil {
		t.Fatalf("new session manager: %v", err)
	}

	replays := &memReplayStore{replays: make(map[string]replay.Replay), earned: make(map[string][]achievement.Earned)}
	rooms := room.NewRegistry(room.Config{
		Sessions:     sessions,
		Games:        games,
		Achievements: achievement.NewEngine(achievements),
		Replayer:     replay.NewEngine(games, replay.Options{VerifyStates: true}),
		Replays:      replays,
		Rooms:        &memStateStore{records: make(map[string]room.Record)},
		Buffer:       event.NewBuffer(event.BufferConfig{}),
	})
	t.Cleanup(rooms.Shutdown)

	server := New(Config{
		Rooms:        rooms,
		Games:        games,
		Achievements: achievements,
		Replays:      replays,
	})
	return &testServer{server: server, replays: replays}
}

func (ts *testServer) createGame(t *testing.T, input CreateGameInput) CreateGameResult {
	t.Helper()
	_, result, err := ts.server.createGameHandler()(context.Background(), nil, input)
	if err != nil {
		t.Fatalf("create_game error: %v", err)
	}
	return result
}

func (ts *testServer) playMove(t *testing.T, sessionID, nonce, move string) PlayMoveResult {
	t.Helper()
	_, result, err := ts.server.playMoveHandler()(context.Background(), nil, PlayMoveInput{
		SessionID: sessionID,
		Nonce:     nonce,
		Move:      move,
	})
	if err != nil {
		t.Fatalf("play_move %s error: %v", move, err)
	}
	return result
}

func TestCreateGameTool(t *testing.T) {
	ts := newTestServer(t)

	result := ts.createGame(t, CreateGameInput{Game: "tictactoe", TwoPlayer: true})
	if result.SessionID == "" || result.Nonce == "" {
		t.Fatalf("result = %+v", result)
	}
	if result.Seat != "p1" || result.Turn != "p1" {
		t.Fatalf("seat/turn = %s/%s", result.Seat, result.Turn)
	}
	if result.Board == "" {
		t.Fatal("missing board rendering")
	}
}

func TestCreateGameUnknownTypeListsKnownGames(t *testing.T) {
	ts := newTestServer(t)

	_, _, err := ts.server.createGameHandler()(context.Background(), nil, CreateGameInput{Game: "checkers"})
	if err == nil {
		t.Fatal("create_game with unknown type did not error")
	}
	if !strings.Contains(err.Error(), "tictactoe") {
		t.Fatalf("error does not list known games: %v", err)
	}
}

func TestFullTwoPlayerGameOverTools(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	created := ts.createGame(t, CreateGameInput{Game: "tictactoe", TwoPlayer: true})

	_, joined, err := ts.server.joinGameHandler()(ctx, nil, JoinGameInput{SessionID: created.SessionID})
	if err != nil {
		t.Fatalf("join_game error: %v", err)
	}
	if joined.Seat != "p2" || joined.Nonce == "" {
		t.Fatalf("joined = %+v", joined)
	}

	_, identified, err := ts.server.identifyHandler()(ctx, nil, IdentifyInput{
		SessionID: created.SessionID,
		Nonce:     created.Nonce,
		Name:      "Ada",
	})
	if err != nil {
		t.Fatalf("identify error: %v", err)
	}
	if identified.Seat != "p1" || identified.Name != "Ada" {
		t.Fatalf("identified = %+v", identified)
	}

	// X takes the left column: 0, 3, 6.
	ts.playMove(t, created.SessionID, created.Nonce, "0")
	ts.playMove(t, created.SessionID, joined.Nonce, "1")
	ts.playMove(t, created.SessionID, created.Nonce, "3")
	ts.playMove(t, created.SessionID, joined.Nonce, "4")
	final := ts.playMove(t, created.SessionID, created.Nonce, "6")

	if final.Status != "completed" || final.Result == nil {
		t.Fatalf("final = %+v", final)
	}
	if final.Result.Status != game.StatusWon || final.Result.Winner != game.SeatOne {
		t.Fatalf("Result = %+v", final.Result)
	}
	if final.Turn != "" {
		t.Fatalf("Turn = %q after game end", final.Turn)
	}

	_, state, err := ts.server.getGameStateHandler()(ctx, nil, GetGameStateInput{SessionID: created.SessionID})
	if err != nil {
		t.Fatalf("get_game_state error: %v", err)
	}
	if state.Status != "completed" || state.MoveCount != 5 {
		t.Fatalf("state = %+v", state)
	}
	if state.Players["p1"] != "Ada" {
		t.Fatalf("players = %+v", state.Players)
	}
}

func TestResignTool(t *testing.T) {
	ts := newTestServer(t)

	created := ts.createGame(t, CreateGameInput{Game: "tictactoe", TwoPlayer: true})
	_, joined, err := ts.server.joinGameHandler()(context.Background(), nil, JoinGameInput{SessionID: created.SessionID})
	if err != nil {
		t.Fatalf("join_game error: %v", err)
	}

	_, result, err := ts.server.resignHandler()(context.Background(), nil, ResignInput{
		SessionID: created.SessionID,
		Nonce:     joined.Nonce,
	})
	if err != nil {
		t.Fatalf("resign error: %v", err)
	}
	if result.Result == nil || result.Result.Winner != game.SeatOne {
		t.Fatalf("result = %+v", result)
	}
	if result.Result.Reason != "resignation" {
		t.Fatalf("reason = %q", result.Result.Reason)
	}
}

func TestListAchievementsMasksHidden(t *testing.T) {
	ts := newTestServer(t)

	_, result, err := ts.server.listAchievementsHandler()(context.Background(), nil, ListAchievementsInput{Game: "tictactoe"})
	if err != nil {
		t.Fatalf("list_achievements error: %v", err)
	}
	if len(result.Achievements) == 0 {
		t.Fatal("no achievements listed")
	}

	sawHidden := false
	for _, info := range result.Achievements {
		if info.Hidden {
			sawHidden = true
			if info.Name != "???" || info.Description != "" {
				t.Fatalf("hidden achievement leaked: %+v", info)
			}
		} else if info.Name == "" {
			t.Fatalf("visible achievement missing name: %+v", info)
		}
	}
	if !sawHidden {
		t.Fatal("expected at least one hidden achievement")
	}
}

func TestGetReplayTool(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	created := ts.createGame(t, CreateGameInput{Game: "tictactoe", TwoPlayer: true})
	_, joined, err := ts.server.joinGameHandler()(ctx, nil, JoinGameInput{SessionID: created.SessionID})
	if err != nil {
		t.Fatalf("join_game error: %v", err)
	}
	ts.playMove(t, created.SessionID, created.Nonce, "0")
	ts.playMove(t, created.SessionID, joined.Nonce, "1")
	ts.playMove(t, created.SessionID, created.Nonce, "3")
	ts.playMove(t, created.SessionID, joined.Nonce, "4")
	ts.playMove(t, created.SessionID, created.Nonce, "6")

	ts.replays.mu.Lock()
	var replayID string
	for id := range ts.replays.replays {
		replayID = id
	}
	ts.replays.mu.Unlock()
	if replayID == "" {
		t.Fatal("no replay was archived")
	}

	_, result, err := ts.server.getReplayHandler()(ctx, nil, GetReplayInput{ReplayID: replayID})
	if err != nil {
		t.Fatalf("get_replay error: %v", err)
	}
	if result.Game != "tictactoe" || result.SessionID != created.SessionID {
		t.Fatalf("result = %+v", result)
	}
	if result.Result == nil || result.Result.Status != game.StatusWon {
		t.Fatalf("Result = %+v", result.Result)
	}
	if len(result.Replay) == 0 {
		t.Fatal("replay document is empty")
	}
	if len(result.Achievements) == 0 {
		t.Fatal("no earned achievements returned")
	}

	_, _, err = ts.server.getReplayHandler()(ctx, nil, GetReplayInput{ReplayID: "missing"})
	if apperrors.CodeOf(err) != apperrors.CodeReplayNotFound {
		t.Fatalf("missing replay error = %v, want REPLAY_NOT_FOUND", err)
	}
}
