package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kibitz-games/kibitz/internal/achievement"
	"github.com/kibitz-games/kibitz/internal/game"
	"github.com/kibitz-games/kibitz/internal/room"
)

// CreateGameInput represents the MCP tool input for creating a game.
type CreateGameInput struct {
	Game       string `json:"game" jsonschema:"game type to play (e.g. tictactoe, chess)"`
	Difficulty string `json:"difficulty,omitempty" jsonschema:"AI difficulty (easy, normal, hard)"`
	Seed       string `json:"seed,omitempty" jsonschema:"optional deterministic seed; generated when empty"`
	TwoPlayer  bool   `json:"two_player,omitempty" jsonschema:"disable the AI and open a second seat"`
}

// CreateGameResult represents the MCP tool output for creating a game.
type CreateGameResult struct {
	SessionID string `json:"session_id" jsonschema:"session identifier for all further calls"`
	Seat      string `json:"seat" jsonschema:"seat assigned to the caller"`
	Nonce     string `json:"nonce" jsonschema:"seat credential; present it on every move"`
	Seed      string `json:"seed" jsonschema:"deterministic seed the game runs under"`
	Board     string `json:"board" jsonschema:"text rendering of the initial position"`
	Turn      string `json:"turn" jsonschema:"seat to move first"`
}

// createGameTool defines the MCP tool schema for creating a game.
func createGameTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "create_game",
		Description: "Creates a new game session and returns its id and your seat credential.",
	}
}

func (s *Server) createGameHandler() mcp.ToolHandlerFor[CreateGameInput, CreateGameResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CreateGameInput) (*mcp.CallToolResult, CreateGameResult, error) {
		reply, err := s.rooms.Create(ctx, room.CreateInput{
			ChallengeID: input.Game,
			Difficulty:  input.Difficulty,
			Seed:        input.Seed,
			TwoPlayer:   input.TwoPlayer,
		})
		if err != nil {
			return nil, CreateGameResult{}, fmt.Errorf("create game (known games: %v): %w", s.games.Names(), err)
		}
		return nil, CreateGameResult{
			SessionID: reply.SessionID,
			Seat:      string(reply.Seat),
			Nonce:     reply.Nonce,
			Seed:      reply.Seed,
			Board:     reply.Render,
			Turn:      string(reply.Turn),
		}, nil
	}
}

// JoinGameInput represents the MCP tool input for joining a game.
type JoinGameInput struct {
	SessionID string `json:"session_id" jsonschema:"session identifier"`
}

// JoinGameResult represents the MCP tool output for joining a game.
type JoinGameResult struct {
	Seat  string `json:"seat" jsonschema:"seat assigned to the caller"`
	Nonce string `json:"nonce" jsonschema:"seat credential; present it on every move"`
	Board string `json:"board" jsonschema:"text rendering of the current position"`
	Turn  string `json:"turn" jsonschema:"seat to move"`
}

// joinGameTool defines the MCP tool schema for joining a two-player game.
func joinGameTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "join_game",
		Description: "Claims the open seat of a two-player session and returns its credential.",
	}
}

func (s *Server) joinGameHandler() mcp.ToolHandlerFor[JoinGameInput, JoinGameResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input JoinGameInput) (*mcp.CallToolResult, JoinGameResult, error) {
		rm, err := s.rooms.Get(ctx, input.SessionID)
		if err != nil {
			return nil, JoinGameResult{}, err
		}
		reply, err := rm.Join(ctx)
		if err != nil {
			return nil, JoinGameResult{}, err
		}
		return nil, JoinGameResult{
			Seat:  string(reply.Seat),
			Nonce: reply.Nonce,
			Board: reply.Render,
			Turn:  string(reply.Turn),
		}, nil
	}
}

// IdentifyInput represents the MCP tool input for locking a player identity.
type IdentifyInput struct {
	SessionID string `json:"session_id" jsonschema:"session identifier"`
	Nonce     string `json:"nonce" jsonschema:"seat credential from create_game or join_game"`
	Name      string `json:"name" jsonschema:"display name to lock to the seat"`
}

// IdentifyResult represents the MCP tool output for locking an identity.
type IdentifyResult struct {
	Seat string `json:"seat" jsonschema:"seat the identity was locked to"`
	Name string `json:"name" jsonschema:"locked display name"`
}

// identifyTool defines the MCP tool schema for identification.
func identifyTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "identify",
		Description: "Locks a display name to your seat. Allowed once per seat; further attempts fail.",
	}
}

func (s *Server) identifyHandler() mcp.ToolHandlerFor[IdentifyInput, IdentifyResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input IdentifyInput) (*mcp.CallToolResult, IdentifyResult, error) {
		rm, err := s.rooms.Get(ctx, input.SessionID)
		if err != nil {
			return nil, IdentifyResult{}, err
		}
		seat, err := rm.Identify(ctx, input.Nonce, input.Name)
		if err != nil {
			return nil, IdentifyResult{}, err
		}
		return nil, IdentifyResult{Seat: string(seat), Name: input.Name}, nil
	}
}

// PlayMoveInput represents the MCP tool input for playing a move.
type PlayMoveInput struct {
	SessionID string `json:"session_id" jsonschema:"session identifier"`
	Nonce     string `json:"nonce" jsonschema:"seat credential"`
	Move      string `json:"move" jsonschema:"move in the game's notation (cell index for tictactoe, UCI for chess)"`
}

// PlayMoveResult represents the MCP tool output for playing a move.
type PlayMoveResult struct {
	Move      string `json:"move" jsonschema:"the accepted move"`
	AIMove    string `json:"ai_move,omitempty" jsonschema:"the AI's reply move, if any"`
	Board     string `json:"board" jsonschema:"text rendering after all moves"`
	MoveCount int    `json:"move_count" jsonschema:"total moves played"`
	Turn      string `json:"turn,omitempty" jsonschema:"seat to move next, empty when the game is over"`
	Status    string `json:"status" jsonschema:"session status (active, completed)"`

	Result       *game.Result         `json:"result,omitempty" jsonschema:"final outcome when the game ended"`
	Achievements []achievement.Earned `json:"achievements,omitempty" jsonschema:"achievements earned by this game"`
}

// playMoveTool defines the MCP tool schema for playing a move.
func playMoveTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "play_move",
		Description: "Validates and applies your move. In single-player games the AI answers in the same call.",
	}
}

func (s *Server) playMoveHandler() mcp.ToolHandlerFor[PlayMoveInput, PlayMoveResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input PlayMoveInput) (*mcp.CallToolResult, PlayMoveResult, error) {
		rm, err := s.rooms.Get(ctx, input.SessionID)
		if err != nil {
			return nil, PlayMoveResult{}, err
		}
		reply, err := rm.PlayMove(ctx, input.Nonce, input.Move)
		if err != nil {
			return nil, PlayMoveResult{}, err
		}
		return nil, moveResult(reply), nil
	}
}

func moveResult(reply room.MoveReply) PlayMoveResult {
	return PlayMoveResult{
		Move:         reply.Move,
		AIMove:       reply.AIMove,
		Board:        reply.Render,
		MoveCount:    reply.MoveCount,
		Turn:         string(reply.Turn),
		Status:       string(reply.Status),
		Result:       reply.Result,
		Achievements: reply.Achievements,
	}
}

// GetGameStateInput represents the MCP tool input for reading game state.
type GetGameStateInput struct {
	SessionID string `json:"session_id" jsonschema:"session identifier"`
}

// GetGameStateResult represents the MCP tool output for reading game state.
type GetGameStateResult struct {
	SessionID string            `json:"session_id" jsonschema:"session identifier"`
	Game      string            `json:"game" jsonschema:"game type"`
	Status    string            `json:"status" jsonschema:"session status (active, completed, expired)"`
	TwoPlayer bool              `json:"two_player,omitempty" jsonschema:"whether the session has two human seats"`
	Turn      string            `json:"turn,omitempty" jsonschema:"seat to move, empty when the game is over"`
	MoveCount int               `json:"move_count" jsonschema:"total moves played"`
	Board     string            `json:"board" jsonschema:"text rendering of the position"`
	Result    *game.Result      `json:"result,omitempty" jsonschema:"final outcome when the game ended"`
	Players   map[string]string `json:"players,omitempty" jsonschema:"locked display names by seat"`
	LastSeq   uint64            `json:"last_seq" jsonschema:"latest spectator event sequence number"`
}

// getGameStateTool defines the MCP tool schema for reading game state.
func getGameStateTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "get_game_state",
		Description: "Returns the current board, turn, and status of a session.",
	}
}

func (s *Server) getGameStateHandler() mcp.ToolHandlerFor[GetGameStateInput, GetGameStateResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input GetGameStateInput) (*mcp.CallToolResult, GetGameStateResult, error) {
		rm, err := s.rooms.Get(ctx, input.SessionID)
		if err != nil {
			return nil, GetGameStateResult{}, err
		}
		snap, err := rm.Snapshot(ctx)
		if err != nil {
			return nil, GetGameStateResult{}, err
		}
		return nil, GetGameStateResult{
			SessionID: snap.SessionID,
			Game:      snap.ChallengeID,
			Status:    string(snap.Status),
			TwoPlayer: snap.TwoPlayer,
			Turn:      string(snap.Turn),
			MoveCount: snap.MoveCount,
			Board:     snap.Render,
			Result:    snap.Result,
			Players:   snap.Players,
			LastSeq:   snap.LastSeq,
		}, nil
	}
}

// ResignInput represents the MCP tool input for resigning.
type ResignInput struct {
	SessionID string `json:"session_id" jsonschema:"session identifier"`
	Nonce     string `json:"nonce" jsonschema:"seat credential"`
}

// resignTool defines the MCP tool schema for resigning.
func resignTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "resign",
		Description: "Resigns the game; the opponent wins and the session completes.",
	}
}

func (s *Server) resignHandler() mcp.ToolHandlerFor[ResignInput, PlayMoveResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ResignInput) (*mcp.CallToolResult, PlayMoveResult, error) {
		rm, err := s.rooms.Get(ctx, input.SessionID)
		if err != nil {
			return nil, PlayMoveResult{}, err
		}
		reply, err := rm.Resign(ctx, input.Nonce)
		if err != nil {
			return nil, PlayMoveResult{}, err
		}
		return nil, moveResult(reply), nil
	}
}

// ListAchievementsInput represents the MCP tool input for listing
// achievements.
type ListAchievementsInput struct {
	Game string `json:"game" jsonschema:"game type to list achievements for"`
}

// AchievementInfo is one achievement definition. Hidden achievements are
// masked until earned.
type AchievementInfo struct {
	ID          string `json:"id" jsonschema:"achievement identifier"`
	Name        string `json:"name" jsonschema:"display name, masked while hidden"`
	Description string `json:"description,omitempty" jsonschema:"how to earn it, empty while hidden"`
	Rarity      string `json:"rarity" jsonschema:"rarity tier"`
	Points      int    `json:"points" jsonschema:"points awarded"`
	Hidden      bool   `json:"hidden,omitempty" jsonschema:"whether the achievement is hidden until earned"`
}

// ListAchievementsResult represents the MCP tool output for listing
// achievements.
type ListAchievementsResult struct {
	Game         string            `json:"game" jsonschema:"game type"`
	Achievements []AchievementInfo `json:"achievements" jsonschema:"registered achievement definitions"`
}

// listAchievementsTool defines the MCP tool schema for listing achievements.
func listAchievementsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_achievements",
		Description: "Lists the achievements registered for a game type.",
	}
}

func (s *Server) listAchievementsHandler() mcp.ToolHandlerFor[ListAchievementsInput, ListAchievementsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ListAchievementsInput) (*mcp.CallToolResult, ListAchievementsResult, error) {
		defs := s.achievements.Definitions(input.Game)
		result := ListAchievementsResult{Game: input.Game, Achievements: make([]AchievementInfo, 0, len(defs))}
		for _, def := range defs {
			info := AchievementInfo{
				ID:     def.ID,
				Name:   def.Name,
				Rarity: string(def.Rarity),
				Points: def.Points,
				Hidden: def.Hidden,
			}
			if def.Hidden {
				info.Name = "???"
			} else {
				info.Description = def.Description
			}
			result.Achievements = append(result.Achievements, info)
		}
		return nil, result, nil
	}
}

// GetReplayInput represents the MCP tool input for fetching a replay.
type GetReplayInput struct {
	ReplayID string `json:"replay_id" jsonschema:"replay identifier"`
}

// GetReplayResult represents the MCP tool output for fetching a replay.
type GetReplayResult struct {
	ReplayID  string `json:"replay_id" jsonschema:"replay identifier"`
	Game      string `json:"game" jsonschema:"game type"`
	SessionID string `json:"session_id" jsonschema:"session the replay was recorded from"`
	Seed      string `json:"seed" jsonschema:"deterministic seed the game ran under"`

	Result       *game.Result         `json:"result,omitempty" jsonschema:"final outcome"`
	Achievements []achievement.Earned `json:"achievements,omitempty" jsonschema:"achievements earned by this replay"`
	// Replay is the full recorded replay document.
	Replay json.RawMessage `json:"replay" jsonschema:"complete replay document with all recorded events"`
}

// getReplayTool defines the MCP tool schema for fetching a replay.
func getReplayTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "get_replay",
		Description: "Fetches an archived replay with its recorded events and earned achievements.",
	}
}

func (s *Server) getReplayHandler() mcp.ToolHandlerFor[GetReplayInput, GetReplayResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input GetReplayInput) (*mcp.CallToolResult, GetReplayResult, error) {
		rep, err := s.replays.GetReplay(ctx, input.ReplayID)
		if err != nil {
			return nil, GetReplayResult{}, err
		}
		earned, err := s.replays.ListEarned(ctx, input.ReplayID)
		if err != nil {
			return nil, GetReplayResult{}, err
		}
		doc, err := json.Marshal(rep)
		if err != nil {
			return nil, GetReplayResult{}, fmt.Errorf("marshal replay: %w", err)
		}
		return nil, GetReplayResult{
			ReplayID:     rep.ID,
			Game:         rep.ChallengeID,
			SessionID:    rep.GameID,
			Seed:         rep.Seed,
			Result:       rep.Result,
			Achievements: earned,
			Replay:       doc,
		}, nil
	}
}
