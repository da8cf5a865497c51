// Package server parses server command flags and starts the game session
// runtime: storage, engines, room registry, MCP, and the spectator HTTP
// server.
package server

import (
	"context"
	"flag"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kibitz-games/kibitz/internal/achievement"
	"github.com/kibitz-games/kibitz/internal/event"
	"github.com/kibitz-games/kibitz/internal/game"
	"github.com/kibitz-games/kibitz/internal/game/chess"
	"github.com/kibitz-games/kibitz/internal/game/tictactoe"
	"github.com/kibitz-games/kibitz/internal/mcp"
	"github.com/kibitz-games/kibitz/internal/platform/config"
	"github.com/kibitz-games/kibitz/internal/platform/log"
	"github.com/kibitz-games/kibitz/internal/replay"
	"github.com/kibitz-games/kibitz/internal/room"
	"github.com/kibitz-games/kibitz/internal/session/service"
	"github.com/kibitz-games/kibitz/internal/storage/bbolt"
	"github.com/kibitz-games/kibitz/internal/storage/sqlite"
	"github.com/kibitz-games/kibitz/internal/transport"
)

// Config holds server command configuration.
type Config struct {
	Addr            string        `env:"KIBITZ_HTTP_ADDR" envDefault:":8080"`
	DBPath          string        `env:"KIBITZ_DB_PATH" envDefault:"kibitz.db"`
	ReplayDBPath    string        `env:"KIBITZ_REPLAY_DB_PATH" envDefault:"replays.db"`
	SessionTimeout  time.Duration `env:"KIBITZ_SESSION_TIMEOUT" envDefault:"1h"`
	RoomIdleTimeout time.Duration `env:"KIBITZ_ROOM_IDLE_TIMEOUT" envDefault:"30m"`
	BufferEvents    int           `env:"KIBITZ_BUFFER_EVENTS" envDefault:"100"`
	BufferRetention time.Duration `env:"KIBITZ_BUFFER_RETENTION" envDefault:"30m"`
	CleanupInterval time.Duration `env:"KIBITZ_CLEANUP_INTERVAL" envDefault:"1m"`
	LogLevel        string        `env:"KIBITZ_LOG_LEVEL" envDefault:"info"`
	// MCPStdio also serves MCP on stdin/stdout, for running the server as a
	// spawned agent subprocess.
	MCPStdio bool `env:"KIBITZ_MCP_STDIO"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the session database")
	fs.StringVar(&cfg.ReplayDBPath, "replay-db", cfg.ReplayDBPath, "Path to the replay archive database")
	fs.BoolVar(&cfg.MCPStdio, "mcp-stdio", cfg.MCPStdio, "Also serve MCP on stdio")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the game session runtime and blocks until the context ends.
func Run(ctx context.Context, cfg Config) error {
	log.Configure(log.Config{Level: cfg.LogLevel})
	logger := log.WithComponent("server")

	sessionStore, err := bbolt.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer sessionStore.Close()

	replayStore, err := sqlite.Open(cfg.ReplayDBPath)
	if err != nil {
		return err
	}
	defer replayStore.Close()

	games := game.NewRegistry()
	achievements := achievement.NewRegistry()
	for _, reg := range []struct {
		engine game.Engine
		defs   func() ([]achievement.Definition, error)
	}{
		{tictactoe.New(), tictactoe.Achievements},
		{chess.New(), chess.Achievements},
	} {
		if err := games.Register(reg.engine); err != nil {
			return err
		}
		defs, err := reg.defs()
		if err != nil {
			return err
		}
		if err := achievements.Register(reg.engine.Name(), defs...); err != nil {
			return err
		}
	}

	sessions, err := service.NewManager(service.Config{
		Store:   sessionStore,
		Timeout: cfg.SessionTimeout,
	})
	if err != nil {
		return err
	}

	buffer := event.NewBuffer(event.BufferConfig{
		MaxEventsPerSession: cfg.BufferEvents,
		Retention:           cfg.BufferRetention,
	})

	rooms := room.NewRegistry(room.Config{
		Sessions:     sessions,
		Games:        games,
		Achievements: achievement.NewEngine(achievements),
		Replayer: replay.NewEngine(games, replay.Options{
			VerifyStates:  true,
			VerifyAIMoves: true,
		}),
		Replays:     replayStore,
		Rooms:       sessionStore,
		Buffer:      buffer,
		IdleTimeout: cfg.RoomIdleTimeout,
	})
	defer rooms.Shutdown()

	mcpServer := mcp.New(mcp.Config{
		Rooms:        rooms,
		Games:        games,
		Achievements: achievements,
		Replays:      replayStore,
	})

	httpServer := transport.New(transport.Config{
		Addr:   cfg.Addr,
		Rooms:  rooms,
		Buffer: buffer,
		MCP:    mcpServer.HTTPHandler(),
	})

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return httpServer.Run(ctx)
	})
	if cfg.MCPStdio {
		group.Go(func() error {
			return mcpServer.RunStdio(ctx)
		})
	}
	group.Go(func() error {
		return runCleanup(ctx, cfg.CleanupInterval, sessions, buffer)
	})

	logger.Info().Str("addr", cfg.Addr).Msg("game session runtime started")
	return group.Wait()
}

// runCleanup periodically expires idle sessions and evicts stale buffer
// windows.
func runCleanup(ctx context.Context, interval time.Duration, sessions *service.Manager, buffer *event.Buffer) error {
	logger := log.WithComponent("cleanup")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			removed, err := sessions.Cleanup(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("session cleanup")
			}
			evicted := buffer.Cleanup()
			if removed > 0 || evicted > 0 {
				logger.Info().Int("sessions", removed).Int("buffers", evicted).Msg("cleanup pass")
			}
		}
	}
}
