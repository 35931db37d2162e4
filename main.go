// apps/go-server/main.go
//
// Entry point for the darts server.
// Responsibilities:
//   - Load .env, parse flags/env into CLI, configure zerolog.
//   - Open and migrate SQLite (users, rounds, and the sqlite KV backend).
//   - Wire store → leaderboard → sessions → HTTP server.
//   - Run the HTTP server and the expiry sweeper until SIGINT/SIGTERM.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/coder/quartz"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/robalobadob/darts/apps/go-server/internal/game"
	"github.com/robalobadob/darts/apps/go-server/internal/httpserver"
	"github.com/robalobadob/darts/apps/go-server/internal/leaderboard"
	"github.com/robalobadob/darts/apps/go-server/internal/rounds"
	"github.com/robalobadob/darts/apps/go-server/internal/session"
	"github.com/robalobadob/darts/apps/go-server/internal/store"
)

// CLI is the server configuration. Every flag can also come from the environment.
type CLI struct {
	Port     int    `help:"HTTP listen port." default:"5175" env:"PORT"`
	LogLevel string `help:"Log level (trace, debug, info, warn, error)." default:"info" env:"LOG_LEVEL"`
	Pretty   bool   `help:"Human-readable console logs." env:"LOG_PRETTY"`

	Store  string `help:"Session and leaderboard backend." enum:"memory,sqlite" default:"sqlite" env:"STORE"`
	DBPath string `help:"SQLite database file." default:"./data/darts.db" env:"DB_PATH" type:"path"`

	JWTSecret      string `help:"HMAC secret for auth tokens." default:"dev_secret_change_me" env:"JWT_SECRET"`
	JWTExpiresDays int    `help:"Auth token lifetime in days." default:"14" env:"JWT_EXPIRES_DAYS"`
	CookieName     string `help:"Auth cookie name." default:"darts_token" env:"COOKIE_NAME"`
	ClientOrigin   string `help:"Allowed CORS origin." default:"http://localhost:5173" env:"CLIENT_ORIGIN"`
	SecureCookies  bool   `help:"Mark cookies Secure and SameSite=None." env:"SECURE_COOKIES"`

	ThrowCooldown   time.Duration `help:"Minimum gap between accepted throws." default:"500ms" env:"THROW_COOLDOWN"`
	DefaultDarts    int           `help:"Darts per round when the client does not say." default:"10" env:"DEFAULT_DARTS"`
	HistoryCap      int           `help:"Throws kept in a session's history." default:"50" env:"HISTORY_CAP"`
	SessionTTL      time.Duration `help:"Idle session expiry." default:"168h" env:"SESSION_TTL"`
	LeaderboardSize int           `help:"Default leaderboard length." default:"10" env:"LEADERBOARD_SIZE"`
	SweepInterval   time.Duration `help:"How often expired keys are purged (0 disables)." default:"5m" env:"SWEEP_INTERVAL"`
}

func main() {
	_ = godotenv.Load()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("darts-server"),
		kong.Description("Authoritative darts throw resolution and leaderboards."),
	)

	logger := setupLogger(cli.LogLevel, cli.Pretty)
	log.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kctx.FatalIfErrorf(run(ctx, &cli, logger))
}

// setupLogger builds the process logger at the requested level.
func setupLogger(level string, pretty bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if pretty {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func run(ctx context.Context, cli *CLI, logger zerolog.Logger) error {
	clock := quartz.NewReal()

	db, err := openDatabase(cli.DBPath, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	var kv interface {
		store.KV
		store.Sweeper
	}
	switch cli.Store {
	case "memory":
		kv = store.NewMemoryStore(clock)
	default:
		kv = store.NewSQLiteStore(db, clock)
	}

	hub := httpserver.NewHub(cli.ClientOrigin, logger)
	lb := leaderboard.New(kv, logger,
		leaderboard.WithNotifier(hub),
		leaderboard.WithPreviewSize(cli.LeaderboardSize),
	)
	rs := rounds.NewStore(db)
	sessions := session.NewManager(kv, lb, clock, logger, session.Config{
		Rules:        game.Rules{Cooldown: cli.ThrowCooldown, HistoryCap: cli.HistoryCap},
		DefaultDarts: cli.DefaultDarts,
		TTL:          cli.SessionTTL,
	}, session.WithRecorder(rs))

	srv := httpserver.New(httpserver.Deps{
		Sessions:    sessions,
		Leaderboard: lb,
		Rounds:      rs,
		DB:          db,
		Hub:         hub,
		Clock:       clock,
		Logger:      logger,
	}, httpserver.Options{
		JWTSecret:       cli.JWTSecret,
		JWTExpiresDays:  cli.JWTExpiresDays,
		CookieName:      cli.CookieName,
		ClientOrigin:    cli.ClientOrigin,
		SecureCookies:   cli.SecureCookies,
		LeaderboardSize: cli.LeaderboardSize,
	})

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cli.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Int("port", cli.Port).Str("store", cli.Store).Msg("starting go-server")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info().Msg("shutting down")
		return httpSrv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return store.RunSweeper(gctx, kv, clock, cli.SweepInterval, logger)
	})

	err = g.Wait()
	lb.Wait()
	return err
}
