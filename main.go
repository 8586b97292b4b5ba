// apps/go-server/main.go
//
// Process entry for the arena server.
// Responsibilities:
//   - Load .env, configure zerolog, load the dictionary.
//   - Pick the results store: SQLite when DB_PATH is set, memory otherwise.
//   - Wire the room manager's final-results hook to the store.
//   - Serve HTTP + websockets and shut down cleanly on SIGINT/SIGTERM.

package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/snakeword/apps/go-server/assets"
	"github.com/robalobadob/snakeword/apps/go-server/internal/game"
	"github.com/robalobadob/snakeword/apps/go-server/internal/httpserver"
	"github.com/robalobadob/snakeword/apps/go-server/internal/room"
	"github.com/robalobadob/snakeword/apps/go-server/internal/store"
	"github.com/robalobadob/snakeword/apps/go-server/internal/words"
)

func main() {
	_ = godotenv.Load()
	if lvl, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	if err := words.Init(); err != nil {
		log.Fatal().Err(err).Msg("failed to load word list")
	}

	var db *sql.DB
	st := store.NewMemoryStore()
	if path := os.Getenv("DB_PATH"); path != "" {
		var err error
		if db, err = openDB(path); err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("open database")
		}
		defer db.Close()
		if err := migrate(db, assets.Migrations()); err != nil {
			log.Fatal().Err(err).Msg("migrate")
		}
		st = store.NewSQLiteStore(db)
	} else {
		log.Warn().Msg("DB_PATH not set; results kept in memory and accounts disabled")
	}

	rooms := room.NewManager(
		room.WithGameConfig(gameConfig()),
		room.WithResultHook(saveResult(st)),
		room.WithJanitor(envDuration("JANITOR_INTERVAL", 10*time.Minute), envDuration("IDLE_TIMEOUT", 30*time.Minute)),
	)

	srv := httpserver.New(rooms, st, db,
		httpserver.WithKeepAlive(envDuration("PING_INTERVAL", 30*time.Second), envInt("MAX_MISSED_PONGS", 2)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	janitorDone := make(chan struct{})
	go func() {
		defer close(janitorDone)
		rooms.Run(ctx)
	}()

	port := getEnv("PORT", "5175")
	hs := &http.Server{
		Addr:              ":" + port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("port", port).Msg("starting go-server")
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server exited")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	<-janitorDone // rooms closed, clients told why

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
}

// gameConfig is the default board with pacing overrides from the env.
func gameConfig() game.Config {
	cfg := game.DefaultConfig()
	cfg.GameSpeed = envInt("GAME_SPEED_MS", cfg.GameSpeed)
	if hz := envInt("BROADCAST_HZ", 20); hz > 0 {
		cfg.BroadcastInterval = time.Second / time.Duration(hz)
	}
	return cfg
}

// saveResult persists finished matches; failures are logged, not retried.
func saveResult(st store.Store) func(room.Summary) {
	return func(s room.Summary) {
		rec := store.Record{
			RoomID:     s.RoomID,
			RoomName:   s.RoomName,
			Mode:       string(s.Mode),
			WinnerID:   s.WinnerID,
			WinnerName: s.WinnerName,
			StartedAt:  s.StartedAt,
			FinishedAt: s.EndedAt,
		}
		for _, p := range s.Standings {
			rec.Players = append(rec.Players, store.PlayerRecord{
				PlayerID:   p.PlayerID,
				PlayerName: p.PlayerName,
				UserID:     p.AccountID,
				Score:      p.Score,
				Won:        p.Won,
			})
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.SaveResult(ctx, rec); err != nil {
			log.Error().Err(err).Str("room", s.RoomID).Msg("save result")
			return
		}
		log.Info().Str("room", s.RoomID).Str("winner", s.WinnerName).Int("players", len(rec.Players)).Msg("result saved")
	}
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(k)); err == nil {
		return n
	}
	return def
}

func envDuration(k string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(k)); err == nil && d > 0 {
		return d
	}
	return def
}
