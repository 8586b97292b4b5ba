// apps/go-server/internal/httpserver/server.go
//
// HTTP server wiring for the arena backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health", "/rooms", "/rooms/{idOrCode}", "/leaderboard".
//   - Websocket endpoint "/ws" (see ws.go), mounted outside the timeout group.
//   - Auth endpoints (see auth.go), only when a database is configured.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - chi's Timeout middleware would answer 504 on a hijacked websocket, so
//     it only wraps the plain JSON routes.

package httpserver

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/snakeword/apps/go-server/internal/protocol"
	"github.com/robalobadob/snakeword/apps/go-server/internal/room"
	"github.com/robalobadob/snakeword/apps/go-server/internal/store"
	"github.com/robalobadob/snakeword/apps/go-server/internal/words"
)

// Server bundles router, room manager, results store and DB handle.
type Server struct {
	r     *chi.Mux
	rooms *room.Manager
	store store.Store
	db    *sql.DB // nil disables accounts

	pingInterval   time.Duration
	maxMissedPongs int
}

// Option configures a Server.
type Option func(*Server)

// WithKeepAlive sets the websocket ping period and how many pongs may be
// missed before the connection is dropped.
func WithKeepAlive(interval time.Duration, missed int) Option {
	return func(s *Server) {
		if interval > 0 {
			s.pingInterval = interval
		}
		if missed > 0 {
			s.maxMissedPongs = missed
		}
	}
}

// New constructs a Server, installs middleware, and registers routes.
func New(rooms *room.Manager, st store.Store, db *sql.DB, opts ...Option) *Server {
	s := &Server{
		r:              chi.NewRouter(),
		rooms:          rooms,
		store:          st,
		db:             db,
		pingInterval:   30 * time.Second,
		maxMissedPongs: 2,
	}
	for _, o := range opts {
		o(s)
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID) // add X-Request-ID
	s.r.Use(chimw.RealIP)    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer) // recover from panics
	s.r.Use(corsFromEnv)     // credentials-friendly CORS

	// Realtime transport; lives as long as the socket does.
	s.r.Get("/ws", s.handleWS)

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
		r.Use(jsonContentType)                 // default JSON responses

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"service":"snakeword-go","endpoints":["/health","/rooms","/leaderboard","/ws","/auth/*"]}`))
		})
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"ok":    true,
				"rooms": len(s.rooms.ListPublicRooms()),
				"words": words.Size(),
			})
		})
		r.Get("/rooms", s.handleRooms)
		r.Get("/rooms/{ref}", s.handleRoom)
		r.Get("/leaderboard", s.handleLeaderboard)

		if s.db != nil {
			s.mountAuthRoutes(r)
		}

		// JSON 404 for easier debugging
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"not_found","path":"`+r.URL.Path+`"}`, http.StatusNotFound)
		})
	})

	return s
}

// Router exposes the internal router (useful for tests and http.Server).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// clientOrigin is CLIENT_ORIGIN, defaulting to the dev client.
func clientOrigin() string {
	return getEnv("CLIENT_ORIGIN", "http://localhost:5173")
}

// corsFromEnv enables credentialed CORS for a single origin.
func corsFromEnv(next http.Handler) http.Handler {
	origin := clientOrigin()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ------------------------------- lobby -------------------------------------

// handleRooms lists joinable public rooms, same rows as room_list_response.
func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(summaries(s.rooms.ListPublicRooms()))
}

// handleRoom looks a room up by id or join code, private rooms included,
// so a client can check a code before sending join_room.
func (s *Server) handleRoom(w http.ResponseWriter, r *http.Request) {
	info, ok := s.rooms.Room(chi.URLParam(r, "ref"))
	if !ok {
		http.Error(w, `{"error":"room_not_found"}`, http.StatusNotFound)
		return
	}
	_ = json.NewEncoder(w).Encode(info.Summary())
}

func summaries(infos []room.Info) []protocol.RoomSummary {
	out := make([]protocol.RoomSummary, 0, len(infos))
	for _, i := range infos {
		out = append(out, i.Summary())
	}
	return out
}

// handleLeaderboard returns the top players; ?limit= caps the rows (max 100).
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = min(v, 100)
	}
	rows, err := s.store.Leaderboard(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("leaderboard")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(rows)
}

// ------------------------------- small util --------------------------------

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
