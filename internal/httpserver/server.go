// apps/go-server/internal/httpserver/server.go
//
// HTTP server wiring for the darts backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs, access log).
//   - Public endpoints: "/", "/health".
//   - Table endpoints (optional auth): mounted under /tables/{tableID}.
//   - Auth + history endpoints: /auth/*, /rounds/mine.
//   - Tagged JSON results: {"ok":true,"data":...} or {"ok":false,"error":...,"reason":...}.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - The websocket feed is mounted outside the request timeout.

package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/quartz"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/robalobadob/darts/apps/go-server/internal/game"
	"github.com/robalobadob/darts/apps/go-server/internal/leaderboard"
	"github.com/robalobadob/darts/apps/go-server/internal/rounds"
	"github.com/robalobadob/darts/apps/go-server/internal/session"
)

// Options are the HTTP-facing settings.
type Options struct {
	JWTSecret       string
	JWTExpiresDays  int
	CookieName      string
	ClientOrigin    string
	SecureCookies   bool
	LeaderboardSize int
	RequestTimeout  time.Duration
}

func (o *Options) defaults() {
	if o.JWTSecret == "" {
		o.JWTSecret = "dev_secret_change_me"
	}
	if o.JWTExpiresDays <= 0 {
		o.JWTExpiresDays = 14
	}
	if o.CookieName == "" {
		o.CookieName = "darts_token"
	}
	if o.ClientOrigin == "" {
		o.ClientOrigin = "http://localhost:5173"
	}
	if o.LeaderboardSize <= 0 {
		o.LeaderboardSize = 10
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 10 * time.Second
	}
}

// Deps are the collaborators the handlers call into.
type Deps struct {
	Sessions    *session.Manager
	Leaderboard *leaderboard.Service
	Rounds      *rounds.Store
	DB          *sql.DB // users table
	Hub         *Hub
	Clock       quartz.Clock
	Logger      zerolog.Logger
}

// Server bundles the router and its collaborators.
type Server struct {
	r        *chi.Mux
	opts     Options
	sessions *session.Manager
	lb       *leaderboard.Service
	rounds   *rounds.Store
	db       *sql.DB
	hub      *Hub
	clock    quartz.Clock
	log      zerolog.Logger
}

// New constructs a Server, installs middleware, and registers routes.
func New(d Deps, opts Options) *Server {
	opts.defaults()
	if d.Clock == nil {
		d.Clock = quartz.NewReal()
	}
	s := &Server{
		r:        chi.NewRouter(),
		opts:     opts,
		sessions: d.Sessions,
		lb:       d.Leaderboard,
		rounds:   d.Rounds,
		db:       d.DB,
		hub:      d.Hub,
		clock:    d.Clock,
		log:      d.Logger.With().Str("component", "http").Logger(),
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID)        // add X-Request-ID
	s.r.Use(chimw.RealIP)           // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(hlog.NewHandler(s.log)) // request-scoped logger
	s.r.Use(accessLog)
	s.r.Use(chimw.Recoverer) // recover from panics
	s.r.Use(s.cors)          // credentials-friendly CORS

	// Live leaderboard feed; long-lived, so no request timeout.
	if s.hub != nil {
		s.r.With(validTable).Get("/tables/{tableID}/leaderboard/ws", s.handleLeaderboardWS)
	}

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(opts.RequestTimeout))
		r.Use(jsonContentType)

		// --- diagnostics ---
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			writeOK(w, http.StatusOK, map[string]any{
				"service": "darts-go",
				"endpoints": []string{
					"/health",
					"POST /tables/{tableID}/game/new",
					"GET /tables/{tableID}/game",
					"POST /tables/{tableID}/game/throw",
					"GET /tables/{tableID}/leaderboard",
					"/auth/*",
					"GET /rounds/mine",
				},
			})
		})
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeOK(w, http.StatusOK, map[string]bool{"up": true})
		})

		// Table endpoints: OPTIONAL AUTH (guests can play)
		r.With(s.withOptionalAuth()).Route("/tables/{tableID}", s.mountTable)

		s.mountAuthRoutes(r)

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeErr(w, http.StatusNotFound, "not_found", r.URL.Path)
		})
	})

	return s
}

// Handler exposes the router (used by main and tests).
func (s *Server) Handler() http.Handler { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for the configured client origin.
func (s *Server) cors(next http.Handler) http.Handler {
	origin := s.opts.ClientOrigin
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Expose-Headers", "Retry-After")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

var accessLog = hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
	hlog.FromRequest(r).Debug().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("request_id", chimw.GetReqID(r.Context())).
		Int("status", status).
		Int("size", size).
		Dur("took", d).
		Msg("request")
})

// ------------------------------- results -----------------------------------

type okBody struct {
	OK   bool `json:"ok"`
	Data any  `json:"data"`
}

type errBody struct {
	OK           bool   `json:"ok"`
	Error        string `json:"error"`
	Reason       string `json:"reason"`
	RetryAfterMs int64  `json:"retryAfterMs,omitempty"`
}

func writeOK(w http.ResponseWriter, status int, data any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(okBody{OK: true, Data: data})
}

func writeErr(w http.ResponseWriter, status int, code, reason string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errBody{Error: code, Reason: reason})
}

// fail maps a domain error onto a status code and tagged error body.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var tooFast *game.TooFastError
	switch {
	case errors.As(err, &tooFast):
		secs := int(math.Ceil(tooFast.RetryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(errBody{
			Error:        "too_fast",
			Reason:       err.Error(),
			RetryAfterMs: tooFast.RetryAfter.Milliseconds(),
		})
	case errors.Is(err, game.ErrValidation):
		writeErr(w, http.StatusBadRequest, "validation", err.Error())
	case errors.Is(err, game.ErrNoActiveSession):
		writeErr(w, http.StatusNotFound, "no_active_session", err.Error())
	case errors.Is(err, game.ErrRoundComplete):
		writeErr(w, http.StatusConflict, "round_complete", err.Error())
	case errors.Is(err, game.ErrSessionMismatch):
		writeErr(w, http.StatusConflict, "session_mismatch", err.Error())
	case errors.Is(err, game.ErrStoreUnavailable):
		hlog.FromRequest(r).Error().Err(err).Msg("store unavailable")
		writeErr(w, http.StatusServiceUnavailable, "store_unavailable", "storage is temporarily unavailable")
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("unhandled error")
		writeErr(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
