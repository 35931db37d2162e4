// apps/go-server/internal/httpserver/routes_tables.go
//
// HTTP routes for one darts table. Exposes, under /tables/{tableID}:
//   - POST /game/new       → start (or restart) the caller's session
//   - GET  /game           → the caller's current session, or null
//   - POST /game/throw     → resolve one throw
//   - GET  /leaderboard    → top scores for the table (?limit=)
//
// The caller is the authenticated user when a valid token is present,
// otherwise the anonymous cookie id.

package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"regexp"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/robalobadob/darts/apps/go-server/internal/game"
	"github.com/robalobadob/darts/apps/go-server/internal/leaderboard"
	"github.com/robalobadob/darts/apps/go-server/internal/session"
)

const maxLeaderboardLimit = 100

var tableIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// mountTable registers the per-table routes.
func (s *Server) mountTable(r chi.Router) {
	r.Use(validTable)
	r.Post("/game/new", s.handleNewGame)
	r.Get("/game", s.handleGetGame)
	r.Post("/game/throw", s.handleThrow)
	r.Get("/leaderboard", s.handleLeaderboard)
}

// validTable rejects malformed table ids before any handler runs.
func validTable(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !tableIDPattern.MatchString(chi.URLParam(r, "tableID")) {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			writeErr(w, http.StatusBadRequest, "validation", "table id must be 1-64 letters, digits, '_' or '-'")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// player identifies the caller for session and leaderboard purposes.
func (s *Server) player(w http.ResponseWriter, r *http.Request) leaderboard.Player {
	if me := userFrom(r); me != nil {
		return leaderboard.Player{ID: me.ID, Name: me.Username}
	}
	return leaderboard.Player{ID: s.ensureAnonID(w, r)}
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<16))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return game.Invalid("malformed JSON body: %v", err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// /game/new

type newGameReq struct {
	DartsTotal *int `json:"dartsTotal"`
}

func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	var req newGameReq
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	darts := s.sessions.Config().DefaultDarts
	if req.DartsTotal != nil {
		darts = *req.DartsTotal
	}

	sess, err := s.sessions.New(r.Context(), chi.URLParam(r, "tableID"), s.player(w, r), darts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, sess.View())
}

// -----------------------------------------------------------------------------
// /game

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	p := s.player(w, r)
	sess, err := s.sessions.Resume(r.Context(), chi.URLParam(r, "tableID"), p.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if sess == nil {
		writeOK(w, http.StatusOK, nil)
		return
	}
	writeOK(w, http.StatusOK, sess.View())
}

// -----------------------------------------------------------------------------
// /game/throw

type throwReq struct {
	SessionID       string   `json:"sessionId"`
	AimX            *float64 `json:"aimX"`
	AimY            *float64 `json:"aimY"`
	Radius          *float64 `json:"radius"`
	ClientElapsedMs *float64 `json:"clientElapsedMs"`
}

func (req throwReq) validate() (session.ThrowRequest, error) {
	switch {
	case req.SessionID == "":
		return session.ThrowRequest{}, game.Invalid("sessionId is required")
	case req.AimX == nil || req.AimY == nil:
		return session.ThrowRequest{}, game.Invalid("aimX and aimY are required")
	case req.Radius == nil:
		return session.ThrowRequest{}, game.Invalid("radius is required")
	}
	in := game.ThrowInput{AimX: *req.AimX, AimY: *req.AimY, Radius: *req.Radius}
	if req.ClientElapsedMs != nil {
		in.ElapsedMs = *req.ClientElapsedMs
	}
	return session.ThrowRequest{SessionID: req.SessionID, Input: in}, nil
}

func (s *Server) handleThrow(w http.ResponseWriter, r *http.Request) {
	var body throwReq
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	req, err := body.validate()
	if err != nil {
		s.fail(w, r, err)
		return
	}

	rec, err := s.sessions.Throw(r.Context(), chi.URLParam(r, "tableID"), s.player(w, r), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, rec)
}

// -----------------------------------------------------------------------------
// /leaderboard

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := s.opts.LeaderboardSize
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxLeaderboardLimit {
			s.fail(w, r, game.Invalid("limit must be an integer in [1, %d]", maxLeaderboardLimit))
			return
		}
		limit = n
	}

	top, err := s.lb.Top(r.Context(), chi.URLParam(r, "tableID"), limit)
	if err != nil {
		s.fail(w, r, errors.Join(game.ErrStoreUnavailable, err))
		return
	}
	writeOK(w, http.StatusOK, top)
}
