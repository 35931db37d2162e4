// apps/go-server/internal/httpserver/auth.go
//
// Accounts, tokens and cookies.
// Responsibilities:
//   - /auth/signup, /auth/login, /auth/logout, /auth/me and /rounds/mine.
//   - HS256 JWTs carried in a cookie or an Authorization: Bearer header.
//   - Optional auth (guests allowed) and required auth middleware.
//   - Signed anonymous cookie ids for guests; guest rounds are claimed on login.
//   - User rows: bcrypt hashes, lookup, validation.

package httpserver

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"
	"golang.org/x/crypto/bcrypt"

	"github.com/robalobadob/darts/apps/go-server/internal/game"
	"github.com/robalobadob/darts/apps/go-server/internal/rounds"
)

const (
	anonCookieName = "darts_anon"
	anonCookieTTL  = 180 * 24 * time.Hour
	recentRounds   = 50
)

var errUsernameTaken = errors.New("username taken")

// authUser is placed into request context by the auth middleware.
type authUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// ctxUserKey is the context key type for storing authUser.
type ctxUserKey struct{}

func userFrom(r *http.Request) *authUser {
	u, _ := r.Context().Value(ctxUserKey{}).(*authUser)
	return u
}

// mountAuthRoutes registers authentication and gated routes.
func (s *Server) mountAuthRoutes(r chi.Router) {
	r.Post("/auth/signup", s.handleSignup)
	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth())
		r.Get("/auth/me", s.handleMe)
		r.Get("/rounds/mine", s.handleMyRounds)
	})
}

// ------------------------------- handlers ----------------------------------

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleSignup creates a user, signs a JWT, sets the auth cookie, and claims guest rounds.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	u, err := s.createUser(r.Context(), body.Username, body.Password)
	switch {
	case errors.Is(err, errUsernameTaken):
		writeErr(w, http.StatusConflict, "username_taken", "username taken")
		return
	case err != nil:
		s.fail(w, r, err)
		return
	}
	if !s.issueToken(w, r, u) {
		return
	}
	s.claimAnonRounds(r, u.ID)
	writeOK(w, http.StatusCreated, u.public())
}

// handleLogin authenticates a user, sets the cookie, and claims guest rounds.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	u, err := s.findUserByUsername(r.Context(), normalizeUsername(body.Username))
	if err != nil || !checkPassword(u.PasswordHash, body.Password) {
		writeErr(w, http.StatusUnauthorized, "unauthorized", "invalid username or password")
		return
	}
	if !s.issueToken(w, r, u) {
		return
	}
	s.claimAnonRounds(r, u.ID)
	writeOK(w, http.StatusOK, u.public())
}

// handleLogout clears the auth cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearAuthCookie(w)
	writeOK(w, http.StatusOK, nil)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.findUserByID(r.Context(), userFrom(r).ID)
	if err != nil {
		writeErr(w, http.StatusNotFound, "not_found", "user not found")
		return
	}
	writeOK(w, http.StatusOK, u.public())
}

// handleMyRounds lists the caller's most recent completed rounds, seeds included.
func (s *Server) handleMyRounds(w http.ResponseWriter, r *http.Request) {
	list, err := s.rounds.ListByPlayer(r.Context(), userFrom(r).ID, recentRounds)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("list rounds")
		writeErr(w, http.StatusInternalServerError, "db_error", "could not load rounds")
		return
	}
	writeOK(w, http.StatusOK, list)
}

func (s *Server) issueToken(w http.ResponseWriter, r *http.Request, u *userRow) bool {
	tok, exp, err := s.signJWT(u.ID, u.Username)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("sign token")
		writeErr(w, http.StatusInternalServerError, "sign_failed", "could not sign token")
		return false
	}
	s.setAuthCookie(w, tok, exp)
	return true
}

// claimAnonRounds attaches a guest's recorded rounds to the account (best effort).
func (s *Server) claimAnonRounds(r *http.Request, userID string) {
	anonID := s.anonIDFrom(r)
	if anonID == "" {
		return
	}
	n, err := s.rounds.Claim(r.Context(), anonID, userID)
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("claim anon rounds")
		return
	}
	if n > 0 {
		hlog.FromRequest(r).Info().Int("rounds", n).Str("user", userID).Msg("claimed anon rounds")
	}
}

// --------------------------- auth middleware --------------------------------

// withOptionalAuth decorates requests with user context if a valid JWT is present.
// It never 401s; used for routes where guests are allowed.
func (s *Server) withOptionalAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if u, err := s.authenticate(r); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), ctxUserKey{}, u))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requireAuth enforces a valid JWT and injects authUser into request context.
func (s *Server) requireAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, err := s.authenticate(r)
			if err != nil {
				writeErr(w, http.StatusUnauthorized, "unauthorized", err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxUserKey{}, u)))
		})
	}
}

// authenticate validates the request's token and checks the user still exists.
func (s *Server) authenticate(r *http.Request) (*authUser, error) {
	tokenStr := s.bearerOrCookie(r)
	if tokenStr == "" {
		return nil, errors.New("missing token")
	}
	claims, err := s.parseJWT(tokenStr)
	if err != nil {
		return nil, errors.New("invalid token")
	}
	id, _ := claims["id"].(string)
	username, _ := claims["username"].(string)
	if id == "" || username == "" {
		return nil, errors.New("invalid token")
	}
	if _, err := s.findUserByID(r.Context(), id); err != nil {
		return nil, errors.New("invalid token")
	}
	return &authUser{ID: id, Username: username}, nil
}

// ensureAnonID returns the guest id from a valid anon cookie, or mints a
// new id and sets its signed cookie. Tampered cookies are replaced.
func (s *Server) ensureAnonID(w http.ResponseWriter, r *http.Request) string {
	if id := s.anonIDFrom(r); id != "" {
		return id
	}
	id := rounds.GuestPrefix + uuid.NewString()
	tok, err := s.signAnon(id)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("sign anon cookie")
		return id
	}
	http.SetCookie(w, s.cookie(anonCookieName, tok, s.clock.Now().Add(anonCookieTTL)))
	return id
}

// anonIDFrom returns the guest id carried by a verified anon cookie, or "".
func (s *Server) anonIDFrom(r *http.Request) string {
	c, err := r.Cookie(anonCookieName)
	if err != nil || c.Value == "" {
		return ""
	}
	return s.parseAnon(c.Value)
}

func (s *Server) parseAnon(tok string) string {
	claims, err := s.parseJWT(tok)
	if err != nil {
		return ""
	}
	id, _ := claims["anon"].(string)
	if !strings.HasPrefix(id, rounds.GuestPrefix) || len(id) == len(rounds.GuestPrefix) {
		return ""
	}
	return id
}

// ------------------------------ JWT & cookies ------------------------------

// signJWT creates an HS256 JWT with id/username and the configured expiry.
func (s *Server) signJWT(id, username string) (string, time.Time, error) {
	now := s.clock.Now()
	exp := now.Add(time.Duration(s.opts.JWTExpiresDays) * 24 * time.Hour)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":       id,
		"username": username,
		"exp":      exp.Unix(),
		"iat":      now.Unix(),
	})
	ss, err := t.SignedString([]byte(s.opts.JWTSecret))
	return ss, exp, err
}

// signAnon signs a guest id for the anon cookie. The token carries no
// id/username claims, so it never authenticates as a user.
func (s *Server) signAnon(id string) (string, error) {
	now := s.clock.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"anon": id,
		"exp":  now.Add(anonCookieTTL).Unix(),
		"iat":  now.Unix(),
	})
	return t.SignedString([]byte(s.opts.JWTSecret))
}

// parseJWT verifies an HS256 token signed with the server secret.
func (s *Server) parseJWT(tokenStr string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims,
		func(t *jwt.Token) (interface{}, error) { return []byte(s.opts.JWTSecret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func (s *Server) cookie(name, value string, exp time.Time) *http.Cookie {
	sameSite := http.SameSiteLaxMode
	if s.opts.SecureCookies {
		sameSite = http.SameSiteNoneMode // required for third-party contexts when Secure
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: sameSite,
		Expires:  exp,
	}
}

func (s *Server) setAuthCookie(w http.ResponseWriter, token string, exp time.Time) {
	http.SetCookie(w, s.cookie(s.opts.CookieName, token, exp))
}

func (s *Server) clearAuthCookie(w http.ResponseWriter) {
	c := s.cookie(s.opts.CookieName, "", time.Time{})
	c.MaxAge = -1
	http.SetCookie(w, c)
}

// bearerOrCookie extracts a bearer token from Authorization header or auth cookie.
func (s *Server) bearerOrCookie(r *http.Request) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(s.opts.CookieName); err == nil {
		return c.Value
	}
	return ""
}

// ------------------------------- users --------------------------------------

// userRow matches the users table shape.
type userRow struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	RoundsPlayed int
	BestScore    int
}

func (u *userRow) public() map[string]any {
	return map[string]any{
		"id":           u.ID,
		"username":     u.Username,
		"createdAt":    u.CreatedAt,
		"roundsPlayed": u.RoundsPlayed,
		"bestScore":    u.BestScore,
	}
}

// createUser validates input, checks uniqueness, hashes the password, and inserts a user.
func (s *Server) createUser(ctx context.Context, username, pw string) (*userRow, error) {
	username = normalizeUsername(username)
	if err := validateSignup(username, pw); err != nil {
		return nil, err
	}
	if _, err := s.findUserByUsername(ctx, username); err == nil {
		return nil, errUsernameTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &userRow{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(h),
		CreatedAt:    s.clock.Now().UTC().Truncate(time.Second),
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, created_at) VALUES (?,?,?,?)`,
		u.ID, u.Username, u.PasswordHash, u.CreatedAt.Format(time.RFC3339)); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Server) findUserByUsername(ctx context.Context, username string) (*userRow, error) {
	return scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, created_at, rounds_played, best_score
		FROM users WHERE username=?`, username))
}

func (s *Server) findUserByID(ctx context.Context, id string) (*userRow, error) {
	return scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, created_at, rounds_played, best_score
		FROM users WHERE id=?`, id))
}

func scanUser(row *sql.Row) (*userRow, error) {
	var u userRow
	var created string
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &created, &u.RoundsPlayed, &u.BestScore); err != nil {
		return nil, err
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return &u, nil
}

func checkPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

func normalizeUsername(u string) string {
	return strings.TrimSpace(u)
}

// validateSignup enforces basic username/password rules. Usernames double
// as leaderboard display names.
func validateSignup(u, p string) error {
	if len(u) < 3 || len(u) > 24 {
		return game.Invalid("username must be 3-24 chars")
	}
	for _, r := range u {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return game.Invalid("username: letters, numbers, underscore only")
		}
	}
	if len(p) < 8 || len(p) > 72 {
		return game.Invalid("password must be 8-72 chars")
	}
	return nil
}
