package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/coder/quartz"
)

// SQLite implements KV on the kv and zset tables (see assets/sql/001_kv.sql).
// Expiry deadlines are unix milliseconds taken from the injected clock.
type SQLite struct {
	db    *sql.DB
	clock quartz.Clock
}

// NewSQLiteStore wraps an opened, migrated database.
func NewSQLiteStore(db *sql.DB, clock quartz.Clock) *SQLite {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &SQLite{db: db, clock: clock}
}

func (s *SQLite) nowMs() int64 { return s.clock.Now().UnixMilli() }

func (s *SQLite) Get(ctx context.Context, key string) (string, bool, error) {
	var (
		value     string
		expiresAt sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `SELECT value, expires_at FROM kv WHERE key=?`, key).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if expiresAt.Valid && expiresAt.Int64 <= s.nowMs() {
		// Lazy purge; the sweep catches anything missed here.
		_, _ = s.db.ExecContext(ctx, `DELETE FROM kv WHERE key=? AND expires_at <= ?`, key, s.nowMs())
		return "", false, nil
	}
	return value, true, nil
}

func (s *SQLite) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, expires_at) VALUES (?, ?, NULL)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value, expires_at=NULL`,
		key, value,
	)
	return err
}

func (s *SQLite) Expire(ctx context.Context, key string, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx, `UPDATE kv SET expires_at=? WHERE key=?`,
		s.clock.Now().Add(ttl).UnixMilli(), key)
	return err
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key=?`, key)
	return err
}

// UpsertIfHigher relies on the conditional upsert touching zero rows when
// the stored score is already at least as high.
func (s *SQLite) UpsertIfHigher(ctx context.Context, setKey, member string, score float64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO zset (set_key, member, score) VALUES (?, ?, ?)
		ON CONFLICT(set_key, member) DO UPDATE SET score=excluded.score
		WHERE excluded.score > zset.score`,
		setKey, member, score,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLite) TopDescending(ctx context.Context, setKey string, n int) ([]Member, error) {
	if n <= 0 {
		return []Member{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT member, score FROM zset
		WHERE set_key=?
		ORDER BY score DESC, member ASC
		LIMIT ?`, setKey, n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Member, 0, n)
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.Member, &m.Score); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLite) ScoreOf(ctx context.Context, setKey, member string) (float64, bool, error) {
	var score float64
	err := s.db.QueryRowContext(ctx, `SELECT score FROM zset WHERE set_key=? AND member=?`, setKey, member).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return score, true, nil
}

// Sweep deletes every expired key.
func (s *SQLite) Sweep(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE expires_at IS NOT NULL AND expires_at <= ?`, s.nowMs())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
