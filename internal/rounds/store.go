// Package rounds keeps an audit log of completed rounds and the per-user
// stats derived from them.
package rounds

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// GuestPrefix marks player ids minted for anonymous players. Only rounds
// under such ids can be claimed into an account.
const GuestPrefix = "anon-"

// Round is one finished session. Seed is stored so the round can be
// replayed from the recorded inputs.
type Round struct {
	ID         string    `json:"id"`
	TableID    string    `json:"tableId"`
	PlayerID   string    `json:"playerId"`
	PlayerName string    `json:"player"`
	Seed       uint32    `json:"seed"`
	DartsTotal int       `json:"dartsTotal"`
	Score      int       `json:"score"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// timeLayout sorts lexically in chronological order.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Store reads and writes the rounds table.
type Store struct{ db *sql.DB }

// NewStore returns a Store on an already migrated database.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Record inserts r and, when the player is a registered user, bumps their
// rounds_played and best_score in the same transaction. Recording the same
// round twice is ignored.
func (s *Store) Record(ctx context.Context, r Round) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO rounds
			(id, table_id, player_id, player_name, seed, darts_total, score, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.TableID, r.PlayerID, r.PlayerName, int64(r.Seed), r.DartsTotal, r.Score,
		r.StartedAt.UTC().Format(timeLayout), r.FinishedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return tx.Commit()
	}

	// Guests have no users row; the update simply matches nothing.
	if _, err := tx.ExecContext(ctx, `
		UPDATE users
		SET rounds_played = rounds_played + 1,
		    best_score = MAX(best_score, ?)
		WHERE id=?`, r.Score, r.PlayerID,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// ListByPlayer returns the player's most recent rounds, newest first.
func (s *Store) ListByPlayer(ctx context.Context, playerID string, limit int) ([]Round, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, table_id, player_id, player_name, seed, darts_total, score, started_at, finished_at
		FROM rounds
		WHERE player_id=?
		ORDER BY finished_at DESC
		LIMIT ?`, playerID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Round{}
	for rows.Next() {
		var (
			r                 Round
			seed              int64
			started, finished string
		)
		if err := rows.Scan(&r.ID, &r.TableID, &r.PlayerID, &r.PlayerName, &seed, &r.DartsTotal, &r.Score, &started, &finished); err != nil {
			return nil, err
		}
		r.Seed = uint32(seed)
		r.StartedAt, _ = time.Parse(timeLayout, started)
		r.FinishedAt, _ = time.Parse(timeLayout, finished)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Claim moves rounds recorded under a guest id to a registered user and
// folds them into the user's stats. It returns the number of rounds moved.
// Ids without GuestPrefix are never claimable.
func (s *Store) Claim(ctx context.Context, anonID, userID string) (int, error) {
	if !strings.HasPrefix(anonID, GuestPrefix) || len(anonID) == len(GuestPrefix) || userID == "" || anonID == userID {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var n, best int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(1), COALESCE(MAX(score), 0) FROM rounds WHERE player_id=? AND player_id LIKE 'anon-%'`, anonID,
	).Scan(&n, &best); err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	if _, err := tx.ExecContext(ctx, `UPDATE rounds SET player_id=? WHERE player_id=? AND player_id LIKE 'anon-%'`, userID, anonID); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE users
		SET rounds_played = rounds_played + ?,
		    best_score = MAX(best_score, ?)
		WHERE id=?`, n, best, userID,
	); err != nil {
		return 0, err
	}
	return n, tx.Commit()
}
