// apps/go-server/internal/store/sqlite.go
//
// SQLite-backed Store. Expects the schema from assets/sql to be migrated.
// A saved match writes one games row, one game_players row per player and
// bumps games_played/wins/best_score for signed-in players, all in one tx.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type sqliteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an open, migrated database.
func NewSQLiteStore(db *sql.DB) Store {
	return &sqliteStore{db: db}
}

func (s *sqliteStore) SaveResult(ctx context.Context, rec Record) error {
	if len(rec.Players) == 0 {
		return ErrEmptyRecord
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	gameID := uuid.NewString()
	if _, err := tx.ExecContext(ctx, `
        INSERT INTO games (id, room_id, room_name, mode, winner_id, winner_name, started_at, finished_at)
        VALUES (?,?,?,?,?,?,?,?)`,
		gameID, rec.RoomID, rec.RoomName, rec.Mode,
		nullable(rec.WinnerID), nullable(rec.WinnerName),
		rec.StartedAt.UTC().Format(time.RFC3339), rec.FinishedAt.UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("insert game: %w", err)
	}

	for _, p := range rec.Players {
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO game_players (game_id, player_id, player_name, user_id, score, won)
            VALUES (?,?,?,?,?,?)`,
			gameID, p.PlayerID, p.PlayerName, nullable(p.UserID), p.Score, boolInt(p.Won),
		); err != nil {
			return fmt.Errorf("insert player %s: %w", p.PlayerID, err)
		}
		if p.UserID == "" {
			continue
		}
		if err := bumpStats(ctx, tx, p.UserID, p.Won, p.Score); err != nil {
			// A deleted account should not lose the match.
			log.Warn().Err(err).Str("user", p.UserID).Msg("bump stats")
		}
	}
	return tx.Commit()
}

// bumpStats increments games played, wins and best score within tx.
func bumpStats(ctx context.Context, tx *sql.Tx, userID string, won bool, score int) error {
	var gp, wins, best int
	row := tx.QueryRowContext(ctx, `SELECT games_played, wins, best_score FROM users WHERE id=?`, userID)
	if err := row.Scan(&gp, &wins, &best); err != nil {
		return err
	}
	gp++
	if won {
		wins++
	}
	best = max(best, score)
	_, err := tx.ExecContext(ctx, `UPDATE users SET games_played=?, wins=?, best_score=? WHERE id=?`, gp, wins, best, userID)
	return err
}

func (s *sqliteStore) Leaderboard(ctx context.Context, limit int) ([]LeaderRow, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT MIN(player_name), COUNT(1), SUM(won), MAX(score)
        FROM game_players
        GROUP BY lower(player_name)
        ORDER BY SUM(won) DESC, MAX(score) DESC, lower(player_name) ASC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]LeaderRow, 0, limit)
	for rows.Next() {
		var r LeaderRow
		if err := rows.Scan(&r.PlayerName, &r.GamesPlayed, &r.Wins, &r.BestScore); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
