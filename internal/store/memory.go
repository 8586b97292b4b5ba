// apps/go-server/internal/store/memory.go
//
// Results persistence for finished matches.
// Responsibilities:
//   - Define the Store interface the server writes final results to.
//   - In-memory implementation used when no database is configured and in tests.
//
// Characteristics:
//   - Concurrency-safe via RWMutex (concurrent leaderboard reads, exclusive writes).
//   - State is lost when the process restarts.

package store

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"
)

// ErrEmptyRecord is returned for a record with no players.
var ErrEmptyRecord = errors.New("store: record has no players")

const defaultLimit = 20

// Store defines the persistence interface for match results.
type Store interface {
	// SaveResult persists one finished match.
	SaveResult(ctx context.Context, rec Record) error

	// Leaderboard returns the best players, most wins first.
	Leaderboard(ctx context.Context, limit int) ([]LeaderRow, error)
}

// Record is one finished match.
type Record struct {
	RoomID     string
	RoomName   string
	Mode       string
	WinnerID   string
	WinnerName string
	StartedAt  time.Time
	FinishedAt time.Time
	Players    []PlayerRecord
}

// PlayerRecord is one player's line in a Record. UserID is set when the
// player was signed in.
type PlayerRecord struct {
	PlayerID   string
	PlayerName string
	UserID     string
	Score      int
	Won        bool
}

// LeaderRow aggregates results per display name.
type LeaderRow struct {
	PlayerName  string `json:"playerName"`
	GamesPlayed int    `json:"gamesPlayed"`
	Wins        int    `json:"wins"`
	BestScore   int    `json:"bestScore"`
}

// memory is an in-memory Store.
type memory struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{}
}

func (m *memory) SaveResult(ctx context.Context, rec Record) error {
	if len(rec.Players) == 0 {
		return ErrEmptyRecord
	}
	rec.Players = slices.Clone(rec.Players)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *memory) Leaderboard(ctx context.Context, limit int) ([]LeaderRow, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	m.mu.RLock()
	byName := map[string]*LeaderRow{}
	for _, rec := range m.records {
		for _, p := range rec.Players {
			key := strings.ToLower(p.PlayerName)
			row := byName[key]
			if row == nil {
				row = &LeaderRow{PlayerName: p.PlayerName}
				byName[key] = row
			}
			row.GamesPlayed++
			if p.Won {
				row.Wins++
			}
			row.BestScore = max(row.BestScore, p.Score)
		}
	}
	m.mu.RUnlock()

	out := make([]LeaderRow, 0, len(byName))
	for _, r := range byName {
		out = append(out, *r)
	}
	sortRows(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// sortRows orders by wins, then best score, then name.
func sortRows(rows []LeaderRow) {
	slices.SortFunc(rows, func(a, b LeaderRow) int {
		if c := cmp.Compare(b.Wins, a.Wins); c != 0 {
			return c
		}
		if c := cmp.Compare(b.BestScore, a.BestScore); c != 0 {
			return c
		}
		return cmp.Compare(strings.ToLower(a.PlayerName), strings.ToLower(b.PlayerName))
	})
}
