package store

import (
	"context"
	"database/sql"
	"io/fs"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/robalobadob/snakeword/apps/go-server/assets"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema, err := fs.ReadFile(assets.Migrations(), "001_init.sql")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		t.Fatalf("schema: %v", err)
	}
	return db
}

func TestSQLite_SaveResultBumpsAccountStats(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	if _, err := db.Exec(`INSERT INTO users (id, username, password_hash, created_at) VALUES ('u1','alice','x',?)`,
		time.Now().UTC().Format(time.RFC3339)); err != nil {
		t.Fatal(err)
	}
	st := NewSQLiteStore(db)

	rec := match("alice", map[string]int{"alice": 30, "bob": 50})
	for i := range rec.Players {
		if rec.Players[i].PlayerName == "alice" {
			rec.Players[i].UserID = "u1"
		}
	}
	if err := st.SaveResult(ctx, rec); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	if err := st.SaveResult(ctx, match("bob", map[string]int{"alice": 10, "bob": 20})); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	var gp, wins, best int
	if err := db.QueryRow(`SELECT games_played, wins, best_score FROM users WHERE id='u1'`).Scan(&gp, &wins, &best); err != nil {
		t.Fatal(err)
	}
	if gp != 1 || wins != 1 || best != 30 {
		t.Errorf("stats gp=%d wins=%d best=%d, want 1/1/30", gp, wins, best)
	}

	rows, err := st.Leaderboard(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows %+v", rows)
	}
	// one win each; bob's 50 beats alice's 30
	if rows[0].PlayerName != "bob" || rows[0].BestScore != 50 || rows[0].GamesPlayed != 2 {
		t.Errorf("first row %+v", rows[0])
	}
}
