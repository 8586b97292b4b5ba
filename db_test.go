package main

import (
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/robalobadob/snakeword/apps/go-server/assets"
)

func TestMigrate_IsIdempotent(t *testing.T) {
	db, err := openDB(filepath.Join(t.TempDir(), "data", "arena.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	for i := 0; i < 2; i++ {
		if err := migrate(db, assets.Migrations()); err != nil {
			t.Fatalf("migrate pass %d: %v", i+1, err)
		}
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(1) FROM _migrations`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("_migrations rows %d, want 1", n)
	}
	if _, err := db.Exec(`INSERT INTO games (id, room_id, room_name, mode, started_at, finished_at) VALUES ('g','r','n','classic','a','b')`); err != nil {
		t.Errorf("games table missing: %v", err)
	}
}

func TestMigrate_ReportsBrokenScript(t *testing.T) {
	db, err := openDB(filepath.Join(t.TempDir(), "x.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	bad := fstest.MapFS{"001_bad.sql": {Data: []byte("CREATE TABLE (;")}}
	if err := migrate(db, bad); err == nil {
		t.Fatal("broken migration applied without error")
	}
}
