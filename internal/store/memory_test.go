package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func match(winner string, scores map[string]int) Record {
	rec := Record{RoomID: "r", RoomName: "Arena", Mode: "classic", WinnerName: winner, StartedAt: time.Now(), FinishedAt: time.Now()}
	for name, sc := range scores {
		rec.Players = append(rec.Players, PlayerRecord{PlayerID: name, PlayerName: name, Score: sc, Won: name == winner})
	}
	return rec
}

func TestMemory_Leaderboard(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	st.SaveResult(ctx, match("alice", map[string]int{"alice": 30, "bob": 50}))
	st.SaveResult(ctx, match("bob", map[string]int{"alice": 10, "bob": 20}))
	st.SaveResult(ctx, match("Alice", map[string]int{"Alice": 40, "carol": 5}))

	got, err := st.Leaderboard(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("rows %d, want 3: %+v", len(got), got)
	}
	top := got[0]
	if top.PlayerName != "alice" || top.Wins != 2 || top.GamesPlayed != 3 || top.BestScore != 40 {
		t.Errorf("top row %+v", top)
	}
	if got[1].PlayerName != "bob" || got[2].PlayerName != "carol" {
		t.Errorf("order %+v", got)
	}

	limited, _ := st.Leaderboard(ctx, 1)
	if len(limited) != 1 {
		t.Errorf("limit ignored: %d rows", len(limited))
	}
}

func TestMemory_RejectsEmptyRecord(t *testing.T) {
	err := NewMemoryStore().SaveResult(context.Background(), Record{RoomID: "r"})
	if !errors.Is(err, ErrEmptyRecord) {
		t.Errorf("err %v, want ErrEmptyRecord", err)
	}
}
