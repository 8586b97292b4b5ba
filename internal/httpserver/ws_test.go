package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/robalobadob/snakeword/apps/go-server/internal/game"
	"github.com/robalobadob/snakeword/apps/go-server/internal/room"
	"github.com/robalobadob/snakeword/apps/go-server/internal/store"
)

func newTestServer(t *testing.T, opts ...Option) (*httptest.Server, *room.Manager) {
	t.Helper()
	cfg := game.DefaultConfig()
	cfg.GameSpeed = 3_600_000 // keep matches frozen
	rooms := room.NewManager(room.WithGameConfig(cfg))
	srv := New(rooms, store.NewMemoryStore(), nil, opts...)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		ts.Close()
		rooms.Close()
	})
	return ts, rooms
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, ts *httptest.Server) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(v map[string]any) {
	c.t.Helper()
	if err := c.conn.WriteJSON(v); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

// expect reads until a frame of type typ arrives, skipping others.
func (c *wsClient) expect(typ string) map[string]any {
	c.t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		_ = c.conn.SetReadDeadline(deadline)
		var m map[string]any
		if err := c.conn.ReadJSON(&m); err != nil {
			c.t.Fatalf("waiting for %s: %v", typ, err)
		}
		if m["type"] == typ {
			return m
		}
	}
}

func (c *wsClient) connect(name string) string {
	c.t.Helper()
	c.send(map[string]any{"type": "connect", "playerName": name})
	m := c.expect("connected")
	if m["playerName"] != name {
		c.t.Fatalf("connected as %v, want %s", m["playerName"], name)
	}
	id, _ := m["playerId"].(string)
	return id
}

func TestWS_RequiresConnectFirst(t *testing.T) {
	ts, _ := newTestServer(t)
	c := dial(t, ts)
	c.send(map[string]any{"type": "room_list"})
	if m := c.expect("error"); !strings.Contains(m["message"].(string), "connect") {
		t.Errorf("error %v", m["message"])
	}
}

func TestWS_ConnectNestedData(t *testing.T) {
	ts, _ := newTestServer(t)
	c := dial(t, ts)
	c.send(map[string]any{"type": "connect", "data": map[string]any{"playerName": "nested"}})
	if m := c.expect("connected"); m["playerName"] != "nested" || m["playerId"] == "" {
		t.Errorf("connected frame %v", m)
	}
}

func TestWS_RoomLifecycle(t *testing.T) {
	ts, rooms := newTestServer(t)
	host := dial(t, ts)
	guest := dial(t, ts)
	hostID := host.connect("alice")
	guest.connect("bob")
	host.expect("player_joined")

	host.send(map[string]any{"type": "create_room", "roomName": "Arena", "gameMode": "classic", "maxPlayers": 4})
	joined := host.expect("room_joined")["room"].(map[string]any)
	code, _ := joined["code"].(string)
	roomID, _ := joined["id"].(string)
	if len(code) != 4 || joined["hostPlayerId"] != hostID {
		t.Fatalf("room %v", joined)
	}

	guest.send(map[string]any{"type": "room_list"})
	list := guest.expect("room_list_response")["rooms"].([]any)
	if len(list) != 1 {
		t.Fatalf("room list %v", list)
	}

	guest.send(map[string]any{"type": "join_room", "roomCode": strings.ToLower(code)})
	guest.expect("room_joined")
	host.expect("room_updated")

	guest.send(map[string]any{"type": "start_game", "roomId": roomID})
	if m := guest.expect("error"); !strings.HasPrefix(m["message"].(string), "Failed to start game") {
		t.Errorf("guest start error %v", m["message"])
	}

	guest.send(map[string]any{"type": "player_ready", "roomId": roomID, "isReady": true})
	host.expect("room_updated")
	host.send(map[string]any{"type": "start_game", "roomId": roomID})
	host.expect("game_started")
	guest.expect("game_started")
	state := guest.expect("game_state")["gameState"].(map[string]any)
	if snakes := state["snakes"].([]any); len(snakes) != 2 {
		t.Errorf("snakes %d, want 2", len(snakes))
	}

	host.send(map[string]any{"type": "leave_room", "roomId": roomID})
	m := guest.expect("room_closed")
	if m["reason"] != room.ReasonHostLeft {
		t.Errorf("reason %v", m["reason"])
	}
	if _, ok := rooms.Room(roomID); ok {
		t.Errorf("room still registered")
	}
}

func TestWS_ChatAndPlayerLeft(t *testing.T) {
	ts, _ := newTestServer(t)
	a := dial(t, ts)
	b := dial(t, ts)
	a.connect("alice")
	bID := b.connect("bob")

	a.send(map[string]any{"type": "chat", "message": "hi"})
	if m := b.expect("chat_broadcast"); m["message"] != "hi" || m["playerName"] != "alice" {
		t.Errorf("chat %v", m)
	}

	b.conn.Close()
	if m := a.expect("player_left"); m["playerId"] != bID {
		t.Errorf("player_left %v", m)
	}
}

func TestWS_MissedPongsDisconnect(t *testing.T) {
	ts, rooms := newTestServer(t, WithKeepAlive(50*time.Millisecond, 1))
	c := dial(t, ts)
	id := c.connect("sleepy")
	// no further reads, so server pings are never answered with pongs

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := rooms.Name(id); !ok {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("silent client was not dropped")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

type probeConn struct{}

func (probeConn) Send([]byte) bool { return true }
func (probeConn) Close()           {}

func TestHTTP_RoomsAndHealth(t *testing.T) {
	ts, rooms := newTestServer(t)
	rooms.AddPlayer("h", "host", probeConn{})
	if _, err := rooms.CreateRoom("h", "Lobby", game.ModeCrossword, 0, false); err != nil {
		t.Fatal(err)
	}

	res, err := http.Get(ts.URL + "/rooms")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	var list []map[string]any
	if err := json.NewDecoder(res.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0]["gameMode"] != "crossword_search" || list[0]["hostPlayerName"] != "host" {
		t.Errorf("rooms %v", list)
	}

	hres, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	hres.Body.Close()
	if hres.StatusCode != http.StatusOK {
		t.Errorf("health status %d", hres.StatusCode)
	}

	lres, err := http.Get(ts.URL + "/leaderboard")
	if err != nil {
		t.Fatal(err)
	}
	lres.Body.Close()
	if lres.StatusCode != http.StatusOK {
		t.Errorf("leaderboard status %d", lres.StatusCode)
	}

	private, err := rooms.CreateRoom("h", "Hidden", game.ModeClassic, 0, true)
	if err != nil {
		t.Fatal(err)
	}
	cres, err := http.Get(ts.URL + "/rooms/" + strings.ToLower(private.Code))
	if err != nil {
		t.Fatal(err)
	}
	var one map[string]any
	_ = json.NewDecoder(cres.Body).Decode(&one)
	cres.Body.Close()
	if cres.StatusCode != http.StatusOK || one["name"] != "Hidden" {
		t.Errorf("lookup by code %d %v", cres.StatusCode, one)
	}
	mres, _ := http.Get(ts.URL + "/rooms/ZZZZ")
	mres.Body.Close()
	if mres.StatusCode != http.StatusNotFound {
		t.Errorf("unknown code status %d", mres.StatusCode)
	}

	nres, _ := http.Get(ts.URL + "/auth/me")
	nres.Body.Close()
	if nres.StatusCode != http.StatusNotFound {
		t.Errorf("auth routes mounted without a database: %d", nres.StatusCode)
	}
}
