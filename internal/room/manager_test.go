package room

import (
	"bytes"
	"encoding/json"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/robalobadob/snakeword/apps/go-server/internal/game"
)

type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (c *fakeConn) Send(b []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, append([]byte(nil), b...))
	return true
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// last returns the most recent frame of type t, decoded.
func (c *fakeConn) last(t string) map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.frames) - 1; i >= 0; i-- {
		var m map[string]any
		if err := json.Unmarshal(c.frames[i], &m); err == nil && m["type"] == t {
			return m
		}
	}
	return nil
}

// slowConfig never ticks within a test run.
func slowConfig() game.Config {
	c := game.DefaultConfig()
	c.GameSpeed = 3_600_000
	c.BroadcastInterval = 0
	return c
}

func newTestManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	opts = append([]Option{
		WithGameConfig(slowConfig()),
		WithEngineOptions(game.WithRand(rand.New(rand.NewSource(1)))),
	}, opts...)
	m := NewManager(opts...)
	t.Cleanup(m.Close)
	return m
}

func connect(m *Manager, id, name string) *fakeConn {
	c := &fakeConn{}
	m.AddPlayer(id, name, c)
	return c
}

// lobby creates a room hosted by alice with bob joined and ready.
func lobby(t *testing.T, m *Manager, mode game.Mode) (Info, *fakeConn, *fakeConn) {
	t.Helper()
	ca := connect(m, "a1", "alice")
	cb := connect(m, "b1", "bob")
	info, err := m.CreateRoom("a1", "Arena", mode, 4, false)
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if _, err := m.JoinRoom("b1", info.Code); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	if err := m.SetReady("b1", info.ID, true); err != nil {
		t.Fatalf("SetReady: %v", err)
	}
	return info, ca, cb
}

func snakeOf(t *testing.T, m *Manager, roomID, playerID string) game.Snake {
	t.Helper()
	v, err := m.RoomView(roomID)
	if err != nil {
		t.Fatalf("RoomView: %v", err)
	}
	if v.GameState == nil {
		t.Fatalf("no game state")
	}
	for _, s := range v.GameState.Snakes {
		if s.PlayerID == playerID {
			return s
		}
	}
	t.Fatalf("no snake for %s", playerID)
	return game.Snake{}
}

func TestCreateRoom_CodeShape(t *testing.T) {
	m := newTestManager(t)
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		id := "p" + string(rune('a'+i))
		connect(m, id, "host")
		info, err := m.CreateRoom(id, "", game.ModeClassic, 0, false)
		if err != nil {
			t.Fatalf("CreateRoom: %v", err)
		}
		if !validCode(info.Code) {
			t.Errorf("code %q is not four [A-Z0-9] characters", info.Code)
		}
		if seen[info.Code] {
			t.Errorf("duplicate code %q", info.Code)
		}
		seen[info.Code] = true
		if info.MaxPlayers != DefaultMaxPlayers {
			t.Errorf("MaxPlayers %d, want %d", info.MaxPlayers, DefaultMaxPlayers)
		}
	}
}

func TestCreateRoom_RetriesTakenCode(t *testing.T) {
	codes := []string{"ABCD", "ABCD", "abcd", "WXYZ"}
	var i int
	m := newTestManager(t, WithCodeSource(func() string {
		c := codes[i%len(codes)]
		i++
		return c
	}))
	connect(m, "h1", "one")
	connect(m, "h2", "two")

	first, err := m.CreateRoom("h1", "first", game.ModeClassic, 4, false)
	if err != nil {
		t.Fatal(err)
	}
	second, err := m.CreateRoom("h2", "second", game.ModeClassic, 4, false)
	if err != nil {
		t.Fatal(err)
	}
	if first.Code != "ABCD" || second.Code != "WXYZ" {
		t.Fatalf("codes %q, %q; want ABCD, WXYZ", first.Code, second.Code)
	}
	if got, ok := m.Room("wxyz"); !ok || got.ID != second.ID {
		t.Errorf("lookup by lower-case code failed")
	}
}

func TestJoinRoom_Errors(t *testing.T) {
	m := newTestManager(t)
	connect(m, "h", "host")
	connect(m, "g1", "guest1")
	connect(m, "g2", "guest2")
	info, _ := m.CreateRoom("h", "tiny", game.ModeClassic, 1, false)
	if info.MaxPlayers != MinPlayers {
		t.Fatalf("MaxPlayers %d, want clamp to %d", info.MaxPlayers, MinPlayers)
	}
	if _, err := m.JoinRoom("g1", info.ID); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	if _, err := m.JoinRoom("g2", info.Code); !errors.Is(err, ErrRoomFull) {
		t.Errorf("third join err %v, want ErrRoomFull", err)
	}
	if _, err := m.JoinRoom("g2", "ZZZZ"); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("unknown code err %v, want ErrRoomNotFound", err)
	}
	if _, err := m.JoinRoom("nobody", info.ID); !errors.Is(err, ErrUnknownPlayer) {
		t.Errorf("unknown player err %v, want ErrUnknownPlayer", err)
	}
}

func TestStartGame_Authorization(t *testing.T) {
	m := newTestManager(t)
	connect(m, "a1", "alice")
	connect(m, "b1", "bob")
	info, _ := m.CreateRoom("a1", "Arena", game.ModeClassic, 4, false)

	if err := m.StartGameByHost("a1", info.ID); !errors.Is(err, ErrNotEnoughPlayers) {
		t.Errorf("solo start err %v, want ErrNotEnoughPlayers", err)
	}
	m.JoinRoom("b1", info.ID)
	if err := m.StartGameByHost("a1", info.ID); !errors.Is(err, ErrNobodyReady) {
		t.Errorf("unready start err %v, want ErrNobodyReady", err)
	}
	m.SetReady("b1", info.ID, true)
	if err := m.StartGameByHost("b1", info.ID); !errors.Is(err, ErrNotHost) {
		t.Errorf("guest start err %v, want ErrNotHost", err)
	}
	if err := m.StartGameByHost("a1", info.ID); err != nil {
		t.Fatalf("host start: %v", err)
	}
	if err := m.StartGameByHost("a1", info.ID); !errors.Is(err, ErrGameActive) {
		t.Errorf("second start err %v, want ErrGameActive", err)
	}
	if got, _ := m.Room(info.ID); !got.Active {
		t.Errorf("room not marked active")
	}
}

func TestHostLeaving_ClosesRoom(t *testing.T) {
	m := newTestManager(t)
	info, ca, cb := lobby(t, m, game.ModeClassic)
	cc := connect(m, "c1", "carol")
	if _, err := m.JoinRoom("c1", info.Code); err != nil {
		t.Fatal(err)
	}

	if err := m.LeaveRoom("a1", info.ID); err != nil {
		t.Fatalf("LeaveRoom: %v", err)
	}
	for name, c := range map[string]*fakeConn{"alice": ca, "bob": cb, "carol": cc} {
		f := c.last("room_closed")
		if f == nil {
			t.Errorf("%s got no room_closed", name)
			continue
		}
		if f["reason"] != ReasonHostLeft {
			t.Errorf("%s reason %v", name, f["reason"])
		}
		if msg, _ := f["message"].(string); !strings.Contains(msg, "alice") {
			t.Errorf("%s message %q does not name the host", name, msg)
		}
	}
	if _, ok := m.Room(info.ID); ok {
		t.Errorf("closed room still registered")
	}
	if _, ok := m.Room(info.Code); ok {
		t.Errorf("closed room code still registered")
	}
	for _, r := range m.ListPublicRooms() {
		if r.ID == info.ID {
			t.Errorf("closed room listed")
		}
	}
	for _, id := range []string{"a1", "b1", "c1"} {
		if got := m.RoomOf(id); got != "" {
			t.Errorf("%s still in room %q", id, got)
		}
	}
}

func TestGuestLeaving_KeepsRoom(t *testing.T) {
	m := newTestManager(t)
	info, ca, _ := lobby(t, m, game.ModeClassic)
	if err := m.LeaveRoom("b1", info.ID); err != nil {
		t.Fatal(err)
	}
	got, ok := m.Room(info.ID)
	if !ok || got.PlayerCount != 1 {
		t.Fatalf("room after guest left: %+v ok=%v", got, ok)
	}
	if ca.last("room_updated") == nil {
		t.Errorf("host not told about the departure")
	}
	if err := m.LeaveRoom("b1", info.ID); !errors.Is(err, ErrNotInRoom) {
		t.Errorf("second leave err %v, want ErrNotInRoom", err)
	}
}

func TestReconnect_KeepsSnake(t *testing.T) {
	m := newTestManager(t)
	info, _, _ := lobby(t, m, game.ModeClassic)
	if err := m.StartGameByHost("a1", info.ID); err != nil {
		t.Fatal(err)
	}
	before := snakeOf(t, m, info.ID, "b1")

	m.RemovePlayer("b1")
	v, _ := m.RoomView(info.ID)
	if len(v.Players) != 2 || v.Players[1].IsConnected {
		t.Fatalf("seat not kept as disconnected: %+v", v.Players)
	}

	cb2 := &fakeConn{}
	if !m.AddPlayer("b2", "bob", cb2) {
		t.Fatalf("AddPlayer did not reconnect")
	}
	after := snakeOf(t, m, info.ID, "b2")
	if len(after.Segments) != len(before.Segments) || after.Segments[0] != before.Segments[0] {
		t.Errorf("segments changed: %v -> %v", before.Segments, after.Segments)
	}
	if after.Score != before.Score {
		t.Errorf("score %d -> %d", before.Score, after.Score)
	}
	if m.RoomOf("b2") != info.ID {
		t.Errorf("new connection not in room")
	}
	if cb2.last("room_joined") == nil || cb2.last("game_state") == nil {
		t.Errorf("reconnected client not brought up to date")
	}
}

func TestReconnect_HostKeepsHostRole(t *testing.T) {
	m := newTestManager(t)
	info, _, _ := lobby(t, m, game.ModeClassic)
	m.StartGameByHost("a1", info.ID)
	m.RemovePlayer("a1")
	if _, ok := m.Room(info.ID); !ok {
		t.Fatalf("room closed while host seat should be held")
	}
	if !m.AddPlayer("a2", "alice", &fakeConn{}) {
		t.Fatalf("host did not reconnect")
	}
	got, _ := m.Room(info.ID)
	if got.HostID != "a2" {
		t.Errorf("HostID %q, want a2", got.HostID)
	}
}

func TestJoinRoom_ReclaimsSeatByName(t *testing.T) {
	m := newTestManager(t)
	info, _, _ := lobby(t, m, game.ModeClassic)
	m.StartGameByHost("a1", info.ID)
	m.RemovePlayer("b1")

	connect(m, "b2", "guest")
	m.Rename("b2", "bob")
	if _, err := m.JoinRoom("b2", info.Code); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	v, _ := m.RoomView(info.ID)
	if len(v.Players) != 2 || v.Players[1].ID != "b2" || !v.Players[1].IsConnected {
		t.Errorf("seat not reclaimed: %+v", v.Players)
	}
}

func TestSetColor(t *testing.T) {
	m := newTestManager(t)
	info, _, _ := lobby(t, m, game.ModeClassic)
	v, _ := m.RoomView(info.ID)
	if v.Players[0].Color != Palette[0] || v.Players[1].Color != Palette[1] {
		t.Fatalf("initial colours %s %s", v.Players[0].Color, v.Players[1].Color)
	}
	if err := m.SetColor("b1", info.ID, Palette[0]); !errors.Is(err, ErrColorTaken) {
		t.Errorf("taken colour err %v", err)
	}
	if err := m.SetColor("b1", info.ID, "#123456"); !errors.Is(err, ErrBadColor) {
		t.Errorf("off-palette err %v", err)
	}
	if err := m.SetColor("b1", info.ID, strings.ToLower(Palette[5])); err != nil {
		t.Fatalf("SetColor: %v", err)
	}
	v, _ = m.RoomView(info.ID)
	if v.Players[1].Color != Palette[5] {
		t.Errorf("colour %s, want %s", v.Players[1].Color, Palette[5])
	}
}

func TestListPublicRooms(t *testing.T) {
	m := newTestManager(t)
	info, _, _ := lobby(t, m, game.ModeClassic)
	connect(m, "s1", "secret")
	private, _ := m.CreateRoom("s1", "hidden", game.ModeCrossword, 4, true)

	list := m.ListPublicRooms()
	if len(list) != 1 || list[0].ID != info.ID {
		t.Fatalf("list %+v, want only the public room", list)
	}
	if list[0].HostName != "alice" || list[0].PlayerCount != 2 {
		t.Errorf("summary %+v", list[0])
	}
	if _, ok := m.Room(private.Code); !ok {
		t.Errorf("private room not joinable by code")
	}

	m.StartGameByHost("a1", info.ID)
	if list := m.ListPublicRooms(); len(list) != 0 {
		t.Errorf("active room listed: %+v", list)
	}
}

func TestRouteInput(t *testing.T) {
	m := newTestManager(t)
	info, _, _ := lobby(t, m, game.ModeClassic)
	if err := m.RouteInput("b1", info.ID, "sideways"); !errors.Is(err, ErrBadDirection) {
		t.Errorf("bad direction err %v", err)
	}
	connect(m, "x", "outsider")
	if err := m.RouteInput("x", info.ID, "up"); !errors.Is(err, ErrNotInRoom) {
		t.Errorf("outsider err %v", err)
	}
	if err := m.RouteInput("b1", info.ID, "up"); err != nil {
		t.Errorf("input before start: %v", err)
	}
}

func TestSubmitWord_WrongModeAndNoGame(t *testing.T) {
	m := newTestManager(t)
	info, _, _ := lobby(t, m, game.ModeCrossword)
	if _, err := m.SubmitWord("b1", info.ID, []string{"C", "A", "T"}); !errors.Is(err, ErrNoGame) {
		t.Errorf("no game err %v", err)
	}
	m.StartGameByHost("a1", info.ID)
	if _, err := m.SubmitWord("b1", info.ID, []string{"C", "A", "T"}); !errors.Is(err, game.ErrWrongMode) {
		t.Errorf("crossword submit err %v", err)
	}
}

func TestChat_ReachesEveryone(t *testing.T) {
	m := newTestManager(t)
	ca := connect(m, "a1", "alice")
	cb := connect(m, "b1", "bob")
	if err := m.Chat("a1", "  hello  "); err != nil {
		t.Fatal(err)
	}
	for _, c := range []*fakeConn{ca, cb} {
		f := c.last("chat_broadcast")
		if f == nil || f["message"] != "hello" || f["playerName"] != "alice" {
			t.Errorf("chat frame %v", f)
		}
	}
}

func TestSweep_DropsIdleLobbySessions(t *testing.T) {
	m := newTestManager(t)
	idle := connect(m, "idle", "idler")
	lobby(t, m, game.ModeClassic)

	m.Sweep(time.Now().Add(time.Hour))
	if _, ok := m.Name("idle"); ok {
		t.Errorf("idle session kept")
	}
	if !idle.closed {
		t.Errorf("idle connection not closed")
	}
	if _, ok := m.Name("a1"); !ok {
		t.Errorf("session in a room was swept")
	}
}

func TestMatch_EndsAndReportsResult(t *testing.T) {
	cfg := game.DefaultConfig()
	cfg.GameSpeed = 5
	cfg.BroadcastInterval = 0
	results := make(chan Summary, 1)
	m := newTestManager(t,
		WithGameConfig(cfg),
		WithResultHook(func(s Summary) { results <- s }),
	)
	info, ca, _ := lobby(t, m, game.ModeClassic)
	if err := m.StartGameByHost("a1", info.ID); err != nil {
		t.Fatal(err)
	}

	var sum Summary
	select {
	case sum = <-results:
	case <-time.After(5 * time.Second):
		t.Fatal("match did not end")
	}
	if sum.RoomID != info.ID || len(sum.Standings) != 2 {
		t.Errorf("summary %+v", sum)
	}
	if ca.last("game_ended") == nil {
		t.Errorf("no game_ended frame")
	}

	deadline := time.Now().Add(time.Second)
	for {
		got, _ := m.Room(info.ID)
		if !got.Active {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("room still active after match ended")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// flakyConn panics on the second game_state it is handed.
type flakyConn struct {
	fakeConn
	states int
}

func (c *flakyConn) Send(b []byte) bool {
	if bytes.Contains(b, []byte(`"type":"game_state"`)) {
		c.mu.Lock()
		c.states++
		n := c.states
		c.mu.Unlock()
		if n == 2 {
			panic("send failed")
		}
	}
	return c.fakeConn.Send(b)
}

func (c *flakyConn) stateCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states
}

func TestRoom_TickPanicRecovered(t *testing.T) {
	cfg := game.DefaultConfig()
	cfg.GameSpeed = 10
	cfg.BroadcastInterval = 0
	m := newTestManager(t, WithGameConfig(cfg))
	ca := &flakyConn{}
	m.AddPlayer("a1", "alice", ca)
	connect(m, "b1", "bob")
	info, err := m.CreateRoom("a1", "Arena", game.ModeClassic, 4, false)
	if err != nil {
		t.Fatal(err)
	}
	m.JoinRoom("b1", info.ID)
	m.SetReady("b1", info.ID, true)
	if err := m.StartGameByHost("a1", info.ID); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for ca.stateCount() < 5 {
		if time.Now().After(deadline) {
			t.Fatalf("room stopped ticking after a panic; %d states sent", ca.stateCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, ok := m.Room(info.ID); !ok {
		t.Errorf("room gone after a recovered panic")
	}
}

func TestRemovePlayer_EvictsOutsideMatch(t *testing.T) {
	m := newTestManager(t)
	info, ca, _ := lobby(t, m, game.ModeClassic)

	m.RemovePlayer("b1")
	got, ok := m.Room(info.ID)
	if !ok || got.PlayerCount != 1 {
		t.Fatalf("room after lobby disconnect: %+v ok=%v", got, ok)
	}
	v, _ := m.RoomView(info.ID)
	if len(v.Players) != 1 || v.Players[0].ID != "a1" {
		t.Errorf("players %+v", v.Players)
	}
	rv, _ := ca.last("room_updated")["room"].(map[string]any)
	if players, _ := rv["players"].([]any); len(players) != 1 {
		t.Errorf("host's last room_updated lists %d players", len(players))
	}
}

func TestJoinRoom_ReclaimAfterLateJoinerLeft(t *testing.T) {
	m := newTestManager(t)
	info, _, _ := lobby(t, m, game.ModeClassic)
	if err := m.StartGameByHost("a1", info.ID); err != nil {
		t.Fatal(err)
	}
	before := snakeOf(t, m, info.ID, "b1")
	m.RemovePlayer("b1")

	connect(m, "x1", "zed")
	if _, err := m.JoinRoom("x1", info.Code); err != nil {
		t.Fatalf("late join: %v", err)
	}
	if err := m.LeaveRoom("x1", info.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}
	m.Rename("x1", "bob")
	if _, err := m.JoinRoom("x1", info.Code); err != nil {
		t.Fatalf("rejoin: %v", err)
	}

	after := snakeOf(t, m, info.ID, "x1")
	if after.Segments[0] != before.Segments[0] || !after.Alive {
		t.Errorf("snake %+v, want bob's snake at %v", after, before.Segments[0])
	}
	v, _ := m.RoomView(info.ID)
	for _, s := range v.GameState.Snakes {
		if s.PlayerID == "b1" {
			t.Errorf("snake still owned by the old id")
		}
	}
	if len(v.Players) != 2 || v.Players[1].ID != "x1" {
		t.Errorf("players %+v", v.Players)
	}
	if err := m.RouteInput("x1", info.ID, "up"); err != nil {
		t.Errorf("input after reclaim: %v", err)
	}
}

func TestJoinRoom_SupersededConnectionIsTold(t *testing.T) {
	m := newTestManager(t)
	info, _, cb := lobby(t, m, game.ModeClassic)
	m.StartGameByHost("a1", info.ID)

	connect(m, "b2", "bob")
	if _, err := m.JoinRoom("b2", info.Code); err != nil {
		t.Fatal(err)
	}
	f := cb.last("room_left")
	if f == nil || f["roomId"] != info.ID {
		t.Errorf("old connection got room_left %v", f)
	}
	if m.RoomOf("b1") != "" || m.RoomOf("b2") != info.ID {
		t.Errorf("membership b1=%q b2=%q", m.RoomOf("b1"), m.RoomOf("b2"))
	}
}

func TestReconnect_NameMatchIsExact(t *testing.T) {
	m := newTestManager(t)
	info, _, _ := lobby(t, m, game.ModeClassic)
	m.StartGameByHost("a1", info.ID)
	m.RemovePlayer("b1")

	if m.AddPlayer("b2", "BOB", &fakeConn{}) {
		t.Fatalf("BOB reclaimed bob's seat")
	}
	v, _ := m.RoomView(info.ID)
	if v.Players[1].ID != "b1" || v.Players[1].IsConnected {
		t.Errorf("seat changed: %+v", v.Players[1])
	}
}
