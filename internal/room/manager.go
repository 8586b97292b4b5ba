// apps/go-server/internal/room/manager.go
//
// Registry of connected players and live rooms.
// Responsibilities:
//   - Track sessions (player id -> display name, connection, current room).
//   - Create rooms with unique join codes and resolve rooms by id or code.
//   - Route player actions to the owning room actor.
//   - Sweep idle sessions and empty rooms on a timer.
//
// Notes:
//   - m.mu guards the maps only. It is never held while waiting on a room,
//     so rooms can report back (closure) without deadlocking.

package room

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/snakeword/apps/go-server/internal/game"
	"github.com/robalobadob/snakeword/apps/go-server/internal/protocol"
	"github.com/robalobadob/snakeword/apps/go-server/internal/words"
)

var (
	ErrUnknownPlayer    = errors.New("room: unknown player")
	ErrRoomNotFound     = errors.New("room: not found")
	ErrRoomClosed       = errors.New("room: closed")
	ErrRoomFull         = errors.New("room: full")
	ErrNotInRoom        = errors.New("room: player not in room")
	ErrNotHost          = errors.New("room: only the host can start the game")
	ErrGameActive       = errors.New("room: game already running")
	ErrNoGame           = errors.New("room: no game running")
	ErrNotEnoughPlayers = errors.New("room: at least two players are needed")
	ErrNobodyReady      = errors.New("room: no other player is ready")
	ErrBadColor         = errors.New("room: colour not in palette")
	ErrColorTaken       = errors.New("room: colour already taken")
	ErrBadDirection     = errors.New("room: unknown direction")
)

const (
	DefaultMaxPlayers = 8
	MinPlayers        = 2
	MaxPlayersCap     = 12

	maxNameLen     = 24
	maxRoomNameLen = 40
	maxChatLen     = 500
	codeAttempts   = 64
)

type session struct {
	id        string
	name      string
	accountID string
	conn      Conn
	roomID    string
	lastSeen  time.Time
}

// Manager owns sessions and rooms.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*session
	rooms    map[string]*room
	codes    map[string]string // code -> room id

	cfg         game.Config
	engineOpts  []game.Option
	newCode     func() string
	onResult    func(Summary)
	idleTimeout time.Duration
	sweepEvery  time.Duration
	now         func() time.Time
	log         zerolog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithGameConfig sets the board and pacing copied into new rooms.
func WithGameConfig(c game.Config) Option { return func(m *Manager) { m.cfg = c } }

// WithEngineOptions passes options to every engine a room creates.
func WithEngineOptions(opts ...game.Option) Option {
	return func(m *Manager) { m.engineOpts = append(m.engineOpts, opts...) }
}

// WithCodeSource replaces the random join code generator.
func WithCodeSource(f func() string) Option { return func(m *Manager) { m.newCode = f } }

// WithResultHook is called, off the room goroutine, when a match ends.
func WithResultHook(f func(Summary)) Option { return func(m *Manager) { m.onResult = f } }

// WithJanitor sets how often Run sweeps and how long an idle lobby session lives.
func WithJanitor(every, idle time.Duration) Option {
	return func(m *Manager) {
		if every > 0 {
			m.sweepEvery = every
		}
		if idle > 0 {
			m.idleTimeout = idle
		}
	}
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		sessions:    make(map[string]*session),
		rooms:       make(map[string]*room),
		codes:       make(map[string]string),
		cfg:         game.DefaultConfig(),
		newCode:     randomCode,
		idleTimeout: 30 * time.Minute,
		sweepEvery:  10 * time.Minute,
		now:         time.Now,
		log:         log.With().Str("component", "rooms").Logger(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// ------------------------------- sessions -----------------------------------

func cleanName(s string, max int, def string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	if r := []rune(s); len(r) > max {
		s = string(r[:max])
	}
	return s
}

// DisplayName trims and bounds a requested player name.
func DisplayName(s string) string {
	return cleanName(s, maxNameLen, "Player")
}

// AddPlayer registers a connection under id. If a match is running with a
// disconnected seat of the same name, that seat is handed to id and
// reconnected is true.
func (m *Manager) AddPlayer(id, name string, conn Conn) (reconnected bool) {
	name = DisplayName(name)
	m.mu.Lock()
	m.sessions[id] = &session{id: id, name: name, conn: conn, lastSeen: m.now()}
	rooms := m.roomList()
	m.mu.Unlock()
	m.log.Info().Str("player", id).Str("name", name).Msg("player connected")

	for _, r := range rooms {
		var oldID string
		var ok bool
		err := r.call(func() {
			oldID, ok = r.reclaim(&Player{ID: id, Name: name, conn: conn}, false)
		})
		if err == nil && ok {
			m.rebind(oldID, id, r.id)
			return true
		}
	}
	return false
}

// rebind moves room membership from oldID's session to newID's.
func (m *Manager) rebind(oldID, newID, roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.sessions[oldID]; s != nil && s.roomID == roomID {
		s.roomID = ""
	}
	if s := m.sessions[newID]; s != nil {
		s.roomID = roomID
	}
}

// Rename changes the display name used for future room joins.
func (m *Manager) Rename(id, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[id]
	if s == nil {
		return ErrUnknownPlayer
	}
	s.name = cleanName(name, maxNameLen, s.name)
	return nil
}

// BindAccount attaches a signed-in user to the session so results count
// towards their stats.
func (m *Manager) BindAccount(id, accountID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.sessions[id]; s != nil {
		s.accountID = accountID
	}
}

// Name returns the session's display name.
func (m *Manager) Name(id string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.sessions[id]; s != nil {
		return s.name, true
	}
	return "", false
}

// RoomOf returns the room the player is in, if any.
func (m *Manager) RoomOf(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.sessions[id]; s != nil {
		return s.roomID
	}
	return ""
}

// Touch records activity for the idle sweep.
func (m *Manager) Touch(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.sessions[id]; s != nil {
		s.lastSeen = m.now()
	}
}

// RemovePlayer forgets a connection. A seat in a running match is kept for
// reconnection; otherwise the player leaves their room.
func (m *Manager) RemovePlayer(id string) {
	m.mu.Lock()
	s := m.sessions[id]
	delete(m.sessions, id)
	var r *room
	if s != nil && s.roomID != "" {
		r = m.rooms[s.roomID]
	}
	m.mu.Unlock()
	if s == nil {
		return
	}
	if r != nil {
		_ = r.call(func() { r.disconnect(id) })
	}
	m.log.Info().Str("player", id).Msg("player disconnected")
}

// -------------------------------- rooms -------------------------------------

func (m *Manager) roomList() []*room {
	out := make([]*room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	return out
}

func (m *Manager) lookup(ref string) *room {
	if r, ok := m.rooms[ref]; ok {
		return r
	}
	if id, ok := m.codes[NormalizeCode(ref)]; ok {
		return m.rooms[id]
	}
	return nil
}

func (m *Manager) uniqueCode() string {
	for i := 0; ; i++ {
		gen := m.newCode
		if i >= codeAttempts {
			gen = randomCode
		}
		c := NormalizeCode(gen())
		if _, taken := m.codes[c]; validCode(c) && !taken {
			return c
		}
	}
}

// ClampPlayers bounds a requested room size; zero means the default.
func ClampPlayers(n int) int {
	switch {
	case n <= 0:
		return DefaultMaxPlayers
	case n < MinPlayers:
		return MinPlayers
	case n > MaxPlayersCap:
		return MaxPlayersCap
	}
	return n
}

// CreateRoom opens a room hosted by creatorID, leaving any room they were in.
func (m *Manager) CreateRoom(creatorID, name string, mode game.Mode, maxPlayers int, private bool) (Info, error) {
	if cur := m.RoomOf(creatorID); cur != "" {
		_ = m.LeaveRoom(creatorID, cur)
	}

	m.mu.Lock()
	s := m.sessions[creatorID]
	if s == nil {
		m.mu.Unlock()
		return Info{}, ErrUnknownPlayer
	}
	id := uuid.NewString()
	code := m.uniqueCode()
	now := m.now()
	r := &room{
		id:         id,
		code:       code,
		createdAt:  now,
		inbox:      make(chan func(), inboxSize),
		quit:       make(chan struct{}),
		exited:     make(chan struct{}),
		name:       cleanName(name, maxRoomNameLen, s.name+"'s room"),
		mode:       mode,
		hostID:     creatorID,
		maxPlayers: ClampPlayers(maxPlayers),
		private:    private,
		cfg:        m.cfg,
		engineOpts: m.engineOpts,
		hooks:      roomHooks{closed: m.roomClosed, result: m.onResult},
		log:        m.log.With().Str("room", id).Str("code", code).Logger(),
		now:        m.now,
	}
	host := &Player{ID: s.id, Name: s.name, AccountID: s.accountID, conn: s.conn, Ready: true, Alive: true, JoinedAt: now}
	host.Color = Palette[0]
	r.players = []*Player{host}
	r.publish()
	m.rooms[id] = r
	m.codes[code] = id
	s.roomID = id
	m.mu.Unlock()

	go r.run()
	_ = r.call(func() { r.sendTo(host, protocol.NewRoomJoined(r.view())) })
	r.log.Info().Str("host", creatorID).Str("mode", string(mode)).Bool("private", private).Msg("room created")
	return *r.info.Load(), nil
}

// JoinRoom puts playerID into the room named by id or join code.
func (m *Manager) JoinRoom(playerID, ref string) (Info, error) {
	m.mu.Lock()
	s := m.sessions[playerID]
	if s == nil {
		m.mu.Unlock()
		return Info{}, ErrUnknownPlayer
	}
	r := m.lookup(ref)
	if r == nil {
		m.mu.Unlock()
		return Info{}, ErrRoomNotFound
	}
	cur := s.roomID
	p := &Player{ID: s.id, Name: s.name, AccountID: s.accountID, conn: s.conn}
	m.mu.Unlock()

	if cur == r.id {
		return *r.info.Load(), nil
	}
	if cur != "" {
		_ = m.LeaveRoom(playerID, cur)
	}

	var oldID string
	var jerr error
	if err := r.call(func() { oldID, jerr = r.join(p) }); err != nil {
		return Info{}, err
	}
	if jerr != nil {
		return Info{}, jerr
	}
	if oldID != "" {
		m.rebind(oldID, playerID, r.id)
	} else {
		m.mu.Lock()
		if s := m.sessions[playerID]; s != nil {
			s.roomID = r.id
		}
		m.mu.Unlock()
	}
	return *r.info.Load(), nil
}

// LeaveRoom removes playerID from the room. The host leaving closes it.
func (m *Manager) LeaveRoom(playerID, roomID string) error {
	r, err := m.memberRoom(playerID, roomID)
	if err != nil {
		return err
	}
	var lerr error
	if err := r.call(func() { lerr = r.leave(playerID) }); err != nil {
		return err
	}
	if lerr != nil {
		return lerr
	}
	m.mu.Lock()
	if s := m.sessions[playerID]; s != nil && s.roomID == r.id {
		s.roomID = ""
	}
	m.mu.Unlock()
	return nil
}

// memberRoom resolves the room for an action by playerID. An empty roomID
// means the player's current room.
func (m *Manager) memberRoom(playerID, roomID string) (*room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[playerID]
	if s == nil {
		return nil, ErrUnknownPlayer
	}
	if roomID == "" {
		roomID = s.roomID
	}
	r := m.lookup(roomID)
	if r == nil {
		return nil, ErrRoomNotFound
	}
	if s.roomID != r.id {
		return nil, ErrNotInRoom
	}
	return r, nil
}

func (m *Manager) roomClosed(r *room, members []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.rooms[r.id]; ok && cur == r {
		delete(m.rooms, r.id)
	}
	if m.codes[r.code] == r.id {
		delete(m.codes, r.code)
	}
	for _, id := range members {
		if s := m.sessions[id]; s != nil && s.roomID == r.id {
			s.roomID = ""
		}
	}
}

// SetReady toggles the player's ready flag.
func (m *Manager) SetReady(playerID, roomID string, ready bool) error {
	return m.do(playerID, roomID, func(r *room) error { return r.setReady(playerID, ready) })
}

// SetColor picks a palette colour no other member is using.
func (m *Manager) SetColor(playerID, roomID, color string) error {
	return m.do(playerID, roomID, func(r *room) error { return r.setColor(playerID, color) })
}

// StartGameByHost starts a match. Only the host may, with at least two
// members and one other member ready.
func (m *Manager) StartGameByHost(playerID, roomID string) error {
	return m.do(playerID, roomID, func(r *room) error { return r.start(playerID) })
}

// RouteInput queues a direction change for the player's snake.
func (m *Manager) RouteInput(playerID, roomID, direction string) error {
	dir, ok := game.ParseDirection(direction)
	if !ok {
		return ErrBadDirection
	}
	r, err := m.memberRoom(playerID, roomID)
	if err != nil {
		return err
	}
	if !r.post(func() { r.input(playerID, dir) }) {
		return ErrRoomClosed
	}
	return nil
}

// SubmitWord spends collected letters on a word and tells the player how it went.
func (m *Manager) SubmitWord(playerID, roomID string, letters []string) (words.Result, error) {
	var res words.Result
	err := m.do(playerID, roomID, func(r *room) error {
		if r.engine == nil {
			return ErrNoGame
		}
		var inv game.Inventory
		var err error
		res, inv, err = r.engine.SubmitWord(playerID, letters)
		if err != nil {
			return err
		}
		if p := r.player(playerID); p != nil {
			r.sendTo(p, protocol.NewWordSubmitted(r.id, playerID, res, inv))
		}
		return nil
	})
	return res, err
}

// ClearLetters discards the player's in-progress word.
func (m *Manager) ClearLetters(playerID, roomID string) error {
	return m.do(playerID, roomID, func(r *room) error {
		if r.engine == nil {
			return ErrNoGame
		}
		return r.engine.ClearAttempt(playerID)
	})
}

func (m *Manager) do(playerID, roomID string, fn func(r *room) error) error {
	r, err := m.memberRoom(playerID, roomID)
	if err != nil {
		return err
	}
	var ferr error
	if err := r.call(func() { ferr = fn(r) }); err != nil {
		return err
	}
	return ferr
}

// ListPublicRooms returns joinable rooms: not private, not in a match.
func (m *Manager) ListPublicRooms() []Info {
	m.mu.Lock()
	rooms := m.roomList()
	m.mu.Unlock()
	out := make([]Info, 0, len(rooms))
	for _, r := range rooms {
		info := r.info.Load()
		if info == nil || info.Private || info.Active {
			continue
		}
		out = append(out, *info)
	}
	sortInfos(out)
	return out
}

func sortInfos(infos []Info) {
	slices.SortFunc(infos, func(a, b Info) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Code, b.Code)
	})
}

// Room returns the latest published info for a room id or code.
func (m *Manager) Room(ref string) (Info, bool) {
	m.mu.Lock()
	r := m.lookup(ref)
	m.mu.Unlock()
	if r == nil {
		return Info{}, false
	}
	return *r.info.Load(), true
}

// RoomView returns the full room state as members see it.
func (m *Manager) RoomView(ref string) (protocol.RoomView, error) {
	m.mu.Lock()
	r := m.lookup(ref)
	m.mu.Unlock()
	if r == nil {
		return protocol.RoomView{}, ErrRoomNotFound
	}
	var v protocol.RoomView
	if err := r.call(func() { v = r.view() }); err != nil {
		return protocol.RoomView{}, err
	}
	return v, nil
}

// ------------------------------- messaging ----------------------------------

// Chat relays a lobby-wide message from playerID to every connection.
func (m *Manager) Chat(playerID, text string) error {
	text = strings.TrimSpace(text)
	m.mu.Lock()
	s := m.sessions[playerID]
	if s == nil {
		m.mu.Unlock()
		return ErrUnknownPlayer
	}
	name := s.name
	m.mu.Unlock()
	if text == "" {
		return nil
	}
	if r := []rune(text); len(r) > maxChatLen {
		text = string(r[:maxChatLen])
	}
	m.Broadcast(protocol.Encode(protocol.NewChatBroadcast(playerID, name, text)), "")
	return nil
}

// Broadcast sends frame to every connection except the one named by except.
func (m *Manager) Broadcast(frame []byte, except string) {
	if frame == nil {
		return
	}
	m.mu.Lock()
	conns := make([]Conn, 0, len(m.sessions))
	for id, s := range m.sessions {
		if id != except && s.conn != nil {
			conns = append(conns, s.conn)
		}
	}
	m.mu.Unlock()
	for _, c := range conns {
		c.Send(frame)
	}
}

// SendTo delivers frame to one connection.
func (m *Manager) SendTo(playerID string, frame []byte) bool {
	m.mu.Lock()
	s := m.sessions[playerID]
	m.mu.Unlock()
	if s == nil || s.conn == nil || frame == nil {
		return false
	}
	return s.conn.Send(frame)
}

// -------------------------------- upkeep ------------------------------------

// Run sweeps on a timer until ctx is done, then closes every room.
func (m *Manager) Run(ctx context.Context) {
	t := time.NewTicker(m.sweepEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			m.Close()
			return
		case now := <-t.C:
			m.Sweep(now)
		}
	}
}

// Sweep drops lobby sessions idle for longer than the idle timeout and
// closes rooms left without members.
func (m *Manager) Sweep(now time.Time) {
	type idle struct {
		id   string
		conn Conn
	}
	var stale []idle
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.roomID == "" && now.Sub(s.lastSeen) > m.idleTimeout {
			stale = append(stale, idle{id, s.conn})
		}
	}
	rooms := m.roomList()
	m.mu.Unlock()

	for _, s := range stale {
		m.RemovePlayer(s.id)
		if s.conn != nil {
			s.conn.Close()
		}
	}
	closed := 0
	for _, r := range rooms {
		_ = r.call(func() {
			if len(r.players) == 0 {
				r.close(ReasonEmpty)
				closed++
			}
		})
	}
	if len(stale) > 0 || closed > 0 {
		m.log.Info().Int("idleSessions", len(stale)).Int("emptyRooms", closed).Msg("janitor sweep")
	}
}

// Close shuts every room down and tells members why.
func (m *Manager) Close() {
	m.mu.Lock()
	rooms := m.roomList()
	m.mu.Unlock()
	for _, r := range rooms {
		_ = r.call(func() {
			r.broadcast(protocol.NewRoomClosed(r.id, ReasonShutdown, "Server is shutting down."))
			r.close(ReasonShutdown)
		})
	}
}
