// apps/go-server/internal/room/room.go
//
// One room as an actor goroutine.
// Responsibilities:
//   - Own the member list, host, readiness and colours.
//   - Own the game engine while a match runs and tick it on its own ticker.
//   - Fan frames out to member connections.
//   - Publish an atomic Info snapshot for lock-free listing.
//
// Notes:
//   - Every field below the inbox line is touched only from run(). Callers
//     go through call (waits) or post (fire and forget).
//   - Panics in an operation or a tick are recovered and logged; the room
//     keeps running and the next tick retries.

package room

import (
	"fmt"
	"runtime/debug"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/robalobadob/snakeword/apps/go-server/internal/game"
	"github.com/robalobadob/snakeword/apps/go-server/internal/protocol"
)

// Close reasons.
const (
	ReasonHostLeft = "host_left"
	ReasonEmpty    = "empty"
	ReasonShutdown = "server_shutdown"
)

const inboxSize = 64

// Conn is the outbound half of a client connection. Send must not block.
type Conn interface {
	Send(frame []byte) bool
	Close()
}

// Player is a room member.
type Player struct {
	ID        string
	Name      string
	Ready     bool
	Alive     bool
	JoinedAt  time.Time
	Color     string
	AccountID string

	conn Conn // nil while disconnected mid-game
}

// Info is the read-only room summary published after every change.
type Info struct {
	ID          string
	Name        string
	Code        string
	Mode        game.Mode
	HostID      string
	HostName    string
	PlayerCount int
	MaxPlayers  int
	Active      bool
	Private     bool
	CreatedAt   time.Time
}

// Summary converts Info into a room list row.
func (i Info) Summary() protocol.RoomSummary {
	return protocol.RoomSummary{
		ID:             i.ID,
		Name:           i.Name,
		Code:           i.Code,
		GameMode:       i.Mode,
		HostPlayerName: i.HostName,
		PlayerCount:    i.PlayerCount,
		MaxPlayers:     i.MaxPlayers,
		IsGameActive:   i.Active,
	}
}

// Standing is one player's line in a finished match.
type Standing struct {
	PlayerID   string
	PlayerName string
	AccountID  string
	Score      int
	Won        bool
}

// Summary is handed to the final-results hook when a match ends.
type Summary struct {
	RoomID     string
	RoomName   string
	Mode       game.Mode
	WinnerID   string
	WinnerName string
	Standings  []Standing
	StartedAt  time.Time
	EndedAt    time.Time
}

type roomHooks struct {
	closed func(r *room, members []string)
	result func(Summary)
}

type room struct {
	id        string
	code      string
	createdAt time.Time
	info      atomic.Pointer[Info]

	inbox    chan func()
	quit     chan struct{}
	exited   chan struct{}
	stopOnce sync.Once

	name       string
	mode       game.Mode
	hostID     string
	players    []*Player
	maxPlayers int
	active     bool
	private    bool
	closed     bool
	cfg        game.Config
	engineOpts []game.Option
	engine     *game.Engine
	ticker     *time.Ticker
	startedAt  time.Time
	hooks      roomHooks
	log        zerolog.Logger
	now        func() time.Time
}

// ------------------------------- actor --------------------------------------

func (r *room) run() {
	defer close(r.exited)
	defer r.stopTicker()
	for {
		var tick <-chan time.Time
		if r.ticker != nil {
			tick = r.ticker.C
		}
		select {
		case <-r.quit:
			return
		case fn := <-r.inbox:
			r.safely("op", fn)
		case now := <-tick:
			r.safely("tick", func() { r.step(now) })
		}
	}
}

func (r *room) safely(what string, fn func()) {
	defer func() {
		if v := recover(); v != nil {
			r.log.Error().
				Interface("panic", v).
				Str("during", what).
				Bytes("stack", debug.Stack()).
				Msg("recovered in room loop")
		}
	}()
	fn()
}

// call runs fn on the room goroutine and waits for it.
func (r *room) call(fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}
	select {
	case r.inbox <- wrapped:
	case <-r.exited:
		return ErrRoomClosed
	}
	select {
	case <-done:
		return nil
	case <-r.exited:
		select {
		case <-done:
			return nil
		default:
			return ErrRoomClosed
		}
	}
}

// post queues fn without waiting for it to run.
func (r *room) post(fn func()) bool {
	select {
	case r.inbox <- fn:
		return true
	case <-r.exited:
		return false
	}
}

func (r *room) stopTicker() {
	if r.ticker != nil {
		r.ticker.Stop()
		r.ticker = nil
	}
}

// ------------------------------ membership ----------------------------------

func (r *room) player(id string) *Player {
	for _, p := range r.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *room) freeColor() string {
	for _, c := range Palette {
		taken := false
		for _, p := range r.players {
			if p.Color == c {
				taken = true
				break
			}
		}
		if !taken {
			return c
		}
	}
	return Palette[len(r.players)%len(Palette)]
}

// join adds p, or, during a match, hands p an existing seat with the same
// display name. It returns the id the seat had before when reclaimed.
func (r *room) join(p *Player) (string, error) {
	if oldID, ok := r.reclaim(p, true); ok {
		return oldID, nil
	}
	if len(r.players) >= r.maxPlayers {
		return "", ErrRoomFull
	}
	p.Color = r.freeColor()
	p.Alive = true
	p.Ready = false
	p.JoinedAt = r.now()
	r.players = append(r.players, p)
	if r.engine != nil {
		r.engine.AddPlayer(game.Seat{ID: p.ID, Name: p.Name, Color: p.Color})
	}
	r.broadcastRoom()
	r.sendTo(p, protocol.NewRoomJoined(r.view()))
	r.sendGame(p)
	r.publish()
	r.log.Info().Str("player", p.ID).Str("name", p.Name).Bool("lateJoin", r.active).Msg("player joined room")
	return "", nil
}

// reclaim rebinds a seat with p's name to p's connection during a match.
// Disconnected seats win over connected ones; connected seats are only
// taken over when allowAttached is set.
func (r *room) reclaim(p *Player, allowAttached bool) (string, bool) {
	if !r.active || r.engine == nil {
		return "", false
	}
	var match *Player
	for _, cand := range r.players {
		if cand.Name != p.Name || cand.ID == p.ID {
			continue
		}
		if cand.conn == nil {
			match = cand
			break
		}
		if allowAttached && match == nil {
			match = cand
		}
	}
	if match == nil {
		return "", false
	}

	oldID := match.ID
	if !r.engine.Remap(oldID, p.ID) {
		r.log.Warn().Str("from", oldID).Str("to", p.ID).Msg("seat not reclaimed; engine refused remap")
		return "", false
	}
	if match.conn != nil && match.conn != p.conn {
		r.sendTo(match, protocol.NewRoomLeft(r.id))
	}
	match.ID = p.ID
	match.conn = p.conn
	if p.AccountID != "" {
		match.AccountID = p.AccountID
	}
	if r.hostID == oldID {
		r.hostID = p.ID
	}

	r.broadcastRoom()
	r.sendTo(match, protocol.NewRoomJoined(r.view()))
	r.sendGame(match)
	r.publish()
	r.log.Info().Str("from", oldID).Str("to", p.ID).Str("name", p.Name).Msg("player reconnected")
	return oldID, true
}

// leave removes a member. The host leaving closes the room for everyone.
func (r *room) leave(playerID string) error {
	p := r.player(playerID)
	if p == nil {
		return ErrNotInRoom
	}
	if p.ID == r.hostID {
		if len(r.players) > 1 {
			r.broadcast(protocol.NewRoomClosed(r.id, ReasonHostLeft,
				fmt.Sprintf("Room closed because the host (%s) left the game.", p.Name)))
		}
		r.close(ReasonHostLeft)
		return nil
	}

	r.players = slices.DeleteFunc(r.players, func(x *Player) bool { return x.ID == playerID })
	if r.engine != nil {
		r.engine.RemovePlayer(playerID)
	}
	if len(r.players) == 0 {
		r.close(ReasonEmpty)
		return nil
	}
	r.broadcastRoom()
	r.publish()
	r.log.Info().Str("player", playerID).Msg("player left room")
	return nil
}

// disconnect keeps the seat during a match and evicts otherwise.
func (r *room) disconnect(playerID string) {
	p := r.player(playerID)
	if p == nil {
		return
	}
	if r.active {
		p.conn = nil
		r.broadcastRoom()
		r.publish()
		r.log.Info().Str("player", playerID).Msg("player disconnected mid-game; seat kept")
		return
	}
	_ = r.leave(playerID)
}

func (r *room) setReady(playerID string, ready bool) error {
	p := r.player(playerID)
	if p == nil {
		return ErrNotInRoom
	}
	p.Ready = ready
	r.broadcastRoom()
	return nil
}

func (r *room) setColor(playerID, color string) error {
	c, ok := inPalette(color)
	if !ok {
		return ErrBadColor
	}
	p := r.player(playerID)
	if p == nil {
		return ErrNotInRoom
	}
	for _, o := range r.players {
		if o != p && o.Color == c {
			return ErrColorTaken
		}
	}
	p.Color = c
	r.broadcastRoom()
	return nil
}

// close tears the room down. The manager hook removes it from the registry.
func (r *room) close(reason string) {
	if r.closed {
		return
	}
	r.closed = true
	r.stopTicker()
	r.engine = nil
	r.active = false
	members := make([]string, 0, len(r.players))
	for _, p := range r.players {
		members = append(members, p.ID)
	}
	r.stopOnce.Do(func() { close(r.quit) })
	if r.hooks.closed != nil {
		r.hooks.closed(r, members)
	}
	r.log.Info().Str("reason", reason).Msg("room closed")
}

// -------------------------------- match -------------------------------------

func (r *room) start(playerID string) error {
	switch {
	case r.active:
		return ErrGameActive
	case playerID != r.hostID:
		return ErrNotHost
	case len(r.players) < 2:
		return ErrNotEnoughPlayers
	}
	ready := false
	for _, p := range r.players {
		if p.ID != r.hostID && p.Ready {
			ready = true
			break
		}
	}
	if !ready {
		return ErrNobodyReady
	}

	seats := make([]game.Seat, len(r.players))
	for i, p := range r.players {
		seats[i] = game.Seat{ID: p.ID, Name: p.Name, Color: p.Color}
		p.Alive = true
	}
	hooks := game.Hooks{
		OnState: func(s game.Snapshot) {
			r.broadcast(protocol.NewGameState(r.id, s))
		},
		OnCrossword: func(c game.CrosswordSnapshot) {
			r.broadcast(protocol.NewCrosswordState(r.id, c))
		},
	}
	opts := append([]game.Option{game.WithLogger(r.log)}, r.engineOpts...)
	now := r.now()
	r.engine = game.New(r.cfg, r.mode, seats, hooks, opts...)
	r.active = true
	r.startedAt = now

	r.broadcast(protocol.NewGameStarted(r.id))
	r.engine.Start(now)
	r.ticker = time.NewTicker(r.cfg.TickInterval())
	r.publish()
	r.log.Info().Str("mode", string(r.mode)).Int("players", len(seats)).Msg("game started")
	return nil
}

func (r *room) step(now time.Time) {
	if r.engine == nil {
		return
	}
	ended := r.engine.Tick(now)
	for _, p := range r.players {
		p.Alive = r.engine.PlayerAlive(p.ID)
	}
	if ended {
		r.endGame(now)
	}
}

func (r *room) input(playerID string, dir game.Direction) {
	if r.engine == nil {
		r.log.Debug().Str("player", playerID).Msg("input with no game running")
		return
	}
	if err := r.engine.HandleInput(playerID, dir); err != nil {
		r.log.Debug().Err(err).Str("player", playerID).Msg("input dropped")
	}
}

// endGame announces the result, resets the lobby and evicts members who
// dropped out during the match.
func (r *room) endGame(now time.Time) {
	res, _ := r.engine.Result()
	r.stopTicker()
	r.broadcast(protocol.NewGameEnded(r.id, res))
	if r.hooks.result != nil {
		go r.hooks.result(r.summarize(res, now))
	}

	r.engine = nil
	r.active = false
	for _, p := range r.players {
		p.Ready = false
		p.Alive = true
	}
	for _, p := range slices.Clone(r.players) {
		if p.conn == nil {
			_ = r.leave(p.ID)
			if r.closed {
				return
			}
		}
	}
	r.broadcastRoom()
	r.publish()
}

func (r *room) summarize(res game.Result, now time.Time) Summary {
	s := Summary{
		RoomID:     r.id,
		RoomName:   r.name,
		Mode:       r.mode,
		WinnerID:   res.WinnerID,
		WinnerName: res.WinnerName,
		StartedAt:  r.startedAt,
		EndedAt:    now,
	}
	for _, sc := range res.Scores {
		st := Standing{PlayerID: sc.PlayerID, PlayerName: sc.PlayerName, Score: sc.Score, Won: sc.PlayerID == res.WinnerID}
		if p := r.player(sc.PlayerID); p != nil {
			st.AccountID = p.AccountID
		}
		s.Standings = append(s.Standings, st)
	}
	return s
}

// ------------------------------- fan-out ------------------------------------

func (r *room) broadcast(v any) {
	frame := protocol.Encode(v)
	if frame == nil {
		return
	}
	for _, p := range r.players {
		if p.conn != nil && !p.conn.Send(frame) {
			r.log.Debug().Str("player", p.ID).Msg("send buffer full; frame dropped")
		}
	}
}

func (r *room) sendTo(p *Player, v any) {
	if p.conn == nil {
		return
	}
	if frame := protocol.Encode(v); frame != nil {
		p.conn.Send(frame)
	}
}

// sendGame brings a (re)joining member up to date with a running match.
func (r *room) sendGame(p *Player) {
	if r.engine == nil {
		return
	}
	r.sendTo(p, protocol.NewGameState(r.id, r.engine.Snapshot()))
	if c, ok := r.engine.CrosswordSnapshot(); ok {
		r.sendTo(p, protocol.NewCrosswordState(r.id, c))
	}
}

func (r *room) broadcastRoom() {
	r.broadcast(protocol.NewRoomUpdated(r.view()))
}

func (r *room) view() protocol.RoomView {
	v := protocol.RoomView{
		ID:           r.id,
		Name:         r.name,
		Code:         r.code,
		GameMode:     r.mode,
		HostPlayerID: r.hostID,
		Players:      make([]protocol.PlayerView, 0, len(r.players)),
		MaxPlayers:   r.maxPlayers,
		IsGameActive: r.active,
		IsPrivate:    r.private,
		CreatedAt:    r.createdAt.UnixMilli(),
		Config:       r.cfg,
	}
	for _, p := range r.players {
		v.Players = append(v.Players, protocol.PlayerView{
			ID:          p.ID,
			Name:        p.Name,
			IsReady:     p.Ready,
			IsAlive:     p.Alive,
			IsConnected: p.conn != nil,
			JoinedAt:    p.JoinedAt.UnixMilli(),
			Color:       p.Color,
		})
	}
	if r.engine != nil {
		snap := r.engine.Snapshot()
		v.GameState = &snap
		if c, ok := r.engine.CrosswordSnapshot(); ok {
			v.CrosswordState = &c
		}
	}
	return v
}

func (r *room) publish() {
	info := Info{
		ID:          r.id,
		Name:        r.name,
		Code:        r.code,
		Mode:        r.mode,
		HostID:      r.hostID,
		PlayerCount: len(r.players),
		MaxPlayers:  r.maxPlayers,
		Active:      r.active,
		Private:     r.private,
		CreatedAt:   r.createdAt,
	}
	if h := r.player(r.hostID); h != nil {
		info.HostName = h.Name
	}
	r.info.Store(&info)
}
