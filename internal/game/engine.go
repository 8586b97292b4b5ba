// apps/go-server/internal/game/engine.go
//
// Per-room simulation engine.
// Responsibilities:
//   - Spawn one snake per starting seat, lazily for late joiners.
//   - Buffer direction input and promote it at the start of each tick.
//   - Advance snakes, hand tile pickups to the mode rules, resolve collisions.
//   - Evaluate the mode's end condition and emit throttled snapshots.
//
// Notes:
//   - An Engine is owned by exactly one goroutine (its room). Nothing here
//     locks; callers serialize every method call.
//   - Hooks run synchronously inside Start/Tick so a tick's broadcast is
//     queued before the next tick can begin.

package game

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/snakeword/apps/go-server/internal/words"
)

var (
	ErrUnknownPlayer = errors.New("game: unknown player")
	ErrReverse       = errors.New("game: direction reverses current heading")
	ErrSnakeDead     = errors.New("game: snake is dead")
	ErrNoSpawn       = errors.New("game: no free spawn position")
	ErrGameOver      = errors.New("game: match has ended")
	ErrWrongMode     = errors.New("game: not available in this mode")
)

const (
	spawnAttempts = 100
	deadLinger    = 10 // ticks a dead snake stays in snapshots
)

// Hooks receive engine output. Both are optional.
type Hooks struct {
	OnState     func(Snapshot)
	OnCrossword func(CrosswordSnapshot)
}

// Score is one line of the final standings.
type Score struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Score      int    `json:"score"`
}

// Result is the outcome of a finished match.
type Result struct {
	Mode       Mode
	WinnerID   string
	WinnerName string
	Scores     []Score
	GameTime   time.Duration
}

// Snapshot is the game_state payload.
type Snapshot struct {
	Snakes            []Snake              `json:"snakes"`
	LetterTiles       []LetterTile         `json:"letterTiles"`
	PlayerInventories map[string]Inventory `json:"playerInventories"`
	GameTime          int64                `json:"gameTime"`
	IsActive          bool                 `json:"isActive"`
	Config            Config               `json:"config"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithRand makes the engine deterministic.
func WithRand(r *rand.Rand) Option { return func(e *Engine) { e.rng = r } }

// WithClues fixes the crossword clue list instead of drawing at random.
func WithClues(c []Clue) Option {
	return func(e *Engine) { e.clues = append([]Clue{}, c...) }
}

// WithLogger sets the logger used for engine events.
func WithLogger(l zerolog.Logger) Option { return func(e *Engine) { e.log = l } }

type participant struct {
	Seat
	alive bool
}

// Engine simulates one match.
type Engine struct {
	cfg   Config
	mode  Mode
	rules rules
	rng   *rand.Rand
	hooks Hooks
	log   zerolog.Logger

	roster      []*participant
	snakes      []*Snake
	tiles       *TileManager
	inventories map[string]*Inventory
	clues       []Clue
	cross       *crossword

	tick          int
	elapsed       time.Duration
	lastBroadcast time.Time
	lastSpawn     time.Duration
	crossDirty    bool
	pendingWin    string
	result        *Result
}

// New builds an engine for seats in room order and lays out the board.
// Call Start before the first Tick.
func New(cfg Config, mode Mode, seats []Seat, hooks Hooks, opts ...Option) *Engine {
	e := &Engine{
		cfg:         cfg,
		mode:        mode,
		rules:       rulesFor(mode),
		hooks:       hooks,
		log:         log.Logger,
		inventories: make(map[string]*Inventory),
	}
	for _, o := range opts {
		o(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	e.tiles = NewTileManager(cfg, e.rng)

	for i, s := range seats {
		e.roster = append(e.roster, &participant{Seat: s, alive: true})
		if err := e.spawnInitial(i, s); err != nil {
			e.log.Warn().Err(err).Str("player", s.ID).Msg("initial spawn failed")
		}
	}
	e.rules.setup(e)
	for _, p := range e.roster {
		e.rules.join(e, p.ID)
	}
	return e
}

// Start emits the opening snapshots.
func (e *Engine) Start(now time.Time) {
	if e.cross != nil {
		e.emitCrossword()
	}
	e.emitState(now)
}

// Mode reports the rule set in use.
func (e *Engine) Mode() Mode { return e.mode }

// Result returns the final result once the match has ended.
func (e *Engine) Result() (Result, bool) {
	if e.result == nil {
		return Result{}, false
	}
	return *e.result, true
}

// ------------------------------- input --------------------------------------

// HandleInput buffers a direction change for playerID. A player without a
// snake (late joiner) gets one spawned here, facing dir. Exact reversals of
// the current heading are rejected and leave the snake unchanged.
func (e *Engine) HandleInput(playerID string, dir Direction) error {
	if e.result != nil {
		return ErrGameOver
	}
	p := e.participant(playerID)
	if p == nil {
		return ErrUnknownPlayer
	}
	s := e.snakeOf(playerID)
	if s == nil {
		if !p.alive {
			return ErrSnakeDead
		}
		if _, err := e.spawnLate(p.Seat, dir); err != nil {
			return err
		}
		e.rules.join(e, playerID)
		return nil
	}
	if !s.Alive {
		return ErrSnakeDead
	}
	if dir.Reverses(s.Direction) {
		return ErrReverse
	}
	d := dir
	s.next = &d
	return nil
}

// AddPlayer registers a seat that joined mid-match. Its snake is created on
// its first input.
func (e *Engine) AddPlayer(seat Seat) {
	if e.participant(seat.ID) != nil {
		return
	}
	e.roster = append(e.roster, &participant{Seat: seat, alive: true})
	e.rules.join(e, seat.ID)
}

// RemovePlayer forfeits a departed player: their snake dies and the end
// condition is evaluated on the next tick. Scores are kept.
func (e *Engine) RemovePlayer(playerID string) {
	p := e.participant(playerID)
	if p == nil {
		return
	}
	if s := e.snakeOf(playerID); s != nil && s.Alive {
		e.kill(s, "left")
	}
	p.alive = false
}

// Remap moves snake, progress and inventory ownership from oldID to newID,
// keeping segments and scores as they are. A participant already known as
// newID is discarded first when it has no living snake (a late joiner that
// left); one with a living snake makes Remap refuse.
func (e *Engine) Remap(oldID, newID string) bool {
	p := e.participant(oldID)
	if p == nil || oldID == newID {
		return false
	}
	if e.participant(newID) != nil {
		if s := e.snakeOf(newID); s != nil && s.Alive {
			return false
		}
		e.discard(newID)
	}
	p.ID = newID
	if s := e.snakeOf(oldID); s != nil {
		s.PlayerID = newID
		s.ID = snakeID(newID)
	}
	if inv, ok := e.inventories[oldID]; ok {
		delete(e.inventories, oldID)
		inv.PlayerID = newID
		e.inventories[newID] = inv
	}
	if e.cross != nil {
		e.cross.progress.rename(oldID, newID)
	}
	if e.pendingWin == oldID {
		e.pendingWin = newID
	}
	return true
}

// SubmitWord spends inventory letters on a word (classic mode). Letters the
// player does not hold, or unknown words, produce an invalid result and
// leave the inventory untouched.
func (e *Engine) SubmitWord(playerID string, letters []string) (words.Result, Inventory, error) {
	if e.mode != ModeClassic {
		return words.Result{}, Inventory{}, ErrWrongMode
	}
	inv, ok := e.inventories[playerID]
	if !ok {
		return words.Result{}, Inventory{}, ErrUnknownPlayer
	}
	norm := make([]string, len(letters))
	for i, l := range letters {
		norm[i] = strings.ToUpper(strings.TrimSpace(l))
	}
	word := strings.Join(norm, "")

	used, remaining, missing := inv.take(norm)
	if missing != "" {
		return rejected(word, fmt.Sprintf("Player doesn't have letter '%s'", missing)), inv.clone(), nil
	}
	res := words.Validate(letterStrings(used))
	if !res.Valid {
		return res, inv.clone(), nil
	}
	inv.CollectedLetters = remaining
	inv.CurrentWordAttempt = []string{}
	inv.CompletedWords = append(inv.CompletedWords, CompletedWord{
		Word:      res.Word,
		Letters:   used,
		Points:    res.TotalPoints,
		Timestamp: e.elapsed.Milliseconds(),
		Valid:     true,
	})
	inv.TotalScore += res.TotalPoints
	if s := e.snakeOf(playerID); s != nil {
		s.Score += res.TotalPoints
	}
	e.log.Debug().Str("player", playerID).Str("word", res.Word).Int("points", res.TotalPoints).Msg("word accepted")
	return res, inv.clone(), nil
}

// ClearAttempt resets the player's in-progress word.
func (e *Engine) ClearAttempt(playerID string) error {
	inv, ok := e.inventories[playerID]
	if !ok {
		return ErrUnknownPlayer
	}
	inv.CurrentWordAttempt = []string{}
	return nil
}

// PlayerAlive reports whether playerID is still in the running.
func (e *Engine) PlayerAlive(playerID string) bool {
	p := e.participant(playerID)
	return p != nil && p.alive
}

// -------------------------------- tick --------------------------------------

// Tick advances the match one step and reports whether it has ended.
func (e *Engine) Tick(now time.Time) bool {
	if e.result != nil {
		return true
	}
	e.tick++
	e.elapsed += e.cfg.TickInterval()

	for _, s := range e.snakes {
		if s.Alive && s.next != nil {
			s.Direction = *s.next
			s.next = nil
		}
	}
	for _, s := range e.snakes {
		if s.Alive {
			e.advance(s)
		}
	}
	e.resolveCollisions()
	e.expireDead()

	if res, done := e.rules.outcome(e); done {
		e.finish(now, res)
		return true
	}
	e.rules.afterTick(e)

	if e.crossDirty {
		e.emitCrossword()
	}
	if now.Sub(e.lastBroadcast) >= e.cfg.BroadcastInterval {
		e.emitState(now)
	}
	return false
}

func (e *Engine) advance(s *Snake) {
	head := s.Head().Add(s.Direction)
	s.Segments = append([]Position{head}, s.Segments...)

	got := pickupNone
	if t, ok := e.tiles.At(head); ok {
		e.tiles.Remove(t.ID)
		got = e.rules.collect(e, s, t)
	}
	if got == pickupGrow {
		return
	}
	s.Segments = s.Segments[:len(s.Segments)-1]
	if got == pickupShrink {
		e.shrink(s)
	}
}

// shrink drops one tail segment, or kills a snake already at two segments.
func (e *Engine) shrink(s *Snake) {
	if len(s.Segments) <= 2 {
		e.kill(s, "shrunk")
		return
	}
	s.Segments = s.Segments[:len(s.Segments)-1]
}

// resolveCollisions checks, per snake: wall, self, then other living snakes.
func (e *Engine) resolveCollisions() {
	for _, s := range e.snakes {
		if !s.Alive {
			continue
		}
		head := s.Head()
		switch {
		case !e.cfg.InBounds(head):
			e.kill(s, "wall")
		case s.occupies(head, 1):
			e.kill(s, "self")
		default:
			for _, o := range e.snakes {
				if o != s && o.Alive && o.occupies(head, 0) {
					e.kill(s, "snake")
					break
				}
			}
		}
	}
}

func (e *Engine) kill(s *Snake, cause string) {
	s.Alive = false
	s.next = nil
	s.diedAt = e.tick
	s.lingers = true
	if p := e.participant(s.PlayerID); p != nil {
		p.alive = false
	}
	e.log.Debug().Str("player", s.PlayerID).Str("cause", cause).Msg("snake died")
}

func (e *Engine) expireDead() {
	for _, s := range e.snakes {
		if !s.Alive && s.lingers && e.tick-s.diedAt >= deadLinger {
			s.lingers = false
		}
	}
}

func (e *Engine) finish(now time.Time, res Result) {
	res.Mode = e.mode
	res.GameTime = e.elapsed
	e.result = &res
	if e.crossDirty {
		e.emitCrossword()
	}
	e.emitState(now)
	e.log.Info().Str("winner", res.WinnerName).Dur("gameTime", e.elapsed).Msg("match ended")
}

// ------------------------------ snapshots -----------------------------------

// Snapshot copies the current state for serialization.
func (e *Engine) Snapshot() Snapshot {
	snap := Snapshot{
		Snakes:            make([]Snake, 0, len(e.snakes)),
		LetterTiles:       e.tiles.Tiles(),
		PlayerInventories: make(map[string]Inventory, len(e.inventories)),
		GameTime:          e.elapsed.Milliseconds(),
		IsActive:          e.result == nil,
		Config:            e.cfg,
	}
	for _, s := range e.snakes {
		if !s.Alive && !s.lingers {
			continue
		}
		c := *s
		c.Segments = slices.Clone(s.Segments)
		c.next = nil
		snap.Snakes = append(snap.Snakes, c)
	}
	for id, inv := range e.inventories {
		snap.PlayerInventories[id] = inv.clone()
	}
	return snap
}

// CrosswordSnapshot returns the puzzle state; false outside crossword mode.
func (e *Engine) CrosswordSnapshot() (CrosswordSnapshot, bool) {
	if e.cross == nil {
		return CrosswordSnapshot{}, false
	}
	return e.cross.snapshot(e.elapsed.Milliseconds()), true
}

func (e *Engine) emitState(now time.Time) {
	e.lastBroadcast = now
	if e.hooks.OnState != nil {
		e.hooks.OnState(e.Snapshot())
	}
}

func (e *Engine) emitCrossword() {
	e.crossDirty = false
	if e.hooks.OnCrossword != nil && e.cross != nil {
		e.hooks.OnCrossword(e.cross.snapshot(e.elapsed.Milliseconds()))
	}
}

// ------------------------------- helpers ------------------------------------

// discard forgets every trace of playerID.
func (e *Engine) discard(playerID string) {
	e.roster = slices.DeleteFunc(e.roster, func(p *participant) bool { return p.ID == playerID })
	e.snakes = slices.DeleteFunc(e.snakes, func(s *Snake) bool { return s.PlayerID == playerID })
	delete(e.inventories, playerID)
	if e.cross != nil {
		e.cross.progress.remove(playerID)
	}
}

func (e *Engine) participant(id string) *participant {
	for _, p := range e.roster {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (e *Engine) snakeOf(playerID string) *Snake {
	for _, s := range e.snakes {
		if s.PlayerID == playerID {
			return s
		}
	}
	return nil
}

func (e *Engine) livingSnakes() []*Snake {
	var out []*Snake
	for _, s := range e.snakes {
		if s.Alive {
			out = append(out, s)
		}
	}
	return out
}

// snakeCells returns every cell under a live or still-rendered snake.
func (e *Engine) snakeCells() map[Position]struct{} {
	cells := make(map[Position]struct{})
	for _, s := range e.snakes {
		if !s.Alive && !s.lingers {
			continue
		}
		for _, p := range s.Segments {
			cells[p] = struct{}{}
		}
	}
	return cells
}

func snakeID(playerID string) string { return "snake_" + playerID }
