// apps/go-server/internal/game/types.go
//
// Core type definitions for the arena engine.
// Defines:
//   - Position, Direction: grid coordinates and unit movement vectors.
//   - Mode: classic or crossword_search.
//   - Config: board geometry and pacing, immutable for a room's lifetime.
//   - Snake, LetterTile, Seat: per-match entities.

package game

import (
	"strings"
	"time"

	"github.com/robalobadob/snakeword/apps/go-server/internal/words"
)

// Position is a grid cell. Cells are addressed in grid units, not pixels.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Add returns p moved by d.
func (p Position) Add(d Direction) Position { return Position{X: p.X + d.X, Y: p.Y + d.Y} }

// Direction is a unit vector; exactly one axis is non-zero.
type Direction struct {
	X int `json:"x"`
	Y int `json:"y"`
}

var (
	Up    = Direction{X: 0, Y: -1}
	Down  = Direction{X: 0, Y: 1}
	Left  = Direction{X: -1, Y: 0}
	Right = Direction{X: 1, Y: 0}
)

// ParseDirection maps the wire names UP/DOWN/LEFT/RIGHT (any case).
func ParseDirection(name string) (Direction, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "UP":
		return Up, true
	case "DOWN":
		return Down, true
	case "LEFT":
		return Left, true
	case "RIGHT":
		return Right, true
	}
	return Direction{}, false
}

// Reverses reports whether d points exactly opposite to o.
func (d Direction) Reverses(o Direction) bool {
	return d.X == -o.X && d.Y == -o.Y
}

// Mode selects the rule set of a match.
type Mode string

const (
	ModeClassic   Mode = "classic"
	ModeCrossword Mode = "crossword_search"
)

// ParseMode normalizes a wire value; anything unknown falls back to classic.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeCrossword, "crossword":
		return ModeCrossword
	default:
		return ModeClassic
	}
}

// Config is the board geometry and pacing copied into each room.
// GameSpeed is in milliseconds, FoodSpawnRate in seconds (wire units).
type Config struct {
	GridSize           int `json:"gridSize"`
	CanvasWidth        int `json:"canvasWidth"`
	CanvasHeight       int `json:"canvasHeight"`
	GameSpeed          int `json:"gameSpeed"`
	InitialSnakeLength int `json:"initialSnakeLength"`
	FoodSpawnRate      int `json:"foodSpawnRate"`

	// BroadcastInterval throttles state fan-out; not sent to clients.
	BroadcastInterval time.Duration `json:"-"`
}

// DefaultConfig is a 40x30 board ticking every 200ms, fanned out at 20Hz.
func DefaultConfig() Config {
	return Config{
		GridSize:           20,
		CanvasWidth:        800,
		CanvasHeight:       600,
		GameSpeed:          200,
		InitialSnakeLength: 3,
		FoodSpawnRate:      2,
		BroadcastInterval:  50 * time.Millisecond,
	}
}

// Cols and Rows are the board dimensions in cells.
func (c Config) Cols() int { return c.CanvasWidth / c.GridSize }
func (c Config) Rows() int { return c.CanvasHeight / c.GridSize }

// TickInterval is the duration of one simulation step.
func (c Config) TickInterval() time.Duration {
	return time.Duration(c.GameSpeed) * time.Millisecond
}

// InBounds reports whether p lies on the board.
func (c Config) InBounds(p Position) bool {
	return p.X >= 0 && p.X < c.Cols() && p.Y >= 0 && p.Y < c.Rows()
}

// Seat is a participant as the engine sees it.
type Seat struct {
	ID    string
	Name  string
	Color string
}

// Snake is one player's body. Segments[0] is the head.
type Snake struct {
	ID        string     `json:"id"`
	PlayerID  string     `json:"playerId"`
	Segments  []Position `json:"segments"`
	Direction Direction  `json:"direction"`
	Color     string     `json:"color"`
	Alive     bool       `json:"isAlive"`
	Score     int        `json:"score"`

	next    *Direction // buffered input, promoted at the start of a tick
	diedAt  int        // tick index of death
	lingers bool       // still rendered after death
}

// Head returns the first segment.
func (s *Snake) Head() Position { return s.Segments[0] }

func (s *Snake) occupies(p Position, from int) bool {
	for i := from; i < len(s.Segments); i++ {
		if s.Segments[i] == p {
			return true
		}
	}
	return false
}

// LetterTile is a collectible letter on the board.
type LetterTile struct {
	ID       string       `json:"id"`
	Position Position     `json:"position"`
	Letter   string       `json:"letter"`
	Points   int          `json:"points"`
	Rarity   words.Rarity `json:"rarity"`
}
