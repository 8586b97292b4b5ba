package game

import (
	"fmt"
	"math/rand"

	"github.com/robalobadob/snakeword/apps/go-server/internal/words"
)

// TileManager owns the letter tiles on one board. It is not safe for
// concurrent use; the owning engine serializes access.
type TileManager struct {
	cfg   Config
	rng   *rand.Rand
	tiles []LetterTile
	at    map[Position]string // cell -> tile id
	seq   int

	weighted []words.LetterInfo
	total    int
}

// NewTileManager builds a manager for cfg's board.
func NewTileManager(cfg Config, rng *rand.Rand) *TileManager {
	tm := &TileManager{cfg: cfg, rng: rng, at: make(map[Position]string)}
	for _, l := range words.Letters {
		tm.weighted = append(tm.weighted, l)
		tm.total += l.Weight()
	}
	return tm
}

// Spawn places a tile with a weighted random letter on a free cell.
// It returns false when every cell is taken by a tile or by excluded.
func (tm *TileManager) Spawn(excluded map[Position]struct{}) (LetterTile, bool) {
	return tm.place(tm.randomLetter(), excluded)
}

// SpawnLetter places a tile carrying a fixed letter.
func (tm *TileManager) SpawnLetter(letter string, excluded map[Position]struct{}) (LetterTile, bool) {
	return tm.place(letter, excluded)
}

func (tm *TileManager) place(letter string, excluded map[Position]struct{}) (LetterTile, bool) {
	pos, ok := tm.freeCell(excluded)
	if !ok {
		return LetterTile{}, false
	}
	return tm.put(letter, pos), true
}

// put stores a tile at pos without any free-cell check.
func (tm *TileManager) put(letter string, pos Position) LetterTile {
	info, _ := words.Lookup(letter)
	tm.seq++
	t := LetterTile{
		ID:       fmt.Sprintf("tile_%d", tm.seq),
		Position: pos,
		Letter:   letter,
		Points:   info.Points,
		Rarity:   info.Rarity,
	}
	tm.tiles = append(tm.tiles, t)
	tm.at[pos] = t.ID
	return t
}

// freeCell picks uniformly among cells holding neither a tile nor an
// excluded position.
func (tm *TileManager) freeCell(excluded map[Position]struct{}) (Position, bool) {
	cols, rows := tm.cfg.Cols(), tm.cfg.Rows()
	free := make([]Position, 0, cols*rows)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			p := Position{X: x, Y: y}
			if _, taken := tm.at[p]; taken {
				continue
			}
			if _, skip := excluded[p]; skip {
				continue
			}
			free = append(free, p)
		}
	}
	if len(free) == 0 {
		return Position{}, false
	}
	return free[tm.rng.Intn(len(free))], true
}

func (tm *TileManager) randomLetter() string {
	n := tm.rng.Intn(tm.total)
	for _, l := range tm.weighted {
		n -= l.Weight()
		if n < 0 {
			return l.Letter
		}
	}
	return "E"
}

// At returns the tile occupying pos, if any.
func (tm *TileManager) At(pos Position) (LetterTile, bool) {
	id, ok := tm.at[pos]
	if !ok {
		return LetterTile{}, false
	}
	for _, t := range tm.tiles {
		if t.ID == id {
			return t, true
		}
	}
	return LetterTile{}, false
}

// Remove deletes a tile by id. Unknown ids are ignored.
func (tm *TileManager) Remove(id string) {
	for i, t := range tm.tiles {
		if t.ID == id {
			delete(tm.at, t.Position)
			tm.tiles = append(tm.tiles[:i], tm.tiles[i+1:]...)
			return
		}
	}
}

// Clear empties the board.
func (tm *TileManager) Clear() {
	tm.tiles = tm.tiles[:0]
	clear(tm.at)
}

// Tiles returns a copy of the live tiles in spawn order.
func (tm *TileManager) Tiles() []LetterTile {
	out := make([]LetterTile, len(tm.tiles))
	copy(out, tm.tiles)
	return out
}

// Count is the number of live tiles.
func (tm *TileManager) Count() int { return len(tm.tiles) }
