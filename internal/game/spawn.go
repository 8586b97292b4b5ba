package game

import "fmt"

// body lays out n cells starting at head and trailing away from dir.
func body(head Position, dir Direction, n int) []Position {
	segs := make([]Position, n)
	for i := range segs {
		segs[i] = Position{X: head.X - dir.X*i, Y: head.Y - dir.Y*i}
	}
	return segs
}

// fits reports whether every cell is on the board and not blocked.
func (e *Engine) fits(segs []Position, blocked map[Position]struct{}) bool {
	for _, p := range segs {
		if !e.cfg.InBounds(p) {
			return false
		}
		if _, ok := blocked[p]; ok {
			return false
		}
		if _, ok := e.tiles.At(p); ok {
			return false
		}
	}
	return true
}

// startHead staggers starting seats ten columns apart; seats that do not
// fit on one row go to lanes alternately above and below the middle row.
func (e *Engine) startHead(i int) Position {
	perRow := max(1, (e.cfg.Cols()-6)/10+1)
	lane := i / perRow
	offset := ((lane + 1) / 2) * 4
	if lane%2 == 1 {
		offset = -offset
	}
	return Position{X: 5 + (i%perRow)*10, Y: e.cfg.Rows()/2 + offset}
}

func (e *Engine) spawnInitial(i int, seat Seat) error {
	segs := body(e.startHead(i), Right, e.cfg.InitialSnakeLength)
	if !e.fits(segs, e.snakeCells()) {
		_, err := e.spawnLate(seat, Right)
		return err
	}
	e.addSnake(seat, segs, Right)
	return nil
}

// spawnLate finds a free spot by bounded random retries, keeping a margin
// from the walls so the new snake has room to react.
func (e *Engine) spawnLate(seat Seat, dir Direction) (*Snake, error) {
	n := e.cfg.InitialSnakeLength
	margin := n + 1
	cols, rows := e.cfg.Cols(), e.cfg.Rows()
	if cols <= 2*margin || rows <= 2*margin {
		return nil, ErrNoSpawn
	}
	blocked := e.snakeCells()
	for i := 0; i < spawnAttempts; i++ {
		head := Position{
			X: e.rng.Intn(cols-2*margin) + margin,
			Y: e.rng.Intn(rows-2*margin) + margin,
		}
		segs := body(head, dir, n)
		if e.fits(segs, blocked) {
			return e.addSnake(seat, segs, dir), nil
		}
	}
	return nil, fmt.Errorf("spawn %s: %w", seat.ID, ErrNoSpawn)
}

func (e *Engine) addSnake(seat Seat, segs []Position, dir Direction) *Snake {
	s := &Snake{
		ID:        snakeID(seat.ID),
		PlayerID:  seat.ID,
		Segments:  segs,
		Direction: dir,
		Color:     seat.Color,
		Alive:     true,
	}
	e.snakes = append(e.snakes, s)
	return s
}
