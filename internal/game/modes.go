package game

import (
	"time"
)

// pickup is what a tile collection does to the collecting snake.
type pickup int

const (
	pickupNone   pickup = iota
	pickupGrow          // keep the tail
	pickupShrink        // drop the tail and one more segment
)

const (
	classicInitialTiles = 4
	classicMaxTiles     = 12
)

// rules is the mode-specific part of the engine, chosen once per match.
type rules interface {
	setup(e *Engine)
	join(e *Engine, playerID string)
	collect(e *Engine, s *Snake, t LetterTile) pickup
	afterTick(e *Engine)
	outcome(e *Engine) (Result, bool)
}

func rulesFor(m Mode) rules {
	if m == ModeCrossword {
		return crosswordRules{}
	}
	return classicRules{}
}

// ------------------------------- classic ------------------------------------

type classicRules struct{}

func (classicRules) setup(e *Engine) {
	for i := 0; i < classicInitialTiles; i++ {
		e.tiles.Spawn(e.snakeCells())
	}
}

func (classicRules) join(e *Engine, playerID string) {
	if _, ok := e.inventories[playerID]; !ok {
		e.inventories[playerID] = newInventory(playerID)
	}
}

func (r classicRules) collect(e *Engine, s *Snake, t LetterTile) pickup {
	r.join(e, s.PlayerID)
	inv := e.inventories[s.PlayerID]
	inv.CollectedLetters = append(inv.CollectedLetters, CollectedLetter{
		Letter:      t.Letter,
		CollectTime: e.elapsed.Milliseconds(),
		FromTileID:  t.ID,
		Points:      t.Points,
	})
	if _, ok := e.tiles.Spawn(e.snakeCells()); !ok {
		e.log.Debug().Msg("no free cell for replacement tile")
	}
	return pickupGrow
}

// afterTick tops the board up every FoodSpawnRate seconds.
func (classicRules) afterTick(e *Engine) {
	every := time.Duration(e.cfg.FoodSpawnRate) * time.Second
	if every <= 0 || e.elapsed-e.lastSpawn < every {
		return
	}
	e.lastSpawn = e.elapsed
	if e.tiles.Count() < classicMaxTiles {
		e.tiles.Spawn(e.snakeCells())
	}
}

// outcome ends the match once at most one snake is alive.
func (classicRules) outcome(e *Engine) (Result, bool) {
	alive := e.livingSnakes()
	if len(alive) > 1 {
		return Result{}, false
	}
	var res Result
	if len(alive) == 1 {
		res.WinnerID = alive[0].PlayerID
		if p := e.participant(res.WinnerID); p != nil {
			res.WinnerName = p.Name
		}
	}
	for _, p := range e.roster {
		sc := Score{PlayerID: p.ID, PlayerName: p.Name}
		if s := e.snakeOf(p.ID); s != nil {
			sc.Score = s.Score
		}
		res.Scores = append(res.Scores, sc)
	}
	return res, true
}

// ------------------------------ crossword -----------------------------------

type crosswordRules struct{}

func (crosswordRules) setup(e *Engine) {
	clues := e.clues
	if len(clues) == 0 {
		clues = RandomClues(DefaultClueCount, e.rng)
	}
	e.cross = &crossword{clues: clues, progress: newProgressTable()}
	if len(clues) > 0 {
		e.layoutBoard(string(clues[0].Answer[0]))
	}
}

func (crosswordRules) join(e *Engine, playerID string) {
	e.cross.progress.add(playerID)
	e.crossDirty = true
}

func (crosswordRules) collect(e *Engine, s *Snake, t LetterTile) pickup {
	c := e.cross
	p := c.progress.add(s.PlayerID)
	want := c.expected(p)
	e.crossDirty = true

	if want == "" || t.Letter != want {
		p.WrongLetterCount++
		e.placeBoard(c.available)
		return pickupShrink
	}

	p.CurrentLetterIndex++
	answer := c.clues[p.CurrentClueIndex].Answer
	if p.CurrentLetterIndex >= len(answer) {
		p.CompletedClues++
		p.CompletedWords = append(p.CompletedWords, answer)
		p.CurrentClueIndex++
		p.CurrentLetterIndex = 0
		c.completions++
		s.Score = p.CompletedClues
		e.log.Debug().Str("player", s.PlayerID).Str("answer", answer).Msg("clue completed")
		if p.CurrentClueIndex >= len(c.clues) {
			e.pendingWin = s.PlayerID
			return pickupGrow
		}
	}
	e.layoutBoard(c.expected(p))
	return pickupGrow
}

func (crosswordRules) afterTick(*Engine) {}

// outcome ends the match when a player finishes every clue, or when no
// snake is left alive. Standings are completed clues; ties go to the
// earliest seat.
func (crosswordRules) outcome(e *Engine) (Result, bool) {
	if e.pendingWin == "" && len(e.livingSnakes()) > 0 {
		return Result{}, false
	}
	var res Result
	best := -1
	for _, p := range e.roster {
		done := 0
		if pr, ok := e.cross.progress.get(p.ID); ok {
			done = pr.CompletedClues
		}
		res.Scores = append(res.Scores, Score{PlayerID: p.ID, PlayerName: p.Name, Score: done})
		if e.pendingWin == "" && done > best {
			best = done
			res.WinnerID, res.WinnerName = p.ID, p.Name
		}
	}
	if e.pendingWin != "" {
		res.WinnerID = e.pendingWin
		if p := e.participant(e.pendingWin); p != nil {
			res.WinnerName = p.Name
		}
	}
	return res, true
}

// layoutBoard regenerates the crossword tiles around next, also covering
// the letters other living players are waiting for when there is room.
func (e *Engine) layoutBoard(next string) {
	c := e.cross
	required := []string{}
	if next != "" {
		required = append(required, next)
	}
	for _, p := range e.roster {
		if !p.alive {
			continue
		}
		pr, ok := c.progress.get(p.ID)
		if !ok {
			continue
		}
		if l := c.expected(pr); l != "" && !containsLetter(required, l) && len(required) < BoardLetterCount/2 {
			required = append(required, l)
		}
	}
	c.nextCorrect = next
	c.available = boardLetters(required, e.rng)
	e.placeBoard(c.available)
}

// placeBoard clears the board and lays out letters on free cells.
func (e *Engine) placeBoard(letters []string) {
	e.tiles.Clear()
	blocked := e.snakeCells()
	for _, l := range letters {
		if _, ok := e.tiles.SpawnLetter(l, blocked); !ok {
			e.log.Debug().Str("letter", l).Msg("no free cell for crossword tile")
		}
	}
}

func containsLetter(list []string, l string) bool {
	for _, x := range list {
		if x == l {
			return true
		}
	}
	return false
}
