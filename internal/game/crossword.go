package game

import "slices"

// Progress is one player's position in the shared clue list.
type Progress struct {
	CurrentClueIndex   int      `json:"currentClueIndex"`
	CurrentLetterIndex int      `json:"currentLetterIndex"`
	CompletedClues     int      `json:"completedClues"`
	CompletedWords     []string `json:"completedWords"`
	WrongLetterCount   int      `json:"wrongLetterCount"`
}

// ProgressView is the wire shape of Progress; it carries the current clue
// so clients need not index into currentClues.
type ProgressView struct {
	Progress
	CurrentClue *Clue `json:"currentClue,omitempty"`
}

// progressTable keeps per-player progress keyed by player id while
// preserving insertion order for tie-breaks.
type progressTable struct {
	order []string
	byID  map[string]*Progress
}

func newProgressTable() progressTable {
	return progressTable{byID: make(map[string]*Progress)}
}

func (t *progressTable) add(id string) *Progress {
	if p, ok := t.byID[id]; ok {
		return p
	}
	p := &Progress{CompletedWords: []string{}}
	t.byID[id] = p
	t.order = append(t.order, id)
	return p
}

func (t *progressTable) get(id string) (*Progress, bool) {
	p, ok := t.byID[id]
	return p, ok
}

func (t *progressTable) rename(oldID, newID string) bool {
	p, ok := t.byID[oldID]
	if !ok {
		return false
	}
	delete(t.byID, oldID)
	t.byID[newID] = p
	for i, id := range t.order {
		if id == oldID {
			t.order[i] = newID
		}
	}
	return true
}

func (t *progressTable) remove(id string) {
	delete(t.byID, id)
	t.order = slices.DeleteFunc(t.order, func(x string) bool { return x == id })
}

// view is the single serialization step for the table.
func (t *progressTable) view(clues []Clue) map[string]ProgressView {
	out := make(map[string]ProgressView, len(t.order))
	for _, id := range t.order {
		p := t.byID[id]
		v := ProgressView{Progress: *p}
		v.CompletedWords = append([]string{}, p.CompletedWords...)
		if p.CurrentClueIndex < len(clues) {
			c := clues[p.CurrentClueIndex]
			v.CurrentClue = &c
		}
		out[id] = v
	}
	return out
}

// crossword is the puzzle state of one match.
type crossword struct {
	clues       []Clue
	progress    progressTable
	available   []string
	nextCorrect string
	completions int
}

// expected returns the letter p must collect next, or "" when p has no
// clue left.
func (c *crossword) expected(p *Progress) string {
	if p.CurrentClueIndex >= len(c.clues) {
		return ""
	}
	answer := c.clues[p.CurrentClueIndex].Answer
	if p.CurrentLetterIndex >= len(answer) {
		return ""
	}
	return string(answer[p.CurrentLetterIndex])
}

// CrosswordStats summarises puzzle progress across the room.
type CrosswordStats struct {
	TotalClues     int   `json:"totalClues"`
	CompletedClues int   `json:"completedClues"`
	AverageTime    int64 `json:"averageTime"` // ms of game time per completed clue
}

// CrosswordSnapshot is the crossword_state payload.
type CrosswordSnapshot struct {
	CurrentClues      []Clue                  `json:"currentClues"`
	PlayerProgress    map[string]ProgressView `json:"playerProgress"`
	AvailableLetters  []string                `json:"availableLetters"`
	NextCorrectLetter string                  `json:"nextCorrectLetter"`
	GameStats         CrosswordStats          `json:"gameStats"`
}

func (c *crossword) snapshot(elapsedMs int64) CrosswordSnapshot {
	avg := int64(0)
	if c.completions > 0 {
		avg = elapsedMs / int64(c.completions)
	}
	return CrosswordSnapshot{
		CurrentClues:      append([]Clue{}, c.clues...),
		PlayerProgress:    c.progress.view(c.clues),
		AvailableLetters:  append([]string{}, c.available...),
		NextCorrectLetter: c.nextCorrect,
		GameStats: CrosswordStats{
			TotalClues:     len(c.clues),
			CompletedClues: c.completions,
			AverageTime:    avg,
		},
	}
}
