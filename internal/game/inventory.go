package game

import "github.com/robalobadob/snakeword/apps/go-server/internal/words"

// CollectedLetter is a letter held in a classic-mode inventory.
type CollectedLetter struct {
	Letter      string `json:"letter"`
	CollectTime int64  `json:"collectTime"` // game time, ms
	FromTileID  string `json:"fromTileId"`
	Points      int    `json:"points"`
}

// CompletedWord is an accepted word submission.
type CompletedWord struct {
	Word      string            `json:"word"`
	Letters   []CollectedLetter `json:"letters"`
	Points    int               `json:"points"`
	Timestamp int64             `json:"timestamp"`
	Valid     bool              `json:"isValid"`
}

// Inventory is one player's classic-mode letter bag and word history.
type Inventory struct {
	PlayerID           string            `json:"playerId"`
	CollectedLetters   []CollectedLetter `json:"collectedLetters"`
	CurrentWordAttempt []string          `json:"currentWordAttempt"`
	CompletedWords     []CompletedWord   `json:"completedWords"`
	TotalScore         int               `json:"totalScore"`
}

func newInventory(playerID string) *Inventory {
	return &Inventory{
		PlayerID:           playerID,
		CollectedLetters:   []CollectedLetter{},
		CurrentWordAttempt: []string{},
		CompletedWords:     []CompletedWord{},
	}
}

func (inv *Inventory) clone() Inventory {
	out := *inv
	out.CollectedLetters = append([]CollectedLetter{}, inv.CollectedLetters...)
	out.CurrentWordAttempt = append([]string{}, inv.CurrentWordAttempt...)
	out.CompletedWords = append([]CompletedWord{}, inv.CompletedWords...)
	return out
}

// take removes one held letter per entry of letters, in order. It reports
// the first letter the inventory cannot supply and leaves inv untouched in
// that case.
func (inv *Inventory) take(letters []string) ([]CollectedLetter, []CollectedLetter, string) {
	remaining := append([]CollectedLetter{}, inv.CollectedLetters...)
	used := make([]CollectedLetter, 0, len(letters))
	for _, l := range letters {
		idx := -1
		for i, c := range remaining {
			if c.Letter == l {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, nil, l
		}
		used = append(used, remaining[idx])
		remaining = append(remaining[:idx], remaining[idx+1:]...)
	}
	return used, remaining, ""
}

// letterStrings extracts the letters of used for validation.
func letterStrings(used []CollectedLetter) []string {
	out := make([]string, len(used))
	for i, c := range used {
		out[i] = c.Letter
	}
	return out
}

// rejected builds an invalid result carrying reason.
func rejected(word, reason string) words.Result {
	return words.Result{Word: word, Reason: reason}
}
