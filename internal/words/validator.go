package words

import "strings"

// ReasonNotInDictionary is reported for words the dictionary rejects.
const ReasonNotInDictionary = "Word not found in dictionary"

// Result is the outcome of validating a candidate word.
type Result struct {
	Valid       bool   `json:"isValid"`
	Word        string `json:"word"`
	BasePoints  int    `json:"basePoints"`
	BonusPoints int    `json:"bonusPoints"`
	TotalPoints int    `json:"totalPoints"`
	Reason      string `json:"reason,omitempty"`
}

// Validate joins letters into a word and scores it. Invalid words score 0.
func Validate(letters []string) Result {
	word := strings.ToUpper(strings.Join(letters, ""))
	if !IsWord(word) {
		return Result{Word: word, Reason: ReasonNotInDictionary}
	}

	base, rarity := 0, 0
	for _, l := range letters {
		info, _ := Lookup(strings.ToUpper(l))
		base += info.Points
		rarity += RarityBonus(info.Rarity)
	}
	bonus := LengthBonus(len(word)) + rarity
	return Result{
		Valid:       true,
		Word:        word,
		BasePoints:  base,
		BonusPoints: bonus,
		TotalPoints: base + bonus,
	}
}
