package words

import "math"

// Rarity classifies how hard a letter is to come by on the board.
type Rarity string

const (
	Common   Rarity = "common"
	Uncommon Rarity = "uncommon"
	Rare     Rarity = "rare"
	Epic     Rarity = "epic"
)

// LetterInfo is one row of the letter table.
type LetterInfo struct {
	Letter    string  `json:"letter"`
	Frequency float64 `json:"frequency"`
	Points    int     `json:"points"`
	Rarity    Rarity  `json:"rarity"`
}

// Letters is the reference table, ordered by frequency.
var Letters = []LetterInfo{
	{"E", 12.7, 1, Common},
	{"T", 9.1, 1, Common},
	{"A", 8.2, 1, Common},
	{"O", 7.5, 1, Common},
	{"I", 7.0, 1, Common},
	{"N", 6.7, 1, Common},
	{"S", 6.3, 1, Common},
	{"H", 6.1, 2, Common},
	{"R", 6.0, 1, Common},

	{"D", 4.3, 2, Uncommon},
	{"L", 4.0, 1, Uncommon},
	{"C", 2.8, 3, Uncommon},
	{"U", 2.8, 1, Uncommon},
	{"M", 2.4, 3, Uncommon},
	{"W", 2.4, 4, Uncommon},
	{"F", 2.2, 4, Uncommon},
	{"G", 2.0, 2, Uncommon},
	{"Y", 2.0, 4, Uncommon},
	{"P", 1.9, 3, Uncommon},
	{"B", 1.3, 3, Uncommon},

	{"V", 1.0, 4, Rare},
	{"K", 0.8, 5, Rare},
	{"J", 0.15, 8, Rare},
	{"X", 0.15, 8, Rare},

	{"Q", 0.10, 10, Epic},
	{"Z", 0.07, 10, Epic},
}

var byLetter = func() map[string]LetterInfo {
	m := make(map[string]LetterInfo, len(Letters))
	for _, l := range Letters {
		m[l.Letter] = l
	}
	return m
}()

// Lookup returns the table row for letter. Unknown letters score 1 point
// and count as common.
func Lookup(letter string) (LetterInfo, bool) {
	l, ok := byLetter[letter]
	if !ok {
		return LetterInfo{Letter: letter, Points: 1, Rarity: Common}, false
	}
	return l, true
}

// Weight is the relative draw weight used when spawning letters.
// Frequent letters dominate; rarer tiers are damped and epic letters are
// pinned to the minimum.
func (l LetterInfo) Weight() int {
	w := max(1, int(math.Floor(l.Frequency)))
	switch l.Rarity {
	case Uncommon:
		w = max(1, int(math.Floor(float64(w)*0.7)))
	case Rare:
		w = max(1, int(math.Floor(float64(w)*0.3)))
	case Epic:
		w = 1
	}
	return w
}

// LengthBonus maps word length to bonus points; 10 or more letters share
// the top bonus.
func LengthBonus(n int) int {
	switch {
	case n >= 10:
		return 150
	case n == 9:
		return 100
	case n == 8:
		return 75
	case n == 7:
		return 50
	case n == 6:
		return 30
	case n == 5:
		return 15
	case n == 4:
		return 5
	default:
		return 0
	}
}

// RarityBonus is the per-letter bonus for rare and epic letters.
func RarityBonus(r Rarity) int {
	switch r {
	case Rare:
		return 5
	case Epic:
		return 15
	}
	return 0
}
