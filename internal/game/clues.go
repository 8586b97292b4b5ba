package game

import (
	"math/rand"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/snakeword/apps/go-server/assets"
)

const (
	// DefaultClueCount is how many clues a crossword match draws.
	DefaultClueCount = 10
	// BoardLetterCount is the number of tiles laid out per clue position.
	BoardLetterCount = 10
)

// Clue is immutable crossword reference data.
type Clue struct {
	ID         string `json:"id"`
	Clue       string `json:"clue"`
	Answer     string `json:"answer"`
	Difficulty string `json:"difficulty"`
	Category   string `json:"category"`
}

var (
	cluesOnce sync.Once
	allClues  []Clue
)

// AllClues returns the embedded clue set.
func AllClues() []Clue {
	cluesOnce.Do(func() {
		raw, err := assets.Clues()
		if err != nil {
			log.Error().Err(err).Msg("load crossword clues")
			return
		}
		for _, c := range raw {
			allClues = append(allClues, Clue(c))
		}
	})
	return allClues
}

// RandomClues draws up to n distinct clues in random order.
func RandomClues(n int, rng *rand.Rand) []Clue {
	src := AllClues()
	out := make([]Clue, len(src))
	copy(out, src)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	if n < len(out) {
		out = out[:n]
	}
	return out
}

// boardLetters pads required with random A-Z letters up to
// BoardLetterCount and shuffles the result.
func boardLetters(required []string, rng *rand.Rand) []string {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	letters := make([]string, 0, max(BoardLetterCount, len(required)))
	letters = append(letters, required...)
	for len(letters) < BoardLetterCount {
		letters = append(letters, string(alphabet[rng.Intn(len(alphabet))]))
	}
	rng.Shuffle(len(letters), func(i, j int) { letters[i], letters[j] = letters[j], letters[i] })
	return letters
}
