// apps/go-server/internal/words/words.go
//
// Dictionary management for word submission.
//
// Responsibilities:
//   - Load the dictionary from WORDS_FILE or fall back to the embedded list.
//   - Maintain an upper-case lookup set.
//   - Supply IsWord, Add and Size.
//
// Initialization behavior (Init):
//   1. If WORDS_FILE is set, load one word per line from that file.
//   2. Otherwise use assets/words.txt.
//
// Constraints:
//   • Words are alphabetic A–Z only, at least 2 letters.
//   • Lists are normalized to upper case.
//   • Initialization is run once (sync.Once).

package words

import (
	"bufio"
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/robalobadob/snakeword/apps/go-server/assets"
)

var (
	initOnce   sync.Once
	mu         sync.RWMutex
	dict       map[string]struct{}
	initialErr error
)

// Init loads the dictionary exactly once.
// Returns an error if the list ends up empty.
func Init() error {
	initOnce.Do(func() {
		var list []string
		var err error
		if path := os.Getenv("WORDS_FILE"); path != "" {
			list, err = readWordFile(path)
		} else {
			list, err = assets.WordList()
		}
		if err != nil {
			initialErr = err
			return
		}
		set := toSet(normalize(list))
		if len(set) == 0 {
			initialErr = errors.New("words: dictionary is empty")
			return
		}
		mu.Lock()
		dict = set
		mu.Unlock()
	})
	return initialErr
}

// readWordFile loads one word per line from a file.
func readWordFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	return out, sc.Err()
}

// normalize upper-cases, trims and keeps only alphabetic entries.
func normalize(list []string) []string {
	out := make([]string, 0, len(list))
	for _, line := range list {
		w := strings.TrimSpace(strings.ToUpper(line))
		if len(w) >= 2 && isAlpha(w) {
			out = append(out, w)
		}
	}
	return out
}

func toSet(list []string) map[string]struct{} {
	m := make(map[string]struct{}, len(list))
	for _, w := range list {
		m[w] = struct{}{}
	}
	return m
}

// isAlpha reports whether s is all upper-case ASCII letters.
func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// IsWord reports whether w is in the dictionary (case-insensitive).
// Init is called lazily so packages can use the dictionary in tests.
func IsWord(w string) bool {
	_ = Init()
	mu.RLock()
	defer mu.RUnlock()
	_, ok := dict[strings.ToUpper(w)]
	return ok
}

// Add inserts a word at runtime. Non-alphabetic input is ignored.
func Add(w string) {
	_ = Init()
	w = strings.ToUpper(strings.TrimSpace(w))
	if !isAlpha(w) || w == "" {
		return
	}
	mu.Lock()
	if dict == nil {
		dict = make(map[string]struct{})
	}
	dict[w] = struct{}{}
	mu.Unlock()
}

// Size returns the number of loaded words.
func Size() int {
	_ = Init()
	mu.RLock()
	defer mu.RUnlock()
	return len(dict)
}
