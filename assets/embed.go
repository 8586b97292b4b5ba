// Package assets embeds the reference data the server ships with: the
// built-in dictionary, the crossword clue set and the SQL migrations.
package assets

import (
	"bufio"
	"embed"
	"encoding/json"
	"io/fs"
	"strings"
)

//go:embed words.txt clues.json sql/*.sql
var FS embed.FS

// Clue mirrors one entry of clues.json.
type Clue struct {
	ID         string `json:"id"`
	Clue       string `json:"clue"`
	Answer     string `json:"answer"`
	Difficulty string `json:"difficulty"`
	Category   string `json:"category"`
}

func readLines(name string) ([]string, error) {
	f, err := FS.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		out = append(out, strings.ToUpper(s))
	}
	return out, sc.Err()
}

// WordList returns the built-in dictionary, upper-cased.
func WordList() ([]string, error) {
	return readLines("words.txt")
}

// Clues returns the crossword clue set in file order.
func Clues() ([]Clue, error) {
	b, err := FS.ReadFile("clues.json")
	if err != nil {
		return nil, err
	}
	var out []Clue
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Migrations exposes the sql directory for the migrator.
func Migrations() fs.FS {
	sub, err := fs.Sub(FS, "sql")
	if err != nil {
		panic(err)
	}
	return sub
}
