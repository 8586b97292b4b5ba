package room

import "strings"

// Palette is the fixed set of snake colours; the host gets the first one.
var Palette = []string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#96CEB4",
	"#FFEAA7", "#DDA0DD", "#98D8C8", "#F7DC6F",
	"#BB8FCE", "#85C1E9", "#F8C471", "#EC7063",
}

func inPalette(c string) (string, bool) {
	c = strings.ToUpper(strings.TrimSpace(c))
	for _, p := range Palette {
		if p == c {
			return p, true
		}
	}
	return "", false
}
