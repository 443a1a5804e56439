package report

import (
	"strings"
	"unicode/utf8"
)

// Split breaks text into chunks of at most max bytes, preferring line
// boundaries. A single line longer than max is hard-split on rune
// boundaries. Chunks are trimmed of surrounding whitespace; concatenating
// them reconstructs the text up to that trimming. Non-empty input always
// yields at least one chunk. max is clamped to at least one byte; a chunk
// exceeds max only when a single rune is wider than the whole budget.
func Split(text string, max int) []string {
	if max < 1 {
		max = 1
	}
	if len(text) <= max {
		return []string{text}
	}

	var chunks []string
	current := ""

	flush := func() {
		if current != "" {
			chunks = append(chunks, strings.TrimSpace(current))
			current = ""
		}
	}

	for _, line := range strings.Split(text, "\n") {
		if len(line) > max {
			flush()
			for len(line) > max {
				cut := max
				for cut > 0 && !utf8.RuneStart(line[cut]) {
					cut--
				}
				if cut == 0 {
					// The next rune alone is wider than max; emit it whole
					// rather than looping without consuming input.
					_, cut = utf8.DecodeRuneInString(line)
				}
				if piece := strings.TrimSpace(line[:cut]); piece != "" {
					chunks = append(chunks, piece)
				}
				line = line[cut:]
			}
			current = line
			continue
		}

		switch {
		case current == "":
			current = line
		case len(current)+len(line)+1 > max:
			flush()
			current = line
		default:
			current += "\n" + line
		}
	}
	flush()

	if len(chunks) == 0 {
		chunks = []string{strings.TrimSpace(text)}
	}
	return chunks
}
