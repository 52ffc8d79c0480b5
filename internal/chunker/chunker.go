package chunker

import (
	"strings"

	"github.com/dgallion1/pdfingest/internal/document"
)

// Config controls chunking behavior. Sizes are in characters (runes).
type Config struct {
	ChunkSize    int      // Maximum chunk length.
	ChunkOverlap int      // Characters shared by consecutive chunks.
	Separators   []string // Boundary priority, coarsest first. "" means any character.
}

// DefaultSeparators is the boundary hierarchy: paragraph, line, sentence, word, character.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    1000,
		ChunkOverlap: 200,
		Separators:   DefaultSeparators,
	}
}

func (c Config) normalized() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 1000
	}
	if c.ChunkOverlap < 0 {
		c.ChunkOverlap = 0
	}
	if c.ChunkOverlap >= c.ChunkSize {
		c.ChunkOverlap = c.ChunkSize / 5
	}
	if len(c.Separators) == 0 {
		c.Separators = DefaultSeparators
	}
	return c
}

// Split breaks text into chunks of at most ChunkSize characters. Each cut is
// placed just after the coarsest separator found in the window, and the
// next chunk restarts ChunkOverlap characters before the cut, so the tail of
// one chunk is exactly the head of the next. Whitespace-only text yields nil.
func Split(text string, cfg Config) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	cfg = cfg.normalized()

	r := []rune(text)
	n := len(r)
	if n <= cfg.ChunkSize {
		return []string{text}
	}

	var out []string
	start := 0
	for {
		if n-start <= cfg.ChunkSize {
			out = append(out, string(r[start:]))
			return out
		}
		limit := start + cfg.ChunkSize
		// The cut must pass the overlap region or the next chunk would add nothing.
		minEnd := start + cfg.ChunkOverlap + 1
		end := cutPoint(r, minEnd, limit, cfg.Separators)
		out = append(out, string(r[start:end]))
		start = end - cfg.ChunkOverlap
	}
}

// cutPoint returns the exclusive end index in [minEnd, limit] that follows
// the last occurrence of the highest-priority separator, or limit if none fits.
func cutPoint(r []rune, minEnd, limit int, separators []string) int {
	for _, sep := range separators {
		if sep == "" {
			return limit
		}
		if end := lastSeparatorEnd(r, minEnd, limit, []rune(sep)); end > 0 {
			return end
		}
	}
	return limit
}

func lastSeparatorEnd(r []rune, minEnd, limit int, sep []rune) int {
	for end := limit; end >= minEnd; end-- {
		begin := end - len(sep)
		if begin < 0 {
			break
		}
		if runesEqual(r[begin:end], sep) {
			return end
		}
	}
	return 0
}

func runesEqual(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// SplitDocuments chunks each document in order and tags every chunk with
// the document's source filename.
func SplitDocuments(docs []document.Document, cfg Config) []document.Chunk {
	var chunks []document.Chunk
	for _, doc := range docs {
		for i, part := range Split(doc.Text, cfg) {
			chunks = append(chunks, document.Chunk{
				Text:   part,
				Source: doc.Source,
				Index:  i,
			})
		}
	}
	return chunks
}
