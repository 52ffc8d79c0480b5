package chunker

import (
	"unicode/utf8"

	"github.com/dgallion1/pdfingest/internal/document"
)

// EstimateTokens approximates embedding-model tokens at ~4 characters per token.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}

// EstimateChunkTokens sums EstimateTokens over chunks.
func EstimateChunkTokens(chunks []document.Chunk) int {
	total := 0
	for _, c := range chunks {
		total += EstimateTokens(c.Text)
	}
	return total
}
