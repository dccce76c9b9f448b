package usage

import (
	"math"
	"unicode/utf8"
)

// English text averages out near four characters per token across the
// common tokenizers; close enough for accounting when a provider response
// carries no usage block.
const charsPerToken = 4.0

// EstimateTokens approximates the token count of text.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	runes := utf8.RuneCountInString(text)
	return int(math.Ceil(float64(runes) / charsPerToken))
}

// EstimateMessages approximates the token count of a whole message list
// given the concatenated content length.
func EstimateMessages(contents ...string) int {
	total := 0
	for _, content := range contents {
		total += EstimateTokens(content)
	}
	return total
}
