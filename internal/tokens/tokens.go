// Package tokens provides a cheap prompt-size estimate for budget
// accounting.
package tokens

import "math"

// charsPerToken approximates the byte-to-token ratio of common model
// tokenizers, accurate enough for budget accounting without shipping a
// tokenizer per model family.
const charsPerToken = 4

// Estimate returns the approximate token count of text.
func Estimate(text string) int {
	return int(math.Ceil(float64(len(text)) / charsPerToken))
}
