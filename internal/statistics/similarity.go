package statistics

import "strings"

// TokenSimilarity computes the Jaccard similarity of the token sets of two
// strings, scaled to 0-100. Tokens are whitespace-delimited and
// case-insensitive. Two empty strings are identical (100); one empty and one
// non-empty string share nothing (0).
func TokenSimilarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)

	if len(setA) == 0 && len(setB) == 0 {
		return 100.0
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0.0
	}

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection

	return float64(intersection) / float64(union) * 100.0
}

// PairwiseSimilarity computes the mean TokenSimilarity over all unordered
// pairs of outputs. It returns false when fewer than two outputs exist, since
// no pair can be formed.
func PairwiseSimilarity(outputs []string) (float64, bool) {
	n := len(outputs)
	if n < 2 {
		return 0, false
	}

	var sum float64
	pairs := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sum += TokenSimilarity(outputs[i], outputs[j])
			pairs++
		}
	}
	return sum / float64(pairs), true
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
