package scoring

import (
	"github.com/promptqa/prompteval/internal/statistics"
)

// StabilityThresholds bound what counts as a stable artifact: the standard
// deviation of per-run judged scores may not exceed MaxStdDev, and the mean
// pairwise output similarity may not fall below SimilarityFloor.
type StabilityThresholds struct {
	MaxStdDev       float64
	SimilarityFloor float64
}

// ReproducibilityResult measures how consistent repeated runs were.
type ReproducibilityResult struct {
	// Similarity is the mean pairwise token-set similarity of the run
	// outputs, 0-100.
	Similarity float64 `json:"similarity"`
	// ScoreStdDev is the population standard deviation of the per-run
	// judged scores that were available.
	ScoreStdDev float64 `json:"score_std_dev"`
	IsStable    bool    `json:"is_stable"`
	Samples     int     `json:"samples"`
}

// ScoreReproducibility compares successful run outputs pairwise. It needs
// at least two outputs to form a pair; with fewer it reports ok=false and
// the methodology contributes nothing. judgedScores may be shorter than
// outputs when some runs produced text but no extractable grades.
func ScoreReproducibility(outputs []string, judgedScores []float64, thr StabilityThresholds) (ReproducibilityResult, bool) {
	similarity, ok := statistics.PairwiseSimilarity(outputs)
	if !ok {
		return ReproducibilityResult{Samples: len(outputs)}, false
	}

	result := ReproducibilityResult{
		Similarity:  similarity,
		ScoreStdDev: statistics.StdDev(judgedScores),
		Samples:     len(outputs),
	}
	result.IsStable = result.ScoreStdDev <= thr.MaxStdDev && similarity >= thr.SimilarityFloor
	return result, true
}
