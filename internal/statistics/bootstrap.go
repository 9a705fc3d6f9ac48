package statistics

import (
	"math"
	"math/rand"
	"sort"
)

// ConfidenceInterval holds a bootstrap confidence interval.
type ConfidenceInterval struct {
	Lower           float64 `json:"lower"`
	Upper           float64 `json:"upper"`
	Mean            float64 `json:"mean"`
	ConfidenceLevel float64 `json:"confidence_level"`
	NumBootstraps   int     `json:"num_bootstraps"`
}

// DefaultBootstrapIterations is the number of bootstrap resamples.
const DefaultBootstrapIterations = 10000

// BootstrapCI computes a bootstrap confidence interval over scores using the
// percentile method. confidenceLevel is in (0, 1), e.g. 0.95. Returns a
// point interval when fewer than 2 data points exist.
func BootstrapCI(scores []float64, confidenceLevel float64) ConfidenceInterval {
	return BootstrapCIWithSeed(scores, confidenceLevel, -1)
}

// BootstrapCIWithSeed is like BootstrapCI but accepts a seed for
// reproducibility. A negative seed uses a non-deterministic source.
func BootstrapCIWithSeed(scores []float64, confidenceLevel float64, seed int64) ConfidenceInterval {
	if len(scores) < 2 {
		m := Mean(scores)
		return ConfidenceInterval{
			Lower:           m,
			Upper:           m,
			Mean:            m,
			ConfidenceLevel: confidenceLevel,
		}
	}

	if seed < 0 {
		seed = rand.Int63()
	}
	rng := rand.New(rand.NewSource(seed))

	means := resampleMeans(rng, scores, DefaultBootstrapIterations)
	sort.Float64s(means)

	lo, hi := percentileBounds(confidenceLevel, len(means))
	return ConfidenceInterval{
		Lower:           means[lo],
		Upper:           means[hi],
		Mean:            Mean(scores),
		ConfidenceLevel: confidenceLevel,
		NumBootstraps:   len(means),
	}
}

// resampleMeans draws iters resamples with replacement from scores and
// returns the mean of each resample.
func resampleMeans(rng *rand.Rand, scores []float64, iters int) []float64 {
	n := len(scores)
	means := make([]float64, iters)
	for i := range means {
		sum := 0.0
		for j := 0; j < n; j++ {
			sum += scores[rng.Intn(n)]
		}
		means[i] = sum / float64(n)
	}
	return means
}

// percentileBounds returns the index pair bracketing the central
// confidenceLevel mass of a sorted sample of size n.
func percentileBounds(confidenceLevel float64, n int) (lo, hi int) {
	alpha := 1.0 - confidenceLevel
	lo = int(math.Floor(alpha / 2.0 * float64(n)))
	hi = int(math.Floor((1.0 - alpha/2.0) * float64(n)))
	if hi >= n {
		hi = n - 1
	}
	return lo, hi
}

// IsSignificant reports whether the interval excludes zero, i.e. the
// measured difference is unlikely to be noise at the interval's confidence
// level.
func IsSignificant(ci ConfidenceInterval) bool {
	return ci.Lower > 0 || ci.Upper < 0
}

// NormalizedGain computes how much of the available headroom a score
// improvement captured, for scores on a 0-100 scale. A move from 40 to 70
// captures half the remaining headroom (0.5); a score already at 100 has no
// headroom and gains 0.
func NormalizedGain(pre, post float64) float64 {
	headroom := 100.0 - pre
	if headroom <= 0 {
		return 0.0
	}
	return (post - pre) / headroom
}
