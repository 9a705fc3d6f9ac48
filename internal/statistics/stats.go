// Package statistics provides the numeric helpers behind score aggregation:
// dispersion, outlier detection, bootstrap confidence intervals, and the
// text-similarity measure used by reproducibility scoring.
package statistics

import (
	"math"
	"sort"
)

// Mean computes the arithmetic mean. Returns 0 for empty input.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Variance computes the population variance. Returns 0 for empty input.
func Variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := Mean(values)
	sumSq := 0.0
	for _, v := range values {
		d := v - m
		sumSq += d * d
	}
	return sumSq / float64(len(values))
}

// StdDev computes the population standard deviation.
func StdDev(values []float64) float64 {
	return math.Sqrt(Variance(values))
}

// outlierSigma is the distance from the mean, in standard deviations,
// beyond which a sample counts as an outlier.
const outlierSigma = 2.0

// OutlierCount counts samples farther than outlierSigma standard deviations
// from the mean. With fewer than 3 samples or zero spread there are no
// outliers.
func OutlierCount(values []float64) int {
	if len(values) < 3 {
		return 0
	}
	m := Mean(values)
	sd := StdDev(values)
	if sd == 0 {
		return 0
	}
	count := 0
	for _, v := range values {
		if math.Abs(v-m) > outlierSigma*sd {
			count++
		}
	}
	return count
}

// Median returns the middle value (mean of the two middle values for even
// counts). Returns 0 for empty input. The input is not modified.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
