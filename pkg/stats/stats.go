// Package stats provides the descriptive statistics used by the
// consolidation pipeline.
package stats

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// Mean returns the arithmetic mean of values.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the population standard deviation of values.
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	mean := Mean(values)
	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

// ZScores returns the z-score of every value relative to the slice's
// own mean and population standard deviation. When the standard
// deviation is zero every score is zero, so identical values are never
// flagged as outliers.
func ZScores(values []float64) []float64 {
	scores := make([]float64, len(values))
	sd := StdDev(values)
	if sd == 0 {
		return scores
	}

	mean := Mean(values)
	for i, v := range values {
		scores[i] = (v - mean) / sd
	}
	return scores
}

// Median returns the median of values. For an even count the two
// middle values are averaged. An empty input yields zero.
func Median(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}

	sorted := make([]decimal.Decimal, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].LessThan(sorted[j])
	})

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return sorted[mid-1].Add(sorted[mid]).Div(decimal.NewFromInt(2))
}
