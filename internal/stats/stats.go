// Package stats provides the small set of descriptive statistics used by the
// analyzer and tuner. Every function returns 0 for empty input instead of an error.
package stats

import (
	"math"

	"github.com/montanaflynn/stats"
)

// Mean returns the arithmetic mean of values.
func Mean(values []float64) float64 {
	return orZero(stats.Mean(values))
}

// StdDev returns the population standard deviation of values.
func StdDev(values []float64) float64 {
	return orZero(stats.StandardDeviationPopulation(values))
}

// Percentile returns the nearest-rank percentile: the value at rank ceil(p/100*n)
// of the sorted input. p is clamped to [0, 100].
func Percentile(values []float64, p float64) float64 {
	p = math.Max(0, math.Min(100, p))
	return orZero(stats.PercentileNearestRank(values, p))
}

// Min returns the smallest value.
func Min(values []float64) float64 {
	return orZero(stats.Min(values))
}

// Max returns the largest value.
func Max(values []float64) float64 {
	return orZero(stats.Max(values))
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}

func orZero(v float64, err error) float64 {
	if err != nil || math.IsNaN(v) {
		return 0
	}
	return v
}
