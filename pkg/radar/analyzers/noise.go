package analyzers

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// madScale converts a median absolute deviation into a Gaussian sigma
const madScale = 1.4826

// NoiseFloor is a robust estimate of the background level of a magnitude spectrum
type NoiseFloor struct {
	Median float64 `json:"median"`
	MAD    float64 `json:"mad"`
	Sigma  float64 `json:"sigma"`
	Level  float64 `json:"level"`
	Peak   float64 `json:"peak"`
}

// EstimateNoiseFloor computes the median and median absolute deviation of
// magnitudes. Reflectors occupy few bins, so both statistics track the noise.
// Level is Median + Sigma. Peak is the largest magnitude.
func EstimateNoiseFloor(magnitudes []float64) NoiseFloor {
	if len(magnitudes) == 0 {
		return NoiseFloor{}
	}

	sorted := slices.Clone(magnitudes)
	slices.Sort(sorted)
	median := stat.Quantile(0.5, stat.Empirical, sorted, nil)

	dev := make([]float64, len(sorted))
	for i, m := range sorted {
		dev[i] = math.Abs(m - median)
	}
	slices.Sort(dev)
	mad := stat.Quantile(0.5, stat.Empirical, dev, nil)

	sigma := madScale * mad
	return NoiseFloor{
		Median: median,
		MAD:    mad,
		Sigma:  sigma,
		Level:  median + sigma,
		Peak:   sorted[len(sorted)-1],
	}
}
