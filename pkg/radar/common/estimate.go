package common

import "sort"

// ReflectorEstimate is one detected reflector
type ReflectorEstimate struct {
	CoarseRangeM float64 `json:"coarse_range_m" yaml:"coarse_range_m"`
	FineRangeM   float64 `json:"fine_range_m" yaml:"fine_range_m"`
	Amplitude    float64 `json:"amplitude" yaml:"amplitude"`
	PhaseRad     float64 `json:"phase_rad" yaml:"phase_rad"`
	BinIndex     int     `json:"bin_index" yaml:"bin_index"`
}

// RangeM returns the final range estimate
func (e ReflectorEstimate) RangeM() float64 {
	return e.FineRangeM
}

// FineCorrectionM returns the sub-bin correction applied to the coarse range
func (e ReflectorEstimate) FineCorrectionM() float64 {
	return e.FineRangeM - e.CoarseRangeM
}

// SortByRange orders estimates by final range, ascending
func SortByRange(estimates []ReflectorEstimate) {
	sort.SliceStable(estimates, func(i, j int) bool {
		return estimates[i].RangeM() < estimates[j].RangeM()
	})
}
