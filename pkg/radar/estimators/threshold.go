package estimators

import (
	"fmt"
	"math"
	"strings"

	"github.com/RyanBlaney/apres-range/pkg/radar/analyzers"
	"github.com/RyanBlaney/apres-range/pkg/radar/common"
)

// ThresholdMode selects how a Threshold value is interpreted
type ThresholdMode string

const (
	// ThresholdAbsolute compares bin magnitudes to Value directly
	ThresholdAbsolute ThresholdMode = "absolute"
	// ThresholdNoiseFloor compares bin magnitudes to Value times the estimated noise floor level
	ThresholdNoiseFloor ThresholdMode = "noise_floor"
)

// DefaultNoiseFloorMultiple is the default detection level, 20 dB above the noise floor
const DefaultNoiseFloorMultiple = 10.0

// MinDynamicRange bounds a noise floor level from below, relative to the
// strongest searched bin. A noiseless spectrum has a floor at rounding level,
// which would otherwise admit leakage ripples as reflectors.
const MinDynamicRange = 1e-3

// Threshold is the detection level for coarse peaks
type Threshold struct {
	Mode  ThresholdMode `json:"mode" mapstructure:"mode" yaml:"mode"`
	Value float64       `json:"value" mapstructure:"value" yaml:"value"`
}

// DefaultThreshold returns the documented default detection threshold
func DefaultThreshold() Threshold {
	return Threshold{Mode: ThresholdNoiseFloor, Value: DefaultNoiseFloorMultiple}
}

// AbsoluteThreshold returns a fixed amplitude threshold
func AbsoluteThreshold(amplitude float64) Threshold {
	return Threshold{Mode: ThresholdAbsolute, Value: amplitude}
}

// NoiseFloorThreshold returns a threshold at multiple times the noise floor
func NoiseFloorThreshold(multiple float64) Threshold {
	return Threshold{Mode: ThresholdNoiseFloor, Value: multiple}
}

// ParseThresholdMode maps a config string onto a ThresholdMode
func ParseThresholdMode(s string) (ThresholdMode, error) {
	switch ThresholdMode(strings.ToLower(strings.TrimSpace(s))) {
	case ThresholdAbsolute:
		return ThresholdAbsolute, nil
	case "", ThresholdNoiseFloor, "relative":
		return ThresholdNoiseFloor, nil
	}
	return "", fmt.Errorf("unsupported threshold mode %q", s)
}

// Validate checks the threshold is usable
func (t Threshold) Validate() error {
	if _, err := ParseThresholdMode(string(t.Mode)); err != nil {
		return common.NewRadarError(common.ErrCodeInvalidConfig, "Threshold", "invalid threshold", err)
	}
	if math.IsNaN(t.Value) || math.IsInf(t.Value, 0) || t.Value < 0 {
		return common.NewRadarError(common.ErrCodeInvalidConfig, "Threshold",
			fmt.Sprintf("threshold value must be finite and non-negative, got %g", t.Value), nil)
	}
	return nil
}

// Level resolves the threshold against the searched magnitudes. An absolute
// threshold is used as is. A noise floor threshold is Value times the floor
// level, but never below the strongest magnitude scaled by MinDynamicRange or
// by sidelobeFloor, whichever is larger.
func (t Threshold) Level(magnitudes []float64, sidelobeFloor float64) (float64, analyzers.NoiseFloor) {
	floor := analyzers.EstimateNoiseFloor(magnitudes)
	if t.Mode == ThresholdAbsolute {
		return t.Value, floor
	}
	relative := floor.Peak * max(MinDynamicRange, sidelobeFloor)
	return max(t.Value*floor.Level, relative), floor
}

func (t Threshold) String() string {
	if t.Mode == ThresholdAbsolute {
		return fmt.Sprintf("absolute(%g)", t.Value)
	}
	return fmt.Sprintf("%gx noise floor", t.Value)
}
