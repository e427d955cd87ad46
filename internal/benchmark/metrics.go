package benchmark

import (
	"math"
	"slices"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"gonum.org/v1/gonum/stat"
)

// MetricsCalculator turns per-trial range errors into summary statistics
type MetricsCalculator struct {
	logger logging.Logger
}

// NewMetricsCalculator creates a new metrics calculator
func NewMetricsCalculator(logger logging.Logger) *MetricsCalculator {
	if logger == nil {
		logger = logging.WithFields(logging.Fields{
			"component": "metrics_calculator",
		})
	}

	return &MetricsCalculator{
		logger: logger,
	}
}

// ErrorStats represents statistical measures of range error in meters
type ErrorStats struct {
	Mean     float64 `json:"mean" yaml:"mean"`
	Median   float64 `json:"median" yaml:"median"`
	P95      float64 `json:"p95" yaml:"p95"`
	Min      float64 `json:"min" yaml:"min"`
	Max      float64 `json:"max" yaml:"max"`
	StdDev   float64 `json:"std_dev" yaml:"std_dev"`
	Variance float64 `json:"variance" yaml:"variance"`
	Count    int     `json:"count" yaml:"count"`
}

// StackMetrics summarizes all trials run at one stack size
type StackMetrics struct {
	StackSize     int        `json:"stack_size" yaml:"stack_size"`
	Trials        int        `json:"trials" yaml:"trials"`
	Detections    int        `json:"detections" yaml:"detections"`
	DetectionRate float64    `json:"detection_rate" yaml:"detection_rate"`
	RangeError    ErrorStats `json:"range_error" yaml:"range_error"`

	// VarianceRatio is the baseline variance over this stack's variance.
	// Coherent stacking should track ExpectedRatio = K / K_baseline.
	VarianceRatio float64 `json:"variance_ratio" yaml:"variance_ratio"`
	ExpectedRatio float64 `json:"expected_ratio" yaml:"expected_ratio"`
}

// CalculateStackMetrics condenses the trials of one stack size
func (mc *MetricsCalculator) CalculateStackMetrics(stackSize int, trials []TrialResult) StackMetrics {
	errs := make([]float64, 0, len(trials))
	for _, t := range trials {
		if t.Detected {
			errs = append(errs, t.RangeErrorM)
		}
	}

	metrics := StackMetrics{
		StackSize:  stackSize,
		Trials:     len(trials),
		Detections: len(errs),
		RangeError: mc.calculateStats(errs),
	}
	if len(trials) > 0 {
		metrics.DetectionRate = float64(len(errs)) / float64(len(trials))
	}

	mc.logger.Debug("Stack metrics calculated", logging.Fields{
		"stack_size": stackSize,
		"trials":     len(trials),
		"detections": len(errs),
		"variance":   metrics.RangeError.Variance,
	})

	return metrics
}

// CompareToBaseline fills the variance ratios relative to the first entry
func (mc *MetricsCalculator) CompareToBaseline(metrics []StackMetrics) {
	if len(metrics) == 0 {
		return
	}

	base := metrics[0]
	for i := range metrics {
		metrics[i].ExpectedRatio = float64(metrics[i].StackSize) / float64(base.StackSize)
		metrics[i].VarianceRatio = finiteOrZero(base.RangeError.Variance / metrics[i].RangeError.Variance)
	}
}

// calculateStats calculates statistical measures for a dataset
func (mc *MetricsCalculator) calculateStats(data []float64) ErrorStats {
	if len(data) == 0 {
		return ErrorStats{Count: 0}
	}

	sorted := slices.Clone(data)
	slices.Sort(sorted)

	stats := ErrorStats{
		Count:  len(data),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P95:    stat.Quantile(0.95, stat.Empirical, sorted, nil),
	}

	if len(data) > 1 {
		stats.Mean, stats.Variance = stat.MeanVariance(data, nil)
		stats.StdDev = math.Sqrt(stats.Variance)
	} else {
		stats.Mean = data[0]
	}

	return mc.sanitizeStats(stats)
}

// sanitizeStats removes infinite and NaN values to prevent JSON serialization errors
func (mc *MetricsCalculator) sanitizeStats(stats ErrorStats) ErrorStats {
	stats.Mean = finiteOrZero(stats.Mean)
	stats.Median = finiteOrZero(stats.Median)
	stats.P95 = finiteOrZero(stats.P95)
	stats.Min = finiteOrZero(stats.Min)
	stats.Max = finiteOrZero(stats.Max)
	stats.StdDev = finiteOrZero(stats.StdDev)
	stats.Variance = finiteOrZero(stats.Variance)
	return stats
}

func finiteOrZero(f float64) float64 {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0
	}
	return f
}
