package analyzer

import (
	"math"
	"sort"

	"github.com/wesleyemery/ec2-cpu-monitor/pkg/metrics"
)

// UsageClass describes the shape of a CPU utilization series
type UsageClass string

const (
	UsageClassNoData    UsageClass = "NoData"
	UsageClassIdle      UsageClass = "Idle"      // Mostly unused
	UsageClassSaturated UsageClass = "Saturated" // Near full capacity at p95
	UsageClassBursty    UsageClass = "Bursty"    // High variability with spikes
	UsageClassGrowing   UsageClass = "Growing"   // Increasing trend
	UsageClassShrinking UsageClass = "Shrinking" // Decreasing trend
	UsageClassStable    UsageClass = "Stable"    // Low variability, predictable
)

// Trend direction constants
const (
	TrendDirectionIncreasing = "increasing"
	TrendDirectionDecreasing = "decreasing"
	TrendDirectionStable     = "stable"
)

// Classification constants
const (
	defaultIdleThreshold            = 5.0  // percent
	defaultSaturationThreshold      = 90.0 // percent at p95
	defaultHighVariabilityThreshold = 0.3  // 30% coefficient of variation
	defaultSpikeDetectionThreshold  = 2.0  // 2 standard deviations
	defaultStrongTrendThreshold     = 0.5
	defaultMinPointsForTrend        = 10
)

// Summary describes a CPU utilization series
type Summary struct {
	Count                  int        `json:"count"`
	Min                    float64    `json:"min"`
	Max                    float64    `json:"max"`
	Mean                   float64    `json:"mean"`
	P95                    float64    `json:"p95"`
	Latest                 float64    `json:"latest"`
	StandardDeviation      float64    `json:"stdDev"`
	CoefficientOfVariation float64    `json:"coefficientOfVariation"`
	TrendDirection         string     `json:"trendDirection"`
	TrendStrength          float64    `json:"trendStrength"` // 0-1, where 1 is strong trend
	SpikeFrequency         float64    `json:"spikeFrequency"`
	Class                  UsageClass `json:"class"`
}

// SeriesAnalyzer summarizes CPU utilization series
type SeriesAnalyzer struct {
	IdleThreshold            float64
	SaturationThreshold      float64
	HighVariabilityThreshold float64
	SpikeDetectionThreshold  float64
	StrongTrendThreshold     float64
	MinPointsForTrend        int
}

// NewSeriesAnalyzer creates an analyzer with default thresholds
func NewSeriesAnalyzer() *SeriesAnalyzer {
	return &SeriesAnalyzer{
		IdleThreshold:            defaultIdleThreshold,
		SaturationThreshold:      defaultSaturationThreshold,
		HighVariabilityThreshold: defaultHighVariabilityThreshold,
		SpikeDetectionThreshold:  defaultSpikeDetectionThreshold,
		StrongTrendThreshold:     defaultStrongTrendThreshold,
		MinPointsForTrend:        defaultMinPointsForTrend,
	}
}

// Summarize computes descriptive statistics over time-ordered points.
// The points are not modified.
func (a *SeriesAnalyzer) Summarize(points []metrics.MetricPoint) Summary {
	if len(points) == 0 {
		return Summary{TrendDirection: TrendDirectionStable, Class: UsageClassNoData}
	}

	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mean := calculateMean(values)
	stdDev := calculateStandardDeviation(values, mean)

	summary := Summary{
		Count:             len(values),
		Min:               sorted[0],
		Max:               sorted[len(sorted)-1],
		Mean:              mean,
		P95:               calculatePercentile(sorted, 95),
		Latest:            values[len(values)-1],
		StandardDeviation: stdDev,
	}
	if mean > 0 {
		summary.CoefficientOfVariation = stdDev / mean
	}
	summary.TrendDirection, summary.TrendStrength = a.analyzeTrend(values)
	summary.SpikeFrequency = a.calculateSpikeFrequency(values, mean, stdDev)
	summary.Class = a.classify(summary)

	return summary
}

func (a *SeriesAnalyzer) classify(s Summary) UsageClass {
	switch {
	case s.P95 >= a.SaturationThreshold:
		return UsageClassSaturated
	case s.Mean < a.IdleThreshold:
		return UsageClassIdle
	case s.CoefficientOfVariation >= a.HighVariabilityThreshold:
		return UsageClassBursty
	case s.TrendStrength >= a.StrongTrendThreshold && s.TrendDirection == TrendDirectionIncreasing:
		return UsageClassGrowing
	case s.TrendStrength >= a.StrongTrendThreshold && s.TrendDirection == TrendDirectionDecreasing:
		return UsageClassShrinking
	default:
		return UsageClassStable
	}
}

// Helper functions for statistical calculations

func calculateMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func calculateStandardDeviation(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sumSquaredDiff := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquaredDiff += diff * diff
	}
	variance := sumSquaredDiff / float64(len(values)-1)
	return math.Sqrt(variance)
}

// calculatePercentile interpolates linearly over sorted values
func calculatePercentile(sortedValues []float64, percentile float64) float64 {
	if len(sortedValues) == 0 {
		return 0
	}

	if percentile <= 0 {
		return sortedValues[0]
	}
	if percentile >= 100 {
		return sortedValues[len(sortedValues)-1]
	}

	index := (percentile / 100.0) * float64(len(sortedValues)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))

	if lower == upper {
		return sortedValues[lower]
	}

	weight := index - float64(lower)
	return sortedValues[lower]*(1-weight) + sortedValues[upper]*weight
}

func (a *SeriesAnalyzer) analyzeTrend(values []float64) (string, float64) {
	if len(values) < a.MinPointsForTrend {
		return TrendDirectionStable, 0.0
	}

	// Simple linear regression to detect trend
	n := float64(len(values))
	sumX := 0.0
	sumY := 0.0
	sumXY := 0.0
	sumX2 := 0.0

	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}

	slope := (n*sumXY - sumX*sumY) / (n*sumX2 - sumX*sumX)

	// Normalize slope by mean to get relative trend strength
	mean := sumY / n
	if mean == 0 {
		return TrendDirectionStable, 0.0
	}

	if math.Abs(slope) < mean*0.001 {
		return TrendDirectionStable, 0.0
	}

	direction := TrendDirectionIncreasing
	if slope < 0 {
		direction = TrendDirectionDecreasing
	}

	// Cap strength at 1.0
	strength := math.Min(math.Abs(slope)/mean*100, 1.0)

	return direction, strength
}

func (a *SeriesAnalyzer) calculateSpikeFrequency(values []float64, mean, stdDev float64) float64 {
	if len(values) == 0 || stdDev == 0 {
		return 0.0
	}

	spikeThreshold := mean + a.SpikeDetectionThreshold*stdDev
	spikes := 0

	for _, v := range values {
		if v > spikeThreshold {
			spikes++
		}
	}

	return float64(spikes) / float64(len(values))
}
