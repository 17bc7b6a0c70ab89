package analyzer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wesleyemery/ec2-cpu-monitor/pkg/metrics"
)

func pointsOf(values ...float64) []metrics.MetricPoint {
	start := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	points := make([]metrics.MetricPoint, len(values))
	for i, v := range values {
		points[i] = metrics.MetricPoint{
			Timestamp: start.Add(time.Duration(i) * 5 * time.Minute),
			Value:     v,
		}
	}
	return points
}

func repeat(value float64, n int) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = value
	}
	return values
}

func ramp(start, step float64, n int) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = start + step*float64(i)
	}
	return values
}

func TestNewSeriesAnalyzer(t *testing.T) {
	a := NewSeriesAnalyzer()

	assert.NotNil(t, a)
	assert.Equal(t, 5.0, a.IdleThreshold)
	assert.Equal(t, 90.0, a.SaturationThreshold)
	assert.Equal(t, 0.3, a.HighVariabilityThreshold)
	assert.Equal(t, 2.0, a.SpikeDetectionThreshold)
	assert.Equal(t, 10, a.MinPointsForTrend)
}

func TestSummarize_Classification(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected UsageClass
	}{
		{name: "no data", values: nil, expected: UsageClassNoData},
		{name: "stable", values: repeat(50, 12), expected: UsageClassStable},
		{name: "idle", values: repeat(2, 12), expected: UsageClassIdle},
		{name: "saturated", values: repeat(95, 12), expected: UsageClassSaturated},
		{name: "growing", values: ramp(20, 1, 12), expected: UsageClassGrowing},
		{name: "shrinking", values: ramp(31, -1, 12), expected: UsageClassShrinking},
		{name: "bursty", values: []float64{10, 60, 10, 60, 10, 60, 10, 60, 10, 60, 10, 60}, expected: UsageClassBursty},
	}

	a := NewSeriesAnalyzer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary := a.Summarize(pointsOf(tt.values...))
			assert.Equal(t, tt.expected, summary.Class)
			assert.Equal(t, len(tt.values), summary.Count)
		})
	}
}

func TestSummarize_Statistics(t *testing.T) {
	a := NewSeriesAnalyzer()

	summary := a.Summarize(pointsOf(30, 10, 50, 20, 40))

	assert.Equal(t, 5, summary.Count)
	assert.Equal(t, 10.0, summary.Min)
	assert.Equal(t, 50.0, summary.Max)
	assert.Equal(t, 30.0, summary.Mean)
	assert.InDelta(t, 48.0, summary.P95, 1e-9)
	assert.Equal(t, 40.0, summary.Latest)
	assert.InDelta(t, 15.811, summary.StandardDeviation, 0.001)
	assert.Equal(t, TrendDirectionStable, summary.TrendDirection, "too few points for a trend")
}

func TestSummarize_DoesNotReorderInput(t *testing.T) {
	a := NewSeriesAnalyzer()
	points := pointsOf(30, 10, 20)

	_ = a.Summarize(points)

	assert.Equal(t, 30.0, points[0].Value)
	assert.Equal(t, 10.0, points[1].Value)
	assert.Equal(t, 20.0, points[2].Value)
}

func TestSummarize_SpikeFrequency(t *testing.T) {
	a := NewSeriesAnalyzer()
	values := append(repeat(10, 19), 100)

	summary := a.Summarize(pointsOf(values...))

	assert.InDelta(t, 0.05, summary.SpikeFrequency, 1e-9)
}

func TestCalculatePercentile(t *testing.T) {
	sorted := []float64{10, 20, 30, 40, 50}

	assert.Equal(t, 0.0, calculatePercentile(nil, 95))
	assert.Equal(t, 10.0, calculatePercentile(sorted, 0))
	assert.Equal(t, 50.0, calculatePercentile(sorted, 100))
	assert.Equal(t, 30.0, calculatePercentile(sorted, 50))
	assert.InDelta(t, 48.0, calculatePercentile(sorted, 95), 1e-9)
}
