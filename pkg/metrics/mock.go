package metrics

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/wesleyemery/ec2-cpu-monitor/pkg/cpuerr"
)

const (
	defaultBaseCPU      = 25.0 // percent
	defaultVariance     = 0.3  // 30% variance
	varianceOffset      = 0.5
	varianceMultiplier  = 2
	maxCPUPercent       = 100.0
	minMockCPUPercent   = 0.1
	defaultMockInstance = "i-0mock0000000000"
)

// MockMetricsClient provides fake CPU utilization for offline runs and tests
type MockMetricsClient struct {
	// Configuration for generating fake data
	BaseCPU  float64
	Variance float64
	// MissingEvery drops every Nth bucket to mimic gaps in upstream data; 0 disables
	MissingEvery int
}

// NewMockMetricsClient creates a mock metrics client for testing
func NewMockMetricsClient() *MockMetricsClient {
	return &MockMetricsClient{
		BaseCPU:  defaultBaseCPU,
		Variance: defaultVariance,
	}
}

// DefaultMockInstanceID is the instance ID mock mode resolves every address to
func DefaultMockInstanceID() string {
	return defaultMockInstance
}

// MaxMockDatapoints mirrors the per-call datapoint limit of GetMetricStatistics
const MaxMockDatapoints = 1440

// FetchCPU generates one sample per period bucket across the query window,
// returned newest first so callers exercise the same ordering as a real backend.
func (m *MockMetricsClient) FetchCPU(_ context.Context, instanceID, region string, query MetricQuery) (*MetricSeries, error) {
	if instanceID == "" {
		return nil, cpuerr.Upstream("mock", "FetchCPU", ErrMissingInstanceID)
	}

	period := query.Period()
	if period <= 0 {
		return nil, cpuerr.Upstream("mock", "FetchCPU", fmt.Errorf("invalid period %d", query.PeriodSeconds))
	}

	if buckets := query.EndTime.Sub(query.StartTime) / period; buckets > MaxMockDatapoints {
		return nil, cpuerr.Upstream("mock", "FetchCPU",
			fmt.Errorf("window of %d periods exceeds %d datapoints", buckets, MaxMockDatapoints))
	}

	var samples []RawSample
	bucket := 0
	for ts := query.StartTime; ts.Before(query.EndTime); ts = ts.Add(period) {
		bucket++
		timestamp := ts
		if m.MissingEvery > 0 && bucket%m.MissingEvery == 0 {
			samples = append(samples, RawSample{Timestamp: &timestamp})
			continue
		}

		cpuVariance := (rand.Float64() - varianceOffset) * varianceMultiplier * m.Variance
		value := m.BaseCPU * (1 + cpuVariance)
		if value < 0 {
			value = minMockCPUPercent
		}
		if value > maxCPUPercent {
			value = maxCPUPercent
		}

		samples = append(samples, RawSample{Timestamp: &timestamp, Average: &value})
	}

	for i, j := 0, len(samples)-1; i < j; i, j = i+1, j-1 {
		samples[i], samples[j] = samples[j], samples[i]
	}

	return NewSeries(instanceID, region, NormalizeSamples(samples)), nil
}
