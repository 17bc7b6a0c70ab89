package monitor

import (
	"context"

	"github.com/wesleyemery/ec2-cpu-monitor/pkg/metrics"
)

// InstanceResolver maps an address to an instance ID within a region
type InstanceResolver interface {
	Resolve(ctx context.Context, ip, region string) (string, error)
}

// MetricFetcher retrieves a normalized CPU utilization series for an instance
type MetricFetcher interface {
	FetchCPU(ctx context.Context, instanceID, region string, query metrics.MetricQuery) (*metrics.MetricSeries, error)
}
