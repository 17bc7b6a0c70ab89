package monitor

import (
	"context"
	"fmt"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/wesleyemery/ec2-cpu-monitor/pkg/analyzer"
	"github.com/wesleyemery/ec2-cpu-monitor/pkg/cpuerr"
	"github.com/wesleyemery/ec2-cpu-monitor/pkg/metrics"
)

// Request is one CPU series lookup. IP and Region come from deployment
// configuration, the window parameters from the caller.
type Request struct {
	IP              string
	Region          string
	RangeMinutes    float64
	IntervalSeconds float64
	Now             time.Time
}

// Result is a fully formed CPU series with the query that produced it
type Result struct {
	Identity metrics.InstanceIdentity
	Query    metrics.MetricQuery
	Series   *metrics.MetricSeries
	Summary  analyzer.Summary
}

// Monitor runs validation, instance resolution and metric fetching in sequence
type Monitor struct {
	Resolver InstanceResolver
	Fetcher  MetricFetcher
	Analyzer *analyzer.SeriesAnalyzer
	Recorder *Recorder
}

// NewMonitor creates a monitor with the default analyzer and no instrumentation
func NewMonitor(resolver InstanceResolver, fetcher MetricFetcher) *Monitor {
	return &Monitor{
		Resolver: resolver,
		Fetcher:  fetcher,
		Analyzer: analyzer.NewSeriesAnalyzer(),
	}
}

// GetCPUSeries returns either a complete result or exactly one classified error.
func (m *Monitor) GetCPUSeries(ctx context.Context, req Request) (*Result, error) {
	result, err := m.getCPUSeries(ctx, req)
	if err != nil {
		classified := cpuerr.Classify(err)
		m.Recorder.observeOutcome(string(classified.Kind()))
		return nil, classified
	}
	m.Recorder.observeOutcome("success")
	return result, nil
}

func (m *Monitor) getCPUSeries(ctx context.Context, req Request) (*Result, error) {
	logger := log.FromContext(ctx)

	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}

	query, err := BuildQuery(req.RangeMinutes, req.IntervalSeconds, now)
	if err != nil {
		return nil, err
	}

	if req.Region == "" {
		return nil, cpuerr.MissingSetting("AWS_REGION")
	}
	if req.IP == "" {
		return nil, cpuerr.MissingSetting("INSTANCE_IP")
	}

	resolveStart := time.Now()
	instanceID, err := m.Resolver.Resolve(ctx, req.IP, req.Region)
	m.Recorder.observeStep("resolve", resolveStart)
	if err != nil {
		return nil, err
	}

	// Abort between steps, never mid-call
	if err := ctx.Err(); err != nil {
		return nil, cpuerr.Upstream("monitor", "fetch", fmt.Errorf("request cancelled before fetch: %w", err))
	}

	logger.V(1).Info("Fetching CPU utilization", "instanceId", instanceID,
		"start", query.StartTime, "end", query.EndTime, "period", query.PeriodSeconds)

	fetchStart := time.Now()
	series, err := m.Fetcher.FetchCPU(ctx, instanceID, req.Region, query)
	m.Recorder.observeStep("fetch", fetchStart)
	if err != nil {
		return nil, err
	}
	if series == nil {
		return nil, cpuerr.Upstream("metrics", "FetchCPU", fmt.Errorf("no series returned"))
	}

	summarizer := m.Analyzer
	if summarizer == nil {
		summarizer = analyzer.NewSeriesAnalyzer()
	}

	return &Result{
		Identity: metrics.InstanceIdentity{IP: req.IP, InstanceID: instanceID, Region: req.Region},
		Query:    query,
		Series:   series,
		Summary:  summarizer.Summarize(series.Points),
	}, nil
}
