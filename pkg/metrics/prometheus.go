package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"

	"github.com/wesleyemery/ec2-cpu-monitor/pkg/cpuerr"
)

// InstanceIDLabel is the node_exporter target label carrying the EC2 instance ID
const InstanceIDLabel = "instance_id"

// PrometheusClient fetches CPU utilization for instances scraped by node_exporter
type PrometheusClient struct {
	queryAPI v1.API
}

// NewPrometheusClient creates a new Prometheus client
func NewPrometheusClient(prometheusURL string, roundTripper http.RoundTripper) (*PrometheusClient, error) {
	client, err := api.NewClient(api.Config{
		Address:      prometheusURL,
		RoundTripper: roundTripper,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}

	return &PrometheusClient{queryAPI: v1.NewAPI(client)}, nil
}

// FetchCPU retrieves the busy CPU percentage of an instance over the query window.
// The region is informational: a Prometheus server is not region scoped.
func (p *PrometheusClient) FetchCPU(ctx context.Context, instanceID, region string, query MetricQuery) (*MetricSeries, error) {
	if instanceID == "" {
		return nil, cpuerr.Upstream("prometheus", "QueryRange", ErrMissingInstanceID)
	}

	result, _, err := p.queryAPI.QueryRange(ctx, buildCPUQuery(instanceID, query.Period()), v1.Range{
		Start: query.StartTime,
		End:   query.EndTime,
		Step:  query.Period(),
	})
	if err != nil {
		return nil, cpuerr.Upstream("prometheus", "QueryRange", err)
	}

	matrix, ok := result.(model.Matrix)
	if !ok {
		return nil, cpuerr.Upstream("prometheus", "QueryRange",
			fmt.Errorf("unexpected result type %T", result))
	}

	return NewSeries(instanceID, region, NormalizeSamples(convertMatrix(matrix))), nil
}

func buildCPUQuery(instanceID string, window time.Duration) string {
	return fmt.Sprintf(
		`100 * (1 - avg(rate(node_cpu_seconds_total{mode="idle",%s="%s"}[%ds])))`,
		InstanceIDLabel, escapeLabelValue(instanceID), int64(window/time.Second),
	)
}

func escapeLabelValue(v string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(v)
}

func convertMatrix(matrix model.Matrix) []RawSample {
	var samples []RawSample
	for _, series := range matrix {
		for _, pair := range series.Values {
			ts := pair.Timestamp.Time()
			value := float64(pair.Value)
			samples = append(samples, RawSample{
				Timestamp: &ts,
				Average:   &value,
			})
		}
	}
	return samples
}
