package metrics

import (
	"math"
	"sort"
)

// NormalizeSamples drops samples without a timestamp or a finite average and
// returns the rest in ascending timestamp order. Equal timestamps keep their
// upstream order.
func NormalizeSamples(samples []RawSample) []MetricPoint {
	points := make([]MetricPoint, 0, len(samples))
	for _, s := range samples {
		if s.Timestamp == nil || s.Timestamp.IsZero() || s.Average == nil {
			continue
		}
		v := *s.Average
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		points = append(points, MetricPoint{Timestamp: *s.Timestamp, Value: v})
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})

	return points
}

// NewSeries wraps already normalized points for an instance
func NewSeries(instanceID, region string, points []MetricPoint) *MetricSeries {
	if points == nil {
		points = []MetricPoint{}
	}
	return &MetricSeries{
		InstanceID: instanceID,
		Region:     region,
		Points:     points,
	}
}
