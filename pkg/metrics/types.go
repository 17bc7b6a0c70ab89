package metrics

import (
	"errors"
	"time"
)

// CloudWatch coordinates of the EC2 CPU utilization metric
const (
	EC2Namespace         = "AWS/EC2"
	CPUUtilizationMetric = "CPUUtilization"
	InstanceIDDimension  = "InstanceId"
	PercentUnit          = "Percent"
)

// InstanceIdentity binds an address to the instance it resolved to
type InstanceIdentity struct {
	IP         string `json:"ip"`
	InstanceID string `json:"instanceId"`
	Region     string `json:"region"`
}

// MetricQuery is a validated time window and sampling period.
// StartTime is before EndTime and PeriodSeconds is a positive multiple of 60.
type MetricQuery struct {
	StartTime     time.Time
	EndTime       time.Time
	PeriodSeconds int32
}

// Period returns the sampling period as a duration
func (q MetricQuery) Period() time.Duration {
	return time.Duration(q.PeriodSeconds) * time.Second
}

// MetricPoint is a single CPU utilization sample in percent
type MetricPoint struct {
	Timestamp time.Time `json:"t"`
	Value     float64   `json:"v"`
}

// MetricSeries is the ordered CPU utilization series for one instance
type MetricSeries struct {
	InstanceID string        `json:"instanceId"`
	Region     string        `json:"region"`
	Points     []MetricPoint `json:"points"`
}

// RawSample is a datapoint as reported by a metrics backend before cleaning.
// Nil fields mean the backend reported no value for that bucket.
type RawSample struct {
	Timestamp *time.Time
	Average   *float64
}

// ErrMissingInstanceID is wrapped by every fetcher when called without an instance ID
var ErrMissingInstanceID = errors.New("instance ID is required")
