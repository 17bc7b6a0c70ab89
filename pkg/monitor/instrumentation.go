package monitor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder exports pipeline outcomes and step latencies. A nil Recorder is a no-op.
type Recorder struct {
	requests *prometheus.CounterVec
	steps    *prometheus.HistogramVec
}

// NewRecorder creates a recorder and registers its collectors
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cpu_monitor",
			Name:      "series_requests_total",
			Help:      "CPU series lookups by outcome.",
		}, []string{"outcome"}),
		steps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cpu_monitor",
			Name:      "step_duration_seconds",
			Help:      "Duration of upstream pipeline steps.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step"}),
	}

	for _, c := range []prometheus.Collector{r.requests, r.steps} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Recorder) observeOutcome(outcome string) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(outcome).Inc()
}

func (r *Recorder) observeStep(step string, start time.Time) {
	if r == nil {
		return
	}
	r.steps.WithLabelValues(step).Observe(time.Since(start).Seconds())
}
