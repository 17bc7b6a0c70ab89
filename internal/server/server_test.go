package server

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wesleyemery/ec2-cpu-monitor/internal/config"
	"github.com/wesleyemery/ec2-cpu-monitor/pkg/cpuerr"
	"github.com/wesleyemery/ec2-cpu-monitor/pkg/metrics"
	"github.com/wesleyemery/ec2-cpu-monitor/pkg/monitor"
	"github.com/wesleyemery/ec2-cpu-monitor/pkg/resolver"
)

// fixedFetcher returns canned points in the order given
type fixedFetcher struct {
	points []metrics.MetricPoint
	calls  int
}

func (f *fixedFetcher) FetchCPU(_ context.Context, instanceID, region string, _ metrics.MetricQuery) (*metrics.MetricSeries, error) {
	f.calls++
	return metrics.NewSeries(instanceID, region, f.points), nil
}

// failingGetter always returns err
type failingGetter struct {
	err error
}

func (f failingGetter) GetCPUSeries(context.Context, monitor.Request) (*monitor.Result, error) {
	return nil, f.err
}

type cpuBody struct {
	InstanceID    string    `json:"instanceId"`
	Region        string    `json:"region"`
	IP            string    `json:"ip"`
	StartTime     time.Time `json:"startTime"`
	EndTime       time.Time `json:"endTime"`
	PeriodSeconds int32     `json:"periodSeconds"`
	Points        []struct {
		T time.Time `json:"t"`
		V float64   `json:"v"`
	} `json:"points"`
	Summary struct {
		Count int `json:"count"`
	} `json:"summary"`
}

func get(handler http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

var _ = Describe("Server", func() {
	var (
		cfg     *config.Config
		now     time.Time
		fetcher *fixedFetcher
		reg     *prometheus.Registry
		srv     *Server
	)

	BeforeEach(func() {
		cfg = config.NewConfig()
		cfg.Region = "us-east-1"
		cfg.InstanceIP = "54.1.2.3"
		now = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

		fetcher = &fixedFetcher{}
		for i := 0; i < 12; i++ {
			fetcher.points = append(fetcher.points, metrics.MetricPoint{
				Timestamp: now.Add(-time.Hour).Add(time.Duration(i) * 5 * time.Minute),
				Value:     float64(10 + i),
			})
		}

		mon := monitor.NewMonitor(resolver.NewStaticResolver("54.1.2.3", "i-0123"), fetcher)
		reg = prometheus.NewRegistry()
		recorder, err := monitor.NewRecorder(reg)
		Expect(err).NotTo(HaveOccurred())
		mon.Recorder = recorder

		srv = New(cfg, mon, reg, logr.Discard())
		srv.Now = func() time.Time { return now }
	})

	Describe("GET /api/health", func() {
		It("reports ok", func() {
			rec := get(srv.Handler(), "/api/health")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(MatchJSON(`{"ok":true}`))
		})
	})

	Describe("GET /api/instance", func() {
		It("returns the configured address and region", func() {
			rec := get(srv.Handler(), "/api/instance")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(MatchJSON(`{"ip":"54.1.2.3","region":"us-east-1"}`))
		})
	})

	Describe("GET /api/cpu", func() {
		It("returns the series for a valid window", func() {
			rec := get(srv.Handler(), "/api/cpu?rangeMinutes=60&intervalSeconds=300")
			Expect(rec.Code).To(Equal(http.StatusOK))

			var body cpuBody
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body.InstanceID).To(Equal("i-0123"))
			Expect(body.Region).To(Equal("us-east-1"))
			Expect(body.IP).To(Equal("54.1.2.3"))
			Expect(body.PeriodSeconds).To(Equal(int32(300)))
			Expect(body.EndTime.Sub(body.StartTime)).To(Equal(time.Hour))
			Expect(body.Points).To(HaveLen(12))
			Expect(body.Points[0].V).To(Equal(10.0))
			Expect(body.Summary.Count).To(Equal(12))
		})

		DescribeTable("rejects invalid windows without calling the backend",
			func(query, message string) {
				rec := get(srv.Handler(), "/api/cpu"+query)
				Expect(rec.Code).To(Equal(http.StatusBadRequest))

				var body errorResponse
				Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
				Expect(body.Error).To(Equal(message))
				Expect(body.Kind).To(Equal(cpuerr.KindValidation))
				Expect(fetcher.calls).To(BeZero())
			},
			Entry("missing range", "?intervalSeconds=300", "rangeMinutes must be bigger than 0."),
			Entry("negative range", "?rangeMinutes=-5&intervalSeconds=300", "rangeMinutes must be bigger than 0."),
			Entry("non-numeric interval", "?rangeMinutes=60&intervalSeconds=abc", "intervalSeconds must be bigger than 0."),
			Entry("interval not a multiple of 60", "?rangeMinutes=60&intervalSeconds=90", "intervalSeconds must be a multiple of 60."),
		)

		It("returns 404 when the address is unknown", func() {
			cfg.InstanceIP = "203.0.113.1"
			rec := get(srv.Handler(), "/api/cpu?rangeMinutes=60&intervalSeconds=300")
			Expect(rec.Code).To(Equal(http.StatusNotFound))
			Expect(rec.Body.String()).To(ContainSubstring("No EC2 instance found for IP 203.0.113.1"))
			Expect(fetcher.calls).To(BeZero())
		})

		It("returns 500 when the region is not configured", func() {
			cfg.Region = ""
			rec := get(srv.Handler(), "/api/cpu?rangeMinutes=60&intervalSeconds=300")
			Expect(rec.Code).To(Equal(http.StatusInternalServerError))
			Expect(rec.Body.String()).To(MatchJSON(`{"error":"Server misconfigured","kind":"configuration"}`))
		})

		It("hides upstream detail", func() {
			srv = New(cfg, failingGetter{err: cpuerr.Upstream("cloudwatch", "GetMetricStatistics",
				errors.New("AccessDenied for arn:aws:iam::123456789012:role/x"))}, nil, logr.Discard())
			rec := get(srv.Handler(), "/api/cpu?rangeMinutes=60&intervalSeconds=300")
			Expect(rec.Code).To(Equal(http.StatusBadGateway))
			Expect(rec.Body.String()).NotTo(ContainSubstring("AccessDenied"))
		})
	})

	Describe("operational endpoints", func() {
		It("serves health probes", func() {
			Expect(get(srv.Handler(), "/healthz").Code).To(Equal(http.StatusOK))
			Expect(get(srv.Handler(), "/readyz").Code).To(Equal(http.StatusOK))
		})

		It("exposes pipeline metrics", func() {
			get(srv.Handler(), "/api/cpu?rangeMinutes=60&intervalSeconds=300")
			rec := get(srv.Handler(), "/metrics")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`cpu_monitor_series_requests_total{outcome="success"} 1`))
		})
	})

	Describe("parseNumber", func() {
		It("treats malformed input as NaN", func() {
			Expect(math.IsNaN(parseNumber(""))).To(BeTrue())
			Expect(math.IsNaN(parseNumber("ten"))).To(BeTrue())
			Expect(parseNumber("1.5")).To(Equal(1.5))
		})
	})
})
