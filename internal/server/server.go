package server

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/wesleyemery/ec2-cpu-monitor/internal/config"
	"github.com/wesleyemery/ec2-cpu-monitor/pkg/analyzer"
	"github.com/wesleyemery/ec2-cpu-monitor/pkg/cpuerr"
	"github.com/wesleyemery/ec2-cpu-monitor/pkg/metrics"
	"github.com/wesleyemery/ec2-cpu-monitor/pkg/monitor"
)

const shutdownTimeout = 5 * time.Second

// CPUSeriesGetter runs the CPU series pipeline
type CPUSeriesGetter interface {
	GetCPUSeries(ctx context.Context, req monitor.Request) (*monitor.Result, error)
}

// Server exposes the pipeline over HTTP
type Server struct {
	cfg      *config.Config
	monitor  CPUSeriesGetter
	gatherer prometheus.Gatherer
	logger   logr.Logger
	engine   *gin.Engine

	// Now is the clock used to anchor each request window
	Now func() time.Time
}

type cpuResponse struct {
	InstanceID    string                `json:"instanceId"`
	Region        string                `json:"region"`
	IP            string                `json:"ip"`
	StartTime     time.Time             `json:"startTime"`
	EndTime       time.Time             `json:"endTime"`
	PeriodSeconds int32                 `json:"periodSeconds"`
	Points        []metrics.MetricPoint `json:"points"`
	Summary       analyzer.Summary      `json:"summary"`
}

type errorResponse struct {
	Error string      `json:"error"`
	Kind  cpuerr.Kind `json:"kind"`
}

// New creates a server and its routes
func New(cfg *config.Config, mon CPUSeriesGetter, gatherer prometheus.Gatherer, logger logr.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		monitor:  mon,
		gatherer: gatherer,
		logger:   logger.WithName("server"),
		Now:      time.Now,
	}
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler serving all routes
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(s.logger), cors.New(corsConfig(s.cfg.AllowedOrigins)))

	api := engine.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/instance", s.handleInstance)
	api.GET("/cpu", s.handleCPU)

	ping := healthz.CheckHandler{Checker: healthz.Ping}
	engine.GET("/healthz", gin.WrapH(ping))
	engine.GET("/readyz", gin.WrapH(ping))

	if s.gatherer != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	return engine
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleInstance(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ip": s.cfg.InstanceIP, "region": s.cfg.Region})
}

func (s *Server) handleCPU(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.RequestTimeout)
	defer cancel()

	result, err := s.monitor.GetCPUSeries(ctx, monitor.Request{
		IP:              s.cfg.InstanceIP,
		Region:          s.cfg.Region,
		RangeMinutes:    parseNumber(c.Query("rangeMinutes")),
		IntervalSeconds: parseNumber(c.Query("intervalSeconds")),
		Now:             s.Now(),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, cpuResponse{
		InstanceID:    result.Identity.InstanceID,
		Region:        result.Identity.Region,
		IP:            result.Identity.IP,
		StartTime:     result.Query.StartTime,
		EndTime:       result.Query.EndTime,
		PeriodSeconds: result.Query.PeriodSeconds,
		Points:        result.Series.Points,
		Summary:       result.Summary,
	})
}

func (s *Server) writeError(c *gin.Context, err error) {
	classified := cpuerr.Classify(err)
	logger := log.FromContext(c.Request.Context())

	switch classified.Kind() {
	case cpuerr.KindConfiguration, cpuerr.KindUpstream:
		logger.Error(err, "CPU series request failed", "kind", classified.Kind())
	default:
		logger.Info("CPU series request rejected", "kind", classified.Kind(), "reason", err.Error())
	}

	c.JSON(classified.Status(), errorResponse{Error: classified.PublicMessage(), Kind: classified.Kind()})
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Address(),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Backend listening", "address", fmt.Sprintf("http://localhost:%d", s.cfg.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// parseNumber treats missing or malformed input as non-finite
func parseNumber(raw string) float64 {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func requestLogger(logger logr.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqLogger := logger.WithValues("method", c.Request.Method, "path", c.Request.URL.Path)
		c.Request = c.Request.WithContext(log.IntoContext(c.Request.Context(), reqLogger))

		c.Next()

		reqLogger.V(1).Info("Handled request", "status", c.Writer.Status(), "duration", time.Since(start))
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{http.MethodGet, http.MethodOptions}
	for _, origin := range origins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}
