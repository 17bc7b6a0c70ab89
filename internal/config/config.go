package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/wesleyemery/ec2-cpu-monitor/pkg/cpuerr"
)

// Metrics backends
const (
	BackendCloudWatch = "cloudwatch"
	BackendPrometheus = "prometheus"
	BackendMock       = "mock"
)

const (
	defaultPort           = 5179
	defaultRequestTimeout = 10 * time.Second
	defaultEnvFile        = ".env"
)

// Config holds process level settings. Region and InstanceIP are opaque to
// the pipeline and may be empty at startup; requests then fail with a
// configuration error.
type Config struct {
	Region         string
	InstanceIP     string
	Port           int
	MetricsBackend string
	PrometheusURL  string
	RequestTimeout time.Duration
	AllowedOrigins []string
	EnvFile        string
}

// NewConfig returns the defaults
func NewConfig() *Config {
	return &Config{
		Port:           defaultPort,
		MetricsBackend: BackendCloudWatch,
		RequestTimeout: defaultRequestTimeout,
		AllowedOrigins: []string{"*"},
		EnvFile:        defaultEnvFile,
	}
}

// AddFlags binds the settings to a flag set
func (c *Config) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Region, "region", c.Region, "AWS region of the instance (env AWS_REGION)")
	fs.StringVar(&c.InstanceIP, "instance-ip", c.InstanceIP, "Public or private IP of the instance to monitor (env INSTANCE_IP)")
	fs.IntVar(&c.Port, "port", c.Port, "HTTP listen port (env PORT)")
	fs.StringVar(&c.MetricsBackend, "metrics-backend", c.MetricsBackend,
		"Metrics backend: cloudwatch, prometheus or mock (env METRICS_BACKEND)")
	fs.StringVar(&c.PrometheusURL, "prometheus-url", c.PrometheusURL, "Prometheus server URL (env PROMETHEUS_URL)")
	fs.DurationVar(&c.RequestTimeout, "request-timeout", c.RequestTimeout, "Time budget per CPU request (env REQUEST_TIMEOUT)")
	fs.StringSliceVar(&c.AllowedOrigins, "allowed-origins", c.AllowedOrigins, "CORS allowed origins (env CORS_ALLOWED_ORIGINS)")
	fs.StringVar(&c.EnvFile, "env-file", c.EnvFile, "Optional dotenv file loaded before reading the environment")
}

// Complete loads the env file and fills every setting not given as a flag
// from the environment.
func (c *Config) Complete(fs *pflag.FlagSet) error {
	if c.EnvFile != "" {
		if err := godotenv.Load(c.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load env file %s: %w", c.EnvFile, err)
		}
	}

	setString := func(flagName, envName string, target *string) {
		if fs != nil && fs.Changed(flagName) {
			return
		}
		if v, ok := os.LookupEnv(envName); ok {
			*target = strings.TrimSpace(v)
		}
	}

	setString("region", "AWS_REGION", &c.Region)
	setString("instance-ip", "INSTANCE_IP", &c.InstanceIP)
	setString("metrics-backend", "METRICS_BACKEND", &c.MetricsBackend)
	setString("prometheus-url", "PROMETHEUS_URL", &c.PrometheusURL)

	if fs == nil || !fs.Changed("port") {
		if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
			port, err := strconv.Atoi(v)
			if err != nil {
				return &cpuerr.ConfigurationError{Setting: "PORT", Message: fmt.Sprintf("invalid PORT %q", v)}
			}
			c.Port = port
		}
	}

	if fs == nil || !fs.Changed("request-timeout") {
		if v := strings.TrimSpace(os.Getenv("REQUEST_TIMEOUT")); v != "" {
			timeout, err := time.ParseDuration(v)
			if err != nil {
				return &cpuerr.ConfigurationError{Setting: "REQUEST_TIMEOUT", Message: fmt.Sprintf("invalid REQUEST_TIMEOUT %q", v)}
			}
			c.RequestTimeout = timeout
		}
	}

	if fs == nil || !fs.Changed("allowed-origins") {
		if v := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS")); v != "" {
			c.AllowedOrigins = splitList(v)
		}
	}

	c.Region = strings.TrimSpace(c.Region)
	c.InstanceIP = strings.TrimSpace(c.InstanceIP)
	c.MetricsBackend = strings.ToLower(strings.TrimSpace(c.MetricsBackend))
	return nil
}

// Validate checks structural settings. Empty region or address is not an
// error here.
func (c *Config) Validate() error {
	switch c.MetricsBackend {
	case BackendCloudWatch, BackendMock:
	case BackendPrometheus:
		if c.PrometheusURL == "" {
			return &cpuerr.ConfigurationError{Setting: "PROMETHEUS_URL", Message: "prometheus backend requires PROMETHEUS_URL"}
		}
		if _, err := url.ParseRequestURI(c.PrometheusURL); err != nil {
			return &cpuerr.ConfigurationError{Setting: "PROMETHEUS_URL", Message: fmt.Sprintf("invalid PROMETHEUS_URL %q", c.PrometheusURL)}
		}
	default:
		return &cpuerr.ConfigurationError{Setting: "METRICS_BACKEND", Message: fmt.Sprintf("unknown metrics backend %q", c.MetricsBackend)}
	}

	if c.Port <= 0 || c.Port > 65535 {
		return &cpuerr.ConfigurationError{Setting: "PORT", Message: fmt.Sprintf("port %d out of range", c.Port)}
	}
	if c.RequestTimeout <= 0 {
		return &cpuerr.ConfigurationError{Setting: "REQUEST_TIMEOUT", Message: "request timeout must be positive"}
	}
	return nil
}

// Address is the HTTP listen address
func (c *Config) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
