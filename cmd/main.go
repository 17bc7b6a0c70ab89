/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/wesleyemery/ec2-cpu-monitor/internal/config"
	"github.com/wesleyemery/ec2-cpu-monitor/internal/server"
	"github.com/wesleyemery/ec2-cpu-monitor/pkg/metrics"
	"github.com/wesleyemery/ec2-cpu-monitor/pkg/monitor"
	"github.com/wesleyemery/ec2-cpu-monitor/pkg/resolver"
)

var setupLog = log.Log.WithName("setup")

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := config.NewConfig()
	opts := zap.Options{
		Development: true,
	}

	cmd := &cobra.Command{
		Use:          "ec2-cpu-monitor",
		Short:        "Serve CPU utilization of an EC2 instance identified by its IP address",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log.SetLogger(zap.New(zap.UseFlagOptions(&opts)))
			gin.SetMode(ginMode(opts.Development))

			if err := cfg.Complete(cmd.Flags()); err != nil {
				setupLog.Error(err, "unable to load configuration")
				return err
			}
			if err := cfg.Validate(); err != nil {
				setupLog.Error(err, "invalid configuration")
				return err
			}
			return run(ctrl.SetupSignalHandler(), cfg)
		},
	}

	cfg.AddFlags(cmd.Flags())
	goFlags := flag.NewFlagSet("zap", flag.ExitOnError)
	opts.BindFlags(goFlags)
	cmd.Flags().AddGoFlagSet(goFlags)

	return cmd
}

// ginMode keeps gin's route dump and debug warnings for development logging only
func ginMode(development bool) string {
	if development {
		return gin.DebugMode
	}
	return gin.ReleaseMode
}

func run(ctx context.Context, cfg *config.Config) error {
	if cfg.Region == "" {
		setupLog.Info("AWS_REGION is not set, CPU requests will fail until it is configured")
	}
	if cfg.InstanceIP == "" {
		setupLog.Info("INSTANCE_IP is not set, CPU requests will fail until it is configured")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mon, err := buildMonitor(ctx, cfg)
	if err != nil {
		setupLog.Error(err, "unable to create CPU monitor", "backend", cfg.MetricsBackend)
		return err
	}

	recorder, err := monitor.NewRecorder(registry)
	if err != nil {
		setupLog.Error(err, "unable to register pipeline metrics")
		return err
	}
	mon.Recorder = recorder

	srv := server.New(cfg, mon, registry, log.Log)

	setupLog.Info("starting server", "backend", cfg.MetricsBackend, "region", cfg.Region, "ip", cfg.InstanceIP)
	if err := srv.Run(ctx); err != nil {
		setupLog.Error(err, "problem running server")
		return err
	}
	return nil
}

func buildMonitor(ctx context.Context, cfg *config.Config) (*monitor.Monitor, error) {
	if cfg.MetricsBackend == config.BackendMock {
		setupLog.Info("Using mock metrics client")
		mockClient := metrics.NewMockMetricsClient()

		// Configure mock variance from environment variable
		if mockVarianceStr := os.Getenv("MOCK_VARIANCE"); mockVarianceStr != "" {
			if mockVariance, err := strconv.ParseFloat(mockVarianceStr, 64); err == nil {
				mockClient.Variance = mockVariance
				setupLog.Info("Using custom mock variance", "variance", mockVariance)
			}
		}

		return monitor.NewMonitor(
			resolver.NewStaticResolver(cfg.InstanceIP, metrics.DefaultMockInstanceID()),
			mockClient,
		), nil
	}

	// Upstream calls are never retried
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithRetryer(func() aws.Retryer { return aws.NopRetryer{} }),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	instanceResolver, err := resolver.NewEC2Resolver(ec2.NewFromConfig(awsCfg))
	if err != nil {
		return nil, err
	}

	var fetcher monitor.MetricFetcher
	switch cfg.MetricsBackend {
	case config.BackendPrometheus:
		setupLog.Info("Using Prometheus metrics client", "url", cfg.PrometheusURL)
		fetcher, err = metrics.NewPrometheusClient(cfg.PrometheusURL, http.DefaultTransport)
	default:
		setupLog.Info("Using CloudWatch metrics client")
		fetcher, err = metrics.NewCloudWatchClient(cloudwatch.NewFromConfig(awsCfg))
	}
	if err != nil {
		return nil, err
	}

	return monitor.NewMonitor(instanceResolver, fetcher), nil
}
