package main

import (
	"context"
	"fmt"
	"time"

	"github.com/wesleyemery/ec2-cpu-monitor/pkg/metrics"
	"github.com/wesleyemery/ec2-cpu-monitor/pkg/monitor"
	"github.com/wesleyemery/ec2-cpu-monitor/pkg/resolver"
)

func main() {
	fmt.Println("🚀 Testing EC2 CPU monitor")
	fmt.Println("==========================")

	ctx := context.Background()
	const ip = "10.0.0.42"

	// 1. Build the pipeline with mock backends
	fmt.Println("\n📊 Using mock inventory and metrics...")
	mockClient := metrics.NewMockMetricsClient()
	mockClient.MissingEvery = 5
	pipeline := monitor.NewMonitor(resolver.NewStaticResolver(ip, metrics.DefaultMockInstanceID()), mockClient)

	// 2. Fetch one hour at five minute resolution
	result, err := pipeline.GetCPUSeries(ctx, monitor.Request{
		IP:              ip,
		Region:          "us-east-1",
		RangeMinutes:    60,
		IntervalSeconds: 300,
		Now:             time.Now(),
	})
	if err != nil {
		panic(err)
	}

	fmt.Printf("✅ Instance %s in %s\n", result.Identity.InstanceID, result.Identity.Region)
	fmt.Printf("   Window: %s → %s (period %ds)\n",
		result.Query.StartTime.Format(time.RFC3339), result.Query.EndTime.Format(time.RFC3339), result.Query.PeriodSeconds)

	// 3. Display the series
	fmt.Println("\n📋 CPU utilization:")
	for _, p := range result.Series.Points {
		fmt.Printf("   %s  %6.2f%%\n", p.Timestamp.Format("15:04"), p.Value)
	}

	fmt.Printf("\n🔍 Summary: mean %.2f%%, p95 %.2f%%, class %s\n",
		result.Summary.Mean, result.Summary.P95, result.Summary.Class)

	// 4. Show how a bad request is classified
	_, err = pipeline.GetCPUSeries(ctx, monitor.Request{IP: ip, Region: "us-east-1", RangeMinutes: 60, IntervalSeconds: 90})
	fmt.Printf("\n⚠️  Invalid interval: %v\n", err)
}
