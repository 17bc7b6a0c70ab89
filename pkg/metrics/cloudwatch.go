package metrics

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/wesleyemery/ec2-cpu-monitor/pkg/cpuerr"
)

// GetMetricStatisticsAPI is the part of the CloudWatch API the fetcher needs
type GetMetricStatisticsAPI interface {
	GetMetricStatistics(
		ctx context.Context,
		params *cloudwatch.GetMetricStatisticsInput,
		optFns ...func(*cloudwatch.Options),
	) (*cloudwatch.GetMetricStatisticsOutput, error)
}

// CloudWatchClient fetches EC2 CPU utilization from CloudWatch
type CloudWatchClient struct {
	api GetMetricStatisticsAPI
}

// NewCloudWatchClient creates a new CloudWatch metrics client
func NewCloudWatchClient(api GetMetricStatisticsAPI) (*CloudWatchClient, error) {
	if api == nil {
		return nil, fmt.Errorf("failed to create CloudWatch client: nil API")
	}
	return &CloudWatchClient{api: api}, nil
}

// FetchCPU retrieves the average CPU utilization of an instance over the query window.
// Exactly one GetMetricStatistics call is issued.
func (c *CloudWatchClient) FetchCPU(ctx context.Context, instanceID, region string, query MetricQuery) (*MetricSeries, error) {
	if instanceID == "" {
		return nil, cpuerr.Upstream("cloudwatch", "GetMetricStatistics", ErrMissingInstanceID)
	}

	input := &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String(EC2Namespace),
		MetricName: aws.String(CPUUtilizationMetric),
		Dimensions: []types.Dimension{
			{Name: aws.String(InstanceIDDimension), Value: aws.String(instanceID)},
		},
		StartTime:  aws.Time(query.StartTime),
		EndTime:    aws.Time(query.EndTime),
		Period:     aws.Int32(query.PeriodSeconds),
		Statistics: []types.Statistic{types.StatisticAverage},
		Unit:       types.StandardUnitPercent,
	}

	resp, err := c.api.GetMetricStatistics(ctx, input, inRegion(region))
	if err != nil {
		return nil, cpuerr.Upstream("cloudwatch", "GetMetricStatistics", err)
	}
	if resp == nil {
		return nil, cpuerr.Upstream("cloudwatch", "GetMetricStatistics", fmt.Errorf("empty response"))
	}

	return NewSeries(instanceID, region, NormalizeSamples(convertDatapoints(resp.Datapoints))), nil
}

func convertDatapoints(datapoints []types.Datapoint) []RawSample {
	samples := make([]RawSample, 0, len(datapoints))
	for _, d := range datapoints {
		samples = append(samples, RawSample{
			Timestamp: d.Timestamp,
			Average:   d.Average,
		})
	}
	return samples
}

func inRegion(region string) func(*cloudwatch.Options) {
	return func(o *cloudwatch.Options) {
		if region != "" {
			o.Region = region
		}
	}
}
