package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"github.com/go-logr/logr"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/wesleyemery/ec2-cpu-monitor/pkg/cpuerr"
)

// DescribeInstancesAPI is the part of the EC2 API the resolver needs
type DescribeInstancesAPI interface {
	DescribeInstances(
		ctx context.Context,
		params *ec2.DescribeInstancesInput,
		optFns ...func(*ec2.Options),
	) (*ec2.DescribeInstancesOutput, error)
}

// LookupStrategy is one way of matching an address to an instance
type LookupStrategy struct {
	Name   string
	Filter string
}

// DefaultStrategies tries the address as a public/elastic IP first, then as a private IP
func DefaultStrategies() []LookupStrategy {
	return []LookupStrategy{
		{Name: "public-address", Filter: "ip-address"},
		{Name: "private-address", Filter: "private-ip-address"},
	}
}

// EC2Resolver finds the instance bound to an IP address
type EC2Resolver struct {
	api        DescribeInstancesAPI
	strategies []LookupStrategy
}

// NewEC2Resolver creates a resolver using the default lookup strategies
func NewEC2Resolver(api DescribeInstancesAPI) (*EC2Resolver, error) {
	return NewEC2ResolverWithStrategies(api, DefaultStrategies())
}

// NewEC2ResolverWithStrategies creates a resolver that tries strategies in order
func NewEC2ResolverWithStrategies(api DescribeInstancesAPI, strategies []LookupStrategy) (*EC2Resolver, error) {
	if api == nil {
		return nil, fmt.Errorf("failed to create EC2 resolver: nil API")
	}
	if len(strategies) == 0 {
		return nil, fmt.Errorf("failed to create EC2 resolver: no lookup strategies")
	}
	return &EC2Resolver{
		api:        api,
		strategies: append([]LookupStrategy(nil), strategies...),
	}, nil
}

// Resolve returns the ID of the first instance matched by the first strategy
// that yields any match. Later strategies are not tried once one matches.
func (r *EC2Resolver) Resolve(ctx context.Context, ip, region string) (string, error) {
	if ip == "" {
		return "", cpuerr.MissingSetting("INSTANCE_IP")
	}
	if region == "" {
		return "", cpuerr.MissingSetting("AWS_REGION")
	}

	logger := log.FromContext(ctx).WithValues("ip", ip, "region", region)

	for _, strategy := range r.strategies {
		resp, err := r.api.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
			Filters: []types.Filter{
				{Name: aws.String(strategy.Filter), Values: []string{ip}},
			},
		}, inRegion(region))
		if err != nil {
			logAPIError(logger, err, strategy)
			return "", cpuerr.Upstream("ec2", "DescribeInstances", err)
		}

		if instanceID := firstInstanceID(resp); instanceID != "" {
			logger.V(1).Info("Resolved instance", "strategy", strategy.Name, "instanceId", instanceID)
			return instanceID, nil
		}
		logger.V(1).Info("No instance matched", "strategy", strategy.Name)
	}

	return "", &cpuerr.NotFoundError{IP: ip, Region: region}
}

// firstInstanceID walks reservations in response order
func firstInstanceID(resp *ec2.DescribeInstancesOutput) string {
	if resp == nil {
		return ""
	}
	for _, reservation := range resp.Reservations {
		for _, instance := range reservation.Instances {
			if id := aws.ToString(instance.InstanceId); id != "" {
				return id
			}
		}
	}
	return ""
}

func logAPIError(logger logr.Logger, err error, strategy LookupStrategy) {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		logger.Error(err, "DescribeInstances failed", "strategy", strategy.Name, "code", apiErr.ErrorCode())
		return
	}
	logger.Error(err, "DescribeInstances failed", "strategy", strategy.Name)
}

func inRegion(region string) func(*ec2.Options) {
	return func(o *ec2.Options) {
		o.Region = region
	}
}
