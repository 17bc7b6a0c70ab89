package resolver

import (
	"context"

	"github.com/wesleyemery/ec2-cpu-monitor/pkg/cpuerr"
)

// StaticResolver resolves addresses from a fixed table, for mock mode and demos
type StaticResolver struct {
	Instances map[string]string
}

// NewStaticResolver creates a resolver that knows a single address
func NewStaticResolver(ip, instanceID string) *StaticResolver {
	return &StaticResolver{Instances: map[string]string{ip: instanceID}}
}

// Resolve looks the address up in the table
func (s *StaticResolver) Resolve(_ context.Context, ip, region string) (string, error) {
	if ip == "" {
		return "", cpuerr.MissingSetting("INSTANCE_IP")
	}
	if region == "" {
		return "", cpuerr.MissingSetting("AWS_REGION")
	}
	if id, ok := s.Instances[ip]; ok && id != "" {
		return id, nil
	}
	return "", &cpuerr.NotFoundError{IP: ip, Region: region}
}
