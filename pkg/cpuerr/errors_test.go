package cpuerr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedKind   Kind
		expectedStatus int
	}{
		{
			name:           "configuration",
			err:            MissingSetting("AWS_REGION"),
			expectedKind:   KindConfiguration,
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name:           "validation",
			err:            &ValidationError{Violations: []Violation{{Field: "rangeMinutes", Reason: "must be bigger than 0"}}},
			expectedKind:   KindValidation,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "not found",
			err:            &NotFoundError{IP: "10.0.0.1", Region: "us-east-1"},
			expectedKind:   KindNotFound,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "upstream",
			err:            Upstream("ec2", "DescribeInstances", errors.New("boom")),
			expectedKind:   KindUpstream,
			expectedStatus: http.StatusBadGateway,
		},
		{
			name:           "wrapped classified error keeps its kind",
			err:            fmt.Errorf("resolve: %w", &NotFoundError{IP: "10.0.0.1"}),
			expectedKind:   KindNotFound,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "unknown error is upstream",
			err:            errors.New("socket closed"),
			expectedKind:   KindUpstream,
			expectedStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(tt.err)
			require.NotNil(t, c)
			assert.Equal(t, tt.expectedKind, c.Kind())
			assert.Equal(t, tt.expectedStatus, c.Status())
			assert.NotEmpty(t, c.PublicMessage())
		})
	}
}

func TestClassify_Nil(t *testing.T) {
	assert.Nil(t, Classify(nil))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestValidationError_Messages(t *testing.T) {
	err := &ValidationError{Violations: []Violation{
		{Field: "rangeMinutes", Reason: "must be bigger than 0"},
		{Field: "intervalSeconds", Reason: "must be a multiple of 60"},
	}}

	assert.Equal(t, "rangeMinutes must be bigger than 0.", err.Error())
	assert.Equal(t, "rangeMinutes", err.Field())
	assert.True(t, err.HasField("intervalSeconds"))
	assert.False(t, err.HasField("ip"))
	assert.Equal(t, "rangeMinutes must be bigger than 0. intervalSeconds must be a multiple of 60.", err.Details())
}

func TestUpstreamError_DoesNotLeakDetail(t *testing.T) {
	cause := errors.New("AccessDenied: arn:aws:iam::123456789012:user/ops")
	err := Upstream("cloudwatch", "GetMetricStatistics", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "AccessDenied")
	assert.NotContains(t, err.PublicMessage(), "AccessDenied")
}

func TestNotFoundError_PublicMessage(t *testing.T) {
	err := &NotFoundError{IP: "10.1.2.3", Region: "us-west-2"}

	assert.Equal(t, "No EC2 instance found for IP 10.1.2.3", err.PublicMessage())
}
