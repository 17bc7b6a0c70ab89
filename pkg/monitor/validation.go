package monitor

import (
	"fmt"
	"math"
	"time"

	"k8s.io/apimachinery/pkg/util/validation/field"

	"github.com/wesleyemery/ec2-cpu-monitor/pkg/cpuerr"
	"github.com/wesleyemery/ec2-cpu-monitor/pkg/metrics"
)

const (
	// MinPeriodSeconds is the smallest supported sampling granularity
	MinPeriodSeconds = 60
	// MaxRangeMinutes is the largest window a time.Duration can hold
	MaxRangeMinutes = math.MaxInt64 / int64(time.Minute)
	// MaxIntervalSeconds is the largest period the int32 wire field can hold
	MaxIntervalSeconds = math.MaxInt32
)

var (
	rangeMinutesPath    = field.NewPath("rangeMinutes")
	intervalSecondsPath = field.NewPath("intervalSeconds")
)

// BuildQuery validates caller supplied window parameters and derives the query
// window from a single now snapshot.
func BuildQuery(rangeMinutes, intervalSeconds float64, now time.Time) (metrics.MetricQuery, error) {
	if errs := validateWindow(rangeMinutes, intervalSeconds); len(errs) > 0 {
		return metrics.MetricQuery{}, toValidationError(errs)
	}

	span := time.Duration(rangeMinutes * float64(time.Minute))
	if span <= 0 {
		// sub-nanosecond windows collapse to start == end
		return metrics.MetricQuery{}, toValidationError(field.ErrorList{
			field.Invalid(rangeMinutesPath, rangeMinutes, "must be bigger than 0"),
		})
	}
	return metrics.MetricQuery{
		StartTime:     now.Add(-span),
		EndTime:       now,
		PeriodSeconds: int32(intervalSeconds),
	}, nil
}

// validateWindow checks the parameters in a fixed order and collects every violation
func validateWindow(rangeMinutes, intervalSeconds float64) field.ErrorList {
	var allErrs field.ErrorList

	switch {
	case !isFinite(rangeMinutes) || rangeMinutes <= 0:
		allErrs = append(allErrs, field.Invalid(rangeMinutesPath, rangeMinutes, "must be bigger than 0"))
	case rangeMinutes > float64(MaxRangeMinutes):
		allErrs = append(allErrs, field.Invalid(rangeMinutesPath, rangeMinutes, fmt.Sprintf("must not be greater than %d", MaxRangeMinutes)))
	}

	switch {
	case !isFinite(intervalSeconds) || intervalSeconds <= 0:
		allErrs = append(allErrs, field.Invalid(intervalSecondsPath, intervalSeconds, "must be bigger than 0"))
	case math.Mod(intervalSeconds, MinPeriodSeconds) != 0:
		allErrs = append(allErrs, field.Invalid(intervalSecondsPath, intervalSeconds, "must be a multiple of 60"))
	case intervalSeconds > MaxIntervalSeconds:
		allErrs = append(allErrs, field.Invalid(intervalSecondsPath, intervalSeconds, fmt.Sprintf("must not be greater than %d", MaxIntervalSeconds)))
	}

	return allErrs
}

func toValidationError(errs field.ErrorList) *cpuerr.ValidationError {
	verr := &cpuerr.ValidationError{}
	for _, e := range errs {
		verr.Violations = append(verr.Violations, cpuerr.Violation{Field: e.Field, Reason: e.Detail})
	}
	return verr
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
