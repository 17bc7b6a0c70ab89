// Package cpuerr defines the closed set of errors the CPU series pipeline can
// return. Every failure is one of ConfigurationError, ValidationError,
// NotFoundError or UpstreamError, each with a stable status for the boundary
// layer to report.
package cpuerr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind names an error class
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindUpstream      Kind = "upstream"
)

// Classified is implemented by every error in this package.
type Classified interface {
	error
	Kind() Kind
	// Status is the HTTP status the boundary layer reports
	Status() int
	// PublicMessage is safe to return to callers
	PublicMessage() string
}

// ConfigurationError reports a missing or malformed deployment-level setting.
type ConfigurationError struct {
	Setting string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server misconfigured: %s", e.Message)
	}
	return fmt.Sprintf("server misconfigured: missing %s", e.Setting)
}

func (e *ConfigurationError) Kind() Kind            { return KindConfiguration }
func (e *ConfigurationError) Status() int           { return http.StatusInternalServerError }
func (e *ConfigurationError) PublicMessage() string { return "Server misconfigured" }

// MissingSetting builds a ConfigurationError for an absent value
func MissingSetting(setting string) *ConfigurationError {
	return &ConfigurationError{Setting: setting}
}

// Violation is a single rejected request field
type Violation struct {
	Field  string
	Reason string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s %s.", v.Field, v.Reason)
}

// ValidationError lists every violated request field in check order.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "invalid request"
	}
	return e.Violations[0].String()
}

func (e *ValidationError) Kind() Kind            { return KindValidation }
func (e *ValidationError) Status() int           { return http.StatusBadRequest }
func (e *ValidationError) PublicMessage() string { return e.Error() }

// Field returns the first violated field
func (e *ValidationError) Field() string {
	if len(e.Violations) == 0 {
		return ""
	}
	return e.Violations[0].Field
}

// HasField reports whether the named field was rejected
func (e *ValidationError) HasField(field string) bool {
	for _, v := range e.Violations {
		if v.Field == field {
			return true
		}
	}
	return false
}

// Details joins all violation messages
func (e *ValidationError) Details() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.String())
	}
	return strings.Join(msgs, " ")
}

// NotFoundError reports that no instance is bound to the address.
type NotFoundError struct {
	IP     string
	Region string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no EC2 instance found for IP %s in region %s", e.IP, e.Region)
}

func (e *NotFoundError) Kind() Kind  { return KindNotFound }
func (e *NotFoundError) Status() int { return http.StatusNotFound }
func (e *NotFoundError) PublicMessage() string {
	return fmt.Sprintf("No EC2 instance found for IP %s", e.IP)
}

// UpstreamError reports a failed or malformed call to the inventory or
// metrics backend. The wrapped error never reaches callers.
type UpstreamError struct {
	Service   string
	Operation string
	Err       error
}

func (e *UpstreamError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s failed", e.Service, e.Operation)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Service, e.Operation, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Kind() Kind            { return KindUpstream }
func (e *UpstreamError) Status() int           { return http.StatusBadGateway }
func (e *UpstreamError) PublicMessage() string { return "Upstream service failure" }

// Upstream wraps err as an UpstreamError for the given service call
func Upstream(service, operation string, err error) *UpstreamError {
	return &UpstreamError{Service: service, Operation: operation, Err: err}
}

// Classify returns the Classified error carried by err. Errors outside the
// taxonomy are treated as upstream failures of an unknown service.
func Classify(err error) Classified {
	if err == nil {
		return nil
	}
	var c Classified
	if errors.As(err, &c) {
		return c
	}
	return Upstream("unknown", "call", err)
}

// KindOf returns the kind of err, or "" for nil
func KindOf(err error) Kind {
	if c := Classify(err); c != nil {
		return c.Kind()
	}
	return ""
}
