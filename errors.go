package gamelan

import (
	"errors"
	"fmt"
	"time"
)

// Error type constants used in OperationError.Type.
const (
	ErrorTypeConstruction       = "Construction"
	ErrorTypeSerialization      = "Serialization"
	ErrorTypeEndpointResolution = "EndpointResolution"
	ErrorTypeIdentityResolution = "IdentityResolution"
	ErrorTypeSigning            = "Signing"
	ErrorTypeTransmit           = "Transmit"
	ErrorTypeDeserialization    = "Deserialization"
	ErrorTypeModeledService     = "ModeledService"
	ErrorTypeTimeout            = "Timeout"
	ErrorTypeRetryExhausted     = "RetryExhausted"
	ErrorTypeCancellation       = "Cancellation"
	ErrorTypeInterceptor        = "Interceptor"
)

// Sentinel errors for common failure scenarios
var (
	// ErrRetryBudgetExhausted is wrapped in a RetryExhausted error when the
	// token budget denies a retry that classification would otherwise allow.
	ErrRetryBudgetExhausted = errors.New("gamelan: retry token budget exhausted")

	// ErrBreakerOpen is returned by BreakerConnector while the circuit is open.
	ErrBreakerOpen = errors.New("gamelan: circuit breaker open")

	// ErrNoEndpoint is returned when no endpoint can be resolved from configuration.
	ErrNoEndpoint = errors.New("gamelan: no endpoint resolved")

	// ErrNoIdentityProvider is returned when identity resolution runs without a provider.
	ErrNoIdentityProvider = errors.New("gamelan: no identity provider configured")
)

// OperationError is the classified error returned for a failed operation.
// It carries the failing phase, the attempt count and the invocation identity
// so callers and logs can attribute the failure without parsing messages.
type OperationError struct {
	Type         string
	Phase        Phase
	Message      string
	Cause        error
	Operation    string
	InvocationID string
	Attempt      int
	MaxAttempts  int
	Timestamp    time.Time
	Duration     time.Duration
}

// Error implements error interface.
func (e *OperationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.InvocationID != "" {
		msg = fmt.Sprintf("[%s] %s", e.InvocationID, msg)
	}
	if e.Attempt > 0 {
		msg = fmt.Sprintf("%s (attempt %d/%d)", msg, e.Attempt, e.MaxAttempts)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error types for errors.Is.
func (e *OperationError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*OperationError); ok {
		return e.Type == targetErr.Type
	}
	return false
}

// FaultKind attributes a modeled service error to one side of the wire.
type FaultKind int

const (
	FaultUnknown FaultKind = iota
	FaultClient
	FaultServer
)

// ModeledError is a business error returned by the remote service and decoded
// by a Deserializer. Modeled errors are the remote side's answer, not a
// transport fault, and are never retried.
type ModeledError struct {
	Code    string
	Message string
	Fault   FaultKind
}

// Error implements error interface.
func (e *ModeledError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Throttler is implemented by transport errors that carry an explicit
// slow-down signal from the remote side. Throttled transmit failures are
// classified as throttling and drain the retry token budget.
type Throttler interface {
	Throttled() bool
}

// IsTransient reports whether an error represents a transient failure that
// might succeed on retry. Construction, serialization, signing and modeled
// client faults are permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrBreakerOpen) {
		return true
	}

	var opErr *OperationError
	if errors.As(err, &opErr) {
		switch opErr.Type {
		case ErrorTypeEndpointResolution, ErrorTypeIdentityResolution,
			ErrorTypeTransmit, ErrorTypeDeserialization, ErrorTypeTimeout:
			return true
		default:
			return false
		}
	}

	return false
}
