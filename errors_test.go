package gamelan

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestOperationErrorMessage(t *testing.T) {
	err := &OperationError{
		Type:         ErrorTypeTransmit,
		Phase:        PhaseTransmit,
		Message:      "transmit failed",
		Cause:        errors.New("connection refused"),
		InvocationID: "inv-1",
		Attempt:      2,
		MaxAttempts:  3,
	}

	msg := err.Error()
	for _, want := range []string{"Transmit", "transmit failed", "connection refused", "inv-1", "attempt 2/3"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Expected error message to contain %q, got %q", want, msg)
		}
	}
}

func TestOperationErrorNil(t *testing.T) {
	var err *OperationError
	if err.Error() != "<nil>" {
		t.Errorf("Expected <nil>, got %q", err.Error())
	}
	if err.Unwrap() != nil {
		t.Error("Expected nil Unwrap on nil receiver")
	}
	if err.Is(&OperationError{}) {
		t.Error("Expected nil receiver Is to be false")
	}
}

func TestOperationErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &OperationError{Type: ErrorTypeTransmit, Cause: fmt.Errorf("wrap: %w", cause)}
	if !errors.Is(err, cause) {
		t.Error("Expected errors.Is to reach the root cause through the chain")
	}
}

func TestOperationErrorIsMatchesType(t *testing.T) {
	err := &OperationError{Type: ErrorTypeTimeout, Message: "operation timed out"}
	if !errors.Is(err, &OperationError{Type: ErrorTypeTimeout}) {
		t.Error("Expected Is to match on error type")
	}
	if errors.Is(err, &OperationError{Type: ErrorTypeTransmit}) {
		t.Error("Expected Is to reject a different error type")
	}
}

func TestModeledErrorMessage(t *testing.T) {
	err := &ModeledError{Code: "ThrottledException", Message: "slow down", Fault: FaultServer}
	if got := err.Error(); got != "ThrottledException: slow down" {
		t.Errorf("Expected code and message, got %q", got)
	}
	bare := &ModeledError{Code: "AccessDenied"}
	if got := bare.Error(); got != "AccessDenied" {
		t.Errorf("Expected bare code, got %q", got)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), false},
		{"transmit", &OperationError{Type: ErrorTypeTransmit}, true},
		{"endpoint resolution", &OperationError{Type: ErrorTypeEndpointResolution}, true},
		{"identity resolution", &OperationError{Type: ErrorTypeIdentityResolution}, true},
		{"deserialization", &OperationError{Type: ErrorTypeDeserialization}, true},
		{"timeout", &OperationError{Type: ErrorTypeTimeout}, true},
		{"serialization", &OperationError{Type: ErrorTypeSerialization}, false},
		{"signing", &OperationError{Type: ErrorTypeSigning}, false},
		{"modeled service", &OperationError{Type: ErrorTypeModeledService}, false},
		{"construction", &OperationError{Type: ErrorTypeConstruction}, false},
		{"breaker open", fmt.Errorf("call: %w", ErrBreakerOpen), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.expected {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestOperationErrorCarriesAccounting(t *testing.T) {
	now := time.Now()
	err := &OperationError{
		Type:      ErrorTypeRetryExhausted,
		Operation: "GetThing",
		Attempt:   3,
		Timestamp: now,
		Duration:  2 * time.Second,
	}
	if err.Operation != "GetThing" || err.Attempt != 3 || !err.Timestamp.Equal(now) {
		t.Errorf("Expected accounting fields preserved, got %+v", err)
	}
}
