package errors

import (
	"fmt"
	"testing"
)

func TestProtocolError_Error(t *testing.T) {
	err := &ProtocolError{
		Code:    ErrUnknownField,
		Status:  404,
		Message: "unknown field: q99",
	}

	expected := "UNKNOWN_FIELD: unknown field: q99"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewInvalidRequest(t *testing.T) {
	err := NewInvalidRequest("key is required")

	if err.Code != ErrInvalidRequest {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidRequest)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Message != "key is required" {
		t.Errorf("Message = %q, want %q", err.Message, "key is required")
	}
}

func TestNewMalformedTime(t *testing.T) {
	err := NewMalformedTime(2, "25:99")

	if err.Code != ErrMalformedTime {
		t.Errorf("Code = %q, want %q", err.Code, ErrMalformedTime)
	}
	if err.Details["slot"] != 2 {
		t.Errorf("Details[slot] = %v, want 2", err.Details["slot"])
	}
	if err.Details["raw"] != "25:99" {
		t.Errorf("Details[raw] = %v, want 25:99", err.Details["raw"])
	}
	if err.Message != `reminder 3: cannot parse time "25:99"` {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestNewUnknownField(t *testing.T) {
	err := NewUnknownField("q99")

	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
	if err.Details["key"] != "q99" {
		t.Errorf("Details[key] = %v, want q99", err.Details["key"])
	}
}

func TestNewStorageUnavailable(t *testing.T) {
	err := NewStorageUnavailable(fmt.Errorf("disk full"))

	if err.Code != ErrStorageUnavailable {
		t.Errorf("Code = %q, want %q", err.Code, ErrStorageUnavailable)
	}
	if err.Message != "durable storage unavailable: disk full" {
		t.Errorf("Message = %q", err.Message)
	}

	bare := NewStorageUnavailable(nil)
	if bare.Message != "durable storage unavailable" {
		t.Errorf("Message = %q", bare.Message)
	}
}

func TestNewInternal(t *testing.T) {
	err := NewInternal(fmt.Errorf("boom"))
	if err.Message != "boom" {
		t.Errorf("Message = %q, want boom", err.Message)
	}

	nilErr := NewInternal(nil)
	if nilErr.Message != "internal error" {
		t.Errorf("Message = %q, want internal error", nilErr.Message)
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{"matching code", NewPermissionDenied(), ErrPermissionDenied, true},
		{"different code", NewPermissionDenied(), ErrUnsupportedEnvironment, false},
		{"plain error", fmt.Errorf("plain"), ErrInternal, false},
		{"nil error", nil, ErrInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}
