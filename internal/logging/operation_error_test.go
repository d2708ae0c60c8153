package logging

import (
	"errors"
	"testing"
)

var errBoom = errors.New("boom")

func TestNewOperationErrorNilPassthrough(t *testing.T) {
	if err := NewOperationError("op", "id", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestOperationErrorUnwraps(t *testing.T) {
	err := NewOperationError("loop.capture", "abc", errBoom)
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected errors.Is to find wrapped error")
	}
	var opErr *OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got %T", err)
	}
	if opErr.Operation != "loop.capture" || opErr.CycleID != "abc" {
		t.Fatalf("unexpected fields: %+v", opErr)
	}
	if got, want := err.Error(), "loop.capture (cycle_id=abc): boom"; got != want {
		t.Fatalf("expected %q got %q", want, got)
	}
}

func TestOperationErrorWithoutCycle(t *testing.T) {
	err := NewOperationError("model.load", "", errBoom)
	if got, want := err.Error(), "model.load: boom"; got != want {
		t.Fatalf("expected %q got %q", want, got)
	}
}

func TestNewLoggerUnknownLevel(t *testing.T) {
	logger, err := NewLogger("chatty")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !logger.Core().Enabled(0) {
		t.Fatal("info should be enabled for unknown levels")
	}
	if logger.Core().Enabled(-1) {
		t.Fatal("debug should not be enabled for unknown levels")
	}
}
