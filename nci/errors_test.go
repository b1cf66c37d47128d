package nci

import (
	"errors"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	err := NewCoreRejectedError("Target.Transmit", errors.New("busy"))
	want := "Target.Transmit: core rejected command: busy"
	if got := err.Error(); got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestErrorIsMatchesByCode(t *testing.T) {
	err := NewTargetGoneError("Target.Transmit")
	if !errors.Is(err, NewTargetGoneError("")) {
		t.Fatalf("expected errors.Is to match on code")
	}
	if errors.Is(err, NewInitiatorGoneError("")) {
		t.Fatalf("expected errors.Is to reject a different code")
	}
}

func TestCodeOf(t *testing.T) {
	err := NewTransmitInProgressError("Target.Transmit")
	code, ok := CodeOf(err)
	if !ok || code != ErrCodeTransmitInProgress {
		t.Fatalf("CodeOf = (%v, %v), want (%v, true)", code, ok, ErrCodeTransmitInProgress)
	}

	if _, ok := CodeOf(errors.New("plain")); ok {
		t.Fatalf("CodeOf must reject non-*Error errors")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("rejected")
	err := NewCoreRejectedError("Adapter.SubmitModeRequest", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to find wrapped cause")
	}
}
