package unet

import (
	"errors"
	"testing"
)

func TestStructuredError(t *testing.T) {
	err := NewError("Connect", ErrCodeTimeout, "no SYN-ACK within retry budget")

	if err.Op != "Connect" {
		t.Errorf("expected Op=Connect, got %s", err.Op)
	}
	if err.Code != ErrCodeTimeout {
		t.Errorf("expected Code=ErrCodeTimeout, got %s", err.Code)
	}

	expected := "unet: Connect: no SYN-ACK within retry budget"
	if err.Error() != expected {
		t.Errorf("expected message %q, got %q", expected, err.Error())
	}
}

func TestFlowScopedError(t *testing.T) {
	err := NewFlowError("receive", "10.0.0.1:443<-10.0.0.2:51000", ErrCodeProtocolViolation, "ACK outside send window")

	if err.Flow == "" {
		t.Fatal("expected Flow to be set")
	}
	expected := "unet: receive[10.0.0.1:443<-10.0.0.2:51000]: ACK outside send window"
	if err.Error() != expected {
		t.Errorf("expected message %q, got %q", expected, err.Error())
	}
}

func TestWrapError(t *testing.T) {
	inner := ErrPeerReset
	err := WrapError("Write", inner)

	if err.Code != ErrCodePeerReset {
		t.Errorf("expected Code=ErrCodePeerReset, got %s", err.Code)
	}
	if !errors.Is(err, ErrPeerReset) {
		t.Error("expected wrapped error to satisfy errors.Is for ErrPeerReset")
	}
}

func TestWrapErrorNil(t *testing.T) {
	if WrapError("Write", nil) != nil {
		t.Error("expected WrapError(nil) to return nil")
	}
}

func TestStructuredErrorMatchesStackError(t *testing.T) {
	var legacy error = ErrNoBuffer
	structured := &Error{Code: ErrCodeNoBuffer}

	if !errors.Is(structured, ErrNoBuffer) {
		t.Error("structured error should be comparable with the simple StackError enum")
	}
	if legacy.Error() != "no buffer available" {
		t.Errorf("unexpected legacy error message: %q", legacy.Error())
	}
}

func TestIsCode(t *testing.T) {
	err := NewError("retransmit", ErrCodeTimeout, "RTO exceeded max retransmissions")

	if !IsCode(err, ErrCodeTimeout) {
		t.Error("IsCode should return true for matching code")
	}
	if IsCode(err, ErrCodeNoBuffer) {
		t.Error("IsCode should return false for non-matching code")
	}
	if IsCode(nil, ErrCodeTimeout) {
		t.Error("IsCode should return false for nil error")
	}
}

func TestIsCodeAgainstStackError(t *testing.T) {
	if !IsCode(ErrReassemblyAborted, ErrCodeReassemblyAborted) {
		t.Error("IsCode should unwrap a bare StackError value too")
	}
}
