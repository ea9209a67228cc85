package unet

import (
	"errors"
	"fmt"
)

// Error is a structured stack error carrying enough context to log or
// report without building a format string at the call site.
type Error struct {
	Op    string // operation that failed, e.g. "Connect", "Write", "receive"
	Flow  string // flow tuple string, empty if not connection-scoped
	Code  StackErrorCode
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	var where string
	switch {
	case e.Op != "" && e.Flow != "":
		where = fmt.Sprintf("%s[%s]", e.Op, e.Flow)
	case e.Op != "":
		where = e.Op
	default:
		where = string(e.Code)
	}
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	return fmt.Sprintf("unet: %s: %s", where, msg)
}

func (e *Error) Unwrap() error {
	return e.Inner
}

func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if se, ok := target.(StackError); ok {
		return e.Code == StackErrorCode(se)
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// StackErrorCode enumerates the error taxonomy the stack reports at its
// public boundary.
type StackErrorCode string

const (
	ErrCodeInvalidState       StackErrorCode = "invalid state"
	ErrCodeNoBuffer           StackErrorCode = "no buffer available"
	ErrCodePeerReset          StackErrorCode = "connection reset by peer"
	ErrCodeTimeout            StackErrorCode = "operation timed out"
	ErrCodeProtocolViolation  StackErrorCode = "protocol violation"
	ErrCodePacketDropped      StackErrorCode = "packet dropped"
	ErrCodeReassemblyAborted  StackErrorCode = "fragment reassembly aborted"
)

// StackError is a simple string-enum error for cheap errors.Is
// comparisons, mirroring the seven kinds from the error taxonomy above.
type StackError string

func (e StackError) Error() string { return string(e) }

const (
	ErrInvalidState      StackError = StackError(ErrCodeInvalidState)
	ErrNoBuffer          StackError = StackError(ErrCodeNoBuffer)
	ErrPeerReset         StackError = StackError(ErrCodePeerReset)
	ErrTimeout           StackError = StackError(ErrCodeTimeout)
	ErrProtocolViolation StackError = StackError(ErrCodeProtocolViolation)
	ErrPacketDropped     StackError = StackError(ErrCodePacketDropped)
	ErrReassemblyAborted StackError = StackError(ErrCodeReassemblyAborted)
)

// NewError creates a structured error with no connection context.
func NewError(op string, code StackErrorCode, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// NewFlowError creates a structured error scoped to a connection flow.
func NewFlowError(op, flow string, code StackErrorCode, msg string) *Error {
	return &Error{Op: op, Flow: flow, Code: code, Msg: msg}
}

// WrapError wraps an existing error with stack context, preserving its
// code if it is already one of ours.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if ue, ok := inner.(*Error); ok {
		return &Error{Op: op, Flow: ue.Flow, Code: ue.Code, Msg: ue.Msg, Inner: ue.Inner}
	}
	if se, ok := inner.(StackError); ok {
		return &Error{Op: op, Code: StackErrorCode(se), Msg: se.Error(), Inner: inner}
	}
	return &Error{Op: op, Code: ErrCodeProtocolViolation, Msg: inner.Error(), Inner: inner}
}

// IsCode reports whether err carries the given error code, unwrapping as
// needed.
func IsCode(err error, code StackErrorCode) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return errors.Is(err, StackError(code))
}
