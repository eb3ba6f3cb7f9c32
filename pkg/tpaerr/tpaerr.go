// Copyright 2025 Certen Protocol
//
// Error taxonomy for the TPA engine. Every non-Config error is local to a
// single datagram or control message: the caller drops the message and
// the SA stays in its prior state.

package tpaerr

import (
	"errors"
	"fmt"
)

// Code identifies which branch of the error taxonomy a failure belongs to.
type Code int

const (
	// CodeUnsupported: a parameter named a transform we don't implement.
	CodeUnsupported Code = iota
	// CodeMismatch: transform shift mid-session, or an anchor that doesn't
	// match first_active_anchors on UPDATE.
	CodeMismatch
	// CodeMalformed: truncated or structurally invalid parameter.
	CodeMalformed
	// CodeReplay: ESP sequence behind the window and absent from the
	// cumulative ring.
	CodeReplay
	// CodeVerifyFailed: chain walk exhausted the window, or a Merkle
	// branch did not recompute the root.
	CodeVerifyFailed
	// CodeCacheMiss: an ACK arrived for an UPDATE never seen, or already
	// activated.
	CodeCacheMiss
	// CodeNotImplemented: mutual/location UPDATE flows, reserved.
	CodeNotImplemented
	// CodeConfig: sanity-check failure at initialization. Fatal.
	CodeConfig
)

func (c Code) String() string {
	switch c {
	case CodeUnsupported:
		return "Unsupported"
	case CodeMismatch:
		return "Mismatch"
	case CodeMalformed:
		return "Malformed"
	case CodeReplay:
		return "Replay"
	case CodeVerifyFailed:
		return "VerifyFailed"
	case CodeCacheMiss:
		return "CacheMiss"
	case CodeNotImplemented:
		return "NotImplemented"
	case CodeConfig:
		return "Config"
	default:
		return "Unknown"
	}
}

// Sentinel errors, one per taxonomy entry, so callers can errors.Is against
// a stable value regardless of the formatted message attached to it.
var (
	ErrUnsupported    = errors.New("unsupported transform")
	ErrMismatch       = errors.New("anchor or transform mismatch")
	ErrMalformed      = errors.New("malformed parameter")
	ErrReplay         = errors.New("sequence number replay")
	ErrVerifyFailed   = errors.New("token verification failed")
	ErrCacheMiss      = errors.New("no matching pending anchor update")
	ErrNotImplemented = errors.New("update flow not implemented")
	ErrConfig         = errors.New("configuration sanity check failed")
)

func sentinelFor(code Code) error {
	switch code {
	case CodeUnsupported:
		return ErrUnsupported
	case CodeMismatch:
		return ErrMismatch
	case CodeMalformed:
		return ErrMalformed
	case CodeReplay:
		return ErrReplay
	case CodeVerifyFailed:
		return ErrVerifyFailed
	case CodeCacheMiss:
		return ErrCacheMiss
	case CodeNotImplemented:
		return ErrNotImplemented
	default:
		return ErrConfig
	}
}

// Error is the tagged result every tracker/verifier entry point returns
// instead of unwinding exception-style.
type Error struct {
	Code Code
	msg  string
}

func (e *Error) Error() string {
	return e.msg
}

// Unwrap lets errors.Is(err, tpaerr.ErrVerifyFailed) etc. work.
func (e *Error) Unwrap() error {
	return sentinelFor(e.Code)
}

// New builds an Error of the given code with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, msg: fmt.Sprintf("%s: %s", code, fmt.Sprintf(format, args...))}
}

// Unsupported reports a parameter naming an unimplemented transform.
func Unsupported(transform any) *Error {
	return New(CodeUnsupported, "transform %v not implemented", transform)
}

// Mismatch reports a transform shift mid-session or an anchor mismatch.
func Mismatch(expected, got any) *Error {
	return New(CodeMismatch, "expected %v, got %v", expected, got)
}

// Malformed reports a truncated or structurally invalid parameter.
func Malformed(reason string) *Error {
	return New(CodeMalformed, "%s", reason)
}

// Replay reports an ESP sequence behind the window and absent from the ring.
func Replay(seq uint32) *Error {
	return New(CodeReplay, "sequence %d outside window and not in cumulative ring", seq)
}

// VerifyFailed reports a failed chain walk or branch recomputation.
func VerifyFailed(reason string) *Error {
	return New(CodeVerifyFailed, "%s", reason)
}

// CacheMiss reports an ACK with no matching pending anchor update.
func CacheMiss(seq uint32) *Error {
	return New(CodeCacheMiss, "no pending anchor update for seq %d", seq)
}

// NotImplemented reports a reserved UPDATE parameter combination.
func NotImplemented(flow string) *Error {
	return New(CodeNotImplemented, "%s", flow)
}

// Config reports an initialization sanity-check failure.
func Config(reason string) *Error {
	return New(CodeConfig, "%s", reason)
}
