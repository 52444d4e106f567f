package transport

import (
	"errors"
	"fmt"
	"strings"
)

// FailureKind classifies a transport error.
type FailureKind string

const (
	// Unavailable means the stack is not initialized, powered off, or
	// permission was denied.
	Unavailable FailureKind = "unavailable"

	// Failure means the device or platform rejected a connect, read,
	// write, or subscribe. A device out of range is indistinguishable
	// from any other transport failure at this layer.
	Failure FailureKind = "failure"
)

// TransportError wraps an underlying stack error with a failure kind.
// The underlying error is surfaced unchanged via Unwrap.
type TransportError struct {
	Kind FailureKind
	Op   string // "connect", "read", "write", "subscribe", "scan"
	Err  error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("transport %s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("transport %s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is allows errors.Is comparison against the sentinel values below by
// kind alone.
func (e *TransportError) Is(target error) bool {
	t, ok := target.(*TransportError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrUnavailable = &TransportError{Kind: Unavailable}
	ErrFailure     = &TransportError{Kind: Failure}
)

// WrapFailure tags err as a transport failure for op. Nil in, nil out.
func WrapFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Kind: Failure, Op: op, Err: err}
}

// WrapUnavailable tags err as a stack-unavailable condition for op.
func WrapUnavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Kind: Unavailable, Op: op, Err: err}
}

// IsUnavailable reports whether err is a stack-unavailable condition.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// NormalizeUUID converts a UUID string to normalized form: lowercase,
// no dashes, 0x prefix stripped, and 16-bit short form extracted when
// the UUID sits on the Bluetooth SIG base
// (0000xxxx-0000-1000-8000-00805f9b34fb).
func NormalizeUUID(uuid string) string {
	u := strings.ToLower(strings.ReplaceAll(uuid, "-", ""))
	u = strings.TrimPrefix(u, "0x")
	if len(u) == 32 && strings.HasPrefix(u, "0000") && strings.HasSuffix(u, "00001000800000805f9b34fb") {
		return u[4:8]
	}
	return u
}
