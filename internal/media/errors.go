package media

import (
	"errors"
	"fmt"
)

var (
	// ErrSuperseded is returned to readiness waiters whose source was replaced.
	ErrSuperseded = errors.New("media source superseded")

	// ErrPlaybackRejected is returned when playback could not start even after the silent retry.
	ErrPlaybackRejected = errors.New("playback rejected")

	// ErrNoSource is returned when playback is requested without a source.
	ErrNoSource = errors.New("no media source")

	// ErrUnsupported is returned by handles that cannot perform an operation.
	ErrUnsupported = errors.New("operation not supported by media handle")

	// ErrClosed is returned after the element has been closed.
	ErrClosed = errors.New("media element closed")
)

// ErrorClass is the classification of a native media error.
type ErrorClass string

const (
	ClassAborted           ErrorClass = "aborted"
	ClassNetwork           ErrorClass = "network"
	ClassDecode            ErrorClass = "decode"
	ClassSourceUnsupported ErrorClass = "source_unsupported"
	ClassUnknown           ErrorClass = "unknown"
)

// Retryable reports whether the class gets an automatic reload.
func (c ErrorClass) Retryable() bool {
	return c == ClassNetwork || c == ClassSourceUnsupported
}

// Classify maps a native error code to its class.
func Classify(code ErrorCode) ErrorClass {
	switch code {
	case CodeAborted:
		return ClassAborted
	case CodeNetwork:
		return ClassNetwork
	case CodeDecode:
		return ClassDecode
	case CodeSrcNotSupported:
		return ClassSourceUnsupported
	default:
		return ClassUnknown
	}
}

// Error is a classified media error.
type Error struct {
	Class   ErrorClass
	Message string
	Retried bool
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("media error (%s)", e.Class)
	}
	return fmt.Sprintf("media error (%s): %s", e.Class, e.Message)
}

func newError(native *NativeError) *Error {
	if native == nil {
		return &Error{Class: ClassUnknown}
	}
	return &Error{Class: Classify(native.Code), Message: native.Message}
}
