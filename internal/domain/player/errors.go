package player

import (
	"errors"
	"fmt"
	"time"

	"github.com/edumarques81/stellar-playback/internal/media"
)

// ErrorKind is the closed set of failures the engine reports.
type ErrorKind string

const (
	KindInvalidSource     ErrorKind = "invalid_source"
	KindLoadTimeout       ErrorKind = "load_timeout"
	KindLoadError         ErrorKind = "load_error"
	KindPlaybackRejected  ErrorKind = "playback_rejected"
	KindNetworkError      ErrorKind = "network_error"
	KindSourceUnsupported ErrorKind = "source_unsupported"
	KindDecodeError       ErrorKind = "decode_error"
	KindAborted           ErrorKind = "aborted"
	KindStallDetected     ErrorKind = "stall_detected"
)

// Retryable reports whether a user-initiated retry may succeed.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindInvalidSource, KindDecodeError:
		return false
	default:
		return true
	}
}

// Error is returned by engine operations.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is an engine error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var perr *Error
	return errors.As(err, &perr) && perr.Kind == kind
}

// PlaybackError is the user-visible error stored in PlaybackState.
type PlaybackError struct {
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	At        time.Time `json:"at"`
}

// errSuperseded marks a load whose result was overtaken by a newer load.
var errSuperseded = errors.New("load superseded")

const msgPlaybackStopped = "Playback stopped, click to resume"

func kindFromClass(c media.ErrorClass) ErrorKind {
	switch c {
	case media.ClassNetwork:
		return KindNetworkError
	case media.ClassSourceUnsupported:
		return KindSourceUnsupported
	case media.ClassDecode:
		return KindDecodeError
	case media.ClassAborted:
		return KindAborted
	default:
		return KindLoadError
	}
}

func messageForKind(k ErrorKind) string {
	switch k {
	case KindNetworkError:
		return "Network error while loading audio"
	case KindSourceUnsupported:
		return "This audio format is not supported"
	case KindDecodeError:
		return "Audio could not be decoded"
	case KindAborted:
		return "Loading was aborted"
	case KindLoadTimeout:
		return "Audio took too long to load"
	case KindPlaybackRejected:
		return "Playback could not start"
	case KindStallDetected:
		return "Playback stalled"
	case KindInvalidSource:
		return "Track has no playable audio"
	default:
		return "Audio failed to load"
	}
}
