// Package media wraps the single playable-audio handle owned by the playback engine.
package media

// EventType names a media lifecycle event.
type EventType string

// Lifecycle events emitted by a Handle and forwarded by an Element.
const (
	EventLoadStart      EventType = "loadstart"
	EventCanPlay        EventType = "canplay"
	EventTimeUpdate     EventType = "timeupdate"
	EventLoadedMetadata EventType = "loadedmetadata"
	EventEnded          EventType = "ended"
	EventError          EventType = "error"
	EventPlay           EventType = "play"
	EventPause          EventType = "pause"
)

// ErrorCode is the native error code reported by a Handle.
// Values follow the HTML MediaError numbering.
type ErrorCode int

const (
	CodeUnknown         ErrorCode = 0
	CodeAborted         ErrorCode = 1
	CodeNetwork         ErrorCode = 2
	CodeDecode          ErrorCode = 3
	CodeSrcNotSupported ErrorCode = 4
)

// NativeError is the raw error attached to an EventError.
type NativeError struct {
	Code    ErrorCode
	Message string
}

// NativeEvent is an event produced by a Handle.
// Token is the load token that was in effect when the event was generated.
type NativeEvent struct {
	Token       uint64
	Type        EventType
	CurrentTime float64
	Duration    float64
	Err         *NativeError
}

// HandleState is a point-in-time view of the handle.
type HandleState struct {
	Source      string
	Paused      bool
	Ended       bool
	CurrentTime float64 // seconds
	Duration    float64 // seconds, 0 when unknown
}

// Handle is the native playback resource.
// Implementations must tag every event with the token passed to the latest SetSource
// and must deliver events in the order they occurred.
type Handle interface {
	SetSource(token uint64, url string) error
	Load() error
	Play() error
	Pause() error
	Seek(seconds float64) error
	SetVolume(v float64) error
	SetRate(r float64) error
	State() HandleState
	Events() <-chan NativeEvent
	Close() error
}
