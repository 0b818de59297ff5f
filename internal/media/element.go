package media

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Event is a lifecycle event forwarded to the element's listener.
type Event struct {
	Type        EventType
	Token       uint64
	CurrentTime float64
	Duration    float64
	Err         *Error
}

// Listener receives element events. Events are delivered from the element's own
// goroutines, never from the goroutine that called into the element.
type Listener func(Event)

// Snapshot is a point-in-time view of the element.
type Snapshot struct {
	Token       uint64
	Source      string
	Paused      bool
	Ended       bool
	CurrentTime float64
	Duration    float64
	Volume      float64
	Err         *Error
}

// Options tunes the element's recovery policies.
type Options struct {
	// RetryDelay is the wait before reloading after a retryable error.
	RetryDelay time.Duration
	// ReapplyDelay is the pause between stopping the handle and re-applying its source.
	ReapplyDelay time.Duration
	// SilentVolume is the volume used for the one-shot rejected-playback retry.
	SilentVolume float64
}

// DefaultOptions returns the standard recovery timings.
func DefaultOptions() Options {
	return Options{
		RetryDelay:   2 * time.Second,
		ReapplyDelay: 500 * time.Millisecond,
		SilentVolume: 0.01,
	}
}

// readiness tracks the "can play" state of one load token.
type readiness struct {
	token uint64
	ch    chan struct{}
	once  sync.Once
	err   error
}

func newReadiness(token uint64) *readiness {
	return &readiness{token: token, ch: make(chan struct{})}
}

func (r *readiness) resolve(err error) {
	r.once.Do(func() {
		r.err = err
		close(r.ch)
	})
}

// Element owns exactly one Handle for its whole lifetime.
// Native events are consumed by a single dispatch goroutine started at construction;
// they are routed to whichever listener is currently installed.
type Element struct {
	handle Handle
	opts   Options

	listener atomic.Pointer[Listener]

	mu      sync.Mutex
	token   uint64
	src     string
	volume  float64
	lastErr *Error
	retried bool
	ready   *readiness
	closed  bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewElement takes ownership of h and starts dispatching its events.
func NewElement(h Handle, opts Options) *Element {
	if opts.SilentVolume <= 0 {
		opts.SilentVolume = DefaultOptions().SilentVolume
	}

	e := &Element{
		handle: h,
		opts:   opts,
		volume: 1,
		done:   make(chan struct{}),
	}

	e.wg.Add(1)
	go e.dispatch()

	return e
}

// SetListener installs the event listener. It replaces any previous listener.
func (e *Element) SetListener(l Listener) {
	e.listener.Store(&l)
}

// SetSource points the handle at url and returns the new load token.
// Any prior error and retry budget are cleared; a pending readiness wait for the
// previous source fails with ErrSuperseded.
func (e *Element) SetSource(url string) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return 0, ErrClosed
	}

	e.token++
	if e.ready != nil {
		e.ready.resolve(ErrSuperseded)
	}
	e.ready = newReadiness(e.token)
	e.src = url
	e.lastErr = nil
	e.retried = false

	if err := e.handle.SetSource(e.token, url); err != nil {
		merr := &Error{Class: ClassSourceUnsupported, Message: err.Error()}
		e.lastErr = merr
		e.ready.resolve(merr)
		return e.token, fmt.Errorf("set source: %w", err)
	}
	return e.token, nil
}

// Load asks the handle to start loading the current source.
func (e *Element) Load() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if e.src == "" {
		return ErrNoSource
	}
	return e.handle.Load()
}

// AwaitReady blocks until the source identified by token can play, fails, is
// superseded, or ctx is done.
func (e *Element) AwaitReady(ctx context.Context, token uint64) error {
	e.mu.Lock()
	r := e.ready
	e.mu.Unlock()

	if r == nil || r.token != token {
		return ErrSuperseded
	}

	select {
	case <-r.ch:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PlayNow starts playback without waiting for anything else.
// A rejected start is retried once at near-silent volume, then the previous volume is
// restored. The retry happens synchronously inside this call.
func (e *Element) PlayNow() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if e.src == "" {
		return ErrNoSource
	}

	err := e.handle.Play()
	if err == nil {
		return nil
	}

	log.Debug().Err(err).Str("src", e.src).Msg("Playback rejected, retrying at silent volume")

	prev := e.volume
	if verr := e.handle.SetVolume(e.opts.SilentVolume); verr != nil {
		log.Debug().Err(verr).Msg("Failed to lower volume for retry")
	}
	retryErr := e.handle.Play()
	if verr := e.handle.SetVolume(prev); verr != nil {
		log.Warn().Err(verr).Float64("volume", prev).Msg("Failed to restore volume after retry")
	}

	if retryErr != nil {
		return fmt.Errorf("%w: %v", ErrPlaybackRejected, retryErr)
	}
	return nil
}

// Pause pauses the handle.
func (e *Element) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	return e.handle.Pause()
}

// Seek moves the playhead.
func (e *Element) Seek(seconds float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if seconds < 0 {
		seconds = 0
	}
	if e.src == "" {
		return nil
	}
	return e.handle.Seek(seconds)
}

// SetVolume sets the output volume (0-1).
func (e *Element) SetVolume(v float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	e.volume = v
	return e.handle.SetVolume(v)
}

// SetRate sets the playback rate.
func (e *Element) SetRate(r float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	return e.handle.SetRate(r)
}

// Source returns the current source URL.
func (e *Element) Source() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.src
}

// Snapshot returns the current element and handle state.
func (e *Element) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	hs := e.handle.State()
	return Snapshot{
		Token:       e.token,
		Source:      hs.Source,
		Paused:      hs.Paused,
		Ended:       hs.Ended,
		CurrentTime: hs.CurrentTime,
		Duration:    hs.Duration,
		Volume:      e.volume,
		Err:         e.lastErr,
	}
}

// Close stops event dispatch and releases the handle.
// It must not be called from inside a listener.
func (e *Element) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	if e.ready != nil {
		e.ready.resolve(ErrClosed)
	}
	e.mu.Unlock()

	close(e.done)
	err := e.handle.Close()
	e.wg.Wait()
	return err
}

// dispatch consumes native events until the element is closed.
func (e *Element) dispatch() {
	defer e.wg.Done()

	events := e.handle.Events()
	for {
		select {
		case <-e.done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			e.handleNative(ev)
		}
	}
}

func (e *Element) handleNative(ev NativeEvent) {
	e.mu.Lock()

	if ev.Token != e.token {
		e.mu.Unlock()
		log.Debug().
			Uint64("token", ev.Token).
			Str("type", string(ev.Type)).
			Msg("Dropping stale media event")
		return
	}

	out := Event{
		Type:        ev.Type,
		Token:       ev.Token,
		CurrentTime: ev.CurrentTime,
		Duration:    ev.Duration,
	}

	switch ev.Type {
	case EventCanPlay:
		if e.ready != nil && e.ready.token == ev.Token {
			e.ready.resolve(nil)
		}

	case EventError:
		merr := newError(ev.Err)
		if merr.Class.Retryable() && !e.retried {
			e.retried = true
			token := ev.Token
			e.mu.Unlock()

			log.Warn().
				Str("class", string(merr.Class)).
				Str("message", merr.Message).
				Msg("Media error, reloading source once")

			e.wg.Add(1)
			go e.retry(token)
			return
		}

		merr.Retried = e.retried
		e.lastErr = merr
		if e.ready != nil && e.ready.token == ev.Token {
			e.ready.resolve(merr)
		}
		out.Err = merr
	}

	e.mu.Unlock()
	e.emit(out)
}

// retry reloads the source of token once: wait, pause, wait, re-apply, reload.
func (e *Element) retry(token uint64) {
	defer e.wg.Done()

	if !e.sleep(e.opts.RetryDelay) {
		return
	}

	e.mu.Lock()
	if e.closed || e.token != token {
		e.mu.Unlock()
		return
	}
	if err := e.handle.Pause(); err != nil {
		log.Debug().Err(err).Msg("Pause before reload failed")
	}
	e.mu.Unlock()

	if !e.sleep(e.opts.ReapplyDelay) {
		return
	}

	e.mu.Lock()
	if e.closed || e.token != token {
		e.mu.Unlock()
		return
	}
	err := e.handle.SetSource(token, e.src)
	if err == nil {
		err = e.handle.Load()
	}
	if err == nil {
		e.mu.Unlock()
		return
	}

	merr := &Error{Class: ClassNetwork, Message: err.Error(), Retried: true}
	e.lastErr = merr
	if e.ready != nil && e.ready.token == token {
		e.ready.resolve(merr)
	}
	e.mu.Unlock()

	e.emit(Event{Type: EventError, Token: token, Err: merr})
}

func (e *Element) sleep(d time.Duration) bool {
	if d <= 0 {
		select {
		case <-e.done:
			return false
		default:
			return true
		}
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-e.done:
		return false
	case <-t.C:
		return true
	}
}

func (e *Element) emit(ev Event) {
	if l := e.listener.Load(); l != nil && *l != nil {
		(*l)(ev)
	}
}
