package mpd

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-playback/internal/media"
)

// Conn is the subset of MPD commands the handle needs. *Client implements it.
type Conn interface {
	Status() (mpd.Attrs, error)
	Clear() error
	AddID(uri string) (int, error)
	PlayID(id int) error
	Pause(pause bool) error
	Stop() error
	SeekCur(seconds float64) error
	SetVolume(vol int) error
	ClearError() error
}

const (
	stateStop  = "stop"
	statePlay  = "play"
	statePause = "pause"

	defaultPollInterval = 250 * time.Millisecond
	eventBufferSize     = 64
)

// HandleOption configures a Handle.
type HandleOption func(*Handle)

// WithPollInterval sets how often MPD status is polled.
func WithPollInterval(d time.Duration) HandleOption {
	return func(h *Handle) {
		if d > 0 {
			h.interval = d
		}
	}
}

// WithWatch triggers an immediate poll whenever a subsystem change arrives on ch.
func WithWatch(ch <-chan string) HandleOption {
	return func(h *Handle) {
		h.watch = ch
	}
}

// Handle plays one URL at a time through MPD and reports lifecycle events derived
// from MPD status changes. The MPD queue is owned by the handle.
type Handle struct {
	conn     Conn
	interval time.Duration
	watch    <-chan string
	events   chan media.NativeEvent

	mu       sync.Mutex
	token    uint64
	songID   int
	loading  bool
	sawMeta  bool
	started  bool
	lastMPD  string
	elapsed  float64
	duration float64
	state    media.HandleState

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewHandle creates a handle over conn and starts polling.
func NewHandle(conn Conn, opts ...HandleOption) *Handle {
	h := &Handle{
		conn:     conn,
		interval: defaultPollInterval,
		events:   make(chan media.NativeEvent, eventBufferSize),
		songID:   -1,
		state:    media.HandleState{Paused: true},
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}

	h.wg.Add(1)
	go h.run()
	return h
}

// SetSource replaces the MPD queue with url. An empty url only clears the queue.
func (h *Handle) SetSource(token uint64, url string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.token = token
	h.songID = -1
	h.loading = false
	h.sawMeta = false
	h.started = false
	h.lastMPD = ""
	h.elapsed = 0
	h.duration = 0
	h.state = media.HandleState{Source: url, Paused: true}

	if err := h.conn.Clear(); err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}
	if url == "" {
		return nil
	}

	id, err := h.conn.AddID(url)
	if err != nil {
		return fmt.Errorf("add %s: %w", url, err)
	}
	h.songID = id
	return nil
}

// Load starts decoding the source while paused so readiness can be observed.
func (h *Handle) Load() error {
	h.mu.Lock()
	if h.songID < 0 {
		h.mu.Unlock()
		return media.ErrNoSource
	}
	h.loading = true
	id := h.songID
	token := h.token

	err := h.conn.PlayID(id)
	if err == nil {
		err = h.conn.Pause(true)
	}
	h.mu.Unlock()

	if err != nil {
		return fmt.Errorf("load song %d: %w", id, err)
	}
	// Load runs under the engine's lock, which the event consumer also takes.
	h.trySend(media.NativeEvent{Token: token, Type: media.EventLoadStart})
	return nil
}

// Play resumes or starts playback of the source.
func (h *Handle) Play() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.songID < 0 {
		return media.ErrNoSource
	}

	if h.lastMPD == statePause && !h.state.Ended {
		return h.conn.Pause(false)
	}
	return h.conn.PlayID(h.songID)
}

// Pause pauses playback.
func (h *Handle) Pause() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.songID < 0 {
		return nil
	}
	return h.conn.Pause(true)
}

// Seek moves the playhead of the current song.
func (h *Handle) Seek(seconds float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.songID < 0 || h.lastMPD == "" || h.lastMPD == stateStop {
		return nil
	}
	return h.conn.SeekCur(seconds)
}

// SetVolume maps 0-1 onto MPD's 0-100 mixer.
func (h *Handle) SetVolume(v float64) error {
	return h.conn.SetVolume(int(math.Round(v * 100)))
}

// SetRate is not supported by MPD.
func (h *Handle) SetRate(r float64) error {
	return media.ErrUnsupported
}

// State returns the last observed state.
func (h *Handle) State() media.HandleState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Events returns the native event stream.
func (h *Handle) Events() <-chan media.NativeEvent {
	return h.events
}

// Close stops polling. The MPD connection is left to its owner.
func (h *Handle) Close() error {
	h.closeOnce.Do(func() {
		close(h.done)
	})
	h.wg.Wait()
	return nil
}

func (h *Handle) run() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	watch := h.watch
	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			h.poll()
		case _, ok := <-watch:
			if !ok {
				watch = nil
				continue
			}
			h.poll()
		}
	}
}

// poll reads MPD status and turns changes into native events.
func (h *Handle) poll() {
	attrs, err := h.conn.Status()
	if err != nil {
		log.Debug().Err(err).Msg("MPD status poll failed")
		return
	}

	h.mu.Lock()
	evs := h.observeLocked(attrs)
	h.mu.Unlock()

	h.send(evs)
}

func (h *Handle) observeLocked(attrs mpd.Attrs) []media.NativeEvent {
	if h.songID < 0 {
		return nil
	}

	var evs []media.NativeEvent
	ev := func(typ media.EventType) media.NativeEvent {
		return media.NativeEvent{
			Token:       h.token,
			Type:        typ,
			CurrentTime: h.elapsed,
			Duration:    h.duration,
		}
	}

	mpdState := attrs["state"]
	// MPD drops the current song once the queue plays out.
	ours := attrs["songid"] == strconv.Itoa(h.songID) ||
		(attrs["songid"] == "" && mpdState == stateStop)

	if attrs["playlistlength"] == "0" {
		h.state.Source = ""
	}

	if msg := attrs["error"]; msg != "" {
		if err := h.conn.ClearError(); err != nil {
			log.Debug().Err(err).Msg("MPD clearerror failed")
		}
		h.loading = false
		h.lastMPD = stateStop
		h.state.Paused = true
		e := ev(media.EventError)
		e.Err = &media.NativeError{Code: classifyError(msg), Message: msg}
		return append(evs, e)
	}

	if !ours {
		return evs
	}

	if d := parseSeconds(attrs["duration"]); d > 0 && d != h.duration {
		h.duration = d
		h.state.Duration = d
		if !h.loading {
			h.sawMeta = true
			evs = append(evs, ev(media.EventLoadedMetadata))
		}
	}

	if raw, ok := attrs["elapsed"]; ok && parseSeconds(raw) != h.elapsed {
		el := parseSeconds(raw)
		h.elapsed = el
		h.state.CurrentTime = el
		if !h.loading {
			evs = append(evs, ev(media.EventTimeUpdate))
		}
	}

	if h.loading {
		if attrs["audio"] != "" || mpdState == statePlay {
			h.loading = false
			if h.duration > 0 && !h.sawMeta {
				h.sawMeta = true
				evs = append(evs, ev(media.EventLoadedMetadata))
			}
			evs = append(evs, ev(media.EventCanPlay))
		}
		h.lastMPD = mpdState
		h.state.Paused = mpdState != statePlay
		return evs
	}

	prev := h.lastMPD
	h.lastMPD = mpdState
	h.state.Paused = mpdState != statePlay

	switch {
	case prev != statePlay && mpdState == statePlay:
		h.started = true
		h.state.Ended = false
		evs = append(evs, ev(media.EventPlay))
	case prev == statePlay && mpdState == statePause:
		evs = append(evs, ev(media.EventPause))
	case prev == statePlay && mpdState == stateStop && h.started:
		h.state.Ended = true
		if h.duration > 0 {
			h.elapsed = h.duration
			h.state.CurrentTime = h.duration
		}
		evs = append(evs, ev(media.EventPause), ev(media.EventEnded))
	}
	return evs
}

func (h *Handle) send(evs []media.NativeEvent) {
	for _, ev := range evs {
		select {
		case h.events <- ev:
		case <-h.done:
			return
		}
	}
}

// trySend delivers ev only if the buffer has room.
func (h *Handle) trySend(ev media.NativeEvent) {
	select {
	case h.events <- ev:
	default:
		log.Warn().Str("event", string(ev.Type)).Uint64("token", ev.Token).Msg("mpd event buffer full, event dropped")
	}
}

// classifyError maps MPD's error text to a native error code.
func classifyError(msg string) media.ErrorCode {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "decode"), strings.Contains(m, "decoder"):
		return media.CodeDecode
	case strings.Contains(m, "unsupported"), strings.Contains(m, "no such"),
		strings.Contains(m, "not found"), strings.Contains(m, "unrecognized"):
		return media.CodeSrcNotSupported
	case strings.Contains(m, "curl"), strings.Contains(m, "http"), strings.Contains(m, "timeout"),
		strings.Contains(m, "timed out"), strings.Contains(m, "connection"), strings.Contains(m, "resolve"):
		return media.CodeNetwork
	case strings.Contains(m, "abort"), strings.Contains(m, "cancel"):
		return media.CodeAborted
	default:
		return media.CodeUnknown
	}
}

func parseSeconds(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
