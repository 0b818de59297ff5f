// Package player implements the playback engine: queue, mode, navigation, automatic
// next-track selection, progress telemetry and recovery of stalled playback.
package player

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-playback/internal/domain/track"
	"github.com/edumarques81/stellar-playback/internal/media"
)

// Engine is the single playback controller. It owns the media resource, the queue,
// the mode and the automatic selection of the next track.
// It is safe for concurrent access.
type Engine struct {
	mu    sync.Mutex
	media Media
	cfg   Config

	telemetry   Telemetry
	plays       PlayCounter
	source      CatalogSource
	recommender Recommender
	session     SessionInfo
	notifier    Notifier
	rewriter    URLRewriter
	rng         *rand.Rand
	now         func() time.Time

	selector *Selector
	catalog  *track.Catalog

	state       PlaybackState
	queue       *Queue
	mode        Mode
	pending     *track.Track
	milestones  milestones
	playStarted bool
	lastVolume  float64
	recent      []string

	// restoredIndex is the persisted index awaiting a queue, or -1.
	restoredIndex int

	// loadSeq identifies the newest load; older loads must not commit.
	loadSeq uint64
	// navSeq identifies the newest navigation; stale catalog refreshes must not play.
	navSeq uint64
	// errSeq identifies the stored error for delayed clearing.
	errSeq uint64
	// pauseSeq changes whenever the user pauses or stops.
	pauseSeq uint64

	permission          Permission
	permissionRequested bool

	wd watchdogState

	subsMu     sync.RWMutex
	subs       []*Subscription
	subsClosed bool

	ctx       context.Context
	cancel    context.CancelFunc
	closed    bool
	startOnce sync.Once
	wg        sync.WaitGroup
}

// NewEngine creates an engine driving m. The engine takes ownership of m and closes it
// in Close.
func NewEngine(m Media, opts ...Option) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		media:         m,
		cfg:           DefaultConfig(),
		catalog:       track.NewCatalog(),
		state:         NewState(),
		queue:         NewQueue(),
		mode:          Mode{Repeat: RepeatNone},
		lastVolume:    1,
		restoredIndex: -1,
		permission:    PermissionDefault,
		ctx:           ctx,
		cancel:        cancel,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.rng == nil {
		e.rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64()))
	}
	if e.now == nil {
		e.now = time.Now
	}
	e.selector = NewSelector(e.cfg.Selector, e.rng, e.now)

	m.SetListener(e.handleMediaEvent)
	return e
}

// Start launches the watchdog. It returns immediately.
func (e *Engine) Start(ctx context.Context) {
	e.startOnce.Do(func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.closed || e.cfg.WatchdogInterval <= 0 {
			return
		}
		e.wg.Add(1)
		go e.runWatchdog(ctx)
	})
}

// Close stops background work, closes subscriptions and releases the media resource.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.loadSeq++
	e.navSeq++
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()
	e.closeSubscriptions()

	if err := e.media.Close(); err != nil {
		return fmt.Errorf("close media: %w", err)
	}
	return nil
}

// State returns a snapshot of the playback state.
func (e *Engine) State() PlaybackState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// Queue returns the queue in both orders with the current effective index.
func (e *Engine) Queue() QueueChange {
	e.mu.Lock()
	defer e.mu.Unlock()
	return QueueChange{
		Tracks:    e.queue.Tracks(),
		Effective: e.queue.Effective(),
		Index:     e.queue.Index(),
	}
}

// Mode returns the shuffle and repeat settings.
func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// Catalog returns a copy of the catalog.
func (e *Engine) Catalog() []track.Track {
	return e.catalog.Tracks()
}

// LoadTrack loads t and waits until it can play. A load overtaken by a newer one
// returns nil without touching state.
func (e *Engine) LoadTrack(ctx context.Context, t track.Track) error {
	err := e.load(ctx, t)
	if errors.Is(err, errSuperseded) {
		return nil
	}
	return err
}

// Play loads t when given, then starts playback. With a nil t, or with the track
// that is already loaded, it resumes the current track.
func (e *Engine) Play(ctx context.Context, t *track.Track) error {
	if t != nil && e.isLoaded(*t) {
		return e.resume()
	}
	return e.loadAndPlay(ctx, t)
}

// isLoaded reports whether t is the committed track with no load in flight.
func (e *Engine) isLoaded(t track.Track) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	cur := e.state.Track
	return cur != nil && e.pending == nil && !e.state.Loading &&
		cur.ID == t.ID && cur.AudioURL == t.AudioURL
}

// loadAndPlay always reloads t when given.
func (e *Engine) loadAndPlay(ctx context.Context, t *track.Track) error {
	if t != nil {
		if err := e.load(ctx, *t); err != nil {
			if errors.Is(err, errSuperseded) {
				return nil
			}
			return err
		}
	}
	return e.resume()
}

// PlayImmediate loads t and starts playback without waiting for readiness.
// It is the entry point for automatic advancing when a track ends.
func (e *Engine) PlayImmediate(t track.Track) error {
	if !t.HasSource() {
		return e.rejectSource(t)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return &Error{Kind: KindLoadError, Message: messageForKind(KindLoadError), Err: media.ErrClosed}
	}
	e.navSeq++
	_, _, err := e.beginLoadLocked(t)
	if err != nil {
		perr := e.failLoadLocked(err)
		e.mu.Unlock()
		e.publishError()
		return perr
	}
	e.pending = nil
	prev := e.commitTrackLocked(t)
	idx := e.queue.Index()
	first, perr := e.startLocked()
	e.mu.Unlock()

	e.afterCommit(prev, t, idx)
	e.afterStart(first, perr)
	if perr != nil {
		return perr
	}
	return nil
}

// Pause pauses playback and keeps the position.
func (e *Engine) Pause() error {
	e.mu.Lock()
	e.pauseSeq++
	err := e.media.Pause()
	e.state.Playing = false
	e.mu.Unlock()

	if err != nil {
		log.Warn().Err(err).Msg("Failed to pause media")
	}
	e.publishState()
	e.notifyNowPlaying()
	return nil
}

// Stop pauses playback, clears the current track and resets the position.
func (e *Engine) Stop() error {
	e.mu.Lock()
	prev := e.state.Track
	e.loadSeq++
	e.navSeq++
	e.pauseSeq++
	e.pending = nil
	if err := e.media.Pause(); err != nil {
		log.Debug().Err(err).Msg("Pause before stop failed")
	}
	if _, err := e.media.SetSource(""); err != nil {
		log.Debug().Err(err).Msg("Clearing media source failed")
	}
	e.state.Track = nil
	e.state.Playing = false
	e.state.Loading = false
	e.state.CurrentTime = 0
	e.state.Duration = 0
	e.milestones.reset()
	e.playStarted = false
	idx := e.queue.Index()
	e.mu.Unlock()

	log.Info().Msg("Playback stopped")
	if prev != nil {
		e.publishTrack(TrackChange{Previous: prev, Index: idx})
	}
	e.publishState()
	return nil
}

// Seek moves the playhead of the current track.
func (e *Engine) Seek(seconds float64) error {
	e.mu.Lock()
	if e.state.Track == nil {
		e.mu.Unlock()
		return nil
	}
	if seconds < 0 {
		seconds = 0
	}
	if e.state.Duration > 0 && seconds > e.state.Duration {
		seconds = e.state.Duration
	}
	if err := e.media.Seek(seconds); err != nil {
		e.mu.Unlock()
		return &Error{Kind: KindLoadError, Message: "Seek failed", Err: err}
	}
	e.state.CurrentTime = seconds
	e.mu.Unlock()

	e.publishState()
	return nil
}

// SetVolume sets the volume (0-1). A volume of zero mutes.
func (e *Engine) SetVolume(v float64) error {
	v = clamp(v, 0, 1)

	e.mu.Lock()
	if err := e.media.SetVolume(v); err != nil {
		log.Warn().Err(err).Float64("volume", v).Msg("Failed to set volume")
	}
	e.state.Volume = v
	e.state.Muted = v == 0
	if v > 0 {
		e.lastVolume = v
	}
	e.mu.Unlock()

	e.publishState()
	return nil
}

// ToggleMute mutes, or restores the volume that was active before muting.
func (e *Engine) ToggleMute() error {
	e.mu.Lock()
	target := 0.0
	if e.state.Muted {
		target = e.lastVolume
		if target <= 0 {
			target = 1
		}
	} else if e.state.Volume > 0 {
		e.lastVolume = e.state.Volume
	}
	if err := e.media.SetVolume(target); err != nil {
		log.Warn().Err(err).Float64("volume", target).Msg("Failed to set volume")
	}
	e.state.Volume = target
	e.state.Muted = target == 0
	e.mu.Unlock()

	e.publishState()
	return nil
}

// SetPlaybackRate sets the playback rate. Resources that cannot change rate keep 1.
func (e *Engine) SetPlaybackRate(r float64) error {
	r = clamp(r, 0.25, 4)

	e.mu.Lock()
	err := e.media.SetRate(r)
	if err == nil {
		e.state.Rate = r
	}
	e.mu.Unlock()

	if errors.Is(err, media.ErrUnsupported) {
		log.Debug().Float64("rate", r).Msg("Playback rate not supported by media")
		return nil
	}
	if err != nil {
		return &Error{Kind: KindPlaybackRejected, Message: "Playback rate could not be changed", Err: err}
	}
	e.publishState()
	return nil
}

// SetQueueAndPlay replaces the queue and plays tracks[start].
func (e *Engine) SetQueueAndPlay(ctx context.Context, tracks []track.Track, start int) error {
	if start < 0 || start >= len(tracks) {
		start = 0
	}

	e.mu.Lock()
	e.queue.Replace(tracks, e.rng)
	e.restoredIndex = -1
	var target *track.Track
	if len(tracks) > 0 {
		t := tracks[start]
		target = &t
		e.queue.Sync(t.ID)
	}
	e.mu.Unlock()

	log.Info().Int("tracks", len(tracks)).Int("start", start).Msg("Queue replaced")
	e.publishQueue()

	if target == nil {
		return nil
	}
	return e.loadAndPlay(ctx, target)
}

// ToggleShuffle flips shuffle. Enabling it reshuffles the current queue.
func (e *Engine) ToggleShuffle() {
	e.mu.Lock()
	on := !e.mode.Shuffle
	e.mu.Unlock()
	e.SetShuffleMode(on)
}

// SetShuffleMode enables or disables shuffle. Enabling always reshuffles.
func (e *Engine) SetShuffleMode(on bool) {
	e.mu.Lock()
	if !on && !e.mode.Shuffle {
		e.mu.Unlock()
		return
	}
	e.mode.Shuffle = on
	e.queue.SetShuffle(on, e.rng)
	if id := e.currentIDLocked(); id != "" {
		e.queue.Sync(id)
	}
	e.mu.Unlock()

	e.publishMode()
	e.publishQueue()
}

// CycleRepeat advances repeat through none, one, all.
func (e *Engine) CycleRepeat() RepeatMode {
	e.mu.Lock()
	e.mode.Repeat = e.mode.Repeat.Next()
	m := e.mode.Repeat
	e.mu.Unlock()

	e.publishMode()
	return m
}

// SetRepeatMode sets the repeat mode.
func (e *Engine) SetRepeatMode(m RepeatMode) {
	e.mu.Lock()
	e.mode.Repeat = m
	e.mu.Unlock()

	e.publishMode()
}

// SetCatalog replaces the catalog.
func (e *Engine) SetCatalog(tracks []track.Track) {
	e.catalog.Replace(tracks)
}

// RefreshCatalog fetches the catalog from the configured source. An empty result keeps
// the existing catalog.
func (e *Engine) RefreshCatalog(ctx context.Context) error {
	if e.source == nil {
		return errors.New("no catalog source configured")
	}
	tracks, err := e.source.FetchCatalog(ctx)
	if err != nil {
		return fmt.Errorf("refresh catalog: %w", err)
	}
	if len(tracks) == 0 {
		log.Warn().Msg("Catalog refresh returned no tracks")
		return nil
	}
	e.catalog.Replace(tracks)
	log.Info().Int("tracks", e.catalog.Len()).Msg("Catalog refreshed")
	return nil
}

// Session returns the UI state to persist.
func (e *Engine) Session() SessionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx := e.queue.Index()
	if e.queue.Len() == 0 && e.restoredIndex >= 0 {
		idx = e.restoredIndex
	}
	return SessionState{
		Index:   idx,
		Playing: e.state.Playing,
		Volume:  e.state.Volume,
		Shuffle: e.mode.Shuffle,
		Repeat:  e.mode.Repeat,
	}
}

// Restore applies persisted UI state. Audio is never resumed; the playing flag is
// only logged.
func (e *Engine) Restore(s SessionState) {
	repeat, err := ParseRepeatMode(string(s.Repeat))
	if err != nil {
		log.Warn().Err(err).Msg("Ignoring persisted repeat mode")
	}
	vol := clamp(s.Volume, 0, 1)

	e.mu.Lock()
	if err := e.media.SetVolume(vol); err != nil {
		log.Warn().Err(err).Msg("Failed to restore volume")
	}
	e.state.Volume = vol
	e.state.Muted = vol == 0
	if vol > 0 {
		e.lastVolume = vol
	}
	e.mode.Repeat = repeat
	if s.Shuffle != e.mode.Shuffle {
		e.mode.Shuffle = s.Shuffle
		e.queue.SetShuffle(s.Shuffle, e.rng)
	}
	if e.queue.Len() > 0 {
		e.queue.SetIndex(s.Index)
	} else if s.Index >= 0 {
		// Kept until a queue is set so it is not lost on the next save.
		e.restoredIndex = s.Index
	}
	e.mu.Unlock()

	log.Info().
		Int("index", s.Index).
		Bool("wasPlaying", s.Playing).
		Float64("volume", vol).
		Bool("shuffle", s.Shuffle).
		Str("repeat", string(repeat)).
		Msg("Session restored")

	e.publishMode()
	e.publishState()
}

func (e *Engine) load(ctx context.Context, t track.Track) error {
	if !t.HasSource() {
		return e.rejectSource(t)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return &Error{Kind: KindLoadError, Message: messageForKind(KindLoadError), Err: media.ErrClosed}
	}
	e.navSeq++
	seq, token, err := e.beginLoadLocked(t)
	if err != nil {
		perr := e.failLoadLocked(err)
		e.mu.Unlock()
		e.publishError()
		return perr
	}
	e.mu.Unlock()

	log.Info().Str("track", t.ID).Str("title", t.Title).Msg("Loading track")
	e.publishState()

	timeout := e.cfg.LoadTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().LoadTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err = e.media.AwaitReady(waitCtx, token)

	return e.finishLoad(seq, t, err)
}

// beginLoadLocked flushes current playback and points the media at t.
func (e *Engine) beginLoadLocked(t track.Track) (uint64, uint64, error) {
	e.loadSeq++
	seq := e.loadSeq

	if err := e.media.Pause(); err != nil {
		log.Debug().Err(err).Msg("Pause before load failed")
	}
	if err := e.media.Seek(0); err != nil {
		log.Debug().Err(err).Msg("Rewind before load failed")
	}

	tc := t
	e.pending = &tc
	e.state.Playing = false
	e.state.Loading = true
	e.state.CurrentTime = 0
	e.milestones.reset()
	e.playStarted = false

	token, err := e.media.SetSource(e.rewrite(t.AudioURL))
	if err == nil {
		err = e.media.Load()
	}
	return seq, token, err
}

func (e *Engine) finishLoad(seq uint64, t track.Track, waitErr error) error {
	e.mu.Lock()
	if seq != e.loadSeq || e.pending == nil || e.pending.ID != t.ID {
		e.mu.Unlock()
		log.Debug().Str("track", t.ID).Msg("Load superseded")
		return errSuperseded
	}
	if errors.Is(waitErr, media.ErrSuperseded) {
		e.mu.Unlock()
		return errSuperseded
	}

	if waitErr != nil {
		perr := e.failLoadLocked(waitErr)
		e.mu.Unlock()
		log.Warn().Err(waitErr).Str("track", t.ID).Msg("Track failed to load")
		e.publishError()
		return perr
	}

	e.pending = nil
	e.state.Loading = false
	prev := e.commitTrackLocked(t)
	idx := e.queue.Index()
	e.mu.Unlock()

	e.afterCommit(prev, t, idx)
	return nil
}

// failLoadLocked abandons the pending load. The previous track stays current.
func (e *Engine) failLoadLocked(err error) *Error {
	e.pending = nil
	e.state.Loading = false

	kind := KindLoadError
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindLoadTimeout
	}
	perr := &Error{Kind: kind, Message: messageForKind(kind), Err: err}

	// Classified media errors were already stored by the error event.
	var merr *media.Error
	if !errors.As(err, &merr) {
		e.setErrorLocked(perr)
	}
	return perr
}

func (e *Engine) commitTrackLocked(t track.Track) *track.Track {
	prev := e.state.Track
	tc := t
	e.state.Track = &tc
	e.state.CurrentTime = 0
	e.state.Duration = 0
	if t.Duration > 0 {
		e.state.Duration = t.Duration
	}
	if snap := e.media.Snapshot(); snap.Duration > 0 {
		e.state.Duration = snap.Duration
	}
	if e.state.Error != nil {
		e.errSeq++
		e.state.Error = nil
	}
	e.queue.Sync(t.ID)
	e.pushRecentLocked(t.ID)
	return prev
}

func (e *Engine) afterCommit(prev *track.Track, t track.Track, idx int) {
	log.Info().Str("track", t.ID).Int("index", idx).Msg("Track loaded")

	if e.plays != nil {
		e.plays.IncrementPlays(t.ID)
	}
	if e.recommender != nil {
		e.recommender.RecordPlay(t)
	}

	cur := t
	e.publishTrack(TrackChange{Previous: prev, Current: &cur, Index: idx})
	e.publishQueue()
	e.publishState()
	e.notifyNowPlaying()
}

func (e *Engine) resume() error {
	e.mu.Lock()
	if e.state.Track == nil {
		e.mu.Unlock()
		return nil
	}
	first, perr := e.startLocked()
	e.mu.Unlock()

	e.afterStart(first, perr)
	if perr != nil {
		return perr
	}
	return nil
}

// startLocked starts the media and reports whether this was the first start of the
// current load.
func (e *Engine) startLocked() (bool, *Error) {
	if err := e.media.PlayNow(); err != nil {
		e.state.Playing = false
		perr := &Error{Kind: KindPlaybackRejected, Message: messageForKind(KindPlaybackRejected), Err: err}
		e.setErrorLocked(perr)
		return false, perr
	}
	return e.markPlayingLocked(), nil
}

func (e *Engine) afterStart(first bool, perr *Error) {
	if perr != nil {
		log.Warn().Err(perr).Msg("Playback could not start")
		e.publishError()
		return
	}
	e.publishState()
	e.notifyNowPlaying()
	if first {
		e.ensureNotificationPermission()
	}
}

func (e *Engine) markPlayingLocked() bool {
	e.state.Playing = true
	if e.state.Error != nil {
		e.errSeq++
		e.state.Error = nil
	}
	if e.playStarted || e.state.Track == nil {
		return false
	}
	e.playStarted = true
	e.sendTelemetryLocked(EventPlayStart, e.progressLocked())
	return true
}

func (e *Engine) rejectSource(t track.Track) error {
	perr := &Error{
		Kind:    KindInvalidSource,
		Message: messageForKind(KindInvalidSource),
		Err:     fmt.Errorf("track %q has no audio url", t.ID),
	}

	e.mu.Lock()
	e.setErrorLocked(perr)
	e.mu.Unlock()

	log.Warn().Str("track", t.ID).Msg("Rejected track without audio source")
	e.publishError()
	return perr
}

// setErrorLocked stores err for display and schedules its removal.
func (e *Engine) setErrorLocked(err *Error) {
	e.errSeq++
	seq := e.errSeq
	e.state.Error = &PlaybackError{
		Kind:      err.Kind,
		Message:   err.Message,
		Retryable: err.Kind.Retryable(),
		At:        e.now(),
	}

	if e.cfg.ErrorDisplay > 0 {
		time.AfterFunc(e.cfg.ErrorDisplay, func() { e.clearError(seq) })
	}
}

func (e *Engine) clearError(seq uint64) {
	e.mu.Lock()
	if e.closed || e.errSeq != seq || e.state.Error == nil {
		e.mu.Unlock()
		return
	}
	e.state.Error = nil
	e.mu.Unlock()

	e.publishError()
}

func (e *Engine) handleMediaEvent(ev media.Event) {
	switch ev.Type {
	case media.EventLoadStart:
		e.mu.Lock()
		if e.state.Track != nil || e.pending != nil {
			e.state.Loading = true
		}
		e.mu.Unlock()
		e.publishState()

	case media.EventLoadedMetadata:
		e.mu.Lock()
		if ev.Duration > 0 {
			e.state.Duration = ev.Duration
			if e.state.CurrentTime > ev.Duration {
				e.state.CurrentTime = ev.Duration
			}
		}
		e.mu.Unlock()
		e.publishState()

	case media.EventCanPlay:
		e.mu.Lock()
		if e.pending == nil {
			e.state.Loading = false
		}
		e.mu.Unlock()
		e.publishState()

	case media.EventTimeUpdate:
		e.onTimeUpdate(ev)

	case media.EventPlay:
		e.mu.Lock()
		if e.state.Track == nil || e.pending != nil {
			e.mu.Unlock()
			return
		}
		first := e.markPlayingLocked()
		e.mu.Unlock()
		e.afterStart(first, nil)

	case media.EventPause:
		e.mu.Lock()
		changed := e.state.Playing && e.pending == nil
		if changed {
			e.state.Playing = false
		}
		e.mu.Unlock()
		if changed {
			e.publishState()
		}

	case media.EventEnded:
		e.autoAdvance()

	case media.EventError:
		kind := KindLoadError
		msg := ""
		if ev.Err != nil {
			kind = kindFromClass(ev.Err.Class)
			msg = ev.Err.Message
		}
		e.mu.Lock()
		e.state.Playing = false
		e.setErrorLocked(&Error{Kind: kind, Message: messageForKind(kind)})
		e.mu.Unlock()

		log.Warn().Str("kind", string(kind)).Str("detail", msg).Msg("Media error")
		e.publishError()
	}
}

func (e *Engine) onTimeUpdate(ev media.Event) {
	e.mu.Lock()
	if e.state.Track == nil || e.pending != nil {
		e.mu.Unlock()
		return
	}
	if ev.Duration > 0 {
		e.state.Duration = ev.Duration
	}
	pos := ev.CurrentTime
	if pos < 0 {
		pos = 0
	}
	if e.state.Duration > 0 && pos > e.state.Duration {
		pos = e.state.Duration
	}
	e.state.CurrentTime = pos
	e.trackProgressLocked()
	e.mu.Unlock()

	e.publishState()
}

// trackProgressLocked emits each milestone at most once per load, in threshold order.
func (e *Engine) trackProgressLocked() {
	t := e.state.Track
	if t == nil || t.IsLive() || e.state.Duration <= 0 {
		return
	}
	pct := e.state.CurrentTime / e.state.Duration * 100
	crossed, complete := e.milestones.advance(pct)
	for _, th := range crossed {
		e.sendTelemetryLocked(EventPlayProgress, th)
	}
	if complete {
		e.sendTelemetryLocked(EventPlayComplete, watermarkComplete)
	}
}

func (e *Engine) progressLocked() int {
	if e.state.Duration <= 0 {
		return 0
	}
	return int(e.state.CurrentTime / e.state.Duration * 100)
}

func (e *Engine) sendTelemetryLocked(typ EventType, pct int) {
	t := e.state.Track
	if e.telemetry == nil || t == nil {
		return
	}
	e.telemetry.Send(TrackEvent{
		Type:        typ,
		TrackID:     t.ID,
		AIGenerated: t.IsAIGenerated(),
		PositionMs:  int64(math.Round(e.state.CurrentTime * 1000)),
		DurationMs:  int64(math.Round(e.state.Duration * 1000)),
		ProgressPct: pct,
		Source:      e.cfg.TelemetrySource,
	})
}

func (e *Engine) pushRecentLocked(id string) {
	n := e.cfg.RecentExclusion
	if n <= 0 {
		return
	}
	if i := indexOfString(e.recent, id); i >= 0 {
		e.recent = append(e.recent[:i], e.recent[i+1:]...)
	}
	e.recent = append([]string{id}, e.recent...)
	if len(e.recent) > n {
		e.recent = e.recent[:n]
	}
}

func (e *Engine) currentIDLocked() string {
	if e.pending != nil {
		return e.pending.ID
	}
	if e.state.Track != nil {
		return e.state.Track.ID
	}
	return ""
}

func (e *Engine) rewrite(url string) string {
	if e.rewriter == nil {
		return url
	}
	return e.rewriter.Rewrite(url)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func indexOfString(ss []string, s string) int {
	for i, v := range ss {
		if v == s {
			return i
		}
	}
	return -1
}
