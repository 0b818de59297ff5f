package player

import "github.com/edumarques81/stellar-playback/internal/domain/track"

const eventBufferSize = 16

// TrackChange is emitted when a new track is committed or the current track is cleared.
type TrackChange struct {
	Previous *track.Track
	Current  *track.Track
	Index    int
}

// StateChange carries a full state snapshot.
type StateChange struct {
	State PlaybackState
}

// ErrorChange is emitted when the stored error is set or cleared.
type ErrorChange struct {
	Error *PlaybackError
}

// QueueChange carries the queue in both orders.
type QueueChange struct {
	Tracks    []track.Track
	Effective []track.Track
	Index     int
}

// ModeChange carries the new mode.
type ModeChange struct {
	Mode Mode
}

// Subscription provides event channels for a subscriber.
// Sends never block; events are dropped when a buffer is full.
type Subscription struct {
	TrackChanged <-chan TrackChange
	StateChanged <-chan StateChange
	ErrorChanged <-chan ErrorChange
	QueueChanged <-chan QueueChange
	ModeChanged  <-chan ModeChange
	Done         <-chan struct{}

	trackCh chan TrackChange
	stateCh chan StateChange
	errorCh chan ErrorChange
	queueCh chan QueueChange
	modeCh  chan ModeChange
	doneCh  chan struct{}
}

func newSubscription() *Subscription {
	s := &Subscription{
		trackCh: make(chan TrackChange, eventBufferSize),
		stateCh: make(chan StateChange, eventBufferSize),
		errorCh: make(chan ErrorChange, eventBufferSize),
		queueCh: make(chan QueueChange, eventBufferSize),
		modeCh:  make(chan ModeChange, eventBufferSize),
		doneCh:  make(chan struct{}),
	}
	s.TrackChanged = s.trackCh
	s.StateChanged = s.stateCh
	s.ErrorChanged = s.errorCh
	s.QueueChanged = s.queueCh
	s.ModeChanged = s.modeCh
	s.Done = s.doneCh
	return s
}

func (s *Subscription) close() {
	close(s.doneCh)
}

func (s *Subscription) sendTrack(e TrackChange) {
	select {
	case s.trackCh <- e:
	default:
	}
}

func (s *Subscription) sendState(e StateChange) {
	select {
	case s.stateCh <- e:
	default:
		// Drop if buffer full
	}
}

func (s *Subscription) sendError(e ErrorChange) {
	select {
	case s.errorCh <- e:
	default:
	}
}

func (s *Subscription) sendQueue(e QueueChange) {
	select {
	case s.queueCh <- e:
	default:
	}
}

func (s *Subscription) sendMode(e ModeChange) {
	select {
	case s.modeCh <- e:
	default:
	}
}

// Subscribe creates a new event subscription.
func (e *Engine) Subscribe() *Subscription {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()

	sub := newSubscription()
	if e.subsClosed {
		sub.close()
		return sub
	}
	e.subs = append(e.subs, sub)
	return sub
}

func (e *Engine) closeSubscriptions() {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()

	for _, sub := range e.subs {
		sub.close()
	}
	e.subs = nil
	e.subsClosed = true
}

func (e *Engine) each(fn func(*Subscription)) {
	e.subsMu.RLock()
	defer e.subsMu.RUnlock()
	for _, sub := range e.subs {
		fn(sub)
	}
}

// The publish helpers must be called without e.mu held.

func (e *Engine) publishTrack(ev TrackChange) {
	e.each(func(s *Subscription) { s.sendTrack(ev) })
}

func (e *Engine) publishState() {
	ev := StateChange{State: e.State()}
	e.each(func(s *Subscription) { s.sendState(ev) })
}

func (e *Engine) publishError() {
	st := e.State()
	ev := ErrorChange{Error: st.Error}
	e.each(func(s *Subscription) { s.sendError(ev) })
	sc := StateChange{State: st}
	e.each(func(s *Subscription) { s.sendState(sc) })
}

func (e *Engine) publishQueue() {
	ev := e.Queue()
	e.each(func(s *Subscription) { s.sendQueue(ev) })
}

func (e *Engine) publishMode() {
	ev := ModeChange{Mode: e.Mode()}
	e.each(func(s *Subscription) { s.sendMode(ev) })
}
