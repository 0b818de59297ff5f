package player

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/edumarques81/stellar-playback/internal/domain/track"
	"github.com/edumarques81/stellar-playback/internal/media"
)

// fakeMedia is a scripted Media. Readiness is resolved explicitly by the test.
type fakeMedia struct {
	mu       sync.Mutex
	listener media.Listener

	token    uint64
	src      string
	sources  []string
	loads    int
	plays    int
	pauses   int
	seeks    []float64
	volume   float64
	rate     float64
	paused   bool
	ended    bool
	position float64
	duration float64
	closed   bool

	playErr   error
	rateErr   error
	sourceErr error

	ready   map[uint64]chan error
	waiting chan uint64
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{
		volume:  1,
		rate:    1,
		paused:  true,
		ready:   make(map[uint64]chan error),
		waiting: make(chan uint64, 16),
	}
}

func (m *fakeMedia) SetListener(l media.Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listener = l
}

func (m *fakeMedia) SetSource(url string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token++
	m.src = url
	m.sources = append(m.sources, url)
	m.position = 0
	m.ended = false
	return m.token, m.sourceErr
}

func (m *fakeMedia) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	return nil
}

func (m *fakeMedia) readyChan(token uint64) chan error {
	ch, ok := m.ready[token]
	if !ok {
		ch = make(chan error, 1)
		m.ready[token] = ch
	}
	return ch
}

func (m *fakeMedia) AwaitReady(ctx context.Context, token uint64) error {
	m.mu.Lock()
	ch := m.readyChan(token)
	m.mu.Unlock()

	select {
	case m.waiting <- token:
	default:
	}

	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// resolve completes the readiness wait of token.
func (m *fakeMedia) resolve(token uint64, err error) {
	m.mu.Lock()
	ch := m.readyChan(token)
	m.mu.Unlock()
	ch <- err
}

func (m *fakeMedia) PlayNow() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plays++
	if m.playErr != nil {
		return m.playErr
	}
	m.paused = false
	return nil
}

func (m *fakeMedia) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pauses++
	m.paused = true
	return nil
}

func (m *fakeMedia) Seek(seconds float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seeks = append(m.seeks, seconds)
	m.position = seconds
	return nil
}

func (m *fakeMedia) SetVolume(v float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = v
	return nil
}

func (m *fakeMedia) SetRate(r float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rateErr != nil {
		return m.rateErr
	}
	m.rate = r
	return nil
}

func (m *fakeMedia) Source() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.src
}

func (m *fakeMedia) Snapshot() media.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return media.Snapshot{
		Token:       m.token,
		Source:      m.src,
		Paused:      m.paused,
		Ended:       m.ended,
		CurrentTime: m.position,
		Duration:    m.duration,
		Volume:      m.volume,
	}
}

func (m *fakeMedia) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// emit delivers ev to the installed listener on the calling goroutine.
func (m *fakeMedia) emit(ev media.Event) {
	m.mu.Lock()
	l := m.listener
	if ev.Token == 0 {
		ev.Token = m.token
	}
	m.mu.Unlock()
	l(ev)
}

func (m *fakeMedia) set(fn func(m *fakeMedia)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m)
}

func (m *fakeMedia) counts() (plays, pauses, loads int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.plays, m.pauses, m.loads
}

type fakeTelemetry struct {
	mu     sync.Mutex
	events []TrackEvent
}

func (f *fakeTelemetry) Send(ev TrackEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakeTelemetry) all() []TrackEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]TrackEvent(nil), f.events...)
}

func (f *fakeTelemetry) ofType(typ EventType) []TrackEvent {
	var out []TrackEvent
	for _, ev := range f.all() {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

type fakeCounter struct {
	mu  sync.Mutex
	ids []string
}

func (f *fakeCounter) IncrementPlays(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, id)
}

func (f *fakeCounter) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ids...)
}

type fakeSource struct {
	mu     sync.Mutex
	tracks []track.Track
	err    error
	calls  int
}

func (f *fakeSource) FetchCatalog(ctx context.Context) ([]track.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.tracks, f.err
}

type fakeRecommender struct {
	recent  []string
	liked   map[string]bool
	records []string
}

func (f *fakeRecommender) RecentTrackIDs(n int) []string {
	if len(f.recent) > n {
		return f.recent[:n]
	}
	return f.recent
}

func (f *fakeRecommender) Rank(current *track.Track, candidates []track.Track) []track.Track {
	var out []track.Track
	for _, c := range candidates {
		if f.liked[c.ID] {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeRecommender) RecordPlay(t track.Track) {
	f.records = append(f.records, t.ID)
}

type signedIn bool

func (s signedIn) SignedIn() bool { return bool(s) }

type fakeNotifier struct {
	mu         sync.Mutex
	permission Permission
	requests   int
	posts      []NowPlaying
}

func (f *fakeNotifier) RequestPermission(ctx context.Context) (Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++
	return f.permission, nil
}

func (f *fakeNotifier) Post(np NowPlaying) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, np)
	return nil
}

func (f *fakeNotifier) snapshot() (int, []NowPlaying) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests, append([]NowPlaying(nil), f.posts...)
}

type prefixRewriter string

func (p prefixRewriter) Rewrite(url string) string { return string(p) + url }

// harness bundles an engine with its fakes.
type harness struct {
	engine    *Engine
	media     *fakeMedia
	telemetry *fakeTelemetry
	plays     *fakeCounter
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.LoadTimeout = 2 * time.Second
	cfg.ErrorDisplay = 0
	cfg.WatchdogInterval = 0
	cfg.StallResumeDelay = 0
	cfg.CatalogRefreshTimeout = time.Second
	cfg.PermissionTimeout = time.Second
	return cfg
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		media:     newFakeMedia(),
		telemetry: &fakeTelemetry{},
		plays:     &fakeCounter{},
	}
	base := []Option{
		WithConfig(testConfig()),
		WithTelemetry(h.telemetry),
		WithPlayCounter(h.plays),
		WithRand(rand.New(rand.NewPCG(1, 2))),
	}
	h.engine = NewEngine(h.media, append(base, opts...)...)
	t.Cleanup(func() { h.engine.Close() })
	return h
}

// do runs op and resolves every readiness wait it starts.
func (h *harness) do(t *testing.T, op func() error) error {
	t.Helper()
	errc := make(chan error, 1)
	go func() { errc <- op() }()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case err := <-errc:
			return err
		case tok := <-h.media.waiting:
			h.media.resolve(tok, nil)
		case <-deadline:
			t.Fatal("operation did not finish")
			return nil
		}
	}
}

// eventually polls cond until it holds.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func tr(id string) track.Track {
	return track.Track{
		ID:       id,
		Title:    "Title " + id,
		Artist:   track.Artist{ID: "artist", Name: "Artist"},
		AudioURL: fmt.Sprintf("https://media.example.com/%s.mp3", id),
		Duration: 200,
	}
}

func trs(ids ...string) []track.Track {
	out := make([]track.Track, len(ids))
	for i, id := range ids {
		out[i] = tr(id)
	}
	return out
}

func currentID(e *Engine) string {
	st := e.State()
	if st.Track == nil {
		return ""
	}
	return st.Track.ID
}

var errRejected = errors.New("NotAllowedError")
