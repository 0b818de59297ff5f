package socketio

import (
	"context"
	"fmt"
	"sync"

	"github.com/edumarques81/stellar-playback/internal/domain/player"
	"github.com/edumarques81/stellar-playback/internal/domain/track"
)

type fakePlayer struct {
	mu    sync.Mutex
	calls []string

	state   player.PlaybackState
	queue   player.QueueChange
	mode    player.Mode
	session player.SessionState
	sub     *player.Subscription

	played  *track.Track
	queued  []track.Track
	start   int
	seekPos float64
	volume  float64
	rate    float64
	perm    player.Permission
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{state: player.NewState(), queue: player.QueueChange{Index: -1}}
}

func (f *fakePlayer) record(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakePlayer) history() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakePlayer) State() player.PlaybackState   { return f.state }
func (f *fakePlayer) Queue() player.QueueChange      { return f.queue }
func (f *fakePlayer) Mode() player.Mode              { return f.mode }
func (f *fakePlayer) Session() player.SessionState   { return f.session }
func (f *fakePlayer) Subscribe() *player.Subscription { return f.sub }

func (f *fakePlayer) Play(ctx context.Context, t *track.Track) error {
	f.mu.Lock()
	f.played = t
	f.mu.Unlock()
	f.record("play")
	return nil
}

func (f *fakePlayer) Pause() error { f.record("pause"); return nil }
func (f *fakePlayer) Stop() error  { f.record("stop"); return nil }

func (f *fakePlayer) NextTrack(ctx context.Context) error     { f.record("next"); return nil }
func (f *fakePlayer) PreviousTrack(ctx context.Context) error { f.record("prev"); return nil }

func (f *fakePlayer) Seek(seconds float64) error {
	f.seekPos = seconds
	f.record("seek")
	return nil
}

func (f *fakePlayer) SetVolume(v float64) error {
	f.volume = v
	f.record("volume")
	return nil
}

func (f *fakePlayer) ToggleMute() error { f.record("mute"); return nil }

func (f *fakePlayer) SetPlaybackRate(r float64) error {
	f.rate = r
	f.record("rate")
	return nil
}

func (f *fakePlayer) SetQueueAndPlay(ctx context.Context, tracks []track.Track, start int) error {
	f.mu.Lock()
	f.queued = tracks
	f.start = start
	f.mu.Unlock()
	f.record("setQueue")
	return nil
}

func (f *fakePlayer) SetShuffleMode(on bool) {
	f.mode.Shuffle = on
	f.record("shuffle %v", on)
}

func (f *fakePlayer) ToggleShuffle() {
	f.mode.Shuffle = !f.mode.Shuffle
	f.record("toggleShuffle")
}

func (f *fakePlayer) SetRepeatMode(m player.RepeatMode) {
	f.mode.Repeat = m
	f.record("repeat %s", m)
}

func (f *fakePlayer) CycleRepeat() player.RepeatMode {
	f.mode.Repeat = f.mode.Repeat.Next()
	f.record("cycleRepeat")
	return f.mode.Repeat
}

func (f *fakePlayer) RefreshCatalog(ctx context.Context) error {
	f.record("refresh")
	return nil
}

func (f *fakePlayer) SetNotificationPermission(p player.Permission) {
	f.perm = p
	f.record("permission %s", p)
}

type fakeLiker struct {
	mu    sync.Mutex
	liked map[string]bool
}

func (l *fakeLiker) Like(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.liked[id] = true
}

func (l *fakeLiker) Unlike(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.liked, id)
}

type fakeSessions struct {
	mu    sync.Mutex
	saved []player.SessionState
}

func (s *fakeSessions) SaveSession(st player.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, st)
	return nil
}

func (s *fakeSessions) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}
