package player

import (
	"context"
	"testing"
	"time"

	"github.com/edumarques81/stellar-playback/internal/domain/track"
	"github.com/edumarques81/stellar-playback/internal/media"
)

func TestNextTrackWalksQueueThenStops(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.do(t, func() error { return h.engine.SetQueueAndPlay(ctx, trs("t1", "t2", "t3"), 0) }); err != nil {
		t.Fatal(err)
	}
	if q := h.engine.Queue(); q.Index != 0 {
		t.Fatalf("index = %d, want 0", q.Index)
	}

	steps := []struct {
		wantTrack string
		wantIndex int
	}{
		{"t2", 1},
		{"t3", 2},
	}
	for _, s := range steps {
		if err := h.do(t, func() error { return h.engine.NextTrack(ctx) }); err != nil {
			t.Fatalf("NextTrack error = %v", err)
		}
		if got := currentID(h.engine); got != s.wantTrack {
			t.Errorf("current = %q, want %q", got, s.wantTrack)
		}
		if got := h.engine.Queue().Index; got != s.wantIndex {
			t.Errorf("index = %d, want %d", got, s.wantIndex)
		}
		if !h.engine.State().Playing {
			t.Error("expected playback to continue")
		}
	}

	if err := h.do(t, func() error { return h.engine.NextTrack(ctx) }); err != nil {
		t.Fatal(err)
	}
	st := h.engine.State()
	if st.Playing {
		t.Error("playback should stop at the end of the queue")
	}
	if st.Error != nil {
		t.Errorf("stopping at the end is not an error, got %+v", st.Error)
	}
	if got := currentID(h.engine); got != "t3" {
		t.Errorf("current = %q, want t3 (no wrap)", got)
	}
}

func TestNextTrackWrapsWithRepeatAll(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.engine.SetRepeatMode(RepeatAll)

	if err := h.do(t, func() error { return h.engine.SetQueueAndPlay(ctx, trs("t1", "t2", "t3"), 2) }); err != nil {
		t.Fatal(err)
	}
	if err := h.do(t, func() error { return h.engine.NextTrack(ctx) }); err != nil {
		t.Fatal(err)
	}

	if got := currentID(h.engine); got != "t1" {
		t.Errorf("current = %q, want t1", got)
	}
	if got := h.engine.Queue().Index; got != 0 {
		t.Errorf("index = %d, want 0", got)
	}
}

func TestNextTrackWrapsShuffledQueue(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.engine.SetRepeatMode(RepeatAll)
	h.engine.SetShuffleMode(true)

	if err := h.do(t, func() error { return h.engine.SetQueueAndPlay(ctx, trs("a", "b", "c", "d", "e"), 0) }); err != nil {
		t.Fatal(err)
	}
	eff := h.engine.Queue().Effective
	last := eff[len(eff)-1]

	if err := h.do(t, func() error { return h.engine.Play(ctx, &last) }); err != nil {
		t.Fatal(err)
	}
	if err := h.do(t, func() error { return h.engine.NextTrack(ctx) }); err != nil {
		t.Fatal(err)
	}

	if got := currentID(h.engine); got != eff[0].ID {
		t.Errorf("current = %q, want first of shuffled order %q", got, eff[0].ID)
	}
	if got := h.engine.Queue().Index; got != 0 {
		t.Errorf("index = %d, want 0", got)
	}
}

func TestPreviousTrack(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.do(t, func() error { return h.engine.SetQueueAndPlay(ctx, trs("t1", "t2", "t3"), 1) }); err != nil {
		t.Fatal(err)
	}
	if err := h.do(t, func() error { return h.engine.PreviousTrack(ctx) }); err != nil {
		t.Fatal(err)
	}
	if got := currentID(h.engine); got != "t1" {
		t.Fatalf("current = %q, want t1", got)
	}

	if err := h.do(t, func() error { return h.engine.PreviousTrack(ctx) }); err != nil {
		t.Fatal(err)
	}
	if h.engine.State().Playing {
		t.Error("previous at the start without repeat should stop")
	}

	h.engine.SetRepeatMode(RepeatAll)
	if err := h.do(t, func() error { return h.engine.PreviousTrack(ctx) }); err != nil {
		t.Fatal(err)
	}
	if got := currentID(h.engine); got != "t3" {
		t.Errorf("current = %q, want t3 after wrapping backwards", got)
	}
}

func TestNextTrackLoadsWithoutPlayingWhenPaused(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.do(t, func() error { return h.engine.SetQueueAndPlay(ctx, trs("t1", "t2"), 0) }); err != nil {
		t.Fatal(err)
	}
	h.engine.Pause()
	plays, _, _ := h.media.counts()

	if err := h.do(t, func() error { return h.engine.NextTrack(ctx) }); err != nil {
		t.Fatal(err)
	}

	if got := currentID(h.engine); got != "t2" {
		t.Errorf("current = %q, want t2", got)
	}
	if h.engine.State().Playing {
		t.Error("paused navigation must only load")
	}
	if p, _, _ := h.media.counts(); p != plays {
		t.Errorf("media plays = %d, want %d", p, plays)
	}
}

func TestNextTrackResolvesIndexByIdentity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.do(t, func() error { return h.engine.SetQueueAndPlay(ctx, trs("t1", "t2", "t3"), 0) }); err != nil {
		t.Fatal(err)
	}
	t3 := tr("t3")
	if err := h.do(t, func() error { return h.engine.Play(ctx, &t3) }); err != nil {
		t.Fatal(err)
	}

	// Desynchronize the stored index from the loaded track.
	h.engine.mu.Lock()
	h.engine.queue.SetIndex(0)
	h.engine.mu.Unlock()

	h.engine.SetRepeatMode(RepeatAll)
	if err := h.do(t, func() error { return h.engine.NextTrack(ctx) }); err != nil {
		t.Fatal(err)
	}
	if got := currentID(h.engine); got != "t1" {
		t.Errorf("current = %q, want t1 (resolved from t3, not from stale index 0)", got)
	}
}

func TestNextTrackSingleEntryQueueUsesSelector(t *testing.T) {
	h := newHarness(t, WithCatalog(trs("t1", "c1", "c2", "c3")))
	ctx := context.Background()

	if err := h.do(t, func() error { return h.engine.SetQueueAndPlay(ctx, trs("t1"), 0) }); err != nil {
		t.Fatal(err)
	}
	if err := h.do(t, func() error { return h.engine.NextTrack(ctx) }); err != nil {
		t.Fatal(err)
	}

	got := currentID(h.engine)
	if got == "t1" || got == "" {
		t.Fatalf("current = %q, want a catalog pick other than t1", got)
	}
	if track.IndexOf(h.engine.Catalog(), got) < 0 {
		t.Errorf("pick %q is not from the catalog", got)
	}
	if !h.engine.State().Playing {
		t.Error("auto-play pick should start playing")
	}
}

func TestNextTrackBootstrapsFromCatalog(t *testing.T) {
	h := newHarness(t, WithCatalog(trs("c1", "c2")))
	ctx := context.Background()

	if err := h.do(t, func() error { return h.engine.NextTrack(ctx) }); err != nil {
		t.Fatal(err)
	}

	if got := currentID(h.engine); got != "c1" {
		t.Errorf("current = %q, want first catalog track c1", got)
	}
	if !h.engine.State().Playing {
		t.Error("bootstrap should start playing")
	}
}

func TestNextTrackRefreshesEmptyCatalog(t *testing.T) {
	src := &fakeSource{tracks: trs("f1", "f2")}
	h := newHarness(t, WithCatalogSource(src))
	ctx := context.Background()

	if err := h.do(t, func() error { return h.engine.SetQueueAndPlay(ctx, trs("solo"), 0) }); err != nil {
		t.Fatal(err)
	}
	if err := h.engine.NextTrack(ctx); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for {
		id := currentID(h.engine)
		if id == "f1" || id == "f2" {
			break
		}
		select {
		case tok := <-h.media.waiting:
			h.media.resolve(tok, nil)
		case <-time.After(5 * time.Millisecond):
		case <-deadline:
			t.Fatalf("no pick after refresh, current = %q", id)
		}
	}
	if got := len(h.engine.Catalog()); got != 2 {
		t.Errorf("catalog size = %d, want 2", got)
	}
}

func TestNextTrackStopsWhenRefreshedCatalogEmpty(t *testing.T) {
	src := &fakeSource{}
	h := newHarness(t, WithCatalogSource(src))
	ctx := context.Background()

	if err := h.do(t, func() error { return h.engine.SetQueueAndPlay(ctx, trs("solo"), 0) }); err != nil {
		t.Fatal(err)
	}
	if err := h.engine.NextTrack(ctx); err != nil {
		t.Fatal(err)
	}

	eventually(t, "playback to stop", func() bool { return !h.engine.State().Playing })
	src.mu.Lock()
	calls := src.calls
	src.mu.Unlock()
	if calls != 1 {
		t.Errorf("catalog fetches = %d, want 1", calls)
	}
	if st := h.engine.State(); st.Error != nil {
		t.Errorf("empty catalog is not an error, got %+v", st.Error)
	}
}

func TestEndedAdvancesImmediately(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.do(t, func() error { return h.engine.SetQueueAndPlay(ctx, trs("t1", "t2"), 0) }); err != nil {
		t.Fatal(err)
	}

	h.media.emit(media.Event{Type: media.EventPause})
	h.media.emit(media.Event{Type: media.EventEnded})

	st := h.engine.State()
	if st.Track == nil || st.Track.ID != "t2" {
		t.Fatalf("current = %+v, want t2", st.Track)
	}
	if !st.Playing {
		t.Error("auto-advance should keep playing")
	}
	if got := h.engine.Queue().Index; got != 1 {
		t.Errorf("index = %d, want 1", got)
	}
}

func TestEndedRepeatOneReplays(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.engine.SetRepeatMode(RepeatOne)

	if err := h.do(t, func() error { return h.engine.SetQueueAndPlay(ctx, trs("t1", "t2"), 0) }); err != nil {
		t.Fatal(err)
	}
	h.media.emit(media.Event{Type: media.EventEnded})

	if got := currentID(h.engine); got != "t1" {
		t.Errorf("current = %q, want t1 repeated", got)
	}
	if got := h.plays.all(); len(got) != 2 {
		t.Errorf("play counts = %v, want two plays of t1", got)
	}
	if got := len(h.telemetry.ofType(EventPlayStart)); got != 2 {
		t.Errorf("play_start events = %d, want 2", got)
	}
}

func TestEndedAtQueueEndStops(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.do(t, func() error { return h.engine.SetQueueAndPlay(ctx, trs("t1", "t2"), 1) }); err != nil {
		t.Fatal(err)
	}
	h.media.emit(media.Event{Type: media.EventEnded})

	if h.engine.State().Playing {
		t.Error("expected playback to stop")
	}
	if got := currentID(h.engine); got != "t2" {
		t.Errorf("current = %q, want t2", got)
	}
}

func TestSelectorExcludesRecentPlays(t *testing.T) {
	catalog := trs("a", "b", "c", "d", "e", "f", "g")
	h := newHarness(t, WithCatalog(catalog))
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 6; i++ {
		if err := h.do(t, func() error { return h.engine.NextTrack(ctx) }); err != nil {
			t.Fatal(err)
		}
		id := currentID(h.engine)
		if seen[id] {
			t.Fatalf("track %q repeated within the exclusion window", id)
		}
		seen[id] = true
	}
}
