package history

import (
	"testing"
	"time"

	"github.com/edumarques81/stellar-playback/internal/domain/track"
)

func fixedClock(start time.Time) (func() time.Time, func(time.Duration)) {
	now := start
	return func() time.Time { return now }, func(d time.Duration) { now = now.Add(d) }
}

func newTestStore(t *testing.T, dir string) (*Store, func(time.Duration)) {
	t.Helper()
	s := NewStore(dir)
	clock, advance := fixedClock(time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))
	s.now = clock
	t.Cleanup(s.Close)
	return s, advance
}

func TestRecordPlayFoldsQuickRepeats(t *testing.T) {
	s, advance := newTestStore(t, "")
	a := track.Track{ID: "a", Title: "A"}

	s.RecordPlay(a)
	advance(2 * time.Second)
	s.RecordPlay(a)
	advance(10 * time.Second)
	s.RecordPlay(a)
	s.RecordPlay(track.Track{})

	if got := s.PlayCount("a"); got != 3 {
		t.Errorf("PlayCount = %d, want 3", got)
	}
	if got := s.Stats()["totalEntries"]; got != 2 {
		t.Errorf("entries = %v, want 2", got)
	}
}

func TestRecentTrackIDs(t *testing.T) {
	s, advance := newTestStore(t, "")
	for _, id := range []string{"a", "b", "c", "a", "d"} {
		s.RecordPlay(track.Track{ID: id})
		advance(time.Minute)
	}

	tests := []struct {
		n    int
		want []string
	}{
		{0, nil},
		{2, []string{"d", "a"}},
		{10, []string{"d", "a", "c", "b"}},
	}
	for _, tt := range tests {
		got := s.RecentTrackIDs(tt.n)
		if len(got) != len(tt.want) {
			t.Errorf("RecentTrackIDs(%d) = %v, want %v", tt.n, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("RecentTrackIDs(%d) = %v, want %v", tt.n, got, tt.want)
				break
			}
		}
	}
}

func TestRankPrefersLikesThenPlays(t *testing.T) {
	s, advance := newTestStore(t, "")
	for i := 0; i < 4; i++ {
		s.RecordPlay(track.Track{ID: "regular"})
		advance(time.Minute)
	}
	s.RecordPlay(track.Track{ID: "played1"})
	s.Like("liked")

	current := track.Track{ID: "cur", Genres: []string{"jazz"}}
	candidates := []track.Track{
		{ID: "stranger"},
		{ID: "played1", Genres: []string{"Jazz"}},
		{ID: "regular"},
		{ID: "liked"},
	}

	got := track.IDs(s.Rank(&current, candidates))
	want := []string{"liked", "regular", "played1"}
	if len(got) != len(want) {
		t.Fatalf("Rank = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Rank = %v, want %v", got, want)
		}
	}
}

func TestLikeUnlike(t *testing.T) {
	s, _ := newTestStore(t, "")

	s.Like("a")
	s.Like("a")
	if !s.IsLiked("a") {
		t.Fatal("a should be liked")
	}
	s.Unlike("a")
	s.Unlike("missing")
	if s.IsLiked("a") {
		t.Error("a should no longer be liked")
	}
	if got := s.Rank(nil, []track.Track{{ID: "a"}}); len(got) != 0 {
		t.Errorf("unliked, unplayed track ranked: %v", track.IDs(got))
	}
}

func TestPersistence(t *testing.T) {
	dir := t.TempDir()

	s, _ := newTestStore(t, dir)
	s.RecordPlay(track.Track{ID: "a", Title: "A", Artist: track.Artist{Name: "X"}})
	s.Like("b")
	s.Close()

	again := NewStore(dir)
	defer again.Close()

	if again.PlayCount("a") != 1 {
		t.Errorf("PlayCount after reload = %d", again.PlayCount("a"))
	}
	if !again.IsLiked("b") {
		t.Error("like lost after reload")
	}
}

func TestClear(t *testing.T) {
	s, _ := newTestStore(t, "")
	s.RecordPlay(track.Track{ID: "a"})
	s.Like("a")
	s.Clear()

	if s.PlayCount("a") != 0 || s.IsLiked("a") {
		t.Error("Clear left data behind")
	}
}
