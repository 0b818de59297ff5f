package player

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/edumarques81/stellar-playback/internal/domain/track"
)

var selectorNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestSelector(seed uint64) *Selector {
	return NewSelector(DefaultSelectorConfig(), rand.New(rand.NewPCG(seed, seed+1)), func() time.Time { return selectorNow })
}

func catalogTrack(id string, age time.Duration, likes int, genres ...string) track.Track {
	t := tr(id)
	t.CreatedAt = selectorNow.Add(-age)
	t.LikeCount = likes
	t.Genres = genres
	return t
}

func TestSelectorTiers(t *testing.T) {
	old := 30 * 24 * time.Hour
	current := catalogTrack("cur", old, 0, "house")

	tests := []struct {
		name     string
		catalog  []track.Track
		exclude  []string
		signedIn bool
		liked    []string
		wantTier Tier
		wantIn   []string
	}{
		{
			name: "recent wins",
			catalog: []track.Track{
				catalogTrack("new1", time.Hour, 0),
				catalogTrack("new2", 6*24*time.Hour, 0),
				catalogTrack("genre", old, 0, "House"),
				catalogTrack("pop", old, 50),
			},
			wantTier: TierRecent,
			wantIn:   []string{"new1", "new2"},
		},
		{
			name: "excluded recent falls to genre",
			catalog: []track.Track{
				catalogTrack("new1", time.Hour, 0),
				catalogTrack("genre", old, 0, "house"),
				catalogTrack("pop", old, 50),
			},
			exclude:  []string{"new1"},
			wantTier: TierGenre,
			wantIn:   []string{"genre"},
		},
		{
			name: "interacted needs session",
			catalog: []track.Track{
				catalogTrack("liked", old, 0),
				catalogTrack("pop", old, 50),
			},
			signedIn: true,
			liked:    []string{"liked"},
			wantTier: TierInteracted,
			wantIn:   []string{"liked"},
		},
		{
			name: "signed out skips interacted",
			catalog: []track.Track{
				catalogTrack("liked", old, 0),
				catalogTrack("pop", old, 50),
			},
			liked:    []string{"liked"},
			wantTier: TierPopular,
			wantIn:   []string{"pop"},
		},
		{
			name: "popularity floor",
			catalog: []track.Track{
				catalogTrack("p5", old, 5),
				catalogTrack("p4", old, 4),
			},
			wantTier: TierPopular,
			wantIn:   []string{"p5"},
		},
		{
			name: "any remaining",
			catalog: []track.Track{
				catalogTrack("x", old, 0),
				catalogTrack("y", old, 1),
			},
			wantTier: TierAny,
			wantIn:   []string{"x", "y"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &fakeRecommender{liked: map[string]bool{}}
			for _, id := range tt.liked {
				rec.liked[id] = true
			}
			exclude := map[string]struct{}{}
			for _, id := range tt.exclude {
				exclude[id] = struct{}{}
			}

			for seed := uint64(0); seed < 20; seed++ {
				s := newTestSelector(seed)
				got, tier, ok := s.Select(Selection{
					Current:     &current,
					Catalog:     tt.catalog,
					Exclude:     exclude,
					SignedIn:    tt.signedIn,
					Recommender: rec,
				})
				if !ok {
					t.Fatal("expected a pick")
				}
				if tier != tt.wantTier {
					t.Fatalf("tier = %s, want %s", tier, tt.wantTier)
				}
				if track.IndexOf(trackList(tt.wantIn), got.ID) < 0 {
					t.Fatalf("pick %q not in %v", got.ID, tt.wantIn)
				}
			}
		})
	}
}

func TestSelectorNeverPicksCurrentOrExcluded(t *testing.T) {
	catalog := []track.Track{
		catalogTrack("cur", time.Hour, 10, "pop"),
		catalogTrack("r1", time.Hour, 10, "pop"),
		catalogTrack("r2", time.Hour, 10, "pop"),
		catalogTrack("ok1", time.Hour, 10, "pop"),
		catalogTrack("ok2", 40*24*time.Hour, 10, "pop"),
	}
	current := catalog[0]
	exclude := map[string]struct{}{"r1": {}, "r2": {}}
	s := newTestSelector(7)

	picked := map[string]int{}
	for i := 0; i < 200; i++ {
		got, _, ok := s.Select(Selection{Current: &current, Catalog: catalog, Exclude: exclude})
		if !ok {
			t.Fatal("expected a pick")
		}
		if got.ID == "cur" || got.ID == "r1" || got.ID == "r2" {
			t.Fatalf("picked excluded track %q", got.ID)
		}
		picked[got.ID]++
	}
	if picked["ok1"] != 200 {
		t.Errorf("recent tier should always win, got %v", picked)
	}
}

func TestSelectorPicksRandomlyWithinTier(t *testing.T) {
	catalog := []track.Track{
		catalogTrack("a", time.Hour, 0),
		catalogTrack("b", time.Hour, 0),
		catalogTrack("c", time.Hour, 0),
	}
	s := newTestSelector(3)

	picked := map[string]bool{}
	for i := 0; i < 100; i++ {
		got, _, _ := s.Select(Selection{Catalog: catalog})
		picked[got.ID] = true
	}
	if len(picked) < 2 {
		t.Errorf("selection should vary within a tier, got %v", picked)
	}
}

func TestSelectorNoCandidates(t *testing.T) {
	s := newTestSelector(1)
	cur := tr("only")

	if _, tier, ok := s.Select(Selection{Current: &cur, Catalog: []track.Track{cur}}); ok || tier != TierNone {
		t.Errorf("expected no pick, got tier %s", tier)
	}

	noSource := tr("silent")
	noSource.AudioURL = ""
	if _, ok := s.Any([]track.Track{noSource}, nil, nil); ok {
		t.Error("tracks without audio must never be picked")
	}
}

func trackList(ids []string) []track.Track {
	out := make([]track.Track, len(ids))
	for i, id := range ids {
		out[i] = track.Track{ID: id}
	}
	return out
}
