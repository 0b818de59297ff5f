package player

import (
	"math/rand/v2"
	"time"

	"github.com/edumarques81/stellar-playback/internal/domain/track"
)

// Tier identifies the selector stage that produced a pick.
type Tier int

const (
	TierNone Tier = iota
	TierRecent
	TierGenre
	TierInteracted
	TierPopular
	TierAny
)

func (t Tier) String() string {
	switch t {
	case TierRecent:
		return "recent"
	case TierGenre:
		return "genre"
	case TierInteracted:
		return "interacted"
	case TierPopular:
		return "popular"
	case TierAny:
		return "any"
	default:
		return "none"
	}
}

// SelectorConfig tunes the automatic selection cascade.
type SelectorConfig struct {
	RecentWindow    time.Duration
	MinLikes        int
	InteractedLimit int
}

// DefaultSelectorConfig returns the standard cascade settings.
func DefaultSelectorConfig() SelectorConfig {
	return SelectorConfig{
		RecentWindow:    7 * 24 * time.Hour,
		MinLikes:        5,
		InteractedLimit: 10,
	}
}

// Selection is the input of one selector run.
type Selection struct {
	Current     *track.Track
	Catalog     []track.Track
	Exclude     map[string]struct{}
	SignedIn    bool
	Recommender Recommender
}

// Selector picks a next track when there is no queue to advance through.
// It is not safe for concurrent use.
type Selector struct {
	cfg SelectorConfig
	rng *rand.Rand
	now func() time.Time
}

// NewSelector creates a selector drawing from rng.
func NewSelector(cfg SelectorConfig, rng *rand.Rand, now func() time.Time) *Selector {
	if now == nil {
		now = time.Now
	}
	return &Selector{cfg: cfg, rng: rng, now: now}
}

// Select runs the cascade and picks uniformly at random inside the first tier that has
// candidates.
func (s *Selector) Select(in Selection) (track.Track, Tier, bool) {
	pool := eligible(in.Catalog, in.Current, in.Exclude)
	if len(pool) == 0 {
		return track.Track{}, TierNone, false
	}

	cutoff := s.now().Add(-s.cfg.RecentWindow)
	recent := filter(pool, func(t track.Track) bool {
		return !t.CreatedAt.IsZero() && t.CreatedAt.After(cutoff)
	})
	if t, ok := s.pick(recent); ok {
		return t, TierRecent, true
	}

	if in.Current != nil {
		cur := *in.Current
		genre := filter(pool, func(t track.Track) bool { return cur.SharesGenre(t) })
		if t, ok := s.pick(genre); ok {
			return t, TierGenre, true
		}
	}

	if in.SignedIn && in.Recommender != nil {
		ranked := in.Recommender.Rank(in.Current, pool)
		ranked = eligible(ranked, in.Current, in.Exclude)
		if n := s.cfg.InteractedLimit; n > 0 && len(ranked) > n {
			ranked = ranked[:n]
		}
		if t, ok := s.pick(ranked); ok {
			return t, TierInteracted, true
		}
	}

	popular := filter(pool, func(t track.Track) bool { return t.LikeCount >= s.cfg.MinLikes })
	if t, ok := s.pick(popular); ok {
		return t, TierPopular, true
	}

	t, _ := s.pick(pool)
	return t, TierAny, true
}

// Any picks uniformly from every eligible catalog track.
func (s *Selector) Any(catalog []track.Track, current *track.Track, exclude map[string]struct{}) (track.Track, bool) {
	return s.pick(eligible(catalog, current, exclude))
}

func (s *Selector) pick(candidates []track.Track) (track.Track, bool) {
	if len(candidates) == 0 {
		return track.Track{}, false
	}
	return candidates[s.rng.IntN(len(candidates))], true
}

func eligible(tracks []track.Track, current *track.Track, exclude map[string]struct{}) []track.Track {
	return filter(tracks, func(t track.Track) bool {
		if !t.HasSource() {
			return false
		}
		if current != nil && t.ID == current.ID {
			return false
		}
		_, skip := exclude[t.ID]
		return !skip
	})
}

func filter(tracks []track.Track, keep func(track.Track) bool) []track.Track {
	var out []track.Track
	for _, t := range tracks {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}
