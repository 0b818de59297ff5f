package player

import (
	"math/rand/v2"

	"github.com/edumarques81/stellar-playback/internal/domain/track"
)

// Queue is the ordered play queue with its shuffled projection.
// The index is a position in the effective order (shuffled when shuffle is on).
// Queue is not safe for concurrent use; the engine guards it.
type Queue struct {
	tracks   []track.Track
	shuffled []track.Track
	shuffle  bool
	index    int
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{index: -1}
}

// Replace swaps the queue contents and regenerates the shuffled projection when
// shuffle is on. The index is reset.
func (q *Queue) Replace(tracks []track.Track, rng *rand.Rand) {
	q.tracks = append([]track.Track(nil), tracks...)
	q.shuffled = nil
	if q.shuffle {
		q.shuffled = permute(q.tracks, rng)
	}
	q.index = -1
}

// SetShuffle switches the effective order. Enabling always produces a fresh permutation
// of the current queue order. The index is reset; callers resync it by identity.
func (q *Queue) SetShuffle(on bool, rng *rand.Rand) {
	q.shuffle = on
	q.shuffled = nil
	if on {
		q.shuffled = permute(q.tracks, rng)
	}
	q.index = -1
}

// Len returns the number of queued tracks.
func (q *Queue) Len() int {
	return len(q.tracks)
}

// Index returns the stored index in the effective order, or -1.
func (q *Queue) Index() int {
	return q.index
}

// SetIndex stores i, or -1 when i is out of range.
func (q *Queue) SetIndex(i int) {
	if i < 0 || i >= len(q.tracks) {
		q.index = -1
		return
	}
	q.index = i
}

// Tracks returns a copy of the queue in its original order.
func (q *Queue) Tracks() []track.Track {
	return append([]track.Track(nil), q.tracks...)
}

// Effective returns a copy of the queue in playback order.
func (q *Queue) Effective() []track.Track {
	return append([]track.Track(nil), q.effective()...)
}

func (q *Queue) effective() []track.Track {
	if q.shuffle {
		return q.shuffled
	}
	return q.tracks
}

// At returns the track at effective position i.
func (q *Queue) At(i int) (track.Track, bool) {
	eff := q.effective()
	if i < 0 || i >= len(eff) {
		return track.Track{}, false
	}
	return eff[i], true
}

// Resolve locates id in the effective order. The stored index is the fallback when
// the id is not queued.
func (q *Queue) Resolve(id string) int {
	if i := track.IndexOf(q.effective(), id); i >= 0 {
		return i
	}
	return q.index
}

// Sync points the index at id when it is queued and reports whether it was found.
func (q *Queue) Sync(id string) bool {
	i := track.IndexOf(q.effective(), id)
	if i < 0 {
		return false
	}
	q.index = i
	return true
}

func permute(tracks []track.Track, rng *rand.Rand) []track.Track {
	out := append([]track.Track(nil), tracks...)
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
