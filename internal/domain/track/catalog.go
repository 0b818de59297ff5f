package track

import "sync"

// Merge concatenates feeds and drops duplicate identifiers.
// The first occurrence of an id wins and feed order is preserved.
func Merge(feeds ...[]Track) []Track {
	total := 0
	for _, f := range feeds {
		total += len(f)
	}

	seen := make(map[string]struct{}, total)
	merged := make([]Track, 0, total)
	for _, feed := range feeds {
		for _, t := range feed {
			if t.ID == "" {
				continue
			}
			if _, dup := seen[t.ID]; dup {
				continue
			}
			seen[t.ID] = struct{}{}
			merged = append(merged, t)
		}
	}
	return merged
}

// Catalog is the pool of known tracks used for automatic selection.
// It is only ever replaced wholesale.
// It is safe for concurrent access.
type Catalog struct {
	mu     sync.RWMutex
	tracks []Track
}

// NewCatalog creates a catalog from the given tracks, deduplicated by id.
func NewCatalog(tracks ...Track) *Catalog {
	return &Catalog{tracks: Merge(tracks)}
}

// Replace swaps the catalog contents for the deduplicated tracks.
func (c *Catalog) Replace(tracks []Track) {
	merged := Merge(tracks)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracks = merged
}

// Tracks returns a copy of the catalog contents.
func (c *Catalog) Tracks() []Track {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]Track, len(c.tracks))
	copy(result, c.tracks)
	return result
}

// First returns the first catalog track.
func (c *Catalog) First() (Track, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.tracks) == 0 {
		return Track{}, false
	}
	return c.tracks[0], true
}

// Len returns the number of tracks.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tracks)
}
