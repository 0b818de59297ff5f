// Package history keeps the local listening history and likes that feed automatic
// track selection.
package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-playback/internal/domain/track"
)

const (
	// DefaultMaxEntries bounds the stored history.
	DefaultMaxEntries = 1000

	// duplicateWindow folds repeated loads of one track into one entry.
	duplicateWindow = 5 * time.Second

	fileName = "listening_history.json"

	likeWeight  = 10
	genreWeight = 2
)

// Entry records one play of a track.
type Entry struct {
	ID        string    `json:"id"`
	TrackID   string    `json:"trackId"`
	Title     string    `json:"title"`
	Artist    string    `json:"artist"`
	Genres    []string  `json:"genres,omitempty"`
	PlayedAt  time.Time `json:"playedAt"`
	PlayCount int       `json:"playCount"`
}

type snapshot struct {
	Entries []Entry              `json:"entries"`
	Likes   map[string]time.Time `json:"likes"`
}

// Store is a JSON-file backed history and likes store.
type Store struct {
	filePath   string
	maxEntries int
	now        func() time.Time

	mu      sync.RWMutex
	entries []Entry
	likes   map[string]time.Time
	seq     uint64

	saveMu  sync.Mutex
	written uint64
	wg      sync.WaitGroup
}

// NewStore creates a store under dataDir and loads any saved history.
// An empty dataDir keeps history in memory only.
func NewStore(dataDir string) *Store {
	s := &Store{
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
		entries:    []Entry{},
		likes:      make(map[string]time.Time),
	}
	if dataDir != "" {
		s.filePath = filepath.Join(dataDir, fileName)
		s.load()
	}
	return s
}

// RecordPlay records that t was loaded for playback.
func (s *Store) RecordPlay(t track.Track) {
	if t.ID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for i := len(s.entries) - 1; i >= 0 && i >= len(s.entries)-5; i-- {
		if s.entries[i].TrackID == t.ID && now.Sub(s.entries[i].PlayedAt) < duplicateWindow {
			s.entries[i].PlayedAt = now
			s.entries[i].PlayCount++
			log.Debug().Str("track", t.ID).Msg("Updated existing history entry")
			s.saveAsync()
			return
		}
	}

	s.entries = append(s.entries, Entry{
		ID:        uuid.New().String(),
		TrackID:   t.ID,
		Title:     t.Title,
		Artist:    t.Artist.Name,
		Genres:    append([]string(nil), t.Genres...),
		PlayedAt:  now,
		PlayCount: 1,
	})

	if len(s.entries) > s.maxEntries {
		s.entries = s.entries[len(s.entries)-s.maxEntries:]
	}

	log.Debug().Str("track", t.ID).Str("title", t.Title).Msg("Recorded play history")
	s.saveAsync()
}

// RecentTrackIDs returns up to n distinct track ids, most recently played first.
func (s *Store) RecentTrackIDs(n int) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 {
		return nil
	}

	seen := make(map[string]struct{}, n)
	out := make([]string, 0, n)
	for i := len(s.entries) - 1; i >= 0 && len(out) < n; i-- {
		id := s.entries[i].TrackID
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Rank returns the candidates the listener liked or played, best first.
// Likes weigh most, then play count; sharing a genre with current adds a bonus.
func (s *Store) Rank(current *track.Track, candidates []track.Track) []track.Track {
	s.mu.RLock()
	plays := make(map[string]int, len(s.entries))
	for _, e := range s.entries {
		plays[e.TrackID] += e.PlayCount
	}
	liked := make(map[string]bool, len(s.likes))
	for id := range s.likes {
		liked[id] = true
	}
	s.mu.RUnlock()

	type scored struct {
		t     track.Track
		score int
	}
	var ranked []scored
	for _, c := range candidates {
		if !liked[c.ID] && plays[c.ID] == 0 {
			continue
		}
		score := plays[c.ID]
		if liked[c.ID] {
			score += likeWeight
		}
		if current != nil && current.SharesGenre(c) {
			score += genreWeight
		}
		ranked = append(ranked, scored{t: c, score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	out := make([]track.Track, len(ranked))
	for i, r := range ranked {
		out[i] = r.t
	}
	return out
}

// Like marks a track as liked.
func (s *Store) Like(trackID string) {
	if trackID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.likes[trackID]; ok {
		return
	}
	s.likes[trackID] = s.now()
	log.Info().Str("track", trackID).Msg("Track liked")
	s.saveAsync()
}

// Unlike removes a like.
func (s *Store) Unlike(trackID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.likes[trackID]; !ok {
		return
	}
	delete(s.likes, trackID)
	log.Info().Str("track", trackID).Msg("Track unliked")
	s.saveAsync()
}

// IsLiked reports whether the track is liked.
func (s *Store) IsLiked(trackID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.likes[trackID]
	return ok
}

// PlayCount returns the total recorded plays of a track.
func (s *Store) PlayCount(trackID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, e := range s.entries {
		if e.TrackID == trackID {
			count += e.PlayCount
		}
	}
	return count
}

// Clear removes all history and likes.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = []Entry{}
	s.likes = make(map[string]time.Time)
	s.saveAsync()
	log.Info().Msg("Listening history cleared")
}

// Stats returns statistics about the history.
func (s *Store) Stats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	distinct := make(map[string]struct{})
	for _, e := range s.entries {
		distinct[e.TrackID] = struct{}{}
	}

	return map[string]interface{}{
		"totalEntries":   len(s.entries),
		"distinctTracks": len(distinct),
		"likes":          len(s.likes),
	}
}

// Close waits for pending writes.
func (s *Store) Close() {
	s.wg.Wait()
}

func (s *Store) load() {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("file", s.filePath).Msg("Failed to read listening history")
		}
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Warn().Err(err).Msg("Failed to parse listening history")
		return
	}

	if snap.Entries != nil {
		s.entries = snap.Entries
	}
	if snap.Likes != nil {
		s.likes = snap.Likes
	}
	log.Info().Int("entries", len(s.entries)).Int("likes", len(s.likes)).Msg("Loaded listening history")
}

// saveAsync writes a copy of the current state in the background. Caller holds s.mu.
func (s *Store) saveAsync() {
	if s.filePath == "" {
		return
	}

	snap := snapshot{
		Entries: make([]Entry, len(s.entries)),
		Likes:   make(map[string]time.Time, len(s.likes)),
	}
	copy(snap.Entries, s.entries)
	for k, v := range s.likes {
		snap.Likes[k] = v
	}

	s.seq++
	seq := s.seq

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.write(seq, snap)
	}()
}

// write persists snap unless a newer snapshot already landed.
func (s *Store) write(seq uint64, snap snapshot) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	if seq < s.written {
		return
	}
	s.written = seq

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal listening history")
		return
	}

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		log.Error().Err(err).Msg("Failed to create history directory")
		return
	}

	tmp := s.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		log.Error().Err(err).Msg("Failed to save listening history")
		return
	}
	if err := os.Rename(tmp, s.filePath); err != nil {
		log.Error().Err(err).Msg("Failed to save listening history")
	}
}
