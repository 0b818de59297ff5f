// Package track defines the catalog data model shared by the playback engine and its adapters.
package track

import (
	"strings"
	"time"
)

const (
	// LiveDuration marks an unbounded live stream.
	LiveDuration = -1

	// AIGeneratedPrefix marks identifiers of AI-generated tracks.
	AIGeneratedPrefix = "ai-"
)

// Artist is the artist reference carried by a track.
type Artist struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Username  string `json:"username,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// Track is an immutable catalog entry.
type Track struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Artist       Artist    `json:"artist"`
	AudioURL     string    `json:"audioUrl"`
	CoverURL     string    `json:"coverUrl,omitempty"`
	Duration     float64   `json:"duration"` // seconds, LiveDuration for streams
	Genres       []string  `json:"genres,omitempty"`
	LikeCount    int       `json:"likeCount"`
	CommentCount int       `json:"commentCount"`
	CreatedAt    time.Time `json:"createdAt"`
}

// IsAIGenerated reports whether the track carries the AI provenance prefix.
func (t Track) IsAIGenerated() bool {
	return strings.HasPrefix(t.ID, AIGeneratedPrefix)
}

// IsLive reports whether the track is an unbounded live stream.
func (t Track) IsLive() bool {
	return t.Duration < 0
}

// HasSource reports whether the track has a playable media URL.
func (t Track) HasSource() bool {
	return strings.TrimSpace(t.AudioURL) != ""
}

// SharesGenre reports whether t and other have at least one genre tag in common.
// Tags are compared case-insensitively.
func (t Track) SharesGenre(other Track) bool {
	if len(t.Genres) == 0 || len(other.Genres) == 0 {
		return false
	}
	seen := make(map[string]struct{}, len(t.Genres))
	for _, g := range t.Genres {
		seen[strings.ToLower(strings.TrimSpace(g))] = struct{}{}
	}
	for _, g := range other.Genres {
		if _, ok := seen[strings.ToLower(strings.TrimSpace(g))]; ok {
			return true
		}
	}
	return false
}

// IDs returns the identifiers of tracks in order.
func IDs(tracks []Track) []string {
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	return ids
}

// IndexOf returns the position of the track with the given id, or -1.
func IndexOf(tracks []Track, id string) int {
	if id == "" {
		return -1
	}
	for i, t := range tracks {
		if t.ID == id {
			return i
		}
	}
	return -1
}
