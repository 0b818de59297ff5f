package player

import (
	"math"

	"github.com/edumarques81/stellar-playback/internal/domain/track"
)

// Status constants for player state
const (
	StatusPlay  = "play"
	StatusPause = "pause"
	StatusStop  = "stop"
)

// PlaybackState is a value snapshot of the engine's playback state.
type PlaybackState struct {
	Track       *track.Track
	Playing     bool
	Volume      float64 // 0-1
	CurrentTime float64 // seconds
	Duration    float64 // seconds, 0 until metadata is known
	Loading     bool
	Error       *PlaybackError
	Muted       bool
	Rate        float64
}

// NewState creates a player state with default values.
func NewState() PlaybackState {
	return PlaybackState{
		Volume: 1,
		Rate:   1,
	}
}

// Status returns play, pause or stop.
func (s PlaybackState) Status() string {
	switch {
	case s.Track == nil:
		return StatusStop
	case s.Playing:
		return StatusPlay
	case s.CurrentTime == 0 && !s.Loading:
		return StatusStop
	default:
		return StatusPause
	}
}

// Clone returns a deep copy.
func (s PlaybackState) Clone() PlaybackState {
	out := s
	if s.Track != nil {
		t := *s.Track
		t.Genres = append([]string(nil), s.Track.Genres...)
		out.Track = &t
	}
	if s.Error != nil {
		e := *s.Error
		out.Error = &e
	}
	return out
}

// ToJSON returns the state as a map suitable for the pushState event.
// Positions are reported in milliseconds.
func (s PlaybackState) ToJSON() map[string]interface{} {
	out := map[string]interface{}{
		"status":   s.Status(),
		"playing":  s.Playing,
		"seek":     int64(math.Round(s.CurrentTime * 1000)),
		"duration": int64(math.Round(s.Duration * 1000)),
		"volume":   s.Volume,
		"mute":     s.Muted,
		"rate":     s.Rate,
		"loading":  s.Loading,
		"error":    s.Error,
	}

	if t := s.Track; t != nil {
		out["trackId"] = t.ID
		out["title"] = t.Title
		out["artist"] = t.Artist.Name
		out["albumart"] = t.CoverURL
		out["uri"] = t.AudioURL
		out["live"] = t.IsLive()
		out["aiGenerated"] = t.IsAIGenerated()
	} else {
		out["trackId"] = ""
		out["title"] = ""
		out["artist"] = ""
		out["albumart"] = ""
		out["uri"] = ""
	}
	return out
}
