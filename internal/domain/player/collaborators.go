package player

import (
	"context"

	"github.com/edumarques81/stellar-playback/internal/domain/track"
	"github.com/edumarques81/stellar-playback/internal/media"
)

// Media is the playback resource driven by the engine.
// *media.Element implements it.
type Media interface {
	SetListener(l media.Listener)
	SetSource(url string) (uint64, error)
	Load() error
	AwaitReady(ctx context.Context, token uint64) error
	PlayNow() error
	Pause() error
	Seek(seconds float64) error
	SetVolume(v float64) error
	SetRate(r float64) error
	Source() string
	Snapshot() media.Snapshot
	Close() error
}

// EventType names a telemetry event.
type EventType string

const (
	EventPlayStart    EventType = "play_start"
	EventPlayProgress EventType = "play_progress"
	EventPlayComplete EventType = "play_complete"
)

// TrackEvent is a playback telemetry record.
type TrackEvent struct {
	Type        EventType `json:"event"`
	TrackID     string    `json:"track_id"`
	AIGenerated bool      `json:"is_ai_generated"`
	PositionMs  int64     `json:"position_ms"`
	DurationMs  int64     `json:"duration_ms"`
	ProgressPct int       `json:"progress_pct"`
	Source      string    `json:"source"`
}

// Telemetry receives playback events. Send must not block; events for one track must be
// delivered in the order they were sent.
type Telemetry interface {
	Send(ev TrackEvent)
}

// PlayCounter records a play of a track. Calls are fire-and-forget.
type PlayCounter interface {
	IncrementPlays(trackID string)
}

// CatalogSource fetches the merged catalog.
type CatalogSource interface {
	FetchCatalog(ctx context.Context) ([]track.Track, error)
}

// Recommender supplies listening history for automatic selection.
type Recommender interface {
	// RecentTrackIDs returns up to n most recently played ids, newest first.
	RecentTrackIDs(n int) []string
	// Rank returns the candidates the user interacted with, best first.
	Rank(current *track.Track, candidates []track.Track) []track.Track
	// RecordPlay notes that t was loaded for playback.
	RecordPlay(t track.Track)
}

// SessionInfo reports whether a user is signed in.
type SessionInfo interface {
	SignedIn() bool
}

// URLRewriter maps a media URL to the URL actually loaded (e.g. a CDN edge).
type URLRewriter interface {
	Rewrite(url string) string
}

// Permission is a notification permission answer.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// NowPlaying is the payload of a playback notification.
type NowPlaying struct {
	TrackID  string  `json:"trackId"`
	Title    string  `json:"title"`
	Artist   string  `json:"artist"`
	CoverURL string  `json:"coverUrl,omitempty"`
	Playing  bool    `json:"playing"`
	Position float64 `json:"position"`
	Duration float64 `json:"duration"`
}

// Notifier delivers playback notifications once permission is granted.
type Notifier interface {
	RequestPermission(ctx context.Context) (Permission, error)
	Post(np NowPlaying) error
}

// SessionState is the persisted UI state.
type SessionState struct {
	Index   int        `json:"index"`
	Playing bool       `json:"playing"`
	Volume  float64    `json:"volume"`
	Shuffle bool       `json:"shuffle"`
	Repeat  RepeatMode `json:"repeat"`
}
