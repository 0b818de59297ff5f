package player

import (
	"math/rand/v2"
	"time"

	"github.com/edumarques81/stellar-playback/internal/domain/track"
)

// Config holds the engine's timing and selection settings.
type Config struct {
	// LoadTimeout bounds the wait for a loaded source to become playable.
	LoadTimeout time.Duration
	// WatchdogInterval is the period of the playback self-check.
	WatchdogInterval time.Duration
	// StallResumeDelay is the pause between stopping a stalled track and resuming it.
	StallResumeDelay time.Duration
	// ErrorDisplay is how long a stored error stays visible.
	ErrorDisplay time.Duration
	// NearEndMargin is the distance from the end, in seconds, where a frozen position is
	// not treated as a stall.
	NearEndMargin float64
	// RecentExclusion is how many recently played ids the selector skips.
	RecentExclusion int
	// CatalogRefreshTimeout bounds an on-demand catalog fetch.
	CatalogRefreshTimeout time.Duration
	// PermissionTimeout bounds a notification permission prompt.
	PermissionTimeout time.Duration
	// TelemetrySource tags every telemetry event.
	TelemetrySource string

	Selector SelectorConfig
}

// DefaultConfig returns the standard engine settings.
func DefaultConfig() Config {
	return Config{
		LoadTimeout:           10 * time.Second,
		WatchdogInterval:      3 * time.Second,
		StallResumeDelay:      500 * time.Millisecond,
		ErrorDisplay:          5 * time.Second,
		NearEndMargin:         2,
		RecentExclusion:       5,
		CatalogRefreshTimeout: 15 * time.Second,
		PermissionTimeout:     time.Minute,
		TelemetrySource:       "web_player",
		Selector:              DefaultSelectorConfig(),
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig replaces the engine settings.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// WithTelemetry sets the telemetry sink.
func WithTelemetry(t Telemetry) Option {
	return func(e *Engine) {
		e.telemetry = t
	}
}

// WithPlayCounter sets the play-count recorder.
func WithPlayCounter(p PlayCounter) Option {
	return func(e *Engine) {
		e.plays = p
	}
}

// WithCatalogSource sets where the catalog is refreshed from.
func WithCatalogSource(s CatalogSource) Option {
	return func(e *Engine) {
		e.source = s
	}
}

// WithRecommender sets the listening history used by the selector.
func WithRecommender(r Recommender) Option {
	return func(e *Engine) {
		e.recommender = r
	}
}

// WithSession sets the signed-in check.
func WithSession(s SessionInfo) Option {
	return func(e *Engine) {
		e.session = s
	}
}

// WithNotifier sets the notification bridge.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

// WithURLRewriter sets the media URL rewriter.
func WithURLRewriter(r URLRewriter) Option {
	return func(e *Engine) {
		e.rewriter = r
	}
}

// WithRand sets the random source for shuffling and selection.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) {
		e.rng = r
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithCatalog seeds the catalog.
func WithCatalog(tracks []track.Track) Option {
	return func(e *Engine) {
		e.catalog.Replace(tracks)
	}
}
