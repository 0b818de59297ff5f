// Package telemetry delivers playback events to the track API.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/edumarques81/stellar-playback/internal/domain/player"
	"github.com/edumarques81/stellar-playback/internal/version"
)

const (
	// DefaultQueueSize bounds undelivered events
	DefaultQueueSize = 256

	// DefaultTimeout for one delivery
	DefaultTimeout = 5 * time.Second

	// DefaultRateLimit in requests per second
	DefaultRateLimit = 5
)

// payload is the wire body of one event.
type payload struct {
	player.TrackEvent
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Emitter is a fire-and-forget event sink. Events are delivered one at a time in
// the order Send was called.
type Emitter struct {
	baseURL    string
	token      string
	sessionID  string
	httpClient *http.Client
	limiter    *rate.Limiter
	now        func() time.Time

	queue chan payload

	mu      sync.Mutex
	running bool
	stopped bool
	stopCh  chan struct{}
}

// Option is a functional option for configuring the emitter.
type Option func(*Emitter)

// WithToken sets the bearer token sent with each event.
func WithToken(token string) Option {
	return func(e *Emitter) {
		e.token = token
	}
}

// WithSessionID overrides the generated listening session id.
func WithSessionID(id string) Option {
	return func(e *Emitter) {
		e.sessionID = id
	}
}

// WithQueueSize sets how many events may wait for delivery.
func WithQueueSize(n int) Option {
	return func(e *Emitter) {
		if n > 0 {
			e.queue = make(chan payload, n)
		}
	}
}

// WithRateLimit sets the delivery rate in requests per second.
func WithRateLimit(rps float64) Option {
	return func(e *Emitter) {
		if rps > 0 {
			e.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Emitter) {
		e.httpClient = client
	}
}

// NewEmitter creates an emitter posting to baseURL.
func NewEmitter(baseURL string, opts ...Option) *Emitter {
	e := &Emitter{
		baseURL:    strings.TrimRight(baseURL, "/"),
		sessionID:  uuid.NewString(),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		now:        time.Now,
		queue:      make(chan payload, DefaultQueueSize),
		stopCh:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// SessionID returns the listening session id attached to every event.
func (e *Emitter) SessionID() string {
	return e.sessionID
}

// Send queues ev for delivery. It never blocks; events are dropped when the
// queue is full or the emitter has stopped.
func (e *Emitter) Send(ev player.TrackEvent) {
	e.mu.Lock()
	stopped := e.stopped
	e.mu.Unlock()
	if stopped {
		return
	}

	select {
	case e.queue <- payload{TrackEvent: ev, SessionID: e.sessionID, Timestamp: e.now().UTC()}:
	default:
		log.Warn().Str("track", ev.TrackID).Str("event", string(ev.Type)).Msg("Telemetry queue full, dropping event")
	}
}

// Start delivers queued events until ctx is cancelled or Stop is called.
func (e *Emitter) Start(ctx context.Context) {
	e.mu.Lock()
	if e.running || e.stopped {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.mu.Unlock()

	log.Info().Str("session", e.sessionID).Msg("Telemetry emitter started")

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Telemetry emitter stopping (context cancelled)")
			return
		case <-e.stopCh:
			log.Info().Int("dropped", len(e.queue)).Msg("Telemetry emitter stopping (stop requested)")
			return
		case p := <-e.queue:
			if err := e.deliver(ctx, p); err != nil {
				log.Debug().Err(err).Str("track", p.TrackID).Str("event", string(p.Type)).Msg("Telemetry delivery failed")
			}
		}
	}
}

// Stop ends delivery. Undelivered events are dropped.
func (e *Emitter) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return
	}
	e.stopped = true
	close(e.stopCh)
}

func (e *Emitter) deliver(ctx context.Context, p payload) error {
	if err := e.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	endpoint := fmt.Sprintf("%s/tracks/%s/events", e.baseURL, url.PathEscape(p.TrackID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return nil
}
