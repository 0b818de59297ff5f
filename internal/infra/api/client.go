// Package api is the HTTP client for the track catalog service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/edumarques81/stellar-playback/internal/domain/track"
	"github.com/edumarques81/stellar-playback/internal/version"
)

const (
	// DefaultTimeout for HTTP requests
	DefaultTimeout = 15 * time.Second

	// DefaultLimit is the page size requested per category
	DefaultLimit = 50

	// DefaultPlaysDebounce coalesces repeated play-count increments for one track
	DefaultPlaysDebounce = 1500 * time.Millisecond

	// DefaultRateLimit in requests per second
	DefaultRateLimit = 10
)

// DefaultCategories are merged, in order, into the catalog.
var DefaultCategories = []string{"trending", "new", "popular"}

var (
	// ErrRateLimited indicates the server answered 429.
	ErrRateLimited = errors.New("rate limited")

	// ErrTemporaryFailure indicates a 5xx gateway style failure.
	ErrTemporaryFailure = errors.New("temporary failure")
)

// Client talks to the track API.
type Client struct {
	baseURL    string
	token      string
	categories []string
	limit      int
	debounce   time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
	wg      sync.WaitGroup
}

// Option is a functional option for configuring the client.
type Option func(*Client)

// WithToken sets the bearer token of the signed-in user.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithCategories sets the catalog categories to fetch.
func WithCategories(categories ...string) Option {
	return func(c *Client) {
		if len(categories) > 0 {
			c.categories = categories
		}
	}
}

// WithLimit sets the per-category page size.
func WithLimit(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.limit = n
		}
	}
}

// WithPlaysDebounce sets the play-count coalescing delay.
func WithPlaysDebounce(d time.Duration) Option {
	return func(c *Client) {
		c.debounce = d
	}
}

// WithRateLimit sets the request rate in requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		categories: DefaultCategories,
		limit:      DefaultLimit,
		debounce:   DefaultPlaysDebounce,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		pending:    make(map[string]*time.Timer),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// SignedIn reports whether requests carry a user session.
func (c *Client) SignedIn() bool {
	return c.token != ""
}

// tracksEnvelope is the wrapped form some endpoints return.
type tracksEnvelope struct {
	Tracks []track.Track `json:"tracks"`
}

// FetchCategory fetches one catalog category.
func (c *Client) FetchCategory(ctx context.Context, category string) ([]track.Track, error) {
	endpoint := fmt.Sprintf("%s/tracks/%s?limit=%d", c.baseURL, url.PathEscape(category), c.limit)

	body, err := c.do(ctx, http.MethodGet, endpoint)
	if err != nil {
		return nil, err
	}

	tracks, err := decodeTracks(body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", category, err)
	}

	log.Debug().Str("category", category).Int("count", len(tracks)).Msg("Fetched catalog category")
	return tracks, nil
}

// FetchCatalog fetches every configured category and merges them by id.
// Failed categories are skipped; an error is returned only when all fail.
func (c *Client) FetchCatalog(ctx context.Context) ([]track.Track, error) {
	feeds := make([][]track.Track, 0, len(c.categories))
	var errs []error

	for _, cat := range c.categories {
		tracks, err := c.FetchCategory(ctx, cat)
		if err != nil {
			log.Warn().Err(err).Str("category", cat).Msg("Catalog category fetch failed")
			errs = append(errs, err)
			continue
		}
		feeds = append(feeds, tracks)
	}

	if len(feeds) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("fetch catalog: %w", errors.Join(errs...))
	}

	merged := track.Merge(feeds...)
	log.Info().Int("tracks", len(merged)).Int("categories", len(feeds)).Msg("Catalog fetched")
	return merged, nil
}

// IncrementPlays schedules a play-count increment for id. Repeats within the
// debounce window collapse into one request.
func (c *Client) IncrementPlays(id string) {
	if id == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if t, ok := c.pending[id]; ok && t.Stop() {
		t.Reset(c.debounce)
		return
	}

	c.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(c.debounce, func() {
		defer c.wg.Done()

		c.mu.Lock()
		if c.pending[id] == t {
			delete(c.pending, id)
		}
		c.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
		defer cancel()
		if err := c.postPlays(ctx, id); err != nil {
			log.Warn().Err(err).Str("track", id).Msg("Play count increment failed")
		}
	})
	c.pending[id] = t
}

func (c *Client) postPlays(ctx context.Context, id string) error {
	endpoint := fmt.Sprintf("%s/tracks/%s/plays", c.baseURL, url.PathEscape(id))
	_, err := c.do(ctx, http.MethodPost, endpoint)
	return err
}

// Close drops unsent play-count increments and waits for in-flight ones.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	for id, t := range c.pending {
		if t.Stop() {
			c.wg.Done()
		}
		delete(c.pending, id)
	}
	c.mu.Unlock()

	c.wg.Wait()
}

func (c *Client) do(ctx context.Context, method, endpoint string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode == http.StatusServiceUnavailable,
		resp.StatusCode == http.StatusBadGateway,
		resp.StatusCode == http.StatusGatewayTimeout:
		return nil, ErrTemporaryFailure
	default:
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

// decodeTracks accepts either a bare array or a {"tracks": [...]} envelope.
func decodeTracks(body []byte) ([]track.Track, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var tracks []track.Track
		if err := json.Unmarshal(body, &tracks); err != nil {
			return nil, err
		}
		return tracks, nil
	}

	var env tracksEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	return env.Tracks, nil
}
