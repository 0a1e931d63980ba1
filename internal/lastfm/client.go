package lastfm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/justestif/go-chart-quiz/internal/apperr"
)

const (
	baseURL   = "https://ws.audioscrobbler.com/2.0/"
	userAgent = "chart-quiz/1.0"
)

// Last.fm API error codes.
const (
	errCodeInvalidParams = 6
	errCodeInvalidAPIKey = 10
	errCodeRateLimited   = 29
)

// Sentinel errors.
var (
	// ErrRateLimited is returned when the API rate limit is exceeded after retries.
	ErrRateLimited = fmt.Errorf("%w: rate limit exceeded", apperr.ErrTransient)

	// ErrInvalidAPIKey is returned when the API key is invalid.
	ErrInvalidAPIKey = fmt.Errorf("%w: invalid API key", apperr.ErrAuth)

	// ErrNotFound is returned when Last.fm has no such track.
	ErrNotFound = fmt.Errorf("%w: track not on Last.fm", apperr.ErrNotFound)
)

// Client is a Last.fm API client with caching and rate limiting.
type Client struct {
	apiKey      string
	httpClient  *http.Client
	baseURL     string
	retryDelays []time.Duration

	// In-memory cache: key = "{artist}:{track}"
	cache   map[string]int
	cacheMu sync.RWMutex
}

// NewClient creates a new Last.fm API client from the provided configuration.
func NewClient(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		apiKey: cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:     baseURL,
		retryDelays: []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second},
		cache:       make(map[string]int),
	}
}

// PlayCount returns the total Last.fm scrobble count for a track.
// Results are cached in memory. Returns ErrNotFound when Last.fm does not know the track.
func (c *Client) PlayCount(ctx context.Context, artist, track string) (int, error) {
	cacheKey := strings.ToLower(artist) + ":" + strings.ToLower(track)

	// Check cache
	c.cacheMu.RLock()
	if cached, ok := c.cache[cacheKey]; ok {
		c.cacheMu.RUnlock()
		return cached, nil
	}
	c.cacheMu.RUnlock()

	params := url.Values{
		"method":      {"track.getInfo"},
		"artist":      {artist},
		"track":       {track},
		"autocorrect": {"1"},
		"format":      {"json"},
		"api_key":     {c.apiKey},
	}

	body, err := c.doRequest(ctx, params)
	if err != nil {
		return 0, fmt.Errorf("fetching track info for %q by %q: %w", track, artist, err)
	}

	var resp trackInfoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("parsing track info response: %w", err)
	}
	if resp.Track.PlayCount == "" {
		return 0, fmt.Errorf("%q by %q: %w", track, artist, ErrNotFound)
	}

	count, err := strconv.Atoi(resp.Track.PlayCount)
	if err != nil {
		return 0, fmt.Errorf("parsing play count %q: %w", resp.Track.PlayCount, err)
	}

	// Cache result
	c.cacheMu.Lock()
	c.cache[cacheKey] = count
	c.cacheMu.Unlock()

	return count, nil
}

// doRequest performs an HTTP GET request with retry on rate limit.
// Retries once per configured delay (1s, 2s, 4s by default).
func (c *Client) doRequest(ctx context.Context, params url.Values) ([]byte, error) {
	reqURL := c.baseURL + "?" + params.Encode()

	var lastErr error
	for attempt := 0; attempt <= len(c.retryDelays); attempt++ {
		// Wait before retry (skip on first attempt)
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelays[attempt-1]):
			}
		}

		body, err := c.doSingleRequest(ctx, reqURL)
		if err == nil {
			return body, nil
		}

		if errors.Is(err, ErrRateLimited) {
			lastErr = err
			continue
		}

		// Non-retryable error
		return nil, err
	}

	return nil, lastErr
}

// doSingleRequest performs a single HTTP request.
func (c *Client) doSingleRequest(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: executing request: %w", apperr.ErrTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response body: %w", apperr.ErrTransient, err)
	}

	// Check for API error in response
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != 0 {
		switch apiErr.Error {
		case errCodeRateLimited:
			return nil, ErrRateLimited
		case errCodeInvalidAPIKey:
			return nil, ErrInvalidAPIKey
		case errCodeInvalidParams:
			return nil, fmt.Errorf("%s: %w", apiErr.Message, ErrNotFound)
		default:
			return nil, fmt.Errorf("%w: API error %d: %s", apperr.ErrTransient, apiErr.Error, apiErr.Message)
		}
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: unexpected status %d", apperr.ErrTransient, resp.StatusCode)
	}

	return body, nil
}
