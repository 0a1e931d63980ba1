// Package wiki looks up encyclopedia pages through the MediaWiki action API.
package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/justestif/go-chart-quiz/internal/apperr"
)

const (
	// DefaultEndpoint is the English Wikipedia API.
	DefaultEndpoint = "https://en.wikipedia.org/w/api.php"

	userAgent = "chart-quiz/1.0"
)

// ErrNoPage is returned when a search matches no page.
var ErrNoPage = fmt.Errorf("%w: no wiki page", apperr.ErrNotFound)

// Client queries a MediaWiki API endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a client for endpoint, or DefaultEndpoint when empty.
func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type queryResponse struct {
	Query struct {
		Pages []struct {
			PageID  int    `json:"pageid"`
			Title   string `json:"title"`
			FullURL string `json:"fullurl"`
		} `json:"pages"`
	} `json:"query"`
	Error *struct {
		Code string `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
}

// PageURL returns the canonical URL of the top search hit for query.
func (c *Client) PageURL(ctx context.Context, query string) (string, error) {
	params := url.Values{
		"action":        {"query"},
		"format":        {"json"},
		"formatversion": {"2"},
		"generator":     {"search"},
		"gsrsearch":     {query},
		"gsrlimit":      {"1"},
		"prop":          {"info"},
		"inprop":        {"url"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: searching %q: %w", apperr.ErrTransient, query, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: searching %q: status %d", apperr.ErrTransient, query, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading response body: %w", apperr.ErrTransient, err)
	}

	var qr queryResponse
	if err := json.Unmarshal(body, &qr); err != nil {
		return "", fmt.Errorf("parsing search response: %w", err)
	}
	if qr.Error != nil {
		return "", fmt.Errorf("%w: API error %s: %s", apperr.ErrTransient, qr.Error.Code, qr.Error.Info)
	}

	for _, p := range qr.Query.Pages {
		if p.FullURL != "" {
			return p.FullURL, nil
		}
	}
	return "", fmt.Errorf("%q: %w", query, ErrNoPage)
}
