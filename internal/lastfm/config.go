// Package lastfm provides Last.fm API integration for track play counts.
package lastfm

import (
	"errors"
	"time"

	"github.com/justestif/go-chart-quiz/internal/config"
)

// ErrMissingAPIKey is returned when no Last.fm API key is configured.
var ErrMissingAPIKey = errors.New("missing LASTFM_API_KEY")

// Config holds Last.fm API configuration.
type Config struct {
	APIKey  string
	Timeout time.Duration
}

// NewConfig builds a Config from the application settings.
// Returns ErrMissingAPIKey if the key is empty.
func NewConfig(app config.LastFMConfig) (*Config, error) {
	if app.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	return &Config{APIKey: app.APIKey, Timeout: 10 * time.Second}, nil
}
