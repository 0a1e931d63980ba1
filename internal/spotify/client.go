// Package spotify provides a wrapper around the Spotify Web API.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"

	"github.com/justestif/go-chart-quiz/internal/apperr"
)

// Common errors.
var (
	ErrTrackNotFound  = fmt.Errorf("%w: no catalog track", apperr.ErrNotFound)
	ErrArtistNotFound = fmt.Errorf("%w: no catalog artist", apperr.ErrNotFound)
	ErrDeviceNotFound = fmt.Errorf("%w: no playback device", apperr.ErrNotFound)
)

// Client wraps the Spotify API client with convenience methods.
type Client struct {
	api *spotify.Client
}

// New creates a new Spotify client wrapper.
// The underlying client should already be authenticated.
func New(api *spotify.Client) *Client {
	return &Client{api: api}
}

// UserID returns the current user's Spotify ID.
func (c *Client) UserID(ctx context.Context) (string, error) {
	user, err := c.api.CurrentUser(ctx)
	if err != nil {
		return "", classify("getting current user", err)
	}
	return user.ID, nil
}

// classify wraps an API error with the apperr kind callers branch on.
// Authorization failures become ErrAuth; everything else is ErrTransient.
func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%s: %w: %w", op, apperr.ErrAuth, err)
	}

	if status, ok := apiStatus(err); ok && (status == http.StatusUnauthorized || status == http.StatusForbidden) {
		return fmt.Errorf("%s: %w: %w", op, apperr.ErrAuth, err)
	}

	return fmt.Errorf("%s: %w: %w", op, apperr.ErrTransient, err)
}

// apiStatus extracts the HTTP status carried by a Spotify API error.
func apiStatus(err error) (int, bool) {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status, true
	}
	var apiErrPtr *spotify.Error
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Status, true
	}
	return 0, false
}
