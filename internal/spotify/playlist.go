package spotify

import (
	"context"
	"errors"
	"fmt"

	"github.com/zmb3/spotify/v2"
)

const maxTracksPerRequest = 100

// EnsurePlaylist returns the ID of the current user's playlist named exactly name,
// creating it when no playlist on any page matches. The comparison is case-sensitive.
func (c *Client) EnsurePlaylist(ctx context.Context, name, description string, public bool) (string, error) {
	id, err := c.findPlaylist(ctx, name)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}
	return c.CreatePlaylist(ctx, name, description, public)
}

// findPlaylist walks every page of the user's playlists looking for an exact name.
// Returns "" when there is no match.
func (c *Client) findPlaylist(ctx context.Context, name string) (string, error) {
	page, err := c.api.CurrentUsersPlaylists(ctx, spotify.Limit(50))
	if err != nil {
		return "", classify("listing playlists", err)
	}

	for {
		for _, p := range page.Playlists {
			if p.Name == name {
				return p.ID.String(), nil
			}
		}

		err = c.api.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			return "", nil
		}
		if err != nil {
			return "", classify("listing playlists", err)
		}
	}
}

// CreatePlaylist creates a new playlist for the current user.
// Returns the playlist ID.
func (c *Client) CreatePlaylist(ctx context.Context, name, description string, public bool) (string, error) {
	userID, err := c.UserID(ctx)
	if err != nil {
		return "", err
	}

	playlist, err := c.api.CreatePlaylistForUser(ctx, userID, name, description, public, false)
	if err != nil {
		return "", classify("creating playlist", err)
	}

	return playlist.ID.String(), nil
}

// AddTracksToPlaylist adds tracks to a playlist, handling batching for large sets.
// Spotify allows max 100 tracks per request.
func (c *Client) AddTracksToPlaylist(ctx context.Context, playlistID string, trackIDs ...string) error {
	if len(trackIDs) == 0 {
		return nil
	}

	ids := make([]spotify.ID, len(trackIDs))
	for i, id := range trackIDs {
		ids[i] = spotify.ID(id)
	}

	for i := 0; i < len(ids); i += maxTracksPerRequest {
		end := min(i+maxTracksPerRequest, len(ids))
		batch := ids[i:end]

		if _, err := c.api.AddTracksToPlaylist(ctx, spotify.ID(playlistID), batch...); err != nil {
			return classify(fmt.Sprintf("adding tracks (batch %d-%d)", i+1, end), err)
		}
	}

	return nil
}
