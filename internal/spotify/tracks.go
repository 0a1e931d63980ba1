package spotify

import (
	"context"
	"fmt"
	"strings"

	"github.com/zmb3/spotify/v2"
)

// TrackQuery builds the field-filtered search query for a song by an artist.
func TrackQuery(song, artist string) string {
	return "artist:" + artist + " AND track:" + song
}

// Resolve searches the catalog for song by artist and returns the first match.
// Inputs are expected to be normalized already. Returns ErrTrackNotFound when the
// search comes back empty; there is no fuzzy fallback.
func (c *Client) Resolve(ctx context.Context, song, artist, market string) (*ResolvedTrack, error) {
	opts := []spotify.RequestOption{spotify.Limit(1)}
	if market != "" {
		opts = append(opts, spotify.Market(market))
	}

	result, err := c.api.Search(ctx, TrackQuery(song, artist), spotify.SearchTypeTrack, opts...)
	if err != nil {
		return nil, classify("searching tracks", err)
	}
	if result.Tracks == nil || len(result.Tracks.Tracks) == 0 || result.Tracks.Tracks[0].ID == "" {
		return nil, fmt.Errorf("%q by %q: %w", song, artist, ErrTrackNotFound)
	}

	track := convertTrack(result.Tracks.Tracks[0])
	return &track, nil
}

// SearchArtist returns the first catalog artist matching name.
func (c *Client) SearchArtist(ctx context.Context, name string) (*Artist, error) {
	result, err := c.api.Search(ctx, "artist:"+name, spotify.SearchTypeArtist, spotify.Limit(1))
	if err != nil {
		return nil, classify("searching artists", err)
	}
	if result.Artists == nil || len(result.Artists.Artists) == 0 || result.Artists.Artists[0].ID == "" {
		return nil, fmt.Errorf("%q: %w", name, ErrArtistNotFound)
	}

	found := result.Artists.Artists[0]
	return &Artist{ID: found.ID.String(), Name: found.Name}, nil
}

// ArtistTopTracks returns the artist's most popular tracks in a market.
func (c *Client) ArtistTopTracks(ctx context.Context, artistID, country string) ([]ResolvedTrack, error) {
	tracks, err := c.api.GetArtistsTopTracks(ctx, spotify.ID(artistID), country)
	if err != nil {
		return nil, classify("getting top tracks", err)
	}

	out := make([]ResolvedTrack, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, convertTrack(t))
	}
	return out, nil
}

// convertTrack converts a Spotify FullTrack to ResolvedTrack.
func convertTrack(t spotify.FullTrack) ResolvedTrack {
	// Join artist names
	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}

	return ResolvedTrack{
		ID:         t.ID.String(),
		Song:       t.Name,
		Artist:     strings.Join(artists, ", "),
		DurationMs: int(t.Duration),
	}
}
