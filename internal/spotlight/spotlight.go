// Package spotlight ranks an artist's top catalog tracks by Last.fm play count.
package spotlight

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/justestif/go-chart-quiz/internal/apperr"
	"github.com/justestif/go-chart-quiz/internal/logging"
	"github.com/justestif/go-chart-quiz/internal/normalize"
	"github.com/justestif/go-chart-quiz/internal/spotify"
)

// Countries are the markets offered for top-track lookups.
var Countries = []string{"GB", "US"}

// Catalog is the subset of the Spotify client the spotlight needs.
type Catalog interface {
	SearchArtist(ctx context.Context, name string) (*spotify.Artist, error)
	ArtistTopTracks(ctx context.Context, artistID, country string) ([]spotify.ResolvedTrack, error)
	FindDevice(ctx context.Context, name string) (*spotify.Device, error)
	StartPlayback(ctx context.Context, deviceID string, track spotify.ResolvedTrack, offsetMs int) error
}

// PlayCounter looks up a track's total play count.
type PlayCounter interface {
	PlayCount(ctx context.Context, artist, track string) (int, error)
}

// Track is a catalog track with its Last.fm play count.
type Track struct {
	spotify.ResolvedTrack
	PlayCount int
}

// Result is an artist's top tracks, most played first.
type Result struct {
	Artist    spotify.Artist
	Country   string
	Tracks    []Track
	Unmatched []spotify.ResolvedTrack // tracks Last.fm could not find
	Played    bool
}

// Service builds artist spotlights.
type Service struct {
	counts PlayCounter
	device string
	logger *zap.Logger
}

// New creates a Service. device names the playback target for the top track;
// empty disables playback.
func New(counts PlayCounter, device string, logger *zap.Logger) *Service {
	return &Service{counts: counts, device: device, logger: logging.OrNop(logger)}
}

// TopTracks finds artist in the catalog, fetches its top tracks in country, ranks
// them by play count, and starts the most played one on the configured device.
func (s *Service) TopTracks(ctx context.Context, catalog Catalog, artist, country string) (*Result, error) {
	country = strings.ToUpper(strings.TrimSpace(country))
	if country == "" {
		country = Countries[0]
	}
	if !slices.Contains(Countries, country) {
		return nil, fmt.Errorf("%w: unsupported country %q", apperr.ErrInvalidInput, country)
	}
	if strings.TrimSpace(artist) == "" {
		return nil, fmt.Errorf("%w: artist is required", apperr.ErrInvalidInput)
	}

	found, err := catalog.SearchArtist(ctx, normalize.Artist(artist))
	if err != nil {
		return nil, fmt.Errorf("finding artist %q: %w", artist, err)
	}

	tracks, err := catalog.ArtistTopTracks(ctx, found.ID, country)
	if err != nil {
		return nil, fmt.Errorf("getting top tracks for %q: %w", found.Name, err)
	}

	result := &Result{Artist: *found, Country: country}
	for _, t := range tracks {
		count, err := s.counts.PlayCount(ctx, artist, t.Song)
		if errors.Is(err, apperr.ErrNotFound) {
			result.Unmatched = append(result.Unmatched, t)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("getting play count for %q: %w", t.Song, err)
		}
		result.Tracks = append(result.Tracks, Track{ResolvedTrack: t, PlayCount: count})
	}

	slices.SortStableFunc(result.Tracks, func(a, b Track) int {
		return cmp.Compare(b.PlayCount, a.PlayCount)
	})

	if len(result.Tracks) > 0 {
		result.Played = s.play(ctx, catalog, result.Tracks[0].ResolvedTrack)
	}
	return result, nil
}

func (s *Service) play(ctx context.Context, catalog Catalog, track spotify.ResolvedTrack) bool {
	if s.device == "" {
		return false
	}
	device, err := catalog.FindDevice(ctx, s.device)
	if err != nil {
		s.logger.Debug("playback device not available", zap.String("device", s.device), zap.Error(err))
		return false
	}
	if err := catalog.StartPlayback(ctx, device.ID, track, 0); err != nil {
		s.logger.Warn("starting playback", zap.String("track_id", track.ID), zap.Error(err))
		return false
	}
	return true
}
