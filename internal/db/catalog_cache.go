package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CatalogCacheRepository writes resolved catalog data back onto the weekly chart rows
// so later draws can skip the search.
type CatalogCacheRepository struct {
	pool   *pgxpool.Pool
	charts string
	view   string
}

// Remember stores track against every weekly row of (song, artist) whose catalog
// columns are missing or differ, then refreshes the peaks view if anything changed.
// Reports whether any row was updated.
func (r *CatalogCacheRepository) Remember(ctx context.Context, song, artist string, track CachedTrack) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET spotify_track_uri = $1,
			spotify_song = $2,
			spotify_artist = $3,
			spotify_track_duration = $4
		WHERE song = $5
			AND artist = $6
			AND (spotify_track_uri IS DISTINCT FROM $1
				OR spotify_song IS DISTINCT FROM $2
				OR spotify_artist IS DISTINCT FROM $3
				OR spotify_track_duration IS DISTINCT FROM $4)
	`, r.charts)

	result, err := r.pool.Exec(ctx, query,
		track.TrackID,
		track.Song,
		track.Artist,
		track.DurationMs,
		song,
		artist,
	)
	if err != nil {
		return false, classify("caching catalog track", err)
	}
	if result.RowsAffected() == 0 {
		return false, nil
	}

	if err := r.RefreshPeaks(ctx); err != nil {
		return true, err
	}
	return true, nil
}

// RefreshPeaks rebuilds the materialized peaks view.
func (r *CatalogCacheRepository) RefreshPeaks(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, fmt.Sprintf(`REFRESH MATERIALIZED VIEW %s`, r.view)); err != nil {
		return classify("refreshing peaks view", err)
	}
	return nil
}
