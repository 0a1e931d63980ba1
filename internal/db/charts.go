package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/justestif/go-chart-quiz/internal/apperr"
)

// ChartEntry is one song's peak on the historical chart.
type ChartEntry struct {
	Song      string
	Artist    string
	ChartPeak int
	Year      int
	Cached    *CachedTrack // nil unless catalog columns were filled in earlier
}

// CachedTrack is catalog data previously stored alongside a chart row.
type CachedTrack struct {
	TrackID    string
	Song       string
	Artist     string
	DurationMs int
}

// ChartFilter selects entries by peak position and chart-week year, both closed ranges.
type ChartFilter struct {
	MinPeak   int
	MaxPeak   int
	StartYear int
	EndYear   int
}

// Ordered returns the filter with each range swapped into ascending order.
func (f ChartFilter) Ordered() ChartFilter {
	if f.MinPeak > f.MaxPeak {
		f.MinPeak, f.MaxPeak = f.MaxPeak, f.MinPeak
	}
	if f.StartYear > f.EndYear {
		f.StartYear, f.EndYear = f.EndYear, f.StartYear
	}
	return f
}

// Validate reports unusable ranges.
func (f ChartFilter) Validate() error {
	switch {
	case f.MinPeak < 1:
		return fmt.Errorf("%w: minimum peak %d must be at least 1", apperr.ErrInvalidInput, f.MinPeak)
	case f.MaxPeak < f.MinPeak:
		return fmt.Errorf("%w: peak range %d-%d is reversed", apperr.ErrInvalidInput, f.MinPeak, f.MaxPeak)
	case f.StartYear < 1:
		return fmt.Errorf("%w: start year %d must be positive", apperr.ErrInvalidInput, f.StartYear)
	case f.EndYear < f.StartYear:
		return fmt.Errorf("%w: year range %d-%d is reversed", apperr.ErrInvalidInput, f.StartYear, f.EndYear)
	}
	return nil
}

// ChartRepository reads the chart peaks view.
type ChartRepository struct {
	pool *pgxpool.Pool
	view string
}

// Random returns one uniformly random entry matching the filter.
// Returns ErrNotFound if nothing matches.
func (r *ChartRepository) Random(ctx context.Context, f ChartFilter) (ChartEntry, error) {
	if err := f.Validate(); err != nil {
		return ChartEntry{}, err
	}

	query := fmt.Sprintf(`
		SELECT song, artist, chart_peak, EXTRACT(YEAR FROM week_start_date)::INT,
			spotify_track_uri, spotify_song, spotify_artist, spotify_track_duration
		FROM %s
		WHERE chart_peak BETWEEN $1 AND $2
			AND EXTRACT(YEAR FROM week_start_date) BETWEEN $3 AND $4
		ORDER BY RANDOM()
		LIMIT 1
	`, r.view)

	var (
		entry    ChartEntry
		trackID  *string
		song     *string
		artist   *string
		duration *int
	)
	err := r.pool.QueryRow(ctx, query, f.MinPeak, f.MaxPeak, f.StartYear, f.EndYear).Scan(
		&entry.Song,
		&entry.Artist,
		&entry.ChartPeak,
		&entry.Year,
		&trackID,
		&song,
		&artist,
		&duration,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return ChartEntry{}, fmt.Errorf("peaks %d-%d in %d-%d: %w", f.MinPeak, f.MaxPeak, f.StartYear, f.EndYear, ErrNotFound)
	}
	if err != nil {
		return ChartEntry{}, classify("querying random chart entry", err)
	}

	entry.Cached = cachedTrack(trackID, song, artist, duration)
	return entry, nil
}

// ForYear returns every entry that peaked within [minPeak, maxPeak] during year.
// Order is unspecified. An empty result is not an error.
func (r *ChartRepository) ForYear(ctx context.Context, minPeak, maxPeak, year int) ([]ChartEntry, error) {
	f := ChartFilter{MinPeak: minPeak, MaxPeak: maxPeak, StartYear: year, EndYear: year}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT song, artist, chart_peak, EXTRACT(YEAR FROM week_start_date)::INT
		FROM %s
		WHERE chart_peak BETWEEN $1 AND $2
			AND EXTRACT(YEAR FROM week_start_date) = $3
	`, r.view)

	rows, err := r.pool.Query(ctx, query, minPeak, maxPeak, year)
	if err != nil {
		return nil, classify("querying chart entries", err)
	}
	defer rows.Close()

	var entries []ChartEntry
	for rows.Next() {
		var entry ChartEntry
		if err := rows.Scan(&entry.Song, &entry.Artist, &entry.ChartPeak, &entry.Year); err != nil {
			return nil, fmt.Errorf("scanning chart entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("reading chart entries", err)
	}
	return entries, nil
}

// cachedTrack builds a CachedTrack only when every catalog column is present.
func cachedTrack(trackID, song, artist *string, duration *int) *CachedTrack {
	if trackID == nil || song == nil || artist == nil || duration == nil || *trackID == "" {
		return nil
	}
	return &CachedTrack{
		TrackID:    *trackID,
		Song:       *song,
		Artist:     *artist,
		DurationMs: *duration,
	}
}
