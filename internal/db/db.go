// Package db provides PostgreSQL access to the chart database.
package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/justestif/go-chart-quiz/internal/apperr"
)

// Common errors.
var (
	ErrNotFound = fmt.Errorf("%w: no matching chart row", apperr.ErrNotFound)
)

// DefaultSchema is the schema holding the chart tables and views.
const DefaultSchema = "songbase"

// Relation names inside the schema.
const (
	peaksView    = "song_peaks_mv"
	weeklyCharts = "weekly_charts"
	missesTable  = "songs_not_on_spotify"
)

// DB wraps a PostgreSQL connection pool.
type DB struct {
	pool   *pgxpool.Pool
	schema string
}

// New creates a new database connection pool.
func New(ctx context.Context, databaseURL, schema string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: pinging database: %w", apperr.ErrTransient, err)
	}

	if schema == "" {
		schema = DefaultSchema
	}
	return &DB{pool: pool, schema: schema}, nil
}

// Close closes the database connection pool.
func (db *DB) Close() {
	db.pool.Close()
}

// Charts returns a ChartRepository.
func (db *DB) Charts() *ChartRepository {
	return &ChartRepository{pool: db.pool, view: qualified(db.schema, peaksView)}
}

// Misses returns a MissRepository.
func (db *DB) Misses() *MissRepository {
	return &MissRepository{pool: db.pool, table: qualified(db.schema, missesTable)}
}

// CatalogCache returns a CatalogCacheRepository.
func (db *DB) CatalogCache() *CatalogCacheRepository {
	return &CatalogCacheRepository{
		pool:   db.pool,
		charts: qualified(db.schema, weeklyCharts),
		view:   qualified(db.schema, peaksView),
	}
}

// qualified returns a safely quoted schema.relation identifier.
func qualified(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

// classify wraps a driver error in the transient kind unless it is already classified.
func classify(op string, err error) error {
	if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrTransient) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, apperr.ErrTransient, err)
}
