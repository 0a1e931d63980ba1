package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Miss is a chart song the catalog search could not find.
type Miss struct {
	Song   string
	Artist string
}

// MissRepository handles the not-on-catalog log.
type MissRepository struct {
	pool  *pgxpool.Pool
	table string
}

// LogIfAbsent records a miss unless the same (song, artist) pair is already logged.
// Reports whether a row was inserted.
func (r *MissRepository) LogIfAbsent(ctx context.Context, song, artist string) (bool, error) {
	query := fmt.Sprintf(`
		INSERT INTO %[1]s (song, artist)
		SELECT $1::text, $2::text
		WHERE NOT EXISTS (
			SELECT 1 FROM %[1]s WHERE song = $1::text AND artist = $2::text
		)
	`, r.table)

	result, err := r.pool.Exec(ctx, query, song, artist)
	if err != nil {
		return false, classify("logging miss", err)
	}
	return result.RowsAffected() > 0, nil
}

// List returns logged misses ordered by artist then song. A limit of zero or less
// returns every row.
func (r *MissRepository) List(ctx context.Context, limit int) ([]Miss, error) {
	var bound any
	if limit > 0 {
		bound = limit
	}

	query := fmt.Sprintf(`
		SELECT song, artist
		FROM %s
		ORDER BY artist, song
		LIMIT $1
	`, r.table)

	rows, err := r.pool.Query(ctx, query, bound)
	if err != nil {
		return nil, classify("querying misses", err)
	}
	defer rows.Close()

	var misses []Miss
	for rows.Next() {
		var m Miss
		if err := rows.Scan(&m.Song, &m.Artist); err != nil {
			return nil, fmt.Errorf("scanning miss: %w", err)
		}
		misses = append(misses, m)
	}
	return misses, rows.Err()
}
