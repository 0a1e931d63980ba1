package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/justestif/go-chart-quiz/internal/apperr"
)

// testDatabaseEnv names a scratch Postgres database for the query tests.
const testDatabaseEnv = "CHART_QUIZ_TEST_DATABASE_URL"

// openTestDB creates a throwaway schema holding a peaks table and drops it on cleanup.
func openTestDB(t *testing.T) *DB {
	t.Helper()

	url := os.Getenv(testDatabaseEnv)
	if url == "" {
		t.Skipf("%s not set", testDatabaseEnv)
	}

	ctx := context.Background()
	schema := "chart_quiz_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	database, err := New(ctx, url, schema)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		_, _ = database.pool.Exec(context.Background(), "DROP SCHEMA "+pgx.Identifier{schema}.Sanitize()+" CASCADE")
		database.Close()
	})

	stmts := []string{
		"CREATE SCHEMA " + pgx.Identifier{schema}.Sanitize(),
		fmt.Sprintf(`CREATE TABLE %s (
			song TEXT NOT NULL,
			artist TEXT NOT NULL,
			chart_peak INT NOT NULL,
			week_start_date DATE NOT NULL,
			spotify_track_uri TEXT,
			spotify_song TEXT,
			spotify_artist TEXT,
			spotify_track_duration INT
		)`, qualified(schema, peaksView)),
		fmt.Sprintf(`INSERT INTO %s (song, artist, chart_peak, week_start_date, spotify_track_uri, spotify_song, spotify_artist, spotify_track_duration) VALUES
			('She Loves You', 'The Beatles', 1, '1963-09-07', 'abc', 'She Loves You', 'The Beatles', 141000),
			('Wipe Out', 'The Surfaris', 5, '1963-08-17', NULL, NULL, NULL, NULL),
			('Telstar', 'The Tornados', 1, '1962-10-06', NULL, NULL, NULL, NULL),
			('Glad All Over', 'The Dave Clark Five', 1, '1964-01-18', NULL, NULL, NULL, NULL)
		`, qualified(schema, peaksView)),
	}
	for _, stmt := range stmts {
		if _, err := database.pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("preparing schema: %v", err)
		}
	}
	return database
}

func TestChartRepository_Random_Postgres(t *testing.T) {
	database := openTestDB(t)

	tests := []struct {
		name     string
		filter   ChartFilter
		wantSong string
		wantErr  error
	}{
		{name: "single peak single year", filter: ChartFilter{MinPeak: 1, MaxPeak: 1, StartYear: 1963, EndYear: 1963}, wantSong: "She Loves You"},
		{name: "upper peak bound inclusive", filter: ChartFilter{MinPeak: 2, MaxPeak: 5, StartYear: 1963, EndYear: 1963}, wantSong: "Wipe Out"},
		{name: "upper year bound inclusive", filter: ChartFilter{MinPeak: 1, MaxPeak: 1, StartYear: 1964, EndYear: 1964}, wantSong: "Glad All Over"},
		{name: "no rows", filter: ChartFilter{MinPeak: 2, MaxPeak: 4, StartYear: 1963, EndYear: 1963}, wantErr: ErrNotFound},
		{name: "no rows in year", filter: ChartFilter{MinPeak: 1, MaxPeak: 1, StartYear: 1965, EndYear: 1970}, wantErr: apperr.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, err := database.Charts().Random(context.Background(), tt.filter)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Random() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Random() error = %v", err)
			}
			if entry.Song != tt.wantSong {
				t.Errorf("Random() song = %q, want %q", entry.Song, tt.wantSong)
			}
		})
	}
}

func TestChartRepository_Random_CachedColumns(t *testing.T) {
	database := openTestDB(t)

	entry, err := database.Charts().Random(context.Background(), ChartFilter{MinPeak: 1, MaxPeak: 1, StartYear: 1963, EndYear: 1963})
	if err != nil {
		t.Fatalf("Random() error = %v", err)
	}
	want := CachedTrack{TrackID: "abc", Song: "She Loves You", Artist: "The Beatles", DurationMs: 141000}
	if entry.Cached == nil || *entry.Cached != want {
		t.Errorf("Cached = %+v, want %+v", entry.Cached, want)
	}
	if entry.Year != 1963 {
		t.Errorf("Year = %d, want 1963", entry.Year)
	}
}

func TestChartRepository_ForYear_Postgres(t *testing.T) {
	database := openTestDB(t)

	entries, err := database.Charts().ForYear(context.Background(), 1, 5, 1963)
	if err != nil {
		t.Fatalf("ForYear() error = %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("ForYear() = %+v, want the two 1963 entries", entries)
	}

	entries, err = database.Charts().ForYear(context.Background(), 1, 1, 1999)
	if err != nil {
		t.Fatalf("ForYear() empty year error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("ForYear() = %+v, want none", entries)
	}
}
