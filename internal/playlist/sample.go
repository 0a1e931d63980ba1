package playlist

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/justestif/go-chart-quiz/internal/apperr"
	"github.com/justestif/go-chart-quiz/internal/db"
)

// Sampling defaults.
const (
	DefaultSampleMaxPeak  = 4
	DefaultSampleAttempts = 10
)

// YearSource lists chart entries for one year.
type YearSource interface {
	ForYear(ctx context.Context, minPeak, maxPeak, year int) ([]db.ChartEntry, error)
}

// SampleOptions controls SampleYears.
type SampleOptions struct {
	StartYear       int
	EndYear         int
	MaxPeak         int           // peaks are drawn from [1, MaxPeak]
	AttemptsPerYear int           // draws per year before the year is skipped
	Intn            func(int) int // defaults to math/rand/v2.IntN
	Logger          *zap.Logger
}

// SampleYears picks one random entry for each year in [StartYear, EndYear].
// Each attempt draws an exact peak position and picks uniformly among that year's
// entries at that peak. Years with no hit after AttemptsPerYear draws are skipped.
func SampleYears(ctx context.Context, source YearSource, opts SampleOptions) ([]db.ChartEntry, error) {
	if opts.StartYear > opts.EndYear {
		return nil, fmt.Errorf("%w: year range %d-%d is reversed", apperr.ErrInvalidInput, opts.StartYear, opts.EndYear)
	}
	if opts.MaxPeak <= 0 {
		opts.MaxPeak = DefaultSampleMaxPeak
	}
	if opts.AttemptsPerYear <= 0 {
		opts.AttemptsPerYear = DefaultSampleAttempts
	}
	if opts.Intn == nil {
		opts.Intn = rand.IntN
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	var picked []db.ChartEntry
	for year := opts.StartYear; year <= opts.EndYear; year++ {
		entry, err := sampleYear(ctx, source, year, opts)
		if errors.Is(err, db.ErrNotFound) {
			opts.Logger.Warn("no entry sampled for year",
				zap.Int("year", year),
				zap.Int("attempts", opts.AttemptsPerYear),
			)
			continue
		}
		if err != nil {
			return picked, err
		}
		picked = append(picked, entry)
	}
	return picked, nil
}

func sampleYear(ctx context.Context, source YearSource, year int, opts SampleOptions) (db.ChartEntry, error) {
	for range opts.AttemptsPerYear {
		peak := opts.Intn(opts.MaxPeak) + 1

		entries, err := source.ForYear(ctx, peak, peak, year)
		if err != nil {
			return db.ChartEntry{}, fmt.Errorf("sampling %d: %w", year, err)
		}
		if len(entries) > 0 {
			return entries[opts.Intn(len(entries))], nil
		}
	}
	return db.ChartEntry{}, fmt.Errorf("sampling %d: %w", year, db.ErrNotFound)
}
