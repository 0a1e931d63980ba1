// Package playlist builds catalog playlists from chart entries.
package playlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/justestif/go-chart-quiz/internal/db"
	"github.com/justestif/go-chart-quiz/internal/normalize"
	"github.com/justestif/go-chart-quiz/internal/spotify"
)

// DefaultDelay is the default spacing between catalog calls.
const DefaultDelay = 300 * time.Millisecond

// Catalog is the subset of the Spotify client the builder needs.
type Catalog interface {
	Resolve(ctx context.Context, song, artist, market string) (*spotify.ResolvedTrack, error)
	EnsurePlaylist(ctx context.Context, name, description string, public bool) (string, error)
	AddTracksToPlaylist(ctx context.Context, playlistID string, trackIDs ...string) error
}

// Miss is a chart entry that did not make it onto the playlist.
type Miss struct {
	Entry  db.ChartEntry
	Song   string // normalized song used for the search
	Artist string // normalized artist used for the search
	Reason error
}

// Result is the outcome of one batch run.
// Every input entry appears exactly once in Added or Missed unless the run was cancelled.
type Result struct {
	RunID      uuid.UUID
	PlaylistID string
	Added      []spotify.ResolvedTrack
	Missed     []Miss
}

// Builder resolves chart entries and adds them to a named playlist one at a time.
type Builder struct {
	catalog     Catalog
	limiter     *rate.Limiter
	public      bool
	market      string
	description string
	logger      *zap.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithDelay sets the minimum spacing between catalog calls. Zero disables pacing.
func WithDelay(d time.Duration) Option {
	return func(b *Builder) {
		b.limiter = newLimiter(d)
	}
}

// WithPublic sets whether newly created playlists are public.
func WithPublic(public bool) Option {
	return func(b *Builder) {
		b.public = public
	}
}

// WithMarket restricts searches to a market.
func WithMarket(market string) Option {
	return func(b *Builder) {
		b.market = market
	}
}

// WithDescription sets the description of newly created playlists.
func WithDescription(description string) Option {
	return func(b *Builder) {
		b.description = description
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// New creates a Builder.
func New(catalog Catalog, opts ...Option) *Builder {
	b := &Builder{
		catalog: catalog,
		limiter: newLimiter(DefaultDelay),
		public:  true,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func newLimiter(d time.Duration) *rate.Limiter {
	if d <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(d), 1)
}

// Build ensures the playlist exists, then resolves and adds each entry in order.
// Per-entry failures are recorded as misses and the batch continues. Cancellation
// stops the batch and returns the partial result together with the context error.
func (b *Builder) Build(ctx context.Context, name string, entries []db.ChartEntry) (*Result, error) {
	result := &Result{RunID: uuid.New()}
	logger := b.logger.With(zap.String("run_id", result.RunID.String()), zap.String("playlist", name))

	if err := b.limiter.Wait(ctx); err != nil {
		return result, err
	}
	playlistID, err := b.catalog.EnsurePlaylist(ctx, name, b.description, b.public)
	if err != nil {
		return result, fmt.Errorf("ensuring playlist %q: %w", name, err)
	}
	result.PlaylistID = playlistID

	for _, entry := range entries {
		song, artist := normalize.Pair(entry.Song, entry.Artist)

		track, err := b.addOne(ctx, playlistID, song, artist)
		if err == nil {
			// already on the playlist, so it counts even if ctx ended meanwhile
			result.Added = append(result.Added, *track)
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			logger.Warn("batch cancelled",
				zap.Int("added", len(result.Added)),
				zap.Int("missed", len(result.Missed)),
			)
			return result, ctxErr
		}
		logger.Info("could not add entry",
			zap.String("song", entry.Song),
			zap.String("artist", entry.Artist),
			zap.Error(err),
		)
		result.Missed = append(result.Missed, Miss{Entry: entry, Song: song, Artist: artist, Reason: err})
	}

	logger.Info("batch finished",
		zap.Int("added", len(result.Added)),
		zap.Int("missed", len(result.Missed)),
	)
	return result, nil
}

func (b *Builder) addOne(ctx context.Context, playlistID, song, artist string) (*spotify.ResolvedTrack, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	track, err := b.catalog.Resolve(ctx, song, artist, b.market)
	if err != nil {
		return nil, err
	}

	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if err := b.catalog.AddTracksToPlaylist(ctx, playlistID, track.ID); err != nil {
		return nil, fmt.Errorf("adding %s: %w", track.URI(), err)
	}
	return track, nil
}

// NotFound reports whether a miss was a plain catalog miss rather than a failure.
func (m Miss) NotFound() bool {
	return errors.Is(m.Reason, spotify.ErrTrackNotFound)
}
