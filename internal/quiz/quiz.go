// Package quiz runs one quiz round: draw a chart song, find it in the catalog,
// start playback, and look up a reference page.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/justestif/go-chart-quiz/internal/apperr"
	"github.com/justestif/go-chart-quiz/internal/db"
	"github.com/justestif/go-chart-quiz/internal/normalize"
	"github.com/justestif/go-chart-quiz/internal/spotify"
)

// Defaults.
const (
	DefaultMaxAttempts = 10
	DefaultCallTimeout = 10 * time.Second
)

// ErrGaveUp is returned when no drawn song could be found in the catalog.
var ErrGaveUp = fmt.Errorf("%w: no playable song after retries", apperr.ErrNotFound)

// ChartSource draws random chart entries.
type ChartSource interface {
	Random(ctx context.Context, f db.ChartFilter) (db.ChartEntry, error)
}

// Catalog resolves and plays tracks for the current user.
type Catalog interface {
	Resolve(ctx context.Context, song, artist, market string) (*spotify.ResolvedTrack, error)
	FindDevice(ctx context.Context, name string) (*spotify.Device, error)
	StartPlayback(ctx context.Context, deviceID string, track spotify.ResolvedTrack, offsetMs int) error
}

// MissLog persists chart songs the catalog does not have.
type MissLog interface {
	LogIfAbsent(ctx context.Context, song, artist string) (bool, error)
}

// FactFinder finds a reference page for a free-text query.
type FactFinder interface {
	PageURL(ctx context.Context, query string) (string, error)
}

// WriteBack stores a resolution alongside the chart rows.
type WriteBack interface {
	Remember(ctx context.Context, song, artist string, track db.CachedTrack) (bool, error)
}

// Constraints select the song for one round.
type Constraints struct {
	Filter db.ChartFilter
	Intro  bool   // start at the beginning instead of a random point
	Market string // catalog market; empty means unrestricted
}

// Round is one drawn and resolved song.
type Round struct {
	ID            uuid.UUID
	Entry         db.ChartEntry
	Resolved      spotify.ResolvedTrack
	StartOffsetMs int
	FactURL       string // empty when no page was found
	Played        bool   // false when the device is missing or playback failed
	Attempts      int
}

// Orchestrator runs quiz rounds.
type Orchestrator struct {
	charts       ChartSource
	misses       MissLog
	facts        FactFinder
	writeBack    WriteBack
	device       string
	maxAttempts  int
	preferCached bool
	callTimeout  time.Duration
	intn         func(int) int
	logger       *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMaxAttempts bounds the number of draws per round.
func WithMaxAttempts(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// WithMissLog records catalog misses.
func WithMissLog(m MissLog) Option {
	return func(o *Orchestrator) {
		o.misses = m
	}
}

// WithFacts enables reference page lookup.
func WithFacts(f FactFinder) Option {
	return func(o *Orchestrator) {
		o.facts = f
	}
}

// WithWriteBack stores fresh resolutions on the chart rows.
func WithWriteBack(w WriteBack) Option {
	return func(o *Orchestrator) {
		o.writeBack = w
	}
}

// WithPreferCached uses catalog columns already on the chart row instead of searching.
func WithPreferCached(prefer bool) Option {
	return func(o *Orchestrator) {
		o.preferCached = prefer
	}
}

// WithDevice sets the playback device name. Empty disables playback.
func WithDevice(name string) Option {
	return func(o *Orchestrator) {
		o.device = name
	}
}

// WithCallTimeout bounds every external call. Zero disables the per-call bound.
func WithCallTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.callTimeout = d
	}
}

// WithRand replaces the random source used for start offsets.
func WithRand(intn func(int) int) Option {
	return func(o *Orchestrator) {
		o.intn = intn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New creates an Orchestrator.
func New(charts ChartSource, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		charts:      charts,
		maxAttempts: DefaultMaxAttempts,
		callTimeout: DefaultCallTimeout,
		intn:        rand.IntN,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// NextRound draws chart entries until one resolves in the catalog, then starts
// playback and looks up a reference page. Playback and lookup failures are soft.
// An empty chart range fails immediately; exhausted draws return ErrGaveUp.
func (o *Orchestrator) NextRound(ctx context.Context, catalog Catalog, c Constraints) (*Round, error) {
	if err := c.Filter.Validate(); err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		entry, err := o.draw(ctx, c.Filter)
		if err != nil {
			return nil, err
		}

		track, cached, err := o.resolve(ctx, catalog, entry, c.Market)
		if errors.Is(err, apperr.ErrNotFound) {
			o.logger.Info("could not find song",
				zap.String("song", entry.Song),
				zap.String("artist", entry.Artist),
				zap.Int("attempt", attempt),
			)
			o.logMiss(ctx, entry)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolving %q by %q: %w", entry.Song, entry.Artist, err)
		}

		if !cached {
			o.remember(ctx, entry, *track)
		}

		round := &Round{
			ID:            uuid.New(),
			Entry:         entry,
			Resolved:      *track,
			StartOffsetMs: StartOffset(track.DurationMs, c.Intro, o.intn),
			Attempts:      attempt,
		}
		round.Played = o.play(ctx, catalog, round)
		round.FactURL = o.fact(ctx, entry)

		o.logger.Info("round ready",
			zap.String("round_id", round.ID.String()),
			zap.String("track_id", track.ID),
			zap.Int("attempts", attempt),
			zap.Bool("played", round.Played),
		)
		return round, nil
	}

	return nil, fmt.Errorf("after %d attempts: %w", o.maxAttempts, ErrGaveUp)
}

// StartOffset returns 0 for intro rounds, otherwise a uniform offset in
// [0, floor(0.8*durationMs)].
func StartOffset(durationMs int, intro bool, intn func(int) int) int {
	if intro || durationMs <= 0 {
		return 0
	}
	return intn(durationMs*4/5 + 1)
}

func (o *Orchestrator) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.callTimeout)
}

func (o *Orchestrator) draw(ctx context.Context, f db.ChartFilter) (db.ChartEntry, error) {
	ctx, cancel := o.bounded(ctx)
	defer cancel()

	entry, err := o.charts.Random(ctx, f)
	if err != nil {
		return db.ChartEntry{}, fmt.Errorf("drawing chart entry: %w", err)
	}
	return entry, nil
}

// resolve reports whether the track came from the row's cached columns.
func (o *Orchestrator) resolve(ctx context.Context, catalog Catalog, entry db.ChartEntry, market string) (*spotify.ResolvedTrack, bool, error) {
	if o.preferCached && entry.Cached != nil {
		return &spotify.ResolvedTrack{
			ID:         entry.Cached.TrackID,
			Song:       entry.Cached.Song,
			Artist:     entry.Cached.Artist,
			DurationMs: entry.Cached.DurationMs,
		}, true, nil
	}

	ctx, cancel := o.bounded(ctx)
	defer cancel()

	song, artist := normalize.Pair(entry.Song, entry.Artist)
	track, err := catalog.Resolve(ctx, song, artist, market)
	return track, false, err
}

func (o *Orchestrator) logMiss(ctx context.Context, entry db.ChartEntry) {
	if o.misses == nil {
		return
	}
	ctx, cancel := o.bounded(ctx)
	defer cancel()

	if _, err := o.misses.LogIfAbsent(ctx, entry.Song, entry.Artist); err != nil {
		o.logger.Warn("logging miss", zap.String("song", entry.Song), zap.Error(err))
	}
}

func (o *Orchestrator) remember(ctx context.Context, entry db.ChartEntry, track spotify.ResolvedTrack) {
	if o.writeBack == nil {
		return
	}
	ctx, cancel := o.bounded(ctx)
	defer cancel()

	_, err := o.writeBack.Remember(ctx, entry.Song, entry.Artist, db.CachedTrack{
		TrackID:    track.ID,
		Song:       track.Song,
		Artist:     track.Artist,
		DurationMs: track.DurationMs,
	})
	if err != nil {
		o.logger.Warn("caching resolution", zap.String("song", entry.Song), zap.Error(err))
	}
}

func (o *Orchestrator) play(ctx context.Context, catalog Catalog, round *Round) bool {
	if o.device == "" {
		return false
	}
	ctx, cancel := o.bounded(ctx)
	defer cancel()

	device, err := catalog.FindDevice(ctx, o.device)
	if errors.Is(err, spotify.ErrDeviceNotFound) {
		o.logger.Debug("playback device not available", zap.String("device", o.device))
		return false
	}
	if err != nil {
		o.logger.Warn("listing devices", zap.Error(err))
		return false
	}

	if err := catalog.StartPlayback(ctx, device.ID, round.Resolved, round.StartOffsetMs); err != nil {
		o.logger.Warn("starting playback", zap.String("device", o.device), zap.Error(err))
		return false
	}
	return true
}

// fact tries "<song> by <artist>" and then "<song> <artist>".
func (o *Orchestrator) fact(ctx context.Context, entry db.ChartEntry) string {
	if o.facts == nil {
		return ""
	}
	queries := []string{
		entry.Song + " by " + entry.Artist,
		entry.Song + " " + entry.Artist,
	}
	for _, q := range queries {
		url, err := o.lookup(ctx, q)
		if err != nil {
			o.logger.Debug("no reference page", zap.String("query", q), zap.Error(err))
			continue
		}
		return url
	}
	return ""
}

func (o *Orchestrator) lookup(ctx context.Context, q string) (string, error) {
	ctx, cancel := o.bounded(ctx)
	defer cancel()
	return o.facts.PageURL(ctx, q)
}
