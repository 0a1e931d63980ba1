// Package cache memoises catalog resolutions in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/justestif/go-chart-quiz/internal/config"
	"github.com/justestif/go-chart-quiz/internal/logging"
	"github.com/justestif/go-chart-quiz/internal/spotify"
)

const keyPrefix = "chart-quiz:track:"

// DefaultTTL is how long a resolution is kept when no TTL is configured.
const DefaultTTL = 7 * 24 * time.Hour

// Lookup resolves a normalized song and artist to a catalog track.
type Lookup interface {
	Resolve(ctx context.Context, song, artist, market string) (*spotify.ResolvedTrack, error)
}

// Store is the subset of the Redis client the resolver needs.
type Store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// Connect opens a Redis client and verifies it answers.
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// Resolver wraps a Lookup and remembers successful resolutions.
// Misses and errors are never cached. A failing cache degrades to the wrapped Lookup.
type Resolver struct {
	next   Lookup
	store  Store
	ttl    time.Duration
	logger *zap.Logger
}

// NewResolver creates a caching resolver in front of next.
func NewResolver(next Lookup, store Store, ttl time.Duration, logger *zap.Logger) *Resolver {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Resolver{next: next, store: store, ttl: ttl, logger: logging.OrNop(logger)}
}

// Key returns the cache key for a lookup.
func Key(song, artist, market string) string {
	return keyPrefix + strings.ToUpper(market) + ":" + song + ":" + artist
}

// Resolve returns the cached track when present, otherwise asks the wrapped Lookup.
func (r *Resolver) Resolve(ctx context.Context, song, artist, market string) (*spotify.ResolvedTrack, error) {
	key := Key(song, artist, market)

	if track, ok := r.get(ctx, key); ok {
		return track, nil
	}

	track, err := r.next.Resolve(ctx, song, artist, market)
	if err != nil {
		return nil, err
	}

	r.set(ctx, key, track)
	return track, nil
}

func (r *Resolver) get(ctx context.Context, key string) (*spotify.ResolvedTrack, bool) {
	data, err := r.store.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		r.logger.Warn("reading resolution cache", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	var track spotify.ResolvedTrack
	if err := json.Unmarshal(data, &track); err != nil {
		r.logger.Warn("decoding cached resolution", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &track, true
}

func (r *Resolver) set(ctx context.Context, key string, track *spotify.ResolvedTrack) {
	data, err := json.Marshal(track)
	if err != nil {
		r.logger.Warn("encoding resolution", zap.String("key", key), zap.Error(err))
		return
	}
	if err := r.store.Set(ctx, key, data, r.ttl).Err(); err != nil {
		r.logger.Warn("writing resolution cache", zap.String("key", key), zap.Error(err))
	}
}

// Client is a Spotify client whose Resolve goes through a caching Resolver.
// Every other method is the wrapped client's own.
type Client struct {
	*spotify.Client
	resolver *Resolver
}

// Wrap puts a caching resolver in front of client.
func Wrap(client *spotify.Client, store Store, ttl time.Duration, logger *zap.Logger) *Client {
	return &Client{Client: client, resolver: NewResolver(client, store, ttl, logger)}
}

// Resolve consults the cache before searching the catalog.
func (c *Client) Resolve(ctx context.Context, song, artist, market string) (*spotify.ResolvedTrack, error) {
	return c.resolver.Resolve(ctx, song, artist, market)
}
