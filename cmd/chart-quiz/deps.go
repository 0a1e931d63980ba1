package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/justestif/go-chart-quiz/internal/auth"
	"github.com/justestif/go-chart-quiz/internal/cache"
	"github.com/justestif/go-chart-quiz/internal/db"
	"github.com/justestif/go-chart-quiz/internal/playlist"
	"github.com/justestif/go-chart-quiz/internal/spotify"
)

func (a *app) openDB(ctx context.Context) (*db.DB, error) {
	if err := a.cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	database, err := db.New(ctx, a.cfg.DatabaseURL(), a.cfg.Database.Schema)
	if err != nil {
		return nil, fmt.Errorf("connecting to chart database: %w", err)
	}
	return database, nil
}

// openRedis returns nil when no Redis address is configured.
func (a *app) openRedis(ctx context.Context) (*redis.Client, error) {
	if a.cfg.Redis.Addr == "" {
		return nil, nil
	}
	rdb, err := cache.Connect(ctx, a.cfg.Redis)
	if err != nil {
		return nil, err
	}
	a.logger.Info("resolution cache enabled", zap.String("addr", a.cfg.Redis.Addr))
	return rdb, nil
}

// cliCatalog signs in with the cached CLI token, running the browser flow when needed.
// The returned func releases the optional Redis connection.
func (a *app) cliCatalog(ctx context.Context) (playlist.Catalog, func(), error) {
	if err := a.cfg.RequireSpotify(); err != nil {
		return nil, nil, err
	}

	authenticator, err := auth.New(a.cfg.Spotify, a.logger.Named("auth"))
	if err != nil {
		return nil, nil, err
	}
	api, err := authenticator.Authenticate(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("authenticating with Spotify: %w", err)
	}
	client := spotify.New(api)

	rdb, err := a.openRedis(ctx)
	if err != nil {
		return nil, nil, err
	}
	if rdb == nil {
		return client, func() {}, nil
	}

	cached := cache.Wrap(client, rdb, a.cfg.Redis.TTL, a.logger.Named("cache"))
	return cached, func() { _ = rdb.Close() }, nil
}

func (a *app) newBuilder(catalog playlist.Catalog, public bool, description string) *playlist.Builder {
	return playlist.New(catalog,
		playlist.WithDelay(a.cfg.Playlist.Delay),
		playlist.WithPublic(public),
		playlist.WithMarket(a.cfg.Spotify.Market),
		playlist.WithDescription(description),
		playlist.WithLogger(a.logger.Named("playlist")),
	)
}
