package main

import (
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/justestif/go-chart-quiz/internal/auth"
	"github.com/justestif/go-chart-quiz/internal/cache"
	"github.com/justestif/go-chart-quiz/internal/lastfm"
	"github.com/justestif/go-chart-quiz/internal/quiz"
	"github.com/justestif/go-chart-quiz/internal/sheets"
	"github.com/justestif/go-chart-quiz/internal/spotify"
	"github.com/justestif/go-chart-quiz/internal/spotlight"
	"github.com/justestif/go-chart-quiz/internal/web"
	"github.com/justestif/go-chart-quiz/internal/wiki"
	webfs "github.com/justestif/go-chart-quiz/web"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the quiz web app",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := a.cfg
			if addr != "" {
				cfg.Server.Addr = addr
			}

			spotifyAuth, err := auth.NewSpotifyAuthenticator(cfg.Spotify)
			if err != nil {
				return err
			}

			database, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			opts := []quiz.Option{
				quiz.WithMaxAttempts(cfg.Quiz.MaxAttempts),
				quiz.WithCallTimeout(cfg.Quiz.CallTimeout),
				quiz.WithPreferCached(cfg.Quiz.PreferCached),
				quiz.WithDevice(cfg.Spotify.DeviceName),
				quiz.WithFacts(wiki.NewClient(cfg.Wiki.Endpoint)),
				quiz.WithLogger(a.logger.Named("quiz")),
			}
			if cfg.Quiz.LogMisses {
				opts = append(opts, quiz.WithMissLog(database.Misses()))
			}
			if cfg.Quiz.WriteBack {
				opts = append(opts, quiz.WithWriteBack(database.CatalogCache()))
			}

			deps := web.Deps{
				Quiz:   quiz.New(database.Charts(), opts...),
				Market: cfg.Spotify.Market,
				Form:   cfg.Quiz,
			}

			if err := cfg.RequireSheets(); err != nil {
				a.logger.Warn("answer logging disabled", zap.Error(err))
			} else {
				answers, err := sheets.New(ctx, cfg.Sheets, a.logger.Named("sheets"))
				if err != nil {
					return fmt.Errorf("opening answer sheet: %w", err)
				}
				deps.Answers = answers
			}

			if lfm, err := lastfm.NewConfig(cfg.LastFM); err != nil {
				a.logger.Warn("artist spotlight disabled", zap.Error(err))
			} else {
				deps.Spotlight = spotlight.New(lastfm.NewClient(lfm), cfg.Spotify.DeviceName, a.logger.Named("spotlight"))
			}

			rdb, err := a.openRedis(ctx)
			if err != nil {
				return err
			}
			if rdb != nil {
				defer rdb.Close()
				cacheLogger := a.logger.Named("cache")
				deps.Catalog = func(c *spotify.Client) web.Catalog {
					return cache.Wrap(c, rdb, cfg.Redis.TTL, cacheLogger)
				}
			}

			templates, err := fs.Sub(webfs.TemplatesFS, "templates")
			if err != nil {
				return fmt.Errorf("creating templates filesystem: %w", err)
			}
			static, err := fs.Sub(webfs.StaticFS, "static")
			if err != nil {
				return fmt.Errorf("creating static filesystem: %w", err)
			}

			server, err := web.NewServer(web.ServerConfig{
				Addr:        cfg.Server.Addr,
				Auth:        spotifyAuth,
				TemplatesFS: templates,
				StaticFS:    static,
				Deps:        deps,
				Logger:      a.logger.Named("web"),
			})
			if err != nil {
				return fmt.Errorf("creating server: %w", err)
			}

			return server.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}
