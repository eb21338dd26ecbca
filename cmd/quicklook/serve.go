package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/observatory/quicklook/internal/archive"
	"github.com/observatory/quicklook/internal/cache"
	"github.com/observatory/quicklook/internal/catalog"
	"github.com/observatory/quicklook/internal/edb"
	"github.com/observatory/quicklook/internal/server"
)

const shutdownGrace = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the portal HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg.LogLevel)
		if err != nil {
			return err
		}
		defer logger.Sync()

		catOpts := []catalog.Option{catalog.WithLogger(logger)}
		if cfg.CatalogPath != "" {
			catOpts = append(catOpts, catalog.WithFile(cfg.CatalogPath))
		}
		cat, err := catalog.New(catOpts...)
		if err != nil {
			return err
		}

		store, err := archive.Open(cfg.ArchiveDB)
		if err != nil {
			return err
		}
		defer store.Close()

		telemetry, err := edb.Open(cfg.EDBDB)
		if err != nil {
			return err
		}
		defer telemetry.Close()

		results := cache.New(cfg.Redis.Addr, cfg.Redis.DB, cache.WithLogger(logger))
		defer results.Close()

		srv, err := server.New(server.Options{
			Logger:       logger,
			Catalog:      cat,
			Archive:      store,
			EDB:          telemetry,
			Cache:        results,
			Theme:        cfg.Theme,
			ThemeVariant: cfg.ThemeVariant,
			CSRFSecret:   cfg.CSRFSecret,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		httpServer := &http.Server{
			Addr:              cfg.Addr,
			Handler:           srv.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		group, ctx := errgroup.WithContext(ctx)

		group.Go(func() error {
			logger.Info("portal listening", zap.String("addr", cfg.Addr))
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})

		if cfg.CatalogPath != "" {
			group.Go(func() error {
				return cat.Watch(ctx)
			})
		}

		group.Go(func() error {
			<-ctx.Done()
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		})

		if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
