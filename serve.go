package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/database"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/handlers"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/middleware"
)

const shutdownTimeout = 30 * time.Second

var serveMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		if serveMigrate {
			if err := database.RunMigrationsFromURL(a.cfg.Database.URL(), a.cfg.Database.MigrationsPath, a.logger); err != nil {
				return err
			}
		}

		srv := &http.Server{
			Addr:              net.JoinHostPort(a.cfg.BindAddr, a.cfg.Port),
			Handler:           a.routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			a.logger.Info("Starting catalog API",
				zap.String("addr", srv.Addr),
				zap.String("base_url", a.cfg.BaseURL),
				zap.String("version", a.cfg.Version))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		a.logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("HTTP shutdown failed", zap.Error(err))
		}
		// Running jobs record a timeout status before the ledger closes.
		if err := a.collection.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("Collection jobs did not stop in time", zap.Error(err))
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", true, "apply catalog store migrations before serving")
	rootCmd.AddCommand(serveCmd)
}

// routes registers every handler on one mux.
func (a *app) routes() http.Handler {
	mux := http.NewServeMux()

	checks := map[string]handlers.Pinger{"catalog_store": a.db}
	if a.redis != nil {
		checks["ledger"] = database.RedisPinger{Client: a.redis}
	}

	handlers.NewHealthHandler(a.cfg, checks, a.logger).RegisterRoutes(mux)
	handlers.NewCollectionHandler(a.collection, a.logger).RegisterRoutes(mux)
	handlers.NewCatalogHandler(a.catalogRepo, a.logger).RegisterRoutes(mux)
	handlers.NewSearchHandler(a.search, a.logger).RegisterRoutes(mux)
	handlers.NewEnrichmentHandler(a.enrichment, a.logger).RegisterRoutes(mux)
	handlers.NewTagHandler(a.tags, a.logger).RegisterRoutes(mux)

	return middleware.Recoverer(a.logger)(middleware.RequestLogger(a.logger)(mux))
}
