package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	appanalytics "github.com/zetta-ds/carsigef/internal/application/analytics"
	"github.com/zetta-ds/carsigef/internal/infrastructure/dataset"
	"github.com/zetta-ds/carsigef/internal/infrastructure/monitoring/logging"
	"github.com/zetta-ds/carsigef/internal/infrastructure/monitoring/metrics"
	httpserver "github.com/zetta-ds/carsigef/internal/interfaces/http"
	"github.com/zetta-ds/carsigef/internal/interfaces/http/handlers"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var preload bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the analytics API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.bootstrap()
			if err != nil {
				return err
			}

			collector := metrics.NewCollector()
			store := dataset.NewStore(cfg.Dataset, logger, collector)
			defer store.Close()
			service := appanalytics.NewService(store, logger, collector)

			if preload {
				if err := store.Load(cmd.Context()); err != nil {
					return err
				}
			}

			if cfg.Dataset.Watch {
				watcher, err := dataset.NewWatcher(cfg.Dataset.Path, service.Reset, logger)
				if err != nil {
					return err
				}
				defer watcher.Close()
			}

			router := httpserver.NewRouter(httpserver.RouterConfig{
				AnalyticsHandler: handlers.NewAnalyticsHandler(service, logger),
				HealthHandler:    handlers.NewHealthHandler(store),
				Logger:           logger,
				Metrics:          collector,
				CORSOrigins:      cfg.Server.CORSOrigins,
			})
			server := httpserver.NewServer(cfg.Server, router, logger)

			errCh := make(chan error, 1)
			go func() { errCh <- server.Start() }()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case sig := <-stop:
				logger.Info("shutdown signal received", logging.String("signal", sig.String()))
			}
			return server.Stop(context.Background())
		},
	}

	cmd.Flags().BoolVar(&preload, "preload", true,
		"load the dataset at startup instead of on first query")
	return cmd
}
