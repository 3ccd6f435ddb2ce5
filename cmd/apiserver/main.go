// apiserver runs the analytics API server without the CLI wrapper, for
// container images whose entrypoint takes no subcommands.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	appanalytics "github.com/zetta-ds/carsigef/internal/application/analytics"
	"github.com/zetta-ds/carsigef/internal/config"
	"github.com/zetta-ds/carsigef/internal/infrastructure/dataset"
	"github.com/zetta-ds/carsigef/internal/infrastructure/monitoring/logging"
	"github.com/zetta-ds/carsigef/internal/infrastructure/monitoring/metrics"
	httpserver "github.com/zetta-ds/carsigef/internal/interfaces/http"
	"github.com/zetta-ds/carsigef/internal/interfaces/http/handlers"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		OutputPaths: cfg.Log.OutputPaths,
	})
	if err != nil {
		return err
	}

	collector := metrics.NewCollector()
	store := dataset.NewStore(cfg.Dataset, logger, collector)
	defer store.Close()
	service := appanalytics.NewService(store, logger, collector)

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
}
