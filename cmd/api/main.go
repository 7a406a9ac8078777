package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/demand-dashboard/internal/api"
	"github.com/dvloznov/demand-dashboard/internal/config"
	"github.com/dvloznov/demand-dashboard/internal/dashboard"
	"github.com/dvloznov/demand-dashboard/internal/dataset"
	"github.com/dvloznov/demand-dashboard/internal/forecast"
	"github.com/dvloznov/demand-dashboard/internal/jobs/inmemory"
	"github.com/dvloznov/demand-dashboard/internal/logger"
	"github.com/dvloznov/demand-dashboard/internal/pipeline"
	"github.com/dvloznov/demand-dashboard/internal/source"
)

// loadTimeout bounds the startup dataset load.
const loadTimeout = 5 * time.Minute

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file (or set "+config.PathEnvVar+")")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.Configure(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to configure logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		var loadErr *pipeline.LoadError
		if errors.As(err, &loadErr) {
			log.Fatal().Err(err).Str("source", loadErr.Source).Msg("Dataset could not be loaded")
		}
		log.Fatal().Err(err).Msg("Server stopped with error")
	}
}

// run loads the dataset, starts the forecast workers and serves HTTP until
// ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	// 1. Load the dataset once; every request reads the same immutable value.
	src, err := source.New(cfg.Source)
	if err != nil {
		return err
	}

	loadCtx, cancelLoad := context.WithTimeout(ctx, loadTimeout)
	ds, err := dataset.Load(loadCtx, src, log)
	cancelLoad()
	if err != nil {
		return err
	}

	// 2. Start the forecast worker pool.
	jobStore := inmemory.NewStore(0)
	jobQueue := inmemory.NewQueue(cfg.Forecast.QueueSize, cfg.Forecast.Workers, jobStore, log)

	model := forecast.NewModel(forecast.Options{
		ChangepointPriorScale: cfg.Forecast.ChangepointPriorScale,
		SeasonalityPriorScale: cfg.Forecast.SeasonalityPriorScale,
		Samples:               cfg.Forecast.Samples,
		Seed:                  cfg.Forecast.Seed,
	}, log)

	workerCtx, cancelWorker := context.WithCancel(context.Background())
	defer cancelWorker()

	if err := jobQueue.Start(workerCtx, dashboard.FitHandler(model)); err != nil {
		return fmt.Errorf("run: start job queue: %w", err)
	}

	// 3. Wire the service and router.
	svc := dashboard.NewService(ds, jobQueue, dashboard.Options{
		TrendWindowDays: cfg.API.TrendWindowDays,
		FitBudget:       cfg.Forecast.FitBudget,
	}, log)

	if cfg.Server.WriteTimeout <= cfg.Forecast.FitBudget {
		log.Warn().
			Dur("write_timeout", cfg.Server.WriteTimeout).
			Dur("fit_budget", cfg.Forecast.FitBudget).
			Msg("Server write timeout does not exceed the forecast fit budget")
	}

	server := &http.Server{
		Addr: cfg.Server.Addr(),
		Handler: api.NewRouter(api.Deps{
			Dashboard: svc,
			Jobs:      jobStore,
			Dataset:   ds,
			Config:    cfg.API,
			Log:       log,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Int("rows", ds.Len()).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// 4. Wait for a signal or a listener failure.
	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("run: serve: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight fits
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
	return nil
}
