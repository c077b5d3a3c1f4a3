package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"canmlio/internal/config"
	"canmlio/internal/dictionary"
	"canmlio/internal/infrastructure"
	"canmlio/internal/services"
	transport "canmlio/internal/transport/http"
	"canmlio/internal/websocket"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	paths, err := config.GetPaths()
	if err != nil {
		return fmt.Errorf("failed to initialize paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create required directories: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.Logging.FilePath = paths.GetLogPath("canserve.log")

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer infrastructure.CloseLogFile()

	providers, err := infrastructure.InitializeOTel(logger)
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	metrics, err := infrastructure.CreatePipelineMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("failed to create pipeline metrics: %w", err)
	}

	hub := websocket.NewHub(logger)
	hub.Start()
	defer hub.Stop()

	cache := dictionary.NewCache(cfg.Pipeline.CacheCapacity)
	router := transport.NewRouter(transport.RouterConfig{
		Logger:     logger,
		Convert:    services.NewConvertService(cfg, paths, cache, logger, metrics),
		Dictionary: services.NewDictionaryService(paths, cache, logger),
		Hub:        hub,
		Metrics:    providers.PrometheusHTTP,
		RateRPS:    cfg.Server.RateLimitRPS,
		RateBurst:  cfg.Server.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening",
			slog.Int("port", cfg.Server.Port),
			slog.String("data_dir", paths.DataDir))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Metrics shutdown failed", slog.String("error", err.Error()))
		}
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
