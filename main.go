package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"transfer-dashboard-backend/config"
	"transfer-dashboard-backend/internal/cache"
	"transfer-dashboard-backend/internal/pipeline"
	"transfer-dashboard-backend/internal/query"
	"transfer-dashboard-backend/internal/server"
	"transfer-dashboard-backend/internal/utils"
	"transfer-dashboard-backend/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}
	if err := utils.InitLogger(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer utils.SyncLogger()

	if err := run(cfg); err != nil {
		utils.L().Error("transfer dashboard exited with error", zap.Error(err))
		utils.SyncLogger()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	log := utils.L()
	log.Info("starting transfer dashboard",
		zap.String("chain", cfg.Chain()),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("cache", cfg.Cache.Backend))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, closeBackend, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err := closeBackend(); err != nil {
			log.Warn("close storage failed", zap.Error(err))
		}
	}()

	memo, err := cache.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("create cache: %w", err)
	}
	engine := query.NewEngine(backend, memo)

	warm, err := cfg.Server.Defaults.Request("")
	if err != nil {
		return fmt.Errorf("default request: %w", err)
	}
	coordinator, err := pipeline.NewCoordinator(cfg.Pipeline, cfg.Chain(), pipeline.Deps{
		Sink:        backend,
		Warmer:      engine,
		WarmRequest: func() query.Request { return warm },
	})
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}

	opts := []server.Option{server.WithLive(coordinator.Collector(), coordinator.Broadcaster())}
	if p, ok := backend.(interface{ Ping(context.Context) error }); ok {
		opts = append(opts, server.WithHealthCheck("storage", p.Ping))
	}
	if p, ok := memo.(interface{ Ping(context.Context) error }); ok {
		opts = append(opts, server.WithHealthCheck("cache", p.Ping))
	}
	srv := server.NewServer(cfg.Server, engine, opts...)

	coordinator.Start(ctx)

	var wg sync.WaitGroup
	serverErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Start(ctx); err != nil {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err = <-serverErr:
		log.Error("http server failed", zap.Error(err))
	}
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		coordinator.Stop()
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(cfg.Server.ShutdownTimeout + 5*time.Second):
		log.Warn("shutdown timeout reached")
	}
	return err
}
