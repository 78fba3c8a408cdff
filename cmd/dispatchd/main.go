package main

import (
	"context"
	"log"
	"os"

	"dispatchd/internal/api"
	"dispatchd/internal/cache"
	"dispatchd/internal/config"
	"dispatchd/internal/dispatch"
	"dispatchd/internal/store"
	"dispatchd/internal/tracing"
	"dispatchd/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := config.NewLogger(os.Stdout, config.ParseLogLevel(cfg.LogLevel))

	logger.Info("dispatchd: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"worker_count", cfg.WorkerCount,
	)

	shutdownTracer, err := tracing.Init("dispatchd", os.Stderr)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("shutdown tracer", "error", err)
		}
	}()

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	requestCache := cache.New()
	pool := worker.NewPool(cfg.WorkerCount)
	work := dispatch.SimulatedWork(cfg.WorkDelayMin, cfg.WorkDelayMax)
	dispatcher := dispatch.New(db, requestCache, pool, work, logger)

	srv := api.NewServer(cfg.ListenAddr, db, dispatcher, pool, requestCache, logger)

	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
