package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/risksheet/internal/clients/yahoo"
	"github.com/aristath/risksheet/internal/config"
	"github.com/aristath/risksheet/internal/database"
	"github.com/aristath/risksheet/internal/modules/positions"
	"github.com/aristath/risksheet/internal/modules/recompute"
	"github.com/aristath/risksheet/internal/modules/snapshots"
	"github.com/aristath/risksheet/internal/scheduler"
	"github.com/aristath/risksheet/internal/server"
	"github.com/aristath/risksheet/pkg/logger"
)

func main() {
	// Load configuration first so it can drive the log level
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New(logger.Config{Level: "info", Pretty: true})
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting RiskSheet")

	// portfolio.db - positions, cash, sector targets and snapshots
	db, err := database.New(database.Config{
		Path: cfg.DataDir + "/portfolio.db",
		Name: "portfolio",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize portfolio database")
	}
	defer db.Close()

	positionsRepo := positions.NewRepository(db.Conn(), log)
	if err := positionsRepo.InitSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize positions schema")
	}

	snapshotsRepo := snapshots.NewRepository(db.Conn(), log)
	if err := snapshotsRepo.InitSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize snapshots schema")
	}

	// Recompute engine over Yahoo Finance
	yahooClient := yahoo.New(log)
	engine := recompute.NewService(yahooClient, cfg.EngineConfig(), log)

	marketWeights, err := cfg.MarketSectorWeights()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load market sector weights")
	}

	// Background jobs
	sched := scheduler.New(log)
	if cfg.SnapshotsEnabled {
		snapshotJob := snapshots.NewJob(positionsRepo, snapshotsRepo, engine, marketWeights, log)
		if err := sched.AddJob(cfg.SnapshotSchedule, snapshotJob); err != nil {
			log.Fatal().Err(err).Msg("Failed to register snapshot job")
		}
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Config{
		Log:           log,
		DB:            db,
		Config:        cfg,
		Engine:        engine,
		PositionsRepo: positionsRepo,
		SnapshotsRepo: snapshotsRepo,
		Scheduler:     sched,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
}
