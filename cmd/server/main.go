// Package main is the entry point for the StockApp order ledger service.
// It records BUY/SELL orders per ticker symbol, enforces that a position can
// never go negative, and serves portfolio projections derived from the order
// history.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Jatinmanav/StockApp/internal/config"
	"github.com/Jatinmanav/StockApp/internal/database"
	"github.com/Jatinmanav/StockApp/internal/scheduler"
	"github.com/Jatinmanav/StockApp/internal/server"
	"github.com/Jatinmanav/StockApp/pkg/logger"
)

func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting StockApp")

	// The orders database is an append-mostly ledger; the ledger profile
	// trades write speed for durability and serialized transactions.
	db, err := database.New(database.Config{
		Path:    cfg.DatabasePath(),
		Profile: database.ProfileLedger,
		Name:    "orders",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Background maintenance
	sched := scheduler.New(log)
	if err := sched.AddJob("@hourly", scheduler.NewDBMaintenanceJob(db, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register maintenance job")
	}
	sched.Start()
	defer sched.Stop()

	// HTTP server
	srv := server.New(server.Config{
		Log:     log,
		DB:      db,
		Config:  cfg,
		Port:    cfg.Port,
		DevMode: cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
