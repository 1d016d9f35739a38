package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/portfolio-hub/invest-tracker/internal/api"
	"github.com/portfolio-hub/invest-tracker/internal/config"
	"github.com/portfolio-hub/invest-tracker/internal/engine"
	"github.com/portfolio-hub/invest-tracker/internal/logger"
	"github.com/portfolio-hub/invest-tracker/internal/marketdata"
	"github.com/portfolio-hub/invest-tracker/internal/postgres"
	"github.com/portfolio-hub/invest-tracker/internal/server"
	"github.com/portfolio-hub/invest-tracker/internal/store"
)

const (
	_trackerCfgFilePath = "./configs/tracker.yaml"
)

func main() {
	zapLogger, loggerSync, err := logger.NewZapLogger(logger.Debug)
	if err != nil {
		log.Fatalf("%s: can't init logger", err)
	}
	defer loggerSync()

	if err := godotenv.Load(); err != nil {
		zapLogger.Warnf("can't detect .env file")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.LoadTrackerConfig(_trackerCfgFilePath)
	if err != nil {
		zapLogger.Fatalf("%s: can't load tracker cfg", err)
	}

	pgConfig := postgres.NewConfigFromEnv().Setup()
	zapLogger.Debugf("trying to connect to db with: %s", pgConfig)
	db, err := postgres.NewDB(pgConfig)
	if err != nil {
		zapLogger.Fatalf("%s: can't connect to db", err)
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		zapLogger.Fatalf("%s: can't migrate db", err)
	}

	mdClient := marketdata.NewClient(cfg.MarketData, zapLogger)
	eng := engine.NewEngine(store.NewPGStore(db), cfg.Instruments, zapLogger)
	handler := api.NewHandler(eng, mdClient, cfg.Benchmark, cfg.OperationTimeout, zapLogger)

	httpServer := server.NewHTTPServer(ctx, cfg.Server.Port, handler.Router())
	zapLogger.Infof("tracker listening on :%s", cfg.Server.Port)
	if err := httpServer.Run(ctx); err != nil {
		zapLogger.Errorf("%s: server stopped", err)
	}
}
