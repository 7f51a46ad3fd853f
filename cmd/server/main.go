package main

import (
	"context"
	"flag"
	"log"

	"github.com/agridoc/agridoc/internal/config"
	"github.com/agridoc/agridoc/internal/database"
	"github.com/agridoc/agridoc/internal/history"
	"github.com/agridoc/agridoc/internal/logging"
	"github.com/agridoc/agridoc/internal/ml"
	"github.com/agridoc/agridoc/internal/server"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", config.GetConfigPath(), "path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatal("Failed to create logger:", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	// Storage
	kv, err := database.Open(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal("Failed to open storage", zap.String("type", cfg.Storage.Type), zap.Error(err))
	}
	defer kv.Close()

	store := history.NewStore(kv,
		history.WithKey(cfg.History.Key),
		history.WithMaxItems(cfg.History.MaxItems),
		history.WithLocation(cfg.History.Location()),
		history.WithLogger(logger))
	if _, err := store.Load(ctx); err != nil {
		// Retried on first use
		logger.Warn("Could not load history", zap.Error(err))
	}

	// Diagnosis backend
	diagnoser, model, err := ml.NewDiagnoser(ctx, cfg.ML, logger)
	if err != nil {
		logger.Fatal("Failed to create diagnosis backend", zap.String("type", cfg.ML.Type), zap.Error(err))
	}
	defer model.Close()

	srv := server.New(diagnoser, store, cfg.Server, logger)
	if err := srv.Start(cfg.Server.Port); err != nil {
		logger.Fatal("Server stopped", zap.Error(err))
	}
}
