package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dotsetgreg/patternd/pkg/config"
	"github.com/dotsetgreg/patternd/pkg/logger"
	"github.com/dotsetgreg/patternd/pkg/memory"
)

const warmTimeout = 10 * time.Second

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetFormat(cfg.Logging.Format)
	return cfg, nil
}

func engineConfig(cfg *config.Config) memory.Config {
	return memory.Config{
		ShortTermCapacity:   cfg.Engine.ShortTermCapacity,
		EpisodicCapacity:    cfg.Engine.EpisodicCapacity,
		SimilarityThreshold: cfg.Engine.SimilarityThreshold,
		MinOccurrences:      cfg.Engine.MinOccurrences,
		LearningRate:        cfg.Engine.LearningRate,
		DecayRate:           cfg.Engine.DecayRate,
		EvictionStrength:    cfg.Engine.EvictionStrength,
		KnowledgeThreshold:  cfg.Engine.KnowledgeThreshold,
		ReinforceBestMatch:  cfg.Engine.ReinforceBestMatch,
		ConsolidateInterval: cfg.ConsolidateInterval(),
		SnapshotSchedule:    cfg.Storage.SnapshotSchedule,
		PersistTimeout:      cfg.StorageTimeout(),
		LoadMinStrength:     cfg.Storage.LoadMinStrength,
		LoadLimit:           cfg.Storage.LoadLimit,
	}
}

// openEngine builds an engine for cfg, attaching the SQLite store and
// warming long-term memory when storage is enabled.
func openEngine(cfg *config.Config, reg prometheus.Registerer) (*memory.Engine, error) {
	var gateway memory.Gateway
	if cfg.Storage.Enabled {
		store, err := memory.NewSQLiteStore(cfg.StoragePath())
		if err != nil {
			return nil, err
		}
		gateway = store
	}

	mc := engineConfig(cfg)
	mc.Registerer = reg
	engine, err := memory.NewEngine(mc, gateway)
	if err != nil {
		if gateway != nil {
			_ = gateway.Close()
		}
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), warmTimeout)
	defer cancel()
	if _, err := engine.Warm(ctx); err != nil {
		logger.WarnCF("cli", "Starting with empty long-term memory", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return engine, nil
}

// openStore opens the SQLite store directly for read-only queries.
func openStore(cfg *config.Config) (*memory.SQLiteStore, error) {
	if !cfg.Storage.Enabled {
		return nil, errStorageDisabled
	}
	return memory.NewSQLiteStore(cfg.StoragePath())
}
