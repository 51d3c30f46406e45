package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Engine  EngineConfig  `json:"engine"`
	Storage StorageConfig `json:"storage"`
	Logging LoggingConfig `json:"logging"`
	mu      sync.RWMutex
}

type EngineConfig struct {
	ShortTermCapacity     int     `json:"short_term_capacity" env:"PATTERND_ENGINE_SHORT_TERM_CAPACITY"`
	EpisodicCapacity      int     `json:"episodic_capacity" env:"PATTERND_ENGINE_EPISODIC_CAPACITY"`
	SimilarityThreshold   float64 `json:"similarity_threshold" env:"PATTERND_ENGINE_SIMILARITY_THRESHOLD"`
	MinOccurrences        int     `json:"min_occurrences" env:"PATTERND_ENGINE_MIN_OCCURRENCES"`
	LearningRate          float64 `json:"learning_rate" env:"PATTERND_ENGINE_LEARNING_RATE"`
	DecayRate             float64 `json:"decay_rate" env:"PATTERND_ENGINE_DECAY_RATE"`
	EvictionStrength      float64 `json:"eviction_strength" env:"PATTERND_ENGINE_EVICTION_STRENGTH"`
	KnowledgeThreshold    float64 `json:"knowledge_threshold" env:"PATTERND_ENGINE_KNOWLEDGE_THRESHOLD"`
	ConsolidateIntervalMS int     `json:"consolidate_interval_ms" env:"PATTERND_ENGINE_CONSOLIDATE_INTERVAL_MS"`
	ReinforceBestMatch    bool    `json:"reinforce_best_match" env:"PATTERND_ENGINE_REINFORCE_BEST_MATCH"`
}

type StorageConfig struct {
	Enabled          bool    `json:"enabled" env:"PATTERND_STORAGE_ENABLED"`
	Path             string  `json:"path" env:"PATTERND_STORAGE_PATH"`
	LoadMinStrength  float64 `json:"load_min_strength" env:"PATTERND_STORAGE_LOAD_MIN_STRENGTH"`
	LoadLimit        int     `json:"load_limit" env:"PATTERND_STORAGE_LOAD_LIMIT"`
	TimeoutMS        int     `json:"timeout_ms" env:"PATTERND_STORAGE_TIMEOUT_MS"`
	SnapshotSchedule string  `json:"snapshot_schedule" env:"PATTERND_STORAGE_SNAPSHOT_SCHEDULE"` // cron expression
}

type LoggingConfig struct {
	Level  string `json:"level" env:"PATTERND_LOGGING_LEVEL"`
	Format string `json:"format" env:"PATTERND_LOGGING_FORMAT"` // "text" or "json"
}

func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			ShortTermCapacity:     500,
			EpisodicCapacity:      1000,
			SimilarityThreshold:   0.5,
			MinOccurrences:        2,
			LearningRate:          0.1,
			DecayRate:             0.95,
			EvictionStrength:      0.1,
			KnowledgeThreshold:    0.6,
			ConsolidateIntervalMS: 30000,
			ReinforceBestMatch:    false,
		},
		Storage: StorageConfig{
			Enabled:          true,
			Path:             "~/.patternd/state/patterns.db",
			LoadMinStrength:  0.1,
			LoadLimit:        1000,
			TimeoutMS:        5000,
			SnapshotSchedule: "*/15 * * * *",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// StoragePath returns the database path with ~ expanded.
func (c *Config) StoragePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Storage.Path)
}

func (c *Config) ConsolidateInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.Engine.ConsolidateIntervalMS) * time.Millisecond
}

func (c *Config) StorageTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.Storage.TimeoutMS) * time.Millisecond
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
