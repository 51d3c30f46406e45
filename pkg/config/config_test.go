package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

// TestDefaultConfig_EngineThresholds verifies the consolidation defaults
func TestDefaultConfig_EngineThresholds(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Engine.SimilarityThreshold != 0.5 {
		t.Errorf("SimilarityThreshold = %v, want 0.5", cfg.Engine.SimilarityThreshold)
	}
	if cfg.Engine.MinOccurrences != 2 {
		t.Errorf("MinOccurrences = %d, want 2", cfg.Engine.MinOccurrences)
	}
	if cfg.Engine.LearningRate != 0.1 {
		t.Errorf("LearningRate = %v, want 0.1", cfg.Engine.LearningRate)
	}
	if cfg.Engine.DecayRate != 0.95 {
		t.Errorf("DecayRate = %v, want 0.95", cfg.Engine.DecayRate)
	}
	if cfg.Engine.ReinforceBestMatch {
		t.Error("ReinforceBestMatch should be off by default")
	}
}

// TestDefaultConfig_Capacities verifies memory tier bounds
func TestDefaultConfig_Capacities(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Engine.ShortTermCapacity != 500 {
		t.Errorf("ShortTermCapacity = %d, want 500", cfg.Engine.ShortTermCapacity)
	}
	if cfg.Engine.EpisodicCapacity != 1000 {
		t.Errorf("EpisodicCapacity = %d, want 1000", cfg.Engine.EpisodicCapacity)
	}
}

func TestDefaultConfig_Durations(t *testing.T) {
	cfg := DefaultConfig()

	if got := cfg.ConsolidateInterval(); got != 30*time.Second {
		t.Errorf("ConsolidateInterval = %v, want 30s", got)
	}
	if got := cfg.StorageTimeout(); got != 5*time.Second {
		t.Errorf("StorageTimeout = %v, want 5s", got)
	}
}

func TestStoragePath_ExpandsHome(t *testing.T) {
	cfg := DefaultConfig()
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	want := filepath.Join(home, ".patternd", "state", "patterns.db")
	if got := cfg.StoragePath(); got != want {
		t.Fatalf("StoragePath = %q, want %q", got, want)
	}
}

func TestSaveConfig_FilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file permission bits are not enforced on Windows")
	}

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	cfg := DefaultConfig()
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}

	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("config file has permission %04o, want 0600", perm)
	}
}

func TestLoadConfig_RoundTripsSavedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := DefaultConfig()
	cfg.Engine.MinOccurrences = 4
	cfg.Storage.Path = "/var/lib/patternd/patterns.db"
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Engine.MinOccurrences != 4 {
		t.Fatalf("MinOccurrences = %d, want 4", loaded.Engine.MinOccurrences)
	}
	if loaded.StoragePath() != "/var/lib/patternd/patterns.db" {
		t.Fatalf("unexpected storage path %q", loaded.StoragePath())
	}
	if loaded.Engine.ShortTermCapacity != 500 {
		t.Fatalf("missing fields should keep defaults, got %d", loaded.Engine.ShortTermCapacity)
	}
}

func TestLoadConfig_EnvOverridesWithoutFile(t *testing.T) {
	t.Setenv("PATTERND_ENGINE_SIMILARITY_THRESHOLD", "0.65")
	t.Setenv("PATTERND_ENGINE_REINFORCE_BEST_MATCH", "true")
	t.Setenv("PATTERND_LOGGING_FORMAT", "json")
	path := filepath.Join(t.TempDir(), "missing-config.json")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if got := cfg.Engine.SimilarityThreshold; got != 0.65 {
		t.Fatalf("expected env override threshold, got %v", got)
	}
	if !cfg.Engine.ReinforceBestMatch {
		t.Fatal("expected best-match reinforcement from env")
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected json log format, got %q", cfg.Logging.Format)
	}
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}
