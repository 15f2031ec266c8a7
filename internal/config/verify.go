package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/yndnr/snapmapper-go/internal/storage"
)

// Verify validates the configuration.
func Verify(cfg *Config) error {
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := cfg.Partition.Validate(); err != nil {
		return fmt.Errorf("partition: %w", err)
	}
	if err := verifyLog(&cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Namespace == "" {
		return errors.New("metrics.namespace is required when metrics are enabled")
	}
	return nil
}

func verifyStorage(cfg *storage.KVConfig) error {
	engine := strings.ToLower(cfg.Engine)
	switch engine {
	case storage.EngineBadger, storage.EnginePebble, storage.EngineBolt, storage.EngineMemory:
	case "":
		engine = storage.EngineBadger
	default:
		return fmt.Errorf("storage.engine %q is not one of badger, pebble, bolt, memory", cfg.Engine)
	}

	if engine == storage.EngineMemory {
		return nil
	}
	if cfg.InMemory {
		if engine == storage.EngineBolt {
			return errors.New("storage.in_memory is not supported by bolt")
		}
		return nil
	}

	if cfg.Dir == "" {
		return errors.New("storage.dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
		return errors.New("cannot create storage directory: " + err.Error())
	}

	if engine == storage.EngineBadger {
		if _, err := time.ParseDuration(cfg.Badger.GCInterval); err != nil {
			return fmt.Errorf("storage.badger.gc_interval: %w", err)
		}
		if cfg.Badger.GCThreshold <= 0 || cfg.Badger.GCThreshold >= 1 {
			return fmt.Errorf("storage.badger.gc_threshold %v must be between 0 and 1", cfg.Badger.GCThreshold)
		}
	}
	return nil
}

func verifyLog(level *string, format string) error {
	switch strings.ToLower(*level) {
	case "debug", "info", "warn", "warning", "error":
	case "":
		*level = DefaultLogLevel
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", *level)
	}
	switch strings.ToLower(format) {
	case "", "json", "text", "console":
	default:
		return fmt.Errorf("log.format %q is not one of json, text", format)
	}
	return nil
}
