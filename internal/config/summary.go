package config

import (
	"fmt"
	"strings"
)

// Summary returns the settings worth logging at startup as slog
// key-value pairs.
func Summary(cfg *Config) []any {
	engine := strings.ToLower(cfg.Storage.Engine)
	if engine == "" {
		engine = "badger"
	}
	dir := cfg.Storage.Dir
	if cfg.Storage.InMemory || engine == "memory" {
		dir = "(memory)"
	}
	return []any{
		"partition", cfg.Partition.String(),
		"engine", engine,
		"dir", dir,
		"sync_writes", cfg.Storage.SyncWrites,
		"log_level", cfg.Log.Level,
		"metrics", metricsSummary(cfg.Metrics),
	}
}

func metricsSummary(m MetricsSection) string {
	if !m.Enabled {
		return "disabled"
	}
	return fmt.Sprintf("enabled (%s)", m.Namespace)
}
