package config

import (
	"github.com/yndnr/snapmapper-go/internal/core/domain"
	"github.com/yndnr/snapmapper-go/internal/storage"
	"github.com/yndnr/snapmapper-go/internal/telemetry/logger"
	"github.com/yndnr/snapmapper-go/internal/telemetry/metric"
)

// Default configuration values.
const (
	DefaultDataDir = "/var/lib/snapmapper/data"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default configuration: one partition owning
// every object of pool 0, stored in badger under DefaultDataDir.
func Default() *Config {
	log := logger.DefaultConfig()
	log.Level = DefaultLogLevel
	log.Format = DefaultLogFormat

	return &Config{
		Partition: domain.Partition{Shard: domain.NoShard},
		Storage:   storage.DefaultKVConfig(DefaultDataDir),
		Log:       log,
		Metrics: MetricsSection{
			Enabled:   true,
			Namespace: metric.DefaultNamespace,
		},
	}
}
