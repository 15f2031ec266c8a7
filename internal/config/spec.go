package config

import (
	"github.com/yndnr/snapmapper-go/internal/core/domain"
	"github.com/yndnr/snapmapper-go/internal/storage"
	"github.com/yndnr/snapmapper-go/internal/telemetry/logger"
)

// Config is the root configuration of a snapmapper index.
type Config struct {
	Partition domain.Partition `koanf:"partition"`
	Storage   storage.KVConfig `koanf:"storage"`
	Log       logger.Config    `koanf:"log"`
	Metrics   MetricsSection   `koanf:"metrics"`
}

// MetricsSection configures Prometheus metrics.
type MetricsSection struct {
	Enabled bool `koanf:"enabled"`
	// Namespace prefixes every metric name.
	Namespace string `koanf:"namespace"`
}
