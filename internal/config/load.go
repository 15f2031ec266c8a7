package config

import (
	"fmt"

	"github.com/yndnr/snapmapper-go/internal/infra/confloader"
)

// Load builds a Config from defaults, the YAML file at path (optional)
// and SNAPMAPPER_ environment variables, then verifies it.
func Load(path string) (*Config, error) {
	return Reload(confloader.NewLoader(confloader.WithConfigFile(path)))
}

// Reload discards what loader has read so far, reads its sources again
// on top of the defaults and verifies the result. The loader's All
// snapshot then reflects the new sources even when verification fails.
func Reload(loader *confloader.Loader) (*Config, error) {
	cfg := Default()
	if err := loader.Reload(cfg); err != nil {
		return nil, err
	}
	if err := Verify(cfg); err != nil {
		return nil, fmt.Errorf("verify config: %w", err)
	}
	return cfg, nil
}
