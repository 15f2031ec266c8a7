// Package config defines the snapmapper configuration structure.
//
//   - spec.go: Config struct definition
//   - default.go: Default configuration values
//   - verify.go: Validation (engine names, storage paths, partition)
//   - summary.go: Startup log attributes
//   - load.go: Defaults, then file, then environment
//
// Configuration is loaded via internal/infra/confloader.
package config
