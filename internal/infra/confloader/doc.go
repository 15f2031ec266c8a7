// Package confloader loads configuration with koanf.
//
// Sources, lowest priority first:
//
//  1. Defaults already set in the target struct
//  2. A YAML configuration file
//  3. Environment variables (SNAPMAPPER_ prefix, "__" between levels)
//
// Watcher reports edits to the configuration file so that settings
// which can change at runtime, such as the log level, can be re-applied.
package confloader
