// Package logger provides structured logging for snapmapper.
//
//   - logger.go: slog-backed Logger, configuration and dynamic level
//   - context.go: context-aware logging with txn/partition IDs
//   - bytes.go: hex rendering of raw key and value bytes
//
// Output is JSON by default, text on request. Byte slices logged as
// attributes are rendered as (truncated) hex so index values can be
// inspected without corrupting the log stream.
package logger
