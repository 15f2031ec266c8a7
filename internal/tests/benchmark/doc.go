// Package benchmark holds performance benchmarks for the snapshot index
// across storage engines.
//
// Run benchmarks with:
//
//	go test -bench=. -benchmem ./internal/tests/benchmark/...
//
// Run one engine with specific object counts:
//
//	go test -bench='BenchmarkTrimScan/pebble' -benchmem -benchtime=10s ./internal/tests/benchmark/...
//
// Compare results:
//
//	benchstat old.txt new.txt
package benchmark
