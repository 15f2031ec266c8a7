package storage

import (
	"context"
	"errors"
	"time"
)

// Common errors
var (
	ErrKeyNotFound   = errors.New("key not found")
	ErrClosed        = errors.New("kv store closed")
	ErrTxnDone       = errors.New("transaction already committed")
	ErrTxnTooLarge   = errors.New("transaction too large for engine")
	ErrUnknownEngine = errors.New("unknown kv engine")
)

// Pair is a stored key and its value.
type Pair struct {
	Key   []byte
	Value []byte
}

// Store is an ordered key-value store with byte-lexicographic key order.
//
// Implementations must be safe for concurrent use. Returned slices are
// owned by the caller.
type Store interface {
	// Get retrieves a value by key.
	// Returns ErrKeyNotFound if key doesn't exist.
	Get(ctx context.Context, key []byte) ([]byte, error)

	// GetMany looks up several keys at once. Missing keys are simply
	// absent from the result; that is not an error.
	GetMany(ctx context.Context, keys [][]byte) (map[string][]byte, error)

	// NextAtOrAfter returns the smallest stored key >= key.
	// ok is false when no such key exists.
	NextAtOrAfter(ctx context.Context, key []byte) (pair Pair, ok bool, err error)

	// Commit applies every operation buffered in txn atomically.
	// A transaction can be committed once.
	Commit(ctx context.Context, txn *Txn) error

	// Close releases the store.
	Close() error
}

// Engine names accepted by KVConfig.Engine.
const (
	EngineBadger = "badger"
	EnginePebble = "pebble"
	EngineBolt   = "bolt"
	EngineMemory = "memory"
)

// KVConfig configures an embedded KV engine.
type KVConfig struct {
	// Engine specifies the KV engine type ("badger", "pebble", "bolt", "memory").
	// Default: "badger"
	Engine string `koanf:"engine"`

	// Dir is the storage directory. Ignored by the memory engine and
	// when InMemory is set.
	Dir string `koanf:"dir"`

	// InMemory keeps badger or pebble data off disk (tests).
	InMemory bool `koanf:"in_memory"`

	// SyncWrites fsyncs every commit.
	// Default: true (the index must survive a crash with the data it indexes)
	SyncWrites bool `koanf:"sync_writes"`

	// Badger-specific configuration
	Badger BadgerConfig `koanf:"badger"`

	// Bolt-specific configuration
	Bolt BoltConfig `koanf:"bolt"`
}

// BadgerConfig contains Badger-specific tuning parameters.
type BadgerConfig struct {
	// GCInterval is the interval between automatic GC runs.
	// Default: 10m
	GCInterval string `koanf:"gc_interval"`

	// GCThreshold is the GC discard ratio threshold (0.0-1.0).
	// Default: 0.5
	GCThreshold float64 `koanf:"gc_threshold"`

	// CacheSize is the block cache size in bytes.
	// Default: 64MB
	CacheSize int64 `koanf:"cache_size"`

	// ValueLogFileSize is the max value log file size in bytes.
	// Default: 1GB
	ValueLogFileSize int64 `koanf:"value_log_file_size"`

	// NumMemtables is the number of memtables.
	// Default: 2
	NumMemtables int `koanf:"num_memtables"`

	// NumLevelZeroTables is the number of Level 0 tables before compaction.
	// Default: 5
	NumLevelZeroTables int `koanf:"num_level_zero_tables"`

	// NumLevelZeroTablesStall is the number of Level 0 tables that triggers write stall.
	// Default: 10
	NumLevelZeroTablesStall int `koanf:"num_level_zero_tables_stall"`
}

// BoltConfig contains bbolt-specific parameters.
type BoltConfig struct {
	// Bucket holds every index key.
	// Default: "snapmap"
	Bucket string `koanf:"bucket"`

	// Timeout bounds waiting for the file lock on open.
	// Default: 1s
	Timeout time.Duration `koanf:"timeout"`
}

// DefaultKVConfig returns the default KV configuration.
func DefaultKVConfig(dir string) KVConfig {
	return KVConfig{
		Engine:     EngineBadger,
		Dir:        dir,
		SyncWrites: true,
		Badger:     DefaultBadgerConfig(),
		Bolt:       DefaultBoltConfig(),
	}
}

// DefaultBadgerConfig returns the default Badger configuration.
func DefaultBadgerConfig() BadgerConfig {
	return BadgerConfig{
		GCInterval:              "10m",
		GCThreshold:             0.5,
		CacheSize:               64 << 20, // 64MB
		ValueLogFileSize:        1 << 30,  // 1GB
		NumMemtables:            2,
		NumLevelZeroTables:      5,
		NumLevelZeroTablesStall: 10,
	}
}

// DefaultBoltConfig returns the default bbolt configuration.
func DefaultBoltConfig() BoltConfig {
	return BoltConfig{
		Bucket:  "snapmap",
		Timeout: time.Second,
	}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
