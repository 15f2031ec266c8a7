package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/yndnr/snapmapper-go/internal/config"
	"github.com/yndnr/snapmapper-go/internal/core/domain"
	"github.com/yndnr/snapmapper-go/internal/infra/buildinfo"
	"github.com/yndnr/snapmapper-go/internal/infra/confloader"
	"github.com/yndnr/snapmapper-go/internal/snapmap"
	"github.com/yndnr/snapmapper-go/internal/storage"
	"github.com/yndnr/snapmapper-go/internal/telemetry/logger"
	"github.com/yndnr/snapmapper-go/internal/telemetry/metric"
)

// ErrClosed is returned by every call made after Close.
var ErrClosed = errors.New("index service closed")

// IndexService owns a store and the mappers of the partitions this
// process serves.
type IndexService struct {
	cfg     *config.Config
	store   storage.Store
	base    logger.Logger
	log     logger.Logger
	metrics *metric.Registry
	onFatal func(error)

	mu      sync.Mutex
	mappers map[domain.Partition]*snapmap.Mapper
	stats   map[string]metric.ConsistencyStats
	watcher *confloader.Watcher
	sources map[string]*configSource
	closed  bool
}

// Option configures an IndexService.
type Option func(*IndexService)

// WithStore uses store instead of opening cfg.Storage. The service
// still closes it on Close.
func WithStore(store storage.Store) Option {
	return func(s *IndexService) {
		s.store = store
	}
}

// WithOnFatal sets the hook every mapper calls on a fatal inconsistency.
func WithOnFatal(fn func(error)) Option {
	return func(s *IndexService) {
		s.onFatal = fn
	}
}

// New opens the store described by cfg and creates the mapper for
// cfg.Partition.
func New(cfg *config.Config, log logger.Logger, opts ...Option) (*IndexService, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logger.Default()
	}

	s := &IndexService{
		cfg:     cfg,
		base:    log,
		log:     log.With("component", "index_service"),
		mappers: make(map[domain.Partition]*snapmap.Mapper),
		stats:   make(map[string]metric.ConsistencyStats),
		sources: make(map[string]*configSource),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.store == nil {
		store, err := storage.Open(cfg.Storage, logger.Slog(log))
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		s.store = store
	}

	if cfg.Metrics.Enabled {
		s.metrics = metric.NewRegistry(cfg.Metrics.Namespace)
		if badger, ok := s.store.(*storage.BadgerStore); ok {
			badger.RegisterMetrics(s.metrics.Registerer(), s.metrics.Namespace())
		}
		s.metrics.Registerer().MustRegister(metric.NewCollector(s.metrics.Namespace(), s.consistencyStats))
	}

	if _, err := s.Mapper(cfg.Partition); err != nil {
		s.store.Close()
		return nil, err
	}

	s.log.Info("index service started", append(config.Summary(cfg), "version", buildinfo.String())...)
	return s, nil
}

// Mapper returns the mapper for part, creating it on first use.
func (s *IndexService) Mapper(part domain.Partition) (*snapmap.Mapper, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if m, ok := s.mappers[part]; ok {
		return m, nil
	}

	m, err := snapmap.New(s.store, snapmap.Config{
		Partition: part,
		Logger:    s.base,
		Metrics:   s.metrics,
		OnFatal:   s.onFatal,
	})
	if err != nil {
		return nil, err
	}
	s.mappers[part] = m
	return m, nil
}

// Default returns the mapper for the configured partition.
func (s *IndexService) Default() *snapmap.Mapper {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mappers[s.cfg.Partition]
}

// Partitions returns the partitions with a mapper, in pool, shard and
// match order.
func (s *IndexService) Partitions() []domain.Partition {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Partition, 0, len(s.mappers))
	for p := range s.mappers {
		out = append(out, p)
	}
	slices.SortFunc(out, comparePartitions)
	return out
}

func comparePartitions(a, b domain.Partition) int {
	if c := cmp.Compare(a.Pool, b.Pool); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Shard, b.Shard); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Bits, b.Bits); c != 0 {
		return c
	}
	return cmp.Compare(a.Match, b.Match)
}

// Begin starts a transaction for mapper writes.
func (s *IndexService) Begin() *storage.Txn {
	return storage.NewTxn()
}

// Commit applies txn atomically. The transaction is sealed even when the
// commit fails.
func (s *IndexService) Commit(ctx context.Context, txn *storage.Txn) error {
	if s.isClosed() {
		return ErrClosed
	}
	if txn == nil {
		return domain.ErrInvalidArgument.WithDetails("txn is required")
	}

	ctx = logger.WithTxnID(ctx, txn.ID())
	ops := txn.Len()
	start := time.Now()

	err := s.store.Commit(ctx, txn)
	elapsed := time.Since(start)

	result := "ok"
	if err != nil {
		result = "error"
	}
	s.metrics.ObserveCommit(result, ops, elapsed.Seconds())

	log := logger.L(logger.WithLogger(ctx, s.log))
	if err != nil {
		log.Error("commit failed", "ops", ops, "error", err)
		return fmt.Errorf("commit %s: %w", txn.ID(), err)
	}
	log.Debug("committed", "ops", ops, "duration", elapsed)
	return nil
}

// CheckConsistency runs a consistency check on every partition and
// keeps the results for the metrics collector. It stops at the first
// partition that cannot be read.
func (s *IndexService) CheckConsistency(ctx context.Context) ([]*snapmap.ConsistencyReport, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}

	var reports []*snapmap.ConsistencyReport
	for _, part := range s.Partitions() {
		m, err := s.Mapper(part)
		if err != nil {
			return reports, err
		}
		report, err := m.CheckConsistency(logger.WithPartition(ctx, part.String()))
		if err != nil {
			return reports, fmt.Errorf("check %s: %w", part, err)
		}
		reports = append(reports, report)

		s.mu.Lock()
		s.stats[part.String()] = metric.ConsistencyStats{
			Partition:      part.String(),
			Objects:        report.Objects,
			ReverseEntries: report.ReverseEntries,
			Violations:     len(report.Violations),
			CheckedAt:      report.CheckedAt,
		}
		s.mu.Unlock()
	}
	return reports, nil
}

func (s *IndexService) consistencyStats() []metric.ConsistencyStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]metric.ConsistencyStats, 0, len(s.stats))
	for _, st := range s.stats {
		out = append(out, st)
	}
	slices.SortFunc(out, func(a, b metric.ConsistencyStats) int {
		return cmp.Compare(a.Partition, b.Partition)
	})
	return out
}

// WatchConfig re-reads the configuration file at path whenever it
// changes, logs which keys changed and applies the log level. Other
// settings need a restart. A file that is missing or invalid now is
// picked up once it becomes valid.
func (s *IndexService) WatchConfig(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if _, ok := s.sources[abs]; ok {
		return nil
	}

	src := &configSource{loader: confloader.NewLoader(confloader.WithConfigFile(abs))}
	if _, err := config.Reload(src.loader); err != nil {
		s.log.Warn("watched config not usable yet", "path", abs, "error", err)
	} else {
		src.applied = src.loader.All()
	}

	if s.watcher == nil {
		w, err := confloader.NewWatcher(confloader.WithWatcherLogger(logger.Slog(s.log)))
		if err != nil {
			return fmt.Errorf("create config watcher: %w", err)
		}
		w.OnChange(s.reloadConfig)
		w.StartAsync()
		s.watcher = w
	}
	if err := s.watcher.Watch(abs); err != nil {
		return fmt.Errorf("watch %s: %w", abs, err)
	}
	s.sources[abs] = src
	return nil
}

// configSource is one watched configuration file and the settings last
// applied from it.
type configSource struct {
	mu      sync.Mutex
	loader  *confloader.Loader
	applied map[string]any
}

func (s *IndexService) reloadConfig(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}
	s.mu.Lock()
	src, ok := s.sources[abs]
	s.mu.Unlock()
	if !ok {
		return
	}

	src.mu.Lock()
	defer src.mu.Unlock()

	cfg, err := config.Reload(src.loader)
	if err != nil {
		s.log.Warn("config reload failed, keeping current settings", "path", abs, "error", err)
		return
	}
	next := src.loader.All()
	changed := confloader.ChangedKeys(src.applied, next)
	src.applied = next
	if len(changed) == 0 {
		return
	}
	s.log.Info("config reloaded", "path", abs, "changed", changed)

	if cfg.Log.Level != logger.GetLevel() {
		logger.SetLevel(cfg.Log.Level)
		s.log.Info("log level changed", "level", cfg.Log.Level)
	}
	if restart := restartKeys(changed); len(restart) > 0 {
		s.log.Warn("changed settings take effect after restart", "keys", restart)
	}
}

// restartKeys returns the keys that cannot be applied to a running
// service.
func restartKeys(changed []string) []string {
	var out []string
	for _, k := range changed {
		if k != "log.level" {
			out = append(out, k)
		}
	}
	return out
}

// Metrics returns the metric registry, or nil when metrics are disabled.
func (s *IndexService) Metrics() *metric.Registry {
	return s.metrics
}

// Store returns the underlying store.
func (s *IndexService) Store() storage.Store {
	return s.store
}

func (s *IndexService) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close stops the config watcher and closes the store. Calling Close
// more than once is a no-op.
func (s *IndexService) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	w := s.watcher
	s.mu.Unlock()

	var errs []error
	if w != nil {
		if err := w.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop config watcher: %w", err))
		}
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	s.log.Info("index service stopped")
	return errors.Join(errs...)
}
