package snapmap

import (
	"context"
	"errors"
	"fmt"

	"github.com/yndnr/snapmapper-go/internal/core/domain"
	"github.com/yndnr/snapmapper-go/internal/storage"
	"github.com/yndnr/snapmapper-go/internal/telemetry/logger"
	"github.com/yndnr/snapmapper-go/internal/telemetry/metric"
)

// Operation names used in logs and metrics.
const (
	opGetSnapshotSet   = "get_snapshot_set"
	opSetSnapshotSet   = "set_snapshot_set"
	opClearSnapshotSet = "clear_snapshot_set"
	opAddObject        = "add_object"
	opUpdateSnapshots  = "update_object_snapshots"
	opRemoveObject     = "remove_object"
	opTrimScan         = "next_objects_for_snapshot"
	opCheck            = "check_consistency"
)

// Config configures a Mapper.
type Config struct {
	// Partition is the slice of the object space this mapper owns.
	Partition domain.Partition

	// Logger defaults to logger.Default().
	Logger logger.Logger

	// Metrics may be nil.
	Metrics *metric.Registry

	// OnFatal, if set, is called with every fatal inconsistency before it
	// is returned. A process that cannot safely continue should abort
	// here.
	OnFatal func(error)
}

// Mapper maintains the snapshot index of one partition.
//
// Mapper holds no locks. Mutating calls against one partition must be
// serialized by the caller. Reads see committed state only; writes are
// buffered into the caller's transaction and take effect when the caller
// commits it.
type Mapper struct {
	backend     *Backend
	part        domain.Partition
	shardPrefix string
	prefixes    []string
	log         logger.Logger
	metrics     *metric.Registry
	onFatal     func(error)
}

// New creates a mapper for cfg.Partition over store.
func New(store storage.Store, cfg Config) (*Mapper, error) {
	if store == nil {
		return nil, domain.ErrInvalidArgument.WithDetails("store is required")
	}
	if err := cfg.Partition.Validate(); err != nil {
		return nil, err
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}
	log = log.With("component", "snap_mapper", "partition", cfg.Partition.String())

	m := &Mapper{
		backend:     NewBackend(store, log),
		part:        cfg.Partition,
		shardPrefix: cfg.Partition.ShardPrefix(),
		prefixes:    cfg.Partition.Prefixes(),
		log:         log,
		metrics:     cfg.Metrics,
		onFatal:     cfg.OnFatal,
	}

	log.Debug("snap mapper created", "prefixes", m.prefixes)
	return m, nil
}

// Partition returns the owned partition.
func (m *Mapper) Partition() domain.Partition {
	return m.part
}

// Prefixes returns the object-id prefixes the trim scan walks.
func (m *Mapper) Prefixes() []string {
	out := make([]string, len(m.prefixes))
	copy(out, m.prefixes)
	return out
}

// UpdateBits changes the number of partition bits, e.g. after a split,
// and recomputes the owned prefixes.
func (m *Mapper) UpdateBits(bits uint32) error {
	part := m.part
	part.Bits = bits
	if err := part.Validate(); err != nil {
		return err
	}
	m.part = part
	m.prefixes = part.Prefixes()
	m.log.Info("partition bits updated", "bits", bits, "prefixes", m.prefixes)
	return nil
}

// GetSnapshotSet returns the snapshots oid belongs to, or ErrNotFound.
func (m *Mapper) GetSnapshotSet(ctx context.Context, oid domain.ObjectID) (set domain.SnapSet, err error) {
	defer func() { m.record(opGetSnapshotSet, err) }()

	if err := m.checkOwnership(opGetSnapshotSet, oid); err != nil {
		return nil, err
	}
	return m.getSnapshotSet(ctx, opGetSnapshotSet, oid)
}

func (m *Mapper) getSnapshotSet(ctx context.Context, op string, oid domain.ObjectID) (domain.SnapSet, error) {
	key := ForwardKey(oid)
	got, err := m.backend.GetMany(ctx, key)
	if err != nil {
		return nil, err
	}
	raw, ok := got[string(key)]
	if !ok {
		return nil, domain.ErrNotFound.WithDetails(oid.String())
	}

	stored, set, err := DecodeForwardValue(raw)
	if err != nil {
		return nil, fmt.Errorf("forward entry %q: %w", key, err)
	}
	if stored != oid {
		return nil, m.fatal(op, domain.ErrCorruptMapping.WithDetailsf(
			"forward entry %q holds object %s", key, stored.String()))
	}
	if set.IsEmpty() {
		return nil, m.fatal(op, domain.ErrCorruptMapping.WithDetailsf(
			"forward entry %q holds an empty snap set", key))
	}
	return set, nil
}

// SetSnapshotSet overwrites the forward entry of oid. Reverse entries are
// not touched; use AddObject, UpdateObjectSnapshots or RemoveObject to keep
// both families in step.
func (m *Mapper) SetSnapshotSet(ctx context.Context, oid domain.ObjectID, set domain.SnapSet, txn *storage.Txn) (err error) {
	defer func() { m.record(opSetSnapshotSet, err) }()

	if err := m.checkOwnership(opSetSnapshotSet, oid); err != nil {
		return err
	}
	if err := m.checkTxn(txn); err != nil {
		return err
	}
	if set.IsEmpty() {
		return domain.ErrInvalidArgument.WithDetailsf("empty snap set for %s", oid.String())
	}
	return m.setSnapshotSet(oid, set, txn)
}

func (m *Mapper) setSnapshotSet(oid domain.ObjectID, set domain.SnapSet, txn *storage.Txn) error {
	value, err := EncodeForwardValue(oid, set)
	if err != nil {
		return err
	}
	m.backend.EnqueueSet(map[string][]byte{string(ForwardKey(oid)): value}, txn)
	m.metrics.AddKeysEnqueued("forward", "set", 1)
	return nil
}

// ClearSnapshotSet removes the forward entry of oid only.
func (m *Mapper) ClearSnapshotSet(ctx context.Context, oid domain.ObjectID, txn *storage.Txn) (err error) {
	defer func() { m.record(opClearSnapshotSet, err) }()

	if err := m.checkOwnership(opClearSnapshotSet, oid); err != nil {
		return err
	}
	if err := m.checkTxn(txn); err != nil {
		return err
	}
	m.clearSnapshotSet(oid, txn)
	return nil
}

func (m *Mapper) clearSnapshotSet(oid domain.ObjectID, txn *storage.Txn) {
	m.backend.EnqueueRemove([]string{string(ForwardKey(oid))}, txn)
	m.metrics.AddKeysEnqueued("forward", "remove", 1)
}

// AddObject indexes a new object under every snapshot in set.
// Adding an object that already has a forward entry is fatal.
func (m *Mapper) AddObject(ctx context.Context, oid domain.ObjectID, set domain.SnapSet, txn *storage.Txn) (err error) {
	defer func() { m.record(opAddObject, err) }()

	if err := m.checkOwnership(opAddObject, oid); err != nil {
		return err
	}
	if err := m.checkTxn(txn); err != nil {
		return err
	}
	if set.IsEmpty() {
		return domain.ErrInvalidArgument.WithDetailsf("empty snap set for %s", oid.String())
	}

	key := ForwardKey(oid)
	got, err := m.backend.GetMany(ctx, key)
	if err != nil {
		return err
	}
	if _, exists := got[string(key)]; exists {
		return m.fatal(opAddObject, domain.ErrDuplicateObject.WithDetailsf(
			"%s already indexed, adding %s", oid.String(), set.String()))
	}

	m.txnLog(ctx, txn).Debug("add object", "oid", oid.String(), "snaps", set.String())

	if err := m.setSnapshotSet(oid, set, txn); err != nil {
		return err
	}
	return m.setReverse(oid, set, txn)
}

// UpdateObjectSnapshots replaces the snapshot set of oid with newSet.
//
// An empty newSet removes the object. When expected is non-nil it must
// equal the stored set; a mismatch is fatal. Reverse entries are diffed:
// snapshots leaving the set lose their entry, snapshots joining it gain
// one, and the rest are left alone.
func (m *Mapper) UpdateObjectSnapshots(ctx context.Context, oid domain.ObjectID, newSet domain.SnapSet, expected *domain.SnapSet, txn *storage.Txn) (err error) {
	if newSet.IsEmpty() {
		return m.RemoveObject(ctx, oid, txn)
	}

	defer func() { m.record(opUpdateSnapshots, err) }()

	if err := m.checkOwnership(opUpdateSnapshots, oid); err != nil {
		return err
	}
	if err := m.checkTxn(txn); err != nil {
		return err
	}

	old, err := m.getSnapshotSet(ctx, opUpdateSnapshots, oid)
	if err != nil {
		return err
	}
	if expected != nil && !expected.Equal(old) {
		return m.fatal(opUpdateSnapshots, domain.ErrSnapSetMismatch.WithDetailsf(
			"%s: expected %s, stored %s", oid.String(), expected.String(), old.String()))
	}

	m.txnLog(ctx, txn).Debug("update object snapshots",
		"oid", oid.String(), "old", old.String(), "new", newSet.String())

	if err := m.setSnapshotSet(oid, newSet, txn); err != nil {
		return err
	}
	m.removeReverse(oid, old.Difference(newSet), txn)
	return m.setReverse(oid, newSet.Difference(old), txn)
}

// RemoveObject drops oid and all of its reverse entries from the index.
func (m *Mapper) RemoveObject(ctx context.Context, oid domain.ObjectID, txn *storage.Txn) (err error) {
	defer func() { m.record(opRemoveObject, err) }()

	if err := m.checkOwnership(opRemoveObject, oid); err != nil {
		return err
	}
	if err := m.checkTxn(txn); err != nil {
		return err
	}

	old, err := m.getSnapshotSet(ctx, opRemoveObject, oid)
	if err != nil {
		return err
	}

	m.txnLog(ctx, txn).Debug("remove object", "oid", oid.String(), "snaps", old.String())

	m.clearSnapshotSet(oid, txn)
	m.removeReverse(oid, old, txn)
	return nil
}

func (m *Mapper) setReverse(oid domain.ObjectID, snaps domain.SnapSet, txn *storage.Txn) error {
	if snaps.IsEmpty() {
		return nil
	}
	entries := make(map[string][]byte, snaps.Len())
	for _, snap := range snaps {
		value, err := EncodeReverseValue(snap, oid)
		if err != nil {
			return err
		}
		entries[string(ReverseKey(snap, oid))] = value
	}
	m.backend.EnqueueSet(entries, txn)
	m.metrics.AddKeysEnqueued("reverse", "set", len(entries))
	return nil
}

func (m *Mapper) removeReverse(oid domain.ObjectID, snaps domain.SnapSet, txn *storage.Txn) {
	if snaps.IsEmpty() {
		return
	}
	keys := make([]string, 0, snaps.Len())
	for _, snap := range snaps {
		keys = append(keys, string(ReverseKey(snap, oid)))
	}
	m.backend.EnqueueRemove(keys, txn)
	m.metrics.AddKeysEnqueued("reverse", "remove", len(keys))
}

func (m *Mapper) checkTxn(txn *storage.Txn) error {
	if txn == nil {
		return domain.ErrInvalidArgument.WithDetails("txn is required")
	}
	if txn.Committed() {
		return domain.ErrInvalidArgument.WithDetailsf("txn %s already committed", txn.ID())
	}
	return nil
}

// txnLog is the mapper logger tagged with txn and any partition label ctx carries.
func (m *Mapper) txnLog(ctx context.Context, txn *storage.Txn) logger.Logger {
	ctx = logger.WithTxnID(logger.WithLogger(ctx, m.log), txn.ID())
	return logger.L(ctx)
}

// checkOwnership fails fatally when oid does not belong to the partition.
func (m *Mapper) checkOwnership(op string, oid domain.ObjectID) error {
	if m.part.Owns(oid) {
		return nil
	}
	mask := m.part.Mask()
	return m.fatal(op, domain.ErrPartitionOwnership.WithDetailsf(
		"%s: pool=%d shard=%d hash=%08x mask=%08x match=%08x, partition pool=%d shard=%d",
		oid.String(), oid.Pool, oid.Shard, oid.Hash, mask, m.part.Match&mask, m.part.Pool, m.part.Shard))
}

// fatal reports an invariant violation and returns it.
func (m *Mapper) fatal(op string, err *domain.DomainError) error {
	m.log.Error("fatal snap index inconsistency",
		"op", op, "code", err.Code, "error", err.Error())
	m.metrics.RecordFatal(err.Code)
	if m.onFatal != nil {
		m.onFatal(err)
	}
	return err
}

func (m *Mapper) record(op string, err error) {
	m.metrics.RecordIndexOp(op, resultLabel(err))
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case domain.IsFatal(err):
		return "fatal"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrFormat):
		return "format_error"
	default:
		return "error"
	}
}
