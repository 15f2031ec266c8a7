// Package storage provides the ordered key-value stores the snap index
// lives in.
//
// Store offers point and batched lookups, a "first key at or after X"
// read and atomic commit of a buffered transaction. Engines:
//
//   - Badger: default engine, LSM tree with value log GC
//   - Pebble: LSM tree, one Batch per transaction
//   - Bolt:   B+tree in a single file, one Update per transaction
//   - Memory: B-tree in process memory, for tests and embedding
//
// Reads always observe committed state only. A Txn is owned by the
// caller, buffers Set and Delete operations, and has no effect until it
// is passed to Store.Commit.
package storage
