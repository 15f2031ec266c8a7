// Package domain defines the core domain models for the snapshot mapper.
//
// Domain models are pure value objects without any IO dependencies or
// framework coupling. This package contains:
//
//   - ObjectID: Identifier of a stored object, carrying its placement hash
//   - SnapID / SnapSet: Snapshot identifiers and the non-empty set of
//     snapshots an object belongs to
//   - Partition: The hash range (pool, bits, match, shard) owned by one
//     mapper instance, and the key prefixes covering it
//   - Errors: Domain-specific error definitions, split into recoverable
//     errors and fatal inconsistencies
package domain
