// Package service embeds the snapshot index into a process.
//
// IndexService opens the configured store, hands out one snapmap.Mapper
// per partition and owns the transaction commit path, so that commit
// latency and the latest consistency check results reach metrics and
// logs in one place. Deciding when to trim, and which partitions this
// process owns, stays with the caller.
package service
