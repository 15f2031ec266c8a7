// Package snapmap maintains the bidirectional index between objects and
// the snapshots that reference them.
//
// Two key families share one ordered store:
//
//	MAP_<snap %016X>_<shard prefix><object>  -> (snap, object)
//	OBJ_<shard prefix><object>               -> (object, snap set)
//
// The first orders entries by snapshot so a trimmer can enumerate the
// objects of one snapshot with plain "next key >= X" reads. The second
// answers which snapshots an object belongs to. Mapper keeps both in
// step inside caller-owned transactions and never commits on its own.
//
// Callers must serialize mutations per partition. Invariant violations
// (wrong partition, double insert, stale expectations, corrupt entries)
// are returned as fatal domain errors; see domain.IsFatal.
package snapmap
