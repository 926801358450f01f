// Package kv provides the key-value cache every other shelfauth component sits on:
// refresh-token bindings, catalog search pages and book details.
//
// # Semantics
//
// Entries carry an absolute expiry. An expired entry and an absent entry are
// indistinguishable to callers. [Store.Take] removes and returns an entry in one
// atomic step; it is the primitive refresh rotation relies on so two concurrent
// rotations of the same token cannot both succeed.
//
// # Implementations
//
//   - [RedisStore]: go-redis client, Take runs as a Lua script (GET + DEL).
//   - [MemoryStore]: mutex-guarded map for tests and single-process dev mode.
//
// # What this package must NOT do
//
//   - Interpret stored bytes (serialisation belongs to callers).
//   - Import shelfauth or any sibling package.
package kv
