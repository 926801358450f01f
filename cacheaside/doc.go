// Package cacheaside implements the read-through cache used for every catalog lookup.
//
// [Cache.GetOrCompute] returns the stored value for a key when one is live and
// otherwise runs the supplied compute function, stores its result with the
// caller's TTL and returns it. A compute error is propagated and nothing is
// stored, so the next call computes again.
//
// The backing [kv.Store] is treated as an accelerator, never a dependency: a
// failed read degrades to a miss and a failed write still returns the computed
// value. Both are logged and reported to the [Observer].
//
// Concurrent misses on one key each run compute. There is no request
// coalescing; the last writer wins.
package cacheaside
