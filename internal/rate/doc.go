// Package rate provides Redis-backed fixed-window counters used to throttle login
// attempts per client IP and to cap calls to the upstream book catalog.
//
// # Window semantics
//
// Fixed-window counters: one Lua script runs INCR and sets PEXPIRE on the
// first hit. Keys carry the configured prefix:
//   - rl:login:    login attempts per client IP
//   - rl:catalog   upstream catalog calls, shared by every process
//
// # What this package must NOT do
//
//   - Decide what a throttled caller sees (the Engine and catalog client do that).
//   - Be imported outside the shelfauth module.
package rate
