// Package internal contains helper utilities that are intentionally private to shelfauth,
// starting with secure random generation of refresh tokens.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher and Sink implementations)
//   - flows: login, refresh, logout and authenticate orchestration
//   - logging: zerolog setup for the binary
//   - rate: Redis-backed fixed-window counters for the login throttle and catalog call budget
//   - security: posture report derived from the engine configuration
//
// # What this package must NOT do
//
//   - Export types that appear in the public shelfauth API.
//   - Be imported by any package outside the shelfauth module.
package internal
