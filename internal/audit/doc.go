// Package audit implements async event dispatching for authentication events.
//
// # Components
//
//   - [Sink] is the interface for event consumers (channel, JSON writer, zerolog, no-op).
//   - [Dispatcher] is a buffered async relay with drop-if-full or block-if-full semantics.
//     Undeliverable events are counted and logged as "audit.dropped"; a panicking sink
//     is recovered and logged as "audit.sink_panic".
//   - [Event] is the structured audit record: timestamp, type, subject, IP, metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit; that responsibility belongs to the Engine.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import shelfauth or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
