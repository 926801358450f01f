// Package catalog fronts the external book catalog (Google Books) with a cache-aside
// layer.
//
// Search pages are cached under search:<query>:<offset>:<limit> for 24 hours and
// book details under book:<id> for 7 days. An upstream 404 for a book is a
// definite answer and is cached as a tombstone. Every other upstream problem
// (transport, status, malformed body, exhausted call budget) is absorbed: the
// caller gets an empty page or "not found", a warning is logged, and nothing is
// cached so the next request tries again.
package catalog
