// Package ratelimit throttles how often a client may call the mutating
// guestdesk endpoints.
//
// # Model
//
// Each client gets a fixed window that opens on its first request and lasts
// Window. Up to Limit requests are allowed inside the window; further ones
// are rejected until it closes. Counters live in a Store; MemoryStore keeps
// them in process and evicts closed windows from a background janitor.
//
// # Client keys
//
// ClientKey derives the key from the remote IP (or the first X-Forwarded-For
// hop behind a trusted proxy) and hashes it with BLAKE2b-256, so the limiter
// never holds raw addresses.
//
// # HTTP
//
// Middleware wraps a handler. Allowed requests get RateLimit-Limit,
// RateLimit-Remaining and RateLimit-Reset headers; rejected ones get 429,
// Retry-After and a JSON error body, and never reach the wrapped handler.
package ratelimit
