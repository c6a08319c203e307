// Package store persists the guestdesk document: the visitor counter, the
// shoutbox and the guestbook.
//
// # Architecture
//
// Service implements the Store operations on top of a Backend:
//
//   - JSONFileBackend: a single pretty-printed JSON file (default)
//   - SQLiteBackend: one row in an embedded SQLite database
//   - MemoryBackend: in-memory, with failure injection, for tests
//
// # Writes
//
// Every mutation is a write job: load the whole document, change it in
// memory, save the whole document. Jobs go through a FIFO queue with a single
// busy slot, so two jobs never interleave and each one starts from the result
// of every job queued before it. A failed job fails only its own caller; the
// queue moves on to the next job.
//
// Reads are not queued and may observe the document before or after an
// in-flight write.
//
// # Self-healing
//
// A missing or malformed document reads as EmptyDocument. The failure is
// logged, never returned.
//
// # Sanitization
//
// Visitor text passes through sanitize.Text (markup stripped, then truncated
// to the field limit) before it is stored. A post whose name or message is
// empty afterwards fails with ErrMissingFields and changes nothing.
package store
