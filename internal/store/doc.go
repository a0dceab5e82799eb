// Package store provides SQLite-backed recordings of announced narrative
// events.
//
// A recording is an append-only log of (seq, timestamp, event) rows for one
// team in one arena. Live monitoring appends to it through a Recorder; the
// replay source reads it back.
//
// # Critical Patterns
//
// Logical Ordering:
//   - Events are read ORDER BY seq ASC, never by timestamp
//   - Timestamps are kept only to reproduce the gaps between events
//
// Idempotent Appends:
//   - PRIMARY KEY (recording_id, seq) with ON CONFLICT DO NOTHING
//   - Writing the same event twice leaves one row
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Events require their recording
//
// Payloads are stored as the JSON envelope of event.Marshal.
package store
