// Package storage persists per-user tracked-number records.
//
// Two drivers:
//   - file: single JSON snapshot, temp-file + rename on every commit
//   - sqlite: one row per user, JSON-encoded number list
package storage
