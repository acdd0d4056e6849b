package storage

import (
	"errors"
	"time"
)

// ErrUnavailable wraps persistence I/O failures. Callers must treat the
// in-memory view as stale after seeing it and reload from durable state.
var ErrUnavailable = errors.New("store unavailable")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (atomic JSON snapshot)
//   - "sqlite": SQLite database file
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// UserRecord is the durable per-user state: the tracked identifier set and
// the notification preference. Numbers are stored sorted and deduplicated.
type UserRecord struct {
	UserID    int64     `json:"user_id"`
	Numbers   []string  `json:"numbers"`
	Notify    bool      `json:"notify"`
	UpdatedAt time.Time `json:"updated_at"`
}
