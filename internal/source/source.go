// Package source defines the remote availability lookup consumed by the
// batch checker. Implementations may be an HTTP client, a headless browser,
// or a stub in tests; the checker treats them as black boxes.
package source

import (
	"context"
	"errors"
)

// Status classifies one identifier's remote availability.
type Status string

const (
	StatusAvailable  Status = "available"
	StatusRestricted Status = "restricted"
	StatusNotFound   Status = "not_found"
	StatusError      Status = "error"
)

var ErrUnavailable = errors.New("status source unavailable")

// Source performs one remote lookup.
//
// A Source is not assumed safe for unsynchronized concurrent calls; the
// batch checker gives each worker exclusive use of one Source for the
// duration of a single check.
type Source interface {
	Check(ctx context.Context, id string) (Status, error)
}

// Factory yields independent Source sessions. Checkers running with
// concurrency > 1 require a Factory so workers never share a session.
type Factory interface {
	NewSession() (Source, error)
}

// SingleSession adapts one Source into a Factory. Every session request
// hands out the same underlying Source, so callers must keep checker
// concurrency at 1.
type SingleSession struct{ Source Source }

func (s SingleSession) NewSession() (Source, error) {
	if s.Source == nil {
		return nil, ErrUnavailable
	}
	return s.Source, nil
}

// Mark returns the display symbol used in user-facing reports.
func (s Status) Mark() string {
	switch s {
	case StatusAvailable:
		return "✅"
	case StatusRestricted:
		return "🔒"
	case StatusNotFound:
		return "❓"
	default:
		return "⚠️"
	}
}
