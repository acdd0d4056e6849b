package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Spec is a parsed check schedule: either a fixed interval or a cron
// expression.
type Spec struct {
	Every time.Duration
	Cron  cron.Schedule
	Raw   string
}

// ParseSpec accepts a Go duration ("3h", "45m") or a standard 5-field cron
// expression ("0 */3 * * *").
func ParseSpec(raw string) (Spec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Spec{}, fmt.Errorf("empty schedule")
	}
	if d, err := time.ParseDuration(s); err == nil {
		if d < time.Minute {
			return Spec{}, fmt.Errorf("schedule %q: interval below 1m", raw)
		}
		return Spec{Every: d, Raw: s}, nil
	}
	sched, err := cron.ParseStandard(s)
	if err != nil {
		return Spec{}, fmt.Errorf("schedule %q: not a duration or cron expression: %w", raw, err)
	}
	return Spec{Cron: sched, Raw: s}, nil
}

// Next returns the first tick time strictly after t.
func (s Spec) Next(t time.Time) time.Time {
	if s.Cron != nil {
		return s.Cron.Next(t)
	}
	return t.Add(s.Every)
}

// Period estimates the spacing between ticks, used to bound per-tick
// deadlines. For cron specs it measures two consecutive activations.
func (s Spec) Period(now time.Time) time.Duration {
	if s.Cron == nil {
		return s.Every
	}
	first := s.Cron.Next(now)
	return s.Cron.Next(first).Sub(first)
}
