package config

import (
	"fmt"
	"strings"
	"time"
)

// Duration parses the named duration field of the config file. Empty and
// zero both mean "take the component default" (def); negative values are
// rejected so a typo like "-3h" fails the load instead of disabling
// pacing silently.
func Duration(field, raw string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("config: %s: bad duration %q: %w", field, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("config: %s: negative duration %q", field, raw)
	}
	if d == 0 {
		return def, nil
	}
	return d, nil
}
