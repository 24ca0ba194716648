package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseSecondsOrDuration accepts integer seconds ("60") or a Go duration
// ("1m"). Empty input yields def.
func ParseSecondsOrDuration(key, raw string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("%w: %s: duration must be >= 0", ErrInvalid, key)
		}
		return time.Duration(n * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: invalid duration %q", ErrInvalid, key, raw)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %s: duration must be >= 0", ErrInvalid, key)
	}
	return d, nil
}
