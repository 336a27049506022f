package models

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// ErrInvalidDuration is returned for duration strings outside the
// <integer><unit> grammar.
var ErrInvalidDuration = errors.New("invalid duration")

var durationPattern = regexp.MustCompile(`^(\d+)(ms|s|m|h)$`)

// ParseDuration parses the duration grammar used by delay steps and fetch
// timeouts: a non-negative integer followed by ms, s, m or h.
func ParseDuration(value string) (time.Duration, error) {
	match := durationPattern.FindStringSubmatch(value)
	if match == nil {
		return 0, fmt.Errorf("%w: %q (expected <integer><ms|s|m|h>)", ErrInvalidDuration, value)
	}

	amount, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidDuration, value, err)
	}

	switch match[2] {
	case "ms":
		return time.Duration(amount) * time.Millisecond, nil
	case "s":
		return time.Duration(amount) * time.Second, nil
	case "m":
		return time.Duration(amount) * time.Minute, nil
	default:
		return time.Duration(amount) * time.Hour, nil
	}
}
