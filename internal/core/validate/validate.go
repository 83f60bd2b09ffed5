// Package validate provides shared validation functions.
package validate

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBlank is returned by NonBlank.
var ErrBlank = errors.New("cannot be empty")

// NonBlank validates a string is non-empty after trimming whitespace.
func NonBlank(s string) error {
	if strings.TrimSpace(s) == "" {
		return ErrBlank
	}
	return nil
}

// ShorterThan returns a validator that rejects strings of limit bytes or more.
// Lengths are measured in bytes, not runes.
func ShorterThan(limit int) func(string) error {
	return func(s string) error {
		if len(s) >= limit {
			return fmt.Errorf("length %d must be less than %d", len(s), limit)
		}
		return nil
	}
}
