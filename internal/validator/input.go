package validator

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ValidateInput rejects empty and oversized user messages before any
// retrieval or generation happens. maxChars <= 0 disables the length bound.
func ValidateInput(message string, maxChars int) error {
	if strings.TrimSpace(message) == "" {
		return ErrEmptyInput
	}
	if n := utf8.RuneCountInString(message); maxChars > 0 && n > maxChars {
		return fmt.Errorf("%w: %d > %d characters", ErrInputTooLong, n, maxChars)
	}
	return nil
}
