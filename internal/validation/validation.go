// Package validation checks and parses caller input before it reaches the orchestrator.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Sentinels matched by errors.Is on every *InputError.
var (
	ErrLocationEmpty        = errors.New("location is required")
	ErrLocationTooShort     = errors.New("location too short")
	ErrLocationTooLong      = errors.New("location too long")
	ErrLocationInvalidChars = errors.New("location contains invalid characters")
)

// InputError names the field that failed free-text validation. Unwrap returns the sentinel.
type InputError struct {
	Field  string
	Kind   error
	Detail string
}

func (e *InputError) Error() string { return e.Field + " " + e.Detail }

func (e *InputError) Unwrap() error { return e.Kind }

// ValidateLocation trims the input, enforces length bounds (minLen, maxLen in runes),
// and restricts to allowed characters: letters (Unicode), digits, space, comma, hyphen,
// period, apostrophe. Returns the trimmed string. Classification and lower-casing happen in
// ParseLocation.
func ValidateLocation(input string, minLen, maxLen int) (string, error) {
	return validateText("location", input, minLen, maxLen)
}

// ValidateQuery applies the location rules to a search query of 2 to 100 runes.
func ValidateQuery(input string) (string, error) {
	return validateText("query", input, 2, 100)
}

func validateText(field, input string, minLen, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	n := len([]rune(s))
	switch {
	case n == 0:
		return "", &InputError{Field: field, Kind: ErrLocationEmpty, Detail: "is required"}
	case minLen > 0 && n < minLen:
		return "", &InputError{Field: field, Kind: ErrLocationTooShort,
			Detail: fmt.Sprintf("must be at least %d characters", minLen)}
	case maxLen > 0 && n > maxLen:
		return "", &InputError{Field: field, Kind: ErrLocationTooLong,
			Detail: fmt.Sprintf("must be at most %d characters", maxLen)}
	}
	if i := strings.IndexFunc(s, func(r rune) bool { return !isAllowedLocationRune(r) }); i >= 0 {
		return "", &InputError{Field: field, Kind: ErrLocationInvalidChars,
			Detail: fmt.Sprintf("contains invalid characters at position %d", i)}
	}
	return s, nil
}

// isAllowedLocationRune reports whether r may appear in a location or coordinate pair.
func isAllowedLocationRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case ' ', ',', '-', '.', '\'':
		return true
	}
	return false
}
