// Package security validates user supplied tokens before they reach the
// report engine's command line.
package security

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MaxNameLength  = 128
	MaxValueLength = 512
)

// ErrInvalidToken is wrapped by every rejection.
var ErrInvalidToken = errors.New("invalid token")

// valueSymbols lists the punctuation accepted inside parameter values.
const valueSymbols = " _-.,:/@+()#%"

// ValidateName checks identifiers such as template names, parameter keys and
// entity ids: ASCII letters, digits, '_' and '-', never starting with '-'.
func ValidateName(kind, name string) error {
	if name == "" {
		return fmt.Errorf("%w: %s is empty", ErrInvalidToken, kind)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: %s exceeds %d characters", ErrInvalidToken, kind, MaxNameLength)
	}
	if name[0] == '-' {
		return fmt.Errorf("%w: %s must not start with '-'", ErrInvalidToken, kind)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return fmt.Errorf("%w: %s contains %q", ErrInvalidToken, kind, r)
		}
	}
	return nil
}

// ValidateValue checks a report parameter value. Letters and digits of any
// script are accepted together with a small set of punctuation; quotes,
// shell metacharacters and control characters are rejected.
func ValidateValue(key, value string) error {
	if !utf8.ValidString(value) {
		return fmt.Errorf("%w: value of %s is not valid UTF-8", ErrInvalidToken, key)
	}
	if utf8.RuneCountInString(value) > MaxValueLength {
		return fmt.Errorf("%w: value of %s exceeds %d characters", ErrInvalidToken, key, MaxValueLength)
	}
	for _, r := range value {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune(valueSymbols, r) {
			continue
		}
		return fmt.Errorf("%w: value of %s contains %q", ErrInvalidToken, key, r)
	}
	return nil
}
