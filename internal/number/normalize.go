// Package number canonicalizes raw user input into tracked +888 identifiers.
//
// Canonical form is exactly 12 decimal digits with the "888" prefix. Raw
// input may carry a leading "+", omit the prefix, or arrive as several
// comma/whitespace separated fragments.
package number

import (
	"errors"
	"strings"
)

// Prefix is the fixed anonymous-number prefix.
const Prefix = "888"

// CanonicalLen is the digit count of a canonical identifier.
const CanonicalLen = 12

var ErrInvalidFormat = errors.New("invalid number format")

// Normalize canonicalizes one raw token.
//
// Rules, in order:
//  1. Drop a leading "+" and every non-digit rune.
//  2. A 12-digit string starting with "888" is accepted as-is.
//  3. An 8 or 9 digit string is left-padded with "888" to 12 digits
//     (the common short local form).
//  4. Anything else is rejected with ErrInvalidFormat.
//
// Normalize is pure and idempotent over its own output.
func Normalize(raw string) (string, error) {
	digits := stripToDigits(raw)
	if digits == "" {
		return "", ErrInvalidFormat
	}
	if len(digits) == CanonicalLen && strings.HasPrefix(digits, Prefix) {
		return digits, nil
	}
	if len(digits) == 8 || len(digits) == 9 {
		padded := Prefix + strings.Repeat("0", CanonicalLen-len(Prefix)-len(digits)) + digits
		return padded, nil
	}
	return "", ErrInvalidFormat
}

// NormalizeBatch splits raw on commas and whitespace and normalizes each
// token. Tokens that fail Normalize are returned verbatim in rejected.
func NormalizeBatch(raw string) (accepted []string, rejected []string) {
	tokens := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	for _, tok := range tokens {
		id, err := Normalize(tok)
		if err != nil {
			rejected = append(rejected, tok)
			continue
		}
		accepted = append(accepted, id)
	}
	return accepted, rejected
}

// Valid reports whether s already is a canonical identifier.
func Valid(s string) bool {
	got, err := Normalize(s)
	return err == nil && got == s
}

func stripToDigits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range strings.TrimSpace(raw) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
