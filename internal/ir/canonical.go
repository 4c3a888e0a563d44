package ir

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// CanonicalName returns a graph name in the form it is printed, hashed and
// stored in: surrounding whitespace trimmed and NFC normalized, so that
// visually identical names from different editors compare equal.
func CanonicalName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
