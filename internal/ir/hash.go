package ir

import (
	"crypto/sha256"
	"encoding/hex"
)

// DomainGraph prefixes graph fingerprints. The version suffix leaves room
// for changing the dump format later.
const DomainGraph = "ssaopt/graph/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte keeps the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint returns a content hash of g's dump. Graphs that print the
// same have the same fingerprint, so a pass that reports no change must
// leave it untouched.
func Fingerprint(g *Graph) string {
	return hashWithDomain(DomainGraph, []byte(Dump(g)))
}

// ShortFingerprint returns the first 12 hex digits of Fingerprint, for
// logs.
func ShortFingerprint(g *Graph) string {
	return Fingerprint(g)[:12]
}
