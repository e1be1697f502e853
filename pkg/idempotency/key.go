// Package idempotency derives deterministic fingerprints for user actions
// and provides the Inbox pattern for exactly-once message processing.
package idempotency

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"io"
	"time"
)

// GenerateKey hashes the ordered parts into a hex fingerprint. Each part is
// prefixed with its length, so no choice of part contents can make two
// different part lists hash the same input.
func GenerateKey(parts ...string) string {
	h := sha256.New()
	var n [binary.MaxVarintLen64]byte
	for _, p := range parts {
		h.Write(n[:binary.PutUvarint(n[:], uint64(len(p)))])
		io.WriteString(h, p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Window suppresses repeats of the same fingerprint within a duration.
type Window time.Duration

// Contains reports whether an action at now falls inside the window opened
// by an action at last. A zero last time never matches.
func (w Window) Contains(last, now time.Time) bool {
	if last.IsZero() {
		return false
	}
	elapsed := now.Sub(last)
	return elapsed >= 0 && elapsed < time.Duration(w)
}
