// Package ident generates unique identifiers for sessions and messages.
//
// The primary path uses github.com/google/uuid, which draws from a
// cryptographically strong random source. When that source is unavailable
// (exhausted entropy, restricted environments), generation falls back to a
// v4-shaped pseudo-random identifier. The fallback is explicitly NOT
// cryptographically secure and is acceptable only as a degraded mode:
// identifiers are used for correlation, not for authorization.
package ident

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
)

// New returns a new random identifier in UUID string form.
//
// Two consecutive calls produce different values with overwhelming
// probability. The result is safe to use as a session or message ID.
func New() string {
	id, err := uuid.NewRandom()
	if err != nil {
		// crypto/rand failed; degrade rather than crash the client.
		return pseudoRandomID()
	}
	return id.String()
}

// pseudoRandomID builds a version-4-shaped UUID string from math/rand/v2.
// Mirrors RFC 4122 layout: version nibble 4, variant bits 10.
func pseudoRandomID() string {
	var b [16]byte
	r := rand.Uint64()
	s := rand.Uint64()
	for i := range 8 {
		b[i] = byte(r >> (8 * i))
		b[8+i] = byte(s >> (8 * i))
	}
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80

	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}
