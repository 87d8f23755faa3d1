// Package seed turns the optional map seed into the single random source a
// run draws from.
package seed

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand"
	"time"
)

// FromString derives a stable int64 seed from a map seed string.
func FromString(mapSeed string) int64 {
	sum := sha256.Sum256([]byte(mapSeed))
	return int64(binary.LittleEndian.Uint64(sum[:8]))
}

// Resolve returns the seed for a run. An empty map seed means "no seed":
// the result is time-derived and deterministic is false.
func Resolve(mapSeed string) (seed int64, deterministic bool) {
	if mapSeed == "" {
		return time.Now().UnixNano(), false
	}
	return FromString(mapSeed), true
}

// NewRand returns the run's random source. It is not safe for concurrent use;
// the world loop goroutine owns it.
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}
