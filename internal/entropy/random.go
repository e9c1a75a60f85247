// Package entropy provides the random sources that drive initial-cooperator
// draws, random topologies, and the Pairwise-Fermi rule.
// A zero base seed means "reseed from crypto/rand every episode".
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand"
)

// Source owns one *rand.Rand and knows how to reseed it per episode.
type Source struct {
	base int64
	rng  *mrand.Rand
}

// NewSource creates a source. With base == 0 every Reseed draws fresh
// entropy; otherwise episode seeds are derived from base.
func NewSource(base int64) *Source {
	s := &Source{base: base}
	s.rng = mrand.New(mrand.NewSource(s.seedFor(0)))
	return s
}

// Rand returns the current generator. The pointer stays valid across Reseed.
func (s *Source) Rand() *mrand.Rand {
	return s.rng
}

// Reseed resets the generator at the start of an episode.
func (s *Source) Reseed(episode int) {
	s.rng.Seed(s.seedFor(episode))
}

// Fixed reports whether the source was created with an explicit seed.
func (s *Source) Fixed() bool {
	return s.base != 0
}

func (s *Source) seedFor(episode int) int64 {
	if s.base == 0 {
		return CryptoSeed()
	}
	// Spread consecutive episodes apart; the multiplier is the golden-ratio constant.
	return s.base + int64(episode)*-7046029254386353131
}

// CryptoSeed returns a seed read from crypto/rand.
func CryptoSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// This should never happen but fall back to a fixed seed.
		return 1
	}
	return int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
}
