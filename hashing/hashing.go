// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package hashing centralizes the core's hash primitives so every
// component reaches for the same function for the same purpose instead
// of each picking its own. Seed chaining and content-hashing use the
// standards-compliant SHA3-256 for auditability; the keyed pseudorandom
// stream the challenge generator draws from uses the faster BLAKE2b,
// since it is never exposed to an adversary choosing the hash input
// after seeing the output. xxhash is reserved for non-adversarial
// in-memory indexing (challenge-hash bucket lookups), never for
// anything that crosses a trust boundary.
package hashing

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// Size is the width, in bytes, of every hash this package produces.
const Size = 32

// Sum256 returns the SHA3-256 digest of data, used for seed chaining,
// challenge hashes, and decision hashes — anywhere the result is
// gossiped between validators and must resist adversarial preimage
// search.
func Sum256(data ...[]byte) [Size]byte {
	h := sha3.New256()
	for _, d := range data {
		h.Write(d)
	}
	var out [Size]byte
	h.Sum(out[:0])
	return out
}

// PRFStream is a keyed pseudorandom stream derived from BLAKE2b, used by
// the challenge generator to draw rejection-sampling candidates. Two
// streams constructed with the same key produce byte-identical output,
// which is what makes challenge sampling reproducible across
// implementations.
type PRFStream struct {
	key     []byte
	counter uint64
	buf     []byte
	pos     int
}

// NewPRFStream returns a stream keyed on key. Advancing the stream is
// the only way two correct implementations can stay in lockstep, so key
// must be assembled identically by every caller (seed || job-id ||
// output-root, per the challenge generator's contract).
func NewPRFStream(key []byte) *PRFStream {
	return &PRFStream{key: append([]byte(nil), key...)}
}

// Uint64 draws the next 8 bytes of the stream as a big-endian uint64.
func (s *PRFStream) Uint64() uint64 {
	for s.pos+8 > len(s.buf) {
		s.refill()
	}
	v := binary.BigEndian.Uint64(s.buf[s.pos : s.pos+8])
	s.pos += 8
	return v
}

func (s *PRFStream) refill() {
	var counterBytes [8]byte
	binary.BigEndian.PutUint64(counterBytes[:], s.counter)
	s.counter++

	h, _ := blake2b.New256(nil)
	h.Write(s.key)
	h.Write(counterBytes[:])
	s.buf = h.Sum(nil)
	s.pos = 0
}

// BucketHash64 hashes data for non-adversarial, in-memory bucket
// lookups (e.g. keying the verdict collector's challenge-hash index).
// It is not safe to use where an adversary controls the input and
// collision resistance matters.
func BucketHash64(data []byte) uint64 {
	return xxhash.Sum64(data)
}
