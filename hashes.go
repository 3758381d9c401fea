// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package popc

import "github.com/luxfi/popc/hashing"

// ChallengeHash computes a Challenge's content hash: the value a
// Verdict must reference, so that two challenges issued under the same
// job-id (one deferred, one reissued) are never confused with each
// other. The digest is taken over the canonical wire encoding, so any
// party holding the marshaled challenge can recompute it.
func ChallengeHash(c *Challenge) [32]byte {
	return hashing.Sum256(MarshalChallenge(c))
}

// DecisionHash computes a Decision's content hash, used to make fraud
// window commit and replay idempotent. Like ChallengeHash, it digests
// the canonical wire encoding.
func DecisionHash(d *Decision) [32]byte {
	return hashing.Sum256(MarshalDecision(d))
}

// confidenceBits reduces a float64 confidence to a deterministic
// integer representation for canonical encoding. Confidence is always
// derived from integer sample counts, so truncating to
// one-part-in-2^32 precision never loses information two correct
// implementations would disagree on.
func confidenceBits(c float64) uint64 {
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return uint64(c * float64(1<<32))
}
