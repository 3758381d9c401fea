// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package beacon implements the delayed VRF randomness beacon: a
// pseudorandom, unpredictable, publicly verifiable seed for every block
// height, such that no party can precompute or bias the seed used to
// sample their own future job. The k-block delay between a leader's
// height and the height its seed becomes usable is the sole defense
// against a leader biasing the seed by choosing what to include in its
// own block.
package beacon

import (
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/yahoo/coname/vrf"

	"github.com/luxfi/popc"
	"github.com/luxfi/popc/hashing"
)

// Delay is the number of blocks between a leader's height and the
// height at which its seed contribution becomes usable.
type Delay uint64

// MissedProof records a leader that failed to publish a valid VRF
// proof at its height, for later leader-accountability review by the
// fraud window controller.
type MissedProof struct {
	Height         uint64
	ExpectedLeader ids.NodeID
	DeferredTo     uint64
}

// LeaderKeySource resolves which leader's VRF key governs a height, and
// supplies that leader's VRF private key for proving (leader-local) or
// public key for verification (any party).
type LeaderKeySource interface {
	LeaderAt(height uint64) (ids.NodeID, error)
	PrivateKey(leader ids.NodeID) (*[vrf.SecretKeySize]byte, error)
	PublicKey(leader ids.NodeID) ([]byte, error)
}

// Beacon maintains the chain of epoch seeds and answers seed_for
// queries for the challenge generator and validator selection.
type Beacon struct {
	delay  Delay
	keys   LeaderKeySource
	logger log.Logger

	mu           sync.RWMutex
	seedByHeight map[uint64][32]byte
	proofs       map[uint64][]byte
	missed       []MissedProof
	genesisSeed  [32]byte
}

// New returns a Beacon seeded from genesisSeed (the network's fixed
// starting randomness) with the given reveal delay.
func New(delay Delay, keys LeaderKeySource, genesisSeed [32]byte, logger log.Logger) *Beacon {
	return &Beacon{
		delay:        delay,
		keys:         keys,
		logger:       logger,
		seedByHeight: map[uint64][32]byte{0: genesisSeed},
		proofs:       make(map[uint64][]byte),
		genesisSeed:  genesisSeed,
	}
}

// Prove is the leader-side step: deterministic given (signing key,
// input). The leader at height H proves over the seed that was usable
// at H, producing the VRF output later chained into seed(H+k).
func (b *Beacon) Prove(height uint64) (output, proof []byte, err error) {
	leader, err := b.keys.LeaderAt(height)
	if err != nil {
		return nil, nil, err
	}
	sk, err := b.keys.PrivateKey(leader)
	if err != nil {
		return nil, nil, err
	}
	input := b.seedInputAt(height)
	output, proof = vrf.Prove(input, sk)
	return output, proof, nil
}

// Verify is stateless: it returns true iff proof authenticates output
// under the verifying key for the given input.
func Verify(vk, input, output, proof []byte) bool {
	return vrf.Verify(vk, input, output, proof)
}

// Submit records a leader's VRF proof for height, chaining it into the
// seed usable at height+delay. Submitting an invalid proof is treated
// identically to a missing one: the seed for height+delay is deferred.
func (b *Beacon) Submit(height uint64, output, proof []byte) error {
	leader, err := b.keys.LeaderAt(height)
	if err != nil {
		return err
	}
	vk, err := b.keys.PublicKey(leader)
	if err != nil {
		return err
	}

	input := b.seedInputAt(height)
	if !Verify(vk, input, output, proof) {
		b.deferSeed(height, leader)
		return fmt.Errorf("beacon: invalid VRF proof from leader %s at height %d", leader, height)
	}

	revealHeight := height + uint64(b.delay)
	prev := b.seedAt(height)
	chained := hashing.Sum256(prev[:], output)

	b.mu.Lock()
	b.seedByHeight[revealHeight] = chained
	b.proofs[revealHeight] = proof
	b.mu.Unlock()

	b.logger.Info("beacon seed revealed",
		"height", revealHeight,
		"leaderHeight", height,
		"leader", leader,
	)
	return nil
}

// SeedFor returns the seed usable at height H, or an error if the
// leader at H-k has not yet (or never will have, pending review)
// published a valid proof.
func (b *Beacon) SeedFor(height uint64) ([32]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	seed, ok := b.seedByHeight[height]
	if !ok {
		return [32]byte{}, fmt.Errorf("%w: height %d", popc.ErrSeedUnavailable, height)
	}
	return seed, nil
}

// MissedProofs returns the leaders flagged for accountability review,
// consumed by the fraud window controller's leader-slash path.
func (b *Beacon) MissedProofs() []MissedProof {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]MissedProof, len(b.missed))
	copy(out, b.missed)
	return out
}

// FlagMissingProof records height's leader as having missed its proof,
// if it hasn't been recorded already and the seed it would have chained
// into still hasn't appeared. This covers the case Submit's own
// deferSeed cannot: a leader who never calls Submit at all, rather than
// submitting an invalid proof. Idempotent per height — callers are
// expected to call this once per height they find genuinely missing,
// and it reports false on every call after the first.
func (b *Beacon) FlagMissingProof(height uint64) (MissedProof, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	revealHeight := height + uint64(b.delay)
	if _, ok := b.seedByHeight[revealHeight]; ok {
		return MissedProof{}, false
	}
	for _, m := range b.missed {
		if m.Height == height {
			return MissedProof{}, false
		}
	}
	leader, err := b.keys.LeaderAt(height)
	if err != nil {
		return MissedProof{}, false
	}
	mp := MissedProof{Height: height, ExpectedLeader: leader, DeferredTo: revealHeight + 1}
	b.missed = append(b.missed, mp)
	b.logger.Warn("beacon seed missing: leader never submitted a proof",
		"leaderHeight", height,
		"leader", leader,
		"deferredTo", revealHeight+1,
	)
	return mp, true
}

func (b *Beacon) deferSeed(height uint64, leader ids.NodeID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	revealHeight := height + uint64(b.delay)
	b.missed = append(b.missed, MissedProof{
		Height:         height,
		ExpectedLeader: leader,
		DeferredTo:     revealHeight + 1,
	})
	b.logger.Warn("beacon seed deferred: missing or invalid VRF proof",
		"leaderHeight", height,
		"leader", leader,
		"deferredTo", revealHeight+1,
	)
}

func (b *Beacon) seedAt(height uint64) [32]byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if s, ok := b.seedByHeight[height]; ok {
		return s
	}
	return b.genesisSeed
}

func (b *Beacon) seedInputAt(height uint64) []byte {
	prev := b.seedAt(height)
	return prev[:]
}

// GenerateVRFKey is a convenience wrapper for test and bootstrap
// tooling that need a fresh VRF keypair.
func GenerateVRFKey() (pub []byte, priv *[vrf.SecretKeySize]byte, err error) {
	return vrf.GenerateKey(rand.Reader)
}
