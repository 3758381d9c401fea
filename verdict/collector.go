// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package verdict implements the Verdict Collector: it accepts
// validator verdicts during a challenge's active window, rejects
// ineligible or malformed submissions, and detects equivocation.
// Verdicts are held in memory keyed by (challenge-hash,
// validator-identity); at expiry they are handed to the aggregator.
package verdict

import (
	"sync"
	"sync/atomic"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/popc"
	"github.com/luxfi/popc/codec"
	"github.com/luxfi/popc/hashing"
)

// SignatureVerifier checks a verdict's signature against the
// validator's registered key. Implementations typically wrap
// github.com/luxfi/crypto/bls.
type SignatureVerifier interface {
	Verify(pubKey []byte, message, signature []byte) bool
}

// shardCount partitions verdict storage by challenge-hash so two
// challenges never contend on the same lock.
const shardCount = 16

// shard holds the verdicts and equivocation records for the subset of
// challenges whose hash maps to it.
type shard struct {
	mu          sync.Mutex
	byChallenge map[[32]byte]map[ids.NodeID]*popc.Verdict
	equivocated map[[32]byte]map[ids.NodeID]bool
}

// Collector admits verdicts and tracks equivocation.
type Collector struct {
	verifier SignatureVerifier
	logger   log.Logger

	maxActiveChallenges int
	maxValidators       int
	verdictSize         int

	stored     atomic.Int64
	challenges atomic.Int64
	shards     [shardCount]shard
}

// New returns an empty Collector. maxActiveChallenges x maxValidators
// bounds how many verdicts may be held before new submissions are
// rejected with backpressure; verdictSize bounds the encoded size of
// any single verdict (0 disables the per-verdict bound).
func New(verifier SignatureVerifier, logger log.Logger, maxActiveChallenges, maxValidators, verdictSize int) *Collector {
	c := &Collector{
		verifier:            verifier,
		logger:              logger,
		maxActiveChallenges: maxActiveChallenges,
		maxValidators:       maxValidators,
		verdictSize:         verdictSize,
	}
	for i := range c.shards {
		c.shards[i].byChallenge = make(map[[32]byte]map[ids.NodeID]*popc.Verdict)
		c.shards[i].equivocated = make(map[[32]byte]map[ids.NodeID]bool)
	}
	return c
}

func (c *Collector) shardFor(challengeHash [32]byte) *shard {
	return &c.shards[hashing.BucketHash64(challengeHash[:])%shardCount]
}

// budget returns the maximum number of verdicts the collector will
// hold in memory at once.
func (c *Collector) budget() int64 {
	return int64(c.maxActiveChallenges) * int64(c.maxValidators)
}

// Stored reports the number of admitted verdicts currently held across
// all shards, exported as the collector queue-depth gauge.
func (c *Collector) Stored() int {
	return int(c.stored.Load())
}

// encodeVerdictBody computes the canonical encoding a verdict's
// signature is produced over.
func encodeVerdictBody(challengeHash [32]byte, jobID ids.ID, validator ids.NodeID, attestations []popc.AttestationBit) []byte {
	bs := make([]bool, len(attestations))
	for i, a := range attestations {
		bs[i] = bool(a)
	}
	return codec.EncodeVerdict(challengeHash, jobID[:], validator[:], bs)
}

// Admit applies the admission rules: the validator must be active in
// the snapshot at issue_height, the signature must verify, the verdict
// must reference the challenge by content hash, and a second differing
// verdict from the same validator is equivocation — recorded as
// immediately slashable evidence rather than rejected. Verdicts after
// expiryHeight are discarded silently, returning (false, nil).
func (c *Collector) Admit(v *popc.Verdict, registryAtIssue RegistrySnapshotView, expiryHeight uint64) (admitted bool, equivocation *popc.EquivocationError, err error) {
	if v.Height > expiryHeight {
		return false, nil, nil
	}
	if !registryAtIssue.IsActive(v.Validator) {
		return false, nil, popc.ErrValidatorNotActive
	}

	pubKey := registryAtIssue.PublicKey(v.Validator)
	body := encodeVerdictBody(v.ChallengeHash, v.JobID, v.Validator, v.Attestations)
	if c.verdictSize > 0 && len(body)+len(v.Signature) > c.verdictSize {
		return false, nil, popc.ErrMalformedVerdict
	}
	if !c.verifier.Verify(pubKey, body, v.Signature) {
		return false, nil, popc.ErrBadSignature
	}

	s := c.shardFor(v.ChallengeHash)
	s.mu.Lock()
	defer s.mu.Unlock()

	existingForChallenge, ok := s.byChallenge[v.ChallengeHash]
	if !ok {
		if n := c.challenges.Add(1); n > int64(c.maxActiveChallenges) {
			c.challenges.Add(-1)
			return false, nil, popc.ErrCollectorOverBudget
		}
		existingForChallenge = make(map[ids.NodeID]*popc.Verdict)
		s.byChallenge[v.ChallengeHash] = existingForChallenge
	}

	if prior, ok := existingForChallenge[v.Validator]; ok {
		if attestationsEqual(prior.Attestations, v.Attestations) {
			return false, nil, nil // duplicate resubmission, not equivocation
		}
		markEquivocated(s, v.ChallengeHash, v.Validator)
		equiv := &popc.EquivocationError{Validator: v.Validator.String(), ChallengeHash: v.ChallengeHash}
		c.logger.Warn("equivocation detected", "validator", v.Validator, "challenge", popc.HashPrefix(v.ChallengeHash))
		return false, equiv, nil
	}

	if n := c.stored.Add(1); n > c.budget() {
		c.stored.Add(-1)
		return false, nil, popc.ErrCollectorOverBudget
	}
	existingForChallenge[v.Validator] = v
	return true, nil, nil
}

func markEquivocated(s *shard, challengeHash [32]byte, validator ids.NodeID) {
	m, ok := s.equivocated[challengeHash]
	if !ok {
		m = make(map[ids.NodeID]bool)
		s.equivocated[challengeHash] = m
	}
	m[validator] = true
}

// IsEquivocated reports whether validator has equivocated on
// challengeHash; equivocating validators' verdicts are excluded from
// aggregation entirely.
func (c *Collector) IsEquivocated(challengeHash [32]byte, validator ids.NodeID) bool {
	s := c.shardFor(challengeHash)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.equivocated[challengeHash][validator]
}

// Seal returns the non-equivocating verdicts collected for
// challengeHash and removes the challenge from the in-memory budget,
// since ownership transfers to the aggregator's Decision at expiry.
func (c *Collector) Seal(challengeHash [32]byte) []*popc.Verdict {
	s := c.shardFor(challengeHash)
	s.mu.Lock()
	defer s.mu.Unlock()

	byValidator, ok := s.byChallenge[challengeHash]
	if !ok {
		return nil
	}
	equivocators := s.equivocated[challengeHash]

	out := make([]*popc.Verdict, 0, len(byValidator))
	for validator, v := range byValidator {
		if equivocators[validator] {
			continue
		}
		out = append(out, v)
	}

	c.stored.Add(-int64(len(byValidator)))
	c.challenges.Add(-1)
	delete(s.byChallenge, challengeHash)
	delete(s.equivocated, challengeHash)
	return out
}

func attestationsEqual(a, b []popc.AttestationBit) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// RegistrySnapshotView is the read interface the collector needs from a
// validators.RegistrySnapshot without importing that package directly
// (avoided to keep verdict a leaf relative to validators, which imports
// popc the same way verdict does).
type RegistrySnapshotView interface {
	IsActive(identity ids.NodeID) bool
	PublicKey(identity ids.NodeID) []byte
}
