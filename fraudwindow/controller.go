// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package fraudwindow implements the Fraud Window Controller: the last
// stage of a Decision's lifecycle. It holds a Decision open for
// fraud_window_blocks, during which any party may submit a FraudProof
// that deterministically contradicts the majority attestation on one
// sampled index. On expiry without a successful proof, the window
// commits: the decision's stake deltas apply, and any validator whose
// individual attestation disagreed with the majority is slashed for
// every index it got wrong, whether or not anyone bothered to prove it.
package fraudwindow

import (
	"sort"
	"sync"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"go.uber.org/zap"

	"github.com/luxfi/popc"
	"github.com/luxfi/popc/safemath"
)

// RegistryMutator is the single-writer surface the controller uses to
// apply slashes and rewards. validators.Registry satisfies it.
type RegistryMutator interface {
	ApplyDelta(identity ids.NodeID, delta int64, height uint64) error
	Jail(identity ids.NodeID, height uint64) error
}

// SegmentVerifier re-executes the minimal check a FraudProof requires:
// one segment decode plus one hash check against the committed output
// root. Segment storage and execution live outside this package's
// scope, so the controller only ever calls through this interface.
type SegmentVerifier interface {
	VerifySegment(jobID ids.ID, index uint64, merklePath [][32]byte, attested popc.AttestationBit) (bool, error)
}

// window tracks one Decision's open fraud-proof period.
type window struct {
	decision     *popc.Decision
	verdicts     []*popc.Verdict // individual per-validator attestations, for commit-time slashing
	openedAt     uint64
	expiryHeight uint64
	state        popc.FraudWindowState
}

// Controller holds all currently-open (and recently resolved, for
// idempotent replay) fraud windows.
type Controller struct {
	mu       sync.Mutex
	logger   log.Logger
	registry RegistryMutator
	verifier SegmentVerifier

	windowBlocks     uint64
	falsePassBps     uint32
	bountyBps        uint32
	rewardPerVerdict uint64

	byDecision map[[32]byte]*window
}

// New returns a Controller with the given governance parameters.
// bountyBps is the fraction of a slash paid to a successful fraud
// proof's submitter; rewardPerVerdict is the flat per-validator reward
// paid on an honest commit.
func New(registry RegistryMutator, verifier SegmentVerifier, logger log.Logger, windowBlocks uint64, falsePassBps, bountyBps uint32, rewardPerVerdict uint64) *Controller {
	return &Controller{
		logger:           logger,
		registry:         registry,
		verifier:         verifier,
		windowBlocks:     windowBlocks,
		falsePassBps:     falsePassBps,
		bountyBps:        bountyBps,
		rewardPerVerdict: rewardPerVerdict,
		byDecision:       make(map[[32]byte]*window),
	}
}

// Open admits a freshly-aggregated Decision into its fraud window.
// verdicts are the sealed per-validator attestations the aggregator
// consumed to produce decision — retained so a commit without any
// fraud proof can still catch a minority that mis-attested.
func (c *Controller) Open(decision *popc.Decision, verdicts []*popc.Verdict, height uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	hash := decision.Hash()
	if _, exists := c.byDecision[hash]; exists {
		return // idempotent: already opened
	}
	c.byDecision[hash] = &window{
		decision:     decision,
		verdicts:     verdicts,
		openedAt:     height,
		expiryHeight: height + c.windowBlocks,
		state:        popc.WindowOpen,
	}
	c.logger.Info("fraud window opened",
		zap.String("decision", popc.HashPrefix(hash)),
		zap.Uint64("expiry", height+c.windowBlocks),
	)
}

// OpenDecisionHashes returns the hashes of decisions still in an open
// window, in byte order — an input to the per-height state root.
func (c *Controller) OpenDecisionHashes() [][32]byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([][32]byte, 0, len(c.byDecision))
	for hash, w := range c.byDecision {
		if w.state == popc.WindowOpen {
			out = append(out, hash)
		}
	}
	sort.Slice(out, func(i, j int) bool { return lessHash(out[i], out[j]) })
	return out
}

func lessHash(a, b [32]byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// State reports a decision's current window state.
func (c *Controller) State(decisionHash [32]byte) (popc.FraudWindowState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.byDecision[decisionHash]
	if !ok {
		return 0, false
	}
	return w.state, true
}

// SubmitFraudProof admits counter-evidence against an open Decision. A
// proof submitted at or after the window's expiry height is rejected:
// window_expiry - 1 is the last accepted height.
func (c *Controller) SubmitFraudProof(fp *popc.FraudProof, currentHeight uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.byDecision[fp.DecisionHash]
	if !ok {
		return popc.ErrUnknownDecision
	}
	if w.state != popc.WindowOpen {
		return nil // already resolved; idempotent no-op for replay
	}
	if currentHeight >= w.expiryHeight {
		return popc.ErrFraudProofExpired
	}
	if int(fp.Index) >= len(w.decision.MajorityByIndex) {
		return popc.ErrFraudProofDoesNotContradict
	}
	disprovenMajority := w.decision.MajorityByIndex[fp.Index]
	if fp.AttestedValue == disprovenMajority {
		return popc.ErrFraudProofDoesNotContradict
	}

	ok, err := c.verifier.VerifySegment(w.decision.JobID, fp.Index, fp.MerklePath, fp.AttestedValue)
	if err != nil {
		return popc.WrapError("verify_segment", err)
	}
	if !ok {
		return popc.ErrFraudProofDoesNotContradict
	}

	return c.overturnLocked(w, fp, currentHeight)
}

// overturnLocked slashes every validator whose verdict agreed with the
// now-disproven majority on fp.Index and pays the submitter a bounty
// fraction of the total slashed. Caller must hold c.mu.
func (c *Controller) overturnLocked(w *window, fp *popc.FraudProof, height uint64) error {
	disprovenMajority := w.decision.MajorityByIndex[fp.Index]

	guilty := make([]*popc.Verdict, 0)
	for _, v := range w.verdicts {
		if int(fp.Index) < len(v.Attestations) && v.Attestations[fp.Index] == disprovenMajority {
			guilty = append(guilty, v)
		}
	}
	sort.Slice(guilty, func(i, j int) bool { return lessNodeID(guilty[i].Validator, guilty[j].Validator) })

	var totalSlashed uint64
	for _, v := range guilty {
		slash, err := c.slashOne(v.Validator, height)
		if err != nil {
			return err
		}
		totalSlashed += slash
	}

	bounty, err := safemath.BasisPoints(totalSlashed, c.bountyBps)
	if err != nil {
		return popc.WrapError("bounty", err)
	}
	if bounty > 0 {
		if err := c.registry.ApplyDelta(fp.Submitter, int64(bounty), height); err != nil {
			c.logger.Warn("fraud-proof bounty payment failed",
				zap.Stringer("submitter", fp.Submitter),
				zap.Error(err),
			)
		}
	}

	w.state = popc.WindowOverturned
	c.logger.Info("fraud window overturned",
		zap.String("decision", popc.HashPrefix(w.decision.Hash())),
		zap.Uint64("index", fp.Index),
		zap.Int("slashed", len(guilty)),
		zap.Uint64("totalSlashed", totalSlashed),
	)
	return nil
}

// slashOne slashes false_pass_penalty_bps of a validator's current
// stake. It needs a stake reading to compute the basis-point amount;
// registries that don't expose one are jailed outright instead.
func (c *Controller) slashOne(validator ids.NodeID, height uint64) (uint64, error) {
	if reporter, ok := c.registry.(StakeReporter); ok {
		stake := reporter.Stake(validator)
		penalty, err := safemath.BasisPoints(stake, c.falsePassBps)
		if err != nil {
			return 0, popc.WrapError("slash", err)
		}
		if penalty == 0 {
			return 0, nil
		}
		if err := c.registry.ApplyDelta(validator, -int64(penalty), height); err != nil {
			return 0, popc.WrapError("slash", err)
		}
		return penalty, nil
	}
	// No stake visibility: jail outright rather than guess a penalty.
	if err := c.registry.Jail(validator, height); err != nil {
		return 0, popc.WrapError("slash", err)
	}
	return 0, nil
}

// StakeReporter is an optional capability a RegistryMutator may also
// implement so the controller can compute basis-point penalties against
// current stake rather than jailing outright.
type StakeReporter interface {
	Stake(identity ids.NodeID) uint64
}

// JailMissedLeader jails leader for failing to publish a valid VRF
// proof at height. No fraud window is opened for this — unlike a
// Decision's majority attestation, a missed proof needs no adversarial
// proof period to resolve; the deadline passing is itself conclusive.
func (c *Controller) JailMissedLeader(leader ids.NodeID, height uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.registry.Jail(leader, height); err != nil {
		return popc.WrapError("missed_leader_jail", err)
	}
	c.logger.Warn("leader jailed for missed VRF proof",
		zap.Stringer("leader", leader),
		zap.Uint64("height", height),
	)
	return nil
}

// HandleEquivocation applies the immediate, self-proving penalty for a
// validator caught signing two differing verdicts on the same
// challenge-hash. No fraud window is involved — the two signed
// statements are themselves the proof. The validator is slashed by the
// same basis-point penalty the window-commit path uses and jailed
// outright regardless of whether the registry exposes live stake.
func (c *Controller) HandleEquivocation(validator ids.NodeID, height uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.slashOne(validator, height); err != nil {
		return popc.WrapError("equivocation_slash", err)
	}
	if err := c.registry.Jail(validator, height); err != nil {
		return popc.WrapError("equivocation_jail", err)
	}
	c.logger.Warn("equivocation penalty applied",
		zap.Stringer("validator", validator),
		zap.Uint64("height", height),
	)
	return nil
}

// CommitIfExpired finalizes a still-open window once currentHeight has
// reached its expiry: it slashes every validator whose own attestation
// disagreed with the decision's majority on any index (catching a
// collaborator nobody bothered to prove), pays the flat reward to every
// honest participant, and marks the window committed. Calling again
// after commit is a no-op, so replay during a reorg-safe tail is safe.
func (c *Controller) CommitIfExpired(decisionHash [32]byte, currentHeight uint64) (popc.FraudWindowState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.byDecision[decisionHash]
	if !ok {
		return 0, popc.ErrUnknownDecision
	}
	if w.state != popc.WindowOpen {
		return w.state, nil
	}
	if currentHeight < w.expiryHeight {
		return w.state, nil
	}

	sorted := make([]*popc.Verdict, len(w.verdicts))
	copy(sorted, w.verdicts)
	sort.Slice(sorted, func(i, j int) bool { return lessNodeID(sorted[i].Validator, sorted[j].Validator) })

	for _, v := range sorted {
		mismatches := 0
		for i, bit := range v.Attestations {
			if i >= len(w.decision.MajorityByIndex) {
				break
			}
			if bit != w.decision.MajorityByIndex[i] {
				mismatches++
			}
		}
		if mismatches > 0 {
			for i := 0; i < mismatches; i++ {
				if _, err := c.slashOne(v.Validator, currentHeight); err != nil {
					return w.state, err
				}
			}
			continue
		}
		if c.rewardPerVerdict > 0 {
			if err := c.registry.ApplyDelta(v.Validator, int64(c.rewardPerVerdict), currentHeight); err != nil {
				c.logger.Warn("reward payment failed",
					zap.Stringer("validator", v.Validator),
					zap.Error(err),
				)
			}
		}
	}

	w.state = popc.WindowCommitted
	c.logger.Info("fraud window committed",
		zap.String("decision", popc.HashPrefix(decisionHash)),
		zap.Uint64("height", currentHeight),
	)
	return w.state, nil
}

func lessNodeID(a, b ids.NodeID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
