// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package popc implements the Proof of Probabilistic Checking consensus
// core: the randomness beacon, validator registry, challenge generator,
// verdict collector, consensus aggregator, and fraud window controller
// that together turn a committed job output into a stake-accountable
// pass/fail/inconclusive decision.
//
// This file holds the shared entity types every component reads or
// writes. A Decision owns its verdicts; a Challenge is shared by
// reference between the generator, collector, and aggregator; the
// Validator Registry is the only process-wide mutable authority, and
// every other component reads it through an immutable RegistrySnapshot.
package popc

import (
	"encoding/hex"

	"github.com/luxfi/ids"
)

// ValidatorStatus is the lifecycle stage of a registered validator.
type ValidatorStatus uint8

const (
	ValidatorPending ValidatorStatus = iota
	ValidatorActive
	ValidatorJailed
	ValidatorExiting
)

func (s ValidatorStatus) String() string {
	switch s {
	case ValidatorPending:
		return "pending"
	case ValidatorActive:
		return "active"
	case ValidatorJailed:
		return "jailed"
	case ValidatorExiting:
		return "exiting"
	default:
		return "unknown"
	}
}

// Validator is an entry in the Validator Registry.
type Validator struct {
	Identity          ids.NodeID
	PublicKey         []byte // BLS public key, used to verify signed verdicts
	Stake             uint64
	Status            ValidatorStatus
	JoinHeight        uint64
	LastVerdictHeight uint64
	ExitRequestedAt   uint64 // height begin_exit was called; 0 if not exiting
}

// EpochSeed is the beacon's output for one epoch: a pure function of the
// previous seed and the epoch leader's VRF output.
type EpochSeed struct {
	Seed         [32]byte
	HeightOrigin uint64
	VRFProof     []byte
}

// JobCommitment is a block producer's declaration of a job's output.
type JobCommitment struct {
	JobID        ids.ID
	OutputRoot   [32]byte
	OutputSize   uint64 // segments
	Submitter    ids.NodeID
	SubmitHeight uint64
}

// Challenge is a sampling plan derived from a seed and a job commitment.
type Challenge struct {
	JobID            ids.ID
	SampleIndices    []uint64 // strictly increasing, unique, within [0, OutputSize)
	VRFProof         []byte
	IssueHeight      uint64
	ExpiryHeight     uint64
	ReChallengeCount uint32

	// outputRootAtIssue pins the commitment this challenge was derived
	// from, so a later differing commitment under the same job-id (after
	// a deferral) cannot be mistaken for the same challenge.
	OutputRootAtIssue [32]byte
}

// Hash returns the content hash a Verdict must reference — the defense
// against two challenges sharing a job-id after a deferral.
func (c *Challenge) Hash() [32]byte {
	return ChallengeHash(c)
}

// AttestationBit is a validator's per-index correctness claim.
type AttestationBit bool

const (
	AttestIncorrect AttestationBit = false
	AttestCorrect   AttestationBit = true
)

// Verdict is a validator's signed statement of correctness for a
// challenge's sampled indices.
type Verdict struct {
	ChallengeHash [32]byte
	JobID         ids.ID
	Validator     ids.NodeID
	Attestations  []AttestationBit // aligned with Challenge.SampleIndices
	Signature     []byte
	Height        uint64
}

// DecisionVerdict is the aggregator's categorical job-level outcome.
type DecisionVerdict uint8

const (
	DecisionInconclusive DecisionVerdict = iota
	DecisionPass
	DecisionFail
)

func (d DecisionVerdict) String() string {
	switch d {
	case DecisionPass:
		return "pass"
	case DecisionFail:
		return "fail"
	default:
		return "inconclusive"
	}
}

// Decision is the aggregator's finalized judgment on a challenge.
type Decision struct {
	ChallengeHash           [32]byte
	JobID                   ids.ID
	Verdict                 DecisionVerdict
	Confidence              float64
	ParticipatingValidators []ids.NodeID
	ExpiryHeight            uint64 // height at which it was finalized
	MajorityByIndex         []AttestationBit
}

// Hash identifies a Decision for idempotent fraud-window commit replay.
func (d *Decision) Hash() [32]byte {
	return DecisionHash(d)
}

// FraudWindowState is the Fraud Window Controller's per-Decision state.
type FraudWindowState uint8

const (
	WindowOpen FraudWindowState = iota
	WindowOverturned
	WindowCommitted
)

func (s FraudWindowState) String() string {
	switch s {
	case WindowOpen:
		return "open"
	case WindowOverturned:
		return "overturned"
	default:
		return "committed"
	}
}

// FraudProof is deterministic counter-evidence that a Decision's
// majority attestation on one sampled index was wrong.
type FraudProof struct {
	DecisionHash  [32]byte
	Index         uint64 // the disputed sample index
	MerklePath    [][32]byte
	AttestedValue AttestationBit // the true value, per re-execution
	Submitter     ids.NodeID
	SubmitHeight  uint64
}

// RegistryDelta is one stake mutation reported to the state engine:
// negative deltas are slashes, positive deltas are rewards.
type RegistryDelta struct {
	Identity   ids.NodeID
	StakeDelta int64
}

// HashPrefix renders a 32-byte hash as a short hex prefix for logging.
func HashPrefix(h [32]byte) string {
	return hex.EncodeToString(h[:8])
}
