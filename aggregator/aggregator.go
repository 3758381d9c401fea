// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package aggregator implements the Consensus Aggregator: at a
// challenge's expiry height, it converts the collected verdicts into a
// Decision with a quantified confidence. Per-index majorities are
// stake-weighted; exact ties resolve toward "incorrect" because false
// negatives are cheaper than false positives — they go through the
// fraud window instead of committing irreversibly.
package aggregator

import (
	"math"
	"sort"

	"github.com/luxfi/ids"

	"github.com/luxfi/popc"
	"github.com/luxfi/popc/collections"
)

// StakeSource reports a validator's stake and the total active stake,
// both as of the challenge's issue-height snapshot.
type StakeSource interface {
	Stake(identity ids.NodeID) uint64
	TotalActiveStake() uint64
}

// Thresholds are the governance-set fractions the aggregator compares
// against.
type Thresholds struct {
	PassFraction   float64 // theta_pass
	FailFraction   float64 // theta_fail
	QuorumFraction float64 // theta_quorum
	MinConfidence  float64
}

// Aggregate computes the stake-weighted majority attestation per
// sampled index, then the job-level Decision.
func Aggregate(challenge *popc.Challenge, verdicts []*popc.Verdict, stake StakeSource, th Thresholds) *popc.Decision {
	n := len(challenge.SampleIndices)
	majority := make([]popc.AttestationBit, n)

	var participatingStake uint64
	participants := make([]ids.NodeID, 0, len(verdicts))
	seen := collections.NewSet[ids.NodeID](len(verdicts))

	// One stake-weighted tally per sampled index: each validator's vote
	// is added with its stake as the count, so Count(AttestCorrect) vs
	// Count(AttestIncorrect) is the stake-weighted majority directly.
	tallies := make([]collections.Bag[popc.AttestationBit], n)
	for i := range tallies {
		tallies[i] = collections.NewBag[popc.AttestationBit]()
	}

	for _, v := range verdicts {
		if seen.Contains(v.Validator) {
			continue // defensive: Seal already dedupes by validator
		}
		seen.Add(v.Validator)
		w := stake.Stake(v.Validator)
		if w == 0 {
			continue
		}
		participatingStake += w
		participants = append(participants, v.Validator)

		for i := 0; i < n && i < len(v.Attestations); i++ {
			tallies[i].AddCount(v.Attestations[i], int(w))
		}
	}

	correctIndices := 0
	incorrectIndices := 0
	for i := 0; i < n; i++ {
		if tallies[i].Count(popc.AttestCorrect) > tallies[i].Count(popc.AttestIncorrect) {
			majority[i] = popc.AttestCorrect
			correctIndices++
		} else {
			// Exact ties (including 0-0, no verdicts reaching this
			// index) resolve to incorrect — the conservative default.
			majority[i] = popc.AttestIncorrect
			incorrectIndices++
		}
	}

	sort.Slice(participants, func(i, j int) bool { return lessNodeID(participants[i], participants[j]) })

	total := stake.TotalActiveStake()
	quorumMet := total > 0 && float64(participatingStake)/float64(total) >= th.QuorumFraction

	decision := &popc.Decision{
		ChallengeHash:           challenge.Hash(),
		JobID:                   challenge.JobID,
		ExpiryHeight:            challenge.ExpiryHeight,
		ParticipatingValidators: participants,
		MajorityByIndex:         majority,
	}

	if !quorumMet || n == 0 {
		decision.Verdict = popc.DecisionInconclusive
		decision.Confidence = 0
		return decision
	}

	passFrac := float64(correctIndices) / float64(n)
	failFrac := float64(incorrectIndices) / float64(n)

	switch {
	case failFrac >= th.FailFraction:
		confidence := confidenceFor(failFrac, n)
		if confidence >= th.MinConfidence {
			decision.Verdict = popc.DecisionFail
			decision.Confidence = confidence
			return decision
		}
	case passFrac >= th.PassFraction:
		confidence := confidenceFor(passFrac, n)
		if confidence >= th.MinConfidence {
			decision.Verdict = popc.DecisionPass
			decision.Confidence = confidence
			return decision
		}
	}

	decision.Verdict = popc.DecisionInconclusive
	decision.Confidence = 0
	return decision
}

// confidenceFor computes confidence = 1 - (1-observedFraction)^S, the
// same detection-probability formula the challenge generator's
// adaptive sizing relies on — both components MUST agree on it bit for
// bit, since it gates whether a decision can be non-inconclusive.
func confidenceFor(observedFraction float64, sampleSize int) float64 {
	return 1 - math.Pow(1-observedFraction, float64(sampleSize))
}

func lessNodeID(a, b ids.NodeID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Order imposes the ordering decisions must be finalized in: strictly
// by expiry height, then lexicographically by job-id within a height —
// required so that all validators produce identical state deltas.
func Order(decisions []*popc.Decision) {
	sort.Slice(decisions, func(i, j int) bool {
		a, b := decisions[i], decisions[j]
		if a.ExpiryHeight != b.ExpiryHeight {
			return a.ExpiryHeight < b.ExpiryHeight
		}
		return lessID(a.JobID, b.JobID)
	})
}

func lessID(a, b ids.ID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
