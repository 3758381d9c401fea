// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aggregator

import (
	"testing"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/popc"
)

type fakeStake struct {
	stake map[ids.NodeID]uint64
	total uint64
}

func (f fakeStake) Stake(id ids.NodeID) uint64 { return f.stake[id] }
func (f fakeStake) TotalActiveStake() uint64   { return f.total }

func nodeID(b byte) ids.NodeID {
	var n ids.NodeID
	n[0] = b
	return n
}

func testThresholds() Thresholds {
	return Thresholds{PassFraction: 0.9, FailFraction: 0.1, QuorumFraction: 0.6, MinConfidence: 0.99}
}

func verdictFor(validator ids.NodeID, bits ...popc.AttestationBit) *popc.Verdict {
	return &popc.Verdict{Validator: validator, Attestations: bits}
}

func TestAggregatePassWhenAllCorrect(t *testing.T) {
	require := require.New(t)
	v1, v2 := nodeID(1), nodeID(2)
	challenge := &popc.Challenge{SampleIndices: []uint64{0, 1, 2, 3, 4, 5, 6, 7}}
	verdicts := []*popc.Verdict{
		verdictFor(v1, true, true, true, true, true, true, true, true),
		verdictFor(v2, true, true, true, true, true, true, true, true),
	}
	stake := fakeStake{stake: map[ids.NodeID]uint64{v1: 60, v2: 40}, total: 100}

	d := Aggregate(challenge, verdicts, stake, testThresholds())
	require.Equal(popc.DecisionPass, d.Verdict)
	require.Greater(d.Confidence, 0.99)
	require.Equal([]ids.NodeID{v1, v2}, d.ParticipatingValidators)
}

func TestAggregateFailWhenMajorityIncorrect(t *testing.T) {
	require := require.New(t)
	v1, v2 := nodeID(1), nodeID(2)
	challenge := &popc.Challenge{SampleIndices: []uint64{0, 1, 2, 3, 4, 5, 6, 7}}
	verdicts := []*popc.Verdict{
		verdictFor(v1, false, false, false, false, false, false, false, false),
		verdictFor(v2, false, false, false, false, false, false, false, false),
	}
	stake := fakeStake{stake: map[ids.NodeID]uint64{v1: 60, v2: 40}, total: 100}

	d := Aggregate(challenge, verdicts, stake, testThresholds())
	require.Equal(popc.DecisionFail, d.Verdict)
}

func TestAggregateInconclusiveWithoutQuorum(t *testing.T) {
	require := require.New(t)
	v1 := nodeID(1)
	challenge := &popc.Challenge{SampleIndices: []uint64{0, 1, 2}}
	verdicts := []*popc.Verdict{verdictFor(v1, true, true, true)}
	stake := fakeStake{stake: map[ids.NodeID]uint64{v1: 10}, total: 100}

	d := Aggregate(challenge, verdicts, stake, testThresholds())
	require.Equal(popc.DecisionInconclusive, d.Verdict)
	require.Zero(d.Confidence)
}

func TestAggregateTieBreaksTowardIncorrect(t *testing.T) {
	require := require.New(t)
	v1, v2 := nodeID(1), nodeID(2)
	challenge := &popc.Challenge{SampleIndices: []uint64{0}}
	verdicts := []*popc.Verdict{
		verdictFor(v1, true),
		verdictFor(v2, false),
	}
	stake := fakeStake{stake: map[ids.NodeID]uint64{v1: 50, v2: 50}, total: 100}

	d := Aggregate(challenge, verdicts, stake, testThresholds())
	require.Equal(popc.AttestIncorrect, d.MajorityByIndex[0])
}

func TestAggregateDeduplicatesRepeatedValidator(t *testing.T) {
	require := require.New(t)
	v1 := nodeID(1)
	challenge := &popc.Challenge{SampleIndices: []uint64{0, 1}}
	verdicts := []*popc.Verdict{
		verdictFor(v1, true, true),
		verdictFor(v1, false, false), // should be ignored as a duplicate
	}
	stake := fakeStake{stake: map[ids.NodeID]uint64{v1: 100}, total: 100}

	d := Aggregate(challenge, verdicts, stake, testThresholds())
	require.Len(d.ParticipatingValidators, 1)
}

func TestOrderSortsByExpiryThenJobID(t *testing.T) {
	require := require.New(t)
	var jobA, jobB ids.ID
	jobA[0] = 1
	jobB[0] = 2

	decisions := []*popc.Decision{
		{ExpiryHeight: 20, JobID: jobA},
		{ExpiryHeight: 10, JobID: jobB},
		{ExpiryHeight: 10, JobID: jobA},
	}
	Order(decisions)

	require.Equal(uint64(10), decisions[0].ExpiryHeight)
	require.Equal(jobA, decisions[0].JobID)
	require.Equal(uint64(10), decisions[1].ExpiryHeight)
	require.Equal(jobB, decisions[1].JobID)
	require.Equal(uint64(20), decisions[2].ExpiryHeight)
}

func TestConfidenceForMatchesDetectionProbabilityFormula(t *testing.T) {
	require := require.New(t)
	got := confidenceFor(0.2, 10)
	require.InDelta(1-0.8*0.8*0.8*0.8*0.8*0.8*0.8*0.8*0.8*0.8, got, 1e-9)
}
