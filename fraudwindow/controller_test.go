// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fraudwindow

import (
	"testing"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/popc"
)

type fakeRegistry struct {
	stake  map[ids.NodeID]int64
	jailed map[ids.NodeID]bool
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{stake: map[ids.NodeID]int64{}, jailed: map[ids.NodeID]bool{}}
}

func (f *fakeRegistry) ApplyDelta(id ids.NodeID, delta int64, height uint64) error {
	f.stake[id] += delta
	return nil
}

func (f *fakeRegistry) Jail(id ids.NodeID, height uint64) error {
	f.jailed[id] = true
	return nil
}

func (f *fakeRegistry) Stake(id ids.NodeID) uint64 {
	v := f.stake[id]
	if v < 0 {
		return 0
	}
	return uint64(v)
}

type fakeVerifier struct {
	verified map[uint64]bool
}

func (f fakeVerifier) VerifySegment(jobID ids.ID, index uint64, path [][32]byte, attested popc.AttestationBit) (bool, error) {
	return f.verified[index], nil
}

func nodeID(b byte) ids.NodeID {
	var n ids.NodeID
	n[0] = b
	return n
}

func testController(reg *fakeRegistry, verifier fakeVerifier) *Controller {
	return New(reg, verifier, log.NewNoOpLogger(), 720, 1000, 1000, 10)
}

func TestCommitWithoutFraudSlashesMismatchedMinority(t *testing.T) {
	require := require.New(t)
	honest, liar := nodeID(1), nodeID(2)
	reg := newFakeRegistry()
	reg.stake[honest] = 1000
	reg.stake[liar] = 1000
	c := testController(reg, fakeVerifier{})

	decision := &popc.Decision{
		MajorityByIndex: []popc.AttestationBit{popc.AttestIncorrect, popc.AttestIncorrect},
	}
	verdicts := []*popc.Verdict{
		{Validator: honest, Attestations: []popc.AttestationBit{popc.AttestIncorrect, popc.AttestIncorrect}},
		{Validator: liar, Attestations: []popc.AttestationBit{popc.AttestCorrect, popc.AttestCorrect}},
	}
	c.Open(decision, verdicts, 100)

	state, err := c.CommitIfExpired(decision.Hash(), 100+720)
	require.NoError(err)
	require.Equal(popc.WindowCommitted, state)

	require.Less(reg.stake[liar], int64(1000))
	require.Equal(int64(1000+10), reg.stake[honest])
}

func TestCommitIsANoOpBeforeExpiry(t *testing.T) {
	require := require.New(t)
	reg := newFakeRegistry()
	c := testController(reg, fakeVerifier{})

	decision := &popc.Decision{MajorityByIndex: []popc.AttestationBit{popc.AttestCorrect}}
	c.Open(decision, nil, 100)

	state, err := c.CommitIfExpired(decision.Hash(), 200)
	require.NoError(err)
	require.Equal(popc.WindowOpen, state)
}

func TestSubmitFraudProofOverturnsAndSlashesDisprovenMajority(t *testing.T) {
	require := require.New(t)
	honest, liar := nodeID(1), nodeID(2)
	reg := newFakeRegistry()
	reg.stake[honest] = 1000
	reg.stake[liar] = 1000
	verifier := fakeVerifier{verified: map[uint64]bool{42: true}}
	c := testController(reg, verifier)

	decision := &popc.Decision{
		JobID:           ids.ID{1},
		MajorityByIndex: make([]popc.AttestationBit, 43),
	}
	decision.MajorityByIndex[42] = popc.AttestCorrect
	verdicts := []*popc.Verdict{
		{Validator: honest, Attestations: append(make([]popc.AttestationBit, 42), popc.AttestIncorrect)},
		{Validator: liar, Attestations: append(make([]popc.AttestationBit, 42), popc.AttestCorrect)},
	}
	c.Open(decision, verdicts, 100)

	submitter := nodeID(9)
	fp := &popc.FraudProof{
		DecisionHash:  decision.Hash(),
		Index:         42,
		AttestedValue: popc.AttestIncorrect,
		Submitter:     submitter,
	}
	err := c.SubmitFraudProof(fp, 150)
	require.NoError(err)

	state, _ := c.State(decision.Hash())
	require.Equal(popc.WindowOverturned, state)
	require.Less(reg.stake[liar], int64(1000))
	require.Greater(reg.stake[submitter], int64(0))
	require.Equal(int64(1000), reg.stake[honest])
}

func TestSubmitFraudProofRejectsAfterExpiry(t *testing.T) {
	require := require.New(t)
	reg := newFakeRegistry()
	c := testController(reg, fakeVerifier{})

	decision := &popc.Decision{MajorityByIndex: []popc.AttestationBit{popc.AttestCorrect}}
	c.Open(decision, nil, 100)

	fp := &popc.FraudProof{DecisionHash: decision.Hash(), Index: 0, AttestedValue: popc.AttestIncorrect}
	err := c.SubmitFraudProof(fp, 100+720)
	require.ErrorIs(err, popc.ErrFraudProofExpired)
}

func TestSubmitFraudProofRejectsWhenAttestationMatchesMajority(t *testing.T) {
	require := require.New(t)
	reg := newFakeRegistry()
	c := testController(reg, fakeVerifier{})

	decision := &popc.Decision{MajorityByIndex: []popc.AttestationBit{popc.AttestCorrect}}
	c.Open(decision, nil, 100)

	fp := &popc.FraudProof{DecisionHash: decision.Hash(), Index: 0, AttestedValue: popc.AttestCorrect}
	err := c.SubmitFraudProof(fp, 150)
	require.ErrorIs(err, popc.ErrFraudProofDoesNotContradict)
}

func TestSubmitFraudProofUnknownDecision(t *testing.T) {
	require := require.New(t)
	reg := newFakeRegistry()
	c := testController(reg, fakeVerifier{})

	fp := &popc.FraudProof{DecisionHash: [32]byte{9}}
	err := c.SubmitFraudProof(fp, 150)
	require.ErrorIs(err, popc.ErrUnknownDecision)
}
