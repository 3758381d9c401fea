// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package popc

import (
	"testing"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"
)

func testNodeID(b byte) ids.NodeID {
	var n ids.NodeID
	n[0] = b
	return n
}

func testJobID(b byte) ids.ID {
	var j ids.ID
	j[0] = b
	return j
}

func TestJobCommitmentWireRoundTripIsByteIdentical(t *testing.T) {
	require := require.New(t)
	c := &JobCommitment{
		JobID:        testJobID(1),
		OutputRoot:   [32]byte{7, 8, 9},
		OutputSize:   10000,
		Submitter:    testNodeID(3),
		SubmitHeight: 100,
	}

	enc := MarshalJobCommitment(c)
	decoded, err := UnmarshalJobCommitment(enc)
	require.NoError(err)
	require.Equal(c, decoded)
	require.Equal(enc, MarshalJobCommitment(decoded))
}

func TestChallengeWireRoundTripIsByteIdentical(t *testing.T) {
	require := require.New(t)
	c := &Challenge{
		JobID:             testJobID(2),
		SampleIndices:     []uint64{1, 7, 42, 9001},
		VRFProof:          []byte("vrf-proof"),
		IssueHeight:       102,
		ExpiryHeight:      122,
		ReChallengeCount:  1,
		OutputRootAtIssue: [32]byte{4},
	}

	enc := MarshalChallenge(c)
	decoded, err := UnmarshalChallenge(enc)
	require.NoError(err)
	require.Equal(c, decoded)
	require.Equal(enc, MarshalChallenge(decoded))

	// The digest the verdicts reference is over exactly this encoding,
	// so an unmarshaled challenge hashes to the same value.
	require.Equal(c.Hash(), decoded.Hash())
}

func TestVerdictWireRoundTripIsByteIdentical(t *testing.T) {
	require := require.New(t)
	v := &Verdict{
		ChallengeHash: [32]byte{9},
		JobID:         testJobID(2),
		Validator:     testNodeID(5),
		Attestations:  []AttestationBit{AttestCorrect, AttestIncorrect, AttestCorrect},
		Signature:     []byte("signature-bytes"),
		Height:        103,
	}

	enc := MarshalVerdict(v)
	decoded, err := UnmarshalVerdict(enc)
	require.NoError(err)
	require.Equal(v, decoded)
	require.Equal(enc, MarshalVerdict(decoded))
}

func TestDecisionWireRoundTripIsByteIdentical(t *testing.T) {
	require := require.New(t)
	d := &Decision{
		ChallengeHash:           [32]byte{1},
		JobID:                   testJobID(2),
		Verdict:                 DecisionFail,
		Confidence:              0.9951171875, // representable exactly in 2^-32 steps
		ParticipatingValidators: []ids.NodeID{testNodeID(1), testNodeID(2)},
		ExpiryHeight:            122,
		MajorityByIndex:         []AttestationBit{AttestIncorrect, AttestCorrect},
	}

	enc := MarshalDecision(d)
	decoded, err := UnmarshalDecision(enc)
	require.NoError(err)
	require.Equal(d, decoded)
	require.Equal(enc, MarshalDecision(decoded))
	require.Equal(d.Hash(), decoded.Hash())
}

func TestFraudProofWireRoundTripIsByteIdentical(t *testing.T) {
	require := require.New(t)
	fp := &FraudProof{
		DecisionHash:  [32]byte{3},
		Index:         42,
		MerklePath:    [][32]byte{{1}, {2}, {3}},
		AttestedValue: AttestIncorrect,
		Submitter:     testNodeID(9),
		SubmitHeight:  400,
	}

	enc := MarshalFraudProof(fp)
	decoded, err := UnmarshalFraudProof(enc)
	require.NoError(err)
	require.Equal(fp, decoded)
	require.Equal(enc, MarshalFraudProof(decoded))
}

func TestBlockInboundRoundTrip(t *testing.T) {
	require := require.New(t)
	in := &BlockInbound{
		Commitments: []*JobCommitment{{JobID: testJobID(1), OutputRoot: [32]byte{1}, OutputSize: 5000, Submitter: testNodeID(1), SubmitHeight: 10}},
		Verdicts: []*Verdict{{
			ChallengeHash: [32]byte{2},
			JobID:         testJobID(1),
			Validator:     testNodeID(4),
			Attestations:  []AttestationBit{AttestCorrect},
			Signature:     []byte("sig"),
			Height:        12,
		}},
		FraudProofs: []*FraudProof{{DecisionHash: [32]byte{3}, Index: 7, AttestedValue: AttestIncorrect, Submitter: testNodeID(8), SubmitHeight: 15}},
	}

	enc := EncodeBlockInbound(in)
	decoded, err := DecodeBlockInbound(enc)
	require.NoError(err)
	require.Equal(in, decoded)
	require.Equal(enc, EncodeBlockInbound(decoded))
}

func TestBlockInboundEmptyRoundTrip(t *testing.T) {
	require := require.New(t)
	enc := EncodeBlockInbound(&BlockInbound{})
	decoded, err := DecodeBlockInbound(enc)
	require.NoError(err)
	require.Empty(decoded.Commitments)
	require.Empty(decoded.Verdicts)
	require.Empty(decoded.FraudProofs)
}

func TestBlockOutboundRoundTrip(t *testing.T) {
	require := require.New(t)
	out := &BlockOutbound{
		Decisions: []*Decision{{
			ChallengeHash:           [32]byte{5},
			JobID:                   testJobID(6),
			Verdict:                 DecisionPass,
			Confidence:              1.0,
			ParticipatingValidators: []ids.NodeID{testNodeID(1)},
			ExpiryHeight:            122,
			MajorityByIndex:         []AttestationBit{AttestCorrect},
		}},
		RegistryDeltas: []RegistryDelta{
			{Identity: testNodeID(1), StakeDelta: 10},
			{Identity: testNodeID(2), StakeDelta: -100},
		},
	}

	enc := EncodeBlockOutbound(out)
	decoded, err := DecodeBlockOutbound(enc)
	require.NoError(err)
	require.Equal(out, decoded)
	require.Equal(enc, EncodeBlockOutbound(decoded))
}

func TestDecodeBlockInboundRejectsTruncatedBatch(t *testing.T) {
	require := require.New(t)
	enc := EncodeBlockInbound(&BlockInbound{
		Commitments: []*JobCommitment{{JobID: testJobID(1), OutputSize: 100, SubmitHeight: 1}},
	})

	_, err := DecodeBlockInbound(enc[:len(enc)-3])
	require.Error(err)
}
