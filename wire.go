// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package popc

import (
	"github.com/luxfi/ids"

	"github.com/luxfi/popc/codec"
)

// This file is the wire boundary: every entity that crosses the block
// producer, network, or persistence interface is serialized here, and
// every inbound batch is deserialized here. Marshal and Unmarshal are
// strict inverses — re-marshaling an unmarshaled entity reproduces the
// input byte for byte, which is what lets independent implementations
// compare batches by hash.

// BlockInbound is one block's input to the core: new commitments,
// verdicts gathered from the validator network, and fraud proofs.
type BlockInbound struct {
	Commitments []*JobCommitment
	Verdicts    []*Verdict
	FraudProofs []*FraudProof
}

// BlockOutbound is one block's output from the core: the decisions
// finalized at this height and the stake deltas the state engine must
// apply.
type BlockOutbound struct {
	Decisions      []*Decision
	RegistryDeltas []RegistryDelta
}

// MarshalJobCommitment canonically encodes c.
func MarshalJobCommitment(c *JobCommitment) []byte {
	return codec.EncodeJobCommitment(c.JobID[:], c.OutputRoot, c.OutputSize, c.Submitter[:], c.SubmitHeight)
}

// UnmarshalJobCommitment reverses MarshalJobCommitment.
func UnmarshalJobCommitment(buf []byte) (*JobCommitment, error) {
	jobID, outputRoot, outputSize, submitter, submitHeight, err := codec.DecodeJobCommitment(buf)
	if err != nil {
		return nil, err
	}
	id, err := ids.ToID(jobID)
	if err != nil {
		return nil, err
	}
	sub, err := ids.ToNodeID(submitter)
	if err != nil {
		return nil, err
	}
	return &JobCommitment{
		JobID:        id,
		OutputRoot:   outputRoot,
		OutputSize:   outputSize,
		Submitter:    sub,
		SubmitHeight: submitHeight,
	}, nil
}

// MarshalChallenge canonically encodes c — the same encoding
// ChallengeHash digests, so hashing an unmarshaled challenge reproduces
// the hash its verdicts reference.
func MarshalChallenge(c *Challenge) []byte {
	return codec.EncodeChallenge(
		c.JobID[:],
		c.SampleIndices,
		c.VRFProof,
		c.IssueHeight,
		c.ExpiryHeight,
		c.OutputRootAtIssue,
		c.ReChallengeCount,
	)
}

// UnmarshalChallenge reverses MarshalChallenge.
func UnmarshalChallenge(buf []byte) (*Challenge, error) {
	jobID, indices, vrfProof, issueHeight, expiryHeight, outputRoot, reChallengeCount, err := codec.DecodeChallenge(buf)
	if err != nil {
		return nil, err
	}
	id, err := ids.ToID(jobID)
	if err != nil {
		return nil, err
	}
	return &Challenge{
		JobID:             id,
		SampleIndices:     indices,
		VRFProof:          vrfProof,
		IssueHeight:       issueHeight,
		ExpiryHeight:      expiryHeight,
		ReChallengeCount:  reChallengeCount,
		OutputRootAtIssue: outputRoot,
	}, nil
}

// MarshalVerdict encodes a full wire verdict: the signed body (the
// encoding the signature is computed over) followed by the signature
// and the height the verdict was received at.
func MarshalVerdict(v *Verdict) []byte {
	bits := make([]bool, len(v.Attestations))
	for i, a := range v.Attestations {
		bits[i] = bool(a)
	}
	w := codec.NewWriter()
	w.WriteBytes(codec.EncodeVerdict(v.ChallengeHash, v.JobID[:], v.Validator[:], bits))
	w.WriteBytes(v.Signature)
	w.WriteUint64(v.Height)
	return w.Bytes()
}

// UnmarshalVerdict reverses MarshalVerdict.
func UnmarshalVerdict(buf []byte) (*Verdict, error) {
	r := codec.NewReader(buf)
	body, err := r.ReadBytes()
	if err != nil {
		return nil, err
	}
	challengeHash, jobID, validator, bits, err := codec.DecodeVerdict(body)
	if err != nil {
		return nil, err
	}
	signature, err := r.ReadBytes()
	if err != nil {
		return nil, err
	}
	height, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}
	id, err := ids.ToID(jobID)
	if err != nil {
		return nil, err
	}
	nodeID, err := ids.ToNodeID(validator)
	if err != nil {
		return nil, err
	}
	attestations := make([]AttestationBit, len(bits))
	for i, b := range bits {
		attestations[i] = AttestationBit(b)
	}
	return &Verdict{
		ChallengeHash: challengeHash,
		JobID:         id,
		Validator:     nodeID,
		Attestations:  attestations,
		Signature:     signature,
		Height:        height,
	}, nil
}

// MarshalDecision canonically encodes d — the same encoding
// DecisionHash digests.
func MarshalDecision(d *Decision) []byte {
	participants := make([][]byte, len(d.ParticipatingValidators))
	for i, v := range d.ParticipatingValidators {
		idCopy := v
		participants[i] = idCopy[:]
	}
	majority := make([]bool, len(d.MajorityByIndex))
	for i, b := range d.MajorityByIndex {
		majority[i] = bool(b)
	}
	return codec.EncodeDecision(
		d.ChallengeHash,
		d.JobID[:],
		uint8(d.Verdict),
		confidenceBits(d.Confidence),
		participants,
		d.ExpiryHeight,
		majority,
	)
}

// UnmarshalDecision reverses MarshalDecision. Confidence comes back in
// its canonical one-part-in-2^32 form, so re-marshaling reproduces the
// input exactly.
func UnmarshalDecision(buf []byte) (*Decision, error) {
	challengeHash, jobID, verdict, bits, participants, expiryHeight, majority, err := codec.DecodeDecision(buf)
	if err != nil {
		return nil, err
	}
	id, err := ids.ToID(jobID)
	if err != nil {
		return nil, err
	}
	var validators []ids.NodeID
	for _, p := range participants {
		nodeID, err := ids.ToNodeID(p)
		if err != nil {
			return nil, err
		}
		validators = append(validators, nodeID)
	}
	majorityBits := make([]AttestationBit, len(majority))
	for i, b := range majority {
		majorityBits[i] = AttestationBit(b)
	}
	return &Decision{
		ChallengeHash:           challengeHash,
		JobID:                   id,
		Verdict:                 DecisionVerdict(verdict),
		Confidence:              float64(bits) / float64(uint64(1)<<32),
		ParticipatingValidators: validators,
		ExpiryHeight:            expiryHeight,
		MajorityByIndex:         majorityBits,
	}, nil
}

// MarshalFraudProof canonically encodes fp.
func MarshalFraudProof(fp *FraudProof) []byte {
	return codec.EncodeFraudProof(fp.DecisionHash, fp.Index, fp.MerklePath, bool(fp.AttestedValue), fp.Submitter[:], fp.SubmitHeight)
}

// UnmarshalFraudProof reverses MarshalFraudProof.
func UnmarshalFraudProof(buf []byte) (*FraudProof, error) {
	decisionHash, index, merklePath, attestedValue, submitter, submitHeight, err := codec.DecodeFraudProof(buf)
	if err != nil {
		return nil, err
	}
	sub, err := ids.ToNodeID(submitter)
	if err != nil {
		return nil, err
	}
	return &FraudProof{
		DecisionHash:  decisionHash,
		Index:         index,
		MerklePath:    merklePath,
		AttestedValue: AttestationBit(attestedValue),
		Submitter:     sub,
		SubmitHeight:  submitHeight,
	}, nil
}

func marshalRegistryDelta(d RegistryDelta) []byte {
	w := codec.NewWriter()
	w.WriteBytes(d.Identity[:])
	w.WriteUint64(uint64(d.StakeDelta)) // two's complement, fixed width
	return w.Bytes()
}

func unmarshalRegistryDelta(buf []byte) (RegistryDelta, error) {
	r := codec.NewReader(buf)
	identity, err := r.ReadBytes()
	if err != nil {
		return RegistryDelta{}, err
	}
	raw, err := r.ReadUint64()
	if err != nil {
		return RegistryDelta{}, err
	}
	nodeID, err := ids.ToNodeID(identity)
	if err != nil {
		return RegistryDelta{}, err
	}
	return RegistryDelta{Identity: nodeID, StakeDelta: int64(raw)}, nil
}

// EncodeBlockInbound encodes one block's inbound batch: three
// length-prefixed lists (commitments, verdicts, fraud proofs), each
// element canonically encoded.
func EncodeBlockInbound(in *BlockInbound) []byte {
	commitments := make([][]byte, len(in.Commitments))
	for i, c := range in.Commitments {
		commitments[i] = MarshalJobCommitment(c)
	}
	verdicts := make([][]byte, len(in.Verdicts))
	for i, v := range in.Verdicts {
		verdicts[i] = MarshalVerdict(v)
	}
	fraudProofs := make([][]byte, len(in.FraudProofs))
	for i, fp := range in.FraudProofs {
		fraudProofs[i] = MarshalFraudProof(fp)
	}

	w := codec.NewWriter()
	w.WriteBytes(codec.EncodeList(commitments))
	w.WriteBytes(codec.EncodeList(verdicts))
	w.WriteBytes(codec.EncodeList(fraudProofs))
	return w.Bytes()
}

// DecodeBlockInbound reverses EncodeBlockInbound.
func DecodeBlockInbound(buf []byte) (*BlockInbound, error) {
	r := codec.NewReader(buf)
	in := &BlockInbound{}

	rawCommitments, err := r.ReadBytes()
	if err != nil {
		return nil, err
	}
	items, err := codec.DecodeList(rawCommitments)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		c, err := UnmarshalJobCommitment(item)
		if err != nil {
			return nil, err
		}
		in.Commitments = append(in.Commitments, c)
	}

	rawVerdicts, err := r.ReadBytes()
	if err != nil {
		return nil, err
	}
	if items, err = codec.DecodeList(rawVerdicts); err != nil {
		return nil, err
	}
	for _, item := range items {
		v, err := UnmarshalVerdict(item)
		if err != nil {
			return nil, err
		}
		in.Verdicts = append(in.Verdicts, v)
	}

	rawFraudProofs, err := r.ReadBytes()
	if err != nil {
		return nil, err
	}
	if items, err = codec.DecodeList(rawFraudProofs); err != nil {
		return nil, err
	}
	for _, item := range items {
		fp, err := UnmarshalFraudProof(item)
		if err != nil {
			return nil, err
		}
		in.FraudProofs = append(in.FraudProofs, fp)
	}
	return in, nil
}

// EncodeBlockOutbound encodes one block's outbound batch: the finalized
// decisions and the registry deltas applied at this height.
func EncodeBlockOutbound(out *BlockOutbound) []byte {
	decisions := make([][]byte, len(out.Decisions))
	for i, d := range out.Decisions {
		decisions[i] = MarshalDecision(d)
	}
	deltas := make([][]byte, len(out.RegistryDeltas))
	for i, d := range out.RegistryDeltas {
		deltas[i] = marshalRegistryDelta(d)
	}

	w := codec.NewWriter()
	w.WriteBytes(codec.EncodeList(decisions))
	w.WriteBytes(codec.EncodeList(deltas))
	return w.Bytes()
}

// DecodeBlockOutbound reverses EncodeBlockOutbound.
func DecodeBlockOutbound(buf []byte) (*BlockOutbound, error) {
	r := codec.NewReader(buf)
	out := &BlockOutbound{}

	rawDecisions, err := r.ReadBytes()
	if err != nil {
		return nil, err
	}
	items, err := codec.DecodeList(rawDecisions)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		d, err := UnmarshalDecision(item)
		if err != nil {
			return nil, err
		}
		out.Decisions = append(out.Decisions, d)
	}

	rawDeltas, err := r.ReadBytes()
	if err != nil {
		return nil, err
	}
	if items, err = codec.DecodeList(rawDeltas); err != nil {
		return nil, err
	}
	for _, item := range items {
		d, err := unmarshalRegistryDelta(item)
		if err != nil {
			return nil, err
		}
		out.RegistryDeltas = append(out.RegistryDeltas, d)
	}
	return out, nil
}
