// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package codec

// EncodeJobCommitment canonically encodes a job commitment. Callers
// pass primitive fields rather than the popc.JobCommitment struct
// directly to keep this package free of a dependency on the root
// package — codec is a leaf the root package depends on, not the
// reverse.
func EncodeJobCommitment(jobID []byte, outputRoot [32]byte, outputSize uint64, submitter []byte, submitHeight uint64) []byte {
	w := NewWriter()
	w.WriteBytes(jobID)
	w.WriteFixed(outputRoot[:])
	w.WriteUint64(outputSize)
	w.WriteBytes(submitter)
	w.WriteUint64(submitHeight)
	return w.Bytes()
}

// EncodeChallenge canonically encodes a challenge for hashing and wire
// transfer. sampleIndices must already be sorted ascending.
func EncodeChallenge(jobID []byte, sampleIndices []uint64, vrfProof []byte, issueHeight, expiryHeight uint64, outputRootAtIssue [32]byte, reChallengeCount uint32) []byte {
	w := NewWriter()
	w.WriteBytes(jobID)
	w.WriteUint64Slice(sampleIndices)
	w.WriteBytes(vrfProof)
	w.WriteUint64(issueHeight)
	w.WriteUint64(expiryHeight)
	w.WriteFixed(outputRootAtIssue[:])
	w.WriteUint32(reChallengeCount)
	return w.Bytes()
}

// EncodeVerdict canonically encodes a verdict, excluding its own
// signature (the signature is computed over this encoding).
func EncodeVerdict(challengeHash [32]byte, jobID []byte, validator []byte, attestations []bool) []byte {
	w := NewWriter()
	w.WriteFixed(challengeHash[:])
	w.WriteBytes(jobID)
	w.WriteBytes(validator)
	w.WriteBoolSlice(attestations)
	return w.Bytes()
}

// EncodeDecision canonically encodes a finalized decision.
func EncodeDecision(challengeHash [32]byte, jobID []byte, verdict uint8, confidenceBits uint64, participants [][]byte, expiryHeight uint64, majorityByIndex []bool) []byte {
	w := NewWriter()
	w.WriteFixed(challengeHash[:])
	w.WriteBytes(jobID)
	w.WriteUint8(verdict)
	w.WriteUint64(confidenceBits)
	w.WriteUint32(uint32(len(participants)))
	for _, p := range participants {
		w.WriteBytes(p)
	}
	w.WriteUint64(expiryHeight)
	w.WriteBoolSlice(majorityByIndex)
	return w.Bytes()
}

// EncodeFraudProof canonically encodes a fraud proof.
func EncodeFraudProof(decisionHash [32]byte, index uint64, merklePath [][32]byte, attestedValue bool, submitter []byte, submitHeight uint64) []byte {
	w := NewWriter()
	w.WriteFixed(decisionHash[:])
	w.WriteUint64(index)
	w.WriteUint32(uint32(len(merklePath)))
	for _, node := range merklePath {
		w.WriteFixed(node[:])
	}
	if attestedValue {
		w.WriteUint8(1)
	} else {
		w.WriteUint8(0)
	}
	w.WriteBytes(submitter)
	w.WriteUint64(submitHeight)
	return w.Bytes()
}

// DecodeJobCommitment reverses EncodeJobCommitment.
func DecodeJobCommitment(buf []byte) (jobID []byte, outputRoot [32]byte, outputSize uint64, submitter []byte, submitHeight uint64, err error) {
	r := NewReader(buf)
	if jobID, err = r.ReadBytes(); err != nil {
		return
	}
	var root []byte
	if root, err = r.ReadFixed(32); err != nil {
		return
	}
	copy(outputRoot[:], root)
	if outputSize, err = r.ReadUint64(); err != nil {
		return
	}
	if submitter, err = r.ReadBytes(); err != nil {
		return
	}
	submitHeight, err = r.ReadUint64()
	return
}

// DecodeChallenge reverses EncodeChallenge.
func DecodeChallenge(buf []byte) (jobID []byte, sampleIndices []uint64, vrfProof []byte, issueHeight, expiryHeight uint64, outputRootAtIssue [32]byte, reChallengeCount uint32, err error) {
	r := NewReader(buf)
	if jobID, err = r.ReadBytes(); err != nil {
		return
	}
	if sampleIndices, err = r.ReadUint64Slice(); err != nil {
		return
	}
	if vrfProof, err = r.ReadBytes(); err != nil {
		return
	}
	if issueHeight, err = r.ReadUint64(); err != nil {
		return
	}
	if expiryHeight, err = r.ReadUint64(); err != nil {
		return
	}
	var root []byte
	if root, err = r.ReadFixed(32); err != nil {
		return
	}
	copy(outputRootAtIssue[:], root)
	reChallengeCount, err = r.ReadUint32()
	return
}

// DecodeVerdict reverses EncodeVerdict. The signature is not part of
// the encoding (it is computed over it) and travels alongside.
func DecodeVerdict(buf []byte) (challengeHash [32]byte, jobID, validator []byte, attestations []bool, err error) {
	r := NewReader(buf)
	var hash []byte
	if hash, err = r.ReadFixed(32); err != nil {
		return
	}
	copy(challengeHash[:], hash)
	if jobID, err = r.ReadBytes(); err != nil {
		return
	}
	if validator, err = r.ReadBytes(); err != nil {
		return
	}
	attestations, err = r.ReadBoolSlice()
	return
}

// DecodeDecision reverses EncodeDecision.
func DecodeDecision(buf []byte) (challengeHash [32]byte, jobID []byte, verdict uint8, confidenceBits uint64, participants [][]byte, expiryHeight uint64, majorityByIndex []bool, err error) {
	r := NewReader(buf)
	var hash []byte
	if hash, err = r.ReadFixed(32); err != nil {
		return
	}
	copy(challengeHash[:], hash)
	if jobID, err = r.ReadBytes(); err != nil {
		return
	}
	if verdict, err = r.ReadUint8(); err != nil {
		return
	}
	if confidenceBits, err = r.ReadUint64(); err != nil {
		return
	}
	var n uint32
	if n, err = r.ReadUint32(); err != nil {
		return
	}
	for i := uint32(0); i < n; i++ {
		var p []byte
		if p, err = r.ReadBytes(); err != nil {
			return
		}
		participants = append(participants, p)
	}
	if expiryHeight, err = r.ReadUint64(); err != nil {
		return
	}
	majorityByIndex, err = r.ReadBoolSlice()
	return
}

// DecodeFraudProof reverses EncodeFraudProof.
func DecodeFraudProof(buf []byte) (decisionHash [32]byte, index uint64, merklePath [][32]byte, attestedValue bool, submitter []byte, submitHeight uint64, err error) {
	r := NewReader(buf)
	var hash []byte
	if hash, err = r.ReadFixed(32); err != nil {
		return
	}
	copy(decisionHash[:], hash)
	if index, err = r.ReadUint64(); err != nil {
		return
	}
	var n uint32
	if n, err = r.ReadUint32(); err != nil {
		return
	}
	for i := uint32(0); i < n; i++ {
		var node []byte
		if node, err = r.ReadFixed(32); err != nil {
			return
		}
		var fixed [32]byte
		copy(fixed[:], node)
		merklePath = append(merklePath, fixed)
	}
	var bit uint8
	if bit, err = r.ReadUint8(); err != nil {
		return
	}
	attestedValue = bit != 0
	if submitter, err = r.ReadBytes(); err != nil {
		return
	}
	submitHeight, err = r.ReadUint64()
	return
}
