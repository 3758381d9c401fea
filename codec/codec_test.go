// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriterReaderRoundTripsFixedWidthFields(t *testing.T) {
	require := require.New(t)
	w := NewWriter()
	w.WriteUint8(0xAB)
	w.WriteUint32(123456)
	w.WriteUint64(9_000_000_000)
	w.WriteFixed([]byte{1, 2, 3, 4})
	w.WriteBytes([]byte("job-id"))

	r := NewReader(w.Bytes())
	u8, err := r.ReadUint8()
	require.NoError(err)
	require.Equal(uint8(0xAB), u8)

	u32, err := r.ReadUint32()
	require.NoError(err)
	require.Equal(uint32(123456), u32)

	u64, err := r.ReadUint64()
	require.NoError(err)
	require.Equal(uint64(9_000_000_000), u64)

	fixed, err := r.ReadFixed(4)
	require.NoError(err)
	require.Equal([]byte{1, 2, 3, 4}, fixed)

	bs, err := r.ReadBytes()
	require.NoError(err)
	require.Equal([]byte("job-id"), bs)

	require.Equal(0, r.Remaining())
}

func TestUint64SliceRoundTrip(t *testing.T) {
	require := require.New(t)
	indices := []uint64{0, 7, 42, 9001, 123456789}

	w := NewWriter()
	w.WriteUint64Slice(indices)

	r := NewReader(w.Bytes())
	out, err := r.ReadUint64Slice()
	require.NoError(err)
	require.Equal(indices, out)
}

func TestBoolSliceRoundTrip(t *testing.T) {
	require := require.New(t)
	bits := []bool{true, false, false, true, true, true, false, true, true}

	w := NewWriter()
	w.WriteBoolSlice(bits)

	r := NewReader(w.Bytes())
	out, err := r.ReadBoolSlice()
	require.NoError(err)
	require.Equal(bits, out)
}

func TestBoolSliceRoundTripEmpty(t *testing.T) {
	require := require.New(t)
	w := NewWriter()
	w.WriteBoolSlice(nil)

	r := NewReader(w.Bytes())
	out, err := r.ReadBoolSlice()
	require.NoError(err)
	require.Empty(out)
}

func TestReaderReturnsErrTruncated(t *testing.T) {
	require := require.New(t)
	w := NewWriter()
	w.WriteUint64(42)
	truncated := w.Bytes()[:4]

	r := NewReader(truncated)
	_, err := r.ReadUint64()
	require.ErrorIs(err, ErrTruncated)
}

func TestReadBytesTruncatedLengthPrefix(t *testing.T) {
	require := require.New(t)
	w := NewWriter()
	w.WriteUint32(100) // claims 100 bytes follow, but none do

	r := NewReader(w.Bytes())
	_, err := r.ReadBytes()
	require.ErrorIs(err, ErrTruncated)
}

func TestSortedStringMapIsDeterministicRegardlessOfInsertionOrder(t *testing.T) {
	require := require.New(t)
	m := map[string][]byte{
		"zebra": []byte("z"),
		"alpha": []byte("a"),
		"mike":  []byte("m"),
	}

	w1 := NewWriter()
	w1.SortedStringMap(m)

	// A map with the same contents but necessarily different (unspecified)
	// internal iteration order must still encode identically.
	m2 := map[string][]byte{}
	for k, v := range m {
		m2[k] = v
	}
	w2 := NewWriter()
	w2.SortedStringMap(m2)

	require.Equal(w1.Bytes(), w2.Bytes())
}

func TestEncodeChallengeIsByteIdenticalForIdenticalInputs(t *testing.T) {
	require := require.New(t)
	jobID := []byte("job-1")
	root := [32]byte{1, 2, 3}

	a := EncodeChallenge(jobID, []uint64{1, 2, 3}, []byte("proof"), 100, 820, root, 0)
	b := EncodeChallenge(jobID, []uint64{1, 2, 3}, []byte("proof"), 100, 820, root, 0)
	require.Equal(a, b)

	c := EncodeChallenge(jobID, []uint64{1, 2, 3}, []byte("proof"), 100, 820, root, 1)
	require.NotEqual(a, c, "re-challenge count must affect the encoding")
}

func TestEncodeVerdictExcludesSignature(t *testing.T) {
	require := require.New(t)
	hash := [32]byte{9}
	jobID := []byte("job-1")
	validator := []byte("validator-1")

	a := EncodeVerdict(hash, jobID, validator, []bool{true, false, true})
	b := EncodeVerdict(hash, jobID, validator, []bool{true, false, true})
	require.Equal(a, b)

	c := EncodeVerdict(hash, jobID, validator, []bool{true, false, false})
	require.NotEqual(a, c)
}

func TestEncodeDecisionPreservesParticipantOrder(t *testing.T) {
	require := require.New(t)
	hash := [32]byte{1}
	jobID := []byte("job-1")

	a := EncodeDecision(hash, jobID, 1, 42, [][]byte{[]byte("v1"), []byte("v2")}, 900, []bool{true, true})
	b := EncodeDecision(hash, jobID, 1, 42, [][]byte{[]byte("v2"), []byte("v1")}, 900, []bool{true, true})
	require.NotEqual(a, b, "participant order is caller-determined and must not be silently reordered")
}

func TestEncodeListRoundTrip(t *testing.T) {
	require := require.New(t)
	items := [][]byte{[]byte("commitment-1"), []byte("commitment-2"), {}}

	out, err := DecodeList(EncodeList(items))
	require.NoError(err)
	require.Len(out, 3)
	require.Equal([]byte("commitment-1"), out[0])
	require.Equal([]byte("commitment-2"), out[1])
	require.Empty(out[2])

	empty, err := DecodeList(EncodeList(nil))
	require.NoError(err)
	require.Empty(empty)
}

func TestDecodeListTruncated(t *testing.T) {
	require := require.New(t)
	enc := EncodeList([][]byte{[]byte("item")})

	_, err := DecodeList(enc[:len(enc)-1])
	require.ErrorIs(err, ErrTruncated)
}

func TestEncodeFraudProofIsByteIdenticalForIdenticalInputs(t *testing.T) {
	require := require.New(t)
	decisionHash := [32]byte{3}
	path := [][32]byte{{1}, {2}}

	a := EncodeFraudProof(decisionHash, 42, path, true, []byte("submitter"), 400)
	b := EncodeFraudProof(decisionHash, 42, path, true, []byte("submitter"), 400)
	require.Equal(a, b)

	c := EncodeFraudProof(decisionHash, 42, path, false, []byte("submitter"), 400)
	require.NotEqual(a, c)
}
