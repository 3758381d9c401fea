// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package codec implements the core's canonical wire encoding: every
// inbound and outbound message is a length-prefixed concatenation of
// elements, each encoded with 4-byte big-endian lengths, sorted map
// keys, and fixed-width integers. Two correct implementations that
// serialize the same value must produce byte-identical output — that
// bit-exactness is why this codec exists instead of a general-purpose
// schema format like protobuf, whose map and oneof encodings are not
// guaranteed canonical across implementations.
package codec

import (
	"encoding/binary"
	"errors"
	"sort"
)

// ErrTruncated is returned when a buffer ends before a length-prefixed
// field can be read in full.
var ErrTruncated = errors.New("codec: truncated input")

// Writer accumulates a canonical encoding.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the accumulated encoding.
func (w *Writer) Bytes() []byte { return w.buf }

// WriteUint8 appends a single byte.
func (w *Writer) WriteUint8(v uint8) { w.buf = append(w.buf, v) }

// WriteUint32 appends a fixed-width big-endian uint32.
func (w *Writer) WriteUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteUint64 appends a fixed-width big-endian uint64.
func (w *Writer) WriteUint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteFixed appends raw fixed-width bytes verbatim (e.g. a 32-byte hash).
func (w *Writer) WriteFixed(b []byte) { w.buf = append(w.buf, b...) }

// WriteBytes appends a 4-byte big-endian length prefix followed by b.
func (w *Writer) WriteBytes(b []byte) {
	w.WriteUint32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// WriteUint64Slice appends a 4-byte element count followed by each
// element as a fixed-width uint64 — used for Challenge.SampleIndices,
// where values are already sorted ascending by construction.
func (w *Writer) WriteUint64Slice(vs []uint64) {
	w.WriteUint32(uint32(len(vs)))
	for _, v := range vs {
		w.WriteUint64(v)
	}
}

// WriteBoolSlice appends a bit-packed, length-prefixed slice of bools —
// used for Verdict.Attestations.
func (w *Writer) WriteBoolSlice(bs []bool) {
	w.WriteUint32(uint32(len(bs)))
	packed := make([]byte, (len(bs)+7)/8)
	for i, b := range bs {
		if b {
			packed[i/8] |= 1 << uint(i%8)
		}
	}
	w.buf = append(w.buf, packed...)
}

// SortedStringMap canonically encodes a string-keyed byte-value map by
// sorting keys lexically before writing — the "sorted keys" rule that
// makes the encoding of any map deterministic.
func (w *Writer) SortedStringMap(m map[string][]byte) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	w.WriteUint32(uint32(len(keys)))
	for _, k := range keys {
		w.WriteBytes([]byte(k))
		w.WriteBytes(m[k])
	}
}

// EncodeList concatenates pre-encoded elements behind a 4-byte
// big-endian count, each with its own 4-byte big-endian length prefix —
// the container format for every per-block inbound and outbound batch
// (commitments, verdicts, fraud proofs, decisions, registry deltas).
func EncodeList(items [][]byte) []byte {
	w := NewWriter()
	w.WriteUint32(uint32(len(items)))
	for _, item := range items {
		w.WriteBytes(item)
	}
	return w.Bytes()
}

// DecodeList reverses EncodeList, returning the raw inner encodings.
func DecodeList(buf []byte) ([][]byte, error) {
	r := NewReader(buf)
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, n)
	for i := uint32(0); i < n; i++ {
		item, err := r.ReadBytes()
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// Reader consumes a canonical encoding produced by Writer.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for sequential reads.
func NewReader(buf []byte) *Reader { return &Reader{buf: buf} }

// Remaining reports how many bytes are left unread.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

func (r *Reader) need(n int) error {
	if r.Remaining() < n {
		return ErrTruncated
	}
	return nil
}

// ReadUint8 reads a single byte.
func (r *Reader) ReadUint8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

// ReadUint32 reads a fixed-width big-endian uint32.
func (r *Reader) ReadUint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

// ReadUint64 reads a fixed-width big-endian uint64.
func (r *Reader) ReadUint64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

// ReadFixed reads n raw bytes verbatim.
func (r *Reader) ReadFixed(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	v := r.buf[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

// ReadBytes reads a 4-byte length-prefixed byte slice.
func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	return r.ReadFixed(int(n))
}

// ReadUint64Slice reads a length-prefixed slice of fixed-width uint64s.
func (r *Reader) ReadUint64Slice() ([]uint64, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	out := make([]uint64, n)
	for i := range out {
		v, err := r.ReadUint64()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// ReadBoolSlice reads a length-prefixed, bit-packed slice of bools.
func (r *Reader) ReadBoolSlice() ([]bool, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	packedLen := (int(n) + 7) / 8
	packed, err := r.ReadFixed(packedLen)
	if err != nil {
		return nil, err
	}
	out := make([]bool, n)
	for i := range out {
		out[i] = packed[i/8]&(1<<uint(i%8)) != 0
	}
	return out, nil
}
