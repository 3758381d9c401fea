// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hashing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSum256DeterministicOverConcatenation(t *testing.T) {
	require := require.New(t)

	a := Sum256([]byte("seed"), []byte("output"))
	b := Sum256([]byte("seed"), []byte("output"))
	require.Equal(a, b)

	// Hashing the pre-concatenated input produces the same digest:
	// Sum256 is a plain digest over the byte stream, not a tuple hash.
	c := Sum256([]byte("seedoutput"))
	require.Equal(a, c)

	d := Sum256([]byte("seed"), []byte("outputx"))
	require.NotEqual(a, d)
}

func TestPRFStreamSameKeyStaysInLockstep(t *testing.T) {
	require := require.New(t)

	s1 := NewPRFStream([]byte("challenge-key"))
	s2 := NewPRFStream([]byte("challenge-key"))
	for i := 0; i < 100; i++ {
		require.Equal(s1.Uint64(), s2.Uint64())
	}
}

func TestPRFStreamDifferentKeysDiverge(t *testing.T) {
	require := require.New(t)

	s1 := NewPRFStream([]byte("key-a"))
	s2 := NewPRFStream([]byte("key-b"))

	diverged := false
	for i := 0; i < 8; i++ {
		if s1.Uint64() != s2.Uint64() {
			diverged = true
			break
		}
	}
	require.True(diverged)
}

func TestPRFStreamIsNotAffectedByCallerKeyMutation(t *testing.T) {
	require := require.New(t)

	key := []byte("mutable-key")
	s1 := NewPRFStream(key)
	ref := NewPRFStream([]byte("mutable-key"))

	key[0] = 'X'
	for i := 0; i < 16; i++ {
		require.Equal(ref.Uint64(), s1.Uint64())
	}
}

func TestBucketHash64Stable(t *testing.T) {
	require := require.New(t)

	h1 := BucketHash64([]byte("challenge-hash-bytes"))
	h2 := BucketHash64([]byte("challenge-hash-bytes"))
	require.Equal(h1, h2)
	require.NotEqual(h1, BucketHash64([]byte("other-bytes")))
}
