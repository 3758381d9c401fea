// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package safemath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAdd64(t *testing.T) {
	tests := []struct {
		name string
		a, b uint64
		want uint64
		err  error
	}{
		{name: "normal", a: 10, b: 20, want: 30},
		{name: "zero", a: 0, b: 0, want: 0},
		{name: "max value", a: math.MaxUint64 - 1, b: 1, want: math.MaxUint64},
		{name: "overflow", a: math.MaxUint64, b: 1, err: ErrOverflow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Add64(tt.a, tt.b)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestSub64(t *testing.T) {
	tests := []struct {
		name string
		a, b uint64
		want uint64
		err  error
	}{
		{name: "normal", a: 30, b: 20, want: 10},
		{name: "equal", a: 100, b: 100, want: 0},
		{name: "underflow", a: 10, b: 20, err: ErrUnderflow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Sub64(tt.a, tt.b)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestApplyDelta(t *testing.T) {
	require := require.New(t)

	got, err := ApplyDelta(1000, -250)
	require.NoError(err)
	require.Equal(uint64(750), got)

	got, err = ApplyDelta(1000, 500)
	require.NoError(err)
	require.Equal(uint64(1500), got)

	_, err = ApplyDelta(100, -200)
	require.ErrorIs(err, ErrUnderflow)
}

func TestBasisPoints(t *testing.T) {
	require := require.New(t)

	got, err := BasisPoints(10_000, 500) // 5%
	require.NoError(err)
	require.Equal(uint64(500), got)

	_, err = BasisPoints(10_000, 10_001)
	require.Error(err)
}
