// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package safemath provides overflow-checked arithmetic over the uint64
// stake amounts the Validator Registry and Fraud Window Controller mutate.
// Slashing and reward deltas must never silently wrap; total stake
// conservation depends on every stake delta failing loudly on
// overflow/underflow instead of producing a wrapped total.
package safemath

import (
	"errors"
	"math"
)

var (
	ErrOverflow  = errors.New("safemath: overflow")
	ErrUnderflow = errors.New("safemath: underflow")
)

// Add64 returns a + b, or ErrOverflow if the sum would wrap.
func Add64(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrOverflow
	}
	return a + b, nil
}

// Sub64 returns a - b, or ErrUnderflow if b > a.
func Sub64(a, b uint64) (uint64, error) {
	if a < b {
		return 0, ErrUnderflow
	}
	return a - b, nil
}

// Mul64 returns a * b, or ErrOverflow if the product would wrap.
func Mul64(a, b uint64) (uint64, error) {
	if b != 0 && a > math.MaxUint64/b {
		return 0, ErrOverflow
	}
	return a * b, nil
}

// ApplyDelta applies a signed stake delta to a stake amount, rejecting any
// change that would overflow or drive the stake negative.
func ApplyDelta(stake uint64, delta int64) (uint64, error) {
	if delta >= 0 {
		return Add64(stake, uint64(delta))
	}
	return Sub64(stake, uint64(-delta))
}

// Min returns the smaller of a and b.
func Min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// BasisPoints computes floor(amount * bps / 10000), the slashing helper used
// by the Fraud Window Controller for false_pass_penalty_bps.
func BasisPoints(amount uint64, bps uint32) (uint64, error) {
	if bps > 10_000 {
		return 0, errors.New("safemath: basis points must be <= 10000")
	}
	product, err := Mul64(amount, uint64(bps))
	if err != nil {
		return 0, err
	}
	return product / 10_000, nil
}
