// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config defines the core's governance parameters: the
// runtime-adjustable, range-bounded values that the Challenge
// Generator, Consensus Aggregator, and Fraud Window Controller read.
// Parameter changes take effect only at epoch boundaries; this package
// does not enforce that scheduling itself, it only validates that a
// candidate parameter set is internally consistent before it is
// adopted.
package config

import (
	"encoding/json"
	"errors"
)

// Errors returned by Validate, one per out-of-range or inconsistent
// field.
var (
	ErrSampleSizeBase       = errors.New("config: sample_size_base must be in [100, 10000]")
	ErrSampleSizeBounds     = errors.New("config: sample_size_min must be <= sample_size_max, both within [100, 10000]")
	ErrStratificationFactor = errors.New("config: stratification_factor must be in [1, 64]")
	ErrVRFDelayBlocks       = errors.New("config: vrf_delay_blocks must be in [1, 32]")
	ErrFraudWindowBlocks    = errors.New("config: fraud_window_blocks must be in [10, 100000]")
	ErrMinConfidence        = errors.New("config: min_confidence must be in [0.9, 1.0]")
	ErrQuorumFraction       = errors.New("config: quorum_fraction must be in [0.5, 1.0]")
	ErrFalsePassPenaltyBps  = errors.New("config: false_pass_penalty_bps must be in [0, 10000]")
	ErrMinValidatorStake    = errors.New("config: min_validator_stake must be positive")
	ErrActivationDelay      = errors.New("config: activation_delay_blocks must be positive")
	ErrExitDelayBlocks      = errors.New("config: exit_delay_blocks must be >= fraud_window_blocks")
	ErrAdaptiveAlpha        = errors.New("config: adaptive_alpha must be in [0, 10]")
	ErrRecentFraudWindow    = errors.New("config: recent_fraud_window must be positive")
	ErrMaxReChallenges      = errors.New("config: max_re_challenges must be positive")
)

// Config is the full set of governance parameters, JSON-tagged for the
// persistence layer's per-height snapshot encoding.
type Config struct {
	SampleSizeBase        uint32  `json:"sample_size_base"`
	SampleSizeMin         uint32  `json:"sample_size_min"`
	SampleSizeMax         uint32  `json:"sample_size_max"`
	StratificationFactor  uint32  `json:"stratification_factor"`
	VRFDelayBlocks        uint64  `json:"vrf_delay_blocks"`
	FraudWindowBlocks     uint64  `json:"fraud_window_blocks"`
	MinConfidence         float64 `json:"min_confidence"`
	QuorumFraction        float64 `json:"quorum_fraction"`
	FalsePassPenaltyBps   uint32  `json:"false_pass_penalty_bps"`
	MinValidatorStake     uint64  `json:"min_validator_stake"`
	ActivationDelayBlocks uint64  `json:"activation_delay_blocks"`
	ExitDelayBlocks       uint64  `json:"exit_delay_blocks"`
	AdaptiveAlpha         float64 `json:"adaptive_alpha"`
	RecentFraudWindow     uint64  `json:"recent_fraud_window"`
	MaxReChallenges       uint32  `json:"max_re_challenges"`
}

// Validate reports the first invariant violation found, or nil if cfg
// is internally consistent.
func (c *Config) Validate() error {
	switch {
	case c.SampleSizeBase < 100 || c.SampleSizeBase > 10000:
		return ErrSampleSizeBase
	case c.SampleSizeMin < 100 || c.SampleSizeMax > 10000 || c.SampleSizeMin > c.SampleSizeMax:
		return ErrSampleSizeBounds
	case c.StratificationFactor < 1 || c.StratificationFactor > 64:
		return ErrStratificationFactor
	case c.VRFDelayBlocks < 1 || c.VRFDelayBlocks > 32:
		return ErrVRFDelayBlocks
	case c.FraudWindowBlocks < 10 || c.FraudWindowBlocks > 100000:
		return ErrFraudWindowBlocks
	case c.MinConfidence < 0.9 || c.MinConfidence > 1.0:
		return ErrMinConfidence
	case c.QuorumFraction < 0.5 || c.QuorumFraction > 1.0:
		return ErrQuorumFraction
	case c.FalsePassPenaltyBps > 10000:
		return ErrFalsePassPenaltyBps
	case c.MinValidatorStake == 0:
		return ErrMinValidatorStake
	case c.ActivationDelayBlocks == 0:
		return ErrActivationDelay
	case c.ExitDelayBlocks < c.FraudWindowBlocks:
		return ErrExitDelayBlocks
	case c.AdaptiveAlpha < 0 || c.AdaptiveAlpha > 10:
		return ErrAdaptiveAlpha
	case c.RecentFraudWindow == 0:
		return ErrRecentFraudWindow
	case c.MaxReChallenges == 0:
		return ErrMaxReChallenges
	}
	return nil
}

// MarshalJSON and UnmarshalJSON are the default struct-tag-driven
// encoding; declared explicitly only so the persistence layer's
// content-addressed snapshot format has one obvious place to look.
func (c *Config) MarshalJSON() ([]byte, error) {
	type alias Config
	return json.Marshal((*alias)(c))
}

func (c *Config) UnmarshalJSON(data []byte) error {
	type alias Config
	return json.Unmarshal(data, (*alias)(c))
}
