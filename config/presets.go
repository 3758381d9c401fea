// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

// NetworkType selects a named parameter preset.
type NetworkType uint8

const (
	MainnetNetwork NetworkType = iota
	TestnetNetwork
	LocalNetwork
)

// Builder constructs a Config from a preset, then layers explicit
// overrides on top — mirroring the pattern of starting from a network
// default and tuning a handful of fields for a given deployment.
type Builder struct {
	cfg Config
}

// NewBuilder starts from the mainnet preset.
func NewBuilder() *Builder {
	return &Builder{cfg: Mainnet()}
}

// FromPreset resets the builder to the named network's defaults.
func (b *Builder) FromPreset(n NetworkType) *Builder {
	switch n {
	case TestnetNetwork:
		b.cfg = Testnet()
	case LocalNetwork:
		b.cfg = Local()
	default:
		b.cfg = Mainnet()
	}
	return b
}

// WithSampleSize overrides the base and bounds of the adaptive sample size.
func (b *Builder) WithSampleSize(base, min, max uint32) *Builder {
	b.cfg.SampleSizeBase, b.cfg.SampleSizeMin, b.cfg.SampleSizeMax = base, min, max
	return b
}

// WithFraudWindow overrides the fraud window and exit delay together,
// since exit_delay_blocks must never fall below fraud_window_blocks.
func (b *Builder) WithFraudWindow(fraudWindowBlocks, exitDelayBlocks uint64) *Builder {
	b.cfg.FraudWindowBlocks, b.cfg.ExitDelayBlocks = fraudWindowBlocks, exitDelayBlocks
	return b
}

// WithMinConfidence overrides the pass/fail confidence floor.
func (b *Builder) WithMinConfidence(c float64) *Builder {
	b.cfg.MinConfidence = c
	return b
}

// Build validates and returns the assembled Config.
func (b *Builder) Build() (Config, error) {
	if err := b.cfg.Validate(); err != nil {
		return Config{}, err
	}
	return b.cfg, nil
}

// Mainnet returns the production-scale preset: large sample sizes, long
// fraud windows, conservative confidence floor.
func Mainnet() Config {
	return Config{
		SampleSizeBase:        1000,
		SampleSizeMin:         500,
		SampleSizeMax:         5000,
		StratificationFactor:  16,
		VRFDelayBlocks:        4,
		FraudWindowBlocks:     720,
		MinConfidence:         0.99,
		QuorumFraction:        0.67,
		FalsePassPenaltyBps:   1000,
		MinValidatorStake:     1_000_000,
		ActivationDelayBlocks: 10,
		ExitDelayBlocks:       1000,
		AdaptiveAlpha:         2.0,
		RecentFraudWindow:     10_000,
		MaxReChallenges:       3,
	}
}

// Testnet loosens thresholds for faster iteration while keeping the
// same structural invariants as Mainnet.
func Testnet() Config {
	c := Mainnet()
	c.SampleSizeBase = 200
	c.SampleSizeMin = 100
	c.SampleSizeMax = 1000
	c.FraudWindowBlocks = 100
	c.ActivationDelayBlocks = 5
	c.ExitDelayBlocks = 150
	c.MinValidatorStake = 1000
	c.RecentFraudWindow = 1000
	return c
}

// Local is sized for a single-process simulation: minimal windows and
// stake requirements, still within the governance-valid ranges.
func Local() Config {
	c := Mainnet()
	c.SampleSizeBase = 100
	c.SampleSizeMin = 100
	c.SampleSizeMax = 200
	c.StratificationFactor = 4
	c.VRFDelayBlocks = 1
	c.FraudWindowBlocks = 10
	c.ActivationDelayBlocks = 1
	c.ExitDelayBlocks = 10
	c.MinValidatorStake = 1
	c.RecentFraudWindow = 100
	return c
}
