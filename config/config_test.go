// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPresetsAreValid(t *testing.T) {
	require := require.New(t)
	mainnet := Mainnet()
	testnet := Testnet()
	local := Local()
	require.NoError(mainnet.Validate())
	require.NoError(testnet.Validate())
	require.NoError(local.Validate())
}

func TestValidateCatchesExitDelayBelowFraudWindow(t *testing.T) {
	require := require.New(t)
	c := Mainnet()
	c.ExitDelayBlocks = c.FraudWindowBlocks - 1
	require.ErrorIs(c.Validate(), ErrExitDelayBlocks)
}

func TestBuilderOverridesLayerOnPreset(t *testing.T) {
	require := require.New(t)
	cfg, err := NewBuilder().
		FromPreset(TestnetNetwork).
		WithMinConfidence(0.95).
		Build()
	require.NoError(err)
	require.Equal(0.95, cfg.MinConfidence)
	require.Equal(Testnet().SampleSizeBase, cfg.SampleSizeBase)
}

func TestBuilderRejectsInvalidOverride(t *testing.T) {
	require := require.New(t)
	_, err := NewBuilder().WithMinConfidence(0.5).Build()
	require.ErrorIs(err, ErrMinConfidence)
}
