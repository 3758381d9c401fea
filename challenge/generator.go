// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package challenge implements the Challenge Generator: given a
// committed job and a revealed seed, it produces a sampling plan that
// is unpredictable before seed reveal, verifiable by anyone, and
// statistically sound. Two correct implementations given identical
// inputs must produce byte-identical index sets — that determinism is
// the whole point of keying the sampling stream off the seed instead of
// a local source of randomness.
package challenge

import (
	"math"
	"sort"

	"github.com/luxfi/ids"
	"github.com/luxfi/popc"
	"github.com/luxfi/popc/collections"
	"github.com/luxfi/popc/hashing"
	"github.com/luxfi/popc/safemath"
)

// FraudRateSource reports the fraction of fraud-proof-overturned
// decisions in the last recent_fraud_window blocks, the input to
// adaptive sample sizing.
type FraudRateSource interface {
	RecentFraudRate(currentHeight uint64, window uint64) float64
}

// Params is the subset of governance configuration the generator reads.
type Params struct {
	SampleSizeBase       uint32
	SampleSizeMin        uint32
	SampleSizeMax        uint32
	StratificationFactor uint32
	AdaptiveAlpha        float64
	RecentFraudWindow    uint64
	MaxReChallenges      uint32
}

// Generator produces Challenges from commitments and beacon seeds.
type Generator struct {
	params Params
	fraud  FraudRateSource
}

// Option customizes a single Generate call. The zero value of Generate's
// variadic opts applies no customization, so every existing caller's
// behavior is unchanged.
type Option func(*generateOptions)

type generateOptions struct {
	diversityHint collections.Set[uint64]
}

// WithDiversityHint supplies a caller-provided set of segment indices the
// generator should weight toward — a replica-diversity anti-collusion
// hint, consumed as an external weighting input with no behavioral
// dependency. Hinted indices that fall within a stratum are drawn before
// the stream-based rejection sampling fills the remainder of that
// stratum's quota; the generator's determinism and coverage guarantees
// hold identically whether or not a hint is supplied.
func WithDiversityHint(indices []uint64) Option {
	return func(o *generateOptions) {
		o.diversityHint = collections.SetOf(indices...)
	}
}

// New returns a Generator reading governance parameters from params and
// the recent fraud rate from fraud.
func New(params Params, fraud FraudRateSource) *Generator {
	return &Generator{params: params, fraud: fraud}
}

// Generate derives a Challenge for commitment at issueHeight, given the
// seed revealed for that height. reChallengeCount is 0 for a job's
// first challenge and increments on each re-issue after an
// inconclusive decision.
//
// Returns popc.ErrOutputTooSmall if the commitment's output size is
// below sample_size_min, or popc.ErrSeedUnavailable is the caller's
// responsibility to have already ruled out before calling Generate (the
// beacon's SeedFor is what returns that error) — Generate itself only
// ever receives an already-resolved seed.
func (g *Generator) Generate(commitment *popc.JobCommitment, seed [32]byte, issueHeight, expiryHeight uint64, currentHeight uint64, reChallengeCount uint32, opts ...Option) (*popc.Challenge, error) {
	if commitment.OutputSize < uint64(g.params.SampleSizeMin) {
		return nil, popc.ErrOutputTooSmall
	}
	if reChallengeCount > g.params.MaxReChallenges {
		return nil, popc.ErrMaxReChallengesExceeded
	}

	var o generateOptions
	for _, opt := range opts {
		opt(&o)
	}

	sampleSize := g.adaptiveSampleSize(currentHeight)
	if uint64(sampleSize) > commitment.OutputSize {
		sampleSize = uint32(commitment.OutputSize)
	}

	indices := sampleIndices(
		seed, commitment.JobID, commitment.OutputRoot,
		commitment.OutputSize, sampleSize, g.params.StratificationFactor,
		o.diversityHint,
	)

	return &popc.Challenge{
		JobID:             commitment.JobID,
		SampleIndices:     indices,
		VRFProof:          nil, // set by the caller from the beacon's proof for this height
		IssueHeight:       issueHeight,
		ExpiryHeight:      expiryHeight,
		ReChallengeCount:  reChallengeCount,
		OutputRootAtIssue: commitment.OutputRoot,
	}, nil
}

// adaptiveSampleSize computes clamp(S_base * (1 + alpha*recent_fraud_rate), S_min, S_max).
func (g *Generator) adaptiveSampleSize(currentHeight uint64) uint32 {
	rate := 0.0
	if g.fraud != nil {
		rate = g.fraud.RecentFraudRate(currentHeight, g.params.RecentFraudWindow)
	}
	s := float64(g.params.SampleSizeBase) * (1 + g.params.AdaptiveAlpha*rate)
	if s < float64(g.params.SampleSizeMin) {
		s = float64(g.params.SampleSizeMin)
	}
	if s > float64(g.params.SampleSizeMax) {
		s = float64(g.params.SampleSizeMax)
	}
	return uint32(math.Round(s))
}

// DetectionProbability computes P_detect = 1 - (1-f)^S, the formula
// that MUST be computed identically by the generator and the
// aggregator (it is the aggregator's confidence floor).
func DetectionProbability(f float64, sampleSize uint32) float64 {
	return 1 - math.Pow(1-f, float64(sampleSize))
}

// sampleIndices implements the stratify-then-adapt algorithm: divide
// [0, N) into T equal strata (the last absorbs any remainder), draw
// ceil(S/T) indices per stratum via rejection sampling on a keyed
// stream, concatenate, sort, and truncate to exactly S.
func sampleIndices(seed [32]byte, jobID ids.ID, outputRoot [32]byte, n uint64, s uint32, t uint32, diversityHint collections.Set[uint64]) []uint64 {
	if s == 0 || n == 0 {
		return nil
	}
	if uint64(s) >= n {
		out := make([]uint64, n)
		for i := range out {
			out[i] = uint64(i)
		}
		return out
	}

	key := make([]byte, 0, len(seed)+len(jobID)+len(outputRoot))
	key = append(key, seed[:]...)
	key = append(key, jobID[:]...)
	key = append(key, outputRoot[:]...)
	stream := hashing.NewPRFStream(key)

	perStratum := (int(s) + int(t) - 1) / int(t)
	strataCount := uint64(t)
	if strataCount > n {
		strataCount = n
	}
	strataSize := n / strataCount
	remainder := n % strataCount

	seen := collections.NewSet[uint64](int(s))
	all := make([]uint64, 0, s)

	// Hinted indices are tried first (in ascending order, so the draw
	// stays deterministic), then the stream-based rejection sampling
	// fills whatever quota remains per stratum.
	sortedHint := diversityHint.List()
	sort.Slice(sortedHint, func(i, j int) bool { return sortedHint[i] < sortedHint[j] })

	lo := uint64(0)
	for stratum := uint64(0); stratum < strataCount && uint64(len(all)) < uint64(s); stratum++ {
		hi := lo + strataSize
		if stratum == strataCount-1 {
			hi += remainder
		}
		width := hi - lo
		if width == 0 {
			continue
		}

		quota := safemath.Min(perStratum, int(width))
		drawn := 0

		for _, candidate := range sortedHint {
			if drawn >= quota {
				break
			}
			if candidate < lo || candidate >= hi || seen.Contains(candidate) {
				continue
			}
			seen.Add(candidate)
			all = append(all, candidate)
			drawn++
		}

		attempts := 0
		maxAttempts := quota * 64 // bounded: rejection sampling with unique-index retry
		for drawn < quota && attempts < maxAttempts {
			attempts++
			candidate := lo + stream.Uint64()%width
			if seen.Contains(candidate) {
				continue
			}
			seen.Add(candidate)
			all = append(all, candidate)
			drawn++
		}
		lo = hi
	}

	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	if uint64(len(all)) > uint64(s) {
		all = all[:s]
	}
	return all
}
