// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package validators implements the Validator Registry: the
// process-wide authority over stake-weighted validator eligibility.
// All other components read it by immutable snapshot at well-defined
// heights; only the Fraud Window Controller mutates it, through
// apply_delta, and only the registry's own registration path adds new
// validators. This single-writer, multi-reader discipline is what lets
// every other component treat the registry as a value rather than a
// lock it has to reason about.
package validators

import (
	"sort"
	"sync"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"go.uber.org/zap"

	"github.com/luxfi/popc"
	"github.com/luxfi/popc/codec"
	"github.com/luxfi/popc/hashing"
	"github.com/luxfi/popc/safemath"
)

// Registry is the stake-weighted, snapshot-readable validator set.
type Registry struct {
	mu              sync.RWMutex
	logger          log.Logger
	minStake        uint64
	activationDelay uint64
	exitDelay       uint64
	retainFor       uint64 // blocks of history to retain (>= fraud_window_blocks)

	byIdentity map[ids.NodeID]*popc.Validator
	// snapshots holds an immutable copy of the active set at every
	// height it changed, pruned to the last retainFor blocks so the
	// fraud window can always read the state as of issue_height.
	snapshots  map[uint64]RegistrySnapshot
	// deltaLog records every stake mutation, keyed by the height it was
	// applied at, so the per-block outbound batch can report the deltas
	// the state engine must mirror. Pruned alongside snapshots.
	deltaLog   map[uint64][]popc.RegistryDelta
}

// New returns an empty Registry. A newly registered validator stays
// pending for activationDelay confirmation blocks before it becomes
// eligible. retainFor must be at least fraud_window_blocks so the fraud
// window controller can always resolve a historical snapshot.
func New(minStake, activationDelay, exitDelay, retainFor uint64, logger log.Logger) *Registry {
	return &Registry{
		logger:          logger,
		minStake:        minStake,
		activationDelay: activationDelay,
		exitDelay:       exitDelay,
		retainFor:       retainFor,
		byIdentity:      make(map[ids.NodeID]*popc.Validator),
		snapshots:       make(map[uint64]RegistrySnapshot),
		deltaLog:        make(map[uint64][]popc.RegistryDelta),
	}
}

// Register admits a new validator at the given height, in pending
// status. It fails if stake is below the minimum, the identity is
// already registered, or the identity has an exit in progress. The
// validator becomes active only once ActivateReady observes a height
// activationDelay confirmation blocks past registration.
func (r *Registry) Register(identity ids.NodeID, publicKey []byte, stake uint64, height uint64) error {
	if stake < r.minStake {
		return popc.ErrStakeTooLow
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byIdentity[identity]; ok {
		if existing.Status == popc.ValidatorExiting {
			return popc.ErrExitInProgress
		}
		return popc.ErrValidatorExists
	}

	r.byIdentity[identity] = &popc.Validator{
		Identity:   identity,
		PublicKey:  publicKey,
		Stake:      stake,
		Status:     popc.ValidatorPending,
		JoinHeight: height,
	}
	r.snapshotLocked(height)
	r.logger.Info("validator registered",
		zap.Stringer("identity", identity),
		zap.Uint64("stake", stake),
		zap.Uint64("height", height),
	)
	return nil
}

// ActivateReady flips every pending validator whose confirmation delay
// has elapsed as of height to active. Called once per block before
// challenges issue, so a snapshot taken at any issue height reflects
// the activations due by then.
func (r *Registry) ActivateReady(height uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	changed := false
	for _, v := range r.byIdentity {
		if v.Status == popc.ValidatorPending && height >= v.JoinHeight+r.activationDelay {
			v.Status = popc.ValidatorActive
			changed = true
		}
	}
	if changed {
		r.snapshotLocked(height)
	}
}

// BeginExit flips a validator's status to exiting; its stake is
// returned only after exit_delay_blocks, so it cannot dodge a pending
// slash by exiting mid-review.
func (r *Registry) BeginExit(identity ids.NodeID, height uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.byIdentity[identity]
	if !ok {
		return popc.ErrUnknownValidator
	}
	v.Status = popc.ValidatorExiting
	v.ExitRequestedAt = height
	r.snapshotLocked(height)
	r.logger.Info("validator exit begun",
		zap.Stringer("identity", identity),
		zap.Uint64("height", height),
	)
	return nil
}

// FinalizeExits removes validators whose exit_delay_blocks have
// elapsed as of height, returning their stake.
func (r *Registry) FinalizeExits(height uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	changed := false
	for id, v := range r.byIdentity {
		if v.Status == popc.ValidatorExiting && height >= v.ExitRequestedAt+r.exitDelay {
			delete(r.byIdentity, id)
			changed = true
		}
	}
	if changed {
		r.snapshotLocked(height)
	}
}

// ApplyDelta mutates a validator's stake. It is callable only by the
// Fraud Window Controller: negative deltas slash, positive deltas
// reward. Overflow/underflow is rejected rather than silently wrapped,
// preserving the slashing conservation invariant.
func (r *Registry) ApplyDelta(identity ids.NodeID, delta int64, height uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.byIdentity[identity]
	if !ok {
		return popc.ErrUnknownValidator
	}
	newStake, err := safemath.ApplyDelta(v.Stake, delta)
	if err != nil {
		return popc.WrapError("apply_delta", err)
	}
	v.Stake = newStake
	if v.Stake < r.minStake && v.Status == popc.ValidatorActive {
		v.Status = popc.ValidatorJailed
	}
	r.deltaLog[height] = append(r.deltaLog[height], popc.RegistryDelta{Identity: identity, StakeDelta: delta})
	r.snapshotLocked(height)
	return nil
}

// DeltasAt reports the stake deltas applied at exactly height,
// aggregated per identity and sorted by identity byte order — the
// registry_deltas half of the per-block outbound batch.
func (r *Registry) DeltasAt(height uint64) []popc.RegistryDelta {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byIdentity := make(map[ids.NodeID]int64)
	order := make([]ids.NodeID, 0)
	for _, d := range r.deltaLog[height] {
		if _, seen := byIdentity[d.Identity]; !seen {
			order = append(order, d.Identity)
		}
		byIdentity[d.Identity] += d.StakeDelta
	}
	sort.Slice(order, func(i, j int) bool { return lessNodeID(order[i], order[j]) })

	out := make([]popc.RegistryDelta, 0, len(order))
	for _, id := range order {
		out = append(out, popc.RegistryDelta{Identity: id, StakeDelta: byIdentity[id]})
	}
	return out
}

// Stake returns a validator's current stake (not a historical
// snapshot), satisfying fraudwindow.StakeReporter so the controller can
// compute basis-point penalties against live stake.
func (r *Registry) Stake(identity ids.NodeID) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.byIdentity[identity]; ok {
		return v.Stake
	}
	return 0
}

// Jail marks a validator jailed outright (used for equivocation and
// leader-accountability slashing, which bypass the fraud window).
func (r *Registry) Jail(identity ids.NodeID, height uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.byIdentity[identity]
	if !ok {
		return popc.ErrUnknownValidator
	}
	v.Status = popc.ValidatorJailed
	r.snapshotLocked(height)
	return nil
}

// RegistrySnapshot is an immutable, point-in-time view of the active
// validator set, handed to the challenge generator (for weighting) and
// the verdict collector (for eligibility).
type RegistrySnapshot struct {
	Height       uint64
	validators   map[ids.NodeID]popc.Validator
	totalActive  uint64
	sortedActive []ids.NodeID
}

// IsActive reports whether identity was active as of this snapshot.
func (s RegistrySnapshot) IsActive(identity ids.NodeID) bool {
	v, ok := s.validators[identity]
	return ok && v.Status == popc.ValidatorActive
}

// Stake returns a validator's stake as of this snapshot (0 if absent).
func (s RegistrySnapshot) Stake(identity ids.NodeID) uint64 {
	return s.validators[identity].Stake
}

// PublicKey returns a validator's registered BLS public key as of this
// snapshot, or nil if absent.
func (s RegistrySnapshot) PublicKey(identity ids.NodeID) []byte {
	return s.validators[identity].PublicKey
}

// TotalActiveStake is the sum of stake across all active validators.
func (s RegistrySnapshot) TotalActiveStake() uint64 { return s.totalActive }

// ActiveValidators returns active validator identities in deterministic
// (byte-ordered) order — the ordering apply_delta must replay in.
func (s RegistrySnapshot) ActiveValidators() []ids.NodeID {
	out := make([]ids.NodeID, len(s.sortedActive))
	copy(out, s.sortedActive)
	return out
}

// Root content-addresses this snapshot: every validator in identity
// order, canonically encoded. Two registries that processed the same
// mutation sequence produce the same root at every height.
func (s RegistrySnapshot) Root() [32]byte {
	all := make([]ids.NodeID, 0, len(s.validators))
	for id := range s.validators {
		all = append(all, id)
	}
	sort.Slice(all, func(i, j int) bool { return lessNodeID(all[i], all[j]) })

	w := codec.NewWriter()
	w.WriteUint64(s.Height)
	w.WriteUint32(uint32(len(all)))
	for _, id := range all {
		v := s.validators[id]
		w.WriteBytes(id[:])
		w.WriteUint64(v.Stake)
		w.WriteUint8(uint8(v.Status))
		w.WriteUint64(v.JoinHeight)
		w.WriteUint64(v.ExitRequestedAt)
	}
	return hashing.Sum256(w.Bytes())
}

// SnapshotAt returns the immutable view as of height. If height falls
// between two recorded snapshots, the most recent snapshot at or before
// height is returned, which is correct because the registry only
// changes on Register/ActivateReady/BeginExit/FinalizeExits/ApplyDelta/
// Jail calls, each of which records a new snapshot at its own height.
func (r *Registry) SnapshotAt(height uint64) (RegistrySnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	best, found := uint64(0), false
	for h := range r.snapshots {
		if h <= height && (!found || h > best) {
			best, found = h, true
		}
	}
	if !found {
		return RegistrySnapshot{}, popc.ErrRegistrySnapshotGone
	}
	return r.snapshots[best], nil
}

// snapshotLocked records the current state as the snapshot for height
// and prunes snapshots older than retainFor blocks. Caller must hold
// r.mu for writing.
func (r *Registry) snapshotLocked(height uint64) {
	validators := make(map[ids.NodeID]popc.Validator, len(r.byIdentity))
	var total uint64
	active := make([]ids.NodeID, 0, len(r.byIdentity))
	for id, v := range r.byIdentity {
		validators[id] = *v
		if v.Status == popc.ValidatorActive {
			total += v.Stake
			active = append(active, id)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return lessNodeID(active[i], active[j])
	})

	r.snapshots[height] = RegistrySnapshot{
		Height:       height,
		validators:   validators,
		totalActive:  total,
		sortedActive: active,
	}

	cutoff := int64(height) - int64(r.retainFor)
	if cutoff <= 0 {
		return
	}
	// The newest snapshot below the cutoff still describes every height
	// from the cutoff up to the next recorded change, so it is kept.
	base, haveBase := uint64(0), false
	for h := range r.snapshots {
		if int64(h) < cutoff && (!haveBase || h > base) {
			base, haveBase = h, true
		}
	}
	for h := range r.snapshots {
		if int64(h) < cutoff && h != base {
			delete(r.snapshots, h)
		}
	}
	for h := range r.deltaLog {
		if int64(h) < cutoff {
			delete(r.deltaLog, h)
		}
	}
}

func lessNodeID(a, b ids.NodeID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
