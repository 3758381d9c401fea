// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package popc

import "fmt"

// Sentinel errors, grouped by the taxonomy the core distinguishes:
// input errors reject and surface to the caller; transient errors defer
// without failing; equivocation is recorded as slashable evidence, not
// an error at all from the caller's perspective.
var (
	// Input errors.
	ErrStakeTooLow         = fmt.Errorf("popc: stake below minimum")
	ErrValidatorExists     = fmt.Errorf("popc: validator already registered")
	ErrExitInProgress      = fmt.Errorf("popc: validator has an exit in progress")
	ErrUnknownValidator    = fmt.Errorf("popc: unknown validator")
	ErrValidatorNotActive  = fmt.Errorf("popc: validator not active at issue height")
	ErrBadSignature        = fmt.Errorf("popc: verdict signature does not verify")
	ErrDuplicateCommitment = fmt.Errorf("popc: job commitment already exists")
	ErrUnknownDecision     = fmt.Errorf("popc: fraud proof references unknown decision")
	ErrUnknownChallenge    = fmt.Errorf("popc: verdict references unknown challenge")
	ErrMalformedVerdict    = fmt.Errorf("popc: malformed verdict")
	ErrCollectorOverBudget = fmt.Errorf("popc: verdict collector memory budget exceeded")

	// Transient/deferrable errors — the caller retries at a later height.
	ErrSeedUnavailable = fmt.Errorf("popc: seed unavailable before submit-height + delay")
	ErrOutputTooSmall  = fmt.Errorf("popc: output size below sample_size_min")

	// ErrMaxReChallengesExceeded halts re-issue of a perpetually
	// inconclusive job once the governance-set cap is reached.
	ErrMaxReChallengesExceeded = fmt.Errorf("popc: max_re_challenges exceeded")

	// Fraud-proof specific input errors.
	ErrFraudProofExpired           = fmt.Errorf("popc: fraud proof submitted after window expiry")
	ErrFraudProofDoesNotContradict = fmt.Errorf("popc: fraud proof does not contradict the decision")

	// Invariant violations — fatal, halt block processing.
	ErrStateRootMismatch    = fmt.Errorf("popc: state root mismatch")
	ErrRegistrySnapshotGone = fmt.Errorf("popc: registry snapshot unavailable for required height")
)

// EquivocationError is not propagated as a failure: the collector
// records it as self-proving slashable evidence and continues. It
// implements error purely so callers can log it uniformly alongside
// genuine failures.
type EquivocationError struct {
	Validator     string
	ChallengeHash [32]byte
}

func (e *EquivocationError) Error() string {
	return fmt.Sprintf("popc: validator %s equivocated on challenge %x", e.Validator, e.ChallengeHash[:8])
}

// WrapError annotates err with a short operational context, preserving
// the original error for errors.Is/errors.As.
func WrapError(context string, err error) error {
	if err == nil {
		return nil
	}
	return &wrappedError{context: context, err: err}
}

type wrappedError struct {
	context string
	err     error
}

func (w *wrappedError) Error() string { return w.context + ": " + w.err.Error() }
func (w *wrappedError) Unwrap() error { return w.err }
