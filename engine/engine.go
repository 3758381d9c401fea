// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package engine orchestrates the six PoPC components into one
// per-block control flow: a job commitment becomes a challenge once its
// seed reveals, verdicts accumulate until expiry, the aggregator turns
// them into a Decision, and the Decision sits in its fraud window until
// it commits or is overturned.
package engine

import (
	"bytes"
	"sort"
	"sync"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxfi/popc"
	"github.com/luxfi/popc/aggregator"
	"github.com/luxfi/popc/beacon"
	"github.com/luxfi/popc/challenge"
	"github.com/luxfi/popc/codec"
	"github.com/luxfi/popc/config"
	"github.com/luxfi/popc/fraudwindow"
	"github.com/luxfi/popc/hashing"
	"github.com/luxfi/popc/metrics"
	"github.com/luxfi/popc/validators"
	"github.com/luxfi/popc/verdict"
)

// pendingCommitment is a commitment awaiting its seed reveal.
type pendingCommitment struct {
	commitment       *popc.JobCommitment
	issueHeight      uint64
	reChallengeCount uint32
}

// openChallenge is an issued challenge still accepting verdicts.
type openChallenge struct {
	challenge *popc.Challenge
}

type decisionEvent struct {
	height     uint64
	overturned bool
}

// Engine ties the Randomness Beacon, Validator Registry, Challenge
// Generator, Verdict Collector, Consensus Aggregator, and Fraud Window
// Controller into one process loop, driven one block height at a time.
type Engine struct {
	cfg        config.Config
	logger     log.Logger
	metrics    *metrics.Metrics
	thresholds aggregator.Thresholds

	// challengeWindowBlocks is how long a challenge accepts verdicts
	// after issuance — an engine-level scheduling choice, independent of
	// the fraud window that follows a Decision.
	challengeWindowBlocks uint64

	Beacon    *beacon.Beacon
	Registry  *validators.Registry
	Generator *challenge.Generator
	Collector *verdict.Collector
	FraudCtrl *fraudwindow.Controller

	mu          sync.Mutex
	pending     map[ids.ID]*pendingCommitment
	open        map[[32]byte]*openChallenge
	byJob       map[ids.ID][32]byte // job-id -> active challenge hash
	commitments map[ids.ID]*popc.JobCommitment // job-id -> original commitment, immutable once submitted
	decisions   []decisionEvent
}

// New assembles an Engine from its components. Callers construct the
// beacon, registry, generator, collector, and fraud-window controller
// separately (each has external dependencies — VRF keys, a signature
// verifier, a segment verifier — that the engine has no opinion about)
// and hand them in already wired to each other's read interfaces.
func New(
	cfg config.Config,
	b *beacon.Beacon,
	registry *validators.Registry,
	gen *challenge.Generator,
	collector *verdict.Collector,
	fraudCtrl *fraudwindow.Controller,
	challengeWindowBlocks uint64,
	reg prometheus.Registerer,
	logger log.Logger,
) (*Engine, error) {
	m, err := metrics.New(reg)
	if err != nil {
		return nil, err
	}
	return &Engine{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		// Pass needs at least min_confidence of indices attesting
		// correct; fail needs the complementary incorrect fraction.
		thresholds: aggregator.Thresholds{
			PassFraction:   cfg.MinConfidence,
			FailFraction:   1 - cfg.MinConfidence,
			QuorumFraction: cfg.QuorumFraction,
			MinConfidence:  cfg.MinConfidence,
		},
		challengeWindowBlocks: challengeWindowBlocks,
		Beacon:                b,
		Registry:              registry,
		Generator:             gen,
		Collector:             collector,
		FraudCtrl:             fraudCtrl,
		pending:               make(map[ids.ID]*pendingCommitment),
		open:                  make(map[[32]byte]*openChallenge),
		byJob:                 make(map[ids.ID][32]byte),
		commitments:           make(map[ids.ID]*popc.JobCommitment),
	}, nil
}

// RecentFraudRate implements challenge.FraudRateSource by scanning this
// engine's own decision history — the fraud window controller is the
// only source of overturn events, and the engine is what observes them.
func (e *Engine) RecentFraudRate(currentHeight, window uint64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := int64(currentHeight) - int64(window)
	var total, overturned int
	for _, ev := range e.decisions {
		if int64(ev.height) < cutoff {
			continue
		}
		total++
		if ev.overturned {
			overturned++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(overturned) / float64(total)
}

// SubmitCommitment registers a new job commitment to be challenged once
// its seed reveals, at submitHeight + vrf_delay_blocks.
func (e *Engine) SubmitCommitment(c *popc.JobCommitment) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.pending[c.JobID]; exists {
		return popc.ErrDuplicateCommitment
	}
	if _, active := e.byJob[c.JobID]; active {
		return popc.ErrDuplicateCommitment
	}
	e.pending[c.JobID] = &pendingCommitment{
		commitment:  c,
		issueHeight: c.SubmitHeight + e.cfg.VRFDelayBlocks,
	}
	// Retained verbatim for the job's whole lifecycle: output-root and
	// size are immutable once committed, so a re-challenge must sample
	// against this, never a value reconstructed from a prior challenge's
	// sample indices.
	e.commitments[c.JobID] = c
	return nil
}

// IssueChallenges attempts to issue a challenge for every pending
// commitment whose seed is now available. Commitments whose seed
// remains unavailable (beacon.SeedFor returns an error — a missed or
// deferred leader proof) are left pending and retried on the next call;
// once the reveal deadline has passed without a seed, the responsible
// leader is flagged and jailed.
func (e *Engine) IssueChallenges(currentHeight uint64) ([]*popc.Challenge, error) {
	// Activations due by this height must land before the issue-height
	// snapshot is taken, or a validator could be pending in the snapshot
	// its own verdict is checked against.
	e.Registry.ActivateReady(currentHeight)

	e.mu.Lock()
	defer e.mu.Unlock()

	var issued []*popc.Challenge
	for jobID, pc := range e.pending {
		if pc.issueHeight > currentHeight {
			continue
		}
		seed, err := e.Beacon.SeedFor(pc.issueHeight)
		if err != nil {
			// A full block past the reveal deadline with still no seed
			// means the leader never submitted a proof at all (an
			// invalid submission is already recorded by Beacon.Submit's
			// own deferral). Flag and jail it once.
			if currentHeight > pc.issueHeight && pc.issueHeight >= e.cfg.VRFDelayBlocks {
				leaderHeight := pc.issueHeight - e.cfg.VRFDelayBlocks
				if mp, flagged := e.Beacon.FlagMissingProof(leaderHeight); flagged {
					if jerr := e.FraudCtrl.JailMissedLeader(mp.ExpectedLeader, currentHeight); jerr != nil {
						e.logger.Error("failed to jail missed leader", "leader", mp.ExpectedLeader, "err", jerr)
					}
				}
			}
			continue // seed deferred; retry at a later height
		}

		expiry := pc.issueHeight + e.challengeWindowBlocks
		ch, err := e.Generator.Generate(pc.commitment, seed, pc.issueHeight, expiry, currentHeight, pc.reChallengeCount)
		if err != nil {
			return nil, popc.WrapError("issue_challenge", err)
		}

		delete(e.pending, jobID)
		hash := ch.Hash()
		e.open[hash] = &openChallenge{challenge: ch}
		e.byJob[jobID] = hash
		issued = append(issued, ch)
	}
	return issued, nil
}

// AdmitVerdict passes v to the collector against the registry snapshot
// at the verdict's challenge's issue height. An equivocating validator
// is penalized immediately through the Fraud Window Controller — no
// window is opened, since the two signed statements are themselves the
// proof.
func (e *Engine) AdmitVerdict(v *popc.Verdict) (admitted bool, equivocation *popc.EquivocationError, err error) {
	e.mu.Lock()
	oc, ok := e.open[v.ChallengeHash]
	e.mu.Unlock()
	if !ok {
		return false, nil, popc.ErrUnknownChallenge
	}

	snap, err := e.Registry.SnapshotAt(oc.challenge.IssueHeight)
	if err != nil {
		return false, nil, err
	}
	admitted, equivocation, err = e.Collector.Admit(v, snap, oc.challenge.ExpiryHeight)
	if admitted && e.metrics.CollectorQueueDepth != nil {
		e.metrics.CollectorQueueDepth.Set(float64(e.Collector.Stored()))
	}
	if err != nil || equivocation == nil {
		return admitted, equivocation, err
	}
	if penErr := e.FraudCtrl.HandleEquivocation(v.Validator, v.Height); penErr != nil {
		e.logger.Error("equivocation penalty failed", "validator", v.Validator, "err", penErr)
	}
	return admitted, equivocation, nil
}

// FinalizeExpired seals and aggregates every open challenge whose
// expiry height has passed as of currentHeight, in expiry-height then
// job-id order, opens a fraud window for each resulting Decision, and
// schedules a re-challenge for any Decision that came back inconclusive
// (unless max_re_challenges has been reached).
func (e *Engine) FinalizeExpired(currentHeight uint64) ([]*popc.Decision, error) {
	e.mu.Lock()
	var due []*openChallenge
	for hash, oc := range e.open {
		if oc.challenge.ExpiryHeight <= currentHeight {
			due = append(due, oc)
			delete(e.open, hash)
		}
	}
	e.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		a, b := due[i].challenge, due[j].challenge
		if a.ExpiryHeight != b.ExpiryHeight {
			return a.ExpiryHeight < b.ExpiryHeight
		}
		return lessID(a.JobID, b.JobID)
	})

	decisions := make([]*popc.Decision, 0, len(due))
	for _, oc := range due {
		hash := oc.challenge.Hash()
		verdicts := e.Collector.Seal(hash)
		if e.metrics.CollectorQueueDepth != nil {
			e.metrics.CollectorQueueDepth.Set(float64(e.Collector.Stored()))
		}

		snap, err := e.Registry.SnapshotAt(oc.challenge.IssueHeight)
		if err != nil {
			return nil, err
		}

		decision := aggregator.Aggregate(oc.challenge, verdicts, snap, e.thresholds)
		decisions = append(decisions, decision)

		e.mu.Lock()
		delete(e.byJob, oc.challenge.JobID)
		e.mu.Unlock()

		e.metrics.Confidence.Observe(decision.Confidence)

		if decision.Verdict == popc.DecisionInconclusive {
			e.scheduleReChallenge(oc.challenge, currentHeight)
			continue
		}

		// Pass/Fail is terminal for this job-id: no further re-challenge
		// will look up the retained commitment, so it can be released.
		e.mu.Lock()
		delete(e.commitments, oc.challenge.JobID)
		e.mu.Unlock()

		e.FraudCtrl.Open(decision, verdicts, currentHeight)
		if e.metrics.FraudWindowOpened != nil {
			e.metrics.FraudWindowOpened.Inc()
		}
	}
	return decisions, nil
}

// scheduleReChallenge re-queues a job whose decision was inconclusive,
// for re-issuance at current height + vrf_delay_blocks, unless
// max_re_challenges has already been reached. The re-challenge samples
// against the original committed output, never a value derived from the
// exhausted challenge's own sample indices — output-root and size are
// immutable once committed.
func (e *Engine) scheduleReChallenge(ch *popc.Challenge, currentHeight uint64) {
	if ch.ReChallengeCount >= e.cfg.MaxReChallenges {
		e.logger.Warn("max re-challenges reached, abandoning job", "jobID", ch.JobID)
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	commitment, ok := e.commitments[ch.JobID]
	if !ok {
		e.logger.Error("re-challenge attempted with no retained commitment", "jobID", ch.JobID)
		return
	}
	e.pending[ch.JobID] = &pendingCommitment{
		commitment:       commitment,
		issueHeight:      currentHeight + e.cfg.VRFDelayBlocks,
		reChallengeCount: ch.ReChallengeCount + 1,
	}
}

// SubmitFraudProof forwards fp to the fraud window controller and
// records the outcome for RecentFraudRate.
func (e *Engine) SubmitFraudProof(fp *popc.FraudProof, currentHeight uint64) error {
	if err := e.FraudCtrl.SubmitFraudProof(fp, currentHeight); err != nil {
		return err
	}
	state, _ := e.FraudCtrl.State(fp.DecisionHash)
	if state == popc.WindowOverturned {
		e.recordDecisionEvent(currentHeight, true)
		if e.metrics.FraudWindowOverturned != nil {
			e.metrics.FraudWindowOverturned.Inc()
		}
	}
	return nil
}

// CommitExpiredWindow finalizes decisionHash's fraud window if its
// expiry has passed, recording the outcome for RecentFraudRate.
func (e *Engine) CommitExpiredWindow(decisionHash [32]byte, currentHeight uint64) (popc.FraudWindowState, error) {
	state, err := e.FraudCtrl.CommitIfExpired(decisionHash, currentHeight)
	if err != nil {
		return state, err
	}
	if state == popc.WindowCommitted {
		e.recordDecisionEvent(currentHeight, false)
		if e.metrics.FraudWindowCommitted != nil {
			e.metrics.FraudWindowCommitted.Inc()
		}
	}
	return state, nil
}

// HandleBlock is the engine's wire boundary: it decodes one block's
// canonical inbound batch (commitments, verdicts, fraud proofs), drives
// the per-height control flow, and returns the canonical outbound batch
// (decisions finalized at this height plus the registry deltas applied).
// A batch that fails to decode is rejected whole; individual entities
// that fail admission are logged and skipped so one bad peer's message
// cannot starve the rest of the block.
func (e *Engine) HandleBlock(inbound []byte, currentHeight uint64) ([]byte, error) {
	in, err := popc.DecodeBlockInbound(inbound)
	if err != nil {
		return nil, popc.WrapError("decode_inbound", err)
	}

	e.Registry.FinalizeExits(currentHeight)

	for _, c := range in.Commitments {
		if err := e.SubmitCommitment(c); err != nil {
			e.logger.Warn("commitment rejected", "jobID", c.JobID, "err", err)
		}
	}
	if _, err := e.IssueChallenges(currentHeight); err != nil {
		return nil, err
	}
	for _, v := range in.Verdicts {
		if _, _, err := e.AdmitVerdict(v); err != nil {
			e.logger.Warn("verdict rejected", "validator", v.Validator, "err", err)
		}
	}
	for _, fp := range in.FraudProofs {
		if err := e.SubmitFraudProof(fp, currentHeight); err != nil {
			e.logger.Warn("fraud proof rejected", "submitter", fp.Submitter, "err", err)
		}
	}
	decisions, err := e.FinalizeExpired(currentHeight)
	if err != nil {
		return nil, err
	}

	return popc.EncodeBlockOutbound(&popc.BlockOutbound{
		Decisions:      decisions,
		RegistryDeltas: e.Registry.DeltasAt(currentHeight),
	}), nil
}

// StateRoot content-addresses the engine's replayable state at height:
// the registry snapshot root, the open-challenge set, and the decisions
// still in their fraud windows. Two correct engines fed the same block
// sequence expose identical roots at every height; this is what the
// persistence layer snapshots and what peers compare to detect
// divergence.
func (e *Engine) StateRoot(height uint64) ([32]byte, error) {
	snap, err := e.Registry.SnapshotAt(height)
	if err != nil {
		return [32]byte{}, err
	}
	registryRoot := snap.Root()

	e.mu.Lock()
	open := make([][32]byte, 0, len(e.open))
	for hash := range e.open {
		open = append(open, hash)
	}
	e.mu.Unlock()
	sort.Slice(open, func(i, j int) bool { return bytes.Compare(open[i][:], open[j][:]) < 0 })

	w := codec.NewWriter()
	w.WriteUint64(height)
	w.WriteFixed(registryRoot[:])
	w.WriteUint32(uint32(len(open)))
	for _, h := range open {
		w.WriteFixed(h[:])
	}
	openDecisions := e.FraudCtrl.OpenDecisionHashes()
	w.WriteUint32(uint32(len(openDecisions)))
	for _, h := range openDecisions {
		w.WriteFixed(h[:])
	}
	return hashing.Sum256(w.Bytes()), nil
}

// CheckStateRoot compares this engine's root at height against a peer's
// expected value. A mismatch is fatal: two implementations on the same
// block sequence have diverged, and halting beats silent disagreement.
func (e *Engine) CheckStateRoot(height uint64, expected [32]byte) error {
	got, err := e.StateRoot(height)
	if err != nil {
		return err
	}
	if got != expected {
		return popc.WrapError("check_state_root", popc.ErrStateRootMismatch)
	}
	return nil
}

func (e *Engine) recordDecisionEvent(height uint64, overturned bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.decisions = append(e.decisions, decisionEvent{height: height, overturned: overturned})
}

func lessID(a, b ids.ID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
