// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package coordinator owns the article-load state machine and fires at most
// one decryption attempt per (article, content seal) once the access policy
// allows it and every relevant data source has loaded.
package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/luxfi/cache/lru"
	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/math/set"
	"golang.org/x/sync/singleflight"

	"github.com/luxfi/press/access"
	"github.com/luxfi/press/article"
	"github.com/luxfi/press/envelope"
	"github.com/luxfi/press/gate"
	"github.com/luxfi/press/seal"
	"github.com/luxfi/press/wallet"
)

var (
	// ErrAccessDenied is terminal for the current facts only; a later
	// subscription update re-evaluates it. The caller renders a paywall,
	// not an error.
	ErrAccessDenied = errors.New("lacks subscription access to gated content")

	// ErrNoSealedContent reports a retry without sealed content loaded.
	ErrNoSealedContent = errors.New("no sealed content loaded")

	errStaleLoad = errors.New("load superseded by a newer slug")
)

const (
	defaultStableCacheSize    = 64
	defaultPlaintextCacheSize = 32
	defaultCooldown           = 30 * time.Second
)

// Config configures a Coordinator.
type Config struct {
	Log       log.Logger
	DB        database.Database
	Decryptor seal.Decryptor
	Signer    wallet.Signer
	Gate      *gate.Gate

	StableCacheSize    int
	PlaintextCacheSize int

	// Cooldown suppresses automatic re-triggering after a failed signing
	// attempt. Manual retries ignore it.
	Cooldown time.Duration
}

// load is the state of one article-load lifecycle. A slug switch replaces it
// wholesale; late results for an old load compare sequence numbers and are
// discarded.
type load struct {
	seq    uint64
	slug   string
	ctx    context.Context
	cancel context.CancelFunc

	article  *article.Article
	sealed   *envelope.Sealed
	inputs   access.Inputs
	decision access.Decision

	plaintext []byte
	err       error
}

// Coordinator owns all shared mutable state of the decryption flow: the
// loading stage, the in-flight guard set, the stable ownership cache, and
// the plaintext cache. Other components only read snapshots or deliver
// events the coordinator consumes.
type Coordinator struct {
	log       log.Logger
	metrics   *metrics
	validator *envelope.Validator
	decryptor seal.Decryptor
	signer    wallet.Signer
	gate      *gate.Gate
	stable    *access.StableCache
	jobs      *jobRegistry

	cooldown time.Duration
	now      func() time.Time

	group singleflight.Group

	mu            sync.Mutex
	stage         Stage
	loadSeq       uint64
	current       *load
	inflight      set.Set[jobKey]
	plaintexts    *lru.Cache[jobKey, []byte]
	recentFailure time.Time
}

// New creates a coordinator around the given collaborators.
func New(config Config) (*Coordinator, error) {
	switch {
	case config.DB == nil:
		return nil, errors.New("coordinator requires a database")
	case config.Decryptor == nil:
		return nil, errors.New("coordinator requires a decryptor")
	case config.Signer == nil:
		return nil, errors.New("coordinator requires a signer")
	case config.Gate == nil:
		return nil, errors.New("coordinator requires a readiness gate")
	}

	logger := config.Log
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	stableSize := config.StableCacheSize
	if stableSize <= 0 {
		stableSize = defaultStableCacheSize
	}
	plaintextSize := config.PlaintextCacheSize
	if plaintextSize <= 0 {
		plaintextSize = defaultPlaintextCacheSize
	}
	cooldown := config.Cooldown
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}

	c := &Coordinator{
		log:        logger,
		metrics:    newMetrics(),
		validator:  envelope.NewValidator(logger),
		decryptor:  config.Decryptor,
		signer:     config.Signer,
		gate:       config.Gate,
		stable:     access.NewStableCache(stableSize),
		jobs:       newJobRegistry(config.DB),
		cooldown:   cooldown,
		now:        time.Now,
		inflight:   set.NewSet[jobKey](4),
		plaintexts: lru.NewCache[jobKey, []byte](plaintextSize),
	}

	// Level-triggered: every readiness change re-runs the full evaluation
	// from current values.
	c.gate.Subscribe(c.evaluate)
	return c, nil
}

// BeginLoad starts a new article-load lifecycle for slug, invalidating any
// in-flight work for the previous one. Returns the sequence token the rest
// of the load must carry.
func (c *Coordinator) BeginLoad(slug string) uint64 {
	c.mu.Lock()
	if c.current != nil {
		c.current.cancel()
	}
	c.loadSeq++
	ctx, cancel := context.WithCancel(context.Background())
	c.current = &load{
		seq:    c.loadSeq,
		slug:   slug,
		ctx:    ctx,
		cancel: cancel,
	}
	c.stage = StageIdle // lifecycle reset
	c.setStageLocked(StageMetadata)
	seq := c.loadSeq
	c.mu.Unlock()

	// Subscription data is per-publication; it reloads with the target.
	c.gate.Set(gate.SourceSubscription, false)
	c.gate.Set(gate.SourceSubscriptionStatus, false)

	c.log.Debug("article load started",
		log.String("slug", slug),
		log.Uint64("seq", seq),
	)
	return seq
}

// SetArticle records the fetched metadata for the load identified by seq.
func (c *Coordinator) SetArticle(seq uint64, art *article.Article) error {
	c.mu.Lock()
	ld := c.current
	if ld == nil || ld.seq != seq {
		c.mu.Unlock()
		return errStaleLoad
	}
	ld.article = art
	ld.inputs.PublicationID = art.PublicationID
	ld.inputs.SubscriptionPrice = art.SubscriptionPrice
	c.setStageLocked(StageContent)
	c.mu.Unlock()

	// The publication's subscription requirement and price arrive with the
	// metadata.
	c.gate.Set(gate.SourceSubscription, true)
	c.evaluate()
	return nil
}

// SetCiphertext validates and records the downloaded blob for an encrypted
// article. Structural failure surfaces as envelope.ErrCorruptedContent and
// aborts before the readiness gate or the wallet is ever consulted.
func (c *Coordinator) SetCiphertext(seq uint64, raw []byte) error {
	c.mu.Lock()
	ld := c.current
	if ld == nil || ld.seq != seq {
		c.mu.Unlock()
		return errStaleLoad
	}
	if ld.article == nil {
		c.mu.Unlock()
		return errors.New("ciphertext delivered before metadata")
	}
	sealID := ld.article.SealID
	c.mu.Unlock()

	sealed, err := c.validator.Validate(raw, sealID)
	if err != nil {
		c.metrics.numCorrupted.Inc()
		c.mu.Lock()
		if c.current == ld {
			ld.err = err
		}
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	if c.current != ld {
		c.mu.Unlock()
		return errStaleLoad
	}
	ld.sealed = sealed
	c.mu.Unlock()

	c.evaluate()
	return nil
}

// FinishUnencrypted completes a load whose body required no decryption.
func (c *Coordinator) FinishUnencrypted(seq uint64, content []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ld := c.current
	if ld == nil || ld.seq != seq {
		return errStaleLoad
	}
	ld.plaintext = content
	c.setStageLocked(StageIdle)
	return nil
}

// UpdateOwnership delivers the latest ownership query result. A nil fact
// with loading=true is a source mid-refetch; complete facts also feed the
// stable cache so a transient reload never degrades a confirmed fact.
func (c *Coordinator) UpdateOwnership(fact *access.OwnershipFact, loading bool) {
	c.mu.Lock()
	if c.current != nil {
		c.current.inputs.Ownership = fact
		c.current.inputs.OwnershipLoading = loading
	}
	if fact != nil {
		c.stable.Update(c.signer.Address(), *fact)
	}
	c.mu.Unlock()

	c.gate.Set(gate.SourceOwnership, !loading)
	c.evaluate()
}

// UpdateSubscription delivers the latest subscription query result for the
// target publication.
func (c *Coordinator) UpdateSubscription(fact *access.SubscriptionFact, loading bool) {
	c.mu.Lock()
	if c.current != nil {
		c.current.inputs.Subscription = fact
		c.current.inputs.SubscriptionLoading = loading
	}
	c.mu.Unlock()

	c.gate.Set(gate.SourceSubscriptionStatus, !loading)
	c.evaluate()
}

// SetWalletReady records wallet connectivity.
func (c *Coordinator) SetWalletReady(ready bool) {
	c.gate.Set(gate.SourceWallet, ready)
}

// evaluate re-runs the resolver/gate/trigger chain from current values. It
// is called on every relevant input change and is safe to call at any time;
// a no-op when nothing is actionable.
func (c *Coordinator) evaluate() {
	c.mu.Lock()
	ld := c.current
	if ld == nil || ld.article == nil || ld.sealed == nil {
		c.mu.Unlock()
		return
	}
	if ld.plaintext != nil {
		// Re-trigger with plaintext already published: no-op.
		c.mu.Unlock()
		return
	}

	key := jobKey{ArticleID: ld.article.ID, SealID: ld.article.SealID}
	if plaintext, ok := c.plaintexts.Get(key); ok {
		ld.plaintext = plaintext
		c.setStageLocked(StageIdle)
		c.mu.Unlock()
		return
	}

	in := c.snapshotInputsLocked(ld)
	decision := access.Resolve(in)
	c.recordDecisionLocked(ld, decision)

	switch decision.Verdict {
	case access.Deny:
		// Paywall, not an error: metadata stays visible and a later
		// fact change re-evaluates.
		c.mu.Unlock()
		return
	case access.Defer:
		c.setStageLocked(StageWaitingWallet)
		c.mu.Unlock()
		return
	}

	ready := c.gate.Ready(decision.Class)
	if !ready && decision.Class == access.ClassOwner && in.OwnershipLoading &&
		in.CachedOwnership != nil && in.CachedOwnership.Owns(in.PublicationID) {
		// The stable cache stands in for the live ownership source while
		// it refetches, so the optimistic owner path only needs the
		// wallet.
		ready = c.gate.Get(gate.SourceWallet)
	}
	if !ready {
		c.setStageLocked(StageWaitingWallet)
		c.mu.Unlock()
		return
	}
	if c.inflight.Contains(key) {
		// Single-flight: one attempt per key at a time.
		c.mu.Unlock()
		return
	}
	if !c.recentFailure.IsZero() && c.now().Sub(c.recentFailure) < c.cooldown {
		// Recent signing failure: automatic re-trigger is suppressed
		// for the cool-down window. Manual retry still works.
		c.setStageLocked(StageWaitingWallet)
		c.mu.Unlock()
		return
	}

	params := c.buildParamsLocked(ld, decision.Class)
	c.startJobLocked(ld, key, params)
	c.mu.Unlock()
}

// recordDecisionLocked stores decision on ld and reports whether the verdict
// changed. The denial and deferral counters track verdict transitions, not
// evaluation passes: a steady Deny re-evaluated on every fact delivery counts
// once.
func (c *Coordinator) recordDecisionLocked(ld *load, decision access.Decision) bool {
	changed := ld.decision.Verdict != decision.Verdict
	ld.decision = decision
	if !changed {
		return false
	}
	switch decision.Verdict {
	case access.Deny:
		c.metrics.numDenials.Inc()
	case access.Defer:
		c.metrics.numDeferrals.Inc()
	}
	return true
}

// snapshotInputsLocked copies the load's inputs and folds in the stable
// cache for the optimistic-owner branch.
func (c *Coordinator) snapshotInputsLocked(ld *load) access.Inputs {
	in := ld.inputs
	if cached, ok := c.stable.Get(c.signer.Address()); ok {
		in.CachedOwnership = &cached
	}
	return in
}

// buildParamsLocked constructs decrypt parameters for the resolved policy
// class. Exactly one of the owner / subscriber credential sets is populated.
func (c *Coordinator) buildParamsLocked(ld *load, class access.Class) seal.Params {
	params := seal.Params{
		Ciphertext:    ld.sealed.Bytes(),
		ContentID:     ld.sealed.ContentID,
		ArticleID:     ld.article.ID,
		PublicationID: ld.article.PublicationID,
	}

	switch class {
	case access.ClassOwner:
		if ld.inputs.Ownership != nil && ld.inputs.Ownership.Owns(ld.article.PublicationID) {
			params.OwnerCapID = ld.inputs.Ownership.CapID
		} else if cached, ok := c.stable.Get(c.signer.Address()); ok && cached.Owns(ld.article.PublicationID) {
			params.OwnerCapID = cached.CapID
		}
	case access.ClassSubscriber:
		sub := ld.inputs.Subscription
		params.SubscriptionID = sub.SubscriptionID
		params.SubscriptionPrice = sub.Price
		if params.SubscriptionPrice == 0 {
			params.SubscriptionPrice = ld.inputs.SubscriptionPrice
		}
	}
	return params
}

// startJobLocked fires the one decryption attempt for key. The key enters
// the in-flight set before the external call starts and leaves it when the
// attempt finishes, regardless of outcome.
func (c *Coordinator) startJobLocked(ld *load, key jobKey, params seal.Params) {
	c.inflight.Add(key)
	c.setStageLocked(StageDecrypting)
	c.metrics.numAttempts.Inc()

	if err := c.jobs.Create(key); err != nil {
		c.log.Warn("failed to persist decryption job",
			log.String("key", key.String()),
			log.Err(err),
		)
	} else if err := c.jobs.SetState(key, JobInFlight, ""); err != nil {
		c.log.Warn("failed to mark decryption job in flight",
			log.String("key", key.String()),
			log.Err(err),
		)
	}

	c.log.Info("decryption attempt started",
		log.String("slug", ld.slug),
		log.String("key", key.String()),
	)

	go func() {
		plaintext, _, err := c.execute(ld.ctx, key, params)
		c.finishJob(ld, key, plaintext, err)
	}()
}

// execute runs the external decryption call. Identical concurrent requests
// for the same key join the one in-flight attempt; shared reports whether
// this call was joined with another.
func (c *Coordinator) execute(ctx context.Context, key jobKey, params seal.Params) ([]byte, bool, error) {
	v, err, shared := c.group.Do(key.String(), func() (interface{}, error) {
		return c.decryptor.Decrypt(ctx, params, c.signer.Sign)
	})
	if err != nil {
		return nil, shared, err
	}
	return v.([]byte), shared, nil
}

// finishJob publishes an attempt's outcome. Plaintext and loading stage are
// published atomically; results for a superseded load are discarded.
func (c *Coordinator) finishJob(ld *load, key jobKey, plaintext []byte, err error) {
	c.mu.Lock()
	c.inflight.Remove(key)
	stale := c.current == nil || c.current.seq != ld.seq

	if err != nil {
		if jobErr := c.jobs.SetState(key, JobFailed, err.Error()); jobErr != nil {
			c.log.Warn("failed to record job failure", log.Err(jobErr))
		}
		c.metrics.numFailures.Inc()
		c.recentFailure = c.now()
		if !stale {
			ld.err = err
			if errors.Is(err, wallet.ErrSigningRejected) || errors.Is(err, wallet.ErrWalletNotConnected) {
				c.setStageLocked(StageWaitingWallet)
			} else {
				c.setStageLocked(StageIdle)
			}
		}
		c.mu.Unlock()

		c.log.Warn("decryption attempt failed",
			log.String("key", key.String()),
			log.Bool("stale", stale),
			log.Err(err),
		)
		return
	}

	if jobErr := c.jobs.SetState(key, JobDone, ""); jobErr != nil {
		c.log.Warn("failed to record job completion", log.Err(jobErr))
	}
	c.metrics.numSuccesses.Inc()
	c.plaintexts.Put(key, plaintext)
	c.recentFailure = time.Time{} // success clears the cool-down

	if stale {
		c.metrics.numStaleResults.Inc()
		c.mu.Unlock()
		c.log.Debug("discarded decryption result for superseded load",
			log.String("key", key.String()),
		)
		return
	}

	ld.plaintext = plaintext
	ld.err = nil
	c.setStageLocked(StageIdle)
	c.mu.Unlock()

	c.log.Info("decryption completed",
		log.String("slug", ld.slug),
		log.String("key", key.String()),
	)
}

// Retry forces a decryption attempt for the current load: it bypasses the
// defer short-circuit and the cool-down window, but still requires wallet
// availability, still refuses a Deny verdict, and still joins any attempt
// already in flight for the key.
func (c *Coordinator) Retry(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	ld := c.current
	if ld == nil || ld.article == nil || ld.sealed == nil {
		c.mu.Unlock()
		return nil, ErrNoSealedContent
	}
	if ld.plaintext != nil {
		plaintext := ld.plaintext
		c.mu.Unlock()
		return plaintext, nil
	}
	if !c.signer.Connected() {
		c.mu.Unlock()
		return nil, wallet.ErrWalletNotConnected
	}

	in := c.snapshotInputsLocked(ld)
	decision := access.Resolve(in)
	c.recordDecisionLocked(ld, decision)
	if decision.Verdict == access.Deny {
		c.mu.Unlock()
		return nil, ErrAccessDenied
	}

	class := decision.Class
	if decision.Verdict == access.Defer {
		// Forced retry: claim the strongest class the known facts
		// support and let the service be the authority.
		switch {
		case in.CachedOwnership != nil && in.CachedOwnership.Owns(in.PublicationID):
			class = access.ClassOwner
		case in.Subscription != nil && in.Subscription.Active:
			class = access.ClassSubscriber
		default:
			class = access.ClassFree
		}
	}

	key := jobKey{ArticleID: ld.article.ID, SealID: ld.article.SealID}
	if plaintext, ok := c.plaintexts.Get(key); ok {
		ld.plaintext = plaintext
		c.setStageLocked(StageIdle)
		c.mu.Unlock()
		return plaintext, nil
	}

	params := c.buildParamsLocked(ld, class)
	owned := !c.inflight.Contains(key)
	if owned {
		c.inflight.Add(key)
		c.setStageLocked(StageDecrypting)
		c.metrics.numAttempts.Inc()
		if err := c.jobs.Create(key); err == nil {
			_ = c.jobs.SetState(key, JobInFlight, "")
		}
	}
	c.mu.Unlock()

	plaintext, shared, err := c.execute(ctx, key, params)
	if !owned && !shared {
		// The attempt observed in flight finished before this call could
		// join it, so the call above ran on its own and is recorded here.
		c.metrics.numAttempts.Inc()
		if jobErr := c.jobs.Create(key); jobErr == nil {
			_ = c.jobs.SetState(key, JobInFlight, "")
		}
		owned = true
	}
	if owned {
		c.finishJob(ld, key, plaintext, err)
	}
	return plaintext, err
}

// setStageLocked transitions the loading stage, refusing moves outside the
// legal path.
func (c *Coordinator) setStageLocked(to Stage) {
	if c.stage == to {
		return
	}
	if !canTransition(c.stage, to) {
		c.log.Warn("refusing illegal stage transition",
			log.String("from", c.stage.String()),
			log.String("to", to.String()),
		)
		return
	}
	c.stage = to
}

// Stage returns the current loading stage.
func (c *Coordinator) Stage() Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stage
}

// Decision returns the most recent access decision for the current load.
func (c *Coordinator) Decision() access.Decision {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return access.Decision{Verdict: access.Defer, Reason: "no load in progress"}
	}
	return c.current.decision
}

// Plaintext returns the published plaintext for the current load, if any.
func (c *Coordinator) Plaintext() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || c.current.plaintext == nil {
		return nil, false
	}
	return c.current.plaintext, true
}

// LoadErr returns the terminal error of the current load, if any.
func (c *Coordinator) LoadErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	return c.current.err
}

// CoolingDown reports whether automatic re-triggering is currently
// suppressed by a recent failure.
func (c *Coordinator) CoolingDown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.recentFailure.IsZero() && c.now().Sub(c.recentFailure) < c.cooldown
}

// Job returns the persisted record for the given article/seal pair.
func (c *Coordinator) Job(articleID, sealID ids.ID) (*Job, error) {
	return c.jobs.Get(jobKey{ArticleID: articleID, SealID: sealID})
}
