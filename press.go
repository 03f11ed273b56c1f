// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package press is the reader-side client for gated publications: it fetches
// article metadata and sealed content blobs, resolves the reader's
// entitlement from asynchronously-loading chain data, and orchestrates
// threshold decryption through an external service.
package press

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/press/access"
	"github.com/luxfi/press/article"
	"github.com/luxfi/press/chainstate"
	"github.com/luxfi/press/coordinator"
	"github.com/luxfi/press/gate"
	"github.com/luxfi/press/seal"
	"github.com/luxfi/press/wallet"
)

const defaultPollInterval = 50 * time.Millisecond

// Config configures a Reader.
type Config struct {
	Log log.Logger

	// DB persists decryption-job records across sessions.
	DB database.Database

	// ContentURI is the publishing backend serving article metadata and
	// blobs.
	ContentURI string
	// ChainURI serves ownership and subscription queries.
	ChainURI string
	// SealURI is the threshold-decryption service.
	SealURI string

	// Signer is the reader's wallet.
	Signer wallet.Signer

	// Cooldown overrides the signing-failure cool-down window.
	Cooldown time.Duration
}

// Validate checks that every collaborator the reader needs is configured.
func (c *Config) Validate() error {
	switch {
	case c.DB == nil:
		return errors.New("press config requires a database")
	case c.ContentURI == "":
		return errors.New("press config requires a content endpoint")
	case c.ChainURI == "":
		return errors.New("press config requires a chain endpoint")
	case c.SealURI == "":
		return errors.New("press config requires a decryption service endpoint")
	case c.Signer == nil:
		return errors.New("press config requires a wallet signer")
	default:
		return nil
	}
}

// Reader glues the article-load control flow together: metadata fetch, blob
// download, envelope validation, entitlement resolution, and decryption
// orchestration. One Reader serves one wallet.
type Reader struct {
	log     log.Logger
	content *article.Client
	chain   *chainstate.Client
	signer  wallet.Signer
	gate    *gate.Gate
	coord   *coordinator.Coordinator

	pollInterval time.Duration
}

// NewReader wires a reader from config.
func NewReader(config Config) (*Reader, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger := config.Log
	if logger == nil {
		logger = log.NewNoOpLogger()
	}

	g := gate.New(logger)
	coord, err := coordinator.New(coordinator.Config{
		Log:       logger,
		DB:        config.DB,
		Decryptor: seal.NewClient(config.SealURI),
		Signer:    config.Signer,
		Gate:      g,
		Cooldown:  config.Cooldown,
	})
	if err != nil {
		return nil, err
	}

	r := &Reader{
		log:          logger,
		content:      article.NewClient(config.ContentURI),
		chain:        chainstate.NewClient(config.ChainURI),
		signer:       config.Signer,
		gate:         g,
		coord:        coord,
		pollInterval: defaultPollInterval,
	}
	coord.SetWalletReady(config.Signer.Connected())
	return r, nil
}

// SetWalletConnected records wallet connectivity changes.
func (r *Reader) SetWalletConnected(connected bool) {
	r.coord.SetWalletReady(connected)
}

// LoadArticle starts the load lifecycle for slug: it fetches the metadata,
// kicks off the entitlement queries, downloads the body blob, and feeds the
// coordinator. For unencrypted articles the content is available immediately;
// for sealed ones decryption proceeds in the background and WaitContent
// observes the outcome. Calling LoadArticle again supersedes the previous
// load.
func (r *Reader) LoadArticle(ctx context.Context, slug string) (*article.Article, error) {
	seq := r.coord.BeginLoad(slug)

	art, err := r.content.GetArticle(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch article %q: %w", slug, err)
	}
	if err := r.coord.SetArticle(seq, art); err != nil {
		return nil, err
	}

	r.refreshEntitlements(ctx, art.PublicationID)

	if !art.Encrypted() {
		content, err := r.content.GetParsedContent(ctx, art.BlobRef)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch content for %q: %w", slug, err)
		}
		if err := r.coord.FinishUnencrypted(seq, []byte(content.Content)); err != nil {
			return nil, err
		}
		return art, nil
	}

	blob, err := r.content.GetBlob(ctx, art.BlobRef)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch blob for %q: %w", slug, err)
	}
	if err := r.coord.SetCiphertext(seq, blob); err != nil {
		return nil, err
	}
	return art, nil
}

// refreshEntitlements re-queries ownership and subscription standing. The
// sources load independently; each delivery re-runs the policy evaluation.
func (r *Reader) refreshEntitlements(ctx context.Context, publicationID ids.ID) {
	r.coord.UpdateOwnership(nil, true)
	r.coord.UpdateSubscription(nil, true)

	reader := r.signer.Address()
	go func() {
		fact, err := r.chain.GetOwnership(ctx, reader)
		if err != nil {
			// The source finished without a fact. The stable cache
			// still backs a confirmed owner, and Deny is never
			// permanent: the next refresh re-queries.
			r.log.Warn("ownership query failed", log.Err(err))
		}
		r.coord.UpdateOwnership(fact, false)
	}()
	go func() {
		fact, err := r.chain.GetSubscription(ctx, reader, publicationID)
		if err != nil {
			r.log.Warn("subscription query failed", log.Err(err))
		}
		r.coord.UpdateSubscription(fact, false)
	}()
}

// WaitContent blocks until the current load publishes its content, fails, or
// ctx is done. A Deny verdict surfaces as coordinator.ErrAccessDenied once
// the entitlement sources have loaded; the caller renders a paywall from it.
// Rendering a paywall does not require wallet connectivity.
func (r *Reader) WaitContent(ctx context.Context) ([]byte, error) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		if plaintext, ok := r.coord.Plaintext(); ok {
			return plaintext, nil
		}
		if err := r.coord.LoadErr(); err != nil {
			return nil, err
		}
		decision := r.coord.Decision()
		if decision.Verdict == access.Deny &&
			r.gate.Get(gate.SourceOwnership) &&
			r.gate.Get(gate.SourceSubscription) &&
			r.gate.Get(gate.SourceSubscriptionStatus) {
			return nil, coordinator.ErrAccessDenied
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Retry forces a decryption attempt for the current load, bypassing the
// signing cool-down. It blocks until the attempt finishes.
func (r *Reader) Retry(ctx context.Context) ([]byte, error) {
	return r.coord.Retry(ctx)
}

// Stage returns the current loading stage for UI consumption.
func (r *Reader) Stage() coordinator.Stage {
	return r.coord.Stage()
}

// Decision returns the latest access decision for the current load.
func (r *Reader) Decision() access.Decision {
	return r.coord.Decision()
}

// Job returns the persisted decryption-job record for an article/seal pair.
func (r *Reader) Job(articleID, sealID ids.ID) (*coordinator.Job, error) {
	return r.coord.Job(articleID, sealID)
}
