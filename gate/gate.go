// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/log"

	"github.com/luxfi/press/access"
)

// ErrDataNotReady reports a non-blocking readiness check against sources that
// have not finished loading. Transient: it resolves itself as upstream
// queries complete.
var ErrDataNotReady = errors.New("upstream data sources are still loading")

// Source identifies one of the asynchronously-loading inputs the gate tracks.
type Source uint8

const (
	// SourceWallet is wallet connectivity.
	SourceWallet Source = iota
	// SourceOwnership is the reader's publication-ownership query.
	SourceOwnership
	// SourceSubscription is the target publication's subscription
	// requirement and price.
	SourceSubscription
	// SourceSubscriptionStatus is the reader's standing for the target
	// publication.
	SourceSubscriptionStatus

	numSources
)

func (s Source) String() string {
	switch s {
	case SourceWallet:
		return "wallet"
	case SourceOwnership:
		return "ownership"
	case SourceSubscription:
		return "subscription"
	case SourceSubscriptionStatus:
		return "subscriptionStatus"
	default:
		return "unknown"
	}
}

// Gate tracks which upstream sources have completed loading and converts
// "still loading" into either a wait or a typed ErrDataNotReady. It is
// level-triggered: every input change re-notifies subscribers, who re-read
// current state, so arrival order never matters.
type Gate struct {
	log log.Logger

	mu        sync.Mutex
	ready     [numSources]bool
	observers []func()
	waiters   []chan struct{}
}

// New creates a gate with every source marked not ready.
func New(logger log.Logger) *Gate {
	return &Gate{log: logger}
}

// Subscribe registers fn to run after any input change. Callbacks run outside
// the gate's lock and may themselves read the gate.
func (g *Gate) Subscribe(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.observers = append(g.observers, fn)
}

// Set records the readiness of source and notifies subscribers and waiters.
func (g *Gate) Set(source Source, ready bool) {
	g.mu.Lock()
	if g.ready[source] == ready {
		g.mu.Unlock()
		return
	}
	g.ready[source] = ready

	observers := make([]func(), len(g.observers))
	copy(observers, g.observers)

	for _, ch := range g.waiters {
		close(ch)
	}
	g.waiters = nil
	g.mu.Unlock()

	g.log.Debug("readiness changed",
		log.String("source", source.String()),
		log.Bool("ready", ready),
	)

	for _, fn := range observers {
		fn()
	}
}

// Get returns the recorded readiness of source.
func (g *Gate) Get(source Source) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ready[source]
}

// Ready reports whether every source relevant to the resolved policy class
// has loaded. The owner path does not need subscription data and the
// subscriber path does not need ownership data; an unresolved class needs
// everything.
func (g *Gate) Ready(class access.Class) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.readyLocked(class)
}

func (g *Gate) readyLocked(class access.Class) bool {
	switch class {
	case access.ClassOwner:
		return g.ready[SourceWallet] && g.ready[SourceOwnership]
	case access.ClassSubscriber:
		return g.ready[SourceWallet] &&
			g.ready[SourceSubscription] &&
			g.ready[SourceSubscriptionStatus]
	case access.ClassFree:
		return g.ready[SourceWallet]
	default:
		return g.ready[SourceWallet] &&
			g.ready[SourceOwnership] &&
			g.ready[SourceSubscription] &&
			g.ready[SourceSubscriptionStatus]
	}
}

// Check is the non-blocking readiness query: ErrDataNotReady if any relevant
// source is still loading.
func (g *Gate) Check(class access.Class) error {
	if !g.Ready(class) {
		return fmt.Errorf("%w: policy class %s", ErrDataNotReady, class)
	}
	return nil
}

// Wait blocks until every source relevant to class is ready or ctx is done.
func (g *Gate) Wait(ctx context.Context, class access.Class) error {
	for {
		g.mu.Lock()
		if g.readyLocked(class) {
			g.mu.Unlock()
			return nil
		}
		ch := make(chan struct{})
		g.waiters = append(g.waiters, ch)
		g.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}
