// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package coordinator

import (
	"github.com/luxfi/metric"
)

type metrics struct {
	numAttempts, numSuccesses, numFailures metric.Counter
	numDenials, numDeferrals               metric.Counter
	numCorrupted, numStaleResults          metric.Counter
}

func newMetrics() *metrics {
	m := &metrics{}

	m.numAttempts = metric.NewCounter(metric.CounterOpts{
		Name: "decrypt_attempts",
		Help: "Number of decryption attempts started",
	})
	m.numSuccesses = metric.NewCounter(metric.CounterOpts{
		Name: "decrypt_successes",
		Help: "Number of decryption attempts that produced plaintext",
	})
	m.numFailures = metric.NewCounter(metric.CounterOpts{
		Name: "decrypt_failures",
		Help: "Number of decryption attempts that failed",
	})
	m.numDenials = metric.NewCounter(metric.CounterOpts{
		Name: "access_denials",
		Help: "Number of evaluations that denied access under current facts",
	})
	m.numDeferrals = metric.NewCounter(metric.CounterOpts{
		Name: "access_deferrals",
		Help: "Number of evaluations deferred on incomplete upstream data",
	})
	m.numCorrupted = metric.NewCounter(metric.CounterOpts{
		Name: "corrupted_blobs",
		Help: "Number of downloaded blobs that failed envelope validation",
	})
	m.numStaleResults = metric.NewCounter(metric.CounterOpts{
		Name: "stale_results",
		Help: "Number of decryption results discarded after a slug switch",
	})
	// Counters are self-registering when created with NewCounter.
	return m
}
