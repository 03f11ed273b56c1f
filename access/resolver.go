// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package access

import (
	"github.com/luxfi/ids"
)

// Verdict is the outcome of a policy evaluation. The zero value is not a
// valid verdict; it marks a decision whose first evaluation has not run yet.
type Verdict uint8

const (
	// Allow permits a decryption attempt for the resolved policy class.
	Allow Verdict = iota + 1
	// Defer means the inputs are too incomplete to decide; do not attempt
	// yet and do not show a paywall.
	Defer
	// Deny means the reader is not entitled under the current facts. Never
	// permanent: a later fact update can upgrade it.
	Deny
)

func (v Verdict) String() string {
	switch v {
	case Allow:
		return "allow"
	case Defer:
		return "defer"
	case Deny:
		return "deny"
	default:
		return "unknown"
	}
}

// Class identifies which entitlement an Allow verdict rests on. The
// coordinator uses it to select which decrypt parameters to populate.
type Class uint8

const (
	ClassNone Class = iota
	ClassOwner
	ClassSubscriber
	ClassFree
)

func (c Class) String() string {
	switch c {
	case ClassOwner:
		return "owner"
	case ClassSubscriber:
		return "subscriber"
	case ClassFree:
		return "free"
	default:
		return "none"
	}
}

// Decision is derived state: recomputed from current inputs on every call and
// never persisted.
type Decision struct {
	Verdict Verdict
	Class   Class
	Reason  string
}

// Inputs collects the best-known facts feeding one policy evaluation. Nil
// fact pointers mean the corresponding source has not reported yet.
type Inputs struct {
	// PublicationID is the publication the article belongs to.
	PublicationID ids.ID

	// SubscriptionPrice is the publication's configured price. Zero means
	// the publication requires no subscription.
	SubscriptionPrice uint64

	// Ownership is the reader's confirmed ownership fact, if any.
	Ownership *OwnershipFact

	// Subscription is the reader's standing for the target publication.
	Subscription *SubscriptionFact

	// OwnershipLoading and SubscriptionLoading flag upstream sources that
	// have not completed their current fetch.
	OwnershipLoading    bool
	SubscriptionLoading bool

	// CachedOwnership is the last confirmed complete fact from the stable
	// cache; it backs the optimistic branch while upstream reloads.
	CachedOwnership *OwnershipFact
}

// Resolve is a pure decision function. It has no side effects, is safe to
// call repeatedly, and is order-independent: the verdict depends only on the
// current values of the inputs, not on when they arrived.
func Resolve(in Inputs) Decision {
	if in.SubscriptionPrice == 0 {
		return Decision{
			Verdict: Allow,
			Class:   ClassFree,
			Reason:  "publication requires no subscription",
		}
	}

	if in.Ownership != nil && in.Ownership.Owns(in.PublicationID) {
		return Decision{
			Verdict: Allow,
			Class:   ClassOwner,
			Reason:  "reader owns the publication",
		}
	}

	if in.Subscription != nil && in.Subscription.Active {
		return Decision{
			Verdict: Allow,
			Class:   ClassSubscriber,
			Reason:  "reader holds an active subscription",
		}
	}

	if in.OwnershipLoading || in.SubscriptionLoading {
		// Fail open for probable owners so a legitimate owner never sees
		// a paywall flash while the chain query is in flight. This is a
		// latency optimization, not a security boundary: the decryption
		// service is the actual authority.
		if in.CachedOwnership != nil && in.CachedOwnership.Owns(in.PublicationID) {
			return Decision{
				Verdict: Allow,
				Class:   ClassOwner,
				Reason:  "cached ownership while upstream loads",
			}
		}
		return Decision{
			Verdict: Defer,
			Class:   ClassNone,
			Reason:  "upstream sources still loading",
		}
	}

	return Decision{
		Verdict: Deny,
		Class:   ClassNone,
		Reason:  "lacks subscription access to gated content",
	}
}
