// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package access

import (
	"testing"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"
)

func TestVerdictZeroValueIsNotAllow(t *testing.T) {
	require := require.New(t)

	var unset Verdict
	require.NotEqual(Allow, unset)
	require.NotEqual(Defer, unset)
	require.NotEqual(Deny, unset)
	require.Equal("unknown", unset.String())
}

func TestResolveFreePublication(t *testing.T) {
	require := require.New(t)

	// No price configured means Allow immediately, even while everything
	// upstream is still loading.
	d := Resolve(Inputs{
		PublicationID:       ids.GenerateTestID(),
		SubscriptionPrice:   0,
		OwnershipLoading:    true,
		SubscriptionLoading: true,
	})
	require.Equal(Allow, d.Verdict)
	require.Equal(ClassFree, d.Class)
}

func TestResolveOwner(t *testing.T) {
	require := require.New(t)

	pubID := ids.GenerateTestID()
	d := Resolve(Inputs{
		PublicationID:     pubID,
		SubscriptionPrice: 100,
		Ownership: &OwnershipFact{
			PublicationID: pubID,
			CapID:         ids.GenerateTestID(),
		},
	})
	require.Equal(Allow, d.Verdict)
	require.Equal(ClassOwner, d.Class)
}

func TestResolveOwnerTakesPriorityOverSubscription(t *testing.T) {
	require := require.New(t)

	pubID := ids.GenerateTestID()
	d := Resolve(Inputs{
		PublicationID:     pubID,
		SubscriptionPrice: 100,
		Ownership: &OwnershipFact{
			PublicationID: pubID,
			CapID:         ids.GenerateTestID(),
		},
		Subscription: &SubscriptionFact{
			PublicationID:  pubID,
			Active:         true,
			SubscriptionID: ids.GenerateTestID(),
		},
	})
	require.Equal(Allow, d.Verdict)
	require.Equal(ClassOwner, d.Class)
}

func TestResolveSubscriber(t *testing.T) {
	require := require.New(t)

	pubID := ids.GenerateTestID()
	d := Resolve(Inputs{
		PublicationID:     pubID,
		SubscriptionPrice: 100,
		Subscription: &SubscriptionFact{
			PublicationID:  pubID,
			Active:         true,
			Price:          100,
			SubscriptionID: ids.GenerateTestID(),
		},
	})
	require.Equal(Allow, d.Verdict)
	require.Equal(ClassSubscriber, d.Class)
}

func TestResolveExpiredSubscription(t *testing.T) {
	require := require.New(t)

	pubID := ids.GenerateTestID()
	d := Resolve(Inputs{
		PublicationID:     pubID,
		SubscriptionPrice: 100,
		Ownership:         &OwnershipFact{},
		Subscription: &SubscriptionFact{
			PublicationID:  pubID,
			Active:         false,
			SubscriptionID: ids.GenerateTestID(),
			Expiry:         1, // long past
		},
	})
	require.Equal(Deny, d.Verdict)
	require.Equal(ClassNone, d.Class)
	require.Equal("lacks subscription access to gated content", d.Reason)
}

func TestResolveDenyNotPermanent(t *testing.T) {
	require := require.New(t)

	pubID := ids.GenerateTestID()
	in := Inputs{
		PublicationID:     pubID,
		SubscriptionPrice: 100,
		Subscription: &SubscriptionFact{
			PublicationID: pubID,
			Active:        false,
		},
	}
	require.Equal(Deny, Resolve(in).Verdict)

	// Subscription later becomes active; the next evaluation upgrades.
	in.Subscription = &SubscriptionFact{
		PublicationID:  pubID,
		Active:         true,
		SubscriptionID: ids.GenerateTestID(),
	}
	d := Resolve(in)
	require.Equal(Allow, d.Verdict)
	require.Equal(ClassSubscriber, d.Class)
}

func TestResolveOptimisticOwnerWhileLoading(t *testing.T) {
	require := require.New(t)

	pubID := ids.GenerateTestID()
	cached := &OwnershipFact{
		PublicationID: pubID,
		CapID:         ids.GenerateTestID(),
	}

	// Ownership source is re-fetching but a prior confirmed fact says the
	// reader owns this publication: fail open.
	d := Resolve(Inputs{
		PublicationID:     pubID,
		SubscriptionPrice: 100,
		OwnershipLoading:  true,
		CachedOwnership:   cached,
	})
	require.Equal(Allow, d.Verdict)
	require.Equal(ClassOwner, d.Class)

	// Without a cached fact the same state defers instead of denying.
	d = Resolve(Inputs{
		PublicationID:     pubID,
		SubscriptionPrice: 100,
		OwnershipLoading:  true,
	})
	require.Equal(Defer, d.Verdict)
}

func TestResolveCachedOwnerOfOtherPublicationDefers(t *testing.T) {
	require := require.New(t)

	d := Resolve(Inputs{
		PublicationID:       ids.GenerateTestID(),
		SubscriptionPrice:   100,
		SubscriptionLoading: true,
		CachedOwnership: &OwnershipFact{
			PublicationID: ids.GenerateTestID(),
			CapID:         ids.GenerateTestID(),
		},
	})
	require.Equal(Defer, d.Verdict)
}

// TestResolveConfluence walks every combination of loaded/unloaded sources
// and fact values, checking the verdict is a function of the current values
// only: two identical input sets always produce identical decisions and the
// verdict matches a direct restatement of the policy.
func TestResolveConfluence(t *testing.T) {
	require := require.New(t)

	pubID := ids.GenerateTestID()
	capID := ids.GenerateTestID()
	subID := ids.GenerateTestID()

	for _, ownLoaded := range []bool{false, true} {
		for _, subLoaded := range []bool{false, true} {
			for _, isOwner := range []bool{false, true} {
				for _, hasSub := range []bool{false, true} {
					in := Inputs{
						PublicationID:       pubID,
						SubscriptionPrice:   100,
						OwnershipLoading:    !ownLoaded,
						SubscriptionLoading: !subLoaded,
					}
					if ownLoaded && isOwner {
						in.Ownership = &OwnershipFact{
							PublicationID: pubID,
							CapID:         capID,
						}
					}
					if subLoaded {
						in.Subscription = &SubscriptionFact{
							PublicationID:  pubID,
							Active:         hasSub,
							SubscriptionID: subID,
						}
					}

					got := Resolve(in)

					// Idempotence.
					require.Equal(got, Resolve(in))

					switch {
					case ownLoaded && isOwner:
						require.Equal(Allow, got.Verdict)
						require.Equal(ClassOwner, got.Class)
					case subLoaded && hasSub:
						require.Equal(Allow, got.Verdict)
						require.Equal(ClassSubscriber, got.Class)
					case !ownLoaded || !subLoaded:
						require.Equal(Defer, got.Verdict)
					default:
						require.Equal(Deny, got.Verdict)
					}
				}
			}
		}
	}
}

// Ownership arriving after subscription must not change the outcome: the
// resolver only sees current values, so we simulate both arrival orders and
// require the same final decision.
func TestResolveOrderIndependence(t *testing.T) {
	require := require.New(t)

	pubID := ids.GenerateTestID()
	ownership := &OwnershipFact{
		PublicationID: pubID,
		CapID:         ids.GenerateTestID(),
	}
	subscription := &SubscriptionFact{
		PublicationID: pubID,
		Active:        false,
	}

	subscriptionFirst := Inputs{
		PublicationID:     pubID,
		SubscriptionPrice: 100,
		Subscription:      subscription,
		OwnershipLoading:  true,
	}
	// Subscription arrived first: still loading ownership, so Defer.
	require.Equal(Defer, Resolve(subscriptionFirst).Verdict)

	// Ownership lands; both orders now hold the same values.
	subscriptionFirst.Ownership = ownership
	subscriptionFirst.OwnershipLoading = false

	ownershipFirst := Inputs{
		PublicationID:     pubID,
		SubscriptionPrice: 100,
		Ownership:         ownership,
		Subscription:      subscription,
	}

	require.Equal(Resolve(ownershipFirst), Resolve(subscriptionFirst))
	require.Equal(ClassOwner, Resolve(subscriptionFirst).Class)
}
