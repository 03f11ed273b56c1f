// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package access

import (
	"github.com/luxfi/ids"
)

// OwnershipFact records that a reader holds the owner capability for a
// publication. Sourced from a slow chain query; may be absent while loading.
type OwnershipFact struct {
	PublicationID ids.ID `json:"publicationID"`
	CapID         ids.ID `json:"capID"`
}

// Complete reports whether both the publication and the capability proving
// ownership are known. Partial facts are never trusted for decisions.
func (f OwnershipFact) Complete() bool {
	return f.PublicationID != ids.Empty && f.CapID != ids.Empty
}

// Owns reports whether this fact proves ownership of the given publication.
func (f OwnershipFact) Owns(publicationID ids.ID) bool {
	return f.Complete() && f.PublicationID == publicationID
}

// SubscriptionFact records the reader's subscription standing for one target
// publication. Loaded independently of ownership.
type SubscriptionFact struct {
	PublicationID  ids.ID `json:"publicationID"`
	Active         bool   `json:"active"`
	Price          uint64 `json:"price"`
	SubscriptionID ids.ID `json:"subscriptionID"`
	Expiry         int64  `json:"expiry"`
}
