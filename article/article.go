// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package article

import (
	"github.com/luxfi/ids"
)

// Article is the metadata record for one published piece. Immutable once
// fetched; a slug change means a fresh fetch, never a mutation.
type Article struct {
	ID            ids.ID `json:"id"`
	Slug          string `json:"slug"`
	PublicationID ids.ID `json:"publicationID"`

	// BlobRef locates the article body in decentralized storage.
	BlobRef ids.ID `json:"blobRef"`

	// SealID names the encryption policy at the decryption service.
	// ids.Empty means the body is stored unencrypted.
	SealID ids.ID `json:"sealID"`

	// Gated marks content that requires authorization to read.
	Gated bool `json:"gated"`

	// SubscriptionPrice is the publication's configured price. Zero means
	// no subscription is required.
	SubscriptionPrice uint64 `json:"subscriptionPrice"`
}

// Encrypted reports whether the article body is a sealed envelope.
func (a *Article) Encrypted() bool {
	return a.SealID != ids.Empty
}

// ParsedContent is the fallback representation for unencrypted bodies.
type ParsedContent struct {
	Content   string   `json:"content"`
	MediaRefs []ids.ID `json:"mediaRefs"`
}
