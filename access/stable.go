// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package access

import (
	"github.com/luxfi/cache/lru"
	"github.com/luxfi/ids"
)

// StableCache holds the last confirmed complete OwnershipFact per reader
// address. Upstream sources re-fetch on their own schedule and report partial
// or empty facts while loading; the stable cache absorbs that flicker so an
// already-confirmed fact never degrades to "unknown".
type StableCache struct {
	entries *lru.Cache[ids.ShortID, OwnershipFact]
}

// NewStableCache creates a stable cache retaining up to size readers.
func NewStableCache(size int) *StableCache {
	return &StableCache{
		entries: lru.NewCache[ids.ShortID, OwnershipFact](size),
	}
}

// Update records fact for reader. Only complete facts are accepted: a
// partial fact never overwrites a confirmed one. Returns whether the cache
// was updated.
func (c *StableCache) Update(reader ids.ShortID, fact OwnershipFact) bool {
	if !fact.Complete() {
		return false
	}
	c.entries.Put(reader, fact)
	return true
}

// Get returns the last confirmed fact for reader, if one exists.
func (c *StableCache) Get(reader ids.ShortID) (OwnershipFact, bool) {
	return c.entries.Get(reader)
}
