// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package state

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aionnetwork/aion-lib/common"

	"github.com/aionnetwork/go-aion/core/types"
)

// cleanEntry is the read-mostly snapshot promoted into CleanCache on
// Commit: the decoded account plus its resolved real storage root, so a
// cache hit in get() can skip both the trie lookup and, for a managed
// account, the AVMGraph indirection in resolveStorageRoot.
type cleanEntry struct {
	account         types.Account
	realStorageRoot common.Hash
}

// CleanCache is the process-global, read-mostly account cache spec §9
// describes: "Shared caches ... a two-level scheme: per-State local cache
// (dirty, checkpointed) and a process-global clean cache." It is safe for
// concurrent use by many State instances (e.g. one building a pending
// block in miner while another serves an RPC-style read), since
// golang-lru's Cache is internally synchronised and entries are only ever
// replaced wholesale, never mutated in place.
type CleanCache struct {
	accounts *lru.Cache[common.Address, cleanEntry]
}

// NewCleanCache builds a clean cache holding up to size accounts. A
// size of 0 disables caching (every State.get falls through to the trie).
func NewCleanCache(size int) *CleanCache {
	if size <= 0 {
		return &CleanCache{}
	}
	c, _ := lru.New[common.Address, cleanEntry](size)
	return &CleanCache{accounts: c}
}

func (c *CleanCache) get(addr common.Address) (cleanEntry, bool) {
	if c == nil || c.accounts == nil {
		return cleanEntry{}, false
	}
	return c.accounts.Get(addr)
}

func (c *CleanCache) promote(addr common.Address, account types.Account, realStorageRoot common.Hash) {
	if c == nil || c.accounts == nil {
		return
	}
	c.accounts.Add(addr, cleanEntry{account: account, realStorageRoot: realStorageRoot})
}

// evict drops addr from the clean cache; Commit calls this for accounts
// it deletes so a later get() never resurrects a killed account from a
// stale snapshot.
func (c *CleanCache) evict(addr common.Address) {
	if c == nil || c.accounts == nil {
		return
	}
	c.accounts.Remove(addr)
}
