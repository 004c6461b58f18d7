// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package backfill

import (
	"github.com/aionnetwork/go-aion/core/headerchain"
	"github.com/aionnetwork/go-aion/core/rawdb"
)

// scanBatch bounds how many ancestor heights HeaderChainGap walks per
// NextGap call. Every call starts again from the best header, so heights
// more than scanBatch below best are never examined.
const scanBatch = 4096

// HeaderChainGap finds runs of block numbers that HeaderChain (C6)
// already has a canonical header for but rawdb.Store (C5) has no body
// for yet — exactly the set a node must backfill after fast-forwarding
// its header window ahead of its block data, spec §3's "Insert-unordered"
// seam. Grounded on the teacher's blockReader.IterateFrozenBodies
// (turbo/snapshotsync.getMinimumBlocksToDownload), generalised from
// frozen-segment bookkeeping to a direct HeaderChain/Store comparison
// since this node has no segment files to consult.
type HeaderChainGap struct {
	hc    *headerchain.HeaderChain
	store *rawdb.Store
}

// NewHeaderChainGap builds a GapFinder comparing hc's canonical window
// against store's persisted bodies.
func NewHeaderChainGap(hc *headerchain.HeaderChain, store *rawdb.Store) *HeaderChainGap {
	return &HeaderChainGap{hc: hc, store: store}
}

// NextGap implements GapFinder. It walks ancestry from HeaderChain's
// current best down towards genesis, examining at most scanBatch heights,
// and reports the first contiguous run missing a body that the walk
// reaches (the highest-numbered one) as an ascending Range. Returns
// ok=false when no examined height is missing a body.
func (g *HeaderChainGap) NextGap() (Range, bool, error) {
	best := g.hc.BestHeader()
	if best.Number == 0 {
		return Range{}, false, nil
	}

	hash, number := best.Hash, best.Number
	var runFrom, runTo uint64
	inRun := false
	scanned := 0

	for scanned < scanBatch {
		header, err := g.hc.BlockHeader(number, hash)
		if err != nil {
			return Range{}, false, err
		}
		block, err := g.store.Block(hash)
		if err != nil {
			return Range{}, false, err
		}
		missing := block == nil

		if missing {
			if !inRun {
				runTo, inRun = number+1, true
			}
			runFrom = number
		} else if inRun {
			return Range{From: runFrom, To: runTo}, true, nil
		}

		if number == 0 {
			break
		}
		if header != nil {
			hash, number = header.ParentHash, number-1
		} else if number > 0 {
			number--
			hash, _ = g.hc.BlockHash(number)
		}
		scanned++
	}

	if inRun {
		return Range{From: runFrom, To: runTo}, true, nil
	}
	return Range{}, false, nil
}
