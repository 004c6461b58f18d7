// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package headerchain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aionnetwork/aion-lib/common"
	aioncrypto "github.com/aionnetwork/aion-lib/crypto"
	"github.com/aionnetwork/aion-lib/kv"
	"github.com/aionnetwork/aion-lib/kv/memdb"

	"github.com/aionnetwork/go-aion/core/types"
)

func newTestChain(t *testing.T) (*HeaderChain, *memdb.DB, common.Hash) {
	t.Helper()
	db := memdb.New()
	genesis := &types.Header{Difficulty: *common.NewU256(100)}
	hc, err := New(db, aioncrypto.Hash256, genesis)
	require.NoError(t, err)
	return hc, db, genesis.Hash(aioncrypto.Hash256)
}

func insertHeader(t *testing.T, hc *HeaderChain, db *memdb.DB, parent common.Hash, number uint64, difficulty uint64) common.Hash {
	t.Helper()
	h := &types.Header{ParentHash: parent, Number: number, Difficulty: *common.NewU256(difficulty), Timestamp: 1000 + number}
	batch := kv.NewTransaction()
	pending, err := hc.Insert(batch, h)
	require.NoError(t, err)
	require.NoError(t, db.Write(batch))
	hc.ApplyPending(pending)
	return h.Hash(aioncrypto.Hash256)
}

func TestInsertExtendsBest(t *testing.T) {
	hc, db, gHash := newTestChain(t)
	h1 := insertHeader(t, hc, db, gHash, 1, 50)
	best := hc.BestHeader()
	require.Equal(t, h1, best.Hash)
	require.Equal(t, uint64(1), best.Number)

	hash, ok := hc.BlockHash(1)
	require.True(t, ok)
	require.Equal(t, h1, hash)
}

// TestForkPromotesHeavierCandidate mirrors spec §8's reorg shape at the
// header-only layer: a late-arriving heavier sibling becomes canonical
// and ancestor rows are re-pointed.
func TestForkPromotesHeavierCandidate(t *testing.T) {
	hc, db, gHash := newTestChain(t)
	b1a := insertHeader(t, hc, db, gHash, 1, 10)
	require.Equal(t, b1a, hc.BestHeader().Hash)

	b1b := insertHeader(t, hc, db, gHash, 1, 1000)
	require.Equal(t, b1b, hc.BestHeader().Hash)

	hash, ok := hc.BlockHash(1)
	require.True(t, ok)
	require.Equal(t, b1b, hash, "canonical candidate at height 1 must be the heavier sibling")
}

// TestCHTRootFoldsOnceHistoryPasses mirrors spec §8's S8 worked example:
// after HISTORY+SIZE+1 headers, cht_root(0) is populated and the
// candidate rows for era 0 are dropped from the live window.
func TestCHTRootFoldsOnceHistoryPasses(t *testing.T) {
	hc, db, gHash := newTestChain(t)
	parent := gHash
	for n := uint64(1); n <= HistoryBlocks+CHTSize+1; n++ {
		parent = insertHeader(t, hc, db, parent, n, 10)
	}

	root, ok, err := hc.CHTRoot(0)
	require.NoError(t, err)
	require.True(t, ok, "era 0 must be folded once HISTORY+SIZE headers have passed")
	require.NotEqual(t, common.Hash{}, root)

	_, ok, err = hc.CHTRoot(1)
	require.NoError(t, err)
	require.False(t, ok, "era 1 has not accumulated enough headers yet")

	for n := uint64(0); n < CHTSize; n++ {
		_, stillLive := hc.candidates[n]
		require.False(t, stillLive, "era-0 candidate rows must be dropped once folded")
	}
}

func TestAncestryIterWalksToGenesis(t *testing.T) {
	hc, db, gHash := newTestChain(t)
	h1 := insertHeader(t, hc, db, gHash, 1, 10)
	h2 := insertHeader(t, hc, db, h1, 2, 10)

	chain, err := hc.AncestryIter(h2, 2)
	require.NoError(t, err)
	require.Equal(t, []common.Hash{h2, h1, gHash}, chain)
}
