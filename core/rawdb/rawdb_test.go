// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package rawdb

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aionnetwork/aion-lib/common"
	aioncrypto "github.com/aionnetwork/aion-lib/crypto"
	"github.com/aionnetwork/aion-lib/kv"
	"github.com/aionnetwork/aion-lib/kv/memdb"

	"github.com/aionnetwork/go-aion/core/types"
)

func newTestStore(t *testing.T) (*Store, *memdb.DB) {
	t.Helper()
	db := memdb.New()
	s, err := New(db, aioncrypto.Hash256)
	require.NoError(t, err)
	return s, db
}

func testBlock(parent common.Hash, number uint64, difficulty uint64, author byte) *types.Block {
	h := &types.Header{
		ParentHash: parent,
		Number:     number,
		Author:     common.BytesToAddress([]byte{author}),
		GasLimit:   1_000_000,
		Timestamp:  1000 + number,
		Difficulty: *common.NewU256(difficulty),
	}
	return &types.Block{Header: h}
}

func insert(t *testing.T, s *Store, db *memdb.DB, b *types.Block) (*ImportRoute, common.Hash) {
	t.Helper()
	batch := kv.NewTransaction()
	route, err := s.InsertBlock(batch, b, nil)
	require.NoError(t, err)
	require.NoError(t, db.Write(batch))
	return route, b.Hash(aioncrypto.Hash256)
}

func TestInsertBlockGenesisBecomesBest(t *testing.T) {
	s, db := newTestStore(t)
	genesis := testBlock(common.Hash{}, 0, 100, 1)
	route, hash := insert(t, s, db, genesis)
	require.Equal(t, []common.Hash{hash}, route.Enacted)
	require.Empty(t, route.Retracted)
	require.Equal(t, hash, s.BestBlockHash())
	require.Equal(t, uint64(0), s.BestBlockNumber())
}

func TestInsertBlockSimpleExtension(t *testing.T) {
	s, db := newTestStore(t)
	genesis := testBlock(common.Hash{}, 0, 100, 1)
	_, genesisHash := insert(t, s, db, genesis)

	b1 := testBlock(genesisHash, 1, 50, 2)
	route, hash1 := insert(t, s, db, b1)
	require.Equal(t, []common.Hash{hash1}, route.Enacted)
	require.Empty(t, route.Retracted)
	require.Equal(t, hash1, s.BestBlockHash())
	require.Equal(t, genesisHash, s.CanonicalHash(0))
	require.Equal(t, hash1, s.CanonicalHash(1))
}

// TestInsertBlockSmallFork mirrors spec §8 S2: from G -> B1 -> B2, insert
// B3a (parent B2, diff 10) then B3b (parent B2, diff 9): best stays B3a.
// Then insert B4b on B3b with enough difficulty to overtake: expect a
// reorg retracting B3a and enacting [B3b, B4b].
func TestInsertBlockSmallFork(t *testing.T) {
	s, db := newTestStore(t)
	_, gHash := insert(t, s, db, testBlock(common.Hash{}, 0, 100, 1))
	_, b1Hash := insert(t, s, db, testBlock(gHash, 1, 100, 1))
	_, b2Hash := insert(t, s, db, testBlock(b1Hash, 2, 100, 1))

	_, b3aHash := insert(t, s, db, testBlock(b2Hash, 3, 10, 1))
	require.Equal(t, b3aHash, s.BestBlockHash())

	routeB3b, b3bHash := insert(t, s, db, testBlock(b2Hash, 3, 9, 1))
	require.Empty(t, routeB3b.Enacted)
	require.Equal(t, []common.Hash{b3bHash}, routeB3b.Omitted)
	require.Equal(t, b3aHash, s.BestBlockHash(), "lower-difficulty sibling must not become best")

	tr, err := s.TreeRoute(b3aHash, b3bHash)
	require.NoError(t, err)
	require.Equal(t, b2Hash, tr.Ancestor)
	require.Equal(t, []common.Hash{b3aHash, b2Hash, b3bHash}, tr.Blocks)
	require.Equal(t, 1, tr.Index)

	routeB4b, b4bHash := insert(t, s, db, testBlock(b3bHash, 4, 1000, 1))
	require.Equal(t, []common.Hash{b3bHash, b4bHash}, routeB4b.Enacted)
	require.Equal(t, []common.Hash{b3aHash}, routeB4b.Retracted)
	require.Equal(t, b4bHash, s.BestBlockHash())

	addr, err := s.TransactionAddress(common.Hash{})
	require.NoError(t, err)
	require.Nil(t, addr)
}

func TestBlocksWithBloomFindsLoggedAddress(t *testing.T) {
	s, db := newTestStore(t)
	_, gHash := insert(t, s, db, testBlock(common.Hash{}, 0, 100, 1))

	target := common.BytesToAddress([]byte("contract"))
	b1 := testBlock(gHash, 1, 100, 1)
	receipts := types.BlockReceipts{{Logs: []types.Log{{Address: target}}}}
	batch := kv.NewTransaction()
	_, err := s.InsertBlock(batch, b1, receipts)
	require.NoError(t, err)
	require.NoError(t, db.Write(batch))

	hits, err := s.BlocksWithBloom(target.Bytes(), 0, 1)
	require.NoError(t, err)
	require.Equal(t, []uint64{1}, hits)
}
