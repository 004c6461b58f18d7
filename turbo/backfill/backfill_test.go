// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package backfill

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aionnetwork/aion-lib/common"
	aioncrypto "github.com/aionnetwork/aion-lib/crypto"
	"github.com/aionnetwork/aion-lib/kv"
	"github.com/aionnetwork/aion-lib/kv/memdb"

	"github.com/aionnetwork/go-aion/core/headerchain"
	"github.com/aionnetwork/go-aion/core/rawdb"
	"github.com/aionnetwork/go-aion/core/types"
)

func chainHeader(parent common.Hash, number uint64, difficulty uint64) *types.Header {
	return &types.Header{ParentHash: parent, Number: number, Difficulty: *common.NewU256(difficulty), Timestamp: 1000 + number}
}

// buildHeaderOnlyChain seeds a HeaderChain with `count` headers beyond
// genesis (so headers exist for numbers [0, count]) but leaves
// rawdb.Store with only genesis's body, the state a node is in right
// after it has raced ahead on headers but not yet pulled block bodies.
func buildHeaderOnlyChain(t *testing.T, count uint64) (*headerchain.HeaderChain, *rawdb.Store, []*types.Header) {
	t.Helper()
	hcDB := memdb.New()
	genesis := chainHeader(common.Hash{}, 0, 100)
	hc, err := headerchain.New(hcDB, aioncrypto.Hash256, genesis)
	require.NoError(t, err)

	storeDB := memdb.New()
	store, err := rawdb.New(storeDB, aioncrypto.Hash256)
	require.NoError(t, err)
	genesisBlock := &types.Block{Header: genesis}
	batch := kv.NewTransaction()
	_, err = store.InsertBlock(batch, genesisBlock, nil)
	require.NoError(t, err)
	require.NoError(t, storeDB.Write(batch))

	headers := []*types.Header{genesis}
	parent := genesis.Hash(aioncrypto.Hash256)
	for n := uint64(1); n <= count; n++ {
		h := chainHeader(parent, n, 100)
		b := kv.NewTransaction()
		pending, err := hc.Insert(b, h)
		require.NoError(t, err)
		require.NoError(t, hcDB.Write(b))
		hc.ApplyPending(pending)
		headers = append(headers, h)
		parent = h.Hash(aioncrypto.Hash256)
	}
	return hc, store, headers
}

// fakeSource answers BlockRange from a fixed header set, marking which
// ranges it was asked to serve.
type fakeSource struct {
	headers []*types.Header
	asked   []Range
}

func (f *fakeSource) BlockRange(_ context.Context, from, to uint64) ([]FetchedBlock, error) {
	f.asked = append(f.asked, Range{From: from, To: to})
	var out []FetchedBlock
	for n := from; n < to; n++ {
		out = append(out, FetchedBlock{
			Block:           &types.Block{Header: f.headers[n]},
			TotalDifficulty: *common.NewU256(100 * (n + 1)),
		})
	}
	return out, nil
}

func TestHeaderChainGapFindsMissingBodies(t *testing.T) {
	hc, store, _ := buildHeaderOnlyChain(t, 10)
	gap := NewHeaderChainGap(hc, store)

	r, ok, err := gap.NextGap()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1), r.From)
	require.Equal(t, uint64(11), r.To)
}

func TestHeaderChainGapReportsNoneOnceImported(t *testing.T) {
	hc, store, headers := buildHeaderOnlyChain(t, 3)
	for _, h := range headers[1:] {
		batch := kv.NewTransaction()
		require.NoError(t, store.InsertUnordered(batch, &types.Block{Header: h}, nil, *common.NewU256(100)))
		require.NoError(t, store.DB().Write(batch))
	}
	gap := NewHeaderChainGap(hc, store)
	_, ok, err := gap.NextGap()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCoordinatorRunImportsFullRange(t *testing.T) {
	hc, store, headers := buildHeaderOnlyChain(t, 5)
	source := &fakeSource{headers: headers}
	gap := NewHeaderChainGap(hc, store)
	c := NewCoordinator(store.DB(), store, gap, source)

	require.NoError(t, c.Run(context.Background()))

	_, ok, err := gap.NextGap()
	require.NoError(t, err)
	require.False(t, ok)
	require.NotEmpty(t, source.asked)
}
