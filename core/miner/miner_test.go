// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package miner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aionnetwork/aion-lib/common"
	aioncrypto "github.com/aionnetwork/aion-lib/crypto"
	"github.com/aionnetwork/aion-lib/kv"
	"github.com/aionnetwork/aion-lib/kv/memdb"

	"github.com/aionnetwork/go-aion/consensus"
	"github.com/aionnetwork/go-aion/core/executor"
	"github.com/aionnetwork/go-aion/core/rawdb"
	"github.com/aionnetwork/go-aion/core/types"
)

// emptyExecFactory never needs a real Executor since the queue it backs
// stays empty for these tests; fillTransactions never dereferences it.
func emptyExecFactory(parent common.Hash, number uint64, author common.Address, gasLimit uint64) (*executor.Executor, *kv.DBTransaction, error) {
	return nil, kv.NewTransaction(), nil
}

func newTestMiner(t *testing.T) (*Miner, *rawdb.Store, *memdb.DB) {
	t.Helper()
	db := memdb.New()
	store, err := rawdb.New(db, aioncrypto.Hash256)
	require.NoError(t, err)

	genesis := &types.Block{Header: &types.Header{
		Number: 0, GasLimit: 1_000_000, Timestamp: 1000,
		Difficulty: *common.NewU256(100),
	}}
	batch := kv.NewTransaction()
	_, err = store.InsertBlock(batch, genesis, nil)
	require.NoError(t, err)
	require.NoError(t, db.Write(batch))

	q := newTestQueue(signedBySender(senderOf(9)), 1<<20)
	m := NewMiner(store, q, emptyExecFactory, aioncrypto.Hash256, common.BytesToAddress([]byte{7}), []byte("test"), 500_000, 1_500_000)
	return m, store, db
}

type recordingNotifier struct{ calls int }

func (r *recordingNotifier) NewWork(powHash common.Hash, target common.U256, number uint64) { r.calls++ }

func TestUpdateSealingPublishesNewWorkOnce(t *testing.T) {
	m, _, _ := newTestMiner(t)
	n := &recordingNotifier{}
	m.RegisterNotifier(n)

	require.NoError(t, m.UpdateSealing(true))
	require.Equal(t, 1, n.calls)
	require.NotNil(t, m.template)

	// Re-running with the same best block and no new transactions must
	// reopen the same template and not publish a duplicate mine-hash.
	require.NoError(t, m.UpdateSealing(true))
	require.Equal(t, 1, n.calls, "unchanged mine-hash must not re-publish")
}

func TestUpdateSealingSkipsOutsideTimeoutWindow(t *testing.T) {
	m, store, db := newTestMiner(t)
	require.NoError(t, m.UpdateSealing(true))
	require.Equal(t, uint64(0), m.lastRequest)

	parent := store.BestBlockHash()
	for i := uint64(1); i <= SealingTimeoutInBlocks+1; i++ {
		block := &types.Block{Header: &types.Header{ParentHash: parent, Number: i, GasLimit: 1_000_000, Difficulty: *common.NewU256(2)}}
		batch := kv.NewTransaction()
		_, err := store.InsertBlock(batch, block, nil)
		require.NoError(t, err)
		require.NoError(t, db.Write(batch))
		parent = block.Hash(aioncrypto.Hash256)
	}

	require.NoError(t, m.UpdateSealing(false))
	require.Equal(t, uint64(0), m.lastRequest, "once outside the timeout window with no local tx, no rebuild happens")
}

func TestSubmitSealRejectsUnknownPowHash(t *testing.T) {
	m, _, _ := newTestMiner(t)
	require.NoError(t, m.UpdateSealing(true))

	batch := kv.NewTransaction()
	_, err := m.SubmitSeal(batch, func(*types.Header) bool { return true }, common.BytesToHash([]byte{0xff}), nil)
	require.IsType(t, &PowHashInvalidError{}, err)
}

func TestSubmitSealRejectsFailedValidation(t *testing.T) {
	m, _, _ := newTestMiner(t)
	require.NoError(t, m.UpdateSealing(true))
	powHash := m.template.MineHash

	batch := kv.NewTransaction()
	_, err := m.SubmitSeal(batch, func(*types.Header) bool { return false }, powHash, nil)
	require.IsType(t, &PowInvalidError{}, err)
}

func TestSubmitSealInsertsBlockOnSuccess(t *testing.T) {
	m, store, db := newTestMiner(t)
	require.NoError(t, m.UpdateSealing(true))
	powHash := m.template.MineHash

	batch := kv.NewTransaction()
	block, err := m.SubmitSeal(batch, func(*types.Header) bool { return true }, powHash, [][]byte{{1, 2, 3}})
	require.NoError(t, err)
	require.NoError(t, db.Write(batch))

	require.Equal(t, uint64(1), store.BestBlockNumber())
	require.Equal(t, block.Hash(aioncrypto.Hash256), store.BestBlockHash())
	require.Nil(t, m.template, "template must be cleared after a successful submission")
}

func TestChainNewBlocksInvalidatesTemplateOnEnacted(t *testing.T) {
	m, _, _ := newTestMiner(t)
	require.NoError(t, m.UpdateSealing(true))
	require.NotNil(t, m.template)

	m.ChainNewBlocks(nil, nil, []common.Hash{common.BytesToHash([]byte{1})}, nil)
	require.Nil(t, m.template, "an enacted reorg must force the next UpdateSealing to rebuild")
}

func TestChainNewBlocksRequeuesRetractedTransactions(t *testing.T) {
	m, store, db := newTestMiner(t)

	sender := senderOf(1)
	tx := testTx(0, consensus.MainnetForkConfig.GasPriceMin)
	retracted := &types.Block{Header: &types.Header{
		ParentHash: store.BestBlockHash(), Number: 1, GasLimit: 1_000_000,
	}, Transactions: []*types.Transaction{tx}}
	batch := kv.NewTransaction()
	_, err := store.InsertBlock(batch, retracted, nil)
	require.NoError(t, err)
	require.NoError(t, db.Write(batch))

	m.queue.verify = signedBySender(sender)
	hash := retracted.Hash(aioncrypto.Hash256)
	m.ChainNewBlocks(nil, nil, nil, []common.Hash{hash})

	pending := m.queue.Pending()
	require.Len(t, pending, 1, "the retracted block's transaction must be re-queued")
}
