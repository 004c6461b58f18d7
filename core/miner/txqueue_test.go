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

	"github.com/aionnetwork/go-aion/consensus"
	"github.com/aionnetwork/go-aion/core/executor"
	"github.com/aionnetwork/go-aion/core/types"
)

func senderOf(b byte) common.Address { return common.BytesToAddress([]byte{b}) }

func signedBySender(sender common.Address) SignatureVerifier {
	return func(tx *types.Transaction) (common.Address, error) { return sender, nil }
}

func zeroOnChainNonce(common.Address) (common.U256, error) { return *common.NewU256(0), nil }

func newTestQueue(verify SignatureVerifier, memLimit uint64) *TxQueue {
	rich := func(common.Address) (common.U256, error) { return *common.NewU256(1 << 62), nil }
	return New(&consensus.MainnetForkConfig, verify, zeroOnChainNonce, rich, memLimit, 0)
}

func testTx(nonce, gasPrice uint64) *types.Transaction {
	return &types.Transaction{
		Nonce:    *common.NewU256(nonce),
		GasPrice: gasPrice,
		Gas:      100_000,
		Action:   types.CallTo(common.Address{}),
	}
}

func TestAddRejectsDuplicateNonce(t *testing.T) {
	sender := senderOf(1)
	q := newTestQueue(signedBySender(sender), 1<<20)
	tx := testTx(0, consensus.MainnetForkConfig.GasPriceMin)
	require.NoError(t, q.Add(tx, common.BytesToHash([]byte{1}), OriginExternal))
	err := q.Add(tx, common.BytesToHash([]byte{2}), OriginExternal)
	require.IsType(t, &DuplicateTransactionError{}, err)
}

func TestAddClassifiesPendingVsFuture(t *testing.T) {
	sender := senderOf(1)
	q := newTestQueue(signedBySender(sender), 1<<20)
	price := consensus.MainnetForkConfig.GasPriceMin

	require.NoError(t, q.Add(testTx(0, price), common.BytesToHash([]byte{1}), OriginExternal))
	require.NoError(t, q.Add(testTx(2, price), common.BytesToHash([]byte{2}), OriginExternal))

	pending := q.Pending()
	require.Len(t, pending, 1, "nonce 2 has a gap at nonce 1 and must stay future")
	require.Equal(t, uint64(0), pending[0].Nonce.Uint64())

	require.NoError(t, q.Add(testTx(1, price), common.BytesToHash([]byte{3}), OriginExternal))
	pending = q.Pending()
	require.Len(t, pending, 3, "filling the gap must promote nonce 1 and 2 into pending")
}

func TestPendingOrdersByDescendingGasPrice(t *testing.T) {
	sender1 := senderOf(1)
	sender2 := senderOf(2)
	current := sender1
	q := newTestQueue(func(tx *types.Transaction) (common.Address, error) { return current, nil }, 1<<20)
	low := consensus.MainnetForkConfig.GasPriceMin
	high := 5 * low

	require.NoError(t, q.Add(testTx(0, low), common.BytesToHash([]byte{1}), OriginExternal))
	current = sender2
	require.NoError(t, q.Add(testTx(0, high), common.BytesToHash([]byte{2}), OriginExternal))

	pending := q.Pending()
	require.Len(t, pending, 2)
	require.Equal(t, high, pending[0].GasPrice, "higher gas price must sort first across senders")
	require.Equal(t, low, pending[1].GasPrice)
}

func TestRejectsBannedSender(t *testing.T) {
	sender := senderOf(1)
	q := newTestQueue(signedBySender(sender), 1<<20)
	q.Ban(sender)
	err := q.Add(testTx(0, consensus.MainnetForkConfig.GasPriceMin), common.BytesToHash([]byte{1}), OriginExternal)
	require.IsType(t, &BannedSenderError{}, err)
}

func TestRejectsGasPriceBelowMinimumForNonLocal(t *testing.T) {
	sender := senderOf(1)
	q := newTestQueue(signedBySender(sender), 1<<20)
	err := q.Add(testTx(0, 1), common.BytesToHash([]byte{1}), OriginExternal)
	require.IsType(t, &executor.InvalidGasPriceRangeError{}, err)
}

func TestLocalTransactionExemptFromGasPriceRange(t *testing.T) {
	sender := senderOf(1)
	q := newTestQueue(signedBySender(sender), 1<<20)
	q.MarkLocal(sender)
	err := q.Add(testTx(0, 1), common.BytesToHash([]byte{1}), OriginLocal)
	require.NoError(t, err)
}

func TestRejectsInsufficientBalance(t *testing.T) {
	sender := senderOf(1)
	poor := func(common.Address) (common.U256, error) { return *common.NewU256(0), nil }
	q := New(&consensus.MainnetForkConfig, signedBySender(sender), zeroOnChainNonce, poor, 1<<20, 0)
	err := q.Add(testTx(0, consensus.MainnetForkConfig.GasPriceMin), common.BytesToHash([]byte{1}), OriginExternal)
	require.IsType(t, &executor.NotEnoughCashError{}, err)
}

func TestRejectsNonceBelowOnChain(t *testing.T) {
	sender := senderOf(1)
	advanced := func(common.Address) (common.U256, error) { return *common.NewU256(5), nil }
	rich := func(common.Address) (common.U256, error) { return *common.NewU256(1 << 62), nil }
	q := New(&consensus.MainnetForkConfig, signedBySender(sender), advanced, rich, 1<<20, 0)
	err := q.Add(testTx(0, consensus.MainnetForkConfig.GasPriceMin), common.BytesToHash([]byte{1}), OriginExternal)
	require.IsType(t, &TemporarilyInvalidError{}, err)
}

func TestEvictsLowestPriorityWhenOverMemLimit(t *testing.T) {
	sender1 := senderOf(1)
	sender2 := senderOf(2)
	current := sender1
	q := newTestQueue(func(tx *types.Transaction) (common.Address, error) { return current, nil }, estimateSize(testTx(0, 0)))
	low := consensus.MainnetForkConfig.GasPriceMin
	high := 5 * low

	require.NoError(t, q.Add(testTx(0, high), common.BytesToHash([]byte{1}), OriginExternal))
	current = sender2
	require.NoError(t, q.Add(testTx(0, low), common.BytesToHash([]byte{2}), OriginExternal))

	pending := q.Pending()
	require.Len(t, pending, 1, "over the mem limit, the lower-priced entry must be evicted")
	require.Equal(t, high, pending[0].GasPrice)
}

func TestRemoveOldDropsMinedNonces(t *testing.T) {
	sender := senderOf(1)
	onChain := common.NewU256(0)
	q := New(&consensus.MainnetForkConfig, signedBySender(sender), func(common.Address) (common.U256, error) {
		return *onChain, nil
	}, func(common.Address) (common.U256, error) { return *common.NewU256(1 << 62), nil }, 1<<20, 0)

	price := consensus.MainnetForkConfig.GasPriceMin
	require.NoError(t, q.Add(testTx(0, price), common.BytesToHash([]byte{1}), OriginExternal))
	require.NoError(t, q.Add(testTx(1, price), common.BytesToHash([]byte{2}), OriginExternal))
	require.Len(t, q.Pending(), 2)

	onChain = common.NewU256(1)
	q.RemoveOld()
	pending := q.Pending()
	require.Len(t, pending, 1, "nonce 0 is now mined and must be dropped")
	require.Equal(t, uint64(1), pending[0].Nonce.Uint64())
}
