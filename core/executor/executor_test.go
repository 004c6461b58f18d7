// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package executor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aionnetwork/aion-lib/common"
	aioncrypto "github.com/aionnetwork/aion-lib/crypto"
	"github.com/aionnetwork/aion-lib/kv"
	"github.com/aionnetwork/aion-lib/kv/memdb"

	"github.com/aionnetwork/go-aion/consensus"
	"github.com/aionnetwork/go-aion/core/state"
	"github.com/aionnetwork/go-aion/core/types"
	"github.com/aionnetwork/go-aion/core/vm"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	db := memdb.New()
	s := state.New(db, kv.State, kv.Code, kv.AVMGraph, aioncrypto.Hash256, common.Hash{})
	return New(s, aioncrypto.Hash256, &consensus.MainnetForkConfig, consensus.NewBuiltinTable(aioncrypto.Hash256),
		vm.NewNativeVM(nil), nil, 1, common.BytesToAddress([]byte{0xaa}), 10_000_000)
}

func fund(t *testing.T, e *Executor, addr common.Address, balance uint64) {
	t.Helper()
	require.NoError(t, e.State.AddBalance(addr, *common.NewU256(balance), state.ForceCreate, nil))
}

func transferTx(nonce uint64, to common.Address, value, gas, gasPrice uint64) *types.Transaction {
	return &types.Transaction{
		Nonce: *common.NewU256(nonce), Action: types.CallTo(to), Value: *common.NewU256(value),
		Gas: gas, GasPrice: gasPrice,
	}
}

func TestApplyPlainTransferMovesBalance(t *testing.T) {
	e := newTestExecutor(t)
	sender := common.BytesToAddress([]byte{1})
	to := common.BytesToAddress([]byte{2})
	fund(t, e, sender, 1_000_000_000_000_000)

	tx := transferTx(0, to, 1000, consensus.MainnetForkConfig.CallMinGas, consensus.MainnetForkConfig.GasPriceMin)
	receipt, err := e.Apply(tx, sender, true, false, true)
	require.NoError(t, err)
	require.Empty(t, receipt.Error)

	toBalance, err := e.State.Balance(to)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), toBalance.Uint64())

	nonce, err := e.State.Nonce(sender)
	require.NoError(t, err)
	require.Equal(t, uint64(1), nonce.Uint64())
}

func TestApplyRejectsWrongNonce(t *testing.T) {
	e := newTestExecutor(t)
	sender := common.BytesToAddress([]byte{1})
	to := common.BytesToAddress([]byte{2})
	fund(t, e, sender, 1_000_000_000_000_000)

	tx := transferTx(5, to, 0, consensus.MainnetForkConfig.CallMinGas, consensus.MainnetForkConfig.GasPriceMin)
	_, err := e.Apply(tx, sender, true, false, true)
	require.Error(t, err)
	require.IsType(t, &InvalidNonceError{}, err)
}

func TestApplyCreateDerivesFreshContractAddress(t *testing.T) {
	e := newTestExecutor(t)
	sender := common.BytesToAddress([]byte{1})
	fund(t, e, sender, 1_000_000_000_000_000)

	tx := &types.Transaction{
		Nonce: *common.NewU256(0), Action: types.CreateAction(), Value: *common.NewU256(0),
		Gas: consensus.MainnetForkConfig.CallMinGas + consensus.MainnetForkConfig.CreateMinGas, GasPrice: consensus.MainnetForkConfig.GasPriceMin,
	}
	receipt, err := e.Apply(tx, sender, true, false, true)
	require.NoError(t, err)
	require.NotEqual(t, common.Hash{}, receipt.PostStateRoot)

	exists, err := e.State.Exists(e.deriveCreateAddress(sender, *common.NewU256(0)))
	require.NoError(t, err)
	require.True(t, exists, "the create must leave an account at the derived address")
}

func TestApplyCreditsAuthorWithFee(t *testing.T) {
	e := newTestExecutor(t)
	sender := common.BytesToAddress([]byte{1})
	to := common.BytesToAddress([]byte{2})
	fund(t, e, sender, 1_000_000_000_000_000)

	gas := consensus.MainnetForkConfig.CallMinGas
	tx := transferTx(0, to, 0, gas, consensus.MainnetForkConfig.GasPriceMin)
	receipt, err := e.Apply(tx, sender, true, false, true)
	require.NoError(t, err)

	authorBalance, err := e.State.Balance(e.Author)
	require.NoError(t, err)
	require.Equal(t, receipt.Fee.Uint64(), authorBalance.Uint64())
	require.Equal(t, gas, receipt.GasUsed)
}
