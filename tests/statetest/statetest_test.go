// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package statetest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aionnetwork/aion-lib/common"
	aioncrypto "github.com/aionnetwork/aion-lib/crypto"

	"github.com/aionnetwork/go-aion/consensus"
	"github.com/aionnetwork/go-aion/core/vm"
)

func TestParseVectorRoundTrip(t *testing.T) {
	raw := []byte(`{
		"pre": {
			"0x0000000000000000000000000000000000000000000000000000000000000001": {"balance": 1000000000000}
		},
		"transaction": {
			"sender": "0x0000000000000000000000000000000000000000000000000000000000000001",
			"to": "0x0000000000000000000000000000000000000000000000000000000000000002",
			"value": 1000,
			"gasLimit": 21000,
			"gasPrice": 10000000000,
			"nonce": 0
		},
		"postRoot": "0x0000000000000000000000000000000000000000000000000000000000000000"
	}`)
	v, err := ParseVector(raw)
	require.NoError(t, err)
	require.Len(t, v.Pre, 1)
	require.Equal(t, uint64(1000), v.Transaction.Value)
	require.NotNil(t, v.Transaction.To)
}

func TestCheckPlainTransferComputesRealRoot(t *testing.T) {
	sender := common.BytesToAddress([]byte{1})
	to := common.BytesToAddress([]byte{2})
	v := &Vector{
		Pre: map[common.Address]AllocAccount{
			sender: {Balance: 1_000_000_000_000_000},
		},
		Transaction: TxVector{
			Sender: sender, To: &to, Value: 1000,
			Gas: consensus.MainnetForkConfig.CallMinGas, GasPrice: consensus.MainnetForkConfig.GasPriceMin,
		},
	}

	result, err := Run(v, aioncrypto.Hash256, &consensus.MainnetForkConfig, vm.NewNativeVM(nil))
	require.NoError(t, err)
	require.NoError(t, result.ApplyErr)
	require.NotEqual(t, common.Hash{}, result.Root)

	v.PostRoot = result.Root
	require.NoError(t, Check(v, aioncrypto.Hash256, &consensus.MainnetForkConfig, vm.NewNativeVM(nil)))
}

func TestCheckDetectsRootMismatch(t *testing.T) {
	sender := common.BytesToAddress([]byte{1})
	to := common.BytesToAddress([]byte{2})
	v := &Vector{
		Pre: map[common.Address]AllocAccount{
			sender: {Balance: 1_000_000_000_000_000},
		},
		Transaction: TxVector{
			Sender: sender, To: &to, Value: 1000,
			Gas: consensus.MainnetForkConfig.CallMinGas, GasPrice: consensus.MainnetForkConfig.GasPriceMin,
		},
		PostRoot: common.BytesToHash([]byte{0xff}),
	}
	err := Check(v, aioncrypto.Hash256, &consensus.MainnetForkConfig, vm.NewNativeVM(nil))
	require.Error(t, err)
}

func TestCheckExpectsErrorOnBadNonce(t *testing.T) {
	sender := common.BytesToAddress([]byte{1})
	to := common.BytesToAddress([]byte{2})
	v := &Vector{
		Pre: map[common.Address]AllocAccount{
			sender: {Balance: 1_000_000_000_000},
		},
		Transaction: TxVector{
			Sender: sender, To: &to, Value: 0, Nonce: 7,
			Gas: consensus.MainnetForkConfig.CallMinGas, GasPrice: consensus.MainnetForkConfig.GasPriceMin,
		},
		ExpectsError: true,
	}
	require.NoError(t, Check(v, aioncrypto.Hash256, &consensus.MainnetForkConfig, vm.NewNativeVM(nil)))
}
