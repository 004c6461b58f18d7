// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package statetest runs standalone state-transition test vectors: a
// pre-state allocation, one transaction, and the expected post-state
// root, checked without any surrounding block or chain context.
//
// Adapted from the teacher's tests/state_test_util.go, which runs
// ethereum/tests-format GeneralStateTests (env/pre/transaction/post JSON)
// against erigon's IntraBlockState and a full forks+EIPs EVM. This
// module's executor (C4) has no EIP/fork-selectable EVM to target — its
// native capability is an injected vm.Interpreter (core/vm/native.go)
// and its managed capability is an injected vm.Bridge — so the format is
// generalised the same way core/miner's tests sidestep a concrete VM:
// the test vector names the sender/recipient/value/gas directly against
// this module's own Account/Transaction shapes, and the caller supplies
// the vm.VM the transaction should run against (typically
// vm.NewNativeVM(nil) for a plain-transfer vector, or a fixture
// Interpreter for one that exercises code).
package statetest

import (
	"encoding/json"
	"fmt"

	"github.com/aionnetwork/aion-lib/common"
	"github.com/aionnetwork/aion-lib/kv"
	"github.com/aionnetwork/aion-lib/kv/memdb"

	"github.com/aionnetwork/go-aion/consensus"
	"github.com/aionnetwork/go-aion/core/executor"
	"github.com/aionnetwork/go-aion/core/state"
	"github.com/aionnetwork/go-aion/core/types"
	"github.com/aionnetwork/go-aion/core/vm"
)

// AllocAccount is one pre-state entry, the JSON vector's per-address
// balance/nonce/code/storage — the same four fields the teacher's
// types.GenesisAlloc carries, restricted to what state.State itself
// reads and writes.
type AllocAccount struct {
	Balance uint64                    `json:"balance"`
	Nonce   uint64                    `json:"nonce"`
	Code    []byte                    `json:"code,omitempty"`
	Storage map[common.Hash]common.Hash `json:"storage,omitempty"`
}

// TxVector is the transaction a test applies, addressed directly by
// sender rather than by secret key: this harness checks executor
// semantics, not signature recovery, which core/executor.Apply already
// takes as a pre-verified input.
type TxVector struct {
	Sender   common.Address `json:"sender"`
	To       *common.Address `json:"to,omitempty"` // nil means contract creation
	Value    uint64         `json:"value"`
	Gas      uint64         `json:"gasLimit"`
	GasPrice uint64         `json:"gasPrice"`
	Nonce    uint64         `json:"nonce"`
	Data     []byte         `json:"data,omitempty"`
}

// Vector is one complete test case: a pre-state, a transaction to apply
// against it, and the expected post-state root, the teacher's
// env/pre/transaction/post shape minus the block-context fields this
// harness does not need (Apply takes block number/gas limit from the
// Executor the caller builds, not from the vector).
type Vector struct {
	Pre          map[common.Address]AllocAccount `json:"pre"`
	Transaction  TxVector                        `json:"transaction"`
	PostRoot     common.Hash                      `json:"postRoot"`
	ExpectsError bool                             `json:"expectsError,omitempty"`
}

// ParseVector decodes one JSON test vector, the package-level
// counterpart to the teacher's StateTest.UnmarshalJSON.
func ParseVector(raw []byte) (*Vector, error) {
	var v Vector
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Result is what Run hands back for assertion, the harness's analogue
// of the teacher's Run returning (*state.IntraBlockState, root, error).
type Result struct {
	Root    common.Hash
	Receipt *types.Receipt
	ApplyErr error
}

// Run builds a fresh in-memory state.State, seeds it from v.Pre, applies
// v.Transaction through an Executor running native, commits the state and
// reports the resulting root. hash is the content-hash primitive every
// trie/account row is keyed by (aionlib/crypto.Hash256 in production);
// native is the VM the Executor is built with, which core/executor.Apply
// dispatches both calls and creates to.
func Run(v *Vector, hash func([]byte) common.Hash, fork *consensus.ForkConfig, native vm.VM) (*Result, error) {
	db := memdb.New()
	s := state.New(db, kv.State, kv.Code, kv.AVMGraph, hash, common.Hash{})

	for addr, acc := range v.Pre {
		if err := s.AddBalance(addr, *common.NewU256(acc.Balance), state.ForceCreate, nil); err != nil {
			return nil, fmt.Errorf("statetest: seed balance for %x: %w", addr, err)
		}
		for i := uint64(0); i < acc.Nonce; i++ {
			if err := s.IncNonce(addr); err != nil {
				return nil, fmt.Errorf("statetest: seed nonce for %x: %w", addr, err)
			}
		}
		if len(acc.Code) > 0 {
			if err := s.InitCode(addr, acc.Code); err != nil {
				return nil, fmt.Errorf("statetest: seed code for %x: %w", addr, err)
			}
		}
		for key, value := range acc.Storage {
			if err := s.SetStorage(addr, key, value); err != nil {
				return nil, fmt.Errorf("statetest: seed storage for %x: %w", addr, err)
			}
		}
	}

	builtins := consensus.NewBuiltinTable(hash)
	e := executor.New(s, hash, fork, builtins, native, nil, 1, common.Address{}, v.Transaction.Gas+1)

	action := types.CreateAction()
	if v.Transaction.To != nil {
		action = types.CallTo(*v.Transaction.To)
	}
	tx := &types.Transaction{
		Nonce:    *common.NewU256(v.Transaction.Nonce),
		Action:   action,
		Value:    *common.NewU256(v.Transaction.Value),
		Data:     v.Transaction.Data,
		Gas:      v.Transaction.Gas,
		GasPrice: v.Transaction.GasPrice,
	}

	receipt, err := e.Apply(tx, v.Transaction.Sender, true, false, false)
	if err != nil {
		return &Result{ApplyErr: err}, nil
	}
	root, err := s.Commit(kv.NewTransaction())
	if err != nil {
		return nil, fmt.Errorf("statetest: commit: %w", err)
	}
	return &Result{Root: root, Receipt: receipt}, nil
}

// Check runs v and compares the resulting root against v.PostRoot,
// the teacher's StateTest.Run verification step.
func Check(v *Vector, hash func([]byte) common.Hash, fork *consensus.ForkConfig, native vm.VM) error {
	result, err := Run(v, hash, fork, native)
	if err != nil {
		return err
	}
	if v.ExpectsError {
		if result.ApplyErr == nil {
			return fmt.Errorf("statetest: expected an apply error, got none")
		}
		return nil
	}
	if result.ApplyErr != nil {
		return fmt.Errorf("statetest: unexpected apply error: %w", result.ApplyErr)
	}
	if result.Root != v.PostRoot {
		return fmt.Errorf("statetest: post state root mismatch: got %x, want %x", result.Root, v.PostRoot)
	}
	return nil
}
