// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package executor

import (
	"bytes"
	"sort"

	"github.com/aionnetwork/aion-lib/common"
	"github.com/aionnetwork/aion-lib/kv"

	"github.com/aionnetwork/go-aion/core/state"
	"github.com/aionnetwork/go-aion/core/types"
	"github.com/aionnetwork/go-aion/core/vm"
)

// BatchItem pairs one transaction with its sender, the unit apply_batch
// operates over.
type BatchItem struct {
	Tx         *types.Transaction
	Sender     common.Address
	CheckNonce bool
}

// ApplyBatch implements spec §4.4's "Batched managed-VM path": serialise
// every item to the managed VM via a single call, then for each result
// apply substate, accumulate block gas, and union-merge any emitted
// alias -> meta-hash mappings into the AliasMeta column.
func (e *Executor) ApplyBatch(tx *kv.DBTransaction, items []BatchItem) ([]*types.Receipt, error) {
	requests := make([]vm.BatchRequest, 0, len(items))
	checkpoints := make([]bool, len(items))

	for i, it := range items {
		senderNonce, err := e.State.Nonce(it.Sender)
		if err != nil {
			return nil, err
		}
		senderBalance, err := e.State.Balance(it.Sender)
		if err != nil {
			return nil, err
		}
		if err := Preflight(PreflightInput{
			Tx: it.Tx, SenderNonce: senderNonce, SenderBalance: senderBalance,
			CheckNonce: it.CheckNonce, BlockNumber: e.BlockNumber,
			BlockGasUsed: e.GasUsed, BlockGasLimit: e.GasLimit,
		}, e.Fork); err != nil {
			return nil, err
		}

		e.State.Checkpoint()
		checkpoints[i] = true

		if err := e.State.IncNonce(it.Sender); err != nil {
			return nil, err
		}
		gasCost := new(common.U256).Mul(common.NewU256(it.Tx.Gas), common.NewU256(it.Tx.GasPrice))
		if err := e.State.SubBalance(it.Sender, *gasCost); err != nil {
			return nil, err
		}

		var target common.Address
		if it.Tx.Action.IsCreate() {
			target = e.deriveCreateAddress(it.Sender, senderNonce)
			if err := e.prepareCreate(target); err != nil {
				return nil, err
			}
		} else {
			target = it.Tx.Action.To
		}
		if err := e.State.TransferBalance(it.Sender, target, it.Tx.Value, state.NoEmpty, nil); err != nil {
			return nil, err
		}

		code := it.Tx.Data
		if !it.Tx.Action.IsCreate() {
			c, err := e.State.Code(target)
			if err != nil {
				return nil, err
			}
			code = c
		}

		requests = append(requests, vm.BatchRequest{Params: vm.CallParams{
			Sender: it.Sender, Address: target, Code: code, Input: it.Tx.Data,
			Value: it.Tx.Value, ValueOf: vm.ValueTransfer, Gas: it.Tx.Gas - e.Fork.IntrinsicGas(it.Tx.Action.Kind, it.Tx.Data, e.BlockNumber),
			IsCreate: it.Tx.Action.IsCreate(), Depth: 0,
			BlockNumber: e.BlockNumber, Author: e.Author,
		}})
	}

	AVMLock.Lock()
	results, err := e.Managed.ExecBatch(requests)
	AVMLock.Unlock()
	if err != nil {
		for i := range checkpoints {
			if checkpoints[i] {
				e.State.RevertToCheckpoint()
			}
		}
		return nil, err
	}

	receipts := make([]*types.Receipt, len(items))
	for i, it := range items {
		r := &vm.ExecutionResult{Status: results[i].Status, GasLeft: results[i].GasLeft, Output: results[i].Output, Substate: results[i].Substate, Err: results[i].Err}
		if r.Substate != nil && r.Substate.AliasInvocations != nil {
			if err := e.mergeAliasInvocations(tx, r.Substate.AliasInvocations); err != nil {
				return nil, err
			}
		}
		receipt, err := e.finalise(it.Tx, it.Sender, r)
		if err != nil {
			return nil, err
		}
		receipts[i] = receipt
	}
	return receipts, nil
}

// mergeAliasInvocations implements spec §4.4's final apply_batch step:
// "reading the existing alias row, union-merging hashes, and rewriting
// the row as b"alias" ‖ hash_1 ‖ … ‖ hash_n" against the AliasMeta
// column, keyed per spec §6 as b"alias" + alias-hash.
func (e *Executor) mergeAliasInvocations(dbTx *kv.DBTransaction, invocations map[common.Hash][]common.Hash) error {
	for alias, metas := range invocations {
		key := append(append([]byte(nil), kv.AliasRowPrefix...), alias.Bytes()...)
		existing, err := e.State.DB().Get(kv.AliasMeta, key)
		if err != nil {
			return err
		}
		seen := make(map[common.Hash]struct{})
		var merged []common.Hash
		for off := 0; off+common.HashLength <= len(existing); off += common.HashLength {
			h := common.BytesToHash(existing[off : off+common.HashLength])
			if _, ok := seen[h]; !ok {
				seen[h] = struct{}{}
				merged = append(merged, h)
			}
		}
		for _, h := range metas {
			if _, ok := seen[h]; !ok {
				seen[h] = struct{}{}
				merged = append(merged, h)
			}
		}
		sort.Slice(merged, func(i, j int) bool { return bytes.Compare(merged[i].Bytes(), merged[j].Bytes()) < 0 })
		var value []byte
		for _, h := range merged {
			value = append(value, h.Bytes()...)
		}
		dbTx.Put(kv.AliasMeta, key, value)
	}
	return nil
}
