// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package executor dispatches a signed transaction through spec §4.4's
// pre-flight checks and into one of the three VM capabilities in
// core/vm, grounded on the layering core/state already establishes: the
// executor is the one caller that takes a state.State checkpoint,
// mutates it through a single VM invocation, and either discards or
// reverts the checkpoint depending on the terminal status — exactly the
// "take a checkpoint ... discard the checkpoint" protocol spec §4.4
// names step by step.
package executor

import (
	"github.com/aionnetwork/aion-lib/common"
	"github.com/aionnetwork/aion-lib/rlp"

	"github.com/aionnetwork/go-aion/consensus"
	"github.com/aionnetwork/go-aion/core/state"
	"github.com/aionnetwork/go-aion/core/types"
	"github.com/aionnetwork/go-aion/core/vm"
)

// MaxCallDepth bounds recursive sub-calls; CallDepthThreshold is the
// point past which spec §4.4's "VM dispatch" moves execution onto a
// fresh worker instead of continuing inline — modelled here as handing
// the call to its own goroutine, which the Go runtime gives a fresh,
// independently growable stack, the same correctness property the
// spec's "explicit stack size" language is protecting.
const (
	MaxCallDepth       = 128
	CallDepthThreshold = 64
)

// Executor is the per-block (or per-pending-template) object spec §4.4
// describes; one Executor applies a sequence of transactions against one
// state.State.
type Executor struct {
	State    *state.State
	Hash     func([]byte) common.Hash
	Fork     *consensus.ForkConfig
	Builtins *consensus.BuiltinTable
	Native   vm.VM
	Managed  *vm.ManagedVM

	BlockNumber uint64
	Author      common.Address
	GasLimit    uint64
	GasUsed     uint64
}

// New builds an Executor bound to one state.State and block context.
func New(s *state.State, hash func([]byte) common.Hash, fork *consensus.ForkConfig, builtins *consensus.BuiltinTable, native vm.VM, managed *vm.ManagedVM, blockNumber uint64, author common.Address, gasLimit uint64) *Executor {
	return &Executor{
		State: s, Hash: hash, Fork: fork, Builtins: builtins,
		Native: native, Managed: managed,
		BlockNumber: blockNumber, Author: author, GasLimit: gasLimit,
	}
}

// deriveCreateAddress implements spec §4.4: "new_address = first_byte
// (0xa0) ‖ tail(H(rlp(sender, nonce)))".
func (e *Executor) deriveCreateAddress(sender common.Address, nonce common.U256) common.Address {
	var body []byte
	body = rlp.EncodeBytes(body, sender.Bytes())
	body = rlp.EncodeBytes(body, nonce.Bytes())
	h := e.Hash(rlp.List(nil, body))
	var addr common.Address
	addr[0] = common.AddressPrefixCreated
	copy(addr[1:], h[1:])
	return addr
}

// Apply implements spec §4.3's apply(env, machine, tx) -> receipt and
// spec §4.4 end to end: pre-flight, execution, VM dispatch, finalisation.
func (e *Executor) Apply(tx *types.Transaction, sender common.Address, checkNonce, isLocal, assembling bool) (*types.Receipt, error) {
	senderNonce, err := e.State.Nonce(sender)
	if err != nil {
		return nil, err
	}
	senderBalance, err := e.State.Balance(sender)
	if err != nil {
		return nil, err
	}
	if err := Preflight(PreflightInput{
		Tx: tx, SenderNonce: senderNonce, SenderBalance: senderBalance,
		CheckNonce: checkNonce, IsLocal: isLocal,
		BlockNumber: e.BlockNumber, BlockGasUsed: e.GasUsed, BlockGasLimit: e.GasLimit,
		Assembling: assembling,
	}, e.Fork); err != nil {
		return nil, err
	}

	e.State.Checkpoint()

	if err := e.State.IncNonce(sender); err != nil {
		e.State.RevertToCheckpoint()
		return nil, err
	}
	gasCost := new(common.U256).Mul(common.NewU256(tx.Gas), common.NewU256(tx.GasPrice))
	if err := e.State.SubBalance(sender, *gasCost); err != nil {
		e.State.RevertToCheckpoint()
		return nil, err
	}

	var target common.Address
	gasForCall := tx.Gas - e.Fork.IntrinsicGas(tx.Action.Kind, tx.Data, e.BlockNumber)
	if tx.Action.IsCreate() {
		target = e.deriveCreateAddress(sender, senderNonce)
		if err := e.prepareCreate(target); err != nil {
			e.State.RevertToCheckpoint()
			return nil, err
		}
	} else {
		target = tx.Action.To
	}

	if err := e.State.TransferBalance(sender, target, tx.Value, state.NoEmpty, nil); err != nil {
		e.State.RevertToCheckpoint()
		return nil, err
	}

	code := tx.Data
	if !tx.Action.IsCreate() {
		code, err = e.State.Code(target)
		if err != nil {
			e.State.RevertToCheckpoint()
			return nil, err
		}
	}

	result, execErr := e.dispatch(vm.CallParams{
		Sender: sender, Address: target, Code: code, Input: tx.Data,
		Value: tx.Value, ValueOf: vm.ValueTransfer, Gas: gasForCall,
		IsCreate: tx.Action.IsCreate(), IsLocal: isLocal, Depth: 0,
		BlockNumber: e.BlockNumber, Author: e.Author,
	})
	if execErr != nil {
		e.State.RevertToCheckpoint()
		return nil, execErr
	}

	return e.finalise(tx, sender, result)
}

// prepareCreate implements spec §4.4 "State transitions on contract
// creation": fail if the target exists with non-empty code, otherwise
// preserve any pre-existing balance and nonce as nonce_offset and
// create fresh.
func (e *Executor) prepareCreate(addr common.Address) error {
	exists, err := e.State.Exists(addr)
	if err != nil {
		return err
	}
	var nonceOffset common.U256
	if exists {
		code, err := e.State.Code(addr)
		if err != nil {
			return err
		}
		if len(code) > 0 {
			return &AddressAlreadyUsedError{}
		}
		nonceOffset, err = e.State.Nonce(addr)
		if err != nil {
			return err
		}
	}
	return e.State.NewContract(addr, common.ClassNative, nonceOffset)
}

// finalise implements spec §4.4 "Finalisation": refund unused gas,
// credit the author, apply suicides, and discard or revert the
// checkpoint depending on the terminal status and the block gas budget.
func (e *Executor) finalise(tx *types.Transaction, sender common.Address, result *vm.ExecutionResult) (*types.Receipt, error) {
	gasUsed := tx.Gas - result.GasLeft
	if result.Status != vm.StatusSuccess && result.Status != vm.StatusRevert {
		gasUsed = tx.Gas
		result.GasLeft = 0
	}

	if e.GasUsed+gasUsed > e.GasLimit {
		e.State.RevertToCheckpoint()
		return nil, &BlockGasLimitReachedError{GasLimit: e.GasLimit, GasUsed: e.GasUsed, Gas: tx.Gas}
	}

	refund := new(common.U256).Mul(common.NewU256(result.GasLeft), common.NewU256(tx.GasPrice))
	if err := e.State.AddBalance(sender, *refund, state.NoEmpty, nil); err != nil {
		return nil, err
	}
	fee := new(common.U256).Mul(common.NewU256(gasUsed), common.NewU256(tx.GasPrice))
	if err := e.State.AddBalance(e.Author, *fee, state.ForceCreate, nil); err != nil {
		return nil, err
	}

	if result.Substate != nil {
		for _, addr := range result.Substate.Suicides {
			if err := e.State.KillAccount(addr); err != nil {
				return nil, err
			}
		}
		for addr, gh := range result.Substate.ObjectGraphUpdates {
			if err := e.State.SetObjectGraphHash(addr, gh); err != nil {
				return nil, err
			}
		}
	}

	e.State.DiscardCheckpoint()
	e.GasUsed += gasUsed

	receipt := &types.Receipt{
		PostStateRoot: e.State.Root(),
		CumulativeGas: e.GasUsed,
		GasUsed:       gasUsed,
		Fee:           *fee,
		Output:        result.Output,
	}
	if result.Substate != nil {
		for _, l := range result.Substate.Logs {
			receipt.Logs = append(receipt.Logs, types.Log{Address: l.Address, Topics: l.Topics, Data: l.Data})
		}
	}
	if result.Status != vm.StatusSuccess && result.Err != nil {
		receipt.Error = result.Err.Error()
	}
	return receipt, nil
}
