// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package executor

import (
	"github.com/aionnetwork/aion-lib/common"

	"github.com/aionnetwork/go-aion/consensus"
	"github.com/aionnetwork/go-aion/core/types"
)

// PreflightInput bundles everything spec §4.4's five ordered pre-flight
// checks need, independent of where the caller/executor sourced each
// value from (State, a pending block template, or a bare RPC call).
type PreflightInput struct {
	Tx            *types.Transaction
	SenderNonce   common.U256
	SenderBalance common.U256
	CheckNonce    bool
	IsLocal       bool
	BlockNumber   uint64
	BlockGasUsed  uint64
	BlockGasLimit uint64
	// Assembling is true only while building a pending block (spec §4.4
	// check 4 is scoped to that case: "when assembling a block").
	Assembling bool
}

// Preflight runs spec §4.4's five checks in order and returns the first
// failure. No state is mutated by or before this call — spec §7's
// propagation policy: "Pre-flight failures never mutate state."
func Preflight(in PreflightInput, fork *consensus.ForkConfig) error {
	tx := in.Tx

	// (1) nonce equals account nonce unless check_nonce=false.
	if in.CheckNonce && tx.Nonce.Cmp(&in.SenderNonce) != 0 {
		return &InvalidNonceError{Expected: in.SenderNonce.Uint64(), Got: tx.Nonce.Uint64()}
	}

	// (2) declared gas >= intrinsic gas, fork-gated byte pricing.
	intrinsic := fork.IntrinsicGas(tx.Action.Kind, tx.Data, in.BlockNumber)
	if tx.Gas < intrinsic {
		return &NotEnoughBaseGasError{Required: intrinsic, Got: tx.Gas}
	}

	// (3) for non-local calls, gas <= type max.
	if !in.IsLocal {
		if max := fork.MaxGasFor(tx.Action.Kind); tx.Gas > max {
			return &ExceedMaxGasLimitError{Max: max, Got: tx.Gas}
		}
	}

	// (4) when assembling a block, block.gas-used + tx.gas <= block.gas-limit.
	if in.Assembling && in.BlockGasUsed+tx.Gas > in.BlockGasLimit {
		return &BlockGasLimitReachedError{GasLimit: in.BlockGasLimit, GasUsed: in.BlockGasUsed, Gas: tx.Gas}
	}

	// (5) sender balance >= value + gas*gas-price, U512 arithmetic.
	cost := common.U512FromU256(common.NewU256(tx.Gas)).Mul(common.U512FromU256(common.NewU256(tx.GasPrice)))
	cost = cost.Add(common.U512FromU256(&tx.Value))
	balance := common.U512FromU256(&in.SenderBalance)
	if balance.Cmp(cost) < 0 {
		return &NotEnoughCashError{Required: cost.String(), Got: balance.String()}
	}

	if tx.GasPrice < fork.GasPriceMin || tx.GasPrice > fork.GasPriceMax {
		return &InvalidGasPriceRangeError{}
	}

	return nil
}
