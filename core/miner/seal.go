// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package miner

import (
	"github.com/aionnetwork/aion-lib/common"
	"github.com/aionnetwork/aion-lib/kv"

	"github.com/aionnetwork/go-aion/core/types"
)

// SealValidator checks a sealed header's proof of work, spec.md §1's
// "Ethash/Equihash PoW primitives" collaborator, out of scope here.
type SealValidator func(header *types.Header) bool

// SubmitSeal implements spec §4.8's submit_seal(client, pow_hash, seal):
// locate the queued template whose mine_hash matches, attach the seal,
// and import the resulting block.
func (m *Miner) SubmitSeal(batch *kv.DBTransaction, validate SealValidator, powHash common.Hash, seal [][]byte) (*types.Block, error) {
	m.mu.Lock()
	tmpl := m.template
	m.mu.Unlock()

	if tmpl == nil || tmpl.MineHash != powHash {
		return nil, &PowHashInvalidError{}
	}

	header := *tmpl.Header
	header.Seal = seal
	if !validate(&header) {
		return nil, &PowInvalidError{}
	}

	block := &types.Block{Header: &header, Transactions: tmpl.Transactions}
	if _, err := m.store.InsertBlock(batch, block, tmpl.Receipts); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.template = nil
	m.mu.Unlock()
	return block, nil
}
