// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package miner

import (
	"sync"

	"github.com/aionnetwork/aion-lib/common"
	"github.com/aionnetwork/aion-lib/kv"
	"github.com/aionnetwork/aion-lib/log"

	"github.com/aionnetwork/go-aion/core/executor"
	"github.com/aionnetwork/go-aion/core/rawdb"
	"github.com/aionnetwork/go-aion/core/types"
)

// SealingTimeoutInBlocks is spec §4.8's SEALING_TIMEOUT_IN_BLOCKS.
const SealingTimeoutInBlocks = 5

// minGasForInclusion is the floor spec §4.8 names directly:
// "BlockGasLimitReached stops early if remaining gas < 21 000".
const minGasForInclusion = 21_000

// Notifier receives newly published sealing work, spec §4.8's "current
// sealing work (pow_hash, target, number) is published to registered
// notifiers if new".
type Notifier interface {
	NewWork(powHash common.Hash, target common.U256, number uint64)
}

// Template is one in-progress block being assembled for sealing.
type Template struct {
	Header       *types.Header
	Transactions []*types.Transaction
	Receipts     types.BlockReceipts
	MineHash     common.Hash
}

// ExecutorFactory builds an Executor bound to a fresh checkpointed state
// over the template's parent, the collaborator that isolates
// core/miner from core/state's construction details.
type ExecutorFactory func(parent common.Hash, number uint64, author common.Address, gasLimit uint64) (*executor.Executor, *kv.DBTransaction, error)

// Miner is spec §4.8's template-maintenance and submission component.
type Miner struct {
	log *log.Logger

	store    *rawdb.Store
	queue    *TxQueue
	newExec  ExecutorFactory
	hashFn   func([]byte) common.Hash
	notifiers []Notifier

	mu              sync.Mutex
	author          common.Address
	extraData       []byte
	gasFloor        uint64
	gasCeil         uint64
	forcedSealing   bool
	lastRequest     uint64
	template        *Template
	lastPublishedPow common.Hash
}

// NewMiner builds a Miner; newExec supplies a fresh Executor plus the
// batch its writes should be staged into for each opened template.
func NewMiner(store *rawdb.Store, queue *TxQueue, newExec ExecutorFactory, hashFn func([]byte) common.Hash, author common.Address, extraData []byte, gasFloor, gasCeil uint64) *Miner {
	return &Miner{
		log: log.New("miner"), store: store, queue: queue, newExec: newExec,
		hashFn: hashFn, author: author, extraData: extraData, gasFloor: gasFloor, gasCeil: gasCeil,
	}
}

func (m *Miner) SetForcedSealing(forced bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forcedSealing = forced
}

func (m *Miner) RegisterNotifier(n Notifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifiers = append(m.notifiers, n)
}

// UpdateSealing implements spec §4.8's update_sealing(client): rebuild
// or extend the pending template under the conditions spec lists, then
// publish new sealing work if the result changed.
func (m *Miner) UpdateSealing(hasLocalTx bool) error {
	bestNumber := m.store.BestBlockNumber()

	m.mu.Lock()
	should := m.forcedSealing || hasLocalTx || bestNumber-m.lastRequest <= SealingTimeoutInBlocks
	m.mu.Unlock()
	if !should {
		return nil
	}

	bestHash := m.store.BestBlockHash()
	m.mu.Lock()
	reopen := m.template != nil && m.template.Header.ParentHash == bestHash
	m.mu.Unlock()

	var tmpl *Template
	var batch *kv.DBTransaction
	var exec *executor.Executor
	var err error
	if reopen {
		m.mu.Lock()
		tmpl = m.template
		m.mu.Unlock()
		exec, batch, err = m.newExec(tmpl.Header.ParentHash, tmpl.Header.Number, m.author, m.gasLimit(tmpl.Header))
	} else {
		tmpl, exec, batch, err = m.openTemplate(bestHash, bestNumber+1)
	}
	if err != nil {
		return err
	}

	m.fillTransactions(exec, batch, tmpl)
	m.closeTemplate(tmpl)

	m.mu.Lock()
	m.template = tmpl
	m.lastRequest = bestNumber
	m.mu.Unlock()
	return nil
}

func (m *Miner) gasLimit(h *types.Header) uint64 { return h.GasLimit }

// openTemplate starts a fresh block: author, gas-range target and
// extra-data, spec §4.8 "opens a fresh block with author, gas-range
// target, and extra-data".
func (m *Miner) openTemplate(parent common.Hash, number uint64) (*Template, *executor.Executor, *kv.DBTransaction, error) {
	gasLimit := m.gasFloor
	if m.gasCeil > gasLimit {
		gasLimit = (m.gasFloor + m.gasCeil) / 2
	}
	header := &types.Header{
		ParentHash: parent,
		Number:     number,
		Author:     m.author,
		GasLimit:   gasLimit,
		ExtraData:  append([]byte(nil), m.extraData...),
	}
	exec, batch, err := m.newExec(parent, number, m.author, gasLimit)
	if err != nil {
		return nil, nil, nil, err
	}
	return &Template{Header: header}, exec, batch, nil
}

// fillTransactions pulls from the priority-ordered pending set and
// executes each via the executor, handling the four outcomes spec §4.8
// names explicitly.
func (m *Miner) fillTransactions(exec *executor.Executor, batch *kv.DBTransaction, tmpl *Template) {
	for _, tx := range m.queue.Pending() {
		remaining := tmpl.Header.GasLimit - tmpl.Header.GasUsed
		if remaining < minGasForInclusion {
			break
		}
		sender, err := m.queue.verify(tx)
		if err != nil {
			continue
		}
		receipt, err := exec.Apply(tx, sender, true, false, true)
		switch err.(type) {
		case nil:
			tmpl.Transactions = append(tmpl.Transactions, tx)
			tmpl.Receipts = append(tmpl.Receipts, *receipt)
			tmpl.Header.GasUsed += receipt.GasUsed
			m.queue.Remove(sender, tx.Nonce.Uint64())
		case *executor.BlockGasLimitReachedError:
			return
		case *executor.InvalidNonceError:
			// nonce gap will resolve on a later block; leave queued.
		default:
			m.queue.Remove(sender, tx.Nonce.Uint64())
			m.log.Debug("dropping invalid pending transaction", "err", err)
		}
	}
}

// closeTemplate computes the template's mine-hash and publishes new
// sealing work if it changed from the last publication.
func (m *Miner) closeTemplate(tmpl *Template) {
	tmpl.MineHash = tmpl.Header.MineHash(m.hashFn)

	m.mu.Lock()
	changed := tmpl.MineHash != m.lastPublishedPow
	if changed {
		m.lastPublishedPow = tmpl.MineHash
	}
	notifiers := append([]Notifier(nil), m.notifiers...)
	m.mu.Unlock()

	if !changed {
		return
	}
	target := tmpl.Header.Difficulty
	for _, n := range notifiers {
		n.NewWork(tmpl.MineHash, target, tmpl.Header.Number)
	}
}
