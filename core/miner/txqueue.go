// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package miner implements spec §4.8's transaction queue and block
// template maintenance (C8): admission, priority ordering, sealing-work
// publication and seal submission.
package miner

import (
	"sync"

	"github.com/google/btree"
	"github.com/pkg/errors"

	"github.com/aionnetwork/aion-lib/common"
	"github.com/aionnetwork/aion-lib/log"

	"github.com/aionnetwork/go-aion/consensus"
	"github.com/aionnetwork/go-aion/core/executor"
	"github.com/aionnetwork/go-aion/core/types"
)

// TxOrigin distinguishes where a transaction entered the queue from,
// spec §4.8's "Reorg callback" origin tag.
type TxOrigin int

const (
	OriginExternal TxOrigin = iota
	OriginLocal
	OriginRetractedBlock
)

// SignatureVerifier recovers and checks the sender of tx, spec.md §1's
// "cryptographic ... signature primitives" collaborator, out of scope
// for this package to implement.
type SignatureVerifier func(tx *types.Transaction) (common.Address, error)

type queuedTx struct {
	tx     *types.Transaction
	hash   common.Hash
	sender common.Address
	origin TxOrigin
	size   uint64
	seq    uint64 // insertion order, tie-breaks equal-price entries deterministically
}

// priorityItem orders queuedTx entries for btree.BTree: higher gas price
// sorts first (spec §4.8 "price/factor ordering across senders"); ties
// break by insertion sequence so eviction/iteration order is stable.
type priorityItem struct{ q *queuedTx }

func (a priorityItem) Less(than btree.Item) bool {
	b := than.(priorityItem)
	if a.q.tx.GasPrice != b.q.tx.GasPrice {
		return a.q.tx.GasPrice > b.q.tx.GasPrice
	}
	return a.q.seq < b.q.seq
}

// TxQueue is spec §4.8's transaction queue: per-sender nonce buckets
// split into pending (contiguous from the on-chain nonce) and future
// (gapped), with a global price-ordered index over the pending set for
// template assembly and memory-pressure eviction.
type TxQueue struct {
	log *log.Logger

	mu       sync.Mutex
	fork     *consensus.ForkConfig
	verify   SignatureVerifier
	onChain  func(common.Address) (common.U256, error)
	balance  func(common.Address) (common.U256, error)
	banned   map[common.Address]struct{}
	local    map[common.Address]struct{}
	localCap int

	bySender map[common.Address]map[uint64]*queuedTx // nonce -> entry, all statuses
	pending  *btree.BTree                              // priorityItem, contiguous-from-on-chain only
	future   map[common.Address]map[uint64]*queuedTx

	memUsed, memLimit uint64
	nextSeq           uint64
	blockNumber       uint64 // current best block number, for fork-gated admission pricing
}

// SetBlockNumber updates the block number admission checks are gated
// against. No code in this repository calls it, so a queue gates
// admission at block 0 unless its owner does.
func (q *TxQueue) SetBlockNumber(n uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.blockNumber = n
}

// New builds an empty TxQueue. onChain resolves a sender's current
// on-chain nonce (core/state.State.Nonce in production); verify is the
// injected signature-recovery collaborator.
func New(fork *consensus.ForkConfig, verify SignatureVerifier, onChain, balance func(common.Address) (common.U256, error), memLimit uint64, localCap int) *TxQueue {
	return &TxQueue{
		log:      log.New("miner"),
		fork:     fork,
		verify:   verify,
		onChain:  onChain,
		balance:  balance,
		banned:   make(map[common.Address]struct{}),
		local:    make(map[common.Address]struct{}),
		localCap: localCap,
		bySender: make(map[common.Address]map[uint64]*queuedTx),
		pending:  btree.New(32),
		future:   make(map[common.Address]map[uint64]*queuedTx),
		memLimit: memLimit,
	}
}

// MarkLocal flags addr's transactions as local, exempting them from the
// gas-price-range check per spec §4.8 admission ("for non-local calls" —
// the same local/non-local split core/executor's pre-flight check (3)
// makes).
func (q *TxQueue) MarkLocal(addr common.Address) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.local[addr] = struct{}{}
}

// Ban rejects every future transaction from addr, spec §4.8's "banned
// senders ... are rejected".
func (q *TxQueue) Ban(addr common.Address) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.banned[addr] = struct{}{}
}

// Add implements spec §4.8's admission pipeline.
func (q *TxQueue) Add(tx *types.Transaction, hash common.Hash, origin TxOrigin) error {
	sender, err := q.verify(tx)
	if err != nil {
		return errors.Wrap(err, "invalid signature")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, banned := q.banned[sender]; banned {
		return &BannedSenderError{Sender: sender.String()}
	}
	nonce := tx.Nonce.Uint64()
	if bucket, ok := q.bySender[sender]; ok {
		if _, dup := bucket[nonce]; dup {
			return &DuplicateTransactionError{Hash: hash.String()}
		}
	}

	onChainNonce, err := q.onChain(sender)
	if err != nil {
		return err
	}
	if tx.Nonce.Cmp(&onChainNonce) < 0 {
		return &TemporarilyInvalidError{Reason: "nonce below on-chain nonce"}
	}

	intrinsic := q.fork.IntrinsicGas(tx.Action.Kind, tx.Data, q.blockNumber)
	if tx.Gas < intrinsic {
		return &executor.NotEnoughBaseGasError{Required: intrinsic, Got: tx.Gas}
	}
	if _, isLocal := q.local[sender]; !isLocal {
		if tx.GasPrice < q.fork.GasPriceMin || tx.GasPrice > q.fork.GasPriceMax {
			return &executor.InvalidGasPriceRangeError{}
		}
		if max := q.fork.MaxGasFor(tx.Action.Kind); tx.Gas > max {
			return &executor.ExceedMaxGasLimitError{Max: max, Got: tx.Gas}
		}
	}

	if _, isLocal := q.local[sender]; isLocal && q.localCap > 0 && len(q.bySender[sender]) >= q.localCap {
		return &LocalCapExceededError{Sender: sender.String()}
	}

	senderBalance, err := q.balance(sender)
	if err != nil {
		return err
	}
	cost := common.U512FromU256(common.NewU256(tx.Gas)).Mul(common.U512FromU256(common.NewU256(tx.GasPrice)))
	cost = cost.Add(common.U512FromU256(&tx.Value))
	if common.U512FromU256(&senderBalance).Cmp(cost) < 0 {
		return &executor.NotEnoughCashError{Required: cost.String(), Got: senderBalance.String()}
	}

	entry := &queuedTx{tx: tx, hash: hash, sender: sender, origin: origin, size: estimateSize(tx), seq: q.nextSeq}
	q.nextSeq++

	if q.bySender[sender] == nil {
		q.bySender[sender] = make(map[uint64]*queuedTx)
	}
	q.bySender[sender][nonce] = entry
	q.memUsed += entry.size

	q.reclassifySender(sender, onChainNonce)
	q.evictIfOverLimit()
	return nil
}

// reclassifySender rebuilds the pending/future split for one sender:
// every nonce forming a contiguous run from onChainNonce is pending,
// everything else is future, spec §4.8's "pending (contiguous from
// sender's on-chain nonce) or future (gap)".
func (q *TxQueue) reclassifySender(sender common.Address, onChainNonce common.U256) {
	bucket := q.bySender[sender]
	delete(q.future, sender)
	n := onChainNonce.Uint64()
	for {
		entry, ok := bucket[n]
		if !ok {
			break
		}
		q.pending.ReplaceOrInsert(priorityItem{q: entry})
		n++
	}
	for nonce, entry := range bucket {
		if nonce < n {
			continue
		}
		q.pending.Delete(priorityItem{q: entry})
		if q.future[sender] == nil {
			q.future[sender] = make(map[uint64]*queuedTx)
		}
		q.future[sender][nonce] = entry
	}
}

// evictIfOverLimit drops the lowest-priority pending entries until
// memUsed is back under memLimit, spec §4.8's "over-limit entries with
// the lowest priority are evicted".
func (q *TxQueue) evictIfOverLimit() {
	for q.memUsed > q.memLimit && q.pending.Len() > 0 {
		worst := q.pending.Max().(priorityItem).q
		q.removeEntryLocked(worst)
	}
}

func (q *TxQueue) removeEntryLocked(entry *queuedTx) {
	q.pending.Delete(priorityItem{q: entry})
	if bucket := q.future[entry.sender]; bucket != nil {
		delete(bucket, entry.tx.Nonce.Uint64())
	}
	if bucket := q.bySender[entry.sender]; bucket != nil {
		delete(bucket, entry.tx.Nonce.Uint64())
	}
	q.memUsed -= entry.size
}

// Pending returns the queue's pending set ordered by descending
// priority, the order template assembly pulls transactions in.
func (q *TxQueue) Pending() []*types.Transaction {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*types.Transaction, 0, q.pending.Len())
	q.pending.Ascend(func(i btree.Item) bool {
		out = append(out, i.(priorityItem).q.tx)
		return true
	})
	return out
}

// Remove drops the (sender, nonce) entry from every internal index, used once a transaction
// is included in a block or found invalid during template assembly.
func (q *TxQueue) Remove(sender common.Address, nonce uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if entry, ok := q.bySender[sender][nonce]; ok {
		q.removeEntryLocked(entry)
	}
}

// RemoveOld drops every pending/future entry whose nonce is now below
// the sender's on-chain nonce, spec §4.8's "remove mined/expired
// entries via remove_old".
func (q *TxQueue) RemoveOld() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for sender, bucket := range q.bySender {
		onChainNonce, err := q.onChain(sender)
		if err != nil {
			continue
		}
		n := onChainNonce.Uint64()
		for nonce, entry := range bucket {
			if nonce < n {
				q.removeEntryLocked(entry)
			}
		}
		q.reclassifySender(sender, onChainNonce)
	}
}

func estimateSize(tx *types.Transaction) uint64 {
	return uint64(len(tx.Data)) + 128
}
