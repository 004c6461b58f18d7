// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package rawdb implements spec §3/§4.5's "Blockchain store" (C5): the
// canonical index, reorg detection and the commit contract every other
// module's chain view is built on top of. One Store serialises every
// insert against a single chain-level write lock, matching spec §8's
// "serialised by a chain-level write lock" atomicity note.
package rawdb

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/aionnetwork/aion-lib/common"
	"github.com/aionnetwork/aion-lib/kv"

	"github.com/aionnetwork/go-aion/core/types"
)

// ImportRoute is insert_block's return value, spec §3 "Insert protocol"
// step 5: the set of blocks that became canonical, ceased to be
// canonical, or were imported without affecting canonicity.
type ImportRoute struct {
	Enacted   []common.Hash
	Retracted []common.Hash
	Omitted   []common.Hash
}

// TreeRoute is tree_route's return value, spec §3 "Tree-route": the
// common ancestor of two hashes and the ordered path between them.
type TreeRoute struct {
	Ancestor common.Hash
	Blocks   []common.Hash
	Index    int
}

var errUnknownBlock = errors.New("rawdb: unknown block hash")

// Store is the chain-level blockchain store. hashFn is the content-hash
// primitive every column key derives from, the same binding core/state
// and core/executor take (aionlib/crypto.Hash256 in production).
type Store struct {
	db     kv.RwDB
	hashFn func([]byte) common.Hash

	mu          sync.Mutex
	bestHash    common.Hash
	bestNumber  uint64
	latestHash  common.Hash
	haveGenesis bool

	// pending holds BlockDetails staged into the current call's batch
	// but not yet durable — insert_block must read its own just-written
	// rows (e.g. computing the tree route up to the block it is in the
	// middle of inserting) before the caller's db.Write ever runs.
	pending map[common.Hash]*types.BlockDetails
}

// New opens a Store over db, loading any previously persisted
// best-and-latest cursor.
func New(db kv.RwDB, hashFn func([]byte) common.Hash) (*Store, error) {
	s := &Store{db: db, hashFn: hashFn}
	raw, err := db.Get(kv.DatabaseInfo, kv.BestAndLatestKey)
	if err != nil {
		return nil, err
	}
	if len(raw) == 2*common.HashLength+8 {
		s.bestHash = common.BytesToHash(raw[:common.HashLength])
		s.latestHash = common.BytesToHash(raw[common.HashLength : 2*common.HashLength])
		s.bestNumber = beUint64(raw[2*common.HashLength:])
		s.haveGenesis = true
	}
	return s, nil
}

// DB exposes the underlying column store, used by turbo/backfill to
// write ancient ranges through the same kv.RwDB a Store was opened over
// without growing Store's own method set for every bulk-write caller.
func (s *Store) DB() kv.RwDB { return s.db }

// BestBlockHash is queryable without a flush (spec §3 "Commit contract").
func (s *Store) BestBlockHash() common.Hash {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bestHash
}

func (s *Store) BestBlockNumber() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bestNumber
}

// InsertBlock implements spec §3's insert_block(batch, bytes, receipts)
// -> ImportRoute, taking a decoded block in place of raw bytes since Go
// callers already hold one. It stages every write into batch; the
// caller still owns db.Write(batch) and a later Commit call.
func (s *Store) InsertBlock(batch *kv.DBTransaction, block *types.Block, receipts types.BlockReceipts) (*ImportRoute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = make(map[common.Hash]*types.BlockDetails)
	defer func() { s.pending = nil }()

	h := block.Header
	hash := block.Hash(s.hashFn)

	batch.Put(kv.Headers, headerKey(h.Number, hash), h.EncodeRLP())
	batch.Put(kv.Bodies, hash.Bytes(), block.EncodeRLP())
	batch.Put(kv.BlockReceipts, hash.Bytes(), receipts.EncodeRLP())
	bloom := receipts.Bloom(s.hashFn)
	batch.Put(kv.BloomByNumber, beBytes(h.Number), bloom[:])

	var parentDetails *types.BlockDetails
	var err error
	if h.Number > 0 {
		parentDetails, err = s.getDetails(h.ParentHash)
		if err != nil {
			return nil, err
		}
	}

	td := new(common.U256).Set(&h.Difficulty)
	if parentDetails != nil {
		td = new(common.U256).Mul(&parentDetails.TotalDifficulty, td)
	}

	details := &types.BlockDetails{Parent: h.ParentHash, TotalDifficulty: *td, Number: h.Number}
	if err := s.putDetails(batch, hash, details); err != nil {
		return nil, err
	}
	if parentDetails != nil {
		parentDetails.Children = append(parentDetails.Children, hash)
		if err := s.putDetails(batch, h.ParentHash, parentDetails); err != nil {
			return nil, err
		}
	}

	for i, tx := range block.Transactions {
		addr := &types.TransactionAddress{BlockHash: hash, Index: uint32(i)}
		batch.Put(kv.TxLookup, tx.Hash(s.hashFn).Bytes(), addr.EncodeRLP())
	}

	route := &ImportRoute{Enacted: []common.Hash{hash}}
	if !s.haveGenesis {
		s.haveGenesis = true
		s.bestHash, s.bestNumber, s.latestHash = hash, h.Number, hash
		if err := s.writeCanonicalRange(batch, nil, []common.Hash{hash}); err != nil {
			return nil, err
		}
		return route, nil
	}

	s.latestHash = hash

	bestTD, err := s.totalDifficulty(s.bestHash)
	if err != nil {
		return nil, err
	}
	if td.Cmp(bestTD) <= 0 {
		route.Enacted = nil
		route.Omitted = []common.Hash{hash}
		return route, nil
	}

	// New best: walk the tree route from the old best to the new head,
	// spec §3 step 4.
	tr, err := s.treeRoute(s.bestHash, hash)
	if err != nil {
		return nil, err
	}
	retracted := tr.Blocks[:tr.Index]
	enacted := tr.Blocks[tr.Index+1:]

	if err := s.writeCanonicalRange(batch, retracted, enacted); err != nil {
		return nil, err
	}
	for _, rh := range retracted {
		if err := s.rewriteTxLookups(batch, rh, false); err != nil {
			return nil, err
		}
	}
	for _, eh := range enacted {
		if err := s.rewriteTxLookups(batch, eh, true); err != nil {
			return nil, err
		}
	}

	s.bestHash, s.bestNumber = hash, h.Number
	route.Enacted = enacted
	route.Retracted = retracted
	return route, nil
}

// InsertUnordered supports ancient-chain back-fill (spec §3
// "Insert-unordered"): the caller supplies total difficulty explicitly
// and canonicalisation is deferred — this call only stores the block
// and its details, never touching the canonical index or best pointer.
func (s *Store) InsertUnordered(batch *kv.DBTransaction, block *types.Block, receipts types.BlockReceipts, totalDifficulty common.U256) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := block.Header
	hash := block.Hash(s.hashFn)
	batch.Put(kv.Headers, headerKey(h.Number, hash), h.EncodeRLP())
	batch.Put(kv.Bodies, hash.Bytes(), block.EncodeRLP())
	batch.Put(kv.BlockReceipts, hash.Bytes(), receipts.EncodeRLP())
	bloom := receipts.Bloom(s.hashFn)
	batch.Put(kv.BloomByNumber, beBytes(h.Number), bloom[:])
	return s.putDetails(batch, hash, &types.BlockDetails{Parent: h.ParentHash, TotalDifficulty: totalDifficulty, Number: h.Number})
}

// Commit marks the in-memory best-block hash authoritative (spec §3
// "Commit contract"). It performs no I/O; the caller still owns
// db.Write(batch) for durability.
func (s *Store) Commit() {
	// The best pointer is already updated synchronously inside
	// InsertBlock; Commit exists as the named seam spec §3 describes,
	// kept separate so a future caller can defer marking the pointer
	// authoritative until after its own notification fan-out succeeds.
}

// TreeRoute implements spec §3 "Tree-route".
func (s *Store) TreeRoute(from, to common.Hash) (*TreeRoute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.treeRoute(from, to)
}

func (s *Store) treeRoute(from, to common.Hash) (*TreeRoute, error) {
	fromChain, fromDetails, err := s.ancestryToHeight(from, 0)
	if err != nil {
		return nil, err
	}
	toChain, toDetails, err := s.ancestryToHeight(to, 0)
	if err != nil {
		return nil, err
	}

	// Equalise heights by walking the deeper chain up first.
	for fromDetails.Number > toDetails.Number {
		fromChain = append(fromChain, fromDetails.Parent)
		fromDetails, err = s.getDetails(fromDetails.Parent)
		if err != nil {
			return nil, err
		}
	}
	for toDetails.Number > fromDetails.Number {
		toChain = append(toChain, toDetails.Parent)
		toDetails, err = s.getDetails(toDetails.Parent)
		if err != nil {
			return nil, err
		}
	}

	for fromChain[len(fromChain)-1] != toChain[len(toChain)-1] {
		fd, err := s.getDetails(fromChain[len(fromChain)-1])
		if err != nil {
			return nil, err
		}
		td, err := s.getDetails(toChain[len(toChain)-1])
		if err != nil {
			return nil, err
		}
		fromChain = append(fromChain, fd.Parent)
		toChain = append(toChain, td.Parent)
	}

	ancestor := fromChain[len(fromChain)-1]
	fromChain = fromChain[:len(fromChain)-1]
	toChain = toChain[:len(toChain)-1]

	blocks := make([]common.Hash, 0, len(fromChain)+len(toChain)+1)
	for i := len(fromChain) - 1; i >= 0; i-- {
		blocks = append(blocks, fromChain[i])
	}
	index := len(blocks)
	blocks = append(blocks, ancestor)
	for i := len(toChain) - 1; i >= 0; i-- {
		blocks = append(blocks, toChain[i])
	}

	return &TreeRoute{Ancestor: ancestor, Blocks: blocks, Index: index}, nil
}

func (s *Store) ancestryToHeight(hash common.Hash, _ uint64) ([]common.Hash, *types.BlockDetails, error) {
	d, err := s.getDetails(hash)
	if err != nil {
		return nil, nil, err
	}
	return []common.Hash{hash}, d, nil
}

func (s *Store) totalDifficulty(hash common.Hash) (*common.U256, error) {
	d, err := s.getDetails(hash)
	if err != nil {
		return nil, err
	}
	return &d.TotalDifficulty, nil
}

// writeCanonicalRange rewrites the number->hash canonical index: insert
// enacted, and remove the entries for retracted heights that no enacted
// block takes over.
func (s *Store) writeCanonicalRange(batch *kv.DBTransaction, retracted, enacted []common.Hash) error {
	enactedNumbers := make(map[uint64]struct{}, len(enacted))
	for _, h := range enacted {
		d, err := s.getDetails(h)
		if err != nil {
			return err
		}
		enactedNumbers[d.Number] = struct{}{}
		batch.Put(kv.HeaderCanonical, beBytes(d.Number), h.Bytes())
	}
	for _, h := range retracted {
		d, err := s.getDetails(h)
		if err != nil {
			return err
		}
		if _, ok := enactedNumbers[d.Number]; ok {
			continue
		}
		batch.Delete(kv.HeaderCanonical, beBytes(d.Number))
	}
	return nil
}

// rewriteTxLookups updates TxLookup entries for every transaction in
// block h: canonical=true re-points them at h; canonical=false removes
// them, spec §8 invariant 3 ("addresses of retracted-only txs become
// None").
func (s *Store) rewriteTxLookups(batch *kv.DBTransaction, h common.Hash, canonical bool) error {
	raw, err := s.db.Get(kv.Bodies, h.Bytes())
	if err != nil {
		return err
	}
	if raw == nil {
		return nil
	}
	block, err := types.DecodeBlockRLP(raw)
	if err != nil {
		return err
	}
	for i, tx := range block.Transactions {
		txHash := tx.Hash(s.hashFn)
		if !canonical {
			batch.Delete(kv.TxLookup, txHash.Bytes())
			continue
		}
		addr := &types.TransactionAddress{BlockHash: h, Index: uint32(i)}
		batch.Put(kv.TxLookup, txHash.Bytes(), addr.EncodeRLP())
	}
	return nil
}

func (s *Store) getDetails(hash common.Hash) (*types.BlockDetails, error) {
	if d, ok := s.pending[hash]; ok {
		return d, nil
	}
	raw, err := s.db.Get(kv.BlockDetails, hash.Bytes())
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.Wrapf(errUnknownBlock, "hash %x", hash)
	}
	return types.DecodeBlockDetailsRLP(raw)
}

func (s *Store) putDetails(batch *kv.DBTransaction, hash common.Hash, d *types.BlockDetails) error {
	batch.Put(kv.BlockDetails, hash.Bytes(), d.EncodeRLP())
	if s.pending != nil {
		s.pending[hash] = d
	}
	return nil
}

func (s *Store) bestNumber2hash(number uint64) common.Hash {
	raw, err := s.db.Get(kv.HeaderCanonical, beBytes(number))
	if err != nil || raw == nil {
		return common.Hash{}
	}
	return common.BytesToHash(raw)
}

// CanonicalHash returns the canonical hash at number, or the zero hash
// if none is recorded.
func (s *Store) CanonicalHash(number uint64) common.Hash {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bestNumber2hash(number)
}

// Header returns the decoded header stored at (number, hash).
func (s *Store) Header(number uint64, hash common.Hash) (*types.Header, error) {
	raw, err := s.db.Get(kv.Headers, headerKey(number, hash))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	return types.DecodeHeaderRLP(raw)
}

// Block returns the decoded block body stored under hash.
func (s *Store) Block(hash common.Hash) (*types.Block, error) {
	raw, err := s.db.Get(kv.Bodies, hash.Bytes())
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	return types.DecodeBlockRLP(raw)
}

// TransactionAddress resolves tx_hash -> TransactionAddress (spec §8
// invariant 3); a missing lookup returns (nil, nil), matching spec
// §4.1's "missing keys return None".
func (s *Store) TransactionAddress(txHash common.Hash) (*types.TransactionAddress, error) {
	raw, err := s.db.Get(kv.TxLookup, txHash.Bytes())
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	return types.DecodeTransactionAddressRLP(raw)
}

// PersistBestAndLatest writes the best-and-latest cursor row (spec §6:
// "Best-and-latest cursor key: b\"best_and_latest\"") into batch. It is
// the caller's responsibility to invoke this and then db.Write(batch)
// if the cursor needs to survive a restart; InsertBlock itself only
// maintains the in-memory copy per the commit contract.
func (s *Store) PersistBestAndLatest(batch *kv.DBTransaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := make([]byte, 0, 2*common.HashLength+8)
	row = append(row, s.bestHash.Bytes()...)
	row = append(row, s.latestHash.Bytes()...)
	row = append(row, beBytes(s.bestNumber)...)
	batch.Put(kv.DatabaseInfo, kv.BestAndLatestKey, row)
}

func headerKey(number uint64, hash common.Hash) []byte {
	k := make([]byte, 0, 8+common.HashLength)
	k = append(k, beBytes(number)...)
	k = append(k, hash.Bytes()...)
	return k
}

func beBytes(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

func beUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8 && i < len(b); i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}
