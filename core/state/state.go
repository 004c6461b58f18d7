// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package state is the caching, checkpointed overlay on the account trie
// described in spec §4.3. Its read path (ReadAccountData-shaped accessors
// reading through a cache, then local dirty map, then trie) is grounded on
// the teacher's core/state.HistoryReaderV3, generalised from a
// txNum-indexed temporal domain lookup to an explicit in-memory checkpoint
// stack — this node has no archive history layer, only the single
// outstanding block's worth of reverts spec §4.3 invariant (1) describes.
//
// Resolution of an explicit Open Question (spec "the managed account's
// storage-root persistence path ... is dual-written in the reference;
// implementers should pick one authoritative location"): this
// implementation treats the account trie's committed root slot as holding
// the account's *delta-root* for managed accounts and its raw storage
// root for native accounts. The AVMGraph column, keyed by delta-root, is
// the only place the real storage root and object-graph hash are
// recoverable from for a managed account — see resolveStorageRoot below.
package state

import (
	"github.com/aionnetwork/aion-lib/common"
	"github.com/aionnetwork/aion-lib/kv"
	"github.com/aionnetwork/aion-lib/rlp"

	"github.com/aionnetwork/go-aion/core/types"
	"github.com/aionnetwork/go-aion/trie"
)

// CleanupMode governs whether a zero-value mutation creates or touches an
// account, spec §4.3 "Cleanup modes".
type CleanupMode uint8

const (
	// ForceCreate touches the account even on zero credit.
	ForceCreate CleanupMode = iota
	// NoEmpty suppresses creation of null accounts on zero transfers.
	NoEmpty
	// TrackTouched records touched addresses into TouchedSet for later purge.
	TrackTouched
)

// accountEntry is the mutable, cached view of one account: the decoded
// Account plus its storage overlay and code, kept separate from the
// storage sub-trie until Commit so a revert can discard them together
// (invariant 2: reverts restore an account "wholesale").
type accountEntry struct {
	account types.Account
	exists  bool // false means "known not to exist", distinct from never-looked-up

	// realStorageRoot is the account's actual storage-sub-trie root. For
	// a native account this equals account.StorageRoot. For a managed
	// account, account.StorageRoot instead holds the delta-root once
	// committed, so realStorageRoot is populated by resolving it through
	// AVMGraph on first touch.
	realStorageRoot common.Hash

	code       []byte
	codeLoaded bool

	storage     map[common.Hash]common.Hash
	storageTrie *trie.Trie // lazily opened at realStorageRoot

	dirty   bool
	deleted bool
}

func newAccountEntry() *accountEntry {
	return &accountEntry{storage: make(map[common.Hash]common.Hash)}
}

func (e *accountEntry) clone() *accountEntry {
	cp := &accountEntry{
		account:         e.account,
		exists:          e.exists,
		realStorageRoot: e.realStorageRoot,
		code:            e.code,
		codeLoaded:      e.codeLoaded,
		storage:         make(map[common.Hash]common.Hash, len(e.storage)),
		storageTrie:     e.storageTrie,
		dirty:           e.dirty,
		deleted:         e.deleted,
	}
	for k, v := range e.storage {
		cp.storage[k] = v
	}
	return cp
}

// checkpoint is one stack frame: a shadow copy of every account entry
// touched since the checkpoint was taken, keyed the same way the live
// cache is. RevertToCheckpoint replaces the live cache's entries with
// these wholesale (invariant 2) rather than diffing field by field.
type checkpoint struct {
	shadow map[common.Address]*accountEntry
}

// State is the per-block cache described in spec §4.3. The three column
// names are fixed at construction, not threaded through every call, since
// one State always serves one store layout.
type State struct {
	db       kv.RwDB
	hash     trie.HashFunc
	accounts *trie.Trie // H(address) -> RLP(account)

	storageCol string
	codeCol    string
	graphCol   string

	clean *CleanCache

	cache       map[common.Address]*accountEntry
	checkpoints []checkpoint
}

// New opens a State rooted at root, or an empty trie if root is the zero
// hash (the genesis case). storageCol, codeCol and graphCol are the
// kv.State/kv.Code/kv.AVMGraph columns (or test equivalents). New opens
// with no process-global clean cache; use NewWithCleanCache to share one
// across the many States a node opens over its lifetime (spec §9).
func New(db kv.RwDB, storageCol, codeCol, graphCol string, hash trie.HashFunc, root common.Hash) *State {
	return NewWithCleanCache(db, storageCol, codeCol, graphCol, hash, root, nil)
}

// NewWithCleanCache is New plus a shared CleanCache, the process-global
// read-mostly layer spec §9 "Shared caches" describes sitting below the
// per-State dirty/checkpointed cache.
func NewWithCleanCache(db kv.RwDB, storageCol, codeCol, graphCol string, hash trie.HashFunc, root common.Hash, clean *CleanCache) *State {
	var accTrie *trie.Trie
	if root.IsZero() || root == common.EmptyRootHash {
		accTrie = trie.New(db, storageCol, hash)
	} else {
		accTrie = trie.Open(db, storageCol, hash, root)
	}
	return &State{
		db:         db,
		hash:       hash,
		accounts:   accTrie,
		storageCol: storageCol,
		codeCol:    codeCol,
		graphCol:   graphCol,
		clean:      clean,
		cache:      make(map[common.Address]*accountEntry),
	}
}

// Root returns the account trie's current root. Only meaningful after
// Commit; before that it still reflects the last committed state, not the
// cache's pending mutations.
func (s *State) Root() common.Hash { return s.accounts.Root() }

// DB exposes the underlying column store for callers that need a column
// State itself does not own — core/executor's apply_batch path reads and
// rewrites the AliasMeta column this way rather than State growing an
// alias-specific accessor.
func (s *State) DB() kv.RwDB { return s.db }

// HashFunc exposes the configured content-hash primitive, used by
// core/executor to derive create addresses against the same hash every
// trie and account row in this State is keyed by.
func (s *State) HashFunc() trie.HashFunc { return s.hash }

// graphRow is RLP(storage-root, graph-hash), the object-graph column's
// value shape from spec §4.3 invariant (3).
func decodeGraphRow(enc []byte) (storageRoot common.Hash, graphHash *common.Hash, err error) {
	if enc == nil {
		return common.Hash{}, nil, nil
	}
	body, err := rlp.NewStream(enc).ReadList()
	if err != nil {
		return common.Hash{}, nil, err
	}
	s := rlp.NewStream(body)
	srBytes, err := s.ReadBytes()
	if err != nil {
		return common.Hash{}, nil, err
	}
	storageRoot = common.BytesToHash(srBytes)
	ghBytes, err := s.ReadBytes()
	if err != nil {
		return common.Hash{}, nil, err
	}
	if len(ghBytes) > 0 {
		h := common.BytesToHash(ghBytes)
		graphHash = &h
	}
	return storageRoot, graphHash, nil
}

func encodeGraphRow(storageRoot common.Hash, graphHash *common.Hash) []byte {
	var body []byte
	body = rlp.EncodeBytes(body, storageRoot.Bytes())
	if graphHash != nil {
		body = rlp.EncodeBytes(body, graphHash.Bytes())
	} else {
		body = rlp.EncodeBytes(body, nil)
	}
	return rlp.List(nil, body)
}

// resolveStorageRoot populates e.realStorageRoot for a freshly loaded
// account. Native accounts store their real root directly; managed
// accounts store a delta-root and must be resolved through AVMGraph.
func (s *State) resolveStorageRoot(e *accountEntry) error {
	if e.account.Class == common.ClassNative || e.account.StorageRoot.IsZero() || e.account.StorageRoot == common.EmptyRootHash {
		e.realStorageRoot = e.account.StorageRoot
		return nil
	}
	enc, err := s.db.Get(s.graphCol, e.account.StorageRoot.Bytes())
	if err != nil {
		return err
	}
	storageRoot, graphHash, err := decodeGraphRow(enc)
	if err != nil {
		return err
	}
	e.realStorageRoot = storageRoot
	e.account.ObjectGraphHash = graphHash
	return nil
}

// get loads addr's entry into the cache on first touch, reading through to
// the trie, and returns it. The returned entry is live: mutating it
// mutates the cache directly, which is why every mutator below records a
// checkpoint shadow of the pre-mutation entry before touching it.
func (s *State) get(addr common.Address) (*accountEntry, error) {
	if e, ok := s.cache[addr]; ok {
		return e, nil
	}
	if snap, ok := s.clean.get(addr); ok {
		e := newAccountEntry()
		e.account = snap.account
		e.exists = true
		e.realStorageRoot = snap.realStorageRoot
		s.cache[addr] = e
		return e, nil
	}
	e := newAccountEntry()
	enc, err := s.accounts.Get(addr.Bytes())
	if err != nil {
		return nil, err
	}
	if enc == nil {
		s.cache[addr] = e
		return e, nil
	}
	acc, err := types.DecodeAccountRLP(enc)
	if err != nil {
		return nil, err
	}
	e.account = *acc
	e.exists = true
	if err := s.resolveStorageRoot(e); err != nil {
		return nil, err
	}
	s.cache[addr] = e
	return e, nil
}

// shadowBeforeWrite snapshots addr's current entry into the topmost
// checkpoint frame, the first time (and only the first time) that frame
// sees addr mutated. Later mutations within the same frame do not
// overwrite the shadow: the frame must hold the state as of checkpoint
// time, not as of the most recent write.
func (s *State) shadowBeforeWrite(addr common.Address, e *accountEntry) {
	if len(s.checkpoints) == 0 {
		return
	}
	top := &s.checkpoints[len(s.checkpoints)-1]
	if _, ok := top.shadow[addr]; ok {
		return
	}
	top.shadow[addr] = e.clone()
}

// Balance reads through cache, then trie; a miss is the class's zero
// (spec §4.3: "miss returns the class's zero").
func (s *State) Balance(addr common.Address) (common.U256, error) {
	e, err := s.get(addr)
	if err != nil {
		return common.U256{}, err
	}
	return e.account.Balance, nil
}

func (s *State) Nonce(addr common.Address) (common.U256, error) {
	e, err := s.get(addr)
	if err != nil {
		return common.U256{}, err
	}
	return e.account.Nonce, nil
}

func (s *State) Exists(addr common.Address) (bool, error) {
	e, err := s.get(addr)
	if err != nil {
		return false, err
	}
	return e.exists && !e.deleted, nil
}

// Code returns addr's code, reading through the account's CodeHash into
// the content-addressed Code column on first touch.
func (s *State) Code(addr common.Address) ([]byte, error) {
	e, err := s.get(addr)
	if err != nil {
		return nil, err
	}
	if e.codeLoaded {
		return e.code, nil
	}
	if e.account.CodeHash == common.EmptyCodeHash {
		e.codeLoaded = true
		return nil, nil
	}
	code, err := s.db.Get(s.codeCol, e.account.CodeHash.Bytes())
	if err != nil {
		return nil, err
	}
	e.code = code
	e.codeLoaded = true
	return code, nil
}

func (s *State) openStorageTrie(e *accountEntry) *trie.Trie {
	if e.storageTrie == nil {
		if e.realStorageRoot.IsZero() || e.realStorageRoot == common.EmptyRootHash {
			e.storageTrie = trie.New(s.db, s.storageCol, s.hash)
		} else {
			e.storageTrie = trie.Open(s.db, s.storageCol, s.hash, e.realStorageRoot)
		}
	}
	return e.storageTrie
}

// StorageAt reads a, key through the cache's storage overlay, then the
// account's storage sub-trie. keys are not re-hashed here: spec §4.2
// requires raw storage keys for managed accounts and zero-padded 16-byte
// keys for native accounts; callers construct key accordingly.
func (s *State) StorageAt(addr common.Address, key common.Hash) (common.Hash, error) {
	e, err := s.get(addr)
	if err != nil {
		return common.Hash{}, err
	}
	if v, ok := e.storage[key]; ok {
		return v, nil
	}
	st := s.openStorageTrie(e)
	enc, err := st.GetRaw(key.Bytes())
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(enc), nil
}

// AddBalance implements spec §4.3's add_balance, honouring cleanup_mode:
// NoEmpty suppresses touching a previously-nonexistent account when delta
// is zero, ForceCreate touches it regardless, TrackTouched additionally
// records the address into touched.
func (s *State) AddBalance(addr common.Address, delta common.U256, mode CleanupMode, touched map[common.Address]struct{}) error {
	e, err := s.get(addr)
	if err != nil {
		return err
	}
	if delta.IsZero() && mode == NoEmpty && !e.exists {
		return nil
	}
	s.shadowBeforeWrite(addr, e)
	var sum common.U256
	sum.Add(&e.account.Balance, &delta)
	e.account.Balance = sum
	e.exists = true
	e.dirty = true
	if mode == TrackTouched && touched != nil {
		touched[addr] = struct{}{}
	}
	return nil
}

func (s *State) SubBalance(addr common.Address, delta common.U256) error {
	e, err := s.get(addr)
	if err != nil {
		return err
	}
	s.shadowBeforeWrite(addr, e)
	var diff common.U256
	diff.Sub(&e.account.Balance, &delta)
	e.account.Balance = diff
	e.dirty = true
	return nil
}

// TransferBalance moves delta from `from` to `to` under a single
// checkpoint shadow pairing, per spec §4.3 add_balance/sub_balance/
// transfer_balance being named as siblings.
func (s *State) TransferBalance(from, to common.Address, delta common.U256, mode CleanupMode, touched map[common.Address]struct{}) error {
	if err := s.SubBalance(from, delta); err != nil {
		return err
	}
	return s.AddBalance(to, delta, mode, touched)
}

func (s *State) IncNonce(addr common.Address) error {
	e, err := s.get(addr)
	if err != nil {
		return err
	}
	s.shadowBeforeWrite(addr, e)
	one := *common.NewU256(1)
	var sum common.U256
	sum.Add(&e.account.Nonce, &one)
	e.account.Nonce = sum
	e.exists = true
	e.dirty = true
	return nil
}

// SetStorage writes value at key. For the native class, an all-zero value
// is promoted to RemoveStorage per spec §4.3 invariant (4).
func (s *State) SetStorage(addr common.Address, key, value common.Hash) error {
	e, err := s.get(addr)
	if err != nil {
		return err
	}
	if e.account.Class == common.ClassNative && value.IsZero() {
		return s.RemoveStorage(addr, key)
	}
	s.shadowBeforeWrite(addr, e)
	e.storage[key] = value
	_ = s.openStorageTrie(e) // ensure opened for Commit's flush
	e.dirty = true
	return nil
}

func (s *State) RemoveStorage(addr common.Address, key common.Hash) error {
	e, err := s.get(addr)
	if err != nil {
		return err
	}
	s.shadowBeforeWrite(addr, e)
	e.storage[key] = common.Hash{}
	_ = s.openStorageTrie(e)
	e.dirty = true
	return nil
}

// InitCode sets addr's code, content-addressing it under the Code column
// when Commit flushes (the codeCol write itself happens in Commit so a
// reverted checkpoint never leaves an orphaned code row observed by
// readers — it is simply never written).
func (s *State) InitCode(addr common.Address, code []byte) error {
	e, err := s.get(addr)
	if err != nil {
		return err
	}
	s.shadowBeforeWrite(addr, e)
	e.code = code
	e.codeLoaded = true
	e.account.CodeHash = s.hash(code)
	e.exists = true
	e.dirty = true
	return nil
}

// NewContract resets addr to a fresh account of the given class, used by
// the executor's Create path after AddressAlreadyUsed/nonce_offset
// handling (spec §4.4 "State transitions on contract creation").
func (s *State) NewContract(addr common.Address, class common.AccountClass, nonceOffset common.U256) error {
	e, err := s.get(addr)
	if err != nil {
		return err
	}
	s.shadowBeforeWrite(addr, e)
	balance := e.account.Balance
	fresh := types.EmptyAccount(class)
	fresh.Balance = balance
	fresh.Nonce = nonceOffset
	e.account = fresh
	e.realStorageRoot = common.EmptyRootHash
	e.storage = make(map[common.Hash]common.Hash)
	e.storageTrie = nil
	e.code = nil
	e.codeLoaded = true
	e.exists = true
	e.deleted = false
	e.dirty = true
	return nil
}

// KillAccount marks addr deleted; Commit removes its row from the account
// trie instead of rewriting it.
func (s *State) KillAccount(addr common.Address) error {
	e, err := s.get(addr)
	if err != nil {
		return err
	}
	s.shadowBeforeWrite(addr, e)
	e.deleted = true
	e.dirty = true
	return nil
}

// SetObjectGraphHash records a managed account's object-graph hash, the
// value the managed VM's substate produces after executing against it.
func (s *State) SetObjectGraphHash(addr common.Address, graphHash common.Hash) error {
	e, err := s.get(addr)
	if err != nil {
		return err
	}
	s.shadowBeforeWrite(addr, e)
	e.account.ObjectGraphHash = &graphHash
	e.dirty = true
	return nil
}

// Checkpoint pushes a new stack frame (spec §4.3 "checkpoint()").
func (s *State) Checkpoint() int {
	s.checkpoints = append(s.checkpoints, checkpoint{shadow: make(map[common.Address]*accountEntry)})
	return len(s.checkpoints) - 1
}

// DiscardCheckpoint drops the topmost frame without reverting, merging its
// shadow entries down into the next frame if one exists so an outer revert
// still restores the now-committed-at-this-level values (the stack-top
// read rule, invariant 1, needs an outer frame's shadow to reflect
// whatever was true right before *it* was pushed, not before the
// discarded inner frame).
func (s *State) DiscardCheckpoint() {
	if len(s.checkpoints) == 0 {
		return
	}
	top := s.checkpoints[len(s.checkpoints)-1]
	s.checkpoints = s.checkpoints[:len(s.checkpoints)-1]
	if len(s.checkpoints) == 0 {
		return
	}
	parent := &s.checkpoints[len(s.checkpoints)-1]
	for addr, shadow := range top.shadow {
		if _, ok := parent.shadow[addr]; !ok {
			parent.shadow[addr] = shadow
		}
	}
}

// RevertToCheckpoint pops the topmost frame and restores every shadowed
// account wholesale (invariant 2): the entry overwrite is whole-struct,
// never a per-field merge, so a reverted account's storage-change set
// reverts along with its balance/nonce/code in one step, and untouched
// accounts are left exactly as they were.
func (s *State) RevertToCheckpoint() {
	if len(s.checkpoints) == 0 {
		return
	}
	top := s.checkpoints[len(s.checkpoints)-1]
	s.checkpoints = s.checkpoints[:len(s.checkpoints)-1]
	for addr, shadow := range top.shadow {
		s.cache[addr] = shadow
	}
}

// Commit flushes every dirty account to the trie and kv store, per spec
// §4.3 invariant (3): a dirty account's storage sub-trie is committed
// before its row is rewritten in the account trie, and a managed account
// additionally writes an object-graph row keyed by its delta-root.
func (s *State) Commit(tx *kv.DBTransaction) (common.Hash, error) {
	for addr, e := range s.cache {
		if !e.dirty {
			continue
		}
		if e.deleted {
			if err := s.accounts.Delete(addr.Bytes()); err != nil {
				return common.Hash{}, err
			}
			s.clean.evict(addr)
			continue
		}
		if e.codeLoaded && e.code != nil && e.account.CodeHash != common.EmptyCodeHash {
			tx.Put(s.codeCol, e.account.CodeHash.Bytes(), e.code)
		}
		if e.storageTrie != nil {
			for key, value := range e.storage {
				if value.IsZero() {
					if err := e.storageTrie.DeleteRaw(key.Bytes()); err != nil {
						return common.Hash{}, err
					}
					continue
				}
				if err := e.storageTrie.InsertRaw(key.Bytes(), value.Bytes()); err != nil {
					return common.Hash{}, err
				}
			}
			e.realStorageRoot = e.storageTrie.Commit(tx)
		}
		if e.account.Class == common.ClassManaged {
			e.account.StorageRoot = e.realStorageRoot
			delta := e.account.DeltaRoot(s.hash)
			tx.Put(s.graphCol, delta.Bytes(), encodeGraphRow(e.realStorageRoot, e.account.ObjectGraphHash))
			e.account.StorageRoot = delta
		} else {
			e.account.StorageRoot = e.realStorageRoot
		}
		if err := s.accounts.Insert(addr.Bytes(), e.account.EncodeRLP()); err != nil {
			return common.Hash{}, err
		}
		s.clean.promote(addr, e.account, e.realStorageRoot)
		e.dirty = false
	}
	root := s.accounts.Commit(tx)
	return root, nil
}

func objectGraphBytes(h *common.Hash) []byte {
	if h == nil {
		return nil
	}
	return h.Bytes()
}
