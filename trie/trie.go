// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package trie is the secure (hashed-key) Merkle-Patricia trie primitive
// authenticated map described in spec §4.2, and the per-account DB view
// built on top of it. Nodes are content-addressed and persisted through
// the kv façade (spec §4.1); an in-memory dirty-node cache absorbs the
// read-modify-write churn of a single block's worth of mutations before
// Commit flushes them.
package trie

import (
	"sort"

	"github.com/aionnetwork/aion-lib/common"
	"github.com/aionnetwork/aion-lib/kv"
	"github.com/aionnetwork/aion-lib/rlp"
)

// HashFunc is the content-hash collaborator named in spec §1 ("trie node
// hashing ... out of scope").
type HashFunc func([]byte) common.Hash

// node is the trie's internal representation. A leaf carries a value
// directly; a branch indexes up to 16 children by nibble plus an optional
// value at the branch itself; an extension compresses a shared nibble run.
type node struct {
	kind     nodeKind
	key      []byte // extension/leaf: the (possibly shared) nibble path
	value    []byte // leaf: stored value
	children [16]common.Hash
	child    common.Hash // extension: single child
	dirty    bool
}

type nodeKind uint8

const (
	kindLeaf nodeKind = iota
	kindExtension
	kindBranch
)

// Trie is a secure Merkle-Patricia trie: keys are hashed before insertion,
// per spec §4.2 ("A secure (hashed-key) ... is the primitive authenticated
// map").
type Trie struct {
	db     kv.RwDB
	col    string
	hash   HashFunc
	root   common.Hash
	cache  map[string]*node // keyed by node hash, dirty-since-load
	loaded map[string]*node
}

func nodeKey(h common.Hash) string { return string(h.Bytes()) }

// New opens an empty trie.
func New(db kv.RwDB, col string, hash HashFunc) *Trie {
	return &Trie{
		db:     db,
		col:    col,
		hash:   hash,
		root:   common.EmptyRootHash,
		cache:  make(map[string]*node),
		loaded: make(map[string]*node),
	}
}

// Open resumes a trie rooted at root.
func Open(db kv.RwDB, col string, hash HashFunc, root common.Hash) *Trie {
	t := New(db, col, hash)
	t.root = root
	return t
}

func (t *Trie) Root() common.Hash { return t.root }

func (t *Trie) loadNode(h common.Hash) (*node, error) {
	if h == common.EmptyRootHash {
		return nil, nil
	}
	if n, ok := t.cache[nodeKey(h)]; ok {
		return n, nil
	}
	if n, ok := t.loaded[nodeKey(h)]; ok {
		return n, nil
	}
	enc, err := t.db.Get(t.col, h.Bytes())
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return nil, nil
	}
	n, err := decodeNode(enc)
	if err != nil {
		return nil, err
	}
	t.loaded[nodeKey(h)] = n
	return n, nil
}

func keyNibbles(key []byte) []byte {
	nibbles := make([]byte, len(key)*2)
	for i, b := range key {
		nibbles[i*2] = b >> 4
		nibbles[i*2+1] = b & 0x0f
	}
	return nibbles
}

// Get looks up the hashed key's value, walking from root. A miss returns
// (nil, nil) consistent with kv.Getter's contract.
func (t *Trie) Get(key []byte) ([]byte, error) {
	return t.get(t.root, keyNibbles(t.hash(key).Bytes()))
}

// GetRaw looks up a pre-hashed path directly (used by the per-account
// storage sub-trie, whose keys are already fixed-width and do not need a
// further secure hash — spec §4.2 "zero-padded 16-byte keys").
func (t *Trie) GetRaw(path []byte) ([]byte, error) {
	return t.get(t.root, keyNibbles(path))
}

func (t *Trie) get(root common.Hash, path []byte) ([]byte, error) {
	n, err := t.loadNode(root)
	if err != nil || n == nil {
		return nil, err
	}
	switch n.kind {
	case kindLeaf:
		if nibblesEqual(n.key, path) {
			return n.value, nil
		}
		return nil, nil
	case kindExtension:
		if len(path) < len(n.key) || !nibblesEqual(n.key, path[:len(n.key)]) {
			return nil, nil
		}
		return t.get(n.child, path[len(n.key):])
	case kindBranch:
		if len(path) == 0 {
			return n.value, nil
		}
		return t.get(n.children[path[0]], path[1:])
	}
	return nil, nil
}

func nibblesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Insert writes value at key's secure path, rebuilding the spine in the
// dirty cache; Commit later flushes and re-hashes it.
func (t *Trie) Insert(key, value []byte) error {
	return t.insertRaw(t.hash(key).Bytes(), value)
}

// InsertRaw inserts at a pre-hashed path (per-account storage sub-trie).
func (t *Trie) InsertRaw(path, value []byte) error {
	return t.insertRaw(path, value)
}

func (t *Trie) insertRaw(path, value []byte) error {
	newRoot, err := t.put(t.root, keyNibbles(path), value)
	if err != nil {
		return err
	}
	t.root = newRoot
	return nil
}

func (t *Trie) put(root common.Hash, path, value []byte) (common.Hash, error) {
	n, err := t.loadNode(root)
	if err != nil {
		return common.Hash{}, err
	}
	if n == nil {
		leaf := &node{kind: kindLeaf, key: append([]byte(nil), path...), value: value, dirty: true}
		return t.store(leaf), nil
	}

	switch n.kind {
	case kindLeaf:
		if nibblesEqual(n.key, path) {
			leaf := &node{kind: kindLeaf, key: n.key, value: value, dirty: true}
			return t.store(leaf), nil
		}
		return t.splitLeaf(n, path, value)
	case kindExtension:
		if len(path) >= len(n.key) && nibblesEqual(n.key, path[:len(n.key)]) {
			childRoot, err := t.put(n.child, path[len(n.key):], value)
			if err != nil {
				return common.Hash{}, err
			}
			ext := &node{kind: kindExtension, key: n.key, child: childRoot, dirty: true}
			return t.store(ext), nil
		}
		return t.splitExtension(n, path, value)
	case kindBranch:
		b := *n
		b.dirty = true
		if len(path) == 0 {
			b.value = value
		} else {
			childRoot, err := t.put(n.children[path[0]], path[1:], value)
			if err != nil {
				return common.Hash{}, err
			}
			b.children[path[0]] = childRoot
		}
		return t.store(&b), nil
	}
	return common.Hash{}, nil
}

func commonPrefixLen(a, b []byte) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

func (t *Trie) splitLeaf(n *node, path, value []byte) (common.Hash, error) {
	cp := commonPrefixLen(n.key, path)
	branch := &node{kind: kindBranch, dirty: true}
	if cp < len(n.key) {
		leaf := &node{kind: kindLeaf, key: n.key[cp+1:], value: n.value, dirty: true}
		branch.children[n.key[cp]] = t.store(leaf)
	} else {
		branch.value = n.value
	}
	if cp < len(path) {
		leaf := &node{kind: kindLeaf, key: path[cp+1:], value: value, dirty: true}
		branch.children[path[cp]] = t.store(leaf)
	} else {
		branch.value = value
	}
	if cp == 0 {
		return t.store(branch), nil
	}
	ext := &node{kind: kindExtension, key: path[:cp], child: t.store(branch), dirty: true}
	return t.store(ext), nil
}

func (t *Trie) splitExtension(n *node, path, value []byte) (common.Hash, error) {
	cp := commonPrefixLen(n.key, path)
	branch := &node{kind: kindBranch, dirty: true}
	if cp == len(n.key)-1 {
		branch.children[n.key[cp]] = n.child
	} else {
		rest := &node{kind: kindExtension, key: n.key[cp+1:], child: n.child, dirty: true}
		branch.children[n.key[cp]] = t.store(rest)
	}
	if cp < len(path) {
		leaf := &node{kind: kindLeaf, key: path[cp+1:], value: value, dirty: true}
		branch.children[path[cp]] = t.store(leaf)
	} else {
		branch.value = value
	}
	if cp == 0 {
		return t.store(branch), nil
	}
	ext := &node{kind: kindExtension, key: path[:cp], child: t.store(branch), dirty: true}
	return t.store(ext), nil
}

// Delete removes key, rebuilding the spine the same way Insert does; a
// missing key is a no-op, matching kv's "missing keys return None" posture.
func (t *Trie) Delete(key []byte) error {
	return t.deleteRaw(t.hash(key).Bytes())
}

func (t *Trie) DeleteRaw(path []byte) error { return t.deleteRaw(path) }

func (t *Trie) deleteRaw(path []byte) error {
	newRoot, _, err := t.del(t.root, keyNibbles(path))
	if err != nil {
		return err
	}
	t.root = newRoot
	return nil
}

// del returns the new subtree root and whether anything changed. This
// implementation favours clarity over the node-collapsing optimisations a
// production trie applies after deletes; it never leaves a dangling empty
// branch reachable from root, which is all Commit's callers depend on.
func (t *Trie) del(root common.Hash, path []byte) (common.Hash, bool, error) {
	n, err := t.loadNode(root)
	if err != nil || n == nil {
		return root, false, err
	}
	switch n.kind {
	case kindLeaf:
		if nibblesEqual(n.key, path) {
			return common.EmptyRootHash, true, nil
		}
		return root, false, nil
	case kindExtension:
		if len(path) < len(n.key) || !nibblesEqual(n.key, path[:len(n.key)]) {
			return root, false, nil
		}
		childRoot, changed, err := t.del(n.child, path[len(n.key):])
		if err != nil || !changed {
			return root, changed, err
		}
		if childRoot == common.EmptyRootHash {
			return common.EmptyRootHash, true, nil
		}
		ext := &node{kind: kindExtension, key: n.key, child: childRoot, dirty: true}
		return t.store(ext), true, nil
	case kindBranch:
		b := *n
		if len(path) == 0 {
			if b.value == nil {
				return root, false, nil
			}
			b.value = nil
		} else {
			childRoot, changed, err := t.del(n.children[path[0]], path[1:])
			if err != nil || !changed {
				return root, changed, err
			}
			b.children[path[0]] = childRoot
		}
		empty := b.value == nil
		for _, c := range b.children {
			if c != (common.Hash{}) && c != common.EmptyRootHash {
				empty = false
				break
			}
		}
		if empty {
			return common.EmptyRootHash, true, nil
		}
		b.dirty = true
		return t.store(&b), true, nil
	}
	return root, false, nil
}

// store hashes n's encoding, caches it under that hash and returns the
// hash. Non-dirty nodes are re-stored idempotently (same bytes, same
// hash) so callers never need to special-case "did this subtree change".
func (t *Trie) store(n *node) common.Hash {
	enc := encodeNode(n)
	h := t.hash(enc)
	t.cache[nodeKey(h)] = n
	return h
}

// Commit flushes every cached node into tx and returns the committed
// root. Per spec §4.3 invariant (3), the caller (core/state) is
// responsible for flushing a storage sub-trie before rewriting the owning
// account row; Commit here only knows about its own column.
func (t *Trie) Commit(tx *kv.DBTransaction) common.Hash {
	keys := make([]string, 0, len(t.cache))
	for k := range t.cache {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		tx.Put(t.col, []byte(k), encodeNode(t.cache[k]))
	}
	t.cache = make(map[string]*node)
	return t.root
}

// ProofNode is one step of a Merkle proof: the raw encoded node along the
// path from root to the target key.
type ProofNode []byte

// Prove walks from root to key's secure path, collecting every node
// encoding along the way, for prove_account/prove_storage (spec §4.2).
func (t *Trie) Prove(key []byte) ([]ProofNode, []byte, error) {
	return t.proveRaw(t.hash(key).Bytes())
}

func (t *Trie) ProveRaw(path []byte) ([]ProofNode, []byte, error) {
	return t.proveRaw(path)
}

func (t *Trie) proveRaw(path []byte) ([]ProofNode, []byte, error) {
	var proof []ProofNode
	nibbles := keyNibbles(path)
	root := t.root
	for {
		n, err := t.loadNode(root)
		if err != nil {
			return nil, nil, err
		}
		if n == nil {
			return proof, nil, nil
		}
		proof = append(proof, encodeNode(n))
		switch n.kind {
		case kindLeaf:
			if nibblesEqual(n.key, nibbles) {
				return proof, n.value, nil
			}
			return proof, nil, nil
		case kindExtension:
			if len(nibbles) < len(n.key) || !nibblesEqual(n.key, nibbles[:len(n.key)]) {
				return proof, nil, nil
			}
			nibbles = nibbles[len(n.key):]
			root = n.child
		case kindBranch:
			if len(nibbles) == 0 {
				return proof, n.value, nil
			}
			root = n.children[nibbles[0]]
			nibbles = nibbles[1:]
		}
	}
}

func encodeNode(n *node) []byte {
	var body []byte
	switch n.kind {
	case kindLeaf:
		body = rlp.EncodeBytes(body, []byte{0})
		body = rlp.EncodeBytes(body, n.key)
		body = rlp.EncodeBytes(body, n.value)
	case kindExtension:
		body = rlp.EncodeBytes(body, []byte{1})
		body = rlp.EncodeBytes(body, n.key)
		body = rlp.EncodeBytes(body, n.child.Bytes())
	case kindBranch:
		body = rlp.EncodeBytes(body, []byte{2})
		for _, c := range n.children {
			body = rlp.EncodeBytes(body, c.Bytes())
		}
		body = rlp.EncodeBytes(body, n.value)
	}
	return rlp.List(nil, body)
}

func decodeNode(enc []byte) (*node, error) {
	listBody, err := rlp.NewStream(enc).ReadList()
	if err != nil {
		return nil, err
	}
	s := rlp.NewStream(listBody)
	kindBytes, err := s.ReadBytes()
	if err != nil {
		return nil, err
	}
	n := &node{}
	if len(kindBytes) != 1 {
		return nil, errNodeCorrupt
	}
	switch kindBytes[0] {
	case 0:
		n.kind = kindLeaf
		if n.key, err = s.ReadBytes(); err != nil {
			return nil, err
		}
		if n.value, err = s.ReadBytes(); err != nil {
			return nil, err
		}
	case 1:
		n.kind = kindExtension
		if n.key, err = s.ReadBytes(); err != nil {
			return nil, err
		}
		childBytes, err := s.ReadBytes()
		if err != nil {
			return nil, err
		}
		n.child = common.BytesToHash(childBytes)
	case 2:
		n.kind = kindBranch
		for i := 0; i < 16; i++ {
			b, err := s.ReadBytes()
			if err != nil {
				return nil, err
			}
			n.children[i] = common.BytesToHash(b)
		}
		if n.value, err = s.ReadBytes(); err != nil {
			return nil, err
		}
	default:
		return nil, errNodeCorrupt
	}
	return n, nil
}
