// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package memdb is an in-memory kv.RwDB backed by github.com/google/btree,
// used by tests and by the verification/miner packages' scratch state. It
// implements the same buffered-write/flush split as the mdbx-backed store
// so the two are interchangeable behind kv.RwDB.
package memdb

import (
	"bytes"
	"sort"
	"sync"

	"github.com/google/btree"

	"github.com/aionnetwork/aion-lib/kv"
)

type item struct {
	key, value []byte
}

func (a *item) Less(than btree.Item) bool {
	return bytes.Compare(a.key, than.(*item).key) < 0
}

// DB is a column-scoped, in-memory store. Each column owns its own btree so
// a Cursor never has to skip foreign-column keys.
type DB struct {
	mu       sync.RWMutex
	cols     map[string]*btree.BTree
	buffered map[string]*btree.BTree // staged by WriteBuffered, merged on Flush
}

func New() *DB {
	return &DB{
		cols:     make(map[string]*btree.BTree),
		buffered: make(map[string]*btree.BTree),
	}
}

func (d *DB) colTree(col string) *btree.BTree {
	t, ok := d.cols[col]
	if !ok {
		t = btree.New(32)
		d.cols[col] = t
	}
	return t
}

func (d *DB) Get(col string, key []byte) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if bt, ok := d.buffered[col]; ok {
		if it := bt.Get(&item{key: key}); it != nil {
			v := it.(*item).value
			if v == nil {
				return nil, nil // tombstone: staged delete not yet flushed
			}
			return append([]byte(nil), v...), nil
		}
	}
	bt, ok := d.cols[col]
	if !ok {
		return nil, nil
	}
	it := bt.Get(&item{key: key})
	if it == nil {
		return nil, nil
	}
	return append([]byte(nil), it.(*item).value...), nil
}

// apply replays tx into target. When tombstone is true (the buffered
// overlay), a staged delete is recorded as a nil-value entry so reads
// against the overlay still shadow the durable column before Flush; when
// false (a direct durable Write), a staged delete removes the row outright.
func (d *DB) apply(target map[string]*btree.BTree, tx *kv.DBTransaction, tombstone bool) {
	tx.ForEach(func(col string, key, value []byte, isDelete bool) {
		t, ok := target[col]
		if !ok {
			t = btree.New(32)
			target[col] = t
		}
		if isDelete {
			if tombstone {
				t.ReplaceOrInsert(&item{key: key, value: nil})
			} else {
				t.Delete(&item{key: key})
			}
			return
		}
		t.ReplaceOrInsert(&item{key: key, value: value})
	})
}

func (d *DB) Write(tx *kv.DBTransaction) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.apply(d.cols, tx, false)
	return nil
}

func (d *DB) WriteBuffered(tx *kv.DBTransaction) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.apply(d.buffered, tx, true)
	return nil
}

func (d *DB) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for col, bt := range d.buffered {
		target := d.colTree(col)
		bt.Ascend(func(i btree.Item) bool {
			it := i.(*item)
			if it.value == nil {
				target.Delete(it)
			} else {
				target.ReplaceOrInsert(it)
			}
			return true
		})
	}
	d.buffered = make(map[string]*btree.BTree)
	return nil
}

func (d *DB) BeginRo() (kv.Tx, error) {
	d.mu.RLock()
	return &roTx{db: d}, nil
}

func (d *DB) Close() error { return nil }

type roTx struct {
	db *DB
}

func (t *roTx) Get(col string, key []byte) ([]byte, error) { return t.db.Get(col, key) }
func (t *roTx) Cursor(col string) (kv.Cursor, error)        { return t.db.Cursor(col) }
func (t *roTx) Rollback()                                   { t.db.mu.RUnlock() }

// Cursor returns a snapshot iterator over col in key order. It copies keys
// up front rather than holding the lock for the cursor's lifetime, matching
// the spec's expectation that reorg range-rewrites (spec §4.5) see a
// consistent snapshot.
func (d *DB) Cursor(col string) (kv.Cursor, error) {
	d.mu.RLock()
	bt := d.cols[col]
	var keys [][]byte
	if bt != nil {
		bt.Ascend(func(i btree.Item) bool {
			it := i.(*item)
			keys = append(keys, append([]byte(nil), it.key...))
			return true
		})
	}
	d.mu.RUnlock()

	return &memCursor{db: d, col: col, keys: keys}, nil
}

type memCursor struct {
	db   *DB
	col  string
	keys [][]byte
	pos  int
}

func (c *memCursor) Seek(key []byte) ([]byte, []byte, error) {
	c.pos = sort.Search(len(c.keys), func(i int) bool {
		return bytes.Compare(c.keys[i], key) >= 0
	})
	return c.Next()
}

func (c *memCursor) Next() ([]byte, []byte, error) {
	if c.pos >= len(c.keys) {
		return nil, nil, nil
	}
	k := c.keys[c.pos]
	c.pos++
	v, err := c.db.Get(c.col, k)
	return k, v, err
}

func (c *memCursor) Close() {}
