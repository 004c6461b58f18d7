// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package kv

import "github.com/pkg/errors"

// ErrKeyNotFound is never returned by Getter.Get — a missing key returns a
// nil value and a nil error (spec §4.1: "missing keys return None"). It
// exists for callers that need to distinguish "definitely absent" from
// "store unavailable" in logs.
var ErrKeyNotFound = errors.New("kv: key not found")

// Getter reads a single column. A miss returns (nil, nil).
type Getter interface {
	Get(col string, key []byte) ([]byte, error)
}

// Putter writes a single column.
type Putter interface {
	Put(col string, key, value []byte) error
}

// Deleter removes a single column entry.
type Deleter interface {
	Delete(col string, key []byte) error
}

// Cursor walks a column in key order, used by range scans (bloom index
// rewrites, canonical-number sweeps during reorg).
type Cursor interface {
	Seek(key []byte) (k, v []byte, err error)
	Next() (k, v []byte, err error)
	Close()
}

// Tx is a read-only view, stable for its lifetime.
type Tx interface {
	Getter
	Cursor(col string) (Cursor, error)
	Rollback()
}

// DBTransaction is the mutable staging area described in spec §4.1: callers
// stage puts/deletes into it, then hand it to DB.Write or DB.WriteBuffered
// for an atomic (or coalesced) commit. It is never partially applied.
type DBTransaction struct {
	puts    []kvOp
	deletes []kvOp
}

type kvOp struct {
	col   string
	key   []byte
	value []byte
}

func NewTransaction() *DBTransaction {
	return &DBTransaction{}
}

func (t *DBTransaction) Put(col string, key, value []byte) {
	cp := make([]byte, len(value))
	copy(cp, value)
	t.puts = append(t.puts, kvOp{col: col, key: append([]byte(nil), key...), value: cp})
}

func (t *DBTransaction) Delete(col string, key []byte) {
	t.deletes = append(t.deletes, kvOp{col: col, key: append([]byte(nil), key...)})
}

// Len reports the number of staged operations, used by callers batching
// many inserts into one DBTransaction before a single Write call.
func (t *DBTransaction) Len() int { return len(t.puts) + len(t.deletes) }

// ForEach replays every staged operation in put-then-delete order, the
// iteration hook backend implementations (memdb, mdbx) use to apply a
// DBTransaction without this package exporting its internal slices.
func (t *DBTransaction) ForEach(fn func(col string, key, value []byte, isDelete bool)) {
	for _, op := range t.puts {
		fn(op.col, op.key, op.value, false)
	}
	for _, op := range t.deletes {
		fn(op.col, op.key, nil, true)
	}
}

// RwDB is the façade every higher layer (trie, blockchain store, header
// chain) programs against. Write errors are fatal per spec §4.1 and must
// propagate to the caller, which logs and aborts the enclosing operation —
// it is never retried silently.
type RwDB interface {
	Getter

	// Write commits tx durably: every staged put/delete becomes visible to
	// subsequent Get calls and survives a restart.
	Write(tx *DBTransaction) error

	// WriteBuffered commits tx into an in-memory overlay coalesced with
	// any prior buffered writes; nothing is guaranteed durable until the
	// next Flush.
	WriteBuffered(tx *DBTransaction) error

	// Flush drains the buffered overlay to durable storage.
	Flush() error

	BeginRo() (Tx, error)

	Cursor(col string) (Cursor, error)

	Close() error
}
