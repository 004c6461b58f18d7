// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package mdbx is the durable kv.RwDB backend, built on
// github.com/erigontech/mdbx-go — the embedded engine the teacher uses for
// every on-disk column database. One MDBX sub-database (DBI) backs each
// kv.Tables entry; WriteBuffered coalesces writes into an in-process
// overlay that reaches the environment only on Flush, so a burst of
// small buffered puts costs one fsync instead of many.
package mdbx

import (
	"sync"

	"github.com/erigontech/mdbx-go/mdbx"
	"github.com/pkg/errors"

	"github.com/aionnetwork/aion-lib/kv"
)

// DB wraps an mdbx.Env opened over the node's chaindata directory.
type DB struct {
	env *mdbx.Env
	dbi map[string]mdbx.DBI

	mu       sync.Mutex
	buffered *kv.DBTransaction
}

// Open creates or opens the chaindata environment at path, and ensures
// every column in kv.Tables has a backing DBI.
func Open(path string) (*DB, error) {
	env, err := mdbx.NewEnv()
	if err != nil {
		return nil, errors.Wrap(err, "mdbx: new env")
	}
	if err := env.SetOption(mdbx.OptMaxDB, uint64(len(kv.Tables))); err != nil {
		return nil, errors.Wrap(err, "mdbx: set max dbs")
	}
	if err := env.Open(path, mdbx.NoTLS|mdbx.Coalesce|mdbx.LifoReclaim, 0664); err != nil {
		return nil, errors.Wrapf(err, "mdbx: open %s", path)
	}

	db := &DB{env: env, dbi: make(map[string]mdbx.DBI, len(kv.Tables))}
	if err := db.env.Update(func(txn *mdbx.Txn) error {
		for _, col := range kv.Tables {
			dbi, err := txn.OpenDBI(col, mdbx.Create, nil, nil)
			if err != nil {
				return errors.Wrapf(err, "mdbx: open dbi %s", col)
			}
			db.dbi[col] = dbi
		}
		return nil
	}); err != nil {
		env.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) dbiOf(col string) (mdbx.DBI, error) {
	dbi, ok := d.dbi[col]
	if !ok {
		return 0, errors.Errorf("mdbx: unknown column %q", col)
	}
	return dbi, nil
}

func (d *DB) Get(col string, key []byte) ([]byte, error) {
	dbi, err := d.dbiOf(col)
	if err != nil {
		return nil, err
	}
	var out []byte
	err = d.env.View(func(txn *mdbx.Txn) error {
		v, err := txn.Get(dbi, key)
		if mdbx.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "mdbx: get %s", col)
	}
	return out, nil
}

// Write commits tx durably in a single MDBX transaction. Per spec §4.1 this
// error is fatal to the caller's operation — it is returned unwrapped of
// its fatality, only annotated with context.
func (d *DB) Write(tx *kv.DBTransaction) error {
	err := d.env.Update(func(txn *mdbx.Txn) error {
		var opErr error
		tx.ForEach(func(col string, key, value []byte, isDelete bool) {
			if opErr != nil {
				return
			}
			dbi, err := d.dbiOf(col)
			if err != nil {
				opErr = err
				return
			}
			if isDelete {
				if err := txn.Del(dbi, key, nil); err != nil && !mdbx.IsNotFound(err) {
					opErr = err
				}
				return
			}
			if err := txn.Put(dbi, key, value, 0); err != nil {
				opErr = err
			}
		})
		return opErr
	})
	if err != nil {
		return errors.Wrap(err, "mdbx: write")
	}
	return nil
}

// WriteBuffered stages tx into an in-memory overlay. Nothing durable
// changes until Flush.
func (d *DB) WriteBuffered(tx *kv.DBTransaction) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.buffered == nil {
		d.buffered = kv.NewTransaction()
	}
	tx.ForEach(func(col string, key, value []byte, isDelete bool) {
		if isDelete {
			d.buffered.Delete(col, key)
		} else {
			d.buffered.Put(col, key, value)
		}
	})
	return nil
}

// Flush drains the buffered overlay into one durable MDBX transaction.
func (d *DB) Flush() error {
	d.mu.Lock()
	pending := d.buffered
	d.buffered = nil
	d.mu.Unlock()

	if pending == nil || pending.Len() == 0 {
		return nil
	}
	return d.Write(pending)
}

func (d *DB) BeginRo() (kv.Tx, error) {
	txn, err := d.env.BeginTxn(nil, mdbx.Readonly)
	if err != nil {
		return nil, errors.Wrap(err, "mdbx: begin ro")
	}
	return &roTx{db: d, txn: txn}, nil
}

func (d *DB) Cursor(col string) (kv.Cursor, error) {
	tx, err := d.BeginRo()
	if err != nil {
		return nil, err
	}
	return tx.Cursor(col)
}

func (d *DB) Close() error {
	d.env.Close()
	return nil
}

type roTx struct {
	db  *DB
	txn *mdbx.Txn
}

func (t *roTx) Get(col string, key []byte) ([]byte, error) {
	dbi, err := t.db.dbiOf(col)
	if err != nil {
		return nil, err
	}
	v, err := t.txn.Get(dbi, key)
	if mdbx.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), v...), nil
}

func (t *roTx) Cursor(col string) (kv.Cursor, error) {
	dbi, err := t.db.dbiOf(col)
	if err != nil {
		return nil, err
	}
	c, err := t.txn.OpenCursor(dbi)
	if err != nil {
		return nil, err
	}
	return &mdbxCursor{c: c}, nil
}

func (t *roTx) Rollback() { t.txn.Abort() }

type mdbxCursor struct {
	c *mdbx.Cursor
}

func (c *mdbxCursor) Seek(key []byte) (k, v []byte, err error) {
	k, v, err = c.c.Get(key, nil, mdbx.SetRange)
	if mdbx.IsNotFound(err) {
		return nil, nil, nil
	}
	return k, v, err
}

func (c *mdbxCursor) Next() (k, v []byte, err error) {
	k, v, err = c.c.Get(nil, nil, mdbx.Next)
	if mdbx.IsNotFound(err) {
		return nil, nil, nil
	}
	return k, v, err
}

func (c *mdbxCursor) Close() { c.c.Close() }
