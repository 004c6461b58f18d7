// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package trie

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aionnetwork/aion-lib/common"
	aioncrypto "github.com/aionnetwork/aion-lib/crypto"
	"github.com/aionnetwork/aion-lib/kv"
	"github.com/aionnetwork/aion-lib/kv/memdb"
)

func TestInsertGetDelete(t *testing.T) {
	db := memdb.New()
	tr := New(db, kv.State, aioncrypto.Hash256)

	v, err := tr.Get([]byte("missing"))
	require.NoError(t, err)
	require.Nil(t, v)

	require.NoError(t, tr.Insert([]byte("foo"), []byte("bar")))
	require.NoError(t, tr.Insert([]byte("food"), []byte("baz")))
	require.NoError(t, tr.Insert([]byte("bar"), []byte("qux")))

	v, err = tr.Get([]byte("foo"))
	require.NoError(t, err)
	require.Equal(t, []byte("bar"), v)

	v, err = tr.Get([]byte("food"))
	require.NoError(t, err)
	require.Equal(t, []byte("baz"), v)

	require.NoError(t, tr.Delete([]byte("foo")))
	v, err = tr.Get([]byte("foo"))
	require.NoError(t, err)
	require.Nil(t, v)

	v, err = tr.Get([]byte("food"))
	require.NoError(t, err)
	require.Equal(t, []byte("baz"), v, "deleting a key must not disturb a sibling sharing its prefix")
}

func TestCommitAndReopenPreservesData(t *testing.T) {
	db := memdb.New()
	tr := New(db, kv.State, aioncrypto.Hash256)
	require.NoError(t, tr.Insert([]byte("a"), []byte("1")))
	require.NoError(t, tr.Insert([]byte("b"), []byte("2")))

	tx := kv.NewTransaction()
	root := tr.Commit(tx)
	require.NoError(t, db.Write(tx))
	require.NotEqual(t, common.EmptyRootHash, root)

	reopened := Open(db, kv.State, aioncrypto.Hash256, root)
	v, err := reopened.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)

	v, err = reopened.Get([]byte("b"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), v)
}

func TestEmptyTrieRootIsStable(t *testing.T) {
	db := memdb.New()
	tr := New(db, kv.State, aioncrypto.Hash256)
	require.Equal(t, common.EmptyRootHash, tr.Root())
}

func TestProveReturnsPathToValue(t *testing.T) {
	db := memdb.New()
	tr := New(db, kv.State, aioncrypto.Hash256)
	require.NoError(t, tr.Insert([]byte("k1"), []byte("v1")))
	require.NoError(t, tr.Insert([]byte("k2"), []byte("v2")))

	proof, value, err := tr.Prove([]byte("k1"))
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), value)
	require.NotEmpty(t, proof)

	_, value, err = tr.Prove([]byte("nope"))
	require.NoError(t, err)
	require.Nil(t, value)
}

func TestRawAccessorsDoNotRehash(t *testing.T) {
	db := memdb.New()
	tr := New(db, kv.State, aioncrypto.Hash256)
	path := make([]byte, 32)
	path[0] = 0xaa

	require.NoError(t, tr.InsertRaw(path, []byte("storage-value")))
	v, err := tr.GetRaw(path)
	require.NoError(t, err)
	require.Equal(t, []byte("storage-value"), v)

	hashed, err := tr.Get(path)
	require.NoError(t, err)
	require.Nil(t, hashed, "Get hashes its key first, so a raw-path insert must not be visible through it")
}
