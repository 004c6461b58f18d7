// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aionnetwork/aion-lib/common"
	aioncrypto "github.com/aionnetwork/aion-lib/crypto"
	"github.com/aionnetwork/aion-lib/kv"
	"github.com/aionnetwork/aion-lib/kv/memdb"
)

func newTestState(t *testing.T) (*State, *memdb.DB) {
	t.Helper()
	db := memdb.New()
	s := New(db, kv.State, kv.Code, kv.AVMGraph, aioncrypto.Hash256, common.Hash{})
	return s, db
}

func TestBalanceReadYourOwnWrite(t *testing.T) {
	s, _ := newTestState(t)
	addr := common.BytesToAddress([]byte("alice"))

	bal, err := s.Balance(addr)
	require.NoError(t, err)
	require.True(t, bal.IsZero())

	require.NoError(t, s.AddBalance(addr, *common.NewU256(100), ForceCreate, nil))
	bal, err = s.Balance(addr)
	require.NoError(t, err)
	require.Equal(t, uint64(100), bal.Uint64())
}

// TestRevertToCheckpointRestoresWholesale exercises invariant (2): a revert
// restores the pre-checkpoint account wholesale, including its storage
// writes, and never bleeds into a sibling account's cached values.
func TestRevertToCheckpointRestoresWholesale(t *testing.T) {
	s, _ := newTestState(t)
	alice := common.BytesToAddress([]byte("alice"))
	bob := common.BytesToAddress([]byte("bob"))

	require.NoError(t, s.AddBalance(alice, *common.NewU256(50), ForceCreate, nil))
	require.NoError(t, s.AddBalance(bob, *common.NewU256(50), ForceCreate, nil))

	s.Checkpoint()
	require.NoError(t, s.AddBalance(alice, *common.NewU256(25), ForceCreate, nil))
	require.NoError(t, s.SetStorage(alice, common.BytesToHash([]byte("k")), common.BytesToHash([]byte("v"))))

	bal, err := s.Balance(alice)
	require.NoError(t, err)
	require.Equal(t, uint64(75), bal.Uint64())

	s.RevertToCheckpoint()

	bal, err = s.Balance(alice)
	require.NoError(t, err)
	require.Equal(t, uint64(50), bal.Uint64(), "revert must restore alice's pre-checkpoint balance")

	v, err := s.StorageAt(alice, common.BytesToHash([]byte("k")))
	require.NoError(t, err)
	require.True(t, v.IsZero(), "revert must discard the storage write made inside the checkpoint")

	bobBal, err := s.Balance(bob)
	require.NoError(t, err)
	require.Equal(t, uint64(50), bobBal.Uint64(), "revert must not disturb a sibling account never touched in that frame")
}

func TestDiscardCheckpointMergesIntoParent(t *testing.T) {
	s, _ := newTestState(t)
	addr := common.BytesToAddress([]byte("carol"))
	require.NoError(t, s.AddBalance(addr, *common.NewU256(10), ForceCreate, nil))

	s.Checkpoint() // outer
	require.NoError(t, s.AddBalance(addr, *common.NewU256(5), ForceCreate, nil))
	s.Checkpoint() // inner
	require.NoError(t, s.AddBalance(addr, *common.NewU256(5), ForceCreate, nil))
	s.DiscardCheckpoint() // drop inner, keep its effects

	bal, err := s.Balance(addr)
	require.NoError(t, err)
	require.Equal(t, uint64(20), bal.Uint64())

	s.RevertToCheckpoint() // revert outer: back to 10
	bal, err = s.Balance(addr)
	require.NoError(t, err)
	require.Equal(t, uint64(10), bal.Uint64())
}

// TestSetStorageZeroPromotesToRemoveForNative is invariant (4).
func TestSetStorageZeroPromotesToRemoveForNative(t *testing.T) {
	s, _ := newTestState(t)
	addr := common.BytesToAddress([]byte("native-acct"))
	require.NoError(t, s.NewContract(addr, common.ClassNative, common.U256{}))

	key := common.BytesToHash([]byte("slot"))
	require.NoError(t, s.SetStorage(addr, key, common.BytesToHash([]byte("value"))))
	v, err := s.StorageAt(addr, key)
	require.NoError(t, err)
	require.False(t, v.IsZero())

	require.NoError(t, s.SetStorage(addr, key, common.Hash{}))
	v, err = s.StorageAt(addr, key)
	require.NoError(t, err)
	require.True(t, v.IsZero())
}

func TestCommitFlushesStorageBeforeAccountRow(t *testing.T) {
	s, db := newTestState(t)
	addr := common.BytesToAddress([]byte("dave"))
	require.NoError(t, s.NewContract(addr, common.ClassNative, common.U256{}))
	key := common.BytesToHash([]byte("k1"))
	require.NoError(t, s.SetStorage(addr, key, common.BytesToHash([]byte("v1"))))

	tx := kv.NewTransaction()
	root, err := s.Commit(tx)
	require.NoError(t, err)
	require.NoError(t, db.Write(tx))

	reopened := New(db, kv.State, kv.Code, kv.AVMGraph, aioncrypto.Hash256, root)
	v, err := reopened.StorageAt(addr, key)
	require.NoError(t, err)
	require.False(t, v.IsZero(), "committed storage must survive a fresh State opened at the new root")
}

// TestManagedAccountStorageRootRoundTripsThroughDeltaRoot resolves the
// "dual-written" Open Question: a managed account's trie row stores the
// delta-root, and the real storage root is only recoverable via AVMGraph.
func TestManagedAccountStorageRootRoundTripsThroughDeltaRoot(t *testing.T) {
	s, db := newTestState(t)
	addr := common.BytesToAddress([]byte("managed-acct"))
	require.NoError(t, s.NewContract(addr, common.ClassManaged, common.U256{}))
	key := common.BytesToHash([]byte("slot"))
	require.NoError(t, s.SetStorage(addr, key, common.BytesToHash([]byte("value"))))
	graphHash := common.BytesToHash([]byte("graph"))
	require.NoError(t, s.SetObjectGraphHash(addr, graphHash))

	tx := kv.NewTransaction()
	root, err := s.Commit(tx)
	require.NoError(t, err)
	require.NoError(t, db.Write(tx))

	reopened := New(db, kv.State, kv.Code, kv.AVMGraph, aioncrypto.Hash256, root)
	v, err := reopened.StorageAt(addr, key)
	require.NoError(t, err)
	require.Equal(t, common.BytesToHash([]byte("value")), v, "managed storage must resolve through the delta-root indirection")
}
