// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package types

import (
	"github.com/aionnetwork/aion-lib/common"
	"github.com/aionnetwork/aion-lib/rlp"
)

// Account is the value an address resolves to in the account trie (spec
// §3 "Account"). CodeHash/TransformedCodeHash/ObjectGraphHash are
// content-addressed pointers into the Code/AVMGraph columns, never the
// bytes themselves — spec §9 "code and object-graph are content-addressed
// and live in the key-value store, referenced by hash".
type Account struct {
	Nonce       common.U256
	Balance     common.U256
	StorageRoot common.Hash
	CodeHash    common.Hash

	// TransformedCodeHash and ObjectGraphHash are populated only for
	// Class == ClassManaged (spec §3 invariant (b)).
	TransformedCodeHash *common.Hash
	ObjectGraphHash     *common.Hash

	Class common.AccountClass
}

// EmptyAccount returns the zero-valued account spec §3 invariant (a)
// describes: zero nonce, zero balance, the empty code hash, and the
// canonical empty-trie storage root.
func EmptyAccount(class common.AccountClass) Account {
	return Account{
		StorageRoot: common.EmptyRootHash,
		CodeHash:    common.EmptyCodeHash,
		Class:       class,
	}
}

// IsEmpty reports whether a matches spec §3 invariant (a): the state an
// account with no balance, no nonce activity and no code is indistinguishable
// from "never existed".
func (a *Account) IsEmpty() bool {
	return a.Nonce.IsZero() && a.Balance.IsZero() && a.CodeHash == common.EmptyCodeHash
}

// DeltaRoot computes H(storage-root || object-graph-hash), the value spec
// §3 invariant (b) says is "actually committed to the outer account trie"
// for managed accounts. hashFn is the content hash primitive supplied by
// the collaborator named in spec §1 ("cryptographic hashing ... out of
// scope"); core/state is the only caller and always passes the node's
// configured hash function.
func (a *Account) DeltaRoot(hashFn func([]byte) common.Hash) common.Hash {
	buf := make([]byte, 0, 64)
	buf = append(buf, a.StorageRoot.Bytes()...)
	if a.ObjectGraphHash != nil {
		buf = append(buf, a.ObjectGraphHash.Bytes()...)
	}
	return hashFn(buf)
}

// EncodeRLP serialises the account for storage in the account trie.
func (a *Account) EncodeRLP() []byte {
	var body []byte
	body = rlp.EncodeUint64(body, a.Nonce.Uint64())
	body = rlp.EncodeBytes(body, a.Balance.Bytes())
	body = rlp.EncodeBytes(body, a.StorageRoot.Bytes())
	body = rlp.EncodeBytes(body, a.CodeHash.Bytes())
	classByte := byte(a.Class)
	body = rlp.EncodeBytes(body, []byte{classByte})
	if a.TransformedCodeHash != nil {
		body = rlp.EncodeBytes(body, a.TransformedCodeHash.Bytes())
	} else {
		body = rlp.EncodeBytes(body, nil)
	}
	if a.ObjectGraphHash != nil {
		body = rlp.EncodeBytes(body, a.ObjectGraphHash.Bytes())
	} else {
		body = rlp.EncodeBytes(body, nil)
	}
	return rlp.List(nil, body)
}

// DecodeAccountRLP is the inverse of Account.EncodeRLP.
func DecodeAccountRLP(enc []byte) (*Account, error) {
	body, err := rlp.NewStream(enc).ReadList()
	if err != nil {
		return nil, err
	}
	s := rlp.NewStream(body)
	a := &Account{}

	nonce, err := s.ReadUint64()
	if err != nil {
		return nil, err
	}
	a.Nonce.SetUint64(nonce)

	balBytes, err := s.ReadBytes()
	if err != nil {
		return nil, err
	}
	a.Balance.SetBytes(balBytes)

	storageRoot, err := s.ReadBytes()
	if err != nil {
		return nil, err
	}
	a.StorageRoot = common.BytesToHash(storageRoot)

	codeHash, err := s.ReadBytes()
	if err != nil {
		return nil, err
	}
	a.CodeHash = common.BytesToHash(codeHash)

	classBytes, err := s.ReadBytes()
	if err != nil {
		return nil, err
	}
	if len(classBytes) == 1 {
		a.Class = common.AccountClass(classBytes[0])
	}

	transformed, err := s.ReadBytes()
	if err != nil {
		return nil, err
	}
	if len(transformed) > 0 {
		h := common.BytesToHash(transformed)
		a.TransformedCodeHash = &h
	}

	graph, err := s.ReadBytes()
	if err != nil {
		return nil, err
	}
	if len(graph) > 0 {
		h := common.BytesToHash(graph)
		a.ObjectGraphHash = &h
	}

	return a, nil
}
