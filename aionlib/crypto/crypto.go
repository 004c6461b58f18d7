// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package crypto supplies the hashing primitive spec §1 lists as an
// external collaborator ("cryptographic hashing ... out of scope"). Aion
// nodes hash with Blake2b-256; every package that needs a
// func([]byte) common.Hash to pass into trie.New, core/state or the
// executor takes crypto.Hash256.
package crypto

import (
	"golang.org/x/crypto/blake2b"

	"github.com/aionnetwork/aion-lib/common"
)

// Hash256 is the node's content-hash primitive: Blake2b with a 32-byte
// digest. Matches the constant aionlib/common computes EmptyRootHash and
// EmptyCodeHash with.
func Hash256(data []byte) common.Hash {
	sum := blake2b.Sum256(data)
	return common.Hash(sum)
}
