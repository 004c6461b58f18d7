// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package types

import "github.com/aionnetwork/aion-lib/common"

// Log is one event emitted during execution; it is the unit the bloom
// index (spec §4.5) summarises.
type Log struct {
	Address common.Address
	Topics  []common.Hash
	Data    []byte
}

// Receipt is the per-transaction outcome record from spec §3 "Receipt".
type Receipt struct {
	PostStateRoot common.Hash
	CumulativeGas uint64
	GasUsed       uint64
	Fee           common.U256
	Logs          []Log
	Output        []byte
	Error         string // empty on success
}

// BlockReceipts is the ordered per-block list, stored under the block
// hash (spec §3).
type BlockReceipts []Receipt

// Bloom ORs every log's address/topics into a 2048-bit filter, the coarse
// per-height index spec §4.5 describes ("blocks_with_bloom").
func (rs BlockReceipts) Bloom(hashFn func([]byte) common.Hash) [256]byte {
	var bloom [256]byte
	add := func(b []byte) {
		h := hashFn(b)
		for i := 0; i < 3; i++ {
			bitPos := (uint(h[2*i])<<8 | uint(h[2*i+1])) & 2047
			bloom[255-bitPos/8] |= 1 << (bitPos % 8)
		}
	}
	for _, r := range rs {
		for _, l := range r.Logs {
			add(l.Address.Bytes())
			for _, t := range l.Topics {
				add(t.Bytes())
			}
		}
	}
	return bloom
}

// BloomContains reports whether candidate might be present in bloom — a
// false positive is possible, a false negative is not, the usual bloom
// contract blocks_with_bloom relies on.
func BloomContains(bloom [256]byte, candidate []byte, hashFn func([]byte) common.Hash) bool {
	h := hashFn(candidate)
	for i := 0; i < 3; i++ {
		bitPos := (uint(h[2*i])<<8 | uint(h[2*i+1])) & 2047
		if bloom[255-bitPos/8]&(1<<(bitPos%8)) == 0 {
			return false
		}
	}
	return true
}
