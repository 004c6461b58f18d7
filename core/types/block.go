// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package types

import (
	"github.com/pkg/errors"

	"github.com/aionnetwork/aion-lib/common"
	"github.com/aionnetwork/aion-lib/rlp"
)

// SealType distinguishes the two proof-of-work families a header can
// carry; spec §4.5 step 2 keys the two-factor total-difficulty
// accumulation off a change in SealType between parent and child.
type SealType uint8

const (
	SealPoWEthash SealType = iota
	SealPoWEquihash
)

// Header carries everything spec §3 "Block" lists. Seal is a list of
// byte-strings per spec §6 ("conventionally [nonce, solution] for PoW
// blocks"); it is kept generic here so a future seal type need not change
// the Header shape.
type Header struct {
	ParentHash      common.Hash
	Number          uint64
	Author          common.Address
	StateRoot       common.Hash
	TxRoot          common.Hash
	ReceiptRoot     common.Hash
	LogsBloom       [256]byte
	Difficulty      common.U256
	GasUsed         uint64
	GasLimit        uint64
	Timestamp       uint64
	ExtraData       []byte
	SealType        SealType
	Seal            [][]byte
}

// mineHashBody encodes the header without its seal fields; its hash is the
// PoW input, spec §3: "mine_hash is the hash of header without seal
// fields".
func (h *Header) mineHashBody() []byte {
	var body []byte
	body = rlp.EncodeBytes(body, h.ParentHash.Bytes())
	body = rlp.EncodeUint64(body, h.Number)
	body = rlp.EncodeBytes(body, h.Author.Bytes())
	body = rlp.EncodeBytes(body, h.StateRoot.Bytes())
	body = rlp.EncodeBytes(body, h.TxRoot.Bytes())
	body = rlp.EncodeBytes(body, h.ReceiptRoot.Bytes())
	body = rlp.EncodeBytes(body, h.LogsBloom[:])
	body = rlp.EncodeBytes(body, h.Difficulty.Bytes())
	body = rlp.EncodeUint64(body, h.GasUsed)
	body = rlp.EncodeUint64(body, h.GasLimit)
	body = rlp.EncodeUint64(body, h.Timestamp)
	body = rlp.EncodeBytes(body, h.ExtraData)
	body = rlp.EncodeBytes(body, []byte{byte(h.SealType)})
	return body
}

// MineHash is the PoW input described by the GLOSSARY entry "Mine-hash".
func (h *Header) MineHash(hashFn func([]byte) common.Hash) common.Hash {
	return hashFn(rlp.List(nil, h.mineHashBody()))
}

// Hash is the header's full content hash, including the seal — the value
// used as block identity everywhere else in the node (parent links,
// canonical index, peer gossip).
func (h *Header) Hash(hashFn func([]byte) common.Hash) common.Hash {
	var sealBody []byte
	for _, s := range h.Seal {
		sealBody = rlp.EncodeBytes(sealBody, s)
	}
	full := append(h.mineHashBody(), rlp.List(nil, sealBody)...)
	return hashFn(rlp.List(nil, full))
}

// ValidateAgainstParent checks the header-only invariants from spec §3:
// number, gas-used and timestamp ordering. Seal verification (PoW) and
// state-root/receipt-root checks are the collaborator's and the
// executor's jobs respectively.
func (h *Header) ValidateAgainstParent(parent *Header) error {
	if h.Number != parent.Number+1 {
		return errors.Errorf("invalid block number: parent %d, got %d", parent.Number, h.Number)
	}
	if h.GasUsed > h.GasLimit {
		return errors.Errorf("gas used %d exceeds gas limit %d", h.GasUsed, h.GasLimit)
	}
	if h.Timestamp <= parent.Timestamp {
		return errors.Errorf("timestamp %d not after parent timestamp %d", h.Timestamp, parent.Timestamp)
	}
	return nil
}

// Block is a Header plus its ordered transaction list (spec §6: "[header,
// transactions]").
type Block struct {
	Header       *Header
	Transactions []*Transaction
}

func (b *Block) Hash(hashFn func([]byte) common.Hash) common.Hash {
	return b.Header.Hash(hashFn)
}

// EncodeRLP serialises the block body as spec §6 describes.
func (b *Block) EncodeRLP() []byte {
	var txsBody []byte
	for _, tx := range b.Transactions {
		txsBody = append(txsBody, tx.EncodeRLP()...)
	}
	return rlp.List(nil, append(b.headerEncode(), rlp.List(nil, txsBody)...))
}

func (b *Block) headerEncode() []byte {
	h := b.Header
	var sealBody []byte
	for _, s := range h.Seal {
		sealBody = rlp.EncodeBytes(sealBody, s)
	}
	full := append(h.mineHashBody(), rlp.List(nil, sealBody)...)
	return rlp.List(nil, full)
}

// SealedBlock pairs a mined header with the seal fields attached by the
// miner's submit-seal path (spec §4.8 "Submission").
type SealedBlock = Block

// BlockDetails is the canonical-index value keyed by block hash (spec §3
// "Canonical index").
type BlockDetails struct {
	Parent          common.Hash
	Children        []common.Hash
	TotalDifficulty common.U256
	Number          uint64
}

// TransactionAddress locates a transaction inside its including block
// (spec §3 "Canonical index" / §8 invariant 3).
type TransactionAddress struct {
	BlockHash common.Hash
	Index     uint32
}
