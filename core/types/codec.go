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

// EncodeRLP serialises the full header, including seal fields, for storage
// under the Headers column (spec §4.1/§6). Block.headerEncode reuses the
// same shape for the embedded header inside a block's RLP.
func (h *Header) EncodeRLP() []byte {
	var sealBody []byte
	for _, s := range h.Seal {
		sealBody = rlp.EncodeBytes(sealBody, s)
	}
	full := append(h.mineHashBody(), rlp.List(nil, sealBody)...)
	return rlp.List(nil, full)
}

// DecodeHeaderRLP is the inverse of Header.EncodeRLP.
func DecodeHeaderRLP(enc []byte) (*Header, error) {
	body, err := rlp.NewStream(enc).ReadList()
	if err != nil {
		return nil, err
	}
	s := rlp.NewStream(body)
	h := &Header{}

	read := func() ([]byte, error) { return s.ReadBytes() }

	b, err := read()
	if err != nil {
		return nil, err
	}
	h.ParentHash = common.BytesToHash(b)

	if h.Number, err = s.ReadUint64(); err != nil {
		return nil, err
	}
	if b, err = read(); err != nil {
		return nil, err
	}
	h.Author = common.BytesToAddress(b)
	if b, err = read(); err != nil {
		return nil, err
	}
	h.StateRoot = common.BytesToHash(b)
	if b, err = read(); err != nil {
		return nil, err
	}
	h.TxRoot = common.BytesToHash(b)
	if b, err = read(); err != nil {
		return nil, err
	}
	h.ReceiptRoot = common.BytesToHash(b)
	if b, err = read(); err != nil {
		return nil, err
	}
	copy(h.LogsBloom[:], b)
	if b, err = read(); err != nil {
		return nil, err
	}
	h.Difficulty.SetBytes(b)
	if h.GasUsed, err = s.ReadUint64(); err != nil {
		return nil, err
	}
	if h.GasLimit, err = s.ReadUint64(); err != nil {
		return nil, err
	}
	if h.Timestamp, err = s.ReadUint64(); err != nil {
		return nil, err
	}
	if b, err = read(); err != nil {
		return nil, err
	}
	h.ExtraData = append([]byte(nil), b...)
	if b, err = read(); err != nil {
		return nil, err
	}
	if len(b) == 1 {
		h.SealType = SealType(b[0])
	}

	sealListBody, err := s.ReadList()
	if err != nil {
		return nil, err
	}
	sealStream := rlp.NewStream(sealListBody)
	for !sealStream.Done() {
		part, err := sealStream.ReadBytes()
		if err != nil {
			return nil, err
		}
		h.Seal = append(h.Seal, append([]byte(nil), part...))
	}
	return h, nil
}

// DecodeBlockRLP is the inverse of Block.EncodeRLP.
func DecodeBlockRLP(enc []byte) (*Block, error) {
	body, err := rlp.NewStream(enc).ReadList()
	if err != nil {
		return nil, err
	}
	s := rlp.NewStream(body)
	headerBody, err := s.ReadList()
	if err != nil {
		return nil, err
	}
	header, err := DecodeHeaderRLP(rlp.List(nil, headerBody))
	if err != nil {
		return nil, err
	}
	txsBody, err := s.ReadList()
	if err != nil {
		return nil, err
	}
	txStream := rlp.NewStream(txsBody)
	var txs []*Transaction
	for !txStream.Done() {
		txListBody, err := txStream.ReadList()
		if err != nil {
			return nil, err
		}
		tx, err := DecodeTransactionRLP(rlp.List(nil, txListBody))
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return &Block{Header: header, Transactions: txs}, nil
}

// EncodeRLP serialises BlockDetails, the canonical-index value from spec §3
// ("block hash -> details {total-difficulty, parent, children, number}").
func (d *BlockDetails) EncodeRLP() []byte {
	var body []byte
	body = rlp.EncodeBytes(body, d.Parent.Bytes())
	var childrenBody []byte
	for _, c := range d.Children {
		childrenBody = rlp.EncodeBytes(childrenBody, c.Bytes())
	}
	body = rlp.List(body, childrenBody)
	body = rlp.EncodeBytes(body, d.TotalDifficulty.Bytes())
	body = rlp.EncodeUint64(body, d.Number)
	return rlp.List(nil, body)
}

// DecodeBlockDetailsRLP is the inverse of BlockDetails.EncodeRLP.
func DecodeBlockDetailsRLP(enc []byte) (*BlockDetails, error) {
	body, err := rlp.NewStream(enc).ReadList()
	if err != nil {
		return nil, err
	}
	s := rlp.NewStream(body)
	d := &BlockDetails{}

	b, err := s.ReadBytes()
	if err != nil {
		return nil, err
	}
	d.Parent = common.BytesToHash(b)

	childrenBody, err := s.ReadList()
	if err != nil {
		return nil, err
	}
	cs := rlp.NewStream(childrenBody)
	for !cs.Done() {
		cb, err := cs.ReadBytes()
		if err != nil {
			return nil, err
		}
		d.Children = append(d.Children, common.BytesToHash(cb))
	}

	tdBytes, err := s.ReadBytes()
	if err != nil {
		return nil, err
	}
	d.TotalDifficulty.SetBytes(tdBytes)

	if d.Number, err = s.ReadUint64(); err != nil {
		return nil, err
	}
	return d, nil
}

// EncodeRLP serialises TransactionAddress (spec §6: "tx-hash ->
// TransactionAddress").
func (a *TransactionAddress) EncodeRLP() []byte {
	var body []byte
	body = rlp.EncodeBytes(body, a.BlockHash.Bytes())
	body = rlp.EncodeUint64(body, uint64(a.Index))
	return rlp.List(nil, body)
}

// DecodeTransactionAddressRLP is the inverse of TransactionAddress.EncodeRLP.
func DecodeTransactionAddressRLP(enc []byte) (*TransactionAddress, error) {
	body, err := rlp.NewStream(enc).ReadList()
	if err != nil {
		return nil, err
	}
	s := rlp.NewStream(body)
	a := &TransactionAddress{}

	b, err := s.ReadBytes()
	if err != nil {
		return nil, err
	}
	a.BlockHash = common.BytesToHash(b)

	idx, err := s.ReadUint64()
	if err != nil {
		return nil, err
	}
	a.Index = uint32(idx)
	return a, nil
}

// encodeBody serialises one Log.
func (l *Log) encodeBody() []byte {
	var body []byte
	body = rlp.EncodeBytes(body, l.Address.Bytes())
	var topicsBody []byte
	for _, t := range l.Topics {
		topicsBody = rlp.EncodeBytes(topicsBody, t.Bytes())
	}
	body = rlp.List(body, topicsBody)
	body = rlp.EncodeBytes(body, l.Data)
	return body
}

func decodeLog(s *rlp.Stream) (Log, error) {
	var l Log
	b, err := s.ReadBytes()
	if err != nil {
		return l, err
	}
	l.Address = common.BytesToAddress(b)

	topicsBody, err := s.ReadList()
	if err != nil {
		return l, err
	}
	ts := rlp.NewStream(topicsBody)
	for !ts.Done() {
		tb, err := ts.ReadBytes()
		if err != nil {
			return l, err
		}
		l.Topics = append(l.Topics, common.BytesToHash(tb))
	}

	if l.Data, err = s.ReadBytes(); err != nil {
		return l, err
	}
	l.Data = append([]byte(nil), l.Data...)
	return l, nil
}

// EncodeRLP serialises one Receipt (spec §3 "Receipt").
func (r *Receipt) EncodeRLP() []byte {
	var body []byte
	body = rlp.EncodeBytes(body, r.PostStateRoot.Bytes())
	body = rlp.EncodeUint64(body, r.CumulativeGas)
	body = rlp.EncodeUint64(body, r.GasUsed)
	body = rlp.EncodeBytes(body, r.Fee.Bytes())
	var logsBody []byte
	for i := range r.Logs {
		logsBody = rlp.List(logsBody, r.Logs[i].encodeBody())
	}
	body = rlp.List(body, logsBody)
	body = rlp.EncodeBytes(body, r.Output)
	body = rlp.EncodeBytes(body, []byte(r.Error))
	return rlp.List(nil, body)
}

func decodeReceipt(s *rlp.Stream) (Receipt, error) {
	var r Receipt
	b, err := s.ReadBytes()
	if err != nil {
		return r, err
	}
	r.PostStateRoot = common.BytesToHash(b)

	if r.CumulativeGas, err = s.ReadUint64(); err != nil {
		return r, err
	}
	if r.GasUsed, err = s.ReadUint64(); err != nil {
		return r, err
	}
	feeBytes, err := s.ReadBytes()
	if err != nil {
		return r, err
	}
	r.Fee.SetBytes(feeBytes)

	logsBody, err := s.ReadList()
	if err != nil {
		return r, err
	}
	ls := rlp.NewStream(logsBody)
	for !ls.Done() {
		logBody, err := ls.ReadList()
		if err != nil {
			return r, err
		}
		log, err := decodeLog(rlp.NewStream(logBody))
		if err != nil {
			return r, err
		}
		r.Logs = append(r.Logs, log)
	}

	if r.Output, err = s.ReadBytes(); err != nil {
		return r, err
	}
	r.Output = append([]byte(nil), r.Output...)

	errBytes, err := s.ReadBytes()
	if err != nil {
		return r, err
	}
	r.Error = string(errBytes)
	return r, nil
}

// EncodeRLP serialises BlockReceipts, the ordered per-block list stored
// under the block hash (spec §3).
func (rs BlockReceipts) EncodeRLP() []byte {
	var body []byte
	for i := range rs {
		body = append(body, rs[i].EncodeRLP()...)
	}
	return rlp.List(nil, body)
}

// DecodeBlockReceiptsRLP is the inverse of BlockReceipts.EncodeRLP.
func DecodeBlockReceiptsRLP(enc []byte) (BlockReceipts, error) {
	body, err := rlp.NewStream(enc).ReadList()
	if err != nil {
		return nil, err
	}
	s := rlp.NewStream(body)
	var rs BlockReceipts
	for !s.Done() {
		recBody, err := s.ReadList()
		if err != nil {
			return nil, err
		}
		r, err := decodeReceipt(rlp.NewStream(recBody))
		if err != nil {
			return nil, err
		}
		rs = append(rs, r)
	}
	return rs, nil
}
