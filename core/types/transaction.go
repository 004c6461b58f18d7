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

// ActionKind distinguishes a contract-creation transaction from a call
// into an existing account (spec §3 "Transaction").
type ActionKind uint8

const (
	ActionCall ActionKind = iota
	ActionCreate
)

// Action is (Create) or (Call, address). Create encodes as empty bytes on
// the wire (spec §6: "action=Create is encoded as empty bytes").
type Action struct {
	Kind ActionKind
	To   common.Address
}

func CallTo(addr common.Address) Action { return Action{Kind: ActionCall, To: addr} }
func CreateAction() Action              { return Action{Kind: ActionCreate} }

func (a Action) IsCreate() bool { return a.Kind == ActionCreate }

// Canonical byte-length ceilings from spec §3 "Transaction" invariants.
const (
	MaxNonceLen     = 16
	MaxValueLen     = 16
	MaxTimestampLen = 8
	SignatureLen    = 96
)

// Transaction is the signed tuple described in spec §3. Fields are
// exported and can be changed after decoding; ValidateEncodingLengths
// re-checks the canonical-length invariants and runs on every decode.
type Transaction struct {
	Nonce     common.U256
	Action    Action
	Value     common.U256
	Data      []byte
	Timestamp uint64 // big-endian, <= MaxTimestampLen bytes on the wire
	Gas       uint64
	GasPrice  uint64
	Type      uint8
	Signature [SignatureLen]byte
}

// ValidateEncodingLengths enforces spec §3 invariants: "canonical byte
// lengths for nonce, value <= 16; timestamp <= 8; signature length = 96".
func (tx *Transaction) ValidateEncodingLengths() error {
	if len(minimalBytes(tx.Nonce.Bytes())) > MaxNonceLen {
		return errors.New("invalid nonce length")
	}
	if len(minimalBytes(tx.Value.Bytes())) > MaxValueLen {
		return errors.New("invalid value length")
	}
	if byteLenOfUint64(tx.Timestamp) > MaxTimestampLen {
		return errors.New("invalid timestamp length")
	}
	return nil
}

func minimalBytes(b []byte) []byte {
	i := 0
	for i < len(b) && b[i] == 0 {
		i++
	}
	return b[i:]
}

func byteLenOfUint64(v uint64) int {
	n := 0
	for v > 0 {
		n++
		v >>= 8
	}
	return n
}

// Hash is the content address of the transaction's encoding, used as the
// TxLookup key (spec §6).
func (tx *Transaction) Hash(hashFn func([]byte) common.Hash) common.Hash {
	return hashFn(tx.EncodeRLP())
}

// EncodeRLP serialises the transaction as the 9-element list from spec §6:
// [nonce, action, value, data, timestamp, gas, gas-price, type, signature].
func (tx *Transaction) EncodeRLP() []byte {
	var body []byte
	body = rlp.EncodeBytes(body, minimalBytes(tx.Nonce.Bytes()))
	if tx.Action.IsCreate() {
		body = rlp.EncodeBytes(body, nil)
	} else {
		body = rlp.EncodeBytes(body, tx.Action.To.Bytes())
	}
	body = rlp.EncodeBytes(body, minimalBytes(tx.Value.Bytes()))
	body = rlp.EncodeBytes(body, tx.Data)
	body = rlp.EncodeUint64(body, tx.Timestamp)
	body = rlp.EncodeUint64(body, tx.Gas)
	body = rlp.EncodeUint64(body, tx.GasPrice)
	body = rlp.EncodeBytes(body, []byte{tx.Type})
	body = rlp.EncodeBytes(body, tx.Signature[:])
	return rlp.List(nil, body)
}

// DecodeTransactionRLP is the inverse of Transaction.EncodeRLP.
func DecodeTransactionRLP(enc []byte) (*Transaction, error) {
	body, err := rlp.NewStream(enc).ReadList()
	if err != nil {
		return nil, err
	}
	s := rlp.NewStream(body)
	tx := &Transaction{}

	nonceBytes, err := s.ReadBytes()
	if err != nil {
		return nil, err
	}
	tx.Nonce.SetBytes(nonceBytes)

	toBytes, err := s.ReadBytes()
	if err != nil {
		return nil, err
	}
	if len(toBytes) == 0 {
		tx.Action = CreateAction()
	} else {
		tx.Action = CallTo(common.BytesToAddress(toBytes))
	}

	valueBytes, err := s.ReadBytes()
	if err != nil {
		return nil, err
	}
	tx.Value.SetBytes(valueBytes)

	data, err := s.ReadBytes()
	if err != nil {
		return nil, err
	}
	tx.Data = append([]byte(nil), data...)

	if tx.Timestamp, err = s.ReadUint64(); err != nil {
		return nil, err
	}
	if tx.Gas, err = s.ReadUint64(); err != nil {
		return nil, err
	}
	if tx.GasPrice, err = s.ReadUint64(); err != nil {
		return nil, err
	}

	typeBytes, err := s.ReadBytes()
	if err != nil {
		return nil, err
	}
	if len(typeBytes) == 1 {
		tx.Type = typeBytes[0]
	}

	sig, err := s.ReadBytes()
	if err != nil {
		return nil, err
	}
	if len(sig) != SignatureLen {
		return nil, errors.Errorf("invalid signature length %d", len(sig))
	}
	copy(tx.Signature[:], sig)

	if err := tx.ValidateEncodingLengths(); err != nil {
		return nil, err
	}
	return tx, nil
}

// IntrinsicDataGas sums the EIP-2028-style per-byte gas cost from spec
// §4.4 pre-flight step 2: "21 per zero byte, 51 per non-zero byte".
func (tx *Transaction) IntrinsicDataGas() uint64 {
	var zero, nonZero uint64
	for _, b := range tx.Data {
		if b == 0 {
			zero++
		} else {
			nonZero++
		}
	}
	return zero*21 + nonZero*51
}
