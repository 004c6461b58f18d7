// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-aion is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.

// Package common holds the identifiers shared by every layer of the node:
// content-addressed hashes, 32-byte accounts, and the fixed-width integers
// used for balances, gas and difficulty.
package common

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

const (
	HashLength    = 32
	AddressLength = 32
)

// Hash is a 32-byte content-addressed identifier.
type Hash [HashLength]byte

func BytesToHash(b []byte) (h Hash) {
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

func (h Hash) Bytes() []byte  { return h[:] }
func (h Hash) IsZero() bool   { return h == (Hash{}) }
func (h Hash) String() string { return "0x" + hex.EncodeToString(h[:]) }

// MarshalText and UnmarshalText let Hash serve as a JSON object key or
// value (encoding/json defers to encoding.TextMarshaler for map keys),
// and as a TOML scalar for cmd/gaion's config file.
func (h Hash) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

func (h *Hash) UnmarshalText(text []byte) error {
	b, err := decodeHexText(text, HashLength)
	if err != nil {
		return fmt.Errorf("common.Hash: %w", err)
	}
	*h = BytesToHash(b)
	return nil
}

// EmptyRootHash is the root of a trie with no entries; it is not all-zero,
// it is Blake2b-256(RLP("")). EmptyCodeHash is Blake2b-256(nil), the code
// hash of an account with no code. Both are computed once below rather
// than hand-copied as magic constants: Blake2b-256 is the one concrete
// binding of the hashing collaborator spec §1 treats as external, used
// throughout aionlib/crypto and wired here so account and trie invariants
// can compare against a fixed value without importing the trie package.
var (
	EmptyRootHash = blake2b256([]byte{0x80})
	EmptyCodeHash = blake2b256(nil)
)

func blake2b256(data []byte) Hash {
	sum := blake2b.Sum256(data)
	return Hash(sum)
}

// AccountClass discriminates the two contract execution families a
// go-aion account can belong to.
type AccountClass uint8

const (
	ClassNative AccountClass = iota
	ClassManaged
)

func (c AccountClass) String() string {
	if c == ClassManaged {
		return "managed"
	}
	return "native"
}

// Address is a 32-byte account identifier. Its first byte is a
// discriminator conventionally used to tag freshly derived contract
// addresses; it does not by itself determine AccountClass, which is a
// property the account data carries (see core/state.Account).
type Address [AddressLength]byte

const (
	// AddressPrefixCreated is the fixed first byte of every address derived
	// by a Create transaction (see core/executor, spec §4.4).
	AddressPrefixCreated byte = 0xa0
)

func BytesToAddress(b []byte) (a Address) {
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

func (a Address) Bytes() []byte  { return a[:] }
func (a Address) IsZero() bool   { return a == (Address{}) }
func (a Address) String() string { return "0x" + hex.EncodeToString(a[:]) }

// MarshalText and UnmarshalText mirror Hash's, letting Address serve as
// a JSON object key/value or TOML scalar.
func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Address) UnmarshalText(text []byte) error {
	b, err := decodeHexText(text, AddressLength)
	if err != nil {
		return fmt.Errorf("common.Address: %w", err)
	}
	*a = BytesToAddress(b)
	return nil
}

// DiscriminatorByte returns the address's leading byte, the conventional
// account-class hint described in spec §3.
func (a Address) DiscriminatorByte() byte { return a[0] }

// decodeHexText strips an optional "0x"/"0X" prefix and decodes the
// remainder, rejecting input wider than width bytes so a truncated or
// overlong config/test value fails fast rather than silently padding.
func decodeHexText(text []byte, width int) ([]byte, error) {
	s := string(text)
	if len(s) >= 2 && (s[0:2] == "0x" || s[0:2] == "0X") {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) > width {
		return nil, fmt.Errorf("value too wide: got %d bytes, want at most %d", len(b), width)
	}
	return b, nil
}

// PrettyBytes formats a byte slice the way a fatal log line needs to: short
// hashes stay hex, nothing is truncated silently.
func PrettyBytes(b []byte) string {
	if len(b) == 0 {
		return "0x"
	}
	return fmt.Sprintf("0x%x", b)
}
