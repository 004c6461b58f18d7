// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package rlp is the minimal recursive-length-prefix codec the wire types
// in core/types build on (spec §6: "Transaction RLP", "Block RLP"). It is
// hand-written rather than reflection-driven — the types in core/types
// carry no struct tags, and their encode/decode bodies are written by
// hand per type in core/types.
package rlp

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// EncodeBytes appends the RLP byte-string encoding of b to dst.
func EncodeBytes(dst []byte, b []byte) []byte {
	switch {
	case len(b) == 1 && b[0] < 0x80:
		return append(dst, b[0])
	case len(b) < 56:
		dst = append(dst, 0x80+byte(len(b)))
		return append(dst, b...)
	default:
		lenBytes := uintToMinimalBytes(uint64(len(b)))
		dst = append(dst, 0xb7+byte(len(lenBytes)))
		dst = append(dst, lenBytes...)
		return append(dst, b...)
	}
}

// EncodeUint64 encodes v as a minimal big-endian byte string, per spec §6
// ("Gas and gas-price fields may be raw big-endian bytes up to 8 bytes").
func EncodeUint64(dst []byte, v uint64) []byte {
	return EncodeBytes(dst, uintToMinimalBytes(v))
}

func uintToMinimalBytes(v uint64) []byte {
	if v == 0 {
		return nil
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	i := 0
	for i < 8 && buf[i] == 0 {
		i++
	}
	return buf[i:]
}

// List wraps body (the concatenation of one or more already-encoded
// elements) in an RLP list header.
func List(dst []byte, body []byte) []byte {
	switch {
	case len(body) < 56:
		dst = append(dst, 0xc0+byte(len(body)))
		return append(dst, body...)
	default:
		lenBytes := uintToMinimalBytes(uint64(len(body)))
		dst = append(dst, 0xf7+byte(len(lenBytes)))
		dst = append(dst, lenBytes...)
		return append(dst, body...)
	}
}

// Stream is a minimal cursor for decoding a byte-string/list sequence.
type Stream struct {
	b   []byte
	pos int
}

func NewStream(b []byte) *Stream { return &Stream{b: b} }

func (s *Stream) atEnd() bool { return s.pos >= len(s.b) }

// ReadBytes reads one RLP byte-string element.
func (s *Stream) ReadBytes() ([]byte, error) {
	if s.atEnd() {
		return nil, io.ErrUnexpectedEOF
	}
	b0 := s.b[s.pos]
	switch {
	case b0 < 0x80:
		s.pos++
		return []byte{b0}, nil
	case b0 < 0xb8:
		n := int(b0 - 0x80)
		return s.takeBytes(n)
	case b0 < 0xc0:
		lenOfLen := int(b0 - 0xb7)
		s.pos++
		n, err := s.takeLength(lenOfLen)
		if err != nil {
			return nil, err
		}
		return s.take(n)
	default:
		return nil, errors.Errorf("rlp: expected byte-string, got list header 0x%x", b0)
	}
}

// ReadList returns the raw body bytes of the next list element (the caller
// decodes the body with a fresh Stream).
func (s *Stream) ReadList() ([]byte, error) {
	if s.atEnd() {
		return nil, io.ErrUnexpectedEOF
	}
	b0 := s.b[s.pos]
	switch {
	case b0 < 0xc0:
		return nil, errors.Errorf("rlp: expected list, got byte-string header 0x%x", b0)
	case b0 < 0xf8:
		n := int(b0 - 0xc0)
		s.pos++
		return s.take(n)
	default:
		lenOfLen := int(b0 - 0xf7)
		s.pos++
		n, err := s.takeLength(lenOfLen)
		if err != nil {
			return nil, err
		}
		return s.take(n)
	}
}

func (s *Stream) takeLength(lenOfLen int) (int, error) {
	raw, err := s.take(lenOfLen)
	if err != nil {
		return 0, err
	}
	var buf [8]byte
	copy(buf[8-len(raw):], raw)
	return int(binary.BigEndian.Uint64(buf[:])), nil
}

func (s *Stream) takeBytes(n int) ([]byte, error) {
	s.pos++
	return s.take(n)
}

func (s *Stream) take(n int) ([]byte, error) {
	if s.pos+n > len(s.b) {
		return nil, io.ErrUnexpectedEOF
	}
	out := s.b[s.pos : s.pos+n]
	s.pos += n
	return out, nil
}

// ReadUint64 decodes a minimal big-endian byte-string as a uint64.
func (s *Stream) ReadUint64() (uint64, error) {
	b, err := s.ReadBytes()
	if err != nil {
		return 0, err
	}
	if len(b) > 8 {
		return 0, errors.New("rlp: uint64 overflow")
	}
	var buf [8]byte
	copy(buf[8-len(b):], b)
	return binary.BigEndian.Uint64(buf[:]), nil
}

func (s *Stream) Done() bool { return s.atEnd() }
