// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package headerchain

import (
	"github.com/aionnetwork/aion-lib/common"
	"github.com/aionnetwork/aion-lib/rlp"
)

// Candidate is one competing header at a given height, spec §4.6's
// "{hash, parent-hash, td}".
type Candidate struct {
	Hash            common.Hash
	ParentHash      common.Hash
	TotalDifficulty common.U256
}

// Entry is the per-height inline candidate vector; by invariant
// Candidates[0] is always the canonical one, spec §4.6.
type Entry struct {
	Candidates []Candidate
}

func (e *Entry) encode() []byte {
	var body []byte
	for _, c := range e.Candidates {
		var cbody []byte
		cbody = rlp.EncodeBytes(cbody, c.Hash.Bytes())
		cbody = rlp.EncodeBytes(cbody, c.ParentHash.Bytes())
		cbody = rlp.EncodeBytes(cbody, c.TotalDifficulty.Bytes())
		body = rlp.List(body, cbody)
	}
	return rlp.List(nil, body)
}

func decodeEntry(enc []byte) (*Entry, error) {
	body, err := rlp.NewStream(enc).ReadList()
	if err != nil {
		return nil, err
	}
	s := rlp.NewStream(body)
	e := &Entry{}
	for !s.Done() {
		cbody, err := s.ReadList()
		if err != nil {
			return nil, err
		}
		cs := rlp.NewStream(cbody)
		var c Candidate
		b, err := cs.ReadBytes()
		if err != nil {
			return nil, err
		}
		c.Hash = common.BytesToHash(b)
		if b, err = cs.ReadBytes(); err != nil {
			return nil, err
		}
		c.ParentHash = common.BytesToHash(b)
		if b, err = cs.ReadBytes(); err != nil {
			return nil, err
		}
		c.TotalDifficulty.SetBytes(b)
		e.Candidates = append(e.Candidates, c)
	}
	return e, nil
}
