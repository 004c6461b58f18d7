// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package rawdb

import (
	"github.com/aionnetwork/aion-lib/kv"

	"github.com/aionnetwork/go-aion/core/types"
)

// BlocksWithBloom implements spec §3 "Bloom index": blocks_with_bloom
// (candidate, from, to) -> the heights in [from, to] whose per-height
// bloom might contain candidate. False positives are possible; misses
// are not, the usual bloom contract.
func (s *Store) BlocksWithBloom(candidate []byte, from, to uint64) ([]uint64, error) {
	var hits []uint64
	for n := from; n <= to; n++ {
		raw, err := s.db.Get(kv.BloomByNumber, beBytes(n))
		if err != nil {
			return nil, err
		}
		if raw == nil {
			continue
		}
		var bloom [256]byte
		copy(bloom[:], raw)
		if types.BloomContains(bloom, candidate, s.hashFn) {
			hits = append(hits, n)
		}
	}
	return hits, nil
}
