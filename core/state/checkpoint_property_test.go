// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package state

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/aionnetwork/aion-lib/common"
)

// opKind is one step of a randomly generated checkpoint/mutation
// sequence, spec §4.3 invariant (1)/(2): "checkpoint/discard/revert form
// a stack; reverting restores every shadowed account wholesale".
type opKind int

const (
	opSetBalance opKind = iota
	opCheckpoint
	opDiscard
	opRevert
)

// checkpointModel is the reference implementation this test checks the
// real State against: a plain stack of maps, one frame per outstanding
// checkpoint, mirroring the shadow-map design state.go itself uses but
// without any trie/db involvement to get it wrong in.
type checkpointModel struct {
	frames []map[common.Address]uint64
}

func newCheckpointModel(base map[common.Address]uint64) *checkpointModel {
	return &checkpointModel{frames: []map[common.Address]uint64{base}}
}

func (m *checkpointModel) top() map[common.Address]uint64 { return m.frames[len(m.frames)-1] }

func (m *checkpointModel) balance(addr common.Address) uint64 { return m.top()[addr] }

func (m *checkpointModel) setBalance(addr common.Address, v uint64) {
	m.top()[addr] = v
}

func (m *checkpointModel) checkpoint() {
	snapshot := make(map[common.Address]uint64, len(m.top()))
	for k, v := range m.top() {
		snapshot[k] = v
	}
	m.frames = append(m.frames, snapshot)
}

func (m *checkpointModel) discard() {
	if len(m.frames) < 2 {
		return
	}
	top := m.frames[len(m.frames)-1]
	m.frames = m.frames[:len(m.frames)-1]
	m.frames[len(m.frames)-1] = top
}

func (m *checkpointModel) revert() {
	if len(m.frames) < 2 {
		return
	}
	m.frames = m.frames[:len(m.frames)-1]
}

// TestCheckpointStackMatchesReferenceModel drives both a real State and
// a checkpointModel through the same randomly generated sequence of
// balance writes and checkpoint/discard/revert calls, asserting the
// live balance always agrees — the property spec §8 law 6 requires.
func TestCheckpointStackMatchesReferenceModel(t *testing.T) {
	addrs := []common.Address{
		common.BytesToAddress([]byte("a")),
		common.BytesToAddress([]byte("b")),
		common.BytesToAddress([]byte("c")),
	}

	rapid.Check(t, func(rt *rapid.T) {
		s, _ := newTestState(t)
		model := newCheckpointModel(map[common.Address]uint64{})
		depth := 0

		steps := rapid.SliceOfN(rapid.IntRange(0, 3), 1, 40).Draw(rt, "ops")
		for _, kindN := range steps {
			switch opKind(kindN) {
			case opSetBalance:
				addr := addrs[rapid.IntRange(0, len(addrs)-1).Draw(rt, "addr")]
				v := uint64(rapid.IntRange(0, 1_000_000).Draw(rt, "value"))
				cur, err := s.Balance(addr)
				if err != nil {
					rt.Fatalf("Balance: %v", err)
				}
				delta := new(zeroable).from(v, cur.Uint64())
				if delta.add {
					if err := s.AddBalance(addr, *common.NewU256(delta.amount), ForceCreate, nil); err != nil {
						rt.Fatalf("AddBalance: %v", err)
					}
				} else {
					if err := s.SubBalance(addr, *common.NewU256(delta.amount)); err != nil {
						rt.Fatalf("SubBalance: %v", err)
					}
				}
				model.setBalance(addr, v)
			case opCheckpoint:
				s.Checkpoint()
				model.checkpoint()
				depth++
			case opDiscard:
				if depth == 0 {
					continue
				}
				s.DiscardCheckpoint()
				model.discard()
				depth--
			case opRevert:
				if depth == 0 {
					continue
				}
				s.RevertToCheckpoint()
				model.revert()
				depth--
			}

			for _, addr := range addrs {
				got, err := s.Balance(addr)
				if err != nil {
					rt.Fatalf("Balance: %v", err)
				}
				if got.Uint64() != model.balance(addr) {
					rt.Fatalf("balance mismatch for %x: state=%d model=%d", addr, got.Uint64(), model.balance(addr))
				}
			}
		}
	})
}

// zeroable turns a target absolute balance into the signed delta
// AddBalance/SubBalance need, since State exposes no direct setter.
type zeroable struct {
	add    bool
	amount uint64
}

func (z *zeroable) from(target, current uint64) *zeroable {
	if target >= current {
		z.add, z.amount = true, target-current
	} else {
		z.add, z.amount = false, current-target
	}
	return z
}
