// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package vm is the capability-set side of spec §9's design note "Dynamic
// dispatch across VMs": "Model as a sum type VmKind ∈ {Native, Managed,
// Builtin} with a trait-style capability set {exec(params, ext, is_local,
// fork_config) -> ExecutionResult}. The executor owns the selector and
// the call-depth budget; no runtime class hierarchy is required."
//
// The bytecode engines themselves — the native fast VM's instruction set
// and the managed (Java) VM's bytecode interpreter — are named in spec §1
// only by role, never by instruction semantics; like the Ethash/Equihash
// PoW primitives and the JVM FFI bridge, their op-by-op behaviour is an
// external collaborator this core does not redefine. What this package
// owns is the contract core/executor dispatches through: call parameters
// in, a substate and terminal status out. A caller wires a real
// interpreter via the Interpreter hook; the zero-value NativeVM treats
// any call with no registered interpreter as a bare value transfer,
// which is exactly what the contract-free majority of transactions are.
package vm

import (
	"github.com/aionnetwork/aion-lib/common"
)

// Kind is the sum type spec §9 names explicitly.
type Kind uint8

const (
	KindNative Kind = iota
	KindManaged
	KindBuiltin
)

func (k Kind) String() string {
	switch k {
	case KindManaged:
		return "managed"
	case KindBuiltin:
		return "builtin"
	default:
		return "native"
	}
}

// Status is an execution's terminal outcome.
type Status uint8

const (
	StatusSuccess Status = iota
	StatusRevert
	StatusFailure
	StatusOutOfGas
)

// Substate is "the per-transaction accumulator of logs, suicides, touched
// accounts, and storage-clear counters returned by a VM" (GLOSSARY).
type Substate struct {
	Logs           []Log
	Suicides       []common.Address
	Touched        map[common.Address]struct{}
	StorageCleared int

	// ObjectGraphUpdates carries a managed call's per-account object-graph
	// hash updates, applied by the executor via state.SetObjectGraphHash.
	ObjectGraphUpdates map[common.Address]common.Hash

	// AliasInvocations carries the "alias -> set of invoked meta-hashes"
	// mappings spec §4.4's batched managed-VM path emits; the executor
	// union-merges these into the AliasMeta column.
	AliasInvocations map[common.Hash][]common.Hash
}

// Log mirrors core/types.Log without importing core/types, which itself
// does not depend on core/vm; core/executor converts between the two at
// the boundary.
type Log struct {
	Address common.Address
	Topics  []common.Hash
	Data    []byte
}

func NewSubstate() *Substate {
	return &Substate{Touched: make(map[common.Address]struct{})}
}

// Merge folds other into s, used when an inline sub-call's substate rolls
// up into its caller's.
func (s *Substate) Merge(other *Substate) {
	if other == nil {
		return
	}
	s.Logs = append(s.Logs, other.Logs...)
	s.Suicides = append(s.Suicides, other.Suicides...)
	for a := range other.Touched {
		s.Touched[a] = struct{}{}
	}
	s.StorageCleared += other.StorageCleared
	for addr, h := range other.ObjectGraphUpdates {
		if s.ObjectGraphUpdates == nil {
			s.ObjectGraphUpdates = make(map[common.Address]common.Hash)
		}
		s.ObjectGraphUpdates[addr] = h
	}
	for alias, metas := range other.AliasInvocations {
		if s.AliasInvocations == nil {
			s.AliasInvocations = make(map[common.Hash][]common.Hash)
		}
		s.AliasInvocations[alias] = append(s.AliasInvocations[alias], metas...)
	}
}

// ValueKind distinguishes the two value-passing conventions spec §4.4
// names: "The action value is Transfer(value) at call depth 0 and for
// external sub-calls, Apparent(value) when inherited by delegate/code-call."
type ValueKind uint8

const (
	ValueTransfer ValueKind = iota
	ValueApparent
)

// CallParams is the "params" argument of spec §9's capability signature
// exec(params, ext, is_local, fork_config).
type CallParams struct {
	Sender  common.Address
	Address common.Address // the account whose code/storage this call runs against
	Code    []byte
	Input   []byte
	Value   common.U256
	ValueOf ValueKind
	Gas     uint64

	IsCreate bool
	IsLocal  bool
	Depth    int

	BlockNumber uint64
	Author      common.Address
}

// ExecutionResult is the capability's return value.
type ExecutionResult struct {
	Status   Status
	GasLeft  uint64
	Output   []byte
	Substate *Substate
	Err      error
}

// VM is the trait-style capability set spec §9 names.
type VM interface {
	Exec(params CallParams) (*ExecutionResult, error)
}
