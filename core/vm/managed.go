// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

// BatchRequest is one transaction's worth of input to the managed VM's
// batched entry point, spec §4.4 "Serialises submitted transactions to
// the managed VM via a single FFI call".
type BatchRequest struct {
	Params CallParams
}

// BatchResult is the managed VM's per-transaction outcome from that same
// call, paired 1:1 and in order with the BatchRequest slice.
type BatchResult struct {
	Status   Status
	GasLeft  uint64
	Output   []byte
	Substate *Substate
	Err      error
}

// Bridge is the JVM FFI bridge spec §1 lists as an out-of-scope external
// collaborator ("the JVM FFI bridge itself"); core/vm only defines the
// call/return contract the executor programs against. A real deployment
// wires a Bridge backed by the actual FFI call; tests wire a fake one.
type Bridge interface {
	ExecBatch(reqs []BatchRequest) ([]BatchResult, error)
}

// ManagedVM is the KindManaged capability. Exec is a single-call
// convenience implemented in terms of ExecBatch with a length-1 batch;
// core/executor reaches the managed VM only through ExecBatch, from
// ApplyBatch. The managed VM has no narrower
// entry point than the FFI call itself (spec §4.4: "a single FFI call").
type ManagedVM struct {
	Bridge Bridge
}

func NewManagedVM(bridge Bridge) *ManagedVM {
	return &ManagedVM{Bridge: bridge}
}

func (m *ManagedVM) Exec(params CallParams) (*ExecutionResult, error) {
	results, err := m.ExecBatch([]BatchRequest{{Params: params}})
	if err != nil {
		return nil, err
	}
	r := results[0]
	return &ExecutionResult{Status: r.Status, GasLeft: r.GasLeft, Output: r.Output, Substate: r.Substate, Err: r.Err}, nil
}

// ExecBatch is spec §4.4's apply_batch entry point: "the VM emits a
// per-transaction result and a set of per-transaction substates."
func (m *ManagedVM) ExecBatch(reqs []BatchRequest) ([]BatchResult, error) {
	if m.Bridge == nil {
		results := make([]BatchResult, len(reqs))
		for i := range reqs {
			results[i] = BatchResult{Status: StatusSuccess, GasLeft: reqs[i].Params.Gas, Substate: NewSubstate()}
		}
		return results, nil
	}
	return m.Bridge.ExecBatch(reqs)
}
