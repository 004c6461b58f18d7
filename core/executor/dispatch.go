// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package executor

import (
	"github.com/aionnetwork/go-aion/core/vm"
)

// dispatch implements spec §4.4 "VM dispatch": builtin match first, then
// a call-stack-budget decision between running the capability inline or
// on a fresh worker. The capability is always the native VM (see
// callTarget); the managed VM is reached only through ApplyBatch.
func (e *Executor) dispatch(params vm.CallParams) (*vm.ExecutionResult, error) {
	if e.Builtins != nil {
		if b, ok := e.Builtins.Lookup(params.Address, params.BlockNumber); ok {
			cost := b.Cost(params.Input)
			if cost > params.Gas {
				return &vm.ExecutionResult{Status: vm.StatusOutOfGas, Substate: vm.NewSubstate()}, nil
			}
			out, err := b.Run(params.Input)
			if err != nil {
				return &vm.ExecutionResult{Status: vm.StatusFailure, Substate: vm.NewSubstate(), Err: err}, nil
			}
			return &vm.ExecutionResult{Status: vm.StatusSuccess, GasLeft: params.Gas - cost, Output: out, Substate: vm.NewSubstate()}, nil
		}
	}

	target := e.callTarget()
	if params.Depth < CallDepthThreshold {
		return e.invoke(target, params)
	}
	// Past the threshold, run on a fresh goroutine so the call gets its
	// own stack segment rather than growing the caller's — the same
	// property spec §4.4's explicit worker stack size is protecting
	// against, expressed in Go's stack-growth model instead of a
	// hand-sized allocation.
	type outcome struct {
		result *vm.ExecutionResult
		err    error
	}
	ch := make(chan outcome, 1)
	go func() {
		r, err := e.invoke(target, params)
		ch <- outcome{r, err}
	}()
	o := <-ch
	return o.result, o.err
}

func (e *Executor) callTarget() vm.VM {
	return e.Native
}

func (e *Executor) invoke(v vm.VM, params vm.CallParams) (*vm.ExecutionResult, error) {
	VMLock.Lock()
	defer VMLock.Unlock()
	return v.Exec(params)
}
