// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

// Interpreter is the native fast VM's bytecode engine, injected rather
// than built in-tree — see the package doc for why. It receives the code
// being run, the call input, and the gas budget, and returns the output
// bytes plus the gas remaining after execution.
type Interpreter func(code, input []byte, gas uint64) (output []byte, gasLeft uint64, err error)

// NativeVM is the KindNative capability. With no Interpreter configured
// it treats every call as a value-transfer-only call: output is empty,
// no gas beyond the caller's own accounting is consumed, and the
// substate is empty. This is the correct behaviour for the bulk of
// transactions (plain transfers, and calls to accounts with no code) and
// is exercised directly by core/executor's tests; a deployment wires a
// real Interpreter at startup.
type NativeVM struct {
	Run Interpreter
}

func NewNativeVM(run Interpreter) *NativeVM {
	return &NativeVM{Run: run}
}

func (n *NativeVM) Exec(params CallParams) (*ExecutionResult, error) {
	if len(params.Code) == 0 || n.Run == nil {
		return &ExecutionResult{
			Status:   StatusSuccess,
			GasLeft:  params.Gas,
			Substate: NewSubstate(),
		}, nil
	}
	output, gasLeft, err := n.Run(params.Code, params.Input, params.Gas)
	if err != nil {
		return &ExecutionResult{Status: StatusFailure, GasLeft: 0, Substate: NewSubstate(), Err: err}, nil
	}
	return &ExecutionResult{
		Status:   StatusSuccess,
		GasLeft:  gasLeft,
		Output:   output,
		Substate: NewSubstate(),
	}, nil
}
