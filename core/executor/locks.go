// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package executor

import "sync"

// VMLock and AVMLock are the process-wide mutexes spec §9's design note
// "Global VM locks" names explicitly: "Retain as named process-wide
// mutexes with explicit lifecycle: acquired at executor entry, released
// on return — both success and error paths. Document them as a
// correctness boundary against the FFI, not as a performance tool." They
// serialise concurrent transact/transact_bulk entries into the native and
// managed VMs respectively (spec §5 "Consensus-critical execution ...
// holds a process-wide mutex VM_LOCK for the native VM and AVM_LOCK for
// the managed VM").
var (
	VMLock  sync.Mutex
	AVMLock sync.Mutex
)
