// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package verification

import (
	"fmt"

	"github.com/aionnetwork/aion-lib/common"
)

// AlreadyQueuedError is spec §4.7's import() result: the item's hash is
// already somewhere in the unverified/verifying/verified pipeline.
type AlreadyQueuedError struct{ Hash common.Hash }

func (e *AlreadyQueuedError) Error() string { return fmt.Sprintf("already queued: %s", e.Hash) }

// KnownBadError is spec §4.7's import() result: the item, or an
// ancestor it descends from, was previously marked bad.
type KnownBadError struct{ Hash common.Hash }

func (e *KnownBadError) Error() string { return fmt.Sprintf("known bad: %s", e.Hash) }
