// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package main

import (
	"github.com/aionnetwork/aion-lib/common"

	"github.com/aionnetwork/go-aion/core/types"
)

// devGenesis builds the single-node development genesis header. Real
// network genesis parameters (initial difficulty, premine allocation,
// timestamp) are themselves config data spec §1 treats as external to
// the node's algorithms — this header only has to exist so
// headerchain.New has an ancestor to anchor on.
func devGenesis() *types.Header {
	return &types.Header{
		Difficulty: *common.NewU256(1_000_000),
		GasLimit:   10_000_000,
		ExtraData:  []byte("gaion devnet genesis"),
	}
}
