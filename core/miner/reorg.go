// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package miner

import (
	"github.com/aionnetwork/aion-lib/common"
)

// ChainNewBlocks implements spec §4.8's reorg callback: re-queue every
// transaction from retracted blocks, drop mined/expired entries, and
// force the next UpdateSealing call to rebuild the template from
// scratch once new blocks have been enacted.
func (m *Miner) ChainNewBlocks(imported, invalid, enacted, retracted []common.Hash) {
	for _, hash := range retracted {
		block, err := m.store.Block(hash)
		if err != nil || block == nil {
			continue
		}
		for _, tx := range block.Transactions {
			txHash := tx.Hash(m.hashFn)
			if err := m.queue.Add(tx, txHash, OriginRetractedBlock); err != nil {
				m.log.Debug("dropping re-queued transaction from retracted block", "err", err)
			}
		}
	}

	m.queue.RemoveOld()

	if len(enacted) > 0 {
		m.mu.Lock()
		m.template = nil
		m.mu.Unlock()
	}
}
