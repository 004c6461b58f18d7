// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package p2p

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func waitForCondition(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.True(t, cond(), "condition did not become true within %s", timeout)
}

func newLocalManager(t *testing.T, id byte) *Manager {
	t.Helper()
	var nodeID NodeID
	nodeID[0] = id
	cfg := Config{
		ListenAddr:  "127.0.0.1:0",
		MaxPeers:    8,
		NetworkID:   1,
		LocalNodeID: nodeID,
		LocalPort:   0,
		Revision:    "test",
	}
	m, err := NewManager(cfg, nil, nil)
	require.NoError(t, err)
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(m.Shutdown)
	return m
}

// TestHandshakeReachesActiveBothSides dials one in-process manager from
// another over a real TCP loopback connection and checks both ends
// complete spec §4.9's CONNECTED -> HANDSHAKE_SENT/RECEIVED -> ACTIVE
// transition.
func TestHandshakeReachesActiveBothSides(t *testing.T) {
	a := newLocalManager(t, 1)
	b := newLocalManager(t, 2)

	require.True(t, a.Connect(TempNode{Addr: b.listener.Addr().String(), NetworkID: 1}))

	waitForCondition(t, 2*time.Second, func() bool {
		return a.ActivePeerCount() == 1 && b.ActivePeerCount() == 1
	})
}
