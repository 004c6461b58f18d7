// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package p2p

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestTokenLawPairsRequestAndResponse is spec §8's S7 scenario: "Peer P
// sends ACTIVENODESREQ (flag). P later receives ACTIVENODESRES:
// accepted, flag removed. A second unsolicited ACTIVENODESRES is
// rejected."
func TestTokenLawPairsRequestAndResponse(t *testing.T) {
	rules := DefaultTokenRules()
	ts := newTokenSet()

	reqRoute := RouteOf(protocolVersion, ControlP2P, ActionActiveNodesReq)
	resRoute := RouteOf(protocolVersion, ControlP2P, ActionActiveNodesRes)

	ts.Tag(reqRoute)
	require.NoError(t, ts.Check(rules, resRoute), "the first response must be accepted")
	require.Error(t, ts.Check(rules, resRoute), "a second, unsolicited response must be rejected")
}

func TestTokenLawPassesRoutesWithNoRule(t *testing.T) {
	rules := DefaultTokenRules()
	ts := newTokenSet()
	handshakeRes := RouteOf(protocolVersion, ControlP2P, ActionHandshakeRes)
	require.NoError(t, ts.Check(rules, handshakeRes), "no rule for this route must always pass")
}
