// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package p2p

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandshakeRoundTrip(t *testing.T) {
	var id NodeID
	copy(id[:], []byte("0123456789012345678901234567890123456"))
	h := &HandshakeBody{NodeID: id, NetworkID: 42, Port: 30303, Revision: "go-aion/0.1"}

	got, err := DecodeHandshake(EncodeHandshake(h))
	require.NoError(t, err)
	require.Equal(t, h.NodeID, got.NodeID)
	require.Equal(t, h.NetworkID, got.NetworkID)
	require.Equal(t, h.Port, got.Port)
	require.Equal(t, h.Revision, got.Revision)
}

func TestDecodeHandshakeRejectsTruncatedBody(t *testing.T) {
	_, err := DecodeHandshake(make([]byte, NodeIDLength))
	require.Error(t, err)
}

func TestActiveNodesRoundTripIPv4(t *testing.T) {
	var id1, id2 NodeID
	id1[0], id2[0] = 1, 2
	records := []PeerRecord{
		{ID: id1, IP: net.ParseIP("10.0.0.1").To4(), Port: 1111},
		{ID: id2, IP: net.ParseIP("10.0.0.2").To4(), Port: 2222},
	}

	got, err := DecodeActiveNodes(EncodeActiveNodes(records))
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.True(t, got[0].IP.Equal(records[0].IP))
	require.Equal(t, records[0].Port, got[0].Port)
	require.True(t, got[1].IP.Equal(records[1].IP))
}

func TestActiveNodesRoundTripIPv6(t *testing.T) {
	var id NodeID
	id[0] = 9
	records := []PeerRecord{{ID: id, IP: net.ParseIP("::1"), Port: 9090}}

	got, err := DecodeActiveNodes(EncodeActiveNodes(records))
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.True(t, got[0].IP.Equal(records[0].IP))
}

func TestDecodeActiveNodesEmptyBody(t *testing.T) {
	got, err := DecodeActiveNodes(nil)
	require.NoError(t, err)
	require.Empty(t, got)
}
