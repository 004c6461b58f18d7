// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package p2p

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := &ChannelBuffer{Version: protocolVersion, Module: ControlP2P, Action: ActionHandshakeReq, Body: []byte("hello")}
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, c))

	got, err := Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, c.Version, got.Version)
	require.Equal(t, c.Module, got.Module)
	require.Equal(t, c.Action, got.Action)
	require.Equal(t, c.Body, got.Body)
}

func TestDecodeRejectsOversizedDeclaredLength(t *testing.T) {
	var header [headerLen]byte
	header[4] = 0xff // most-significant byte of the big-endian u32 length field
	_, err := Decode(bytes.NewReader(header[:]))
	require.Error(t, err)
}

func TestRouteEncodesVersionModuleAction(t *testing.T) {
	c := &ChannelBuffer{Version: 7, Module: ControlSync, Action: 3}
	require.Equal(t, uint32(7)<<16|uint32(ControlSync)<<8|3, c.Route())
	require.Equal(t, c.Route(), RouteOf(7, ControlSync, 3))
}
