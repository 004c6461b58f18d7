// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package p2p

import (
	"encoding/binary"
	"io"
)

// Control distinguishes the two message families spec §6 names:
// "control {P2P=0, SYNC=1}".
type Control uint8

const (
	ControlP2P  Control = 0
	ControlSync Control = 1
)

// Action is a P2P-control action; SYNC-control actions are opaque to
// this package and forwarded verbatim to the registered sync callback.
type Action uint8

const (
	ActionHandshakeReq Action = iota
	ActionHandshakeRes
	ActionActiveNodesReq
	ActionActiveNodesRes
)

// headerLen is the fixed wire header: ver:u16 | ctrl:u8 | action:u8 | len:u32.
const headerLen = 2 + 1 + 1 + 4

// protocolVersion is the only version this node speaks, spec §6: "Version 0".
const protocolVersion uint16 = 0

// maxFrameBody bounds a single frame's body so a corrupt or hostile
// length field cannot force an unbounded allocation.
const maxFrameBody = 16 << 20

// ChannelBuffer is spec §4.9's wire frame: `{version, module, action,
// route, body}` where `route = version<<16 | module<<8 | action`.
type ChannelBuffer struct {
	Version uint16
	Module  Control
	Action  Action
	Body    []byte
}

// Route computes version<<16 | module<<8 | action, the token-pairing key.
func (c *ChannelBuffer) Route() uint32 {
	return uint32(c.Version)<<16 | uint32(c.Module)<<8 | uint32(c.Action)
}

// RouteOf is Route without constructing a ChannelBuffer, used by callers
// that only need to tag an outgoing token.
func RouteOf(version uint16, module Control, action Action) uint32 {
	return uint32(version)<<16 | uint32(module)<<8 | uint32(action)
}

// Encode writes the frame header and body to w.
func Encode(w io.Writer, c *ChannelBuffer) error {
	var header [headerLen]byte
	binary.BigEndian.PutUint16(header[0:2], c.Version)
	header[2] = byte(c.Module)
	header[3] = byte(c.Action)
	binary.BigEndian.PutUint32(header[4:8], uint32(len(c.Body)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if len(c.Body) == 0 {
		return nil
	}
	_, err := w.Write(c.Body)
	return err
}

// Decode reads one frame from r. A declared length exceeding
// maxFrameBody is treated as a protocol violation; spec §4.9's "length
// mismatch between header-declared len and actual body => silent drop"
// is the router's responsibility once the frame is fully read, not the
// framer's — Decode itself always returns a fully-populated frame or an
// error, never a partial one.
func Decode(r io.Reader) (*ChannelBuffer, error) {
	var header [headerLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	declared := binary.BigEndian.Uint32(header[4:8])
	if declared > maxFrameBody {
		return nil, &FrameTooShortError{Declared: int(declared), Got: 0}
	}
	body := make([]byte, declared)
	if declared > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, err
		}
	}
	return &ChannelBuffer{
		Version: binary.BigEndian.Uint16(header[0:2]),
		Module:  Control(header[2]),
		Action:  Action(header[3]),
		Body:    body,
	}, nil
}
