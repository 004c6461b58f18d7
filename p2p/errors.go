// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package p2p implements spec §4.9's peer transport (C9): a
// length-prefixed ChannelBuffer frame, a handshake state machine per
// peer, route-token request/response pairing, and the peer manager
// tasks that drive outbound connection, timeout eviction and
// active-node discovery.
package p2p

import "fmt"

// FrameTooShortError is returned when a header declares a body length
// above the framer's maximum (Got is then 0). A body that the connection
// cuts short surfaces as the underlying read error instead.
type FrameTooShortError struct {
	Declared, Got int
}

func (e *FrameTooShortError) Error() string {
	return fmt.Sprintf("p2p: frame declared %d bytes, got %d", e.Declared, e.Got)
}

// UnknownControlError flags a control byte outside {P2P, SYNC}.
type UnknownControlError struct{ Control byte }

func (e *UnknownControlError) Error() string { return fmt.Sprintf("p2p: unknown control %d", e.Control) }

// TokenRejectedError is the token law's rejection outcome, spec §8
// invariant 8: "accepted only if that peer previously sent a message
// tagged flag_token".
type TokenRejectedError struct {
	Peer      uint64
	ClearToken uint32
}

func (e *TokenRejectedError) Error() string {
	return fmt.Sprintf("p2p: peer %x rejected unsolicited response for token %x", e.Peer, e.ClearToken)
}

// HandshakeStateError is returned when a message arrives before the
// peer has completed its handshake.
type HandshakeStateError struct {
	Peer  uint64
	State PeerState
}

func (e *HandshakeStateError) Error() string {
	return fmt.Sprintf("p2p: peer %x not active (state %d)", e.Peer, e.State)
}

// MaxPeersReachedError is the reason the accept loop logs when it closes
// an inbound connection because the active peer count is already at
// max_peers.
type MaxPeersReachedError struct{ MaxPeers int }

func (e *MaxPeersReachedError) Error() string {
	return fmt.Sprintf("p2p: at max peers (%d)", e.MaxPeers)
}
