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
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// NodeIDLength matches spec §6's handshake body: "node-id (36 bytes)".
const NodeIDLength = 36

// NodeID identifies a peer independent of its current address.
type NodeID [NodeIDLength]byte

// Hash derives the 64-bit peer-table key spec §4.9 names: "A peer is
// identified by a 64-bit hash derived from its node-id/address."
// xxhash is already a transitive dependency of the teacher's stack
// (erigon pulls it in for non-cryptographic hashing); this is its first
// direct use in this module.
func (id NodeID) Hash() uint64 { return xxhash.Sum64(id[:]) }

// TempNode is an address the outbound connector has not yet dialed,
// spec §4.9: "pop a TempNode from a bounded FIFO, attempt connect".
type TempNode struct {
	Addr      string
	NetworkID uint32
}

// Node is a known peer's durable identity and address, independent of
// whether a live connection currently exists.
type Node struct {
	ID        NodeID
	Addr      string
	NetworkID uint32
	Port      uint16
	Revision  string
}

// PeerState is the handshake lifecycle spec §4.9 names: "CONNECTED ->
// HANDSHAKE_SENT/RECEIVED -> ACTIVE".
type PeerState int

const (
	StateConnected PeerState = iota
	StateHandshakeSent
	StateHandshakeReceived
	StateActive
	StateClosed
)

// Peer is one live connection and its handshake/token state. The
// manager's outer map is keyed by Node.ID.Hash(); each Peer guards its
// own mutable fields with its own lock, matching spec §5's
// shared-resource policy ("per-peer locks for tokens; the outer map
// uses RwLock").
type Peer struct {
	conn net.Conn
	node Node

	mu      sync.Mutex
	state   PeerState
	updated time.Time

	tokens *TokenSet

	// outbox bounds how much unsent data a slow peer can force this
	// node to buffer, spec §5 suspension point (c): "transport send may
	// block on a bounded channel when the peer is slow."
	outbox chan *ChannelBuffer

	closeOnce sync.Once
	closed    chan struct{}
}

func newPeer(conn net.Conn, node Node) *Peer {
	if node.Addr == "" && conn != nil && conn.RemoteAddr() != nil {
		node.Addr = conn.RemoteAddr().String()
	}
	return &Peer{
		conn:    conn,
		node:    node,
		state:   StateConnected,
		updated: time.Now(),
		tokens:  newTokenSet(),
		outbox:  make(chan *ChannelBuffer, 64),
		closed:  make(chan struct{}),
	}
}

func (p *Peer) State() PeerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Peer) setState(s PeerState) {
	p.mu.Lock()
	p.state = s
	p.updated = time.Now()
	p.mu.Unlock()
}

func (p *Peer) touch() {
	p.mu.Lock()
	p.updated = time.Now()
	p.mu.Unlock()
}

// Idle reports whether this peer has not been heard from in longer than d.
func (p *Peer) Idle(d time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Since(p.updated) > d
}

// Send queues a frame for the write half, tagging its route token
// before the send can race a matching response's arrival.
func (p *Peer) Send(rules TokenRules, c *ChannelBuffer) error {
	p.tokens.Tag(c.Route())
	select {
	case p.outbox <- c:
		return nil
	case <-p.closed:
		return net.ErrClosed
	}
}

// Close tears the connection and outbox down exactly once.
func (p *Peer) Close() {
	p.closeOnce.Do(func() {
		close(p.closed)
		p.setState(StateClosed)
		if p.conn != nil {
			p.conn.Close()
		}
	})
}

func (p *Peer) writeLoop() {
	for {
		select {
		case c := <-p.outbox:
			if err := Encode(p.conn, c); err != nil {
				p.Close()
				return
			}
		case <-p.closed:
			return
		}
	}
}
