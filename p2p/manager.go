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
	"net"
	"strconv"
	"sync"
	"time"

	arc "github.com/hashicorp/golang-lru/arc/v2"
	"golang.org/x/net/netutil"

	"github.com/aionnetwork/aion-lib/log"
)

const (
	// timeoutTick/outboundTick/activeNodesTick are spec §4.9's "Tasks" cadence.
	timeoutTick     = 5 * time.Second
	outboundTick    = 1 * time.Second
	activeNodesTick = 3 * time.Second

	// peerIdleTimeout is spec §4.9: "drop peers with update older than 30s".
	peerIdleTimeout = 30 * time.Second
	// dialTimeout is spec §4.9: "attempt connect with a 1s timeout".
	dialTimeout = 1 * time.Second
	// recvBufferBytes/keepAlive are spec §4.9's socket configuration:
	// "24-bit recv buffer, 30s keepalive".
	recvBufferBytes = 1 << 24
	keepAlive       = 30 * time.Second

	maxActiveNodeRecords = 64
)

// SyncCallback receives SYNC-module frames the router forwards
// unmodified after a peer reaches StateActive, spec §4.9: "forwards
// SYNC-module messages to the registered sync callback."
type SyncCallback func(peerHash uint64, c *ChannelBuffer)

// DisconnectCallback fires when a peer is dropped, spec §4.9's timeout
// task: "emit disconnect to the bound callback."
type DisconnectCallback func(peerHash uint64)

// Config carries the manager's tunables, the out-of-scope typed Config
// collaborator (spec §6) supplies these fields in production.
type Config struct {
	ListenAddr            string
	MaxPeers              int
	NetworkID             uint32
	LocalNodeID           NodeID
	LocalPort             uint16
	Revision              string
	SyncFromBootNodesOnly bool
	TokenRules            TokenRules
}

// Manager is spec §4.9's peer manager: owns the node table, the inbound
// listener, the outbound connector, and the three periodic tasks, with
// a coordinated shutdown that cancels every spawned task.
type Manager struct {
	cfg Config
	log *log.Logger

	nodesMu sync.RWMutex
	nodes   map[uint64]*Peer

	pending    chan TempNode // bounded outbound FIFO
	knownNodes *arc.ARCCache[uint64, Node]

	sync         SyncCallback
	onDisconnect DisconnectCallback

	listener net.Listener

	cancels   []context.CancelFunc
	cancelsMu sync.Mutex
	wg        sync.WaitGroup
}

// NewManager builds a Manager; Start must be called to begin listening
// and running the periodic tasks.
func NewManager(cfg Config, sync SyncCallback, onDisconnect DisconnectCallback) (*Manager, error) {
	cache, err := arc.NewARC[uint64, Node](maxActiveNodeRecords)
	if err != nil {
		return nil, err
	}
	if cfg.TokenRules == nil {
		cfg.TokenRules = DefaultTokenRules()
	}
	return &Manager{
		cfg:          cfg,
		log:          log.New("p2p"),
		nodes:        make(map[uint64]*Peer),
		pending:      make(chan TempNode, 256),
		knownNodes:   cache,
		sync:         sync,
		onDisconnect: onDisconnect,
	}, nil
}

// spawn registers ctx's cancel for shutdown and runs fn in a tracked
// goroutine, spec §4.9's "Every spawned task receives a oneshot cancel."
func (m *Manager) spawn(ctx context.Context, fn func(context.Context)) context.CancelFunc {
	taskCtx, cancel := context.WithCancel(ctx)
	m.cancelsMu.Lock()
	m.cancels = append(m.cancels, cancel)
	m.cancelsMu.Unlock()
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		fn(taskCtx)
	}()
	return cancel
}

// Start opens the inbound listener and launches the outbound connector
// plus the three periodic tasks.
func (m *Manager) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", m.cfg.ListenAddr)
	if err != nil {
		return err
	}
	// netutil.LimitListener caps concurrently open inbound connections at
	// max_peers (Accept waits while the cap is reached); acceptLoop also
	// closes an accepted connection when the active peer count is already
	// at max_peers.
	m.listener = netutil.LimitListener(ln, m.cfg.MaxPeers)

	m.spawn(ctx, m.acceptLoop)
	m.spawn(ctx, m.outboundLoop)
	m.spawn(ctx, m.timeoutLoop)
	m.spawn(ctx, m.activeNodesLoop)
	return nil
}

// Shutdown cancels every spawned task in reverse registration order,
// closes the listener and every peer connection, and clears the node
// table, spec §4.9's "Shutdown" paragraph.
func (m *Manager) Shutdown() {
	m.cancelsMu.Lock()
	cancels := append([]context.CancelFunc(nil), m.cancels...)
	m.cancelsMu.Unlock()
	for i := len(cancels) - 1; i >= 0; i-- {
		cancels[i]()
	}
	if m.listener != nil {
		m.listener.Close()
	}
	m.wg.Wait()

	m.nodesMu.Lock()
	for _, p := range m.nodes {
		p.Close()
	}
	m.nodes = make(map[uint64]*Peer)
	m.nodesMu.Unlock()
}

func (m *Manager) acceptLoop(ctx context.Context) {
	for {
		conn, err := m.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				m.log.Debug("accept failed", "err", err)
				continue
			}
		}
		configureSocket(conn)
		if m.ActivePeerCount() >= m.cfg.MaxPeers {
			m.log.Debug("refusing inbound connection", "err", &MaxPeersReachedError{MaxPeers: m.cfg.MaxPeers})
			conn.Close()
			continue
		}
		go m.handleInbound(ctx, conn)
	}
}

func (m *Manager) handleInbound(ctx context.Context, conn net.Conn) {
	peer := newPeer(conn, Node{})
	go peer.writeLoop()
	m.sendHandshake(peer)
	peer.setState(StateHandshakeSent)
	m.readLoop(ctx, peer)
}

func (m *Manager) outboundLoop(ctx context.Context) {
	ticker := time.NewTicker(outboundTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case tn := <-m.pending:
				m.dial(ctx, tn)
			default:
			}
		}
	}
}

func (m *Manager) dial(ctx context.Context, tn TempNode) {
	conn, err := net.DialTimeout("tcp", tn.Addr, dialTimeout)
	if err != nil {
		m.log.Debug("outbound dial failed", "addr", tn.Addr, "err", err)
		return
	}
	configureSocket(conn)
	peer := newPeer(conn, Node{Addr: tn.Addr, NetworkID: tn.NetworkID})
	go peer.writeLoop()
	m.sendHandshake(peer)
	peer.setState(StateHandshakeSent)
	go m.readLoop(ctx, peer)
}

// Connect enqueues an address for the outbound connector, spec §4.9's
// bounded FIFO of TempNode.
func (m *Manager) Connect(tn TempNode) bool {
	select {
	case m.pending <- tn:
		return true
	default:
		return false
	}
}

func (m *Manager) sendHandshake(p *Peer) {
	body := EncodeHandshake(&HandshakeBody{
		NodeID: m.cfg.LocalNodeID, NetworkID: m.cfg.NetworkID,
		Port: m.cfg.LocalPort, Revision: m.cfg.Revision,
	})
	_ = p.Send(m.cfg.TokenRules, &ChannelBuffer{Version: protocolVersion, Module: ControlP2P, Action: ActionHandshakeReq, Body: body})
}

func (m *Manager) readLoop(ctx context.Context, p *Peer) {
	defer p.Close()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		c, err := Decode(p.conn)
		if err != nil {
			return
		}
		p.touch()
		if err := p.tokens.Check(m.cfg.TokenRules, c.Route()); err != nil {
			m.log.Debug("dropping token-rejected frame", "err", err)
			continue
		}
		m.dispatch(p, c)
	}
}

// dispatch routes an inbound frame per spec §4.9's "Handshake states"
// paragraph: P2P actions are handled locally before and after ACTIVE;
// SYNC actions require an active peer and are forwarded verbatim.
func (m *Manager) dispatch(p *Peer, c *ChannelBuffer) {
	if c.Module == ControlSync {
		if p.State() != StateActive {
			return
		}
		if m.sync != nil {
			m.sync(p.node.ID.Hash(), c)
		}
		return
	}

	switch c.Action {
	case ActionHandshakeReq:
		m.onHandshakeReq(p, c)
	case ActionHandshakeRes:
		m.onHandshakeRes(p, c)
	case ActionActiveNodesReq:
		m.onActiveNodesReq(p)
	case ActionActiveNodesRes:
		m.onActiveNodesRes(c)
	}
}

func (m *Manager) onHandshakeReq(p *Peer, c *ChannelBuffer) {
	hs, err := DecodeHandshake(c.Body)
	if err != nil {
		return
	}
	m.completeHandshake(p, hs)
	body := EncodeHandshake(&HandshakeBody{
		NodeID: m.cfg.LocalNodeID, NetworkID: m.cfg.NetworkID,
		Port: m.cfg.LocalPort, Revision: m.cfg.Revision,
	})
	_ = p.Send(m.cfg.TokenRules, &ChannelBuffer{Version: protocolVersion, Module: ControlP2P, Action: ActionHandshakeRes, Body: body})
	p.setState(StateActive)
	m.register(p)
}

func (m *Manager) onHandshakeRes(p *Peer, c *ChannelBuffer) {
	hs, err := DecodeHandshake(c.Body)
	if err != nil {
		return
	}
	m.completeHandshake(p, hs)
	p.setState(StateActive)
	m.register(p)
}

func (m *Manager) completeHandshake(p *Peer, hs *HandshakeBody) {
	p.mu.Lock()
	p.node.ID = hs.NodeID
	p.node.NetworkID = hs.NetworkID
	p.node.Port = hs.Port
	p.node.Revision = hs.Revision
	p.mu.Unlock()
	p.setState(StateHandshakeReceived)
}

func (m *Manager) register(p *Peer) {
	m.nodesMu.Lock()
	m.nodes[p.node.ID.Hash()] = p
	m.nodesMu.Unlock()
}

func (m *Manager) onActiveNodesReq(p *Peer) {
	m.nodesMu.RLock()
	records := make([]PeerRecord, 0, len(m.nodes))
	for _, peer := range m.nodes {
		if peer.State() != StateActive {
			continue
		}
		ip, _, _ := net.SplitHostPort(peer.node.Addr)
		records = append(records, PeerRecord{ID: peer.node.ID, IP: net.ParseIP(ip), Port: peer.node.Port})
		if len(records) >= maxActiveNodeRecords {
			break
		}
	}
	m.nodesMu.RUnlock()
	_ = p.Send(m.cfg.TokenRules, &ChannelBuffer{
		Version: protocolVersion, Module: ControlP2P, Action: ActionActiveNodesRes,
		Body: EncodeActiveNodes(records),
	})
}

func (m *Manager) onActiveNodesRes(c *ChannelBuffer) {
	records, err := DecodeActiveNodes(c.Body)
	if err != nil {
		return
	}
	for _, r := range records {
		node := Node{ID: r.ID, Addr: net.JoinHostPort(r.IP.String(), formatPort(r.Port)), Port: r.Port}
		m.knownNodes.Add(r.ID.Hash(), node)
	}
}

func (m *Manager) timeoutLoop(ctx context.Context) {
	ticker := time.NewTicker(timeoutTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.evictIdlePeers()
		}
	}
}

func (m *Manager) evictIdlePeers() {
	m.nodesMu.Lock()
	var stale []uint64
	for hash, p := range m.nodes {
		if p.Idle(peerIdleTimeout) {
			stale = append(stale, hash)
		}
	}
	for _, hash := range stale {
		m.nodes[hash].Close()
		delete(m.nodes, hash)
	}
	m.nodesMu.Unlock()

	for _, hash := range stale {
		if m.onDisconnect != nil {
			m.onDisconnect(hash)
		}
	}
}

func (m *Manager) activeNodesLoop(ctx context.Context) {
	if m.cfg.SyncFromBootNodesOnly {
		return
	}
	ticker := time.NewTicker(activeNodesTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.requestActiveNodes()
		}
	}
}

func (m *Manager) requestActiveNodes() {
	m.nodesMu.RLock()
	defer m.nodesMu.RUnlock()
	for _, p := range m.nodes {
		if p.State() != StateActive {
			continue
		}
		_ = p.Send(m.cfg.TokenRules, &ChannelBuffer{Version: protocolVersion, Module: ControlP2P, Action: ActionActiveNodesReq})
	}
}

// ActivePeerCount returns the number of peers currently in StateActive.
func (m *Manager) ActivePeerCount() int {
	m.nodesMu.RLock()
	defer m.nodesMu.RUnlock()
	n := 0
	for _, p := range m.nodes {
		if p.State() == StateActive {
			n++
		}
	}
	return n
}

func configureSocket(conn net.Conn) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	tc.SetReadBuffer(recvBufferBytes)
	tc.SetKeepAlive(true)
	tc.SetKeepAlivePeriod(keepAlive)
}

func formatPort(port uint16) string {
	return strconv.Itoa(int(port))
}
