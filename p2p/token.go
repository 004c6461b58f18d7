// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package p2p

import "sync"

// TokenRules maps a clear (response) route token to the flag (request)
// route token it must pair with, spec §4.9: "looks up clear_token ->
// flag_token via the configured rule map". RouteOf computes both sides.
type TokenRules map[uint32]uint32

// DefaultTokenRules is the one built-in pairing spec §4.9 names:
// "includes the built-in ACTIVENODESRES <- ACTIVENODESREQ".
func DefaultTokenRules() TokenRules {
	return TokenRules{
		RouteOf(protocolVersion, ControlP2P, ActionActiveNodesRes): RouteOf(protocolVersion, ControlP2P, ActionActiveNodesReq),
	}
}

// TokenSet is the per-peer set of outstanding flag tokens, spec §4.9:
// "The peer manager uses per-peer locks for tokens" (§5 shared-resource
// policy).
type TokenSet struct {
	mu     sync.Mutex
	tokens map[uint32]struct{}
}

func newTokenSet() *TokenSet {
	return &TokenSet{tokens: make(map[uint32]struct{})}
}

// Tag records that route was just sent, per spec §4.9: "Every send is
// tagged with its route token and inserted into the peer's tokens set."
func (t *TokenSet) Tag(route uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tokens[route] = struct{}{}
}

// Check applies the token law (spec §8 invariant 8) to an incoming
// frame: if rules has an entry for clearToken, the paired flagToken must
// be present in the set or the message is rejected; a match consumes
// the flag token. No rule present always passes.
func (t *TokenSet) Check(rules TokenRules, clearToken uint32) error {
	flagToken, hasRule := rules[clearToken]
	if !hasRule {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.tokens[flagToken]; !ok {
		return &TokenRejectedError{ClearToken: clearToken}
	}
	delete(t.tokens, flagToken)
	return nil
}
