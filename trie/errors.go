// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package trie

import "github.com/pkg/errors"

// errNodeCorrupt is returned when a stored node's encoding does not match
// any of the three known node kinds, a cheap sanity check since trie nodes
// are otherwise trusted input from the node's own key-value store.
var errNodeCorrupt = errors.New("trie: corrupt node encoding")
