// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package kv is the column-addressed key-value store façade (spec §4.1):
// every persisted byte in the node passes through here. Columns are named
// constants, grouped the way the teacher groups its table constants, with a
// comment documenting the key/value shape of each.
package kv

// DBSchemaVersion tags the on-disk layout. Bump the minor component for a
// backward-compatible column addition, the major component for a layout
// that requires a re-sync.
var DBSchemaVersion = struct{ Major, Minor, Patch uint32 }{Major: 1, Minor: 0, Patch: 0}

// Column names. Each is a distinct namespace inside the underlying store;
// aionlib/kv/mdbx backs each with its own MDBX sub-database and
// aionlib/kv/memdb with its own in-memory btree.
const (
	// Headers: block_num_u64 + hash -> header (RLP). See core/types.Header.
	Headers = "Headers"

	// HeaderCanonical: block_num_u64 -> canonical header hash.
	HeaderCanonical = "CanonicalHeader"

	// HeaderTD: hash -> total difficulty (RLP U256), spec §4.5 step 2.
	HeaderTD = "HeaderTD"

	// Bodies: hash -> block body (transactions list, RLP).
	Bodies = "Bodies"

	// BlockDetails: hash -> BlockDetails{parent, children, td, number},
	// spec §3 "Canonical index".
	BlockDetails = "BlockDetails"

	// BlockReceipts: hash -> BlockReceipts (ordered receipt list, RLP).
	BlockReceipts = "BlockReceipts"

	// TxLookup: tx_hash -> TransactionAddress{block_hash, index}, spec §6.
	TxLookup = "TxLookup"

	// BloomByNumber: block_num_u64 -> coarse log bloom, spec §4.5 "bloom index".
	BloomByNumber = "BloomByNumber"

	// State: the account trie and every per-account storage sub-trie,
	// keyed by node hash. Spec §4.2.
	State = "State"

	// AVMGraph: delta-root -> RLP(storage-root, graph-hash), the managed
	// class's object-graph row, spec §4.3 invariant (3) / §6.
	AVMGraph = "AVMGraph"

	// Code: code hash -> contract bytecode, spec §3 "code is immutable".
	Code = "Code"

	// AliasMeta: b"alias" + alias-hash -> concatenated invoked meta-hashes,
	// spec §4.4 "batched managed-VM path" / §6.
	AliasMeta = "AliasMeta"

	// HeaderChainCandidates: "candidates_{height}" -> inline candidate
	// vector {hash, parent-hash, td}, canonical entry at index 0, spec
	// §4.6 / §6.
	HeaderChainCandidates = "HeaderChainCandidates"

	// HeaderChainCanonical: "{era:08x}_canonical" -> canonical-hash-trie
	// root for era [era*SIZE+1, era*SIZE+SIZE], spec §4.6 / §6 /
	// GLOSSARY "CHT". Despite the key name this column holds CHT roots,
	// not per-height canonical hashes — spec §6 names the key format
	// literally ("Canonical-hash-trie rows live under header_chain keyed
	// by fmt(\"{:08x}_canonical\", n)").
	HeaderChainCanonical = "HeaderChainCanonical"

	// EpochTransition: the single "last canonical transition" row
	// (header + proof blob), GLOSSARY "Epoch transition".
	EpochTransition = "EpochTransition"

	// SyncStageProgress: stage name -> progress cursor.
	SyncStageProgress = "SyncStage"

	// DatabaseInfo: schema metadata for this store.
	DatabaseInfo = "DbInfo"
)

// BestAndLatestKey is the cursor key documented in spec §6: "Best-and-latest
// cursor key: b\"best_and_latest\"".
var BestAndLatestKey = []byte("best_and_latest")

// AliasRowPrefix is the literal row prefix from spec §6:
// `b"alias" + alias-hash -> concatenated meta-hashes`.
var AliasRowPrefix = []byte("alias")

// Tables lists every column a freshly opened store must create, mirroring
// the teacher's ChaindataTables slice.
var Tables = []string{
	Headers, HeaderCanonical, HeaderTD, Bodies, BlockDetails, BlockReceipts,
	TxLookup, BloomByNumber, State, AVMGraph, Code, AliasMeta,
	HeaderChainCandidates, HeaderChainCanonical, EpochTransition,
	SyncStageProgress, DatabaseInfo,
}
