// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package miner

import "fmt"

// Import result kinds from spec §7's "Import" group, scoped here to the
// transaction queue (spec §4.8's admission checks).
type AlreadyQueuedError struct{ Hash string }

func (e *AlreadyQueuedError) Error() string { return fmt.Sprintf("tx already queued: %s", e.Hash) }

type AlreadyImportedError struct{ Hash string }

func (e *AlreadyImportedError) Error() string { return fmt.Sprintf("tx already imported: %s", e.Hash) }

// KnownBadError reports a transaction already known to be bad. TxQueue.Add
// does not return it: a banned sender is reported as BannedSenderError.
type KnownBadError struct{ Hash string }

func (e *KnownBadError) Error() string { return fmt.Sprintf("tx known bad: %s", e.Hash) }

type UnknownParentError struct{ ParentHash string }

func (e *UnknownParentError) Error() string {
	return fmt.Sprintf("unknown parent: %s", e.ParentHash)
}

type TemporarilyInvalidError struct{ Reason string }

func (e *TemporarilyInvalidError) Error() string {
	return fmt.Sprintf("temporarily invalid: %s", e.Reason)
}

// PowHashInvalidError is spec §4.8 Submission: no queued template has
// mine_hash == the submitted hash.
type PowHashInvalidError struct{}

func (e *PowHashInvalidError) Error() string { return "pow hash invalid" }

// PowInvalidError is spec §4.8 Submission: the submitted seal does not
// satisfy the engine's proof check.
type PowInvalidError struct{}

func (e *PowInvalidError) Error() string { return "pow invalid" }

// DuplicateTransactionError rejects a (sender, nonce) pair already held
// in the queue, spec §4.8's "Duplicates ... are rejected".
type DuplicateTransactionError struct{ Hash string }

func (e *DuplicateTransactionError) Error() string {
	return fmt.Sprintf("duplicate transaction: %s", e.Hash)
}

// BannedSenderError rejects every transaction from a sender the
// configuration has banned, spec §4.8.
type BannedSenderError struct{ Sender string }

func (e *BannedSenderError) Error() string { return fmt.Sprintf("banned sender: %s", e.Sender) }

// LocalCapExceededError rejects a local sender's queue depth beyond its
// configured cap, spec §4.8's "local-cap violations are rejected".
type LocalCapExceededError struct{ Sender string }

func (e *LocalCapExceededError) Error() string {
	return fmt.Sprintf("local cap exceeded: %s", e.Sender)
}
