// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package verification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aionnetwork/aion-lib/common"
)

func hashOf(b byte) common.Hash { return common.BytesToHash([]byte{b}) }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestImportRejectsDuplicateAndKnownBad(t *testing.T) {
	q := New(func(context.Context, *Item) error { return nil })
	item := &Item{Hash: hashOf(1)}
	require.NoError(t, q.Import(item))
	require.IsType(t, &AlreadyQueuedError{}, q.Import(item))

	q.MarkAsBad([]common.Hash{hashOf(2)})
	require.IsType(t, &KnownBadError{}, q.Import(&Item{Hash: hashOf(2)}))
}

func TestVerifiedPreservesSubmissionOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := New(func(ctx context.Context, it *Item) error {
		if it.Hash == hashOf(2) {
			time.Sleep(20 * time.Millisecond)
		}
		return nil
	})
	q.Start(ctx)

	require.NoError(t, q.Import(&Item{Hash: hashOf(1)}))
	require.NoError(t, q.Import(&Item{Hash: hashOf(2)}))
	require.NoError(t, q.Import(&Item{Hash: hashOf(3)}))

	waitFor(t, func() bool { return q.QueueInfo().Verified == 3 })
	out := q.Drain(3)
	require.Equal(t, []common.Hash{hashOf(1), hashOf(2), hashOf(3)}, []common.Hash{out[0].Hash, out[1].Hash, out[2].Hash})
}

func TestBadItemTaintsDescendants(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bad := hashOf(1)
	q := New(func(ctx context.Context, it *Item) error {
		if it.Hash == bad {
			return errors.New("boom")
		}
		return nil
	})
	q.Start(ctx)

	require.NoError(t, q.Import(&Item{Hash: bad}))
	require.NoError(t, q.Import(&Item{Hash: hashOf(2), ParentHash: bad}))

	waitFor(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		_, ok := q.badHashes[hashOf(2)]
		return ok
	})

	err := q.Import(&Item{Hash: hashOf(3), ParentHash: hashOf(2)})
	require.IsType(t, &KnownBadError{}, err)
}

func TestQueueInfoIsFull(t *testing.T) {
	qi := QueueInfo{Unverified: 5, Verifying: 3, Verified: 2}
	require.True(t, qi.IsFull(10, 1<<30))
	require.False(t, qi.IsFull(11, 1<<30))
	require.True(t, QueueInfo{MemUsed: 100}.IsFull(1000, 50))
}
