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
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/aionnetwork/aion-lib/common"
)

// TestDrainPreservesSubmissionOrderUnderRandomInterleaving is spec §8
// law 7: "for any interleaving of worker verifications, drain(∞)
// returns items in submission order." Each run submits a random-length
// chain of items whose per-item verify call sleeps a random, tiny
// duration — so faster-drawn items finish out of submission order when
// more than one worker is active — and asserts Drain still returns
// every item in the order it was imported.
func TestDrainPreservesSubmissionOrderUnderRandomInterleaving(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 24).Draw(rt, "n")
		delaysMs := rapid.SliceOfN(rapid.IntRange(0, 4), n, n).Draw(rt, "delays")

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := New(func(ctx context.Context, it *Item) error {
			idx := int(it.Number)
			select {
			case <-time.After(time.Duration(delaysMs[idx]) * time.Millisecond):
			case <-ctx.Done():
			}
			return nil
		})
		q.Start(ctx)

		hashes := make([]common.Hash, n)
		for i := 0; i < n; i++ {
			h := common.BytesToHash([]byte{byte(i + 1)})
			hashes[i] = h
			var parent common.Hash
			if i > 0 {
				parent = hashes[i-1]
			}
			if err := q.Import(&Item{Hash: h, ParentHash: parent, Number: uint64(i)}); err != nil {
				rt.Fatalf("Import: %v", err)
			}
		}

		deadline := time.Now().Add(5 * time.Second)
		var out []*Item
		for time.Now().Before(deadline) {
			out = append(out, q.Drain(n-len(out))...)
			if len(out) == n {
				break
			}
			time.Sleep(time.Millisecond)
		}
		if err := q.Stop(); err != nil {
			rt.Fatalf("Stop: %v", err)
		}

		if len(out) != n {
			rt.Fatalf("drained %d of %d items before deadline", len(out), n)
		}
		for i, it := range out {
			if it.Hash != hashes[i] {
				rt.Fatalf("order mismatch at %d: got %x want %x", i, it.Hash, hashes[i])
			}
		}
	})
}
