// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package verification implements spec §4.7's verification queue (C7):
// a three-stage unverified -> verifying -> verified pipeline serviced by
// an elastic worker pool, preserving submission order and propagating a
// bad verdict to every descendant of a tainted item.
package verification

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/aionnetwork/aion-lib/common"
)

// ReadjustmentPeriod is spec §4.7's READJUSTMENT_PERIOD: the averaging
// window collect_garbage uses before resizing the active worker count.
const ReadjustmentPeriod = 5 * time.Second

// maxWorkers caps the pool at spec §4.7/§5's min(cpu_count, 8).
func maxWorkers() int {
	n := runtime.NumCPU()
	if n > 8 {
		n = 8
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Item is one unit moving through the pipeline: a header-shaped object
// identified by hash/parent-hash so a bad verdict can be propagated to
// its descendants, carrying whatever payload the engine check needs.
type Item struct {
	Hash            common.Hash
	ParentHash      common.Hash
	Number          uint64
	TotalDifficulty common.U256
	MemSize         uint64
	Payload         interface{}
}

// VerifyFunc is the engine's check, spec §4.7: "perform the engine's
// check". Returning a non-nil error marks the item (and everything
// descending from it still in the pipeline) bad.
type VerifyFunc func(ctx context.Context, item *Item) error

// QueueInfo answers spec §4.7's queue_info(), the back-pressure gauge.
type QueueInfo struct {
	Unverified int
	Verifying  int
	Verified   int
	MemUsed    uint64
}

// IsFull implements spec §4.7's back-pressure rule: full when either
// item count >= maxQueueSize or heap estimate >= maxMemUse.
func (qi QueueInfo) IsFull(maxQueueSize int, maxMemUse uint64) bool {
	total := qi.Unverified + qi.Verifying + qi.Verified
	return total >= maxQueueSize || qi.MemUsed >= maxMemUse
}

type verifyingEntry struct {
	item *Item
	done bool
	bad  bool
}

// Queue is spec §4.7's verification queue.
type Queue struct {
	verify VerifyFunc

	mu         sync.Mutex
	cond       *sync.Cond
	unverified []*Item
	verifying  []*verifyingEntry // ordered by submission time; head drains once done && !bad
	verified   []*Item
	processing map[common.Hash]*Item // every hash currently unverified/verifying/verified
	children   map[common.Hash][]common.Hash
	badHashes  map[common.Hash]struct{}
	badNumbers *roaring.Bitmap
	memUsed    uint64

	active     int32 // atomic, target worker count
	sem        *semaphore.Weighted
	cancel     context.CancelFunc
	group      *errgroup.Group
	ratioAvg   float64
	ratioTicks int
}

// New builds a Queue that calls verify for each item pulled from
// unverified. The pool is not started until Start is called.
func New(verify VerifyFunc) *Queue {
	q := &Queue{
		verify:     verify,
		processing: make(map[common.Hash]*Item),
		children:   make(map[common.Hash][]common.Hash),
		badHashes:  make(map[common.Hash]struct{}),
		badNumbers: roaring.New(),
		active:     int32(maxWorkers()),
		sem:        semaphore.NewWeighted(int64(maxWorkers())),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Start launches the worker pool and the collect_garbage readjustment
// loop; both stop when ctx is cancelled or Stop is called.
func (q *Queue) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	g, gctx := errgroup.WithContext(ctx)
	q.group = g
	for i := 0; i < maxWorkers(); i++ {
		id := int32(i)
		g.Go(func() error { return q.worker(gctx, id) })
	}
	g.Go(func() error { return q.collectGarbageLoop(gctx) })
}

// Stop cancels every worker and the readjustment loop and waits for
// them to exit.
func (q *Queue) Stop() error {
	if q.cancel == nil {
		return nil
	}
	q.cancel()
	q.mu.Lock()
	q.cond.Broadcast()
	q.mu.Unlock()
	return q.group.Wait()
}

// Import implements spec §4.7's import(item) -> Result<hash>.
func (q *Queue) Import(item *Item) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, bad := q.badHashes[item.Hash]; bad {
		return &KnownBadError{Hash: item.Hash}
	}
	if _, ok := q.processing[item.Hash]; ok {
		return &AlreadyQueuedError{Hash: item.Hash}
	}
	if _, bad := q.badHashes[item.ParentHash]; bad {
		q.badHashes[item.Hash] = struct{}{}
		q.badNumbers.Add(uint32(item.Number))
		return &KnownBadError{Hash: item.Hash}
	}

	q.processing[item.Hash] = item
	q.children[item.ParentHash] = append(q.children[item.ParentHash], item.Hash)
	q.unverified = append(q.unverified, item)
	q.memUsed += item.MemSize
	q.cond.Broadcast()
	return nil
}

// worker pulls items off unverified while its id is within the current
// active target, sleeping on the condvar otherwise (spec §4.7
// "Scheduling": "Workers sleep on a condvar when unverified is empty;
// the pool can be scaled up or down at runtime").
func (q *Queue) worker(ctx context.Context, id int32) error {
	for {
		q.mu.Lock()
		for {
			if ctx.Err() != nil {
				q.mu.Unlock()
				return nil
			}
			if id < atomic.LoadInt32(&q.active) && len(q.unverified) > 0 {
				break
			}
			q.cond.Wait()
		}
		item := q.unverified[0]
		q.unverified = q.unverified[1:]
		entry := &verifyingEntry{item: item}
		q.verifying = append(q.verifying, entry)
		q.mu.Unlock()

		if err := q.sem.Acquire(ctx, 1); err != nil {
			return nil
		}
		verifyErr := q.verify(ctx, item)
		q.sem.Release(1)

		q.mu.Lock()
		entry.done = true
		entry.bad = verifyErr != nil
		q.drainVerifyingLocked()
		q.cond.Broadcast()
		q.mu.Unlock()
	}
}

// drainVerifyingLocked promotes every contiguous done entry at the head
// of verifying into verified, preserving submission order per spec
// §4.7: "becomes verified only when it reaches the head of verifying".
// A bad head taints its descendants transitively before being dropped.
func (q *Queue) drainVerifyingLocked() {
	for len(q.verifying) > 0 && q.verifying[0].done {
		entry := q.verifying[0]
		q.verifying = q.verifying[1:]
		if entry.bad {
			q.markBadLocked(entry.item.Hash)
			continue
		}
		q.verified = append(q.verified, entry.item)
	}
}

func (q *Queue) markBadLocked(hash common.Hash) {
	if _, ok := q.badHashes[hash]; ok {
		return
	}
	q.badHashes[hash] = struct{}{}
	if item, ok := q.processing[hash]; ok {
		q.badNumbers.Add(uint32(item.Number))
	}
	for _, child := range q.children[hash] {
		q.markBadLocked(child)
	}
}

// Drain implements spec §4.7's drain(n): up to n verified items, in
// order, removed from the queue and from the processing set.
func (q *Queue) Drain(n int) []*Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n > len(q.verified) {
		n = len(q.verified)
	}
	out := q.verified[:n]
	q.verified = q.verified[n:]
	for _, it := range out {
		delete(q.processing, it.Hash)
		delete(q.children, it.ParentHash)
		q.memUsed -= it.MemSize
	}
	return out
}

// MarkAsBad implements spec §4.7's mark_as_bad(hashes), tainting every
// descendant still held in the pipeline.
func (q *Queue) MarkAsBad(hashes []common.Hash) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, h := range hashes {
		q.markBadLocked(h)
	}
}

// MarkAsGood implements spec §4.7's mark_as_good(hashes): releases the
// named hashes from the processing map without promoting them to
// verified (the caller has independently confirmed them good, e.g.
// because they are already part of the canonical chain).
func (q *Queue) MarkAsGood(hashes []common.Hash) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, h := range hashes {
		if it, ok := q.processing[h]; ok {
			q.memUsed -= it.MemSize
		}
		delete(q.processing, h)
		delete(q.badHashes, h)
	}
}

// TotalDifficulty implements spec §4.7's total_difficulty(): the sum
// over every entry still in the pipeline.
func (q *Queue) TotalDifficulty() common.U256 {
	q.mu.Lock()
	defer q.mu.Unlock()
	var sum common.U256
	for _, it := range q.processing {
		sum.Add(&sum, &it.TotalDifficulty)
	}
	return sum
}

// QueueInfo implements spec §4.7's queue_info().
func (q *Queue) QueueInfo() QueueInfo {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueInfo{
		Unverified: len(q.unverified),
		Verifying:  len(q.verifying),
		Verified:   len(q.verified),
		MemUsed:    q.memUsed,
	}
}

// collectGarbageLoop implements spec §4.7's collect_garbage: every
// ReadjustmentPeriod tick, average the unverified/verified ratio and
// scale the active worker count up when the queue is backing up or
// down when it is starved for work.
func (q *Queue) collectGarbageLoop(ctx context.Context) error {
	ticker := time.NewTicker(ReadjustmentPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			q.collectGarbage()
		}
	}
}

func (q *Queue) collectGarbage() {
	q.mu.Lock()
	defer q.mu.Unlock()

	ratio := 0.0
	if len(q.verified) > 0 {
		ratio = float64(len(q.unverified)) / float64(len(q.verified)+1)
	} else if len(q.unverified) > 0 {
		ratio = float64(len(q.unverified))
	}
	q.ratioTicks++
	q.ratioAvg += (ratio - q.ratioAvg) / float64(q.ratioTicks)

	max := int32(maxWorkers())
	cur := atomic.LoadInt32(&q.active)
	switch {
	case q.ratioAvg > 1.0 && cur < max:
		atomic.AddInt32(&q.active, 1)
	case q.ratioAvg < 0.25 && cur > 1:
		atomic.AddInt32(&q.active, -1)
	}
	q.cond.Broadcast()
}
