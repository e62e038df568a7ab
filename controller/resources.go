package controller

import (
	"fmt"
	"sync"

	"github.com/dataplane-sh/chunkctl/internal/coreerr"
)

// ChunkListID is an opaque handle to a master-allocated output chunk-list
// reservation. This core never constructs one itself (the master RPC that
// allocates chunk lists is an external host collaborator per spec §6); it
// only tracks a counted pool of ids handed to it and parcels them out to
// tasks that need one reservation per output table.
type ChunkListID string

// ChunkListPool is an in-memory reservation counter over output chunk-list
// ids per output table, grounded on operation_controller_detail.cpp's
// chunk-list pool plus its low-watermark replenishment signal (spec §3.2
// "Chunk-list reservation accounting"). The actual RPC-backed fetch that
// refills the pool is the host's job; ChunkListPool only tracks what has
// already been handed to this controller and applies the "decline to
// schedule, reschedule after replenishment" policy from spec §7's Resource
// exhaustion row.
type ChunkListPool struct {
	mu sync.Mutex

	lowWatermark int
	available    map[int][]ChunkListID // outputTableIndex -> reserved ids
	waiters      []func()
}

// NewChunkListPool constructs an empty pool with the given low-watermark
// (the pending-count threshold below which the pool signals it wants a
// replenishment fetch).
func NewChunkListPool(lowWatermark int) *ChunkListPool {
	return &ChunkListPool{lowWatermark: lowWatermark, available: make(map[int][]ChunkListID)}
}

// Replenish adds freshly fetched ids for outputTableIndex, grounded on the
// host's chunk-list reservation fetch (spec §6 host interface).
func (p *ChunkListPool) Replenish(outputTableIndex int, ids ...ChunkListID) {
	p.mu.Lock()
	p.available[outputTableIndex] = append(p.available[outputTableIndex], ids...)
	waiters := p.waiters
	p.waiters = nil
	p.mu.Unlock()

	for _, w := range waiters {
		w()
	}
}

// NeedsReplenishment reports whether outputTableIndex's reserved count has
// fallen to or below the low watermark.
func (p *ChunkListPool) NeedsReplenishment(outputTableIndex int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.available[outputTableIndex]) <= p.lowWatermark
}

// Reserve takes one chunk-list id for outputTableIndex, or returns
// ErrResourceExhausted (wrapped in a *coreerr.ResourceExhaustedError) if
// none are available — the caller (a task about to build a job spec)
// should decline to schedule and retry once OnReplenished fires.
func (p *ChunkListPool) Reserve(outputTableIndex int) (ChunkListID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := p.available[outputTableIndex]
	if len(ids) == 0 {
		return "", &coreerr.ResourceExhaustedError{
			Resource: fmt.Sprintf("chunk-list[%d]", outputTableIndex),
			Needed:   1,
			Have:     0,
		}
	}
	id := ids[len(ids)-1]
	p.available[outputTableIndex] = ids[:len(ids)-1]
	return id, nil
}

// OnReplenished registers fn to run the next time Replenish is called with
// any table index. Used by a task that declined to schedule on
// ErrResourceExhausted to re-check as soon as new reservations land.
func (p *ChunkListPool) OnReplenished(fn func()) {
	if fn == nil {
		return
	}
	p.mu.Lock()
	p.waiters = append(p.waiters, fn)
	p.mu.Unlock()
}
