package pool

import (
	"github.com/dataplane-sh/chunkctl/chunk"
	"github.com/dataplane-sh/chunkctl/internal/arena"
	"github.com/dataplane-sh/chunkctl/internal/coreerr"
	"github.com/dataplane-sh/chunkctl/progress"
)

// Atomic collects every input stripe into exactly one extractable stripe
// list (spec §4.2: "one job consuming all inputs"). Because there is only
// ever one job, its output cookie is allocated once and reused across every
// Failed/Aborted/Lost re-extraction (spec §4.1 lifecycle: "Extract(same
// cookie)").
//
// Grounded on original_source/yt/yt/server/lib/chunk_pools/vanilla_chunk_pool.h
// (the vanilla/atomic single-job pool variant) and
// yt/server/scheduler/chunk_pool.cpp's TAtomicChunkPool.
type Atomic struct {
	inputs       *arena.Arena[*SuspendableStripe]
	inputHandles []arena.Handle
	finished     bool
	suspendCount int

	jobProgress  progress.Counter
	dataProgress progress.Counter

	outputs      *arena.Arena[struct{}]
	outputCookie Cookie
	list         *chunk.StripeList
	state        State
}

// NewAtomic constructs an empty Atomic pool.
func NewAtomic() *Atomic {
	a := &Atomic{
		inputs:  arena.New[*SuspendableStripe](),
		outputs: arena.New[struct{}](),
		state:   StateIdle,
	}
	a.jobProgress.Set(1)
	return a
}

func (p *Atomic) Add(stripe *chunk.Stripe) (Cookie, error) {
	if p.finished {
		return NullCookie, coreerr.NewInvariantError("pool add after finish", "Atomic.Add called after Finish")
	}
	s := NewSuspendableStripe(stripe)
	h := p.inputs.Alloc(s)
	p.inputHandles = append(p.inputHandles, h)
	p.dataProgress.Increment(stripe.DataWeight())
	return Cookie{handle: h}, nil
}

func (p *Atomic) Suspend(cookie Cookie) error {
	s, ok := p.inputs.Get(cookie.handle)
	if !ok {
		return coreerr.NewInvariantError("unknown cookie", "Atomic.Suspend on unregistered cookie")
	}
	s.Suspend()
	p.suspendCount++
	return nil
}

func (p *Atomic) Resume(cookie Cookie, stripe *chunk.Stripe) error {
	s, ok := p.inputs.Get(cookie.handle)
	if !ok {
		return coreerr.NewInvariantError("unknown cookie", "Atomic.Resume on unregistered cookie")
	}
	wasSuspended := s.IsSuspended()
	s.Resume(stripe)
	if wasSuspended && !s.IsSuspended() && p.suspendCount > 0 {
		p.suspendCount--
	}
	return nil
}

func (p *Atomic) Finish() { p.finished = true }

func (p *Atomic) IsFinished() bool { return p.finished }

// GetPendingJobCount is 1 iff finished, unsuspended, and the sole job is not
// currently running or completed (spec §4.2).
func (p *Atomic) GetPendingJobCount() int {
	if !p.finished || p.suspendCount > 0 {
		return 0
	}
	if p.state == StateRunning || p.state == StateCompleted {
		return 0
	}
	return 1
}

func (p *Atomic) GetTotalJobCount() int       { return 1 }
func (p *Atomic) GetPendingDataWeight() int64 { return p.dataProgress.Pending() }
func (p *Atomic) GetTotalDataWeight() int64   { return p.dataProgress.Total() }

func (p *Atomic) liveStripes() []*SuspendableStripe {
	out := make([]*SuspendableStripe, 0, len(p.inputHandles))
	for _, h := range p.inputHandles {
		if s, ok := p.inputs.Get(h); ok {
			out = append(out, s)
		}
	}
	return out
}

func (p *Atomic) GetLocality(addr string) int64 {
	if p.GetPendingJobCount() == 0 {
		return 0
	}
	var total int64
	for _, s := range p.liveStripes() {
		total += s.Stripe.LocalityFor(addr)
	}
	return total
}

// Extract returns the pool's single output cookie, allocating it on first
// extraction and reusing it verbatim on every replay after Failed/Aborted/
// Lost.
func (p *Atomic) Extract(addr string) Cookie {
	if p.GetPendingJobCount() == 0 {
		return NullCookie
	}
	if p.outputCookie.IsNull() {
		live := p.liveStripes()
		stripes := make([]*chunk.Stripe, 0, len(live))
		for _, s := range live {
			if !s.IsSuspended() {
				stripes = append(stripes, s.Stripe)
			}
		}
		p.list = chunk.NewStripeList(stripes...)
		p.outputCookie = Cookie{handle: p.outputs.Alloc(struct{}{})}
	}
	p.state = StateRunning
	p.jobProgress.Start(1)
	if pending := p.dataProgress.Pending(); pending > 0 {
		p.dataProgress.Start(pending)
	}
	return p.outputCookie
}

func (p *Atomic) GetStripeList(cookie Cookie) *chunk.StripeList {
	if cookie != p.outputCookie {
		return nil
	}
	return p.list
}

func (p *Atomic) Completed(cookie Cookie) error {
	if cookie != p.outputCookie || p.state != StateRunning {
		return coreerr.NewInvariantError("bad cookie transition", "Atomic.Completed on non-running cookie")
	}
	p.state = StateCompleted
	p.jobProgress.Completed(1)
	p.dataProgress.Completed(p.dataProgress.Running())
	return nil
}

func (p *Atomic) Failed(cookie Cookie) error {
	if cookie != p.outputCookie || p.state != StateRunning {
		return coreerr.NewInvariantError("bad cookie transition", "Atomic.Failed on non-running cookie")
	}
	p.state = StatePending
	p.jobProgress.Failed(1)
	p.dataProgress.Failed(p.dataProgress.Running())
	return nil
}

func (p *Atomic) Aborted(cookie Cookie) error {
	if cookie != p.outputCookie || p.state != StateRunning {
		return coreerr.NewInvariantError("bad cookie transition", "Atomic.Aborted on non-running cookie")
	}
	p.state = StatePending
	p.jobProgress.Aborted(1)
	p.dataProgress.Aborted(p.dataProgress.Running())
	return nil
}

func (p *Atomic) Lost(cookie Cookie) error {
	if cookie != p.outputCookie || p.state != StateCompleted {
		return coreerr.NewInvariantError("bad cookie transition", "Atomic.Lost on non-completed cookie")
	}
	p.state = StatePending
	p.jobProgress.Lost(1)
	p.dataProgress.Lost(p.dataProgress.Completed())
	return nil
}
