package pool

import (
	"github.com/dataplane-sh/chunkctl/chunk"
	"github.com/dataplane-sh/chunkctl/internal/arena"
	"github.com/dataplane-sh/chunkctl/internal/coreerr"
	"github.com/dataplane-sh/chunkctl/progress"
)

// localityEntry is the per-address bucket of pendingLocalityMap (spec
// §4.3): a running locality total plus the multiset of stripes contributing
// to it (a stripe with two replicas on one address appears twice).
type localityEntry struct {
	locality int64
	stripes  []*chunk.Stripe
}

// Unordered produces N jobs from a stream of stripes where order is
// irrelevant, balancing data weight across jobs while preferring each job's
// requesting address's local stripes (spec §4.3).
//
// Grounded on original_source/yt/yt/server/lib/chunk_pools/unordered_chunk_pool.h
// and yt/yt/server/lib/legacy_chunk_pools/unordered_chunk_pool.h.
type Unordered struct {
	inputs       *arena.Arena[*SuspendableStripe]
	inputHandles []arena.Handle
	finished     bool

	jobCount int

	pendingGlobal      map[*chunk.Stripe]struct{}
	pendingGlobalOrder []*chunk.Stripe
	pendingLocality    map[string]*localityEntry

	outputs       *arena.Arena[*outputEntry]
	lostCookies   map[Cookie]struct{}
	replayCookies map[Cookie]struct{}

	jobProgress  progress.Counter
	dataProgress progress.Counter
}

type outputEntry struct {
	list  *chunk.StripeList
	state State
}

// NewUnordered constructs an Unordered pool targeting jobCount output jobs.
func NewUnordered(jobCount int) *Unordered {
	if jobCount < 1 {
		jobCount = 1
	}
	u := &Unordered{
		inputs:          arena.New[*SuspendableStripe](),
		jobCount:        jobCount,
		pendingGlobal:   make(map[*chunk.Stripe]struct{}),
		pendingLocality: make(map[string]*localityEntry),
		outputs:         arena.New[*outputEntry](),
		lostCookies:     make(map[Cookie]struct{}),
		replayCookies:   make(map[Cookie]struct{}),
	}
	u.jobProgress.Set(int64(jobCount))
	return u
}

func (p *Unordered) register(stripe *chunk.Stripe) {
	p.pendingGlobal[stripe] = struct{}{}
	p.pendingGlobalOrder = append(p.pendingGlobalOrder, stripe)
	for _, sl := range stripe.Slices {
		for _, r := range sl.Chunk().Replicas() {
			locality := sl.Chunk().DataWeight()
			if locality <= 0 {
				continue
			}
			e, ok := p.pendingLocality[r.Address]
			if !ok {
				e = &localityEntry{}
				p.pendingLocality[r.Address] = e
			}
			e.locality += locality
			e.stripes = append(e.stripes, stripe)
		}
	}
}

func (p *Unordered) unregister(stripe *chunk.Stripe) {
	delete(p.pendingGlobal, stripe)
	for i, s := range p.pendingGlobalOrder {
		if s == stripe {
			p.pendingGlobalOrder = append(p.pendingGlobalOrder[:i], p.pendingGlobalOrder[i+1:]...)
			break
		}
	}
	for _, sl := range stripe.Slices {
		for _, r := range sl.Chunk().Replicas() {
			locality := sl.Chunk().DataWeight()
			if locality <= 0 {
				continue
			}
			e, ok := p.pendingLocality[r.Address]
			if !ok {
				continue
			}
			e.locality -= locality
			for i, s := range e.stripes {
				if s == stripe {
					e.stripes = append(e.stripes[:i], e.stripes[i+1:]...)
					break
				}
			}
			if len(e.stripes) == 0 {
				delete(p.pendingLocality, r.Address)
			}
		}
	}
}

func (p *Unordered) Add(stripe *chunk.Stripe) (Cookie, error) {
	if p.finished {
		return NullCookie, coreerr.NewInvariantError("pool add after finish", "Unordered.Add called after Finish")
	}
	s := NewSuspendableStripe(stripe)
	h := p.inputs.Alloc(s)
	p.inputHandles = append(p.inputHandles, h)
	p.register(stripe)
	p.dataProgress.Increment(stripe.DataWeight())
	return Cookie{handle: h}, nil
}

// Suspend/Resume are disallowed on unordered pools (spec §4.3: "no stable
// input-cookie semantics after partitioning").
func (p *Unordered) Suspend(cookie Cookie) error {
	return coreerr.NewInvariantError("unsupported operation", "Unordered.Suspend is disallowed")
}

func (p *Unordered) Resume(cookie Cookie, stripe *chunk.Stripe) error {
	return coreerr.NewInvariantError("unsupported operation", "Unordered.Resume is disallowed")
}

func (p *Unordered) Finish() { p.finished = true }

func (p *Unordered) IsFinished() bool { return p.finished }

func (p *Unordered) pendingWeight() int64 {
	var total int64
	for s := range p.pendingGlobal {
		total += s.DataWeight()
	}
	return total
}

func (p *Unordered) GetPendingJobCount() int {
	if !p.finished {
		return 0
	}
	if len(p.lostCookies) > 0 {
		return len(p.lostCookies)
	}
	if len(p.pendingGlobal) == 0 {
		return 0
	}
	return 1
}

func (p *Unordered) GetTotalJobCount() int       { return p.jobCount }
func (p *Unordered) GetPendingDataWeight() int64 { return p.dataProgress.Pending() }
func (p *Unordered) GetTotalDataWeight() int64   { return p.dataProgress.Total() }

func (p *Unordered) GetLocality(addr string) int64 {
	if e, ok := p.pendingLocality[addr]; ok {
		return e.locality
	}
	return 0
}

// Extract implements the three-step policy of spec §4.3.
func (p *Unordered) Extract(addr string) Cookie {
	if p.GetPendingJobCount() == 0 {
		return NullCookie
	}

	// Step 2: replay a lost cookie before allocating anything new.
	for cookie := range p.lostCookies {
		delete(p.lostCookies, cookie)
		p.replayCookies[cookie] = struct{}{}
		entry, ok := p.outputs.Get(cookie.handle)
		if ok {
			entry.state = StateRunning
		}
		p.jobProgress.Start(1)
		return cookie
	}

	// Step 3: carve a fresh job out of pending stripes.
	remainingJobs := int64(p.jobCount) - (p.jobProgress.Running() + p.jobProgress.Completed())
	if remainingJobs < 1 {
		remainingJobs = 1
	}
	idealWeight := p.pendingWeight() / remainingJobs
	if idealWeight < 1 {
		idealWeight = 1
	}

	var chosen []*chunk.Stripe
	var accumulated int64

	if e, ok := p.pendingLocality[addr]; ok {
		local := append([]*chunk.Stripe(nil), e.stripes...)
		for _, s := range local {
			if accumulated >= idealWeight {
				break
			}
			if _, stillPending := p.pendingGlobal[s]; !stillPending {
				continue
			}
			chosen = append(chosen, s)
			accumulated += s.DataWeight()
		}
	}
	if accumulated < idealWeight {
		globalOrder := append([]*chunk.Stripe(nil), p.pendingGlobalOrder...)
		for _, s := range globalOrder {
			if accumulated >= idealWeight {
				break
			}
			if _, stillPending := p.pendingGlobal[s]; !stillPending {
				continue
			}
			already := false
			for _, c := range chosen {
				if c == s {
					already = true
					break
				}
			}
			if already {
				continue
			}
			chosen = append(chosen, s)
			accumulated += s.DataWeight()
		}
	}
	if len(chosen) == 0 {
		return NullCookie
	}
	for _, s := range chosen {
		p.unregister(s)
	}

	list := chunk.NewStripeList(chosen...)
	entry := &outputEntry{list: list, state: StateRunning}
	h := p.outputs.Alloc(entry)
	p.jobProgress.Start(1)
	p.dataProgress.Start(accumulated)
	return Cookie{handle: h}
}

func (p *Unordered) GetStripeList(cookie Cookie) *chunk.StripeList {
	entry, ok := p.outputs.Get(cookie.handle)
	if !ok {
		return nil
	}
	return entry.list
}

func (p *Unordered) Completed(cookie Cookie) error {
	if _, ok := p.replayCookies[cookie]; ok {
		delete(p.replayCookies, cookie)
		p.jobProgress.Completed(1)
		return nil
	}
	entry, ok := p.outputs.Get(cookie.handle)
	if !ok || entry.state != StateRunning {
		return coreerr.NewInvariantError("bad cookie transition", "Unordered.Completed on unknown/non-running cookie")
	}
	entry.state = StateCompleted
	p.jobProgress.Completed(1)
	p.dataProgress.Completed(entry.list.TotalDataWeight())
	return nil
}

func (p *Unordered) Failed(cookie Cookie) error {
	entry, ok := p.outputs.Get(cookie.handle)
	if !ok {
		return coreerr.NewInvariantError("bad cookie transition", "Unordered.Failed on unknown cookie")
	}
	delete(p.replayCookies, cookie)
	for _, s := range entry.list.Stripes {
		p.register(s)
	}
	p.outputs.Free(cookie.handle)
	p.jobProgress.Failed(1)
	p.dataProgress.Failed(entry.list.TotalDataWeight())
	return nil
}

func (p *Unordered) Aborted(cookie Cookie) error {
	entry, ok := p.outputs.Get(cookie.handle)
	if !ok {
		return coreerr.NewInvariantError("bad cookie transition", "Unordered.Aborted on unknown cookie")
	}
	delete(p.replayCookies, cookie)
	for _, s := range entry.list.Stripes {
		p.register(s)
	}
	p.outputs.Free(cookie.handle)
	p.jobProgress.Aborted(1)
	p.dataProgress.Aborted(entry.list.TotalDataWeight())
	return nil
}

func (p *Unordered) Lost(cookie Cookie) error {
	entry, ok := p.outputs.Get(cookie.handle)
	if !ok || entry.state != StateCompleted {
		return coreerr.NewInvariantError("bad cookie transition", "Unordered.Lost on non-completed cookie")
	}
	entry.list.ResetLocality()
	entry.list.IsApproximate = true
	entry.state = StatePending
	p.lostCookies[cookie] = struct{}{}
	p.jobProgress.Lost(1)
	p.dataProgress.Lost(entry.list.TotalDataWeight())
	return nil
}
