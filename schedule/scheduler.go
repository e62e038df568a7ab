// Package schedule implements the locality-hinted, priority-layered
// dispatch loop over pending tasks (spec §4.8): tasks register locality
// hints (one per chunk-replica address appearing in their input) and a
// pending (global) hint, and each node heartbeat walks priority levels
// highest to lowest, preferring a node-local task before falling back to
// the delayed-execution-gated global set.
//
// Grounded on original_source/yt/server/scheduler/{scheduling_context.cpp,
// scheduling_context_detail.h}.
package schedule

import (
	"sync"
	"time"

	"github.com/dataplane-sh/chunkctl/internal/coreerr"
	"github.com/dataplane-sh/chunkctl/job"
	"github.com/joeycumines/go-catrate"
	"golang.org/x/exp/rand"
)

// bucket is one priority level's pending-task state, grounded on spec
// §4.8's `pendingTasksByPriority[p] = {globalTasks, addressToLocalTasks}`.
type bucket struct {
	globalOrder []*job.Task
	global      map[*job.Task]struct{}
	local       map[string]map[*job.Task]struct{}
}

func newBucket() *bucket {
	return &bucket{global: make(map[*job.Task]struct{}), local: make(map[string]map[*job.Task]struct{})}
}

// Scheduler is the dispatch loop described in spec §4.8.
type Scheduler struct {
	mu sync.Mutex

	localityDelay time.Duration
	buckets       map[int]*bucket
	priorities    []int // maintained sorted descending

	minEnvelope    job.Resources
	haveMinEnvelope bool

	firstSeen map[*job.Task]time.Time
	taskDelay map[*job.Task]time.Duration

	starving   map[string]bool
	overrideRate *catrate.Limiter

	rng *rand.Rand
}

// Option configures a Scheduler at construction time.
type Option func(*Scheduler)

// WithStarvationOverrideRate installs a custom catrate.Limiter governing how
// often a starving task group may bypass its delayed-execution timer.
// Defaults to one override per task group per second.
func WithStarvationOverrideRate(limiter *catrate.Limiter) Option {
	return func(s *Scheduler) { s.overrideRate = limiter }
}

// New constructs a Scheduler with the given base delayed-execution window
// (spec §4.8 "localityDelay").
func New(localityDelay time.Duration, opts ...Option) *Scheduler {
	s := &Scheduler{
		localityDelay: localityDelay,
		buckets:       make(map[int]*bucket),
		firstSeen:     make(map[*job.Task]time.Time),
		taskDelay:     make(map[*job.Task]time.Duration),
		starving:      make(map[string]bool),
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.overrideRate == nil {
		s.overrideRate = catrate.NewLimiter(map[time.Duration]int{time.Second: 1})
	}
	return s
}

func (s *Scheduler) bucketFor(priority int) *bucket {
	b, ok := s.buckets[priority]
	if !ok {
		b = newBucket()
		s.buckets[priority] = b
		s.priorities = append(s.priorities, priority)
		sortDescending(s.priorities)
	}
	return b
}

// RegisterTask registers task under priority, with a locality hint for
// every address in addresses plus an implicit global (pending) hint — spec
// §4.8: "Tasks register themselves via locality hints ... and pending
// hints (global availability)".
func (s *Scheduler) RegisterTask(task *job.Task, priority int, addresses []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.bucketFor(priority)
	if _, ok := b.global[task]; !ok {
		b.global[task] = struct{}{}
		b.globalOrder = append(b.globalOrder, task)
	}
	for _, addr := range addresses {
		set, ok := b.local[addr]
		if !ok {
			set = make(map[*job.Task]struct{})
			b.local[addr] = set
		}
		set[task] = struct{}{}
	}

	min := task.GetMinNeededResources()
	if !s.haveMinEnvelope {
		s.minEnvelope = min
		s.haveMinEnvelope = true
	} else {
		s.minEnvelope = componentwiseMin(s.minEnvelope, min)
	}
}

// UnregisterTask removes task from every priority bucket it was registered
// under — called once a task is done (spec §4.7 "a task group shares a
// minimum-resource envelope"; a finished task must stop contending for
// heartbeats).
func (s *Scheduler) UnregisterTask(task *job.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.buckets {
		if _, ok := b.global[task]; ok {
			delete(b.global, task)
			for i, t := range b.globalOrder {
				if t == task {
					b.globalOrder = append(b.globalOrder[:i], b.globalOrder[i+1:]...)
					break
				}
			}
		}
		for addr, set := range b.local {
			if _, ok := set[task]; ok {
				delete(set, task)
				if len(set) == 0 {
					delete(b.local, addr)
				}
			}
		}
	}
	delete(s.firstSeen, task)
	delete(s.taskDelay, task)
}

// MarkStarving flips whether groupName's global tasks may override their
// delayed-execution timer (spec §4.8 "unless the operation is starving").
func (s *Scheduler) MarkStarving(groupName string, starving bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starving[groupName] = starving
}

func (s *Scheduler) isStarving(group *job.Group) bool {
	if group == nil || !s.starving[group.Name] {
		return false
	}
	_, ok := s.overrideRate.Allow(group.Name)
	return ok
}

// Dispatch runs one heartbeat's worth of the dispatch cycle for a node at
// address with available as its spare resource envelope, returning the
// scheduled joblet and its task, or (nil, nil, nil) if nothing schedules.
func (s *Scheduler) Dispatch(address string, available job.Resources, now time.Time) (*job.Joblet, *job.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.haveMinEnvelope && !job.HasEnoughResources(job.Zero, s.minEnvelope, available) {
		return nil, nil, nil
	}

	for _, priority := range s.priorities {
		b := s.buckets[priority]

		if joblet, task, err := s.dispatchLocal(b, address, available); joblet != nil || err != nil {
			return joblet, task, err
		}
		if joblet, task, err := s.dispatchGlobal(b, address, available, now); joblet != nil || err != nil {
			return joblet, task, err
		}
	}
	return nil, nil, nil
}

func (s *Scheduler) dispatchLocal(b *bucket, address string, available job.Resources) (*job.Joblet, *job.Task, error) {
	set, ok := b.local[address]
	if !ok {
		return nil, nil, nil
	}

	var best *job.Task
	var bestLocality int64
	for task := range set {
		locality := task.Pool.GetLocality(address)
		if locality <= 0 {
			delete(set, task)
			continue
		}
		if task.GetPendingJobCount() <= 0 {
			continue
		}
		if !job.HasEnoughResources(job.Zero, task.GetMinNeededResources(), available) {
			continue
		}
		if best == nil || locality > bestLocality {
			best, bestLocality = task, locality
		}
	}
	if len(set) == 0 {
		delete(b.local, address)
	}
	if best == nil {
		return nil, nil, nil
	}

	joblet, err := best.ScheduleJob(address)
	if err != nil {
		return nil, nil, coreerr.WrapError("dispatch local task", err)
	}
	return joblet, best, nil
}

func (s *Scheduler) dispatchGlobal(b *bucket, address string, available job.Resources, now time.Time) (*job.Joblet, *job.Task, error) {
	for _, task := range b.globalOrder {
		if task.GetPendingJobCount() <= 0 {
			continue
		}
		if !job.HasEnoughResources(job.Zero, task.GetMinNeededResources(), available) {
			continue
		}

		first, seen := s.firstSeen[task]
		if !seen {
			first = now
			s.firstSeen[task] = first
			s.taskDelay[task] = s.jitteredDelay()
		}
		delay := s.taskDelay[task]
		elapsed := now.Sub(first)

		if elapsed < delay && !s.isStarving(task.Group) {
			continue
		}

		joblet, err := task.ScheduleJob(address)
		if err != nil {
			continue
		}
		return joblet, task, nil
	}
	return nil, nil, nil
}

// jitteredDelay adds a small random fraction of localityDelay so many tasks
// whose timers start together don't all expire on the exact same
// heartbeat, avoiding a thundering-herd of simultaneous global schedules.
func (s *Scheduler) jitteredDelay() time.Duration {
	if s.localityDelay <= 0 {
		return 0
	}
	jitterMax := s.localityDelay / 10
	if jitterMax <= 0 {
		return s.localityDelay
	}
	return s.localityDelay + time.Duration(s.rng.Int63n(int64(jitterMax)))
}

func componentwiseMin(a, b job.Resources) job.Resources {
	return job.Resources{
		UserSlots: minInt(a.UserSlots, b.UserSlots),
		CPU:       minFloat(a.CPU, b.CPU),
		Memory:    minInt64(a.Memory, b.Memory),
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func sortDescending(xs []int) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] < xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}
