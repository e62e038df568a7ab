package job

import (
	"fmt"
	"time"

	"github.com/dataplane-sh/chunkctl/chunk"
	"github.com/dataplane-sh/chunkctl/internal/coreerr"
	"github.com/dataplane-sh/chunkctl/internal/corelog"
	"github.com/dataplane-sh/chunkctl/outputorder"
	"github.com/dataplane-sh/chunkctl/pool"
)

// Group shares a minimum-resource envelope across every task registered
// under it, grounded on merge_controller.cpp's TTaskGroup / MergeTaskGroup
// ("tasks of one group are scheduled together against one envelope").
type Group struct {
	Name               string
	MinNeededResources Resources

	tasks []*Task
}

// NewGroup constructs an empty task group.
func NewGroup(name string, minNeeded Resources) *Group {
	return &Group{Name: name, MinNeededResources: minNeeded}
}

func (g *Group) register(t *Task) { g.tasks = append(g.tasks, t) }

// Tasks returns the tasks registered under g, in registration order.
func (g *Group) Tasks() []*Task { return append([]*Task(nil), g.tasks...) }

// Joblet is the live binding created by ScheduleJob: one extracted stripe
// list plus the cookie that names it, grounded on merge_controller.cpp's
// TMergeTask::BuildInputOutputJobSpec's per-job bookkeeping.
type Joblet struct {
	Cookie     pool.Cookie
	StripeList *chunk.StripeList
	Address    string
	StartedAt  time.Time
}

// OutputRegistry pairs an outputorder.Order with the chunk-tree map it will
// eventually resolve against, grounded on TMergeTask::OnJobCompleted's call
// to RegisterOutput (spec §4.6/§4.7 integration point between task
// completion and output order).
type OutputRegistry struct {
	Order      *outputorder.Order
	chunkTrees map[outputorder.Entry]outputorder.ChunkTreeID
}

// NewOutputRegistry constructs an OutputRegistry wrapping a fresh Order.
func NewOutputRegistry() *OutputRegistry {
	return &OutputRegistry{
		Order:      outputorder.New(),
		chunkTrees: make(map[outputorder.Entry]outputorder.ChunkTreeID),
	}
}

// RegisterCookie records a completed job's committed chunk tree under its
// output-order entry.
func (r *OutputRegistry) RegisterCookie(c pool.Cookie, tree outputorder.ChunkTreeID) {
	r.chunkTrees[outputorder.CookieEntry(c)] = tree
}

// RegisterTeleport records a teleported chunk's identity as its own
// committed chunk tree (a teleport chunk is already committed, so its tree
// id is itself).
func (r *OutputRegistry) RegisterTeleport(id chunk.ID, tree outputorder.ChunkTreeID) {
	r.chunkTrees[outputorder.TeleportEntry(id)] = tree
}

// Arrange resolves the final, ordered list of committed chunk trees.
func (r *OutputRegistry) Arrange() ([]outputorder.ChunkTreeID, error) {
	return r.Order.ArrangeOutputChunkTrees(r.chunkTrees)
}

// Task wraps one chunk pool with the per-job bookkeeping needed to drive it
// through a scheduling context and report back to an output registry,
// grounded on merge_controller.cpp's TMergeTask.
//
// anchor, when set, is the output-order cookie this task's own completion
// must be spliced immediately after — set only on a follow-up task created
// by AddTaskForUnreadInputDataSlices, so interruption never reorders a
// task's continuation ahead of (or far behind) the work it continues.
type Task struct {
	ID              string
	Group           *Group
	Pool            pool.ChunkPool
	LocalityTimeout time.Duration
	PartitionIndex  int

	output *OutputRegistry
	anchor *pool.Cookie

	joblets map[pool.Cookie]*Joblet
	log     corelog.Logger
}

// NewTask constructs a Task bound to chunkPool and registers it under
// group. output may be shared across every task feeding one partitioned
// result set.
func NewTask(id string, group *Group, chunkPool pool.ChunkPool, output *OutputRegistry, partitionIndex int) *Task {
	t := &Task{
		ID:             id,
		Group:          group,
		Pool:           chunkPool,
		PartitionIndex: partitionIndex,
		output:         output,
		joblets:        make(map[pool.Cookie]*Joblet),
		log:            corelog.Scoped(corelog.NewNoOpLogger(), corelog.F("task", id)),
	}
	if group != nil {
		group.register(t)
	}
	return t
}

// GetPendingJobCount delegates to the underlying pool.
func (t *Task) GetPendingJobCount() int { return t.Pool.GetPendingJobCount() }

// GetMinNeededResources returns the group's resource envelope, or Zero if
// the task is not grouped.
func (t *Task) GetMinNeededResources() Resources {
	if t.Group == nil {
		return Zero
	}
	return t.Group.MinNeededResources
}

// ScheduleJob extracts a stripe list from the pool favoring addr's
// locality, registers a Joblet, and returns it. Returns an error if nothing
// is extractable.
func (t *Task) ScheduleJob(addr string) (*Joblet, error) {
	cookie := t.Pool.Extract(addr)
	if cookie.IsNull() {
		return nil, coreerr.NewInvariantError("task schedule", fmt.Sprintf("task %s has no extractable job for %s", t.ID, addr))
	}
	stripeList := t.Pool.GetStripeList(cookie)
	joblet := &Joblet{Cookie: cookie, StripeList: stripeList, Address: addr, StartedAt: time.Now()}
	t.joblets[cookie] = joblet
	corelog.Info("job scheduled", corelog.F("task", t.ID), corelog.F("cookie", cookie.String()), corelog.F("address", addr))
	return joblet, nil
}

// OnJobCompleted marks cookie completed against the pool and registers its
// output chunk tree in the output registry. If the task has an anchor (it
// is a follow-up task created by interruption), the registry's cursor is
// seeked to the anchor first so the continuation lands immediately after
// the task it continues, regardless of how other jobs complete meanwhile.
func (t *Task) OnJobCompleted(cookie pool.Cookie, tree outputorder.ChunkTreeID) error {
	if _, ok := t.joblets[cookie]; !ok {
		return coreerr.NewInvariantError("task completion", fmt.Sprintf("task %s has no joblet for cookie %s", t.ID, cookie))
	}
	if err := t.Pool.Completed(cookie); err != nil {
		return coreerr.WrapError("task completion", err)
	}
	if t.output != nil {
		if t.anchor != nil {
			if err := t.output.Order.SeekCookie(*t.anchor); err != nil {
				return coreerr.WrapError("task completion anchor seek", err)
			}
		}
		t.output.Order.Push(outputorder.CookieEntry(cookie))
		t.output.RegisterCookie(cookie, tree)
	}
	delete(t.joblets, cookie)
	corelog.Info("job completed", corelog.F("task", t.ID), corelog.F("cookie", cookie.String()))
	return nil
}

// OnJobFailed marks cookie failed against the pool, returning its input for
// re-extraction.
func (t *Task) OnJobFailed(cookie pool.Cookie) error {
	return t.finishUnsuccessful(cookie, t.Pool.Failed, "job failed")
}

// OnJobAborted marks cookie aborted against the pool.
func (t *Task) OnJobAborted(cookie pool.Cookie) error {
	return t.finishUnsuccessful(cookie, t.Pool.Aborted, "job aborted")
}

// OnJobLost marks a previously-completed cookie lost, requiring
// recomputation.
func (t *Task) OnJobLost(cookie pool.Cookie) error {
	return t.finishUnsuccessful(cookie, t.Pool.Lost, "job lost")
}

func (t *Task) finishUnsuccessful(cookie pool.Cookie, transition func(pool.Cookie) error, what string) error {
	if err := transition(cookie); err != nil {
		return coreerr.WrapError(what, err)
	}
	delete(t.joblets, cookie)
	corelog.Warn(what, corelog.F("task", t.ID), corelog.F("cookie", cookie.String()))
	return nil
}

// AddTaskForUnreadInputDataSlices builds a follow-up task that resumes
// reading at the boundary left by an interrupted job: the unread slices are
// re-added to newPool, and the follow-up task's anchor is set to the
// interrupted job's own output cookie so its eventual completion splices
// immediately after it in the output order — grounded on
// merge_controller.cpp's AddTaskForUnreadInputDataSlices, which resets the
// task's current-stripe accumulation and re-stages the unread slices via
// AddPendingDataSlice before ending the (now-exhausted) current task.
func (t *Task) AddTaskForUnreadInputDataSlices(nextID string, interruptedCookie pool.Cookie, unread []*chunk.Slice, newPool pool.ChunkPool) (*Task, error) {
	if len(unread) == 0 {
		return nil, coreerr.NewInvariantError("follow-up task", "no unread input data slices to resume from")
	}
	for _, slice := range unread {
		if _, err := newPool.Add(chunk.NewStripe(slice)); err != nil {
			return nil, coreerr.WrapError("follow-up task stage unread slice", err)
		}
	}
	newPool.Finish()

	followUp := NewTask(nextID, t.Group, newPool, t.output, t.PartitionIndex)
	anchor := interruptedCookie
	followUp.anchor = &anchor
	corelog.Info("follow-up task created", corelog.F("task", t.ID), corelog.F("follow_up", nextID), corelog.F("unread_slices", len(unread)))
	return followUp, nil
}

// IsDone reports whether the task's pool has no pending work left and no
// jobs in flight, grounded on TMergeControllerBase::IsCompleted's
// per-task notion of completion.
func (t *Task) IsDone() bool {
	return t.Pool.GetPendingJobCount() == 0 && len(t.joblets) == 0
}
