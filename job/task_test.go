package job

import (
	"testing"

	"github.com/dataplane-sh/chunkctl/chunk"
	"github.com/dataplane-sh/chunkctl/outputorder"
	"github.com/dataplane-sh/chunkctl/pool"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestSlice(weight int64) *chunk.Slice {
	c := chunk.NewChunk(uuid.New(), weight, weight, weight, 1, nil, nil, nil, 0, chunk.CodecNone, 1)
	return chunk.NewSlice(c)
}

func TestTaskScheduleJobExtractsAndTracksJoblet(t *testing.T) {
	p := pool.NewUnordered(1)
	_, err := p.Add(chunk.NewStripe(newTestSlice(10)))
	require.NoError(t, err)
	p.Finish()

	group := NewGroup("merge", Resources{UserSlots: 1, CPU: 1})
	task := NewTask("task-0", group, p, NewOutputRegistry(), 0)

	joblet, err := task.ScheduleJob("node-a")
	require.NoError(t, err)
	require.False(t, joblet.Cookie.IsNull())
	require.Equal(t, "node-a", joblet.Address)
	require.Equal(t, 1, len(task.joblets))
	require.Contains(t, group.Tasks(), task)
}

func TestTaskScheduleJobErrorsWhenNothingExtractable(t *testing.T) {
	p := pool.NewUnordered(1)
	p.Finish()
	task := NewTask("task-0", nil, p, NewOutputRegistry(), 0)

	_, err := task.ScheduleJob("node-a")
	require.Error(t, err)
}

func TestTaskOnJobCompletedRegistersOutputAndClearsJoblet(t *testing.T) {
	p := pool.NewUnordered(1)
	_, err := p.Add(chunk.NewStripe(newTestSlice(10)))
	require.NoError(t, err)
	p.Finish()

	registry := NewOutputRegistry()
	task := NewTask("task-0", nil, p, registry, 0)

	joblet, err := task.ScheduleJob("node-a")
	require.NoError(t, err)

	tree := uuid.New()
	require.NoError(t, task.OnJobCompleted(joblet.Cookie, tree))
	require.Empty(t, task.joblets)
	require.True(t, task.IsDone())

	trees, err := registry.Arrange()
	require.NoError(t, err)
	require.Equal(t, []outputorder.ChunkTreeID{tree}, trees)
}

func TestTaskOnJobCompletedUnknownCookieErrors(t *testing.T) {
	p := pool.NewUnordered(1)
	p.Finish()
	task := NewTask("task-0", nil, p, NewOutputRegistry(), 0)

	require.Error(t, task.OnJobCompleted(pool.Cookie{}, uuid.New()))
}

func TestTaskFailureCallbacksRouteToPoolAndClearJoblet(t *testing.T) {
	for _, tc := range []struct {
		name string
		call func(task *Task, c pool.Cookie) error
	}{
		{"failed", func(task *Task, c pool.Cookie) error { return task.OnJobFailed(c) }},
		{"aborted", func(task *Task, c pool.Cookie) error { return task.OnJobAborted(c) }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := pool.NewUnordered(1)
			_, err := p.Add(chunk.NewStripe(newTestSlice(10)))
			require.NoError(t, err)
			p.Finish()

			task := NewTask("task-0", nil, p, NewOutputRegistry(), 0)
			joblet, err := task.ScheduleJob("node-a")
			require.NoError(t, err)

			require.NoError(t, tc.call(task, joblet.Cookie))
			require.Empty(t, task.joblets)
			require.Greater(t, task.GetPendingJobCount(), 0)
		})
	}
}

// TestTaskAddTaskForUnreadInputDataSlicesSplicesAfterAnchor exercises the
// interruption/follow-up flow: a follow-up task's eventual completion must
// land immediately after the interrupted job's own output entry, even
// though an unrelated task's job completes in between.
func TestTaskAddTaskForUnreadInputDataSlicesSplicesAfterAnchor(t *testing.T) {
	registry := NewOutputRegistry()
	group := NewGroup("merge", Resources{UserSlots: 2, CPU: 2})

	interrupted := pool.NewUnordered(1)
	_, err := interrupted.Add(chunk.NewStripe(newTestSlice(10)))
	require.NoError(t, err)
	interrupted.Finish()
	interruptedTask := NewTask("task-0", group, interrupted, registry, 0)
	interruptedJoblet, err := interruptedTask.ScheduleJob("node-a")
	require.NoError(t, err)
	require.NoError(t, interruptedTask.OnJobCompleted(interruptedJoblet.Cookie, uuid.New()))

	other := pool.NewUnordered(1)
	_, err = other.Add(chunk.NewStripe(newTestSlice(5)))
	require.NoError(t, err)
	other.Finish()
	otherTask := NewTask("task-1", group, other, registry, 0)
	otherJoblet, err := otherTask.ScheduleJob("node-b")
	require.NoError(t, err)
	require.NoError(t, otherTask.OnJobCompleted(otherJoblet.Cookie, uuid.New()))

	unread := []*chunk.Slice{newTestSlice(7)}
	followUpPool := pool.NewUnordered(1)
	followUp, err := interruptedTask.AddTaskForUnreadInputDataSlices("task-0-followup", interruptedJoblet.Cookie, unread, followUpPool)
	require.NoError(t, err)
	require.Equal(t, group, followUp.Group)
	require.Contains(t, group.Tasks(), followUp)

	followUpJoblet, err := followUp.ScheduleJob("node-a")
	require.NoError(t, err)
	followUpTree := uuid.New()
	require.NoError(t, followUp.OnJobCompleted(followUpJoblet.Cookie, followUpTree))

	trees, err := registry.Arrange()
	require.NoError(t, err)
	require.Len(t, trees, 3)
	require.Equal(t, followUpTree, trees[1], "follow-up output must splice immediately after the interrupted job it continues")
}

func TestTaskAddTaskForUnreadInputDataSlicesRejectsEmptyUnread(t *testing.T) {
	p := pool.NewUnordered(1)
	p.Finish()
	task := NewTask("task-0", nil, p, NewOutputRegistry(), 0)

	_, err := task.AddTaskForUnreadInputDataSlices("task-0-followup", pool.Cookie{}, nil, pool.NewUnordered(1))
	require.Error(t, err)
}

func TestResourcesAddSubAndEnoughSpare(t *testing.T) {
	limits := Resources{UserSlots: 10, CPU: 10, Memory: 1000}
	usage := Resources{UserSlots: 2, CPU: 2, Memory: 200}
	needed := Resources{UserSlots: 1, CPU: 1, Memory: 100}

	require.True(t, HasEnoughResources(usage, needed, limits))
	require.True(t, HasSpareResources(usage, limits))

	sum := usage.Add(needed)
	require.Equal(t, Resources{UserSlots: 3, CPU: 3, Memory: 300}, sum)
	require.Equal(t, usage, sum.Sub(needed))

	require.False(t, HasEnoughResources(limits, Resources{UserSlots: 1}, limits))
	require.False(t, HasSpareResources(limits, limits))
}
