// Package controller implements the controller shell (spec §4.9/C11): the
// narrow public surface `Initialize → Prepare → Run → (ScheduleJob per
// heartbeat)* → (OnJobCompleted|OnJobFailed|OnJobAborted)* → Commit` (with
// Abort available at any time), holding the task set, routing pool
// callbacks, enforcing the operation-wide resource/failure-budget limits,
// and driving the commit pipeline.
//
// Grounded on original_source/yt/server/scheduler/operation_controller_detail.cpp.
package controller

import (
	"fmt"
	"time"

	"github.com/dataplane-sh/chunkctl/internal/corelog"
	"github.com/dataplane-sh/chunkctl/internal/coreerr"
	"github.com/dataplane-sh/chunkctl/job"
	"github.com/dataplane-sh/chunkctl/outputorder"
	"github.com/dataplane-sh/chunkctl/pool"
	"github.com/dataplane-sh/chunkctl/progress"
	"github.com/dataplane-sh/chunkctl/schedule"
)

// State is the controller's own lifecycle state, spec §4.9's
// "Initialize → Prepare → Run → ... → Commit (with Abort available at any
// time)".
type State int

const (
	StateInitializing State = iota
	StatePreparing
	StateRunning
	StateCompleted
	StateFailed
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StatePreparing:
		return "preparing"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Options configures a Controller at construction time, following the
// teacher's functional-options idiom (spec §1 AMBIENT STACK
// "Configuration").
type options struct {
	failedJobsLimit  int
	localityTimeout  time.Duration
	chunkListLow     int
	yielderInterval  time.Duration
	logger           corelog.Logger
}

// Option configures a Controller.
type Option func(*options)

// WithFailedJobsLimit bounds how many retryable job failures an operation
// tolerates before it is aborted fatally (spec §7 "Bounded by a
// configurable per-operation failedJobsLimit"). Zero means unbounded.
func WithFailedJobsLimit(n int) Option { return func(o *options) { o.failedJobsLimit = n } }

// WithLocalityTimeout sets the scheduler's delayed-execution window (spec
// §4.8).
func WithLocalityTimeout(d time.Duration) Option { return func(o *options) { o.localityTimeout = d } }

// WithChunkListLowWatermark sets the chunk-list reservation pool's
// low-watermark (spec §3.2).
func WithChunkListLowWatermark(n int) Option { return func(o *options) { o.chunkListLow = n } }

// WithYieldInterval sets the preparation pipeline's cooperative yield
// interval (spec §9 Design Notes, "every ~100ms").
func WithYieldInterval(d time.Duration) Option { return func(o *options) { o.yielderInterval = d } }

// WithLogger installs a scoped logger for this controller's own lifecycle
// events.
func WithLogger(l corelog.Logger) Option { return func(o *options) { o.logger = l } }

// PrepareStep is one serial boundary operation in the Prepare pipeline
// (spec §4.9: "start transactions, fetch object ids, lock inputs, fetch
// chunk specs, create output chunk list, optionally run a chunk-slice
// fetcher"). Each step is submitted to a background executor by the host;
// the controller only sequences them and checks for cancellation/yields
// between them — the actual background/control-thread executor hop (spec
// §5) is the host's responsibility, this core only defines the pipeline
// shape.
type PrepareStep struct {
	Name string
	Run  func() error
}

// Controller is the chunk-pool/task-scheduling core's shell: it owns the
// task set, the scheduler, the chunk-list reservation pool, the shared
// output order/registry, the operation-wide progress counter, and the
// cancellable context, and exposes the narrow lifecycle surface of spec
// §4.9.
type Controller struct {
	ID    string
	State State

	opts options

	Tasks      []*job.Task
	Scheduler  *schedule.Scheduler
	ChunkLists *ChunkListPool
	Output     *job.OutputRegistry
	Progress   *progress.Counter
	Metrics    *Metrics
	cancel     *CancelController
	log        corelog.Logger

	failedJobsCount int
}

// New constructs a fresh Controller in StateInitializing.
func New(operationID string, opts ...Option) *Controller {
	o := options{chunkListLow: 1, yielderInterval: 100 * time.Millisecond}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = corelog.NewNoOpLogger()
	}
	scoped := corelog.Scoped(logger, corelog.F("operation", operationID))

	return &Controller{
		ID:         operationID,
		State:      StateInitializing,
		opts:       o,
		Scheduler:  schedule.New(o.localityTimeout),
		ChunkLists: NewChunkListPool(o.chunkListLow),
		Output:     job.NewOutputRegistry(),
		Progress:   &progress.Counter{},
		Metrics:    NewMetrics(operationID),
		cancel:     NewCancelController(),
		log:        scoped,
	}
}

// Signal returns the controller's cancellable-context signal, for handing
// to background boundary operations (spec §5 "an operation's cancellable
// context wraps every background future").
func (c *Controller) Signal() *CancelSignal { return c.cancel.Signal() }

// RegisterTask adds task to the controller's task set and the scheduler's
// pending-task index under priority and the given locality addresses.
func (c *Controller) RegisterTask(task *job.Task, priority int, addresses []string) {
	c.Tasks = append(c.Tasks, task)
	c.Scheduler.RegisterTask(task, priority, addresses)
	c.Progress.Increment(int64(task.GetPendingJobCount()))
}

// Initialize transitions Initializing → Preparing. It is a no-op placed
// here only to make the documented lifecycle surface explicit; actual
// per-task/per-pool construction happens via RegisterTask before this is
// called, mirroring how operation_controller_detail.cpp's Initialize
// builds tasks before the serial Prepare pipeline runs.
func (c *Controller) Initialize() error {
	if c.State != StateInitializing {
		return coreerr.NewInvariantError("controller lifecycle", fmt.Sprintf("Initialize called in state %s", c.State))
	}
	c.State = StatePreparing
	c.log.Log(corelog.LevelInfo, "operation initialized")
	return nil
}

// Prepare runs steps in order, checking the cancellable context before
// each and cooperatively yielding between them per the configured
// interval (spec §4.9 "serial pipeline of external-boundary operations";
// spec §9 "yield every ~100ms"). The first step to fail moves the
// controller to StateFailed and returns the wrapped error.
func (c *Controller) Prepare(steps []PrepareStep) error {
	if c.State != StatePreparing {
		return coreerr.NewInvariantError("controller lifecycle", fmt.Sprintf("Prepare called in state %s", c.State))
	}
	yielder := NewYielder(c.opts.yielderInterval)

	for _, step := range steps {
		stepName := step.Name
		err := yielder.Step(c.cancel.Signal(), step.Run, func() {
			c.log.Log(corelog.LevelDebug, "prepare yield point", corelog.F("after_step", stepName))
		})
		if err != nil {
			wrapped := coreerr.WrapError(fmt.Sprintf("prepare step %q", stepName), err)
			c.fail(wrapped)
			return wrapped
		}
	}

	c.State = StateRunning
	c.log.Log(corelog.LevelInfo, "operation prepared", corelog.F("step_count", len(steps)))
	return nil
}

// Run checks that the controller is in StateRunning (reached when Prepare
// succeeds) and changes no state; any other state returns an invariant
// error. It exists as a documented lifecycle step (spec §4.9); the actual
// per-heartbeat dispatch loop is driven by the host calling ScheduleJob
// repeatedly, not by this method blocking.
func (c *Controller) Run() error {
	if c.State != StateRunning {
		return coreerr.NewInvariantError("controller lifecycle", fmt.Sprintf("Run called in state %s", c.State))
	}
	return nil
}

// ScheduleJob runs one node-heartbeat dispatch cycle (spec §4.8), refusing
// to dispatch outside StateRunning, and records the cycle's latency into
// Metrics.
func (c *Controller) ScheduleJob(address string, available job.Resources) (*job.Joblet, *job.Task, error) {
	if c.State != StateRunning {
		return nil, nil, nil
	}
	start := time.Now()
	joblet, task, err := c.Scheduler.Dispatch(address, available, start)
	c.Metrics.ObserveDispatch(time.Since(start), joblet != nil)
	if err != nil {
		return nil, nil, coreerr.WrapError("schedule job", err)
	}
	if joblet != nil {
		c.Progress.Start(1)
	}
	return joblet, task, nil
}

// OnJobCompleted routes a completion to task and records it against the
// operation-wide progress counter, then checks whether every registered
// task is done.
func (c *Controller) OnJobCompleted(task *job.Task, cookie pool.Cookie, tree outputorder.ChunkTreeID) error {
	if err := task.OnJobCompleted(cookie, tree); err != nil {
		return c.invariantFail("job completion", err)
	}
	c.Progress.Completed(1)
	if c.isDone() {
		c.State = StateCompleted
		c.log.Log(corelog.LevelInfo, "operation completed")
	}
	return nil
}

// OnJobFailed routes a retryable failure to task, bumping the operation's
// failure budget; exceeding WithFailedJobsLimit fails the operation
// fatally (spec §7 "Job failure — retryable ... Bounded by a configurable
// per-operation failedJobsLimit").
func (c *Controller) OnJobFailed(task *job.Task, cookie pool.Cookie) error {
	if err := task.OnJobFailed(cookie); err != nil {
		return c.invariantFail("job failure", err)
	}
	c.Progress.Failed(1)
	c.failedJobsCount++
	if c.opts.failedJobsLimit > 0 && c.failedJobsCount > c.opts.failedJobsLimit {
		reason := coreerr.WrapError("failed jobs limit exceeded", &coreerr.JobFailureError{Fatal: true, Attempt: c.failedJobsCount})
		c.fail(reason)
		return reason
	}
	return nil
}

// OnJobAborted routes an abort to task.
func (c *Controller) OnJobAborted(task *job.Task, cookie pool.Cookie) error {
	if err := task.OnJobAborted(cookie); err != nil {
		return c.invariantFail("job abort", err)
	}
	c.Progress.Aborted(1)
	return nil
}

// OnJobLost routes a lost-job notification (spec §7 "chunk scraper signals
// recovery").
func (c *Controller) OnJobLost(task *job.Task, cookie pool.Cookie) error {
	if err := task.OnJobLost(cookie); err != nil {
		return c.invariantFail("job lost", err)
	}
	c.Progress.Lost(1)
	return nil
}

func (c *Controller) isDone() bool {
	for _, t := range c.Tasks {
		if !t.IsDone() {
			return false
		}
	}
	return true
}

// Commit arranges the final ordered list of committed chunk trees. The
// controller must have reached StateCompleted.
func (c *Controller) Commit() ([]outputorder.ChunkTreeID, error) {
	if c.State != StateCompleted {
		return nil, coreerr.NewInvariantError("controller lifecycle", fmt.Sprintf("Commit called in state %s", c.State))
	}
	trees, err := c.Output.Arrange()
	if err != nil {
		return nil, coreerr.WrapError("commit arrange output order", err)
	}
	c.log.Log(corelog.LevelInfo, "operation committed", corelog.F("chunk_tree_count", len(trees)))
	return trees, nil
}

// Abort cancels the operation's background context and transitions to
// StateAborted from any non-terminal state (spec §4.9 "Abort available at
// any time"). A controller already Completed, Failed or Aborted is left
// unchanged.
func (c *Controller) Abort(reason error) {
	if c.State == StateAborted || c.State == StateCompleted || c.State == StateFailed {
		return
	}
	c.State = StateAborted
	c.cancel.Cancel(reason)
	c.log.Log(corelog.LevelWarn, "operation aborted", corelog.F("reason", reason))
}

func (c *Controller) fail(reason error) {
	if c.State == StateAborted || c.State == StateCompleted || c.State == StateFailed {
		return
	}
	c.State = StateFailed
	c.cancel.Cancel(reason)
	c.log.Log(corelog.LevelError, "operation failed", corelog.F("reason", reason))
}

func (c *Controller) invariantFail(what string, err error) error {
	wrapped := coreerr.WrapError(what, err)
	c.fail(wrapped)
	return wrapped
}
