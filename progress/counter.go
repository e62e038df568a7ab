// Package progress implements the seven-bucket progress counter shared by
// every chunk pool variant: a monotone population tracker over
// {pending, running, completed, failed, aborted, lost, suspended}.
//
// Grounded on original_source/yt/server/scheduler/chunk_pool.cpp's
// TProgressCounter.
package progress

import "fmt"

// Counter tracks disjoint population buckets. The zero value is a valid,
// empty counter.
type Counter struct {
	total     int64
	pending   int64
	running   int64
	completed int64
	failed    int64
	aborted   int64
	lost      int64
	suspended int64
}

func (c *Counter) Total() int64     { return c.total }
func (c *Counter) Pending() int64   { return c.pending }
func (c *Counter) Running() int64   { return c.running }
func (c *Counter) Completed() int64 { return c.completed }
func (c *Counter) Failed() int64    { return c.failed }
func (c *Counter) Aborted() int64   { return c.aborted }
func (c *Counter) Lost() int64      { return c.lost }
func (c *Counter) Suspended() int64 { return c.suspended }

// Set resets the counter to a fresh population of n pending items.
func (c *Counter) Set(n int64) {
	c.total = n
	c.pending = n
	c.running = 0
	c.completed = 0
	c.failed = 0
	c.aborted = 0
	c.lost = 0
}

// Increment grows the population by x, adding x to both total and pending.
func (c *Counter) Increment(x int64) {
	c.total += x
	c.pending += x
}

// Start moves x items from pending to running.
func (c *Counter) Start(x int64) {
	c.pending -= x
	c.running += x
}

// Completed moves x items from running to completed.
func (c *Counter) Completed(x int64) {
	c.running -= x
	c.completed += x
}

// Failed moves x items from running back to pending, recording them as
// failed (retried).
func (c *Counter) Failed(x int64) {
	c.running -= x
	c.failed += x
	c.pending += x
}

// Aborted moves x items from running back to pending, recording them as
// aborted (retried).
func (c *Counter) Aborted(x int64) {
	c.running -= x
	c.aborted += x
	c.pending += x
}

// Lost moves x items from completed back to pending, recording them as lost
// (replayed).
func (c *Counter) Lost(x int64) {
	c.completed -= x
	c.lost += x
	c.pending += x
}

// Suspend marks x items as suspended without moving them out of pending —
// suspended is a side flag layered on top of the pending bucket (spec §3:
// "{stripe, statistics, suspendCount}"), not a disjoint state the sum
// invariant below accounts for.
func (c *Counter) Suspend(x int64) { c.suspended += x }

// Resume is the inverse of Suspend.
func (c *Counter) Resume(x int64) { c.suspended -= x }

// IsCompleted reports whether every item has reached the completed bucket.
func (c *Counter) IsCompleted() bool { return c.total > 0 && c.completed == c.total }

// CheckInvariant verifies total = completed + running + pending.
// failed/aborted/lost count historical transitions, not live buckets — an
// item that failed is simultaneously back in pending and counted once in
// failed, so those three are excluded from the sum.
func (c *Counter) CheckInvariant() error {
	sum := c.completed + c.running + c.pending
	if sum != c.total {
		return fmt.Errorf("progress: invariant violated: total=%d completed=%d running=%d pending=%d (sum=%d)",
			c.total, c.completed, c.running, c.pending, sum)
	}
	return nil
}

// Restore resets c to an exact snapshot of the seven buckets, for
// checkpoint/revival (spec §6: "Counters serialize all seven buckets").
// Unlike Set/Increment/Start, which model live transitions, Restore bypasses
// the transition table entirely — a revived counter did not replay every
// historical Start/Completed/Failed call, it is handed the bucket values
// directly from a snapshot.
func (c *Counter) Restore(total, pending, running, completed, failed, aborted, lost, suspended int64) {
	c.total = total
	c.pending = pending
	c.running = running
	c.completed = completed
	c.failed = failed
	c.aborted = aborted
	c.lost = lost
	c.suspended = suspended
}

// String renders a compact snapshot for logging.
func (c *Counter) String() string {
	return fmt.Sprintf("total=%d pending=%d running=%d completed=%d failed=%d aborted=%d lost=%d suspended=%d",
		c.total, c.pending, c.running, c.completed, c.failed, c.aborted, c.lost, c.suspended)
}
