// Package pool implements the chunk-pool contract shared by every pool
// variant — atomic, unordered, shuffle — plus the SuspendableStripe wrapper
// used to track transient input unavailability.
//
// Grounded on original_source/yt/server/scheduler/chunk_pool.{h,cpp}.
package pool

import (
	"fmt"

	"github.com/dataplane-sh/chunkctl/internal/arena"
)

// Cookie is an opaque handle identifying one Extract → Completed/Failed/
// Aborted/Lost transaction against a pool. It wraps an arena.Handle so a
// stale cookie (reused after Free) is detected rather than silently
// aliasing a different entry — spec §9 "cookies as opaque tokens ... paired
// with a generation counter to catch use-after-completed bugs".
type Cookie struct {
	handle arena.Handle
}

// NullCookie is the cookie value meaning "no cookie" (spec §3: "Null cookie
// value is -1").
var NullCookie = Cookie{}

// IsNull reports whether c is the null cookie.
func (c Cookie) IsNull() bool { return c.handle.IsZero() }

func (c Cookie) String() string {
	if c.IsNull() {
		return "Cookie(null)"
	}
	return fmt.Sprintf("Cookie(%s)", c.handle)
}

// State is the output-cookie lifecycle state (spec §4.1 state machine).
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StatePending
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StatePending:
		return "pending"
	default:
		return "unknown"
	}
}
