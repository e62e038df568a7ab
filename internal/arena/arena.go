// Package arena provides a generation-checked handle arena: an opaque,
// monotonically issued index paired with a generation counter, so a stale
// handle captured before a Free/Alloc cycle can be detected rather than
// silently aliasing new data.
//
// This generalizes the teacher's registry.go (a weak-pointer-backed ring
// buffer tracking promise ids for garbage collection). The domain here has
// no GC-pressure concern — chunk pool cookies and output-order entries are
// strongly owned by their containing pool for as long as they're live — so
// the weak-pointer scavenger is dropped in favor of explicit Free, but the
// "opaque integer id maps to a slot, detect stale use" shape is the same.
package arena

import "fmt"

// Handle is an opaque reference into an Arena[T]. The zero Handle is never
// issued by Alloc and is reserved as a null marker (mirrors spec §3's
// "Null cookie value is -1": callers compare against the zero Handle the
// same way).
type Handle struct {
	index      uint32
	generation uint32
}

// IsZero reports whether h is the reserved null handle.
func (h Handle) IsZero() bool { return h == Handle{} }

func (h Handle) String() string {
	return fmt.Sprintf("#%d.%d", h.index, h.generation)
}

type slot[T any] struct {
	value      T
	generation uint32
	occupied   bool
}

// Arena is a generic, non-concurrent-safe handle arena. Callers that need
// concurrent access (e.g. a chunk pool shared across the control executor
// and an assertion-only reader) add their own synchronization; the arena
// itself assumes single-threaded access, matching spec §5's "all mutations
// of controller/task/pool state" running on one control executor.
type Arena[T any] struct {
	slots []slot[T]
	free  []uint32
}

// New returns an empty Arena.
func New[T any]() *Arena[T] {
	return &Arena[T]{}
}

// Alloc stores value in a fresh or recycled slot and returns its handle.
func (a *Arena[T]) Alloc(value T) Handle {
	if len(a.free) > 0 {
		idx := a.free[len(a.free)-1]
		a.free = a.free[:len(a.free)-1]
		s := &a.slots[idx]
		s.value = value
		s.occupied = true
		return Handle{index: idx + 1, generation: s.generation}
	}
	a.slots = append(a.slots, slot[T]{value: value, occupied: true})
	return Handle{index: uint32(len(a.slots)), generation: 0}
}

// Get returns the value for h and whether it is still live. A stale handle
// (freed, or from a different generation) returns the zero value and false.
func (a *Arena[T]) Get(h Handle) (T, bool) {
	var zero T
	if h.IsZero() || int(h.index) > len(a.slots) {
		return zero, false
	}
	s := &a.slots[h.index-1]
	if !s.occupied || s.generation != h.generation {
		return zero, false
	}
	return s.value, true
}

// MustGet returns the value for h, panicking on a stale handle. Used in
// assertion-only paths where a stale handle indicates a use-after-completed
// bug rather than a recoverable condition (spec §9 Design Notes: "cookies
// ... paired with a generation counter to catch use-after-completed bugs in
// assertions").
func (a *Arena[T]) MustGet(h Handle) T {
	v, ok := a.Get(h)
	if !ok {
		panic(fmt.Sprintf("arena: use of stale or unknown handle %s", h))
	}
	return v
}

// Set overwrites the value stored at h, returning false if h is stale.
func (a *Arena[T]) Set(h Handle, value T) bool {
	if h.IsZero() || int(h.index) > len(a.slots) {
		return false
	}
	s := &a.slots[h.index-1]
	if !s.occupied || s.generation != h.generation {
		return false
	}
	s.value = value
	return true
}

// Free releases h's slot for reuse by a future Alloc, bumping its
// generation so any handle copy captured before the Free is detectably
// stale afterwards.
func (a *Arena[T]) Free(h Handle) bool {
	if h.IsZero() || int(h.index) > len(a.slots) {
		return false
	}
	s := &a.slots[h.index-1]
	if !s.occupied || s.generation != h.generation {
		return false
	}
	var zero T
	s.value = zero
	s.occupied = false
	s.generation++
	a.free = append(a.free, h.index-1)
	return true
}

// Len returns the number of currently occupied slots.
func (a *Arena[T]) Len() int {
	return len(a.slots) - len(a.free)
}
