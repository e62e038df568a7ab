// Package sortedjob implements the sorted job builder (spec §4.5): an
// endpoint-sorted sweep over primary chunk slices that produces key-coherent
// merge tasks, detects whole-chunk teleport candidates, groups equal-key
// "maniac" islands into their own unordered-merge tasks, and broadcasts
// foreign-table slices to every task whose primary key range intersects
// them.
//
// Grounded on original_source/yt/yt/server/lib/chunk_pools/
// new_sorted_job_builder.{h,cpp} (the staging-area/flush model — the
// upstream source in this pack is truncated mid-comment describing "four
// domains" of staged slices; the sweep below reconstructs that model from
// the surrounding spec text rather than the cut-off source) and
// yt/yt/ytlib/chunk_client/input_chunk_slice.cpp (clipping helpers, reused
// here via chunk.ClipToKeyRange/SplitByKey).
package sortedjob

import (
	"sort"

	"github.com/dataplane-sh/chunkctl/chunk"
	"github.com/dataplane-sh/chunkctl/internal/coreerr"
)

// Options configures one builder run (spec §4.5 "Inputs").
type Options struct {
	// ReduceKeyPrefixLength (K) is the schema's reduce-by column count, a
	// prefix of the full sort key that defines a "reduce-key group".
	ReduceKeyPrefixLength int

	// ForeignKeyPrefixLength (F) bounds how much of a key foreign-table
	// broadcast matching considers; F <= ReduceKeyPrefixLength.
	ForeignKeyPrefixLength int

	// MaxDataWeightPerJob caps accumulated primary weight per ordinary
	// task; 0 means unbounded.
	MaxDataWeightPerJob int64

	// MaxDataSlicesPerJob caps accumulated primary slice count per
	// ordinary task; 0 means unbounded.
	MaxDataSlicesPerJob int

	// TeleportEnabled gates step 3 (teleport detection) for this builder's
	// output; per-stream eligibility is still consulted via the input
	// stream directory even when this is true.
	TeleportEnabled bool
}

// Task is one merge job emitted by Build: a primary stripe (possibly split
// into several by the secondary-split step) plus any foreign stripes
// broadcast to it.
type Task struct {
	Stripes           []*chunk.Stripe
	IsManiac          bool
	PrimaryDataWeight int64
	MinKey            chunk.Key
	MaxKey            chunk.Key
}

// OutputEntryKind distinguishes the two kinds of entry the builder emits
// into the final output order (spec §4.6).
type OutputEntryKind int

const (
	OutputTask OutputEntryKind = iota
	OutputTeleport
)

// OutputEntry is one position in the builder's output order: either a task
// index or a teleported chunk id.
type OutputEntry struct {
	Kind      OutputEntryKind
	TaskIndex int
	ChunkID   chunk.ID
}

// Result is everything Build produces.
type Result struct {
	Tasks            []*Task
	TeleportChunkIDs []chunk.ID
	Output           []OutputEntry
}

// Builder stages primary and foreign slices for one Build() call. It is a
// transient, single-use object — construct one per sorted-merge operation
// attempt, matching the original's "never persisted" staging area.
type Builder struct {
	options Options
	cmp     chunk.Comparator
	streams *chunk.InputStreamDirectory

	primary []*chunk.Slice
	foreign []*chunk.Slice
}

// NewBuilder constructs a Builder.
func NewBuilder(options Options, cmp chunk.Comparator, streams *chunk.InputStreamDirectory) *Builder {
	if cmp == nil {
		cmp = chunk.DefaultComparator
	}
	return &Builder{options: options, cmp: cmp, streams: streams}
}

// AddPrimarySlice stages a slice from a primary (partitioned-by-key) input
// stream.
func (b *Builder) AddPrimarySlice(s *chunk.Slice) {
	b.primary = append(b.primary, s)
}

// AddForeignSlice stages a slice from a foreign (broadcast) input stream.
func (b *Builder) AddForeignSlice(s *chunk.Slice) {
	b.foreign = append(b.foreign, s)
}

// GetTotalDataSliceCount returns the number of staged slices (primary and
// foreign), matching INewSortedJobBuilder::GetTotalDataSliceCount.
func (b *Builder) GetTotalDataSliceCount() int64 {
	return int64(len(b.primary) + len(b.foreign))
}

func (b *Builder) prefixLen() int { return b.options.ReduceKeyPrefixLength }

func (b *Builder) prefix(k chunk.Key) chunk.Key {
	n := b.prefixLen()
	if n <= 0 || n >= len(k) {
		return k
	}
	return k[:n]
}

// Build runs the full endpoint sweep and returns the task list, teleport
// set, and output order.
func (b *Builder) Build() (*Result, error) {
	if len(b.primary) == 0 {
		if len(b.foreign) > 0 {
			return nil, coreerr.NewInvariantError("sorted job builder", "foreign slices staged with no primary input to broadcast against")
		}
		return &Result{}, nil
	}

	eps := b.buildEndpoints()
	sortEndpoints(eps, b.cmp)

	var teleportable map[chunk.ID]bool
	if b.options.TeleportEnabled {
		teleportable = b.detectTeleports(eps)
	}

	result := b.buildTasks(teleportable)
	b.broadcastForeign(result)
	b.splitOversizedTasks(result)
	return result, nil
}

type endpointKind int

const (
	endpointLeft endpointKind = iota
	endpointRight
)

type endpoint struct {
	key   chunk.Key // reduce-key-prefix at this endpoint
	slice *chunk.Slice
	kind  endpointKind
	seq   int // stable insertion index, stands in for "identity(slice)"
}

func (b *Builder) buildEndpoints() []endpoint {
	eps := make([]endpoint, 0, len(b.primary)*2)
	for i, s := range b.primary {
		eps = append(eps, endpoint{key: b.prefix(s.MinKey()), slice: s, kind: endpointLeft, seq: i})
		eps = append(eps, endpoint{key: b.prefix(s.MaxKey()), slice: s, kind: endpointRight, seq: i})
	}
	return eps
}

// sortEndpoints orders by (key[0:K), slice.min, slice.max, identity(slice),
// Left<Right) per spec §4.5 step 2 — stable so ties never split a key group.
func sortEndpoints(eps []endpoint, cmp chunk.Comparator) {
	sort.SliceStable(eps, func(i, j int) bool {
		a, c := eps[i], eps[j]
		if d := cmp.Compare(a.key, c.key); d != 0 {
			return d < 0
		}
		if d := cmp.Compare(a.slice.MinKey(), c.slice.MinKey()); d != 0 {
			return d < 0
		}
		if d := cmp.Compare(a.slice.MaxKey(), c.slice.MaxKey()); d != 0 {
			return d < 0
		}
		if a.seq != c.seq {
			return a.seq < c.seq
		}
		return a.kind == endpointLeft && c.kind == endpointRight
	})
}
