package sortedjob

import (
	"testing"

	"github.com/dataplane-sh/chunkctl/chunk"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newPointSlice(key int, weight int64, streamIdx int) *chunk.Slice {
	k := chunk.Key{key}
	c := chunk.NewChunk(uuid.New(), weight, weight, weight, 1, k, k, nil, 0, chunk.CodecNone, 1)
	s := chunk.NewSlice(c)
	s.InputStreamIndex = streamIdx
	return s
}

func newRangeSlice(lower, upper int, weight int64, streamIdx int) *chunk.Slice {
	c := chunk.NewChunk(uuid.New(), weight, weight, weight, 1, chunk.Key{lower}, chunk.Key{upper}, nil, 0, chunk.CodecNone, 1)
	s := chunk.NewSlice(c)
	s.InputStreamIndex = streamIdx
	return s
}

// TestSortedBuilderScenarioCTeleport mirrors the teleport scenario: a
// whole-chunk primary slice on a teleport-eligible stream bypasses jobs
// entirely while a slice on a non-teleportable stream becomes an ordinary
// merge task, and the output order lists the teleport before the task.
func TestSortedBuilderScenarioCTeleport(t *testing.T) {
	streams := chunk.NewInputStreamDirectory(
		chunk.StreamInfo{IsPrimary: true, IsTeleportable: true},
		chunk.StreamInfo{IsPrimary: true, IsTeleportable: false},
	)
	b := NewBuilder(Options{ReduceKeyPrefixLength: 1, TeleportEnabled: true}, chunk.DefaultComparator, streams)

	a := newRangeSlice(1, 5, 40, 0)
	aChunkID := a.Chunk().ID()
	bSlice := newRangeSlice(6, 9, 30, 1)

	b.AddPrimarySlice(a)
	b.AddPrimarySlice(bSlice)

	result, err := b.Build()
	require.NoError(t, err)

	require.Len(t, result.TeleportChunkIDs, 1)
	require.Equal(t, aChunkID, result.TeleportChunkIDs[0])
	require.Len(t, result.Tasks, 1)
	require.False(t, result.Tasks[0].IsManiac)
	require.Equal(t, int64(30), result.Tasks[0].PrimaryDataWeight)

	require.Len(t, result.Output, 2)
	require.Equal(t, OutputTeleport, result.Output[0].Kind)
	require.Equal(t, aChunkID, result.Output[0].ChunkID)
	require.Equal(t, OutputTask, result.Output[1].Kind)
	require.Equal(t, 0, result.Output[1].TaskIndex)
}

// TestSortedBuilderTeleportAbandonedByNonEqualKeyNeighbor exercises the
// abandon path of step 3: a second chunk opening at a different key while
// the candidate is still open, with no equal-key tie, kills the first
// candidacy — A never teleports even though B (which takes over as
// candidate once A is abandoned) closes cleanly at its own boundary.
func TestSortedBuilderTeleportAbandonedByNonEqualKeyNeighbor(t *testing.T) {
	streams := chunk.NewInputStreamDirectory(chunk.StreamInfo{IsPrimary: true, IsTeleportable: true})
	b := NewBuilder(Options{ReduceKeyPrefixLength: 1, TeleportEnabled: true}, chunk.DefaultComparator, streams)

	// A spans [1,5); B opens at 3, inside A's window, at a different key
	// than A's close (5) — A cannot teleport.
	a := newRangeSlice(1, 5, 40, 0)
	aChunkID := a.Chunk().ID()
	bSlice := newRangeSlice(3, 7, 20, 0)
	b.AddPrimarySlice(a)
	b.AddPrimarySlice(bSlice)

	result, err := b.Build()
	require.NoError(t, err)
	for _, id := range result.TeleportChunkIDs {
		require.NotEqual(t, aChunkID, id, "A must not teleport once abandoned")
	}
}

// TestSortedBuilderScenarioDManiacPreservesKeyGroup mirrors the key-group
// scenario: 1000 slices sharing one reduce key never split across tasks,
// while the remaining distinct-key slices are packed into ordinary
// budget-bounded tasks.
func TestSortedBuilderScenarioDManiacPreservesKeyGroup(t *testing.T) {
	streams := chunk.NewInputStreamDirectory(chunk.StreamInfo{IsPrimary: true})
	b := NewBuilder(Options{ReduceKeyPrefixLength: 1, MaxDataWeightPerJob: 100}, chunk.DefaultComparator, streams)

	for i := 0; i < 1000; i++ {
		b.AddPrimarySlice(newPointSlice(42, 10, 0))
	}
	for k := 43; k < 1043; k++ {
		b.AddPrimarySlice(newPointSlice(k, 10, 0))
	}

	result, err := b.Build()
	require.NoError(t, err)

	maniacCount := 0
	ordinaryCount := 0
	var maniacWeight int64
	for _, task := range result.Tasks {
		if task.IsManiac {
			maniacCount++
			maniacWeight = task.PrimaryDataWeight
			require.Len(t, task.Stripes[0].Slices, 1000)
		} else {
			ordinaryCount++
		}
	}
	require.Equal(t, 1, maniacCount)
	require.Equal(t, int64(10000), maniacWeight)
	require.GreaterOrEqual(t, ordinaryCount, 10)

	seen := make(map[int]int)
	for ti, task := range result.Tasks {
		for _, sl := range task.Stripes[0].Slices {
			keyVal := sl.MinKey()[0].(int)
			if prev, ok := seen[keyVal]; ok {
				require.Equal(t, prev, ti, "key %d split across tasks", keyVal)
			} else {
				seen[keyVal] = ti
			}
		}
	}
}

// TestSortedBuilderForeignBroadcastClipsToTaskRange checks step 6: a
// foreign slice spanning several tasks' ranges is attached, clipped, to
// every task it intersects.
func TestSortedBuilderForeignBroadcastClipsToTaskRange(t *testing.T) {
	streams := chunk.NewInputStreamDirectory(
		chunk.StreamInfo{IsPrimary: true},
		chunk.StreamInfo{IsForeign: true},
	)
	b := NewBuilder(Options{ReduceKeyPrefixLength: 1, ForeignKeyPrefixLength: 1, MaxDataWeightPerJob: 10}, chunk.DefaultComparator, streams)

	b.AddPrimarySlice(newPointSlice(1, 10, 0))
	b.AddPrimarySlice(newPointSlice(4, 10, 0))

	foreign := newRangeSlice(1, 5, 50, 1)
	b.AddForeignSlice(foreign)

	result, err := b.Build()
	require.NoError(t, err)
	require.Len(t, result.Tasks, 2)

	for _, task := range result.Tasks {
		require.Len(t, task.Stripes, 2, "expected primary+foreign stripe on every intersecting task")
		require.True(t, task.Stripes[1].Foreign)
	}
}

func TestSortedBuilderRejectsForeignWithoutPrimary(t *testing.T) {
	streams := chunk.NewInputStreamDirectory(chunk.StreamInfo{IsForeign: true})
	b := NewBuilder(Options{ReduceKeyPrefixLength: 1}, chunk.DefaultComparator, streams)
	b.AddForeignSlice(newRangeSlice(1, 2, 10, 0))

	_, err := b.Build()
	require.Error(t, err)
}

func TestSortedBuilderEmptyInputYieldsEmptyResult(t *testing.T) {
	b := NewBuilder(Options{ReduceKeyPrefixLength: 1}, chunk.DefaultComparator, nil)
	result, err := b.Build()
	require.NoError(t, err)
	require.Empty(t, result.Tasks)
	require.Empty(t, result.Output)
}
