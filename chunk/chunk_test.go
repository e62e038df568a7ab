package chunk

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestChunk(id uuid.UUID, minKey, maxKey Key, replicas []Replica) *Chunk {
	return NewChunk(id, 1000, 400, 1000, 100, minKey, maxKey, replicas, 0, CodecNone, 1)
}

func TestChunkLocalityForSumsPerReplica(t *testing.T) {
	c := newTestChunk(uuid.New(), Key{1}, Key{9}, []Replica{
		{Address: "node-a"},
		{Address: "node-a"},
		{Address: "node-b"},
	})
	require.Equal(t, int64(2000), c.LocalityFor("node-a"))
	require.Equal(t, int64(1000), c.LocalityFor("node-b"))
	require.Equal(t, int64(0), c.LocalityFor("node-c"))
}

func TestChunkHasBoundaryKeys(t *testing.T) {
	withKeys := newTestChunk(uuid.New(), Key{1}, Key{9}, nil)
	require.True(t, withKeys.HasBoundaryKeys())

	noKeys := NewChunk(uuid.New(), 1, 1, 1, 1, nil, nil, nil, 0, CodecNone, 1)
	require.False(t, noKeys.HasBoundaryKeys())
}

func TestChunkIsErasure(t *testing.T) {
	erasure := NewChunk(uuid.New(), 1, 1, 1, 1, nil, nil, nil, 0, CodecErasure, 6)
	require.True(t, erasure.IsErasure())
	require.Equal(t, 6, erasure.PartCount())

	plain := newTestChunk(uuid.New(), nil, nil, nil)
	require.False(t, plain.IsErasure())
	require.Equal(t, 1, plain.PartCount())
}

func TestSliceIsWholeChunk(t *testing.T) {
	c := newTestChunk(uuid.New(), Key{1}, Key{9}, nil)
	whole := NewSlice(c)
	require.True(t, whole.IsWholeChunk(DefaultComparator))

	partial := whole.clone()
	partial.Upper = RowLimit(50)
	require.False(t, partial.IsWholeChunk(DefaultComparator))
}

func TestSplitByRowIndex(t *testing.T) {
	c := newTestChunk(uuid.New(), nil, nil, nil)
	s := NewSlice(c)
	pieces := SplitByRowIndex(s, 250)
	require.Len(t, pieces, 4)

	var totalRows, totalWeight int64
	for _, p := range pieces {
		totalRows += p.RowCount()
		totalWeight += p.DataWeight()
	}
	require.Equal(t, c.RowCount(), totalRows)
	require.InDelta(t, float64(c.DataWeight()), float64(totalWeight), 10)
}

func TestSplitByKeyDistributesWeight(t *testing.T) {
	c := newTestChunk(uuid.New(), Key{0}, Key{100}, nil)
	s := NewSlice(c)
	pieces := SplitByKey(s, DefaultComparator, []Key{{30}, {70}})
	require.Len(t, pieces, 3)

	var totalWeight, totalRows int64
	for _, p := range pieces {
		totalWeight += p.DataWeight()
		totalRows += p.RowCount()
	}
	require.Equal(t, c.DataWeight(), totalWeight)
	require.Equal(t, c.RowCount(), totalRows)
}

func TestSplitErasurePartsOneSlicePerPart(t *testing.T) {
	c := NewChunk(uuid.New(), 600, 600, 600, 10, nil, nil, nil, 0, CodecErasure, 3)
	s := NewSlice(c)
	parts := SplitErasureParts(s)
	require.Len(t, parts, 3)
	for i, p := range parts {
		require.Equal(t, i, p.PartIndex())
		require.Equal(t, int64(200), p.DataWeight())
	}
}

func TestSplitErasurePartsNoopForPlainChunk(t *testing.T) {
	c := newTestChunk(uuid.New(), nil, nil, nil)
	s := NewSlice(c)
	parts := SplitErasureParts(s)
	require.Len(t, parts, 1)
	require.Same(t, s, parts[0])
}

func TestClipToKeyRangeNarrowsOnlyWhenTighter(t *testing.T) {
	c := newTestChunk(uuid.New(), Key{0}, Key{100}, nil)
	s := NewSlice(c)

	clipped := ClipToKeyRange(s, DefaultComparator, Key{20}, Key{200})
	require.Equal(t, Key{20}, clipped.MinKey())
	// upper bound 200 is looser than the chunk's own 100, so it's untouched.
	require.Equal(t, Key{100}, clipped.MaxKey())
}

func TestStripeAggregates(t *testing.T) {
	c1 := newTestChunk(uuid.New(), nil, nil, []Replica{{Address: "a"}})
	c2 := newTestChunk(uuid.New(), nil, nil, []Replica{{Address: "b"}})
	stripe := NewStripe(NewSlice(c1), NewSlice(c2))

	require.Equal(t, int64(2000), stripe.DataWeight())
	require.Equal(t, int64(200), stripe.RowCount())
	require.Equal(t, 2, stripe.ChunkCount())
	require.Equal(t, int64(1000), stripe.LocalityFor("a"))
}

func TestStripeChunkCountDedupsSplitSlices(t *testing.T) {
	c := newTestChunk(uuid.New(), nil, nil, nil)
	s := NewSlice(c)
	pieces := SplitByRowIndex(s, 250)
	stripe := NewStripe(pieces...)
	require.Equal(t, 1, stripe.ChunkCount())
}

func TestStripeListTotals(t *testing.T) {
	c1 := newTestChunk(uuid.New(), nil, nil, []Replica{{Address: "a"}})
	c2 := newTestChunk(uuid.New(), nil, nil, []Replica{{Address: "a"}})
	list := NewStripeList(NewStripe(NewSlice(c1)), NewStripe(NewSlice(c2)))

	require.Equal(t, int64(2000), list.TotalDataWeight())
	require.Equal(t, int64(200), list.TotalRowCount())
	require.Equal(t, 2, list.TotalChunkCount())
	require.Equal(t, 2, list.LocalChunkCountFor("a"))
	require.Equal(t, 0, list.LocalChunkCountFor("z"))
}

func TestInputStreamDirectoryDefaults(t *testing.T) {
	dir := NewInputStreamDirectory(
		StreamInfo{IsPrimary: true, IsTeleportable: true},
		StreamInfo{IsForeign: true},
	)
	require.True(t, dir.Get(0).IsTeleportable)
	require.True(t, dir.Get(1).IsForeign)
	// out-of-range index defaults to plain primary.
	require.Equal(t, StreamInfo{IsPrimary: true}, dir.Get(5))
	require.Equal(t, 2, dir.Len())
}
