package pool

import (
	"testing"

	"github.com/dataplane-sh/chunkctl/chunk"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newChunkWithReplica(weight int64, addr string) *chunk.Chunk {
	return chunk.NewChunk(uuid.New(), weight, weight, weight, 10, nil, nil,
		[]chunk.Replica{{Address: addr}}, 0, chunk.CodecNone, 1)
}

func TestAtomicPoolScenarioA(t *testing.T) {
	p := NewAtomic()

	c1 := newChunkWithReplica(100, "nodeX")
	c2 := newChunkWithReplica(200, "nodeY")
	_, err := p.Add(chunk.NewStripe(chunk.NewSlice(c1)))
	require.NoError(t, err)
	_, err = p.Add(chunk.NewStripe(chunk.NewSlice(c2)))
	require.NoError(t, err)

	p.Finish()
	require.Equal(t, 1, p.GetTotalJobCount())
	require.Equal(t, 1, p.GetPendingJobCount())

	cookie := p.Extract("nodeX")
	require.False(t, cookie.IsNull())
	require.Equal(t, 0, p.GetPendingJobCount())

	list := p.GetStripeList(cookie)
	require.NotNil(t, list)
	require.Len(t, list.Stripes, 2)
	require.Equal(t, int64(300), list.TotalDataWeight())

	require.NoError(t, p.Completed(cookie))
	require.Equal(t, int64(1), p.jobProgress.Completed())
}

func TestAtomicPoolRejectsAddAfterFinish(t *testing.T) {
	p := NewAtomic()
	p.Finish()
	c := newChunkWithReplica(10, "n")
	_, err := p.Add(chunk.NewStripe(chunk.NewSlice(c)))
	require.Error(t, err)
}

func TestAtomicPoolSuspendBlocksExtract(t *testing.T) {
	p := NewAtomic()
	c := newChunkWithReplica(10, "n")
	cookie, err := p.Add(chunk.NewStripe(chunk.NewSlice(c)))
	require.NoError(t, err)
	p.Finish()

	require.NoError(t, p.Suspend(cookie))
	require.Equal(t, 0, p.GetPendingJobCount())

	require.NoError(t, p.Resume(cookie, nil))
	require.Equal(t, 1, p.GetPendingJobCount())
}

func TestAtomicPoolFailedReturnsToPending(t *testing.T) {
	p := NewAtomic()
	c := newChunkWithReplica(10, "n")
	_, err := p.Add(chunk.NewStripe(chunk.NewSlice(c)))
	require.NoError(t, err)
	p.Finish()

	cookie := p.Extract("n")
	require.NoError(t, p.Failed(cookie))
	require.Equal(t, 1, p.GetPendingJobCount())

	replay := p.Extract("n")
	require.Equal(t, cookie, replay)
}
