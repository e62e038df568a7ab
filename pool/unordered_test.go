package pool

import (
	"testing"

	"github.com/dataplane-sh/chunkctl/chunk"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func addEqualStripe(t *testing.T, p *Unordered, weight int64, addr string) Cookie {
	t.Helper()
	c := chunk.NewChunk(uuid.New(), weight, weight, weight, 10, nil, nil,
		[]chunk.Replica{{Address: addr}}, 0, chunk.CodecNone, 1)
	cookie, err := p.Add(chunk.NewStripe(chunk.NewSlice(c)))
	require.NoError(t, err)
	return cookie
}

func TestUnorderedPoolScenarioB(t *testing.T) {
	p := NewUnordered(4)
	for i := 0; i < 8; i++ {
		addEqualStripe(t, p, 100, "node0")
	}
	p.Finish()

	require.Equal(t, 4, p.GetTotalJobCount())

	c1 := p.Extract("nodeY")
	require.False(t, c1.IsNull())
	c2 := p.Extract("nodeY")
	require.False(t, c2.IsNull())
	require.NotEqual(t, c1, c2)

	require.NoError(t, p.Completed(c1))
	require.NoError(t, p.Completed(c2))

	originalList := p.GetStripeList(c1)
	require.NotNil(t, originalList)
	originalStripes := len(originalList.Stripes)

	require.NoError(t, p.Lost(c1))

	replay := p.Extract("nodeY")
	require.Equal(t, c1, replay)

	replayList := p.GetStripeList(replay)
	require.NotNil(t, replayList)
	require.Len(t, replayList.Stripes, originalStripes)
	require.Equal(t, 0, replayList.LocalChunkCountFor("node0"))
}

func TestUnorderedPoolFailedReturnsStripesToPending(t *testing.T) {
	p := NewUnordered(2)
	for i := 0; i < 4; i++ {
		addEqualStripe(t, p, 50, "nodeA")
	}
	p.Finish()

	cookie := p.Extract("nodeA")
	require.False(t, cookie.IsNull())
	weightBefore := p.GetPendingDataWeight()

	require.NoError(t, p.Failed(cookie))
	require.Greater(t, p.GetPendingDataWeight(), weightBefore)

	require.Nil(t, p.GetStripeList(cookie))
}

func TestUnorderedPoolSuspendDisallowed(t *testing.T) {
	p := NewUnordered(1)
	cookie := addEqualStripe(t, p, 10, "n")
	require.Error(t, p.Suspend(cookie))
	require.Error(t, p.Resume(cookie, nil))
}

func TestUnorderedPoolPendingJobCountRequiresFinish(t *testing.T) {
	p := NewUnordered(2)
	addEqualStripe(t, p, 10, "n")
	require.Equal(t, 0, p.GetPendingJobCount())
	p.Finish()
	require.Equal(t, 1, p.GetPendingJobCount())
}
