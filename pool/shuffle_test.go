package pool

import (
	"testing"

	"github.com/dataplane-sh/chunkctl/chunk"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func shuffleStripe() *chunk.Stripe {
	c := chunk.NewChunk(uuid.New(), 1, 1, 1, 1, nil, nil, nil, 0, chunk.CodecNone, 1)
	return chunk.NewStripe(chunk.NewSlice(c))
}

// TestShufflePoolRunBoundaries exercises the threshold-seal rule of
// Run construction: a run seals the instant adding the next elementary
// stripe would push it over threshold, and that stripe starts the next
// run. With weights (600, 500, 400) against a 1000 threshold, 600 alone
// already can't absorb 500 without exceeding, so it seals solo; 500+400
// (900) stays under threshold and is the final run sealed at Finish.
func TestShufflePoolRunBoundaries(t *testing.T) {
	s := NewShuffle(2, 1000)

	_, err := s.AddWithPartitionWeights(shuffleStripe(), []int64{600, 900}, []int64{6, 9})
	require.NoError(t, err)
	_, err = s.AddWithPartitionWeights(shuffleStripe(), []int64{500, 300}, []int64{5, 3})
	require.NoError(t, err)
	_, err = s.AddWithPartitionWeights(shuffleStripe(), []int64{400, 400}, []int64{4, 4})
	require.NoError(t, err)
	s.Finish()

	p0 := s.partitions[0]
	require.Len(t, p0.runs, 2)
	require.Equal(t, int64(600), p0.runs[0].dataWeight)
	require.Equal(t, int64(900), p0.runs[1].dataWeight)

	p1 := s.partitions[1]
	require.Len(t, p1.runs, 2)
	require.Equal(t, int64(900), p1.runs[0].dataWeight)
	require.Equal(t, int64(700), p1.runs[1].dataWeight)
}

func TestShufflePoolExtractCompleteLifecycle(t *testing.T) {
	s := NewShuffle(1, 100)
	_, err := s.AddWithPartitionWeights(shuffleStripe(), []int64{50}, []int64{5})
	require.NoError(t, err)
	s.Finish()

	require.Equal(t, 1, s.GetPendingJobCount())
	cookie := s.ExtractPartition(0)
	require.False(t, cookie.IsNull())
	require.Equal(t, 0, s.GetPendingJobCount())

	list := s.GetStripeList(cookie)
	require.NotNil(t, list)
	require.Equal(t, 0, list.PartitionTag)

	require.NoError(t, s.Completed(cookie))
	require.NoError(t, s.Lost(cookie))
	require.Equal(t, 1, s.GetPendingJobCount())
}

func TestShufflePoolLocalityUndefined(t *testing.T) {
	s := NewShuffle(1, 100)
	require.Equal(t, int64(0), s.GetLocality("any"))
}

func TestShufflePoolSuspendBlocksRun(t *testing.T) {
	s := NewShuffle(1, 1000)
	cookie, err := s.AddWithPartitionWeights(shuffleStripe(), []int64{10}, []int64{1})
	require.NoError(t, err)
	s.Finish()

	require.NoError(t, s.Suspend(cookie))
	require.Equal(t, 0, s.GetPendingJobCount())

	require.NoError(t, s.Resume(cookie, nil))
	require.Equal(t, 1, s.GetPendingJobCount())
}

func TestShufflePoolFailedReturnsRunToPending(t *testing.T) {
	s := NewShuffle(1, 1000)
	_, err := s.AddWithPartitionWeights(shuffleStripe(), []int64{10}, []int64{1})
	require.NoError(t, err)
	s.Finish()

	cookie := s.ExtractPartition(0)
	require.NoError(t, s.Failed(cookie))
	require.Equal(t, 1, s.GetPendingJobCount())
}

func TestShuffleAddRejectsMismatchedPartitionCount(t *testing.T) {
	s := NewShuffle(2, 1000)
	_, err := s.AddWithPartitionWeights(shuffleStripe(), []int64{10}, []int64{1})
	require.Error(t, err)
}
