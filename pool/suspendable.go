package pool

import "github.com/dataplane-sh/chunkctl/chunk"

// SuspendableStripe wraps a stripe with suspend/resume state used on
// transient input unavailability (spec §3, §4.1).
//
// Grounded on original_source/yt/server/scheduler/chunk_pool.h's
// TSuspendableStripe.
type SuspendableStripe struct {
	Stripe *chunk.Stripe

	// suspendCount is incremented by Suspend and decremented by Resume; a
	// stripe must be excluded from Extract while it's > 0.
	suspendCount int
}

// NewSuspendableStripe wraps stripe with zero suspend count.
func NewSuspendableStripe(stripe *chunk.Stripe) *SuspendableStripe {
	return &SuspendableStripe{Stripe: stripe}
}

func (s *SuspendableStripe) IsSuspended() bool  { return s.suspendCount > 0 }
func (s *SuspendableStripe) SuspendCount() int  { return s.suspendCount }

func (s *SuspendableStripe) Suspend() { s.suspendCount++ }

// Resume decrements the suspend count and, if replacement is non-nil,
// swaps in the new stripe (spec §4.1: "a replaced stripe supersedes the
// previous one but counters use the original statistics").
func (s *SuspendableStripe) Resume(replacement *chunk.Stripe) {
	if s.suspendCount > 0 {
		s.suspendCount--
	}
	if replacement != nil {
		s.Stripe = replacement
	}
}
