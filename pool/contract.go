package pool

import "github.com/dataplane-sh/chunkctl/chunk"

// Input is the facet of a ChunkPool that accepts input stripes (spec
// §4.1 "Input facet").
type Input interface {
	// Add registers an input stripe and returns its input cookie. Returns
	// an error if the pool is already Finished.
	Add(stripe *chunk.Stripe) (Cookie, error)

	// Suspend marks the stripe behind cookie as transiently unavailable.
	Suspend(cookie Cookie) error

	// Resume marks the stripe behind cookie available again, optionally
	// replacing it with a freshly-fetched stripe; pass nil to resume with
	// the original stripe unchanged.
	Resume(cookie Cookie, stripe *chunk.Stripe) error

	// Finish declares no more inputs will be added. Idempotent.
	Finish()

	// IsFinished reports whether Finish has been called.
	IsFinished() bool
}

// Output is the facet of a ChunkPool that hands out job-sized stripe lists
// and receives their lifecycle callbacks (spec §4.1 "Output facet").
type Output interface {
	GetPendingJobCount() int
	GetTotalJobCount() int
	GetPendingDataWeight() int64
	GetTotalDataWeight() int64

	// GetLocality sums the locality scores of pending stripes for addr.
	GetLocality(addr string) int64

	// Extract returns a cookie binding a freshly extracted stripe list
	// preferring addr's locality, or the null cookie if nothing is
	// extractable.
	Extract(addr string) Cookie

	// GetStripeList returns the stripe list bound to cookie, or nil if the
	// cookie is unknown or not currently bound.
	GetStripeList(cookie Cookie) *chunk.StripeList

	Completed(cookie Cookie) error
	Failed(cookie Cookie) error
	Aborted(cookie Cookie) error
	Lost(cookie Cookie) error
}

// ChunkPool is the polymorphic sum-type contract every pool variant
// satisfies (spec §9: "represent as a sum type ... behind a shared
// interface rather than deep class inheritance").
type ChunkPool interface {
	Input
	Output
}
