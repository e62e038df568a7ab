package chunk

// Stripe is an ordered sequence of slices drawn from one input stream
// (table). Order matters only for streams the consumer reads sequentially
// (spec §3: "slices within a stripe are read in the order given"); pools
// that don't care about order (unordered/shuffle) still build one-slice-per
// Stripe and rely on the pool's own aggregation instead of stripe order.
//
// Grounded on original_source/yt/server/chunk_pools/chunk_stripe.{h,cpp}.
type Stripe struct {
	Slices []*Slice

	// Foreign marks a stripe whose slices are broadcast to every job rather
	// than partitioned across jobs (spec §4.5 step 6, "foreign tables").
	Foreign bool

	// Primary is the complement of Foreign for streams the sorted job
	// builder partitions by key; a stream is exactly one of Primary or
	// Foreign for any given job's purposes.
	Primary bool

	// Teleportable marks a stream whose whole chunks may be teleported
	// directly to output without being read by a job (spec §4.5 step 5).
	Teleportable bool

	// Versioned marks a stream whose rows carry per-cell timestamps,
	// disabling teleportation and whole-row maniac merging for it.
	Versioned bool

	// WaitingJobCount counts extracted-but-not-yet-completed jobs that
	// reference this stripe, used by suspend/resume bookkeeping in the
	// pool package; 0 until a pool starts tracking it.
	WaitingJobCount int
}

// NewStripe builds a Stripe from slices, defaulting to Primary.
func NewStripe(slices ...*Slice) *Stripe {
	return &Stripe{Slices: slices, Primary: true}
}

// DataWeight sums the data weight of every slice in the stripe.
func (s *Stripe) DataWeight() int64 {
	var total int64
	for _, sl := range s.Slices {
		total += sl.DataWeight()
	}
	return total
}

// RowCount sums the row count of every slice in the stripe.
func (s *Stripe) RowCount() int64 {
	var total int64
	for _, sl := range s.Slices {
		total += sl.RowCount()
	}
	return total
}

// ChunkCount returns the number of distinct chunks referenced by the
// stripe's slices (a chunk split into several slices counts once).
func (s *Stripe) ChunkCount() int {
	seen := make(map[ID]struct{}, len(s.Slices))
	for _, sl := range s.Slices {
		seen[sl.Chunk().ID()] = struct{}{}
	}
	return len(seen)
}

// LocalityFor sums LocalityFor across every slice's parent chunk.
func (s *Stripe) LocalityFor(addr string) int64 {
	var total int64
	for _, sl := range s.Slices {
		total += sl.Chunk().LocalityFor(addr)
	}
	return total
}

// StripeList is the per-job aggregate a pool hands out from Extract: a set
// of stripes (one per input stream touched) plus running totals a
// scheduler/controller can use without re-walking every slice.
//
// Grounded on original_source/yt/server/chunk_pools/chunk_stripe_list.h.
type StripeList struct {
	Stripes []*Stripe

	// PartitionTag identifies which shuffle partition this list belongs to;
	// -1 when the pool producing it is not partition-aware.
	PartitionTag int

	// IsApproximate marks a list whose totals are estimates rather than
	// exact sums — set when a pool predicts a stripe list's size ahead of
	// the chunks actually being sliced (spec §4.4 shuffle statistics).
	IsApproximate bool

	totalDataWeight int64
	totalRowCount   int64
	totalChunkCount int

	// localityReset marks a list whose chunks have all moved off their
	// recorded replicas (set by Lost-recovery bookkeeping in the pool
	// package, spec §4.3: "reset the stripe list's local counts"); while
	// set, LocalChunkCountFor always reports 0 regardless of the chunks'
	// actual replica addresses.
	localityReset bool
}

// ResetLocality marks the list as having no local chunks for any address,
// used when a completed job is declared Lost and its chunks are assumed to
// have moved (spec §4.3).
func (l *StripeList) ResetLocality() { l.localityReset = true }

// NewStripeList builds a StripeList and computes its running totals.
func NewStripeList(stripes ...*Stripe) *StripeList {
	l := &StripeList{Stripes: stripes, PartitionTag: -1}
	l.recompute()
	return l
}

func (l *StripeList) recompute() {
	l.totalDataWeight = 0
	l.totalRowCount = 0
	l.totalChunkCount = 0
	for _, s := range l.Stripes {
		l.totalDataWeight += s.DataWeight()
		l.totalRowCount += s.RowCount()
		l.totalChunkCount += s.ChunkCount()
	}
}

func (l *StripeList) TotalDataWeight() int64 { return l.totalDataWeight }
func (l *StripeList) TotalRowCount() int64   { return l.totalRowCount }
func (l *StripeList) TotalChunkCount() int   { return l.totalChunkCount }

// LocalChunkCountFor recomputes and returns how many chunks in the list have
// nonzero locality for addr — used by the scheduler's locality-aware
// dispatch (spec §4.8).
func (l *StripeList) LocalChunkCountFor(addr string) int {
	if l.localityReset {
		return 0
	}
	count := 0
	for _, s := range l.Stripes {
		for _, sl := range s.Slices {
			if sl.Chunk().LocalityFor(addr) > 0 {
				count++
			}
		}
	}
	return count
}

// StreamInfo describes the role a single input stream (table) plays across
// every stripe list a pool produces.
//
// Grounded on original_source/yt/server/chunk_pools/input_stream.{h,cpp}.
type StreamInfo struct {
	IsPrimary      bool
	IsForeign      bool
	IsTeleportable bool
	IsVersioned    bool
}

// InputStreamDirectory maps a stream index to its StreamInfo. Built once per
// operation and shared read-only by every pool/job-builder that consults it.
type InputStreamDirectory struct {
	streams []StreamInfo
}

// NewInputStreamDirectory builds a directory from an ordered list of
// per-stream info, indexed by position.
func NewInputStreamDirectory(streams ...StreamInfo) *InputStreamDirectory {
	return &InputStreamDirectory{streams: append([]StreamInfo(nil), streams...)}
}

// Get returns the StreamInfo for streamIndex, or a StreamInfo with only
// IsPrimary set (not foreign, teleportable or versioned) if out of range —
// matching the original's "unknown streams behave as plain primary,
// non-teleportable" default.
func (d *InputStreamDirectory) Get(streamIndex int) StreamInfo {
	if streamIndex < 0 || streamIndex >= len(d.streams) {
		return StreamInfo{IsPrimary: true}
	}
	return d.streams[streamIndex]
}

func (d *InputStreamDirectory) Len() int { return len(d.streams) }
