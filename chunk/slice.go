package chunk

// Limit bounds one end of a Slice. A limit may carry a row-index bound, a
// key bound, or both (spec §3: "each limit may carry a row-index bound, a
// key bound (inclusive/exclusive, upper/lower), or both"). The zero Limit
// means "unbounded on this side".
type Limit struct {
	RowIndex    int64
	HasRowIndex bool

	Key        Key
	HasKey     bool
	KeyExclusive bool
}

// Unbounded is the zero Limit, usable as either end.
var Unbounded = Limit{}

// RowLimit constructs a Limit bounded by row index.
func RowLimit(rowIndex int64) Limit {
	return Limit{RowIndex: rowIndex, HasRowIndex: true}
}

// KeyLimit constructs a Limit bounded by key.
func KeyLimit(key Key, exclusive bool) Limit {
	return Limit{Key: key, HasKey: true, KeyExclusive: exclusive}
}

// Slice is a half-open, immutable view into a Chunk's rows, bounded by
// [Lower, Upper). The weight/row-count overrides are the slice's portion of
// the parent chunk, computed at construction time by one of the Split*
// helpers below; they are never recomputed afterward.
type Slice struct {
	chunk *Chunk

	Lower Limit
	Upper Limit

	// dataWeight/rowCount are this slice's share of the parent chunk.
	dataWeight int64
	rowCount   int64

	// partIndex is set for erasure-part slices (one slice per data part);
	// 0 for ordinary row/key slices of non-erasure chunks.
	partIndex int

	// InputStreamIndex identifies which input stream (table) this slice
	// belongs to; set by the caller assembling stripes, not by the slice
	// itself.
	InputStreamIndex int
}

// NewSlice constructs a Slice covering the whole chunk.
func NewSlice(c *Chunk) *Slice {
	return &Slice{chunk: c, dataWeight: c.DataWeight(), rowCount: c.RowCount()}
}

func (s *Slice) Chunk() *Chunk       { return s.chunk }
func (s *Slice) DataWeight() int64   { return s.dataWeight }
func (s *Slice) RowCount() int64     { return s.rowCount }
func (s *Slice) PartIndex() int      { return s.partIndex }

// MinKey returns the slice's effective lower key bound: its own Lower.Key if
// set, otherwise the parent chunk's MinKey.
func (s *Slice) MinKey() Key {
	if s.Lower.HasKey {
		return s.Lower.Key
	}
	return s.chunk.MinKey()
}

// MaxKey returns the slice's effective upper key bound: its own Upper.Key if
// set, otherwise the parent chunk's MaxKey.
func (s *Slice) MaxKey() Key {
	if s.Upper.HasKey {
		return s.Upper.Key
	}
	return s.chunk.MaxKey()
}

// IsWholeChunk reports whether this slice spans the chunk's full boundary
// keys and full row range — the condition spec §4.5 teleport detection
// requires before a chunk may be teleported whole.
func (s *Slice) IsWholeChunk(cmp Comparator) bool {
	if s.Lower.HasRowIndex && s.Lower.RowIndex != 0 {
		return false
	}
	if s.Upper.HasRowIndex && s.Upper.RowIndex != s.chunk.RowCount() {
		return false
	}
	if s.chunk.HasBoundaryKeys() {
		if cmp.Compare(s.MinKey(), s.chunk.MinKey()) != 0 {
			return false
		}
		if cmp.Compare(s.MaxKey(), s.chunk.MaxKey()) != 0 {
			return false
		}
	}
	return true
}

// clone returns a shallow copy of s; the Split* helpers then replace the
// copy's limits and overrides so the parent slice is left intact.
func (s *Slice) clone() *Slice {
	c := *s
	return &c
}

// SplitByRowIndex partitions s into consecutive row-index-bounded slices so
// that each has approximately targetWeight data weight. The final slice may
// be smaller. Used to meet a target bytes-per-job (spec §3 "(a) splitting by
// row-index").
func SplitByRowIndex(s *Slice, targetWeight int64) []*Slice {
	if targetWeight <= 0 || s.rowCount == 0 {
		return []*Slice{s}
	}
	weightPerRow := float64(s.dataWeight) / float64(s.rowCount)
	rowsPerSlice := int64(float64(targetWeight) / weightPerRow)
	if rowsPerSlice < 1 {
		rowsPerSlice = 1
	}

	lowerRow := int64(0)
	if s.Lower.HasRowIndex {
		lowerRow = s.Lower.RowIndex
	}
	upperRow := s.chunk.RowCount()
	if s.Upper.HasRowIndex {
		upperRow = s.Upper.RowIndex
	}

	var out []*Slice
	for cur := lowerRow; cur < upperRow; cur += rowsPerSlice {
		end := min64(cur+rowsPerSlice, upperRow)
		piece := s.clone()
		piece.Lower = RowLimit(cur)
		piece.Upper = RowLimit(end)
		rows := end - cur
		piece.rowCount = rows
		piece.dataWeight = int64(float64(rows) * weightPerRow)
		out = append(out, piece)
	}
	if len(out) == 0 {
		out = append(out, s)
	}
	return out
}

// SplitByKey partitions s at the given sorted breakpoints (each a key
// prefix), clipping to each interval. Used to honor key-group integrity
// (spec §3 "(b) splitting by key").
func SplitByKey(s *Slice, cmp Comparator, breakpoints []Key) []*Slice {
	if len(breakpoints) == 0 {
		return []*Slice{s}
	}
	var out []*Slice
	lower := s.Lower
	for _, bp := range breakpoints {
		piece := s.clone()
		piece.Lower = lower
		piece.Upper = KeyLimit(bp, false)
		out = append(out, piece)
		lower = KeyLimit(bp, false)
	}
	last := s.clone()
	last.Lower = lower
	last.Upper = s.Upper
	out = append(out, last)
	return distributeWeight(out, s.dataWeight, s.rowCount)
}

// SplitErasureParts returns one slice per data part of an erasure-coded
// chunk (spec §3 "(c) erasure-part slicing"). Each part slice carries the
// full row range but is tagged with its PartIndex so a downstream reader
// knows which replica set to fetch.
func SplitErasureParts(s *Slice) []*Slice {
	if !s.chunk.IsErasure() {
		return []*Slice{s}
	}
	parts := make([]*Slice, s.chunk.PartCount())
	perPart := s.dataWeight / int64(s.chunk.PartCount())
	for i := range parts {
		piece := s.clone()
		piece.partIndex = i
		piece.dataWeight = perPart
		parts[i] = piece
	}
	return parts
}

func distributeWeight(slices []*Slice, totalWeight, totalRows int64) []*Slice {
	if len(slices) == 0 {
		return slices
	}
	share := totalWeight / int64(len(slices))
	rowShare := totalRows / int64(len(slices))
	for i, sl := range slices {
		if i == len(slices)-1 {
			sl.dataWeight = totalWeight - share*int64(len(slices)-1)
			sl.rowCount = totalRows - rowShare*int64(len(slices)-1)
		} else {
			sl.dataWeight = share
			sl.rowCount = rowShare
		}
	}
	return slices
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// ClipToKeyRange returns a copy of s whose limits are clipped to
// [lower, upper) where tighter than s's own limits. Used for foreign-table
// broadcast clipping (spec §4.5 step 6) and secondary split-by-foreign-key
// (step 7); grounded on original_source's input_chunk_slice.cpp clipping
// helper. Only key limits are touched — foreign slices in this core are
// always key-limited, never row-limited, matching the original's
// distinction between primary (row+key) and foreign (key-only) slicing.
func ClipToKeyRange(s *Slice, cmp Comparator, lower, upper Key) *Slice {
	clipped := s.clone()
	if lower != nil && cmp.Compare(clipped.MinKey(), lower) < 0 {
		clipped.Lower = KeyLimit(lower, false)
	}
	if upper != nil && cmp.Compare(clipped.MaxKey(), upper) > 0 {
		clipped.Upper = KeyLimit(upper, false)
	}
	return clipped
}
