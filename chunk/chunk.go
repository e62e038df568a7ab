// Package chunk models the immutable input data model shared by every
// chunk pool variant: chunks, their half-open slices, the stripes that
// group slices by input stream, and the per-job stripe lists a pool hands
// out. None of these types are ever mutated in place after construction —
// "chunk" and "slice" objects are read-only views; pools copy small value
// structs (Limit, Slice) rather than aliasing mutable state, matching spec
// §3's "Never mutated after construction".
//
// Grounded on original_source/yt/yt/ytlib/chunk_client/{chunk_slice.cpp,
// input_chunk_slice.cpp} and yt/ytlib/chunk_client/public.h.
package chunk

import (
	"fmt"

	"github.com/google/uuid"
)

// ID is a 128-bit chunk identifier (spec §3: "identified by a chunk id
// (128-bit)"). uuid.UUID is a convenient, wire-friendly 16-byte value type
// for this — the teacher's corpus doesn't carry a 128-bit id type, but
// jontk-slurm-client's go.mod wires google/uuid, which is adopted here.
type ID = uuid.UUID

// NilID is the zero chunk id, used as a sentinel in tests and defaults.
var NilID = uuid.Nil

// Codec identifies the erasure or compression codec a chunk was written
// with. The wire encoding of actual codecs is an external interface (spec
// §1 Non-goals: "does not ... erasure-encode data"); this core only needs
// to know the codec identity for erasure-part slicing (Chunk.PartCount).
type Codec int

const (
	// CodecNone indicates an unencoded, non-erasure chunk.
	CodecNone Codec = iota
	// CodecErasure indicates an erasure-coded chunk split into parts.
	CodecErasure
)

// Key is an opaque, comparable row key prefix. Chunks/slices carry raw key
// values; the comparator used to order and group them is supplied by the
// caller (spec §4.5 "(e) a comparator over key prefixes") because this core
// is agnostic to the concrete key encoding (YSON/wire codecs are explicitly
// out of scope, spec §1).
type Key []any

// Replica is one physical location holding a chunk (or chunk part).
type Replica struct {
	Address string
	// PartIndex identifies which erasure part this replica holds; 0 for
	// non-erasure chunks.
	PartIndex int
}

// Chunk is an immutable reference to a stored data object.
type Chunk struct {
	id ID

	uncompressedSize int64
	compressedSize   int64
	dataWeight       int64
	rowCount         int64

	// minKey/maxKey are the chunk's own boundary keys; nil if the chunk is
	// unsorted (e.g. a map-operation input with no key range).
	minKey, maxKey Key

	replicas  []Replica
	tableIndex int
	codec     Codec
	partCount int
}

// NewChunk constructs an immutable Chunk. partCount should be 1 for
// non-erasure chunks.
func NewChunk(id ID, uncompressedSize, compressedSize, dataWeight, rowCount int64, minKey, maxKey Key, replicas []Replica, tableIndex int, codec Codec, partCount int) *Chunk {
	if partCount < 1 {
		partCount = 1
	}
	c := &Chunk{
		id:               id,
		uncompressedSize: uncompressedSize,
		compressedSize:   compressedSize,
		dataWeight:       dataWeight,
		rowCount:         rowCount,
		tableIndex:       tableIndex,
		codec:            codec,
		partCount:        partCount,
	}
	c.minKey = append(Key(nil), minKey...)
	c.maxKey = append(Key(nil), maxKey...)
	c.replicas = append([]Replica(nil), replicas...)
	return c
}

func (c *Chunk) ID() ID                    { return c.id }
func (c *Chunk) UncompressedSize() int64    { return c.uncompressedSize }
func (c *Chunk) CompressedSize() int64      { return c.compressedSize }
func (c *Chunk) DataWeight() int64          { return c.dataWeight }
func (c *Chunk) RowCount() int64            { return c.rowCount }
func (c *Chunk) MinKey() Key                { return c.minKey }
func (c *Chunk) MaxKey() Key                { return c.maxKey }
func (c *Chunk) HasBoundaryKeys() bool      { return len(c.minKey) > 0 || len(c.maxKey) > 0 }
func (c *Chunk) Replicas() []Replica        { return c.replicas }
func (c *Chunk) TableIndex() int            { return c.tableIndex }
func (c *Chunk) Codec() Codec               { return c.codec }
func (c *Chunk) PartCount() int             { return c.partCount }
func (c *Chunk) IsErasure() bool            { return c.codec == CodecErasure }

func (c *Chunk) String() string {
	return fmt.Sprintf("Chunk{%s rows=%d weight=%d}", c.id, c.rowCount, c.dataWeight)
}

// LocalityFor sums the chunk's data weight once per replica address
// matching addr (spec §4.1 "GetLocality(address)"); a chunk with two
// replicas on the same address contributes twice, matching the source's
// per-replica accounting rather than a per-chunk boolean.
func (c *Chunk) LocalityFor(addr string) int64 {
	var score int64
	for _, r := range c.replicas {
		if r.Address == addr {
			score += c.dataWeight
		}
	}
	return score
}
