package controller

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/dataplane-sh/chunkctl/chunk"
	"github.com/dataplane-sh/chunkctl/internal/coreerr"
	"github.com/dataplane-sh/chunkctl/outputorder"
	"github.com/dataplane-sh/chunkctl/progress"
)

// Tag discriminates the entity kind of one checkpoint record, per spec §6's
// "tag := entity-kind discriminator".
type Tag uint32

const (
	TagProgressCounter Tag = iota + 1
	TagOutputOrderTeleportChunk
)

// writeRecord writes one `tag(u32) length(u32) payload` record per spec §6.
func writeRecord(w io.Writer, tag Tag, payload []byte) error {
	var header [8]byte
	binary.LittleEndian.PutUint32(header[0:4], uint32(tag))
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return coreerr.WrapError("checkpoint write header", err)
	}
	if _, err := w.Write(payload); err != nil {
		return coreerr.WrapError("checkpoint write payload", err)
	}
	return nil
}

// readRecord reads one record, returning io.EOF (unwrapped) when the
// stream is cleanly exhausted between records.
func readRecord(r io.Reader) (Tag, []byte, error) {
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return 0, nil, io.EOF
		}
		return 0, nil, coreerr.WrapError("checkpoint read header", err)
	}
	tag := Tag(binary.LittleEndian.Uint32(header[0:4]))
	length := binary.LittleEndian.Uint32(header[4:8])
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, coreerr.WrapError("checkpoint read payload", err)
	}
	return tag, payload, nil
}

// countersPayloadOrder is the declared field order for a serialized
// progress.Counter, matching spec §6 "Counters serialize all seven
// buckets" (plus the eighth "suspended" side-counter from spec §3).
var countersPayloadOrder = []func(*progress.Counter) int64{
	(*progress.Counter).Total,
	(*progress.Counter).Pending,
	(*progress.Counter).Running,
	(*progress.Counter).Completed,
	(*progress.Counter).Failed,
	(*progress.Counter).Aborted,
	(*progress.Counter).Lost,
	(*progress.Counter).Suspended,
}

// WriteCounter serializes c as one TagProgressCounter record.
func WriteCounter(w io.Writer, c *progress.Counter) error {
	var buf bytes.Buffer
	for _, field := range countersPayloadOrder {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(field(c)))
		buf.Write(b[:])
	}
	return writeRecord(w, TagProgressCounter, buf.Bytes())
}

// ReadCounter reads one TagProgressCounter record and reconstructs an
// equivalent Counter via Restore, matching "deserialize(serialize(s)) = s"
// (spec §8 round-trip law).
func ReadCounter(r io.Reader) (*progress.Counter, error) {
	tag, payload, err := readRecord(r)
	if err != nil {
		return nil, err
	}
	if tag != TagProgressCounter {
		return nil, coreerr.NewInvariantError("checkpoint", fmt.Sprintf("expected TagProgressCounter, got %d", tag))
	}
	if len(payload) != 8*len(countersPayloadOrder) {
		return nil, coreerr.NewInvariantError("checkpoint", "progress counter payload has wrong length")
	}
	vals := make([]int64, len(countersPayloadOrder))
	for i := range vals {
		vals[i] = int64(binary.LittleEndian.Uint64(payload[i*8 : i*8+8]))
	}

	c := &progress.Counter{}
	c.Restore(vals[0], vals[1], vals[2], vals[3], vals[4], vals[5], vals[6], vals[7])
	return c, nil
}

// WriteOutputOrderTeleports serializes only the teleported-chunk entries of
// order, in list position order, as one TagOutputOrderTeleportChunk record
// per teleport. Completed-job cookie entries are deliberately not persisted
// here: pool.Cookie wraps an internal/arena.Handle, a process-local slot
// index that has no meaning after a process restart revives the pools
// themselves from scratch (each pool's own revival reissues fresh cookies
// for its still-pending work). A teleport chunk id, by contrast, is the
// master's own durable chunk id and survives a checkpoint/revival cycle
// unchanged, so it is the one output-order entry kind worth persisting
// directly; reconstructing the interleaving with not-yet-completed cookie
// positions is the revived pools' job, not the checkpoint's.
func WriteOutputOrderTeleports(w io.Writer, order *outputorder.Order) error {
	for _, entry := range order.ToEntryVector() {
		if !entry.IsTeleportChunk() {
			continue
		}
		id := entry.TeleportChunk()
		if err := writeRecord(w, TagOutputOrderTeleportChunk, id[:]); err != nil {
			return err
		}
	}
	return nil
}

// ReadOutputOrderTeleports reads every TagOutputOrderTeleportChunk record
// until EOF, returning the teleported chunk ids in their original order.
func ReadOutputOrderTeleports(r io.Reader) ([]chunk.ID, error) {
	var out []chunk.ID
	for {
		tag, payload, err := readRecord(r)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if tag != TagOutputOrderTeleportChunk {
			return nil, coreerr.NewInvariantError("checkpoint", fmt.Sprintf("expected TagOutputOrderTeleportChunk, got %d", tag))
		}
		if len(payload) != 16 {
			return nil, coreerr.NewInvariantError("checkpoint", "teleport chunk payload must be 16 bytes")
		}
		var id chunk.ID
		copy(id[:], payload)
		out = append(out, id)
	}
}
