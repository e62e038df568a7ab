// Package outputorder preserves a stable user-visible commit order across
// teleported chunks and completed-job outputs, even though job completions
// (and later follow-up tasks created by interruption) arrive out of order
// (spec §4.6).
//
// Grounded on original_source/yt/server/chunk_pools/output_order.h: the
// original's TOutputOrder keeps a flat Pool_ vector plus a parallel
// NextPosition_ index array forming an intrusive singly linked list, with
// CookieToPosition_/TeleportChunkToPosition_ maps for SeekCookie. This is a
// direct port of that model — array indices rather than pointer chains, so
// the whole structure relocates cleanly under persistence (spec §9).
package outputorder

import (
	"fmt"

	"github.com/dataplane-sh/chunkctl/chunk"
	"github.com/dataplane-sh/chunkctl/internal/coreerr"
	"github.com/dataplane-sh/chunkctl/pool"
	"github.com/google/uuid"
)

// ChunkTreeID identifies a committed chunk tree on the master; this core
// treats it as an opaque 128-bit id, same convention as chunk.ID.
type ChunkTreeID = uuid.UUID

// EntryKind distinguishes the two kinds of output-order entry.
type EntryKind int

const (
	EntryCookie EntryKind = iota
	EntryTeleport
)

// Entry is one position's content: either a completed job's output cookie
// or a teleported chunk's id. Entry is comparable, so it can key a map
// directly (spec's `map<entry, chunkTreeId>` for ArrangeOutputChunkTrees).
type Entry struct {
	kind          EntryKind
	cookie        pool.Cookie
	teleportChunk chunk.ID
}

// CookieEntry wraps a completed job's output cookie.
func CookieEntry(c pool.Cookie) Entry { return Entry{kind: EntryCookie, cookie: c} }

// TeleportEntry wraps a teleported chunk's id.
func TeleportEntry(id chunk.ID) Entry { return Entry{kind: EntryTeleport, teleportChunk: id} }

func (e Entry) IsCookie() bool          { return e.kind == EntryCookie }
func (e Entry) IsTeleportChunk() bool   { return e.kind == EntryTeleport }
func (e Entry) Cookie() pool.Cookie     { return e.cookie }
func (e Entry) TeleportChunk() chunk.ID { return e.teleportChunk }

func (e Entry) String() string {
	if e.IsTeleportChunk() {
		return fmt.Sprintf("Teleport(%s)", e.teleportChunk)
	}
	return fmt.Sprintf("Cookie(%s)", e.cookie)
}

// Order is the intrusive-list output order structure itself.
type Order struct {
	pool         []Entry
	nextPosition []int
	head         int

	cookieIndex   map[pool.Cookie]int
	teleportIndex map[chunk.ID]int

	currentPosition int
}

// New constructs an empty Order.
func New() *Order {
	return &Order{
		head:            -1,
		currentPosition: -1,
		cookieIndex:     make(map[pool.Cookie]int),
		teleportIndex:   make(map[chunk.ID]int),
	}
}

// Len returns the number of entries ever pushed.
func (o *Order) Len() int { return len(o.pool) }

// SeekCookie moves the insertion cursor to the position already holding
// cookie, so a subsequent Push splices in right after it — used when a
// follow-up task (e.g. from job interruption) must be inserted immediately
// after the task it continues.
func (o *Order) SeekCookie(c pool.Cookie) error {
	pos, ok := o.cookieIndex[c]
	if !ok {
		return coreerr.NewInvariantError("output order seek", "cookie not registered in output order")
	}
	o.currentPosition = pos
	return nil
}

// SeekTeleportChunk moves the insertion cursor to the position holding the
// given teleported chunk.
func (o *Order) SeekTeleportChunk(id chunk.ID) error {
	pos, ok := o.teleportIndex[id]
	if !ok {
		return coreerr.NewInvariantError("output order seek", "teleport chunk not registered in output order")
	}
	o.currentPosition = pos
	return nil
}

// Push splices entry in immediately after the current cursor position
// (or at the head, if the cursor has never been set), registers its index,
// and advances the cursor to the new position.
func (o *Order) Push(entry Entry) {
	position := len(o.pool)

	var next int
	if o.currentPosition < 0 {
		next = o.head
	} else {
		next = o.nextPosition[o.currentPosition]
	}

	o.pool = append(o.pool, entry)
	o.nextPosition = append(o.nextPosition, next)

	if o.currentPosition < 0 {
		o.head = position
	} else {
		o.nextPosition[o.currentPosition] = position
	}
	o.currentPosition = position

	if entry.IsCookie() {
		o.cookieIndex[entry.cookie] = position
	} else {
		o.teleportIndex[entry.teleportChunk] = position
	}
}

// ArrangeOutputChunkTrees walks the intrusive list from head, looking up
// each entry's committed chunk tree id in chunkTrees, and returns them in
// list order. It is an error for any walked entry to be missing from
// chunkTrees, or for the walk to revisit a position (a corrupted list) or
// yield fewer entries than were ever pushed (spec §4.6 invariant).
func (o *Order) ArrangeOutputChunkTrees(chunkTrees map[Entry]ChunkTreeID) ([]ChunkTreeID, error) {
	out := make([]ChunkTreeID, 0, len(o.pool))
	seen := make(map[int]bool, len(o.pool))

	for pos := o.head; pos >= 0; pos = o.nextPosition[pos] {
		if seen[pos] {
			return nil, coreerr.NewInvariantError("output order cycle", "walk revisited a position")
		}
		seen[pos] = true

		entry := o.pool[pos]
		id, ok := chunkTrees[entry]
		if !ok {
			return nil, coreerr.NewInvariantError("output order missing chunk tree", fmt.Sprintf("no chunk tree registered for %s", entry))
		}
		out = append(out, id)
	}

	if len(out) != len(o.pool) {
		return nil, coreerr.NewInvariantError("output order incomplete", "walk did not yield every registered entry")
	}
	return out, nil
}

// ToEntryVector returns a defensive copy of every entry in list order, for
// debugging and tests.
func (o *Order) ToEntryVector() []Entry {
	out := make([]Entry, 0, len(o.pool))
	for pos := o.head; pos >= 0; pos = o.nextPosition[pos] {
		out = append(out, o.pool[pos])
	}
	return out
}
