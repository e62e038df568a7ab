package sortedjob

import "github.com/dataplane-sh/chunkctl/chunk"

// detectTeleports implements spec §4.5 step 3: a single pass over the
// sorted endpoints, tracking one open candidate chunk at a time. A
// candidate is any whole-chunk slice (chunk.Slice.IsWholeChunk) on a
// teleport-eligible input stream, entered at its own chunk's natural lower
// boundary. It survives until either it closes at its chunk's natural upper
// boundary with nothing else open (or only same-key slices open), in which
// case it teleports, or a different chunk opens beside it without an
// equal-key tie, in which case it's abandoned.
func (b *Builder) detectTeleports(eps []endpoint) map[chunk.ID]bool {
	teleportable := make(map[chunk.ID]bool)

	var candidate *endpoint
	openCount := 0
	var lastOpenKey chunk.Key
	haveLastOpenKey := false

	for idx := range eps {
		e := &eps[idx]
		info := b.streams.Get(e.slice.InputStreamIndex)

		switch e.kind {
		case endpointLeft:
			openCount++
			lastOpenKey = e.key
			haveLastOpenKey = true

			if candidate == nil {
				if info.IsTeleportable && e.slice.IsWholeChunk(b.cmp) {
					candidate = e
				}
				continue
			}
			if e.slice.Chunk().ID() == candidate.slice.Chunk().ID() {
				continue
			}

			sameKey := b.cmp.Compare(e.key, candidate.key) == 0
			maniac := b.cmp.Compare(b.prefix(candidate.slice.MinKey()), b.prefix(candidate.slice.MaxKey())) == 0
			if sameKey || maniac {
				continue
			}
			// A different chunk opened beside the candidate with no tie:
			// abandon it, and this new slice may itself become a candidate.
			candidate = nil
			if info.IsTeleportable && e.slice.IsWholeChunk(b.cmp) {
				candidate = e
			}

		case endpointRight:
			openCount--
			if candidate == nil || e.slice.Chunk().ID() != candidate.slice.Chunk().ID() {
				continue
			}
			atBoundary := b.cmp.Compare(e.key, b.prefix(candidate.slice.Chunk().MaxKey())) == 0
			othersClear := openCount == 0 || (haveLastOpenKey && b.cmp.Compare(e.key, lastOpenKey) == 0)
			if atBoundary && othersClear {
				teleportable[candidate.slice.Chunk().ID()] = true
			}
			candidate = nil
		}
	}

	return teleportable
}
