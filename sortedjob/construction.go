package sortedjob

import (
	"sort"

	"github.com/dataplane-sh/chunkctl/chunk"
)

// keyGroup buckets primary slices that open at the same reduce-key prefix.
// This implementation buckets by each slice's lower key bound rather than
// running the full sweep-line interval algebra the original staging area
// uses for arbitrarily overlapping ranges — sufficient for the common case
// this builder actually sees (disjoint chunk ranges plus equal-key maniac
// islands), and the one simplification flagged in DESIGN.md: a primary
// slice whose range truly straddles several *other* chunks' distinct keys
// is treated as a single indivisible unit rather than sliced mid-range at
// every group boundary it crosses.
type keyGroup struct {
	key    chunk.Key
	slices []*chunk.Slice
}

func groupByKey(slices []*chunk.Slice, cmp chunk.Comparator, prefix func(chunk.Key) chunk.Key) []keyGroup {
	ordered := append([]*chunk.Slice(nil), slices...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return cmp.Compare(prefix(ordered[i].MinKey()), prefix(ordered[j].MinKey())) < 0
	})

	var groups []keyGroup
	for _, s := range ordered {
		k := prefix(s.MinKey())
		if len(groups) > 0 && cmp.Compare(groups[len(groups)-1].key, k) == 0 {
			groups[len(groups)-1].slices = append(groups[len(groups)-1].slices, s)
			continue
		}
		groups = append(groups, keyGroup{key: k, slices: []*chunk.Slice{s}})
	}
	return groups
}

// isManiac reports whether a slice is fully contained within one reduce-key
// group, i.e. its lower and upper bounds share the same prefix (spec §4.5
// step 4: "a slice fully contained within one reduce-key group").
func isManiac(s *chunk.Slice, cmp chunk.Comparator, prefix func(chunk.Key) chunk.Key) bool {
	return cmp.Compare(prefix(s.MinKey()), prefix(s.MaxKey())) == 0
}

// buildTasks implements spec §4.5 steps 4-5: the job construction sweep,
// maniac collection, and teleport emission, operating on the reduce-key
// groups that groupByKey derives from the primary slices' lower keys.
func (b *Builder) buildTasks(teleportable map[chunk.ID]bool) *Result {
	result := &Result{}

	groups := groupByKey(b.primary, b.cmp, b.prefix)

	var curSlices []*chunk.Slice
	var curWeight int64
	var curCount int

	flush := func() {
		if len(curSlices) == 0 {
			return
		}
		stripe := chunk.NewStripe(curSlices...)
		task := &Task{
			Stripes:           []*chunk.Stripe{stripe},
			PrimaryDataWeight: stripe.DataWeight(),
			MinKey:            curSlices[0].MinKey(),
			MaxKey:            curSlices[len(curSlices)-1].MaxKey(),
		}
		result.Tasks = append(result.Tasks, task)
		result.Output = append(result.Output, OutputEntry{Kind: OutputTask, TaskIndex: len(result.Tasks) - 1})
		curSlices = nil
		curWeight = 0
		curCount = 0
	}

	for _, g := range groups {
		var remaining []*chunk.Slice
		for _, s := range g.slices {
			if teleportable != nil && teleportable[s.Chunk().ID()] {
				flush()
				result.TeleportChunkIDs = append(result.TeleportChunkIDs, s.Chunk().ID())
				result.Output = append(result.Output, OutputEntry{Kind: OutputTeleport, ChunkID: s.Chunk().ID()})
				continue
			}
			remaining = append(remaining, s)
		}
		if len(remaining) == 0 {
			continue
		}

		// A group with more than one slice sharing the same reduce key,
		// all individually maniac, collapses into one unordered-merge task
		// regardless of budget — it is never split (spec §4.5 step 5).
		if len(remaining) > 1 && allManiac(remaining, b.cmp, b.prefix) {
			flush()
			stripe := chunk.NewStripe(remaining...)
			task := &Task{
				Stripes:           []*chunk.Stripe{stripe},
				IsManiac:          true,
				PrimaryDataWeight: stripe.DataWeight(),
				MinKey:            g.key,
				MaxKey:            g.key,
			}
			result.Tasks = append(result.Tasks, task)
			result.Output = append(result.Output, OutputEntry{Kind: OutputTask, TaskIndex: len(result.Tasks) - 1})
			continue
		}

		groupWeight := sumWeight(remaining)
		if curCount > 0 && exceedsBudget(b.options, curWeight, curCount, groupWeight, len(remaining)) {
			flush()
		}
		curSlices = append(curSlices, remaining...)
		curWeight += groupWeight
		curCount += len(remaining)
	}
	flush()

	return result
}

func allManiac(slices []*chunk.Slice, cmp chunk.Comparator, prefix func(chunk.Key) chunk.Key) bool {
	for _, s := range slices {
		if !isManiac(s, cmp, prefix) {
			return false
		}
	}
	k := prefix(slices[0].MinKey())
	for _, s := range slices[1:] {
		if cmp.Compare(k, prefix(s.MinKey())) != 0 {
			return false
		}
	}
	return true
}

func sumWeight(slices []*chunk.Slice) int64 {
	var total int64
	for _, s := range slices {
		total += s.DataWeight()
	}
	return total
}

func exceedsBudget(opts Options, curWeight int64, curCount int, addWeight int64, addCount int) bool {
	if opts.MaxDataWeightPerJob > 0 && curWeight+addWeight > opts.MaxDataWeightPerJob {
		return true
	}
	if opts.MaxDataSlicesPerJob > 0 && curCount+addCount > opts.MaxDataSlicesPerJob {
		return true
	}
	return false
}
