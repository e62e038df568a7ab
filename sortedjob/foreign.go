package sortedjob

import "github.com/dataplane-sh/chunkctl/chunk"

func (b *Builder) foreignPrefix(k chunk.Key) chunk.Key {
	n := b.options.ForeignKeyPrefixLength
	if n <= 0 || n >= len(k) {
		return k
	}
	return k[:n]
}

// broadcastForeign implements spec §4.5 step 6: once primary task
// boundaries are known, every foreign slice intersecting a task's
// [minForeignKey, maxForeignKey) range (at the foreign-key prefix length F)
// is clipped to that range and attached as a foreign stripe on the task.
func (b *Builder) broadcastForeign(result *Result) {
	if len(b.foreign) == 0 {
		return
	}
	for _, task := range result.Tasks {
		lower := b.foreignPrefix(task.MinKey)
		upper := b.foreignPrefix(task.MaxKey)

		var clipped []*chunk.Slice
		for _, fs := range b.foreign {
			fLower := b.foreignPrefix(fs.MinKey())
			fUpper := b.foreignPrefix(fs.MaxKey())
			if b.cmp.Compare(fLower, upper) > 0 || b.cmp.Compare(fUpper, lower) < 0 {
				continue
			}
			clipped = append(clipped, chunk.ClipToKeyRange(fs, b.cmp, lower, upper))
		}
		if len(clipped) == 0 {
			continue
		}
		stripe := chunk.NewStripe(clipped...)
		stripe.Primary = false
		stripe.Foreign = true
		task.Stripes = append(task.Stripes, stripe)
	}
}

// splitOversizedTasks implements spec §4.5 step 7: a task whose accumulated
// primary weight exceeds 2x the target job weight is split by breakpoints
// derived from its foreign slices' upper bounds, using chunk.SplitByKey on
// each primary slice. Maniac tasks are exempt — they are never split.
func (b *Builder) splitOversizedTasks(result *Result) {
	target := b.options.MaxDataWeightPerJob
	if target <= 0 {
		return
	}

	var rebuilt []*Task
	indexRemap := make(map[int]int, len(result.Tasks))

	for i, task := range result.Tasks {
		if task.IsManiac || task.PrimaryDataWeight <= 2*target {
			indexRemap[i] = len(rebuilt)
			rebuilt = append(rebuilt, task)
			continue
		}

		breakpoints := foreignBreakpoints(task, b.cmp)
		if len(breakpoints) == 0 {
			indexRemap[i] = len(rebuilt)
			rebuilt = append(rebuilt, task)
			continue
		}

		primary := task.Stripes[0]
		var foreignStripes []*chunk.Stripe
		if len(task.Stripes) > 1 {
			foreignStripes = task.Stripes[1:]
		}

		pieces := make([][]*chunk.Slice, len(breakpoints)+1)
		for _, s := range primary.Slices {
			for _, piece := range chunk.SplitByKey(s, b.cmp, breakpoints) {
				idx := bucketFor(piece, breakpoints, b.cmp)
				pieces[idx] = append(pieces[idx], piece)
			}
		}

		firstNewIndex := len(rebuilt)
		for _, pieceSlices := range pieces {
			if len(pieceSlices) == 0 {
				continue
			}
			stripe := chunk.NewStripe(pieceSlices...)
			sub := &Task{
				Stripes:           append([]*chunk.Stripe{stripe}, foreignStripes...),
				PrimaryDataWeight: stripe.DataWeight(),
				MinKey:            pieceSlices[0].MinKey(),
				MaxKey:            pieceSlices[len(pieceSlices)-1].MaxKey(),
			}
			rebuilt = append(rebuilt, sub)
		}
		indexRemap[i] = firstNewIndex
	}

	for i := range result.Output {
		if result.Output[i].Kind == OutputTask {
			result.Output[i].TaskIndex = indexRemap[result.Output[i].TaskIndex]
		}
	}
	result.Tasks = rebuilt
}

func foreignBreakpoints(task *Task, cmp chunk.Comparator) []chunk.Key {
	if len(task.Stripes) < 2 {
		return nil
	}
	var keys []chunk.Key
	for _, stripe := range task.Stripes[1:] {
		for _, s := range stripe.Slices {
			keys = append(keys, s.MaxKey())
		}
	}
	sortKeys(keys, cmp)
	return dedupKeys(keys, cmp)
}

func bucketFor(piece *chunk.Slice, breakpoints []chunk.Key, cmp chunk.Comparator) int {
	for i, bp := range breakpoints {
		if cmp.Compare(piece.MinKey(), bp) < 0 {
			return i
		}
	}
	return len(breakpoints)
}

func sortKeys(keys []chunk.Key, cmp chunk.Comparator) {
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && cmp.Compare(keys[j-1], keys[j]) > 0; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
}

func dedupKeys(keys []chunk.Key, cmp chunk.Comparator) []chunk.Key {
	var out []chunk.Key
	for _, k := range keys {
		if len(out) > 0 && cmp.Compare(out[len(out)-1], k) == 0 {
			continue
		}
		out = append(out, k)
	}
	return out
}
