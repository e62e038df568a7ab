// Command chunkctl-demo wires the in-memory chunk-pool/task-scheduler core
// end to end: build a handful of synthetic chunks, run each pool variant
// over them, and print the resulting commit order. It exists only to
// ground the "CLI entry points" ambient concern spec §1 places out of
// scope for the core itself (spec.md §1 "Out of scope ... CLI entry
// points"); it has no bearing on the core's own correctness.
//
// Grounded on the cmd/ layout convention of Sumatoshi-tech-codefang's
// cmd/uast/main.go (flat per-command cobra.Command constructors registered
// on one root command).
package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dataplane-sh/chunkctl/chunk"
	"github.com/dataplane-sh/chunkctl/pool"
	"github.com/dataplane-sh/chunkctl/sortedjob"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "chunkctl-demo",
		Short: "Demonstrates the chunk-pool and task-scheduling core",
		Long:  "chunkctl-demo wires together the atomic, unordered, shuffle, and sorted-merge pool variants over synthetic in-memory chunks and prints the resulting job plan.",
	}

	rootCmd.AddCommand(atomicCmd())
	rootCmd.AddCommand(unorderedCmd())
	rootCmd.AddCommand(shuffleCmd())
	rootCmd.AddCommand(sortedCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func syntheticChunk(weight int64, replicas ...string) *chunk.Chunk {
	var reps []chunk.Replica
	for _, r := range replicas {
		reps = append(reps, chunk.Replica{Address: r})
	}
	return chunk.NewChunk(uuid.New(), weight, weight, weight, weight/10+1, nil, nil, reps, 0, chunk.CodecNone, 1)
}

func atomicCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "atomic",
		Short: "Run the atomic (single-job) chunk pool over three synthetic chunks",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := pool.NewAtomic()
			var total int64
			for i := 0; i < 3; i++ {
				c := syntheticChunk(int64(1000*(i+1)), "node-a")
				total += c.DataWeight()
				if _, err := p.Add(chunk.NewStripe(chunk.NewSlice(c))); err != nil {
					return err
				}
			}
			p.Finish()

			cookie := p.Extract("node-a")
			list := p.GetStripeList(cookie)
			fmt.Fprintf(cmd.OutOrStdout(), "atomic pool: 1 job, %s across %d chunks, locality=%s\n",
				humanize.Bytes(uint64(total)), list.TotalChunkCount(), humanize.Bytes(uint64(p.GetLocality("node-a"))))
			return p.Completed(cookie)
		},
	}
}

func unorderedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unordered",
		Short: "Partition eight synthetic chunks into four balanced jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := pool.NewUnordered(4)
			for i := 0; i < 8; i++ {
				c := syntheticChunk(500, "node-a")
				if _, err := p.Add(chunk.NewStripe(chunk.NewSlice(c))); err != nil {
					return err
				}
			}
			p.Finish()

			for p.GetPendingJobCount() > 0 {
				cookie := p.Extract("node-a")
				list := p.GetStripeList(cookie)
				fmt.Fprintf(cmd.OutOrStdout(), "unordered job %s: %s, %d chunks\n",
					cookie, humanize.Bytes(uint64(list.TotalDataWeight())), list.TotalChunkCount())
				if err := p.Completed(cookie); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func shuffleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shuffle",
		Short: "Run the shuffle pool's per-partition run packaging over three chunks",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := pool.NewShuffle(2, 1000)
			weights := [][2]int64{{600, 900}, {500, 300}, {400, 400}}
			for _, w := range weights {
				c := syntheticChunk(w[0] + w[1])
				slice := chunk.NewSlice(c)
				if _, err := s.AddWithPartitionWeights(chunk.NewStripe(slice), []int64{w[0], w[1]}, []int64{1, 1}); err != nil {
					return err
				}
			}
			s.Finish()

			for part := 0; part < 2; part++ {
				for {
					cookie := s.ExtractPartition(part)
					if cookie.IsNull() {
						break
					}
					list := s.GetStripeList(cookie)
					fmt.Fprintf(cmd.OutOrStdout(), "shuffle partition %d run %s: %s\n", part, cookie, humanize.Bytes(uint64(list.TotalDataWeight())))
					if err := s.Completed(cookie); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
}

func sortedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sorted",
		Short: "Run the sorted job builder's teleport detection over two chunks",
		RunE: func(cmd *cobra.Command, args []string) error {
			streams := chunk.NewInputStreamDirectory(chunk.StreamInfo{IsPrimary: true, IsTeleportable: true})
			b := sortedjob.NewBuilder(sortedjob.Options{
				ReduceKeyPrefixLength: 1,
				TeleportEnabled:       true,
			}, chunk.DefaultComparator, streams)

			teleportChunk := chunk.NewChunk(uuid.New(), 1000, 1000, 1000, 100, chunk.Key{1}, chunk.Key{5}, nil, 0, chunk.CodecNone, 1)
			b.AddPrimarySlice(chunk.NewSlice(teleportChunk))

			mergeChunk := chunk.NewChunk(uuid.New(), 1000, 1000, 1000, 100, chunk.Key{6}, chunk.Key{9}, nil, 0, chunk.CodecNone, 1)
			b.AddPrimarySlice(chunk.NewSlice(mergeChunk))

			result, err := b.Build()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sorted builder: %d teleport chunk(s), %d merge task(s)\n", len(result.TeleportChunkIDs), len(result.Tasks))
			for _, entry := range result.Output {
				switch entry.Kind {
				case sortedjob.OutputTeleport:
					fmt.Fprintf(cmd.OutOrStdout(), "  output: teleport %s\n", entry.ChunkID)
				case sortedjob.OutputTask:
					fmt.Fprintf(cmd.OutOrStdout(), "  output: task #%d\n", entry.TaskIndex)
				}
			}
			return nil
		},
	}
}
