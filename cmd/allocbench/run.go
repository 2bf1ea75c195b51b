package main

import (
	"fmt"
	"math/rand"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shenjiangwei/segalloc/salloc"
)

var (
	runOps      int
	runMinSize  uint64
	runMaxSize  uint64
	runSeed     int64
	runCheckAll bool
)

func init() {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a randomized allocate/free/reallocate workload",
		Long: `run drives allocate, free, and reallocate calls against a fresh
engine in proportions similar to a realistic workload (roughly 50% allocate,
35% free, 15% reallocate), then reports peak and final utilization.

Example:
  allocbench run --ops 100000 --min-size 16 --max-size 4096`,
		RunE: runRun,
	}
	cmd.Flags().IntVar(&runOps, "ops", 100000, "number of operations to perform")
	cmd.Flags().Uint64Var(&runMinSize, "min-size", 1, "minimum request size in bytes")
	cmd.Flags().Uint64Var(&runMaxSize, "max-size", 4096, "maximum request size in bytes")
	cmd.Flags().Int64Var(&runSeed, "seed", 1, "random seed")
	cmd.Flags().BoolVar(&runCheckAll, "check-all", false, "run the heap checker after every operation")
	rootCmd.AddCommand(cmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	logger := zap.NewNop().Sugar()
	if verbose {
		dev, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		logger = dev.Sugar()
	}

	cfg := salloc.DefaultConfig()
	cfg.MaxHeapSize = maxHeapSize
	engine, err := salloc.NewEngine(cfg, salloc.WithLogger(logger))
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(runSeed))
	live := make([]salloc.Offset, 0, runOps)

	for i := 0; i < runOps; i++ {
		roll := rng.Float64()
		switch {
		case roll < 0.50 || len(live) == 0:
			size := randSize(rng, runMinSize, runMaxSize)
			off, err := engine.Allocate(size)
			if err != nil {
				fmt.Printf("allocate failed at op %d: %v\n", i, err)
				continue
			}
			if off != salloc.NoPtr {
				live = append(live, off)
			}
		case roll < 0.85:
			idx := rng.Intn(len(live))
			engine.Free(live[idx])
			live[idx] = live[len(live)-1]
			live = live[:len(live)-1]
		default:
			idx := rng.Intn(len(live))
			size := randSize(rng, runMinSize, runMaxSize)
			off, err := engine.Reallocate(live[idx], size)
			if err != nil {
				fmt.Printf("reallocate failed at op %d: %v\n", i, err)
				continue
			}
			live[idx] = off
		}

		if runCheckAll {
			if err := engine.CheckHeap(); err != nil {
				return fmt.Errorf("heap corrupted after op %d: %w", i, err)
			}
		}
	}

	if err := engine.CheckHeap(); err != nil {
		return fmt.Errorf("final heap check failed: %w", err)
	}

	snap := engine.Stats()
	fmt.Printf("operations: %d\n", runOps)
	fmt.Printf("mallocs=%d frees=%d reallocs=%d\n", snap.Mallocs, snap.Frees, snap.Reallocs)
	fmt.Printf("live bytes: %s\n", humanize.Bytes(snap.LiveBytes))
	fmt.Printf("peak live bytes: %s\n", humanize.Bytes(snap.PeakLiveBytes))
	fmt.Printf("heap extended: %d times, %s total\n", snap.Extends, humanize.Bytes(snap.BytesExtended))
	fmt.Printf("fragmentation: %.2f%%\n", snap.Fragmentation(snap.BytesExtended)*100)
	return nil
}

func randSize(rng *rand.Rand, min, max uint64) uint64 {
	if max <= min {
		return min
	}
	return min + uint64(rng.Int63n(int64(max-min+1)))
}
