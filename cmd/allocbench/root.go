// Command allocbench drives a segalloc engine with randomized or scripted
// workloads and reports utilization, replacing the teacher's bare
// goroutine-pool main.go with a cobra-based CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	verbose     bool
	maxHeapSize uint64
)

var rootCmd = &cobra.Command{
	Use:   "allocbench",
	Short: "Drive and verify a segalloc engine",
	Long: `allocbench exercises a segregated-fit boundary-tag allocator
with randomized stress workloads, named scenario replays, and scripted
operation checks, reporting utilization and heap-consistency results.`,
	Version: "0.1.0",
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose engine logging (used by run)")
	rootCmd.PersistentFlags().Uint64Var(&maxHeapSize, "max-heap", 0, "cap total arena growth in bytes (0 = unbounded)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
