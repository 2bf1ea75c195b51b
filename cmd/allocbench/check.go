package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shenjiangwei/segalloc/salloc"
)

func init() {
	cmd := &cobra.Command{
		Use:   "check <script>",
		Short: "Replay a scripted operation sequence and run the heap checker after each step",
		Long: `check reads a newline-delimited script of operations, one per line:

  alloc <size>          allocate size bytes, remembering the result as a slot
  free <slot>           free the block stored in slot
  realloc <slot> <size> reallocate the block in slot to size bytes

Slots are integers assigned in the order alloc lines appear, starting
at 0; realloc stores its result back into the slot it names. The heap checker runs after every line; the first
violation aborts with a non-zero exit status.`,
		Args: cobra.ExactArgs(1),
		RunE: runCheck,
	}
	rootCmd.AddCommand(cmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open script: %w", err)
	}
	defer f.Close()

	cfg := salloc.DefaultConfig()
	cfg.MaxHeapSize = maxHeapSize
	engine, err := salloc.NewEngine(cfg)
	if err != nil {
		return err
	}

	var slots []salloc.Offset
	lineNo := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)

		switch fields[0] {
		case "alloc":
			size, err := strconv.ParseUint(fields[1], 10, 64)
			if err != nil {
				return fmt.Errorf("line %d: %w", lineNo, err)
			}
			off, err := engine.Allocate(size)
			if err != nil {
				return fmt.Errorf("line %d: allocate: %w", lineNo, err)
			}
			slots = append(slots, off)
		case "free":
			slot, err := strconv.Atoi(fields[1])
			if err != nil {
				return fmt.Errorf("line %d: %w", lineNo, err)
			}
			engine.Free(slots[slot])
		case "realloc":
			slot, err := strconv.Atoi(fields[1])
			if err != nil {
				return fmt.Errorf("line %d: %w", lineNo, err)
			}
			size, err := strconv.ParseUint(fields[2], 10, 64)
			if err != nil {
				return fmt.Errorf("line %d: %w", lineNo, err)
			}
			off, err := engine.Reallocate(slots[slot], size)
			if err != nil {
				return fmt.Errorf("line %d: reallocate: %w", lineNo, err)
			}
			slots[slot] = off
		default:
			return fmt.Errorf("line %d: unknown op %q", lineNo, fields[0])
		}

		if err := engine.CheckHeap(); err != nil {
			return fmt.Errorf("line %d: heap check failed: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read script: %w", err)
	}

	fmt.Printf("checked %d lines, heap consistent\n", lineNo)
	return nil
}
