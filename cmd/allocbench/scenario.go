package main

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shenjiangwei/segalloc/salloc"
)

func init() {
	cmd := &cobra.Command{
		Use:       "scenario <name>",
		Short:     "Replay one of the named scenarios S1-S6 and report pass/fail",
		ValidArgs: []string{"S1", "S2", "S3", "S4", "S5", "S6"},
		Args:      cobra.ExactValidArgs(1),
		RunE:      runScenario,
	}
	rootCmd.AddCommand(cmd)
}

var scenarios = map[string]func(*salloc.Engine) error{
	"S1": scenarioS1,
	"S2": scenarioS2,
	"S3": scenarioS3,
	"S4": scenarioS4,
	"S5": scenarioS5,
	"S6": scenarioS6,
}

func runScenario(cmd *cobra.Command, args []string) error {
	name := args[0]
	fn, ok := scenarios[name]
	if !ok {
		return fmt.Errorf("unknown scenario %q", name)
	}
	cfg := salloc.DefaultConfig()
	cfg.MaxHeapSize = maxHeapSize
	engine, err := salloc.NewEngine(cfg)
	if err != nil {
		return err
	}
	if err := fn(engine); err != nil {
		fmt.Printf("%s FAIL: %v\n", name, err)
		return err
	}
	fmt.Printf("%s PASS\n", name)
	return nil
}

// scenarioS1: init; a=allocate(32); b=allocate(32); free(a); free(b).
func scenarioS1(e *salloc.Engine) error {
	a, err := e.Allocate(32)
	if err != nil {
		return err
	}
	b, err := e.Allocate(32)
	if err != nil {
		return err
	}
	e.Free(a)
	e.Free(b)
	return e.CheckHeap()
}

// scenarioS2: init; p=allocate(16). The remainder after splitting should
// still pass every invariant.
func scenarioS2(e *salloc.Engine) error {
	_, err := e.Allocate(16)
	if err != nil {
		return err
	}
	return e.CheckHeap()
}

// scenarioS3: init; a,b,c=allocate(64) each; free(a); free(c); free(b).
func scenarioS3(e *salloc.Engine) error {
	a, err := e.Allocate(64)
	if err != nil {
		return err
	}
	b, err := e.Allocate(64)
	if err != nil {
		return err
	}
	c, err := e.Allocate(64)
	if err != nil {
		return err
	}
	e.Free(a)
	e.Free(c)
	e.Free(b)
	return e.CheckHeap()
}

// scenarioS4 forces a heap extension while the last in-heap block is free
// by allocating then freeing a trailing block before requesting more than
// it can satisfy.
func scenarioS4(e *salloc.Engine) error {
	tail, err := e.Allocate(64)
	if err != nil {
		return err
	}
	e.Free(tail)
	if _, err := e.Allocate(4096); err != nil {
		return err
	}
	return e.CheckHeap()
}

// scenarioS5: p=allocate(16); write pattern; q=reallocate(p,1024); first 16
// bytes of q must equal the pattern.
func scenarioS5(e *salloc.Engine) error {
	p, err := e.Allocate(16)
	if err != nil {
		return err
	}
	pattern := bytes.Repeat([]byte{0xAB}, 16)
	writePattern(e, p, pattern)

	q, err := e.Reallocate(p, 1024)
	if err != nil {
		return err
	}
	if !readMatches(e, q, pattern) {
		return fmt.Errorf("prefix not preserved across grow")
	}
	return e.CheckHeap()
}

// scenarioS6: p=allocate(1024); write pattern; q=reallocate(p,16); first 16
// bytes of q must equal the first 16 bytes of the pattern.
func scenarioS6(e *salloc.Engine) error {
	p, err := e.Allocate(1024)
	if err != nil {
		return err
	}
	pattern := bytes.Repeat([]byte{0xCD}, 16)
	writePattern(e, p, pattern)

	q, err := e.Reallocate(p, 16)
	if err != nil {
		return err
	}
	if !readMatches(e, q, pattern) {
		return fmt.Errorf("prefix not preserved across shrink")
	}
	return e.CheckHeap()
}
