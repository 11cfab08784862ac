package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/copyleftdev/irtune/internal/harness"
	"github.com/copyleftdev/irtune/internal/verify"
)

const rule = "================================"

func newRunCmd() *cobra.Command {
	var (
		problemID int
		irText    string
		irFile    string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Verify and benchmark IR against a problem's reference",
		Long: `run compiles the given IR (or the problem's own source when none is given),
checks its output against the compiled reference and prints the Base, Compiled
and AI-Opt timings in milliseconds for 100 calls each.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ir, err := readIR(irText, irFile)
			if err != nil {
				return err
			}
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.Problems.Get(problemID)
			if err != nil {
				return err
			}
			_, err = runCycle(cmd.Context(), cmd.OutOrStdout(), a.Cycle(), p, ir)
			return err
		},
	}
	cmd.Flags().IntVar(&problemID, "problem", 0, "problem number to run")
	cmd.Flags().StringVar(&irText, "llvm-ir", "", "LLVM IR to verify")
	cmd.Flags().StringVar(&irFile, "llvm-ir-file", "", "file holding the LLVM IR to verify")
	cmd.MarkFlagsMutuallyExclusive("llvm-ir", "llvm-ir-file")
	_ = cmd.MarkFlagRequired("problem")
	return cmd
}

func readIR(text, path string) (string, error) {
	if path == "" {
		return text, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read IR: %w", err)
	}
	return string(b), nil
}

// runCycle verifies ir on p and prints the timings.
func runCycle(ctx context.Context, out io.Writer, cycle *verify.Cycle, p *harness.Problem, ir string) (*verify.Record, error) {
	shown := ir
	if strings.TrimSpace(shown) == "" {
		shown = p.Source()
	}
	fmt.Fprintf(out, "Candidate IR for problem %d (%s):\n%s\n%s\n%s\n", p.ID(), p.Name(), rule, strings.TrimSpace(shown), rule)

	rec, err := cycle.Run(ctx, p, ir)
	if err != nil {
		return nil, err
	}
	color.New(color.FgGreen).Fprintln(out, "All outputs match. Benchmarking...")
	fmt.Fprintf(out, "Base: %.4f\nCompiled: %.4f\nAI-Opt: %.4f\n", rec.BaselineMS, rec.CompiledMS, rec.OptimizedMS)
	fmt.Fprintf(out, "Attempt %d, speedup over compiled reference: %.2fx\n", rec.Attempt, rec.Speedup())
	return rec, nil
}
