package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/copyleftdev/irtune/internal/optimization"
)

func newOptimizeCmd() *cobra.Command {
	var (
		problemID int
		irFile    string
		skipRun   bool
	)
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Analyze and optimize a problem with the language model",
		Long: `optimize streams the explanation, bottlenecks and rationale for a problem's
IR, extracts the optimized function from the model's answer and then verifies
and benchmarks it like run does. Requires OPENAI_API_KEY.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ir, err := readIR("", irFile)
			if err != nil {
				return err
			}
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if a.Optimizer == nil {
				return fmt.Errorf("OPENAI_API_KEY is not set")
			}
			p, err := a.Problems.Get(problemID)
			if err != nil {
				return err
			}
			if strings.TrimSpace(ir) == "" {
				ir = p.Source()
			}

			out := cmd.OutOrStdout()
			extracted, err := analyze(cmd.Context(), out, a.Optimizer, a.Extractor, ir)
			if err != nil {
				return err
			}
			if skipRun {
				return nil
			}
			_, err = runCycle(cmd.Context(), out, a.Cycle(), p, extracted)
			return err
		},
	}
	cmd.Flags().IntVar(&problemID, "problem", 0, "problem number to optimize")
	cmd.Flags().StringVar(&irFile, "llvm-ir-file", "", "start from this IR instead of the problem's source")
	cmd.Flags().BoolVar(&skipRun, "no-verify", false, "stop after extracting the optimized IR")
	_ = cmd.MarkFlagRequired("problem")
	return cmd
}

// analyze prints each stage as it streams in and returns the extracted IR.
func analyze(ctx context.Context, out io.Writer, opt *optimization.Optimizer, ext *optimization.Extractor, ir string) (string, error) {
	header := color.New(color.FgCyan, color.Bold).SprintFunc()

	var (
		current   = optimization.Stage(-1)
		optimized string
	)
	for sec, err := range opt.Run(ctx, ir) {
		if err != nil {
			fmt.Fprintln(out)
			return "", err
		}
		if sec.Stage != current {
			if current >= 0 {
				fmt.Fprintln(out)
			}
			fmt.Fprintf(out, "%s\n", header("== "+sec.Stage.String()+" =="))
			current = sec.Stage
		}
		fmt.Fprint(out, sec.Text)
		if sec.Stage == optimization.OptimizedIR {
			optimized = sec.Text
		}
	}
	fmt.Fprintln(out)

	extracted, err := ext.Extract(ctx, optimized)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(out, "%s\n%s\n", header("== EXTRACTED IR =="), extracted)
	return extracted, nil
}
