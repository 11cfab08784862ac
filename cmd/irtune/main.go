// Command irtune optimizes and benchmarks the built-in LLVM IR problems from
// the terminal.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/copyleftdev/irtune/internal/app"
	"github.com/copyleftdev/irtune/internal/config"
	apperrors "github.com/copyleftdev/irtune/internal/errors"
	"github.com/copyleftdev/irtune/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		reportError(os.Stderr, err)
		os.Exit(1)
	}
}

// reportError prints err followed by any diagnostic it carries, such as the
// toolchain output or the raw model response.
func reportError(w io.Writer, err error) {
	color.New(color.FgRed).Fprintf(w, "Error: %v\n", err)
	if detail := apperrors.DetailOf(err); detail != "" {
		fmt.Fprintln(w, strings.TrimRight(detail, "\n"))
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "irtune",
		Short: "Optimize LLVM IR with a language model and verify the result",
		Long: `irtune asks a language model to explain and optimize an LLVM IR function,
then compiles the answer next to the reference and checks that it computes the
same outputs before benchmarking it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newOptimizeCmd(), newListCmd())
	return root
}

// loadApp wires the pipeline from the environment. CLI logs go to stderr so
// that stdout carries only the report.
func loadApp() (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if os.Getenv("LOG_LEVEL") == "" {
		cfg.Logging.Level = "warn"
	}
	logger, err := logging.NewLogger(&logging.Config{Level: cfg.Logging.Level, Output: "stderr"})
	if err != nil {
		return nil, err
	}
	return app.New(cfg, logger.WithField("service", "irtune-cli"))
}
