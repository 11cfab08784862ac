package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/irtune/internal/harness"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the built-in problems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()
			return printProblems(cmd.OutOrStdout(), a.Problems.List())
		},
	}
}

func printProblems(out io.Writer, list []*harness.Problem) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tDESCRIPTION")
	for _, p := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", p.ID(), p.Name(), p.Description())
	}
	return tw.Flush()
}
