package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/violet-project/violet-analyzer/violet"
	"github.com/violet-project/violet-analyzer/violet/trace"
)

func newSummaryCmd(a *app) *cobra.Command {
	var format string
	summaryCmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the instruction, syscall and execution time totals of every state",
		RunE: a.wrap(func(cmd *cobra.Command) (err error) {
			if format != "text" && format != "yaml" {
				return &ConfigurationError{Msg: fmt.Sprintf("unknown summary format %q (want text or yaml)", format)}
			}
			cmd.SilenceUsage = true

			table, err := a.loadTable()
			if err != nil {
				return err
			}
			out, done, err := a.openOutput(cmd)
			if err != nil {
				return err
			}
			defer done(&err)

			if format == "text" {
				return violet.WriteCostSummary(out, table)
			}
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(trace.Summarize(table)); err != nil {
				return fmt.Errorf("encoding summary: %w", err)
			}
			return enc.Close()
		}),
	}
	summaryCmd.Flags().StringVar(&format, "format", "text", "Output format (text, yaml)")
	return summaryCmd
}
