package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/violet-project/violet-analyzer/violet"
)

func newDiffCmd(a *app) *cobra.Command {
	var first, second int
	diffCmd := &cobra.Command{
		Use:   "diff",
		Short: "Diff the traces of two given states",
		RunE: a.wrap(func(cmd *cobra.Command) (err error) {
			cmd.SilenceUsage = true

			table, err := a.loadTable()
			if err != nil {
				return err
			}
			from, ok := table.Get(first)
			if !ok {
				return fmt.Errorf("state %d not found in %s", first, a.cfg.Input)
			}
			to, ok := table.Get(second)
			if !ok {
				return fmt.Errorf("state %d not found in %s", second, a.cfg.Input)
			}
			format, err := a.itemFormatter()
			if err != nil {
				return err
			}

			out, done, err := a.openOutput(cmd)
			if err != nil {
				return err
			}
			defer done(&err)

			analyzer := violet.NewAnalyzer(a.differ(format), violet.Options{}, a.log)
			pair, err := analyzer.ComparePair(from, to, out)
			if err != nil {
				return err
			}
			a.log.WithFields(logrus.Fields{
				"hunks":    pair.Hunks,
				"delta_ms": pair.LatencyDelta.String(),
			}).Infof("Compared state %d with state %d", first, second)
			return nil
		}),
	}
	diffCmd.Flags().IntVar(&first, "first", 0, "State id of the first trace")
	diffCmd.Flags().IntVar(&second, "second", 0, "State id of the second trace")
	_ = diffCmd.MarkFlagRequired("first")
	_ = diffCmd.MarkFlagRequired("second")
	return diffCmd
}
