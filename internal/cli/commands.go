package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newBrokersCmd lists the accounts a running janusd server has configured,
// rendered as a table.
func newBrokersCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "brokers",
		Short: "List configured broker accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			client := newRPCClient(addr)

			brokers, err := client.BrokerList()
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(brokers)
			}

			table := NewTable(output, "ALIAS", "BROKER", "DEFAULT")
			for _, b := range brokers {
				def := ""
				if b.IsDefault {
					def = output.Green("*")
				}
				table.AddRow(b.Alias, output.Cyan(b.Broker), def)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8765", "janusd RPC address")
	return cmd
}

// countColor renders n in color when nonzero, dimmed when zero.
func countColor(output *Output, n int, color func(string) string) string {
	s := fmt.Sprintf("%d", n)
	if n == 0 {
		return output.DimText(s)
	}
	return color(s)
}

// newHarmonyCmd triggers one harmony reconciliation pass against a running
// janusd server and reports the resulting summary.
func newHarmonyCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "harmony",
		Short: "Run a harmony reconciliation pass against every connected broker",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			client := newRPCClient(addr)

			if !output.IsJSON() {
				output.Progress(0, 1, "running harmony reconciliation")
			}

			summary, err := client.Harmony()

			if !output.IsJSON() {
				output.Progress(1, 1, "running harmony reconciliation")
			}

			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(summary)
			}

			output.Println(output.BoldText("Harmony reconciliation complete"))

			filled := output.Green(fmt.Sprintf("%d", summary.Filled))
			ambiguous := countColor(output, summary.SkippedAmbiguous, output.Yellow)
			noMatch := countColor(output, summary.SkippedNoMatch, output.Yellow)
			errs := countColor(output, summary.Errors, output.Red)

			output.Box("Harmony Summary", []string{
				"Filled:            " + filled,
				"Skipped ambiguous: " + ambiguous,
				"Skipped no match:  " + noMatch,
				"Errors:            " + errs,
			})
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8765", "janusd RPC address")
	return cmd
}
