package main

import (
	"strings"

	"github.com/spf13/cobra"
)

func newFetchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch [SYMBOL]",
		Short: "Run one fetch cycle and print the result",
		Long: `Run one fetch cycle for SYMBOL (the configured symbol when omitted) and print
the latest close, its change from the prior bar, a close-price sparkline and the
most recent raw records.

The cooldown only spaces cycles within one process. Separate fetch invocations
do not wait for each other, so back-to-back runs can hit the provider's rate
limit; use watch or serve for repeated requests.

Example: candleview fetch RELIANCE.BSE --granularity=daily`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbol := a.cfg.Series.Symbol
			if len(args) == 1 {
				symbol = strings.TrimSpace(args[0])
			}

			runner, err := a.newRunner()
			if err != nil {
				return err
			}
			res, err := runner.Trigger(cmd.Context(), symbol)
			if res == nil {
				return err
			}
			renderResult(cmd.OutOrStdout(), res, a.renderOptions())
			return err
		},
	}
}
