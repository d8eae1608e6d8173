package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/spf13/cobra"

	"candleview/internal/cycle"
	"candleview/internal/market"
)

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Prompt for symbols and fetch them on demand",
		Long: `Interactive mode: enter a symbol, get the latest bars, repeat.
Requests inside the cooldown are deferred until it elapses and a pending
indicator is shown meanwhile. Enter q or press Ctrl+C to quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			runner, err := a.newRunner(cycle.WithPending(func(d time.Duration) {
				fmt.Fprintln(out, pendingLine(d))
			}))
			if err != nil {
				return err
			}

			fmt.Fprintln(out, titleStyle.Render("candleview"))
			fmt.Fprintln(out, infoStyle.Render("Enter a stock symbol and press Enter to begin."))

			symbol := a.cfg.Series.Symbol
			for {
				next, err := promptSymbol(symbol)
				if errors.Is(err, terminal.InterruptErr) || errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return err
				}
				if strings.EqualFold(next, "q") {
					return nil
				}
				symbol = next

				fmt.Fprintln(out, inProgressStyle.Render(fmt.Sprintf("Fetching data for %s...", symbol)))
				res, err := runner.Trigger(cmd.Context(), symbol)
				if res == nil {
					if err != nil && cmd.Context().Err() != nil {
						return nil
					}
					fmt.Fprintln(out, errorStyle.Render(err.Error()))
					continue
				}
				renderResult(out, res, a.renderOptions())
			}
		},
	}
}

func promptSymbol(def string) (string, error) {
	var symbol string
	prompt := &survey.Input{
		Message: "Enter ticker (with .BSE or .NSE):",
		Help:    "Alpha Vantage symbol, for example RELIANCE.BSE, TCS.NSE or IBM. Enter q to quit.",
		Default: def,
	}
	err := survey.AskOne(prompt, &symbol, survey.WithValidator(func(val interface{}) error {
		if strings.TrimSpace(val.(string)) == "" {
			return errors.New("ticker symbol cannot be empty")
		}
		return nil
	}))
	if err != nil {
		return "", err
	}
	return strings.ToUpper(strings.TrimSpace(symbol)), nil
}

func pendingLine(d time.Duration) string {
	return pendingStyle.Render(fmt.Sprintf("⏳ cooldown: next request in %s", d.Round(time.Second)))
}

// kindGuidance is shown under a failed cycle.
func kindGuidance(kind market.ErrorKind) string {
	switch kind {
	case market.InvalidResponse:
		return "Ensure the symbol is correct (e.g., RELIANCE.BSE) and your API key is valid."
	case market.TransportError:
		return "The provider could not be reached. Check your network connection and try again."
	case market.MalformedRecord:
		return "The provider returned a record that could not be read."
	case market.EmptySeries:
		return "The provider returned no bars for this symbol."
	default:
		return ""
	}
}
