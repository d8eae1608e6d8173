package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"

	"candleview/internal/cycle"
	"candleview/internal/display"
	"candleview/internal/market"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	metricStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 2)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	upStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#10B981")).
		Bold(true)

	downStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	inProgressStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)
)

const sparkLevels = "▁▂▃▄▅▆▇█"

type renderOptions struct {
	Currency   string
	RawRecords int
}

// renderResult prints one cycle outcome.
func renderResult(w io.Writer, res *cycle.Result, opts renderOptions) {
	if res.Err != nil {
		renderFailure(w, res)
		return
	}

	fmt.Fprintln(w, titleStyle.Render(chartTitle(res.Symbol, res.Granularity)))
	if res.HasMetrics() {
		fmt.Fprintln(w, renderMetrics(res.Metrics, opts.Currency))
	} else if res.Warning != nil {
		fmt.Fprintln(w, warnStyle.Render("Only one bar available; price change cannot be computed."))
	}
	if len(res.Series) > 1 {
		fmt.Fprintln(w, labelStyle.Render("Close  ")+sparkline(res.Series.Closes()))
	}
	for _, a := range res.Anomalies {
		fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("warning: bar %s %s", rowTime(a.Time, res.Granularity), a.Reason)))
	}
	if opts.RawRecords > 0 {
		fmt.Fprintln(w, rawTable(res.Recent(opts.RawRecords), res.Granularity))
	}
}

func renderFailure(w io.Writer, res *cycle.Result) {
	fmt.Fprintln(w, errorStyle.Render("Error fetching data for "+res.Symbol+"."))
	if g := kindGuidance(res.Kind()); g != "" {
		fmt.Fprintln(w, g)
	}
	var e *market.Error
	if errors.As(res.Err, &e) && e.ProviderMessage != "" {
		fmt.Fprintln(w, labelStyle.Render("Provider says: ")+e.ProviderMessage)
	}
}

func renderMetrics(m display.Metrics, currency string) string {
	price := lipgloss.JoinVertical(lipgloss.Left,
		labelStyle.Render("Current Price"),
		currency+formatPrice(m.LatestClose),
		deltaStyle(m.Delta).Render(formatDelta(m.Delta)),
	)
	updated := lipgloss.JoinVertical(lipgloss.Left,
		labelStyle.Render("Last Updated"),
		m.LastTimestampLabel,
	)
	return lipgloss.JoinHorizontal(lipgloss.Top, metricStyle.Render(price), metricStyle.Render(updated))
}

func chartTitle(symbol string, g market.Granularity) string {
	if g.Kind == market.Daily {
		return symbol + " Daily Performance"
	}
	return fmt.Sprintf("%s Intraday Performance (%s Intervals)", symbol, g.Interval)
}

func deltaStyle(d float64) lipgloss.Style {
	if d < 0 {
		return downStyle
	}
	return upStyle
}

func formatPrice(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// formatDelta renders a signed two-decimal change.
func formatDelta(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	if d.IsPositive() {
		return "+" + d.StringFixed(2)
	}
	return d.StringFixed(2)
}

// sparkline maps closes onto eight block heights.
func sparkline(closes []float64) string {
	if len(closes) == 0 {
		return ""
	}
	levels := []rune(sparkLevels)
	lo, hi := closes[0], closes[0]
	for _, c := range closes {
		lo = min(lo, c)
		hi = max(hi, c)
	}
	var b strings.Builder
	for _, c := range closes {
		i := len(levels) / 2
		if hi > lo {
			i = int((c - lo) / (hi - lo) * float64(len(levels)-1))
		}
		b.WriteRune(levels[i])
	}
	return b.String()
}

func rowTime(t time.Time, g market.Granularity) string {
	if g.Kind == market.Daily {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05")
}

func rawTable(s market.Series, g market.Granularity) string {
	rows := make([][]string, 0, len(s))
	for _, r := range s {
		rows = append(rows, []string{
			rowTime(r.Time, g),
			formatPrice(r.Open),
			formatPrice(r.High),
			formatPrice(r.Low),
			formatPrice(r.Close),
			decimal.NewFromFloat(r.Volume).StringFixed(0),
		})
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(labelStyle).
		Headers("Time", "Open", "High", "Low", "Close", "Volume").
		Rows(rows...).
		String()
}
