package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"candleview/internal/config"
	"candleview/internal/cycle"
	"candleview/internal/httpx"
	"candleview/internal/logger"
	"candleview/internal/metrics"
	"candleview/internal/provider"
	"candleview/internal/provider/alphavantage"
	"candleview/internal/provider/ratelimit"
)

// app carries what every subcommand needs once flags and config are read.
type app struct {
	cfg      config.Config
	log      zerolog.Logger
	logClose io.Closer
	reg      *prometheus.Registry

	configPath  string
	granularity string
	interval    string
	rawRecords  int
	currency    string
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "candleview",
		Short: "candleview - OHLCV viewer for a single Alpha Vantage symbol",
		Long: `candleview fetches one instrument's price series from Alpha Vantage,
normalizes it into ascending OHLCV bars and shows the latest close and its change.
Use exchange suffixes for non-US listings, for example RELIANCE.BSE or TCS.NSE.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	a.bindFlags(root)
	root.AddCommand(newFetchCmd(a))
	root.AddCommand(newWatchCmd(a))
	root.AddCommand(newServeCmd(a))
	return root
}

func (a *app) bindFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "configuration file path (default config.yaml when present)")
	flags.StringVar(&a.granularity, "granularity", "", "series granularity: intraday or daily")
	flags.StringVar(&a.interval, "interval", "", "intraday bar interval: 1min, 5min, 15min, 30min or 60min")
	flags.IntVar(&a.rawRecords, "raw", 10, "number of most recent raw records to show")
	flags.StringVar(&a.currency, "currency", "₹", "currency symbol prefixed to prices")
}

// applyFlags overrides cfg with the flags the user set explicitly. Names are
// normalized the same way as CANDLEVIEW_* environment values.
func (a *app) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("granularity") {
		cfg.Series.Granularity = strings.ToLower(strings.TrimSpace(a.granularity))
	}
	if cmd.Flags().Changed("interval") {
		cfg.Series.Interval = strings.ToLower(strings.TrimSpace(a.interval))
	}
	if cmd.Flags().Changed("raw") {
		cfg.Series.RawRecords = a.rawRecords
	}
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.applyFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	a.cfg = cfg

	a.log, a.logClose, err = logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		return err
	}

	a.reg = prometheus.NewRegistry()
	a.reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return nil
}

// newRunner wires the transport, the optional quota guard and the cycle.
func (a *app) newRunner(opts ...cycle.Option) (*cycle.Runner, error) {
	g, err := a.cfg.Granularity()
	if err != nil {
		return nil, err
	}

	httpClient := httpx.New(a.cfg.RequestTimeout())
	var p provider.Provider = alphavantage.NewClient(
		alphavantage.WithBaseURL(a.cfg.Provider.BaseURL),
		alphavantage.WithHTTPClient(httpClient),
	)
	if rpm := a.cfg.Provider.MaxRequestsPerMinute; rpm > 0 {
		p = &ratelimit.TokenBucketProvider{P: p, TB: ratelimit.PerMinute(rpm, a.cfg.Provider.Burst)}
	}

	base := []cycle.Option{
		cycle.WithLogger(a.log),
		cycle.WithMetrics(metrics.New(a.reg)),
	}
	return cycle.New(p, cycle.Config{
		Granularity: g,
		APIKey:      a.cfg.Provider.APIKey,
		Cooldown:    a.cfg.Cooldown(),
	}, append(base, opts...)...)
}

// close releases the log output opened by init.
func (a *app) close() error {
	if a.logClose == nil {
		return nil
	}
	return a.logClose.Close()
}

func (a *app) renderOptions() renderOptions {
	return renderOptions{Currency: a.currency, RawRecords: a.cfg.Series.RawRecords}
}
