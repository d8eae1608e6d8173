// Package cycle runs the fetch, normalize and display pipeline for one
// symbol at a time, behind a cooldown between provider calls.
package cycle

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"candleview/internal/display"
	"candleview/internal/market"
	"candleview/internal/metrics"
	"candleview/internal/normalize"
	"candleview/internal/provider"
	"candleview/internal/provider/ratelimit"
)

// ErrEmptySymbol is returned before any network call when no symbol is given.
var ErrEmptySymbol = errors.New("symbol must not be empty")

// State is the position of the runner in a cycle.
type State int32

const (
	Idle State = iota
	Requesting
	Normalizing
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Requesting:
		return "requesting"
	case Normalizing:
		return "normalizing"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Config holds the per-runner pipeline settings.
type Config struct {
	Granularity market.Granularity
	APIKey      string
	Cooldown    time.Duration
}

// Runner executes fetch cycles. At most one cycle is in flight; further
// triggers queue behind it and then behind the cooldown.
type Runner struct {
	provider    provider.Provider
	granularity market.Granularity
	apiKey      string

	cooldown  *ratelimit.Cooldown
	sem       *semaphore.Weighted
	state     atomic.Int32
	log       zerolog.Logger
	metrics   *metrics.Recorder
	onPending func(time.Duration)
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithPending registers a callback invoked with the remaining cooldown
// whenever a trigger has to wait.
func WithPending(fn func(time.Duration)) Option {
	return func(r *Runner) { r.onPending = fn }
}

// New returns a runner for p.
func New(p provider.Provider, cfg Config, opts ...Option) (*Runner, error) {
	if p == nil {
		return nil, errors.New("provider is required")
	}
	if err := cfg.Granularity.Validate(); err != nil {
		return nil, err
	}
	if cfg.Cooldown < 0 {
		return nil, errors.New("cooldown must not be negative")
	}
	r := &Runner{
		provider:    p,
		granularity: cfg.Granularity,
		apiKey:      cfg.APIKey,
		cooldown:    ratelimit.NewCooldown(cfg.Cooldown),
		sem:         semaphore.NewWeighted(1),
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// State reports the current state.
func (r *Runner) State() State { return State(r.state.Load()) }

// Granularity reports the granularity every cycle requests.
func (r *Runner) Granularity() market.Granularity { return r.granularity }

// CooldownRemaining reports how long the next trigger would be deferred.
func (r *Runner) CooldownRemaining() time.Duration { return r.cooldown.Remaining() }

func (r *Runner) setState(s State) { r.state.Store(int32(s)) }

// Trigger runs one cycle for symbol. ctx bounds only the wait for the
// in-flight cycle, the cooldown and the provider quota; once the request is
// issued the cycle runs to resolution under the transport timeout. The
// symbol is sent verbatim; only a blank one is rejected.
//
// A non-nil Result is returned for every cycle that started. Failed cycles
// also return the tagged error.
func (r *Runner) Trigger(ctx context.Context, symbol string) (*Result, error) {
	if strings.TrimSpace(symbol) == "" {
		return nil, ErrEmptySymbol
	}

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer r.sem.Release(1)

	waitStart := time.Now()
	err := r.cooldown.Wait(ctx, func(d time.Duration) { r.pending(symbol, "cooldown", d) })
	if err == nil {
		err = r.waitQuota(ctx, symbol)
	}
	if waited := time.Since(waitStart); waited >= time.Millisecond {
		r.metrics.RecordCooldownWait(waited)
	}
	if err != nil {
		return nil, err
	}

	started := r.cooldown.Begin()
	defer r.setState(Idle)

	res := r.run(context.WithoutCancel(ctx), symbol)
	res.StartedAt = started
	res.Duration = time.Since(started)
	r.setState(res.State)

	outcome := "ready"
	if res.Err != nil {
		outcome = res.Kind().String()
	}
	r.metrics.RecordCycle(r.granularity.String(), outcome, res.Duration)

	if res.Err != nil {
		r.log.Error().Err(res.Err).
			Str("symbol", symbol).
			Str("kind", outcome).
			Dur("duration", res.Duration).
			Msg("cycle failed")
		return res, res.Err
	}
	if last, ok := res.Series.Last(); ok {
		r.metrics.RecordLastClose(symbol, last.Close)
	}
	r.log.Info().
		Str("symbol", symbol).
		Int("records", len(res.Series)).
		Dur("duration", res.Duration).
		Msg("cycle ready")
	return res, nil
}

// pacer is implemented by providers that pace calls against their own quota.
type pacer interface {
	Delay() time.Duration
}

// waitQuota waits out the provider quota before the cycle starts so the wait
// is reported like the cooldown and does not stall the Requesting state.
func (r *Runner) waitQuota(ctx context.Context, symbol string) error {
	p, ok := r.provider.(pacer)
	if !ok {
		return nil
	}
	for {
		d := p.Delay()
		if d <= 0 {
			return nil
		}
		r.pending(symbol, "quota", d)
		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (r *Runner) pending(symbol, reason string, d time.Duration) {
	r.log.Info().Str("symbol", symbol).Str("reason", reason).Dur("remaining", d).Msg("trigger pending")
	if r.onPending != nil {
		r.onPending(d)
	}
}

func (r *Runner) run(ctx context.Context, symbol string) *Result {
	res := &Result{Symbol: symbol, Granularity: r.granularity}
	fail := func(err error) *Result {
		if _, ok := market.KindOf(err); !ok {
			err = market.NewError(market.TransportError, "fetching series", err)
		}
		res.State = Failed
		res.Err = err
		return res
	}

	r.setState(Requesting)
	r.log.Debug().Str("symbol", symbol).Str("granularity", r.granularity.String()).Str("provider", r.provider.Name()).Msg("cycle started")
	raw, err := r.provider.Fetch(ctx, market.BuildRequest(symbol, r.granularity, r.apiKey))
	if err != nil {
		return fail(err)
	}

	r.setState(Normalizing)
	series, err := normalize.Series(raw, r.granularity)
	if err != nil {
		return fail(err)
	}
	res.Series = series

	res.Anomalies = series.Anomalies()
	for _, a := range res.Anomalies {
		r.log.Warn().
			Str("symbol", symbol).
			Time("time", a.Time).
			Str("reason", a.Reason).
			Msg("record violates OHLC envelope")
	}

	m, err := display.Compute(series, r.granularity)
	switch {
	case err == nil:
		res.Metrics = m
	case errors.Is(err, market.ErrInsufficientHistory):
		res.Warning = err
		r.log.Warn().Str("symbol", symbol).Msg("series has a single record; delta unavailable")
	default:
		return fail(err)
	}

	res.State = Ready
	return res
}
