package main

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/spf13/cobra"

	"candleview/internal/cycle"
	"candleview/internal/display"
	"candleview/internal/market"
)

// trigger runs a fetch cycle; *cycle.Runner satisfies it.
type trigger interface {
	Trigger(ctx context.Context, symbol string) (*cycle.Result, error)
	State() cycle.State
	CooldownRemaining() time.Duration
}

type seriesResponse struct {
	Symbol      string           `json:"symbol"`
	Granularity string           `json:"granularity"`
	State       string           `json:"state"`
	Metrics     *display.Metrics `json:"metrics,omitempty"`
	Warning     string           `json:"warning,omitempty"`
	Series      market.Series    `json:"series"`
	Anomalies   []market.Anomaly `json:"anomalies,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
}

type errorResponse struct {
	Error           string `json:"error"`
	Kind            string `json:"kind,omitempty"`
	ProviderMessage string `json:"provider_message,omitempty"`
	Guidance        string `json:"guidance,omitempty"`
}

type healthResponse struct {
	Status            string  `json:"status"`
	State             string  `json:"state"`
	CooldownRemaining float64 `json:"cooldown_remaining_sec"`
}

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the series as JSON over HTTP",
		Long: `Serve GET /api/series?symbol=SYMBOL&records=N, /healthz and /metrics.
Each /api/series call runs one fetch cycle; calls inside the cooldown wait for it.
One call may wait behind the cycle in flight; further calls get 503 with Retry-After.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := a.newRunner()
			if err != nil {
				return err
			}
			// One request may queue behind the in-flight cycle: it waits at most
			// one request timeout plus the cooldown, then runs its own cycle.
			opts := seriesOptions{
				DefaultSymbol: a.cfg.Series.Symbol,
				MaxPending:    2,
				WaitBudget:    a.cfg.Cooldown() + a.cfg.RequestTimeout(),
			}
			srv := &http.Server{
				Addr:              ":" + a.cfg.Server.Port,
				Handler:           newHandler(runner, a.reg, a.log, opts),
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       15 * time.Second,
				WriteTimeout:      opts.WaitBudget + a.cfg.RequestTimeout() + 10*time.Second,
				IdleTimeout:       60 * time.Second,
			}
			return serve(cmd.Context(), srv, a.log)
		},
	}
}

func serve(ctx context.Context, srv *http.Server, log zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log.Info().Msg("server shutting down")
	return srv.Shutdown(shutdownCtx)
}

// seriesOptions bound how /api/series queues behind the runner.
type seriesOptions struct {
	DefaultSymbol string
	// MaxPending caps requests inside Trigger, the in-flight one included.
	// Requests beyond it are rejected with 503 and Retry-After.
	MaxPending int
	// WaitBudget bounds the queue and cooldown wait of a single request. It
	// must leave room for one cycle under the server's WriteTimeout.
	WaitBudget time.Duration
}

type seriesHandler struct {
	t     trigger
	opts  seriesOptions
	slots chan struct{}
}

func newSeriesHandler(t trigger, opts seriesOptions) *seriesHandler {
	if opts.MaxPending <= 0 {
		opts.MaxPending = 2
	}
	return &seriesHandler{t: t, opts: opts, slots: make(chan struct{}, opts.MaxPending)}
}

func (h *seriesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	select {
	case h.slots <- struct{}{}:
		defer func() { <-h.slots }()
	default:
		h.unavailable(w, "too many requests waiting for the provider")
		return
	}

	ctx := r.Context()
	if h.opts.WaitBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opts.WaitBudget)
		defer cancel()
	}
	h.getSeries(w, r.WithContext(ctx))
}

func (h *seriesHandler) unavailable(w http.ResponseWriter, msg string) {
	w.Header().Set("Retry-After", retryAfter(h.t.CooldownRemaining()))
	writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: msg})
}

// retryAfter renders d as whole seconds, rounding up, at least 1.
func retryAfter(d time.Duration) string {
	return strconv.Itoa(max(1, int(math.Ceil(d.Seconds()))))
}

func newHandler(t trigger, reg prometheus.Gatherer, log zerolog.Logger, opts seriesOptions) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/healthz", withJSONHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{
			Status:            "ok",
			State:             t.State().String(),
			CooldownRemaining: t.CooldownRemaining().Seconds(),
		})
	})))
	mux.Handle("/api/series", withJSONHeaders(withGzip(newSeriesHandler(t, opts))))
	if reg != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	return hlog.NewHandler(log)(
		hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
			hlog.FromRequest(r).Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("size", size).
				Dur("duration", d).
				Msg("request")
		})(recoverPanic(mux)),
	)
}

func (h *seriesHandler) getSeries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol := strings.TrimSpace(q.Get("symbol"))
	if symbol == "" {
		symbol = h.opts.DefaultSymbol
	}
	records := -1
	if v := q.Get("records"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "records must be a non-negative integer"})
			return
		}
		records = n
	}

	res, err := h.t.Trigger(r.Context(), symbol)
	if res == nil {
		switch {
		case errors.Is(err, cycle.ErrEmptySymbol):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		default:
			h.unavailable(w, "request gave up waiting for the cooldown")
		}
		return
	}
	if res.Err != nil {
		body := errorResponse{Error: res.Err.Error(), Kind: res.Kind().String(), Guidance: kindGuidance(res.Kind())}
		var e *market.Error
		if errors.As(res.Err, &e) {
			body.ProviderMessage = e.ProviderMessage
		}
		writeJSON(w, statusFor(res.Kind()), body)
		return
	}

	resp := seriesResponse{
		Symbol:      res.Symbol,
		Granularity: res.Granularity.String(),
		State:       res.State.String(),
		Series:      res.Series,
		Anomalies:   res.Anomalies,
		StartedAt:   res.StartedAt,
	}
	if records >= 0 {
		resp.Series = res.Recent(records)
	}
	if res.HasMetrics() {
		m := res.Metrics
		resp.Metrics = &m
	}
	if res.Warning != nil {
		resp.Warning = res.Warning.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func statusFor(kind market.ErrorKind) int {
	switch kind {
	case market.EmptySeries:
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func withJSONHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		// Basic CORS for browser usage; adjust as needed.
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withGzip compresses response when client supports gzip.
func withGzip(next http.Handler) http.Handler {
	var gzPool = sync.Pool{New: func() any {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
		return w
	}}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}
		gz := gzPool.Get().(*gzip.Writer)
		gz.Reset(w)
		defer func() {
			_ = gz.Close()
			gz.Reset(io.Discard)
			gzPool.Put(gz)
		}()
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")
		next.ServeHTTP(gzipResponseWriter{ResponseWriter: w, Writer: gz}, r)
	})
}

type gzipResponseWriter struct {
	http.ResponseWriter
	Writer io.Writer
}

func (g gzipResponseWriter) Write(b []byte) (int, error) {
	return g.Writer.Write(b)
}

// recoverPanic protects handlers from panics.
func recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				hlog.FromRequest(r).Error().Interface("panic", rec).Msg("handler panicked")
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
