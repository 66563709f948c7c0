// Package metrics exposes Prometheus counters for the ingestion and
// evaluation pipeline, plus the optional /metrics listener.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	CandlesIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_candles_ingested_total",
			Help: "Closed candles written to the in-memory market store (by symbol, timeframe, source).",
		},
		[]string{"symbol", "timeframe", "source"},
	)

	WSReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_ws_reconnects_total",
			Help: "WebSocket reconnect attempts against the exchange stream.",
		},
	)

	Evaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_evaluations_total",
			Help: "Pipeline evaluations run (kind: close|forming).",
		},
		[]string{"symbol", "timeframe", "kind"},
	)

	EvaluationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sentinel_evaluation_seconds",
			Help:    "Wall time of a single close evaluation.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
	)

	Skips = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_skips_total",
			Help: "Evaluations that ended without a signal, split by reason.",
		},
		[]string{"reason"},
	)

	SignalsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_signals_total",
			Help: "Signals delivered to the sinks (by stage and side).",
		},
		[]string{"stage", "side"},
	)

	NotifyFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_notification_failures_total",
			Help: "Signal sends that failed and will be retried on a later candle.",
		},
	)

	EventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_events_dropped_total",
			Help: "Candle events dropped because a consumer buffer was full.",
		},
	)

	CooldownsPurged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_cooldowns_purged_total",
			Help: "Expired cooldown entries removed by the hourly sweep.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		CandlesIngested,
		WSReconnects,
		Evaluations,
		EvaluationSeconds,
		Skips,
		SignalsEmitted,
		NotifyFailures,
		EventsDropped,
		CooldownsPurged,
	)
}

// IncCandleIngested records one stored closed candle.
func IncCandleIngested(symbol, timeframe, source string) {
	CandlesIngested.WithLabelValues(symbol, timeframe, source).Inc()
}

// IncWSReconnect records one reconnect attempt.
func IncWSReconnect() { WSReconnects.Inc() }

// IncEvaluation records one pipeline run.
func IncEvaluation(symbol, timeframe, kind string) {
	Evaluations.WithLabelValues(symbol, timeframe, kind).Inc()
}

// IncSkip records an evaluation that stopped at a gate.
func IncSkip(reason string) { Skips.WithLabelValues(reason).Inc() }

// IncSignal records an emitted signal.
func IncSignal(stage, side string) { SignalsEmitted.WithLabelValues(stage, side).Inc() }

// IncNotifyFailure records a failed sink delivery.
func IncNotifyFailure() { NotifyFailures.Inc() }

// AddEventsDropped records hub drops.
func AddEventsDropped(n uint64) { EventsDropped.Add(float64(n)) }

// AddCooldownsPurged records swept cooldown rows.
func AddCooldownsPurged(n int64) { CooldownsPurged.Add(float64(n)) }

// Server is the optional metrics listener. It serves /metrics in the
// Prometheus text format and a /healthz liveness probe.
type Server struct {
	srv *http.Server
}

// NewServer creates a listener on addr (e.g. ":9874").
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{
		srv: &http.Server{Addr: addr, Handler: mux},
	}
}

// Start serves in a background goroutine until Shutdown.
func (s *Server) Start(logger zerolog.Logger) {
	go func() {
		logger.Info().Str("addr", s.srv.Addr).Msg("metrics listener started")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics listener failed")
		}
	}()
}

// Shutdown stops the listener, waiting briefly for in-flight scrapes.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop metrics listener: %w", err)
	}
	return nil
}
