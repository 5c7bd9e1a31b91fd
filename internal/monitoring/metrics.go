package monitoring

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BatchesTotal counts finished batches by analyzer and ledger status
	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedbackflow_batches_total",
			Help: "Finished batches by analyzer and status",
		},
		[]string{"analyzer", "status"},
	)

	// BatchAttempts counts every analyzer call, including retries
	BatchAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedbackflow_batch_attempts_total",
			Help: "Analyzer calls by analyzer and outcome",
		},
		[]string{"analyzer", "outcome"},
	)

	// BatchDuration tracks wall time per batch, retries included
	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feedbackflow_batch_duration_seconds",
			Help:    "Batch processing time in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"analyzer"},
	)

	// RecordsTotal counts comments by result status
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedbackflow_records_total",
			Help: "Processed comments by analyzer and result status",
		},
		[]string{"analyzer", "status"},
	)

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feedbackflow_cache_hits_total",
			Help: "Comments answered from the result cache",
		},
	)

	// AnalyzerUp is 1 while the analyzer health check passes
	AnalyzerUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "feedbackflow_analyzer_up",
			Help: "Analyzer health as seen by the periodic check",
		},
		[]string{"analyzer"},
	)
)

func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
}

// Serve exposes /metrics until ctx is done. An empty addr disables it.
func Serve(ctx context.Context, addr string) {
	if addr == "" {
		return
	}

	srv := NewServer(addr)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	go func() {
		slog.Info("[Metrics] Serving metrics", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("[Metrics] Metrics server stopped",
				slog.String("error", err.Error()))
		}
	}()
}
