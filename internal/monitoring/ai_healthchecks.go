package monitoring

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

const HEALTHCHECK_TIMER = 15

// MonitorAnalyzerHealth polls check until ctx is done, storing the latest
// answer in healthy and in the AnalyzerUp gauge.
func MonitorAnalyzerHealth(ctx context.Context, analyzer string, check func(context.Context) bool, healthy *atomic.Bool, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second * HEALTHCHECK_TIMER
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	record := func() {
		isHealthy := check(ctx)
		if healthy.Swap(isHealthy) != isHealthy && !isHealthy {
			slog.Warn("[HealthCheck] Analyzer is unhealthy",
				slog.String("analyzer", analyzer))
		}
		if isHealthy {
			AnalyzerUp.WithLabelValues(analyzer).Set(1)
		} else {
			AnalyzerUp.WithLabelValues(analyzer).Set(0)
		}
	}

	record()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			record()
		}
	}
}
