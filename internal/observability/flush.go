package observability

import (
	"context"
	"errors"
	"fmt"
	"syscall"

	"go.uber.org/zap"
)

// FlushTelemetry logs the final request and cache totals and syncs the logger. Call during
// graceful shutdown after in-flight requests have drained.
func FlushTelemetry(ctx context.Context, logger *zap.Logger) error {
	if logger == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("flush telemetry: %w", err)
	}

	totals, err := counterTotals("httpRequestsTotal", "cacheHitsTotal", "cacheMissesTotal", "weatherApiCallsTotal")
	if err != nil {
		logger.Warn("gather final metrics", zap.Error(err))
	} else {
		logger.Info("final telemetry",
			zap.Float64("http_requests", totals["httpRequestsTotal"]),
			zap.Float64("cache_hits", totals["cacheHitsTotal"]),
			zap.Float64("cache_misses", totals["cacheMissesTotal"]),
			zap.Float64("upstream_calls", totals["weatherApiCallsTotal"]))
	}

	// stderr/stdout sync fails with EINVAL or ENOTTY on terminals and pipes.
	if err := logger.Sync(); err != nil && !errors.Is(err, syscall.EINVAL) && !errors.Is(err, syscall.ENOTTY) {
		return fmt.Errorf("flush logs: %w", err)
	}
	return nil
}

// counterTotals sums every series of the named counters in the service registry.
func counterTotals(names ...string) (map[string]float64, error) {
	families, err := registry.Gather()
	if err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(names))
	totals := make(map[string]float64, len(names))
	for _, n := range names {
		want[n] = true
		totals[n] = 0
	}
	for _, mf := range families {
		if !want[mf.GetName()] {
			continue
		}
		for _, m := range mf.GetMetric() {
			totals[mf.GetName()] += m.GetCounter().GetValue()
		}
	}
	return totals, nil
}
