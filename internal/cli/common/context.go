package common

import (
	"context"

	"github.com/crmarques/mobilectl/internal/telemetry"
)

type metricsKey struct{}

func WithMetrics(ctx context.Context, metrics *telemetry.Metrics) context.Context {
	return context.WithValue(ctx, metricsKey{}, metrics)
}

// Metrics returns the collectors of the running command, nil when metrics
// are not collected.
func Metrics(ctx context.Context) *telemetry.Metrics {
	if ctx == nil {
		return nil
	}
	metrics, _ := ctx.Value(metricsKey{}).(*telemetry.Metrics)
	return metrics
}
