package middleware

import (
	"context"
	"time"

	"github.com/absmach/fedcoord/coordinator"
	"github.com/absmach/fedcoord/pkg/fl"
	"github.com/go-kit/kit/metrics"
)

var _ coordinator.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     coordinator.Service
}

func Metrics(counter metrics.Counter, latency metrics.Histogram, svc coordinator.Service) coordinator.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) CurrentVars(ctx context.Context) fl.WeightSet {
	return mm.svc.CurrentVars(ctx)
}

func (mm *metricsMiddleware) CurrentVersion(ctx context.Context) uint64 {
	return mm.svc.CurrentVersion(ctx)
}

func (mm *metricsMiddleware) Snapshot(ctx context.Context) fl.Snapshot {
	defer func(begin time.Time) {
		mm.counter.With("method", "snapshot").Add(1)
		mm.latency.With("method", "snapshot").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Snapshot(ctx)
}

func (mm *metricsMiddleware) Hyperparams(ctx context.Context) map[string]any {
	return mm.svc.Hyperparams(ctx)
}

func (mm *metricsMiddleware) SetHyperparams(ctx context.Context, params map[string]any) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "set-hyperparams").Add(1)
		mm.latency.With("method", "set-hyperparams").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.SetHyperparams(ctx, params)
}

func (mm *metricsMiddleware) RecordTelemetry(ctx context.Context, rec fl.DataRecord) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "record-telemetry").Add(1)
		mm.latency.With("method", "record-telemetry").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.RecordTelemetry(ctx, rec)
}

func (mm *metricsMiddleware) ListTelemetry(ctx context.Context, offset, limit uint64) (fl.DataRecordPage, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list-telemetry").Add(1)
		mm.latency.With("method", "list-telemetry").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ListTelemetry(ctx, offset, limit)
}

func (mm *metricsMiddleware) SubmitUpdate(ctx context.Context, rec fl.UpdateRecord) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "submit-update").Add(1)
		mm.latency.With("method", "submit-update").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.SubmitUpdate(ctx, rec)
}

func (mm *metricsMiddleware) TryAggregate(ctx context.Context) (fl.Snapshot, bool, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "try-aggregate").Add(1)
		mm.latency.With("method", "try-aggregate").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.TryAggregate(ctx)
}

func (mm *metricsMiddleware) PendingUpdates(ctx context.Context) ([]fl.PendingBucket, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "pending-updates").Add(1)
		mm.latency.With("method", "pending-updates").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.PendingUpdates(ctx)
}

func (mm *metricsMiddleware) DiscardUpdates(ctx context.Context, version uint64) (int, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "discard-updates").Add(1)
		mm.latency.With("method", "discard-updates").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.DiscardUpdates(ctx, version)
}
