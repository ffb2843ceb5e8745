package middleware

import (
	"context"

	"github.com/absmach/fedcoord/coordinator"
	"github.com/absmach/fedcoord/pkg/fl"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var _ coordinator.Service = (*tracing)(nil)

type tracing struct {
	tracer trace.Tracer
	svc    coordinator.Service
}

func Tracing(tracer trace.Tracer, svc coordinator.Service) coordinator.Service {
	return &tracing{tracer, svc}
}

func (tm *tracing) CurrentVars(ctx context.Context) fl.WeightSet {
	return tm.svc.CurrentVars(ctx)
}

func (tm *tracing) CurrentVersion(ctx context.Context) uint64 {
	return tm.svc.CurrentVersion(ctx)
}

func (tm *tracing) Snapshot(ctx context.Context) fl.Snapshot {
	return tm.svc.Snapshot(ctx)
}

func (tm *tracing) Hyperparams(ctx context.Context) map[string]any {
	return tm.svc.Hyperparams(ctx)
}

func (tm *tracing) SetHyperparams(ctx context.Context, params map[string]any) error {
	ctx, span := tm.tracer.Start(ctx, "set-hyperparams", trace.WithAttributes(
		attribute.Int("keys", len(params)),
	))
	defer span.End()

	return tm.svc.SetHyperparams(ctx, params)
}

func (tm *tracing) RecordTelemetry(ctx context.Context, rec fl.DataRecord) error {
	ctx, span := tm.tracer.Start(ctx, "record-telemetry", trace.WithAttributes(
		attribute.String("client_id", rec.ClientID),
		attribute.Int64("model_version", int64(rec.ModelVersion)),
	))
	defer span.End()

	return tm.svc.RecordTelemetry(ctx, rec)
}

func (tm *tracing) ListTelemetry(ctx context.Context, offset, limit uint64) (fl.DataRecordPage, error) {
	ctx, span := tm.tracer.Start(ctx, "list-telemetry", trace.WithAttributes(
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.ListTelemetry(ctx, offset, limit)
}

func (tm *tracing) SubmitUpdate(ctx context.Context, rec fl.UpdateRecord) error {
	ctx, span := tm.tracer.Start(ctx, "submit-update", trace.WithAttributes(
		attribute.String("client_id", rec.ClientID),
		attribute.Int64("model_version", int64(rec.ModelVersion)),
		attribute.Int("num_examples", rec.NumExamples),
	))
	defer span.End()

	return tm.svc.SubmitUpdate(ctx, rec)
}

func (tm *tracing) TryAggregate(ctx context.Context) (snapshot fl.Snapshot, ok bool, err error) {
	ctx, span := tm.tracer.Start(ctx, "try-aggregate")
	defer func() {
		span.SetAttributes(attribute.Bool("aggregated", ok))
		if ok {
			span.SetAttributes(attribute.Int64("model_version", int64(snapshot.Version)))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "aggregation failed")
		}
		span.End()
	}()

	return tm.svc.TryAggregate(ctx)
}

func (tm *tracing) PendingUpdates(ctx context.Context) ([]fl.PendingBucket, error) {
	ctx, span := tm.tracer.Start(ctx, "pending-updates")
	defer span.End()

	return tm.svc.PendingUpdates(ctx)
}

func (tm *tracing) DiscardUpdates(ctx context.Context, version uint64) (int, error) {
	ctx, span := tm.tracer.Start(ctx, "discard-updates", trace.WithAttributes(
		attribute.Int64("model_version", int64(version)),
	))
	defer span.End()

	return tm.svc.DiscardUpdates(ctx, version)
}
