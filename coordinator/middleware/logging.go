package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/absmach/fedcoord/coordinator"
	"github.com/absmach/fedcoord/pkg/fl"
)

var _ coordinator.Service = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    coordinator.Service
}

func Logging(logger *slog.Logger, svc coordinator.Service) coordinator.Service {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}

func (lm *loggingMiddleware) CurrentVars(ctx context.Context) fl.WeightSet {
	return lm.svc.CurrentVars(ctx)
}

func (lm *loggingMiddleware) CurrentVersion(ctx context.Context) uint64 {
	return lm.svc.CurrentVersion(ctx)
}

func (lm *loggingMiddleware) Snapshot(ctx context.Context) fl.Snapshot {
	return lm.svc.Snapshot(ctx)
}

func (lm *loggingMiddleware) Hyperparams(ctx context.Context) map[string]any {
	return lm.svc.Hyperparams(ctx)
}

func (lm *loggingMiddleware) SetHyperparams(ctx context.Context, params map[string]any) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("keys", len(params)),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Set hyperparams failed", args...)

			return
		}
		lm.logger.Info("Set hyperparams completed successfully", args...)
	}(time.Now())

	return lm.svc.SetHyperparams(ctx, params)
}

func (lm *loggingMiddleware) RecordTelemetry(ctx context.Context, rec fl.DataRecord) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("record",
				slog.String("client_id", rec.ClientID),
				slog.Uint64("model_version", rec.ModelVersion),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Record telemetry failed", args...)

			return
		}
		lm.logger.Debug("Record telemetry completed successfully", args...)
	}(time.Now())

	return lm.svc.RecordTelemetry(ctx, rec)
}

func (lm *loggingMiddleware) ListTelemetry(ctx context.Context, offset, limit uint64) (resp fl.DataRecordPage, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List telemetry failed", args...)

			return
		}
		lm.logger.Info("List telemetry completed successfully", args...)
	}(time.Now())

	return lm.svc.ListTelemetry(ctx, offset, limit)
}

func (lm *loggingMiddleware) SubmitUpdate(ctx context.Context, rec fl.UpdateRecord) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("update",
				slog.String("client_id", rec.ClientID),
				slog.Uint64("model_version", rec.ModelVersion),
				slog.Int("num_examples", rec.NumExamples),
				slog.Int("tensors", len(rec.Vars)),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Submit update failed", args...)

			return
		}
		lm.logger.Info("Submit update completed successfully", args...)
	}(time.Now())

	return lm.svc.SubmitUpdate(ctx, rec)
}

func (lm *loggingMiddleware) TryAggregate(ctx context.Context) (snapshot fl.Snapshot, ok bool, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Bool("aggregated", ok),
		}
		if ok {
			args = append(args, slog.Uint64("model_version", snapshot.Version))
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Try aggregate failed", args...)

			return
		}
		lm.logger.Info("Try aggregate completed successfully", args...)
	}(time.Now())

	return lm.svc.TryAggregate(ctx)
}

func (lm *loggingMiddleware) PendingUpdates(ctx context.Context) (resp []fl.PendingBucket, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("buckets", len(resp)),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List pending updates failed", args...)

			return
		}
		lm.logger.Info("List pending updates completed successfully", args...)
	}(time.Now())

	return lm.svc.PendingUpdates(ctx)
}

func (lm *loggingMiddleware) DiscardUpdates(ctx context.Context, version uint64) (n int, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("model_version", version),
			slog.Int("discarded", n),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Discard updates failed", args...)

			return
		}
		lm.logger.Info("Discard updates completed successfully", args...)
	}(time.Now())

	return lm.svc.DiscardUpdates(ctx, version)
}
