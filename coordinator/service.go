package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	pkgerrors "github.com/absmach/fedcoord/pkg/errors"
	"github.com/absmach/fedcoord/pkg/fl"
	"github.com/absmach/fedcoord/pkg/storage"
	"github.com/google/uuid"
)

type service struct {
	cfg        Config
	aggregator fl.Aggregator
	telemetry  storage.TelemetryRepository
	models     fl.ModelStore
	logger     *slog.Logger

	snapshot atomic.Pointer[fl.Snapshot]

	paramsMu    sync.RWMutex
	hyperparams map[string]any

	// mu serializes every change to pending and to snapshot.
	mu      sync.Mutex
	pending map[uint64][]fl.UpdateRecord
}

// NewService creates a coordinator starting from initial. models may be nil,
// in which case aggregated versions are not persisted.
func NewService(cfg Config, aggregator fl.Aggregator, telemetry storage.TelemetryRepository, models fl.ModelStore, initial fl.Snapshot, hyperparams map[string]any, logger *slog.Logger) Service {
	if cfg.MinUpdatesPerVersion < 1 {
		cfg.MinUpdatesPerVersion = 1
	}

	svc := &service{
		cfg:         cfg,
		aggregator:  aggregator,
		telemetry:   telemetry,
		models:      models,
		logger:      logger,
		hyperparams: maps.Clone(hyperparams),
		pending:     make(map[uint64][]fl.UpdateRecord),
	}
	initial.Vars = slices.Clone(initial.Vars)
	svc.snapshot.Store(&initial)

	return svc
}

// InitialSnapshot picks the starting model: the newest stored version when
// the store has one, otherwise vars at version zero.
func InitialSnapshot(models fl.ModelStore, vars fl.WeightSet) (fl.Snapshot, error) {
	if models != nil {
		latest, err := models.Latest()
		switch {
		case err == nil:
			return latest, nil
		case !errors.Is(err, fl.ErrModelNotFound):
			return fl.Snapshot{}, fmt.Errorf("failed to restore model: %w", err)
		}
	}

	return fl.Snapshot{Version: 0, Vars: vars}, nil
}

func (svc *service) CurrentVars(_ context.Context) fl.WeightSet {
	return slices.Clone(svc.snapshot.Load().Vars)
}

func (svc *service) CurrentVersion(_ context.Context) uint64 {
	return svc.snapshot.Load().Version
}

func (svc *service) Snapshot(_ context.Context) fl.Snapshot {
	s := svc.snapshot.Load()

	return fl.Snapshot{Version: s.Version, Vars: slices.Clone(s.Vars)}
}

func (svc *service) Hyperparams(_ context.Context) map[string]any {
	svc.paramsMu.RLock()
	defer svc.paramsMu.RUnlock()

	return maps.Clone(svc.hyperparams)
}

func (svc *service) SetHyperparams(_ context.Context, params map[string]any) error {
	svc.paramsMu.Lock()
	defer svc.paramsMu.Unlock()

	svc.hyperparams = maps.Clone(params)

	return nil
}

func (svc *service) RecordTelemetry(ctx context.Context, rec fl.DataRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	return svc.telemetry.Append(ctx, rec)
}

func (svc *service) ListTelemetry(ctx context.Context, offset, limit uint64) (fl.DataRecordPage, error) {
	records, total, err := svc.telemetry.List(ctx, offset, limit)
	if err != nil {
		return fl.DataRecordPage{}, err
	}

	return fl.DataRecordPage{
		Offset:  offset,
		Limit:   limit,
		Total:   total,
		Records: records,
	}, nil
}

func (svc *service) SubmitUpdate(_ context.Context, rec fl.UpdateRecord) error {
	if err := validateUpdate(rec); err != nil {
		return err
	}
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}
	rec.Vars = slices.Clone(rec.Vars)

	svc.mu.Lock()
	defer svc.mu.Unlock()

	svc.pending[rec.ModelVersion] = append(svc.pending[rec.ModelVersion], rec)

	return nil
}

func (svc *service) TryAggregate(ctx context.Context) (fl.Snapshot, bool, error) {
	next, ok, err := svc.aggregate(ctx)
	if err != nil || !ok {
		return fl.Snapshot{}, ok, err
	}

	if svc.models != nil {
		if err := svc.models.SaveModel(next); err != nil {
			svc.logger.Warn("failed to save aggregated model",
				slog.Uint64("model_version", next.Version),
				slog.Any("error", err),
			)
		}
	}

	return fl.Snapshot{Version: next.Version, Vars: slices.Clone(next.Vars)}, true, nil
}

// aggregate runs the threshold check, the combine step and the version
// advance as one critical section.
func (svc *service) aggregate(ctx context.Context) (fl.Snapshot, bool, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	current := svc.snapshot.Load()
	bucket := svc.pending[current.Version]
	if len(bucket) < svc.cfg.MinUpdatesPerVersion {
		return fl.Snapshot{}, false, nil
	}

	if svc.cfg.AggregationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, svc.cfg.AggregationTimeout)
		defer cancel()
	}

	vars, err := svc.aggregator.Aggregate(ctx, current.Vars, slices.Clone(bucket))
	if err != nil {
		return fl.Snapshot{}, false, asAggregationError(current.Version, err)
	}

	next := &fl.Snapshot{Version: current.Version + 1, Vars: vars}
	svc.snapshot.Store(next)
	delete(svc.pending, current.Version)
	svc.prune(next.Version)

	return *next, true, nil
}

func (svc *service) PendingUpdates(_ context.Context) ([]fl.PendingBucket, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	current := svc.snapshot.Load().Version
	buckets := make([]fl.PendingBucket, 0, len(svc.pending))
	for version, updates := range svc.pending {
		clients := make([]string, len(updates))
		for i, u := range updates {
			clients[i] = u.ClientID
		}
		buckets = append(buckets, fl.PendingBucket{
			Version:  version,
			Count:    len(updates),
			Eligible: version == current,
			Clients:  clients,
		})
	}
	slices.SortFunc(buckets, func(a, b fl.PendingBucket) int {
		switch {
		case a.Version < b.Version:
			return -1
		case a.Version > b.Version:
			return 1
		default:
			return 0
		}
	})

	return buckets, nil
}

func (svc *service) DiscardUpdates(_ context.Context, version uint64) (int, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	updates, ok := svc.pending[version]
	if !ok {
		return 0, fmt.Errorf("%w: no pending updates for version %d", pkgerrors.ErrNotFound, version)
	}
	delete(svc.pending, version)

	return len(updates), nil
}

// prune drops stale buckets more than RetainedVersions behind current.
// Callers must hold mu.
func (svc *service) prune(current uint64) {
	if svc.cfg.RetainedVersions == 0 || current <= svc.cfg.RetainedVersions {
		return
	}
	oldest := current - svc.cfg.RetainedVersions
	for version := range svc.pending {
		if version < oldest {
			delete(svc.pending, version)
		}
	}
}

func validateUpdate(rec fl.UpdateRecord) error {
	if rec.NumExamples <= 0 {
		return fmt.Errorf("%w: num_examples must be positive, got %d", fl.ErrInvalidUpdate, rec.NumExamples)
	}
	if len(rec.Vars) == 0 {
		return fmt.Errorf("%w: no vars", fl.ErrInvalidUpdate)
	}
	for i, t := range rec.Vars {
		if t == nil {
			return fmt.Errorf("%w: tensor %d is nil", fl.ErrInvalidUpdate, i)
		}
	}

	return nil
}

func asAggregationError(version uint64, err error) error {
	var aggErr *fl.AggregationError
	if errors.As(err, &aggErr) {
		aggErr.Version = version

		return aggErr
	}

	return &fl.AggregationError{Version: version, Index: -1, Err: err}
}
