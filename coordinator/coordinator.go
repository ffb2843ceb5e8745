// Package coordinator owns the authoritative model: its version, its weights,
// the hyperparameters forwarded to clients and the per-version buffer of
// client updates waiting to be aggregated.
package coordinator

import (
	"context"
	"time"

	"github.com/absmach/fedcoord/pkg/fl"
)

type Config struct {
	// MinUpdatesPerVersion is the number of updates for the current version
	// needed before aggregation runs.
	MinUpdatesPerVersion int `env:"COORDINATOR_MIN_UPDATES"         envDefault:"3"`
	// AggregationTimeout bounds a single combine step. Zero disables the bound.
	AggregationTimeout time.Duration `env:"COORDINATOR_AGGREGATION_TIMEOUT" envDefault:"30s"`
	// RetainedVersions is how many versions behind current a stale bucket is
	// kept for inspection. Zero keeps stale buckets until discarded.
	RetainedVersions uint64 `env:"COORDINATOR_RETAINED_VERSIONS" envDefault:"10"`
}

type Service interface {
	// CurrentVars returns the weights of the current version.
	CurrentVars(ctx context.Context) fl.WeightSet
	CurrentVersion(ctx context.Context) uint64
	// Snapshot returns the current version and its weights as one consistent pair.
	Snapshot(ctx context.Context) fl.Snapshot

	Hyperparams(ctx context.Context) map[string]any
	// SetHyperparams replaces the hyperparameters. They are not versioned.
	SetHyperparams(ctx context.Context, params map[string]any) error

	// RecordTelemetry stores a client data record. It never waits on aggregation.
	RecordTelemetry(ctx context.Context, rec fl.DataRecord) error
	ListTelemetry(ctx context.Context, offset, limit uint64) (fl.DataRecordPage, error)

	// SubmitUpdate buffers rec under the version it was trained against.
	// Updates for versions other than the current one are kept but never aggregated.
	SubmitUpdate(ctx context.Context, rec fl.UpdateRecord) error
	// TryAggregate combines the current version's buffer once it holds enough
	// updates. It returns the snapshot it published and true, or false when the
	// threshold is not met. On error the state and the buffer are left untouched.
	TryAggregate(ctx context.Context) (fl.Snapshot, bool, error)

	PendingUpdates(ctx context.Context) ([]fl.PendingBucket, error)
	// DiscardUpdates drops the buffer for version and returns how many updates it held.
	DiscardUpdates(ctx context.Context, version uint64) (int, error)
}
