package fl

import (
	"context"
	"time"

	"github.com/absmach/fedcoord/pkg/codec"
	"github.com/absmach/fedcoord/pkg/tensor"
)

// WeightSet is the ordered list of tensors making up one model generation.
type WeightSet []*tensor.Tensor

// Snapshot pairs a model version with its weights. Snapshots are never
// mutated after creation; a new version replaces the whole value.
type Snapshot struct {
	Version uint64    `json:"model_version"`
	Vars    WeightSet `json:"-"`
}

// UpdateRecord is one client's contribution trained against ModelVersion.
type UpdateRecord struct {
	ClientID     string    `json:"client_id"`
	ModelVersion uint64    `json:"model_version"`
	NumExamples  int       `json:"num_examples"`
	Vars         WeightSet `json:"-"`
	ReceivedAt   time.Time `json:"received_at"`
}

// DataRecord is a telemetry sample reported by a client. It is stored and
// listed but never read by aggregation.
type DataRecord struct {
	ID           string            `json:"id"`
	ClientID     string            `json:"client_id"`
	ModelVersion uint64            `json:"model_version"`
	Input        codec.TensorJSON  `json:"input"`
	Target       codec.TensorJSON  `json:"target"`
	Output       *codec.TensorJSON `json:"output,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
	Metadata     map[string]any    `json:"metadata,omitempty"`
}

// DataRecordPage is one page of stored telemetry.
type DataRecordPage struct {
	Offset  uint64       `json:"offset"`
	Limit   uint64       `json:"limit"`
	Total   uint64       `json:"total"`
	Records []DataRecord `json:"records"`
}

// PendingBucket summarizes the buffered updates for one model version.
type PendingBucket struct {
	Version  uint64   `json:"model_version"`
	Count    int      `json:"count"`
	Eligible bool     `json:"eligible"`
	Clients  []string `json:"clients"`
}

// Aggregator combines buffered updates into the next WeightSet.
type Aggregator interface {
	Aggregate(ctx context.Context, current WeightSet, updates []UpdateRecord) (WeightSet, error)
}
