package fl

import (
	"errors"
	"fmt"
)

var (
	ErrNoUpdates         = errors.New("no updates provided for aggregation")
	ErrOverflow          = errors.New("example count overflow during aggregation")
	ErrAggregation       = errors.New("aggregation failed")
	ErrTopologyMismatch  = errors.New("update does not match model topology")
	ErrInvalidUpdate     = errors.New("invalid update")
	ErrModelNotFound     = errors.New("model version not found")
	ErrAggregatorFailure = errors.New("aggregator module failed")
)

// AggregationError describes why combining the updates of one version failed.
// Index is the offending tensor position, or -1 when the failure is not tied
// to a single tensor.
type AggregationError struct {
	Version  uint64
	ClientID string
	Index    int
	Err      error
}

func (e *AggregationError) Error() string {
	switch {
	case e.ClientID != "" && e.Index >= 0:
		return fmt.Sprintf("aggregation of version %d failed: client %s, tensor %d: %v", e.Version, e.ClientID, e.Index, e.Err)
	case e.ClientID != "":
		return fmt.Sprintf("aggregation of version %d failed: client %s: %v", e.Version, e.ClientID, e.Err)
	default:
		return fmt.Sprintf("aggregation of version %d failed: %v", e.Version, e.Err)
	}
}

func (e *AggregationError) Unwrap() []error {
	return []error{ErrAggregation, e.Err}
}
