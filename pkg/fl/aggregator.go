package fl

import (
	"context"
	"fmt"
	"math"

	"github.com/absmach/fedcoord/pkg/tensor"
)

// FedAvgAggregator averages updates weighted by their NumExamples. With Deltas
// set, updates are treated as differences and added onto the current weights.
type FedAvgAggregator struct {
	Deltas bool
}

func NewFedAvgAggregator(deltas bool) Aggregator {
	return &FedAvgAggregator{Deltas: deltas}
}

func (f *FedAvgAggregator) Aggregate(ctx context.Context, current WeightSet, updates []UpdateRecord) (WeightSet, error) {
	if len(updates) == 0 {
		return nil, ErrNoUpdates
	}

	total, err := totalExamples(updates)
	if err != nil {
		return nil, err
	}

	weights := make([]float64, len(updates))
	for i, u := range updates {
		weights[i] = float64(u.NumExamples) / float64(total)
	}

	return combine(ctx, current, updates, weights, f.Deltas)
}

// MeanAggregator gives every update the same weight.
type MeanAggregator struct {
	Deltas bool
}

func NewMeanAggregator(deltas bool) Aggregator {
	return &MeanAggregator{Deltas: deltas}
}

func (m *MeanAggregator) Aggregate(ctx context.Context, current WeightSet, updates []UpdateRecord) (WeightSet, error) {
	if len(updates) == 0 {
		return nil, ErrNoUpdates
	}

	weights := make([]float64, len(updates))
	for i := range weights {
		weights[i] = 1 / float64(len(updates))
	}

	return combine(ctx, current, updates, weights, m.Deltas)
}

// CheckTopology verifies that every update carries tensors laid out exactly
// like reference.
func CheckTopology(reference WeightSet, updates []UpdateRecord) error {
	for _, u := range updates {
		if len(u.Vars) != len(reference) {
			return &AggregationError{
				ClientID: u.ClientID,
				Index:    -1,
				Err:      fmt.Errorf("%w: %d tensors, want %d", ErrTopologyMismatch, len(u.Vars), len(reference)),
			}
		}
		for i, t := range u.Vars {
			if !reference[i].SameLayout(t) {
				return &AggregationError{
					ClientID: u.ClientID,
					Index:    i,
					Err:      fmt.Errorf("%w: got %v, want %v", ErrTopologyMismatch, t, reference[i]),
				}
			}
		}
	}

	return nil
}

func combine(ctx context.Context, current WeightSet, updates []UpdateRecord, weights []float64, deltas bool) (WeightSet, error) {
	reference := current
	if len(reference) == 0 {
		reference = updates[0].Vars
	}
	if err := CheckTopology(reference, updates); err != nil {
		return nil, err
	}

	out := make(WeightSet, len(reference))
	for i, ref := range reference {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		acc := make([]float64, ref.NumElements())
		for k, u := range updates {
			for j, v := range u.Vars[i].Values() {
				acc[j] += weights[k] * v
			}
		}
		if deltas && len(current) > 0 {
			for j, v := range current[i].Values() {
				acc[j] += v
			}
		}
		if ref.DType() == tensor.Bool {
			for j := range acc {
				acc[j] = math.Round(acc[j])
			}
		}

		t, err := tensor.FromValues(ref.DType(), acc, ref.Shape())
		if err != nil {
			return nil, &AggregationError{Index: i, Err: err}
		}
		out[i] = t
	}

	return out, nil
}

func totalExamples(updates []UpdateRecord) (int, error) {
	var total int
	for _, u := range updates {
		if u.NumExamples <= 0 {
			return 0, &AggregationError{
				ClientID: u.ClientID,
				Index:    -1,
				Err:      fmt.Errorf("%w: num_examples %d", ErrInvalidUpdate, u.NumExamples),
			}
		}
		if total > math.MaxInt-u.NumExamples {
			return 0, ErrOverflow
		}
		total += u.NumExamples
	}

	return total, nil
}
