package fl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/absmach/fedcoord/pkg/codec"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
)

// WasmAggregator runs a WASI command module to combine updates. The module
// reads a wasmInput document on stdin and writes a wasmOutput document on
// stdout. Each call gets a fresh module instance.
type WasmAggregator struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
}

type wasmUpdate struct {
	ClientID    string             `json:"client_id"`
	NumExamples int                `json:"num_examples"`
	Vars        []codec.TensorJSON `json:"vars"`
}

type wasmInput struct {
	Version uint64             `json:"model_version"`
	Current []codec.TensorJSON `json:"current"`
	Updates []wasmUpdate       `json:"updates"`
}

type wasmOutput struct {
	Vars []codec.TensorJSON `json:"vars"`
}

func NewWasmAggregator(ctx context.Context, wasmPath string) (*WasmAggregator, error) {
	binary, err := os.ReadFile(wasmPath)
	if err != nil {
		return nil, fmt.Errorf("wasm aggregator file not found: %w", err)
	}

	r := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCloseOnContextDone(true))
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		return nil, errors.Join(r.Close(ctx), fmt.Errorf("failed to instantiate WASI: %w", err))
	}

	compiled, err := r.CompileModule(ctx, binary)
	if err != nil {
		return nil, errors.Join(r.Close(ctx), fmt.Errorf("failed to compile wasm aggregator: %w", err))
	}

	return &WasmAggregator{
		runtime:  r,
		compiled: compiled,
	}, nil
}

func (w *WasmAggregator) Aggregate(ctx context.Context, current WeightSet, updates []UpdateRecord) (WeightSet, error) {
	if len(updates) == 0 {
		return nil, ErrNoUpdates
	}

	reference := current
	if len(reference) == 0 {
		reference = updates[0].Vars
	}
	if err := CheckTopology(reference, updates); err != nil {
		return nil, err
	}

	input, err := buildWasmInput(current, updates)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal updates: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cfg := wazero.NewModuleConfig().
		WithName("").
		WithArgs("aggregate").
		WithStdin(bytes.NewReader(data)).
		WithStdout(&stdout).
		WithStderr(&stderr)

	mod, err := w.runtime.InstantiateModule(ctx, w.compiled, cfg)
	if mod != nil {
		defer mod.Close(ctx)
	}
	if err != nil {
		var exitErr *sys.ExitError
		if !errors.As(err, &exitErr) || exitErr.ExitCode() != 0 {
			return nil, fmt.Errorf("%w: %w: %s", ErrAggregatorFailure, err, strings.TrimSpace(stderr.String()))
		}
	}

	var out wasmOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal aggregated model: %w", ErrAggregatorFailure, err)
	}

	vars, err := codec.FromJSONAll(out.Vars)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAggregatorFailure, err)
	}
	if err := CheckTopology(reference, []UpdateRecord{{ClientID: "aggregator", Vars: vars}}); err != nil {
		return nil, err
	}

	return vars, nil
}

func (w *WasmAggregator) Close(ctx context.Context) error {
	return w.runtime.Close(ctx)
}

func buildWasmInput(current WeightSet, updates []UpdateRecord) (wasmInput, error) {
	cur, err := codec.ToJSONAll(current)
	if err != nil {
		return wasmInput{}, err
	}

	input := wasmInput{
		Current: cur,
		Updates: make([]wasmUpdate, len(updates)),
	}
	for i, u := range updates {
		vars, err := codec.ToJSONAll(u.Vars)
		if err != nil {
			return wasmInput{}, &AggregationError{ClientID: u.ClientID, Index: -1, Err: err}
		}
		input.Version = u.ModelVersion
		input.Updates[i] = wasmUpdate{
			ClientID:    u.ClientID,
			NumExamples: u.NumExamples,
			Vars:        vars,
		}
	}

	return input, nil
}
