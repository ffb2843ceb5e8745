package sdk_test

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/absmach/fedcoord/coordinator"
	"github.com/absmach/fedcoord/coordinator/api"
	"github.com/absmach/fedcoord/dispatcher"
	"github.com/absmach/fedcoord/pkg/fl"
	"github.com/absmach/fedcoord/pkg/sdk"
	"github.com/absmach/fedcoord/pkg/storage"
	"github.com/absmach/fedcoord/pkg/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (sdk.SDK, coordinator.Service) {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)

	repos, err := storage.NewRepositories(storage.Config{Type: "memory"})
	require.NoError(t, err)
	w, err := tensor.FromFloat32([]float32{1, 2}, tensor.Shape{2})
	require.NoError(t, err)

	svc := coordinator.NewService(coordinator.Config{MinUpdatesPerVersion: 5}, fl.NewFedAvgAggregator(false), repos.Telemetry, nil, fl.Snapshot{Vars: fl.WeightSet{w}}, map[string]any{"epochs": 1}, logger)
	d := dispatcher.New(ctx, dispatcher.Config{QueueSize: 4}, svc, logger)
	t.Cleanup(func() { _ = d.Close() })

	srv := httptest.NewServer(api.MakeHandler(svc, d, nil, logger, "sdk-test"))
	t.Cleanup(srv.Close)

	return sdk.NewSDK(sdk.Config{CoordinatorURL: srv.URL}), svc
}

func TestModelAndHyperparams(t *testing.T) {
	s, _ := setup(t)

	m, err := s.Model()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), m.ModelVersion)
	require.Len(t, m.Vars, 1)
	assert.Equal(t, []float64{1, 2}, m.Vars[0].Values)
	assert.Equal(t, []int{2}, m.Vars[0].Shape)

	params, err := s.SetHyperparams(map[string]any{"epochs": 3, "optimizer": "adam"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"epochs": float64(3), "optimizer": "adam"}, params)

	m, err = s.Model()
	require.NoError(t, err)
	assert.Equal(t, "adam", m.Hyperparams["optimizer"])
}

func TestUpdatesLifecycle(t *testing.T) {
	s, svc := setup(t)
	ctx := context.Background()

	w, err := tensor.FromFloat32([]float32{3, 4}, tensor.Shape{2})
	require.NoError(t, err)
	require.NoError(t, svc.SubmitUpdate(ctx, fl.UpdateRecord{ClientID: "a", ModelVersion: 0, NumExamples: 2, Vars: fl.WeightSet{w}}))

	pending, err := s.PendingUpdates()
	require.NoError(t, err)
	require.Len(t, pending.Buckets, 1)
	assert.True(t, pending.Buckets[0].Eligible)
	assert.Equal(t, []string{"a"}, pending.Buckets[0].Clients)

	n, err := s.DiscardUpdates(0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.DiscardUpdates(0)
	assert.Error(t, err)
}

func TestSessionsAndTelemetry(t *testing.T) {
	s, svc := setup(t)

	sessions, err := s.Sessions()
	require.NoError(t, err)
	assert.Equal(t, 0, sessions.Total)

	require.NoError(t, svc.RecordTelemetry(context.Background(), fl.DataRecord{ClientID: "a"}))
	page, err := s.Telemetry(0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), page.Total)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "a", page.Records[0].ClientID)

	_, err = s.Telemetry(0, 1000)
	assert.Error(t, err)
}
