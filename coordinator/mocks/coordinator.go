package mocks

import (
	"context"

	"github.com/absmach/fedcoord/coordinator"
	"github.com/absmach/fedcoord/pkg/fl"
	"github.com/stretchr/testify/mock"
)

var _ coordinator.Service = (*MockService)(nil)

// MockService is a mock implementation of the coordinator.Service interface
type MockService struct {
	mock.Mock
}

func (m *MockService) CurrentVars(ctx context.Context) fl.WeightSet {
	args := m.Called(ctx)
	return args.Get(0).(fl.WeightSet)
}

func (m *MockService) CurrentVersion(ctx context.Context) uint64 {
	args := m.Called(ctx)
	return args.Get(0).(uint64)
}

func (m *MockService) Snapshot(ctx context.Context) fl.Snapshot {
	args := m.Called(ctx)
	return args.Get(0).(fl.Snapshot)
}

func (m *MockService) Hyperparams(ctx context.Context) map[string]any {
	args := m.Called(ctx)
	return args.Get(0).(map[string]any)
}

func (m *MockService) SetHyperparams(ctx context.Context, params map[string]any) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func (m *MockService) RecordTelemetry(ctx context.Context, rec fl.DataRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

// ListTelemetry lists stored data records with pagination
func (m *MockService) ListTelemetry(ctx context.Context, offset, limit uint64) (fl.DataRecordPage, error) {
	args := m.Called(ctx, offset, limit)
	return args.Get(0).(fl.DataRecordPage), args.Error(1)
}

func (m *MockService) SubmitUpdate(ctx context.Context, rec fl.UpdateRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

// TryAggregate runs aggregation when the threshold is met
func (m *MockService) TryAggregate(ctx context.Context) (fl.Snapshot, bool, error) {
	args := m.Called(ctx)
	return args.Get(0).(fl.Snapshot), args.Bool(1), args.Error(2)
}

func (m *MockService) PendingUpdates(ctx context.Context) ([]fl.PendingBucket, error) {
	args := m.Called(ctx)
	return args.Get(0).([]fl.PendingBucket), args.Error(1)
}

func (m *MockService) DiscardUpdates(ctx context.Context, version uint64) (int, error) {
	args := m.Called(ctx, version)
	return args.Int(0), args.Error(1)
}
