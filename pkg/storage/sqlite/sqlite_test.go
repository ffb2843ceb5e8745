package sqlite_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/absmach/fedcoord/pkg/codec"
	"github.com/absmach/fedcoord/pkg/fl"
	"github.com/absmach/fedcoord/pkg/storage/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDB *sqlite.Database

func TestMain(m *testing.M) {
	dbPath := filepath.Join(os.TempDir(), "test_"+uuid.NewString()+".db")

	var err error
	testDB, err = sqlite.NewDatabase(dbPath)
	if err != nil {
		panic(err)
	}

	code := m.Run()

	testDB.Close()
	os.Remove(dbPath)

	os.Exit(code)
}

func TestTelemetryRepository(t *testing.T) {
	repo := sqlite.NewTelemetryRepository(testDB)
	ctx := context.Background()

	withOutput := fl.DataRecord{
		ID:           uuid.NewString(),
		ClientID:     "client-a",
		ModelVersion: 3,
		Input:        codec.TensorJSON{Values: []float64{0.5, 1.5}, Shape: []int{1, 2}, DType: "float32"},
		Target:       codec.TensorJSON{Values: []float64{1}, Shape: []int{1}, DType: "int32"},
		Output:       &codec.TensorJSON{Values: []float64{0.9}, Shape: []int{1}, DType: "float32"},
		Timestamp:    time.UnixMilli(1_700_000_000_000).UTC(),
		Metadata:     map[string]any{"label": "cat"},
	}
	bare := fl.DataRecord{
		ID:           uuid.NewString(),
		ClientID:     "client-b",
		ModelVersion: 4,
		Input:        codec.TensorJSON{Values: []float64{1}, Shape: []int{1}},
		Target:       codec.TensorJSON{Values: []float64{0}, Shape: []int{1}, DType: "bool"},
		Timestamp:    time.UnixMilli(1_700_000_000_500).UTC(),
	}

	require.NoError(t, repo.Append(ctx, withOutput))
	require.NoError(t, repo.Append(ctx, bare))

	cases := []struct {
		desc   string
		offset uint64
		limit  uint64
		want   []fl.DataRecord
	}{
		{desc: "all records in append order", offset: 0, limit: 10, want: []fl.DataRecord{withOutput, bare}},
		{desc: "second record only", offset: 1, limit: 10, want: []fl.DataRecord{bare}},
		{desc: "offset past end", offset: 5, limit: 10, want: []fl.DataRecord{}},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			got, total, err := repo.List(ctx, tc.offset, tc.limit)
			require.NoError(t, err)
			assert.Equal(t, uint64(2), total)
			require.Len(t, got, len(tc.want))
			for i := range tc.want {
				assert.Equal(t, tc.want[i].ID, got[i].ID)
				assert.Equal(t, tc.want[i].Input, got[i].Input)
				assert.Equal(t, tc.want[i].Output, got[i].Output)
				assert.Equal(t, tc.want[i].Metadata, got[i].Metadata)
				assert.True(t, tc.want[i].Timestamp.Equal(got[i].Timestamp))
			}
		})
	}

	err := repo.Append(ctx, bare)
	assert.ErrorIs(t, err, sqlite.ErrCreate)
}
