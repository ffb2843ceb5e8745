package badger_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/absmach/fedcoord/pkg/codec"
	"github.com/absmach/fedcoord/pkg/fl"
	"github.com/absmach/fedcoord/pkg/storage/badger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDB *badger.Database

func TestMain(m *testing.M) {
	dbPath := filepath.Join(os.TempDir(), "badger_test_"+uuid.NewString())

	var err error
	testDB, err = badger.NewDatabase(dbPath)
	if err != nil {
		panic(err)
	}

	code := m.Run()

	testDB.Close()
	os.RemoveAll(dbPath)

	os.Exit(code)
}

func testRecord(i int) fl.DataRecord {
	return fl.DataRecord{
		ID:           uuid.NewString(),
		ClientID:     fmt.Sprintf("client-%d", i),
		ModelVersion: uint64(i),
		Input:        codec.TensorJSON{Values: []float64{float64(i), 1}, Shape: []int{2}, DType: "float32"},
		Target:       codec.TensorJSON{Values: []float64{1}, Shape: []int{1}, DType: "int32"},
		Timestamp:    time.UnixMilli(int64(1_700_000_000_000 + i)).UTC(),
		Metadata:     map[string]any{"source": "test"},
	}
}

func TestTelemetryRepository(t *testing.T) {
	repo := badger.NewTelemetryRepository(testDB)
	ctx := context.Background()

	var want []fl.DataRecord
	for i := range 12 {
		rec := testRecord(i)
		require.NoError(t, repo.Append(ctx, rec))
		want = append(want, rec)
	}

	cases := []struct {
		desc   string
		offset uint64
		limit  uint64
		want   []fl.DataRecord
	}{
		{desc: "first page", offset: 0, limit: 5, want: want[:5]},
		{desc: "middle page", offset: 5, limit: 5, want: want[5:10]},
		{desc: "last partial page", offset: 10, limit: 5, want: want[10:]},
		{desc: "offset past end", offset: 20, limit: 5, want: nil},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			got, total, err := repo.List(ctx, tc.offset, tc.limit)
			require.NoError(t, err)
			assert.Equal(t, uint64(len(want)), total)
			require.Len(t, got, len(tc.want))
			for i := range tc.want {
				assert.Equal(t, tc.want[i].ID, got[i].ID)
				assert.Equal(t, tc.want[i].ClientID, got[i].ClientID)
				assert.Equal(t, tc.want[i].Input, got[i].Input)
				assert.True(t, tc.want[i].Timestamp.Equal(got[i].Timestamp))
			}
		})
	}
}
