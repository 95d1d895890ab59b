package writer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/David-Botos/orders-etl/pkg/converter"
	"github.com/David-Botos/orders-etl/pkg/model"
)

var fixedNow = time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)

func newTestWriter(t *testing.T, dir string) *Writer {
	t.Helper()
	w, err := NewWriter(dir, converter.NewTypeConverter(zap.NewNop()), zap.NewNop(),
		WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return w
}

func sampleTables() []*model.Table {
	amount := 12.5
	country := "US"
	orders := []model.CleanOrder{
		{OrderID: "1", UserID: "u1", Amount: &amount, IsNA: map[string]bool{"amount": false}},
		{OrderID: "2", UserID: "u2", IsNA: map[string]bool{"amount": true}},
		{OrderID: "3", UserID: "u1", IsNA: map[string]bool{"amount": true}},
	}
	users := []model.CleanUser{{UserID: "u1", Country: &country}}
	return []*model.Table{
		model.NewOrdersCleanTable(orders, []string{"amount"}),
		model.NewUsersTable(users, nil),
	}
}

func parquetRows(t *testing.T, path string) int64 {
	t.Helper()
	r, err := file.OpenParquetFile(path, false)
	require.NoError(t, err)
	defer r.Close()
	return r.NumRows()
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestWriteTablesMetadataMatchesFiles(t *testing.T) {
	dir := t.TempDir()
	w := newTestWriter(t, dir)

	meta, err := w.WriteTables(context.Background(), sampleTables())
	require.NoError(t, err)

	assert.Equal(t, fixedNow, meta.RunAt)
	require.Len(t, meta.Tables, 2)
	for name, summary := range meta.Tables {
		path := meta.Paths[name]
		assert.True(t, filepath.IsAbs(path))
		assert.Equal(t, int64(summary.Rows), parquetRows(t, path), name)
	}
	assert.Equal(t, 3, meta.Tables[model.TableOrdersClean].Rows)
	assert.Contains(t, meta.Tables[model.TableOrdersClean].Columns, "amount__isna")
	assert.ElementsMatch(t, []string{"orders_clean.parquet", "users.parquet"}, listDir(t, dir))
}

func TestWriteTablesEmptyTable(t *testing.T) {
	dir := t.TempDir()
	w := newTestWriter(t, dir)

	meta, err := w.WriteTables(context.Background(), []*model.Table{model.NewUsersTable(nil, nil)})
	require.NoError(t, err)
	assert.Equal(t, int64(0), parquetRows(t, meta.Paths[model.TableUsers]))
}

func TestWriteTablesIsAllOrNothing(t *testing.T) {
	dir := t.TempDir()
	w := newTestWriter(t, dir)

	previous := filepath.Join(dir, "orders_clean.parquet")
	require.NoError(t, os.WriteFile(previous, []byte("previous run"), 0o644))

	broken := &model.Table{
		Metadata: model.TableMetadata{
			Name:    model.TableUsers,
			Columns: []model.Column{{Name: "user_id", DataType: model.TypeString}},
		},
		Rows: []map[string]interface{}{{"user_id": nil}},
	}
	tables := []*model.Table{sampleTables()[0], broken}

	_, err := w.WriteTables(context.Background(), tables)
	require.Error(t, err)

	var writeErr *WriteError
	require.True(t, errors.As(err, &writeErr))
	assert.Equal(t, model.TableUsers, writeErr.Table)

	data, err := os.ReadFile(previous)
	require.NoError(t, err)
	assert.Equal(t, "previous run", string(data))
	assert.Equal(t, []string{"orders_clean.parquet"}, listDir(t, dir))
}

func TestWriteTablesUnknownTable(t *testing.T) {
	dir := t.TempDir()
	w := newTestWriter(t, dir)

	table := &model.Table{Metadata: model.TableMetadata{Name: "scratch"}}
	_, err := w.WriteTables(context.Background(), []*model.Table{table})

	var writeErr *WriteError
	require.True(t, errors.As(err, &writeErr))
	assert.Empty(t, listDir(t, dir))
}

func TestWriteTablesCancelled(t *testing.T) {
	dir := t.TempDir()
	w := newTestWriter(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.WriteTables(ctx, sampleTables())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, listDir(t, dir))
}

func TestWriteMetadataRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w := newTestWriter(t, dir)

	meta, err := w.WriteTables(context.Background(), sampleTables())
	require.NoError(t, err)
	meta.RunID = "run-1"

	path, err := w.WriteMetadata(meta)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(w.Dir(), MetadataFile), path)

	got, err := ReadMetadata(path)
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, meta.Tables, got.Tables)
	assert.Equal(t, meta.Paths, got.Paths)
	assert.True(t, meta.RunAt.Equal(got.RunAt))

	// a second run replaces the record
	meta.RunID = "run-2"
	_, err = w.WriteMetadata(meta)
	require.NoError(t, err)
	got, err = ReadMetadata(path)
	require.NoError(t, err)
	assert.Equal(t, "run-2", got.RunID)
	assert.NotContains(t, listDir(t, dir), MetadataFile+".tmp")
}
