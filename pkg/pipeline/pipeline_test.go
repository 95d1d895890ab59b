package pipeline

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

	"github.com/David-Botos/orders-etl/pkg/config"
	"github.com/David-Botos/orders-etl/pkg/loader"
	"github.com/David-Botos/orders-etl/pkg/model"
	"github.com/David-Botos/orders-etl/pkg/writer"
)

const (
	scenarioOrders = "order_id,user_id,amount,quantity,status,created_at\n" +
		"1,1,10,1,refunded,2024-01-05\n" +
		"2,2,1000,2,paid,\n"
	scenarioUsers = "user_id,country,signup_date\n" +
		"1,US,2023-12-01\n"
)

var fixedNow = time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC)

func writeInputs(t *testing.T, orders, users string) config.Config {
	t.Helper()
	root := t.TempDir()
	raw := filepath.Join(root, "raw")
	require.NoError(t, os.MkdirAll(raw, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(raw, "orders.csv"), []byte(orders), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(raw, "users.csv"), []byte(users), 0o644))
	return config.Default().WithPaths(raw, filepath.Join(root, "processed"))
}

func newTestPipeline(t *testing.T, cfg config.Config) *Pipeline {
	t.Helper()
	p, err := New(cfg, zap.NewNop(),
		WithClock(func() time.Time { return fixedNow }),
		WithRunID(func() string { return "test-run" }))
	require.NoError(t, err)
	return p
}

func strPtr(s string) *string { return &s }
func f64(v float64) *float64  { return &v }

func TestTransformScenario(t *testing.T) {
	p := newTestPipeline(t, config.Default())
	orders := []model.RawOrder{
		{OrderID: "1", UserID: "1", Amount: f64(10), Status: strPtr("refunded"), CreatedAt: strPtr("2024-01-05")},
		{OrderID: "2", UserID: "2", Amount: f64(1000), Status: strPtr("paid")},
	}
	users := []model.RawUser{{UserID: "1", Country: strPtr("US")}}

	out, err := p.Transform(context.Background(), orders, users)
	require.NoError(t, err)

	require.Len(t, out.Analytics, 2)
	first, second := out.Analytics[0], out.Analytics[1]

	assert.Equal(t, "refund", *first.StatusClean)
	assert.Equal(t, "US", *first.Country)
	assert.Equal(t, "2024-01", *first.Month)

	assert.Nil(t, second.Country)
	assert.Nil(t, second.Month)
	assert.True(t, out.Orders[1].IsNA["created_at"])
	assert.False(t, out.Orders[0].IsNA["created_at"])

	assert.InDelta(t, 0.5, out.Join.MatchRate, 1e-12)
	assert.Equal(t, 1, out.MissingCreatedAt)

	// two amounts are not enough for quartiles
	require.Len(t, out.Outliers, 1)
	assert.False(t, out.Outliers[0].Sufficient)
	assert.Equal(t, 1000.0, *second.Outliers["amount"].Winsor)
	assert.False(t, second.Outliers["amount"].IsOutlier)

	kinds := map[model.WarningKind]int{}
	for _, w := range out.Warnings {
		kinds[w.Kind]++
	}
	assert.Equal(t, 1, kinds[model.WarningInsufficientData])
	assert.Zero(t, kinds[model.WarningJoinIntegrity])

	// inputs are untouched
	assert.Equal(t, "refunded", *orders[0].Status)
}

func TestTransformDuplicateUsersWarns(t *testing.T) {
	p := newTestPipeline(t, config.Default())
	orders := []model.RawOrder{{OrderID: "1", UserID: "1", Amount: f64(5)}}
	users := []model.RawUser{
		{UserID: "1", Country: strPtr("us")},
		{UserID: "1", Country: strPtr("ca")},
	}

	out, err := p.Transform(context.Background(), orders, users)
	require.NoError(t, err)

	require.Len(t, out.Analytics, 1)
	assert.Equal(t, "US", *out.Analytics[0].Country)

	var join, qual int
	for _, w := range out.Warnings {
		switch w.Kind {
		case model.WarningJoinIntegrity:
			join++
		case model.WarningQuality:
			qual++
		}
	}
	assert.Equal(t, 1, join)
	assert.Equal(t, 1, qual)
}

func TestRunEndToEnd(t *testing.T) {
	cfg := writeInputs(t, scenarioOrders, scenarioUsers)
	p := newTestPipeline(t, cfg)

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "test-run", result.RunID)
	assert.Equal(t, filepath.Join(p.writer.Dir(), writer.MetadataFile), result.MetadataPath)

	meta, err := writer.ReadMetadata(result.MetadataPath)
	require.NoError(t, err)

	assert.Equal(t, "test-run", meta.RunID)
	assert.True(t, fixedNow.Equal(meta.RunAt))
	require.NotNil(t, meta.MatchRate)
	assert.InDelta(t, 0.5, *meta.MatchRate, 1e-12)
	assert.Equal(t, 1, meta.MissingCreatedAt)
	assert.Equal(t, 1, meta.CleaningOperations[model.OpStatusNormalized])
	assert.Contains(t, meta.OutlierFences, "amount")
	assert.Equal(t, model.ColumnMissingness{Missing: 1, Fraction: 0.5}, meta.Missingness["created_at"])
	assert.NotEmpty(t, meta.Warnings)

	for _, name := range []string{model.TableOrdersClean, model.TableUsers, model.TableAnalytics} {
		summary, ok := meta.Tables[name]
		require.True(t, ok, name)
		path := meta.Paths[name]
		assert.True(t, filepath.IsAbs(path))

		r, err := file.OpenParquetFile(path, false)
		require.NoError(t, err)
		assert.Equal(t, int64(summary.Rows), r.NumRows(), name)
		require.NoError(t, r.Close())
	}
	assert.Equal(t, 2, meta.Tables[model.TableAnalytics].Rows)
	assert.Equal(t, 1, meta.Tables[model.TableUsers].Rows)
	assert.Contains(t, meta.Tables[model.TableAnalytics].Columns, "amount_winsor")
	assert.Contains(t, meta.Tables[model.TableAnalytics].Columns, "amount__is_outlier")
	assert.NotContains(t, meta.Tables[model.TableOrdersClean].Columns, "country")
}

func TestRunIsRepeatable(t *testing.T) {
	cfg := writeInputs(t, scenarioOrders, scenarioUsers)
	p := newTestPipeline(t, cfg)

	first, err := p.Run(context.Background())
	require.NoError(t, err)
	second, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.Metadata.Tables, second.Metadata.Tables)
	assert.Equal(t, first.Metadata.Paths, second.Metadata.Paths)
}

func TestRunSchemaErrorWritesNothing(t *testing.T) {
	cfg := writeInputs(t, "order_id,user_id,amount\n1,1,10\n", scenarioUsers)
	p := newTestPipeline(t, cfg)

	_, err := p.Run(context.Background())
	require.Error(t, err)

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageLoad, stageErr.Stage)
	assert.Equal(t, ErrorCategorySchema, stageErr.Category)

	var schemaErr *loader.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.ElementsMatch(t, []string{"quantity", "status", "created_at"}, schemaErr.Missing)

	_, statErr := os.Stat(cfg.ProcessedDir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunParseError(t *testing.T) {
	orders := "order_id,user_id,amount,quantity,status,created_at\n1,1,ten,1,paid,2024-01-01\n"
	cfg := writeInputs(t, orders, scenarioUsers)
	p := newTestPipeline(t, cfg)

	_, err := p.Run(context.Background())

	var parseErr *loader.ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "amount", parseErr.Column)
	assert.Equal(t, ErrorCategoryParse, CategorizeError(err))
}

func TestRunMissingInput(t *testing.T) {
	cfg := config.Default().WithPaths(filepath.Join(t.TempDir(), "absent"), t.TempDir())
	p := newTestPipeline(t, cfg)

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, ErrorCategoryInput, CategorizeError(err))
}

func TestRunCancelled(t *testing.T) {
	cfg := writeInputs(t, scenarioOrders, scenarioUsers)
	p := newTestPipeline(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx)
	assert.Equal(t, ErrorCategoryCancelled, CategorizeError(err))
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.OutlierK = 0

	_, err := New(cfg, zap.NewNop())

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, ErrorCategoryConfig, stageErr.Category)
}
