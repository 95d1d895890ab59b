package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/David-Botos/orders-etl/pkg/config"
	"github.com/David-Botos/orders-etl/pkg/model"
	"github.com/David-Botos/orders-etl/pkg/writer"
)

func TestNewRejectsRepeatedColumns(t *testing.T) {
	cfg := config.Default()
	cfg.OutlierColumns = []string{"amount", "amount"}
	cfg.OrderNullWatch = []string{"amount", "amount"}

	_, err := New(cfg, zap.NewNop())

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageConfig, stageErr.Stage)
	assert.Equal(t, ErrorCategoryConfig, stageErr.Category)
}

func TestRunWithCustomOutputs(t *testing.T) {
	cfg := writeInputs(t, scenarioOrders, scenarioUsers)
	outputs := map[string]string{
		model.TableOrdersClean: "orders.parquet",
		model.TableUsers:       "customers.parquet",
		model.TableAnalytics:   "enriched.parquet",
	}
	p, err := New(cfg, zap.NewNop(), WithOutputs(outputs))
	require.NoError(t, err)

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	for table, name := range outputs {
		path := filepath.Join(p.writer.Dir(), name)
		assert.Equal(t, path, result.Metadata.Paths[table])
		assert.FileExists(t, path)
	}
	assert.NoFileExists(t, filepath.Join(p.writer.Dir(), "users.parquet"))

	// later changes to the caller's map do not move outputs
	outputs[model.TableUsers] = "moved.parquet"
	path, err := p.writer.Path(model.TableUsers)
	require.NoError(t, err)
	assert.Equal(t, "customers.parquet", filepath.Base(path))
}

func TestRunLogsStageSummary(t *testing.T) {
	cfg := writeInputs(t, scenarioOrders, scenarioUsers)
	core, logs := observer.New(zapcore.InfoLevel)
	p, err := New(cfg, zap.New(core))
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	require.NoError(t, err)

	entries := logs.FilterMessage("ETL run finished").All()
	require.Len(t, entries, 1)
	raw, ok := entries[0].ContextMap()["stages"].(json.RawMessage)
	require.True(t, ok)

	var summary struct {
		Stages []struct {
			Name   string `json:"name"`
			Failed bool   `json:"failed"`
		} `json:"stages"`
	}
	require.NoError(t, json.Unmarshal(raw, &summary))

	names := make([]string, 0, len(summary.Stages))
	for _, s := range summary.Stages {
		names = append(names, s.Name)
		assert.False(t, s.Failed, s.Name)
	}
	assert.Equal(t, []string{
		StageLoad, StageClean, StageQuality, StageJoin, StageFeatures, StageWrite, StageVerify, StageMetadata,
	}, names)
}

func TestRunVerificationFailureNamesReplacedOutputs(t *testing.T) {
	cfg := writeInputs(t, scenarioOrders, scenarioUsers)
	core, logs := observer.New(zapcore.ErrorLevel)
	p, err := New(cfg, zap.New(core), WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	p.verify = func(model.RunMetadata) error {
		return &VerificationError{Mismatches: []string{"users: metadata has 5 rows, file has 1"}}
	}

	_, err = p.Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, ErrorCategoryVerification, CategorizeError(err))
	var verr *VerificationError
	assert.True(t, errors.As(err, &verr))

	analytics := filepath.Join(p.writer.Dir(), "analytics_table.parquet")
	assert.Contains(t, err.Error(), analytics)
	assert.FileExists(t, analytics)
	assert.NoFileExists(t, filepath.Join(p.writer.Dir(), writer.MetadataFile))

	entries := logs.FilterMessage("Output tables were replaced but failed verification; run metadata not updated").All()
	require.Len(t, entries, 1)
	assert.Len(t, entries[0].ContextMap()["replaced"], 3)
}
