// Package pipeline runs the ETL stages in order: load, clean, quality
// checks, join, features, write, verify and run metadata.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/David-Botos/orders-etl/pkg/cleaner"
	"github.com/David-Botos/orders-etl/pkg/config"
	"github.com/David-Botos/orders-etl/pkg/converter"
	"github.com/David-Botos/orders-etl/pkg/features"
	"github.com/David-Botos/orders-etl/pkg/joiner"
	"github.com/David-Botos/orders-etl/pkg/loader"
	"github.com/David-Botos/orders-etl/pkg/model"
	"github.com/David-Botos/orders-etl/pkg/quality"
	"github.com/David-Botos/orders-etl/pkg/writer"
)

// Pipeline orchestrates one ETL run
type Pipeline struct {
	cfg         config.Config
	logger      *zap.Logger
	dataCleaner *cleaner.DataCleaner
	writer      *writer.Writer
	verify      func(model.RunMetadata) error
	newRunID    func() string
}

// Option customizes a Pipeline
type Option func(*options)

type options struct {
	writerOpts []writer.Option
	newRunID   func() string
}

// WithClock overrides the clock used for the run timestamp
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.writerOpts = append(o.writerOpts, writer.WithClock(now)) }
}

// WithOutputs overrides the table to file name mapping. Every table the
// pipeline writes must have an entry.
func WithOutputs(outputs map[string]string) Option {
	return func(o *options) { o.writerOpts = append(o.writerOpts, writer.WithOutputs(outputs)) }
}

// WithRunID overrides run identifier generation
func WithRunID(newRunID func() string) Option {
	return func(o *options) { o.newRunID = newRunID }
}

// New creates a pipeline for the given configuration
func New(cfg config.Config, logger *zap.Logger, opts ...Option) (*Pipeline, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, &StageError{Stage: StageConfig, Category: ErrorCategoryConfig, Err: err}
	}
	if err := features.CheckColumns(cfg.OutlierColumns); err != nil {
		return nil, &StageError{Stage: StageConfig, Category: ErrorCategoryConfig, Err: err}
	}

	o := options{newRunID: func() string { return uuid.New().String() }}
	for _, opt := range opts {
		opt(&o)
	}

	dc, err := cleaner.NewDataCleaner(cleaner.Options{
		StatusSynonyms:   cfg.StatusSynonyms,
		TimestampFormats: cfg.TimestampFormats,
		OrderNullWatch:   cfg.OrderNullWatch,
		UserNullWatch:    cfg.UserNullWatch,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create cleaner: %w", err)
	}

	w, err := writer.NewWriter(cfg.ProcessedDir, converter.NewTypeConverter(logger), logger, o.writerOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create writer: %w", err)
	}

	return &Pipeline{
		cfg:         cfg,
		logger:      logger,
		dataCleaner: dc,
		writer:      w,
		verify:      NewVerifier(logger).VerifyOutputs,
		newRunID:    o.newRunID,
	}, nil
}

// Output holds the in-memory results of the transformation stages
type Output struct {
	Orders     []model.CleanOrder
	Users      []model.CleanUser
	Analytics  []model.AnalyticsRow
	Join       joiner.Result
	Outliers   []features.Summary
	Operations []model.CleaningOperation
	Warnings   []model.Warning

	// MissingCreatedAt counts orders whose created_at is null after parsing
	MissingCreatedAt int
}

// Tables builds the output tables in write order
func (o *Output) Tables(cfg config.Config) []*model.Table {
	return []*model.Table{
		model.NewOrdersCleanTable(o.Orders, cfg.OrderNullWatch),
		model.NewUsersTable(o.Users, cfg.UserNullWatch),
		model.NewAnalyticsTable(o.Analytics, cfg.OrderNullWatch, cfg.OutlierColumns),
	}
}

// Result describes a completed run
type Result struct {
	RunID        string
	Metadata     model.RunMetadata
	MetadataPath string
	Output       *Output
}

type runState struct {
	metrics  *RunMetrics
	warnings *WarningCollector
}

func (p *Pipeline) newRunState(logger *zap.Logger) *runState {
	return &runState{
		metrics:  NewRunMetrics(logger),
		warnings: NewWarningCollector(logger),
	}
}

// stage runs fn as a named stage. fn returns the number of rows it produced.
func (p *Pipeline) stage(ctx context.Context, st *runState, name string, fn func() (int, error)) error {
	if err := ctx.Err(); err != nil {
		return newStageError(name, err)
	}
	st.metrics.StartStage(name)
	rows, err := fn()
	st.metrics.EndStage(name, rows, err)
	if err != nil {
		return newStageError(name, err)
	}
	return nil
}

// Run executes a full run: it reads the raw extracts, transforms them,
// replaces the output tables and writes the run metadata
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	runID := p.newRunID()
	logger := p.logger.With(zap.String("run_id", runID))
	st := p.newRunState(logger)

	logger.Info("ETL run started",
		zap.String("orders", p.cfg.OrdersPath()),
		zap.String("users", p.cfg.UsersPath()),
		zap.String("out", p.writer.Dir()))

	var (
		rawOrders []model.RawOrder
		rawUsers  []model.RawUser
	)
	err := p.stage(ctx, st, StageLoad, func() (int, error) {
		var err error
		if rawOrders, err = loader.LoadOrders(p.cfg.OrdersPath()); err != nil {
			return 0, err
		}
		if rawUsers, err = loader.LoadUsers(p.cfg.UsersPath()); err != nil {
			return 0, err
		}
		return len(rawOrders) + len(rawUsers), nil
	})
	if err != nil {
		return nil, err
	}

	out, err := p.transform(ctx, st, rawOrders, rawUsers)
	if err != nil {
		return nil, err
	}

	var meta model.RunMetadata
	tables := out.Tables(p.cfg)
	err = p.stage(ctx, st, StageWrite, func() (int, error) {
		var err error
		meta, err = p.writer.WriteTables(ctx, tables)
		return len(tables), err
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(ctx, st, StageVerify, func() (int, error) {
		if err := p.verify(meta); err != nil {
			replaced := replacedPaths(meta)
			logger.Error("Output tables were replaced but failed verification; run metadata not updated",
				zap.Strings("replaced", replaced),
				zap.Error(err))
			return 0, fmt.Errorf("outputs already replaced at %s: %w", strings.Join(replaced, ", "), err)
		}
		return len(meta.Tables), nil
	})
	if err != nil {
		return nil, err
	}

	meta.RunID = runID
	meta.Inputs = p.inputPaths()
	matchRate := out.Join.MatchRate
	meta.MatchRate = &matchRate
	meta.MissingCreatedAt = out.MissingCreatedAt
	meta.Missingness = quality.Missingness(tables[0])
	meta.OutlierFences = make(map[string]model.OutlierStats, len(out.Outliers))
	for _, s := range out.Outliers {
		meta.OutlierFences[s.Column] = s.Stats()
	}
	meta.CleaningOperations = model.CountOperations(out.Operations)
	meta.Warnings = out.Warnings
	meta.StageDurationsMS = st.metrics.StageDurationsMS()

	var metaPath string
	err = p.stage(ctx, st, StageMetadata, func() (int, error) {
		var err error
		metaPath, err = p.writer.WriteMetadata(meta)
		return 1, err
	})
	if err != nil {
		return nil, err
	}

	st.metrics.Finish()
	fields := []zap.Field{
		zap.Duration("duration", st.metrics.Duration()),
		zap.Float64("match_rate", matchRate),
		zap.Int("warnings", len(meta.Warnings)),
		zap.String("metadata", metaPath),
	}
	if stages, err := st.metrics.ToJSON(); err == nil {
		fields = append(fields, zap.Reflect("stages", json.RawMessage(stages)))
	}
	logger.Info("ETL run finished", fields...)

	return &Result{
		RunID:        runID,
		Metadata:     meta,
		MetadataPath: metaPath,
		Output:       out,
	}, nil
}

// Transform runs the in-memory stages (clean, quality, join, features) on
// already loaded rows. Inputs are not modified.
func (p *Pipeline) Transform(ctx context.Context, orders []model.RawOrder, users []model.RawUser) (*Output, error) {
	return p.transform(ctx, p.newRunState(p.logger), orders, users)
}

func (p *Pipeline) transform(ctx context.Context, st *runState, rawOrders []model.RawOrder, rawUsers []model.RawUser) (*Output, error) {
	out := &Output{}

	err := p.stage(ctx, st, StageClean, func() (int, error) {
		var orderOps, userOps []model.CleaningOperation
		out.Orders, orderOps = p.dataCleaner.CleanOrders(rawOrders)
		out.Users, userOps = p.dataCleaner.CleanUsers(rawUsers)
		out.Operations = append(orderOps, userOps...)

		for _, o := range out.Orders {
			if o.CreatedAt == nil {
				out.MissingCreatedAt++
			}
		}
		return len(out.Orders) + len(out.Users), nil
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(ctx, st, StageQuality, func() (int, error) {
		st.warnings.Record(quality.CheckOrders(StageQuality, out.Orders)...)
		st.warnings.Record(quality.CheckUsers(StageQuality, out.Users)...)
		return len(out.Orders) + len(out.Users), nil
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(ctx, st, StageJoin, func() (int, error) {
		out.Join = joiner.LeftJoin(out.Orders, out.Users)
		if len(out.Join.Rows) != len(out.Orders) {
			return 0, fmt.Errorf("join changed row count from %d to %d", len(out.Orders), len(out.Join.Rows))
		}
		st.warnings.Record(out.Join.Warnings(StageJoin)...)
		p.logger.Info("User join match rate",
			zap.Float64("match_rate", out.Join.MatchRate),
			zap.Int("matched", out.Join.Matched),
			zap.Int("orders", len(out.Orders)))
		return len(out.Join.Rows), nil
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(ctx, st, StageFeatures, func() (int, error) {
		rows := features.AddTimeParts(out.Join.Rows)
		for _, col := range p.cfg.OutlierColumns {
			var (
				summary features.Summary
				err     error
			)
			rows, summary, err = features.FlagOutliers(rows, col, p.cfg.OutlierK)
			if err != nil {
				return 0, WrapError(err, "outlier detection")
			}
			if w, ok := summary.Warning(StageFeatures); ok {
				st.warnings.Record(w)
			}
			out.Outliers = append(out.Outliers, summary)
		}
		out.Analytics = rows
		return len(rows), nil
	})
	if err != nil {
		return nil, err
	}

	out.Warnings = st.warnings.Warnings()
	return out, nil
}

// replacedPaths lists the written table paths in table name order
func replacedPaths(meta model.RunMetadata) []string {
	names := make([]string, 0, len(meta.Paths))
	for name := range meta.Paths {
		names = append(names, name)
	}
	sort.Strings(names)

	paths := make([]string, 0, len(names))
	for _, name := range names {
		paths = append(paths, meta.Paths[name])
	}
	return paths
}

func (p *Pipeline) inputPaths() map[string]string {
	inputs := map[string]string{
		"orders": p.cfg.OrdersPath(),
		"users":  p.cfg.UsersPath(),
	}
	for name, path := range inputs {
		if abs, err := filepath.Abs(path); err == nil {
			inputs[name] = abs
		}
	}
	return inputs
}
