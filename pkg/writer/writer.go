// Package writer persists output tables as Parquet files and the run
// metadata as JSON.
//
// Every file is first written to a temporary file in the output directory
// and then renamed over its final path, so a failed run never leaves a
// truncated output behind.
package writer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"go.uber.org/zap"

	"github.com/David-Botos/orders-etl/pkg/converter"
	"github.com/David-Botos/orders-etl/pkg/model"
)

// MetadataFile is the file name of the run metadata record
const MetadataFile = "_run_meta.json"

// MetadataName is the key used for the metadata record in error reports
const MetadataName = "_run_meta"

// DefaultOutputs maps each output table to its file name
func DefaultOutputs() map[string]string {
	return map[string]string{
		model.TableOrdersClean: model.TableOrdersClean + ".parquet",
		model.TableUsers:       model.TableUsers + ".parquet",
		model.TableAnalytics:   model.TableAnalytics + ".parquet",
	}
}

// Writer writes tables into a single output directory
type Writer struct {
	outDir    string
	outputs   map[string]string
	converter *converter.TypeConverter
	logger    *zap.Logger
	now       func() time.Time
}

// Option customizes a Writer
type Option func(*Writer)

// WithClock overrides the clock used for the run timestamp
func WithClock(now func() time.Time) Option {
	return func(w *Writer) { w.now = now }
}

// WithOutputs overrides the table to file name mapping
func WithOutputs(outputs map[string]string) Option {
	return func(w *Writer) {
		w.outputs = make(map[string]string, len(outputs))
		for table, name := range outputs {
			w.outputs[table] = name
		}
	}
}

// NewWriter creates a writer for outDir. The directory is created on the
// first write if it does not exist.
func NewWriter(outDir string, conv *converter.TypeConverter, logger *zap.Logger, opts ...Option) (*Writer, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if conv == nil {
		return nil, fmt.Errorf("converter cannot be nil")
	}
	abs, err := filepath.Abs(outDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output directory %s: %w", outDir, err)
	}

	w := &Writer{
		outDir:    abs,
		outputs:   DefaultOutputs(),
		converter: conv,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Dir returns the absolute output directory
func (w *Writer) Dir() string {
	return w.outDir
}

// Path returns the absolute output path of a table
func (w *Writer) Path(table string) (string, error) {
	name, ok := w.outputs[table]
	if !ok {
		return "", fmt.Errorf("no output path configured for table %s", table)
	}
	return filepath.Join(w.outDir, name), nil
}

type pendingFile struct {
	table string
	tmp   string
	final string
}

// WriteTables serializes every table and replaces the previous outputs.
// Every table is encoded and synced to a temporary file before the first
// rename, so an encoding or disk error leaves the final paths untouched.
// The returned metadata describes what was written; persisting it is up to
// the caller.
func (w *Writer) WriteTables(ctx context.Context, tables []*model.Table) (model.RunMetadata, error) {
	meta := model.RunMetadata{
		Tables: make(map[string]model.TableSummary, len(tables)),
		Paths:  make(map[string]string, len(tables)),
	}

	if err := os.MkdirAll(w.outDir, 0o755); err != nil {
		return meta, &WriteError{Table: "*", Path: w.outDir, Err: err}
	}

	pending := make([]pendingFile, 0, len(tables))
	cleanup := func() {
		for _, p := range pending {
			if err := os.Remove(p.tmp); err != nil && !os.IsNotExist(err) {
				w.logger.Warn("Failed to remove temporary file",
					zap.String("path", p.tmp),
					zap.Error(err))
			}
		}
	}

	for _, table := range tables {
		if err := ctx.Err(); err != nil {
			cleanup()
			return meta, &WriteError{Table: table.Name(), Path: w.outDir, Err: err}
		}

		final, err := w.Path(table.Name())
		if err != nil {
			cleanup()
			return meta, &WriteError{Table: table.Name(), Path: w.outDir, Err: err}
		}

		data, err := w.encodeTable(table)
		if err != nil {
			cleanup()
			return meta, &WriteError{Table: table.Name(), Path: final, Err: err}
		}

		tmp, err := writeTemp(w.outDir, filepath.Base(final), data)
		if err != nil {
			cleanup()
			return meta, &WriteError{Table: table.Name(), Path: final, Err: err}
		}
		pending = append(pending, pendingFile{table: table.Name(), tmp: tmp, final: final})

		meta.Tables[table.Name()] = model.TableSummary{
			Rows:    table.NumRows(),
			Columns: table.Metadata.ColumnNames(),
		}
		meta.Paths[table.Name()] = final
	}

	for i, p := range pending {
		if err := os.Rename(p.tmp, p.final); err != nil {
			pending = pending[i:]
			cleanup()
			return meta, &WriteError{Table: p.table, Path: p.final, Err: err}
		}
		w.logger.Info("Wrote table",
			zap.String("table", p.table),
			zap.String("path", p.final),
			zap.Int("rows", meta.Tables[p.table].Rows))
	}

	meta.RunAt = w.now().UTC()
	return meta, nil
}

// WriteMetadata writes the run metadata record, replacing the previous
// one, and returns its path
func (w *Writer) WriteMetadata(meta model.RunMetadata) (string, error) {
	final := filepath.Join(w.outDir, MetadataFile)

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", &WriteError{Table: MetadataName, Path: final, Err: err}
	}
	data = append(data, '\n')

	if err := os.MkdirAll(w.outDir, 0o755); err != nil {
		return "", &WriteError{Table: MetadataName, Path: final, Err: err}
	}
	tmp, err := writeTemp(w.outDir, MetadataFile, data)
	if err != nil {
		return "", &WriteError{Table: MetadataName, Path: final, Err: err}
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return "", &WriteError{Table: MetadataName, Path: final, Err: err}
	}

	w.logger.Info("Wrote run metadata",
		zap.String("run_id", meta.RunID),
		zap.String("path", final))
	return final, nil
}

// ReadMetadata loads a previously written run metadata record
func ReadMetadata(path string) (model.RunMetadata, error) {
	var meta model.RunMetadata
	data, err := os.ReadFile(path)
	if err != nil {
		return meta, fmt.Errorf("failed to read run metadata: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("failed to parse run metadata %s: %w", path, err)
	}
	return meta, nil
}

// encodeTable converts a table to Parquet bytes
func (w *Writer) encodeTable(table *model.Table) ([]byte, error) {
	rec, err := w.converter.ToRecord(table)
	if err != nil {
		return nil, fmt.Errorf("failed to convert table: %w", err)
	}
	defer rec.Release()

	var buf bytes.Buffer
	if err := encodeParquet(rec, &buf); err != nil {
		return nil, fmt.Errorf("failed to encode parquet: %w", err)
	}
	return buf.Bytes(), nil
}

func encodeParquet(rec arrow.Record, buf *bytes.Buffer) error {
	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	fw, err := pqarrow.NewFileWriter(rec.Schema(), buf, props, arrowProps)
	if err != nil {
		return err
	}
	if rec.NumRows() > 0 {
		if err := fw.Write(rec); err != nil {
			_ = fw.Close()
			return err
		}
	}
	return fw.Close()
}

// writeTemp writes data to a new temporary file next to the final path and
// returns its name. The file is removed again if any step fails.
func writeTemp(dir, base string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return "", err
	}
	name := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(name)
		return "", err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(name)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", err
	}
	if err := os.Chmod(name, 0o644); err != nil {
		os.Remove(name)
		return "", err
	}
	return name, nil
}
