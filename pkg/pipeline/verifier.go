package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/apache/arrow-go/v18/parquet/file"
	"go.uber.org/zap"

	"github.com/David-Botos/orders-etl/pkg/model"
)

// VerificationError reports written tables whose on-disk contents do not
// match the run metadata
type VerificationError struct {
	Mismatches []string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verification failed: %s", strings.Join(e.Mismatches, "; "))
}

// Verifier checks written outputs against the run metadata
type Verifier struct {
	logger *zap.Logger
}

// NewVerifier creates a new verifier
func NewVerifier(logger *zap.Logger) *Verifier {
	return &Verifier{logger: logger}
}

// VerifyOutputs reopens every written table and compares its row count and
// column list with the metadata
func (v *Verifier) VerifyOutputs(meta model.RunMetadata) error {
	names := make([]string, 0, len(meta.Tables))
	for name := range meta.Tables {
		names = append(names, name)
	}
	sort.Strings(names)

	var mismatches []string
	for _, name := range names {
		summary := meta.Tables[name]
		path, ok := meta.Paths[name]
		if !ok {
			mismatches = append(mismatches, fmt.Sprintf("%s: no path recorded", name))
			continue
		}

		rows, columns, err := readParquetShape(path)
		if err != nil {
			mismatches = append(mismatches, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		if rows != int64(summary.Rows) {
			mismatches = append(mismatches,
				fmt.Sprintf("%s: metadata has %d rows, file has %d", name, summary.Rows, rows))
		}
		if strings.Join(columns, ",") != strings.Join(summary.Columns, ",") {
			mismatches = append(mismatches,
				fmt.Sprintf("%s: column list differs from file schema", name))
		}

		v.logger.Debug("Verified table",
			zap.String("table", name),
			zap.Int64("rows", rows),
			zap.Int("columns", len(columns)))
	}

	if len(mismatches) > 0 {
		return &VerificationError{Mismatches: mismatches}
	}
	return nil
}

func readParquetShape(path string) (int64, []string, error) {
	r, err := file.OpenParquetFile(path, false)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer r.Close()

	schema := r.MetaData().Schema
	columns := make([]string, 0, schema.NumColumns())
	for i := 0; i < schema.NumColumns(); i++ {
		columns = append(columns, schema.Column(i).Name())
	}
	return r.NumRows(), columns, nil
}
