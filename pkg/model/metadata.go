// pkg/model/metadata.go
package model

import (
	"fmt"
	"strings"
)

// Logical column types understood by the converter
const (
	TypeString    = "string"
	TypeFloat64   = "float64"
	TypeInt64     = "int64"
	TypeBool      = "bool"
	TypeTimestamp = "timestamp"
)

// TableMetadata contains the structure information for an output table
type TableMetadata struct {
	Name    string   // Table name (also the output stage name)
	Columns []Column // Column definitions, in output order
}

// Column represents metadata about a table column
type Column struct {
	Name     string // Column name
	DataType string // Logical type (one of the Type* constants)
	Nullable bool   // Whether column allows null values
}

// ColumnNames returns the column names in declaration order
func (tm *TableMetadata) ColumnNames() []string {
	names := make([]string, 0, len(tm.Columns))
	for _, col := range tm.Columns {
		names = append(names, col.Name)
	}
	return names
}

// GetColumnByName returns the first column matching name, compared
// case-insensitively, or nil
func (tm *TableMetadata) GetColumnByName(name string) *Column {
	normalizedName := normalizeColumnName(name)
	for i, col := range tm.Columns {
		if normalizeColumnName(col.Name) == normalizedName {
			return &tm.Columns[i]
		}
	}
	return nil
}

// CheckColumns returns an error naming the first column that is declared
// more than once. Column names compare case-insensitively.
func (tm *TableMetadata) CheckColumns() error {
	for i := range tm.Columns {
		if first := tm.GetColumnByName(tm.Columns[i].Name); first != &tm.Columns[i] {
			return fmt.Errorf("table %s declares column %q more than once", tm.Name, tm.Columns[i].Name)
		}
	}
	return nil
}

// IsFlagColumn reports whether the column is a derived boolean indicator
// (null flag or outlier flag) rather than a source value
func (col *Column) IsFlagColumn() bool {
	name := normalizeColumnName(col.Name)
	return hasSuffix(name, NullFlagSuffix) || hasSuffix(name, OutlierFlagSuffix)
}

// Table is a named set of rows ready for persistence. Rows hold plain
// values (string, float64, int64, bool, time.Time) or untyped nil.
type Table struct {
	Metadata TableMetadata
	Rows     []map[string]interface{}
}

// Name returns the table name
func (t *Table) Name() string {
	return t.Metadata.Name
}

// NumRows returns the number of rows in the table
func (t *Table) NumRows() int {
	return len(t.Rows)
}

func normalizeColumnName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func hasSuffix(s, suffix string) bool {
	return strings.HasSuffix(
		strings.ToLower(s),
		strings.ToLower(suffix),
	)
}
