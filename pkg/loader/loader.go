// Package loader reads the raw orders and users extracts into typed rows.
//
// Only the declared numeric columns are coerced; every other column is
// kept as text. Timestamp columns are left as strings for the cleaner,
// which treats unparseable values as nulls instead of failing the run.
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/David-Botos/orders-etl/pkg/model"
)

// Required column sets
var (
	OrderColumns = []string{"order_id", "user_id", "amount", "quantity", "status", "created_at"}
	UserColumns  = []string{"user_id", "country"}
)

// columnAliases maps a canonical column name to alternative header names
var columnAliases = map[string][]string{
	"signup_at": {"signup_date"},
}

// Table is a delimited extract with its header indexed by column name
type Table struct {
	Path    string
	Header  []string
	Records [][]string
	Lines   []int // 1-based file line where each record starts
	index   map[string]int
}

// ReadTable reads a comma-delimited file with a header row and checks that
// every required column is present
func ReadTable(path string, required []string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return readTable(f, path, required)
}

func readTable(r io.Reader, path string, required []string) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &SchemaError{Path: path, Missing: append([]string{}, required...)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	t := &Table{
		Path:   path,
		Header: make([]string, len(header)),
		index:  make(map[string]int, len(header)),
	}
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		t.Header[i] = name
		if _, dup := t.index[name]; !dup {
			t.index[name] = i
		}
	}

	var missing []string
	for _, col := range required {
		if !t.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Path: path, Missing: missing}
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if isBlankRecord(record) {
			continue
		}
		line, _ := reader.FieldPos(0)
		t.Records = append(t.Records, record)
		t.Lines = append(t.Lines, line)
	}

	return t, nil
}

// HasColumn reports whether the column (or one of its aliases) is present
func (t *Table) HasColumn(name string) bool {
	_, ok := t.columnIndex(name)
	return ok
}

// Value returns the raw cell for a row and column. Cells beyond the end of
// a short record read as empty.
func (t *Table) Value(row int, col string) string {
	idx, ok := t.columnIndex(col)
	if !ok {
		return ""
	}
	record := t.Records[row]
	if idx >= len(record) {
		return ""
	}
	return record[idx]
}

func (t *Table) columnIndex(name string) (int, bool) {
	if idx, ok := t.index[name]; ok {
		return idx, true
	}
	for _, alias := range columnAliases[name] {
		if idx, ok := t.index[alias]; ok {
			return idx, true
		}
	}
	return 0, false
}

// LoadOrders reads the orders extract
func LoadOrders(path string) ([]model.RawOrder, error) {
	t, err := ReadTable(path, OrderColumns)
	if err != nil {
		return nil, err
	}

	orders := make([]model.RawOrder, 0, len(t.Records))
	for i := range t.Records {
		amount, err := parseDecimal(t.Value(i, "amount"))
		if err != nil {
			return nil, &ParseError{Path: path, Line: t.Lines[i], Column: "amount", Value: t.Value(i, "amount"), Err: err}
		}
		quantity, err := parseInteger(t.Value(i, "quantity"))
		if err != nil {
			return nil, &ParseError{Path: path, Line: t.Lines[i], Column: "quantity", Value: t.Value(i, "quantity"), Err: err}
		}

		orders = append(orders, model.RawOrder{
			OrderID:   strings.TrimSpace(t.Value(i, "order_id")),
			UserID:    strings.TrimSpace(t.Value(i, "user_id")),
			Amount:    amount,
			Quantity:  quantity,
			Status:    optionalText(t.Value(i, "status")),
			CreatedAt: optionalText(t.Value(i, "created_at")),
		})
	}

	return orders, nil
}

// LoadUsers reads the users extract. The signup column is optional; when
// absent every signup time is null.
func LoadUsers(path string) ([]model.RawUser, error) {
	t, err := ReadTable(path, UserColumns)
	if err != nil {
		return nil, err
	}

	users := make([]model.RawUser, 0, len(t.Records))
	for i := range t.Records {
		users = append(users, model.RawUser{
			UserID:   strings.TrimSpace(t.Value(i, "user_id")),
			Country:  optionalText(t.Value(i, "country")),
			SignupAt: optionalText(t.Value(i, "signup_at")),
		})
	}

	return users, nil
}

// nullTokens are cell values read as null, compared case-insensitively
var nullTokens = map[string]struct{}{
	"":     {},
	"na":   {},
	"n/a":  {},
	"nan":  {},
	"null": {},
}

// IsNullToken reports whether a raw cell denotes a missing value
func IsNullToken(s string) bool {
	_, ok := nullTokens[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

func optionalText(s string) *string {
	if IsNullToken(s) {
		return nil
	}
	return &s
}

func parseDecimal(s string) (*float64, error) {
	if IsNullToken(s) {
		return nil, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	f := d.InexactFloat64()
	return &f, nil
}

// parseInteger accepts integral values, including ones written with a
// zero fractional part such as "3.0"
func parseInteger(s string) (*int64, error) {
	if IsNullToken(s) {
		return nil, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	if !d.IsInteger() {
		return nil, fmt.Errorf("value %s is not an integer", d.String())
	}
	if !d.BigInt().IsInt64() {
		return nil, fmt.Errorf("value %s overflows int64", d.String())
	}
	i := d.IntPart()
	return &i, nil
}

func isBlankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
