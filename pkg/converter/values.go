// pkg/converter/values.go
package converter

import (
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/David-Botos/orders-etl/pkg/model"
)

// ToRecord converts a table into a single Arrow record. The caller must
// Release the record.
func (c *TypeConverter) ToRecord(table *model.Table) (arrow.Record, error) {
	schema, err := c.Schema(table.Metadata)
	if err != nil {
		return nil, err
	}

	b := array.NewRecordBuilder(c.config.Allocator, schema)
	defer b.Release()

	for i, col := range table.Metadata.Columns {
		field := b.Field(i)
		for rowIdx, row := range table.Rows {
			if err := c.appendValue(field, row[col.Name], col); err != nil {
				return nil, fmt.Errorf("table %s row %d column %s: %w", table.Name(), rowIdx, col.Name, err)
			}
		}
	}

	return b.NewRecord(), nil
}

// appendValue appends one cell to the column builder
func (c *TypeConverter) appendValue(field array.Builder, value interface{}, col model.Column) error {
	if isNull(value) {
		if !col.Nullable {
			return fmt.Errorf("null value in non-nullable column")
		}
		field.AppendNull()
		return nil
	}

	switch fb := field.(type) {
	case *array.StringBuilder:
		v, err := c.convertToText(value)
		if err != nil {
			return err
		}
		fb.Append(v)
	case *array.Float64Builder:
		v, err := c.convertToFloat(value)
		if err != nil {
			return err
		}
		fb.Append(v)
	case *array.Int64Builder:
		v, err := c.convertToInt(value)
		if err != nil {
			return err
		}
		fb.Append(v)
	case *array.BooleanBuilder:
		v, err := c.convertToBoolean(value)
		if err != nil {
			return err
		}
		fb.Append(v)
	case *array.TimestampBuilder:
		v, err := c.convertToTimestamp(value)
		if err != nil {
			return err
		}
		fb.Append(v)
	default:
		return fmt.Errorf("unsupported builder %T", field)
	}
	return nil
}

// isNull determines if a value should be written as NULL
func isNull(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return true
	case *string:
		return v == nil
	case *float64:
		return v == nil
	case *int64:
		return v == nil
	case *time.Time:
		return v == nil
	}
	return false
}

// convertToText converts a value to text/string
func (c *TypeConverter) convertToText(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case *string:
		return *v, nil
	case []byte:
		return string(v), nil
	case int, int64, float64, bool:
		return fmt.Sprintf("%v", v), nil
	case time.Time:
		return v.UTC().Format(time.RFC3339), nil
	default:
		return "", fmt.Errorf("cannot convert %T to text", value)
	}
}

// convertToFloat converts a value to float64
func (c *TypeConverter) convertToFloat(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case *float64:
		return *v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", value)
	}
}

// convertToInt converts a value to int64
func (c *TypeConverter) convertToInt(value interface{}) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case *int64:
		return *v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("cannot convert %T to int64", value)
	}
}

// convertToBoolean converts a value to boolean
func (c *TypeConverter) convertToBoolean(value interface{}) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case *bool:
		if v == nil {
			return false, nil
		}
		return *v, nil
	default:
		return false, fmt.Errorf("cannot convert %T to boolean", value)
	}
}

// convertToTimestamp converts a value to an Arrow timestamp in the
// configured unit
func (c *TypeConverter) convertToTimestamp(value interface{}) (arrow.Timestamp, error) {
	var t time.Time
	switch v := value.(type) {
	case time.Time:
		t = v
	case *time.Time:
		t = *v
	default:
		return 0, fmt.Errorf("cannot convert %T to timestamp", value)
	}

	t = t.UTC()
	switch c.config.TimestampUnit {
	case arrow.Second:
		return arrow.Timestamp(t.Unix()), nil
	case arrow.Millisecond:
		return arrow.Timestamp(t.UnixMilli()), nil
	case arrow.Nanosecond:
		return arrow.Timestamp(t.UnixNano()), nil
	default:
		return arrow.Timestamp(t.UnixMicro()), nil
	}
}
