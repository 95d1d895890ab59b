// pkg/converter/converter.go
package converter

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/David-Botos/orders-etl/pkg/model"
)

// TypeConverter maps model tables to Arrow schemas and records
type TypeConverter struct {
	logger *zap.Logger
	// Configuration options
	config TypeConverterConfig
}

// TypeConverterConfig provides configuration options for type conversion
type TypeConverterConfig struct {
	// Resolution of timestamp columns
	TimestampUnit arrow.TimeUnit
	// Zone recorded on timestamp columns
	TimeZone string
	// Allocator for record buffers
	Allocator memory.Allocator
}

// DefaultConfig returns the default configuration
func DefaultConfig() TypeConverterConfig {
	return TypeConverterConfig{
		TimestampUnit: arrow.Microsecond,
		TimeZone:      "UTC",
		Allocator:     memory.NewGoAllocator(),
	}
}

// NewTypeConverter creates a new TypeConverter with default configuration
func NewTypeConverter(logger *zap.Logger) *TypeConverter {
	return NewTypeConverterWithConfig(logger, DefaultConfig())
}

// NewTypeConverterWithConfig creates a TypeConverter with custom configuration
func NewTypeConverterWithConfig(logger *zap.Logger, config TypeConverterConfig) *TypeConverter {
	if config.Allocator == nil {
		config.Allocator = memory.NewGoAllocator()
	}
	return &TypeConverter{
		logger: logger,
		config: config,
	}
}

// MapColumnType converts a model column type to its Arrow type
func (c *TypeConverter) MapColumnType(dataType string) (arrow.DataType, error) {
	switch dataType {
	case model.TypeString:
		return arrow.BinaryTypes.String, nil
	case model.TypeFloat64:
		return arrow.PrimitiveTypes.Float64, nil
	case model.TypeInt64:
		return arrow.PrimitiveTypes.Int64, nil
	case model.TypeBool:
		return arrow.FixedWidthTypes.Boolean, nil
	case model.TypeTimestamp:
		return &arrow.TimestampType{Unit: c.config.TimestampUnit, TimeZone: c.config.TimeZone}, nil
	default:
		c.logger.Warn("Unknown column type encountered",
			zap.String("dataType", dataType))
		return nil, fmt.Errorf("unknown column type: %s", dataType)
	}
}

// Schema builds the Arrow schema for a table. Field order follows the
// metadata column order.
func (c *TypeConverter) Schema(metadata model.TableMetadata) (*arrow.Schema, error) {
	if err := metadata.CheckColumns(); err != nil {
		return nil, err
	}

	fields := make([]arrow.Field, 0, len(metadata.Columns))

	for _, col := range metadata.Columns {
		dt, err := c.MapColumnType(col.DataType)
		if err != nil {
			return nil, fmt.Errorf("column %s of %s: %w", col.Name, metadata.Name, err)
		}
		fields = append(fields, arrow.Field{
			Name:     col.Name,
			Type:     dt,
			Nullable: col.Nullable,
		})
	}

	md := arrow.NewMetadata([]string{"table"}, []string{metadata.Name})
	return arrow.NewSchema(fields, &md), nil
}
