// pkg/model/cleaning.go
package model

// CleaningOperation represents a single data cleaning operation
type CleaningOperation struct {
	TableName         string  // Table name
	ColumnName        string  // Column that was cleaned
	OriginalValue     *string // Original value (may be nil)
	NewValue          *string // New value after cleaning (nil when nulled)
	RowIdentifier     string  // Key that identifies the row (order_id / user_id)
	CleaningOperation string  // Type of cleaning performed (e.g., "status_normalized")
	CleaningReason    string  // Reason for cleaning (e.g., "synonym_mapping")
}

// Cleaning operation kinds
const (
	OpStatusNormalized     = "status_normalized"
	OpCountryNormalized    = "country_normalized"
	OpTimestampUnparseable = "timestamp_unparseable"
)

// CountOperations summarises a cleaning log by operation kind
func CountOperations(ops []CleaningOperation) map[string]int {
	counts := make(map[string]int)
	for _, op := range ops {
		counts[op.CleaningOperation]++
	}
	return counts
}
