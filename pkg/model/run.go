// pkg/model/run.go
package model

import "time"

// TableSummary is the per-table part of the run metadata
type TableSummary struct {
	Rows    int      `json:"rows"`
	Columns []string `json:"columns"`
}

// WarningKind classifies non-fatal conditions raised during a run
type WarningKind string

const (
	WarningJoinIntegrity    WarningKind = "JoinIntegrityWarning"
	WarningInsufficientData WarningKind = "InsufficientDataWarning"
	WarningQuality          WarningKind = "QualityWarning"
)

// Warning is a non-fatal condition recorded in the run metadata
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Stage   string      `json:"stage"`
	Table   string      `json:"table,omitempty"`
	Column  string      `json:"column,omitempty"`
	Message string      `json:"message"`
}

// ColumnMissingness is the null count and fraction for one column
type ColumnMissingness struct {
	Missing  int     `json:"n_missing"`
	Fraction float64 `json:"p_missing"`
}

// OutlierStats records the IQR fences used for one numeric column
type OutlierStats struct {
	NonNull    int     `json:"non_null"`
	Sufficient bool    `json:"sufficient"`
	Q1         float64 `json:"q1"`
	Q3         float64 `json:"q3"`
	IQR        float64 `json:"iqr"`
	Low        float64 `json:"low"`
	High       float64 `json:"high"`
	Flagged    int     `json:"flagged"`
}

// RunMetadata is the "last run" record written next to the outputs.
// It is created fresh on every run and replaces the previous record.
type RunMetadata struct {
	RunID  string                  `json:"run_id"`
	Tables map[string]TableSummary `json:"tables"`
	Paths  map[string]string       `json:"paths"`
	RunAt  time.Time               `json:"run_at"`

	Inputs             map[string]string            `json:"inputs,omitempty"`
	MatchRate          *float64                     `json:"match_rate,omitempty"`
	MissingCreatedAt   int                          `json:"missing_created_at"`
	Missingness        map[string]ColumnMissingness `json:"missingness,omitempty"`
	OutlierFences      map[string]OutlierStats      `json:"outlier_fences,omitempty"`
	CleaningOperations map[string]int               `json:"cleaning_operations,omitempty"`
	StageDurationsMS   map[string]int64             `json:"stage_durations_ms,omitempty"`
	Warnings           []Warning                    `json:"warnings"`
}
