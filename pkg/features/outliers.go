// Package features derives calendar features and IQR outlier flags for
// the analytics table. Statistics are computed from the rows passed in on
// every call; nothing is cached between runs.
package features

import (
	"fmt"

	"github.com/David-Botos/orders-etl/pkg/model"
)

// Accessor reads a numeric column from a row as float64
type Accessor func(model.AnalyticsRow) *float64

var accessors = map[string]Accessor{
	"amount": func(r model.AnalyticsRow) *float64 {
		if r.Amount == nil {
			return nil
		}
		v := *r.Amount
		return &v
	},
	"quantity": func(r model.AnalyticsRow) *float64 {
		if r.Quantity == nil {
			return nil
		}
		v := float64(*r.Quantity)
		return &v
	},
}

// Summary describes the outlier pass over one column
type Summary struct {
	Column     string
	NonNull    int
	Sufficient bool
	Fences     Fences
	Flagged    int
}

// Stats converts the summary into its run metadata form
func (s Summary) Stats() model.OutlierStats {
	return model.OutlierStats{
		NonNull:    s.NonNull,
		Sufficient: s.Sufficient,
		Q1:         s.Fences.Q1,
		Q3:         s.Fences.Q3,
		IQR:        s.Fences.IQR,
		Low:        s.Fences.Low,
		High:       s.Fences.High,
		Flagged:    s.Flagged,
	}
}

// Warning returns the insufficient-data warning for the column, if any
func (s Summary) Warning(stage string) (model.Warning, bool) {
	if s.Sufficient {
		return model.Warning{}, false
	}
	msg := fmt.Sprintf("%d non-null value(s) in %s, at least %d required for quartiles; no outliers flagged",
		s.NonNull, s.Column, MinSampleSize)
	return model.Warning{
		Kind:    model.WarningInsufficientData,
		Stage:   stage,
		Table:   model.TableAnalytics,
		Column:  s.Column,
		Message: msg,
	}, true
}

// FlagOutliers returns copies of rows with the winsorized value and outlier
// flag for column set. Null values are never flagged and stay null after
// winsorizing. With fewer than MinSampleSize non-null values nothing is
// flagged and the winsorized value equals the original.
func FlagOutliers(rows []model.AnalyticsRow, column string, k float64) ([]model.AnalyticsRow, Summary, error) {
	get, ok := accessors[column]
	if !ok {
		return nil, Summary{}, fmt.Errorf("outlier detection not supported for column %q", column)
	}
	if k <= 0 {
		return nil, Summary{}, fmt.Errorf("fence multiplier must be positive, got %v", k)
	}

	values := make([]float64, 0, len(rows))
	for _, r := range rows {
		if v := get(r); v != nil {
			values = append(values, *v)
		}
	}

	summary := Summary{Column: column, NonNull: len(values)}
	fences, sufficient := ComputeFences(values, k)
	summary.Sufficient = sufficient
	summary.Fences = fences
	if sufficient {
		summary.Flagged = CountOutliers(values, fences)
	}

	out := make([]model.AnalyticsRow, 0, len(rows))
	for _, r := range rows {
		row := r.Clone()
		if row.Outliers == nil {
			row.Outliers = make(map[string]model.OutlierFlags, 1)
		}

		v := get(r)
		flags := model.OutlierFlags{Winsor: v}
		if sufficient && v != nil {
			flags.Winsor = Winsorize(v, fences)
			flags.IsOutlier = fences.IsOutlier(*v)
		}
		row.Outliers[column] = flags
		out = append(out, row)
	}

	return out, summary, nil
}

// CheckColumns returns an error for the first column outlier detection
// does not support
func CheckColumns(cols []string) error {
	for _, col := range cols {
		if _, ok := accessors[col]; !ok {
			return fmt.Errorf("outlier detection not supported for column %q", col)
		}
	}
	return nil
}
