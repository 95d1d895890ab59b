// pkg/model/records.go
package model

import "time"

// RawOrder is one row of the orders extract as loaded, before cleaning.
// Optional values are nil when the cell was empty.
type RawOrder struct {
	OrderID   string
	UserID    string
	Amount    *float64
	Quantity  *int64
	Status    *string
	CreatedAt *string
}

// RawUser is one row of the users extract as loaded
type RawUser struct {
	UserID   string
	Country  *string
	SignupAt *string
}

// CleanOrder is a RawOrder with a normalized status, a parsed timestamp
// and null indicators for the watched columns
type CleanOrder struct {
	OrderID     string
	UserID      string
	Amount      *float64
	Quantity    *int64
	Status      *string
	CreatedAt   *time.Time
	StatusClean *string
	IsNA        map[string]bool // watched column -> null after normalization
}

// CleanUser is a RawUser with normalized country and parsed signup time
type CleanUser struct {
	UserID   string
	Country  *string
	SignupAt *time.Time
	IsNA     map[string]bool
}

// OutlierFlags holds the outlier features derived for one numeric column
type OutlierFlags struct {
	Winsor    *float64
	IsOutlier bool
}

// AnalyticsRow is one order enriched with user attributes and features
type AnalyticsRow struct {
	CleanOrder

	Country  *string
	SignupAt *time.Time

	Month     *string // calendar bucket, "2006-01"
	Date      *string // "2006-01-02"
	Year      *int64
	DayOfWeek *string
	Hour      *int64

	Outliers map[string]OutlierFlags // numeric column -> features
}

// Clone returns a copy whose maps are not shared with the receiver
func (o CleanOrder) Clone() CleanOrder {
	o.IsNA = cloneFlags(o.IsNA)
	return o
}

// Clone returns a copy whose maps are not shared with the receiver
func (r AnalyticsRow) Clone() AnalyticsRow {
	r.CleanOrder = r.CleanOrder.Clone()
	if r.Outliers != nil {
		outliers := make(map[string]OutlierFlags, len(r.Outliers))
		for k, v := range r.Outliers {
			outliers[k] = v
		}
		r.Outliers = outliers
	}
	return r
}

func cloneFlags(in map[string]bool) map[string]bool {
	if in == nil {
		return nil
	}
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
