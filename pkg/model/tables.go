// pkg/model/tables.go
package model

import "time"

// Output table names. These double as stage names in the run metadata.
const (
	TableOrdersClean = "orders_clean"
	TableUsers       = "users"
	TableAnalytics   = "analytics_table"
)

// Derived column suffixes
const (
	NullFlagSuffix    = "__isna"
	OutlierFlagSuffix = "__is_outlier"
	WinsorSuffix      = "_winsor"
)

// NullFlagColumn returns the null indicator column name for col
func NullFlagColumn(col string) string { return col + NullFlagSuffix }

// OutlierFlagColumn returns the outlier indicator column name for col
func OutlierFlagColumn(col string) string { return col + OutlierFlagSuffix }

// WinsorColumn returns the winsorized value column name for col
func WinsorColumn(col string) string { return col + WinsorSuffix }

var orderColumns = []Column{
	{Name: "order_id", DataType: TypeString},
	{Name: "user_id", DataType: TypeString},
	{Name: "amount", DataType: TypeFloat64, Nullable: true},
	{Name: "quantity", DataType: TypeInt64, Nullable: true},
	{Name: "status", DataType: TypeString, Nullable: true},
	{Name: "created_at", DataType: TypeTimestamp, Nullable: true},
	{Name: "status_clean", DataType: TypeString, Nullable: true},
}

var userColumns = []Column{
	{Name: "user_id", DataType: TypeString},
	{Name: "country", DataType: TypeString, Nullable: true},
	{Name: "signup_at", DataType: TypeTimestamp, Nullable: true},
}

var analyticsExtraColumns = []Column{
	{Name: "country", DataType: TypeString, Nullable: true},
	{Name: "signup_at", DataType: TypeTimestamp, Nullable: true},
	{Name: "month", DataType: TypeString, Nullable: true},
	{Name: "date", DataType: TypeString, Nullable: true},
	{Name: "year", DataType: TypeInt64, Nullable: true},
	{Name: "dow", DataType: TypeString, Nullable: true},
	{Name: "hour", DataType: TypeInt64, Nullable: true},
}

// OrderColumnNames lists the source columns of a clean order that may be
// watched for nulls
func OrderColumnNames() []string {
	return []string{"order_id", "user_id", "amount", "quantity", "status", "created_at"}
}

// UserColumnNames lists the source columns of a clean user that may be
// watched for nulls
func UserColumnNames() []string {
	return []string{"user_id", "country", "signup_at"}
}

func flagColumns(watch []string) []Column {
	cols := make([]Column, 0, len(watch))
	for _, name := range watch {
		cols = append(cols, Column{Name: NullFlagColumn(name), DataType: TypeBool})
	}
	return cols
}

// OrdersCleanMetadata describes the orders_clean table
func OrdersCleanMetadata(watch []string) TableMetadata {
	cols := append([]Column{}, orderColumns...)
	cols = append(cols, flagColumns(watch)...)
	return TableMetadata{Name: TableOrdersClean, Columns: cols}
}

// UsersMetadata describes the users table
func UsersMetadata(watch []string) TableMetadata {
	cols := append([]Column{}, userColumns...)
	cols = append(cols, flagColumns(watch)...)
	return TableMetadata{Name: TableUsers, Columns: cols}
}

// AnalyticsMetadata describes the analytics table
func AnalyticsMetadata(watch, outlierColumns []string) TableMetadata {
	cols := append([]Column{}, orderColumns...)
	cols = append(cols, flagColumns(watch)...)
	cols = append(cols, analyticsExtraColumns...)
	for _, name := range outlierColumns {
		cols = append(cols,
			Column{Name: WinsorColumn(name), DataType: TypeFloat64, Nullable: true},
			Column{Name: OutlierFlagColumn(name), DataType: TypeBool},
		)
	}
	return TableMetadata{Name: TableAnalytics, Columns: cols}
}

// NewOrdersCleanTable builds the orders_clean table
func NewOrdersCleanTable(rows []CleanOrder, watch []string) *Table {
	t := &Table{Metadata: OrdersCleanMetadata(watch), Rows: make([]map[string]interface{}, 0, len(rows))}
	for _, o := range rows {
		t.Rows = append(t.Rows, o.values(watch))
	}
	return t
}

// NewUsersTable builds the users table
func NewUsersTable(rows []CleanUser, watch []string) *Table {
	t := &Table{Metadata: UsersMetadata(watch), Rows: make([]map[string]interface{}, 0, len(rows))}
	for _, u := range rows {
		row := map[string]interface{}{
			"user_id":   u.UserID,
			"country":   stringValue(u.Country),
			"signup_at": timeValue(u.SignupAt),
		}
		for _, name := range watch {
			row[NullFlagColumn(name)] = u.IsNA[name]
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// NewAnalyticsTable builds the analytics table
func NewAnalyticsTable(rows []AnalyticsRow, watch, outlierColumns []string) *Table {
	t := &Table{
		Metadata: AnalyticsMetadata(watch, outlierColumns),
		Rows:     make([]map[string]interface{}, 0, len(rows)),
	}
	for _, r := range rows {
		row := r.CleanOrder.values(watch)
		row["country"] = stringValue(r.Country)
		row["signup_at"] = timeValue(r.SignupAt)
		row["month"] = stringValue(r.Month)
		row["date"] = stringValue(r.Date)
		row["year"] = int64Value(r.Year)
		row["dow"] = stringValue(r.DayOfWeek)
		row["hour"] = int64Value(r.Hour)
		for _, name := range outlierColumns {
			flags := r.Outliers[name]
			row[WinsorColumn(name)] = float64Value(flags.Winsor)
			row[OutlierFlagColumn(name)] = flags.IsOutlier
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func (o CleanOrder) values(watch []string) map[string]interface{} {
	row := map[string]interface{}{
		"order_id":     o.OrderID,
		"user_id":      o.UserID,
		"amount":       float64Value(o.Amount),
		"quantity":     int64Value(o.Quantity),
		"status":       stringValue(o.Status),
		"created_at":   timeValue(o.CreatedAt),
		"status_clean": stringValue(o.StatusClean),
	}
	for _, name := range watch {
		row[NullFlagColumn(name)] = o.IsNA[name]
	}
	return row
}

// The helpers below return an untyped nil for absent values so that
// consumers can test row values against nil directly.

func stringValue(p *string) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func float64Value(p *float64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func int64Value(p *int64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func timeValue(p *time.Time) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
