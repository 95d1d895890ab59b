// Package quality runs data checks on cleaned tables. Failed checks are
// reported as warnings and never abort a run.
package quality

import (
	"fmt"
	"sort"

	"github.com/David-Botos/orders-etl/pkg/model"
)

// RequireNonEmpty warns when a table has no rows
func RequireNonEmpty(stage, table string, rows int) []model.Warning {
	if rows > 0 {
		return nil
	}
	return []model.Warning{{
		Kind:    model.WarningQuality,
		Stage:   stage,
		Table:   table,
		Message: fmt.Sprintf("%s is empty", table),
	}}
}

// RequireUniqueKey warns about blank or repeated key values. keys is the
// key column in row order.
func RequireUniqueKey(stage, table, column string, keys []string) []model.Warning {
	var warnings []model.Warning

	blank := 0
	counts := make(map[string]int, len(keys))
	for _, k := range keys {
		if k == "" {
			blank++
			continue
		}
		counts[k]++
	}

	if blank > 0 {
		warnings = append(warnings, model.Warning{
			Kind:    model.WarningQuality,
			Stage:   stage,
			Table:   table,
			Column:  column,
			Message: fmt.Sprintf("%s contains %d blank value(s)", column, blank),
		})
	}

	duplicateRows := 0
	for _, n := range counts {
		if n > 1 {
			duplicateRows += n
		}
	}
	if duplicateRows > 0 {
		warnings = append(warnings, model.Warning{
			Kind:    model.WarningQuality,
			Stage:   stage,
			Table:   table,
			Column:  column,
			Message: fmt.Sprintf("%s not unique; %d duplicate rows", column, duplicateRows),
		})
	}
	return warnings
}

// RequireInRange warns when any non-null value is outside [lo, hi]. A nil
// bound is unchecked.
func RequireInRange(stage, table, column string, values []*float64, lo, hi *float64) []model.Warning {
	below, above := 0, 0
	for _, v := range values {
		if v == nil {
			continue
		}
		if lo != nil && *v < *lo {
			below++
		}
		if hi != nil && *v > *hi {
			above++
		}
	}

	var warnings []model.Warning
	if below > 0 {
		warnings = append(warnings, model.Warning{
			Kind:    model.WarningQuality,
			Stage:   stage,
			Table:   table,
			Column:  column,
			Message: fmt.Sprintf("%d value(s) of %s below %v", below, column, *lo),
		})
	}
	if above > 0 {
		warnings = append(warnings, model.Warning{
			Kind:    model.WarningQuality,
			Stage:   stage,
			Table:   table,
			Column:  column,
			Message: fmt.Sprintf("%d value(s) of %s above %v", above, column, *hi),
		})
	}
	return warnings
}

// CheckOrders runs the order checks: non-empty, unique order_id,
// non-negative amount and quantity
func CheckOrders(stage string, orders []model.CleanOrder) []model.Warning {
	warnings := RequireNonEmpty(stage, model.TableOrdersClean, len(orders))

	ids := make([]string, 0, len(orders))
	amounts := make([]*float64, 0, len(orders))
	quantities := make([]*float64, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.OrderID)
		amounts = append(amounts, o.Amount)
		if o.Quantity != nil {
			q := float64(*o.Quantity)
			quantities = append(quantities, &q)
		}
	}

	zero := 0.0
	warnings = append(warnings, RequireUniqueKey(stage, model.TableOrdersClean, "order_id", ids)...)
	warnings = append(warnings, RequireInRange(stage, model.TableOrdersClean, "amount", amounts, &zero, nil)...)
	warnings = append(warnings, RequireInRange(stage, model.TableOrdersClean, "quantity", quantities, &zero, nil)...)
	return warnings
}

// CheckUsers runs the user checks: non-empty, unique non-blank user_id
func CheckUsers(stage string, users []model.CleanUser) []model.Warning {
	warnings := RequireNonEmpty(stage, model.TableUsers, len(users))

	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.UserID)
	}
	return append(warnings, RequireUniqueKey(stage, model.TableUsers, "user_id", ids)...)
}

// Missingness counts nulls per source column of a table. Derived flag
// columns are skipped. Fractions are 0 for an empty table.
func Missingness(table *model.Table) map[string]model.ColumnMissingness {
	report := make(map[string]model.ColumnMissingness, len(table.Metadata.Columns))
	n := table.NumRows()

	for _, col := range table.Metadata.Columns {
		if col.IsFlagColumn() {
			continue
		}
		missing := 0
		for _, row := range table.Rows {
			if v, ok := row[col.Name]; !ok || v == nil {
				missing++
			}
		}
		entry := model.ColumnMissingness{Missing: missing}
		if n > 0 {
			entry.Fraction = float64(missing) / float64(n)
		}
		report[col.Name] = entry
	}
	return report
}

// RankMissing returns column names ordered by descending missing fraction,
// ties broken by name
func RankMissing(report map[string]model.ColumnMissingness) []string {
	names := make([]string, 0, len(report))
	for name := range report {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := report[names[i]], report[names[j]]
		if a.Fraction != b.Fraction {
			return a.Fraction > b.Fraction
		}
		return names[i] < names[j]
	})
	return names
}
