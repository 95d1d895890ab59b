package features

import "github.com/David-Botos/orders-etl/pkg/model"

// Layouts of the derived calendar columns
const (
	MonthLayout = "2006-01"
	DateLayout  = "2006-01-02"
)

// AddTimeParts returns copies of rows with month, date, year, weekday and
// hour derived from created_at. A null created_at yields null parts.
func AddTimeParts(rows []model.AnalyticsRow) []model.AnalyticsRow {
	out := make([]model.AnalyticsRow, 0, len(rows))
	for _, r := range rows {
		row := r.Clone()
		row.Month, row.Date, row.Year, row.DayOfWeek, row.Hour = nil, nil, nil, nil, nil

		if r.CreatedAt != nil {
			ts := r.CreatedAt.UTC()
			month := ts.Format(MonthLayout)
			date := ts.Format(DateLayout)
			year := int64(ts.Year())
			dow := ts.Weekday().String()
			hour := int64(ts.Hour())

			row.Month = &month
			row.Date = &date
			row.Year = &year
			row.DayOfWeek = &dow
			row.Hour = &hour
		}
		out = append(out, row)
	}
	return out
}
