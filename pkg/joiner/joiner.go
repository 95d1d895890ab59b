// Package joiner attaches user attributes to orders.
package joiner

import (
	"fmt"

	"github.com/David-Botos/orders-etl/pkg/model"
)

// Result is the output of LeftJoin
type Result struct {
	Rows []model.AnalyticsRow

	// Matched counts orders whose user_id was found in the users table
	Matched int

	// MatchRate is the fraction of rows with a non-null country, 0 when
	// there are no orders
	MatchRate float64

	// Duplicates lists user_ids that occur more than once in the users
	// table, in first-seen order
	Duplicates []string
}

// LeftJoin joins every order to at most one user on user_id. The result has
// exactly one row per order in input order. When a user_id occurs more than
// once the first occurrence wins.
func LeftJoin(orders []model.CleanOrder, users []model.CleanUser) Result {
	index := make(map[string]int, len(users))
	seenDuplicate := make(map[string]bool)
	var result Result

	for i, u := range users {
		if _, exists := index[u.UserID]; exists {
			if !seenDuplicate[u.UserID] {
				seenDuplicate[u.UserID] = true
				result.Duplicates = append(result.Duplicates, u.UserID)
			}
			continue
		}
		index[u.UserID] = i
	}

	result.Rows = make([]model.AnalyticsRow, 0, len(orders))
	withCountry := 0
	for _, o := range orders {
		row := model.AnalyticsRow{CleanOrder: o.Clone()}
		if i, ok := index[o.UserID]; ok {
			result.Matched++
			user := users[i]
			row.Country = copyString(user.Country)
			if user.SignupAt != nil {
				ts := *user.SignupAt
				row.SignupAt = &ts
			}
		}
		if row.Country != nil {
			withCountry++
		}
		result.Rows = append(result.Rows, row)
	}

	if len(orders) > 0 {
		result.MatchRate = float64(withCountry) / float64(len(orders))
	}
	return result
}

// Warnings converts the join's integrity findings into run warnings
func (r Result) Warnings(stage string) []model.Warning {
	if len(r.Duplicates) == 0 {
		return nil
	}
	return []model.Warning{{
		Kind:    model.WarningJoinIntegrity,
		Stage:   stage,
		Table:   model.TableUsers,
		Column:  "user_id",
		Message: fmt.Sprintf("%d duplicate user_id value(s), first occurrence kept: %v", len(r.Duplicates), r.Duplicates),
	}}
}

func copyString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
