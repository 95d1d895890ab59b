package joiner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/David-Botos/orders-etl/pkg/model"
)

func strPtr(s string) *string { return &s }

func orders(userIDs ...string) []model.CleanOrder {
	out := make([]model.CleanOrder, 0, len(userIDs))
	for i, id := range userIDs {
		out = append(out, model.CleanOrder{
			OrderID: string(rune('a' + i)),
			UserID:  id,
			IsNA:    map[string]bool{"amount": false},
		})
	}
	return out
}

func TestLeftJoinPreservesRowCount(t *testing.T) {
	tests := []struct {
		name  string
		users []model.CleanUser
	}{
		{name: "empty users", users: nil},
		{name: "no matches", users: []model.CleanUser{{UserID: "zz", Country: strPtr("FR")}}},
		{name: "duplicate keys", users: []model.CleanUser{
			{UserID: "1", Country: strPtr("US")},
			{UserID: "1", Country: strPtr("CA")},
			{UserID: "2", Country: strPtr("DE")},
			{UserID: "2", Country: strPtr("DE")},
		}},
	}

	in := orders("1", "2", "1", "3")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := LeftJoin(in, tt.users)
			require.Len(t, result.Rows, len(in))
			for i, row := range result.Rows {
				assert.Equal(t, in[i].OrderID, row.OrderID)
			}
		})
	}
}

func TestLeftJoinFirstOccurrenceWins(t *testing.T) {
	users := []model.CleanUser{
		{UserID: "1", Country: strPtr("US")},
		{UserID: "1", Country: strPtr("CA")},
	}

	result := LeftJoin(orders("1"), users)

	require.Len(t, result.Rows, 1)
	assert.Equal(t, "US", *result.Rows[0].Country)
	assert.Equal(t, []string{"1"}, result.Duplicates)

	warnings := result.Warnings("join")
	require.Len(t, warnings, 1)
	assert.Equal(t, model.WarningJoinIntegrity, warnings[0].Kind)
}

func TestLeftJoinMatchRate(t *testing.T) {
	users := []model.CleanUser{
		{UserID: "1", Country: strPtr("US")},
		{UserID: "2"}, // matched but without a country
	}

	result := LeftJoin(orders("1", "2", "3", "4"), users)

	assert.Equal(t, 2, result.Matched)
	assert.InDelta(t, 0.25, result.MatchRate, 1e-12)
	assert.Nil(t, result.Rows[2].Country)
	assert.Empty(t, result.Warnings("join"))
}

func TestLeftJoinEmptyOrders(t *testing.T) {
	result := LeftJoin(nil, []model.CleanUser{{UserID: "1"}})

	assert.Empty(t, result.Rows)
	assert.Zero(t, result.MatchRate)
}

func TestLeftJoinDoesNotShareInputState(t *testing.T) {
	in := orders("1")
	users := []model.CleanUser{{UserID: "1", Country: strPtr("US")}}

	result := LeftJoin(in, users)
	result.Rows[0].IsNA["amount"] = true
	*result.Rows[0].Country = "XX"

	assert.False(t, in[0].IsNA["amount"])
	assert.Equal(t, "US", *users[0].Country)
}
