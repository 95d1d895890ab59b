// pkg/cleaner/cleaner.go
package cleaner

import (
	"errors"

	"go.uber.org/zap"

	"github.com/David-Botos/orders-etl/pkg/model"
)

// Options holds the static cleaning configuration
type Options struct {
	StatusSynonyms   map[string]string // normalized value -> canonical value
	TimestampFormats []string          // tried in order, first match wins
	OrderNullWatch   []string          // order columns that get a __isna flag
	UserNullWatch    []string          // user columns that get a __isna flag
}

// DataCleaner normalizes raw orders and users. It never mutates its
// inputs and never imputes missing values.
type DataCleaner struct {
	opts   Options
	logger *zap.Logger
}

// NewDataCleaner creates a new DataCleaner instance
func NewDataCleaner(opts Options, logger *zap.Logger) (*DataCleaner, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if len(opts.TimestampFormats) == 0 {
		return nil, errors.New("at least one timestamp format is required")
	}

	return &DataCleaner{
		opts:   opts,
		logger: logger,
	}, nil
}

// CleanOrders cleans a batch of orders and returns cleaned rows together
// with the cleaning operations performed
func (c *DataCleaner) CleanOrders(rows []model.RawOrder) ([]model.CleanOrder, []model.CleaningOperation) {
	cleaned := make([]model.CleanOrder, 0, len(rows))
	var allOperations []model.CleaningOperation

	for _, row := range rows {
		order, operations := c.cleanOrder(row)
		cleaned = append(cleaned, order)
		allOperations = append(allOperations, operations...)
	}

	c.logger.Info("Cleaned orders",
		zap.Int("rows", len(cleaned)),
		zap.Int("operations", len(allOperations)))
	return cleaned, allOperations
}

// CleanUsers cleans a batch of users
func (c *DataCleaner) CleanUsers(rows []model.RawUser) ([]model.CleanUser, []model.CleaningOperation) {
	cleaned := make([]model.CleanUser, 0, len(rows))
	var allOperations []model.CleaningOperation

	for _, row := range rows {
		user, operations := c.cleanUser(row)
		cleaned = append(cleaned, user)
		allOperations = append(allOperations, operations...)
	}

	c.logger.Info("Cleaned users",
		zap.Int("rows", len(cleaned)),
		zap.Int("operations", len(allOperations)))
	return cleaned, allOperations
}

// cleanOrder normalizes a single order row
func (c *DataCleaner) cleanOrder(row model.RawOrder) (model.CleanOrder, []model.CleaningOperation) {
	var operations []model.CleaningOperation

	order := model.CleanOrder{
		OrderID:  row.OrderID,
		UserID:   row.UserID,
		Amount:   copyFloat(row.Amount),
		Quantity: copyInt(row.Quantity),
		Status:   copyString(row.Status),
	}

	// Status: normalize then map synonyms; nulls stay null
	if row.Status != nil {
		clean, ok := CleanCategory(*row.Status, c.opts.StatusSynonyms)
		if ok {
			order.StatusClean = &clean
			if clean != *row.Status {
				operations = append(operations, newOperation(
					model.TableOrdersClean, "status", row.OrderID,
					row.Status, &clean, model.OpStatusNormalized, statusReason(*row.Status, clean, c.opts.StatusSynonyms),
				))
			}
		}
	}

	// Timestamp: soft failure to null
	if row.CreatedAt != nil {
		if ts, ok := ParseTimestamp(*row.CreatedAt, c.opts.TimestampFormats); ok {
			order.CreatedAt = &ts
		} else if !isBlank(*row.CreatedAt) {
			operations = append(operations, newOperation(
				model.TableOrdersClean, "created_at", row.OrderID,
				row.CreatedAt, nil, model.OpTimestampUnparseable, "no_matching_format",
			))
		}
	}

	order.IsNA = make(map[string]bool, len(c.opts.OrderNullWatch))
	for _, col := range c.opts.OrderNullWatch {
		order.IsNA[col] = orderValueIsNA(order, col)
	}

	return order, operations
}

// cleanUser normalizes a single user row
func (c *DataCleaner) cleanUser(row model.RawUser) (model.CleanUser, []model.CleaningOperation) {
	var operations []model.CleaningOperation

	user := model.CleanUser{UserID: row.UserID}

	if row.Country != nil {
		if country, ok := NormalizeCountry(*row.Country); ok {
			user.Country = &country
			if country != *row.Country {
				operations = append(operations, newOperation(
					model.TableUsers, "country", row.UserID,
					row.Country, &country, model.OpCountryNormalized, "trim_and_case",
				))
			}
		}
	}

	if row.SignupAt != nil {
		if ts, ok := ParseTimestamp(*row.SignupAt, c.opts.TimestampFormats); ok {
			user.SignupAt = &ts
		} else if !isBlank(*row.SignupAt) {
			operations = append(operations, newOperation(
				model.TableUsers, "signup_at", row.UserID,
				row.SignupAt, nil, model.OpTimestampUnparseable, "no_matching_format",
			))
		}
	}

	user.IsNA = make(map[string]bool, len(c.opts.UserNullWatch))
	for _, col := range c.opts.UserNullWatch {
		user.IsNA[col] = userValueIsNA(user, col)
	}

	return user, operations
}

// orderValueIsNA reports whether a cleaned order column is null
func orderValueIsNA(o model.CleanOrder, col string) bool {
	switch col {
	case "order_id":
		return isBlank(o.OrderID)
	case "user_id":
		return isBlank(o.UserID)
	case "amount":
		return o.Amount == nil
	case "quantity":
		return o.Quantity == nil
	case "status":
		return o.StatusClean == nil
	case "created_at":
		return o.CreatedAt == nil
	default:
		return false
	}
}

// userValueIsNA reports whether a cleaned user column is null
func userValueIsNA(u model.CleanUser, col string) bool {
	switch col {
	case "user_id":
		return isBlank(u.UserID)
	case "country":
		return u.Country == nil
	case "signup_at":
		return u.SignupAt == nil
	default:
		return false
	}
}

func statusReason(original, clean string, synonyms map[string]string) string {
	if _, mapped := synonyms[NormalizeText(original)]; mapped && NormalizeText(original) != clean {
		return "synonym_mapping"
	}
	return "trim_and_case"
}

func newOperation(table, column, rowID string, original, newValue *string, op, reason string) model.CleaningOperation {
	return model.CleaningOperation{
		TableName:         table,
		ColumnName:        column,
		OriginalValue:     copyString(original),
		NewValue:          copyString(newValue),
		RowIdentifier:     rowID,
		CleaningOperation: op,
		CleaningReason:    reason,
	}
}
