package analytics

import (
	"fmt"

	"gorm.io/gorm"
)

// breakdownByColumn groups visits by one classification column. Rows where
// the column is unset are excluded.
func breakdownByColumn(db *gorm.DB, params QueryParams, column string) ([]MetricCountResult, error) {
	clause, args := rangeClause(params)
	args = append(args, params.EffectiveLimit())

	// column is always one of the fixed callers below, never user input.
	query := fmt.Sprintf(`
		SELECT %s AS name, COUNT(*) AS count
		FROM page_visits
		WHERE %s != ''%s
		GROUP BY name
		ORDER BY count DESC, name ASC
		LIMIT ?
	`, column, column, clause)

	var results []MetricCountResult
	if err := db.Raw(query, args...).Scan(&results).Error; err != nil {
		return nil, fmt.Errorf("error fetching %s breakdown: %w", column, err)
	}
	return results, nil
}

// DeviceBreakdown returns visit counts grouped by device type.
func DeviceBreakdown(db *gorm.DB, params QueryParams) ([]MetricCountResult, error) {
	return breakdownByColumn(db, params, "device_type")
}

// OSBreakdown returns visit counts grouped by operating system name.
func OSBreakdown(db *gorm.DB, params QueryParams) ([]MetricCountResult, error) {
	return breakdownByColumn(db, params, "os_name")
}

// BrowserBreakdown returns visit counts grouped by browser name.
func BrowserBreakdown(db *gorm.DB, params QueryParams) ([]MetricCountResult, error) {
	return breakdownByColumn(db, params, "browser_name")
}
