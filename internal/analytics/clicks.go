package analytics

import (
	"fmt"

	"gorm.io/gorm"
)

// ClicksCount returns the number of button clicks in the range.
func ClicksCount(db *gorm.DB, params QueryParams) (int64, error) {
	clause, args := rangeClause(params)

	var count int64
	err := db.Raw(`SELECT COUNT(*) FROM click_events WHERE 1=1`+clause, args...).
		Scan(&count).Error
	if err != nil {
		return 0, fmt.Errorf("error counting clicks: %w", err)
	}
	return count, nil
}

// ButtonStat is one row of the top-buttons breakdown. The text carried is the
// most recently seen label for the button.
type ButtonStat struct {
	ButtonID   string `json:"button_id"`
	ButtonText string `json:"button_text"`
	Count      int64  `json:"count"`
}

// TopButtons returns the most clicked buttons in the range, ordered by click
// count descending.
func TopButtons(db *gorm.DB, params QueryParams) ([]ButtonStat, error) {
	clause, args := rangeClause(params)
	args = append(args, params.EffectiveLimit())

	query := `
		SELECT
			button_id,
			MAX(button_text) AS button_text,
			COUNT(*) AS count
		FROM click_events
		WHERE 1=1` + clause + `
		GROUP BY button_id
		ORDER BY count DESC, button_id ASC
		LIMIT ?
	`

	var results []ButtonStat
	if err := db.Raw(query, args...).Scan(&results).Error; err != nil {
		return nil, fmt.Errorf("error fetching top buttons: %w", err)
	}
	return results, nil
}
