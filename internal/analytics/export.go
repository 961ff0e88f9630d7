package analytics

import (
	"fmt"
	"sort"

	"gorm.io/gorm"
)

// ExportEvents returns the visits and clicks in the range as one merged
// stream, oldest first, for the CSV export. Unlike RecentEvents this is not
// capped; the retention job bounds how much history exists. An eventType of
// RecentTypeVisit or RecentTypeClick restricts the stream to one source.
func ExportEvents(db *gorm.DB, params QueryParams, eventType string) ([]RecentEvent, error) {
	clause, args := rangeClause(params)

	var visits []RecentEvent
	if eventType != RecentTypeClick {
		err := db.Raw(`
			SELECT 'visit' AS type, id, session_id, page_url, referrer, created_at
			FROM page_visits
			WHERE 1=1`+clause+`
			ORDER BY created_at ASC
		`, args...).Scan(&visits).Error
		if err != nil {
			return nil, fmt.Errorf("error exporting visits: %w", err)
		}
	}

	var clicks []RecentEvent
	if eventType != RecentTypeVisit {
		err := db.Raw(`
			SELECT 'click' AS type, id, session_id, page_url, button_id, button_text, created_at
			FROM click_events
			WHERE 1=1`+clause+`
			ORDER BY created_at ASC
		`, args...).Scan(&clicks).Error
		if err != nil {
			return nil, fmt.Errorf("error exporting clicks: %w", err)
		}
	}

	merged := append(visits, clicks...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.Before(merged[j].CreatedAt)
	})
	return merged, nil
}
