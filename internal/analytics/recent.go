package analytics

import (
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
)

// Recent event type filters for the merged feed.
const (
	RecentTypeAll   = "all"
	RecentTypeVisit = "visit"
	RecentTypeClick = "click"
)

// RecentEvent is one row of the merged activity feed shown on the dashboard.
// Click-only fields are empty for visits and vice versa.
type RecentEvent struct {
	Type       string    `json:"type"`
	ID         uint      `json:"id"`
	SessionID  string    `json:"session_id"`
	PageURL    string    `json:"page_url"`
	Referrer   string    `json:"referrer,omitempty"`
	ButtonID   string    `json:"button_id,omitempty"`
	ButtonText string    `json:"button_text,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// RecentEvents returns the newest events of the requested type, newest first.
// With RecentTypeAll each source contributes at most limit/2 rows before the
// merge, so an odd limit yields one row fewer than asked and a source with
// few recent rows can leave the feed under-filled even when older rows of the
// other type exist. The split is kept for dashboard compatibility.
func RecentEvents(db *gorm.DB, limit int, eventType string) ([]RecentEvent, error) {
	if limit <= 0 {
		limit = 20
	}

	perSource := limit
	if eventType == RecentTypeAll || eventType == "" {
		perSource = limit / 2
	}

	var visits []RecentEvent
	if eventType != RecentTypeClick {
		err := db.Raw(`
			SELECT 'visit' AS type, id, session_id, page_url, referrer, created_at
			FROM page_visits
			ORDER BY created_at DESC
			LIMIT ?
		`, perSource).Scan(&visits).Error
		if err != nil {
			return nil, fmt.Errorf("error fetching recent visits: %w", err)
		}
	}

	var clicks []RecentEvent
	if eventType != RecentTypeVisit {
		err := db.Raw(`
			SELECT 'click' AS type, id, session_id, page_url, button_id, button_text, created_at
			FROM click_events
			ORDER BY created_at DESC
			LIMIT ?
		`, perSource).Scan(&clicks).Error
		if err != nil {
			return nil, fmt.Errorf("error fetching recent clicks: %w", err)
		}
	}

	merged := append(visits, clicks...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}
