package analytics

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// maxHeatmapPoints caps a heatmap response regardless of the caller's limit;
// the dashboard renders at most this many points.
const maxHeatmapPoints = 1000

// HeatmapPoint is one rendered click coordinate.
type HeatmapPoint struct {
	XPosition       int       `json:"x_position"`
	YPosition       int       `json:"y_position"`
	ViewportWidth   int       `json:"viewport_width"`
	ViewportHeight  int       `json:"viewport_height"`
	ElementSelector string    `json:"element_selector"`
	CreatedAt       time.Time `json:"created_at"`
}

// HeatmapPoints returns the most recent click coordinates, capped at
// maxHeatmapPoints. An empty pageURL returns points across all pages.
func HeatmapPoints(db *gorm.DB, params QueryParams, pageURL string) ([]HeatmapPoint, error) {
	limit := params.Limit
	if limit <= 0 || limit > maxHeatmapPoints {
		limit = maxHeatmapPoints
	}

	clause, args := rangeClause(params)
	if pageURL != "" {
		clause += " AND page_url = ?"
		args = append(args, pageURL)
	}
	args = append(args, limit)

	query := `
		SELECT
			x_position, y_position,
			viewport_width, viewport_height,
			element_selector, created_at
		FROM click_heatmaps
		WHERE 1=1` + clause + `
		ORDER BY created_at DESC
		LIMIT ?
	`

	var results []HeatmapPoint
	if err := db.Raw(query, args...).Scan(&results).Error; err != nil {
		return nil, fmt.Errorf("error fetching heatmap points: %w", err)
	}
	return results, nil
}
