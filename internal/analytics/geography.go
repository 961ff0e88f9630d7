package analytics

import (
	"fmt"

	"github.com/pariz/gountries"
	"gorm.io/gorm"
)

var countryQuery = gountries.New()

// CountryStat is one row of the geography breakdown.
type CountryStat struct {
	CountryCode string `json:"country_code"`
	CountryName string `json:"country_name"`
	Count       int64  `json:"count"`
}

// CountryName resolves an ISO 3166-1 alpha-2 code to a display name. Unknown
// or empty codes map to "Unknown".
func CountryName(code string) string {
	if code == "" {
		return "Unknown"
	}
	country, err := countryQuery.FindCountryByAlpha(code)
	if err != nil {
		return "Unknown"
	}
	return country.Name.Common
}

// CountryBreakdown returns visit counts grouped by country code, ordered by
// count descending, with display names resolved. Visits without a resolved
// country are excluded.
func CountryBreakdown(db *gorm.DB, params QueryParams) ([]CountryStat, error) {
	clause, args := rangeClause(params)
	args = append(args, params.EffectiveLimit())

	query := `
		SELECT country_code, COUNT(*) AS count
		FROM page_visits
		WHERE country_code != ''` + clause + `
		GROUP BY country_code
		ORDER BY count DESC, country_code ASC
		LIMIT ?
	`

	var results []CountryStat
	if err := db.Raw(query, args...).Scan(&results).Error; err != nil {
		return nil, fmt.Errorf("error fetching country breakdown: %w", err)
	}

	for i := range results {
		results[i].CountryName = CountryName(results[i].CountryCode)
	}
	return results, nil
}
