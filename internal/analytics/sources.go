package analytics

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"gorm.io/gorm"
)

// DirectSource labels visits with no usable referrer.
const DirectSource = "Direct"

// NormalizeReferrer reduces a raw referrer value to a source label: the
// referrer hostname without a www. prefix, or DirectSource when the value is
// empty or unparseable.
func NormalizeReferrer(referrer string) string {
	referrer = strings.TrimSpace(referrer)
	if referrer == "" {
		return DirectSource
	}

	parsed, err := url.Parse(referrer)
	if err != nil || parsed.Hostname() == "" {
		// Bare hostnames arrive without a scheme.
		host := strings.ToLower(referrer)
		host = strings.TrimPrefix(host, "www.")
		if host == "" || strings.ContainsAny(host, " /") {
			return DirectSource
		}
		return host
	}

	host := strings.ToLower(parsed.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// TrafficSources returns visit counts grouped by normalized referrer source,
// ordered by count descending. Distinct raw referrers collapsing to the same
// source are merged.
func TrafficSources(db *gorm.DB, params QueryParams) ([]MetricCountResult, error) {
	clause, args := rangeClause(params)

	query := `
		SELECT referrer AS name, COUNT(*) AS count
		FROM page_visits
		WHERE 1=1` + clause + `
		GROUP BY referrer
	`

	var raw []MetricCountResult
	if err := db.Raw(query, args...).Scan(&raw).Error; err != nil {
		return nil, fmt.Errorf("error fetching traffic sources: %w", err)
	}

	merged := make(map[string]int64)
	for _, row := range raw {
		merged[NormalizeReferrer(row.Name)] += row.Count
	}

	results := make([]MetricCountResult, 0, len(merged))
	for name, count := range merged {
		results = append(results, MetricCountResult{Name: name, Count: count})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Count != results[j].Count {
			return results[i].Count > results[j].Count
		}
		return results[i].Name < results[j].Name
	})

	if limit := params.EffectiveLimit(); len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
