// Package analytics computes read-side aggregates over the raw event tables.
// All queries are pure reads; the only write-side coupling is the summary
// endpoint sweeping expired sessions before counting live ones.
package analytics

import (
	"time"
)

// QueryParams scopes an aggregation query to a time range. A zero From or To
// leaves that side of the range open.
type QueryParams struct {
	From  time.Time
	To    time.Time
	Limit int
}

// DefaultLimit bounds breakdown queries when the caller does not set one.
const DefaultLimit = 10

// EffectiveLimit returns the query limit, falling back to DefaultLimit.
func (p QueryParams) EffectiveLimit() int {
	if p.Limit <= 0 {
		return DefaultLimit
	}
	return p.Limit
}

// rangeClause builds the created_at predicate and args for the params. The
// returned clause always starts with AND so it can be appended to a WHERE 1=1
// query.
func rangeClause(p QueryParams) (string, []any) {
	clause := ""
	args := []any{}
	if !p.From.IsZero() {
		clause += " AND created_at >= ?"
		args = append(args, p.From.UTC())
	}
	if !p.To.IsZero() {
		clause += " AND created_at <= ?"
		args = append(args, p.To.UTC())
	}
	return clause, args
}

// MetricCountResult is a generic name/count pair used by breakdown queries.
type MetricCountResult struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// DateStat is one bucket of a per-day time series.
type DateStat struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}
