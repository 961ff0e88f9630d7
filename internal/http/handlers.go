// Package http contains the admin dashboard JSON handlers.
package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"fintrack/internal/analytics"
)

// isAdmin reports whether the request carries a valid admin session. Admin
// endpoints check this explicitly and answer JSON 401 instead of relying on
// redirect middleware; the dashboard is an API client, not a form flow.
func isAdmin(ctx *cartridge.Context) bool {
	return ctx.Session != nil && ctx.Session.IsAuthenticated(ctx.Ctx)
}

func unauthorized(ctx *cartridge.Context) error {
	return ctx.Status(http.StatusUnauthorized).JSON(fiber.Map{
		"error": "Unauthorized",
		"code":  "UNAUTHORIZED",
	})
}

// statsParams builds aggregation query params from the request: a named
// range preset, optionally overridden by explicit RFC3339 from/to values,
// plus a result limit.
func statsParams(ctx *cartridge.Context) analytics.QueryParams {
	from, to := calculateDateRange(ctx.Query("range", "last_7_days"))

	if raw := ctx.Query("from"); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			from = parsed
		}
	}
	if raw := ctx.Query("to"); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			to = parsed
		}
	}

	limit, _ := strconv.Atoi(ctx.Query("limit", "0"))

	return analytics.QueryParams{From: from, To: to, Limit: limit}
}

// calculateDateRange calculates from and to dates based on range filter
func calculateDateRange(rangeFilter string) (time.Time, time.Time) {
	now := time.Now().UTC()
	var fromDate, toDate time.Time

	switch rangeFilter {
	case "today":
		fromDate = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		toDate = now
	case "yesterday":
		yesterday := now.AddDate(0, 0, -1)
		fromDate = time.Date(yesterday.Year(), yesterday.Month(), yesterday.Day(), 0, 0, 0, 0, yesterday.Location())
		toDate = time.Date(yesterday.Year(), yesterday.Month(), yesterday.Day(), 23, 59, 59, 999999999, yesterday.Location())
	case "last_7_days":
		fromDate = now.AddDate(0, 0, -7)
		toDate = now
	case "last_30_days":
		fromDate = now.AddDate(0, 0, -30)
		toDate = now
	case "last_90_days":
		fromDate = now.AddDate(0, 0, -90)
		toDate = now
	case "this_month":
		fromDate = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		toDate = now
	case "last_month":
		firstOfThisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		firstOfLastMonth := firstOfThisMonth.AddDate(0, -1, 0)
		lastOfLastMonth := firstOfThisMonth.AddDate(0, 0, -1)
		fromDate = firstOfLastMonth
		toDate = time.Date(lastOfLastMonth.Year(), lastOfLastMonth.Month(), lastOfLastMonth.Day(), 23, 59, 59, 999999999, lastOfLastMonth.Location())
	default:
		// Default to last 7 days
		fromDate = now.AddDate(0, 0, -7)
		toDate = now
	}

	return fromDate, toDate
}
