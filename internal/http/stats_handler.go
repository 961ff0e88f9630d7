package http

import (
	"net/http"

	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"fintrack/internal/analytics"
)

func statsError(ctx *cartridge.Context, what string, err error) error {
	ctx.Logger.Error("Failed to compute stats",
		slog.String("stat", what),
		slog.Any("error", err))
	return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
		"error": "Failed to compute " + what,
		"code":  "QUERY_ERROR",
	})
}

// SummaryAction returns the dashboard headline numbers. The windows are
// fixed (24h/7d), so no range parameters apply here.
func SummaryAction(ctx *cartridge.Context) error {
	if !isAdmin(ctx) {
		return unauthorized(ctx)
	}

	summary, err := analytics.SummaryStats(ctx.DBManager, ctx.Logger)
	if err != nil {
		return statsError(ctx, "summary", err)
	}
	return ctx.JSON(summary)
}

// ChartDataAction returns the visit time series plus source and button
// breakdowns for the main dashboard chart block.
func ChartDataAction(ctx *cartridge.Context) error {
	if !isAdmin(ctx) {
		return unauthorized(ctx)
	}

	db := ctx.DB()
	params := statsParams(ctx)

	visitsByDay, err := analytics.VisitsByDay(db, params)
	if err != nil {
		return statsError(ctx, "visits by day", err)
	}
	sources, err := analytics.TrafficSources(db, params)
	if err != nil {
		return statsError(ctx, "traffic sources", err)
	}
	topPages, err := analytics.TopPages(db, params)
	if err != nil {
		return statsError(ctx, "top pages", err)
	}
	topButtons, err := analytics.TopButtons(db, params)
	if err != nil {
		return statsError(ctx, "top buttons", err)
	}

	return ctx.JSON(fiber.Map{
		"visits_by_day":   visitsByDay,
		"traffic_sources": sources,
		"top_pages":       topPages,
		"top_buttons":     topButtons,
	})
}

// DevicesAction returns device, OS and browser breakdowns.
func DevicesAction(ctx *cartridge.Context) error {
	if !isAdmin(ctx) {
		return unauthorized(ctx)
	}

	db := ctx.DB()
	params := statsParams(ctx)

	devices, err := analytics.DeviceBreakdown(db, params)
	if err != nil {
		return statsError(ctx, "device breakdown", err)
	}
	oses, err := analytics.OSBreakdown(db, params)
	if err != nil {
		return statsError(ctx, "os breakdown", err)
	}
	browsers, err := analytics.BrowserBreakdown(db, params)
	if err != nil {
		return statsError(ctx, "browser breakdown", err)
	}

	return ctx.JSON(fiber.Map{
		"devices":  devices,
		"os":       oses,
		"browsers": browsers,
	})
}

// GeographyAction returns the per-country visit breakdown.
func GeographyAction(ctx *cartridge.Context) error {
	if !isAdmin(ctx) {
		return unauthorized(ctx)
	}

	countries, err := analytics.CountryBreakdown(ctx.DB(), statsParams(ctx))
	if err != nil {
		return statsError(ctx, "geography", err)
	}
	return ctx.JSON(fiber.Map{"countries": countries})
}

// TimeOnPageAction returns the overall average dwell time plus the per-page
// breakdown.
func TimeOnPageAction(ctx *cartridge.Context) error {
	if !isAdmin(ctx) {
		return unauthorized(ctx)
	}

	params := statsParams(ctx)
	average, err := analytics.OverallAverageTimeOnPage(ctx.DB(), params)
	if err != nil {
		return statsError(ctx, "time on page", err)
	}
	pages, err := analytics.AverageTimeOnPage(ctx.DB(), params)
	if err != nil {
		return statsError(ctx, "time on page", err)
	}
	return ctx.JSON(fiber.Map{
		"average_seconds": average,
		"pages":           pages,
	})
}

// FunnelAction returns the conversion funnel steps.
func FunnelAction(ctx *cartridge.Context) error {
	if !isAdmin(ctx) {
		return unauthorized(ctx)
	}

	steps, err := analytics.ConversionFunnel(ctx.DB(), statsParams(ctx))
	if err != nil {
		return statsError(ctx, "conversion funnel", err)
	}
	return ctx.JSON(fiber.Map{"steps": steps})
}

// HeatmapAction returns click coordinates, optionally scoped to one page.
func HeatmapAction(ctx *cartridge.Context) error {
	if !isAdmin(ctx) {
		return unauthorized(ctx)
	}

	pageURL := ctx.Query("page_url")

	points, err := analytics.HeatmapPoints(ctx.DB(), statsParams(ctx), pageURL)
	if err != nil {
		return statsError(ctx, "heatmap", err)
	}
	return ctx.JSON(fiber.Map{
		"page_url": pageURL,
		"points":   points,
	})
}
