package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"fintrack/internal/analytics"
)

// RecentEventsAction returns the merged visit/click activity feed.
func RecentEventsAction(ctx *cartridge.Context) error {
	if !isAdmin(ctx) {
		return unauthorized(ctx)
	}

	limit, _ := strconv.Atoi(ctx.Query("limit", "20"))
	eventType := ctx.Query("type", analytics.RecentTypeAll)

	feed, err := analytics.RecentEvents(ctx.DB(), limit, eventType)
	if err != nil {
		return statsError(ctx, "recent events", err)
	}

	return ctx.JSON(fiber.Map{
		"events": feed,
		"count":  len(feed),
	})
}
