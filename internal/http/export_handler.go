package http

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"fintrack/internal/analytics"
)

// csvHeader is the fixed export schema. Downstream tooling depends on the
// exact column order.
var csvHeader = []string{
	"type", "id", "session_id", "page_url", "referrer",
	"button_id", "button_text", "created_at",
}

// ExportCSVAction streams all visits and clicks in the range as CSV.
func ExportCSVAction(ctx *cartridge.Context) error {
	if !isAdmin(ctx) {
		return unauthorized(ctx)
	}

	eventType := ctx.Query("type", analytics.RecentTypeAll)
	rows, err := analytics.ExportEvents(ctx.DB(), statsParams(ctx), eventType)
	if err != nil {
		return statsError(ctx, "export", err)
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(csvHeader); err != nil {
		return statsError(ctx, "export", err)
	}

	for _, row := range rows {
		record := []string{
			row.Type,
			strconv.FormatUint(uint64(row.ID), 10),
			row.SessionID,
			row.PageURL,
			row.Referrer,
			row.ButtonID,
			row.ButtonText,
			row.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return statsError(ctx, "export", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return statsError(ctx, "export", err)
	}

	filename := fmt.Sprintf("fintrack-export-%s.csv", time.Now().UTC().Format("2006-01-02"))
	ctx.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	ctx.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return ctx.Send(buf.Bytes())
}
