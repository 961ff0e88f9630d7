// Package v1 exposes the public tracking API consumed by the browser snippet.
package v1

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"fintrack/internal/events"
)

const (
	msgEventAdded     = "Event recorded successfully"
	errInvalidRequest = "Invalid request"
)

// notifier receives post-commit live updates. Nil until the live hub is
// mounted; ingestion works without it.
var notifier events.Notifier

// SetNotifier wires the live hub into the tracking handlers. Called once at
// route mount time, before the server accepts traffic.
func SetNotifier(n events.Notifier) {
	notifier = n
}

type trackVisitParams struct {
	SessionID      string `json:"session_id"`
	PageURL        string `json:"page_url"`
	Referrer       string `json:"referrer"`
	CountryCode    string `json:"country_code"`
	ConsentGiven   bool   `json:"consent_given"`
	ScreenWidth    int    `json:"screen_width"`
	ScreenHeight   int    `json:"screen_height"`
	ViewportWidth  int    `json:"viewport_width"`
	ViewportHeight int    `json:"viewport_height"`
}

// TrackVisitHandler records a page visit.
func TrackVisitHandler(ctx *cartridge.Context) error {
	var params trackVisitParams
	if err := ctx.BodyParser(&params); err != nil {
		ctx.Logger.Debug("Failed to parse visit request", slog.Any("error", err))
		return badRequest(ctx.Ctx, errInvalidRequest)
	}

	userAgentHeader := ctx.Get("User-Agent")
	if forwardedUA := ctx.Get("X-Forwarded-User-Agent"); forwardedUA != "" {
		userAgentHeader = forwardedUA
	}

	input := &events.TrackVisitInput{
		SessionID:      params.SessionID,
		PageURL:        params.PageURL,
		Referrer:       params.Referrer,
		CountryCode:    params.CountryCode,
		UserAgent:      userAgentHeader,
		IPAddress:      getClientIP(ctx.Ctx),
		ConsentGiven:   params.ConsentGiven,
		ScreenWidth:    params.ScreenWidth,
		ScreenHeight:   params.ScreenHeight,
		ViewportWidth:  params.ViewportWidth,
		ViewportHeight: params.ViewportHeight,
	}

	id, err := events.TrackVisit(ctx.DBManager, ctx.Logger, notifier, input)
	if err != nil {
		return handleTrackError(ctx, "visit", err)
	}

	return created(ctx.Ctx, id)
}

type trackClickParams struct {
	SessionID    string `json:"session_id"`
	ButtonID     string `json:"button_id"`
	ButtonText   string `json:"button_text"`
	PageURL      string `json:"page_url"`
	ConsentGiven bool   `json:"consent_given"`
}

// TrackClickHandler records a button click.
func TrackClickHandler(ctx *cartridge.Context) error {
	var params trackClickParams
	if err := ctx.BodyParser(&params); err != nil {
		ctx.Logger.Debug("Failed to parse click request", slog.Any("error", err))
		return badRequest(ctx.Ctx, errInvalidRequest)
	}

	input := &events.TrackClickInput{
		SessionID:    params.SessionID,
		ButtonID:     params.ButtonID,
		ButtonText:   params.ButtonText,
		PageURL:      params.PageURL,
		IPAddress:    getClientIP(ctx.Ctx),
		ConsentGiven: params.ConsentGiven,
	}

	id, err := events.TrackClick(ctx.DBManager, ctx.Logger, notifier, input)
	if err != nil {
		return handleTrackError(ctx, "click", err)
	}

	return created(ctx.Ctx, id)
}

type trackConsentParams struct {
	SessionID    string `json:"session_id"`
	ConsentGiven bool   `json:"consent_given"`
}

// TrackConsentHandler records or updates a session's consent choice. This
// endpoint is exempt from the consent gate so a refusal can be recorded.
func TrackConsentHandler(ctx *cartridge.Context) error {
	var params trackConsentParams
	if err := ctx.BodyParser(&params); err != nil {
		ctx.Logger.Debug("Failed to parse consent request", slog.Any("error", err))
		return badRequest(ctx.Ctx, errInvalidRequest)
	}

	input := &events.TrackConsentInput{
		SessionID:    params.SessionID,
		ConsentGiven: params.ConsentGiven,
		IPAddress:    getClientIP(ctx.Ctx),
	}

	if err := events.TrackConsent(ctx.DBManager, ctx.Logger, notifier, input); err != nil {
		return handleTrackError(ctx, "consent", err)
	}

	return ctx.Status(http.StatusOK).JSON(fiber.Map{
		"message": msgEventAdded,
		"status":  http.StatusOK,
	})
}

type trackPageExitParams struct {
	SessionID  string `json:"session_id"`
	PageURL    string `json:"page_url"`
	TimeOnPage int    `json:"time_on_page"`
}

// TrackPageExitHandler closes out a visit with its dwell time. Sent via
// navigator.sendBeacon on unload, so the body may arrive as text/plain.
func TrackPageExitHandler(ctx *cartridge.Context) error {
	var params trackPageExitParams
	if err := ctx.BodyParser(&params); err != nil {
		ctx.Logger.Debug("Failed to parse page exit request", slog.Any("error", err))
		return badRequest(ctx.Ctx, errInvalidRequest)
	}

	input := &events.TrackPageExitInput{
		SessionID:  params.SessionID,
		PageURL:    params.PageURL,
		TimeOnPage: params.TimeOnPage,
	}

	if err := events.TrackPageExit(ctx.DBManager, ctx.Logger, notifier, input); err != nil {
		return handleTrackError(ctx, "page exit", err)
	}

	return ctx.SendStatus(http.StatusOK)
}

type heatmapClickParams struct {
	XPosition       int    `json:"x_position"`
	YPosition       int    `json:"y_position"`
	ViewportWidth   int    `json:"viewport_width"`
	ViewportHeight  int    `json:"viewport_height"`
	ElementSelector string `json:"element_selector"`
	ElementText     string `json:"element_text"`
}

type trackHeatmapParams struct {
	SessionID    string               `json:"session_id"`
	PageURL      string               `json:"page_url"`
	Clicks       []heatmapClickParams `json:"clicks"`
	ConsentGiven bool                 `json:"consent_given"`
}

// TrackHeatmapHandler records a batch of click coordinates.
func TrackHeatmapHandler(ctx *cartridge.Context) error {
	var params trackHeatmapParams
	if err := ctx.BodyParser(&params); err != nil {
		ctx.Logger.Debug("Failed to parse heatmap request", slog.Any("error", err))
		return badRequest(ctx.Ctx, errInvalidRequest)
	}

	clicks := make([]events.HeatmapPoint, 0, len(params.Clicks))
	for _, c := range params.Clicks {
		clicks = append(clicks, events.HeatmapPoint{
			XPosition:       c.XPosition,
			YPosition:       c.YPosition,
			ViewportWidth:   c.ViewportWidth,
			ViewportHeight:  c.ViewportHeight,
			ElementSelector: c.ElementSelector,
			ElementText:     c.ElementText,
		})
	}

	input := &events.TrackHeatmapInput{
		SessionID:    params.SessionID,
		PageURL:      params.PageURL,
		Clicks:       clicks,
		ConsentGiven: params.ConsentGiven,
	}

	count, err := events.TrackHeatmapBatch(ctx.DBManager, ctx.Logger, notifier, input)
	if err != nil {
		return handleTrackError(ctx, "heatmap", err)
	}

	return ctx.Status(http.StatusCreated).JSON(fiber.Map{
		"message": msgEventAdded,
		"count":   count,
		"status":  http.StatusCreated,
	})
}

type trackConversionParams struct {
	SessionID    string         `json:"session_id"`
	EventName    string         `json:"event_name"`
	PageURL      string         `json:"page_url"`
	EventData    map[string]any `json:"event_data"`
	ConsentGiven bool           `json:"consent_given"`
}

// TrackConversionHandler records a conversion funnel event.
func TrackConversionHandler(ctx *cartridge.Context) error {
	var params trackConversionParams
	if err := ctx.BodyParser(&params); err != nil {
		ctx.Logger.Debug("Failed to parse conversion request", slog.Any("error", err))
		return badRequest(ctx.Ctx, errInvalidRequest)
	}

	input := &events.TrackConversionInput{
		SessionID:    params.SessionID,
		EventName:    params.EventName,
		PageURL:      params.PageURL,
		EventData:    params.EventData,
		ConsentGiven: params.ConsentGiven,
	}

	id, err := events.TrackConversion(ctx.DBManager, ctx.Logger, notifier, input)
	if err != nil {
		return handleTrackError(ctx, "conversion", err)
	}

	return created(ctx.Ctx, id)
}

// handleTrackError maps pipeline failures onto the public API status codes.
// Persistence details never leak to the client.
func handleTrackError(ctx *cartridge.Context, operation string, err error) error {
	var validationErr *events.ValidationError
	if errors.As(err, &validationErr) {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": validationErr.Error(),
			"code":  "VALIDATION_ERROR",
		})
	}

	if errors.Is(err, events.ErrConsentRequired) {
		return ctx.Status(http.StatusForbidden).JSON(fiber.Map{
			"error": "Consent required",
			"code":  "CONSENT_REQUIRED",
		})
	}

	var notFoundErr *events.NotFoundError
	if errors.As(err, &notFoundErr) {
		return ctx.Status(http.StatusNotFound).JSON(fiber.Map{
			"error": notFoundErr.Error(),
			"code":  "NOT_FOUND",
		})
	}

	ctx.Logger.Error("Failed to track event",
		slog.String("operation", operation),
		slog.Any("error", err))

	if strings.Contains(err.Error(), "database is locked") || strings.Contains(err.Error(), "busy") {
		return ctx.Status(599).JSON(fiber.Map{}) // custom status code
	}

	return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
		"error": "Failed to record event",
		"code":  "COLLECTION_ERROR",
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(http.StatusBadRequest).JSON(fiber.Map{
		"error": message,
		"code":  "VALIDATION_ERROR",
	})
}

func created(c *fiber.Ctx, id uint) error {
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"message": msgEventAdded,
		"id":      id,
		"status":  http.StatusCreated,
	})
}
