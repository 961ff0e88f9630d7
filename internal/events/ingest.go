package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"fintrack/internal/config"
	"fintrack/internal/pkg/geoip"
	"fintrack/internal/pkg/useragent"
	"fintrack/internal/privacy"
)

// Payload size limits enforced at the ingestion boundary, not by the store.
const (
	maxPageURLLen     = 512
	maxReferrerLen    = 512
	maxButtonIDLen    = 255
	maxButtonTextLen  = 255
	maxEventNameLen   = 255
	maxSelectorLen    = 255
	maxElementTextLen = 255
)

// TrackVisitInput is the payload for a page visit event.
type TrackVisitInput struct {
	SessionID      string
	PageURL        string
	Referrer       string
	CountryCode    string
	UserAgent      string
	IPAddress      string
	ConsentGiven   bool
	ScreenWidth    int
	ScreenHeight   int
	ViewportWidth  int
	ViewportHeight int
}

// TrackClickInput is the payload for a button click event.
type TrackClickInput struct {
	SessionID    string
	ButtonID     string
	ButtonText   string
	PageURL      string
	IPAddress    string
	ConsentGiven bool
}

// TrackConsentInput is the payload for a cookie consent update.
type TrackConsentInput struct {
	SessionID    string
	ConsentGiven bool
	IPAddress    string
}

// TrackPageExitInput is the payload for a page exit event.
type TrackPageExitInput struct {
	SessionID  string
	PageURL    string
	TimeOnPage int // seconds spent on the page
}

// HeatmapPoint is one click coordinate within a heatmap batch.
type HeatmapPoint struct {
	XPosition       int
	YPosition       int
	ViewportWidth   int
	ViewportHeight  int
	ElementSelector string
	ElementText     string
}

// TrackHeatmapInput is the payload for a heatmap click batch. All points
// share the session and page; the batch commits atomically or not at all.
type TrackHeatmapInput struct {
	SessionID    string
	PageURL      string
	Clicks       []HeatmapPoint
	ConsentGiven bool
}

// TrackConversionInput is the payload for a conversion funnel event.
type TrackConversionInput struct {
	SessionID    string
	EventName    string
	PageURL      string
	EventData    map[string]any
	ConsentGiven bool
}

// TrackVisit validates, enriches and persists a page visit, upserting the
// session liveness row in the same transaction. Returns the new visit ID.
func TrackVisit(dbManager cartridge.DBManager, logger *slog.Logger, notifier Notifier, input *TrackVisitInput) (uint, error) {
	sessionID, err := parseSessionID(input.SessionID)
	if err != nil {
		return 0, err
	}
	if err := requireString("page_url", input.PageURL, maxPageURLLen); err != nil {
		return 0, err
	}
	if len(input.Referrer) > maxReferrerLen {
		return 0, NewValidationError("referrer", "exceeds maximum length")
	}
	if err := requireConsent(input.ConsentGiven); err != nil {
		return 0, err
	}

	cfg := config.GetConfig()

	// User-agent classification is best effort; a garbage header must never
	// fail ingestion.
	classification := useragent.Classify(input.UserAgent)

	country := normalizeCountryCode(input.CountryCode)
	if country == "" {
		country = geoip.CountryFromIP(input.IPAddress)
	}

	now := time.Now().UTC()
	visit := &PageVisit{
		SessionID:      sessionID,
		IPAddressHash:  privacy.AnonymizeIP(input.IPAddress, cfg.IPAnonymization),
		UserAgent:      input.UserAgent,
		PageURL:        input.PageURL,
		Referrer:       input.Referrer,
		CountryCode:    country,
		DeviceType:     classification.DeviceType,
		OSName:         classification.OSName,
		OSVersion:      classification.OSVersion,
		BrowserName:    classification.BrowserName,
		BrowserVersion: classification.BrowserVersion,
		ScreenWidth:    input.ScreenWidth,
		ScreenHeight:   input.ScreenHeight,
		ViewportWidth:  input.ViewportWidth,
		ViewportHeight: input.ViewportHeight,
		CreatedAt:      now,
	}

	db := dbManager.GetConnection()
	err = sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		if err := tx.Create(visit).Error; err != nil {
			return err
		}
		return upsertActiveSession(tx, sessionID, input.PageURL, now)
	})
	if err != nil {
		logger.Error("Failed to store page visit", slog.Any("error", err))
		return 0, fmt.Errorf("failed to store page visit: %w", err)
	}

	notify(notifier, LiveNewVisit, map[string]any{
		"session_id":  sessionID,
		"page_url":    input.PageURL,
		"device_type": classification.DeviceType,
		"country":     country,
	})

	return visit.ID, nil
}

// TrackClick validates and persists a button click event.
func TrackClick(dbManager cartridge.DBManager, logger *slog.Logger, notifier Notifier, input *TrackClickInput) (uint, error) {
	sessionID, err := parseSessionID(input.SessionID)
	if err != nil {
		return 0, err
	}
	if err := requireString("button_id", input.ButtonID, maxButtonIDLen); err != nil {
		return 0, err
	}
	if len(input.ButtonText) > maxButtonTextLen {
		return 0, NewValidationError("button_text", "exceeds maximum length")
	}
	if len(input.PageURL) > maxPageURLLen {
		return 0, NewValidationError("page_url", "exceeds maximum length")
	}
	if err := requireConsent(input.ConsentGiven); err != nil {
		return 0, err
	}

	cfg := config.GetConfig()
	click := &ClickEvent{
		SessionID:     sessionID,
		ButtonID:      input.ButtonID,
		ButtonText:    input.ButtonText,
		PageURL:       input.PageURL,
		IPAddressHash: privacy.AnonymizeIP(input.IPAddress, cfg.IPAnonymization),
		CreatedAt:     time.Now().UTC(),
	}

	db := dbManager.GetConnection()
	err = sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Create(click).Error
	})
	if err != nil {
		logger.Error("Failed to store click event", slog.Any("error", err))
		return 0, fmt.Errorf("failed to store click event: %w", err)
	}

	notify(notifier, LiveNewClick, map[string]any{
		"session_id":  sessionID,
		"button_id":   input.ButtonID,
		"button_text": input.ButtonText,
	})

	return click.ID, nil
}

// TrackConsent records or updates a session's cookie consent choice. The
// consent endpoint itself is exempt from the GDPR gate.
func TrackConsent(dbManager cartridge.DBManager, logger *slog.Logger, notifier Notifier, input *TrackConsentInput) error {
	sessionID, err := parseSessionID(input.SessionID)
	if err != nil {
		return err
	}

	cfg := config.GetConfig()
	ipHash := privacy.AnonymizeIP(input.IPAddress, cfg.IPAnonymization)
	now := time.Now().UTC()

	db := dbManager.GetConnection()
	err = sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		query := `
			INSERT INTO cookie_consents (session_id, consent_given, ip_address_hash, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (session_id) DO UPDATE SET
				consent_given = ?
		`
		return tx.Exec(query, sessionID, input.ConsentGiven, ipHash, now, input.ConsentGiven).Error
	})
	if err != nil {
		logger.Error("Failed to store cookie consent", slog.Any("error", err))
		return fmt.Errorf("failed to store cookie consent: %w", err)
	}

	notify(notifier, LiveConsentUpdate, map[string]any{
		"session_id":    sessionID,
		"consent_given": input.ConsentGiven,
	})

	return nil
}

// TrackPageExit sets TimeOnPage/ExitPage on the most recent visit for the
// (session, page) pair. The fields are set exactly once; a repeated exit for
// an already-exited visit is a no-op. Returns NotFoundError when the pair has
// no visit at all.
func TrackPageExit(dbManager cartridge.DBManager, logger *slog.Logger, notifier Notifier, input *TrackPageExitInput) error {
	sessionID, err := parseSessionID(input.SessionID)
	if err != nil {
		return err
	}
	if err := requireString("page_url", input.PageURL, maxPageURLLen); err != nil {
		return err
	}
	if input.TimeOnPage < 0 {
		return NewValidationError("time_on_page", "must not be negative")
	}

	db := dbManager.GetConnection()

	visit, err := FindLatestVisit(db, sessionID, input.PageURL)
	if err != nil {
		return err
	}
	if visit.ExitPage {
		// Already recorded; the exactly-once invariant holds.
		return nil
	}

	err = sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Model(&PageVisit{}).
			Where("id = ? AND exit_page = ?", visit.ID, false).
			Updates(map[string]any{
				"time_on_page": input.TimeOnPage,
				"exit_page":    true,
			}).Error
	})
	if err != nil {
		logger.Error("Failed to record page exit", slog.Any("error", err))
		return fmt.Errorf("failed to record page exit: %w", err)
	}

	notify(notifier, LivePageExit, map[string]any{
		"session_id":   sessionID,
		"page_url":     input.PageURL,
		"time_on_page": input.TimeOnPage,
	})

	return nil
}

// TrackHeatmapBatch persists a batch of click coordinates atomically.
// Returns the number of rows written.
func TrackHeatmapBatch(dbManager cartridge.DBManager, logger *slog.Logger, notifier Notifier, input *TrackHeatmapInput) (int, error) {
	sessionID, err := parseSessionID(input.SessionID)
	if err != nil {
		return 0, err
	}
	if err := requireString("page_url", input.PageURL, maxPageURLLen); err != nil {
		return 0, err
	}
	if len(input.Clicks) == 0 {
		return 0, NewValidationError("clicks", "is required")
	}
	if err := requireConsent(input.ConsentGiven); err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	rows := make([]ClickHeatmap, 0, len(input.Clicks))
	for i, point := range input.Clicks {
		if point.XPosition < 0 || point.YPosition < 0 {
			return 0, NewValidationError("clicks", fmt.Sprintf("point %d has negative coordinates", i))
		}
		if len(point.ElementSelector) > maxSelectorLen {
			return 0, NewValidationError("clicks", fmt.Sprintf("point %d selector exceeds maximum length", i))
		}
		if len(point.ElementText) > maxElementTextLen {
			return 0, NewValidationError("clicks", fmt.Sprintf("point %d element text exceeds maximum length", i))
		}
		rows = append(rows, ClickHeatmap{
			SessionID:       sessionID,
			PageURL:         input.PageURL,
			XPosition:       point.XPosition,
			YPosition:       point.YPosition,
			ViewportWidth:   point.ViewportWidth,
			ViewportHeight:  point.ViewportHeight,
			ElementSelector: point.ElementSelector,
			ElementText:     point.ElementText,
			CreatedAt:       now,
		})
	}

	db := dbManager.GetConnection()
	err = sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Create(&rows).Error
	})
	if err != nil {
		logger.Error("Failed to store heatmap batch", slog.Any("error", err))
		return 0, fmt.Errorf("failed to store heatmap batch: %w", err)
	}

	notify(notifier, LiveHeatmapUpdate, map[string]any{
		"session_id": sessionID,
		"page_url":   input.PageURL,
		"count":      len(rows),
	})

	return len(rows), nil
}

// TrackConversion persists a conversion funnel event. The 1-based EventOrder
// is assigned from the session's prior conversion count inside the same
// immediate write transaction, so concurrent conversions for one session get
// distinct orders.
func TrackConversion(dbManager cartridge.DBManager, logger *slog.Logger, notifier Notifier, input *TrackConversionInput) (uint, error) {
	sessionID, err := parseSessionID(input.SessionID)
	if err != nil {
		return 0, err
	}
	if err := requireString("event_name", input.EventName, maxEventNameLen); err != nil {
		return 0, err
	}
	if len(input.PageURL) > maxPageURLLen {
		return 0, NewValidationError("page_url", "exceeds maximum length")
	}
	if err := requireConsent(input.ConsentGiven); err != nil {
		return 0, err
	}

	conversion := &ConversionEvent{
		SessionID: sessionID,
		EventName: input.EventName,
		PageURL:   input.PageURL,
		EventData: marshalEventData(input.EventData),
		CreatedAt: time.Now().UTC(),
	}

	db := dbManager.GetConnection()
	err = sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		var priorCount int64
		if err := tx.Model(&ConversionEvent{}).
			Where("session_id = ?", sessionID).
			Count(&priorCount).Error; err != nil {
			return err
		}
		conversion.EventOrder = int(priorCount) + 1
		return tx.Create(conversion).Error
	})
	if err != nil {
		logger.Error("Failed to store conversion event", slog.Any("error", err))
		return 0, fmt.Errorf("failed to store conversion event: %w", err)
	}

	notify(notifier, LiveNewConversion, map[string]any{
		"session_id":  sessionID,
		"event_name":  input.EventName,
		"event_order": conversion.EventOrder,
	})

	return conversion.ID, nil
}

// FindLatestVisit returns the most recent PageVisit for the session and page,
// or NotFoundError when none exists.
func FindLatestVisit(db *gorm.DB, sessionID, pageURL string) (*PageVisit, error) {
	var visit PageVisit
	err := db.Where("session_id = ? AND page_url = ?", sessionID, pageURL).
		Order("created_at DESC").
		First(&visit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewNotFoundError("page visit")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest visit: %w", err)
	}
	return &visit, nil
}

// parseSessionID validates the client-generated session token. Tokens are
// opaque correlation keys, never authentication.
func parseSessionID(raw string) (string, error) {
	if raw == "" {
		return "", NewValidationError("session_id", "is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", NewValidationError("session_id", "must be a valid UUID")
	}
	return id.String(), nil
}

func requireString(field, value string, maxLen int) error {
	if value == "" {
		return NewValidationError(field, "is required")
	}
	if len(value) > maxLen {
		return NewValidationError(field, "exceeds maximum length")
	}
	return nil
}

// requireConsent applies the GDPR gate. When enforcement is enabled the
// payload must carry an explicit consent flag, otherwise nothing is written.
func requireConsent(consentGiven bool) error {
	if config.GetConfig().GDPREnabled && !consentGiven {
		return ErrConsentRequired
	}
	return nil
}

// normalizeCountryCode uppercases a two-letter country code and drops
// anything else.
func normalizeCountryCode(code string) string {
	code = strings.TrimSpace(code)
	if len(code) != 2 {
		return ""
	}
	for _, r := range code {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return ""
		}
	}
	return strings.ToUpper(code)
}

func marshalEventData(data map[string]any) string {
	if len(data) == 0 {
		return ""
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	return string(encoded)
}
