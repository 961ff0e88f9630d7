package internal_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/config"
	"fintrack/internal/events"
	"fintrack/internal/testsupport"
)

func TestMain(m *testing.M) {
	os.Setenv("FINTRACK_ENV", "test")
	config.Reset()
	os.Exit(m.Run())
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	// Browsers always send this; requests without it are rejected.
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	return req
}

func authedRequest(method, target, sessionValue string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.AddCookie(&http.Cookie{Name: testsupport.SessionCookieName, Value: sessionValue})
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}

func TestHealthEndpoint(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	app := testsupport.CreateMinimalTestApp(t, db)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["db_status"])
}

func TestTrackVisitEndpoint(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	app := testsupport.CreateMinimalTestApp(t, db)

	t.Run("records a consented visit", func(t *testing.T) {
		payload := fmt.Sprintf(`{"session_id":%q,"page_url":"/pricing","consent_given":true}`,
			testsupport.NewSessionID())
		req := jsonRequest("POST", "/api/track/visit", payload)
		req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.NotZero(t, body["id"])

		var count int64
		require.NoError(t, db.Model(&events.PageVisit{}).
			Where("page_url = ?", "/pricing").Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("rejects a malformed session token", func(t *testing.T) {
		resp, err := app.Test(jsonRequest("POST", "/api/track/visit",
			`{"session_id":"not-a-uuid","page_url":"/","consent_given":true}`))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, "VALIDATION_ERROR", body["code"])
	})

	t.Run("refuses without consent", func(t *testing.T) {
		payload := fmt.Sprintf(`{"session_id":%q,"page_url":"/","consent_given":false}`,
			testsupport.NewSessionID())
		resp, err := app.Test(jsonRequest("POST", "/api/track/visit", payload))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, "CONSENT_REQUIRED", body["code"])
	})

	t.Run("rejects server-to-server requests without Sec-Fetch-Site", func(t *testing.T) {
		payload := fmt.Sprintf(`{"session_id":%q,"page_url":"/","consent_given":true}`,
			testsupport.NewSessionID())
		req := httptest.NewRequest("POST", "/api/track/visit", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		// No Sec-Fetch-Site header, as curl or a backend client would send.

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

		var count int64
		require.NoError(t, db.Model(&events.PageVisit{}).Count(&count).Error)
		assert.Equal(t, int64(1), count) // only the consented visit from above
	})
}

func TestTrackConsentEndpoint(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	app := testsupport.CreateMinimalTestApp(t, db)

	// Recording a refusal must work: consent itself is exempt from the gate.
	payload := fmt.Sprintf(`{"session_id":%q,"consent_given":false}`, testsupport.NewSessionID())
	resp, err := app.Test(jsonRequest("POST", "/api/track/consent", payload))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var count int64
	require.NoError(t, db.Model(&events.CookieConsent{}).
		Where("consent_given = ?", false).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestTrackPageExitEndpoint(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	app := testsupport.CreateMinimalTestApp(t, db)

	payload := fmt.Sprintf(`{"session_id":%q,"page_url":"/nowhere","time_on_page":12}`,
		testsupport.NewSessionID())
	resp, err := app.Test(jsonRequest("POST", "/api/track/page-exit", payload))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func TestTrackingPreflight(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	app := testsupport.CreateMinimalTestApp(t, db)

	req := httptest.NewRequest("OPTIONS", "/api/track/visit", nil)
	req.Header.Set("Origin", "https://customer.example")
	req.Header.Set("Access-Control-Request-Method", "POST")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestAuthFlow(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	app := testsupport.CreateMinimalTestApp(t, db)
	testsupport.CreateTestUserForAuth(t, db, "admin@example.com", "correct-horse")

	t.Run("stats require a session", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/api/stats/summary", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, "UNAUTHORIZED", body["code"])
	})

	t.Run("wrong password is rejected generically", func(t *testing.T) {
		resp, err := app.Test(jsonRequest("POST", "/api/auth/login",
			`{"email":"admin@example.com","password":"wrong"}`))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, "Invalid email or password", body["error"])
	})

	t.Run("unknown email gets the same answer", func(t *testing.T) {
		resp, err := app.Test(jsonRequest("POST", "/api/auth/login",
			`{"email":"nobody@example.com","password":"whatever"}`))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, "Invalid email or password", body["error"])
	})

	t.Run("login grants access to stats", func(t *testing.T) {
		session := testsupport.LoginTestUser(t, app, "admin@example.com", "correct-horse")

		resp, err := app.Test(authedRequest("GET", "/api/stats/summary", session))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Contains(t, body, "visits_last_24h")
		assert.Contains(t, body, "visits_last_7d")
		assert.Contains(t, body, "active_users")
		assert.Contains(t, body, "conversion_rate")
	})

	t.Run("auth check reflects the session", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/api/auth/check", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.Equal(t, false, body["authenticated"])

		session := testsupport.LoginTestUser(t, app, "admin@example.com", "correct-horse")
		resp, err = app.Test(authedRequest("GET", "/api/auth/check", session))
		require.NoError(t, err)
		body = decodeBody(t, resp)
		assert.Equal(t, true, body["authenticated"])
		assert.Equal(t, "admin@example.com", body["email"])
	})
}

func TestStatsEndpoints(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	app := testsupport.CreateMinimalTestApp(t, db)
	testsupport.CreateTestUserForAuth(t, db, "admin@example.com", "correct-horse")
	session := testsupport.LoginTestUser(t, app, "admin@example.com", "correct-horse")

	now := time.Now().UTC()
	testsupport.CreateTestVisit(t, db, &events.PageVisit{
		PageURL: "/pricing", Referrer: "https://google.com/", DeviceType: "desktop",
		BrowserName: "chrome", OSName: "Windows", CountryCode: "DE", CreatedAt: now,
	})
	testsupport.CreateTestClick(t, db, &events.ClickEvent{
		ButtonID: "cta", ButtonText: "Start", PageURL: "/pricing", CreatedAt: now,
	})

	t.Run("chart data", func(t *testing.T) {
		resp, err := app.Test(authedRequest("GET", "/api/stats/chart-data?range=today", session))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Contains(t, body, "visits_by_day")
		assert.Contains(t, body, "traffic_sources")
		assert.Contains(t, body, "top_pages")
		assert.Contains(t, body, "top_buttons")
	})

	t.Run("devices", func(t *testing.T) {
		resp, err := app.Test(authedRequest("GET", "/api/stats/devices", session))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		devices := body["devices"].([]any)
		require.NotEmpty(t, devices)
		first := devices[0].(map[string]any)
		assert.Equal(t, "desktop", first["name"])
	})

	t.Run("geography", func(t *testing.T) {
		resp, err := app.Test(authedRequest("GET", "/api/stats/geography", session))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		countries := body["countries"].([]any)
		require.NotEmpty(t, countries)
		first := countries[0].(map[string]any)
		assert.Equal(t, "Germany", first["country_name"])
	})

	t.Run("heatmap without page filter", func(t *testing.T) {
		resp, err := app.Test(authedRequest("GET", "/api/stats/heatmap", session))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Contains(t, body, "points")
		assert.Equal(t, "", body["page_url"])
	})

	t.Run("recent events feed", func(t *testing.T) {
		resp, err := app.Test(authedRequest("GET", "/api/events/recent?limit=10", session))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.NotZero(t, body["count"])
	})
}

func TestExportCSVEndpoint(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	app := testsupport.CreateMinimalTestApp(t, db)
	testsupport.CreateTestUserForAuth(t, db, "admin@example.com", "correct-horse")

	resp, err := app.Test(httptest.NewRequest("GET", "/api/export/csv", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	session := testsupport.LoginTestUser(t, app, "admin@example.com", "correct-horse")
	testsupport.CreateTestVisit(t, db, &events.PageVisit{
		PageURL: "/docs", CreatedAt: time.Now().UTC(),
	})

	resp, err = app.Test(authedRequest("GET", "/api/export/csv", session))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "fintrack-export-")

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.NotEmpty(t, lines)
	assert.Equal(t, "type,id,session_id,page_url,referrer,button_id,button_text,created_at", lines[0])
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "visit,"))
	assert.Contains(t, lines[1], "/docs")
}
