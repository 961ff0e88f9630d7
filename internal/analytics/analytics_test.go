package analytics_test

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/analytics"
	"fintrack/internal/events"
	"fintrack/internal/testsupport"
)

func TestVisitCounts(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	now := time.Now().UTC()
	sessionA := testsupport.NewSessionID()
	sessionB := testsupport.NewSessionID()

	testsupport.CreateTestVisit(t, db, &events.PageVisit{SessionID: sessionA, PageURL: "/", CreatedAt: now})
	testsupport.CreateTestVisit(t, db, &events.PageVisit{SessionID: sessionA, PageURL: "/docs", CreatedAt: now})
	testsupport.CreateTestVisit(t, db, &events.PageVisit{SessionID: sessionB, PageURL: "/", CreatedAt: now.Add(-48 * time.Hour)})

	params := analytics.QueryParams{From: now.Add(-24 * time.Hour), To: now.Add(time.Hour)}

	visits, err := analytics.VisitsCount(db, params)
	require.NoError(t, err)
	assert.Equal(t, int64(2), visits)

	sessions, err := analytics.UniqueSessionsCount(db, params)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sessions)

	// Open range counts everything.
	visits, err = analytics.VisitsCount(db, analytics.QueryParams{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), visits)
}

func TestVisitsByDay(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	day1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)

	testsupport.CreateTestVisit(t, db, &events.PageVisit{PageURL: "/", CreatedAt: day1})
	testsupport.CreateTestVisit(t, db, &events.PageVisit{PageURL: "/", CreatedAt: day1.Add(time.Hour)})
	testsupport.CreateTestVisit(t, db, &events.PageVisit{PageURL: "/", CreatedAt: day2})

	series, err := analytics.VisitsByDay(db, analytics.QueryParams{})
	require.NoError(t, err)
	require.Len(t, series, 2)

	// Most recent day first.
	assert.Equal(t, "2026-03-03", series[0].Date)
	assert.Equal(t, int64(1), series[0].Count)
	assert.Equal(t, "2026-03-01", series[1].Date)
	assert.Equal(t, int64(2), series[1].Count)
}

func TestTopButtons(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		testsupport.CreateTestClick(t, db, &events.ClickEvent{
			ButtonID: "signup", ButtonText: "Sign up", CreatedAt: now,
		})
	}
	testsupport.CreateTestClick(t, db, &events.ClickEvent{
		ButtonID: "pricing", ButtonText: "See pricing", CreatedAt: now,
	})

	buttons, err := analytics.TopButtons(db, analytics.QueryParams{})
	require.NoError(t, err)
	require.Len(t, buttons, 2)
	assert.Equal(t, "signup", buttons[0].ButtonID)
	assert.Equal(t, int64(3), buttons[0].Count)
	assert.Equal(t, "pricing", buttons[1].ButtonID)
}

func TestTrafficSources(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	now := time.Now().UTC()
	testsupport.CreateTestVisit(t, db, &events.PageVisit{PageURL: "/", Referrer: "", CreatedAt: now})
	testsupport.CreateTestVisit(t, db, &events.PageVisit{PageURL: "/", Referrer: "", CreatedAt: now})
	testsupport.CreateTestVisit(t, db, &events.PageVisit{PageURL: "/", Referrer: "https://google.com/search?q=x", CreatedAt: now})
	testsupport.CreateTestVisit(t, db, &events.PageVisit{PageURL: "/", Referrer: "https://www.google.com/", CreatedAt: now})
	testsupport.CreateTestVisit(t, db, &events.PageVisit{PageURL: "/", Referrer: "https://news.ycombinator.com/item", CreatedAt: now})

	sources, err := analytics.TrafficSources(db, analytics.QueryParams{})
	require.NoError(t, err)
	require.Len(t, sources, 3)

	// Empty referrers collapse to Direct; www. and bare hosts merge.
	assert.Equal(t, "Direct", sources[0].Name)
	assert.Equal(t, int64(2), sources[0].Count)
	assert.Equal(t, "google.com", sources[1].Name)
	assert.Equal(t, int64(2), sources[1].Count)
	assert.Equal(t, "news.ycombinator.com", sources[2].Name)
}

func TestNormalizeReferrer(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"", "Direct"},
		{"   ", "Direct"},
		{"https://www.google.com/search", "google.com"},
		{"https://t.co/abc", "t.co"},
		{"example.com", "example.com"},
		{"www.example.com", "example.com"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, analytics.NormalizeReferrer(tc.raw), "raw=%q", tc.raw)
	}
}

func TestDeviceBreakdowns(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	now := time.Now().UTC()
	testsupport.CreateTestVisit(t, db, &events.PageVisit{PageURL: "/", DeviceType: "desktop", OSName: "Windows", BrowserName: "chrome", CreatedAt: now})
	testsupport.CreateTestVisit(t, db, &events.PageVisit{PageURL: "/", DeviceType: "desktop", OSName: "MacOS", BrowserName: "safari", CreatedAt: now})
	testsupport.CreateTestVisit(t, db, &events.PageVisit{PageURL: "/", DeviceType: "mobile", OSName: "iOS", BrowserName: "safari", CreatedAt: now})
	testsupport.CreateTestVisit(t, db, &events.PageVisit{PageURL: "/", CreatedAt: now})

	// Rows with an unset classification are excluded, not bucketed.
	devices, err := analytics.DeviceBreakdown(db, analytics.QueryParams{})
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "desktop", devices[0].Name)
	assert.Equal(t, int64(2), devices[0].Count)
	assert.Equal(t, "mobile", devices[1].Name)

	browsers, err := analytics.BrowserBreakdown(db, analytics.QueryParams{})
	require.NoError(t, err)
	require.Len(t, browsers, 2)
	assert.Equal(t, "safari", browsers[0].Name)
	assert.Equal(t, int64(2), browsers[0].Count)
}

func TestCountryBreakdown(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	now := time.Now().UTC()
	testsupport.CreateTestVisit(t, db, &events.PageVisit{PageURL: "/", CountryCode: "DE", CreatedAt: now})
	testsupport.CreateTestVisit(t, db, &events.PageVisit{PageURL: "/", CountryCode: "DE", CreatedAt: now})
	testsupport.CreateTestVisit(t, db, &events.PageVisit{PageURL: "/", CountryCode: "US", CreatedAt: now})
	// No resolved country: excluded from the breakdown.
	testsupport.CreateTestVisit(t, db, &events.PageVisit{PageURL: "/", CreatedAt: now})

	countries, err := analytics.CountryBreakdown(db, analytics.QueryParams{})
	require.NoError(t, err)
	require.Len(t, countries, 2)
	assert.Equal(t, "DE", countries[0].CountryCode)
	assert.Equal(t, "Germany", countries[0].CountryName)
	assert.Equal(t, int64(2), countries[0].Count)
	assert.Equal(t, "United States", countries[1].CountryName)
}

func TestAverageTimeOnPage(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	now := time.Now().UTC()
	testsupport.CreateTestVisit(t, db, &events.PageVisit{
		PageURL: "/docs", ExitPage: true,
		TimeOnPage: nullInt(30), CreatedAt: now,
	})
	testsupport.CreateTestVisit(t, db, &events.PageVisit{
		PageURL: "/docs", ExitPage: true,
		TimeOnPage: nullInt(60), CreatedAt: now,
	})
	// Open visit: no dwell time yet, must not drag the average down.
	testsupport.CreateTestVisit(t, db, &events.PageVisit{PageURL: "/docs", CreatedAt: now})
	// A zero dwell time is treated as unrecorded.
	testsupport.CreateTestVisit(t, db, &events.PageVisit{
		PageURL: "/docs", ExitPage: true,
		TimeOnPage: nullInt(0), CreatedAt: now,
	})

	pages, err := analytics.AverageTimeOnPage(db, analytics.QueryParams{})
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "/docs", pages[0].PageURL)
	assert.Equal(t, 45.0, pages[0].AverageSeconds)
	assert.Equal(t, int64(2), pages[0].Samples)
}

func TestOverallAverageTimeOnPage(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	// No qualifying rows yet: zero, not an error.
	average, err := analytics.OverallAverageTimeOnPage(db, analytics.QueryParams{})
	require.NoError(t, err)
	assert.Zero(t, average)

	now := time.Now().UTC()
	testsupport.CreateTestVisit(t, db, &events.PageVisit{
		PageURL: "/docs", ExitPage: true, TimeOnPage: nullInt(30), CreatedAt: now,
	})
	testsupport.CreateTestVisit(t, db, &events.PageVisit{
		PageURL: "/docs", ExitPage: true, TimeOnPage: nullInt(60), CreatedAt: now,
	})
	testsupport.CreateTestVisit(t, db, &events.PageVisit{
		PageURL: "/pricing", ExitPage: true, TimeOnPage: nullInt(90), CreatedAt: now,
	})
	testsupport.CreateTestVisit(t, db, &events.PageVisit{
		PageURL: "/pricing", ExitPage: true, TimeOnPage: nullInt(0), CreatedAt: now,
	})

	average, err = analytics.OverallAverageTimeOnPage(db, analytics.QueryParams{})
	require.NoError(t, err)
	assert.Equal(t, 60.0, average)
}

func TestConversionFunnel(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	now := time.Now().UTC()
	s1 := testsupport.NewSessionID()
	s2 := testsupport.NewSessionID()
	s3 := testsupport.NewSessionID()

	// Three sessions reach signup first; two go on to purchase.
	testsupport.CreateTestConversion(t, db, s1, "signup", 1, now)
	testsupport.CreateTestConversion(t, db, s2, "signup", 1, now)
	testsupport.CreateTestConversion(t, db, s3, "signup", 1, now)
	testsupport.CreateTestConversion(t, db, s1, "purchase", 2, now)
	testsupport.CreateTestConversion(t, db, s2, "purchase", 2, now)
	// s1 purchases twice; distinct sessions must not double count.
	testsupport.CreateTestConversion(t, db, s1, "purchase", 3, now)

	steps, err := analytics.ConversionFunnel(db, analytics.QueryParams{})
	require.NoError(t, err)
	require.Len(t, steps, 2)

	assert.Equal(t, "signup", steps[0].EventName)
	assert.Equal(t, int64(3), steps[0].Sessions)
	assert.Equal(t, 1, steps[0].MinOrder)

	assert.Equal(t, "purchase", steps[1].EventName)
	assert.Equal(t, int64(2), steps[1].Sessions)
	assert.Equal(t, 2, steps[1].MinOrder)
}

func TestHeatmapPoints(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	now := time.Now().UTC()
	sessionID := testsupport.NewSessionID()
	for i := 0; i < 5; i++ {
		require.NoError(t, db.Create(&events.ClickHeatmap{
			SessionID: sessionID,
			PageURL:   "/landing",
			XPosition: i * 10,
			YPosition: i * 20,
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		}).Error)
	}
	require.NoError(t, db.Create(&events.ClickHeatmap{
		SessionID: sessionID,
		PageURL:   "/other",
		XPosition: 1,
		YPosition: 1,
		CreatedAt: now,
	}).Error)

	points, err := analytics.HeatmapPoints(db, analytics.QueryParams{Limit: 3}, "/landing")
	require.NoError(t, err)
	require.Len(t, points, 3)

	// Newest first, scoped to the requested page.
	assert.Equal(t, 40, points[0].XPosition)
	assert.Equal(t, 30, points[1].XPosition)
}

func TestRecentEvents(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		testsupport.CreateTestVisit(t, db, &events.PageVisit{
			PageURL:   "/v",
			CreatedAt: now.Add(time.Duration(-i) * time.Minute),
		})
	}
	testsupport.CreateTestClick(t, db, &events.ClickEvent{
		ButtonID:  "b",
		CreatedAt: now.Add(-30 * time.Second),
	})

	// With both types each source is pre-limited to limit/2 before the
	// merge, so the feed can come back under-filled: 2 visits + 1 click.
	feed, err := analytics.RecentEvents(db, 4, analytics.RecentTypeAll)
	require.NoError(t, err)
	require.Len(t, feed, 3)
	assert.Equal(t, analytics.RecentTypeVisit, feed[0].Type)
	assert.Equal(t, analytics.RecentTypeClick, feed[1].Type)
	for i := 1; i < len(feed); i++ {
		assert.False(t, feed[i].CreatedAt.After(feed[i-1].CreatedAt))
	}

	// A single-type query gets the full limit.
	feed, err = analytics.RecentEvents(db, 4, analytics.RecentTypeVisit)
	require.NoError(t, err)
	require.Len(t, feed, 3)
	for _, row := range feed {
		assert.Equal(t, analytics.RecentTypeVisit, row.Type)
	}

	feed, err = analytics.RecentEvents(db, 4, analytics.RecentTypeClick)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, "b", feed[0].ButtonID)
}

func TestSummaryStats(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	now := time.Now().UTC()
	s1 := testsupport.NewSessionID()
	s2 := testsupport.NewSessionID()

	// Three visits in the last 24h plus one older visit inside the 7d window.
	testsupport.CreateTestVisit(t, db, &events.PageVisit{SessionID: s1, PageURL: "/", CreatedAt: now})
	testsupport.CreateTestVisit(t, db, &events.PageVisit{SessionID: s1, PageURL: "/docs", CreatedAt: now})
	testsupport.CreateTestVisit(t, db, &events.PageVisit{SessionID: s2, PageURL: "/", CreatedAt: now})
	testsupport.CreateTestVisit(t, db, &events.PageVisit{SessionID: s2, PageURL: "/", CreatedAt: now.Add(-48 * time.Hour)})
	testsupport.CreateTestClick(t, db, &events.ClickEvent{SessionID: s1, ButtonID: "cta", CreatedAt: now})

	// One live session, one stale row that the summary sweep must remove.
	require.NoError(t, db.Create(&events.ActiveSession{
		SessionID: s1, LastSeen: now, PageURL: "/",
	}).Error)
	require.NoError(t, db.Create(&events.ActiveSession{
		SessionID: s2, LastSeen: now.Add(-time.Hour), PageURL: "/",
	}).Error)

	summary, err := analytics.SummaryStats(dbManager, logger)
	require.NoError(t, err)

	assert.Equal(t, int64(3), summary.VisitsLast24h)
	assert.Equal(t, int64(4), summary.VisitsLast7d)
	assert.Equal(t, int64(1), summary.ClicksLast24h)
	assert.Equal(t, int64(1), summary.ClicksLast7d)
	assert.Equal(t, int64(1), summary.ActiveUsers)
	// 1 click over 3 visits in the last 24h.
	assert.Equal(t, 33.33, summary.ConversionRate)
}

func TestSummaryStatsEmpty(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)

	summary, err := analytics.SummaryStats(dbManager, logger)
	require.NoError(t, err)

	// Zero visits yields a zero rate, never NaN.
	assert.Zero(t, summary.VisitsLast24h)
	assert.Zero(t, summary.ConversionRate)
}

func TestExportEvents(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	now := time.Now().UTC()
	testsupport.CreateTestVisit(t, db, &events.PageVisit{PageURL: "/a", CreatedAt: now.Add(-2 * time.Minute)})
	testsupport.CreateTestClick(t, db, &events.ClickEvent{ButtonID: "cta", CreatedAt: now.Add(-time.Minute)})
	testsupport.CreateTestVisit(t, db, &events.PageVisit{PageURL: "/b", CreatedAt: now})

	rows, err := analytics.ExportEvents(db, analytics.QueryParams{}, analytics.RecentTypeAll)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	// Oldest first, both types interleaved.
	assert.Equal(t, analytics.RecentTypeVisit, rows[0].Type)
	assert.Equal(t, "/a", rows[0].PageURL)
	assert.Equal(t, analytics.RecentTypeClick, rows[1].Type)
	assert.Equal(t, "/b", rows[2].PageURL)

	// Type filter restricts the stream to one source.
	rows, err = analytics.ExportEvents(db, analytics.QueryParams{}, analytics.RecentTypeClick)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "cta", rows[0].ButtonID)
}

func nullInt(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: true}
}
