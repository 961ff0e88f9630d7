package testsupport

import (
	"fmt"
	"log/slog"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/cache"
	ctestsupport "github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"fintrack/internal"
	"fintrack/internal/config"
	"fintrack/internal/events"
	"fintrack/internal/users"
)

// SessionCookieName is the expected cookie name for admin session cookies in
// tests. Matches the pattern used in routes.go: cfg.AppName + "_session"
const SessionCookieName = "fintrack_session"

// testDBCache caches test databases by test name to allow multiple calls
// within the same test to share the same database
var testDBCache = make(map[string]*gorm.DB)
var testDBCacheMu sync.Mutex

// TestDBManager wraps cartridge's TestDBManager with fintrack's interface
type TestDBManager struct {
	*ctestsupport.TestDBManager
}

// NewTestDBManager creates a TestDBManager that implements cartridge.DBManager
func NewTestDBManager(db *gorm.DB) *TestDBManager {
	return &TestDBManager{
		TestDBManager: ctestsupport.NewTestDBManager(db),
	}
}

// Ensure TestDBManager implements cartridge.DBManager
var _ cartridge.DBManager = (*TestDBManager)(nil)

// allModels returns all fintrack models for migration
func allModels() []any {
	return []any{
		&cache.CacheRecord{},
		&events.PageVisit{},
		&events.ClickEvent{},
		&events.ClickHeatmap{},
		&events.ConversionEvent{},
		&events.CookieConsent{},
		&events.ActiveSession{},
		&users.User{},
	}
}

// SetupTestDB creates a test database with all fintrack models migrated.
// Uses a named in-memory database with cache=shared to allow multiple
// connections to share the same database within a test. Caches the database
// by test name so multiple calls within the same test return the same
// database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	testName := t.Name()

	// Use root test name for caching to handle closure issues where
	// setup functions capture the outer t while t.Run has subtest t
	rootName := testName
	if idx := strings.Index(testName, "/"); idx > 0 {
		rootName = testName[:idx]
	}

	testDBCacheMu.Lock()
	if db, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return db
	}
	testDBCacheMu.Unlock()

	// cache=shared allows multiple connections to the same database
	sanitizedName := strings.ReplaceAll(rootName, "/", "_")
	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", sanitizedName, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	db.Exec("PRAGMA foreign_keys = ON")
	db.Exec("PRAGMA journal_mode = WAL")

	if err := db.AutoMigrate(allModels()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	testDBCacheMu.Lock()
	testDBCache[rootName] = db
	testDBCacheMu.Unlock()

	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// SetupTestDBManager creates a test DB manager using cartridge's testsupport
func SetupTestDBManager(t *testing.T) (*TestDBManager, *slog.Logger) {
	cfg := config.GetConfig()

	// SAFETY CHECK: Ensure we're in test environment
	if cfg.Environment != config.Test {
		t.Fatalf("CRITICAL: Tests must run in test environment! Current: %s. Set FINTRACK_ENV=test", cfg.Environment)
	}

	db := SetupTestDB(t)
	logger := GetLogger()
	dbManager := NewTestDBManager(db)

	return dbManager, logger
}

// CleanAllTables clears all non-system tables in the database
func CleanAllTables(db *gorm.DB) {
	var tableNames []string
	db.Raw("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&tableNames)

	var tables []string
	for _, name := range tableNames {
		if name != "migrations" && name != "schema_migrations" {
			tables = append(tables, name)
		}
	}

	if len(tables) == 0 {
		return
	}

	db.Exec("PRAGMA foreign_keys = OFF")
	defer db.Exec("PRAGMA foreign_keys = ON")

	db.Transaction(func(tx *gorm.DB) error {
		for _, table := range tables {
			tx.Exec("DELETE FROM " + table)
			tx.Exec("DELETE FROM sqlite_sequence WHERE name=?", table)
		}
		return nil
	})
}

// NewSessionID returns a fresh visitor session token
func NewSessionID() string {
	return uuid.NewString()
}

// CreateTestUser creates an admin user in the database
func CreateTestUser(db *gorm.DB, email, password string) users.User {
	var user users.User
	if db.Where("email = ?", email).First(&user).Error == nil {
		return user
	}

	user = users.User{
		Email:             email,
		EncryptedPassword: password,
		CreatedAt:         time.Now().UTC(),
		UpdatedAt:         time.Now().UTC(),
	}
	db.Create(&user)
	return user
}

// CreateTestUserForAuth creates a user with properly hashed password for auth testing
func CreateTestUserForAuth(t *testing.T, db *gorm.DB, email, password string) *users.User {
	t.Helper()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)

	user := &users.User{
		Email:             email,
		EncryptedPassword: string(hashedPassword),
		CreatedAt:         time.Now().UTC(),
		UpdatedAt:         time.Now().UTC(),
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// GetLogger returns a test logger
func GetLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}

// CreateTestVisit writes a page visit directly, bypassing the ingestion
// pipeline, for aggregation tests that need precise timestamps and fields.
func CreateTestVisit(t *testing.T, db *gorm.DB, visit *events.PageVisit) *events.PageVisit {
	t.Helper()

	if visit.SessionID == "" {
		visit.SessionID = NewSessionID()
	}
	if visit.IPAddressHash == "" {
		visit.IPAddressHash = "test-hash"
	}
	if visit.PageURL == "" {
		visit.PageURL = "/"
	}
	if visit.CreatedAt.IsZero() {
		visit.CreatedAt = time.Now().UTC()
	}
	require.NoError(t, db.Create(visit).Error)
	return visit
}

// CreateTestClick writes a click event directly for aggregation tests.
func CreateTestClick(t *testing.T, db *gorm.DB, click *events.ClickEvent) *events.ClickEvent {
	t.Helper()

	if click.SessionID == "" {
		click.SessionID = NewSessionID()
	}
	if click.IPAddressHash == "" {
		click.IPAddressHash = "test-hash"
	}
	if click.CreatedAt.IsZero() {
		click.CreatedAt = time.Now().UTC()
	}
	require.NoError(t, db.Create(click).Error)
	return click
}

// CreateTestConversion writes a conversion event directly for funnel tests.
func CreateTestConversion(t *testing.T, db *gorm.DB, sessionID, eventName string, order int, createdAt time.Time) *events.ConversionEvent {
	t.Helper()

	conversion := &events.ConversionEvent{
		SessionID:  sessionID,
		EventName:  eventName,
		EventOrder: order,
		PageURL:    "/",
		CreatedAt:  createdAt,
	}
	require.NoError(t, db.Create(conversion).Error)
	return conversion
}

// TrackTestVisit runs a visit through the full ingestion pipeline with
// sensible defaults.
func TrackTestVisit(t *testing.T, dbManager cartridge.DBManager, logger *slog.Logger, sessionID, pageURL string) uint {
	t.Helper()

	id, err := events.TrackVisit(dbManager, logger, nil, &events.TrackVisitInput{
		SessionID:    sessionID,
		PageURL:      pageURL,
		UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0",
		IPAddress:    "192.168.1.10",
		ConsentGiven: true,
	})
	require.NoError(t, err)
	return id
}

// CreateMinimalTestApp creates a test Fiber app with all routes
func CreateMinimalTestApp(t *testing.T, db *gorm.DB) *fiber.App {
	t.Helper()

	dbManager := NewTestDBManager(db)
	appConfig := config.GetConfig()
	appConfig.Environment = config.Test

	cfg := cartridge.DefaultServerConfig()
	cfg.Config = appConfig
	cfg.Logger = GetLogger()
	cfg.DBManager = dbManager
	// Same Sec-Fetch-Site policy as production: cross-site browser requests
	// are allowed, headerless (server-to-server) requests are rejected.
	cfg.EnableSecFetchSite = true
	cfg.SecFetchSiteAllowedValues = []string{"cross-site", "same-site", "same-origin"}

	srv, err := cartridge.NewServer(cfg)
	require.NoError(t, err)

	internal.MountAppRoutes(srv)
	return srv.App()
}

// LoginTestUser logs in via the JSON auth endpoint and returns the session
// cookie value.
func LoginTestUser(t *testing.T, app *fiber.App, email, password string) string {
	t.Helper()

	body := fmt.Sprintf(`{"email":%q,"password":%q}`, email, password)
	req := httptest.NewRequest("POST", "/api/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Sec-Fetch-Site", "same-origin")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var sessionValue string
	for _, cookie := range resp.Cookies() {
		if cookie.Name == SessionCookieName {
			sessionValue = cookie.Value
			break
		}
	}
	require.NotEmpty(t, sessionValue)
	return sessionValue
}
