package internal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"

	v1 "fintrack/api/v1"
	"fintrack/internal/config"
	"fintrack/internal/http"
	"fintrack/internal/live"
)

// publicCORSConfig is the CORS setup shared by all public tracking endpoints.
// The snippet runs on arbitrary customer origins.
var publicCORSConfig = &cors.Config{
	AllowOrigins: "*",
	AllowMethods: "POST,GET,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, Authorization, Referrer, User-Agent",
}

// SetupSession configures session management on the server.
func SetupSession(srv *cartridge.Server) {
	cfg := config.GetConfig()
	sessionMgr := cartridge.NewSessionManager(cartridge.SessionConfig{
		CookieName: cfg.AppName + "_session",
		Secret:     cfg.GetSessionSecret(),
		TTL:        time.Duration(cfg.GetLoginSessionTimeout()) * time.Second,
		Secure:     cfg.IsProduction(),
		LoginPath:  "/api/auth/login",
	})
	srv.SetSession(sessionMgr)
}

// MountAppRoutes mounts all application routes with a private live hub.
// Production wiring goes through MountAppRoutesWithHub so the hub is shared
// with the broadcaster worker.
func MountAppRoutes(srv *cartridge.Server) {
	hub := live.NewHub(srv.GetLogger())
	MountAppRoutesWithHub(srv, hub)
}

// MountAppRoutesWithHub mounts all application routes using cartridge's
// route API and wires the hub into the tracking pipeline.
func MountAppRoutesWithHub(srv *cartridge.Server, hub *live.Hub) {
	SetupSession(srv)
	cfg := config.GetConfig()

	v1.SetNotifier(hub)

	// Rate limiting only bites in production; in development and test it
	// would interfere with rapid requests.
	conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if cfg.IsProduction() {
				return limiter(c)
			}
			return c.Next()
		}
	}

	// Rate limiter for the public tracking API, per client IP.
	trackRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(cfg.TrackRateLimitPerMinute),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	// Stricter limiter for auth endpoints to slow brute force attempts.
	authRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(cfg.AuthRateLimitPerMinute),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	// Public tracking config: rate limiting + permissive CORS, CORS first so
	// 4xx responses still carry CORS headers.
	trackConfig := &cartridge.RouteConfig{
		EnableCORS:       true,
		WriteConcurrency: false,
		CustomMiddleware: []fiber.Handler{trackRateLimiter},
		CORSConfig:       publicCORSConfig,
	}

	authConfig := &cartridge.RouteConfig{
		CustomMiddleware: []fiber.Handler{authRateLimiter},
	}

	// === HEALTH ===
	srv.Get("/api/health", http.HealthAction)
	srv.Head("/api/health", http.HealthAction)

	// === PUBLIC TRACKING ROUTES ===
	preflight := func(ctx *cartridge.Context) error {
		return ctx.SendStatus(fiber.StatusNoContent)
	}

	srv.Post("/api/track/visit", v1.TrackVisitHandler, trackConfig)
	srv.Options("/api/track/visit", preflight, trackConfig)
	srv.Post("/api/track/click", v1.TrackClickHandler, trackConfig)
	srv.Options("/api/track/click", preflight, trackConfig)
	srv.Post("/api/track/consent", v1.TrackConsentHandler, trackConfig)
	srv.Options("/api/track/consent", preflight, trackConfig)
	srv.Post("/api/track/page-exit", v1.TrackPageExitHandler, trackConfig)
	srv.Options("/api/track/page-exit", preflight, trackConfig)
	srv.Post("/api/track/heatmap", v1.TrackHeatmapHandler, trackConfig)
	srv.Options("/api/track/heatmap", preflight, trackConfig)
	srv.Post("/api/track/conversion", v1.TrackConversionHandler, trackConfig)
	srv.Options("/api/track/conversion", preflight, trackConfig)

	// === AUTHENTICATION ROUTES ===
	srv.Post("/api/auth/login", http.LoginAction, authConfig)
	srv.Post("/api/auth/logout", http.LogoutAction)
	srv.Get("/api/auth/check", http.AuthCheckAction)

	// === ADMIN STATS ROUTES ===
	// Handlers check the session themselves and answer JSON 401; no redirect
	// middleware on API routes.
	srv.Get("/api/stats/summary", http.SummaryAction)
	srv.Get("/api/stats/chart-data", http.ChartDataAction)
	srv.Get("/api/stats/devices", http.DevicesAction)
	srv.Get("/api/stats/geography", http.GeographyAction)
	srv.Get("/api/stats/time-on-page", http.TimeOnPageAction)
	srv.Get("/api/stats/funnel", http.FunnelAction)
	srv.Get("/api/stats/heatmap", http.HeatmapAction)

	// === ADMIN DATA ROUTES ===
	srv.Get("/api/events/recent", http.RecentEventsAction)
	srv.Get("/api/export/csv", http.ExportCSVAction)

	// === LIVE UPDATES ===
	srv.Get("/api/live", http.LiveHandler(hub))
}
